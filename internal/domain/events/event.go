// Package events 定义事件实体和内部事件总线接口
package events

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// 字段长度上限
const (
	maxIdentifierLen = 256
	maxTypeLen       = 128
)

// 校验错误
var (
	// ErrEmptySource source 字段为空
	ErrEmptySource = errors.New("event source is required")
	// ErrEmptySessionID session_id 字段为空
	ErrEmptySessionID = errors.New("event session_id is required")
	// ErrEmptyType type 字段为空
	ErrEmptyType = errors.New("event type is required")
	// ErrInvalidPayload payload 不是合法 JSON
	ErrInvalidPayload = errors.New("event payload must be valid JSON")
)

// Event 事件实体
// 持久化后不可变：priority 和 PriorityMeta 只在分类时赋值一次
type Event struct {
	// ID 持久化时分配的自增 ID（会话内单调递增）
	ID int64 `json:"id"`
	// Source 事件来源标识（如 agent 名称）
	Source string `json:"source"`
	// SessionID 所属会话 ID
	SessionID string `json:"session_id"`
	// Type 事件类型（如 UserPromptSubmit、ToolUse）
	Type string `json:"type"`
	// Priority 优先级：0 = 普通，>=1 表示重要性递增
	Priority int `json:"priority"`
	// PriorityMeta 分类注解，仅当 Priority > 0 时存在
	PriorityMeta *PriorityMeta `json:"priority_metadata,omitempty"`
	// Payload 不透明的结构化数据
	Payload json.RawMessage `json:"payload"`
	// Timestamp 创建时间（Unix 毫秒），会话内单调
	Timestamp int64 `json:"timestamp"`
}

// PriorityMeta 优先级分类注解
type PriorityMeta struct {
	// ClassifiedAt 分类时间（Unix 毫秒）
	ClassifiedAt int64 `json:"classified_at"`
	// Reason 命中的分类规则说明
	Reason string `json:"reason"`
	// RetentionPolicy 适用的保留策略名称
	RetentionPolicy string `json:"retention_policy"`
}

// CreatedAt 返回创建时间
func (e *Event) CreatedAt() time.Time {
	return time.UnixMilli(e.Timestamp)
}

// IsPriority 是否为优先级事件
func (e *Event) IsPriority() bool {
	return e.Priority >= 1
}

// Validate 校验待入库事件的必填字段
// 畸形输入同步拒绝，不允许静默丢弃
func (e *Event) Validate() error {
	if e.Source == "" {
		return ErrEmptySource
	}
	if len(e.Source) > maxIdentifierLen {
		return fmt.Errorf("event source exceeds %d characters", maxIdentifierLen)
	}
	if e.SessionID == "" {
		return ErrEmptySessionID
	}
	if len(e.SessionID) > maxIdentifierLen {
		return fmt.Errorf("event session_id exceeds %d characters", maxIdentifierLen)
	}
	if e.Type == "" {
		return ErrEmptyType
	}
	if len(e.Type) > maxTypeLen {
		return fmt.Errorf("event type exceeds %d characters", maxTypeLen)
	}
	if len(e.Payload) > 0 && !json.Valid(e.Payload) {
		return ErrInvalidPayload
	}
	return nil
}

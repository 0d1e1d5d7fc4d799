package events

import (
	"encoding/json"

	domainEvents "github.com/pulseboard/backend/internal/domain/events"
	"github.com/pulseboard/backend/pkg/protocol"
)

// IngestDTO 事件采集请求
type IngestDTO struct {
	// Source 事件来源标识
	Source string `json:"source" binding:"required"`
	// SessionID 所属会话 ID
	SessionID string `json:"session_id" binding:"required"`
	// Type 事件类型
	Type string `json:"type" binding:"required"`
	// Payload 不透明的结构化数据
	Payload json.RawMessage `json:"payload"`
	// Timestamp 创建时间（Unix 毫秒），缺省为服务端当前时间
	Timestamp int64 `json:"timestamp"`
}

// QueryDTO 混合查询参数
// Sessions 为空表示不过滤会话；为 0 的上限使用配置默认值
type QueryDTO struct {
	Sessions    []string
	PriorityCap int
	RegularCap  int
	TotalCap    int
}

// QueryResultDTO 混合查询结果
type QueryResultDTO struct {
	// Events 时间升序的事件列表（带桶标注）
	Events []protocol.StreamEvent `json:"events"`
	// Info 优先级聚合信息和保留窗口元数据
	Info *protocol.PriorityInfo `json:"priority_info"`
}

// toStreamEvent 把领域事件转换为协议推送事件
func toStreamEvent(e *domainEvents.Event, bucket string) protocol.StreamEvent {
	streamEvent := protocol.StreamEvent{
		ID:        e.ID,
		Source:    e.Source,
		SessionID: e.SessionID,
		Type:      e.Type,
		Payload:   e.Payload,
		Timestamp: e.Timestamp,
		Priority:  e.Priority,
		Bucket:    bucket,
	}
	if e.PriorityMeta != nil {
		streamEvent.Meta = &protocol.PriorityMeta{
			ClassifiedAt:    e.PriorityMeta.ClassifiedAt,
			Reason:          e.PriorityMeta.Reason,
			RetentionPolicy: e.PriorityMeta.RetentionPolicy,
		}
	}
	return streamEvent
}

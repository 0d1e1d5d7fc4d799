// Package protocol 定义实时推送的消息格式
// 服务端 Hub 和消费者客户端共用，保证双方对同一份报文结构编解码
//
// 版本兼容约定：v2 在 v1 事件字段之上只做加法（priority、priority_metadata、
// priority_info），不替换或删除任何既有字段。不认识这些字段的旧消费者
// 仍能解析核心字段，新消费者通过 priority_info.protocol_version 判断
// 是否可以信任优先级元数据
package protocol

import (
	"encoding/json"
	"time"
)

// Version 当前协议版本
// v1 = 不带优先级元数据的事件流；v2 = 追加优先级字段和 priority_info
const Version = 2

// MessageKind 消息类型
type MessageKind string

const (
	// KindInitial 连接建立后的首条消息：当前混合状态快照
	KindInitial MessageKind = "initial"
	// KindEvent 单条新事件推送
	KindEvent MessageKind = "event"
)

// PriorityInfo 优先级聚合信息（加法字段，旧消费者可忽略）
type PriorityInfo struct {
	// TotalEvents 快照/统计时刻的事件总数
	TotalEvents int64 `json:"total_events"`
	// PriorityEvents 其中优先级事件数
	PriorityEvents int64 `json:"priority_events"`
	// RegularEvents 其中普通事件数
	RegularEvents int64 `json:"regular_events"`
	// RetentionWindow 各优先级的保留时长（毫秒）
	RetentionWindow map[string]int64 `json:"retention_window"`
	// ProtocolVersion 协议版本标记
	ProtocolVersion int `json:"protocol_version"`
}

// PriorityMeta 优先级分类元数据（v2 加法字段）
type PriorityMeta struct {
	// ClassifiedAt 分类时间（Unix 毫秒）
	ClassifiedAt int64 `json:"classified_at"`
	// Reason 命中的分类规则说明
	Reason string `json:"reason"`
	// RetentionPolicy 适用的保留策略名称
	RetentionPolicy string `json:"retention_policy"`
}

// StreamEvent 推送给订阅者的事件
// 核心字段与 v1 相同；priority / priority_metadata / bucket 为 v2 加法字段
type StreamEvent struct {
	ID        int64           `json:"id"`
	Source    string          `json:"source"`
	SessionID string          `json:"session_id"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp int64           `json:"timestamp"`
	Priority  int             `json:"priority"`
	Meta      *PriorityMeta   `json:"priority_metadata,omitempty"`
	Bucket    string          `json:"bucket,omitempty"`
}

// Message 推送报文
// initial 消息携带 Events（时间升序快照）；event 消息携带单个 Event
type Message struct {
	Kind      MessageKind   `json:"kind"`
	SessionID string        `json:"session_id,omitempty"`
	Event     *StreamEvent  `json:"event,omitempty"`
	Events    []StreamEvent `json:"events,omitempty"`
	Info      *PriorityInfo `json:"priority_info,omitempty"`
}

// CreatedAt 事件创建时间
func (e *StreamEvent) CreatedAt() time.Time {
	return time.UnixMilli(e.Timestamp)
}

// IsPriority 是否为优先级事件
func (e *StreamEvent) IsPriority() bool {
	return e.Priority >= 1
}

// PrioritySupported 对端协议是否携带可信的优先级元数据
func (i *PriorityInfo) PrioritySupported() bool {
	return i != nil && i.ProtocolVersion >= 2
}

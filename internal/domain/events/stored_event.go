package events

import "time"

// StoredEvent 事件入库总线通知
// 每次成功持久化后由入库服务发布，广播器订阅后推送给 WebSocket 订阅者
type StoredEvent struct {
	// Event 已持久化的事件（含分配的 ID 和优先级注解）
	Event *Event
	// StoredAt 入库时间
	StoredAt time.Time
}

// Type 实现 BusEvent 接口
func (e *StoredEvent) Type() BusType {
	return TypeEventStored
}

// OccurredAt 实现 BusEvent 接口
func (e *StoredEvent) OccurredAt() time.Time {
	return e.StoredAt
}

// ExpiredEvent 保留窗口清理总线通知
type ExpiredEvent struct {
	// Removed 被删除的事件数量
	Removed int64
	// SweptAt 清理时间
	SweptAt time.Time
}

// Type 实现 BusEvent 接口
func (e *ExpiredEvent) Type() BusType {
	return TypeEventsExpired
}

// OccurredAt 实现 BusEvent 接口
func (e *ExpiredEvent) OccurredAt() time.Time {
	return e.SweptAt
}

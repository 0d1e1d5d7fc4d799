package events

import "time"

// BusType 内部总线事件类型标识
type BusType string

// 存储相关事件类型
const (
	// TypeEventStored 事件已持久化，需要推送给订阅者
	TypeEventStored BusType = "event.stored"
	// TypeEventsExpired 保留窗口清理删除了过期事件
	TypeEventsExpired BusType = "events.expired"
)

// 配置相关事件类型
const (
	// TypeRulesReloaded 分类规则文件已重新加载
	TypeRulesReloaded BusType = "config.rules.reloaded"
)

// BusEvent 内部总线事件接口
// 所有总线事件类型都必须实现此接口
type BusEvent interface {
	// Type 返回事件类型
	Type() BusType
	// OccurredAt 返回事件发生时间
	OccurredAt() time.Time
}

package events

// Handler 总线事件处理器接口
// 订阅者需要实现此接口来处理事件
type Handler interface {
	// HandleEvent 处理事件
	// 返回 error 表示处理失败（仅用于日志记录，不会重试）
	HandleEvent(event BusEvent) error
}

// HandlerFunc 函数类型的处理器适配器
// 方便使用匿名函数作为处理器
type HandlerFunc func(event BusEvent) error

// HandleEvent 实现 Handler 接口
func (f HandlerFunc) HandleEvent(event BusEvent) error {
	return f(event)
}

// Bus 内部事件总线接口
// 解耦事件入库和 WebSocket 推送：存储侧发布，广播侧订阅
type Bus interface {
	// Subscribe 订阅特定类型的事件
	// 返回取消订阅的函数
	Subscribe(busType BusType, handler Handler) (unsubscribe func())

	// SubscribeMultiple 订阅多个类型的事件
	// 返回取消所有订阅的函数
	SubscribeMultiple(busTypes []BusType, handler Handler) (unsubscribe func())

	// Publish 异步发布事件
	// 事件将被分发到所有匹配的订阅者
	Publish(event BusEvent)

	// Close 关闭事件总线
	// 停止接收新事件，等待已发布事件处理完成
	Close()
}

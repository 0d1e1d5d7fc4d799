// Package watcher 提供内部事件总线和配置文件监听
package watcher

import (
	"log/slog"
	"sync"

	"github.com/pulseboard/backend/internal/domain/events"
	"github.com/pulseboard/backend/internal/infrastructure/log"
)

// handlerQueueSize 每个处理器的待处理事件队列容量
const handlerQueueSize = 1024

// busImpl events.Bus 的实现
// 每个处理器持有自己的有界队列，由独立的工作协程顺序消费：
// 事件按发布顺序送达处理器，慢处理器不会阻塞发布方
type busImpl struct {
	// handlers 按事件类型存储的处理器列表
	handlers map[events.BusType][]*handlerEntry
	// mu 保护 handlers 的互斥锁
	mu sync.RWMutex
	// logger 日志记录器
	logger *slog.Logger
	// closed 是否已关闭
	closed bool
	// wg 等待所有工作协程退出
	wg sync.WaitGroup
	// nextID 处理器注册序号
	nextID int
}

// handlerEntry 带注册序号的处理器
// 序号用于精确取消订阅；queue 由单个工作协程消费，保持事件顺序
type handlerEntry struct {
	id      int
	handler events.Handler
	queue   chan events.BusEvent
	stop    chan struct{}
	once    sync.Once
}

// close 通知工作协程退出（幂等）
func (e *handlerEntry) close() {
	e.once.Do(func() {
		close(e.stop)
	})
}

// NewBus 创建新的事件总线实例
func NewBus() events.Bus {
	return &busImpl{
		handlers: make(map[events.BusType][]*handlerEntry),
		logger:   log.NewModuleLogger("watcher", "event_bus"),
	}
}

// Subscribe 订阅特定类型的事件
func (b *busImpl) Subscribe(busType events.BusType, handler events.Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return func() {}
	}

	b.nextID++
	entry := &handlerEntry{
		id:      b.nextID,
		handler: handler,
		queue:   make(chan events.BusEvent, handlerQueueSize),
		stop:    make(chan struct{}),
	}
	b.handlers[busType] = append(b.handlers[busType], entry)

	b.wg.Add(1)
	go b.runHandler(entry)

	id := entry.id
	// 返回取消订阅函数
	return func() {
		b.unsubscribe(busType, id)
	}
}

// SubscribeMultiple 订阅多个类型的事件
func (b *busImpl) SubscribeMultiple(busTypes []events.BusType, handler events.Handler) func() {
	unsubscribers := make([]func(), 0, len(busTypes))

	for _, busType := range busTypes {
		unsub := b.Subscribe(busType, handler)
		unsubscribers = append(unsubscribers, unsub)
	}

	// 返回取消所有订阅的函数
	return func() {
		for _, unsub := range unsubscribers {
			unsub()
		}
	}
}

// unsubscribe 取消订阅并停止对应的工作协程
func (b *busImpl) unsubscribe(busType events.BusType, id int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	entries := b.handlers[busType]
	for i, entry := range entries {
		if entry.id == id {
			b.handlers[busType] = append(entries[:i], entries[i+1:]...)
			entry.close()
			break
		}
	}
}

// Publish 发布事件
// 对发布方非阻塞：事件进入各处理器的有界队列，队列满时丢弃最旧的一条
func (b *busImpl) Publish(event events.BusEvent) {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return
	}

	// 复制处理器列表，避免长时间持有锁
	entries := make([]*handlerEntry, len(b.handlers[event.Type()]))
	copy(entries, b.handlers[event.Type()])
	b.mu.RUnlock()

	for _, entry := range entries {
		b.enqueue(entry, event)
	}
}

// enqueue 非阻塞入队，队列满时丢弃最旧的一条腾出位置
func (b *busImpl) enqueue(entry *handlerEntry, event events.BusEvent) {
	select {
	case entry.queue <- event:
		return
	default:
	}

	select {
	case <-entry.queue:
		b.logger.Warn("Handler queue full, oldest event dropped",
			"type", event.Type(),
		)
	default:
	}

	select {
	case entry.queue <- event:
	default:
	}
}

// runHandler 工作协程：顺序消费队列，保持事件的发布顺序
func (b *busImpl) runHandler(entry *handlerEntry) {
	defer b.wg.Done()

	for {
		select {
		case event := <-entry.queue:
			b.dispatch(entry.handler, event)
		case <-entry.stop:
			// 退出前清空队列，已发布的事件不丢失
			for {
				select {
				case event := <-entry.queue:
					b.dispatch(entry.handler, event)
				default:
					return
				}
			}
		}
	}
}

// dispatch 处理单个事件
func (b *busImpl) dispatch(handler events.Handler, event events.BusEvent) {
	// 捕获 panic，单个事件的崩溃不终止工作协程
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("Handler panicked",
				"type", event.Type(),
				"panic", r,
			)
		}
	}()

	if err := handler.HandleEvent(event); err != nil {
		b.logger.Error("Handler returned error",
			"type", event.Type(),
			"error", err,
		)
	}
}

// Close 关闭事件总线
func (b *busImpl) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	for _, entries := range b.handlers {
		for _, entry := range entries {
			entry.close()
		}
	}
	b.handlers = make(map[events.BusType][]*handlerEntry)
	b.mu.Unlock()

	// 等待所有工作协程退出
	b.wg.Wait()

	b.logger.Info("Event bus closed")
}

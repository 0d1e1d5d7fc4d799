// Package websocket 提供事件广播中心
package websocket

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/pulseboard/backend/internal/infrastructure/log"
	"github.com/pulseboard/backend/pkg/protocol"
)

// Hub 订阅者连接管理中心
// 每次事件入库后把事件推送给所有会话过滤匹配的订阅者
// 推送对生产者非阻塞：订阅者各自持有有界队列，慢消费者不会拖住其他订阅者
type Hub struct {
	// subscribers 当前活跃的订阅者
	subscribers map[*Subscriber]bool
	// register 注册连接
	register chan *Subscriber
	// unregister 注销连接
	unregister chan *Subscriber
	// broadcast 广播消息
	broadcast chan *outbound
	// stop 停止信号
	stop   chan struct{}
	once   sync.Once
	mu     sync.RWMutex
	logger *slog.Logger
}

// outbound 待广播的消息
type outbound struct {
	sessionID string
	data      []byte
}

// NewHub 创建 Hub
func NewHub() *Hub {
	return &Hub{
		subscribers: make(map[*Subscriber]bool),
		register:    make(chan *Subscriber),
		unregister:  make(chan *Subscriber),
		broadcast:   make(chan *outbound, 1024),
		stop:        make(chan struct{}),
		logger:      log.NewModuleLogger("websocket", "hub"),
	}
}

// Run 运行 Hub（需要在 goroutine 中运行）
func (h *Hub) Run() {
	for {
		select {
		case sub := <-h.register:
			h.mu.Lock()
			h.subscribers[sub] = true
			h.mu.Unlock()
			h.logger.Info("subscriber registered",
				"subscriber_id", sub.ID,
				"session_filter_size", len(sub.sessions),
			)

		case sub := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.subscribers[sub]; ok {
				delete(h.subscribers, sub)
				sub.Close()
			}
			h.mu.Unlock()
			h.logger.Info("subscriber unregistered",
				"subscriber_id", sub.ID,
				"dropped", sub.Dropped(),
			)

		case msg := <-h.broadcast:
			h.mu.RLock()
			for sub := range h.subscribers {
				if sub.Matches(msg.sessionID) {
					sub.Enqueue(msg.data)
				}
			}
			h.mu.RUnlock()

		case <-h.stop:
			h.mu.Lock()
			for sub := range h.subscribers {
				sub.Close()
				delete(h.subscribers, sub)
			}
			h.mu.Unlock()
			return
		}
	}
}

// Start 启动 Hub（启动后台 goroutine）
func (h *Hub) Start() {
	go h.Run()
}

// Stop 停止 Hub 并关闭所有连接
func (h *Hub) Stop() {
	h.once.Do(func() {
		close(h.stop)
	})
}

// Register 注册订阅者并启动其读写协程
// Hub 已停止时直接关闭连接，不会阻塞
func (h *Hub) Register(sub *Subscriber) {
	select {
	case h.register <- sub:
	case <-h.stop:
		sub.Close()
		return
	}
	go sub.writePump()
	go sub.readPump(h.Unregister)
}

// Unregister 注销订阅者
func (h *Hub) Unregister(sub *Subscriber) {
	select {
	case h.unregister <- sub:
	case <-h.stop:
	}
}

// Broadcast 向会话匹配的订阅者广播消息
// 生产者视角非阻塞：Hub 入口队列满时丢弃本次广播并记录日志，
// 订阅者靠重连后的 initial 快照补齐
func (h *Hub) Broadcast(sessionID string, msg *protocol.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	select {
	case h.broadcast <- &outbound{sessionID: sessionID, data: data}:
	default:
		h.logger.Warn("broadcast queue full, message dropped",
			"session_id", sessionID,
		)
	}
	return nil
}

// SubscriberCount 当前订阅者数量
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}

package events

import (
	"log/slog"

	domainEvents "github.com/pulseboard/backend/internal/domain/events"
	applog "github.com/pulseboard/backend/internal/infrastructure/log"
	"github.com/pulseboard/backend/internal/infrastructure/storage"
	"github.com/pulseboard/backend/pkg/protocol"
)

// Pusher 推送接口（由 WebSocket Hub 实现）
type Pusher interface {
	// Broadcast 向会话匹配的订阅者广播消息
	Broadcast(sessionID string, msg *protocol.Message) error
}

// Broadcaster 入库事件广播器
// 订阅总线的 event.stored 通知，把事件包装成协议消息推给 Hub；
// 推送失败只记录日志，不向采集方传播
type Broadcaster struct {
	pusher      Pusher
	unsubscribe func()
	logger      *slog.Logger
}

// NewBroadcaster 创建广播器
func NewBroadcaster(pusher Pusher) *Broadcaster {
	return &Broadcaster{
		pusher: pusher,
		logger: applog.NewModuleLogger("events", "broadcaster"),
	}
}

// Start 订阅总线
func (b *Broadcaster) Start(bus domainEvents.Bus) {
	b.unsubscribe = bus.Subscribe(
		domainEvents.TypeEventStored,
		domainEvents.HandlerFunc(b.handleStored),
	)
}

// Stop 取消订阅
func (b *Broadcaster) Stop() {
	if b.unsubscribe != nil {
		b.unsubscribe()
	}
}

// handleStored 处理入库通知
func (b *Broadcaster) handleStored(busEvent domainEvents.BusEvent) error {
	stored, ok := busEvent.(*domainEvents.StoredEvent)
	if !ok || stored.Event == nil {
		return nil
	}

	event := stored.Event
	bucket := storage.BucketRegular
	if event.IsPriority() {
		bucket = storage.BucketPriority
	}

	streamEvent := toStreamEvent(event, bucket)
	msg := &protocol.Message{
		Kind:      protocol.KindEvent,
		SessionID: event.SessionID,
		Event:     &streamEvent,
	}

	if err := b.pusher.Broadcast(event.SessionID, msg); err != nil {
		b.logger.Error("Failed to broadcast event",
			"event_id", event.ID,
			"session_id", event.SessionID,
			"error", err,
		)
	}
	return nil
}

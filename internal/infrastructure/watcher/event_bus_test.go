package watcher

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pulseboard/backend/internal/domain/events"
)

func TestBus_SubscribeAndPublish(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	var received atomic.Int64
	var wg sync.WaitGroup
	wg.Add(1)

	bus.Subscribe(events.TypeEventStored, events.HandlerFunc(func(e events.BusEvent) error {
		defer wg.Done()
		received.Add(1)
		assert.Equal(t, events.TypeEventStored, e.Type())
		return nil
	}))

	bus.Publish(&events.StoredEvent{
		Event:    &events.Event{ID: 1, SessionID: "s1"},
		StoredAt: time.Now(),
	})

	wg.Wait()
	assert.Equal(t, int64(1), received.Load())
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := NewBus()

	var received atomic.Int64
	unsub := bus.Subscribe(events.TypeEventStored, events.HandlerFunc(func(e events.BusEvent) error {
		received.Add(1)
		return nil
	}))

	unsub()

	bus.Publish(&events.StoredEvent{Event: &events.Event{ID: 1}, StoredAt: time.Now()})
	bus.Close() // 等待分发完成

	assert.Zero(t, received.Load(), "取消订阅后不应再收到事件")
}

func TestBus_PanicInHandlerDoesNotAffectOthers(t *testing.T) {
	bus := NewBus()

	bus.Subscribe(events.TypeEventStored, events.HandlerFunc(func(e events.BusEvent) error {
		panic("handler exploded")
	}))

	var received atomic.Int64
	bus.Subscribe(events.TypeEventStored, events.HandlerFunc(func(e events.BusEvent) error {
		received.Add(1)
		return nil
	}))

	require.NotPanics(t, func() {
		bus.Publish(&events.StoredEvent{Event: &events.Event{ID: 1}, StoredAt: time.Now()})
		bus.Close()
	})

	assert.Equal(t, int64(1), received.Load())
}

func TestBus_DeliversEventsInPublishOrder(t *testing.T) {
	bus := NewBus()

	const total = 1000
	got := make([]int64, 0, total)
	var mu sync.Mutex

	bus.Subscribe(events.TypeEventStored, events.HandlerFunc(func(e events.BusEvent) error {
		stored := e.(*events.StoredEvent)
		mu.Lock()
		got = append(got, stored.Event.ID)
		mu.Unlock()
		return nil
	}))

	for i := 1; i <= total; i++ {
		bus.Publish(&events.StoredEvent{
			Event:    &events.Event{ID: int64(i), SessionID: "s1", Timestamp: int64(i)},
			StoredAt: time.Now(),
		})
	}
	bus.Close()

	require.Len(t, got, total)
	for i, id := range got {
		require.Equal(t, int64(i+1), id, "事件必须按发布顺序送达")
	}
}

func TestBus_SlowHandlerDoesNotReorder(t *testing.T) {
	bus := NewBus()

	const total = 200
	got := make([]int64, 0, total)
	var mu sync.Mutex

	bus.Subscribe(events.TypeEventStored, events.HandlerFunc(func(e events.BusEvent) error {
		time.Sleep(50 * time.Microsecond)
		stored := e.(*events.StoredEvent)
		mu.Lock()
		got = append(got, stored.Event.ID)
		mu.Unlock()
		return nil
	}))

	for i := 1; i <= total; i++ {
		bus.Publish(&events.StoredEvent{
			Event:    &events.Event{ID: int64(i), SessionID: "s1", Timestamp: int64(i)},
			StoredAt: time.Now(),
		})
	}
	bus.Close()

	require.Len(t, got, total)
	for i, id := range got {
		require.Equal(t, int64(i+1), id)
	}
}

func TestBus_PublishAfterCloseIsNoop(t *testing.T) {
	bus := NewBus()

	var received atomic.Int64
	bus.Subscribe(events.TypeEventStored, events.HandlerFunc(func(e events.BusEvent) error {
		received.Add(1)
		return nil
	}))

	bus.Close()
	bus.Publish(&events.StoredEvent{Event: &events.Event{ID: 1}, StoredAt: time.Now()})

	assert.Zero(t, received.Load())
}

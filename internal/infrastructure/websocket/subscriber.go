package websocket

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// 写超时和心跳参数
const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// Subscriber 单个订阅者连接
// 拥有独立的有界出站队列，由自己的写协程消费；
// 生产者写入不等待，队列满时丢弃最旧消息而不是反压或断开连接
type Subscriber struct {
	// ID 连接标识
	ID string

	conn *websocket.Conn
	// sessions 会话过滤集合，空表示订阅全部会话
	sessions map[string]struct{}
	// send 有界出站队列
	send chan []byte
	// dropped 因队列溢出丢弃的消息数（仅用于观测）
	dropped atomic.Int64

	closeOnce sync.Once
	done      chan struct{}
}

// NewSubscriber 创建订阅者
func NewSubscriber(conn *websocket.Conn, sessionIDs []string, queueSize int) *Subscriber {
	sessions := make(map[string]struct{}, len(sessionIDs))
	for _, id := range sessionIDs {
		if id != "" {
			sessions[id] = struct{}{}
		}
	}

	if queueSize <= 0 {
		queueSize = 256
	}

	return &Subscriber{
		ID:       uuid.New().String(),
		conn:     conn,
		sessions: sessions,
		send:     make(chan []byte, queueSize),
		done:     make(chan struct{}),
	}
}

// Matches 会话过滤判定
func (s *Subscriber) Matches(sessionID string) bool {
	if len(s.sessions) == 0 {
		return true
	}
	_, ok := s.sessions[sessionID]
	return ok
}

// Dropped 队列溢出丢弃的消息数
func (s *Subscriber) Dropped() int64 {
	return s.dropped.Load()
}

// Enqueue 非阻塞入队
// 队列满时丢弃最旧的一条再重试，依靠断线重连后的 initial 快照恢复一致性
func (s *Subscriber) Enqueue(data []byte) {
	select {
	case <-s.done:
		return
	default:
	}

	select {
	case s.send <- data:
		return
	default:
	}

	// 丢弃最旧的一条腾出位置
	select {
	case <-s.send:
		s.dropped.Add(1)
	default:
	}

	select {
	case s.send <- data:
	default:
		s.dropped.Add(1)
	}
}

// Close 关闭订阅者连接
func (s *Subscriber) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
		if s.conn != nil {
			_ = s.conn.Close()
		}
	})
}

// writePump 写协程：消费出站队列并维持心跳
// 每个订阅者独立运行，慢消费者只影响自己
func (s *Subscriber) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.Close()
	}()

	for {
		select {
		case data, ok := <-s.send:
			if !ok {
				return
			}
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-s.done:
			return
		}
	}
}

// readPump 读协程：只用于探测对端关闭和响应 pong
func (s *Subscriber) readPump(unregister func(*Subscriber)) {
	defer func() {
		unregister(s)
		s.Close()
	}()

	s.conn.SetReadLimit(1024)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			return
		}
	}
}

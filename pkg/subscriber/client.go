// Package subscriber 提供事件流的消费者客户端
//
// 客户端维护到服务端 /api/v1/stream 的 WebSocket 连接，把收到的报文
// 写入本地双桶缓存。断线后按指数退避自动重连，重连成功后依赖服务端的
// initial 快照整体替换缓存内容，不尝试做增量补偿
package subscriber

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/pulseboard/backend/pkg/bucket"
	"github.com/pulseboard/backend/pkg/protocol"
)

const (
	defaultHandshakeTimeout = 10 * time.Second
	defaultReconnectMin     = time.Second
	defaultReconnectMax     = 30 * time.Second
	readLimit               = 512 * 1024
	pongWait                = 60 * time.Second
)

// Options 客户端配置
type Options struct {
	// URL 服务端流地址，例如 ws://127.0.0.1:19970/api/v1/stream
	URL string
	// Sessions 订阅的会话列表，为空表示订阅全部会话
	Sessions []string
	// Bucket 本地缓存配置
	Bucket bucket.Config
	// Logger 日志记录器，为空时使用 slog 默认记录器
	Logger *slog.Logger
	// HandshakeTimeout 握手超时，零值使用默认
	HandshakeTimeout time.Duration
	// ReconnectMin 重连退避起始间隔，零值使用默认
	ReconnectMin time.Duration
	// ReconnectMax 重连退避上限，零值使用默认
	ReconnectMax time.Duration
}

// Client 事件流消费者
type Client struct {
	opts  Options
	cache *bucket.Cache

	mu        sync.RWMutex
	conn      *websocket.Conn
	connected bool
	retries   int

	startOnce sync.Once
	closeOnce sync.Once
	done      chan struct{}
	wg        sync.WaitGroup

	logger *slog.Logger
}

// NewClient 创建客户端
func NewClient(opts Options) (*Client, error) {
	if opts.URL == "" {
		return nil, fmt.Errorf("subscriber: empty stream url")
	}
	if opts.HandshakeTimeout <= 0 {
		opts.HandshakeTimeout = defaultHandshakeTimeout
	}
	if opts.ReconnectMin <= 0 {
		opts.ReconnectMin = defaultReconnectMin
	}
	if opts.ReconnectMax <= 0 {
		opts.ReconnectMax = defaultReconnectMax
	}

	cache, err := bucket.NewCache(opts.Bucket)
	if err != nil {
		return nil, fmt.Errorf("subscriber: invalid bucket config: %w", err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "subscriber")

	return &Client{
		opts:   opts,
		cache:  cache,
		done:   make(chan struct{}),
		logger: logger,
	}, nil
}

// Cache 本地事件缓存
func (c *Client) Cache() *bucket.Cache {
	return c.cache
}

// IsConnected 当前是否在线
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// Start 启动连接维护循环
// 循环在后台协程中运行，直到 Close 或 ctx 取消
func (c *Client) Start(ctx context.Context) {
	c.startOnce.Do(func() {
		c.wg.Add(1)
		go c.run(ctx)
	})
}

// Close 关闭客户端并等待后台协程退出
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
	})

	c.mu.Lock()
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.mu.Unlock()

	c.wg.Wait()
	c.cache.Close()
	return nil
}

// run 连接维护循环：连接、消费、断线退避重连
func (c *Client) run(ctx context.Context) {
	defer c.wg.Done()

	for {
		select {
		case <-c.done:
			return
		case <-ctx.Done():
			return
		default:
		}

		if err := c.connect(ctx); err != nil {
			c.logger.Warn("connect failed",
				"url", c.opts.URL,
				"error", err,
			)
			if !c.backoff(ctx) {
				return
			}
			continue
		}

		// readLoop 返回即视为连接失效
		c.readLoop()
		c.markDisconnected()

		select {
		case <-c.done:
			return
		case <-ctx.Done():
			return
		default:
		}
		if !c.backoff(ctx) {
			return
		}
	}
}

// connect 建立连接
func (c *Client) connect(ctx context.Context) error {
	streamURL, err := c.buildURL()
	if err != nil {
		return err
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: c.opts.HandshakeTimeout,
	}
	conn, resp, err := dialer.DialContext(ctx, streamURL, nil)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("dial failed with status %d: %w", resp.StatusCode, err)
		}
		return fmt.Errorf("dial failed: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.retries = 0
	c.mu.Unlock()

	c.logger.Info("connected",
		"url", c.opts.URL,
		"sessions", c.opts.Sessions,
	)
	return nil
}

// buildURL 拼接订阅地址
func (c *Client) buildURL() (string, error) {
	u, err := url.Parse(c.opts.URL)
	if err != nil {
		return "", fmt.Errorf("invalid stream url: %w", err)
	}
	if len(c.opts.Sessions) > 0 {
		q := u.Query()
		q.Set("session_id", strings.Join(c.opts.Sessions, ","))
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

// readLoop 读取并分发报文，连接出错时返回
func (c *Client) readLoop() {
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()
	if conn == nil {
		return
	}

	conn.SetReadLimit(readLimit)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPingHandler(func(appData string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(5*time.Second))
	})

	for {
		select {
		case <-c.done:
			return
		default:
		}

		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn("read error",
					"error", err,
				)
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(pongWait))

		var msg protocol.Message
		if err := json.Unmarshal(data, &msg); err != nil {
			c.logger.Warn("failed to parse message",
				"error", err,
			)
			continue
		}
		c.handleMessage(&msg)
	}
}

// handleMessage 分发单条报文
// 未知的消息类型直接忽略，保持对更新协议版本的前向兼容
func (c *Client) handleMessage(msg *protocol.Message) {
	switch msg.Kind {
	case protocol.KindInitial:
		c.cache.ApplyInfo(msg.Info)
		c.cache.ReplaceAll(msg.Events)
		c.logger.Info("snapshot applied",
			"events", len(msg.Events),
		)
	case protocol.KindEvent:
		if msg.Event == nil {
			return
		}
		c.cache.Insert(*msg.Event)
	}
}

// markDisconnected 标记连接失效并释放连接
func (c *Client) markDisconnected() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	if c.connected {
		c.connected = false
		c.logger.Info("disconnected",
			"url", c.opts.URL,
		)
	}
}

// backoff 指数退避等待，返回 false 表示客户端已关闭
func (c *Client) backoff(ctx context.Context) bool {
	c.mu.Lock()
	c.retries++
	retries := c.retries
	c.mu.Unlock()

	wait := c.opts.ReconnectMin << (retries - 1)
	if wait > c.opts.ReconnectMax || wait <= 0 {
		wait = c.opts.ReconnectMax
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case <-timer.C:
		return true
	case <-c.done:
		return false
	case <-ctx.Done():
		return false
	}
}

package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	appEvents "github.com/pulseboard/backend/internal/application/events"
	"github.com/pulseboard/backend/internal/infrastructure/config"
	applog "github.com/pulseboard/backend/internal/infrastructure/log"
	ws "github.com/pulseboard/backend/internal/infrastructure/websocket"
)

// StreamHandler 实时订阅处理器
type StreamHandler struct {
	hub       *ws.Hub
	query     *appEvents.QueryService
	upgrader  websocket.Upgrader
	queueSize int
	logger    *slog.Logger
}

// NewStreamHandler 创建实时订阅处理器
func NewStreamHandler(hub *ws.Hub, query *appEvents.QueryService, cfg *config.Config) *StreamHandler {
	return &StreamHandler{
		hub:       hub,
		query:     query,
		queueSize: cfg.WebSocket.SubscriberQueueSize,
		logger:    applog.NewModuleLogger("http", "stream"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  cfg.WebSocket.ReadBufferSize,
			WriteBufferSize: cfg.WebSocket.WriteBufferSize,
			CheckOrigin: func(r *http.Request) bool {
				return true // 本机服务，允许所有来源
			},
		},
	}
}

// Subscribe 建立 WebSocket 订阅
// 握手顺序：升级连接 → 入队 initial 快照 → 注册到 Hub
// 先入队快照保证订阅者收到的第一条消息是当前完整状态
func (h *StreamHandler) Subscribe(c *gin.Context) {
	sessionIDs := parseSessionFilter(c.Query("session_id"))

	// 快照失败时无法保证订阅起点一致，拒绝连接
	snapshot, err := h.query.InitialSnapshot(sessionIDs)
	if err != nil {
		h.logger.Error("Failed to build initial snapshot", "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade connection", "error", err)
		return
	}

	sub := ws.NewSubscriber(conn, sessionIDs, h.queueSize)

	data, err := json.Marshal(snapshot)
	if err != nil {
		h.logger.Error("Failed to marshal initial snapshot", "error", err)
		_ = conn.Close()
		return
	}
	sub.Enqueue(data)

	h.hub.Register(sub)

	h.logger.Info("Subscriber connected",
		"subscriber_id", sub.ID,
		"sessions", sessionIDs,
		"snapshot_events", len(snapshot.Events),
	)
}

// parseSessionFilter 解析逗号分隔的会话过滤参数
func parseSessionFilter(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	sessions := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			sessions = append(sessions, trimmed)
		}
	}
	return sessions
}

// Package http 提供 HTTP 接口层
package http

import (
	"context"
	"net/http"
	"time"

	"log/slog"

	"github.com/gin-gonic/gin"

	"github.com/pulseboard/backend/internal/infrastructure/config"
	"github.com/pulseboard/backend/internal/infrastructure/log"
	"github.com/pulseboard/backend/internal/interfaces/http/handler"
)

// HTTPServer HTTP 服务器
type HTTPServer struct {
	router   *gin.Engine
	httpPort string
	server   *http.Server
	logger   *slog.Logger
}

// NewServer 创建 HTTP 服务器
func NewServer(
	eventHandler *handler.EventHandler,
	streamHandler *handler.StreamHandler,
	serverCfg *config.ServerConfig,
) *HTTPServer {
	router := gin.Default()

	logger := log.NewModuleLogger("http", "server")

	// 注册路由
	api := router.Group("/api/v1")
	{
		// 事件采集与查询
		api.POST("/events", eventHandler.Ingest)
		api.GET("/events", eventHandler.Query)
		api.GET("/events/stats", eventHandler.Stats)

		// 实时订阅
		api.GET("/stream", streamHandler.Subscribe)
	}

	// 健康检查
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	return &HTTPServer{
		router:   router,
		httpPort: serverCfg.HTTPPort,
		logger:   logger,
	}
}

// Start 启动 HTTP 服务器（阻塞）
func (s *HTTPServer) Start() error {
	s.server = &http.Server{
		Addr:    s.httpPort,
		Handler: s.router,
	}

	s.logger.Info("HTTP server starting", "port", s.httpPort)

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Stop 优雅关闭 HTTP 服务器
func (s *HTTPServer) Stop() error {
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s.logger.Info("HTTP server stopping")
	return s.server.Shutdown(ctx)
}

// Router 返回路由引擎（仅用于测试）
func (s *HTTPServer) Router() *gin.Engine {
	return s.router
}

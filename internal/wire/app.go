package wire

import (
	"database/sql"

	"log/slog"

	appEvents "github.com/pulseboard/backend/internal/application/events"
	"github.com/pulseboard/backend/internal/domain/events"
	"github.com/pulseboard/backend/internal/domain/priority"
	"github.com/pulseboard/backend/internal/domain/retention"
	"github.com/pulseboard/backend/internal/infrastructure/config"
	applog "github.com/pulseboard/backend/internal/infrastructure/log"
	"github.com/pulseboard/backend/internal/infrastructure/watcher"
	"github.com/pulseboard/backend/internal/infrastructure/websocket"
	"github.com/pulseboard/backend/internal/interfaces"
)

// App 应用主结构，组合所有服务
type App struct {
	HTTPServer  *interfaces.HTTPServer
	wsHub       *websocket.Hub
	broadcaster *appEvents.Broadcaster
	sweeper     *appEvents.Sweeper
	bus         events.Bus
	db          *sql.DB
	logger      *slog.Logger

	// 规则文件热加载（未配置规则文件时为 nil）
	rulesWatcher *watcher.RulesWatcher
}

// NewApp 创建应用实例
func NewApp(
	httpServer *interfaces.HTTPServer,
	wsHub *websocket.Hub,
	broadcaster *appEvents.Broadcaster,
	sweeper *appEvents.Sweeper,
	bus events.Bus,
	classifier *priority.Classifier,
	engine *retention.Engine,
	cfg *config.Config,
	db *sql.DB,
) *App {
	logger := applog.NewModuleLogger("app", "main")

	rulesWatcher, err := watcher.NewRulesWatcher(cfg.Rules.FilePath, classifier, engine, bus)
	if err != nil {
		logger.Error("Failed to create rules watcher", "error", err)
	}

	return &App{
		HTTPServer:   httpServer,
		wsHub:        wsHub,
		broadcaster:  broadcaster,
		sweeper:      sweeper,
		bus:          bus,
		db:           db,
		logger:       logger,
		rulesWatcher: rulesWatcher,
	}
}

// Start 启动所有服务
func (a *App) Start() error {
	a.logger.Info("Starting PulseBoard backend application")

	// 启动 WebSocket Hub 并接入广播器
	a.wsHub.Start()
	a.broadcaster.Start(a.bus)

	// 启动保留窗口清理器
	a.sweeper.Start()

	// 启动规则文件监听（如果已配置）
	if a.rulesWatcher != nil {
		if err := a.rulesWatcher.Start(); err != nil {
			a.logger.Error("Failed to start rules watcher",
				"error", err,
			)
		}
	}

	// 启动 HTTP 服务器（goroutine）
	go func() {
		if err := a.HTTPServer.Start(); err != nil {
			a.logger.Error("Failed to start HTTP server",
				"error", err,
			)
		}
	}()

	a.logger.Info("PulseBoard backend application started successfully")
	return nil
}

// Stop 停止所有服务
func (a *App) Stop() error {
	a.logger.Info("Stopping PulseBoard backend application")

	// 先停外部入口，再停内部管线
	if err := a.HTTPServer.Stop(); err != nil {
		a.logger.Error("Failed to stop HTTP server",
			"error", err,
		)
	}

	if a.rulesWatcher != nil {
		a.rulesWatcher.Stop()
	}

	a.sweeper.Stop()
	a.broadcaster.Stop()
	a.wsHub.Stop()

	if a.bus != nil {
		a.bus.Close()
		a.logger.Info("Event bus closed")
	}

	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Error("Failed to close database connection",
				"error", err,
			)
			return err
		}
	}

	a.logger.Info("PulseBoard backend application stopped successfully")
	return nil
}

//go:build wireinject
// +build wireinject

package wire

import (
	"github.com/google/wire"

	"github.com/pulseboard/backend/internal/application"
	appEvents "github.com/pulseboard/backend/internal/application/events"
	"github.com/pulseboard/backend/internal/infrastructure"
	"github.com/pulseboard/backend/internal/infrastructure/websocket"
	"github.com/pulseboard/backend/internal/interfaces"
)

// InitializeAll 初始化所有服务
func InitializeAll() (*App, error) {
	wire.Build(
		// 按层组合 ProviderSet
		infrastructure.ProviderSet, // 基础设施层
		application.ProviderSet,    // 应用层
		interfaces.ProviderSet,     // 接口层
		// 接口绑定：application.Pusher -> websocket.Hub
		wire.Bind(
			new(appEvents.Pusher),
			new(*websocket.Hub),
		),
		NewApp, // 组合所有服务的应用结构
	)
	return nil, nil
}

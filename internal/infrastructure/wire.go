package infrastructure

import (
	"github.com/google/wire"

	"github.com/pulseboard/backend/internal/infrastructure/config"
	"github.com/pulseboard/backend/internal/infrastructure/storage"
	"github.com/pulseboard/backend/internal/infrastructure/watcher"
	"github.com/pulseboard/backend/internal/infrastructure/websocket"
)

// ProviderSet Infrastructure 层总 ProviderSet
var ProviderSet = wire.NewSet(
	config.ProviderSet,
	storage.ProviderSet,
	websocket.ProviderSet,
	watcher.ProviderSet,
)

package application

import (
	"github.com/google/wire"

	"github.com/pulseboard/backend/internal/application/events"
)

// ProviderSet Application 层总 ProviderSet
var ProviderSet = wire.NewSet(
	events.ProviderSet,
)

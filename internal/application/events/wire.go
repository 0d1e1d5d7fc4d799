package events

import "github.com/google/wire"

// ProviderSet 事件管线应用层 ProviderSet
var ProviderSet = wire.NewSet(
	NewIngestService,
	NewQueryService,
	NewBroadcaster,
	NewSweeper,
	// 注意：Pusher 接口绑定在顶层 wire.go 中处理
)

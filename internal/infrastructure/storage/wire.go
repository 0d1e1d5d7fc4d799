package storage

import "github.com/google/wire"

// ProviderSet Storage 基础设施层 ProviderSet
var ProviderSet = wire.NewSet(
	ProvideDB,          // 提供数据库连接
	NewEventRepository, // 事件仓储
)

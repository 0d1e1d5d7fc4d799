package config

import (
	"github.com/google/wire"

	"github.com/pulseboard/backend/internal/domain/priority"
	"github.com/pulseboard/backend/internal/domain/retention"
	"github.com/pulseboard/backend/internal/infrastructure/log"
)

// ProviderSet 配置 ProviderSet
var ProviderSet = wire.NewSet(
	NewConfig,
	NewDatabaseConfig,
	NewServerConfig,
	ProvideRetentionEngine,
	ProvideClassifier,
)

// ProvideRetentionEngine 根据配置构建保留策略引擎
func ProvideRetentionEngine(cfg *Config) (*retention.Engine, error) {
	policy, err := cfg.RetentionPolicy()
	if err != nil {
		return nil, err
	}
	return retention.NewEngine(policy), nil
}

// ProvideClassifier 根据配置构建分类器
// 规则文件缺失或非法时回退到内置默认规则，启动不因此失败
func ProvideClassifier(cfg *Config) *priority.Classifier {
	if cfg.Rules.FilePath == "" {
		return priority.NewClassifier(nil)
	}

	rules, err := priority.LoadRuleSet(cfg.Rules.FilePath)
	if err != nil {
		logger := log.NewModuleLogger("config", "classifier")
		logger.Warn("Failed to load rules file, using defaults",
			"path", cfg.Rules.FilePath,
			"error", err,
		)
		return priority.NewClassifier(nil)
	}
	return priority.NewClassifier(rules)
}

// Package config 提供应用配置（环境变量覆盖 + 默认值）
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/pulseboard/backend/internal/domain/retention"
	"github.com/pulseboard/backend/pkg/bucket"
)

// 环境变量名
const (
	EnvHTTPPort               = "PULSE_HTTP_PORT"
	EnvDBPath                 = "PULSE_DB_PATH"
	EnvPriorityRetentionHours = "PULSE_PRIORITY_RETENTION_HOURS"
	EnvRegularRetentionHours  = "PULSE_REGULAR_RETENTION_HOURS"
	EnvPriorityCap            = "PULSE_PRIORITY_CAP"
	EnvRegularCap             = "PULSE_REGULAR_CAP"
	EnvTotalCap               = "PULSE_TOTAL_CAP"
	EnvOverflowStrategy       = "PULSE_OVERFLOW_STRATEGY"
	EnvSubscriberQueue        = "PULSE_SUBSCRIBER_QUEUE"
	EnvSweepIntervalMinutes   = "PULSE_SWEEP_INTERVAL_MINUTES"
	EnvRulesFile              = "PULSE_RULES_FILE"
)

// Config 应用配置
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Retention RetentionConfig
	Query     QueryConfig
	WebSocket WebSocketConfig
	Rules     RulesConfig
}

// ServerConfig 服务器配置
type ServerConfig struct {
	// HTTPPort 固定端口，同时用于单例锁
	HTTPPort string
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	// Path 数据库文件路径，留空表示使用数据目录下的默认位置
	Path string
}

// RetentionConfig 保留窗口配置
type RetentionConfig struct {
	// PriorityWindow 优先级事件保留时长
	PriorityWindow time.Duration
	// RegularWindow 普通事件保留时长
	RegularWindow time.Duration
	// SweepInterval 服务端过期清理间隔
	SweepInterval time.Duration
}

// QueryConfig 混合查询默认上限
type QueryConfig struct {
	PriorityCap int
	RegularCap  int
	TotalCap    int
	// Strategy 默认溢出策略（下发给未指定策略的消费者）
	Strategy bucket.OverflowStrategy
}

// WebSocketConfig WebSocket 配置
type WebSocketConfig struct {
	ReadBufferSize  int
	WriteBufferSize int
	// SubscriberQueueSize 每个订阅者的出站队列容量，超限后丢弃最旧消息
	SubscriberQueueSize int
}

// RulesConfig 分类规则配置
type RulesConfig struct {
	// FilePath 规则文件路径，留空表示使用内置默认规则且不监听文件
	FilePath string
}

// NewConfig 创建配置（默认值 + 环境变量覆盖）
func NewConfig() *Config {
	strategy, err := bucket.ParseStrategy(os.Getenv(EnvOverflowStrategy))
	if err != nil {
		strategy = bucket.PreferPriority
	}

	return &Config{
		Server: ServerConfig{
			HTTPPort: getEnvString(EnvHTTPPort, ":19970"),
		},
		Database: DatabaseConfig{
			Path: os.Getenv(EnvDBPath),
		},
		Retention: RetentionConfig{
			PriorityWindow: time.Duration(getEnvInt(EnvPriorityRetentionHours, 24)) * time.Hour,
			RegularWindow:  time.Duration(getEnvInt(EnvRegularRetentionHours, 4)) * time.Hour,
			SweepInterval:  time.Duration(getEnvInt(EnvSweepIntervalMinutes, 5)) * time.Minute,
		},
		Query: QueryConfig{
			PriorityCap: getEnvInt(EnvPriorityCap, 50),
			RegularCap:  getEnvInt(EnvRegularCap, 100),
			TotalCap:    getEnvInt(EnvTotalCap, 120),
			Strategy:    strategy,
		},
		WebSocket: WebSocketConfig{
			ReadBufferSize:      1024,
			WriteBufferSize:     1024,
			SubscriberQueueSize: getEnvInt(EnvSubscriberQueue, 256),
		},
		Rules: RulesConfig{
			FilePath: os.Getenv(EnvRulesFile),
		},
	}
}

// RetentionPolicy 根据配置构建保留策略
func (c *Config) RetentionPolicy() (*retention.Policy, error) {
	return retention.NewPolicy("default", 1, map[int]time.Duration{
		0: c.Retention.RegularWindow,
		1: c.Retention.PriorityWindow,
	})
}

// NewDatabaseConfig 创建数据库配置
func NewDatabaseConfig(cfg *Config) *DatabaseConfig {
	return &cfg.Database
}

// NewServerConfig 创建服务器配置
func NewServerConfig(cfg *Config) *ServerConfig {
	return &cfg.Server
}

// getEnvString 获取字符串环境变量，带默认值
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt 获取整型环境变量，带默认值
// 非法值回退到默认值
func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed <= 0 {
		return defaultValue
	}
	return parsed
}

package bucket

import "fmt"

// OverflowStrategy 桶溢出策略
type OverflowStrategy string

const (
	// PreferPriority 合计超限时先淘汰普通桶（最旧优先），普通桶清空后才动优先级桶
	PreferPriority OverflowStrategy = "prefer-priority"
	// StrictFIFO 忽略优先级分类，淘汰全局最旧的事件
	StrictFIFO OverflowStrategy = "strict-fifo"
	// StrictPerBucket 每个桶独立执行自身上限，不设合计上限
	StrictPerBucket OverflowStrategy = "strict-per-bucket-limits"
)

// ParseStrategy 解析溢出策略字符串
func ParseStrategy(s string) (OverflowStrategy, error) {
	switch OverflowStrategy(s) {
	case PreferPriority, StrictFIFO, StrictPerBucket:
		return OverflowStrategy(s), nil
	case "":
		return PreferPriority, nil
	default:
		return "", fmt.Errorf("unknown overflow strategy %q", s)
	}
}

// Config 消费者侧桶配置
// 每个连接建立时提供一次，连接生命周期内不可变
type Config struct {
	// MaxPriorityEvents 优先级桶容量上限
	MaxPriorityEvents int
	// MaxRegularEvents 普通桶容量上限
	MaxRegularEvents int
	// TotalDisplayLimit 两桶合计上限（StrictPerBucket 策略下不生效）
	TotalDisplayLimit int
	// Strategy 溢出策略
	Strategy OverflowStrategy
}

// DefaultConfig 默认桶配置
func DefaultConfig() Config {
	return Config{
		MaxPriorityEvents: 50,
		MaxRegularEvents:  100,
		TotalDisplayLimit: 120,
		Strategy:          PreferPriority,
	}
}

// Validate 校验桶配置
func (c Config) Validate() error {
	if c.MaxPriorityEvents <= 0 {
		return fmt.Errorf("max priority events must be positive, got %d", c.MaxPriorityEvents)
	}
	if c.MaxRegularEvents <= 0 {
		return fmt.Errorf("max regular events must be positive, got %d", c.MaxRegularEvents)
	}
	if c.Strategy != StrictPerBucket && c.TotalDisplayLimit <= 0 {
		return fmt.Errorf("total display limit must be positive, got %d", c.TotalDisplayLimit)
	}
	if _, err := ParseStrategy(string(c.Strategy)); err != nil {
		return err
	}
	return nil
}

// Package retention 提供保留窗口策略和桶溢出策略
// 服务端（存储清理、查询截止时间）和客户端（桶缓存清理）共用同一套决策逻辑
package retention

import (
	"fmt"
	"time"
)

// Policy 保留策略快照（不可变）
// 按优先级映射保留时长，未配置的级别回退到已配置的最高级别
type Policy struct {
	// Name 策略名称
	Name string
	// Version 策略版本号，热加载时递增
	Version int
	// Windows 各优先级的保留时长，至少包含级别 0
	Windows map[int]time.Duration
}

// NewPolicy 创建保留策略
func NewPolicy(name string, version int, windows map[int]time.Duration) (*Policy, error) {
	if len(windows) == 0 {
		return nil, fmt.Errorf("policy %q: at least one retention window is required", name)
	}
	if _, ok := windows[0]; !ok {
		return nil, fmt.Errorf("policy %q: retention window for priority 0 is required", name)
	}
	for level, window := range windows {
		if level < 0 {
			return nil, fmt.Errorf("policy %q: priority level must be >= 0, got %d", name, level)
		}
		if window <= 0 {
			return nil, fmt.Errorf("policy %q: retention window for priority %d must be positive", name, level)
		}
	}

	cloned := make(map[int]time.Duration, len(windows))
	for level, window := range windows {
		cloned[level] = window
	}

	return &Policy{
		Name:    name,
		Version: version,
		Windows: cloned,
	}, nil
}

// DefaultPolicy 默认策略：优先级 1 保留 24 小时，普通事件保留 4 小时
func DefaultPolicy() *Policy {
	policy, _ := NewPolicy("default", 1, map[int]time.Duration{
		0: 4 * time.Hour,
		1: 24 * time.Hour,
	})
	return policy
}

// Window 返回指定优先级的保留时长
// 未配置的级别使用不超过该级别的最高已配置级别（更高优先级保留更久）
func (p *Policy) Window(level int) time.Duration {
	if window, ok := p.Windows[level]; ok {
		return window
	}

	best := -1
	for configured := range p.Windows {
		if configured <= level && configured > best {
			best = configured
		}
	}
	if best < 0 {
		return p.Windows[0]
	}
	return p.Windows[best]
}

// Cutoff 返回指定优先级在 now 时刻的过期截止时间
// 早于截止时间的事件视为过期
func (p *Policy) Cutoff(level int, now time.Time) time.Time {
	return now.Add(-p.Window(level))
}

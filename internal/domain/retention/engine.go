package retention

import (
	"sync/atomic"
	"time"
)

// snapshot 引擎内部快照
// current 为当前策略；previous 非空时表示上一次热加载的旧策略
// 在显式迁移前，swappedAt 之前创建的事件按新旧窗口中较长者参与删除判定，
// 避免缩短窗口的热加载追溯删除已入库的事件
type snapshot struct {
	current   *Policy
	previous  *Policy
	swappedAt time.Time
}

// Engine 保留策略引擎
// 读多写少的共享状态：读取方通过原子指针拿到完整快照，
// 更新方发布新快照而不是原地修改字段
type Engine struct {
	snap atomic.Pointer[snapshot]
}

// NewEngine 创建策略引擎
// policy 为 nil 时使用默认策略
func NewEngine(policy *Policy) *Engine {
	if policy == nil {
		policy = DefaultPolicy()
	}
	e := &Engine{}
	e.snap.Store(&snapshot{current: policy})
	return e
}

// Current 当前策略快照
func (e *Engine) Current() *Policy {
	return e.snap.Load().current
}

// Reload 原子发布新策略
// 旧策略保留为删除判定的保底窗口，直到调用 Migrate
func (e *Engine) Reload(policy *Policy) {
	if policy == nil {
		return
	}
	old := e.snap.Load()
	e.snap.Store(&snapshot{
		current:   policy,
		previous:  old.current,
		swappedAt: time.Now(),
	})
}

// Migrate 显式确认迁移，解除旧策略的保底窗口
func (e *Engine) Migrate() {
	old := e.snap.Load()
	e.snap.Store(&snapshot{current: old.current})
}

// QueryCutoff 查询用的截止时间（始终使用当前策略）
func (e *Engine) QueryCutoff(level int, now time.Time) time.Time {
	return e.snap.Load().current.Cutoff(level, now)
}

// SweepCutoff 删除用的截止时间
// 存在未迁移的旧策略时取新旧窗口中较长者，保证热加载不追溯删除
func (e *Engine) SweepCutoff(level int, now time.Time) time.Time {
	s := e.snap.Load()
	window := s.current.Window(level)
	if s.previous != nil {
		if prev := s.previous.Window(level); prev > window {
			window = prev
		}
	}
	return now.Add(-window)
}

// Window 指定优先级的当前保留时长
func (e *Engine) Window(level int) time.Duration {
	return e.snap.Load().current.Window(level)
}

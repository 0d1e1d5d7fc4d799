// Package bucket 提供消费者侧的双桶有界事件缓存
//
// 每个订阅连接独占一个 Cache：优先级桶和普通桶各自是一个按时间有序的
// 有界双端队列，新事件从尾部进入，容量或年龄超限时从头部（或按策略）淘汰。
// 合并视图是惰性重算的只读投影，不在每次插入时重排整个缓存
package bucket

import (
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/pulseboard/backend/pkg/protocol"
)

// 服务端未下发保留窗口时的兜底值，与服务端默认策略一致
var defaultWindows = map[int]time.Duration{
	0: 4 * time.Hour,
	1: 24 * time.Hour,
}

// Stats 缓存统计摘要
// 读取代价恒定，淘汰计数仅用于观测，永远不作为错误上报
type Stats struct {
	// Total 当前缓存的事件总数
	Total int
	// PriorityCount 优先级桶事件数
	PriorityCount int
	// RegularCount 普通桶事件数
	RegularCount int
	// PriorityPercentage 优先级事件占比（0-100）
	PriorityPercentage float64
	// PrioritySupported 服务端协议是否携带可信的优先级元数据
	PrioritySupported bool
	// EvictedPriority 优先级桶累计淘汰数
	EvictedPriority int64
	// EvictedRegular 普通桶累计淘汰数
	EvictedRegular int64
	// Expired 过期清理累计删除数
	Expired int64
}

// Cache 双桶有界事件缓存
// 连接建立时以 Config 创建，配置在连接生命周期内不可变
type Cache struct {
	mu  sync.RWMutex
	cfg Config

	// 两个桶都按 (timestamp, id) 升序维护
	priority []protocol.StreamEvent
	regular  []protocol.StreamEvent

	// merged 合并视图缓存，dirty 时惰性重算
	merged []protocol.StreamEvent
	dirty  bool

	// windows 各优先级的保留窗口，随 initial 快照的 priority_info 更新
	windows map[int]time.Duration
	// prioritySupported 协议版本是否支持优先级元数据
	prioritySupported bool

	evictedPriority int64
	evictedRegular  int64
	expired         int64

	sweepStop chan struct{}
	sweepOnce sync.Once
	sweepWG   sync.WaitGroup
}

// NewCache 创建缓存
func NewCache(cfg Config) (*Cache, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	windows := make(map[int]time.Duration, len(defaultWindows))
	for level, window := range defaultWindows {
		windows[level] = window
	}

	return &Cache{
		cfg:       cfg,
		windows:   windows,
		sweepStop: make(chan struct{}),
	}, nil
}

// ApplyInfo 应用服务端下发的优先级聚合信息
// 更新保留窗口和协议支持标记
func (c *Cache) ApplyInfo(info *protocol.PriorityInfo) {
	if info == nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.prioritySupported = info.PrioritySupported()
	for key, ms := range info.RetentionWindow {
		level, err := strconv.Atoi(key)
		if err != nil || ms <= 0 {
			continue
		}
		c.windows[level] = time.Duration(ms) * time.Millisecond
	}
}

// ReplaceAll 用 initial 快照替换全部缓存内容
// 重连后的快照是恢复一致性的唯一手段
func (c *Cache) ReplaceAll(events []protocol.StreamEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.priority = c.priority[:0]
	c.regular = c.regular[:0]

	for _, e := range events {
		c.insertLocked(e)
	}
	c.enforceLocked()
	c.dirty = true
}

// Insert 插入单个事件并按策略执行淘汰
func (c *Cache) Insert(e protocol.StreamEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.insertLocked(e)
	c.enforceLocked()
	c.dirty = true
}

// insertLocked 插入到所属桶，保持 (timestamp, id) 升序
// Hub 按入库顺序推送，正常情况是直接追加；乱序到达时从尾部回退找插入点
func (c *Cache) insertLocked(e protocol.StreamEvent) {
	target := &c.regular
	if e.IsPriority() {
		target = &c.priority
	}

	s := *target
	pos := len(s)
	for pos > 0 {
		prev := s[pos-1]
		if prev.Timestamp < e.Timestamp || (prev.Timestamp == e.Timestamp && prev.ID <= e.ID) {
			break
		}
		pos--
	}

	s = append(s, protocol.StreamEvent{})
	copy(s[pos+1:], s[pos:])
	s[pos] = e
	*target = s
}

// enforceLocked 执行容量淘汰
// 各桶上限是先行硬上限，之后才按策略处理合计上限
func (c *Cache) enforceLocked() {
	// 每桶硬上限：桶内最旧优先淘汰
	for len(c.priority) > c.cfg.MaxPriorityEvents {
		c.priority = c.priority[1:]
		c.evictedPriority++
	}
	for len(c.regular) > c.cfg.MaxRegularEvents {
		c.regular = c.regular[1:]
		c.evictedRegular++
	}

	if c.cfg.Strategy == StrictPerBucket {
		// 各桶独立限额，不设合计上限
		return
	}

	for len(c.priority)+len(c.regular) > c.cfg.TotalDisplayLimit {
		switch c.cfg.Strategy {
		case StrictFIFO:
			// 忽略优先级分类，淘汰全局最旧的事件
			if c.oldestIsRegular() {
				c.regular = c.regular[1:]
				c.evictedRegular++
			} else {
				c.priority = c.priority[1:]
				c.evictedPriority++
			}
		default: // prefer-priority
			// 普通桶先让位，只有普通桶空了才淘汰优先级事件
			if len(c.regular) > 0 {
				c.regular = c.regular[1:]
				c.evictedRegular++
			} else {
				c.priority = c.priority[1:]
				c.evictedPriority++
			}
		}
	}
}

// oldestIsRegular 全局最旧的事件是否在普通桶
func (c *Cache) oldestIsRegular() bool {
	if len(c.regular) == 0 {
		return false
	}
	if len(c.priority) == 0 {
		return true
	}
	p, r := c.priority[0], c.regular[0]
	if r.Timestamp != p.Timestamp {
		return r.Timestamp < p.Timestamp
	}
	return r.ID < p.ID
}

// Sweep 清理超过保留窗口的事件
// 由独立定时器驱动而不是只依赖插入触发，保证安静的桶也会收缩；幂等
func (c *Cache) Sweep(now time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	removed += c.sweepBucketLocked(&c.priority, now)
	removed += c.sweepBucketLocked(&c.regular, now)

	if removed > 0 {
		c.expired += int64(removed)
		c.dirty = true
	}
	return removed
}

// sweepBucketLocked 清理单个桶
// 桶按时间升序，从头部删到第一个未过期的事件为止
func (c *Cache) sweepBucketLocked(bucket *[]protocol.StreamEvent, now time.Time) int {
	s := *bucket
	idx := 0
	for idx < len(s) {
		window := c.windowLocked(s[idx].Priority)
		if now.Sub(s[idx].CreatedAt()) <= window {
			break
		}
		idx++
	}
	if idx == 0 {
		return 0
	}
	*bucket = s[idx:]
	return idx
}

// windowLocked 指定优先级的保留窗口
func (c *Cache) windowLocked(level int) time.Duration {
	if window, ok := c.windows[level]; ok {
		return window
	}

	best := -1
	for configured := range c.windows {
		if configured <= level && configured > best {
			best = configured
		}
	}
	if best < 0 {
		return c.windows[0]
	}
	return c.windows[best]
}

// StartSweeper 启动周期清理
func (c *Cache) StartSweeper(interval time.Duration) {
	c.sweepWG.Add(1)
	go func() {
		defer c.sweepWG.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				c.Sweep(time.Now())
			case <-c.sweepStop:
				return
			}
		}
	}()
}

// Close 停止周期清理
func (c *Cache) Close() {
	c.sweepOnce.Do(func() {
		close(c.sweepStop)
	})
	c.sweepWG.Wait()
}

// Merged 合并视图：两桶按 (timestamp, id) 升序交错，用于时间回放渲染
// 两个桶本身有序，重算是一次 O(n) 双指针归并，且只在内容变化后执行
func (c *Cache) Merged() []protocol.StreamEvent {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.dirty {
		c.merged = mergeSorted(c.priority, c.regular)
		c.dirty = false
	}

	view := make([]protocol.StreamEvent, len(c.merged))
	copy(view, c.merged)
	return view
}

// MostImportantFirst 重要性视图：按 (priority 降序, timestamp 降序)
// 用于"最重要、最新优先"的消费场景
func (c *Cache) MostImportantFirst() []protocol.StreamEvent {
	view := c.Merged()
	sort.SliceStable(view, func(i, j int) bool {
		if view[i].Priority != view[j].Priority {
			return view[i].Priority > view[j].Priority
		}
		return view[i].Timestamp > view[j].Timestamp
	})
	return view
}

// mergeSorted 归并两个有序桶
func mergeSorted(a, b []protocol.StreamEvent) []protocol.StreamEvent {
	merged := make([]protocol.StreamEvent, 0, len(a)+len(b))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		if a[i].Timestamp < b[j].Timestamp ||
			(a[i].Timestamp == b[j].Timestamp && a[i].ID <= b[j].ID) {
			merged = append(merged, a[i])
			i++
		} else {
			merged = append(merged, b[j])
			j++
		}
	}
	merged = append(merged, a[i:]...)
	merged = append(merged, b[j:]...)
	return merged
}

// Stats 统计摘要
func (c *Cache) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	total := len(c.priority) + len(c.regular)
	percentage := 0.0
	if total > 0 {
		percentage = float64(len(c.priority)) / float64(total) * 100
	}

	return Stats{
		Total:              total,
		PriorityCount:      len(c.priority),
		RegularCount:       len(c.regular),
		PriorityPercentage: percentage,
		PrioritySupported:  c.prioritySupported,
		EvictedPriority:    c.evictedPriority,
		EvictedRegular:     c.evictedRegular,
		Expired:            c.expired,
	}
}

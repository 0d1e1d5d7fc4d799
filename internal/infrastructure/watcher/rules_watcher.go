package watcher

import (
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/pulseboard/backend/internal/domain/events"
	"github.com/pulseboard/backend/internal/domain/priority"
	"github.com/pulseboard/backend/internal/domain/retention"
	"github.com/pulseboard/backend/internal/infrastructure/log"
)

// rulesReloadedEvent 规则重载总线通知
type rulesReloadedEvent struct {
	version  int
	reloaded time.Time
}

// Type 实现 BusEvent 接口
func (e *rulesReloadedEvent) Type() events.BusType {
	return events.TypeRulesReloaded
}

// OccurredAt 实现 BusEvent 接口
func (e *rulesReloadedEvent) OccurredAt() time.Time {
	return e.reloaded
}

// RulesWatcher 分类规则文件监听器
// 监听规则文件变更，防抖后重新加载：分类器的规则快照和
// 保留策略引擎的窗口配置一起原子替换，进程不重启即可生效；
// 加载失败保留旧规则和旧策略，只记录日志
type RulesWatcher struct {
	path       string
	classifier *priority.Classifier
	engine     *retention.Engine
	bus        events.Bus
	watcher    *fsnotify.Watcher
	logger     *slog.Logger

	// 防抖相关
	debounceDelay time.Duration
	debounceTimer *time.Timer
	debounceMu    sync.Mutex

	// 控制
	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewRulesWatcher 创建规则文件监听器
// path 为空时返回 nil watcher（使用内置规则，不监听）
func NewRulesWatcher(path string, classifier *priority.Classifier, engine *retention.Engine, bus events.Bus) (*RulesWatcher, error) {
	if path == "" {
		return nil, nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &RulesWatcher{
		path:          path,
		classifier:    classifier,
		engine:        engine,
		bus:           bus,
		watcher:       watcher,
		logger:        log.NewModuleLogger("watcher", "rules_watcher"),
		debounceDelay: 500 * time.Millisecond,
		stopCh:        make(chan struct{}),
	}, nil
}

// Start 启动监听
// 启动时先加载一次规则文件，之后监听所在目录（编辑器保存常用 rename+create）
func (w *RulesWatcher) Start() error {
	w.reload()

	if err := w.watcher.Add(filepath.Dir(w.path)); err != nil {
		return err
	}

	w.wg.Add(1)
	go w.watchLoop()

	w.logger.Info("Rules watcher started", "path", w.path)
	return nil
}

// Stop 停止监听
func (w *RulesWatcher) Stop() {
	close(w.stopCh)
	w.watcher.Close()
	w.wg.Wait()

	w.debounceMu.Lock()
	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}
	w.debounceMu.Unlock()

	w.logger.Info("Rules watcher stopped")
}

// watchLoop 事件处理循环
func (w *RulesWatcher) watchLoop() {
	defer w.wg.Done()

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			w.scheduleReload()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("Watcher error", "error", err)

		case <-w.stopCh:
			return
		}
	}
}

// scheduleReload 防抖调度重载
func (w *RulesWatcher) scheduleReload() {
	w.debounceMu.Lock()
	defer w.debounceMu.Unlock()

	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}
	w.debounceTimer = time.AfterFunc(w.debounceDelay, w.reload)
}

// reload 加载规则文件并原子替换
// 分类规则和保留策略来自同一个文件，要么整体生效要么整体保留旧版
func (w *RulesWatcher) reload() {
	rules, err := priority.LoadRuleSet(w.path)
	if err != nil {
		w.logger.Error("Failed to load rules file, keeping previous rules",
			"path", w.path,
			"error", err,
		)
		return
	}

	w.classifier.Reload(rules)
	w.logger.Info("Classification rules reloaded",
		"version", rules.Version,
		"rules_count", len(rules.Rules),
	)

	w.applyRetention(rules)

	if w.bus != nil {
		w.bus.Publish(&rulesReloadedEvent{version: rules.Version, reloaded: time.Now()})
	}
}

// applyRetention 把文件中的保留窗口配置发布到策略引擎
// 缩短窗口不追溯删除已入库事件，直到文件显式声明 migrate: true
func (w *RulesWatcher) applyRetention(rules *priority.RuleSet) {
	if w.engine == nil {
		return
	}

	policy, err := rules.RetentionPolicy()
	if err != nil {
		// LoadRuleSet 已校验过配置段，这里只是兜底
		w.logger.Error("Failed to build retention policy", "error", err)
		return
	}
	if policy == nil {
		return
	}

	if !sameWindows(policy, w.engine.Current()) {
		w.engine.Reload(policy)
		w.logger.Info("Retention policy reloaded",
			"policy", policy.Name,
			"version", policy.Version,
		)
	}

	if rules.Retention.Migrate {
		w.engine.Migrate()
		w.logger.Info("Retention policy migration confirmed",
			"policy", policy.Name,
			"version", policy.Version,
		)
	}
}

// sameWindows 判断两个策略的保留窗口是否完全一致
// 重复触发（防抖漏网、同文件多次事件）不应把当前策略顶成保底旧策略
func sameWindows(a, b *retention.Policy) bool {
	if len(a.Windows) != len(b.Windows) {
		return false
	}
	for level, window := range a.Windows {
		if b.Windows[level] != window {
			return false
		}
	}
	return true
}

package events

import (
	"log/slog"
	"sync"
	"time"

	domainEvents "github.com/pulseboard/backend/internal/domain/events"
	"github.com/pulseboard/backend/internal/infrastructure/config"
	applog "github.com/pulseboard/backend/internal/infrastructure/log"
	"github.com/pulseboard/backend/internal/infrastructure/storage"
)

// Sweeper 服务端保留窗口清理器
// 独立定时器驱动，和采集路径解耦；清理操作天然幂等，
// 连续执行两次不会重复删除
type Sweeper struct {
	repo     storage.EventRepository
	bus      domainEvents.Bus
	interval time.Duration
	logger   *slog.Logger

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewSweeper 创建清理器
func NewSweeper(repo storage.EventRepository, bus domainEvents.Bus, cfg *config.Config) *Sweeper {
	return &Sweeper{
		repo:     repo,
		bus:      bus,
		interval: cfg.Retention.SweepInterval,
		logger:   applog.NewModuleLogger("events", "sweeper"),
		stopCh:   make(chan struct{}),
	}
}

// Start 启动清理循环
func (s *Sweeper) Start() {
	s.wg.Add(1)
	go s.run()
	s.logger.Info("Retention sweeper started", "interval", s.interval)
}

// Stop 停止清理循环
func (s *Sweeper) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
	})
	s.wg.Wait()
}

// run 清理循环
func (s *Sweeper) run() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.SweepOnce(time.Now())
		case <-s.stopCh:
			return
		}
	}
}

// SweepOnce 执行一次清理
func (s *Sweeper) SweepOnce(now time.Time) {
	removed, err := s.repo.DeleteExpired(now)
	if err != nil {
		s.logger.Error("Retention sweep failed", "error", err)
		return
	}

	if removed > 0 {
		s.logger.Info("Expired events removed", "count", removed)
		if s.bus != nil {
			s.bus.Publish(&domainEvents.ExpiredEvent{Removed: removed, SweptAt: now})
		}
	}
}

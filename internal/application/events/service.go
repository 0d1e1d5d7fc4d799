// Package events 事件管线应用服务：采集、查询、广播、清理
package events

import (
	"log/slog"
	"time"

	domainEvents "github.com/pulseboard/backend/internal/domain/events"
	"github.com/pulseboard/backend/internal/domain/priority"
	applog "github.com/pulseboard/backend/internal/infrastructure/log"
	"github.com/pulseboard/backend/internal/infrastructure/storage"
)

// IngestService 事件采集应用服务
// 管线：校验 → 分类 → 持久化 → 发布总线事件（广播器异步推送）
type IngestService struct {
	repo       storage.EventRepository
	classifier *priority.Classifier
	bus        domainEvents.Bus
	logger     *slog.Logger
}

// NewIngestService 创建采集服务
func NewIngestService(
	repo storage.EventRepository,
	classifier *priority.Classifier,
	bus domainEvents.Bus,
) *IngestService {
	return &IngestService{
		repo:       repo,
		classifier: classifier,
		bus:        bus,
		logger:     applog.NewModuleLogger("events", "ingest"),
	}
}

// Ingest 采集单个事件
// 畸形输入同步返回校验错误；优先级和分类注解在此处一次性赋值
func (s *IngestService) Ingest(dto *IngestDTO) (*domainEvents.Event, error) {
	timestamp := dto.Timestamp
	if timestamp == 0 {
		timestamp = time.Now().UnixMilli()
	}

	event := &domainEvents.Event{
		Source:    dto.Source,
		SessionID: dto.SessionID,
		Type:      dto.Type,
		Payload:   dto.Payload,
		Timestamp: timestamp,
	}

	if err := event.Validate(); err != nil {
		return nil, err
	}

	// 分类是全函数：未知类型归为普通事件，永远不会失败
	level, meta := s.classifier.Classify(event.Type, event.Payload)
	event.Priority = level
	event.PriorityMeta = meta

	if err := s.repo.Save(event); err != nil {
		return nil, err
	}

	s.logger.Debug("Event stored",
		"event_id", event.ID,
		"session_id", event.SessionID,
		"type", event.Type,
		"priority", event.Priority,
	)

	// 异步发布，推送失败不影响采集结果
	s.bus.Publish(&domainEvents.StoredEvent{
		Event:    event,
		StoredAt: time.Now(),
	})

	return event, nil
}

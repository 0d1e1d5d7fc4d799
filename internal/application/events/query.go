package events

import (
	"strconv"
	"strings"
	"time"

	"github.com/pulseboard/backend/internal/domain/retention"
	"github.com/pulseboard/backend/internal/infrastructure/config"
	"github.com/pulseboard/backend/internal/infrastructure/storage"
	"github.com/pulseboard/backend/pkg/protocol"
)

// QueryService 历史查询应用服务
// 对外暴露双桶混合查询和统计；订阅握手的 initial 快照走同一条查询路径
type QueryService struct {
	repo   storage.EventRepository
	engine *retention.Engine
	query  config.QueryConfig
}

// NewQueryService 创建查询服务
func NewQueryService(repo storage.EventRepository, engine *retention.Engine, cfg *config.Config) *QueryService {
	return &QueryService{
		repo:   repo,
		engine: engine,
		query:  cfg.Query,
	}
}

// limitsFrom 合并请求参数和配置默认值
func (s *QueryService) limitsFrom(dto *QueryDTO) retention.QueryLimits {
	limits := retention.QueryLimits{
		PriorityCap: dto.PriorityCap,
		RegularCap:  dto.RegularCap,
		TotalCap:    dto.TotalCap,
	}
	if limits.PriorityCap == 0 {
		limits.PriorityCap = s.query.PriorityCap
	}
	if limits.RegularCap == 0 {
		limits.RegularCap = s.query.RegularCap
	}
	if limits.TotalCap == 0 {
		limits.TotalCap = s.query.TotalCap
	}
	return limits
}

// QueryMixed 双桶混合查询
// 返回时间升序的事件列表和保留窗口元数据；非法上限同步报错
func (s *QueryService) QueryMixed(dto *QueryDTO) (*QueryResultDTO, error) {
	limits := s.limitsFrom(dto)

	result, err := s.repo.QueryMixed(dto.Sessions, limits, time.Now())
	if err != nil {
		return nil, err
	}

	streamEvents := make([]protocol.StreamEvent, 0, len(result.Events))
	for _, e := range result.Events {
		streamEvents = append(streamEvents, toStreamEvent(e.Event, e.Bucket))
	}

	return &QueryResultDTO{
		Events: streamEvents,
		Info: &protocol.PriorityInfo{
			TotalEvents:     int64(len(result.Events)),
			PriorityEvents:  int64(result.PriorityCount),
			RegularEvents:   int64(result.RegularCount),
			RetentionWindow: s.retentionWindows(),
			ProtocolVersion: protocol.Version,
		},
	}, nil
}

// InitialSnapshot 构建订阅握手的 initial 消息
// 新订阅者以当前完整状态起步，而不是等待新事件；
// 快照范围严格跟随会话过滤集合，包括计数元数据
func (s *QueryService) InitialSnapshot(sessionIDs []string) (*protocol.Message, error) {
	result, err := s.QueryMixed(&QueryDTO{Sessions: sessionIDs})
	if err != nil {
		return nil, err
	}

	return &protocol.Message{
		Kind:      protocol.KindInitial,
		SessionID: strings.Join(sessionIDs, ","),
		Events:    result.Events,
		Info:      result.Info,
	}, nil
}

// Stats 全量计数统计
func (s *QueryService) Stats(sessionID string) (*protocol.PriorityInfo, error) {
	stats, err := s.repo.CountByPriority(sessionID)
	if err != nil {
		return nil, err
	}

	return &protocol.PriorityInfo{
		TotalEvents:     stats.Total,
		PriorityEvents:  stats.PriorityCount,
		RegularEvents:   stats.RegularCount,
		RetentionWindow: s.retentionWindows(),
		ProtocolVersion: protocol.Version,
	}, nil
}

// retentionWindows 当前各优先级保留窗口（毫秒）
func (s *QueryService) retentionWindows() map[string]int64 {
	policy := s.engine.Current()
	windows := make(map[string]int64, len(policy.Windows))
	for level, window := range policy.Windows {
		windows[strconv.Itoa(level)] = window.Milliseconds()
	}
	return windows
}

package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/pulseboard/backend/internal/domain/events"
	"github.com/pulseboard/backend/internal/domain/retention"
)

// 事件所属桶标注
const (
	BucketPriority = "priority"
	BucketRegular  = "regular"
)

// BucketedEvent 带桶标注的查询结果事件
type BucketedEvent struct {
	*events.Event
	// Bucket 事件来自哪个桶（priority / regular）
	Bucket string `json:"bucket"`
}

// MixedResult 双桶混合查询结果
// Events 按 timestamp 升序（时间回放顺序），优先级事件是截断时的优先幸存者
type MixedResult struct {
	Events        []BucketedEvent
	PriorityCount int
	RegularCount  int
}

// Stats 事件计数统计
type Stats struct {
	Total         int64
	PriorityCount int64
	RegularCount  int64
}

// EventRepository 事件仓储接口
type EventRepository interface {
	// Save 持久化事件并回填分配的 ID
	Save(event *events.Event) error
	// QueryMixed 双桶混合查询（见算法说明）
	QueryMixed(sessionIDs []string, limits retention.QueryLimits, now time.Time) (*MixedResult, error)
	// DeleteExpired 删除超过保留窗口的事件，返回删除数量
	DeleteExpired(now time.Time) (int64, error)
	// CountByPriority 按优先级统计事件数量
	CountByPriority(sessionID string) (*Stats, error)
}

// eventRepository 事件 SQLite 仓储实现
type eventRepository struct {
	db     *sql.DB
	engine *retention.Engine
}

// NewEventRepository 创建事件仓储实例
func NewEventRepository(db *sql.DB, engine *retention.Engine) (EventRepository, error) {
	if err := initEventTable(db); err != nil {
		return nil, err
	}
	return &eventRepository{db: db, engine: engine}, nil
}

// initEventTable 初始化事件表
func initEventTable(db *sql.DB) error {
	createTableSQL := `
	CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		source TEXT NOT NULL,
		session_id TEXT NOT NULL,
		type TEXT NOT NULL,
		priority INTEGER NOT NULL DEFAULT 0,
		priority_metadata TEXT,
		payload TEXT,
		timestamp INTEGER NOT NULL
	);`

	if _, err := db.Exec(createTableSQL); err != nil {
		return fmt.Errorf("failed to create events table: %w", err)
	}

	// 查询路径的覆盖索引：总量无关的有界查询时间依赖这两个索引
	createIndexSQL := `
	CREATE INDEX IF NOT EXISTS idx_events_priority_ts ON events(priority, timestamp);
	CREATE INDEX IF NOT EXISTS idx_events_session_priority_ts ON events(session_id, priority, timestamp);
	`

	if _, err := db.Exec(createIndexSQL); err != nil {
		return fmt.Errorf("failed to create events indexes: %w", err)
	}

	return nil
}

// Save 持久化事件
// priority 和 priority_metadata 在此刻定格，之后不再变更
func (r *eventRepository) Save(event *events.Event) error {
	if err := event.Validate(); err != nil {
		return err
	}

	var metadata sql.NullString
	if event.PriorityMeta != nil {
		data, err := json.Marshal(event.PriorityMeta)
		if err != nil {
			return fmt.Errorf("failed to marshal priority metadata: %w", err)
		}
		metadata = sql.NullString{String: string(data), Valid: true}
	}

	payload := "null"
	if len(event.Payload) > 0 {
		payload = string(event.Payload)
	}

	query := `
		INSERT INTO events
		(source, session_id, type, priority, priority_metadata, payload, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?)`

	result, err := r.db.Exec(query,
		event.Source,
		event.SessionID,
		event.Type,
		event.Priority,
		metadata,
		payload,
		event.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to save event: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read event id: %w", err)
	}
	event.ID = id

	return nil
}

// QueryMixed 双桶混合查询
// 算法：
//  1. 按当前策略计算优先级桶和普通桶的截止时间
//  2. 各桶分别取窗口内最新的 PriorityCap / RegularCap 条（各级上限是先行硬上限）
//  3. 合计超过 TotalCap 时先从普通桶淘汰最旧的，普通桶空了才动优先级桶
//  4. 幸存集合按 timestamp 升序返回并标注来源桶
//
// 空会话列表表示不过滤会话；未知会话返回空集而非错误
func (r *eventRepository) QueryMixed(sessionIDs []string, limits retention.QueryLimits, now time.Time) (*MixedResult, error) {
	if err := limits.Validate(); err != nil {
		return nil, err
	}

	priorityCutoff := r.engine.QueryCutoff(1, now).UnixMilli()
	regularCutoff := r.engine.QueryCutoff(0, now).UnixMilli()

	priorityEvents, err := r.selectBucket(sessionIDs, true, priorityCutoff, limits.PriorityCap)
	if err != nil {
		return nil, fmt.Errorf("failed to query priority bucket: %w", err)
	}

	regularEvents, err := r.selectBucket(sessionIDs, false, regularCutoff, limits.RegularCap)
	if err != nil {
		return nil, fmt.Errorf("failed to query regular bucket: %w", err)
	}

	// 总量截断：普通桶先让位，这是优先级事件作为优先幸存者的核心约束
	overflow := len(priorityEvents) + len(regularEvents) - limits.TotalCap
	if overflow > 0 {
		// 两个桶都按最新优先排序，截断尾部即淘汰最旧的
		if overflow >= len(regularEvents) {
			overflow -= len(regularEvents)
			regularEvents = nil
			if overflow > 0 {
				priorityEvents = priorityEvents[:len(priorityEvents)-overflow]
			}
		} else {
			regularEvents = regularEvents[:len(regularEvents)-overflow]
		}
	}

	merged := make([]BucketedEvent, 0, len(priorityEvents)+len(regularEvents))
	for _, e := range priorityEvents {
		merged = append(merged, BucketedEvent{Event: e, Bucket: BucketPriority})
	}
	for _, e := range regularEvents {
		merged = append(merged, BucketedEvent{Event: e, Bucket: BucketRegular})
	}

	// 时间升序输出，时间相同按 ID 保持入库顺序
	sort.Slice(merged, func(i, j int) bool {
		if merged[i].Timestamp != merged[j].Timestamp {
			return merged[i].Timestamp < merged[j].Timestamp
		}
		return merged[i].ID < merged[j].ID
	})

	return &MixedResult{
		Events:        merged,
		PriorityCount: len(priorityEvents),
		RegularCount:  len(regularEvents),
	}, nil
}

// selectBucket 查询单个桶，按最新优先排序
// 会话过滤支持多个会话，空列表不过滤
func (r *eventRepository) selectBucket(sessionIDs []string, priority bool, cutoff int64, limit int) ([]*events.Event, error) {
	if limit <= 0 {
		return nil, nil
	}

	cond := "priority = 0"
	if priority {
		cond = "priority >= 1"
	}

	query := `
		SELECT id, source, session_id, type, priority, priority_metadata, payload, timestamp
		FROM events
		WHERE ` + cond + ` AND timestamp >= ?`
	args := []any{cutoff}

	if len(sessionIDs) > 0 {
		placeholders := strings.Repeat("?,", len(sessionIDs))
		query += " AND session_id IN (" + placeholders[:len(placeholders)-1] + ")"
		for _, id := range sessionIDs {
			args = append(args, id)
		}
	}

	query += " ORDER BY timestamp DESC, id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*events.Event
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, event)
	}
	return result, rows.Err()
}

// scanEvent 扫描单行事件
func scanEvent(rows *sql.Rows) (*events.Event, error) {
	var event events.Event
	var metadata sql.NullString
	var payload sql.NullString

	err := rows.Scan(
		&event.ID,
		&event.Source,
		&event.SessionID,
		&event.Type,
		&event.Priority,
		&metadata,
		&payload,
		&event.Timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan event: %w", err)
	}

	if metadata.Valid {
		var meta events.PriorityMeta
		if err := json.Unmarshal([]byte(metadata.String), &meta); err != nil {
			return nil, fmt.Errorf("failed to unmarshal priority metadata: %w", err)
		}
		event.PriorityMeta = &meta
	}

	if payload.Valid {
		event.Payload = json.RawMessage(payload.String)
	}

	return &event, nil
}

// DeleteExpired 删除超过保留窗口的事件
// 截止时间来自策略引擎的删除保底窗口（热加载不追溯删除）
// 天然幂等：连续执行两次不会重复删除
func (r *eventRepository) DeleteExpired(now time.Time) (int64, error) {
	levels, err := r.storedLevels()
	if err != nil {
		return 0, err
	}

	var removed int64
	for _, level := range levels {
		cutoff := r.engine.SweepCutoff(level, now).UnixMilli()
		result, err := r.db.Exec(
			"DELETE FROM events WHERE priority = ? AND timestamp < ?",
			level, cutoff,
		)
		if err != nil {
			return removed, fmt.Errorf("failed to delete expired events (priority %d): %w", level, err)
		}
		count, _ := result.RowsAffected()
		removed += count
	}
	return removed, nil
}

// storedLevels 当前存储中出现过的优先级列表
func (r *eventRepository) storedLevels() ([]int, error) {
	rows, err := r.db.Query("SELECT DISTINCT priority FROM events")
	if err != nil {
		return nil, fmt.Errorf("failed to query stored priorities: %w", err)
	}
	defer rows.Close()

	var levels []int
	for rows.Next() {
		var level int
		if err := rows.Scan(&level); err != nil {
			return nil, err
		}
		levels = append(levels, level)
	}
	return levels, rows.Err()
}

// CountByPriority 按优先级统计事件数量
// 空 sessionID 表示统计全部
func (r *eventRepository) CountByPriority(sessionID string) (*Stats, error) {
	query := `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN priority >= 1 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN priority = 0 THEN 1 ELSE 0 END), 0)
		FROM events`
	var args []any
	if sessionID != "" {
		query += " WHERE session_id = ?"
		args = append(args, sessionID)
	}

	var stats Stats
	if err := r.db.QueryRow(query, args...).Scan(&stats.Total, &stats.PriorityCount, &stats.RegularCount); err != nil {
		return nil, fmt.Errorf("failed to count events: %w", err)
	}
	return &stats, nil
}

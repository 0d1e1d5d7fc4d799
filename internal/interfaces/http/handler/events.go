package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	appEvents "github.com/pulseboard/backend/internal/application/events"
	"github.com/pulseboard/backend/internal/interfaces/http/response"
)

// EventHandler 事件处理器
type EventHandler struct {
	ingest *appEvents.IngestService
	query  *appEvents.QueryService
}

// NewEventHandler 创建事件处理器
func NewEventHandler(ingest *appEvents.IngestService, query *appEvents.QueryService) *EventHandler {
	return &EventHandler{ingest: ingest, query: query}
}

// Ingest 采集单个事件
// 畸形事件同步返回校验错误，不静默丢弃
func (h *EventHandler) Ingest(c *gin.Context) {
	var dto appEvents.IngestDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.ErrorWithDetail(c, http.StatusBadRequest, 100001, "参数错误", err.Error())
		return
	}

	event, err := h.ingest.Ingest(&dto)
	if err != nil {
		response.ErrorWithDetail(c, http.StatusBadRequest, 100002, "事件校验失败", err.Error())
		return
	}

	response.Success(c, event)
}

// Query 双桶混合查询
// 查询参数：session_id（可选，逗号分隔多个）、priority_limit、regular_limit、total_limit
// 未知但格式合法的会话返回空集；非法上限返回描述性错误
func (h *EventHandler) Query(c *gin.Context) {
	dto := appEvents.QueryDTO{Sessions: parseSessionFilter(c.Query("session_id"))}

	var err error
	if dto.PriorityCap, err = parseLimit(c, "priority_limit"); err != nil {
		response.ErrorWithDetail(c, http.StatusBadRequest, 100003, "非法查询上限", err.Error())
		return
	}
	if dto.RegularCap, err = parseLimit(c, "regular_limit"); err != nil {
		response.ErrorWithDetail(c, http.StatusBadRequest, 100003, "非法查询上限", err.Error())
		return
	}
	if dto.TotalCap, err = parseLimit(c, "total_limit"); err != nil {
		response.ErrorWithDetail(c, http.StatusBadRequest, 100003, "非法查询上限", err.Error())
		return
	}

	result, err := h.query.QueryMixed(&dto)
	if err != nil {
		response.ErrorWithDetail(c, http.StatusBadRequest, 100004, "查询失败", err.Error())
		return
	}

	response.Success(c, result)
}

// Stats 事件计数统计
func (h *EventHandler) Stats(c *gin.Context) {
	info, err := h.query.Stats(c.Query("session_id"))
	if err != nil {
		response.ErrorWithDetail(c, http.StatusInternalServerError, 100005, "统计失败", err.Error())
		return
	}

	response.Success(c, info)
}

// parseLimit 解析查询上限参数，缺省为 0（使用配置默认值）
func parseLimit(c *gin.Context, name string) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}

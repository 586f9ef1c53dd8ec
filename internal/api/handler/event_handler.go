package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"sorsulyap/backend/internal/dto"
	"sorsulyap/backend/internal/service"
	pkgerrors "sorsulyap/backend/pkg/errors"
	"sorsulyap/backend/pkg/response"
)

// EventHandler 活动模块 HTTP 处理器
type EventHandler struct {
	eventSvc service.EventService
}

// NewEventHandler 创建 EventHandler
func NewEventHandler(eventSvc service.EventService) *EventHandler {
	return &EventHandler{eventSvc: eventSvc}
}

// ListEvents 即将举行的活动
// GET /api/v1/events
func (h *EventHandler) ListEvents(c *gin.Context) {
	events, err := h.eventSvc.List(c.Request.Context())
	if err != nil {
		h.handleEventError(c, err)
		return
	}
	response.OK(c, gin.H{"list": events})
}

// GetEvent 活动详情
// GET /api/v1/events/:id
func (h *EventHandler) GetEvent(c *gin.Context) {
	event, err := h.eventSvc.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.handleEventError(c, err)
		return
	}
	response.OK(c, event)
}

// CreateEvent 创建活动并向目标受众发送通知
// POST /api/v1/events
func (h *EventHandler) CreateEvent(c *gin.Context) {
	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}
	var req dto.CreateEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	result, err := h.eventSvc.Create(c.Request.Context(), &req, callerID)
	if err != nil {
		h.handleEventError(c, err)
		return
	}
	response.Created(c, result)
}

// UpdateEvent 更新活动
// PUT /api/v1/events/:id
func (h *EventHandler) UpdateEvent(c *gin.Context) {
	var req dto.UpdateEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	event, err := h.eventSvc.Update(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		h.handleEventError(c, err)
		return
	}
	response.OK(c, event)
}

// DeleteEvent 删除活动
// DELETE /api/v1/events/:id
func (h *EventHandler) DeleteEvent(c *gin.Context) {
	if err := h.eventSvc.Delete(c.Request.Context(), c.Param("id")); err != nil {
		h.handleEventError(c, err)
		return
	}
	response.OK(c, nil)
}

// Calendar 导出活动日历
// GET /api/v1/events/calendar.ics
func (h *EventHandler) Calendar(c *gin.Context) {
	data, err := h.eventSvc.ExportICS(c.Request.Context())
	if err != nil {
		h.handleEventError(c, err)
		return
	}
	c.Header("Content-Disposition", "inline; filename=sorsulyap-events.ics")
	c.Data(http.StatusOK, "text/calendar; charset=utf-8", data)
}

func (h *EventHandler) handleEventError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrEventNotFound):
		response.NotFound(c, 13001, "活动不存在")
	case errors.Is(err, service.ErrInvalidEventDate):
		response.BadRequest(c, 13002, "活动日期格式错误，应为 YYYY-MM-DD")
	case errors.Is(err, service.ErrInvalidEventTime):
		response.BadRequest(c, 13003, "活动时间格式错误，应为 HH:MM")
	case errors.Is(err, service.ErrInvalidTargetRule):
		response.BadRequest(c, 13004, "无效的通知受众")
	case errors.Is(err, pkgerrors.ErrOptimisticLock):
		response.Conflict(c, 13005, "活动已被修改，请刷新后重试")
	default:
		response.InternalError(c)
	}
}

package handler

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"

	"sorsulyap/backend/internal/dto"
	"sorsulyap/backend/internal/service"
	pkgerrors "sorsulyap/backend/pkg/errors"
	"sorsulyap/backend/pkg/response"
)

// NotificationHandler 通知模块 HTTP 处理器
type NotificationHandler struct {
	notificationSvc service.NotificationService
	fanoutSvc       service.FanoutService
	reportSvc       service.ReportService
}

// NewNotificationHandler 创建 NotificationHandler
func NewNotificationHandler(
	notificationSvc service.NotificationService,
	fanoutSvc service.FanoutService,
	reportSvc service.ReportService,
) *NotificationHandler {
	return &NotificationHandler{
		notificationSvc: notificationSvc,
		fanoutSvc:       fanoutSvc,
		reportSvc:       reportSvc,
	}
}

// ListNotifications 当前用户的通知（按创建时间倒序）
// GET /api/v1/notifications?limit=50
func (h *NotificationHandler) ListNotifications(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}
	var req dto.NotificationListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	result, err := h.notificationSvc.ListForUser(c.Request.Context(), userID, req.Limit)
	if err != nil {
		h.handleNotificationError(c, err)
		return
	}
	response.OK(c, result)
}

// MarkRead 标记单条已读
// PUT /api/v1/notifications/:id/read
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}
	if err := h.notificationSvc.MarkRead(c.Request.Context(), c.Param("id"), userID); err != nil {
		h.handleNotificationError(c, err)
		return
	}
	response.OK(c, nil)
}

// MarkUnread 标记单条未读
// PUT /api/v1/notifications/:id/unread
func (h *NotificationHandler) MarkUnread(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}
	if err := h.notificationSvc.MarkUnread(c.Request.Context(), c.Param("id"), userID); err != nil {
		h.handleNotificationError(c, err)
		return
	}
	response.OK(c, nil)
}

// MarkAllRead 全部标记已读
// PUT /api/v1/notifications/read-all
func (h *NotificationHandler) MarkAllRead(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}
	updated, err := h.notificationSvc.MarkAllRead(c.Request.Context(), userID)
	if err != nil {
		h.handleNotificationError(c, err)
		return
	}
	response.OK(c, dto.MarkAllReadResponse{Updated: updated})
}

// DeleteNotification 删除本人的一条投递记录
// DELETE /api/v1/notifications/:id
func (h *NotificationHandler) DeleteNotification(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}
	if err := h.notificationSvc.Delete(c.Request.Context(), c.Param("id"), userID); err != nil {
		h.handleNotificationError(c, err)
		return
	}
	response.OK(c, nil)
}

// Broadcast 管理员发送系统通知
// POST /api/v1/notifications/broadcast
func (h *NotificationHandler) Broadcast(c *gin.Context) {
	var req dto.BroadcastRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	result, err := h.fanoutSvc.Broadcast(c.Request.Context(), &req)
	if err != nil {
		h.handleNotificationError(c, err)
		return
	}
	response.Created(c, result)
}

// Report 导出通知投递报表
// GET /api/v1/notifications/report
func (h *NotificationHandler) Report(c *gin.Context) {
	buf, filename, err := h.reportSvc.ExportDeliveryReport(c.Request.Context())
	if err != nil {
		h.handleNotificationError(c, err)
		return
	}

	encodedFilename := url.QueryEscape(filename)
	c.Header("Content-Description", "File Transfer")
	c.Header("Content-Disposition", "attachment; filename*=UTF-8''"+encodedFilename)
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", buf.Bytes())
}

func (h *NotificationHandler) handleNotificationError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidID):
		response.BadRequest(c, 15001, "无效的通知 ID")
	case errors.Is(err, service.ErrDeliveryNotFound):
		response.NotFound(c, 15002, "通知不存在")
	case errors.Is(err, service.ErrInvalidTargetRule):
		response.BadRequest(c, 15003, "无效的通知受众")
	case errors.Is(err, service.ErrEmptyMessage):
		response.BadRequest(c, 15004, "通知内容不能为空")
	case errors.Is(err, pkgerrors.ErrStorageUnavailable):
		response.ErrorWithDetails(c, http.StatusInternalServerError, 15005, "存储服务暂不可用", "请稍后重试")
	default:
		response.InternalError(c)
	}
}

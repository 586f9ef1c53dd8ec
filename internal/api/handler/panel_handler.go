package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"sorsulyap/backend/internal/dto"
	"sorsulyap/backend/internal/service"
	"sorsulyap/backend/pkg/response"
)

// PanelHandler 通知面板 HTTP 处理器
type PanelHandler struct {
	panelSvc service.PanelService
}

// NewPanelHandler 创建 PanelHandler
func NewPanelHandler(panelSvc service.PanelService) *PanelHandler {
	return &PanelHandler{panelSvc: panelSvc}
}

// GetPanel 渲染当前用户的通知面板
// GET /api/v1/panel
func (h *PanelHandler) GetPanel(c *gin.Context) {
	h.respond(c, func(userID string) (*dto.PanelResponse, error) {
		return h.panelSvc.Render(c.Request.Context(), userID)
	})
}

// ToggleRead 切换面板条目的已读标记
// POST /api/v1/panel/items/:id/toggle-read
func (h *PanelHandler) ToggleRead(c *gin.Context) {
	h.respond(c, func(userID string) (*dto.PanelResponse, error) {
		return h.panelSvc.ToggleRead(c.Request.Context(), userID, c.Param("id"))
	})
}

// ReadAll 面板全部已读
// POST /api/v1/panel/read-all
func (h *PanelHandler) ReadAll(c *gin.Context) {
	h.respond(c, func(userID string) (*dto.PanelResponse, error) {
		return h.panelSvc.MarkAllRead(c.Request.Context(), userID)
	})
}

// RemoveItem 从面板中移除一条通知
// DELETE /api/v1/panel/items/:id
func (h *PanelHandler) RemoveItem(c *gin.Context) {
	h.respond(c, func(userID string) (*dto.PanelResponse, error) {
		return h.panelSvc.Remove(c.Request.Context(), userID, c.Param("id"))
	})
}

func (h *PanelHandler) respond(c *gin.Context, fn func(userID string) (*dto.PanelResponse, error)) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}
	result, err := fn(userID)
	if err != nil {
		h.handlePanelError(c, err)
		return
	}
	response.OK(c, result)
}

func (h *PanelHandler) handlePanelError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrPanelItemNotFound):
		response.NotFound(c, 16001, "面板中不存在该通知")
	default:
		response.InternalError(c)
	}
}

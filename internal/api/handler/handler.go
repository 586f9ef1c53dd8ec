package handler

import "sorsulyap/backend/internal/service"

// Handler 所有 Handler 的聚合入口
type Handler struct {
	Auth         *AuthHandler
	User         *UserHandler
	Event        *EventHandler
	Announcement *AnnouncementHandler
	Notification *NotificationHandler
	Panel        *PanelHandler
}

// NewHandler 创建 Handler 聚合
func NewHandler(svc *service.Service) *Handler {
	return &Handler{
		Auth:         NewAuthHandler(svc.Auth),
		User:         NewUserHandler(svc.User),
		Event:        NewEventHandler(svc.Event),
		Announcement: NewAnnouncementHandler(svc.Announcement),
		Notification: NewNotificationHandler(svc.Notification, svc.Fanout, svc.Report),
		Panel:        NewPanelHandler(svc.Panel),
	}
}

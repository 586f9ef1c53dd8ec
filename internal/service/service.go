package service

import (
	"go.uber.org/zap"

	"sorsulyap/backend/config"
	"sorsulyap/backend/internal/repository"
	"sorsulyap/backend/pkg/jwt"
)

// Service 所有 Service 的聚合入口
type Service struct {
	Auth         AuthService
	User         UserService
	Event        EventService
	Announcement AnnouncementService
	Fanout       FanoutService
	Notification NotificationService
	Panel        PanelService
	Report       ReportService
}

// NewService 创建 Service 聚合
// blacklist 与 slots 在 Redis 不可用时可为 nil
func NewService(
	cfg *config.Config,
	repo *repository.Repository,
	jwtMgr *jwt.Manager,
	blacklist TokenBlacklister,
	slots SlotProvider,
	logger *zap.Logger,
) *Service {
	fanout := NewFanoutService(cfg, repo, logger)
	notifications := NewNotificationService(cfg, repo, logger)

	return &Service{
		Auth:         NewAuthService(cfg, repo, jwtMgr, blacklist, logger),
		User:         NewUserService(repo, logger),
		Event:        NewEventService(cfg, repo, fanout, logger),
		Announcement: NewAnnouncementService(repo, fanout, logger),
		Fanout:       fanout,
		Notification: notifications,
		Panel:        NewPanelService(cfg, repo, notifications, slots, logger),
		Report:       NewReportService(repo, logger),
	}
}

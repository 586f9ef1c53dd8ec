package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"sorsulyap/backend/config"
	"sorsulyap/backend/internal/dto"
	"sorsulyap/backend/internal/model"
	"sorsulyap/backend/internal/repository"
	pkgerrors "sorsulyap/backend/pkg/errors"
)

// ── 通知模块业务错误 ──

var (
	ErrDeliveryNotFound = errors.New("通知不存在")
	ErrInvalidID        = errors.New("无效的 ID")
)

// MaxNotificationListLimit 单次拉取通知的硬上限
const MaxNotificationListLimit = 50

// NotificationService 已读状态追踪接口
//
// 所有变更均先经 ownsDelivery 校验归属：
// 投递记录不存在或不属于调用者时一律返回 ErrDeliveryNotFound，不做任何修改
type NotificationService interface {
	ListForUser(ctx context.Context, userID string, limit int) (*dto.NotificationListResponse, error)
	MarkRead(ctx context.Context, deliveryID, userID string) error
	MarkUnread(ctx context.Context, deliveryID, userID string) error
	MarkAllRead(ctx context.Context, userID string) (int64, error)
	Delete(ctx context.Context, deliveryID, userID string) error
}

type notificationService struct {
	cfg    *config.Config
	repo   *repository.Repository
	logger *zap.Logger
	now    func() time.Time
}

// NewNotificationService 创建 NotificationService 实例
func NewNotificationService(cfg *config.Config, repo *repository.Repository, logger *zap.Logger) NotificationService {
	return &notificationService{cfg: cfg, repo: repo, logger: logger, now: time.Now}
}

// ────────────────────── ListForUser ──────────────────────

func (s *notificationService) ListForUser(ctx context.Context, userID string, limit int) (*dto.NotificationListResponse, error) {
	limit = s.clampLimit(limit)

	deliveries, err := s.repo.Notification.ListForUser(ctx, userID, limit)
	if err != nil {
		s.logger.Error("查询用户通知失败", zap.String("user_id", userID), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", pkgerrors.ErrStorageUnavailable, err)
	}

	// 未读数基于全部投递记录，而非当前页
	unread, err := s.repo.Notification.CountUnread(ctx, userID)
	if err != nil {
		s.logger.Error("统计未读通知失败", zap.String("user_id", userID), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", pkgerrors.ErrStorageUnavailable, err)
	}

	data := make([]dto.DeliveryResponse, 0, len(deliveries))
	for i := range deliveries {
		data = append(data, toDeliveryResponse(&deliveries[i]))
	}

	return &dto.NotificationListResponse{
		Count:       len(data),
		UnreadCount: unread,
		Data:        data,
	}, nil
}

func (s *notificationService) clampLimit(limit int) int {
	def := MaxNotificationListLimit
	if s.cfg != nil && s.cfg.Notification.ListLimit > 0 {
		def = s.cfg.Notification.ListLimit
	}
	if limit <= 0 {
		limit = def
	}
	if limit > MaxNotificationListLimit {
		limit = MaxNotificationListLimit
	}
	return limit
}

// ────────────────────── 归属校验 ──────────────────────

// ownsDelivery 校验投递记录存在且属于 userID
func (s *notificationService) ownsDelivery(ctx context.Context, deliveryID, userID string) error {
	if _, err := uuid.Parse(deliveryID); err != nil {
		return ErrInvalidID
	}
	d, err := s.repo.Notification.GetDelivery(ctx, deliveryID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrDeliveryNotFound
		}
		s.logger.Error("查询投递记录失败", zap.String("id", deliveryID), zap.Error(err))
		return fmt.Errorf("%w: %v", pkgerrors.ErrStorageUnavailable, err)
	}
	if d.UserID != userID {
		s.logger.Warn("拒绝跨用户操作投递记录",
			zap.String("id", deliveryID),
			zap.String("caller", userID),
		)
		return ErrDeliveryNotFound
	}
	return nil
}

// ────────────────────── MarkRead / MarkUnread ──────────────────────

func (s *notificationService) MarkRead(ctx context.Context, deliveryID, userID string) error {
	if err := s.ownsDelivery(ctx, deliveryID, userID); err != nil {
		return err
	}
	affected, err := s.repo.Notification.MarkRead(ctx, deliveryID, userID, s.now())
	return s.checkAffected("标记已读失败", deliveryID, affected, err)
}

func (s *notificationService) MarkUnread(ctx context.Context, deliveryID, userID string) error {
	if err := s.ownsDelivery(ctx, deliveryID, userID); err != nil {
		return err
	}
	affected, err := s.repo.Notification.MarkUnread(ctx, deliveryID, userID)
	return s.checkAffected("标记未读失败", deliveryID, affected, err)
}

// ────────────────────── MarkAllRead ──────────────────────

func (s *notificationService) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	affected, err := s.repo.Notification.MarkAllRead(ctx, userID, s.now())
	if err != nil {
		s.logger.Error("全部标记已读失败", zap.String("user_id", userID), zap.Error(err))
		return 0, fmt.Errorf("%w: %v", pkgerrors.ErrStorageUnavailable, err)
	}
	return affected, nil
}

// ────────────────────── Delete ──────────────────────

// Delete 仅删除调用者自己的投递记录，通知本身及其他收件人不受影响
func (s *notificationService) Delete(ctx context.Context, deliveryID, userID string) error {
	if err := s.ownsDelivery(ctx, deliveryID, userID); err != nil {
		return err
	}
	affected, err := s.repo.Notification.DeleteDelivery(ctx, deliveryID, userID)
	return s.checkAffected("删除投递记录失败", deliveryID, affected, err)
}

// checkAffected 校验与写入之间记录被并发删除时返回 ErrDeliveryNotFound
func (s *notificationService) checkAffected(msg, deliveryID string, affected int64, err error) error {
	if err != nil {
		s.logger.Error(msg, zap.String("id", deliveryID), zap.Error(err))
		return fmt.Errorf("%w: %v", pkgerrors.ErrStorageUnavailable, err)
	}
	if affected == 0 {
		return ErrDeliveryNotFound
	}
	return nil
}

// ── 辅助函数 ──

func toDeliveryResponse(d *model.Delivery) dto.DeliveryResponse {
	resp := dto.DeliveryResponse{
		ID:             d.DeliveryID,
		NotificationID: d.NotificationID,
		ReadStatus:     d.ReadStatus,
	}
	if d.ViewedAt != nil {
		resp.ViewedAt = d.ViewedAt.Format(time.RFC3339)
	}
	if n := d.Notification; n != nil {
		resp.Message = n.Message
		resp.Type = n.Type
		resp.EventID = n.EventID
		resp.AnnouncementID = n.AnnouncementID
		resp.CreatedAt = n.CreatedAt.Format(time.RFC3339)
	}
	return resp
}

package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"sorsulyap/backend/config"
	"sorsulyap/backend/internal/dto"
	"sorsulyap/backend/internal/model"
	"sorsulyap/backend/internal/repository"
	pkgerrors "sorsulyap/backend/pkg/errors"
)

// ── 扇出模块业务错误 ──

var (
	ErrEmptyMessage       = errors.New("通知内容不能为空")
	ErrInvalidContentType = errors.New("无效的内容类型")
)

// 内容来源类型
const (
	ContentTypeEvent        = "event"
	ContentTypeAnnouncement = "announcement"
)

// FanoutResult 一次扇出的结果
// Failed > 0 属于部分失败：已记录日志，通知本身仍视为创建成功
type FanoutResult struct {
	NotificationID string
	Recipients     int
	Delivered      int
	Failed         int
}

// ContentCreated 活动/公告创建后的扇出触发参数
type ContentCreated struct {
	ContentID      string
	ContentType    string // event | announcement
	Title          string
	TargetAudience string
	TargetProgram  *string
}

// FanoutService 通知扇出接口
type FanoutService interface {
	// FanOut 解析收件人，写入通知，再为每个收件人并发写入一条投递记录
	FanOut(ctx context.Context, n *model.Notification, rule TargetRule) (*FanoutResult, error)
	// OnContentCreated 活动/公告提交后调用
	OnContentCreated(ctx context.Context, evt ContentCreated) (*FanoutResult, error)
	// Broadcast 管理员发送系统通知（批量写入投递记录）
	Broadcast(ctx context.Context, req *dto.BroadcastRequest) (*dto.FanoutResponse, error)
}

type fanoutService struct {
	cfg    *config.Config
	repo   *repository.Repository
	logger *zap.Logger
}

// NewFanoutService 创建 FanoutService 实例
func NewFanoutService(cfg *config.Config, repo *repository.Repository, logger *zap.Logger) FanoutService {
	return &fanoutService{cfg: cfg, repo: repo, logger: logger}
}

// ═══════════════════════════════════════════════════════════
// FanOut
// ═══════════════════════════════════════════════════════════
//
// 顺序：校验规则 → 解析收件人（一次读）→ 写入通知 → N 条投递并发写入
// 每条投递独立成功或失败，失败仅记录日志，不重试，不回滚通知

func (s *fanoutService) FanOut(ctx context.Context, n *model.Notification, rule TargetRule) (*FanoutResult, error) {
	if err := rule.Validate(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(n.Message) == "" {
		return nil, ErrEmptyMessage
	}

	recipients, err := s.repo.User.ListActiveRecipientIDs(ctx, rule.Filter())
	if err != nil {
		s.logger.Error("解析通知收件人失败", zap.String("audience", rule.Audience), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", pkgerrors.ErrStorageUnavailable, err)
	}

	if err := s.repo.Notification.CreateNotification(ctx, n); err != nil {
		s.logger.Error("创建通知失败", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", pkgerrors.ErrStorageUnavailable, err)
	}

	result := &FanoutResult{NotificationID: n.NotificationID, Recipients: len(recipients)}
	if len(recipients) == 0 {
		return result, nil
	}

	// 通知已落库，投递写入不再跟随调用方取消
	deliverCtx := context.WithoutCancel(ctx)

	var delivered, failed atomic.Int64
	var g errgroup.Group
	g.SetLimit(s.concurrency())
	for _, userID := range recipients {
		userID := userID
		g.Go(func() error {
			d := &model.Delivery{UserID: userID, NotificationID: n.NotificationID}
			if err := s.repo.Notification.CreateDelivery(deliverCtx, d); err != nil {
				failed.Add(1)
				s.logger.Warn("投递记录写入失败",
					zap.String("notification_id", n.NotificationID),
					zap.String("user_id", userID),
					zap.Error(err),
				)
				return nil
			}
			delivered.Add(1)
			return nil
		})
	}
	_ = g.Wait()

	result.Delivered = int(delivered.Load())
	result.Failed = int(failed.Load())
	if result.Failed > 0 {
		s.logger.Warn("通知部分投递失败",
			zap.String("notification_id", n.NotificationID),
			zap.Int("recipients", result.Recipients),
			zap.Int("failed", result.Failed),
		)
	}
	s.logger.Info("通知扇出完成",
		zap.String("notification_id", n.NotificationID),
		zap.String("type", n.Type),
		zap.String("audience", rule.Audience),
		zap.Int("delivered", result.Delivered),
	)
	return result, nil
}

func (s *fanoutService) concurrency() int {
	if s.cfg == nil || s.cfg.Notification.FanoutConcurrency <= 0 {
		return 8
	}
	return s.cfg.Notification.FanoutConcurrency
}

// ────────────────────── OnContentCreated ──────────────────────

func (s *fanoutService) OnContentCreated(ctx context.Context, evt ContentCreated) (*FanoutResult, error) {
	// 源记录已提交，扇出与请求生命周期解绑
	ctx = context.WithoutCancel(ctx)

	rule, err := NewTargetRule(evt.TargetAudience, evt.TargetProgram)
	if err != nil {
		return nil, err
	}

	n := &model.Notification{}
	switch evt.ContentType {
	case ContentTypeEvent:
		n.Type = model.NotificationTypeEvent
		n.Message = "New event: " + evt.Title
		n.EventID = &evt.ContentID
	case ContentTypeAnnouncement:
		n.Type = model.NotificationTypeAnnouncement
		n.Message = "New announcement: " + evt.Title
		n.AnnouncementID = &evt.ContentID
	default:
		return nil, ErrInvalidContentType
	}

	return s.FanOut(ctx, n, rule)
}

// ────────────────────── Broadcast ──────────────────────

func (s *fanoutService) Broadcast(ctx context.Context, req *dto.BroadcastRequest) (*dto.FanoutResponse, error) {
	rule, err := NewTargetRule(req.TargetAudience, req.TargetProgram)
	if err != nil {
		return nil, err
	}
	message := strings.TrimSpace(req.Message)
	if message == "" {
		return nil, ErrEmptyMessage
	}

	recipients, err := s.repo.User.ListActiveRecipientIDs(ctx, rule.Filter())
	if err != nil {
		s.logger.Error("解析广播收件人失败", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", pkgerrors.ErrStorageUnavailable, err)
	}

	n := &model.Notification{Message: message, Type: model.NotificationTypeSystem}
	if err := s.repo.Notification.CreateNotification(ctx, n); err != nil {
		s.logger.Error("创建系统通知失败", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", pkgerrors.ErrStorageUnavailable, err)
	}

	deliveries := make([]*model.Delivery, 0, len(recipients))
	for _, userID := range recipients {
		deliveries = append(deliveries, &model.Delivery{UserID: userID, NotificationID: n.NotificationID})
	}

	resp := &dto.FanoutResponse{NotificationID: n.NotificationID, Recipients: len(recipients)}
	inserted, err := s.repo.Notification.BulkCreateDeliveries(context.WithoutCancel(ctx), deliveries)
	if err != nil {
		// 批量写入失败不回滚通知
		s.logger.Warn("系统通知批量投递失败",
			zap.String("notification_id", n.NotificationID),
			zap.Int("recipients", len(recipients)),
			zap.Error(err),
		)
		resp.Failed = len(recipients)
		return resp, nil
	}
	resp.Delivered = int(inserted)
	resp.Failed = len(recipients) - int(inserted)

	s.logger.Info("系统通知已广播",
		zap.String("notification_id", n.NotificationID),
		zap.String("audience", rule.Audience),
		zap.Int("delivered", resp.Delivered),
	)
	return resp, nil
}

// ToFanoutResponse 转换为响应 DTO
func ToFanoutResponse(r *FanoutResult) *dto.FanoutResponse {
	if r == nil {
		return nil
	}
	return &dto.FanoutResponse{
		NotificationID: r.NotificationID,
		Recipients:     r.Recipients,
		Delivered:      r.Delivered,
		Failed:         r.Failed,
	}
}

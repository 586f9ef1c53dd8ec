package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"sorsulyap/backend/config"
	"sorsulyap/backend/internal/dto"
	"sorsulyap/backend/internal/model"
	"sorsulyap/backend/internal/panel"
	"sorsulyap/backend/internal/repository"
	pkgerrors "sorsulyap/backend/pkg/errors"
)

var ErrPanelItemNotFound = errors.New("面板中不存在该通知")

// SlotProvider 返回绑定请求上下文的面板存储槽位
type SlotProvider func(ctx context.Context) panel.Storage

// MemorySlots 进程内槽位，Redis 不可用时使用
func MemorySlots() SlotProvider {
	mem := panel.NewMemoryStorage()
	return func(context.Context) panel.Storage { return mem }
}

// PanelService 服务端托管的通知面板
//
// 每个用户一个槽位（<storage_key>:<user_id>）。槽位为空时用服务端投递记录初始化，
// 之后槽位即面板的本地缓存，不再与服务端对账。
// 同一用户的读-改-写在进程内串行；多实例部署共享 Redis 槽位时仍可能覆盖
type PanelService interface {
	Render(ctx context.Context, userID string) (*dto.PanelResponse, error)
	ToggleRead(ctx context.Context, userID, itemID string) (*dto.PanelResponse, error)
	// MarkAllRead 面板全部已读，并同步到服务端投递记录
	MarkAllRead(ctx context.Context, userID string) (*dto.PanelResponse, error)
	Remove(ctx context.Context, userID, itemID string) (*dto.PanelResponse, error)
}

type panelService struct {
	cfg           *config.Config
	repo          *repository.Repository
	notifications NotificationService
	slots         SlotProvider
	logger        *zap.Logger

	locks sync.Map // user_id → *sync.Mutex
}

// NewPanelService 创建 PanelService 实例
func NewPanelService(
	cfg *config.Config,
	repo *repository.Repository,
	notifications NotificationService,
	slots SlotProvider,
	logger *zap.Logger,
) PanelService {
	if slots == nil {
		slots = MemorySlots()
	}
	return &panelService{
		cfg:           cfg,
		repo:          repo,
		notifications: notifications,
		slots:         slots,
		logger:        logger,
	}
}

func (s *panelService) Render(ctx context.Context, userID string) (*dto.PanelResponse, error) {
	defer s.lockUser(userID)()

	p, err := s.open(ctx, userID)
	if err != nil {
		return nil, err
	}
	defer p.Destroy()
	return toPanelResponse(p.Render(), p.Badge()), nil
}

func (s *panelService) ToggleRead(ctx context.Context, userID, itemID string) (*dto.PanelResponse, error) {
	defer s.lockUser(userID)()

	p, err := s.open(ctx, userID)
	if err != nil {
		return nil, err
	}
	defer p.Destroy()

	if _, err := p.ToggleRead(itemID); err != nil {
		return nil, s.mapPanelError(err)
	}
	return toPanelResponse(p.View(), p.Badge()), nil
}

func (s *panelService) MarkAllRead(ctx context.Context, userID string) (*dto.PanelResponse, error) {
	defer s.lockUser(userID)()

	p, err := s.openWith(ctx, userID, func(records []panel.Record) {
		if _, err := s.notifications.MarkAllRead(ctx, userID); err != nil {
			s.logger.Warn("面板全部已读同步服务端失败", zap.String("user_id", userID), zap.Error(err))
		}
	})
	if err != nil {
		return nil, err
	}
	defer p.Destroy()

	if err := p.MarkAllAsRead(); err != nil {
		return nil, s.mapPanelError(err)
	}
	return toPanelResponse(p.View(), p.Badge()), nil
}

func (s *panelService) Remove(ctx context.Context, userID, itemID string) (*dto.PanelResponse, error) {
	defer s.lockUser(userID)()

	p, err := s.open(ctx, userID)
	if err != nil {
		return nil, err
	}
	defer p.Destroy()

	if err := p.RemoveNotification(itemID); err != nil {
		return nil, s.mapPanelError(err)
	}
	return toPanelResponse(p.View(), p.Badge()), nil
}

// ── 面板装配 ──

// lockUser 串行化同一用户的槽位读写，返回解锁函数
func (s *panelService) lockUser(userID string) func() {
	v, _ := s.locks.LoadOrStore(userID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

func (s *panelService) open(ctx context.Context, userID string) (*panel.Panel, error) {
	return s.openWith(ctx, userID, nil)
}

func (s *panelService) openWith(ctx context.Context, userID string, onMarkAllRead func([]panel.Record)) (*panel.Panel, error) {
	storage := s.slots(ctx)
	key := fmt.Sprintf("%s:%s", s.cfg.Panel.StorageKey, userID)

	_, found, err := storage.Load(key)
	if err != nil {
		s.logger.Error("读取面板槽位失败", zap.String("key", key), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", pkgerrors.ErrStorageUnavailable, err)
	}

	var seed []panel.Record
	if !found {
		seed, err = s.seedRecords(ctx, userID)
		if err != nil {
			return nil, err
		}
	}

	p := panel.New(panel.Options{
		Storage:       storage,
		StorageKey:    key,
		MaxItems:      s.cfg.Panel.MaxItems,
		Seed:          seed,
		OnMarkAllRead: onMarkAllRead,
		Logger:        s.logger,
	})
	if err := p.Init(); err != nil {
		s.logger.Error("初始化通知面板失败", zap.String("user_id", userID), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", pkgerrors.ErrStorageUnavailable, err)
	}
	return p, nil
}

// seedRecords 首次打开面板时取服务端最近的投递记录
func (s *panelService) seedRecords(ctx context.Context, userID string) ([]panel.Record, error) {
	deliveries, err := s.repo.Notification.ListForUser(ctx, userID, MaxNotificationListLimit)
	if err != nil {
		s.logger.Error("加载面板初始通知失败", zap.String("user_id", userID), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", pkgerrors.ErrStorageUnavailable, err)
	}
	records := make([]panel.Record, 0, len(deliveries))
	for i := range deliveries {
		records = append(records, deliveryToRecord(&deliveries[i]))
	}
	return records, nil
}

func (s *panelService) mapPanelError(err error) error {
	if errors.Is(err, panel.ErrItemNotFound) {
		return ErrPanelItemNotFound
	}
	return fmt.Errorf("%w: %v", pkgerrors.ErrStorageUnavailable, err)
}

// ── 转换 ──

func deliveryToRecord(d *model.Delivery) panel.Record {
	rec := panel.Record{
		ID:     d.DeliveryID,
		Admin:  panel.DefaultAdmin,
		Read:   d.ReadStatus,
		Avatar: panel.DefaultAvatar,
	}
	n := d.Notification
	if n == nil {
		return rec
	}
	rec.Description = n.Message
	rec.Timestamp = n.CreatedAt.UnixMilli()
	switch n.Type {
	case model.NotificationTypeEvent:
		rec.Title = "New Event"
		rec.Avatar = "fa-calendar"
	case model.NotificationTypeAnnouncement:
		rec.Title = "New Announcement"
		rec.Avatar = "fa-bullhorn"
	default:
		rec.Title = "System Notice"
	}
	return rec
}

func toPanelResponse(view panel.View, badge panel.Badge) *dto.PanelResponse {
	items := make([]dto.PanelItemResponse, 0, len(view.Items))
	for _, it := range view.Items {
		items = append(items, dto.PanelItemResponse{
			ID:          it.ID,
			Admin:       it.Admin,
			Title:       it.Title,
			Description: it.Description,
			Read:        it.Read,
			Avatar:      it.Avatar,
			TimeAgo:     it.TimeAgo,
			Timestamp:   it.Timestamp,
		})
	}
	return &dto.PanelResponse{
		Items:           items,
		Empty:           view.Empty,
		Placeholder:     view.Placeholder,
		MarkAllDisabled: view.MarkAllDisabled,
		Badge: dto.BadgeResponse{
			Count:   badge.Count,
			Text:    badge.Text,
			Visible: badge.Visible,
		},
	}
}

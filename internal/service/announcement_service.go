package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"sorsulyap/backend/internal/dto"
	"sorsulyap/backend/internal/model"
	"sorsulyap/backend/internal/repository"
	pkgerrors "sorsulyap/backend/pkg/errors"
)

var ErrAnnouncementNotFound = errors.New("公告不存在")

// AnnouncementService 公告业务接口
type AnnouncementService interface {
	List(ctx context.Context, req *dto.AnnouncementListRequest) ([]dto.AnnouncementResponse, int64, error)
	GetByID(ctx context.Context, id string) (*dto.AnnouncementResponse, error)
	Create(ctx context.Context, req *dto.CreateAnnouncementRequest, callerID string) (*dto.CreateAnnouncementResponse, error)
	Update(ctx context.Context, id string, req *dto.UpdateAnnouncementRequest) (*dto.AnnouncementResponse, error)
	Delete(ctx context.Context, id string) error
}

type announcementService struct {
	repo   *repository.Repository
	fanout FanoutService
	logger *zap.Logger
}

// NewAnnouncementService 创建 AnnouncementService 实例
func NewAnnouncementService(repo *repository.Repository, fanout FanoutService, logger *zap.Logger) AnnouncementService {
	return &announcementService{repo: repo, fanout: fanout, logger: logger}
}

func (s *announcementService) List(ctx context.Context, req *dto.AnnouncementListRequest) ([]dto.AnnouncementResponse, int64, error) {
	list, total, err := s.repo.Announcement.List(ctx, req.GetOffset(), req.GetPageSize())
	if err != nil {
		s.logger.Error("查询公告列表失败", zap.Error(err))
		return nil, 0, err
	}
	result := make([]dto.AnnouncementResponse, 0, len(list))
	for i := range list {
		result = append(result, toAnnouncementResponse(&list[i]))
	}
	return result, total, nil
}

func (s *announcementService) GetByID(ctx context.Context, id string) (*dto.AnnouncementResponse, error) {
	a, err := s.getAnnouncement(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := toAnnouncementResponse(a)
	return &resp, nil
}

func (s *announcementService) getAnnouncement(ctx context.Context, id string) (*model.Announcement, error) {
	a, err := s.repo.Announcement.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAnnouncementNotFound
		}
		s.logger.Error("查询公告失败", zap.String("id", id), zap.Error(err))
		return nil, err
	}
	return a, nil
}

// ────────────────────── Create ──────────────────────

func (s *announcementService) Create(ctx context.Context, req *dto.CreateAnnouncementRequest, callerID string) (*dto.CreateAnnouncementResponse, error) {
	rule, err := NewTargetRule(req.TargetAudience, req.TargetProgram)
	if err != nil {
		return nil, err
	}

	a := &model.Announcement{
		Title:          strings.TrimSpace(req.Title),
		Content:        req.Content,
		TargetAudience: rule.Audience,
		TargetProgram:  rule.ProgramPtr(),
		CreatedBy:      callerID,
	}
	if err := s.repo.Announcement.Create(ctx, a); err != nil {
		s.logger.Error("创建公告失败", zap.Error(err))
		return nil, err
	}

	resp := &dto.CreateAnnouncementResponse{Announcement: toAnnouncementResponse(a)}
	result, err := s.fanout.OnContentCreated(ctx, ContentCreated{
		ContentID:      a.AnnouncementID,
		ContentType:    ContentTypeAnnouncement,
		Title:          a.Title,
		TargetAudience: a.TargetAudience,
		TargetProgram:  a.TargetProgram,
	})
	if err != nil {
		s.logger.Warn("公告通知扇出失败", zap.String("announcement_id", a.AnnouncementID), zap.Error(err))
		return resp, nil
	}
	resp.Fanout = ToFanoutResponse(result)
	return resp, nil
}

// ────────────────────── Update ──────────────────────

func (s *announcementService) Update(ctx context.Context, id string, req *dto.UpdateAnnouncementRequest) (*dto.AnnouncementResponse, error) {
	a, err := s.getAnnouncement(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Version != a.Version {
		return nil, pkgerrors.ErrOptimisticLock
	}

	if req.Title != nil {
		a.Title = strings.TrimSpace(*req.Title)
	}
	if req.Content != nil {
		a.Content = *req.Content
	}
	if req.TargetAudience != nil || req.TargetProgram != nil {
		audience := a.TargetAudience
		if req.TargetAudience != nil {
			audience = *req.TargetAudience
		}
		program := a.TargetProgram
		if req.TargetProgram != nil {
			program = req.TargetProgram
		}
		rule, err := NewTargetRule(audience, program)
		if err != nil {
			return nil, err
		}
		a.TargetAudience = rule.Audience
		a.TargetProgram = rule.ProgramPtr()
	}

	if err := s.repo.Announcement.Update(ctx, a); err != nil {
		if !errors.Is(err, pkgerrors.ErrOptimisticLock) {
			s.logger.Error("更新公告失败", zap.String("id", id), zap.Error(err))
		}
		return nil, err
	}
	resp := toAnnouncementResponse(a)
	return &resp, nil
}

// ────────────────────── Delete ──────────────────────

func (s *announcementService) Delete(ctx context.Context, id string) error {
	if _, err := s.getAnnouncement(ctx, id); err != nil {
		return err
	}
	err := s.repo.Transaction(ctx, func(txRepo *repository.Repository) error {
		if _, err := txRepo.Notification.DeleteBySource(ctx, repository.SourceAnnouncement, id); err != nil {
			return err
		}
		return txRepo.Announcement.Delete(ctx, id)
	})
	if err != nil {
		s.logger.Error("删除公告失败", zap.String("id", id), zap.Error(err))
		return err
	}
	s.logger.Info("公告已删除", zap.String("id", id))
	return nil
}

func toAnnouncementResponse(a *model.Announcement) dto.AnnouncementResponse {
	resp := dto.AnnouncementResponse{
		ID:             a.AnnouncementID,
		Title:          a.Title,
		Content:        a.Content,
		TargetAudience: a.TargetAudience,
		TargetProgram:  a.TargetProgram,
		CreatedBy:      a.CreatedBy,
		Version:        a.Version,
		CreatedAt:      a.CreatedAt.Format(time.RFC3339),
		UpdatedAt:      a.UpdatedAt.Format(time.RFC3339),
	}
	if a.Creator != nil {
		resp.CreatorName = a.Creator.Name
	}
	return resp
}

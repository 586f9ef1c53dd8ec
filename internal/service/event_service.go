package service

import (
	"context"
	"errors"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"sorsulyap/backend/config"
	"sorsulyap/backend/internal/dto"
	"sorsulyap/backend/internal/model"
	"sorsulyap/backend/internal/repository"
	pkgerrors "sorsulyap/backend/pkg/errors"
)

// ── 活动模块业务错误 ──

var (
	ErrEventNotFound    = errors.New("活动不存在")
	ErrInvalidEventDate = errors.New("活动日期格式错误，应为 YYYY-MM-DD")
	ErrInvalidEventTime = errors.New("活动时间格式错误，应为 HH:MM")
)

const (
	dateLayout = "2006-01-02"
	timeLayout = "15:04"

	eventStatusUpcoming = "Upcoming"
	// icsDefaultDuration 带时间的活动在日历中的默认时长
	icsDefaultDuration = time.Hour
)

// EventService 活动业务接口
type EventService interface {
	// List 列出今天及以后的活动
	List(ctx context.Context) ([]dto.EventResponse, error)
	GetByID(ctx context.Context, id string) (*dto.EventResponse, error)
	// Create 创建活动并触发通知扇出，扇出失败不影响活动创建
	Create(ctx context.Context, req *dto.CreateEventRequest, callerID string) (*dto.CreateEventResponse, error)
	Update(ctx context.Context, id string, req *dto.UpdateEventRequest) (*dto.EventResponse, error)
	// Delete 删除活动，并级联删除其通知与投递记录
	Delete(ctx context.Context, id string) error
	// ExportICS 导出即将举行的活动为 iCalendar
	ExportICS(ctx context.Context) ([]byte, error)
}

type eventService struct {
	repo   *repository.Repository
	fanout FanoutService
	logger *zap.Logger
	loc    *time.Location
	now    func() time.Time
}

// NewEventService 创建 EventService 实例
func NewEventService(cfg *config.Config, repo *repository.Repository, fanout FanoutService, logger *zap.Logger) EventService {
	return &eventService{
		repo:   repo,
		fanout: fanout,
		logger: logger,
		loc:    loadLocation(cfg),
		now:    time.Now,
	}
}

// ────────────────────── List / GetByID ──────────────────────

func (s *eventService) List(ctx context.Context) ([]dto.EventResponse, error) {
	now := s.now().In(s.loc)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.loc)

	events, err := s.repo.Event.ListUpcoming(ctx, today)
	if err != nil {
		s.logger.Error("查询活动列表失败", zap.Error(err))
		return nil, err
	}

	result := make([]dto.EventResponse, 0, len(events))
	for i := range events {
		result = append(result, toEventResponse(&events[i]))
	}
	return result, nil
}

func (s *eventService) GetByID(ctx context.Context, id string) (*dto.EventResponse, error) {
	event, err := s.getEvent(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := toEventResponse(event)
	return &resp, nil
}

func (s *eventService) getEvent(ctx context.Context, id string) (*model.Event, error) {
	event, err := s.repo.Event.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrEventNotFound
		}
		s.logger.Error("查询活动失败", zap.String("id", id), zap.Error(err))
		return nil, err
	}
	return event, nil
}

// ────────────────────── Create ──────────────────────

func (s *eventService) Create(ctx context.Context, req *dto.CreateEventRequest, callerID string) (*dto.CreateEventResponse, error) {
	// 定向规则在任何写入之前校验
	rule, err := NewTargetRule(req.TargetAudience, req.TargetProgram)
	if err != nil {
		return nil, err
	}
	date, err := parseEventDate(req.Date, s.loc)
	if err != nil {
		return nil, err
	}
	eventTime, err := normalizeEventTime(req.Time)
	if err != nil {
		return nil, err
	}

	event := &model.Event{
		EventName:      strings.TrimSpace(req.EventName),
		Description:    req.Description,
		EventDate:      date,
		EventTime:      eventTime,
		Location:       strings.TrimSpace(req.Location),
		Status:         eventStatusUpcoming,
		TargetAudience: rule.Audience,
		TargetProgram:  rule.ProgramPtr(),
		CreatedBy:      callerID,
	}
	if err := s.repo.Event.Create(ctx, event); err != nil {
		s.logger.Error("创建活动失败", zap.Error(err))
		return nil, err
	}

	s.logger.Info("活动已创建",
		zap.String("event_id", event.EventID),
		zap.String("created_by", callerID),
	)

	resp := &dto.CreateEventResponse{Event: toEventResponse(event)}
	result, err := s.fanout.OnContentCreated(ctx, ContentCreated{
		ContentID:      event.EventID,
		ContentType:    ContentTypeEvent,
		Title:          event.EventName,
		TargetAudience: event.TargetAudience,
		TargetProgram:  event.TargetProgram,
	})
	if err != nil {
		s.logger.Warn("活动通知扇出失败", zap.String("event_id", event.EventID), zap.Error(err))
		return resp, nil
	}
	resp.Fanout = ToFanoutResponse(result)
	return resp, nil
}

// ────────────────────── Update ──────────────────────

func (s *eventService) Update(ctx context.Context, id string, req *dto.UpdateEventRequest) (*dto.EventResponse, error) {
	event, err := s.getEvent(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Version != event.Version {
		return nil, pkgerrors.ErrOptimisticLock
	}

	if req.EventName != nil {
		event.EventName = strings.TrimSpace(*req.EventName)
	}
	if req.Description != nil {
		event.Description = *req.Description
	}
	if req.Date != nil {
		date, err := parseEventDate(*req.Date, s.loc)
		if err != nil {
			return nil, err
		}
		event.EventDate = date
	}
	if req.Time != nil {
		t, err := normalizeEventTime(req.Time)
		if err != nil {
			return nil, err
		}
		event.EventTime = t
	}
	if req.Location != nil {
		event.Location = strings.TrimSpace(*req.Location)
	}
	if req.Status != nil {
		event.Status = *req.Status
	}
	if req.TargetAudience != nil || req.TargetProgram != nil {
		audience := event.TargetAudience
		if req.TargetAudience != nil {
			audience = *req.TargetAudience
		}
		program := event.TargetProgram
		if req.TargetProgram != nil {
			program = req.TargetProgram
		}
		rule, err := NewTargetRule(audience, program)
		if err != nil {
			return nil, err
		}
		event.TargetAudience = rule.Audience
		event.TargetProgram = rule.ProgramPtr()
	}

	if err := s.repo.Event.Update(ctx, event); err != nil {
		if !errors.Is(err, pkgerrors.ErrOptimisticLock) {
			s.logger.Error("更新活动失败", zap.String("id", id), zap.Error(err))
		}
		return nil, err
	}

	resp := toEventResponse(event)
	return &resp, nil
}

// ────────────────────── Delete ──────────────────────

func (s *eventService) Delete(ctx context.Context, id string) error {
	if _, err := s.getEvent(ctx, id); err != nil {
		return err
	}

	var removed int64
	err := s.repo.Transaction(ctx, func(txRepo *repository.Repository) error {
		n, err := txRepo.Notification.DeleteBySource(ctx, repository.SourceEvent, id)
		if err != nil {
			return err
		}
		removed = n
		return txRepo.Event.Delete(ctx, id)
	})
	if err != nil {
		s.logger.Error("删除活动失败", zap.String("id", id), zap.Error(err))
		return err
	}

	s.logger.Info("活动已删除", zap.String("id", id), zap.Int64("notifications_removed", removed))
	return nil
}

// ═══════════════════════════════════════════════════════════
// ExportICS 导出 iCalendar
// ═══════════════════════════════════════════════════════════

func (s *eventService) ExportICS(ctx context.Context) ([]byte, error) {
	events, err := s.List(ctx)
	if err != nil {
		return nil, err
	}

	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId("-//SorSUlyap//Campus Events//EN")
	cal.SetXWRCalName("SorSUlyap Events")

	stamp := s.now().UTC()
	for _, e := range events {
		vevent := cal.AddEvent(e.ID + "@sorsulyap")
		vevent.SetDtStampTime(stamp)
		vevent.SetSummary(e.EventName)
		vevent.SetLocation(e.Location)
		if e.Description != "" {
			vevent.SetDescription(e.Description)
		}

		date, err := time.ParseInLocation(dateLayout, e.Date, s.loc)
		if err != nil {
			s.logger.Warn("跳过日期无效的活动", zap.String("id", e.ID), zap.String("date", e.Date))
			continue
		}
		if e.Time != nil {
			start, err := time.ParseInLocation(dateLayout+" "+timeLayout, e.Date+" "+*e.Time, s.loc)
			if err == nil {
				vevent.SetStartAt(start)
				vevent.SetEndAt(start.Add(icsDefaultDuration))
				continue
			}
		}
		vevent.SetAllDayStartAt(date)
		vevent.SetAllDayEndAt(date.AddDate(0, 0, 1))
	}

	return []byte(cal.Serialize()), nil
}

// ── 辅助函数 ──

func loadLocation(cfg *config.Config) *time.Location {
	if cfg == nil || cfg.Database.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(cfg.Database.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func parseEventDate(value string, loc *time.Location) (time.Time, error) {
	date, err := time.ParseInLocation(dateLayout, strings.TrimSpace(value), loc)
	if err != nil {
		return time.Time{}, ErrInvalidEventDate
	}
	return date, nil
}

// normalizeEventTime 空字符串视为未设置时间
func normalizeEventTime(value *string) (*string, error) {
	if value == nil {
		return nil, nil
	}
	v := strings.TrimSpace(*value)
	if v == "" {
		return nil, nil
	}
	// 兼容 HH:MM:SS
	if len(v) == len("15:04:05") {
		v = v[:5]
	}
	t, err := time.Parse(timeLayout, v)
	if err != nil {
		return nil, ErrInvalidEventTime
	}
	out := t.Format(timeLayout)
	return &out, nil
}

func toEventResponse(e *model.Event) dto.EventResponse {
	resp := dto.EventResponse{
		ID:             e.EventID,
		EventName:      e.EventName,
		Description:    e.Description,
		Date:           e.EventDate.Format(dateLayout),
		Time:           e.EventTime,
		Location:       e.Location,
		Status:         e.Status,
		TargetAudience: e.TargetAudience,
		TargetProgram:  e.TargetProgram,
		CreatedBy:      e.CreatedBy,
		Version:        e.Version,
		CreatedAt:      e.CreatedAt.Format(time.RFC3339),
		UpdatedAt:      e.UpdatedAt.Format(time.RFC3339),
	}
	if e.Creator != nil {
		resp.CreatorName = e.Creator.Name
	}
	return resp
}

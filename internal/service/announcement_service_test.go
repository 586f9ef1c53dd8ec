package service

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"sorsulyap/backend/internal/dto"
	pkgerrors "sorsulyap/backend/pkg/errors"
)

func setupTestAnnouncementService() (AnnouncementService, *mockRepos) {
	repo, mocks := newMockRepository()
	fanout := NewFanoutService(testConfig(), repo, zap.NewNop())
	return NewAnnouncementService(repo, fanout, zap.NewNop()), mocks
}

func TestAnnouncementCreate_FansOut(t *testing.T) {
	svc, mocks := setupTestAnnouncementService()
	seedCampus(mocks)

	resp, err := svc.Create(context.Background(), &dto.CreateAnnouncementRequest{
		Title:          " Class suspension ",
		Content:        "Classes are suspended due to the typhoon.",
		TargetAudience: AudienceStudents,
	}, "a1")
	if err != nil {
		t.Fatalf("Create 应成功: %v", err)
	}
	if resp.Announcement.Title != "Class suspension" || resp.Announcement.Version != 1 {
		t.Errorf("公告内容不符: %+v", resp.Announcement)
	}
	if resp.Fanout == nil || resp.Fanout.Delivered != 2 {
		t.Fatalf("期望投递给 2 名活跃学生，实际=%+v", resp.Fanout)
	}
	if len(mocks.notification.deliveriesFor("s3")) != 0 {
		t.Error("停用学生不应收到通知")
	}
}

func TestAnnouncementCreate_InvalidRule(t *testing.T) {
	svc, mocks := setupTestAnnouncementService()

	_, err := svc.Create(context.Background(), &dto.CreateAnnouncementRequest{
		Title:          "x",
		Content:        "x",
		TargetAudience: AudienceSpecificProgram,
		TargetProgram:  strPtr(""),
	}, "a1")
	if !errors.Is(err, ErrInvalidTargetRule) {
		t.Errorf("期望 ErrInvalidTargetRule，实际: %v", err)
	}
	if len(mocks.announcement.items) != 0 {
		t.Error("规则无效时不应写入公告")
	}
}

func TestAnnouncementUpdate(t *testing.T) {
	svc, _ := setupTestAnnouncementService()
	created, _ := svc.Create(context.Background(), &dto.CreateAnnouncementRequest{
		Title: "Enrollment", Content: "Opens Monday", TargetAudience: AudienceAll,
	}, "a1")

	updated, err := svc.Update(context.Background(), created.Announcement.ID, &dto.UpdateAnnouncementRequest{
		TargetAudience: strPtr(AudienceSpecificProgram),
		TargetProgram:  strPtr("IT"),
		Version:        1,
	})
	if err != nil {
		t.Fatalf("Update 应成功: %v", err)
	}
	if updated.TargetAudience != AudienceSpecificProgram || updated.TargetProgram == nil || *updated.TargetProgram != "IT" {
		t.Errorf("定向规则未更新: %+v", updated)
	}

	_, err = svc.Update(context.Background(), created.Announcement.ID, &dto.UpdateAnnouncementRequest{Version: 1})
	if !errors.Is(err, pkgerrors.ErrOptimisticLock) {
		t.Errorf("期望 ErrOptimisticLock，实际: %v", err)
	}

	_, err = svc.Update(context.Background(), created.Announcement.ID, &dto.UpdateAnnouncementRequest{
		TargetAudience: strPtr(AudienceSpecificProgram),
		TargetProgram:  strPtr(" "),
		Version:        2,
	})
	if !errors.Is(err, ErrInvalidTargetRule) {
		t.Errorf("期望 ErrInvalidTargetRule，实际: %v", err)
	}
}

func TestAnnouncementDelete_Cascade(t *testing.T) {
	svc, mocks := setupTestAnnouncementService()
	seedCampus(mocks)
	created, _ := svc.Create(context.Background(), &dto.CreateAnnouncementRequest{
		Title: "Enrollment", Content: "Opens Monday", TargetAudience: AudienceAll,
	}, "a1")

	if err := svc.Delete(context.Background(), created.Announcement.ID); err != nil {
		t.Fatalf("Delete 应成功: %v", err)
	}
	if len(mocks.notification.notifications) != 0 || len(mocks.notification.deliveries) != 0 {
		t.Error("公告通知及投递记录应被级联删除")
	}
	if _, err := svc.GetByID(context.Background(), created.Announcement.ID); !errors.Is(err, ErrAnnouncementNotFound) {
		t.Errorf("期望 ErrAnnouncementNotFound，实际: %v", err)
	}
}

func TestAnnouncementList(t *testing.T) {
	svc, _ := setupTestAnnouncementService()
	for _, title := range []string{"One", "Two", "Three"} {
		_, _ = svc.Create(context.Background(), &dto.CreateAnnouncementRequest{
			Title: title, Content: "c", TargetAudience: AudienceAll,
		}, "a1")
	}

	list, total, err := svc.List(context.Background(), &dto.AnnouncementListRequest{
		PaginationRequest: dto.PaginationRequest{Page: 1, PageSize: 2},
	})
	if err != nil {
		t.Fatalf("List 应成功: %v", err)
	}
	if total != 3 || len(list) != 2 {
		t.Errorf("期望 total=3 本页 2 条，实际 total=%d len=%d", total, len(list))
	}
}

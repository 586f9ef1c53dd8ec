package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"go.uber.org/zap"

	"sorsulyap/backend/config"
	"sorsulyap/backend/internal/dto"
	"sorsulyap/backend/internal/model"
	pkgerrors "sorsulyap/backend/pkg/errors"
)

func testConfig() *config.Config {
	return &config.Config{
		Notification: config.NotificationConfig{FanoutConcurrency: 4, ListLimit: 50},
		Panel:        config.PanelConfig{StorageKey: "notifications", MaxItems: 10},
	}
}

func setupTestFanoutService() (FanoutService, *mockRepos) {
	repo, mocks := newMockRepository()
	return NewFanoutService(testConfig(), repo, zap.NewNop()), mocks
}

// seedCampus 场景：s1(Student,CS) s2(Student,IT) f1(Faculty) a1(Admin) 以及停用的 s3(Student,CS)
func seedCampus(m *mockRepos) {
	m.addUser("s1", model.RoleStudent, "CS", true)
	m.addUser("s2", model.RoleStudent, "IT", true)
	m.addUser("f1", model.RoleFaculty, "", true)
	m.addUser("a1", model.RoleAdmin, "", true)
	m.addUser("s3", model.RoleStudent, "CS", false)
}

// ── FanOut ──

func TestFanOut_SpecificProgramScenario(t *testing.T) {
	svc, mocks := setupTestFanoutService()
	mocks.addUser("s1", model.RoleStudent, "CS", true)
	mocks.addUser("s2", model.RoleStudent, "IT", true)
	mocks.addUser("f1", model.RoleFaculty, "", true)

	n := &model.Notification{Message: "CS orientation", Type: model.NotificationTypeSystem}
	result, err := svc.FanOut(context.Background(), n, TargetRule{Audience: AudienceSpecificProgram, Program: "CS"})
	if err != nil {
		t.Fatalf("FanOut 应成功: %v", err)
	}
	if result.Recipients != 1 || result.Delivered != 1 {
		t.Errorf("期望恰好 1 条投递，实际=%+v", result)
	}
	if got := len(mocks.notification.deliveriesFor("s1")); got != 1 {
		t.Errorf("期望 s1 收到 1 条，实际=%d", got)
	}
	for _, id := range []string{"s2", "f1"} {
		if got := len(mocks.notification.deliveriesFor(id)); got != 0 {
			t.Errorf("期望 %s 不收到通知，实际=%d", id, got)
		}
	}
}

func TestFanOut_ExactlyOneDeliveryPerResolvedRecipient(t *testing.T) {
	cases := map[string]struct {
		rule TargetRule
		want []string
	}{
		"All":      {TargetRule{Audience: AudienceAll}, []string{"a1", "f1", "s1", "s2"}},
		"Faculty":  {TargetRule{Audience: AudienceFaculty}, []string{"f1"}},
		"Students": {TargetRule{Audience: AudienceStudents}, []string{"s1", "s2"}},
		"Program":  {TargetRule{Audience: AudienceSpecificProgram, Program: "IT"}, []string{"s2"}},
	}

	for name, tc := range cases {
		svc, mocks := setupTestFanoutService()
		seedCampus(mocks)

		n := &model.Notification{Message: name, Type: model.NotificationTypeSystem}
		result, err := svc.FanOut(context.Background(), n, tc.rule)
		if err != nil {
			t.Fatalf("%s: FanOut 应成功: %v", name, err)
		}
		if result.Delivered != len(tc.want) {
			t.Errorf("%s: 期望投递 %d 条，实际=%d", name, len(tc.want), result.Delivered)
		}

		wanted := make(map[string]bool)
		for _, id := range tc.want {
			wanted[id] = true
		}
		for _, id := range []string{"s1", "s2", "f1", "a1", "s3"} {
			got := len(mocks.notification.deliveriesFor(id))
			if wanted[id] && got != 1 {
				t.Errorf("%s: 期望 %s 恰好 1 条，实际=%d", name, id, got)
			}
			if !wanted[id] && got != 0 {
				t.Errorf("%s: 期望 %s 无投递，实际=%d", name, id, got)
			}
		}
	}
}

func TestFanOut_InvalidRuleRejectedBeforeWrite(t *testing.T) {
	svc, mocks := setupTestFanoutService()
	seedCampus(mocks)

	n := &model.Notification{Message: "x", Type: model.NotificationTypeSystem}
	_, err := svc.FanOut(context.Background(), n, TargetRule{Audience: AudienceSpecificProgram})
	if !errors.Is(err, ErrInvalidTargetRule) {
		t.Errorf("期望 ErrInvalidTargetRule，实际: %v", err)
	}
	if len(mocks.notification.notifications) != 0 {
		t.Error("规则无效时不应写入通知")
	}
}

func TestFanOut_PartialFailureKeepsNotification(t *testing.T) {
	svc, mocks := setupTestFanoutService()
	for i := 0; i < 10; i++ {
		mocks.addUser(fmt.Sprintf("u%02d", i), model.RoleStudent, "CS", true)
	}
	mocks.notification.failDeliveryFor["u03"] = true
	mocks.notification.failDeliveryFor["u07"] = true

	n := &model.Notification{Message: "partial", Type: model.NotificationTypeSystem}
	result, err := svc.FanOut(context.Background(), n, TargetRule{Audience: AudienceStudents})
	if err != nil {
		t.Fatalf("部分失败时仍应返回成功: %v", err)
	}
	if result.Recipients != 10 || result.Delivered != 8 || result.Failed != 2 {
		t.Errorf("期望 10/8/2，实际=%+v", result)
	}
	if _, ok := mocks.notification.notifications[n.NotificationID]; !ok {
		t.Error("通知不应因投递失败而回滚")
	}
	if got := len(mocks.notification.deliveriesFor("u00")); got != 1 {
		t.Errorf("单条失败不应影响其他收件人，实际=%d", got)
	}
}

func TestFanOut_NotificationInsertFailure(t *testing.T) {
	svc, mocks := setupTestFanoutService()
	seedCampus(mocks)
	mocks.notification.createNotificationErr = errMockStorage

	_, err := svc.FanOut(context.Background(), &model.Notification{Message: "x", Type: model.NotificationTypeSystem}, TargetRule{Audience: AudienceAll})
	if !errors.Is(err, pkgerrors.ErrStorageUnavailable) {
		t.Errorf("期望 ErrStorageUnavailable，实际: %v", err)
	}
	if got := len(mocks.notification.deliveriesFor("s1")); got != 0 {
		t.Errorf("通知写入失败时不应有投递，实际=%d", got)
	}
}

func TestFanOut_RecipientResolutionFailure(t *testing.T) {
	svc, mocks := setupTestFanoutService()
	mocks.user.listErr = errMockStorage

	_, err := svc.FanOut(context.Background(), &model.Notification{Message: "x", Type: model.NotificationTypeSystem}, TargetRule{Audience: AudienceAll})
	if !errors.Is(err, pkgerrors.ErrStorageUnavailable) {
		t.Errorf("期望 ErrStorageUnavailable，实际: %v", err)
	}
	if len(mocks.notification.notifications) != 0 {
		t.Error("收件人解析失败时不应写入通知")
	}
}

func TestFanOut_NoRecipients(t *testing.T) {
	svc, _ := setupTestFanoutService()

	result, err := svc.FanOut(context.Background(), &model.Notification{Message: "nobody", Type: model.NotificationTypeSystem}, TargetRule{Audience: AudienceAll})
	if err != nil {
		t.Fatalf("无收件人时也应成功: %v", err)
	}
	if result.NotificationID == "" || result.Recipients != 0 {
		t.Errorf("期望通知已创建且收件人为 0，实际=%+v", result)
	}
}

// ── OnContentCreated ──

func TestOnContentCreated_Event(t *testing.T) {
	svc, mocks := setupTestFanoutService()
	seedCampus(mocks)

	result, err := svc.OnContentCreated(context.Background(), ContentCreated{
		ContentID:      "event-1",
		ContentType:    ContentTypeEvent,
		Title:          "Foundation Day",
		TargetAudience: AudienceFaculty,
	})
	if err != nil {
		t.Fatalf("OnContentCreated 应成功: %v", err)
	}
	n := mocks.notification.notifications[result.NotificationID]
	if n == nil {
		t.Fatal("通知未写入")
	}
	if n.Message != "New event: Foundation Day" || n.Type != model.NotificationTypeEvent {
		t.Errorf("通知内容不符: %+v", n)
	}
	if n.EventID == nil || *n.EventID != "event-1" {
		t.Errorf("期望关联 event-1，实际=%v", n.EventID)
	}
	if result.Delivered != 1 {
		t.Errorf("期望仅 f1 收到，实际=%d", result.Delivered)
	}
}

func TestOnContentCreated_Announcement(t *testing.T) {
	svc, mocks := setupTestFanoutService()
	seedCampus(mocks)

	result, err := svc.OnContentCreated(context.Background(), ContentCreated{
		ContentID:      "ann-1",
		ContentType:    ContentTypeAnnouncement,
		Title:          "Class suspension",
		TargetAudience: AudienceSpecificProgram,
		TargetProgram:  strPtr("CS"),
	})
	if err != nil {
		t.Fatalf("OnContentCreated 应成功: %v", err)
	}
	n := mocks.notification.notifications[result.NotificationID]
	if n.Message != "New announcement: Class suspension" || n.AnnouncementID == nil {
		t.Errorf("通知内容不符: %+v", n)
	}
}

func TestOnContentCreated_UnknownType(t *testing.T) {
	svc, _ := setupTestFanoutService()

	_, err := svc.OnContentCreated(context.Background(), ContentCreated{
		ContentID:      "x",
		ContentType:    "schedule",
		Title:          "x",
		TargetAudience: AudienceAll,
	})
	if !errors.Is(err, ErrInvalidContentType) {
		t.Errorf("期望 ErrInvalidContentType，实际: %v", err)
	}
}

// ── Broadcast ──

func TestBroadcast_BulkInsert(t *testing.T) {
	svc, mocks := setupTestFanoutService()
	seedCampus(mocks)

	resp, err := svc.Broadcast(context.Background(), &dto.BroadcastRequest{
		Message:        "  Enrollment opens Monday  ",
		TargetAudience: AudienceStudents,
	})
	if err != nil {
		t.Fatalf("Broadcast 应成功: %v", err)
	}
	if resp.Recipients != 2 || resp.Delivered != 2 || resp.Failed != 0 {
		t.Errorf("期望 2/2/0，实际=%+v", resp)
	}
	n := mocks.notification.notifications[resp.NotificationID]
	if n.Type != model.NotificationTypeSystem || n.Message != "Enrollment opens Monday" {
		t.Errorf("系统通知内容不符: %+v", n)
	}
}

func TestBroadcast_BulkFailureStillSucceeds(t *testing.T) {
	svc, mocks := setupTestFanoutService()
	seedCampus(mocks)
	mocks.notification.bulkErr = errMockStorage

	resp, err := svc.Broadcast(context.Background(), &dto.BroadcastRequest{Message: "x", TargetAudience: AudienceAll})
	if err != nil {
		t.Fatalf("批量投递失败不应使广播失败: %v", err)
	}
	if resp.Failed != 4 || resp.Delivered != 0 {
		t.Errorf("期望全部失败计数，实际=%+v", resp)
	}
}

func TestBroadcast_Validation(t *testing.T) {
	svc, _ := setupTestFanoutService()

	if _, err := svc.Broadcast(context.Background(), &dto.BroadcastRequest{Message: "   ", TargetAudience: AudienceAll}); !errors.Is(err, ErrEmptyMessage) {
		t.Errorf("期望 ErrEmptyMessage，实际: %v", err)
	}
	if _, err := svc.Broadcast(context.Background(), &dto.BroadcastRequest{Message: "x", TargetAudience: "Everyone"}); !errors.Is(err, ErrInvalidTargetRule) {
		t.Errorf("期望 ErrInvalidTargetRule，实际: %v", err)
	}
}

// ── 调用方取消 ──

func TestOnContentCreated_CallerCancelledAfterNotification(t *testing.T) {
	svc, mocks := setupTestFanoutService()
	seedCampus(mocks)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	mocks.notification.afterNotification = cancel

	result, err := svc.OnContentCreated(ctx, ContentCreated{
		ContentID:      "event-1",
		ContentType:    ContentTypeEvent,
		Title:          "Foundation Day",
		TargetAudience: AudienceAll,
	})
	if err != nil {
		t.Fatalf("OnContentCreated 应成功: %v", err)
	}
	if result.Recipients != 4 || result.Delivered != 4 || result.Failed != 0 {
		t.Errorf("请求取消后投递仍应全部完成，实际=%+v", result)
	}
}

func TestFanOut_CallerCancelledAfterNotification(t *testing.T) {
	svc, mocks := setupTestFanoutService()
	seedCampus(mocks)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	mocks.notification.afterNotification = cancel

	n := &model.Notification{Message: "Room change", Type: model.NotificationTypeSystem}
	result, err := svc.FanOut(ctx, n, TargetRule{Audience: AudienceStudents})
	if err != nil {
		t.Fatalf("FanOut 应成功: %v", err)
	}
	if result.Delivered != 2 || result.Failed != 0 {
		t.Errorf("通知落库后的投递不应受取消影响，实际=%+v", result)
	}
	for _, id := range []string{"s1", "s2"} {
		if got := len(mocks.notification.deliveriesFor(id)); got != 1 {
			t.Errorf("期望 %s 收到 1 条，实际=%d", id, got)
		}
	}
}

func TestBroadcast_CallerCancelledAfterNotification(t *testing.T) {
	svc, mocks := setupTestFanoutService()
	seedCampus(mocks)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	mocks.notification.afterNotification = cancel

	resp, err := svc.Broadcast(ctx, &dto.BroadcastRequest{Message: "Enrollment opens", TargetAudience: AudienceAll})
	if err != nil {
		t.Fatalf("Broadcast 应成功: %v", err)
	}
	if resp.Delivered != 4 || resp.Failed != 0 {
		t.Errorf("期望 4 条投递全部写入，实际=%+v", resp)
	}
}

package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"sorsulyap/backend/internal/model"
	"sorsulyap/backend/internal/repository"
	pkgerrors "sorsulyap/backend/pkg/errors"
)

var errMockStorage = errors.New("mock storage down")

// ── Mock UserRepository ──

type mockUserRepo struct {
	mu    sync.Mutex
	users map[string]*model.User // key: user_id
	// listErr 非空时 ListActiveRecipientIDs 返回该错误
	listErr error
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{users: make(map[string]*model.User)}
}

func (m *mockUserRepo) Create(_ context.Context, user *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if user.UserID == "" {
		user.UserID = uuid.NewString()
	}
	m.users[user.UserID] = user
	return nil
}

func (m *mockUserRepo) GetByID(_ context.Context, id string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		return u, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockUserRepo) GetByEmail(_ context.Context, email string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockUserRepo) Update(_ context.Context, user *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[user.UserID] = user
	return nil
}

func (m *mockUserRepo) ListWithFilters(_ context.Context, filters *repository.UserListFilters, offset, limit int) ([]model.User, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var all []model.User
	for _, u := range m.users {
		if filters != nil {
			if filters.Role != "" && u.Role != filters.Role {
				continue
			}
			if filters.Program != "" && u.ProgramName() != filters.Program {
				continue
			}
			if filters.IsActive != nil && u.IsActive != *filters.IsActive {
				continue
			}
		}
		all = append(all, *u)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].UserID < all[j].UserID })
	total := int64(len(all))
	if offset > len(all) {
		return nil, total, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], total, nil
}

func (m *mockUserRepo) SetActive(_ context.Context, id string, active bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	u.IsActive = active
	return nil
}

func (m *mockUserRepo) Approve(_ context.Context, id string, role *string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	u.IsApproved = true
	if role != nil {
		u.Role = *role
	}
	return nil
}

func (m *mockUserRepo) UpdateLastLogin(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		u.LastLogin = &at
	}
	return nil
}

func (m *mockUserRepo) ListActiveRecipientIDs(_ context.Context, filter repository.RecipientFilter) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	var ids []string
	for _, u := range m.users {
		if !u.IsActive {
			continue
		}
		if filter.Role != "" && u.Role != filter.Role {
			continue
		}
		if filter.Program != "" && u.ProgramName() != filter.Program {
			continue
		}
		ids = append(ids, u.UserID)
	}
	sort.Strings(ids)
	return ids, nil
}

// ── Mock EventRepository ──

type mockEventRepo struct {
	events map[string]*model.Event
}

func newMockEventRepo() *mockEventRepo {
	return &mockEventRepo{events: make(map[string]*model.Event)}
}

func (m *mockEventRepo) Create(_ context.Context, event *model.Event) error {
	if event.EventID == "" {
		event.EventID = uuid.NewString()
	}
	if event.Version == 0 {
		event.Version = 1
	}
	now := time.Now()
	event.CreatedAt, event.UpdatedAt = now, now
	m.events[event.EventID] = event
	return nil
}

func (m *mockEventRepo) GetByID(_ context.Context, id string) (*model.Event, error) {
	if e, ok := m.events[id]; ok {
		cp := *e
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockEventRepo) ListUpcoming(_ context.Context, from time.Time) ([]model.Event, error) {
	var result []model.Event
	for _, e := range m.events {
		if !e.EventDate.Before(from) {
			result = append(result, *e)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].EventDate.Before(result[j].EventDate) })
	return result, nil
}

func (m *mockEventRepo) Update(_ context.Context, event *model.Event) error {
	stored, ok := m.events[event.EventID]
	if !ok || stored.Version != event.Version {
		return pkgerrors.ErrOptimisticLock
	}
	event.Version++
	cp := *event
	m.events[event.EventID] = &cp
	return nil
}

func (m *mockEventRepo) Delete(_ context.Context, id string) error {
	delete(m.events, id)
	return nil
}

// ── Mock AnnouncementRepository ──

type mockAnnouncementRepo struct {
	items map[string]*model.Announcement
}

func newMockAnnouncementRepo() *mockAnnouncementRepo {
	return &mockAnnouncementRepo{items: make(map[string]*model.Announcement)}
}

func (m *mockAnnouncementRepo) Create(_ context.Context, a *model.Announcement) error {
	if a.AnnouncementID == "" {
		a.AnnouncementID = uuid.NewString()
	}
	if a.Version == 0 {
		a.Version = 1
	}
	m.items[a.AnnouncementID] = a
	return nil
}

func (m *mockAnnouncementRepo) GetByID(_ context.Context, id string) (*model.Announcement, error) {
	if a, ok := m.items[id]; ok {
		cp := *a
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockAnnouncementRepo) List(_ context.Context, offset, limit int) ([]model.Announcement, int64, error) {
	var all []model.Announcement
	for _, a := range m.items {
		all = append(all, *a)
	}
	total := int64(len(all))
	if offset > len(all) {
		return nil, total, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], total, nil
}

func (m *mockAnnouncementRepo) Update(_ context.Context, a *model.Announcement) error {
	stored, ok := m.items[a.AnnouncementID]
	if !ok || stored.Version != a.Version {
		return pkgerrors.ErrOptimisticLock
	}
	a.Version++
	cp := *a
	m.items[a.AnnouncementID] = &cp
	return nil
}

func (m *mockAnnouncementRepo) Delete(_ context.Context, id string) error {
	delete(m.items, id)
	return nil
}

// ── Mock NotificationRepository ──

type mockNotificationRepo struct {
	mu            sync.Mutex
	notifications map[string]*model.Notification
	deliveries    map[string]*model.Delivery

	// 故障注入
	createNotificationErr error
	failDeliveryFor       map[string]bool // user_id → CreateDelivery 失败
	bulkErr               error
	afterNotification     func() // CreateNotification 成功后回调
}

func newMockNotificationRepo() *mockNotificationRepo {
	return &mockNotificationRepo{
		notifications:   make(map[string]*model.Notification),
		deliveries:      make(map[string]*model.Delivery),
		failDeliveryFor: make(map[string]bool),
	}
}

func (m *mockNotificationRepo) CreateNotification(_ context.Context, n *model.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createNotificationErr != nil {
		return m.createNotificationErr
	}
	if n.NotificationID == "" {
		n.NotificationID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}
	m.notifications[n.NotificationID] = n
	if m.afterNotification != nil {
		m.afterNotification()
	}
	return nil
}

func (m *mockNotificationRepo) GetNotification(_ context.Context, id string) (*model.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n, ok := m.notifications[id]; ok {
		return n, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockNotificationRepo) insertLocked(d *model.Delivery) error {
	for _, existing := range m.deliveries {
		if existing.UserID == d.UserID && existing.NotificationID == d.NotificationID {
			return errors.New("duplicate key value violates unique constraint")
		}
	}
	if d.DeliveryID == "" {
		d.DeliveryID = uuid.NewString()
	}
	m.deliveries[d.DeliveryID] = d
	return nil
}

func (m *mockNotificationRepo) CreateDelivery(ctx context.Context, d *model.Delivery) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	// 与 gorm 一致：上下文已取消时写入失败
	if err := ctx.Err(); err != nil {
		return err
	}
	if m.failDeliveryFor[d.UserID] {
		return errMockStorage
	}
	return m.insertLocked(d)
}

func (m *mockNotificationRepo) BulkCreateDeliveries(ctx context.Context, deliveries []*model.Delivery) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if m.bulkErr != nil {
		return 0, m.bulkErr
	}
	var inserted int64
	for _, d := range deliveries {
		if m.insertLocked(d) == nil {
			inserted++
		}
	}
	return inserted, nil
}

func (m *mockNotificationRepo) GetDelivery(_ context.Context, id string) (*model.Delivery, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d, ok := m.deliveries[id]; ok {
		cp := *d
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockNotificationRepo) MarkRead(_ context.Context, id, userID string, at time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.deliveries[id]
	if !ok || d.UserID != userID {
		return 0, nil
	}
	d.ReadStatus = true
	d.ViewedAt = &at
	return 1, nil
}

func (m *mockNotificationRepo) MarkUnread(_ context.Context, id, userID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.deliveries[id]
	if !ok || d.UserID != userID {
		return 0, nil
	}
	d.ReadStatus = false
	d.ViewedAt = nil
	return 1, nil
}

func (m *mockNotificationRepo) MarkAllRead(_ context.Context, userID string, at time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, d := range m.deliveries {
		if d.UserID == userID && !d.ReadStatus {
			d.ReadStatus = true
			d.ViewedAt = &at
			n++
		}
	}
	return n, nil
}

func (m *mockNotificationRepo) DeleteDelivery(_ context.Context, id, userID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.deliveries[id]
	if !ok || d.UserID != userID {
		return 0, nil
	}
	delete(m.deliveries, id)
	return 1, nil
}

func (m *mockNotificationRepo) ListForUser(_ context.Context, userID string, limit int) ([]model.Delivery, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []model.Delivery
	for _, d := range m.deliveries {
		if d.UserID != userID {
			continue
		}
		cp := *d
		cp.Notification = m.notifications[d.NotificationID]
		result = append(result, cp)
	}
	sort.Slice(result, func(i, j int) bool {
		ti, tj := result[i].Notification.CreatedAt, result[j].Notification.CreatedAt
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return result[i].DeliveryID > result[j].DeliveryID
	})
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (m *mockNotificationRepo) CountUnread(_ context.Context, userID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, d := range m.deliveries {
		if d.UserID == userID && !d.ReadStatus {
			n++
		}
	}
	return n, nil
}

func (m *mockNotificationRepo) CountByNotification(_ context.Context, notificationID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, d := range m.deliveries {
		if d.NotificationID == notificationID {
			n++
		}
	}
	return n, nil
}

func (m *mockNotificationRepo) DeleteNotification(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleteNotificationLocked(id)
	return nil
}

func (m *mockNotificationRepo) deleteNotificationLocked(id string) {
	for did, d := range m.deliveries {
		if d.NotificationID == id {
			delete(m.deliveries, did)
		}
	}
	delete(m.notifications, id)
}

func (m *mockNotificationRepo) DeleteBySource(_ context.Context, sourceType, sourceID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var removed int64
	for id, n := range m.notifications {
		ref := n.EventID
		if sourceType == repository.SourceAnnouncement {
			ref = n.AnnouncementID
		}
		if ref != nil && *ref == sourceID {
			m.deleteNotificationLocked(id)
			removed++
		}
	}
	return removed, nil
}

func (m *mockNotificationRepo) DeleteDeliveriesByUser(_ context.Context, userID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, d := range m.deliveries {
		if d.UserID == userID {
			delete(m.deliveries, id)
			n++
		}
	}
	return n, nil
}

func (m *mockNotificationRepo) ListStats(_ context.Context, limit int) ([]model.NotificationStat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var stats []model.NotificationStat
	for _, n := range m.notifications {
		st := model.NotificationStat{
			NotificationID: n.NotificationID,
			Type:           n.Type,
			Message:        n.Message,
			CreatedAt:      n.CreatedAt,
		}
		for _, d := range m.deliveries {
			if d.NotificationID == n.NotificationID {
				st.Recipients++
				if d.ReadStatus {
					st.ReadCount++
				}
			}
		}
		stats = append(stats, st)
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].CreatedAt.After(stats[j].CreatedAt) })
	if len(stats) > limit {
		stats = stats[:limit]
	}
	return stats, nil
}

// deliveriesFor 测试辅助：某用户的投递记录
func (m *mockNotificationRepo) deliveriesFor(userID string) []*model.Delivery {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Delivery
	for _, d := range m.deliveries {
		if d.UserID == userID {
			out = append(out, d)
		}
	}
	return out
}

// ── 测试装配 ──

type mockRepos struct {
	user         *mockUserRepo
	event        *mockEventRepo
	announcement *mockAnnouncementRepo
	notification *mockNotificationRepo
}

func newMockRepository() (*repository.Repository, *mockRepos) {
	m := &mockRepos{
		user:         newMockUserRepo(),
		event:        newMockEventRepo(),
		announcement: newMockAnnouncementRepo(),
		notification: newMockNotificationRepo(),
	}
	repo := &repository.Repository{
		User:         m.user,
		Event:        m.event,
		Announcement: m.announcement,
		Notification: m.notification,
	}
	return repo, m
}

func strPtr(s string) *string { return &s }

// addUser 测试辅助：创建已审核用户
func (m *mockRepos) addUser(id, role, program string, active bool) *model.User {
	u := &model.User{
		UserID:     id,
		Name:       id,
		Email:      id + "@sorsu.edu.ph",
		Role:       role,
		IsApproved: true,
		IsActive:   active,
	}
	if program != "" {
		u.Program = strPtr(program)
	}
	_ = m.user.Create(context.Background(), u)
	return u
}

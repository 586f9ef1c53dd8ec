package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"sorsulyap/backend/internal/model"
)

// 通知来源类型（级联删除用）
const (
	SourceEvent        = "event"
	SourceAnnouncement = "announcement"
)

// NotificationRepository 通知与投递记录数据访问接口
//
// 所有对投递记录的修改都以 (id, user_id) 限定，返回受影响行数，
// 由 Service 层决定 0 行时的语义
type NotificationRepository interface {
	CreateNotification(ctx context.Context, n *model.Notification) error
	GetNotification(ctx context.Context, id string) (*model.Notification, error)
	CreateDelivery(ctx context.Context, d *model.Delivery) error
	// BulkCreateDeliveries 批量写入，(user_id, notification_id) 冲突的行被忽略
	BulkCreateDeliveries(ctx context.Context, deliveries []*model.Delivery) (int64, error)
	GetDelivery(ctx context.Context, id string) (*model.Delivery, error)

	MarkRead(ctx context.Context, id, userID string, at time.Time) (int64, error)
	MarkUnread(ctx context.Context, id, userID string) (int64, error)
	MarkAllRead(ctx context.Context, userID string, at time.Time) (int64, error)
	DeleteDelivery(ctx context.Context, id, userID string) (int64, error)

	// ListForUser 联表返回投递记录，按通知创建时间倒序
	ListForUser(ctx context.Context, userID string, limit int) ([]model.Delivery, error)
	CountUnread(ctx context.Context, userID string) (int64, error)
	CountByNotification(ctx context.Context, notificationID string) (int64, error)

	// DeleteNotification 删除通知及其全部投递记录
	DeleteNotification(ctx context.Context, id string) error
	// DeleteBySource 删除某活动/公告产生的通知及其投递记录，返回删除的通知数
	DeleteBySource(ctx context.Context, sourceType, sourceID string) (int64, error)
	DeleteDeliveriesByUser(ctx context.Context, userID string) (int64, error)

	ListStats(ctx context.Context, limit int) ([]model.NotificationStat, error)
}

type notificationRepo struct {
	db *gorm.DB
}

// NewNotificationRepo 创建 NotificationRepository 实例
func NewNotificationRepo(db *gorm.DB) NotificationRepository {
	return &notificationRepo{db: db}
}

func (r *notificationRepo) CreateNotification(ctx context.Context, n *model.Notification) error {
	return r.db.WithContext(ctx).Create(n).Error
}

func (r *notificationRepo) GetNotification(ctx context.Context, id string) (*model.Notification, error) {
	var n model.Notification
	err := r.db.WithContext(ctx).
		Where("notification_id = ?", id).
		First(&n).Error
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func (r *notificationRepo) CreateDelivery(ctx context.Context, d *model.Delivery) error {
	return r.db.WithContext(ctx).Create(d).Error
}

func (r *notificationRepo) BulkCreateDeliveries(ctx context.Context, deliveries []*model.Delivery) (int64, error) {
	if len(deliveries) == 0 {
		return 0, nil
	}
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		CreateInBatches(deliveries, 200)
	return result.RowsAffected, result.Error
}

func (r *notificationRepo) GetDelivery(ctx context.Context, id string) (*model.Delivery, error) {
	var d model.Delivery
	err := r.db.WithContext(ctx).
		Where("user_notification_id = ?", id).
		First(&d).Error
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *notificationRepo) MarkRead(ctx context.Context, id, userID string, at time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&model.Delivery{}).
		Where("user_notification_id = ? AND user_id = ?", id, userID).
		Updates(map[string]interface{}{
			"read_status": true,
			"viewed_at":   at,
		})
	return result.RowsAffected, result.Error
}

func (r *notificationRepo) MarkUnread(ctx context.Context, id, userID string) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&model.Delivery{}).
		Where("user_notification_id = ? AND user_id = ?", id, userID).
		Updates(map[string]interface{}{
			"read_status": false,
			"viewed_at":   nil,
		})
	return result.RowsAffected, result.Error
}

func (r *notificationRepo) MarkAllRead(ctx context.Context, userID string, at time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&model.Delivery{}).
		Where("user_id = ? AND read_status = ?", userID, false).
		Updates(map[string]interface{}{
			"read_status": true,
			"viewed_at":   at,
		})
	return result.RowsAffected, result.Error
}

func (r *notificationRepo) DeleteDelivery(ctx context.Context, id, userID string) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("user_notification_id = ? AND user_id = ?", id, userID).
		Delete(&model.Delivery{})
	return result.RowsAffected, result.Error
}

func (r *notificationRepo) ListForUser(ctx context.Context, userID string, limit int) ([]model.Delivery, error) {
	var deliveries []model.Delivery
	err := r.db.WithContext(ctx).
		Joins("JOIN notifications n ON n.notification_id = user_notifications.notification_id").
		Preload("Notification").
		Where("user_notifications.user_id = ?", userID).
		Order("n.created_at DESC").
		Order("user_notifications.user_notification_id DESC").
		Limit(limit).
		Find(&deliveries).Error
	return deliveries, err
}

func (r *notificationRepo) CountUnread(ctx context.Context, userID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.Delivery{}).
		Where("user_id = ? AND read_status = ?", userID, false).
		Count(&count).Error
	return count, err
}

func (r *notificationRepo) CountByNotification(ctx context.Context, notificationID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.Delivery{}).
		Where("notification_id = ?", notificationID).
		Count(&count).Error
	return count, err
}

func (r *notificationRepo) DeleteNotification(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("notification_id = ?", id).Delete(&model.Delivery{}).Error; err != nil {
			return err
		}
		return tx.Where("notification_id = ?", id).Delete(&model.Notification{}).Error
	})
}

func (r *notificationRepo) DeleteBySource(ctx context.Context, sourceType, sourceID string) (int64, error) {
	column := "event_id"
	if sourceType == SourceAnnouncement {
		column = "announcement_id"
	}

	var deleted int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ids := tx.Model(&model.Notification{}).
			Select("notification_id").
			Where(column+" = ?", sourceID)
		if err := tx.Where("notification_id IN (?)", ids).Delete(&model.Delivery{}).Error; err != nil {
			return err
		}
		result := tx.Where(column+" = ?", sourceID).Delete(&model.Notification{})
		deleted = result.RowsAffected
		return result.Error
	})
	return deleted, err
}

func (r *notificationRepo) DeleteDeliveriesByUser(ctx context.Context, userID string) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Delete(&model.Delivery{})
	return result.RowsAffected, result.Error
}

func (r *notificationRepo) ListStats(ctx context.Context, limit int) ([]model.NotificationStat, error) {
	var stats []model.NotificationStat
	err := r.db.WithContext(ctx).
		Table("notifications AS n").
		Select(`n.notification_id, n.type, n.message, n.created_at,
			COUNT(un.user_notification_id) AS recipients,
			COALESCE(SUM(CASE WHEN un.read_status THEN 1 ELSE 0 END), 0) AS read_count`).
		Joins("LEFT JOIN user_notifications un ON un.notification_id = n.notification_id").
		Group("n.notification_id, n.type, n.message, n.created_at").
		Order("n.created_at DESC").
		Limit(limit).
		Scan(&stats).Error
	return stats, err
}

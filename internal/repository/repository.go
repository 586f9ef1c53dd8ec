package repository

import (
	"context"

	"gorm.io/gorm"
)

// Repository 所有 Repository 的聚合入口
type Repository struct {
	db *gorm.DB

	User         UserRepository
	Event        EventRepository
	Announcement AnnouncementRepository
	Notification NotificationRepository
}

// NewRepository 创建 Repository 聚合
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{
		db:           db,
		User:         NewUserRepo(db),
		Event:        NewEventRepo(db),
		Announcement: NewAnnouncementRepo(db),
		Notification: NewNotificationRepo(db),
	}
}

// BeginTx 开启事务
func (r *Repository) BeginTx(ctx context.Context) (*gorm.DB, error) {
	tx := r.db.WithContext(ctx).Begin()
	return tx, tx.Error
}

// WithTx 返回绑定到事务连接的 Repository 副本
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{
		db:           tx,
		User:         NewUserRepo(tx),
		Event:        NewEventRepo(tx),
		Announcement: NewAnnouncementRepo(tx),
		Notification: NewNotificationRepo(tx),
	}
}

// Transaction 在事务中执行 fn，fn 返回错误时回滚
// 聚合由测试直接构造（db 为 nil）时退化为直接执行
func (r *Repository) Transaction(ctx context.Context, fn func(txRepo *Repository) error) error {
	if r.db == nil {
		return fn(r)
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(r.WithTx(tx))
	})
}

package model

import (
	"time"

	"gorm.io/gorm"
)

// 通知类型
const (
	NotificationTypeEvent        = "Event"
	NotificationTypeAnnouncement = "Announcement"
	NotificationTypeSystem       = "System"
)

// Notification 通知消息表，对应 notifications
// 创建后不可修改，多个接收人共享同一条记录；仅随来源活动/公告级联删除
type Notification struct {
	NotificationID string    `gorm:"type:uuid;primaryKey"               json:"notification_id"`
	Message        string    `gorm:"type:text;not null"                 json:"message"`
	Type           string    `gorm:"type:varchar(20);not null"          json:"type"`
	EventID        *string   `gorm:"type:uuid;index"                    json:"event_id,omitempty"`
	AnnouncementID *string   `gorm:"type:uuid;index"                    json:"announcement_id,omitempty"`
	CreatedAt      time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName 指定表名
func (Notification) TableName() string { return "notifications" }

// BeforeCreate 生成主键
func (n *Notification) BeforeCreate(_ *gorm.DB) error {
	ensureID(&n.NotificationID)
	return nil
}

// Delivery 单个接收人的投递记录，对应 user_notifications
// (user_id, notification_id) 唯一；已读状态只由已读追踪器修改
type Delivery struct {
	DeliveryID     string     `gorm:"column:user_notification_id;type:uuid;primaryKey"          json:"id"`
	UserID         string     `gorm:"type:uuid;not null;uniqueIndex:uq_user_notification,priority:1" json:"user_id"`
	NotificationID string     `gorm:"type:uuid;not null;uniqueIndex:uq_user_notification,priority:2" json:"notification_id"`
	ReadStatus     bool       `gorm:"not null;default:false"                                   json:"read_status"`
	ViewedAt       *time.Time `                                                                json:"viewed_at,omitempty"`

	Notification *Notification `gorm:"foreignKey:NotificationID;references:NotificationID" json:"notification,omitempty"`
}

// TableName 指定表名
func (Delivery) TableName() string { return "user_notifications" }

// BeforeCreate 生成主键
func (d *Delivery) BeforeCreate(_ *gorm.DB) error {
	ensureID(&d.DeliveryID)
	return nil
}

// NotificationStat 单条通知的投递统计（报表用）
type NotificationStat struct {
	NotificationID string
	Type           string
	Message        string
	CreatedAt      time.Time
	Recipients     int64
	ReadCount      int64
}

package model

import "gorm.io/gorm"

// Announcement 公告表，对应 announcements
type Announcement struct {
	AnnouncementID string  `gorm:"type:uuid;primaryKey"       json:"announcement_id"`
	Title          string  `gorm:"type:varchar(200);not null" json:"title"`
	Content        string  `gorm:"type:text;not null"         json:"content"`
	TargetAudience string  `gorm:"type:varchar(20);not null"  json:"target_audience"`
	TargetProgram  *string `gorm:"type:varchar(100)"          json:"target_program,omitempty"`
	CreatedBy      string  `gorm:"type:uuid;not null"         json:"created_by"`
	VersionedModel

	Creator *User `gorm:"foreignKey:CreatedBy;references:UserID" json:"creator,omitempty"`
}

// TableName 指定表名
func (Announcement) TableName() string { return "announcements" }

// BeforeCreate 生成主键
func (a *Announcement) BeforeCreate(_ *gorm.DB) error {
	ensureID(&a.AnnouncementID)
	a.initVersion()
	return nil
}

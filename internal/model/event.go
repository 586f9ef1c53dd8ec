package model

import (
	"time"

	"gorm.io/gorm"
)

// Event 活动表，对应 events
type Event struct {
	EventID        string    `gorm:"type:uuid;primaryKey"          json:"event_id"`
	EventName      string    `gorm:"type:varchar(200);not null"    json:"event_name"`
	Description    string    `gorm:"type:text"                     json:"description,omitempty"`
	EventDate      time.Time `gorm:"type:date;not null"            json:"event_date"`
	EventTime      *string   `gorm:"type:varchar(5)"               json:"event_time,omitempty"` // HH:MM
	Location       string    `gorm:"type:varchar(200);not null"    json:"location"`
	Status         string    `gorm:"type:varchar(20);not null;default:'Upcoming'" json:"status"`
	TargetAudience string    `gorm:"type:varchar(20);not null"     json:"target_audience"`
	TargetProgram  *string   `gorm:"type:varchar(100)"             json:"target_program,omitempty"`
	CreatedBy      string    `gorm:"type:uuid;not null"            json:"created_by"`
	VersionedModel

	// 关联
	Creator *User `gorm:"foreignKey:CreatedBy;references:UserID" json:"creator,omitempty"`
}

// TableName 指定表名
func (Event) TableName() string { return "events" }

// BeforeCreate 生成主键
func (e *Event) BeforeCreate(_ *gorm.DB) error {
	ensureID(&e.EventID)
	e.initVersion()
	return nil
}

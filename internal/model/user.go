package model

import (
	"time"

	"gorm.io/gorm"
)

// 用户角色
const (
	RoleAdmin   = "Admin"
	RoleFaculty = "Faculty"
	RoleStudent = "Student"
)

// User 用户表，对应 users
type User struct {
	UserID       string     `gorm:"type:uuid;primaryKey"                         json:"user_id"`
	Name         string     `gorm:"type:varchar(100);not null"                   json:"name"`
	Email        string     `gorm:"type:varchar(255);not null;uniqueIndex"       json:"email"`
	PasswordHash string     `gorm:"type:varchar(255);not null"                   json:"-"`
	Role         string     `gorm:"type:varchar(20);not null"                    json:"role"`
	Department   *string    `gorm:"type:varchar(100)"                            json:"department,omitempty"`
	Program      *string    `gorm:"type:varchar(100)"                            json:"program,omitempty"`
	YearLevel    *string    `gorm:"type:varchar(20)"                             json:"year_level,omitempty"`
	IsVerified   bool       `gorm:"not null;default:false"                       json:"is_verified"`
	IsApproved   bool       `gorm:"not null;default:false"                       json:"is_approved"`
	IsActive     bool       `gorm:"not null"                                     json:"is_active"`
	LastLogin    *time.Time `                                                    json:"last_login,omitempty"`
	BaseModel
}

// TableName 指定表名
func (User) TableName() string { return "users" }

// BeforeCreate 生成主键
func (u *User) BeforeCreate(_ *gorm.DB) error {
	ensureID(&u.UserID)
	return nil
}

// ProgramName 返回专业名，未设置时为空串
func (u *User) ProgramName() string {
	if u.Program == nil {
		return ""
	}
	return *u.Program
}

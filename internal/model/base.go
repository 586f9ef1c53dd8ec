package model

import (
	"time"

	"github.com/google/uuid"
)

// BaseModel 通用审计字段（所有业务模型嵌入）
type BaseModel struct {
	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// VersionedModel 支持乐观锁的模型
type VersionedModel struct {
	BaseModel
	Version int `gorm:"not null;default:1" json:"version"`
}

// initVersion 新建记录从版本 1 开始
func (v *VersionedModel) initVersion() {
	if v.Version == 0 {
		v.Version = 1
	}
}

// ensureID 主键为空时在应用侧生成 UUID
// 不依赖 gen_random_uuid()，便于在 SQLite 上跑仓储测试
func ensureID(id *string) {
	if *id == "" {
		*id = uuid.New().String()
	}
}

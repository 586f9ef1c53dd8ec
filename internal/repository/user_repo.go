package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"sorsulyap/backend/internal/model"
)

// UserListFilters 用户列表过滤条件
type UserListFilters struct {
	Role       string
	Department string
	Program    string
	IsActive   *bool
}

// RecipientFilter 扇出收件人过滤条件（仅作用于活跃用户）
// Role 为空表示全部活跃用户；Program 非空时追加专业等值条件
type RecipientFilter struct {
	Role    string
	Program string
}

// UserRepository 用户数据访问接口
type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id string) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	Update(ctx context.Context, user *model.User) error
	ListWithFilters(ctx context.Context, filters *UserListFilters, offset, limit int) ([]model.User, int64, error)
	SetActive(ctx context.Context, id string, active bool) error
	Approve(ctx context.Context, id string, role *string) error
	UpdateLastLogin(ctx context.Context, id string, at time.Time) error
	// ListActiveRecipientIDs 解析定向规则对应的活跃用户 ID 集合
	ListActiveRecipientIDs(ctx context.Context, filter RecipientFilter) ([]string, error)
}

// userRepo UserRepository 的 GORM 实现
type userRepo struct {
	db *gorm.DB
}

// NewUserRepo 创建 UserRepository 实例
func NewUserRepo(db *gorm.DB) UserRepository {
	return &userRepo{db: db}
}

func (r *userRepo) Create(ctx context.Context, user *model.User) error {
	return r.db.WithContext(ctx).Create(user).Error
}

func (r *userRepo) GetByID(ctx context.Context, id string) (*model.User, error) {
	var user model.User
	err := r.db.WithContext(ctx).
		Where("user_id = ?", id).
		First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	var user model.User
	err := r.db.WithContext(ctx).
		Where("email = ?", email).
		First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepo) Update(ctx context.Context, user *model.User) error {
	return r.db.WithContext(ctx).Save(user).Error
}

func (r *userRepo) ListWithFilters(ctx context.Context, filters *UserListFilters, offset, limit int) ([]model.User, int64, error) {
	var users []model.User
	var total int64

	db := r.db.WithContext(ctx).Model(&model.User{})
	if filters != nil {
		if filters.Role != "" {
			db = db.Where("role = ?", filters.Role)
		}
		if filters.Department != "" {
			db = db.Where("department = ?", filters.Department)
		}
		if filters.Program != "" {
			db = db.Where("program = ?", filters.Program)
		}
		if filters.IsActive != nil {
			db = db.Where("is_active = ?", *filters.IsActive)
		}
	}

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if err := db.Offset(offset).Limit(limit).
		Order("created_at DESC").
		Find(&users).Error; err != nil {
		return nil, 0, err
	}

	return users, total, nil
}

func (r *userRepo) SetActive(ctx context.Context, id string, active bool) error {
	result := r.db.WithContext(ctx).
		Model(&model.User{}).
		Where("user_id = ?", id).
		Updates(map[string]interface{}{
			"is_active":  active,
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *userRepo) Approve(ctx context.Context, id string, role *string) error {
	updates := map[string]interface{}{
		"is_approved": true,
		"updated_at":  time.Now(),
	}
	if role != nil {
		updates["role"] = *role
	}
	result := r.db.WithContext(ctx).
		Model(&model.User{}).
		Where("user_id = ?", id).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *userRepo) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&model.User{}).
		Where("user_id = ?", id).
		Update("last_login", at).Error
}

func (r *userRepo) ListActiveRecipientIDs(ctx context.Context, filter RecipientFilter) ([]string, error) {
	var ids []string
	db := r.db.WithContext(ctx).
		Model(&model.User{}).
		Where("is_active = ?", true)
	if filter.Role != "" {
		db = db.Where("role = ?", filter.Role)
	}
	if filter.Program != "" {
		db = db.Where("program = ?", filter.Program)
	}
	err := db.Order("user_id ASC").Pluck("user_id", &ids).Error
	return ids, err
}

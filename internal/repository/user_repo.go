package repository

import (
	"context"

	"gorm.io/gorm"

	"studyhall/internal/model"
)

// UserFilter 用户列表筛选条件
type UserFilter struct {
	Role     string
	IsActive *bool
}

// UserStats 用户统计
type UserStats struct {
	Total  int64            `json:"total"`
	Active int64            `json:"active"`
	ByRole map[string]int64 `json:"byRole"`
}

// UserRepository 用户数据访问接口
type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id string) (*model.User, error)
	GetByStudentID(ctx context.Context, studentID string) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	UpdateFields(ctx context.Context, id string, fields map[string]interface{}) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, filter UserFilter, offset, limit int) ([]model.User, int64, error)
	Stats(ctx context.Context) (*UserStats, error)
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
	return r.db.WithContext(ctx).Omit("Student").Create(user).Error
}

func (r *userRepo) GetByID(ctx context.Context, id string) (*model.User, error) {
	var user model.User
	err := r.db.WithContext(ctx).
		Preload("Student").
		Where("user_id = ?", id).
		First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepo) GetByStudentID(ctx context.Context, studentID string) (*model.User, error) {
	var user model.User
	err := r.db.WithContext(ctx).
		Where("student_id = ?", studentID).
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

func (r *userRepo) UpdateFields(ctx context.Context, id string, fields map[string]interface{}) error {
	result := r.db.WithContext(ctx).Model(&model.User{}).Where("user_id = ?", id).Updates(fields)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *userRepo) Delete(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Where("user_id = ?", id).Delete(&model.User{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *userRepo) List(ctx context.Context, filter UserFilter, offset, limit int) ([]model.User, int64, error) {
	var users []model.User
	var total int64

	db := r.db.WithContext(ctx).Model(&model.User{})
	if filter.Role != "" {
		db = db.Where("role = ?", filter.Role)
	}
	if filter.IsActive != nil {
		db = db.Where("is_active = ?", *filter.IsActive)
	}

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if err := db.Preload("Student").
		Offset(offset).Limit(limit).
		Order("created_at DESC").
		Find(&users).Error; err != nil {
		return nil, 0, err
	}

	return users, total, nil
}

func (r *userRepo) Stats(ctx context.Context) (*UserStats, error) {
	var totals struct {
		Total  int64
		Active int64
	}
	err := r.db.WithContext(ctx).Model(&model.User{}).
		Select("COUNT(*) AS total, COUNT(*) FILTER (WHERE is_active) AS active").
		Scan(&totals).Error
	if err != nil {
		return nil, err
	}
	stats := &UserStats{Total: totals.Total, Active: totals.Active, ByRole: map[string]int64{}}

	var rows []groupCount
	err = r.db.WithContext(ctx).Model(&model.User{}).
		Select("role AS key, COUNT(*) AS count").
		Group("role").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		stats.ByRole[row.Key] = row.Count
	}
	return stats, nil
}

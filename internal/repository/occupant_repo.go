package repository

import (
	"context"

	"gorm.io/gorm"

	"studyhall/internal/model"
)

// OccupantRepository 座位占用关系数据访问接口
type OccupantRepository interface {
	Create(ctx context.Context, occupant *model.SeatOccupant) error
	GetByStudent(ctx context.Context, studentID string) (*model.SeatOccupant, error)
	ListBySeat(ctx context.Context, seatID string) ([]model.SeatOccupant, error)
	Delete(ctx context.Context, seatID, studentID string) error
	DeleteBySeat(ctx context.Context, seatID string) error
	DeleteOrphans(ctx context.Context) (int64, error)
}

// occupantRepo OccupantRepository 的 GORM 实现
type occupantRepo struct {
	db *gorm.DB
}

// NewOccupantRepo 创建 OccupantRepository 实例
func NewOccupantRepo(db *gorm.DB) OccupantRepository {
	return &occupantRepo{db: db}
}

func (r *occupantRepo) Create(ctx context.Context, occupant *model.SeatOccupant) error {
	return r.db.WithContext(ctx).Omit("Student").Create(occupant).Error
}

func (r *occupantRepo) GetByStudent(ctx context.Context, studentID string) (*model.SeatOccupant, error) {
	var occupant model.SeatOccupant
	if err := r.db.WithContext(ctx).Where("student_id = ?", studentID).First(&occupant).Error; err != nil {
		return nil, err
	}
	return &occupant, nil
}

func (r *occupantRepo) ListBySeat(ctx context.Context, seatID string) ([]model.SeatOccupant, error) {
	var occupants []model.SeatOccupant
	err := r.db.WithContext(ctx).
		Preload("Student").
		Where("seat_id = ?", seatID).
		Order("slot ASC").
		Find(&occupants).Error
	return occupants, err
}

func (r *occupantRepo) Delete(ctx context.Context, seatID, studentID string) error {
	result := r.db.WithContext(ctx).
		Where("seat_id = ? AND student_id = ?", seatID, studentID).
		Delete(&model.SeatOccupant{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *occupantRepo) DeleteBySeat(ctx context.Context, seatID string) error {
	return r.db.WithContext(ctx).Where("seat_id = ?", seatID).Delete(&model.SeatOccupant{}).Error
}

// DeleteOrphans 删除指向不存在学员的占用记录，返回删除条数
func (r *occupantRepo) DeleteOrphans(ctx context.Context) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("NOT EXISTS (SELECT 1 FROM students s WHERE s.student_id = seat_occupants.student_id)").
		Delete(&model.SeatOccupant{})
	return result.RowsAffected, result.Error
}

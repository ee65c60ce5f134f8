package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"studyhall/internal/model"
)

// StudentFilter 学员列表筛选条件
type StudentFilter struct {
	Status string
	Shift  string
	Search string // 按姓名 / 邮箱模糊匹配
}

// StudentRepository 学员数据访问接口
type StudentRepository interface {
	Create(ctx context.Context, student *model.Student) error
	GetByID(ctx context.Context, id string) (*model.Student, error)
	GetByIDForUpdate(ctx context.Context, id string) (*model.Student, error)
	GetByEmail(ctx context.Context, email string) (*model.Student, error)
	UpdateFields(ctx context.Context, id string, fields map[string]interface{}) error
	SetSeatNumber(ctx context.Context, id string, seatNumber *int) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, filter StudentFilter, offset, limit int) ([]model.Student, int64, error)
	ListBillable(ctx context.Context) ([]model.Student, error)
	ListSeated(ctx context.Context) ([]model.Student, error)
	CountByStatus(ctx context.Context) (map[string]int64, error)
	CountByShift(ctx context.Context) (map[string]int64, error)
}

// studentRepo StudentRepository 的 GORM 实现
type studentRepo struct {
	db *gorm.DB
}

// NewStudentRepo 创建 StudentRepository 实例
func NewStudentRepo(db *gorm.DB) StudentRepository {
	return &studentRepo{db: db}
}

func (r *studentRepo) Create(ctx context.Context, student *model.Student) error {
	return r.db.WithContext(ctx).Create(student).Error
}

func (r *studentRepo) GetByID(ctx context.Context, id string) (*model.Student, error) {
	var student model.Student
	if err := r.db.WithContext(ctx).Where("student_id = ?", id).First(&student).Error; err != nil {
		return nil, err
	}
	return &student, nil
}

// GetByIDForUpdate 加行锁读取，必须在事务内调用
func (r *studentRepo) GetByIDForUpdate(ctx context.Context, id string) (*model.Student, error) {
	var student model.Student
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("student_id = ?", id).
		First(&student).Error
	if err != nil {
		return nil, err
	}
	return &student, nil
}

func (r *studentRepo) GetByEmail(ctx context.Context, email string) (*model.Student, error) {
	var student model.Student
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&student).Error; err != nil {
		return nil, err
	}
	return &student, nil
}

func (r *studentRepo) UpdateFields(ctx context.Context, id string, fields map[string]interface{}) error {
	result := r.db.WithContext(ctx).
		Model(&model.Student{}).
		Where("student_id = ?", id).
		Updates(fields)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *studentRepo) SetSeatNumber(ctx context.Context, id string, seatNumber *int) error {
	return r.db.WithContext(ctx).
		Model(&model.Student{}).
		Where("student_id = ?", id).
		Update("seat_number", seatNumber).Error
}

func (r *studentRepo) Delete(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Where("student_id = ?", id).Delete(&model.Student{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *studentRepo) List(ctx context.Context, filter StudentFilter, offset, limit int) ([]model.Student, int64, error) {
	var students []model.Student
	var total int64

	db := r.db.WithContext(ctx).Model(&model.Student{})
	if filter.Status != "" {
		db = db.Where("status = ?", filter.Status)
	}
	if filter.Shift != "" {
		db = db.Where("shift = ?", filter.Shift)
	}
	if filter.Search != "" {
		like := "%" + filter.Search + "%"
		db = db.Where("name ILIKE ? OR email ILIKE ?", like, like)
	}

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if err := db.Offset(offset).Limit(limit).
		Order("created_at DESC").
		Find(&students).Error; err != nil {
		return nil, 0, err
	}

	return students, total, nil
}

// ListBillable 列出需要生成月度账单的在读学员
func (r *studentRepo) ListBillable(ctx context.Context) ([]model.Student, error) {
	var students []model.Student
	err := r.db.WithContext(ctx).
		Where("status = ? AND monthly_fee > 0", model.StudentActive).
		Find(&students).Error
	return students, err
}

func (r *studentRepo) ListSeated(ctx context.Context) ([]model.Student, error) {
	var students []model.Student
	err := r.db.WithContext(ctx).
		Where("seat_number IS NOT NULL").
		Find(&students).Error
	return students, err
}

type groupCount struct {
	Key   string
	Count int64
}

func (r *studentRepo) countBy(ctx context.Context, column string) (map[string]int64, error) {
	var rows []groupCount
	err := r.db.WithContext(ctx).
		Model(&model.Student{}).
		Select(column + " AS key, COUNT(*) AS count").
		Group(column).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(rows))
	for _, row := range rows {
		out[row.Key] = row.Count
	}
	return out, nil
}

func (r *studentRepo) CountByStatus(ctx context.Context) (map[string]int64, error) {
	return r.countBy(ctx, "status")
}

func (r *studentRepo) CountByShift(ctx context.Context) (map[string]int64, error) {
	return r.countBy(ctx, "shift")
}

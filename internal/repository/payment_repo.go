package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"studyhall/internal/model"
)

// PaymentFilter 缴费列表筛选条件
type PaymentFilter struct {
	Status    string
	StudentID string
	Month     string
	Year      int
	Search    string // 按学员姓名 / 邮箱模糊匹配
}

// PaymentStats 缴费统计
type PaymentStats struct {
	Total         int64   `json:"total"`
	Paid          int64   `json:"paid"`
	Pending       int64   `json:"pending"`
	Overdue       int64   `json:"overdue"`
	TotalAmount   float64 `json:"totalAmount"`
	PaidAmount    float64 `json:"paidAmount"`
	PendingAmount float64 `json:"pendingAmount"`
}

// PaymentRepository 缴费数据访问接口
type PaymentRepository interface {
	Create(ctx context.Context, payment *model.Payment) error
	CreateIfAbsent(ctx context.Context, payments []model.Payment) (int64, error)
	GetByID(ctx context.Context, id string) (*model.Payment, error)
	GetByPeriod(ctx context.Context, studentID, month string, year int) (*model.Payment, error)
	GetByPeriodForUpdate(ctx context.Context, studentID, month string, year int) (*model.Payment, error)
	GetByIDForUpdate(ctx context.Context, id string) (*model.Payment, error)
	Update(ctx context.Context, payment *model.Payment) error
	UpdateFields(ctx context.Context, id string, fields map[string]interface{}) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, filter PaymentFilter, offset, limit int) ([]model.Payment, int64, error)
	ListAll(ctx context.Context, filter PaymentFilter) ([]model.Payment, error)
	ListByStudent(ctx context.Context, studentID, status string, limit int) ([]model.Payment, error)
	MarkOverdue(ctx context.Context, now time.Time) ([]model.Payment, error)
	Stats(ctx context.Context, studentID string) (*PaymentStats, error)
}

// paymentRepo PaymentRepository 的 GORM 实现
type paymentRepo struct {
	db *gorm.DB
}

// NewPaymentRepo 创建 PaymentRepository 实例
func NewPaymentRepo(db *gorm.DB) PaymentRepository {
	return &paymentRepo{db: db}
}

func (r *paymentRepo) Create(ctx context.Context, payment *model.Payment) error {
	return r.db.WithContext(ctx).Omit("Student").Create(payment).Error
}

// CreateIfAbsent 批量插入，账期已存在的记录跳过，返回实际插入条数
func (r *paymentRepo) CreateIfAbsent(ctx context.Context, payments []model.Payment) (int64, error) {
	if len(payments) == 0 {
		return 0, nil
	}
	result := r.db.WithContext(ctx).
		Omit("Student").
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&payments)
	return result.RowsAffected, result.Error
}

func (r *paymentRepo) GetByID(ctx context.Context, id string) (*model.Payment, error) {
	var payment model.Payment
	if err := r.db.WithContext(ctx).Preload("Student").Where("payment_id = ?", id).First(&payment).Error; err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *paymentRepo) GetByPeriod(ctx context.Context, studentID, month string, year int) (*model.Payment, error) {
	var payment model.Payment
	err := r.db.WithContext(ctx).
		Where("student_id = ? AND month = ? AND year = ?", studentID, month, year).
		First(&payment).Error
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

// GetByPeriodForUpdate 加行锁读取账期记录，必须在事务内调用
func (r *paymentRepo) GetByPeriodForUpdate(ctx context.Context, studentID, month string, year int) (*model.Payment, error) {
	var payment model.Payment
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("student_id = ? AND month = ? AND year = ?", studentID, month, year).
		First(&payment).Error
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

// GetByIDForUpdate 加行锁读取缴费记录，必须在事务内调用
func (r *paymentRepo) GetByIDForUpdate(ctx context.Context, id string) (*model.Payment, error) {
	var payment model.Payment
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("payment_id = ?", id).
		First(&payment).Error
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

// UpdateFields 只写入给定列
func (r *paymentRepo) UpdateFields(ctx context.Context, id string, fields map[string]interface{}) error {
	result := r.db.WithContext(ctx).
		Model(&model.Payment{}).
		Where("payment_id = ?", id).
		Updates(fields)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *paymentRepo) Update(ctx context.Context, payment *model.Payment) error {
	return r.db.WithContext(ctx).
		Model(&model.Payment{}).
		Where("payment_id = ?", payment.PaymentID).
		Updates(map[string]interface{}{
			"amount":    payment.Amount,
			"due_date":  payment.DueDate,
			"paid_date": payment.PaidDate,
			"status":    payment.Status,
			"method":    payment.Method,
			"month":     payment.Month,
			"year":      payment.Year,
		}).Error
}

func (r *paymentRepo) Delete(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Where("payment_id = ?", id).Delete(&model.Payment{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *paymentRepo) filtered(ctx context.Context, filter PaymentFilter) *gorm.DB {
	db := r.db.WithContext(ctx).Model(&model.Payment{})
	if filter.Status != "" {
		db = db.Where("payments.status = ?", filter.Status)
	}
	if filter.StudentID != "" {
		db = db.Where("payments.student_id = ?", filter.StudentID)
	}
	if filter.Month != "" {
		db = db.Where("payments.month = ?", filter.Month)
	}
	if filter.Year != 0 {
		db = db.Where("payments.year = ?", filter.Year)
	}
	if filter.Search != "" {
		like := "%" + filter.Search + "%"
		db = db.Joins("JOIN students ON students.student_id = payments.student_id").
			Where("students.name ILIKE ? OR students.email ILIKE ?", like, like)
	}
	return db
}

func (r *paymentRepo) List(ctx context.Context, filter PaymentFilter, offset, limit int) ([]model.Payment, int64, error) {
	var payments []model.Payment
	var total int64

	if err := r.filtered(ctx, filter).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if err := r.filtered(ctx, filter).
		Preload("Student").
		Offset(offset).Limit(limit).
		Order("payments.due_date DESC").
		Find(&payments).Error; err != nil {
		return nil, 0, err
	}

	return payments, total, nil
}

// ListAll 不分页导出
func (r *paymentRepo) ListAll(ctx context.Context, filter PaymentFilter) ([]model.Payment, error) {
	var payments []model.Payment
	err := r.filtered(ctx, filter).
		Preload("Student").
		Order("payments.year DESC, payments.due_date DESC").
		Find(&payments).Error
	return payments, err
}

func (r *paymentRepo) ListByStudent(ctx context.Context, studentID, status string, limit int) ([]model.Payment, error) {
	var payments []model.Payment
	db := r.db.WithContext(ctx).Where("student_id = ?", studentID)
	if status != "" {
		db = db.Where("status = ?", status)
	}
	if limit > 0 {
		db = db.Limit(limit)
	}
	err := db.Order("due_date DESC").Find(&payments).Error
	return payments, err
}

// MarkOverdue 将已过截止日的 pending 记录置为 overdue，返回被更新的记录
func (r *paymentRepo) MarkOverdue(ctx context.Context, now time.Time) ([]model.Payment, error) {
	var moved []model.Payment
	err := r.db.WithContext(ctx).
		Model(&moved).
		Clauses(clause.Returning{}).
		Where("status = ? AND due_date < ?", model.PaymentPending, now).
		Update("status", model.PaymentOverdue).Error
	if err != nil {
		return nil, err
	}
	return moved, nil
}

// Stats 缴费统计；studentID 非空时仅统计该学员
func (r *paymentRepo) Stats(ctx context.Context, studentID string) (*PaymentStats, error) {
	var stats PaymentStats
	db := r.db.WithContext(ctx).Model(&model.Payment{}).Select(`
		COUNT(*) AS total,
		COUNT(*) FILTER (WHERE status = 'paid') AS paid,
		COUNT(*) FILTER (WHERE status = 'pending') AS pending,
		COUNT(*) FILTER (WHERE status = 'overdue') AS overdue,
		COALESCE(SUM(amount), 0) AS total_amount,
		COALESCE(SUM(amount) FILTER (WHERE status = 'paid'), 0) AS paid_amount,
		COALESCE(SUM(amount) FILTER (WHERE status <> 'paid'), 0) AS pending_amount`)
	if studentID != "" {
		db = db.Where("student_id = ?", studentID)
	}
	if err := db.Scan(&stats).Error; err != nil {
		return nil, err
	}
	return &stats, nil
}

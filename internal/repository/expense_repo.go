package repository

import (
	"context"

	"gorm.io/gorm"

	"studyhall/internal/model"
)

// ExpenseFilter 支出列表筛选条件
type ExpenseFilter struct {
	Category string
	Type     string
}

// CategoryAmount 分类汇总
type CategoryAmount struct {
	Category string  `json:"category"`
	Count    int64   `json:"count"`
	Amount   float64 `json:"amount"`
}

// ExpenseStats 支出统计
type ExpenseStats struct {
	Total      float64          `json:"total"`
	Recurring  float64          `json:"recurring"`
	ByCategory []CategoryAmount `json:"byCategory"`
}

// ExpenseRepository 支出数据访问接口
type ExpenseRepository interface {
	Create(ctx context.Context, expense *model.Expense) error
	GetByID(ctx context.Context, id string) (*model.Expense, error)
	UpdateFields(ctx context.Context, id string, fields map[string]interface{}) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, filter ExpenseFilter, offset, limit int) ([]model.Expense, int64, error)
	Stats(ctx context.Context) (*ExpenseStats, error)
}

// expenseRepo ExpenseRepository 的 GORM 实现
type expenseRepo struct {
	db *gorm.DB
}

// NewExpenseRepo 创建 ExpenseRepository 实例
func NewExpenseRepo(db *gorm.DB) ExpenseRepository {
	return &expenseRepo{db: db}
}

func (r *expenseRepo) Create(ctx context.Context, expense *model.Expense) error {
	return r.db.WithContext(ctx).Create(expense).Error
}

func (r *expenseRepo) GetByID(ctx context.Context, id string) (*model.Expense, error) {
	var expense model.Expense
	if err := r.db.WithContext(ctx).Where("expense_id = ?", id).First(&expense).Error; err != nil {
		return nil, err
	}
	return &expense, nil
}

func (r *expenseRepo) UpdateFields(ctx context.Context, id string, fields map[string]interface{}) error {
	result := r.db.WithContext(ctx).Model(&model.Expense{}).Where("expense_id = ?", id).Updates(fields)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *expenseRepo) Delete(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Where("expense_id = ?", id).Delete(&model.Expense{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *expenseRepo) List(ctx context.Context, filter ExpenseFilter, offset, limit int) ([]model.Expense, int64, error) {
	var expenses []model.Expense
	var total int64

	db := r.db.WithContext(ctx).Model(&model.Expense{})
	if filter.Category != "" {
		db = db.Where("category = ?", filter.Category)
	}
	if filter.Type != "" {
		db = db.Where("type = ?", filter.Type)
	}

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if err := db.Offset(offset).Limit(limit).Order("date DESC").Find(&expenses).Error; err != nil {
		return nil, 0, err
	}
	return expenses, total, nil
}

func (r *expenseRepo) Stats(ctx context.Context) (*ExpenseStats, error) {
	var totals struct {
		Total     float64
		Recurring float64
	}
	err := r.db.WithContext(ctx).Model(&model.Expense{}).
		Select("COALESCE(SUM(amount), 0) AS total, COALESCE(SUM(amount) FILTER (WHERE type = 'recurring'), 0) AS recurring").
		Scan(&totals).Error
	if err != nil {
		return nil, err
	}

	var byCategory []CategoryAmount
	err = r.db.WithContext(ctx).Model(&model.Expense{}).
		Select("category, COUNT(*) AS count, COALESCE(SUM(amount), 0) AS amount").
		Group("category").
		Order("amount DESC").
		Scan(&byCategory).Error
	if err != nil {
		return nil, err
	}
	return &ExpenseStats{Total: totals.Total, Recurring: totals.Recurring, ByCategory: byCategory}, nil
}

package repository

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"gorm.io/gorm"

	"studyhall/internal/model"
)

// MonthlyAmount 按月汇总金额
type MonthlyAmount struct {
	Year   int     `json:"year"`
	Month  int     `json:"month"`
	Amount float64 `json:"amount"`
	Count  int64   `json:"count"`
}

// RevenueQuery 收入分析查询条件，零值字段不参与过滤
type RevenueQuery struct {
	From  time.Time
	To    time.Time
	Shift string
}

// DashboardRepository 报表聚合查询接口（只读）
type DashboardRepository interface {
	RevenueByMonth(ctx context.Context, q RevenueQuery) ([]MonthlyAmount, error)
	ExpensesByMonth(ctx context.Context, q RevenueQuery) ([]MonthlyAmount, error)
	PaidTotal(ctx context.Context, q RevenueQuery) (float64, error)
}

// dashboardRepo 使用 squirrel 拼装动态聚合 SQL，交由 GORM 执行
// 占位符保持 ?，由 GORM 的 postgres 方言转换
type dashboardRepo struct {
	db *gorm.DB
	sb sq.StatementBuilderType
}

// NewDashboardRepo 创建 DashboardRepository 实例
func NewDashboardRepo(db *gorm.DB) DashboardRepository {
	return &dashboardRepo{
		db: db,
		sb: sq.StatementBuilder.PlaceholderFormat(sq.Question),
	}
}

func (r *dashboardRepo) paidPayments(q RevenueQuery) sq.SelectBuilder {
	b := r.sb.Select().
		From("payments p").
		Where(sq.Eq{"p.status": model.PaymentPaid}).
		Where("p.paid_date IS NOT NULL")
	if !q.From.IsZero() {
		b = b.Where(sq.GtOrEq{"p.paid_date": q.From})
	}
	if !q.To.IsZero() {
		b = b.Where(sq.Lt{"p.paid_date": q.To})
	}
	if q.Shift != "" {
		b = b.Join("students s ON s.student_id = p.student_id").
			Where(sq.Eq{"s.shift": q.Shift})
	}
	return b
}

func (r *dashboardRepo) RevenueByMonth(ctx context.Context, q RevenueQuery) ([]MonthlyAmount, error) {
	query, args, err := r.paidPayments(q).
		Columns(
			"EXTRACT(YEAR FROM p.paid_date)::int AS year",
			"EXTRACT(MONTH FROM p.paid_date)::int AS month",
			"COALESCE(SUM(p.amount), 0) AS amount",
			"COUNT(*) AS count",
		).
		GroupBy("1", "2").
		OrderBy("1", "2").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("构建收入统计 SQL 失败: %w", err)
	}

	var rows []MonthlyAmount
	if err := r.db.WithContext(ctx).Raw(query, args...).Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *dashboardRepo) ExpensesByMonth(ctx context.Context, q RevenueQuery) ([]MonthlyAmount, error) {
	b := r.sb.Select(
		"EXTRACT(YEAR FROM e.date)::int AS year",
		"EXTRACT(MONTH FROM e.date)::int AS month",
		"COALESCE(SUM(e.amount), 0) AS amount",
		"COUNT(*) AS count",
	).From("expenses e")
	if !q.From.IsZero() {
		b = b.Where(sq.GtOrEq{"e.date": q.From})
	}
	if !q.To.IsZero() {
		b = b.Where(sq.Lt{"e.date": q.To})
	}

	query, args, err := b.GroupBy("1", "2").OrderBy("1", "2").ToSql()
	if err != nil {
		return nil, fmt.Errorf("构建支出统计 SQL 失败: %w", err)
	}

	var rows []MonthlyAmount
	if err := r.db.WithContext(ctx).Raw(query, args...).Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *dashboardRepo) PaidTotal(ctx context.Context, q RevenueQuery) (float64, error) {
	query, args, err := r.paidPayments(q).
		Columns("COALESCE(SUM(p.amount), 0)").
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("构建收入合计 SQL 失败: %w", err)
	}

	var total float64
	if err := r.db.WithContext(ctx).Raw(query, args...).Scan(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

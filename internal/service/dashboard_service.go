package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"studyhall/internal/dto"
	"studyhall/internal/model"
	"studyhall/internal/repository"
)

const (
	dashboardTrendMonths = 6
	dashboardAlertLimit  = 10
	defaultRevenuePeriod = "6months"
)

var revenuePeriodMonths = map[string]int{
	"1month":  1,
	"3months": 3,
	"6months": 6,
	"1year":   12,
}

// DashboardService 只读的运营报表
type DashboardService interface {
	Stats(ctx context.Context) (*dto.DashboardStats, error)
	RevenueAnalytics(ctx context.Context, req *dto.RevenueAnalyticsRequest) (*dto.RevenueAnalytics, error)
}

type dashboardService struct {
	repo   *repository.Repository
	logger *zap.Logger
	now    func() time.Time
}

// NewDashboardService 创建 DashboardService 实例
func NewDashboardService(repo *repository.Repository, logger *zap.Logger) DashboardService {
	return &dashboardService{repo: repo, logger: logger, now: time.Now}
}

func (s *dashboardService) Stats(ctx context.Context) (*dto.DashboardStats, error) {
	byStatus, err := s.repo.Student.CountByStatus(ctx)
	if err != nil {
		s.logger.Error("统计学员状态失败", zap.Error(err))
		return nil, err
	}
	byShift, err := s.repo.Student.CountByShift(ctx)
	if err != nil {
		s.logger.Error("统计学员时段失败", zap.Error(err))
		return nil, err
	}
	seats, err := s.repo.Seat.Stats(ctx)
	if err != nil {
		s.logger.Error("统计座位失败", zap.Error(err))
		return nil, err
	}
	payments, err := s.repo.Payment.Stats(ctx, "")
	if err != nil {
		s.logger.Error("统计缴费失败", zap.Error(err))
		return nil, err
	}

	monthStart := startOfMonth(s.now())
	monthly, err := s.repo.Dashboard.PaidTotal(ctx, repository.RevenueQuery{
		From: monthStart,
		To:   monthStart.AddDate(0, 1, 0),
	})
	if err != nil {
		s.logger.Error("统计本月收入失败", zap.Error(err))
		return nil, err
	}
	trend, err := s.repo.Dashboard.RevenueByMonth(ctx, repository.RevenueQuery{
		From: monthStart.AddDate(0, -(dashboardTrendMonths - 1), 0),
	})
	if err != nil {
		s.logger.Error("统计收入趋势失败", zap.Error(err))
		return nil, err
	}
	alerts, err := s.repo.Alert.Recent(ctx, dashboardAlertLimit)
	if err != nil {
		s.logger.Error("查询最近提醒失败", zap.Error(err))
		return nil, err
	}

	overview := dto.StudentOverview{
		Active:   byStatus[model.StudentActive],
		Inactive: byStatus[model.StudentInactive],
		ByShift:  byShift,
	}
	for _, n := range byStatus {
		overview.Total += n
	}

	return &dto.DashboardStats{
		Students:       overview,
		Seats:          *seats,
		Payments:       *payments,
		MonthlyRevenue: monthly,
		RevenueTrend:   nonNil(trend),
		RecentAlerts:   nonNil(alerts),
	}, nil
}

// RevenueAnalytics 按月汇总选定区间内的收入与支出，区间从当月起向前回溯
func (s *dashboardService) RevenueAnalytics(ctx context.Context, req *dto.RevenueAnalyticsRequest) (*dto.RevenueAnalytics, error) {
	period := req.Period
	if _, ok := revenuePeriodMonths[period]; !ok {
		period = defaultRevenuePeriod
	}
	from := startOfMonth(s.now()).AddDate(0, -(revenuePeriodMonths[period] - 1), 0)

	revenue, err := s.repo.Dashboard.RevenueByMonth(ctx, repository.RevenueQuery{From: from, Shift: req.Shift})
	if err != nil {
		s.logger.Error("统计收入失败", zap.Error(err))
		return nil, err
	}
	expenses, err := s.repo.Dashboard.ExpensesByMonth(ctx, repository.RevenueQuery{From: from})
	if err != nil {
		s.logger.Error("统计支出失败", zap.Error(err))
		return nil, err
	}

	out := &dto.RevenueAnalytics{
		Period:   period,
		From:     from.Format("2006-01-02"),
		Revenue:  nonNil(revenue),
		Expenses: nonNil(expenses),
	}
	for _, r := range revenue {
		out.TotalRevenue += r.Amount
	}
	for _, e := range expenses {
		out.TotalExpense += e.Amount
	}
	out.NetProfit = out.TotalRevenue - out.TotalExpense
	return out, nil
}

func startOfMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}

// nonNil 保证 JSON 输出为 [] 而不是 null
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

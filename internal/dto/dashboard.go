package dto

import (
	"studyhall/internal/model"
	"studyhall/internal/repository"
)

// ── 报表模块 DTO ──

// RevenueAnalyticsRequest 收入分析查询参数
type RevenueAnalyticsRequest struct {
	Period string `form:"period" binding:"omitempty,oneof=1month 3months 6months 1year"`
	Shift  string `form:"shift"  binding:"omitempty,oneof=morning afternoon evening"`
}

// StudentOverview 学员概况
type StudentOverview struct {
	Total    int64            `json:"total"`
	Active   int64            `json:"active"`
	Inactive int64            `json:"inactive"`
	ByShift  map[string]int64 `json:"byShift"`
}

// DashboardStats 仪表盘统计
type DashboardStats struct {
	Students       StudentOverview            `json:"students"`
	Seats          repository.SeatStats       `json:"seats"`
	Payments       repository.PaymentStats    `json:"payments"`
	MonthlyRevenue float64                    `json:"monthlyRevenue"`
	RevenueTrend   []repository.MonthlyAmount `json:"revenueTrend"`
	RecentAlerts   []model.Alert              `json:"recentAlerts"`
}

// RevenueAnalytics 收入分析
type RevenueAnalytics struct {
	Period       string                     `json:"period"`
	From         string                     `json:"from"`
	Revenue      []repository.MonthlyAmount `json:"revenue"`
	Expenses     []repository.MonthlyAmount `json:"expenses"`
	TotalRevenue float64                    `json:"totalRevenue"`
	TotalExpense float64                    `json:"totalExpense"`
	NetProfit    float64                    `json:"netProfit"`
}

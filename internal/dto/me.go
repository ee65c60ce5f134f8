package dto

import (
	"studyhall/internal/model"
	"studyhall/internal/repository"
)

// ── 学员自助模块 DTO ──

// MyPaymentsRequest 本人缴费记录查询参数
type MyPaymentsRequest struct {
	Status string `form:"status" binding:"omitempty,oneof=pending paid overdue"`
	Limit  int    `form:"limit"  binding:"omitempty,min=1,max=100"`
}

// MyPaymentsResponse 本人缴费记录及统计
type MyPaymentsResponse struct {
	Payments   []model.Payment         `json:"payments"`
	Statistics repository.PaymentStats `json:"statistics"`
}

// DuePaymentsResponse 本人待缴汇总
type DuePaymentsResponse struct {
	Pending     []model.Payment `json:"pending"`
	Overdue     []model.Payment `json:"overdue"`
	TotalDue    float64         `json:"totalDue"`
	NextDueDate string          `json:"nextDueDate,omitempty"`
}

// MyAlertsResponse 本人提醒
type MyAlertsResponse struct {
	Alerts      []model.Alert `json:"alerts"`
	UnreadCount int64         `json:"unreadCount"`
}

// MyDashboardResponse 学员首页
type MyDashboardResponse struct {
	Student      model.Student           `json:"student"`
	Seat         *SeatResponse           `json:"seat"`
	Payments     repository.PaymentStats `json:"payments"`
	RecentAlerts []model.Alert           `json:"recentAlerts"`
	UnreadCount  int64                   `json:"unreadCount"`
}

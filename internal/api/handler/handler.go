package handler

import (
	"studyhall/config"
	"studyhall/internal/service"
)

// Handler 所有 Handler 的聚合入口
type Handler struct {
	Auth      *AuthHandler
	Admin     *AdminHandler
	Student   *StudentHandler
	Seat      *SeatHandler
	Payment   *PaymentHandler
	Expense   *ExpenseHandler
	Alert     *AlertHandler
	Dashboard *DashboardHandler
	Me        *MeHandler
}

// NewHandler 创建 Handler 聚合
func NewHandler(cfg *config.Config, svc *service.Service) *Handler {
	return &Handler{
		Auth:      NewAuthHandler(svc.Auth, &cfg.Auth),
		Admin:     NewAdminHandler(svc.Admin),
		Student:   NewStudentHandler(svc.Student),
		Seat:      NewSeatHandler(svc.Seat),
		Payment:   NewPaymentHandler(svc.Payment, svc.Export),
		Expense:   NewExpenseHandler(svc.Expense),
		Alert:     NewAlertHandler(svc.Alert),
		Dashboard: NewDashboardHandler(svc.Dashboard),
		Me:        NewMeHandler(svc.Self),
	}
}

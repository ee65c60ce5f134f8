package service

import (
	"errors"

	"go.uber.org/zap"

	"studyhall/config"
	"studyhall/internal/repository"
	pkgerrors "studyhall/pkg/errors"
	"studyhall/pkg/jwt"
	"studyhall/pkg/redis"
)

// Service 所有 Service 的聚合入口
type Service struct {
	Auth      AuthService
	Admin     AdminService
	Student   StudentService
	Seat      SeatService
	Payment   PaymentService
	Expense   ExpenseService
	Alert     AlertService
	Dashboard DashboardService
	Export    ExportService
	Self      SelfService
}

// NewService 创建 Service 聚合；rdb 为 nil 时 Token 黑名单不可用
func NewService(
	cfg *config.Config,
	repo *repository.Repository,
	jwtMgr *jwt.Manager,
	rdb *redis.Client,
	logger *zap.Logger,
) *Service {
	var blacklist TokenBlacklist
	if rdb != nil {
		blacklist = rdb
	}

	seats := NewSeatService(&cfg.Seats, repo, logger)
	export := NewExportService(repo, logger)

	return &Service{
		Auth:      NewAuthService(cfg, repo, jwtMgr, blacklist, logger),
		Admin:     NewAdminService(&cfg.Auth, repo, logger),
		Student:   NewStudentService(repo, logger),
		Seat:      seats,
		Payment:   NewPaymentService(&cfg.Billing, repo, logger),
		Expense:   NewExpenseService(repo, logger),
		Alert:     NewAlertService(repo, logger),
		Dashboard: NewDashboardService(repo, logger),
		Export:    export,
		Self:      NewSelfService(repo, seats, export, logger),
	}
}

// businessErrors 预期内的业务错误，不记录为 Error 日志
var businessErrors = []error{
	// 座位
	ErrSeatNotFound, ErrStudentAlreadySeated, ErrSeatUnavailable, ErrInvalidTiming,
	ErrTimingConflict, ErrSeatNotOccupied, ErrStudentNotOnSeat, ErrSeatNumberExists,
	ErrSeatHasOccupants, ErrSeatsAlreadyInitialized,
	// 学员
	ErrStudentNotFound, ErrStudentEmailExists, ErrInvalidDate, ErrConcurrentUpdate,
	errOccupantMoved,
	// 缴费
	ErrPaymentNotFound, ErrPaymentPeriodExists, ErrPaymentAlreadyPaid,
	ErrInvalidPaymentTransition, ErrInvalidMonth,
	pkgerrors.ErrOptimisticLock,
}

func isBusinessError(err error) bool {
	for _, target := range businessErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

package service

import (
	"context"
	"errors"
	"sort"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"studyhall/internal/dto"
	"studyhall/internal/model"
	"studyhall/internal/repository"
)

var ErrNoStudentProfile = errors.New("当前账号未关联学员档案")

const (
	defaultMyPaymentsLimit = 20
	myAlertsLimit          = 50
	myDashboardAlertLimit  = 5
)

// SelfService 学员自助查询，所有操作限定在调用方关联的学员范围内
type SelfService interface {
	Details(ctx context.Context, caller model.Identity) (*model.Student, error)
	Payments(ctx context.Context, caller model.Identity, req *dto.MyPaymentsRequest) (*dto.MyPaymentsResponse, error)
	DuePayments(ctx context.Context, caller model.Identity) (*dto.DuePaymentsResponse, error)
	Alerts(ctx context.Context, caller model.Identity) (*dto.MyAlertsResponse, error)
	Seat(ctx context.Context, caller model.Identity) (*dto.SeatResponse, error)
	Dashboard(ctx context.Context, caller model.Identity) (*dto.MyDashboardResponse, error)
	Calendar(ctx context.Context, caller model.Identity) (*ExportFile, error)
}

type selfService struct {
	repo   *repository.Repository
	seats  SeatService
	export ExportService
	logger *zap.Logger
}

// NewSelfService 创建 SelfService 实例
func NewSelfService(repo *repository.Repository, seats SeatService, export ExportService, logger *zap.Logger) SelfService {
	return &selfService{repo: repo, seats: seats, export: export, logger: logger}
}

func (s *selfService) Details(ctx context.Context, caller model.Identity) (*model.Student, error) {
	return s.student(ctx, caller)
}

func (s *selfService) Payments(ctx context.Context, caller model.Identity, req *dto.MyPaymentsRequest) (*dto.MyPaymentsResponse, error) {
	student, err := s.student(ctx, caller)
	if err != nil {
		return nil, err
	}

	limit := req.Limit
	if limit <= 0 {
		limit = defaultMyPaymentsLimit
	}
	payments, err := s.repo.Payment.ListByStudent(ctx, student.StudentID, req.Status, limit)
	if err != nil {
		s.logger.Error("查询本人缴费记录失败", zap.String("student_id", student.StudentID), zap.Error(err))
		return nil, err
	}
	stats, err := s.repo.Payment.Stats(ctx, student.StudentID)
	if err != nil {
		s.logger.Error("查询本人缴费统计失败", zap.String("student_id", student.StudentID), zap.Error(err))
		return nil, err
	}

	return &dto.MyPaymentsResponse{
		Payments:   nonNil(payments),
		Statistics: *stats,
	}, nil
}

// DuePayments 未结清账期汇总，下一截止日取待缴记录中最早的一条
func (s *selfService) DuePayments(ctx context.Context, caller model.Identity) (*dto.DuePaymentsResponse, error) {
	student, err := s.student(ctx, caller)
	if err != nil {
		return nil, err
	}

	pending, err := s.repo.Payment.ListByStudent(ctx, student.StudentID, model.PaymentPending, 0)
	if err != nil {
		s.logger.Error("查询待缴记录失败", zap.Error(err))
		return nil, err
	}
	overdue, err := s.repo.Payment.ListByStudent(ctx, student.StudentID, model.PaymentOverdue, 0)
	if err != nil {
		s.logger.Error("查询逾期记录失败", zap.Error(err))
		return nil, err
	}

	resp := &dto.DuePaymentsResponse{
		Pending: nonNil(pending),
		Overdue: nonNil(overdue),
	}
	for _, p := range pending {
		resp.TotalDue += p.Amount
	}
	for _, p := range overdue {
		resp.TotalDue += p.Amount
	}
	if len(pending) > 0 {
		sorted := append([]model.Payment(nil), pending...)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i].DueDate.Before(sorted[j].DueDate) })
		resp.NextDueDate = sorted[0].DueDate.Format("2006-01-02")
	}
	return resp, nil
}

func (s *selfService) Alerts(ctx context.Context, caller model.Identity) (*dto.MyAlertsResponse, error) {
	student, err := s.student(ctx, caller)
	if err != nil {
		return nil, err
	}
	alerts, unread, err := s.alerts(ctx, student.StudentID, myAlertsLimit)
	if err != nil {
		return nil, err
	}
	return &dto.MyAlertsResponse{Alerts: alerts, UnreadCount: unread}, nil
}

// Seat 未分配座位时返回 nil
func (s *selfService) Seat(ctx context.Context, caller model.Identity) (*dto.SeatResponse, error) {
	student, err := s.student(ctx, caller)
	if err != nil {
		return nil, err
	}
	return s.seats.GetForStudent(ctx, student.StudentID)
}

func (s *selfService) Dashboard(ctx context.Context, caller model.Identity) (*dto.MyDashboardResponse, error) {
	student, err := s.student(ctx, caller)
	if err != nil {
		return nil, err
	}
	seat, err := s.seats.GetForStudent(ctx, student.StudentID)
	if err != nil {
		return nil, err
	}
	stats, err := s.repo.Payment.Stats(ctx, student.StudentID)
	if err != nil {
		s.logger.Error("查询本人缴费统计失败", zap.Error(err))
		return nil, err
	}
	alerts, unread, err := s.alerts(ctx, student.StudentID, myDashboardAlertLimit)
	if err != nil {
		return nil, err
	}

	return &dto.MyDashboardResponse{
		Student:      *student,
		Seat:         seat,
		Payments:     *stats,
		RecentAlerts: alerts,
		UnreadCount:  unread,
	}, nil
}

func (s *selfService) Calendar(ctx context.Context, caller model.Identity) (*ExportFile, error) {
	student, err := s.student(ctx, caller)
	if err != nil {
		return nil, err
	}
	return s.export.PaymentCalendar(ctx, student.StudentID)
}

// ── helpers ──

func (s *selfService) student(ctx context.Context, caller model.Identity) (*model.Student, error) {
	if caller.StudentID == "" {
		return nil, ErrNoStudentProfile
	}
	student, err := s.repo.Student.GetByID(ctx, caller.StudentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNoStudentProfile
		}
		s.logger.Error("查询学员档案失败", zap.String("student_id", caller.StudentID), zap.Error(err))
		return nil, err
	}
	return student, nil
}

func (s *selfService) alerts(ctx context.Context, studentID string, limit int) ([]model.Alert, int64, error) {
	alerts, err := s.repo.Alert.ListForStudent(ctx, studentID, limit)
	if err != nil {
		s.logger.Error("查询本人提醒失败", zap.String("student_id", studentID), zap.Error(err))
		return nil, 0, err
	}
	unread, err := s.repo.Alert.CountUnreadForStudent(ctx, studentID)
	if err != nil {
		s.logger.Error("统计未读提醒失败", zap.String("student_id", studentID), zap.Error(err))
		return nil, 0, err
	}
	return nonNil(alerts), unread, nil
}

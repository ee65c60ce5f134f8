package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"studyhall/config"
	"studyhall/internal/dto"
	"studyhall/internal/model"
	"studyhall/internal/repository"
	pkgerrors "studyhall/pkg/errors"
)

// ── 缴费模块业务错误 ──

var (
	ErrPaymentNotFound          = errors.New("缴费记录不存在")
	ErrPaymentPeriodExists      = errors.New("该学员此账期已有缴费记录")
	ErrPaymentAlreadyPaid       = errors.New("该账期已缴清")
	ErrInvalidPaymentTransition = errors.New("缴费状态不允许此变更")
	ErrInvalidMonth             = errors.New("月份无效")
)

// PaymentService 缴费账本
//
// 状态机：pending → paid、pending → overdue（仅逾期扫描）、overdue → paid；paid 为终态
type PaymentService interface {
	List(ctx context.Context, req *dto.PaymentListRequest) (*dto.PageResult[model.Payment], error)
	ListByStudent(ctx context.Context, studentID string) ([]model.Payment, error)
	Stats(ctx context.Context) (*repository.PaymentStats, error)
	AddPending(ctx context.Context, req *dto.PendingPaymentRequest) (*model.Payment, error)
	Deposit(ctx context.Context, req *dto.DepositPaymentRequest) (*model.Payment, error)
	Update(ctx context.Context, id string, req *dto.UpdatePaymentRequest) (*model.Payment, error)
	Delete(ctx context.Context, id string) error
	SweepOverdue(ctx context.Context, now time.Time) (*dto.SweepResult, error)
	GenerateMonthly(ctx context.Context, now time.Time) (*dto.GenerateResult, error)
}

type paymentService struct {
	cfg    *config.BillingConfig
	repo   *repository.Repository
	logger *zap.Logger
}

// NewPaymentService 创建 PaymentService 实例
func NewPaymentService(cfg *config.BillingConfig, repo *repository.Repository, logger *zap.Logger) PaymentService {
	return &paymentService{cfg: cfg, repo: repo, logger: logger}
}

// ────────────────────── Query ──────────────────────

func (s *paymentService) List(ctx context.Context, req *dto.PaymentListRequest) (*dto.PageResult[model.Payment], error) {
	filter := repository.PaymentFilter{
		Status:    req.Status,
		StudentID: req.StudentID,
		Month:     req.Month,
		Year:      req.Year,
		Search:    strings.TrimSpace(req.Search),
	}
	payments, total, err := s.repo.Payment.List(ctx, filter, req.GetOffset(), req.GetPageSize())
	if err != nil {
		s.logger.Error("查询缴费列表失败", zap.Error(err))
		return nil, err
	}
	return &dto.PageResult[model.Payment]{
		List:     payments,
		Total:    total,
		Page:     req.GetPage(),
		PageSize: req.GetPageSize(),
	}, nil
}

func (s *paymentService) ListByStudent(ctx context.Context, studentID string) ([]model.Payment, error) {
	payments, err := s.repo.Payment.ListByStudent(ctx, studentID, "", 0)
	if err != nil {
		s.logger.Error("查询学员缴费记录失败", zap.String("student_id", studentID), zap.Error(err))
		return nil, err
	}
	return payments, nil
}

func (s *paymentService) Stats(ctx context.Context) (*repository.PaymentStats, error) {
	stats, err := s.repo.Payment.Stats(ctx, "")
	if err != nil {
		s.logger.Error("查询缴费统计失败", zap.Error(err))
		return nil, err
	}
	return stats, nil
}

// ────────────────────── AddPending ──────────────────────

// AddPending 登记待缴账期，截止日为账期次月的 due_day 日
func (s *paymentService) AddPending(ctx context.Context, req *dto.PendingPaymentRequest) (*model.Payment, error) {
	month, ok := model.ParseMonth(req.Month)
	if !ok {
		return nil, ErrInvalidMonth
	}
	if err := s.ensureStudent(ctx, s.repo, req.StudentID); err != nil {
		return nil, err
	}

	if _, err := s.repo.Payment.GetByPeriod(ctx, req.StudentID, req.Month, req.Year); err == nil {
		return nil, ErrPaymentPeriodExists
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		s.logger.Error("查询账期失败", zap.Error(err))
		return nil, err
	}

	payment := &model.Payment{
		StudentID: req.StudentID,
		Amount:    req.Amount,
		DueDate:   model.DueDateFor(month, req.Year, s.cfg.DueDay, time.UTC),
		Status:    model.PaymentPending,
		Month:     req.Month,
		Year:      req.Year,
	}
	if err := s.repo.Payment.Create(ctx, payment); err != nil {
		if pkgerrors.IsUniqueViolation(err, "") {
			return nil, ErrPaymentPeriodExists
		}
		s.logger.Error("创建待缴记录失败", zap.String("student_id", req.StudentID), zap.Error(err))
		return nil, err
	}
	return payment, nil
}

// ────────────────────── Deposit ──────────────────────

// Deposit 登记缴费：已有 pending/overdue 记录则置为 paid，无记录则直接创建 paid 记录；
// 已缴清的账期拒绝重复登记
func (s *paymentService) Deposit(ctx context.Context, req *dto.DepositPaymentRequest) (*model.Payment, error) {
	month, ok := model.ParseMonth(req.Month)
	if !ok {
		return nil, ErrInvalidMonth
	}

	var payment *model.Payment
	err := s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		student, err := tx.Student.GetByID(ctx, req.StudentID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrStudentNotFound
			}
			return err
		}

		now := time.Now()
		method := req.Method

		existing, err := tx.Payment.GetByPeriodForUpdate(ctx, req.StudentID, req.Month, req.Year)
		switch {
		case err == nil:
			if existing.Status == model.PaymentPaid {
				return ErrPaymentAlreadyPaid
			}
			existing.Status = model.PaymentPaid
			existing.Amount = req.Amount
			existing.Method = &method
			existing.PaidDate = &now
			if err := tx.Payment.Update(ctx, existing); err != nil {
				return err
			}
			payment = existing
		case errors.Is(err, gorm.ErrRecordNotFound):
			payment = &model.Payment{
				StudentID: req.StudentID,
				Amount:    req.Amount,
				DueDate:   model.DueDateFor(month, req.Year, s.cfg.DueDay, time.UTC),
				PaidDate:  &now,
				Status:    model.PaymentPaid,
				Method:    &method,
				Month:     req.Month,
				Year:      req.Year,
			}
			if err := tx.Payment.Create(ctx, payment); err != nil {
				return err
			}
		default:
			return err
		}

		return tx.Alert.Create(ctx, s.paymentReceivedAlert(student, payment))
	})
	if err != nil {
		if pkgerrors.IsUniqueViolation(err, "") {
			return nil, ErrConcurrentUpdate
		}
		if !isBusinessError(err) {
			s.logger.Error("登记缴费失败", zap.String("student_id", req.StudentID), zap.Error(err))
		}
		return nil, err
	}

	s.logger.Info("缴费已登记",
		zap.String("payment_id", payment.PaymentID),
		zap.String("student_id", req.StudentID),
		zap.String("period", fmt.Sprintf("%s %d", req.Month, req.Year)),
	)
	return payment, nil
}

// ────────────────────── Update / Delete ──────────────────────

// Update 在行锁内修改缴费记录，只写入请求中出现的字段
// 状态变更按锁定后的当前状态校验，避免覆盖并发的缴费或逾期扫描
func (s *paymentService) Update(ctx context.Context, id string, req *dto.UpdatePaymentRequest) (*model.Payment, error) {
	var payment *model.Payment
	err := s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		p, err := tx.Payment.GetByIDForUpdate(ctx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrPaymentNotFound
			}
			return err
		}

		fields, err := s.applyUpdate(ctx, tx, p, req)
		if err != nil {
			return err
		}
		if len(fields) > 0 {
			if err := tx.Payment.UpdateFields(ctx, id, fields); err != nil {
				return err
			}
		}
		payment = p
		return nil
	})
	if err != nil {
		if pkgerrors.IsUniqueViolation(err, "") {
			return nil, ErrPaymentPeriodExists
		}
		if !isBusinessError(err) {
			s.logger.Error("更新缴费记录失败", zap.String("id", id), zap.Error(err))
		}
		return nil, err
	}
	return payment, nil
}

// applyUpdate 把请求合并到已锁定的记录上，返回需要写入的列
func (s *paymentService) applyUpdate(ctx context.Context, tx *repository.Repository, p *model.Payment, req *dto.UpdatePaymentRequest) (map[string]interface{}, error) {
	if req.Status != nil && !model.CanTransition(p.Status, *req.Status, false) {
		return nil, ErrInvalidPaymentTransition
	}

	fields := make(map[string]interface{})

	periodChanged := false
	if req.Month != nil && *req.Month != p.Month {
		p.Month = *req.Month
		fields["month"] = p.Month
		periodChanged = true
	}
	if req.Year != nil && *req.Year != p.Year {
		p.Year = *req.Year
		fields["year"] = p.Year
		periodChanged = true
	}
	if periodChanged {
		month, ok := model.ParseMonth(p.Month)
		if !ok {
			return nil, ErrInvalidMonth
		}
		other, err := tx.Payment.GetByPeriod(ctx, p.StudentID, p.Month, p.Year)
		if err == nil && other.PaymentID != p.PaymentID {
			return nil, ErrPaymentPeriodExists
		}
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		p.DueDate = model.DueDateFor(month, p.Year, s.cfg.DueDay, time.UTC)
		fields["due_date"] = p.DueDate
	}

	if req.Amount != nil {
		p.Amount = *req.Amount
		fields["amount"] = p.Amount
	}
	if req.Method != nil {
		method := *req.Method
		p.Method = &method
		fields["method"] = p.Method
	}
	if req.PaidDate != nil {
		d, err := time.Parse("2006-01-02", *req.PaidDate)
		if err != nil {
			return nil, ErrInvalidDate
		}
		p.PaidDate = &d
		fields["paid_date"] = p.PaidDate
	}
	if req.Status != nil && *req.Status != p.Status {
		p.Status = *req.Status
		fields["status"] = p.Status
		if p.Status == model.PaymentPaid && p.PaidDate == nil {
			now := time.Now()
			p.PaidDate = &now
			fields["paid_date"] = p.PaidDate
		}
	}
	return fields, nil
}

// Delete 管理员显式删除缴费记录
func (s *paymentService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Payment.Delete(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrPaymentNotFound
		}
		s.logger.Error("删除缴费记录失败", zap.String("id", id), zap.Error(err))
		return err
	}
	return nil
}

// ────────────────────── 定时任务 ──────────────────────

// SweepOverdue 将截止日已过的 pending 记录置为 overdue，并为每条记录追加一条提醒；
// 状态更新与提醒写入在同一事务内，重复执行不会产生重复提醒
func (s *paymentService) SweepOverdue(ctx context.Context, now time.Time) (*dto.SweepResult, error) {
	var moved []model.Payment
	err := s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		var err error
		moved, err = tx.Payment.MarkOverdue(ctx, now)
		if err != nil {
			return err
		}

		alerts := make([]model.Alert, 0, len(moved))
		for i := range moved {
			name := "Unknown student"
			if st, err := tx.Student.GetByID(ctx, moved[i].StudentID); err == nil {
				name = st.Name
			} else if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
			alerts = append(alerts, s.overdueAlert(name, &moved[i]))
		}
		return tx.Alert.CreateBatch(ctx, alerts)
	})
	if err != nil {
		s.logger.Error("逾期扫描失败", zap.Error(err))
		return nil, err
	}

	if len(moved) > 0 {
		s.logger.Info("逾期扫描完成", zap.Int("moved", len(moved)))
	}
	return &dto.SweepResult{Moved: len(moved)}, nil
}

// GenerateMonthly 为所有在读且月费大于 0 的学员生成当月待缴记录，已存在的账期跳过
func (s *paymentService) GenerateMonthly(ctx context.Context, now time.Time) (*dto.GenerateResult, error) {
	students, err := s.repo.Student.ListBillable(ctx)
	if err != nil {
		s.logger.Error("查询计费学员失败", zap.Error(err))
		return nil, err
	}

	month := model.MonthName(now.Month())
	due := model.DueDateFor(now.Month(), now.Year(), s.cfg.DueDay, time.UTC)

	payments := make([]model.Payment, 0, len(students))
	for _, st := range students {
		payments = append(payments, model.Payment{
			StudentID: st.StudentID,
			Amount:    st.MonthlyFee,
			DueDate:   due,
			Status:    model.PaymentPending,
			Month:     month,
			Year:      now.Year(),
		})
	}

	created, err := s.repo.Payment.CreateIfAbsent(ctx, payments)
	if err != nil {
		s.logger.Error("生成月度账单失败", zap.Error(err))
		return nil, err
	}

	s.logger.Info("月度账单生成完成",
		zap.String("month", month),
		zap.Int("year", now.Year()),
		zap.Int64("created", created),
	)
	return &dto.GenerateResult{
		Month:   month,
		Year:    now.Year(),
		Created: created,
		Skipped: int64(len(payments)) - created,
	}, nil
}

// ────────────────────── helpers ──────────────────────

func (s *paymentService) ensureStudent(ctx context.Context, repo *repository.Repository, id string) error {
	if _, err := repo.Student.GetByID(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrStudentNotFound
		}
		s.logger.Error("查询学员失败", zap.String("id", id), zap.Error(err))
		return err
	}
	return nil
}

func (s *paymentService) paymentReceivedAlert(student *model.Student, p *model.Payment) *model.Alert {
	id := student.StudentID
	return &model.Alert{
		Type:      model.AlertSuccess,
		Title:     "Payment Received",
		Message:   fmt.Sprintf("%s %.2f received from %s for %s %d", s.cfg.Currency, p.Amount, student.Name, p.Month, p.Year),
		StudentID: &id,
	}
}

func (s *paymentService) overdueAlert(studentName string, p *model.Payment) model.Alert {
	id := p.StudentID
	return model.Alert{
		Type:      model.AlertWarning,
		Title:     "Payment Overdue",
		Message:   fmt.Sprintf("Payment of %s %.2f for %s %d is overdue for %s", s.cfg.Currency, p.Amount, p.Month, p.Year, studentName),
		StudentID: &id,
	}
}

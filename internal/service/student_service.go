package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"studyhall/internal/dto"
	"studyhall/internal/model"
	"studyhall/internal/repository"
	pkgerrors "studyhall/pkg/errors"
)

// ── 学员模块业务错误 ──

var (
	ErrStudentNotFound    = errors.New("学员不存在")
	ErrStudentEmailExists = errors.New("该邮箱已被其他学员使用")
	ErrInvalidDate        = errors.New("日期格式无效，应为 YYYY-MM-DD")
	ErrConcurrentUpdate   = errors.New("数据正在被其他操作修改，请稍后重试")
)

// errOccupantMoved 删除学员期间其座位发生变化，需要重试事务
var errOccupantMoved = errors.New("occupant moved")

const deleteStudentAttempts = 3

// StudentService 学员业务接口
type StudentService interface {
	Create(ctx context.Context, req *dto.CreateStudentRequest) (*model.Student, error)
	GetByID(ctx context.Context, id string) (*model.Student, error)
	List(ctx context.Context, req *dto.StudentListRequest) (*dto.PageResult[model.Student], error)
	Update(ctx context.Context, id string, req *dto.UpdateStudentRequest) (*model.Student, error)
	Delete(ctx context.Context, id string) error
}

type studentService struct {
	repo   *repository.Repository
	logger *zap.Logger
}

// NewStudentService 创建 StudentService 实例
func NewStudentService(repo *repository.Repository, logger *zap.Logger) StudentService {
	return &studentService{repo: repo, logger: logger}
}

// ────────────────────── Create ──────────────────────

func (s *studentService) Create(ctx context.Context, req *dto.CreateStudentRequest) (*model.Student, error) {
	email := normalizeEmail(req.Email)

	if _, err := s.repo.Student.GetByEmail(ctx, email); err == nil {
		return nil, ErrStudentEmailExists
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		s.logger.Error("查询学员邮箱失败", zap.Error(err))
		return nil, err
	}

	joinDate := time.Now()
	if req.JoinDate != "" {
		d, err := time.Parse("2006-01-02", req.JoinDate)
		if err != nil {
			return nil, ErrInvalidDate
		}
		joinDate = d
	}

	seatingType := req.SeatingType
	if seatingType == "" {
		seatingType = model.TimingFull
	}

	student := &model.Student{
		Name:        strings.TrimSpace(req.Name),
		Email:       email,
		Phone:       strings.TrimSpace(req.Phone),
		Address:     strings.TrimSpace(req.Address),
		JoinDate:    joinDate,
		Shift:       req.Shift,
		SeatingType: seatingType,
		Status:      model.StudentActive,
		MonthlyFee:  req.MonthlyFee,
	}

	err := s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		if err := tx.Student.Create(ctx, student); err != nil {
			return err
		}
		return tx.Alert.Create(ctx, newStudentAlert(student))
	})
	if err != nil {
		if pkgerrors.IsUniqueViolation(err, "") {
			return nil, ErrStudentEmailExists
		}
		s.logger.Error("创建学员失败", zap.String("email", email), zap.Error(err))
		return nil, err
	}

	s.logger.Info("学员已创建", zap.String("student_id", student.StudentID))
	return student, nil
}

// ────────────────────── Query ──────────────────────

func (s *studentService) GetByID(ctx context.Context, id string) (*model.Student, error) {
	student, err := s.repo.Student.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrStudentNotFound
		}
		s.logger.Error("查询学员失败", zap.String("id", id), zap.Error(err))
		return nil, err
	}
	return student, nil
}

func (s *studentService) List(ctx context.Context, req *dto.StudentListRequest) (*dto.PageResult[model.Student], error) {
	filter := repository.StudentFilter{
		Status: req.Status,
		Shift:  req.Shift,
		Search: strings.TrimSpace(req.Search),
	}
	students, total, err := s.repo.Student.List(ctx, filter, req.GetOffset(), req.GetPageSize())
	if err != nil {
		s.logger.Error("查询学员列表失败", zap.Error(err))
		return nil, err
	}
	return &dto.PageResult[model.Student]{
		List:     students,
		Total:    total,
		Page:     req.GetPage(),
		PageSize: req.GetPageSize(),
	}, nil
}

// ────────────────────── Update ──────────────────────

// Update 仅更新白名单字段；seat_number 只能由座位引擎维护
func (s *studentService) Update(ctx context.Context, id string, req *dto.UpdateStudentRequest) (*model.Student, error) {
	if _, err := s.GetByID(ctx, id); err != nil {
		return nil, err
	}

	fields := make(map[string]interface{})
	if req.Name != nil {
		fields["name"] = strings.TrimSpace(*req.Name)
	}
	if req.Email != nil {
		email := normalizeEmail(*req.Email)
		other, err := s.repo.Student.GetByEmail(ctx, email)
		if err == nil && other.StudentID != id {
			return nil, ErrStudentEmailExists
		}
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			s.logger.Error("查询学员邮箱失败", zap.Error(err))
			return nil, err
		}
		fields["email"] = email
	}
	if req.Phone != nil {
		fields["phone"] = strings.TrimSpace(*req.Phone)
	}
	if req.Address != nil {
		fields["address"] = strings.TrimSpace(*req.Address)
	}
	if req.Shift != nil {
		fields["shift"] = *req.Shift
	}
	if req.SeatingType != nil {
		fields["seating_type"] = *req.SeatingType
	}
	if req.Status != nil {
		fields["status"] = *req.Status
	}
	if req.MonthlyFee != nil {
		fields["monthly_fee"] = *req.MonthlyFee
	}

	if len(fields) > 0 {
		if err := s.repo.Student.UpdateFields(ctx, id, fields); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrStudentNotFound
			}
			if pkgerrors.IsUniqueViolation(err, "") {
				return nil, ErrStudentEmailExists
			}
			s.logger.Error("更新学员失败", zap.String("id", id), zap.Error(err))
			return nil, err
		}
	}

	return s.GetByID(ctx, id)
}

// ────────────────────── Delete ──────────────────────

// Delete 删除学员并在同一事务内释放其座位
//
// 先无锁读取占用关系，再按 座位 → 学员 的顺序加锁并复核；
// 若复核时占用已迁移到其他座位则整体重试
func (s *studentService) Delete(ctx context.Context, id string) error {
	for attempt := 1; attempt <= deleteStudentAttempts; attempt++ {
		err := s.repo.Transaction(ctx, func(tx *repository.Repository) error {
			return s.deleteInTx(ctx, tx, id)
		})
		if errors.Is(err, errOccupantMoved) {
			s.logger.Warn("删除学员时座位发生变化，重试",
				zap.String("student_id", id),
				zap.Int("attempt", attempt),
			)
			continue
		}
		if err != nil {
			if !isBusinessError(err) {
				s.logger.Error("删除学员失败", zap.String("id", id), zap.Error(err))
			}
			return err
		}
		s.logger.Info("学员已删除", zap.String("student_id", id))
		return nil
	}
	return ErrConcurrentUpdate
}

func (s *studentService) deleteInTx(ctx context.Context, tx *repository.Repository, id string) error {
	var seat *model.Seat
	occ, err := tx.Occupant.GetByStudent(ctx, id)
	switch {
	case err == nil:
		seat, err = tx.Seat.LockByID(ctx, occ.SeatID)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return err
	}

	if _, err := tx.Student.GetByIDForUpdate(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrStudentNotFound
		}
		return err
	}

	// 持有学员行锁后占用关系不会再变化
	current, err := tx.Occupant.GetByStudent(ctx, id)
	switch {
	case err == nil:
		if seat == nil || current.SeatID != seat.SeatID {
			return errOccupantMoved
		}
		occupants, err := tx.Occupant.ListBySeat(ctx, seat.SeatID)
		if err != nil {
			return err
		}
		if err := tx.Occupant.Delete(ctx, seat.SeatID, id); err != nil {
			return err
		}
		seat.Recompute(len(occupants) - 1)
		if err := tx.Seat.UpdateOccupancy(ctx, seat); err != nil {
			return err
		}
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return err
	}

	// 仍有占用关系引用该学员时外键拒绝删除，按并发变化重试
	if err := tx.Student.Delete(ctx, id); err != nil {
		if pkgerrors.IsForeignKeyViolation(err) {
			return errOccupantMoved
		}
		return err
	}
	return nil
}

// ────────────────────── helpers ──────────────────────

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func newStudentAlert(student *model.Student) *model.Alert {
	id := student.StudentID
	return &model.Alert{
		Type:      model.AlertInfo,
		Title:     "New Student Registration",
		Message:   fmt.Sprintf("%s has joined the %s shift", student.Name, student.Shift),
		StudentID: &id,
	}
}

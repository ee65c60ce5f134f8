package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"studyhall/config"
	"studyhall/internal/dto"
	"studyhall/internal/model"
	"studyhall/internal/repository"
	pkgerrors "studyhall/pkg/errors"
)

// ── 座位模块业务错误 ──

var (
	ErrSeatNotFound            = errors.New("座位不存在")
	ErrStudentAlreadySeated    = errors.New("该学员已分配座位")
	ErrSeatUnavailable         = errors.New("座位已满，无法分配")
	ErrInvalidTiming           = errors.New("座位时段必须为 half 或 full")
	ErrTimingConflict          = errors.New("座位当前时段与请求时段冲突")
	ErrSeatNotOccupied         = errors.New("座位当前无人占用")
	ErrStudentNotOnSeat        = errors.New("该学员不在此座位上")
	ErrSeatNumberExists        = errors.New("座位号已存在")
	ErrSeatHasOccupants        = errors.New("座位仍有学员占用，请先释放或使用 force")
	ErrSeatsAlreadyInitialized = errors.New("座位已初始化")
)

// StudentSeatedError 学员已占用其他座位，携带现有座位号
type StudentSeatedError struct {
	SeatNumber int
}

func (e *StudentSeatedError) Error() string {
	if e.SeatNumber == 0 {
		return ErrStudentAlreadySeated.Error()
	}
	return fmt.Sprintf("该学员已分配 %d 号座位", e.SeatNumber)
}

// Is 使 errors.Is(err, ErrStudentAlreadySeated) 成立
func (e *StudentSeatedError) Is(target error) bool {
	return target == ErrStudentAlreadySeated
}

const occupantStudentConstraint = "uq_seat_occupants_student"

// SeatService 座位占用引擎
//
// 所有占用变更在单个事务内完成，加锁顺序固定为 座位 → 学员；
// seat_occupants.student_id 唯一约束兜底并发下的重复分配
type SeatService interface {
	List(ctx context.Context) ([]dto.SeatResponse, error)
	Stats(ctx context.Context) (*repository.SeatStats, error)
	Assign(ctx context.Context, req *dto.AssignSeatRequest) (*dto.SeatResponse, error)
	Unassign(ctx context.Context, seatID string, req *dto.UnassignSeatRequest) (*dto.SeatResponse, error)
	Create(ctx context.Context, req *dto.CreateSeatRequest) (*dto.SeatResponse, error)
	Delete(ctx context.Context, req *dto.DeleteSeatRequest) error
	Initialize(ctx context.Context, req *dto.InitializeSeatsRequest) ([]dto.SeatResponse, error)
	GetForStudent(ctx context.Context, studentID string) (*dto.SeatResponse, error)
	Reconcile(ctx context.Context) (*dto.ReconcileReport, error)
}

type seatService struct {
	cfg    *config.SeatsConfig
	repo   *repository.Repository
	logger *zap.Logger
}

// NewSeatService 创建 SeatService 实例
func NewSeatService(cfg *config.SeatsConfig, repo *repository.Repository, logger *zap.Logger) SeatService {
	return &seatService{cfg: cfg, repo: repo, logger: logger}
}

// ────────────────────── List / Stats ──────────────────────

func (s *seatService) List(ctx context.Context) ([]dto.SeatResponse, error) {
	seats, err := s.repo.Seat.List(ctx)
	if err != nil {
		s.logger.Error("查询座位列表失败", zap.Error(err))
		return nil, err
	}
	out := make([]dto.SeatResponse, 0, len(seats))
	for i := range seats {
		out = append(out, toSeatResponse(&seats[i]))
	}
	return out, nil
}

func (s *seatService) Stats(ctx context.Context) (*repository.SeatStats, error) {
	stats, err := s.repo.Seat.Stats(ctx)
	if err != nil {
		s.logger.Error("查询座位统计失败", zap.Error(err))
		return nil, err
	}
	return stats, nil
}

// ────────────────────── Assign ──────────────────────

func (s *seatService) Assign(ctx context.Context, req *dto.AssignSeatRequest) (*dto.SeatResponse, error) {
	if req.SeatOccupiedTiming != "" && !model.IsValidTiming(req.SeatOccupiedTiming) {
		return nil, ErrInvalidTiming
	}

	err := s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		// 1. 学员是否已占用任意座位
		existing, err := tx.Occupant.GetByStudent(ctx, req.StudentID)
		if err == nil {
			return s.seatedError(ctx, tx, existing.SeatID)
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		// 2. 座位存在（加锁）
		seat, err := tx.Seat.LockByID(ctx, req.SeatID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrSeatNotFound
			}
			return err
		}

		// 3. 座位未满
		if seat.Occupied {
			return ErrSeatUnavailable
		}

		// 4. 学员存在（加锁）
		student, err := tx.Student.GetByIDForUpdate(ctx, req.StudentID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrStudentNotFound
			}
			return err
		}

		occupants, err := tx.Occupant.ListBySeat(ctx, seat.SeatID)
		if err != nil {
			return err
		}

		timing, err := resolveTiming(seat, student, req.SeatOccupiedTiming, len(occupants))
		if err != nil {
			return err
		}
		if len(occupants)+1 > model.TimingCapacity(timing) {
			return ErrSeatUnavailable
		}

		seat.OccupiedTiming = timing
		if err := tx.Occupant.Create(ctx, &model.SeatOccupant{
			SeatID:     seat.SeatID,
			StudentID:  student.StudentID,
			Slot:       model.NextSlot(occupants),
			AssignedAt: time.Now(),
		}); err != nil {
			return err
		}

		seat.Recompute(len(occupants) + 1)
		if err := tx.Seat.UpdateOccupancy(ctx, seat); err != nil {
			return err
		}

		number := seat.SeatNumber
		return tx.Student.SetSeatNumber(ctx, student.StudentID, &number)
	})
	if err != nil {
		if pkgerrors.IsUniqueViolation(err, occupantStudentConstraint) {
			// 并发分配：事务已回滚，重新查询现有座位号
			if occ, lookupErr := s.repo.Occupant.GetByStudent(ctx, req.StudentID); lookupErr == nil {
				return nil, s.seatedError(ctx, s.repo, occ.SeatID)
			}
			return nil, &StudentSeatedError{}
		}
		if !isBusinessError(err) {
			s.logger.Error("分配座位失败",
				zap.String("seat_id", req.SeatID),
				zap.String("student_id", req.StudentID),
				zap.Error(err),
			)
		}
		return nil, err
	}

	s.logger.Info("座位已分配",
		zap.String("seat_id", req.SeatID),
		zap.String("student_id", req.StudentID),
	)
	return s.load(ctx, req.SeatID)
}

// resolveTiming 决定本次分配使用的时段：
// 显式请求优先；否则沿用座位当前时段；空座位则取学员声明的座位类型
func resolveTiming(seat *model.Seat, student *model.Student, requested string, occupied int) (string, error) {
	if requested != "" {
		if occupied > 0 && requested != seat.OccupiedTiming {
			return "", ErrTimingConflict
		}
		return requested, nil
	}
	if occupied > 0 && model.IsValidTiming(seat.OccupiedTiming) {
		return seat.OccupiedTiming, nil
	}
	if model.IsValidTiming(student.SeatingType) {
		return student.SeatingType, nil
	}
	return model.TimingFull, nil
}

func (s *seatService) seatedError(ctx context.Context, repo *repository.Repository, seatID string) error {
	seat, err := repo.Seat.GetByID(ctx, seatID)
	if err != nil {
		return &StudentSeatedError{}
	}
	return &StudentSeatedError{SeatNumber: seat.SeatNumber}
}

// ────────────────────── Unassign ──────────────────────

func (s *seatService) Unassign(ctx context.Context, seatID string, req *dto.UnassignSeatRequest) (*dto.SeatResponse, error) {
	err := s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		seat, err := tx.Seat.LockByID(ctx, seatID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrSeatNotFound
			}
			return err
		}

		occupants, err := tx.Occupant.ListBySeat(ctx, seat.SeatID)
		if err != nil {
			return err
		}
		if len(occupants) == 0 {
			return ErrSeatNotOccupied
		}
		if !hasOccupant(occupants, req.StudentID) {
			return ErrStudentNotOnSeat
		}

		// 学员行加锁，与 Assign 的加锁顺序一致
		if _, err := tx.Student.GetByIDForUpdate(ctx, req.StudentID); err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		if err := tx.Occupant.Delete(ctx, seat.SeatID, req.StudentID); err != nil {
			return err
		}

		seat.Recompute(len(occupants) - 1)
		if err := tx.Seat.UpdateOccupancy(ctx, seat); err != nil {
			return err
		}
		return tx.Student.SetSeatNumber(ctx, req.StudentID, nil)
	})
	if err != nil {
		if !isBusinessError(err) {
			s.logger.Error("释放座位失败",
				zap.String("seat_id", seatID),
				zap.String("student_id", req.StudentID),
				zap.Error(err),
			)
		}
		return nil, err
	}

	s.logger.Info("座位已释放",
		zap.String("seat_id", seatID),
		zap.String("student_id", req.StudentID),
	)
	return s.load(ctx, seatID)
}

func hasOccupant(occupants []model.SeatOccupant, studentID string) bool {
	for _, o := range occupants {
		if o.StudentID == studentID {
			return true
		}
	}
	return false
}

// ────────────────────── Create / Delete / Initialize ──────────────────────

func (s *seatService) Create(ctx context.Context, req *dto.CreateSeatRequest) (*dto.SeatResponse, error) {
	if _, err := s.repo.Seat.GetByNumber(ctx, req.SeatNumber); err == nil {
		return nil, ErrSeatNumberExists
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		s.logger.Error("查询座位失败", zap.Int("seat_number", req.SeatNumber), zap.Error(err))
		return nil, err
	}

	seatType := req.Type
	if seatType == "" {
		seatType = model.SeatRegular
	}
	row, column := model.SeatPosition(req.SeatNumber, s.cfg.PerRow)
	if req.Row > 0 {
		row = req.Row
	}
	if req.Column > 0 {
		column = req.Column
	}

	seat := &model.Seat{
		SeatNumber:     req.SeatNumber,
		Type:           seatType,
		OccupiedTiming: model.TimingNone,
		PositionRow:    row,
		PositionColumn: column,
	}
	if err := s.repo.Seat.Create(ctx, seat); err != nil {
		if pkgerrors.IsUniqueViolation(err, "") {
			return nil, ErrSeatNumberExists
		}
		s.logger.Error("创建座位失败", zap.Int("seat_number", req.SeatNumber), zap.Error(err))
		return nil, err
	}

	resp := toSeatResponse(seat)
	return &resp, nil
}

// Delete 删除座位；有占用者时默认拒绝，force 时在同一事务内先释放
func (s *seatService) Delete(ctx context.Context, req *dto.DeleteSeatRequest) error {
	err := s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		seat, err := tx.Seat.LockByNumber(ctx, req.SeatNumber)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrSeatNotFound
			}
			return err
		}

		occupants, err := tx.Occupant.ListBySeat(ctx, seat.SeatID)
		if err != nil {
			return err
		}
		if len(occupants) > 0 {
			if !req.Force {
				return ErrSeatHasOccupants
			}
			for _, o := range occupants {
				if err := tx.Student.SetSeatNumber(ctx, o.StudentID, nil); err != nil {
					return err
				}
			}
			if err := tx.Occupant.DeleteBySeat(ctx, seat.SeatID); err != nil {
				return err
			}
		}

		return tx.Seat.Delete(ctx, seat.SeatID)
	})
	if err != nil {
		if !isBusinessError(err) {
			s.logger.Error("删除座位失败", zap.Int("seat_number", req.SeatNumber), zap.Error(err))
		}
		return err
	}

	s.logger.Info("座位已删除", zap.Int("seat_number", req.SeatNumber), zap.Bool("force", req.Force))
	return nil
}

// Initialize 批量创建座位（仅在尚无座位时允许）
func (s *seatService) Initialize(ctx context.Context, req *dto.InitializeSeatsRequest) ([]dto.SeatResponse, error) {
	count := req.Count
	if count <= 0 {
		count = s.cfg.InitialCount
	}

	seats := make([]model.Seat, 0, count)
	for i := 1; i <= count; i++ {
		row, column := model.SeatPosition(i, s.cfg.PerRow)
		seats = append(seats, model.Seat{
			SeatNumber:     i,
			Type:           model.SeatTier(i, count),
			OccupiedTiming: model.TimingNone,
			PositionRow:    row,
			PositionColumn: column,
		})
	}

	err := s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		n, err := tx.Seat.Count(ctx)
		if err != nil {
			return err
		}
		if n > 0 {
			return ErrSeatsAlreadyInitialized
		}
		return tx.Seat.CreateBatch(ctx, seats)
	})
	if err != nil {
		if pkgerrors.IsUniqueViolation(err, "") {
			return nil, ErrSeatsAlreadyInitialized
		}
		if !isBusinessError(err) {
			s.logger.Error("初始化座位失败", zap.Int("count", count), zap.Error(err))
		}
		return nil, err
	}

	s.logger.Info("座位初始化完成", zap.Int("count", count))
	out := make([]dto.SeatResponse, 0, len(seats))
	for i := range seats {
		out = append(out, toSeatResponse(&seats[i]))
	}
	return out, nil
}

// ────────────────────── GetForStudent ──────────────────────

// GetForStudent 查询学员当前座位，未分配时返回 nil
func (s *seatService) GetForStudent(ctx context.Context, studentID string) (*dto.SeatResponse, error) {
	occ, err := s.repo.Occupant.GetByStudent(ctx, studentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		s.logger.Error("查询学员座位失败", zap.String("student_id", studentID), zap.Error(err))
		return nil, err
	}
	return s.load(ctx, occ.SeatID)
}

// ────────────────────── Reconcile ──────────────────────

// Reconcile 启动时的一致性修复：
// 删除指向不存在学员的占用记录，按实际人数重算座位派生字段，并同步学员的冗余座位号
func (s *seatService) Reconcile(ctx context.Context) (*dto.ReconcileReport, error) {
	report := &dto.ReconcileReport{}

	err := s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		orphans, err := tx.Occupant.DeleteOrphans(ctx)
		if err != nil {
			return err
		}
		report.OrphanOccupants = orphans

		seats, err := tx.Seat.List(ctx)
		if err != nil {
			return err
		}

		expected := make(map[string]int) // student_id → seat_number
		for i := range seats {
			seat := &seats[i]
			n := len(seat.Occupants)
			for _, o := range seat.Occupants {
				expected[o.StudentID] = seat.SeatNumber
			}

			timing, occupied := seat.OccupiedTiming, seat.Occupied
			if n > 0 && n > model.TimingCapacity(seat.OccupiedTiming) {
				// 时段与人数不符时按人数推断：2 人只能是半天
				if n == 1 {
					seat.OccupiedTiming = model.TimingFull
				} else {
					seat.OccupiedTiming = model.TimingHalf
				}
			}
			seat.Recompute(n)
			if seat.OccupiedTiming != timing || seat.Occupied != occupied {
				if err := tx.Seat.UpdateOccupancy(ctx, seat); err != nil {
					return err
				}
				report.SeatsRepaired++
			}
		}

		seated, err := tx.Student.ListSeated(ctx)
		if err != nil {
			return err
		}
		synced := make(map[string]bool, len(seated))
		for _, st := range seated {
			want, ok := expected[st.StudentID]
			switch {
			case !ok:
				if err := tx.Student.SetSeatNumber(ctx, st.StudentID, nil); err != nil {
					return err
				}
				report.StudentsResynced++
			case st.SeatNumber == nil || *st.SeatNumber != want:
				if err := tx.Student.SetSeatNumber(ctx, st.StudentID, &want); err != nil {
					return err
				}
				report.StudentsResynced++
			}
			synced[st.StudentID] = true
		}
		for studentID, want := range expected {
			if synced[studentID] {
				continue
			}
			number := want
			if err := tx.Student.SetSeatNumber(ctx, studentID, &number); err != nil {
				return err
			}
			report.StudentsResynced++
		}
		return nil
	})
	if err != nil {
		s.logger.Error("座位一致性修复失败", zap.Error(err))
		return nil, err
	}

	s.logger.Info("座位一致性检查完成",
		zap.Int64("orphan_occupants", report.OrphanOccupants),
		zap.Int("seats_repaired", report.SeatsRepaired),
		zap.Int("students_resynced", report.StudentsResynced),
	)
	return report, nil
}

// ────────────────────── helpers ──────────────────────

func (s *seatService) load(ctx context.Context, seatID string) (*dto.SeatResponse, error) {
	seat, err := s.repo.Seat.GetByID(ctx, seatID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSeatNotFound
		}
		s.logger.Error("查询座位失败", zap.String("seat_id", seatID), zap.Error(err))
		return nil, err
	}
	resp := toSeatResponse(seat)
	return &resp, nil
}

func toSeatResponse(seat *model.Seat) dto.SeatResponse {
	students := make([]dto.SeatStudent, 0, len(seat.Occupants))
	for _, o := range seat.Occupants {
		st := dto.SeatStudent{StudentID: o.StudentID, Slot: o.Slot}
		if o.Student != nil {
			st.Name = o.Student.Name
			st.Email = o.Student.Email
		}
		students = append(students, st)
	}
	return dto.SeatResponse{
		ID:                 seat.SeatID,
		SeatNumber:         seat.SeatNumber,
		Type:               seat.Type,
		SeatOccupiedTiming: seat.OccupiedTiming,
		Occupied:           seat.Occupied,
		Position:           dto.SeatPosition{Row: seat.PositionRow, Column: seat.PositionColumn},
		Students:           students,
		Version:            seat.Version,
	}
}

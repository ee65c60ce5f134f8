//go:build integration

package repository_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"studyhall/config"
	"studyhall/internal/dto"
	"studyhall/internal/model"
	"studyhall/internal/repository"
	"studyhall/internal/service"
	"studyhall/pkg/database"
	pkgerrors "studyhall/pkg/errors"
)

// ═══════════════════════════════════════════════════════════
// Test Setup
// ═══════════════════════════════════════════════════════════

var testDB *gorm.DB

func TestMain(m *testing.M) {
	dsn := os.Getenv("TEST_DATABASE_DSN")
	if dsn == "" {
		dsn = "host=localhost port=5433 user=studyhall password=studyhall_password dbname=studyhall_test sslmode=disable TimeZone=UTC"
	}

	var err error
	testDB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "无法连接测试数据库: %v\n", err)
		os.Exit(1)
	}

	// 使用与生产一致的迁移脚本，约束名与线上相同
	sqlDB, err := testDB.DB()
	if err != nil {
		fmt.Fprintf(os.Stderr, "获取 sql.DB 失败: %v\n", err)
		os.Exit(1)
	}
	if err := database.RunMigrations(sqlDB, zap.NewNop()); err != nil {
		fmt.Fprintf(os.Stderr, "迁移失败: %v\n", err)
		os.Exit(1)
	}

	os.Exit(m.Run())
}

// reset 清空业务表，每个测试独立
func reset(t *testing.T) *repository.Repository {
	t.Helper()
	err := testDB.Exec("TRUNCATE alerts, payments, expenses, seat_occupants, users, seats, students CASCADE").Error
	if err != nil {
		t.Fatalf("清理数据失败: %v", err)
	}
	return repository.NewRepository(testDB)
}

func createStudent(t *testing.T, repo *repository.Repository, name string) *model.Student {
	t.Helper()
	s := &model.Student{
		Name:        name,
		Email:       fmt.Sprintf("%s-%d@test.com", name, time.Now().UnixNano()),
		Phone:       "9999999999",
		JoinDate:    time.Now(),
		Shift:       model.ShiftMorning,
		SeatingType: model.TimingFull,
		Status:      model.StudentActive,
		MonthlyFee:  1500,
	}
	if err := repo.Student.Create(context.Background(), s); err != nil {
		t.Fatalf("创建学员失败: %v", err)
	}
	return s
}

func createSeat(t *testing.T, repo *repository.Repository, number int) *model.Seat {
	t.Helper()
	seat := &model.Seat{SeatNumber: number, Type: model.SeatRegular, OccupiedTiming: model.TimingNone}
	if err := repo.Seat.Create(context.Background(), seat); err != nil {
		t.Fatalf("创建座位失败: %v", err)
	}
	return seat
}

func newSeatService(repo *repository.Repository) service.SeatService {
	return service.NewSeatService(&config.SeatsConfig{InitialCount: 10, PerRow: 5}, repo, zap.NewNop())
}

// ═══════════════════════════════════════════════════════════
// 数据库约束
// ═══════════════════════════════════════════════════════════

func TestOccupant_StudentUnique(t *testing.T) {
	repo := reset(t)
	ctx := context.Background()
	st := createStudent(t, repo, "asha")
	s1 := createSeat(t, repo, 1)
	s2 := createSeat(t, repo, 2)

	if err := repo.Occupant.Create(ctx, &model.SeatOccupant{SeatID: s1.SeatID, StudentID: st.StudentID, Slot: 1}); err != nil {
		t.Fatalf("首次占用应成功: %v", err)
	}
	err := repo.Occupant.Create(ctx, &model.SeatOccupant{SeatID: s2.SeatID, StudentID: st.StudentID, Slot: 1})
	if !pkgerrors.IsUniqueViolation(err, "uq_seat_occupants_student") {
		t.Errorf("期望 uq_seat_occupants_student 冲突，实际: %v", err)
	}
}

func TestStudentDelete_BlockedByOccupant(t *testing.T) {
	repo := reset(t)
	ctx := context.Background()
	st := createStudent(t, repo, "ravi")
	seat := createSeat(t, repo, 1)
	_ = repo.Occupant.Create(ctx, &model.SeatOccupant{SeatID: seat.SeatID, StudentID: st.StudentID, Slot: 1})

	if err := repo.Student.Delete(ctx, st.StudentID); !pkgerrors.IsForeignKeyViolation(err) {
		t.Errorf("期望外键约束阻止删除，实际: %v", err)
	}
}

func TestSeat_UpdateOccupancyVersion(t *testing.T) {
	repo := reset(t)
	ctx := context.Background()
	seat := createSeat(t, repo, 1)

	stale := *seat
	seat.Recompute(0)
	if err := repo.Seat.UpdateOccupancy(ctx, seat); err != nil {
		t.Fatalf("首次更新应成功: %v", err)
	}
	if err := repo.Seat.UpdateOccupancy(ctx, &stale); !errors.Is(err, pkgerrors.ErrOptimisticLock) {
		t.Errorf("旧版本更新期望 ErrOptimisticLock，实际: %v", err)
	}
}

func TestTransaction_Rollback(t *testing.T) {
	repo := reset(t)
	ctx := context.Background()

	boom := errors.New("boom")
	err := repo.Transaction(ctx, func(tx *repository.Repository) error {
		if err := tx.Seat.Create(ctx, &model.Seat{SeatNumber: 9, Type: model.SeatRegular, OccupiedTiming: model.TimingNone}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("期望返回 boom，实际: %v", err)
	}
	if n, _ := repo.Seat.Count(ctx); n != 0 {
		t.Errorf("事务回滚后座位数应为 0，实际=%d", n)
	}
}

// ═══════════════════════════════════════════════════════════
// 缴费
// ═══════════════════════════════════════════════════════════

func TestPayment_PeriodUniqueAndCreateIfAbsent(t *testing.T) {
	repo := reset(t)
	ctx := context.Background()
	st := createStudent(t, repo, "meera")
	due := time.Date(2025, time.April, 15, 0, 0, 0, 0, time.UTC)

	p := model.Payment{StudentID: st.StudentID, Amount: 1500, Status: model.PaymentPending, Month: "March", Year: 2025, DueDate: due}
	if err := repo.Payment.Create(ctx, &p); err != nil {
		t.Fatalf("创建缴费应成功: %v", err)
	}
	dup := p
	dup.PaymentID = ""
	if err := repo.Payment.Create(ctx, &dup); !pkgerrors.IsUniqueViolation(err, "uq_payments_period") {
		t.Errorf("期望 uq_payments_period 冲突，实际: %v", err)
	}

	april := model.Payment{StudentID: st.StudentID, Amount: 1500, Status: model.PaymentPending, Month: "April", Year: 2025, DueDate: due.AddDate(0, 1, 0)}
	dup.PaymentID = ""
	n, err := repo.Payment.CreateIfAbsent(ctx, []model.Payment{dup, april})
	if err != nil {
		t.Fatalf("CreateIfAbsent 失败: %v", err)
	}
	if n != 1 {
		t.Errorf("期望仅插入 1 条，实际=%d", n)
	}
}

func TestPayment_MarkOverdueIdempotent(t *testing.T) {
	repo := reset(t)
	ctx := context.Background()
	st := createStudent(t, repo, "kiran")
	now := time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)

	past := model.Payment{StudentID: st.StudentID, Amount: 1500, Status: model.PaymentPending, Month: "March", Year: 2025, DueDate: now.AddDate(0, 0, -10)}
	future := model.Payment{StudentID: st.StudentID, Amount: 1500, Status: model.PaymentPending, Month: "May", Year: 2025, DueDate: now.AddDate(0, 0, 14)}
	_ = repo.Payment.Create(ctx, &past)
	_ = repo.Payment.Create(ctx, &future)

	moved, err := repo.Payment.MarkOverdue(ctx, now)
	if err != nil {
		t.Fatalf("MarkOverdue 失败: %v", err)
	}
	if len(moved) != 1 || moved[0].PaymentID != past.PaymentID {
		t.Errorf("期望仅过期记录转为逾期，实际=%d", len(moved))
	}
	moved, _ = repo.Payment.MarkOverdue(ctx, now)
	if len(moved) != 0 {
		t.Errorf("重复执行不应再有变更，实际=%d", len(moved))
	}
}

// ═══════════════════════════════════════════════════════════
// 座位占用并发
// ═══════════════════════════════════════════════════════════

func TestSeatService_ConcurrentAssignFullSeat(t *testing.T) {
	repo := reset(t)
	ctx := context.Background()
	seats := newSeatService(repo)
	seat := createSeat(t, repo, 1)

	const n = 5
	students := make([]*model.Student, n)
	for i := range students {
		students[i] = createStudent(t, repo, fmt.Sprintf("s%d", i))
	}

	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = seats.Assign(ctx, &dto.AssignSeatRequest{
				SeatID: seat.SeatID, StudentID: students[i].StudentID, SeatOccupiedTiming: model.TimingFull,
			})
		}(i)
	}
	wg.Wait()

	success := 0
	for _, err := range errs {
		if err == nil {
			success++
		} else if !errors.Is(err, service.ErrSeatUnavailable) {
			t.Errorf("失败请求期望 ErrSeatUnavailable，实际: %v", err)
		}
	}
	if success != 1 {
		t.Errorf("整天座位仅应分配成功 1 次，实际=%d", success)
	}

	occupants, _ := repo.Occupant.ListBySeat(ctx, seat.SeatID)
	if len(occupants) != 1 {
		t.Errorf("座位应仅有 1 名占用者，实际=%d", len(occupants))
	}
}

func TestSeatService_ConcurrentAssignSameStudent(t *testing.T) {
	repo := reset(t)
	ctx := context.Background()
	seats := newSeatService(repo)
	st := createStudent(t, repo, "solo")
	s1 := createSeat(t, repo, 1)
	s2 := createSeat(t, repo, 2)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, seat := range []*model.Seat{s1, s2} {
		wg.Add(1)
		go func(i int, seatID string) {
			defer wg.Done()
			_, errs[i] = seats.Assign(ctx, &dto.AssignSeatRequest{SeatID: seatID, StudentID: st.StudentID})
		}(i, seat.SeatID)
	}
	wg.Wait()

	failed := 0
	for _, err := range errs {
		if errors.Is(err, service.ErrStudentAlreadySeated) {
			failed++
		}
	}
	if failed != 1 {
		t.Errorf("同一学员并发分配两个座位，期望 1 次 ErrStudentAlreadySeated，实际: %v", errs)
	}

	got, err := repo.Student.GetByID(ctx, st.StudentID)
	if err != nil || got.SeatNumber == nil {
		t.Fatalf("学员应记录座位号: %v", err)
	}
}

func TestStudentService_DeleteReleasesSeat(t *testing.T) {
	repo := reset(t)
	ctx := context.Background()
	seats := newSeatService(repo)
	students := service.NewStudentService(repo, zap.NewNop())
	st := createStudent(t, repo, "leaver")
	seat := createSeat(t, repo, 1)

	if _, err := seats.Assign(ctx, &dto.AssignSeatRequest{SeatID: seat.SeatID, StudentID: st.StudentID}); err != nil {
		t.Fatalf("Assign 失败: %v", err)
	}
	if err := students.Delete(ctx, st.StudentID); err != nil {
		t.Fatalf("Delete 失败: %v", err)
	}

	got, _ := repo.Seat.GetByID(ctx, seat.SeatID)
	if got.Occupied || got.OccupiedTiming != model.TimingNone || len(got.Occupants) != 0 {
		t.Errorf("删除学员后座位应空闲，实际=%+v", got)
	}
}

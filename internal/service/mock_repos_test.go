package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"studyhall/internal/model"
	"studyhall/internal/repository"
	pkgerrors "studyhall/pkg/errors"
)

// ── 内存存储 ──
//
// 所有 mock repository 共享一个 memStore，模拟外键预加载与唯一约束。
// Repository.db 为 nil，Transaction 直接在同一存储上执行（不回滚）。

type memStore struct {
	mu        sync.Mutex
	seq       int
	students  map[string]*model.Student
	seats     map[string]*model.Seat
	occupants []model.SeatOccupant
	payments  map[string]*model.Payment
	expenses  map[string]*model.Expense
	alerts    []model.Alert
	users     map[string]*model.User

	// 注入的故障
	failOccupantCreate error
	failUpdateOccupancy error
}

func newMemStore() *memStore {
	return &memStore{
		students: make(map[string]*model.Student),
		seats:    make(map[string]*model.Seat),
		payments: make(map[string]*model.Payment),
		expenses: make(map[string]*model.Expense),
		users:    make(map[string]*model.User),
	}
}

func (s *memStore) nextID(prefix string) string {
	s.seq++
	return fmt.Sprintf("%s-%04d", prefix, s.seq)
}

func uniqueViolation(constraint string) error {
	return &pgconn.PgError{Code: "23505", ConstraintName: constraint}
}

// newMockRepository 创建基于内存存储的 Repository 聚合
func newMockRepository() (*repository.Repository, *memStore) {
	st := newMemStore()
	return &repository.Repository{
		Student:   &mockStudentRepo{st},
		Seat:      &mockSeatRepo{st},
		Occupant:  &mockOccupantRepo{st},
		Payment:   &mockPaymentRepo{st},
		Expense:   &mockExpenseRepo{st},
		Alert:     &mockAlertRepo{st},
		User:      &mockUserRepo{st},
		Dashboard: &mockDashboardRepo{},
	}, st
}

// ── 测试数据构造 ──

func (s *memStore) addStudent(name string) *model.Student {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := &model.Student{
		StudentID:   s.nextID("stu"),
		Name:        name,
		Email:       strings.ToLower(name) + "@test.com",
		Phone:       "9999999999",
		JoinDate:    time.Now(),
		Shift:       model.ShiftMorning,
		SeatingType: model.TimingFull,
		Status:      model.StudentActive,
	}
	s.students[st.StudentID] = st
	return st
}

func (s *memStore) addSeat(number int) *model.Seat {
	s.mu.Lock()
	defer s.mu.Unlock()
	seat := &model.Seat{
		SeatID:         s.nextID("seat"),
		SeatNumber:     number,
		Type:           model.SeatRegular,
		OccupiedTiming: model.TimingNone,
	}
	s.seats[seat.SeatID] = seat
	return seat
}

func (s *memStore) addPayment(p model.Payment) *model.Payment {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.PaymentID == "" {
		p.PaymentID = s.nextID("pay")
	}
	cp := p
	s.payments[p.PaymentID] = &cp
	return &cp
}

func (s *memStore) seat(id string) model.Seat {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.seats[id]
}

func (s *memStore) student(id string) *model.Student {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.students[id]
	if !ok {
		return nil
	}
	cp := *st
	return &cp
}

func (s *memStore) occupantsOf(seatID string) []model.SeatOccupant {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.SeatOccupant
	for _, o := range s.occupants {
		if o.SeatID == seatID {
			out = append(out, o)
		}
	}
	return out
}

func (s *memStore) alertsWithTitle(title string) []model.Alert {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Alert
	for _, a := range s.alerts {
		if a.Title == title {
			out = append(out, a)
		}
	}
	return out
}

// ── Mock StudentRepository ──

type mockStudentRepo struct{ st *memStore }

func (m *mockStudentRepo) Create(_ context.Context, student *model.Student) error {
	m.st.mu.Lock()
	defer m.st.mu.Unlock()
	for _, s := range m.st.students {
		if s.Email == student.Email {
			return uniqueViolation("uq_students_email")
		}
	}
	if student.StudentID == "" {
		student.StudentID = m.st.nextID("stu")
	}
	cp := *student
	m.st.students[student.StudentID] = &cp
	return nil
}

func (m *mockStudentRepo) GetByID(_ context.Context, id string) (*model.Student, error) {
	if s := m.st.student(id); s != nil {
		return s, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockStudentRepo) GetByIDForUpdate(ctx context.Context, id string) (*model.Student, error) {
	return m.GetByID(ctx, id)
}

func (m *mockStudentRepo) GetByEmail(_ context.Context, email string) (*model.Student, error) {
	m.st.mu.Lock()
	defer m.st.mu.Unlock()
	for _, s := range m.st.students {
		if s.Email == email {
			cp := *s
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockStudentRepo) UpdateFields(_ context.Context, id string, fields map[string]interface{}) error {
	m.st.mu.Lock()
	defer m.st.mu.Unlock()
	s, ok := m.st.students[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	for k, v := range fields {
		switch k {
		case "name":
			s.Name = v.(string)
		case "email":
			s.Email = v.(string)
		case "phone":
			s.Phone = v.(string)
		case "address":
			s.Address = v.(string)
		case "shift":
			s.Shift = v.(string)
		case "seating_type":
			s.SeatingType = v.(string)
		case "status":
			s.Status = v.(string)
		case "monthly_fee":
			s.MonthlyFee = v.(float64)
		}
	}
	return nil
}

func (m *mockStudentRepo) SetSeatNumber(_ context.Context, id string, seatNumber *int) error {
	m.st.mu.Lock()
	defer m.st.mu.Unlock()
	if s, ok := m.st.students[id]; ok {
		if seatNumber == nil {
			s.SeatNumber = nil
		} else {
			n := *seatNumber
			s.SeatNumber = &n
		}
	}
	return nil
}

func (m *mockStudentRepo) Delete(_ context.Context, id string) error {
	m.st.mu.Lock()
	defer m.st.mu.Unlock()
	if _, ok := m.st.students[id]; !ok {
		return gorm.ErrRecordNotFound
	}
	// ON DELETE RESTRICT
	for _, o := range m.st.occupants {
		if o.StudentID == id {
			return &pgconn.PgError{Code: "23503", ConstraintName: "fk_seat_occupants_student"}
		}
	}
	delete(m.st.students, id)
	for _, u := range m.st.users {
		if u.StudentID != nil && *u.StudentID == id {
			u.StudentID = nil
		}
	}
	return nil
}

func (m *mockStudentRepo) all(keep func(*model.Student) bool) []model.Student {
	m.st.mu.Lock()
	defer m.st.mu.Unlock()
	var out []model.Student
	for _, s := range m.st.students {
		if keep(s) {
			out = append(out, *s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StudentID < out[j].StudentID })
	return out
}

func (m *mockStudentRepo) List(_ context.Context, filter repository.StudentFilter, offset, limit int) ([]model.Student, int64, error) {
	list := m.all(func(s *model.Student) bool {
		if filter.Status != "" && s.Status != filter.Status {
			return false
		}
		if filter.Shift != "" && s.Shift != filter.Shift {
			return false
		}
		if filter.Search != "" && !strings.Contains(strings.ToLower(s.Name), strings.ToLower(filter.Search)) {
			return false
		}
		return true
	})
	total := int64(len(list))
	if offset >= len(list) {
		return []model.Student{}, total, nil
	}
	end := offset + limit
	if end > len(list) {
		end = len(list)
	}
	return list[offset:end], total, nil
}

func (m *mockStudentRepo) ListBillable(_ context.Context) ([]model.Student, error) {
	return m.all(func(s *model.Student) bool {
		return s.Status == model.StudentActive && s.MonthlyFee > 0
	}), nil
}

func (m *mockStudentRepo) ListSeated(_ context.Context) ([]model.Student, error) {
	return m.all(func(s *model.Student) bool { return s.SeatNumber != nil }), nil
}

func (m *mockStudentRepo) CountByStatus(_ context.Context) (map[string]int64, error) {
	out := make(map[string]int64)
	for _, s := range m.all(func(*model.Student) bool { return true }) {
		out[s.Status]++
	}
	return out, nil
}

func (m *mockStudentRepo) CountByShift(_ context.Context) (map[string]int64, error) {
	out := make(map[string]int64)
	for _, s := range m.all(func(*model.Student) bool { return true }) {
		out[s.Shift]++
	}
	return out, nil
}

// ── Mock SeatRepository ──

type mockSeatRepo struct{ st *memStore }

// withOccupants 复制座位并预加载占用者与学员（调用方持有锁）
func (m *mockSeatRepo) withOccupants(seat *model.Seat) *model.Seat {
	cp := *seat
	cp.Occupants = nil
	for _, o := range m.st.occupants {
		if o.SeatID != seat.SeatID {
			continue
		}
		occ := o
		if s, ok := m.st.students[o.StudentID]; ok {
			sc := *s
			occ.Student = &sc
		}
		cp.Occupants = append(cp.Occupants, occ)
	}
	sort.Slice(cp.Occupants, func(i, j int) bool { return cp.Occupants[i].Slot < cp.Occupants[j].Slot })
	return &cp
}

func (m *mockSeatRepo) Create(_ context.Context, seat *model.Seat) error {
	m.st.mu.Lock()
	defer m.st.mu.Unlock()
	for _, s := range m.st.seats {
		if s.SeatNumber == seat.SeatNumber {
			return uniqueViolation("uq_seats_seat_number")
		}
	}
	if seat.SeatID == "" {
		seat.SeatID = m.st.nextID("seat")
	}
	cp := *seat
	cp.Occupants = nil
	m.st.seats[seat.SeatID] = &cp
	return nil
}

func (m *mockSeatRepo) CreateBatch(ctx context.Context, seats []model.Seat) error {
	for i := range seats {
		if err := m.Create(ctx, &seats[i]); err != nil {
			return err
		}
	}
	return nil
}

func (m *mockSeatRepo) Count(_ context.Context) (int64, error) {
	m.st.mu.Lock()
	defer m.st.mu.Unlock()
	return int64(len(m.st.seats)), nil
}

func (m *mockSeatRepo) GetByID(_ context.Context, id string) (*model.Seat, error) {
	m.st.mu.Lock()
	defer m.st.mu.Unlock()
	if s, ok := m.st.seats[id]; ok {
		return m.withOccupants(s), nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockSeatRepo) GetByNumber(_ context.Context, number int) (*model.Seat, error) {
	m.st.mu.Lock()
	defer m.st.mu.Unlock()
	for _, s := range m.st.seats {
		if s.SeatNumber == number {
			return m.withOccupants(s), nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockSeatRepo) LockByID(_ context.Context, id string) (*model.Seat, error) {
	m.st.mu.Lock()
	defer m.st.mu.Unlock()
	if s, ok := m.st.seats[id]; ok {
		cp := *s
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockSeatRepo) LockByNumber(_ context.Context, number int) (*model.Seat, error) {
	m.st.mu.Lock()
	defer m.st.mu.Unlock()
	for _, s := range m.st.seats {
		if s.SeatNumber == number {
			cp := *s
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockSeatRepo) List(_ context.Context) ([]model.Seat, error) {
	m.st.mu.Lock()
	defer m.st.mu.Unlock()
	out := make([]model.Seat, 0, len(m.st.seats))
	for _, s := range m.st.seats {
		out = append(out, *m.withOccupants(s))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SeatNumber < out[j].SeatNumber })
	return out, nil
}

func (m *mockSeatRepo) UpdateOccupancy(_ context.Context, seat *model.Seat) error {
	m.st.mu.Lock()
	defer m.st.mu.Unlock()
	if m.st.failUpdateOccupancy != nil {
		return m.st.failUpdateOccupancy
	}
	s, ok := m.st.seats[seat.SeatID]
	if !ok || s.Version != seat.Version {
		return pkgerrors.ErrOptimisticLock
	}
	s.OccupiedTiming = seat.OccupiedTiming
	s.Occupied = seat.Occupied
	s.Version++
	seat.Version = s.Version
	return nil
}

func (m *mockSeatRepo) Delete(_ context.Context, id string) error {
	m.st.mu.Lock()
	defer m.st.mu.Unlock()
	delete(m.st.seats, id)
	kept := m.st.occupants[:0]
	for _, o := range m.st.occupants {
		if o.SeatID != id {
			kept = append(kept, o)
		}
	}
	m.st.occupants = kept
	return nil
}

func (m *mockSeatRepo) Stats(_ context.Context) (*repository.SeatStats, error) {
	m.st.mu.Lock()
	defer m.st.mu.Unlock()
	stats := &repository.SeatStats{}
	for _, s := range m.st.seats {
		stats.TotalSeats++
		if s.Occupied {
			stats.OccupiedSeats++
		} else {
			stats.AvailableSeats++
		}
		switch s.OccupiedTiming {
		case model.TimingFull:
			stats.FullSeat++
		case model.TimingHalf:
			for _, o := range m.st.occupants {
				if o.SeatID == s.SeatID {
					stats.HalfSeat++
				}
			}
		}
	}
	return stats, nil
}

// ── Mock OccupantRepository ──

type mockOccupantRepo struct{ st *memStore }

func (m *mockOccupantRepo) Create(_ context.Context, occupant *model.SeatOccupant) error {
	m.st.mu.Lock()
	defer m.st.mu.Unlock()
	if m.st.failOccupantCreate != nil {
		return m.st.failOccupantCreate
	}
	for _, o := range m.st.occupants {
		if o.StudentID == occupant.StudentID {
			return uniqueViolation("uq_seat_occupants_student")
		}
		if o.SeatID == occupant.SeatID && o.Slot == occupant.Slot {
			return uniqueViolation("uq_seat_occupants_slot")
		}
	}
	if _, ok := m.st.students[occupant.StudentID]; !ok {
		return &pgconn.PgError{Code: "23503", ConstraintName: "fk_seat_occupants_student"}
	}
	cp := *occupant
	cp.Student = nil
	m.st.occupants = append(m.st.occupants, cp)
	return nil
}

func (m *mockOccupantRepo) GetByStudent(_ context.Context, studentID string) (*model.SeatOccupant, error) {
	m.st.mu.Lock()
	defer m.st.mu.Unlock()
	for _, o := range m.st.occupants {
		if o.StudentID == studentID {
			cp := o
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockOccupantRepo) ListBySeat(_ context.Context, seatID string) ([]model.SeatOccupant, error) {
	return m.st.occupantsOf(seatID), nil
}

func (m *mockOccupantRepo) Delete(_ context.Context, seatID, studentID string) error {
	m.st.mu.Lock()
	defer m.st.mu.Unlock()
	for i, o := range m.st.occupants {
		if o.SeatID == seatID && o.StudentID == studentID {
			m.st.occupants = append(m.st.occupants[:i], m.st.occupants[i+1:]...)
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (m *mockOccupantRepo) DeleteBySeat(_ context.Context, seatID string) error {
	m.st.mu.Lock()
	defer m.st.mu.Unlock()
	kept := m.st.occupants[:0]
	for _, o := range m.st.occupants {
		if o.SeatID != seatID {
			kept = append(kept, o)
		}
	}
	m.st.occupants = kept
	return nil
}

func (m *mockOccupantRepo) DeleteOrphans(_ context.Context) (int64, error) {
	m.st.mu.Lock()
	defer m.st.mu.Unlock()
	var removed int64
	kept := m.st.occupants[:0]
	for _, o := range m.st.occupants {
		if _, ok := m.st.students[o.StudentID]; ok {
			kept = append(kept, o)
		} else {
			removed++
		}
	}
	m.st.occupants = kept
	return removed, nil
}

// ── Mock PaymentRepository ──

type mockPaymentRepo struct{ st *memStore }

func (m *mockPaymentRepo) withStudent(p *model.Payment) model.Payment {
	cp := *p
	if s, ok := m.st.students[p.StudentID]; ok {
		sc := *s
		cp.Student = &sc
	}
	return cp
}

func (m *mockPaymentRepo) samePeriod(p *model.Payment) *model.Payment {
	for _, x := range m.st.payments {
		if x.StudentID == p.StudentID && x.Month == p.Month && x.Year == p.Year && x.PaymentID != p.PaymentID {
			return x
		}
	}
	return nil
}

func (m *mockPaymentRepo) Create(_ context.Context, payment *model.Payment) error {
	m.st.mu.Lock()
	defer m.st.mu.Unlock()
	if m.samePeriod(payment) != nil {
		return uniqueViolation("uq_payments_period")
	}
	if payment.PaymentID == "" {
		payment.PaymentID = m.st.nextID("pay")
	}
	cp := *payment
	cp.Student = nil
	m.st.payments[payment.PaymentID] = &cp
	return nil
}

func (m *mockPaymentRepo) CreateIfAbsent(ctx context.Context, payments []model.Payment) (int64, error) {
	var created int64
	for i := range payments {
		err := m.Create(ctx, &payments[i])
		if pkgerrors.IsUniqueViolation(err, "") {
			continue
		}
		if err != nil {
			return created, err
		}
		created++
	}
	return created, nil
}

func (m *mockPaymentRepo) GetByID(_ context.Context, id string) (*model.Payment, error) {
	m.st.mu.Lock()
	defer m.st.mu.Unlock()
	if p, ok := m.st.payments[id]; ok {
		cp := m.withStudent(p)
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockPaymentRepo) GetByPeriod(_ context.Context, studentID, month string, year int) (*model.Payment, error) {
	m.st.mu.Lock()
	defer m.st.mu.Unlock()
	if p := m.samePeriod(&model.Payment{StudentID: studentID, Month: month, Year: year}); p != nil {
		cp := *p
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockPaymentRepo) GetByPeriodForUpdate(ctx context.Context, studentID, month string, year int) (*model.Payment, error) {
	return m.GetByPeriod(ctx, studentID, month, year)
}

func (m *mockPaymentRepo) Update(_ context.Context, payment *model.Payment) error {
	m.st.mu.Lock()
	defer m.st.mu.Unlock()
	if _, ok := m.st.payments[payment.PaymentID]; !ok {
		return gorm.ErrRecordNotFound
	}
	if m.samePeriod(payment) != nil {
		return uniqueViolation("uq_payments_period")
	}
	cp := *payment
	cp.Student = nil
	m.st.payments[payment.PaymentID] = &cp
	return nil
}

func (m *mockPaymentRepo) GetByIDForUpdate(ctx context.Context, id string) (*model.Payment, error) {
	return m.GetByID(ctx, id)
}

func (m *mockPaymentRepo) UpdateFields(_ context.Context, id string, fields map[string]interface{}) error {
	m.st.mu.Lock()
	defer m.st.mu.Unlock()
	cur, ok := m.st.payments[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	cp := *cur
	for col, v := range fields {
		switch col {
		case "amount":
			cp.Amount = v.(float64)
		case "due_date":
			cp.DueDate = v.(time.Time)
		case "paid_date":
			cp.PaidDate = v.(*time.Time)
		case "status":
			cp.Status = v.(string)
		case "method":
			cp.Method = v.(*string)
		case "month":
			cp.Month = v.(string)
		case "year":
			cp.Year = v.(int)
		}
	}
	if m.samePeriod(&cp) != nil {
		return uniqueViolation("uq_payments_period")
	}
	m.st.payments[id] = &cp
	return nil
}

func (m *mockPaymentRepo) Delete(_ context.Context, id string) error {
	m.st.mu.Lock()
	defer m.st.mu.Unlock()
	if _, ok := m.st.payments[id]; !ok {
		return gorm.ErrRecordNotFound
	}
	delete(m.st.payments, id)
	return nil
}

func (m *mockPaymentRepo) ListAll(_ context.Context, filter repository.PaymentFilter) ([]model.Payment, error) {
	m.st.mu.Lock()
	defer m.st.mu.Unlock()
	var out []model.Payment
	for _, p := range m.st.payments {
		if filter.Status != "" && p.Status != filter.Status {
			continue
		}
		if filter.StudentID != "" && p.StudentID != filter.StudentID {
			continue
		}
		if filter.Month != "" && p.Month != filter.Month {
			continue
		}
		if filter.Year != 0 && p.Year != filter.Year {
			continue
		}
		out = append(out, m.withStudent(p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PaymentID < out[j].PaymentID })
	return out, nil
}

func (m *mockPaymentRepo) List(ctx context.Context, filter repository.PaymentFilter, offset, limit int) ([]model.Payment, int64, error) {
	all, _ := m.ListAll(ctx, filter)
	total := int64(len(all))
	if offset >= len(all) {
		return []model.Payment{}, total, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], total, nil
}

func (m *mockPaymentRepo) ListByStudent(ctx context.Context, studentID, status string, limit int) ([]model.Payment, error) {
	out, _ := m.ListAll(ctx, repository.PaymentFilter{StudentID: studentID, Status: status})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *mockPaymentRepo) MarkOverdue(_ context.Context, now time.Time) ([]model.Payment, error) {
	m.st.mu.Lock()
	defer m.st.mu.Unlock()
	var moved []model.Payment
	for _, p := range m.st.payments {
		if p.Status == model.PaymentPending && p.DueDate.Before(now) {
			p.Status = model.PaymentOverdue
			moved = append(moved, *p)
		}
	}
	return moved, nil
}

func (m *mockPaymentRepo) Stats(_ context.Context, studentID string) (*repository.PaymentStats, error) {
	m.st.mu.Lock()
	defer m.st.mu.Unlock()
	stats := &repository.PaymentStats{}
	for _, p := range m.st.payments {
		if studentID != "" && p.StudentID != studentID {
			continue
		}
		stats.Total++
		stats.TotalAmount += p.Amount
		switch p.Status {
		case model.PaymentPaid:
			stats.Paid++
			stats.PaidAmount += p.Amount
		case model.PaymentPending:
			stats.Pending++
			stats.PendingAmount += p.Amount
		case model.PaymentOverdue:
			stats.Overdue++
			stats.PendingAmount += p.Amount
		}
	}
	return stats, nil
}

// ── Mock ExpenseRepository ──

type mockExpenseRepo struct{ st *memStore }

func (m *mockExpenseRepo) Create(_ context.Context, expense *model.Expense) error {
	m.st.mu.Lock()
	defer m.st.mu.Unlock()
	if expense.ExpenseID == "" {
		expense.ExpenseID = m.st.nextID("exp")
	}
	cp := *expense
	m.st.expenses[expense.ExpenseID] = &cp
	return nil
}

func (m *mockExpenseRepo) GetByID(_ context.Context, id string) (*model.Expense, error) {
	m.st.mu.Lock()
	defer m.st.mu.Unlock()
	if e, ok := m.st.expenses[id]; ok {
		cp := *e
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockExpenseRepo) UpdateFields(_ context.Context, id string, fields map[string]interface{}) error {
	m.st.mu.Lock()
	defer m.st.mu.Unlock()
	e, ok := m.st.expenses[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	for k, v := range fields {
		switch k {
		case "category":
			e.Category = v.(string)
		case "description":
			e.Description = v.(string)
		case "amount":
			e.Amount = v.(float64)
		case "type":
			e.Type = v.(string)
		case "date":
			e.Date = v.(time.Time)
		}
	}
	return nil
}

func (m *mockExpenseRepo) Delete(_ context.Context, id string) error {
	m.st.mu.Lock()
	defer m.st.mu.Unlock()
	if _, ok := m.st.expenses[id]; !ok {
		return gorm.ErrRecordNotFound
	}
	delete(m.st.expenses, id)
	return nil
}

func (m *mockExpenseRepo) List(_ context.Context, filter repository.ExpenseFilter, offset, limit int) ([]model.Expense, int64, error) {
	m.st.mu.Lock()
	defer m.st.mu.Unlock()
	var out []model.Expense
	for _, e := range m.st.expenses {
		if filter.Category != "" && e.Category != filter.Category {
			continue
		}
		if filter.Type != "" && e.Type != filter.Type {
			continue
		}
		out = append(out, *e)
	}
	total := int64(len(out))
	if offset >= len(out) {
		return []model.Expense{}, total, nil
	}
	end := offset + limit
	if end > len(out) {
		end = len(out)
	}
	return out[offset:end], total, nil
}

func (m *mockExpenseRepo) Stats(_ context.Context) (*repository.ExpenseStats, error) {
	m.st.mu.Lock()
	defer m.st.mu.Unlock()
	stats := &repository.ExpenseStats{}
	byCat := make(map[string]*repository.CategoryAmount)
	for _, e := range m.st.expenses {
		stats.Total += e.Amount
		if e.Type == model.ExpenseRecurring {
			stats.Recurring += e.Amount
		}
		c, ok := byCat[e.Category]
		if !ok {
			c = &repository.CategoryAmount{Category: e.Category}
			byCat[e.Category] = c
		}
		c.Count++
		c.Amount += e.Amount
	}
	for _, c := range byCat {
		stats.ByCategory = append(stats.ByCategory, *c)
	}
	return stats, nil
}

// ── Mock AlertRepository ──

type mockAlertRepo struct{ st *memStore }

func (m *mockAlertRepo) Create(_ context.Context, alert *model.Alert) error {
	m.st.mu.Lock()
	defer m.st.mu.Unlock()
	if alert.AlertID == "" {
		alert.AlertID = m.st.nextID("alert")
	}
	alert.CreatedAt = time.Now()
	m.st.alerts = append(m.st.alerts, *alert)
	return nil
}

func (m *mockAlertRepo) CreateBatch(ctx context.Context, alerts []model.Alert) error {
	for i := range alerts {
		if err := m.Create(ctx, &alerts[i]); err != nil {
			return err
		}
	}
	return nil
}

func (m *mockAlertRepo) find(id string) int {
	for i, a := range m.st.alerts {
		if a.AlertID == id {
			return i
		}
	}
	return -1
}

func (m *mockAlertRepo) GetByID(_ context.Context, id string) (*model.Alert, error) {
	m.st.mu.Lock()
	defer m.st.mu.Unlock()
	if i := m.find(id); i >= 0 {
		cp := m.st.alerts[i]
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockAlertRepo) List(_ context.Context, filter repository.AlertFilter, offset, limit int) ([]model.Alert, int64, error) {
	m.st.mu.Lock()
	defer m.st.mu.Unlock()
	var out []model.Alert
	for i := len(m.st.alerts) - 1; i >= 0; i-- {
		a := m.st.alerts[i]
		if filter.Type != "" && a.Type != filter.Type {
			continue
		}
		if filter.Read != nil && a.Read != *filter.Read {
			continue
		}
		out = append(out, a)
	}
	total := int64(len(out))
	if offset >= len(out) {
		return []model.Alert{}, total, nil
	}
	end := offset + limit
	if end > len(out) {
		end = len(out)
	}
	return out[offset:end], total, nil
}

func (m *mockAlertRepo) ListForStudent(_ context.Context, studentID string, limit int) ([]model.Alert, error) {
	m.st.mu.Lock()
	defer m.st.mu.Unlock()
	var out []model.Alert
	for i := len(m.st.alerts) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		a := m.st.alerts[i]
		if a.StudentID == nil || *a.StudentID == studentID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *mockAlertRepo) CountUnreadForStudent(_ context.Context, studentID string) (int64, error) {
	m.st.mu.Lock()
	defer m.st.mu.Unlock()
	var n int64
	for _, a := range m.st.alerts {
		if !a.Read && (a.StudentID == nil || *a.StudentID == studentID) {
			n++
		}
	}
	return n, nil
}

func (m *mockAlertRepo) Recent(ctx context.Context, limit int) ([]model.Alert, error) {
	out, _, err := m.List(ctx, repository.AlertFilter{}, 0, limit)
	return out, err
}

func (m *mockAlertRepo) MarkRead(_ context.Context, id string) error {
	m.st.mu.Lock()
	defer m.st.mu.Unlock()
	i := m.find(id)
	if i < 0 {
		return gorm.ErrRecordNotFound
	}
	m.st.alerts[i].Read = true
	return nil
}

func (m *mockAlertRepo) MarkAllRead(_ context.Context) (int64, error) {
	m.st.mu.Lock()
	defer m.st.mu.Unlock()
	var n int64
	for i := range m.st.alerts {
		if !m.st.alerts[i].Read {
			m.st.alerts[i].Read = true
			n++
		}
	}
	return n, nil
}

func (m *mockAlertRepo) Delete(_ context.Context, id string) error {
	m.st.mu.Lock()
	defer m.st.mu.Unlock()
	i := m.find(id)
	if i < 0 {
		return gorm.ErrRecordNotFound
	}
	m.st.alerts = append(m.st.alerts[:i], m.st.alerts[i+1:]...)
	return nil
}

func (m *mockAlertRepo) DeleteRead(_ context.Context) (int64, error) {
	m.st.mu.Lock()
	defer m.st.mu.Unlock()
	var n int64
	kept := m.st.alerts[:0]
	for _, a := range m.st.alerts {
		if a.Read {
			n++
			continue
		}
		kept = append(kept, a)
	}
	m.st.alerts = kept
	return n, nil
}

func (m *mockAlertRepo) Stats(_ context.Context) (*repository.AlertStats, error) {
	m.st.mu.Lock()
	defer m.st.mu.Unlock()
	stats := &repository.AlertStats{ByType: make(map[string]int64)}
	for _, a := range m.st.alerts {
		stats.Total++
		if !a.Read {
			stats.Unread++
		}
		stats.ByType[a.Type]++
	}
	return stats, nil
}

// ── Mock UserRepository ──

type mockUserRepo struct{ st *memStore }

func (m *mockUserRepo) withStudent(u *model.User) *model.User {
	cp := *u
	if u.StudentID != nil {
		if s, ok := m.st.students[*u.StudentID]; ok {
			sc := *s
			cp.Student = &sc
		}
	}
	return &cp
}

func (m *mockUserRepo) Create(_ context.Context, user *model.User) error {
	m.st.mu.Lock()
	defer m.st.mu.Unlock()
	for _, u := range m.st.users {
		if u.Email == user.Email {
			return uniqueViolation("uq_users_email")
		}
		if user.StudentID != nil && u.StudentID != nil && *u.StudentID == *user.StudentID {
			return uniqueViolation("uq_users_student")
		}
	}
	if user.UserID == "" {
		user.UserID = m.st.nextID("user")
	}
	user.CreatedAt = time.Now()
	cp := *user
	cp.Student = nil
	m.st.users[user.UserID] = &cp
	return nil
}

func (m *mockUserRepo) GetByID(_ context.Context, id string) (*model.User, error) {
	m.st.mu.Lock()
	defer m.st.mu.Unlock()
	if u, ok := m.st.users[id]; ok {
		return m.withStudent(u), nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockUserRepo) GetByStudentID(_ context.Context, studentID string) (*model.User, error) {
	m.st.mu.Lock()
	defer m.st.mu.Unlock()
	for _, u := range m.st.users {
		if u.StudentID != nil && *u.StudentID == studentID {
			return m.withStudent(u), nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockUserRepo) GetByEmail(_ context.Context, email string) (*model.User, error) {
	m.st.mu.Lock()
	defer m.st.mu.Unlock()
	for _, u := range m.st.users {
		if u.Email == email {
			return m.withStudent(u), nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockUserRepo) UpdateFields(_ context.Context, id string, fields map[string]interface{}) error {
	m.st.mu.Lock()
	defer m.st.mu.Unlock()
	u, ok := m.st.users[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	for k, v := range fields {
		switch k {
		case "email":
			u.Email = v.(string)
		case "password_hash":
			u.PasswordHash = v.(string)
		case "is_active":
			u.IsActive = v.(bool)
		case "last_login_at":
			t := v.(time.Time)
			u.LastLoginAt = &t
		case "permissions":
			u.Permissions = v.(datatypes.JSONType[model.Permissions])
		}
	}
	return nil
}

func (m *mockUserRepo) Delete(_ context.Context, id string) error {
	m.st.mu.Lock()
	defer m.st.mu.Unlock()
	if _, ok := m.st.users[id]; !ok {
		return gorm.ErrRecordNotFound
	}
	delete(m.st.users, id)
	return nil
}

func (m *mockUserRepo) List(_ context.Context, filter repository.UserFilter, offset, limit int) ([]model.User, int64, error) {
	m.st.mu.Lock()
	defer m.st.mu.Unlock()
	var out []model.User
	for _, u := range m.st.users {
		if filter.Role != "" && u.Role != filter.Role {
			continue
		}
		if filter.IsActive != nil && u.IsActive != *filter.IsActive {
			continue
		}
		out = append(out, *m.withStudent(u))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	total := int64(len(out))
	if offset >= len(out) {
		return []model.User{}, total, nil
	}
	end := offset + limit
	if end > len(out) {
		end = len(out)
	}
	return out[offset:end], total, nil
}

func (m *mockUserRepo) Stats(_ context.Context) (*repository.UserStats, error) {
	m.st.mu.Lock()
	defer m.st.mu.Unlock()
	stats := &repository.UserStats{ByRole: make(map[string]int64)}
	for _, u := range m.st.users {
		stats.Total++
		if u.IsActive {
			stats.Active++
		}
		stats.ByRole[u.Role]++
	}
	return stats, nil
}

// ── Mock DashboardRepository ──

type mockDashboardRepo struct {
	revenue  []repository.MonthlyAmount
	expenses []repository.MonthlyAmount
	paid     float64
	lastQ    repository.RevenueQuery
}

func (m *mockDashboardRepo) RevenueByMonth(_ context.Context, q repository.RevenueQuery) ([]repository.MonthlyAmount, error) {
	m.lastQ = q
	return m.revenue, nil
}

func (m *mockDashboardRepo) ExpensesByMonth(_ context.Context, _ repository.RevenueQuery) ([]repository.MonthlyAmount, error) {
	return m.expenses, nil
}

func (m *mockDashboardRepo) PaidTotal(_ context.Context, _ repository.RevenueQuery) (float64, error) {
	return m.paid, nil
}

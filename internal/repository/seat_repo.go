package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"studyhall/internal/model"
	pkgerrors "studyhall/pkg/errors"
)

// SeatStats 座位统计
type SeatStats struct {
	TotalSeats     int64 `json:"totalSeats"`
	OccupiedSeats  int64 `json:"occupiedSeats"`
	AvailableSeats int64 `json:"availableSeats"`
	FullSeat       int64 `json:"fullseat"`
	HalfSeat       int64 `json:"halfseat"` // 半天座位上的占用人数合计
}

// SeatRepository 座位数据访问接口
type SeatRepository interface {
	Create(ctx context.Context, seat *model.Seat) error
	CreateBatch(ctx context.Context, seats []model.Seat) error
	Count(ctx context.Context) (int64, error)
	GetByID(ctx context.Context, id string) (*model.Seat, error)
	GetByNumber(ctx context.Context, number int) (*model.Seat, error)
	LockByID(ctx context.Context, id string) (*model.Seat, error)
	LockByNumber(ctx context.Context, number int) (*model.Seat, error)
	List(ctx context.Context) ([]model.Seat, error)
	UpdateOccupancy(ctx context.Context, seat *model.Seat) error
	Delete(ctx context.Context, id string) error
	Stats(ctx context.Context) (*SeatStats, error)
}

// seatRepo SeatRepository 的 GORM 实现
type seatRepo struct {
	db *gorm.DB
}

// NewSeatRepo 创建 SeatRepository 实例
func NewSeatRepo(db *gorm.DB) SeatRepository {
	return &seatRepo{db: db}
}

func withOccupants(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Occupants", func(db *gorm.DB) *gorm.DB { return db.Order("slot ASC") }).
		Preload("Occupants.Student")
}

func (r *seatRepo) Create(ctx context.Context, seat *model.Seat) error {
	return r.db.WithContext(ctx).Omit("Occupants").Create(seat).Error
}

func (r *seatRepo) CreateBatch(ctx context.Context, seats []model.Seat) error {
	return r.db.WithContext(ctx).Omit("Occupants").CreateInBatches(seats, 100).Error
}

func (r *seatRepo) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.Seat{}).Count(&n).Error
	return n, err
}

func (r *seatRepo) GetByID(ctx context.Context, id string) (*model.Seat, error) {
	var seat model.Seat
	if err := withOccupants(r.db.WithContext(ctx)).Where("seat_id = ?", id).First(&seat).Error; err != nil {
		return nil, err
	}
	return &seat, nil
}

func (r *seatRepo) GetByNumber(ctx context.Context, number int) (*model.Seat, error) {
	var seat model.Seat
	if err := withOccupants(r.db.WithContext(ctx)).Where("seat_number = ?", number).First(&seat).Error; err != nil {
		return nil, err
	}
	return &seat, nil
}

// LockByID 加行锁读取座位（不含占用者），必须在事务内调用
func (r *seatRepo) LockByID(ctx context.Context, id string) (*model.Seat, error) {
	var seat model.Seat
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("seat_id = ?", id).
		First(&seat).Error
	if err != nil {
		return nil, err
	}
	return &seat, nil
}

// LockByNumber 按座位号加行锁读取，必须在事务内调用
func (r *seatRepo) LockByNumber(ctx context.Context, number int) (*model.Seat, error) {
	var seat model.Seat
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("seat_number = ?", number).
		First(&seat).Error
	if err != nil {
		return nil, err
	}
	return &seat, nil
}

func (r *seatRepo) List(ctx context.Context) ([]model.Seat, error) {
	var seats []model.Seat
	err := withOccupants(r.db.WithContext(ctx)).Order("seat_number ASC").Find(&seats).Error
	return seats, err
}

// UpdateOccupancy 写回占用时段与派生字段，按 version 做乐观锁校验
func (r *seatRepo) UpdateOccupancy(ctx context.Context, seat *model.Seat) error {
	oldVersion := seat.Version
	result := r.db.WithContext(ctx).
		Model(&model.Seat{}).
		Where("seat_id = ? AND version = ?", seat.SeatID, oldVersion).
		Updates(map[string]interface{}{
			"occupied_timing": seat.OccupiedTiming,
			"occupied":        seat.Occupied,
			"version":         oldVersion + 1,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pkgerrors.ErrOptimisticLock
	}
	seat.Version = oldVersion + 1
	return nil
}

func (r *seatRepo) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Where("seat_id = ?", id).Delete(&model.Seat{}).Error
}

func (r *seatRepo) Stats(ctx context.Context) (*SeatStats, error) {
	var stats SeatStats
	err := r.db.WithContext(ctx).Raw(`
		SELECT
			COUNT(*)                                                 AS total_seats,
			COUNT(*) FILTER (WHERE s.occupied)                       AS occupied_seats,
			COUNT(*) FILTER (WHERE NOT s.occupied)                   AS available_seats,
			COUNT(*) FILTER (WHERE s.occupied_timing = 'full')       AS full_seat,
			COALESCE(SUM(o.n) FILTER (WHERE s.occupied_timing = 'half'), 0) AS half_seat
		FROM seats s
		LEFT JOIN (
			SELECT seat_id, COUNT(*) AS n FROM seat_occupants GROUP BY seat_id
		) o ON o.seat_id = s.seat_id`).
		Scan(&stats).Error
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

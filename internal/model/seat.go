package model

import "time"

// 座位等级
const (
	SeatRegular = "regular"
	SeatPremium = "premium"
	SeatVIP     = "vip"
)

// 座位占用时段
const (
	TimingNone = "none"
	TimingHalf = "half"
	TimingFull = "full"
)

// Seat 座位表 — 对应 seats
// Occupied 为派生字段，只能通过 Recompute 更新
type Seat struct {
	SeatID         string         `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"seat_id"`
	SeatNumber     int            `gorm:"not null;uniqueIndex"                           json:"seat_number"`
	Type           string         `gorm:"type:varchar(16);not null;default:'regular'"    json:"type"`
	OccupiedTiming string         `gorm:"type:varchar(8);not null;default:'none'"        json:"seat_occupied_timing"`
	Occupied       bool           `gorm:"not null;default:false"                         json:"occupied"`
	PositionRow    int            `gorm:"not null;default:0"                             json:"position_row"`
	PositionColumn int            `gorm:"not null;default:0"                             json:"position_column"`
	Occupants      []SeatOccupant `gorm:"foreignKey:SeatID;references:SeatID"            json:"occupants"`
	VersionedModel
}

// TableName 指定表名
func (Seat) TableName() string { return "seats" }

// SeatOccupant 座位占用表 — 对应 seat_occupants
// student_id 全局唯一，保证一名学员只占用一个座位
type SeatOccupant struct {
	SeatID     string    `gorm:"type:uuid;primaryKey"               json:"seat_id"`
	StudentID  string    `gorm:"type:uuid;primaryKey"               json:"student_id"`
	Slot       int       `gorm:"not null"                           json:"slot"`
	AssignedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"assigned_at"`

	// 关联（仅用于读取学员姓名）
	Student *Student `gorm:"foreignKey:StudentID;references:StudentID" json:"student,omitempty"`
}

// TableName 指定表名
func (SeatOccupant) TableName() string { return "seat_occupants" }

// ── 占用规则 ──

// TimingCapacity 返回占用时段对应的最大人数
func TimingCapacity(timing string) int {
	switch timing {
	case TimingFull:
		return 1
	case TimingHalf:
		return 2
	default:
		return 0
	}
}

// IsValidTiming 判断是否为可分配的时段（half / full）
func IsValidTiming(timing string) bool {
	return timing == TimingHalf || timing == TimingFull
}

// IsOccupied 给定时段与当前人数，判断座位是否已满
func IsOccupied(timing string, count int) bool {
	capacity := TimingCapacity(timing)
	return capacity > 0 && count >= capacity
}

// Recompute 根据人数重新计算派生字段
// 无人占用时时段回到 none
func (s *Seat) Recompute(count int) {
	if count == 0 {
		s.OccupiedTiming = TimingNone
	}
	s.Occupied = IsOccupied(s.OccupiedTiming, count)
}

// NextSlot 返回下一个可用的座位槽位编号（从 1 开始）
func NextSlot(occupants []SeatOccupant) int {
	used := make(map[int]bool, len(occupants))
	for _, o := range occupants {
		used[o.Slot] = true
	}
	slot := 1
	for used[slot] {
		slot++
	}
	return slot
}

// SeatTier 按座位编号在总数中的位置决定等级：前 40% 普通，40%~70% 高级，其余 VIP
func SeatTier(number, total int) string {
	if total <= 0 {
		return SeatRegular
	}
	switch {
	case number*10 <= total*4:
		return SeatRegular
	case number*10 <= total*7:
		return SeatPremium
	default:
		return SeatVIP
	}
}

// SeatPosition 按每行座位数计算行列位置（均从 1 开始）
func SeatPosition(number, perRow int) (row, column int) {
	if perRow <= 0 || number <= 0 {
		return 0, 0
	}
	return (number-1)/perRow + 1, (number-1)%perRow + 1
}

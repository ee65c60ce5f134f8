package model

import "time"

// 班次
const (
	ShiftMorning   = "morning"
	ShiftAfternoon = "afternoon"
	ShiftEvening   = "evening"
)

// 学员状态
const (
	StudentActive   = "active"
	StudentInactive = "inactive"
)

// Student 学员表 — 对应 students
// SeatNumber 为冗余字段，与 seat_occupants 在同一事务内维护
type Student struct {
	StudentID   string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"student_id"`
	Name        string    `gorm:"type:varchar(100);not null"                     json:"name"`
	Email       string    `gorm:"type:varchar(255);not null;uniqueIndex"         json:"email"`
	Phone       string    `gorm:"type:varchar(20);not null"                      json:"phone"`
	Address     string    `gorm:"type:text;not null;default:''"                  json:"address"`
	JoinDate    time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"             json:"join_date"`
	Shift       string    `gorm:"type:varchar(16);not null"                      json:"shift"`
	SeatingType string    `gorm:"type:varchar(8);not null;default:'full'"        json:"seating_type"`
	Status      string    `gorm:"type:varchar(16);not null;default:'active'"     json:"status"`
	MonthlyFee  float64   `gorm:"type:numeric(12,2);not null;default:0"          json:"monthly_fee"`
	SeatNumber  *int      `gorm:"type:int"                                       json:"seat_number"`
	BaseModel
}

// TableName 指定表名
func (Student) TableName() string { return "students" }

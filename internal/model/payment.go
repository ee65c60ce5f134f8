package model

import "time"

// 缴费状态
const (
	PaymentPending = "pending"
	PaymentPaid    = "paid"
	PaymentOverdue = "overdue"
)

// 支付方式
const (
	MethodCash         = "cash"
	MethodUPI          = "upi"
	MethodCard         = "card"
	MethodBankTransfer = "bank_transfer"
)

// Payment 缴费记录表 — 对应 payments
// (student_id, month, year) 唯一；不设外键，学员删除后缴费历史保留
type Payment struct {
	PaymentID string     `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"payment_id"`
	StudentID string     `gorm:"type:uuid;not null"                             json:"student_id"`
	Amount    float64    `gorm:"type:numeric(12,2);not null"                    json:"amount"`
	DueDate   time.Time  `gorm:"not null"                                       json:"due_date"`
	PaidDate  *time.Time `                                                      json:"paid_date"`
	Status    string     `gorm:"type:varchar(16);not null;default:'pending'"    json:"status"`
	Method    *string    `gorm:"type:varchar(16)"                               json:"method"`
	Month     string     `gorm:"type:varchar(12);not null"                      json:"month"`
	Year      int        `gorm:"not null"                                       json:"year"`
	BaseModel

	// 关联（列表展示学员姓名）
	Student *Student `gorm:"foreignKey:StudentID;references:StudentID" json:"student,omitempty"`
}

// TableName 指定表名
func (Payment) TableName() string { return "payments" }

// CanTransition 缴费状态机：pending→paid、pending→overdue、overdue→paid
// paid 为终态；overdue 只能由逾期扫描产生
func CanTransition(from, to string, bySweep bool) bool {
	if from == to {
		return true
	}
	switch from {
	case PaymentPending:
		return to == PaymentPaid || (to == PaymentOverdue && bySweep)
	case PaymentOverdue:
		return to == PaymentPaid
	default:
		return false
	}
}

var monthNames = [...]string{
	"January", "February", "March", "April", "May", "June",
	"July", "August", "September", "October", "November", "December",
}

// MonthName 返回月份英文名
func MonthName(m time.Month) string {
	return monthNames[m-1]
}

// ParseMonth 解析英文月份名
func ParseMonth(name string) (time.Month, bool) {
	for i, n := range monthNames {
		if n == name {
			return time.Month(i + 1), true
		}
	}
	return 0, false
}

// DueDateFor 账期的截止日期：账期次月的 dueDay 日
func DueDateFor(month time.Month, year, dueDay int, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return time.Date(year, month+1, dueDay, 0, 0, 0, 0, loc)
}

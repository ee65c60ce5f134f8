package model

import "time"

// 支出类别
const (
	ExpenseUtilities   = "utilities"
	ExpenseMaintenance = "maintenance"
	ExpenseSupplies    = "supplies"
	ExpenseStaff       = "staff"
	ExpenseMarketing   = "marketing"
	ExpenseOther       = "other"
)

// 支出类型
const (
	ExpenseOneTime   = "one-time"
	ExpenseRecurring = "recurring"
)

// Expense 支出表 — 对应 expenses
type Expense struct {
	ExpenseID   string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"expense_id"`
	Category    string    `gorm:"type:varchar(16);not null"                      json:"category"`
	Description string    `gorm:"type:text;not null"                             json:"description"`
	Amount      float64   `gorm:"type:numeric(12,2);not null"                    json:"amount"`
	Date        time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"             json:"date"`
	Type        string    `gorm:"type:varchar(16);not null;default:'one-time'"   json:"type"`
	BaseModel
}

// TableName 指定表名
func (Expense) TableName() string { return "expenses" }

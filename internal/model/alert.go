package model

// 提醒类型
const (
	AlertInfo    = "info"
	AlertWarning = "warning"
	AlertError   = "error"
	AlertSuccess = "success"
)

// Alert 提醒表 — 对应 alerts
// StudentID 为空表示广播提醒
type Alert struct {
	AlertID   string  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"alert_id"`
	Type      string  `gorm:"type:varchar(16);not null"                      json:"type"`
	Title     string  `gorm:"type:varchar(200);not null"                     json:"title"`
	Message   string  `gorm:"type:text;not null"                             json:"message"`
	StudentID *string `gorm:"type:uuid"                                      json:"student_id"`
	Read      bool    `gorm:"not null;default:false"                         json:"read"`
	BaseModel
}

// TableName 指定表名
func (Alert) TableName() string { return "alerts" }

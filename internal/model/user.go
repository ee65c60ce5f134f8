package model

import (
	"time"

	"gorm.io/datatypes"
)

// 角色
const (
	RoleStudent    = "student"
	RoleAdmin      = "admin"
	RoleSuperAdmin = "super_admin"
)

// User 用户表 — 对应 users
type User struct {
	UserID       string                         `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"user_id"`
	Email        string                         `gorm:"type:varchar(255);not null;uniqueIndex"         json:"email"`
	PasswordHash string                         `gorm:"type:varchar(255);not null"                     json:"-"`
	Role         string                         `gorm:"type:varchar(16);not null;default:'student'"    json:"role"`
	StudentID    *string                        `gorm:"type:uuid"                                      json:"student_id"`
	Permissions  datatypes.JSONType[Permissions] `gorm:"type:jsonb;not null"                            json:"permissions"`
	IsActive     bool                           `gorm:"not null;default:true"                          json:"is_active"`
	LastLoginAt  *time.Time                     `                                                      json:"last_login_at"`
	BaseModel

	// 关联
	Student *Student `gorm:"foreignKey:StudentID;references:StudentID" json:"student,omitempty"`
}

// TableName 指定表名
func (User) TableName() string { return "users" }

// Identity 构造鉴权身份
func (u *User) Identity() Identity {
	id := Identity{
		UserID:      u.UserID,
		Role:        u.Role,
		Permissions: u.Permissions.Data(),
	}
	if u.StudentID != nil {
		id.StudentID = *u.StudentID
	}
	return id
}

package dto

import "studyhall/internal/model"

// ── 认证模块 DTO ──

// LoginRequest 登录请求
type LoginRequest struct {
	Email    string `json:"email"    binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// RegisterRequest 注册请求；role=student 时必须关联尚未绑定账号的学员
type RegisterRequest struct {
	Email     string `json:"email"      binding:"required,email"`
	Password  string `json:"password"   binding:"required,min=6,max=64"`
	Role      string `json:"role"       binding:"omitempty,oneof=student admin"`
	StudentID string `json:"student_id" binding:"omitempty,uuid"`
}

// RefreshTokenRequest 刷新 Token 请求
type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// ChangePasswordRequest 修改密码请求
type ChangePasswordRequest struct {
	OldPassword string `json:"old_password" binding:"required"`
	NewPassword string `json:"new_password" binding:"required,min=6,max=64"`
}

// UpdateProfileRequest 修改本人邮箱
type UpdateProfileRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// ── 认证模块响应 ──

// TokenResponse Token 对响应
type TokenResponse struct {
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	ExpiresIn    int          `json:"expires_in"` // Access Token 有效期（秒）
	User         UserResponse `json:"user"`
}

// UserResponse 用户信息响应（脱敏）
type UserResponse struct {
	ID          string            `json:"id"`
	Email       string            `json:"email"`
	Role        string            `json:"role"`
	StudentID   *string           `json:"student_id,omitempty"`
	StudentName string            `json:"student_name,omitempty"`
	Permissions model.Permissions `json:"permissions"`
	IsActive    bool              `json:"is_active"`
	LastLoginAt string            `json:"last_login_at,omitempty"`
	CreatedAt   string            `json:"created_at"`
}

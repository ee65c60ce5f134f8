package dto

import "studyhall/internal/model"

// ── 管理员模块 DTO ──

// UserListRequest 用户列表查询参数
type UserListRequest struct {
	PaginationRequest
	Role     string `form:"role"      binding:"omitempty,oneof=student admin super_admin"`
	IsActive *bool  `form:"is_active"`
}

// CreateUserRequest 创建管理账号
type CreateUserRequest struct {
	Email       string                           `json:"email"       binding:"required,email"`
	Password    string                           `json:"password"    binding:"required,min=6,max=64"`
	Role        string                           `json:"role"        binding:"required,oneof=admin super_admin"`
	Permissions map[string]model.PermissionPatch `json:"permissions"`
}

// UpdatePermissionsRequest 显式合并权限矩阵
type UpdatePermissionsRequest struct {
	Permissions map[string]model.PermissionPatch `json:"permissions" binding:"required"`
}

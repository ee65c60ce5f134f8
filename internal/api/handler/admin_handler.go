package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"studyhall/internal/dto"
	"studyhall/internal/service"
	"studyhall/pkg/response"
)

// AdminHandler 账号与权限管理 HTTP 处理器
type AdminHandler struct {
	adminSvc service.AdminService
}

// NewAdminHandler 创建 AdminHandler
func NewAdminHandler(adminSvc service.AdminService) *AdminHandler {
	return &AdminHandler{adminSvc: adminSvc}
}

// ListUsers 用户列表
// GET /api/v1/admin/users
func (h *AdminHandler) ListUsers(c *gin.Context) {
	var req dto.UserListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, response.CodeBadRequest, "参数校验失败")
		return
	}

	result, err := h.adminSvc.List(c.Request.Context(), &req)
	if err != nil {
		response.InternalError(c)
		return
	}

	response.OKPage(c, result.List, result.Total, result.Page, result.PageSize)
}

// Stats 用户统计
// GET /api/v1/admin/users/stats
func (h *AdminHandler) Stats(c *gin.Context) {
	stats, err := h.adminSvc.Stats(c.Request.Context())
	if err != nil {
		response.InternalError(c)
		return
	}
	response.OK(c, stats)
}

// CreateUser 创建管理账号
// POST /api/v1/admin/users
func (h *AdminHandler) CreateUser(c *gin.Context) {
	var req dto.CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, response.CodeBadRequest, "参数校验失败")
		return
	}

	caller, ok := MustGetIdentity(c)
	if !ok {
		return
	}

	user, err := h.adminSvc.Create(c.Request.Context(), caller, &req)
	if err != nil {
		h.handleAdminError(c, err)
		return
	}

	response.Created(c, user)
}

// UpdatePermissions 合并更新权限矩阵
// PUT /api/v1/admin/users/:id/permissions
func (h *AdminHandler) UpdatePermissions(c *gin.Context) {
	id, ok := MustGetUUIDParam(c, "id")
	if !ok {
		return
	}
	var req dto.UpdatePermissionsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, response.CodeBadRequest, "参数校验失败")
		return
	}

	caller, ok := MustGetIdentity(c)
	if !ok {
		return
	}

	user, err := h.adminSvc.UpdatePermissions(c.Request.Context(), caller, id, &req)
	if err != nil {
		h.handleAdminError(c, err)
		return
	}

	response.OK(c, user)
}

// ToggleStatus 启用/停用账号
// PUT /api/v1/admin/users/:id/toggle-status
func (h *AdminHandler) ToggleStatus(c *gin.Context) {
	id, ok := MustGetUUIDParam(c, "id")
	if !ok {
		return
	}
	caller, ok := MustGetIdentity(c)
	if !ok {
		return
	}

	user, err := h.adminSvc.ToggleStatus(c.Request.Context(), caller, id)
	if err != nil {
		h.handleAdminError(c, err)
		return
	}

	response.OK(c, user)
}

// DeleteUser 删除账号
// DELETE /api/v1/admin/users/:id
func (h *AdminHandler) DeleteUser(c *gin.Context) {
	id, ok := MustGetUUIDParam(c, "id")
	if !ok {
		return
	}
	caller, ok := MustGetIdentity(c)
	if !ok {
		return
	}

	if err := h.adminSvc.Delete(c.Request.Context(), caller, id); err != nil {
		h.handleAdminError(c, err)
		return
	}

	response.OK(c, nil)
}

// handleAdminError 统一处理管理模块业务错误
func (h *AdminHandler) handleAdminError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrUserNotFound):
		response.NotFound(c, 11008, "用户不存在")
	case errors.Is(err, service.ErrEmailExists):
		response.Conflict(c, 11004, "邮箱已被注册")
	case errors.Is(err, service.ErrNoPermission):
		response.Forbidden(c, 12001, "无权操作")
	case errors.Is(err, service.ErrPermissionsLocked):
		response.Forbidden(c, 12002, "学员与超级管理员的权限不可修改")
	case errors.Is(err, service.ErrCannotModifySuperAdmin):
		response.Forbidden(c, 12003, "不能停用或删除超级管理员")
	case errors.Is(err, service.ErrSelfOperation):
		response.Forbidden(c, 12004, "不能对自己执行此操作")
	case errors.Is(err, service.ErrUnknownModule):
		response.BadRequest(c, 12005, "未知的权限模块")
	default:
		response.InternalError(c)
	}
}

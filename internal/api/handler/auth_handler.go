package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"studyhall/config"
	"studyhall/internal/dto"
	"studyhall/internal/service"
	"studyhall/pkg/response"
)

const refreshCookieName = "refresh_token"

// AuthHandler 认证模块 HTTP 处理器
type AuthHandler struct {
	authSvc service.AuthService
	cfg     *config.AuthConfig // 可为 nil，此时 Cookie 为会话级
}

// NewAuthHandler 创建 AuthHandler
func NewAuthHandler(authSvc service.AuthService, cfg *config.AuthConfig) *AuthHandler {
	return &AuthHandler{authSvc: authSvc, cfg: cfg}
}

// Register 注册
// POST /api/v1/auth/register
func (h *AuthHandler) Register(c *gin.Context) {
	var req dto.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, response.CodeBadRequest, "参数校验失败")
		return
	}

	result, err := h.authSvc.Register(c.Request.Context(), &req)
	if err != nil {
		h.handleAuthError(c, err)
		return
	}

	h.setRefreshCookie(c, result.RefreshToken)
	response.Created(c, result)
}

// Login 用户登录
// POST /api/v1/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, response.CodeBadRequest, "参数校验失败")
		return
	}

	result, err := h.authSvc.Login(c.Request.Context(), &req)
	if err != nil {
		h.handleAuthError(c, err)
		return
	}

	h.setRefreshCookie(c, result.RefreshToken)
	response.OK(c, result)
}

// RefreshToken 刷新 Token，优先读取请求体，其次读取 Cookie
// POST /api/v1/auth/refresh
func (h *AuthHandler) RefreshToken(c *gin.Context) {
	var req dto.RefreshTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.RefreshToken == "" {
		cookie, cerr := c.Cookie(refreshCookieName)
		if cerr != nil || cookie == "" {
			response.BadRequest(c, response.CodeBadRequest, "缺少 Refresh Token")
			return
		}
		req.RefreshToken = cookie
	}

	result, err := h.authSvc.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		h.handleAuthError(c, err)
		return
	}

	h.setRefreshCookie(c, result.RefreshToken)
	response.OK(c, result)
}

// Logout 登出，当前 Access Token 加入黑名单
// POST /api/v1/auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	if err := h.authSvc.Logout(c.Request.Context(), GetClaims(c)); err != nil {
		response.InternalError(c)
		return
	}

	c.SetCookie(refreshCookieName, "", -1, "/api/v1/auth", "", false, true)
	response.OKMsg(c, "已退出登录", nil)
}

// GetCurrentUser 当前登录用户
// GET /api/v1/auth/me
func (h *AuthHandler) GetCurrentUser(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	user, err := h.authSvc.Me(c.Request.Context(), userID)
	if err != nil {
		h.handleAuthError(c, err)
		return
	}

	response.OK(c, user)
}

// UpdateProfile 修改本人邮箱
// PUT /api/v1/auth/me
func (h *AuthHandler) UpdateProfile(c *gin.Context) {
	var req dto.UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, response.CodeBadRequest, "参数校验失败")
		return
	}

	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	user, err := h.authSvc.UpdateProfile(c.Request.Context(), userID, &req)
	if err != nil {
		h.handleAuthError(c, err)
		return
	}

	response.OK(c, user)
}

// ChangePassword 修改密码
// PUT /api/v1/auth/password
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	var req dto.ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, response.CodeBadRequest, "参数校验失败")
		return
	}

	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	if err := h.authSvc.ChangePassword(c.Request.Context(), userID, &req); err != nil {
		h.handleAuthError(c, err)
		return
	}

	response.OKMsg(c, "密码已修改", nil)
}

func (h *AuthHandler) setRefreshCookie(c *gin.Context, token string) {
	maxAge := 0
	if h.cfg != nil {
		maxAge = int(h.cfg.RefreshTokenTTL.Seconds())
	}
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(refreshCookieName, token, maxAge, "/api/v1/auth", "", false, true)
}

// handleAuthError 统一处理认证模块业务错误
func (h *AuthHandler) handleAuthError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidCredentials):
		response.Unauthorized(c, 11001, "邮箱或密码错误")
	case errors.Is(err, service.ErrUserInactive):
		response.Unauthorized(c, 11002, "账号已停用")
	case errors.Is(err, service.ErrInvalidRefreshToken):
		response.Unauthorized(c, 11003, "Refresh Token 无效或已过期")
	case errors.Is(err, service.ErrEmailExists):
		response.Conflict(c, 11004, "邮箱已被注册")
	case errors.Is(err, service.ErrStudentLinkRequired):
		response.BadRequest(c, 11005, "学员账号必须关联学员档案")
	case errors.Is(err, service.ErrStudentAlreadyLinked):
		response.Conflict(c, 11006, "该学员已绑定账号")
	case errors.Is(err, service.ErrStudentNotFound):
		response.NotFound(c, 13001, "学员不存在")
	case errors.Is(err, service.ErrWrongPassword):
		response.BadRequest(c, 11007, "原密码错误")
	case errors.Is(err, service.ErrUserNotFound):
		response.NotFound(c, 11008, "用户不存在")
	default:
		response.InternalError(c)
	}
}

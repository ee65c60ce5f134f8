package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"studyhall/internal/model"
	"studyhall/pkg/jwt"
	"studyhall/pkg/response"
)

// MustGetUserID 从 Gin 上下文中安全提取 user_id。
// 如果 JWT 中间件未正确注入 user_id，返回 false 并写入 401 响应。
// 调用方应在 ok=false 时直接 return。
func MustGetUserID(c *gin.Context) (string, bool) {
	v, exists := c.Get("user_id")
	if !exists {
		response.Unauthorized(c, response.CodeUnauthorized, "未认证")
		return "", false
	}
	s, ok := v.(string)
	if !ok || s == "" {
		response.Unauthorized(c, response.CodeUnauthorized, "未认证")
		return "", false
	}
	return s, true
}

// MustGetIdentity 从 Gin 上下文中提取鉴权身份
func MustGetIdentity(c *gin.Context) (model.Identity, bool) {
	v, exists := c.Get("identity")
	if !exists {
		response.Unauthorized(c, response.CodeUnauthorized, "未认证")
		return model.Identity{}, false
	}
	id, ok := v.(model.Identity)
	if !ok || id.UserID == "" {
		response.Unauthorized(c, response.CodeUnauthorized, "未认证")
		return model.Identity{}, false
	}
	return id, true
}

// GetClaims 提取当前 Access Token 的声明，不存在时返回 nil
func GetClaims(c *gin.Context) *jwt.Claims {
	v, exists := c.Get("claims")
	if !exists {
		return nil
	}
	claims, _ := v.(*jwt.Claims)
	return claims
}

// MustGetUUIDParam 读取路径中的 UUID 参数，格式非法时写入 400
func MustGetUUIDParam(c *gin.Context, name string) (string, bool) {
	raw := c.Param(name)
	if _, err := uuid.Parse(raw); err != nil {
		response.BadRequest(c, response.CodeBadRequest, "无效的 ID")
		return "", false
	}
	return raw, true
}

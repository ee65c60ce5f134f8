package middleware

import (
	"context"
	"errors"
	"strings"

	"github.com/gin-gonic/gin"

	"studyhall/internal/model"
	"studyhall/pkg/jwt"
	"studyhall/pkg/response"
)

// TokenChecker Token 黑名单查询（由 pkg/redis.Client 实现）
type TokenChecker interface {
	IsBlacklisted(ctx context.Context, jti string) (bool, error)
}

// IdentityResolver 按用户当前状态构造鉴权身份（由 AuthService 实现）
type IdentityResolver interface {
	ResolveIdentity(ctx context.Context, userID string) (*model.Identity, error)
}

// JWTAuth JWT 认证中间件
// 从 Authorization: Bearer <token> 中提取并验证 Access Token，
// 检查黑名单后按数据库中的用户状态解析身份。blacklist 为 nil 时跳过黑名单检查
func JWTAuth(jwtMgr *jwt.Manager, blacklist TokenChecker, resolver IdentityResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			response.Unauthorized(c, response.CodeUnauthorized, "缺少认证头")
			c.Abort()
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			response.Unauthorized(c, response.CodeUnauthorized, "认证头格式无效")
			c.Abort()
			return
		}

		claims, err := jwtMgr.ParseTyped(parts[1], jwt.TokenTypeAccess)
		if err != nil {
			msg := "Token 无效或已过期"
			if errors.Is(err, jwt.ErrTokenWrongType) {
				msg = "Token 类型无效"
			}
			response.Unauthorized(c, response.CodeUnauthorized, msg)
			c.Abort()
			return
		}

		if blacklist != nil {
			// Redis 出错时降级放行，与 RateLimit 策略一致
			if revoked, err := blacklist.IsBlacklisted(c.Request.Context(), claims.ID); err == nil && revoked {
				response.Unauthorized(c, response.CodeUnauthorized, "Token 已失效")
				c.Abort()
				return
			}
		}

		identity, err := resolver.ResolveIdentity(c.Request.Context(), claims.UserID)
		if err != nil {
			response.Unauthorized(c, response.CodeUnauthorized, "账号不存在或已停用")
			c.Abort()
			return
		}

		// 将用户信息注入上下文
		c.Set("user_id", identity.UserID)
		c.Set("role", identity.Role)
		c.Set("student_id", identity.StudentID)
		c.Set("identity", *identity)
		c.Set("claims", claims)

		c.Next()
	}
}

// RequirePermission 模块权限中间件，须在 JWTAuth 之后使用
func RequirePermission(module, action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		v, exists := c.Get("identity")
		identity, ok := v.(model.Identity)
		if !exists || !ok {
			response.Unauthorized(c, response.CodeUnauthorized, "未认证")
			c.Abort()
			return
		}

		if !identity.Can(module, action) {
			response.Forbidden(c, response.CodeForbidden, "无权限访问")
			c.Abort()
			return
		}

		c.Next()
	}
}

// RoleAuth 角色权限中间件
// 检查当前用户是否具有指定角色之一
func RoleAuth(allowedRoles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		role, exists := c.Get("role")
		if !exists {
			response.Unauthorized(c, response.CodeUnauthorized, "未认证")
			c.Abort()
			return
		}

		userRole, _ := role.(string)
		for _, r := range allowedRoles {
			if userRole == r {
				c.Next()
				return
			}
		}

		response.Forbidden(c, response.CodeForbidden, "无权限访问")
		c.Abort()
	}
}

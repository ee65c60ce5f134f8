package middleware

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"studyhall/pkg/response"
)

// RateLimiter 滑动窗口计数，由 *redis.Client 实现
type RateLimiter interface {
	CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// RateLimit 按客户端 IP 限流
// scope 区分不同限额的路由组（如全局与登录接口）
// limiter 为 nil 或 Redis 出错时放行
func RateLimit(limiter RateLimiter, scope string, limit int, window time.Duration) gin.HandlerFunc {
	retryAfter := strconv.Itoa(int(window.Seconds()))

	return func(c *gin.Context) {
		if limiter == nil || limit <= 0 {
			c.Next()
			return
		}

		key := "rate_limit:" + scope + ":" + c.ClientIP()
		allowed, err := limiter.CheckRateLimit(c.Request.Context(), key, limit, window)
		if err != nil {
			c.Next()
			return
		}

		if !allowed {
			c.Header("Retry-After", retryAfter)
			response.Error(c, http.StatusTooManyRequests, response.CodeTooManyRequest, "请求过于频繁，请稍后再试")
			c.Abort()
			return
		}

		c.Next()
	}
}

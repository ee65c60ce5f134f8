package middleware

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

// ── RequestID ──

func TestRequestID(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, RequestIDFrom(c)) })

	tests := []struct {
		name     string
		incoming string
		keep     bool
	}{
		{"沿用合法 ID", "abc-123_XYZ", true},
		{"缺失时生成", "", false},
		{"含换行时重新生成", "abc\ninjected", false},
		{"超长时重新生成", strings.Repeat("a", 65), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/ping", nil)
			if tt.incoming != "" {
				req.Header.Set("X-Request-ID", tt.incoming)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			got := w.Header().Get("X-Request-ID")
			if got != w.Body.String() {
				t.Errorf("响应头与上下文不一致: %q vs %q", got, w.Body.String())
			}
			if tt.keep && got != tt.incoming {
				t.Errorf("期望沿用 %q，实际: %q", tt.incoming, got)
			}
			if !tt.keep && (got == "" || got == tt.incoming) {
				t.Errorf("期望生成新 ID，实际: %q", got)
			}
		})
	}
}

// ── CORS ──

func TestCORS(t *testing.T) {
	tests := []struct {
		name       string
		allow      []string
		origin     string
		wantOrigin string
		wantCreds  bool
	}{
		{"白名单来源", []string{"http://localhost:5173/"}, "http://localhost:5173", "http://localhost:5173", true},
		{"未列出来源", []string{"http://localhost:5173"}, "http://evil.test", "", false},
		{"通配放行但不带凭证", []string{"*"}, "http://any.test", "http://any.test", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			r.Use(CORS(tt.allow))
			r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

			req := httptest.NewRequest(http.MethodGet, "/x", nil)
			req.Header.Set("Origin", tt.origin)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if got := w.Header().Get("Access-Control-Allow-Origin"); got != tt.wantOrigin {
				t.Errorf("期望 Allow-Origin=%q，实际: %q", tt.wantOrigin, got)
			}
			if creds := w.Header().Get("Access-Control-Allow-Credentials") == "true"; creds != tt.wantCreds {
				t.Errorf("期望 Allow-Credentials=%v，实际: %v", tt.wantCreds, creds)
			}
			if tt.wantOrigin != "" && !strings.Contains(w.Header().Get("Access-Control-Expose-Headers"), "Content-Disposition") {
				t.Error("应暴露 Content-Disposition 供导出下载")
			}
		})
	}
}

func TestCORS_Preflight(t *testing.T) {
	r := gin.New()
	r.Use(CORS([]string{"http://localhost:5173"}))
	r.POST("/x", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.OPTIONS("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodOptions, "/x", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("预检请求期望 204，实际: %d", w.Code)
	}
}

// ── SecurityHeaders ──

func TestSecurityHeaders_NoStoreOnAPI(t *testing.T) {
	r := gin.New()
	r.Use(SecurityHeaders())
	r.GET("/api/v1/payments", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/payments", nil))
	if w.Header().Get("Cache-Control") != "no-store" {
		t.Errorf("API 响应应禁止缓存，实际: %q", w.Header().Get("Cache-Control"))
	}
	if w.Header().Get("X-Frame-Options") != "DENY" {
		t.Error("缺少 X-Frame-Options")
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Header().Get("Cache-Control") != "" {
		t.Errorf("非 API 路径不应设置 Cache-Control，实际: %q", w.Header().Get("Cache-Control"))
	}
}

// ── BodyLimit ──

func TestBodyLimit(t *testing.T) {
	r := gin.New()
	r.Use(BodyLimit(16))
	r.POST("/x", func(c *gin.Context) {
		if _, err := io.ReadAll(c.Request.Body); err != nil {
			_ = c.Error(err)
			return
		}
		c.Status(http.StatusOK)
	})

	t.Run("声明长度超限直接拒绝", func(t *testing.T) {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/x", strings.NewReader(strings.Repeat("a", 32))))
		if w.Code != http.StatusRequestEntityTooLarge {
			t.Errorf("期望 413，实际: %d", w.Code)
		}
	})

	t.Run("分块传输超限", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/x", strings.NewReader(strings.Repeat("a", 32)))
		req.ContentLength = -1
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		if w.Code != http.StatusRequestEntityTooLarge {
			t.Errorf("期望 413，实际: %d", w.Code)
		}
	})

	t.Run("未超限", func(t *testing.T) {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/x", strings.NewReader("ok")))
		if w.Code != http.StatusOK {
			t.Errorf("期望 200，实际: %d", w.Code)
		}
	})
}

// ── RateLimit ──

type stubLimiter struct {
	counts map[string]int
	err    error
}

func (l *stubLimiter) CheckRateLimit(_ context.Context, key string, limit int, _ time.Duration) (bool, error) {
	if l.err != nil {
		return false, l.err
	}
	l.counts[key]++
	return l.counts[key] <= limit, nil
}

func TestRateLimit(t *testing.T) {
	limiter := &stubLimiter{counts: map[string]int{}}
	r := gin.New()
	r.Use(RateLimit(limiter, "auth", 2, time.Minute))
	r.POST("/login", func(c *gin.Context) { c.Status(http.StatusOK) })

	var last *httptest.ResponseRecorder
	for i := 0; i < 3; i++ {
		last = httptest.NewRecorder()
		r.ServeHTTP(last, httptest.NewRequest(http.MethodPost, "/login", nil))
	}
	if last.Code != http.StatusTooManyRequests {
		t.Errorf("第 3 次请求期望 429，实际: %d", last.Code)
	}
	if last.Header().Get("Retry-After") != "60" {
		t.Errorf("期望 Retry-After=60，实际: %q", last.Header().Get("Retry-After"))
	}
	for key := range limiter.counts {
		if !strings.HasPrefix(key, "rate_limit:auth:") {
			t.Errorf("限流 key 应带 scope 前缀，实际: %s", key)
		}
	}
}

func TestRateLimit_FailOpen(t *testing.T) {
	tests := []struct {
		name    string
		limiter RateLimiter
	}{
		{"未配置 Redis", nil},
		{"Redis 出错", &stubLimiter{counts: map[string]int{}, err: errors.New("连接断开")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			r.Use(RateLimit(tt.limiter, "global", 1, time.Minute))
			r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

			for i := 0; i < 3; i++ {
				w := httptest.NewRecorder()
				r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
				if w.Code != http.StatusOK {
					t.Fatalf("期望放行，实际: %d", w.Code)
				}
			}
		})
	}
}

package router

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"studyhall/config"
	"studyhall/internal/api/handler"
	"studyhall/internal/api/middleware"
	"studyhall/internal/dto"
	"studyhall/internal/model"
	"studyhall/pkg/jwt"
	"studyhall/pkg/redis"
)

// HealthChecker 健康检查依赖（数据库、Redis）
type HealthChecker func(ctx context.Context) error

// Setup 初始化并返回 Gin 路由引擎
// rdb 为 nil 时限流与 Token 黑名单降级关闭
func Setup(
	cfg *config.Config,
	h *handler.Handler,
	jwtMgr *jwt.Manager,
	resolver middleware.IdentityResolver,
	rdb *redis.Client,
	health HealthChecker,
	logger *zap.Logger,
) (*gin.Engine, error) {
	gin.SetMode(gin.ReleaseMode)

	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		if err := dto.RegisterValidators(v); err != nil {
			return nil, err
		}
	}

	var (
		blacklist middleware.TokenChecker
		limiter   middleware.RateLimiter
	)
	if rdb != nil {
		blacklist = rdb
		limiter = rdb
	}
	rl := cfg.Server.RateLimit

	r := gin.New()

	// ── 全局中间件 ──
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS(cfg.Server.CORS.AllowOrigins))
	r.Use(middleware.BodyLimit(cfg.Server.BodyLimit))
	if rl.Enabled {
		r.Use(middleware.RateLimit(limiter, "global", rl.Limit, rl.Window))
	}

	// ── 健康检查 ──
	r.GET("/health", func(c *gin.Context) {
		if health != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if err := health(ctx); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	perm := middleware.RequirePermission

	// ── API v1 ──
	v1 := r.Group("/api/v1")
	{
		// 认证模块（无需认证）
		auth := v1.Group("/auth")
		if rl.Enabled {
			auth.Use(middleware.RateLimit(limiter, "auth", rl.AuthLimit, rl.Window))
		}
		{
			auth.POST("/register", h.Auth.Register)
			auth.POST("/login", h.Auth.Login)
			auth.POST("/refresh", h.Auth.RefreshToken)
		}

		// 需要认证的路由
		authorized := v1.Group("")
		authorized.Use(middleware.JWTAuth(jwtMgr, blacklist, resolver))
		{
			authorized.POST("/auth/logout", h.Auth.Logout)
			authorized.GET("/auth/me", h.Auth.GetCurrentUser)
			authorized.PUT("/auth/me", h.Auth.UpdateProfile)
			authorized.PUT("/auth/password", h.Auth.ChangePassword)

			// 座位模块
			seats := authorized.Group("/seats")
			{
				seats.GET("", perm(model.ModuleSeats, model.ActionRead), h.Seat.ListSeats)
				seats.GET("/stats", perm(model.ModuleSeats, model.ActionRead), h.Seat.Stats)
				seats.POST("/create", perm(model.ModuleSeats, model.ActionCreate), h.Seat.CreateSeat)
				seats.POST("/initialize", perm(model.ModuleSeats, model.ActionCreate), h.Seat.Initialize)
				seats.DELETE("/delete", perm(model.ModuleSeats, model.ActionDelete), h.Seat.DeleteSeat)
				seats.POST("/assign", perm(model.ModuleSeats, model.ActionUpdate), h.Seat.Assign)
				seats.PUT("/:id/unassign", perm(model.ModuleSeats, model.ActionUpdate), h.Seat.Unassign)
			}

			// 学员模块
			students := authorized.Group("/students")
			{
				students.GET("", perm(model.ModuleStudents, model.ActionRead), h.Student.ListStudents)
				students.POST("", perm(model.ModuleStudents, model.ActionCreate), h.Student.CreateStudent)
				students.GET("/:id", perm(model.ModuleStudents, model.ActionRead), h.Student.GetStudent)
				students.PUT("/:id", perm(model.ModuleStudents, model.ActionUpdate), h.Student.UpdateStudent)
				students.DELETE("/:id", perm(model.ModuleStudents, model.ActionDelete), h.Student.DeleteStudent)
			}

			// 缴费模块
			payments := authorized.Group("/payments")
			{
				payments.GET("", perm(model.ModulePayments, model.ActionRead), h.Payment.ListPayments)
				payments.GET("/stats", perm(model.ModulePayments, model.ActionRead), h.Payment.Stats)
				payments.GET("/export", perm(model.ModulePayments, model.ActionRead), h.Payment.Export)
				payments.GET("/student/:id", perm(model.ModulePayments, model.ActionRead), h.Payment.ListByStudent)
				payments.POST("/pending", perm(model.ModulePayments, model.ActionCreate), h.Payment.AddPending)
				payments.POST("/deposit", perm(model.ModulePayments, model.ActionCreate), h.Payment.Deposit)
				payments.POST("/sweep-overdue", perm(model.ModulePayments, model.ActionUpdate), h.Payment.SweepOverdue)
				payments.POST("/generate-monthly", perm(model.ModulePayments, model.ActionUpdate), h.Payment.GenerateMonthly)
				payments.PUT("/:id", perm(model.ModulePayments, model.ActionUpdate), h.Payment.UpdatePayment)
				payments.DELETE("/:id", perm(model.ModulePayments, model.ActionDelete), h.Payment.DeletePayment)
			}

			// 支出模块
			expenses := authorized.Group("/expenses")
			{
				expenses.GET("", perm(model.ModuleExpenses, model.ActionRead), h.Expense.ListExpenses)
				expenses.GET("/stats", perm(model.ModuleExpenses, model.ActionRead), h.Expense.Stats)
				expenses.POST("", perm(model.ModuleExpenses, model.ActionCreate), h.Expense.CreateExpense)
				expenses.PUT("/:id", perm(model.ModuleExpenses, model.ActionUpdate), h.Expense.UpdateExpense)
				expenses.DELETE("/:id", perm(model.ModuleExpenses, model.ActionDelete), h.Expense.DeleteExpense)
			}

			// 提醒模块
			alerts := authorized.Group("/alerts")
			{
				alerts.GET("", perm(model.ModuleAlerts, model.ActionRead), h.Alert.ListAlerts)
				alerts.GET("/stats", perm(model.ModuleAlerts, model.ActionRead), h.Alert.Stats)
				alerts.POST("", perm(model.ModuleAlerts, model.ActionCreate), h.Alert.CreateAlert)
				alerts.PUT("/read-all", perm(model.ModuleAlerts, model.ActionUpdate), h.Alert.MarkAllRead)
				alerts.PUT("/:id/read", perm(model.ModuleAlerts, model.ActionUpdate), h.Alert.MarkRead)
				alerts.DELETE("", perm(model.ModuleAlerts, model.ActionDelete), h.Alert.BulkDelete)
				alerts.DELETE("/:id", perm(model.ModuleAlerts, model.ActionDelete), h.Alert.DeleteAlert)
			}

			// 报表模块
			dashboard := authorized.Group("/dashboard", perm(model.ModuleDashboard, model.ActionRead))
			{
				dashboard.GET("/stats", h.Dashboard.Stats)
				dashboard.GET("/revenue-analytics", h.Dashboard.RevenueAnalytics)
			}

			// 学员自助
			me := authorized.Group("/me")
			{
				me.GET("/details", h.Me.Details)
				me.GET("/payments", h.Me.Payments)
				me.GET("/payments/calendar", h.Me.Calendar)
				me.GET("/due-payments", h.Me.DuePayments)
				me.GET("/alerts", h.Me.Alerts)
				me.GET("/seat", h.Me.Seat)
				me.GET("/dashboard", h.Me.Dashboard)
			}

			// 账号管理
			admin := authorized.Group("/admin/users", middleware.RoleAuth(model.RoleAdmin, model.RoleSuperAdmin))
			{
				admin.GET("", h.Admin.ListUsers)
				admin.GET("/stats", h.Admin.Stats)
				admin.POST("", h.Admin.CreateUser)
				admin.PUT("/:id/permissions", h.Admin.UpdatePermissions)
				admin.PUT("/:id/toggle-status", h.Admin.ToggleStatus)
				admin.DELETE("/:id", middleware.RoleAuth(model.RoleSuperAdmin), h.Admin.DeleteUser)
			}
		}
	}

	return r, nil
}

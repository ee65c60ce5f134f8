package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"studyhall/config"
	"studyhall/internal/api/handler"
	"studyhall/internal/api/router"
	"studyhall/internal/repository"
	"studyhall/internal/service"
	"studyhall/pkg/database"
	"studyhall/pkg/jwt"
	applogger "studyhall/pkg/logger"
	"studyhall/pkg/redis"
	"studyhall/pkg/scheduler"
)

const jobTimeout = 5 * time.Minute

func main() {
	// 0. 加载 .env（不存在时忽略）
	_ = godotenv.Load()

	// 1. 加载配置
	cfg, err := config.Load(os.Getenv("STUDYHALL_CONFIG"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	// 2. 初始化日志
	logger, err := applogger.NewLogger(&cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志失败: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("应用启动中...",
		zap.Int("port", cfg.Server.Port),
		zap.String("log_level", cfg.Log.Level),
	)

	// 3. 连接数据库并执行迁移
	db, err := database.NewDB(&cfg.Database, cfg.Log.Level, logger)
	if err != nil {
		logger.Fatal("数据库连接失败", zap.Error(err))
	}
	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal("获取底层 sql.DB 失败", zap.Error(err))
	}
	if err := database.RunMigrations(sqlDB, logger); err != nil {
		logger.Fatal("数据库迁移失败", zap.Error(err))
	}

	// 4. 连接 Redis（可选：连接失败时降级运行，不中断启动）
	rdb, err := redis.NewClient(&cfg.Redis, logger)
	if err != nil {
		logger.Warn("Redis 连接失败，Token 黑名单、限流与任务锁将不可用", zap.Error(err))
		rdb = nil
	}

	// 5. 初始化 JWT 管理器
	jwtMgr := jwt.NewManager(&cfg.Auth)

	// 6. 依赖注入: Repository → Service → Handler
	repo := repository.NewRepository(db)
	svc := service.NewService(cfg, repo, jwtMgr, rdb, logger)
	h := handler.NewHandler(cfg, svc)

	// 7. 座位一致性修复
	if cfg.Seats.ReconcileOnStart {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		report, err := svc.Seat.Reconcile(ctx)
		cancel()
		if err != nil {
			logger.Error("座位一致性修复失败", zap.Error(err))
		} else {
			logger.Info("座位一致性修复完成",
				zap.Int64("orphans", report.OrphanOccupants),
				zap.Int("seats_repaired", report.SeatsRepaired),
				zap.Int("students_resynced", report.StudentsResynced),
			)
		}
	}

	// 8. 定时任务
	var locker scheduler.Locker
	if rdb != nil {
		locker = rdb
	}
	sched := scheduler.New(locker, logger, jobTimeout)
	if cfg.Billing.JobsEnabled {
		if err := service.RegisterBillingJobs(sched, &cfg.Billing, svc.Payment); err != nil {
			logger.Fatal("注册定时任务失败", zap.Error(err))
		}
		sched.Start()
	}

	// 9. 初始化路由
	health := func(ctx context.Context) error {
		if err := repo.Ping(ctx); err != nil {
			return err
		}
		if rdb != nil {
			return rdb.Ping(ctx)
		}
		return nil
	}
	engine, err := router.Setup(cfg, h, jwtMgr, svc.Auth, rdb, health, logger)
	if err != nil {
		logger.Fatal("初始化路由失败", zap.Error(err))
	}

	// 10. 启动 HTTP 服务器（优雅关闭）
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      engine,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("HTTP 服务器已启动", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP 服务器异常", zap.Error(err))
		}
	}()

	// 11. 监听系统信号，优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	logger.Info("收到关闭信号，开始优雅关闭...", zap.String("signal", sig.String()))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("服务器关闭异常", zap.Error(err))
	}

	sched.Stop(ctx)

	if err := sqlDB.Close(); err != nil {
		logger.Warn("关闭数据库连接失败", zap.Error(err))
	}

	if rdb != nil {
		rdb.Close()
	}

	logger.Info("服务器已关闭")
}

// admin 命令行工具：创建首个超级管理员账号
//
//	go run ./cmd/admin -email root@example.com -password '******'
//
// 密码也可通过 STUDYHALL_ADMIN_PASSWORD 传入。已存在超级管理员时直接退出，除非指定 -force。
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"studyhall/config"
	"studyhall/internal/dto"
	"studyhall/internal/model"
	"studyhall/internal/repository"
	"studyhall/internal/service"
	"studyhall/pkg/database"
	applogger "studyhall/pkg/logger"
)

func main() {
	email := flag.String("email", "", "超级管理员邮箱")
	password := flag.String("password", os.Getenv("STUDYHALL_ADMIN_PASSWORD"), "超级管理员密码（至少 6 位）")
	force := flag.Bool("force", false, "已存在超级管理员时仍然创建")
	flag.Parse()

	if *email == "" || len(*password) < 6 {
		flag.Usage()
		os.Exit(2)
	}

	_ = godotenv.Load()
	cfg, err := config.Load(os.Getenv("STUDYHALL_CONFIG"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}
	logger, err := applogger.NewLogger(&cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志失败: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	db, err := database.NewDB(&cfg.Database, cfg.Log.Level, logger)
	if err != nil {
		logger.Fatal("数据库连接失败", zap.Error(err))
	}
	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal("获取底层 sql.DB 失败", zap.Error(err))
	}
	defer sqlDB.Close()
	if err := database.RunMigrations(sqlDB, logger); err != nil {
		logger.Fatal("数据库迁移失败", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	repo := repository.NewRepository(db)
	stats, err := repo.User.Stats(ctx)
	if err != nil {
		logger.Fatal("查询用户统计失败", zap.Error(err))
	}
	if stats.ByRole[model.RoleSuperAdmin] > 0 && !*force {
		logger.Info("已存在超级管理员，跳过创建", zap.Int64("count", stats.ByRole[model.RoleSuperAdmin]))
		return
	}

	admin := service.NewAdminService(&cfg.Auth, repo, logger)
	bootstrap := model.Identity{UserID: "bootstrap", Role: model.RoleSuperAdmin}
	user, err := admin.Create(ctx, bootstrap, &dto.CreateUserRequest{
		Email:    *email,
		Password: *password,
		Role:     model.RoleSuperAdmin,
	})
	if errors.Is(err, service.ErrEmailExists) {
		logger.Fatal("邮箱已被注册", zap.String("email", *email))
	}
	if err != nil {
		logger.Fatal("创建超级管理员失败", zap.Error(err))
	}

	logger.Info("超级管理员已创建", zap.String("id", user.ID), zap.String("email", user.Email))
}

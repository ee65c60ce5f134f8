package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Locker 跨实例互斥锁（由 pkg/redis.Client 实现）
// 为 nil 时任务仅在本进程内互斥
type Locker interface {
	TryLock(ctx context.Context, name string, ttl time.Duration) (release func(), ok bool, err error)
}

// JobFunc 定时任务函数
type JobFunc func(ctx context.Context) error

// Scheduler 定时任务调度器
// 同一任务上一次未结束时跳过本次触发
type Scheduler struct {
	cron    *cron.Cron
	locker  Locker
	logger  *zap.Logger
	timeout time.Duration
}

// New 创建调度器；timeout 为单次任务最长执行时间
func New(locker Locker, logger *zap.Logger, timeout time.Duration) *Scheduler {
	cl := &cronLogger{logger: logger}
	return &Scheduler{
		cron: cron.New(
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		locker:  locker,
		logger:  logger,
		timeout: timeout,
	}
}

// Register 注册定时任务；schedule 为标准五段 cron 表达式或 @every 描述符
func (s *Scheduler) Register(name, schedule string, job JobFunc) error {
	if _, err := s.cron.AddFunc(schedule, func() { s.run(name, job) }); err != nil {
		return fmt.Errorf("注册定时任务 %s 失败: %w", name, err)
	}
	s.logger.Info("定时任务已注册", zap.String("job", name), zap.String("schedule", schedule))
	return nil
}

// RunNow 立即执行一次任务（与定时触发共用锁与超时）
func (s *Scheduler) RunNow(name string, job JobFunc) {
	s.run(name, job)
}

func (s *Scheduler) run(name string, job JobFunc) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	if s.locker != nil {
		release, ok, err := s.locker.TryLock(ctx, "job:"+name, s.timeout)
		if err != nil {
			// 锁服务不可用时降级为本地执行，任务本身幂等
			s.logger.Warn("获取任务锁失败，降级执行", zap.String("job", name), zap.Error(err))
		} else if !ok {
			s.logger.Debug("任务正在其他实例执行，跳过", zap.String("job", name))
			return
		} else {
			defer release()
		}
	}

	start := time.Now()
	if err := job(ctx); err != nil {
		s.logger.Error("定时任务执行失败", zap.String("job", name), zap.Error(err))
		return
	}
	s.logger.Info("定时任务执行完成", zap.String("job", name), zap.Duration("latency", time.Since(start)))
}

// Start 启动调度
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop 停止调度并等待运行中的任务结束
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		s.logger.Warn("等待定时任务结束超时")
	}
}

// cronLogger 将 cron 内部日志适配到 zap
type cronLogger struct {
	logger *zap.Logger
}

func (l *cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Sugar().Debugw(msg, keysAndValues...)
}

func (l *cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Sugar().Errorw(msg, append(keysAndValues, "error", err)...)
}

package service

import (
	"context"
	"time"

	"studyhall/config"
	"studyhall/pkg/scheduler"
)

const (
	jobOverdueSweep   = "payments:overdue-sweep"
	jobMonthlyBilling = "payments:monthly-billing"
)

// RegisterBillingJobs 注册逾期扫描与月度账单两个定时任务
// 月度账单的 cron 为空时不注册；逾期扫描在注册后立即补跑一次
func RegisterBillingJobs(sched *scheduler.Scheduler, cfg *config.BillingConfig, payments PaymentService) error {
	sweep := func(ctx context.Context) error {
		_, err := payments.SweepOverdue(ctx, time.Now())
		return err
	}
	if err := sched.Register(jobOverdueSweep, cfg.OverdueSweepCron, sweep); err != nil {
		return err
	}

	if cfg.MonthlyCron != "" {
		generate := func(ctx context.Context) error {
			_, err := payments.GenerateMonthly(ctx, time.Now())
			return err
		}
		if err := sched.Register(jobMonthlyBilling, cfg.MonthlyCron, generate); err != nil {
			return err
		}
	}

	go sched.RunNow(jobOverdueSweep, sweep)
	return nil
}

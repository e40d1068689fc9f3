// Package scheduler 按固定间隔驱动一轮处理，单协程顺序执行。
package scheduler

import (
	"context"
	"time"

	"anchorex.com/pkg/logger"
	"anchorex.com/pkg/metrics"
	"anchorex.com/pkg/safe"
	"go.uber.org/zap"
)

const (
	DefaultDepositInterval   = 10 * time.Second
	DefaultTrustlineInterval = 60 * time.Second
)

type Runner struct {
	Name     string
	Interval time.Duration
	Pass     func(ctx context.Context) error
}

// Run loop=false 只跑一轮并返回这轮的错误；
// loop=true 一直跑到 ctx 取消，单轮出错（包括 panic）只记日志。
func (r *Runner) Run(ctx context.Context, loop bool) error {
	if !loop {
		return r.pass(ctx)
	}
	interval := r.Interval
	if interval <= 0 {
		interval = DefaultDepositInterval
	}
	logger.Info(ctx, "runner started", zap.String("runner", r.Name), zap.Duration("interval", interval))

	timer := time.NewTimer(interval)
	defer timer.Stop()
	for {
		if ctx.Err() != nil {
			logger.Info(ctx, "runner stopped", zap.String("runner", r.Name))
			return nil
		}
		if err := r.pass(ctx); err != nil {
			logger.Error(ctx, "pass failed", zap.String("runner", r.Name), zap.Error(err))
		}
		timer.Reset(interval)
		select {
		case <-ctx.Done():
		case <-timer.C:
		}
	}
}

func (r *Runner) pass(ctx context.Context) error {
	start := time.Now()
	defer func() {
		metrics.PassDuration.WithLabelValues(r.Name).Observe(time.Since(start).Seconds())
	}()
	return safe.Run(ctx, r.Pass)
}

package service

import (
	"context"

	"anchorex.com/internal/deposit/domain"
	"anchorex.com/pkg/logger"
	"anchorex.com/pkg/metrics"
	"anchorex.com/pkg/safe"
	"anchorex.com/pkg/xerr"
	"go.uber.org/zap"
)

// Tracker 负责落库和通知：先 CAS 写库，成功后再发通知，保证通知顺序和状态顺序一致
type Tracker struct {
	repo     domain.DepositRepo
	notifier domain.Notifier
}

func NewTracker(repo domain.DepositRepo, notifier domain.Notifier) *Tracker {
	return &Tracker{repo: repo, notifier: notifier}
}

// Persist 只写库，不通知（状态没变的字段更新）
func (t *Tracker) Persist(ctx context.Context, d *domain.Deposit, from ...domain.Status) error {
	return t.repo.CompareAndSwap(ctx, d, from...)
}

// Transition d.Status 已由调用方改好；from 是库里应当处于的状态
func (t *Tracker) Transition(ctx context.Context, d *domain.Deposit, from ...domain.Status) error {
	if err := t.repo.CompareAndSwap(ctx, d, from...); err != nil {
		return err
	}
	metrics.StatusTransitions.WithLabelValues(string(d.Status)).Inc()
	logger.Info(ctx, "deposit status changed",
		zap.String("status", string(d.Status)),
		zap.String("status_message", d.StatusMessage),
	)
	t.notify(ctx, d)
	return nil
}

// Fail 记为终态 error，status_message 写可读原因；返回 cause 方便调用方直接 return
func (t *Tracker) Fail(ctx context.Context, d *domain.Deposit, cause error) error {
	prev := d.Status
	d.Status = domain.StatusError
	d.StatusMessage = xerr.Message(cause)
	d.StatusEta = 0
	if err := t.Transition(ctx, d, prev); err != nil {
		logger.Error(ctx, "unable to record deposit error",
			zap.String("cause", d.StatusMessage),
			zap.Error(err),
		)
	}
	return cause
}

// 通知拿的是快照，下游慢或 panic 都不影响状态机
func (t *Tracker) notify(ctx context.Context, d *domain.Deposit) {
	if t.notifier == nil {
		return
	}
	snapshot := *d
	_ = safe.Run(ctx, func(ctx context.Context) error {
		t.notifier.Notify(ctx, &snapshot)
		return nil
	})
}

package service

import (
	"context"

	"anchorex.com/internal/deposit/domain"
	"anchorex.com/pkg/logger"
	"anchorex.com/pkg/xerr"
	"go.uber.org/zap"
)

// Executor 每个周期的驱动：到账的 deposit 逐笔处理，再扫一遍已补齐签名的多签 deposit
type Executor struct {
	repo      domain.DepositRepo
	tracker   *Tracker
	assets    *AssetRegistry
	resolver  *Resolver
	multisig  *Multisig
	submitter *Submitter
	batchSize int
}

// ExecuteDeposits 单笔失败不影响后面的记录；ConfigurationError 和读库失败中止整轮
func (e *Executor) ExecuteDeposits(ctx context.Context) error {
	if err := e.assets.Refresh(ctx); err != nil {
		logger.Warn(ctx, "refresh asset signers failed, using cached policy", zap.Error(err))
	}

	ready, err := e.submitter.GetReadyDeposits(ctx)
	if err != nil {
		return err
	}
	for _, d := range ready {
		if ctx.Err() != nil {
			return nil
		}
		// 已经开始的那笔不受退出信号打断，免得在账本调用中途丢状态
		dctx := logger.WithDeposit(context.WithoutCancel(ctx), d.ID)
		if err := e.executeDeposit(dctx, d); err != nil {
			e.logOutcome(dctx, err)
		}
	}

	if ctx.Err() != nil {
		return nil
	}
	cosigned, err := e.repo.ListCoSigned(ctx, e.batchSize)
	if err != nil {
		return err
	}
	for _, d := range cosigned {
		if ctx.Err() != nil {
			return nil
		}
		dctx := logger.WithDeposit(context.WithoutCancel(ctx), d.ID)
		logger.Info(dctx, "submitting co-signed deposit")
		if err := e.submitter.SubmitAndFinish(dctx, d); err != nil {
			e.logOutcome(dctx, err)
		}
	}
	return nil
}

func (e *Executor) executeDeposit(ctx context.Context, d *domain.Deposit) error {
	asset, err := e.assets.Lookup(d.AssetCode, d.AssetIssuer)
	if err != nil {
		return e.tracker.Fail(ctx, d, err)
	}

	_, pendingTrust, err := e.resolver.GetOrCreateDestinationAccount(ctx, d, asset)
	if err != nil {
		if xerr.Is(err, xerr.ResourceBusy) || xerr.Is(err, xerr.StatusConflict) {
			return err
		}
		return e.tracker.Fail(ctx, d, err)
	}

	if pendingTrust && !d.ClaimableBalancesAllowed(asset) {
		prev := d.Status
		d.Status = domain.StatusPendingTrust
		d.StatusMessage = ""
		return e.tracker.Transition(ctx, d, prev)
	}
	if e.multisig.RequiresMultisig(asset) {
		return e.multisig.SaveAsPendingSignatures(ctx, d, asset)
	}
	return e.submitter.SubmitAndFinish(ctx, d)
}

func (e *Executor) logOutcome(ctx context.Context, err error) {
	switch {
	case xerr.Is(err, xerr.ResourceBusy):
		logger.Info(ctx, "source account busy, retry next pass", zap.Error(err))
	case xerr.Is(err, xerr.StatusConflict):
		logger.Info(ctx, "deposit moved by another runner, skipped")
	default:
		logger.Error(ctx, "deposit execution failed", zap.Error(err))
	}
}

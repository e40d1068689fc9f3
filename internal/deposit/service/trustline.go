package service

import (
	"context"

	"anchorex.com/internal/deposit/domain"
	"anchorex.com/pkg/logger"
	"anchorex.com/pkg/xerr"
	"go.uber.org/zap"
)

// TrustlinePoller 定期检查 pending_trust 的 deposit，目标账户加了 trustline 就继续提交
type TrustlinePoller struct {
	repo      domain.DepositRepo
	ledger    domain.Ledger
	assets    *AssetRegistry
	multisig  *Multisig
	submitter *Submitter
	batchSize int
}

func (p *TrustlinePoller) CheckTrustlines(ctx context.Context) error {
	pending, err := p.repo.ListByStatus(ctx, domain.KindDeposit, []domain.Status{domain.StatusPendingTrust}, p.batchSize)
	if err != nil {
		return err
	}
	// 同一轮里同一个账户只读一次
	accounts := make(map[string]*domain.Account)
	for _, d := range pending {
		if ctx.Err() != nil {
			return nil
		}
		dctx := logger.WithDeposit(context.WithoutCancel(ctx), d.ID)

		acc, ok := accounts[d.StellarAccount]
		if !ok {
			var found bool
			acc, found, err = p.ledger.GetAccount(dctx, d.StellarAccount)
			if err != nil {
				logger.Warn(dctx, "unable to load account, retry next pass", zap.Error(err))
				continue
			}
			if !found {
				logger.Warn(dctx, "pending_trust account does not exist", zap.String("account", d.StellarAccount))
				continue
			}
			accounts[d.StellarAccount] = acc
		}

		asset, err := p.assets.Lookup(d.AssetCode, d.AssetIssuer)
		if err != nil {
			logger.Error(dctx, "pending_trust deposit references unknown asset", zap.Error(err))
			continue
		}
		if !acc.Accepts(asset) {
			continue
		}

		logger.Info(dctx, "trustline established", zap.String("account", d.StellarAccount))
		if p.multisig.RequiresMultisig(asset) {
			err = p.multisig.SaveAsPendingSignatures(dctx, d, asset)
		} else {
			err = p.submitter.SubmitAndFinish(dctx, d)
		}
		switch {
		case err == nil:
		case xerr.Is(err, xerr.ResourceBusy), xerr.Is(err, xerr.StatusConflict):
			logger.Info(dctx, "deposit skipped, retry next pass", zap.Error(err))
		default:
			logger.Error(dctx, "submit after trustline failed", zap.Error(err))
		}
	}
	return nil
}

package service

import (
	"context"
	"time"

	"anchorex.com/internal/deposit/domain"
	"anchorex.com/pkg/logger"
	"anchorex.com/pkg/safe"
	"anchorex.com/pkg/xerr"
	"github.com/shopspring/decimal"
	"github.com/stellar/go/keypair"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

// Submitter 单笔 deposit 的提交流程和状态推进
type Submitter struct {
	repo    domain.DepositRepo
	tracker *Tracker
	ledger  domain.Ledger
	builder *Builder
	assets  *AssetRegistry
	rails   domain.RailsIntegration
	fee     domain.FeeCalculator
	// 注入了自定义手续费函数时，后端没给的手续费按 0 处理
	customFee bool
	hook      domain.AfterDepositHook
	locker    domain.AccountLocker
	statusEta int
	batchSize int
}

// Submit 幂等推进：pending_anchor → pending_stellar → completed | error。
// 进入 pending_stellar 之后失败就是终态，不自动重提，避免重复出账。
func (s *Submitter) Submit(ctx context.Context, d *domain.Deposit) error {
	ctx, span := tracer.Start(logger.WithDeposit(ctx, d.ID), "deposit.submit")
	defer span.End()
	span.SetAttributes(attribute.String("deposit.id", d.ID), attribute.String("deposit.status", string(d.Status)))

	err := s.submit(ctx, d)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "submit")
	}
	return err
}

func (s *Submitter) submit(ctx context.Context, d *domain.Deposit) error {
	if !d.Status.Submittable() {
		return xerr.Newf(xerr.ValidationError, "unexpected transaction status %s for submission", d.Status)
	}
	asset, err := s.assets.Lookup(d.AssetCode, d.AssetIssuer)
	if err != nil {
		return s.tracker.Fail(ctx, d, err)
	}

	// 同一个分发账户同一时刻只能有一笔在途交易；拿不到锁就留到下一轮，状态不动
	unlock, err := lockAccount(ctx, s.locker, asset.DistributionAccount)
	if err != nil {
		return err
	}
	defer unlock()

	prev := d.Status
	d.Status = domain.StatusPendingAnchor
	d.StatusEta = s.statusEta
	d.StatusMessage = ""
	if err := s.tracker.Transition(ctx, d, prev); err != nil {
		return err
	}

	if d.EnvelopeXDR == "" {
		envelope, err := s.distributionEnvelope(ctx, d, asset)
		if err != nil {
			return s.tracker.Fail(ctx, d, err)
		}
		d.EnvelopeXDR = envelope
	}

	d.Status = domain.StatusPendingStellar
	if err := s.tracker.Transition(ctx, d, domain.StatusPendingAnchor); err != nil {
		return err
	}

	res, err := s.ledger.Submit(ctx, d.EnvelopeXDR)
	if err != nil {
		return s.tracker.Fail(ctx, d, xerr.Wrap(err, xerr.AdapterError, "ledger error when submitting"))
	}
	if !res.Successful {
		return s.tracker.Fail(ctx, d, xerr.Newf(xerr.AdapterError,
			"stellar transaction failed when submitted to horizon: %s", res.ResultXDR))
	}

	if d.ClaimableBalancesAllowed(asset) {
		id, err := BalanceID(res.ResultXDR)
		if err != nil {
			logger.Warn(ctx, "unable to decode transaction result", zap.Error(err))
		}
		d.ClaimableBalanceID = id
	}

	now := time.Now().UTC()
	d.EnvelopeXDR = res.EnvelopeXDR
	d.PagingToken = res.PagingToken
	d.StellarTransactionID = res.ID
	d.AmountOut = decimal.NewNullDecimal(d.NetAmount(asset))
	d.CompletedAt = &now
	d.Status = domain.StatusCompleted
	d.StatusEta = 0
	if err := s.tracker.Transition(ctx, d, domain.StatusPendingStellar); err != nil {
		// 链上已经成功，库没写进去：必须人工对账
		logger.Error(ctx, "🚨 deposit settled on ledger but not recorded",
			zap.String("stellar_transaction_id", res.ID),
			zap.Error(err),
		)
		return err
	}
	return nil
}

func (s *Submitter) distributionEnvelope(ctx context.Context, d *domain.Deposit, asset *domain.Asset) (string, error) {
	source, found, err := s.ledger.GetAccount(ctx, asset.DistributionAccount)
	if err != nil {
		return "", xerr.Wrap(err, xerr.AdapterError, "unable to load distribution account")
	}
	if !found {
		return "", xerr.Newf(xerr.ConfigurationError, "distribution account %s does not exist", asset.DistributionAccount)
	}
	kp, err := keypair.ParseFull(asset.DistributionSeed)
	if err != nil {
		return "", xerr.Wrap(err, xerr.ConfigurationError, "invalid distribution seed")
	}
	tx, err := s.builder.Build(ctx, d, asset, source)
	if err != nil {
		return "", err
	}
	return s.builder.Sign(tx, kp)
}

// SubmitAndFinish 提交成功后跑完成回调；回调的错误和 panic 只记日志
func (s *Submitter) SubmitAndFinish(ctx context.Context, d *domain.Deposit) error {
	if err := s.Submit(ctx, d); err != nil {
		return err
	}
	if s.hook == nil {
		return nil
	}
	ctx = logger.WithDeposit(ctx, d.ID)
	if err := safe.Run(ctx, func(ctx context.Context) error { return s.hook.AfterDeposit(ctx, d) }); err != nil {
		logger.Error(ctx, "after_deposit hook failed", zap.Error(err))
	}
	return nil
}

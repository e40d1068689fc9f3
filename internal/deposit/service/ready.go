package service

import (
	"context"

	"anchorex.com/internal/deposit/domain"
	"anchorex.com/pkg/logger"
	"anchorex.com/pkg/xerr"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// GetReadyDeposits 候选 → 后端轮询 → 严格校验 → 补手续费并落库。
// 后端返回的数据违反约定属于集成配置错误，整轮中止。
func (s *Submitter) GetReadyDeposits(ctx context.Context) ([]*domain.Deposit, error) {
	candidates, err := s.repo.ListByStatus(ctx, domain.KindDeposit, domain.AwaitingFundsStatuses, s.batchSize)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	ready, err := s.rails.PollReady(ctx, candidates)
	if err != nil {
		return nil, xerr.Wrap(err, xerr.AdapterError, "poll pending deposits")
	}
	if err := validateReady(candidates, ready); err != nil {
		return nil, xerr.Wrap(err, xerr.ConfigurationError, "rails integration contract violated")
	}

	out := make([]*domain.Deposit, 0, len(ready))
	for _, d := range ready {
		if !d.AmountFee.Valid {
			if err := s.fillFee(ctx, d); err != nil {
				logger.Error(logger.WithDeposit(ctx, d.ID), "unable to calculate deposit fee", zap.Error(err))
				continue
			}
		}
		if err := s.tracker.Persist(ctx, d, domain.AwaitingFundsStatuses...); err != nil {
			// 被别的 runner 推进了就跳过
			logger.Warn(logger.WithDeposit(ctx, d.ID), "ready deposit not persisted", zap.Error(err))
			continue
		}
		out = append(out, d)
	}
	return out, nil
}

func (s *Submitter) fillFee(ctx context.Context, d *domain.Deposit) error {
	// 自定义手续费只作为开关：后端负责填 amount_fee，漏填按 0
	if s.customFee {
		d.AmountFee = decimal.NewNullDecimal(decimal.Zero)
		return nil
	}
	asset, err := s.assets.Lookup(d.AssetCode, d.AssetIssuer)
	if err != nil {
		return err
	}
	fee, err := s.fee.Fee(ctx, d, asset)
	if err != nil {
		return err
	}
	d.AmountFee = decimal.NewNullDecimal(fee)
	return nil
}

func validateReady(candidates, ready []*domain.Deposit) error {
	known := make(map[string]struct{}, len(candidates))
	for _, c := range candidates {
		known[c.ID] = struct{}{}
	}
	seen := make(map[string]struct{}, len(ready))
	for _, d := range ready {
		switch {
		case d == nil:
			return xerr.New(xerr.ValidationError, "poll_ready returned a nil record")
		case d.Kind != domain.KindDeposit:
			return xerr.Newf(xerr.ValidationError, "poll_ready returned a non-deposit transaction %s", d.ID)
		case !d.AmountIn.Valid:
			return xerr.Newf(xerr.ValidationError, "poll_ready returned deposit %s without amount_in", d.ID)
		}
		if _, ok := known[d.ID]; !ok {
			return xerr.Newf(xerr.ValidationError, "poll_ready returned %s which was not a candidate", d.ID)
		}
		if _, dup := seen[d.ID]; dup {
			return xerr.Newf(xerr.ValidationError, "poll_ready returned %s twice", d.ID)
		}
		seen[d.ID] = struct{}{}
	}
	return nil
}

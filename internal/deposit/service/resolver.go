package service

import (
	"context"

	"anchorex.com/internal/deposit/domain"
	"anchorex.com/pkg/logger"
	"anchorex.com/pkg/xerr"
	"github.com/stellar/go/keypair"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("anchorex.com/internal/deposit/service")

// Resolver 确认目标账户存在并判断是否还在等 trustline；不存在时由锚方出资建号
type Resolver struct {
	ledger          domain.Ledger
	builder         *Builder
	multisig        *Multisig
	locker          domain.AccountLocker
	startingBalance string
}

func NewResolver(l domain.Ledger, builder *Builder, multisig *Multisig, locker domain.AccountLocker, startingBalance string) *Resolver {
	if startingBalance == "" {
		startingBalance = "2"
	}
	return &Resolver{ledger: l, builder: builder, multisig: multisig, locker: locker, startingBalance: startingBalance}
}

// GetOrCreateDestinationAccount 返回 (账户快照, 是否还在等资产接受)
func (r *Resolver) GetOrCreateDestinationAccount(ctx context.Context, d *domain.Deposit, asset *domain.Asset) (*domain.Account, bool, error) {
	ctx, span := tracer.Start(ctx, "deposit.resolve_account")
	defer span.End()
	span.SetAttributes(attribute.String("deposit.id", d.ID))

	acc, pendingTrust, err := r.resolve(ctx, d, asset)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "resolve account")
	}
	return acc, pendingTrust, err
}

func (r *Resolver) resolve(ctx context.Context, d *domain.Deposit, asset *domain.Asset) (*domain.Account, bool, error) {
	acc, found, err := r.ledger.GetAccount(ctx, d.StellarAccount)
	if err != nil {
		return nil, false, xerr.Wrap(err, xerr.AdapterError, "unable to load destination account")
	}
	if found {
		return acc, !acc.Accepts(asset), nil
	}

	// 目标账户不存在：多签资产用 channel 账户出资，否则直接用分发账户
	var source *keypair.Full
	if r.multisig.RequiresMultisig(asset) {
		source, err = r.multisig.GetChannelKeypair(ctx, d)
	} else {
		source, err = keypair.ParseFull(asset.DistributionSeed)
	}
	if err != nil {
		return nil, false, err
	}

	if err := r.createAccount(ctx, source, d.StellarAccount); err != nil {
		return nil, false, err
	}

	acc, found, err = r.ledger.GetAccount(ctx, d.StellarAccount)
	if err != nil {
		return nil, false, xerr.Wrap(err, xerr.AdapterError, "unable to load created account")
	}
	if !found {
		return nil, false, xerr.New(xerr.AdapterError, "created account not visible on ledger")
	}
	logger.Info(ctx, "destination account created", zap.String("account", d.StellarAccount))
	// 刚建好的账户不可能有 trustline
	return acc, !asset.IsNative(), nil
}

func (r *Resolver) createAccount(ctx context.Context, source *keypair.Full, destination string) error {
	unlock, err := lockAccount(ctx, r.locker, source.Address())
	if err != nil {
		return err
	}
	defer unlock()

	src, found, err := r.ledger.GetAccount(ctx, source.Address())
	if err != nil {
		return xerr.Wrap(err, xerr.AdapterError, "unable to load funding account")
	}
	if !found {
		return xerr.Newf(xerr.AdapterError, "funding account %s does not exist", source.Address())
	}
	tx, err := r.builder.BuildCreateAccount(ctx, src, destination, r.startingBalance)
	if err != nil {
		return err
	}
	envelope, err := r.builder.Sign(tx, source)
	if err != nil {
		return err
	}
	res, err := r.ledger.Submit(ctx, envelope)
	if err != nil {
		return xerr.Wrap(err, xerr.AdapterError, "ledger error when submitting create account")
	}
	if !res.Successful {
		return xerr.New(xerr.AdapterError, "create account transaction was not successful")
	}
	return nil
}

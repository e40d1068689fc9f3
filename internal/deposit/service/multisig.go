package service

import (
	"context"

	"anchorex.com/internal/deposit/domain"
	"anchorex.com/pkg/logger"
	"anchorex.com/pkg/xerr"
	"github.com/stellar/go/keypair"
	"go.uber.org/zap"
)

// Multisig 分发账户需要多签时：每笔 deposit 用独立 channel 账户做信封源，只签 channel 的名，
// 剩下的签名由线下流程补齐后清掉 pending_signatures，再由下一轮提交。
type Multisig struct {
	tracker     *Tracker
	ledger      domain.Ledger
	provisioner domain.ChannelProvisioner
	builder     *Builder
}

func NewMultisig(tracker *Tracker, l domain.Ledger, provisioner domain.ChannelProvisioner, builder *Builder) *Multisig {
	return &Multisig{tracker: tracker, ledger: l, provisioner: provisioner, builder: builder}
}

// RequiresMultisig master key 不是签名者，或者权重不够 medium 门限
func (m *Multisig) RequiresMultisig(asset *domain.Asset) bool {
	return asset.MasterSigner == nil || asset.MasterSigner.Weight < int32(asset.Thresholds.Med)
}

func (m *Multisig) GetChannelKeypair(ctx context.Context, d *domain.Deposit) (*keypair.Full, error) {
	if d.ChannelAccount == "" || d.ChannelSeed == "" {
		if m.provisioner == nil {
			return nil, xerr.New(xerr.ConfigurationError, "no channel account provisioner configured")
		}
		address, seed, err := m.provisioner.CreateChannelAccount(ctx, d)
		if err != nil {
			// 出资账户锁被占用，原样返回，下一轮再建
			if xerr.Is(err, xerr.ResourceBusy) {
				return nil, err
			}
			return nil, xerr.Wrap(err, xerr.AdapterError, "unable to create channel account")
		}
		d.ChannelAccount, d.ChannelSeed = address, seed
		if err := m.tracker.Persist(ctx, d, d.Status); err != nil {
			// 账户已经在链上出资，但没落库；seed 不进日志，需要人工从出资账户侧回收
			logger.Error(ctx, "🚨 channel account funded but not recorded",
				zap.String("channel", address),
				zap.String("deposit_status", string(d.Status)),
				zap.Error(err),
			)
			d.ChannelAccount, d.ChannelSeed = "", ""
			return nil, err
		}
	}
	kp, err := keypair.ParseFull(d.ChannelSeed)
	if err != nil {
		return nil, xerr.Wrap(err, xerr.ValidationError, "invalid channel seed")
	}
	return kp, nil
}

// SaveAsPendingSignatures 锁忙和状态冲突留给下一轮，其余失败记为 error
func (m *Multisig) SaveAsPendingSignatures(ctx context.Context, d *domain.Deposit, asset *domain.Asset) error {
	envelope, err := m.channelEnvelope(ctx, d, asset)
	if err != nil {
		if xerr.Is(err, xerr.StatusConflict) || xerr.Is(err, xerr.ResourceBusy) {
			return err
		}
		return m.tracker.Fail(ctx, d, err)
	}

	prev := d.Status
	d.EnvelopeXDR = envelope
	d.PendingSignatures = true
	d.Status = domain.StatusPendingAnchor
	if err := m.tracker.Transition(ctx, d, prev); err != nil {
		return err
	}
	logger.Info(ctx, "deposit awaiting co-signature", zap.String("channel", d.ChannelAccount))
	return nil
}

func (m *Multisig) channelEnvelope(ctx context.Context, d *domain.Deposit, asset *domain.Asset) (string, error) {
	kp, err := m.GetChannelKeypair(ctx, d)
	if err != nil {
		return "", err
	}
	channel, found, err := m.ledger.GetAccount(ctx, kp.Address())
	if err != nil {
		return "", xerr.Wrap(err, xerr.AdapterError, "unable to load channel account")
	}
	if !found {
		return "", xerr.Newf(xerr.AdapterError, "channel account %s does not exist", kp.Address())
	}
	tx, err := m.builder.Build(ctx, d, asset, channel)
	if err != nil {
		return "", err
	}
	return m.builder.Sign(tx, kp)
}

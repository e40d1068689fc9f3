package ledger

import (
	"context"

	"anchorex.com/internal/deposit/domain"
	"anchorex.com/pkg/logger"
	"anchorex.com/pkg/xerr"
	"github.com/stellar/go/keypair"
	"github.com/stellar/go/txnbuild"
	"go.uber.org/zap"
)

type ChannelConfig struct {
	FundingSeed     string `mapstructure:"funding_seed"`
	StartingBalance string `mapstructure:"starting_balance"`
}

// ChannelFunder 用独立的 funding 账户给每笔多签 deposit 开一个 channel 账户
type ChannelFunder struct {
	ledger          domain.Ledger
	locker          domain.AccountLocker
	funding         *keypair.Full
	passphrase      string
	startingBalance string
	maxFee          int64
}

var _ domain.ChannelProvisioner = (*ChannelFunder)(nil)

func NewChannelFunder(l domain.Ledger, locker domain.AccountLocker, c ChannelConfig, passphrase string, maxFee int64) (*ChannelFunder, error) {
	kp, err := keypair.ParseFull(c.FundingSeed)
	if err != nil {
		return nil, xerr.Wrap(err, xerr.ConfigurationError, "channel.funding_seed")
	}
	balance := c.StartingBalance
	if balance == "" {
		balance = "2.5"
	}
	return &ChannelFunder{
		ledger:          l,
		locker:          locker,
		funding:         kp,
		passphrase:      passphrase,
		startingBalance: balance,
		maxFee:          maxFee,
	}, nil
}

func (f *ChannelFunder) CreateChannelAccount(ctx context.Context, d *domain.Deposit) (string, string, error) {
	// 幂等：已经开过就直接复用
	if d.ChannelAccount != "" && d.ChannelSeed != "" {
		return d.ChannelAccount, d.ChannelSeed, nil
	}

	channel, err := keypair.Random()
	if err != nil {
		return "", "", err
	}

	if f.locker != nil {
		unlock, err := f.locker.Lock(ctx, f.funding.Address())
		if err != nil {
			return "", "", xerr.Wrap(err, xerr.ResourceBusy, "lock funding account")
		}
		defer unlock()
	}

	src, found, err := f.ledger.GetAccount(ctx, f.funding.Address())
	if err != nil {
		return "", "", err
	}
	if !found {
		return "", "", xerr.New(xerr.ConfigurationError, "channel funding account does not exist")
	}
	fee, err := domain.EffectiveBaseFee(ctx, f.ledger, f.maxFee)
	if err != nil {
		return "", "", err
	}

	account := txnbuild.NewSimpleAccount(src.ID, src.Sequence)
	tx, err := txnbuild.NewTransaction(txnbuild.TransactionParams{
		SourceAccount:        &account,
		IncrementSequenceNum: true,
		Operations: []txnbuild.Operation{&txnbuild.CreateAccount{
			Destination: channel.Address(),
			Amount:      f.startingBalance,
		}},
		BaseFee:       fee,
		Preconditions: txnbuild.Preconditions{TimeBounds: txnbuild.NewInfiniteTimeout()},
	})
	if err != nil {
		return "", "", xerr.Wrap(err, xerr.ValidationError, "build channel account transaction")
	}
	if tx, err = tx.Sign(f.passphrase, f.funding); err != nil {
		return "", "", err
	}
	envelope, err := tx.Base64()
	if err != nil {
		return "", "", err
	}

	res, err := f.ledger.Submit(ctx, envelope)
	if err != nil {
		return "", "", err
	}
	if !res.Successful {
		return "", "", xerr.New(xerr.AdapterError, "channel account creation was not successful")
	}

	logger.Info(ctx, "channel account created",
		zap.String("channel", channel.Address()),
		zap.String("tx", res.ID),
	)
	return channel.Address(), channel.Seed(), nil
}

package service

import (
	"context"
	"encoding/base64"
	"encoding/hex"
	"strconv"

	"anchorex.com/internal/deposit/domain"
	"anchorex.com/pkg/xerr"
	"github.com/stellar/go/keypair"
	"github.com/stellar/go/txnbuild"
)

// Builder 为 deposit 组装账本交易，不负责提交
type Builder struct {
	ledger     domain.Ledger
	passphrase string
	maxFee     int64
}

func NewBuilder(l domain.Ledger, passphrase string, maxFee int64) *Builder {
	return &Builder{ledger: l, passphrase: passphrase, maxFee: maxFee}
}

// Build 以 source 为信封源账户构建 deposit 交易，操作源固定为分发账户。
// source 的序列号在这里被消费，调用方不要拿同一份快照再构建第二笔。
func (b *Builder) Build(ctx context.Context, d *domain.Deposit, asset *domain.Asset, source *domain.Account) (*txnbuild.Transaction, error) {
	if !d.AmountIn.Valid {
		return nil, xerr.New(xerr.ValidationError, "deposit has no amount_in")
	}
	amount := d.NetAmount(asset).StringFixed(asset.SignificantDecimals)

	var op txnbuild.Operation
	if !asset.IsNative() && d.ClaimableBalancesAllowed(asset) {
		dest, found, err := b.ledger.GetAccount(ctx, d.StellarAccount)
		if err != nil {
			return nil, xerr.Wrap(err, xerr.AdapterError, "unable to load destination account")
		}
		if !found || !dest.Accepts(asset) {
			op = &txnbuild.CreateClaimableBalance{
				Destinations:  []txnbuild.Claimant{txnbuild.NewClaimant(d.StellarAccount, nil)},
				Asset:         txnbuild.CreditAsset{Code: asset.Code, Issuer: asset.Issuer},
				Amount:        amount,
				SourceAccount: asset.DistributionAccount,
			}
		}
	}
	if op == nil {
		op = &txnbuild.Payment{
			Destination:   d.StellarAccount,
			Amount:        amount,
			Asset:         txAsset(asset),
			SourceAccount: asset.DistributionAccount,
		}
	}

	memo, err := makeMemo(d.Memo, d.MemoType)
	if err != nil {
		return nil, err
	}
	return b.newTransaction(ctx, source, memo, op)
}

// BuildCreateAccount 单操作建号交易，由 source 出资
func (b *Builder) BuildCreateAccount(ctx context.Context, source *domain.Account, destination, startingBalance string) (*txnbuild.Transaction, error) {
	return b.newTransaction(ctx, source, nil, &txnbuild.CreateAccount{
		Destination: destination,
		Amount:      startingBalance,
	})
}

func (b *Builder) newTransaction(ctx context.Context, source *domain.Account, memo txnbuild.Memo, ops ...txnbuild.Operation) (*txnbuild.Transaction, error) {
	fee, err := domain.EffectiveBaseFee(ctx, b.ledger, b.maxFee)
	if err != nil {
		return nil, xerr.Wrap(err, xerr.AdapterError, "unable to fetch base fee")
	}
	account := txnbuild.NewSimpleAccount(source.ID, source.Sequence)
	tx, err := txnbuild.NewTransaction(txnbuild.TransactionParams{
		SourceAccount:        &account,
		IncrementSequenceNum: true,
		Operations:           ops,
		BaseFee:              fee,
		Memo:                 memo,
		Preconditions:        txnbuild.Preconditions{TimeBounds: txnbuild.NewInfiniteTimeout()},
	})
	if err != nil {
		return nil, xerr.Wrap(err, xerr.ValidationError, "build transaction")
	}
	source.Sequence++
	return tx, nil
}

// Sign 签名并输出 base64 信封
func (b *Builder) Sign(tx *txnbuild.Transaction, signers ...*keypair.Full) (string, error) {
	signed, err := tx.Sign(b.passphrase, signers...)
	if err != nil {
		return "", xerr.Wrap(err, xerr.ValidationError, "sign transaction")
	}
	return signed.Base64()
}

func txAsset(a *domain.Asset) txnbuild.Asset {
	if a.IsNative() {
		return txnbuild.NativeAsset{}
	}
	return txnbuild.CreditAsset{Code: a.Code, Issuer: a.Issuer}
}

// memo 类型在 intake 时已校验，这里只做转换；hash 接受 base64 或 64 位 hex
func makeMemo(memo string, t domain.MemoType) (txnbuild.Memo, error) {
	if memo == "" {
		return nil, nil
	}
	switch t {
	case domain.MemoID:
		id, err := strconv.ParseUint(memo, 10, 64)
		if err != nil {
			return nil, xerr.Wrap(err, xerr.ValidationError, "invalid id memo")
		}
		return txnbuild.MemoID(id), nil
	case domain.MemoHash:
		raw, err := base64.StdEncoding.DecodeString(memo)
		if err != nil || len(raw) != 32 {
			raw, err = hex.DecodeString(memo)
		}
		if err != nil || len(raw) != 32 {
			return nil, xerr.New(xerr.ValidationError, "invalid hash memo")
		}
		var h txnbuild.MemoHash
		copy(h[:], raw)
		return h, nil
	default:
		return txnbuild.MemoText(memo), nil
	}
}

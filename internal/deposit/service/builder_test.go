package service

import (
	"context"
	"encoding/base64"
	"encoding/hex"
	"testing"

	"anchorex.com/internal/deposit/domain"
	"anchorex.com/internal/deposit/ledger/ledgertest"
	"github.com/shopspring/decimal"
	"github.com/stellar/go/keypair"
	"github.com/stellar/go/network"
	"github.com/stellar/go/txnbuild"
	"github.com/stellar/go/xdr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMakeMemo(t *testing.T) {
	raw := make([]byte, 32)
	raw[0], raw[31] = 0xab, 0xcd
	var want txnbuild.MemoHash
	copy(want[:], raw)

	memo, err := makeMemo("", domain.MemoText)
	require.NoError(t, err)
	assert.Nil(t, memo)

	memo, err = makeMemo("hello", domain.MemoText)
	require.NoError(t, err)
	assert.Equal(t, txnbuild.MemoText("hello"), memo)

	memo, err = makeMemo("12345", domain.MemoID)
	require.NoError(t, err)
	assert.Equal(t, txnbuild.MemoID(12345), memo)

	memo, err = makeMemo(base64.StdEncoding.EncodeToString(raw), domain.MemoHash)
	require.NoError(t, err)
	assert.Equal(t, want, memo)

	memo, err = makeMemo(hex.EncodeToString(raw), domain.MemoHash)
	require.NoError(t, err)
	assert.Equal(t, want, memo)

	_, err = makeMemo("not-a-number", domain.MemoID)
	assert.Error(t, err)
	_, err = makeMemo("c2hvcnQ=", domain.MemoHash)
	assert.Error(t, err)
}

func TestBuild_NativePaymentWithMemo(t *testing.T) {
	l := ledgertest.New()
	l.SetBaseFee(250)
	dist, dest := keypair.MustRandom(), keypair.MustRandom()
	asset := &domain.Asset{Code: domain.NativeAssetCode, DistributionAccount: dist.Address(), SignificantDecimals: 7}
	d := &domain.Deposit{
		StellarAccount: dest.Address(),
		AmountIn:       decimal.NewNullDecimal(decimal.RequireFromString("12.5")),
		AmountFee:      decimal.NewNullDecimal(decimal.RequireFromString("0.5")),
		Memo:           "42",
		MemoType:       domain.MemoID,
	}
	source := &domain.Account{ID: dist.Address(), Sequence: 10}

	tx, err := NewBuilder(l, network.TestNetworkPassphrase, 0).Build(context.Background(), d, asset, source)
	require.NoError(t, err)

	assert.Equal(t, int64(11), tx.SourceAccount().Sequence)
	assert.Equal(t, int64(11), source.Sequence, "快照序列号被消费")
	assert.Equal(t, int64(250), tx.BaseFee())
	assert.Equal(t, txnbuild.MemoID(42), tx.Memo())

	payment, ok := tx.Operations()[0].(*txnbuild.Payment)
	require.True(t, ok)
	assert.Equal(t, txnbuild.NativeAsset{}, payment.Asset)
	assert.Equal(t, "12.0000000", payment.Amount)
	assert.Zero(t, l.GetCalls[dest.Address()], "原生资产不需要查目标账户")
}

func TestBuild_ConfiguredMaxFeeSkipsLedger(t *testing.T) {
	l := ledgertest.New()
	l.SetBaseFee(99999)
	dist, issuer := keypair.MustRandom(), keypair.MustRandom()
	asset := &domain.Asset{Code: "USD", Issuer: issuer.Address(), DistributionAccount: dist.Address(), SignificantDecimals: 2}
	d := &domain.Deposit{StellarAccount: keypair.MustRandom().Address(), AmountIn: decimal.NewNullDecimal(decimal.NewFromInt(3))}

	tx, err := NewBuilder(l, network.TestNetworkPassphrase, 300).Build(context.Background(), d, asset, &domain.Account{ID: dist.Address()})
	require.NoError(t, err)
	assert.Equal(t, int64(300), tx.BaseFee())
	assert.Equal(t, "3.00", tx.Operations()[0].(*txnbuild.Payment).Amount)
}

func TestBuild_RequiresAmount(t *testing.T) {
	asset := &domain.Asset{Code: domain.NativeAssetCode, SignificantDecimals: 7}
	_, err := NewBuilder(ledgertest.New(), network.TestNetworkPassphrase, 0).
		Build(context.Background(), &domain.Deposit{}, asset, &domain.Account{})
	assert.Error(t, err)
}

func TestBalanceID(t *testing.T) {
	hash := xdr.Hash{1, 2, 3}
	id := xdr.ClaimableBalanceId{Type: xdr.ClaimableBalanceIdTypeClaimableBalanceIdTypeV0, V0: &hash}
	results := []xdr.OperationResult{
		{Code: xdr.OperationResultCodeOpInner, Tr: &xdr.OperationResultTr{
			Type:          xdr.OperationTypePayment,
			PaymentResult: &xdr.PaymentResult{Code: xdr.PaymentResultCodePaymentSuccess},
		}},
		{Code: xdr.OperationResultCodeOpInner, Tr: &xdr.OperationResultTr{
			Type: xdr.OperationTypeCreateClaimableBalance,
			CreateClaimableBalanceResult: &xdr.CreateClaimableBalanceResult{
				Code:      xdr.CreateClaimableBalanceResultCodeCreateClaimableBalanceSuccess,
				BalanceId: &id,
			},
		}},
	}
	resultXDR, err := xdr.MarshalBase64(xdr.TransactionResult{
		FeeCharged: 100,
		Result:     xdr.TransactionResultResult{Code: xdr.TransactionResultCodeTxSuccess, Results: &results},
	})
	require.NoError(t, err)

	got, err := BalanceID(resultXDR)
	require.NoError(t, err)
	want, _ := xdr.MarshalHex(id)
	assert.Equal(t, want, got)
	// 类型前缀 4 字节 + 32 字节 hash
	assert.Len(t, got, 72)

	paymentsOnly := results[:1]
	resultXDR, err = xdr.MarshalBase64(xdr.TransactionResult{
		Result: xdr.TransactionResultResult{Code: xdr.TransactionResultCodeTxSuccess, Results: &paymentsOnly},
	})
	require.NoError(t, err)
	got, err = BalanceID(resultXDR)
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = BalanceID("!!not xdr")
	assert.Error(t, err)
}

func TestRequiresMultisig(t *testing.T) {
	m := NewMultisig(nil, nil, nil, nil)
	cases := []struct {
		name   string
		master *domain.Signer
		med    uint8
		want   bool
	}{
		{"master removed", nil, 0, true},
		{"weight below medium", &domain.Signer{Weight: 5}, 10, true},
		{"weight equals medium", &domain.Signer{Weight: 10}, 10, false},
		{"no thresholds", &domain.Signer{Weight: 1}, 0, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			asset := &domain.Asset{MasterSigner: tc.master, Thresholds: domain.Thresholds{Med: tc.med}}
			assert.Equal(t, tc.want, m.RequiresMultisig(asset))
		})
	}
}

func TestStandardFee(t *testing.T) {
	asset := &domain.Asset{
		SignificantDecimals: 2,
		DepositFeeFixed:     decimal.RequireFromString("0.25"),
		DepositFeePercent:   decimal.RequireFromString("0.333"),
	}
	d := &domain.Deposit{AmountIn: decimal.NewNullDecimal(decimal.NewFromInt(100))}
	fee, err := StandardFee{}.Fee(context.Background(), d, asset)
	require.NoError(t, err)
	assert.Equal(t, "0.58", fee.StringFixed(2))
}

func TestAssetRegistry_RefreshFromLedger(t *testing.T) {
	l := ledgertest.New()
	dist, issuer := keypair.MustRandom(), keypair.MustRandom()
	l.Put(&domain.Account{
		ID:         dist.Address(),
		Signers:    []domain.Signer{{Key: dist.Address(), Weight: 5}, {Key: keypair.MustRandom().Address(), Weight: 5}},
		Thresholds: domain.Thresholds{Low: 1, Med: 10, High: 10},
	})
	reg := NewAssetRegistry([]*domain.Asset{{
		Code: "USD", Issuer: issuer.Address(), DistributionAccount: dist.Address(),
		MasterSigner: &domain.Signer{Key: dist.Address(), Weight: 20},
	}}, l, true, 0)

	require.NoError(t, reg.Refresh(context.Background()))
	require.NoError(t, reg.Refresh(context.Background()))
	assert.Equal(t, 1, l.GetCalls[dist.Address()], "TTL 内不重复拉取")

	a, err := reg.Lookup("USD", "")
	require.NoError(t, err)
	require.NotNil(t, a.MasterSigner)
	assert.Equal(t, int32(5), a.MasterSigner.Weight)
	assert.Equal(t, uint8(10), a.Thresholds.Med)
	assert.True(t, NewMultisig(nil, nil, nil, nil).RequiresMultisig(a))

	// Lookup 返回副本
	a.Code = "EUR"
	_, err = reg.Lookup("USD", issuer.Address())
	assert.NoError(t, err)
	_, err = reg.Lookup("USD", keypair.MustRandom().Address())
	assert.Error(t, err)
}

func TestAssetRegistry_MasterNotSigner(t *testing.T) {
	l := ledgertest.New()
	dist := keypair.MustRandom()
	l.Put(&domain.Account{ID: dist.Address(), Thresholds: domain.Thresholds{Med: 1}})
	reg := NewAssetRegistry([]*domain.Asset{{Code: domain.NativeAssetCode, DistributionAccount: dist.Address()}}, l, true, 0)

	require.NoError(t, reg.Refresh(context.Background()))
	a, err := reg.Lookup(domain.NativeAssetCode, "")
	require.NoError(t, err)
	assert.Nil(t, a.MasterSigner)
}

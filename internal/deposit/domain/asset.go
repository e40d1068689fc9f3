package domain

import "github.com/shopspring/decimal"

const NativeAssetCode = "XLM"

type Signer struct {
	Key    string
	Weight int32
}

type Thresholds struct {
	Low  uint8
	Med  uint8
	High uint8
}

// Asset 锚定资产描述，来自配置，对结算核心只读
type Asset struct {
	Code   string
	Issuer string

	DistributionAccount string
	DistributionSeed    string

	SignificantDecimals int32

	// MasterSigner 为 nil 表示 master key 已经不是签名者
	MasterSigner *Signer
	Thresholds   Thresholds

	ClaimableBalances bool

	DepositFeeFixed   decimal.Decimal
	DepositFeePercent decimal.Decimal
}

func (a *Asset) IsNative() bool {
	return a.Issuer == "" && a.Code == NativeAssetCode
}

// Matches 判断 deposit 指向的是不是这个资产
func (a *Asset) Matches(code, issuer string) bool {
	if a.Code != code {
		return false
	}
	return issuer == "" || a.Issuer == issuer
}

package domain

const AssetTypeNative = "native"

type Balance struct {
	AssetType   string
	AssetCode   string
	AssetIssuer string
	Balance     string
}

// Account 账本账户快照，每次现拉，不落库
type Account struct {
	ID         string
	Sequence   int64
	Balances   []Balance
	Signers    []Signer
	Thresholds Thresholds
}

// Accepts 目标账户当前能否直接收这个资产（原生资产永远可以）
func (a *Account) Accepts(asset *Asset) bool {
	if asset.IsNative() {
		return true
	}
	for _, b := range a.Balances {
		if b.AssetType == AssetTypeNative {
			continue
		}
		if b.AssetCode == asset.Code && b.AssetIssuer == asset.Issuer {
			return true
		}
	}
	return false
}

// SignerWeight key 不在签名者列表里返回 (0, false)
func (a *Account) SignerWeight(key string) (int32, bool) {
	for _, s := range a.Signers {
		if s.Key == key {
			return s.Weight, true
		}
	}
	return 0, false
}

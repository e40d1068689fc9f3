package service

import (
	"github.com/stellar/go/xdr"
)

// BalanceID 从交易结果里找 CreateClaimableBalance 的结果，返回 balance id 的 XDR hex。
// 没有这类操作结果时返回空串，不算错误。
func BalanceID(resultXDR string) (string, error) {
	var result xdr.TransactionResult
	if err := xdr.SafeUnmarshalBase64(resultXDR, &result); err != nil {
		return "", err
	}
	results, ok := result.Result.GetResults()
	if !ok {
		return "", nil
	}
	for _, op := range results {
		tr, ok := op.GetTr()
		if !ok {
			continue
		}
		ccb, ok := tr.GetCreateClaimableBalanceResult()
		if !ok {
			continue
		}
		id, ok := ccb.GetBalanceId()
		if !ok {
			continue
		}
		return xdr.MarshalHex(id)
	}
	return "", nil
}

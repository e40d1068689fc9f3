package service

import (
	"context"

	"anchorex.com/internal/deposit/domain"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// StandardFee fee_fixed + amount_in * fee_percent / 100，按资产精度取整
type StandardFee struct{}

var _ domain.FeeCalculator = StandardFee{}

func (StandardFee) Fee(_ context.Context, d *domain.Deposit, a *domain.Asset) (decimal.Decimal, error) {
	fee := a.DepositFeeFixed.Add(d.AmountIn.Decimal.Mul(a.DepositFeePercent).Div(hundred))
	return fee.Round(a.SignificantDecimals), nil
}

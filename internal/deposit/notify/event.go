// Package notify 把 deposit 的状态变更推给下游：回调 URL、Redis Stream、NATS。
// 所有 sink 都只记日志和指标，从不把错误抛回状态机。
package notify

import (
	"context"
	"time"

	"anchorex.com/internal/deposit/domain"
	"anchorex.com/pkg/logger"
	"anchorex.com/pkg/metrics"
	"github.com/segmentio/encoding/json"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Event 对外的状态变更载荷，不含任何密钥
type Event struct {
	ID                   string     `json:"id"`
	Kind                 string     `json:"kind"`
	Status               string     `json:"status"`
	StatusMessage        string     `json:"status_message,omitempty"`
	StatusEta            int        `json:"status_eta"`
	AssetCode            string     `json:"asset_code"`
	AmountIn             string     `json:"amount_in,omitempty"`
	AmountFee            string     `json:"amount_fee,omitempty"`
	AmountOut            string     `json:"amount_out,omitempty"`
	StellarAccount       string     `json:"stellar_account"`
	StellarTransactionID string     `json:"stellar_transaction_id,omitempty"`
	ClaimableBalanceID   string     `json:"claimable_balance_id,omitempty"`
	PendingSignatures    bool       `json:"pending_signatures"`
	CompletedAt          *time.Time `json:"completed_at,omitempty"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

func NewEvent(d *domain.Deposit) Event {
	return Event{
		ID:                   d.ID,
		Kind:                 string(d.Kind),
		Status:               string(d.Status),
		StatusMessage:        d.StatusMessage,
		StatusEta:            d.StatusEta,
		AssetCode:            d.AssetCode,
		AmountIn:             amount(d.AmountIn),
		AmountFee:            amount(d.AmountFee),
		AmountOut:            amount(d.AmountOut),
		StellarAccount:       d.StellarAccount,
		StellarTransactionID: d.StellarTransactionID,
		ClaimableBalanceID:   d.ClaimableBalanceID,
		PendingSignatures:    d.PendingSignatures,
		CompletedAt:          d.CompletedAt,
		UpdatedAt:            d.UpdatedAt,
	}
}

func amount(v decimal.NullDecimal) string {
	if !v.Valid {
		return ""
	}
	return v.Decimal.String()
}

func encode(d *domain.Deposit) ([]byte, error) {
	return json.Marshal(NewEvent(d))
}

func failed(ctx context.Context, sink string, d *domain.Deposit, err error) {
	metrics.NotifyFailures.WithLabelValues(sink).Inc()
	logger.Warn(ctx, "status notification failed",
		zap.String("sink", sink),
		zap.String("status", string(d.Status)),
		zap.Error(err),
	)
}

// Multi 按顺序扇出
type Multi []domain.Notifier

func (m Multi) Notify(ctx context.Context, d *domain.Deposit) {
	for _, n := range m {
		if n != nil {
			n.Notify(ctx, d)
		}
	}
}

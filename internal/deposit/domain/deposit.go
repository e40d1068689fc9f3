package domain

import (
	"slices"
	"time"

	"github.com/shopspring/decimal"
)

type Kind string

const (
	KindDeposit    Kind = "deposit"
	KindWithdrawal Kind = "withdrawal"
)

type Status string

const (
	StatusPendingUserTransferStart Status = "pending_user_transfer_start"
	StatusPendingExternal          Status = "pending_external"
	StatusPendingAnchor            Status = "pending_anchor"
	StatusPendingTrust             Status = "pending_trust"
	StatusPendingStellar           Status = "pending_stellar"
	StatusCompleted                Status = "completed"
	StatusError                    Status = "error"
)

// 可以进入 submit 的状态
var SubmittableStatuses = []Status{
	StatusPendingUserTransferStart,
	StatusPendingExternal,
	StatusPendingAnchor,
	StatusPendingTrust,
}

// 等待后端资金到账的初始状态
var AwaitingFundsStatuses = []Status{
	StatusPendingUserTransferStart,
	StatusPendingExternal,
}

func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusError
}

func (s Status) Submittable() bool {
	return slices.Contains(SubmittableStatuses, s)
}

type MemoType string

const (
	MemoText MemoType = "text"
	MemoID   MemoType = "id"
	MemoHash MemoType = "hash"
)

// Deposit 一笔入金记录，由 intake 流程创建，本服务只推进状态，不删除
type Deposit struct {
	ID            string `gorm:"primaryKey;size:64" json:"id"`
	Kind          Kind   `gorm:"size:16;not null;index:idx_kind_status,priority:1" json:"kind"`
	Status        Status `gorm:"size:40;not null;index:idx_kind_status,priority:2" json:"status"`
	StatusMessage string `gorm:"size:1024" json:"status_message,omitempty"`
	StatusEta     int    `json:"status_eta"`

	AssetCode   string `gorm:"size:12;not null" json:"asset_code"`
	AssetIssuer string `gorm:"size:56" json:"asset_issuer,omitempty"`

	AmountIn  decimal.NullDecimal `gorm:"type:decimal(36,7)" json:"amount_in"`
	AmountFee decimal.NullDecimal `gorm:"type:decimal(36,7)" json:"amount_fee"`
	AmountOut decimal.NullDecimal `gorm:"type:decimal(36,7)" json:"amount_out"`

	StellarAccount string   `gorm:"size:56;not null" json:"stellar_account"`
	Memo           string   `gorm:"size:128" json:"memo,omitempty"`
	MemoType       MemoType `gorm:"size:8" json:"memo_type,omitempty"`

	EnvelopeXDR          string `gorm:"type:text" json:"envelope_xdr,omitempty"`
	PagingToken          string `gorm:"size:64" json:"paging_token,omitempty"`
	StellarTransactionID string `gorm:"size:64" json:"stellar_transaction_id,omitempty"`
	ClaimableBalanceID   string `gorm:"size:80" json:"claimable_balance_id,omitempty"`

	ClaimableBalanceSupported bool   `json:"claimable_balance_supported"`
	PendingSignatures         bool   `gorm:"not null;default:false" json:"pending_signatures"`
	ChannelAccount            string `gorm:"size:56" json:"channel_account,omitempty"`
	ChannelSeed               string `gorm:"size:56" json:"-"`
	OnChangeCallback          string `gorm:"size:512" json:"-"`

	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func (Deposit) TableName() string { return "deposits" }

// ClaimableBalancesAllowed 资产级开关或钱包在 intake 时声明支持，任一成立即可
func (d *Deposit) ClaimableBalancesAllowed(a *Asset) bool {
	return d.ClaimableBalanceSupported || a.ClaimableBalances
}

// NetAmount amount_in - amount_fee，按资产精度四舍五入
func (d *Deposit) NetAmount(a *Asset) decimal.Decimal {
	fee := decimal.Zero
	if d.AmountFee.Valid {
		fee = d.AmountFee.Decimal
	}
	return d.AmountIn.Decimal.Sub(fee).Round(a.SignificantDecimals)
}

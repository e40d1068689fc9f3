package domain

import (
	"context"

	"github.com/shopspring/decimal"
)

// SubmitResult 账本对一次提交的结构化回执
type SubmitResult struct {
	Successful  bool
	ResultXDR   string
	EnvelopeXDR string
	ID          string
	PagingToken string
}

// Ledger 账本客户端。GetAccount 用 found 区分“不存在”和“出错”，不存在不是 error。
type Ledger interface {
	GetAccount(ctx context.Context, address string) (acc *Account, found bool, err error)
	BaseFee(ctx context.Context) (int64, error)
	Submit(ctx context.Context, envelopeXDR string) (*SubmitResult, error)
}

// RailsIntegration 后端资金系统：给一批候选记录，返回已到账的子集并填好金额
type RailsIntegration interface {
	PollReady(ctx context.Context, candidates []*Deposit) ([]*Deposit, error)
}

// ChannelProvisioner 为多签资产的 deposit 准备专用 channel 账户，对同一笔 deposit 幂等
type ChannelProvisioner interface {
	CreateChannelAccount(ctx context.Context, d *Deposit) (address, seed string, err error)
}

// Notifier 状态变更通知，失败只记日志，不影响状态机
type Notifier interface {
	Notify(ctx context.Context, d *Deposit)
}

// AfterDepositHook deposit 完成后回调，错误和 panic 都会被吞掉
type AfterDepositHook interface {
	AfterDeposit(ctx context.Context, d *Deposit) error
}

type FeeCalculator interface {
	Fee(ctx context.Context, d *Deposit, asset *Asset) (decimal.Decimal, error)
}

// AccountLocker 源账户互斥，同一账户同一时刻只允许一笔未确认交易
type AccountLocker interface {
	Lock(ctx context.Context, account string) (unlock func(), err error)
}

type DepositRepo interface {
	Transaction(ctx context.Context, fn func(ctx context.Context) error) error
	Create(ctx context.Context, d *Deposit) error
	Get(ctx context.Context, id string) (*Deposit, error)
	ListByStatus(ctx context.Context, kind Kind, statuses []Status, limit int) ([]*Deposit, error)
	// ListCoSigned pending_anchor + pending_signatures=false + 已有 envelope
	ListCoSigned(ctx context.Context, limit int) ([]*Deposit, error)
	// CompareAndSwap 仅当库里状态仍在 from 中时整行写回 d，否则返回 StatusConflict
	CompareAndSwap(ctx context.Context, d *Deposit, from ...Status) error
}

type AfterDepositFunc func(ctx context.Context, d *Deposit) error

func (f AfterDepositFunc) AfterDeposit(ctx context.Context, d *Deposit) error { return f(ctx, d) }

type NotifierFunc func(ctx context.Context, d *Deposit)

func (f NotifierFunc) Notify(ctx context.Context, d *Deposit) { f(ctx, d) }

// EffectiveBaseFee 配置了最大手续费就用配置值，否则实时向账本查询
func EffectiveBaseFee(ctx context.Context, l Ledger, configured int64) (int64, error) {
	if configured > 0 {
		return configured, nil
	}
	return l.BaseFee(ctx)
}

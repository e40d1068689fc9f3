package service

import (
	"time"

	"anchorex.com/internal/deposit/domain"
)

const (
	DefaultStatusEta = 5
	DefaultBatchSize = 100
)

// Deps 外部协作者。Notifier / Hook / Locker / Provisioner 可以为 nil。
//
// Fee 为 nil 时，后端没给 amount_fee 的记录按 StandardFee 计算。
// 注入了自定义 Fee 后它的 Fee 方法不会被调用：约定由后端自己在 PollReady 里填好手续费，
// 没填的一律按 0 处理。
type Deps struct {
	Repo        domain.DepositRepo
	Ledger      domain.Ledger
	Rails       domain.RailsIntegration
	Provisioner domain.ChannelProvisioner
	Notifier    domain.Notifier
	Hook        domain.AfterDepositHook
	Fee         domain.FeeCalculator
	Locker      domain.AccountLocker
	Assets      []*domain.Asset
}

type Options struct {
	NetworkPassphrase      string
	MaxFee                 int64 // stroops；0 表示向账本查询
	AccountStartingBalance string
	StatusEta              int
	BatchSize              int
	RefreshSigners         bool
	SignerTTL              time.Duration
}

// Service 把各组件装好，调度器和 HTTP 层只拿需要的那部分
type Service struct {
	Assets    *AssetRegistry
	Tracker   *Tracker
	Builder   *Builder
	Multisig  *Multisig
	Resolver  *Resolver
	Submitter *Submitter
	Executor  *Executor
	Trustline *TrustlinePoller
}

func New(d Deps, o Options) *Service {
	if o.StatusEta <= 0 {
		o.StatusEta = DefaultStatusEta
	}
	if o.BatchSize <= 0 {
		o.BatchSize = DefaultBatchSize
	}
	fee, customFee := d.Fee, d.Fee != nil
	if fee == nil {
		fee = StandardFee{}
	}

	s := &Service{}
	s.Assets = NewAssetRegistry(d.Assets, d.Ledger, o.RefreshSigners, o.SignerTTL)
	s.Tracker = NewTracker(d.Repo, d.Notifier)
	s.Builder = NewBuilder(d.Ledger, o.NetworkPassphrase, o.MaxFee)
	s.Multisig = NewMultisig(s.Tracker, d.Ledger, d.Provisioner, s.Builder)
	s.Resolver = NewResolver(d.Ledger, s.Builder, s.Multisig, d.Locker, o.AccountStartingBalance)
	s.Submitter = &Submitter{
		repo:      d.Repo,
		tracker:   s.Tracker,
		ledger:    d.Ledger,
		builder:   s.Builder,
		assets:    s.Assets,
		rails:     d.Rails,
		fee:       fee,
		customFee: customFee,
		hook:      d.Hook,
		locker:    d.Locker,
		statusEta: o.StatusEta,
		batchSize: o.BatchSize,
	}
	s.Executor = &Executor{
		repo:      d.Repo,
		tracker:   s.Tracker,
		assets:    s.Assets,
		resolver:  s.Resolver,
		multisig:  s.Multisig,
		submitter: s.Submitter,
		batchSize: o.BatchSize,
	}
	s.Trustline = &TrustlinePoller{
		repo:      d.Repo,
		ledger:    d.Ledger,
		assets:    s.Assets,
		multisig:  s.Multisig,
		submitter: s.Submitter,
		batchSize: o.BatchSize,
	}
	return s
}

package config

import (
	"os"
	"time"

	"anchorex.com/internal/deposit/domain"
	"anchorex.com/internal/deposit/ledger"
	"anchorex.com/internal/deposit/notify"
	"anchorex.com/internal/deposit/rails"
	"anchorex.com/internal/deposit/server"
	"anchorex.com/pkg/orm"
	"anchorex.com/pkg/trace"
	"anchorex.com/pkg/xerr"
	"anchorex.com/pkg/xredis"
	"github.com/shopspring/decimal"
	"github.com/stellar/go/keypair"
)

// 总配置，对应 config/deposit-service.yaml
type DepositConfig struct {
	Name      string               `mapstructure:"name" validate:"required"`
	Log       LogConfig            `mapstructure:"log"`
	DB        orm.Config           `mapstructure:"db"`
	Redis     xredis.Config        `mapstructure:"redis"`
	Trace     trace.Config         `mapstructure:"trace"`
	Stellar   StellarConfig        `mapstructure:"stellar"`
	Channel   ledger.ChannelConfig `mapstructure:"channel"`
	Assets    []AssetConfig        `mapstructure:"assets" validate:"required,min=1,dive"`
	Rails     rails.Config         `mapstructure:"rails"`
	Notify    NotifyConfig         `mapstructure:"notify"`
	Scheduler SchedulerConfig      `mapstructure:"scheduler"`
	Deposit   DepositSection       `mapstructure:"deposit"`
	HTTP      server.Config        `mapstructure:"http"`
	Metrics   MetricsConfig        `mapstructure:"metrics"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" validate:"omitempty,oneof=debug info warn error"`
	File   string `mapstructure:"file"`
	NoFile bool   `mapstructure:"no_file"`
}

type StellarConfig struct {
	Horizon                ledger.Config `mapstructure:"horizon"`
	NetworkPassphrase      string        `mapstructure:"network_passphrase" validate:"required"`
	MaxTransactionFee      int64         `mapstructure:"max_transaction_fee" validate:"gte=0"`
	AccountStartingBalance string        `mapstructure:"account_starting_balance"`
	RefreshSigners         bool          `mapstructure:"refresh_signers"`
	SignerTTL              time.Duration `mapstructure:"signer_ttl"`
	LockTTL                time.Duration `mapstructure:"lock_ttl"`
}

type AssetConfig struct {
	Code                string `mapstructure:"code" validate:"required,max=12"`
	Issuer              string `mapstructure:"issuer"`
	DistributionSeed    string `mapstructure:"distribution_seed" validate:"required"`
	SignificantDecimals int32  `mapstructure:"significant_decimals" validate:"gte=0,lte=7"`
	ClaimableBalances   bool   `mapstructure:"claimable_balances"`
	FeeFixed            string `mapstructure:"deposit_fee_fixed" validate:"omitempty,numeric"`
	FeePercent          string `mapstructure:"deposit_fee_percent" validate:"omitempty,numeric"`
	// 不从账本刷新签名策略时以这里为准
	MasterWeight    int32 `mapstructure:"master_weight"`
	MasterRemoved   bool  `mapstructure:"master_removed"`
	MediumThreshold uint8 `mapstructure:"medium_threshold"`
}

type NotifyConfig struct {
	Webhook notify.WebhookConfig `mapstructure:"webhook"`
	Stream  notify.StreamConfig  `mapstructure:"stream"`
	Broker  notify.BrokerConfig  `mapstructure:"broker"`
}

type SchedulerConfig struct {
	DepositInterval   time.Duration `mapstructure:"deposit_interval"`
	TrustlineInterval time.Duration `mapstructure:"trustline_interval"`
	BatchSize         int           `mapstructure:"batch_size"`
}

type DepositSection struct {
	StatusEta   int  `mapstructure:"status_eta"`
	AutoMigrate bool `mapstructure:"auto_migrate"`
}

type MetricsConfig struct {
	Addr      string `mapstructure:"addr"`
	PprofAddr string `mapstructure:"pprof_addr"`
}

// Defaults 没配的项用这里的值
func Defaults() map[string]any {
	return map[string]any{
		"name":                                "deposit-service",
		"log.level":                           "info",
		"db.type":                             "mysql",
		"stellar.horizon.requests_per_second": 10,
		"stellar.horizon.burst":               5,
		"stellar.account_starting_balance":    "2",
		"stellar.signer_ttl":                  "5m",
		"stellar.lock_ttl":                    "3m",
		"channel.starting_balance":            "2.5",
		"scheduler.deposit_interval":          "10s",
		"scheduler.trustline_interval":        "60s",
		"scheduler.batch_size":                100,
		"deposit.status_eta":                  5,
		"http.addr":                           ":8080",
		"metrics.addr":                        ":9100",
	}
}

// 提交期间持锁跨 GetAccount、BaseFee、Submit 三次 horizon 请求
const lockTTLFactor = 3

// CheckLockTTL 锁必须比一次完整提交活得久，否则另一个 runner 会拿同一个 sequence 再提交
func (c *DepositConfig) CheckLockTTL() error {
	timeout := time.Duration(c.Stellar.Horizon.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = ledger.DefaultTimeout
	}
	if least := lockTTLFactor * timeout; c.Stellar.LockTTL < least {
		return xerr.Newf(xerr.ConfigurationError,
			"stellar.lock_ttl %s is shorter than %dx horizon timeout (%s)", c.Stellar.LockTTL, lockTTLFactor, least)
	}
	return nil
}

// ToAssets 配置转资产描述；分发账户地址由种子推出
func (c *DepositConfig) ToAssets() ([]*domain.Asset, error) {
	out := make([]*domain.Asset, 0, len(c.Assets))
	for _, a := range c.Assets {
		// 种子可以写成 ${ENV}，从环境变量 / .env 注入
		seed := os.ExpandEnv(a.DistributionSeed)
		kp, err := keypair.ParseFull(seed)
		if err != nil {
			return nil, xerr.Wrap(err, xerr.ConfigurationError, "asset "+a.Code+": invalid distribution_seed")
		}
		fixed, err := parseDecimal(a.FeeFixed)
		if err != nil {
			return nil, xerr.Wrap(err, xerr.ConfigurationError, "asset "+a.Code+": deposit_fee_fixed")
		}
		percent, err := parseDecimal(a.FeePercent)
		if err != nil {
			return nil, xerr.Wrap(err, xerr.ConfigurationError, "asset "+a.Code+": deposit_fee_percent")
		}
		asset := &domain.Asset{
			Code:                a.Code,
			Issuer:              a.Issuer,
			DistributionAccount: kp.Address(),
			DistributionSeed:    seed,
			SignificantDecimals: a.SignificantDecimals,
			Thresholds:          domain.Thresholds{Med: a.MediumThreshold},
			ClaimableBalances:   a.ClaimableBalances,
			DepositFeeFixed:     fixed,
			DepositFeePercent:   percent,
		}
		if !a.MasterRemoved {
			weight := a.MasterWeight
			if weight == 0 {
				weight = 1
			}
			asset.MasterSigner = &domain.Signer{Key: kp.Address(), Weight: weight}
		}
		if !asset.IsNative() && asset.Issuer == "" {
			return nil, xerr.New(xerr.ConfigurationError, "asset "+a.Code+": issuer is required for non-native assets")
		}
		out = append(out, asset)
	}
	return out, nil
}

func parseDecimal(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}

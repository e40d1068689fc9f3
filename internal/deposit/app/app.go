// Package app 按配置把存储、账本、通知、调度器装配起来。
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	depositConfig "anchorex.com/internal/deposit/config"
	"anchorex.com/internal/deposit/domain"
	"anchorex.com/internal/deposit/ledger"
	"anchorex.com/internal/deposit/notify"
	"anchorex.com/internal/deposit/rails"
	"anchorex.com/internal/deposit/repo"
	"anchorex.com/internal/deposit/scheduler"
	"anchorex.com/internal/deposit/server"
	"anchorex.com/internal/deposit/service"
	vipConfig "anchorex.com/pkg/config"
	"anchorex.com/pkg/logger"
	"anchorex.com/pkg/metrics"
	"anchorex.com/pkg/orm"
	"anchorex.com/pkg/ratelimit"
	"anchorex.com/pkg/trace"
	"anchorex.com/pkg/xredis"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type App struct {
	cfg     *depositConfig.DepositConfig
	svc     *service.Service
	repo    *repo.Repo
	closers []func(context.Context) error
}

// New 加载配置；日志级别支持热更新，其余配置改了要重启
func New(configName string) (*App, error) {
	if configName == "" {
		configName = "deposit-service"
	}
	cfg := &depositConfig.DepositConfig{}
	if _, err := vipConfig.LoadAndWatch(configName, cfg, depositConfig.Defaults(), func() {
		logger.SetLevel(cfg.Log.Level)
	}); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return &App{cfg: cfg}, nil
}

func (a *App) Config() *depositConfig.DepositConfig { return a.cfg }

// Start 初始化所有依赖，失败时已经打开的资源由 Close 释放
func (a *App) Start(ctx context.Context) error {
	cfg := a.cfg
	logger.Init(logger.Config{Service: cfg.Name, Level: cfg.Log.Level, File: cfg.Log.File, NoFile: cfg.Log.NoFile})
	metrics.MustRegister()

	shutdownTracer, err := trace.InitTrace(cfg.Name, cfg.Trace)
	if err != nil {
		return fmt.Errorf("init tracer: %w", err)
	}
	a.closers = append(a.closers, shutdownTracer)

	db, err := orm.New(&cfg.DB)
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	a.closers = append(a.closers, func(context.Context) error { return sqlDB.Close() })
	go metrics.ObserveDBStats(ctx, sqlDB)

	a.repo = repo.New(db)
	if cfg.Deposit.AutoMigrate {
		if err := a.repo.Migrate(ctx); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	// redis 可选：不开就没有账户锁，只能单实例部署
	var locker domain.AccountLocker
	var rdb *redis.Client
	if cfg.Redis.Enabled {
		if err := cfg.CheckLockTTL(); err != nil {
			return err
		}
		rdb, err = xredis.NewRedis(&cfg.Redis)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, func(context.Context) error { return rdb.Close() })
		go metrics.ObserveRedisStats(ctx, rdb)
		locker = xredis.NewAccountLocker(rdb, cfg.Stellar.LockTTL)
	} else {
		logger.Warn(ctx, "redis disabled, source account lock is off, run a single instance")
	}

	breakers := ratelimit.NewManager(ratelimit.Rule{}, nil)
	horizon := ledger.NewHorizon(cfg.Stellar.Horizon, breakers)

	var provisioner domain.ChannelProvisioner
	if cfg.Channel.FundingSeed != "" {
		provisioner, err = ledger.NewChannelFunder(horizon, locker, cfg.Channel, cfg.Stellar.NetworkPassphrase, cfg.Stellar.MaxTransactionFee)
		if err != nil {
			return err
		}
	}

	notifier, err := a.notifiers(rdb, breakers)
	if err != nil {
		return err
	}

	assets, err := cfg.ToAssets()
	if err != nil {
		return err
	}
	a.svc = service.New(service.Deps{
		Repo:        a.repo,
		Ledger:      horizon,
		Rails:       rails.NewHTTPPoller(cfg.Rails, nil, breakers),
		Provisioner: provisioner,
		Notifier:    notifier,
		Locker:      locker,
		Assets:      assets,
	}, service.Options{
		NetworkPassphrase:      cfg.Stellar.NetworkPassphrase,
		MaxFee:                 cfg.Stellar.MaxTransactionFee,
		AccountStartingBalance: cfg.Stellar.AccountStartingBalance,
		StatusEta:              cfg.Deposit.StatusEta,
		BatchSize:              cfg.Scheduler.BatchSize,
		RefreshSigners:         cfg.Stellar.RefreshSigners,
		SignerTTL:              cfg.Stellar.SignerTTL,
	})
	logger.Info(ctx, "deposit service ready", zap.Int("assets", len(assets)), zap.Bool("redis", rdb != nil))
	return nil
}

func (a *App) notifiers(rdb *redis.Client, breakers *ratelimit.Manager) (domain.Notifier, error) {
	cfg := a.cfg.Notify
	sinks := notify.Multi{notify.NewWebhook(cfg.Webhook, nil, breakers)}
	if cfg.Stream.Enabled {
		if rdb == nil {
			return nil, fmt.Errorf("notify.stream requires redis.enabled")
		}
		sinks = append(sinks, notify.NewRedisStream(rdb, cfg.Stream))
	}
	if cfg.Broker.Enabled {
		nb, err := notify.NewNatsBroker(cfg.Broker.URL)
		if err != nil {
			return nil, fmt.Errorf("connect nats: %w", err)
		}
		a.closers = append(a.closers, func(context.Context) error { return nb.Close() })
		sinks = append(sinks, notify.NewPublisher(nb, cfg.Broker.Prefix))
	}
	return sinks, nil
}

// Runners interval > 0 时覆盖两个 runner 的配置间隔
func (a *App) Runners(mode string, interval time.Duration) ([]*scheduler.Runner, error) {
	depositEvery, trustEvery := a.cfg.Scheduler.DepositInterval, a.cfg.Scheduler.TrustlineInterval
	if interval > 0 {
		depositEvery, trustEvery = interval, interval
	}
	deposits := &scheduler.Runner{Name: "deposits", Interval: depositEvery, Pass: a.svc.Executor.ExecuteDeposits}
	trustlines := &scheduler.Runner{Name: "trustlines", Interval: trustEvery, Pass: a.svc.Trustline.CheckTrustlines}
	switch mode {
	case "deposits":
		return []*scheduler.Runner{deposits}, nil
	case "trustlines":
		return []*scheduler.Runner{trustlines}, nil
	case "all", "":
		return []*scheduler.Runner{deposits, trustlines}, nil
	default:
		return nil, fmt.Errorf("unknown mode %q", mode)
	}
}

// OpsServer 运维 HTTP，未启用返回 nil；-http 参数和 http.enabled 任一打开即可
func (a *App) OpsServer(ctx context.Context, force bool) (*http.Server, error) {
	if !force && !a.cfg.HTTP.Enabled {
		return nil, nil
	}
	if a.cfg.HTTP.JWTSecret == "" {
		return nil, fmt.Errorf("http.jwt_secret is required for the ops server")
	}
	return server.NewServer(ctx, a.cfg.HTTP, a.repo), nil
}

// Close 逆序释放
func (a *App) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			logger.Warn(ctx, "close resource", zap.Error(err))
		}
	}
	logger.Sync()
}

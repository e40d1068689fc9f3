package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"anchorex.com/internal/deposit/app"
	"anchorex.com/pkg/bootstrap"
	"anchorex.com/pkg/logger"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	configName = flag.String("f", "deposit-service", "config name under ./config")
	mode       = flag.String("mode", "all", "deposits | trustlines | all")
	loop       = flag.Bool("loop", false, "keep polling until signalled; default runs one pass and exits")
	interval   = flag.Duration("interval", 0, "override both runner intervals")
	withHTTP   = flag.Bool("http", false, "serve the ops HTTP api")
)

func main() {
	flag.Parse()

	// Ctrl+C / kubernetes 停止信号
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(*configName)
	if err != nil {
		log.Fatalf("init deposit-service error: %v", err)
	}
	defer a.Close()
	if err := a.Start(ctx); err != nil {
		logger.Fatal(ctx, "start deposit-service", zap.Error(err))
	}

	runners, err := a.Runners(*mode, *interval)
	if err != nil {
		logger.Fatal(ctx, "bad -mode", zap.Error(err))
	}
	ops, err := a.OpsServer(ctx, *withHTTP)
	if err != nil {
		logger.Fatal(ctx, "ops server", zap.Error(err))
	}
	cfg := a.Config()
	metricsSrv := bootstrap.StartMetrics(ctx, cfg.Metrics.Addr)
	pprofSrv := bootstrap.StartPprof(ctx, cfg.Metrics.PprofAddr)
	defer bootstrap.Shutdown(5*time.Second, ops, metricsSrv, pprofSrv)

	if ops != nil {
		go func() {
			logger.Info(ctx, "ops http listening", zap.String("addr", ops.Addr))
			if err := ops.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error(ctx, "ops http listen error", zap.Error(err))
				stop()
			}
		}()
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, r := range runners {
		g.Go(func() error { return r.Run(gctx, *loop) })
	}
	if err := g.Wait(); err != nil {
		logger.Error(ctx, "runner exited with error", zap.Error(err))
	}
	logger.Info(ctx, "deposit-service exit")
}

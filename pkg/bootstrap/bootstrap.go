package bootstrap

import (
	"context"
	"errors"
	"net/http"
	"net/http/pprof"
	"runtime"
	"time"

	"anchorex.com/pkg/logger"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// StartMetrics 单独起一个 /metrics 端口；addr 为空不启动。返回的 server 由调用方 Shutdown
func StartMetrics(ctx context.Context, addr string) *http.Server {
	if addr == "" {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return serve(ctx, "metrics", &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 3 * time.Second})
}

func StartPprof(ctx context.Context, addr string) *http.Server {
	if addr == "" {
		return nil
	}
	runtime.SetMutexProfileFraction(10)
	runtime.SetBlockProfileRate(10000)

	mux := http.NewServeMux()
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	return serve(ctx, "pprof", &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 3 * time.Second})
}

func serve(ctx context.Context, name string, srv *http.Server) *http.Server {
	go func() {
		logger.Info(ctx, name+" listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error(ctx, name+" listen error", zap.Error(err))
		}
	}()
	return srv
}

// Shutdown 最多等 timeout，nil server 直接跳过
func Shutdown(timeout time.Duration, servers ...*http.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	for _, s := range servers {
		if s == nil {
			continue
		}
		if err := s.Shutdown(ctx); err != nil {
			logger.Warn(ctx, "http shutdown", zap.String("addr", s.Addr), zap.Error(err))
		}
	}
}

// Package server 运维用的 HTTP 面：健康检查、指标、deposit 查询和多签信封回传。
package server

import (
	"context"
	"net/http"
	"time"

	"anchorex.com/internal/deposit/domain"
	"anchorex.com/pkg/common"
	"anchorex.com/pkg/middleware"
	"anchorex.com/pkg/ratelimit"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	ginprom "github.com/zsais/go-gin-prometheus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"golang.org/x/time/rate"
)

type Config struct {
	Enabled   bool    `mapstructure:"enabled"`
	Addr      string  `mapstructure:"addr"`
	JWTSecret string  `mapstructure:"jwt_secret" validate:"required_if=Enabled true"`
	RPS       float64 `mapstructure:"rps"`
	Burst     int     `mapstructure:"burst"`
}

// NewRouter ctx 控制限流 janitor 的生命周期
func NewRouter(ctx context.Context, c Config, repo domain.DepositRepo) *gin.Engine {
	if c.RPS <= 0 {
		c.RPS = 20
	}
	if c.Burst <= 0 {
		c.Burst = 40
	}
	store := ratelimit.NewStore(rate.Limit(c.RPS), c.Burst, 10*time.Minute)
	store.StartJanitor(ctx, time.Minute)

	r := gin.New()
	p := ginprom.NewPrometheus("anchorex")
	p.Use(r)
	r.Use(
		otelgin.Middleware("deposit-service"),
		middleware.ReqId(),
		cors.Default(),
		middleware.Recover(),
		middleware.RateLimit(store),
	)

	r.GET("/healthz", func(c *gin.Context) { common.Success(c, "ok") })

	h := &Deposit{repo: repo}
	api := r.Group("/api/deposits")
	{
		api.GET("/:id", h.Get)
		api.PUT("/:id/envelope", middleware.BearerJWT([]byte(c.JWTSecret)), h.PutEnvelope)
	}
	return r
}

func NewServer(ctx context.Context, c Config, repo domain.DepositRepo) *http.Server {
	addr := c.Addr
	if addr == "" {
		addr = ":8080"
	}
	return &http.Server{
		Addr:           addr,
		Handler:        NewRouter(ctx, c, repo),
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}
}

package metrics

import (
	"context"
	"database/sql"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
)

var (
	DbPoolOpen         = promauto.NewGauge(prometheus.GaugeOpts{Name: "app_db_pool_open", Help: "Current open DB connections"})
	DbPoolIdle         = promauto.NewGauge(prometheus.GaugeOpts{Name: "app_db_pool_idle"})
	DbPoolInuse        = promauto.NewGauge(prometheus.GaugeOpts{Name: "app_db_pool_inuse"})
	DbPoolWaitCount    = promauto.NewCounter(prometheus.CounterOpts{Name: "app_db_pool_wait_count"})
	DbPoolWaitDuration = promauto.NewCounter(prometheus.CounterOpts{Name: "app_db_pool_wait_seconds"})

	RedisPoolTotal   = promauto.NewGauge(prometheus.GaugeOpts{Name: "app_redis_pool_total"})
	RedisPoolIdle    = promauto.NewGauge(prometheus.GaugeOpts{Name: "app_redis_pool_idle"})
	RedisPoolTimeout = promauto.NewGauge(prometheus.GaugeOpts{Name: "app_redis_pool_timeouts"})
)

// ObserveDBStats 每 5s 采集一次连接池指标，ctx 取消后退出
func ObserveDBStats(ctx context.Context, db *sql.DB) {
	t := time.NewTicker(5 * time.Second)
	defer t.Stop()
	var lastWaitCount int64
	var lastWaitDuration time.Duration
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
		st := db.Stats()
		DbPoolOpen.Set(float64(st.OpenConnections))
		DbPoolIdle.Set(float64(st.Idle))
		DbPoolInuse.Set(float64(st.InUse))

		if d := st.WaitCount - lastWaitCount; d > 0 {
			DbPoolWaitCount.Add(float64(d))
			lastWaitCount = st.WaitCount
		}
		if d := st.WaitDuration - lastWaitDuration; d > 0 {
			DbPoolWaitDuration.Add(d.Seconds())
			lastWaitDuration = st.WaitDuration
		}
	}
}

func ObserveRedisStats(ctx context.Context, rdb *redis.Client) {
	t := time.NewTicker(5 * time.Second)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
		st := rdb.PoolStats()
		RedisPoolTotal.Set(float64(st.TotalConns))
		RedisPoolIdle.Set(float64(st.IdleConns))
		RedisPoolTimeout.Set(float64(st.Timeouts))
	}
}

package notify

import (
	"context"

	"anchorex.com/internal/deposit/domain"
	"github.com/redis/go-redis/v9"
)

type StreamConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Stream  string `mapstructure:"stream"`
	MaxLen  int64  `mapstructure:"max_len"`
}

// RedisStream XADD 到一个定长 stream，消费方用 consumer group 自己追
type RedisStream struct {
	rdb    redis.Cmdable
	stream string
	maxLen int64
}

var _ domain.Notifier = (*RedisStream)(nil)

func NewRedisStream(rdb redis.Cmdable, c StreamConfig) *RedisStream {
	if c.Stream == "" {
		c.Stream = "deposit:events"
	}
	if c.MaxLen <= 0 {
		c.MaxLen = 100000
	}
	return &RedisStream{rdb: rdb, stream: c.Stream, maxLen: c.MaxLen}
}

func (s *RedisStream) Notify(ctx context.Context, d *domain.Deposit) {
	payload, err := encode(d)
	if err != nil {
		failed(ctx, "redis_stream", d, err)
		return
	}
	err = s.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: s.stream,
		MaxLen: s.maxLen,
		Approx: true,
		Values: map[string]interface{}{"event": string(payload)},
	}).Err()
	if err != nil {
		failed(ctx, "redis_stream", d, err)
	}
}

package xredis

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var ErrLockBusy = errors.New("lock busy")

// KEYS[1]: 锁的 key, ARGV[1]: token，防止误删别人的锁
const unlockScript = `
if redis.call("get", KEYS[1]) == ARGV[1] then
    return redis.call("del", KEYS[1])
else
    return 0
end
`

type DistLock struct {
	client     *redis.Client
	key        string
	token      string // 谁加锁谁解锁
	expiration time.Duration
}

func NewDistLock(client *redis.Client, key string, expiration time.Duration) *DistLock {
	return &DistLock{
		client:     client,
		key:        key,
		token:      uuid.NewString(),
		expiration: expiration,
	}
}

// TryLock 非阻塞，一次性
func (l *DistLock) TryLock(ctx context.Context) (bool, error) {
	return l.client.SetNX(ctx, l.key, l.token, l.expiration).Result()
}

// Lock 自旋重试，带随机抖动防止所有等待方同时唤醒
func (l *DistLock) Lock(ctx context.Context, retryTimes int, retryInterval time.Duration) (bool, error) {
	for i := 0; i < retryTimes; i++ {
		ok, err := l.TryLock(ctx)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
		if i == retryTimes-1 {
			break
		}
		sleep := retryInterval + time.Duration(rand.Intn(10))*time.Millisecond
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-time.After(sleep):
		}
	}
	return false, nil
}

func (l *DistLock) Unlock(ctx context.Context) (bool, error) {
	res, err := l.client.Eval(ctx, unlockScript, []string{l.key}, l.token).Int64()
	if err != nil {
		return false, err
	}
	// 1 删除成功，0 key 不存在或 token 不匹配（已过期被别人拿走）
	return res == 1, nil
}

// AccountLocker 按账本账户地址加锁，保证同一个源账户同一时刻只有一笔未确认交易
type AccountLocker struct {
	client        *redis.Client
	prefix        string
	ttl           time.Duration
	retryTimes    int
	retryInterval time.Duration
}

func NewAccountLocker(client *redis.Client, ttl time.Duration) *AccountLocker {
	if ttl <= 0 {
		ttl = 3 * time.Minute
	}
	return &AccountLocker{
		client:        client,
		prefix:        "lock:stellar:account:",
		ttl:           ttl,
		retryTimes:    5,
		retryInterval: 200 * time.Millisecond,
	}
}

// Lock 拿到锁返回 unlock；重试耗尽返回 ErrLockBusy
func (a *AccountLocker) Lock(ctx context.Context, account string) (func(), error) {
	l := NewDistLock(a.client, a.prefix+account, a.ttl)
	ok, err := l.Lock(ctx, a.retryTimes, a.retryInterval)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrLockBusy
	}
	return func() {
		// 解锁不能跟着业务 ctx 一起被取消
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 3*time.Second)
		defer cancel()
		_, _ = l.Unlock(ctx)
	}, nil
}

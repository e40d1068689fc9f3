package service

import (
	"context"
	"sync"
	"time"

	"anchorex.com/internal/deposit/domain"
	"anchorex.com/pkg/logger"
	"anchorex.com/pkg/xerr"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// AssetRegistry 资产描述来自配置；开启 refresh 时签名者和门限以账本为准
type AssetRegistry struct {
	mu     sync.RWMutex
	assets []*domain.Asset

	ledger  domain.Ledger
	refresh bool
	ttl     time.Duration
	last    time.Time
	sf      singleflight.Group
}

func NewAssetRegistry(assets []*domain.Asset, l domain.Ledger, refresh bool, ttl time.Duration) *AssetRegistry {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &AssetRegistry{assets: assets, ledger: l, refresh: refresh, ttl: ttl}
}

// Lookup 返回副本，调用方随便改不影响注册表；issuer 为空时只按 code 匹配
func (r *AssetRegistry) Lookup(code, issuer string) (*domain.Asset, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, a := range r.assets {
		if a.Matches(code, issuer) {
			cp := *a
			return &cp, nil
		}
	}
	return nil, xerr.Newf(xerr.ValidationError, "unknown asset %s:%s", code, issuer)
}

func (r *AssetRegistry) All() []*domain.Asset {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*domain.Asset, 0, len(r.assets))
	for _, a := range r.assets {
		cp := *a
		out = append(out, &cp)
	}
	return out
}

// Refresh 从账本拉分发账户的签名者和门限；并发调用合并成一次，TTL 内不重复拉
func (r *AssetRegistry) Refresh(ctx context.Context) error {
	if !r.refresh {
		return nil
	}
	r.mu.RLock()
	fresh := time.Since(r.last) < r.ttl
	r.mu.RUnlock()
	if fresh {
		return nil
	}
	_, err, _ := r.sf.Do("refresh", func() (interface{}, error) {
		return nil, r.reload(ctx)
	})
	return err
}

func (r *AssetRegistry) reload(ctx context.Context) error {
	type policy struct {
		master     *domain.Signer
		thresholds domain.Thresholds
	}
	policies := map[string]policy{}
	for _, a := range r.All() {
		if _, ok := policies[a.DistributionAccount]; ok {
			continue
		}
		acc, found, err := r.ledger.GetAccount(ctx, a.DistributionAccount)
		if err != nil {
			return err
		}
		if !found {
			return xerr.Newf(xerr.ConfigurationError, "distribution account %s does not exist", a.DistributionAccount)
		}
		p := policy{thresholds: acc.Thresholds}
		if w, ok := acc.SignerWeight(acc.ID); ok {
			p.master = &domain.Signer{Key: acc.ID, Weight: w}
		}
		policies[a.DistributionAccount] = p
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.assets {
		p := policies[a.DistributionAccount]
		a.MasterSigner = p.master
		a.Thresholds = p.thresholds
	}
	r.last = time.Now()
	logger.Debug(ctx, "asset signer policy refreshed", zap.Int("accounts", len(policies)))
	return nil
}

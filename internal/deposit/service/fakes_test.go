package service

import (
	"context"
	"errors"
	"slices"
	"sort"
	"sync"

	"anchorex.com/internal/deposit/domain"
	"anchorex.com/pkg/xerr"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

// memRepo 内存版 DepositRepo，CAS 语义和 gorm 实现一致
type memRepo struct {
	mu   sync.Mutex
	rows map[string]*domain.Deposit
}

func newMemRepo() *memRepo {
	return &memRepo{rows: map[string]*domain.Deposit{}}
}

func (r *memRepo) put(d *domain.Deposit) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *d
	r.rows[d.ID] = &cp
}

func (r *memRepo) get(id string) *domain.Deposit {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *r.rows[id]
	return &cp
}

func (r *memRepo) Transaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func (r *memRepo) Create(_ context.Context, d *domain.Deposit) error {
	r.put(d)
	return nil
}

func (r *memRepo) Get(_ context.Context, id string) (*domain.Deposit, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.rows[id]
	if !ok {
		return nil, xerr.NewErrCode(xerr.RecordNotFound)
	}
	cp := *d
	return &cp, nil
}

func (r *memRepo) list(match func(d *domain.Deposit) bool, limit int) []*domain.Deposit {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Deposit
	for _, d := range r.rows {
		if match(d) {
			cp := *d
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (r *memRepo) ListByStatus(_ context.Context, kind domain.Kind, statuses []domain.Status, limit int) ([]*domain.Deposit, error) {
	return r.list(func(d *domain.Deposit) bool {
		return d.Kind == kind && slices.Contains(statuses, d.Status)
	}, limit), nil
}

func (r *memRepo) ListCoSigned(_ context.Context, limit int) ([]*domain.Deposit, error) {
	return r.list(func(d *domain.Deposit) bool {
		return d.Kind == domain.KindDeposit && d.Status == domain.StatusPendingAnchor &&
			!d.PendingSignatures && d.EnvelopeXDR != ""
	}, limit), nil
}

func (r *memRepo) CompareAndSwap(_ context.Context, d *domain.Deposit, from ...domain.Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.rows[d.ID]
	if !ok || !slices.Contains(from, cur.Status) {
		return xerr.Newf(xerr.StatusConflict, "deposit %s is no longer in %v", d.ID, from)
	}
	cp := *d
	r.rows[d.ID] = &cp
	return nil
}

type mockRails struct{ mock.Mock }

func (m *mockRails) PollReady(ctx context.Context, candidates []*domain.Deposit) ([]*domain.Deposit, error) {
	args := m.Called(ctx, candidates)
	ready, _ := args.Get(0).([]*domain.Deposit)
	return ready, args.Error(1)
}

type mockProvisioner struct{ mock.Mock }

func (m *mockProvisioner) CreateChannelAccount(ctx context.Context, d *domain.Deposit) (string, string, error) {
	args := m.Called(ctx, d)
	return args.String(0), args.String(1), args.Error(2)
}

type mockHook struct{ mock.Mock }

func (m *mockHook) AfterDeposit(ctx context.Context, d *domain.Deposit) error {
	return m.Called(ctx, d).Error(0)
}

type busyLocker struct{}

func (busyLocker) Lock(context.Context, string) (func(), error) {
	return nil, errors.New("lock busy")
}

type mockFee struct{ mock.Mock }

func (m *mockFee) Fee(ctx context.Context, d *domain.Deposit, asset *domain.Asset) (decimal.Decimal, error) {
	args := m.Called(ctx, d, asset)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

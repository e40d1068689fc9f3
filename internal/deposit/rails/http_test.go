package rails

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"anchorex.com/internal/deposit/domain"
	"anchorex.com/pkg/ratelimit"
	"anchorex.com/pkg/xerr"
	"github.com/segmentio/encoding/json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func candidates() []*domain.Deposit {
	return []*domain.Deposit{
		{ID: "d1", Kind: domain.KindDeposit, Status: domain.StatusPendingExternal, AssetCode: "USD", StellarAccount: "GA", Memo: "7", MemoType: domain.MemoID},
		{ID: "d2", Kind: domain.KindDeposit, Status: domain.StatusPendingUserTransferStart, AssetCode: "USD", StellarAccount: "GB"},
	}
}

func TestPollReady_MergesAmounts(t *testing.T) {
	var req pollRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &req))
		_, _ = w.Write([]byte(`{"ready":[{"id":"d2","amount_in":"100.5","amount_fee":1}]}`))
	}))
	defer srv.Close()

	in := candidates()
	p := NewHTTPPoller(Config{URL: srv.URL, Token: "secret"}, srv.Client(), nil)
	ready, err := p.PollReady(context.Background(), in)
	require.NoError(t, err)

	require.Len(t, req.Deposits, 2)
	assert.Equal(t, "d1", req.Deposits[0].ID)
	assert.Equal(t, "id", req.Deposits[0].MemoType)

	require.Len(t, ready, 1)
	assert.Equal(t, "d2", ready[0].ID)
	assert.Equal(t, "GB", ready[0].StellarAccount)
	assert.Equal(t, domain.KindDeposit, ready[0].Kind)
	assert.Equal(t, "100.5", ready[0].AmountIn.Decimal.String())
	assert.Equal(t, "1", ready[0].AmountFee.Decimal.String())
	assert.False(t, in[1].AmountIn.Valid, "候选记录本身不被修改")
}

func TestPollReady_MissingFeeStaysUnset(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"ready":[{"id":"d1","amount_in":"5","kind":"withdrawal"}]}`))
	}))
	defer srv.Close()

	ready, err := NewHTTPPoller(Config{URL: srv.URL}, srv.Client(), nil).PollReady(context.Background(), candidates())
	require.NoError(t, err)
	require.Len(t, ready, 1)
	assert.False(t, ready[0].AmountFee.Valid)
	// kind 原样透传，由上层判定违约
	assert.Equal(t, domain.KindWithdrawal, ready[0].Kind)
}

func TestPollReady_UnknownID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"ready":[{"id":"zzz","amount_in":"5"}]}`))
	}))
	defer srv.Close()

	_, err := NewHTTPPoller(Config{URL: srv.URL}, srv.Client(), nil).PollReady(context.Background(), candidates())
	assert.ErrorContains(t, err, "unknown deposit")
}

func TestPollReady_BreakerOpensOnServerErrors(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer srv.Close()

	p := NewHTTPPoller(Config{URL: srv.URL}, srv.Client(), ratelimit.NewManager(ratelimit.Rule{TripConsecutiveFailures: 1}, nil))
	_, err := p.PollReady(context.Background(), candidates())
	assert.ErrorContains(t, err, "502")

	_, err = p.PollReady(context.Background(), candidates())
	assert.True(t, xerr.Is(err, xerr.AdapterError))
	assert.Equal(t, 1, hits)
}

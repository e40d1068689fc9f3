package ledger

import (
	"context"
	"fmt"
	"time"

	"anchorex.com/internal/deposit/domain"
	"anchorex.com/pkg/metrics"
	"anchorex.com/pkg/ratelimit"
	"anchorex.com/pkg/xerr"
	"github.com/stellar/go/clients/horizonclient"
	hProtocol "github.com/stellar/go/protocols/horizon"
	"golang.org/x/time/rate"
)

// DefaultTimeout timeout_seconds 不配时单次 horizon 请求的超时
const DefaultTimeout = 60 * time.Second

type Config struct {
	HorizonURL        string  `mapstructure:"horizon_url" validate:"required,url"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
	TimeoutSeconds    int     `mapstructure:"timeout_seconds"`
}

// horizonclient.Client 中实际用到的部分
type horizonAPI interface {
	AccountDetail(request horizonclient.AccountRequest) (hProtocol.Account, error)
	FetchBaseFee() (int64, error)
	SubmitTransactionXDR(transactionXdr string) (hProtocol.Transaction, error)
}

// Horizon 基于 horizonclient 的账本适配器：限流 + 熔断 + 指标
type Horizon struct {
	client   horizonAPI
	limiter  *rate.Limiter
	breakers *ratelimit.Manager
}

var _ domain.Ledger = (*Horizon)(nil)

func NewHorizon(c Config, breakers *ratelimit.Manager) *Horizon {
	timeout := time.Duration(c.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	client := &horizonclient.Client{
		HorizonURL: c.HorizonURL,
		HTTP:       newHTTPClient(timeout),
	}
	return NewHorizonWithClient(client, c.RequestsPerSecond, c.Burst, breakers)
}

func NewHorizonWithClient(client horizonAPI, rps float64, burst int, breakers *ratelimit.Manager) *Horizon {
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	if burst <= 0 {
		burst = 1
	}
	return &Horizon{
		client:   client,
		limiter:  rate.NewLimiter(limit, burst),
		breakers: breakers,
	}
}

// call 统一处理限流、熔断和指标；notFound 不算熔断失败
func (h *Horizon) call(ctx context.Context, op string, fn func() error) error {
	if err := h.limiter.Wait(ctx); err != nil {
		return xerr.Wrap(err, xerr.AdapterError, "horizon rate limit wait")
	}
	start := time.Now()
	err := h.breakers.Execute("horizon."+op, fn)
	metrics.LedgerDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	return err
}

func (h *Horizon) GetAccount(ctx context.Context, address string) (*domain.Account, bool, error) {
	var acc hProtocol.Account
	err := h.call(ctx, "get_account", func() error {
		var err error
		acc, err = h.client.AccountDetail(horizonclient.AccountRequest{AccountID: address})
		if horizonclient.IsNotFoundError(err) {
			return xerr.Wrap(err, xerr.RecordNotFound, "account not found")
		}
		return err
	})
	switch {
	case xerr.Is(err, xerr.RecordNotFound):
		metrics.LedgerRequests.WithLabelValues("get_account", "not_found").Inc()
		return nil, false, nil
	case err != nil:
		metrics.LedgerRequests.WithLabelValues("get_account", "error").Inc()
		return nil, false, xerr.Wrap(err, xerr.AdapterError, "horizon account "+address)
	}
	metrics.LedgerRequests.WithLabelValues("get_account", "ok").Inc()

	snap, err := toAccount(acc)
	if err != nil {
		return nil, false, xerr.Wrap(err, xerr.AdapterError, "horizon account "+address)
	}
	return snap, true, nil
}

func (h *Horizon) BaseFee(ctx context.Context) (int64, error) {
	var fee int64
	err := h.call(ctx, "base_fee", func() error {
		var err error
		fee, err = h.client.FetchBaseFee()
		return err
	})
	if err != nil {
		metrics.LedgerRequests.WithLabelValues("base_fee", "error").Inc()
		return 0, xerr.Wrap(err, xerr.AdapterError, "horizon base fee")
	}
	metrics.LedgerRequests.WithLabelValues("base_fee", "ok").Inc()
	return fee, nil
}

func (h *Horizon) Submit(ctx context.Context, envelopeXDR string) (*domain.SubmitResult, error) {
	var tx hProtocol.Transaction
	err := h.call(ctx, "submit", func() error {
		var err error
		tx, err = h.client.SubmitTransactionXDR(envelopeXDR)
		return err
	})
	if err != nil {
		metrics.LedgerRequests.WithLabelValues("submit", "error").Inc()
		return nil, xerr.Wrap(describe(err), xerr.AdapterError, "horizon submit")
	}
	metrics.LedgerRequests.WithLabelValues("submit", "ok").Inc()
	return &domain.SubmitResult{
		Successful:  tx.Successful,
		ResultXDR:   tx.ResultXdr,
		EnvelopeXDR: tx.EnvelopeXdr,
		ID:          tx.ID,
		PagingToken: tx.PagingToken(),
	}, nil
}

// describe 把 horizon problem 里的 result_codes 拼进错误，status_message 里能直接看到 tx_bad_seq 之类
func describe(err error) error {
	hErr := horizonclient.GetError(err)
	if hErr == nil {
		return err
	}
	if codes, ok := hErr.Problem.Extras["result_codes"]; ok {
		return fmt.Errorf("%s: %v", hErr.Problem.Title, codes)
	}
	return fmt.Errorf("%s: %s", hErr.Problem.Title, hErr.Problem.Detail)
}

func toAccount(acc hProtocol.Account) (*domain.Account, error) {
	seq, err := acc.GetSequenceNumber()
	if err != nil {
		return nil, err
	}
	out := &domain.Account{
		ID:       acc.AccountID,
		Sequence: seq,
		Thresholds: domain.Thresholds{
			Low:  acc.Thresholds.LowThreshold,
			Med:  acc.Thresholds.MedThreshold,
			High: acc.Thresholds.HighThreshold,
		},
	}
	for _, b := range acc.Balances {
		out.Balances = append(out.Balances, domain.Balance{
			AssetType:   b.Type,
			AssetCode:   b.Code,
			AssetIssuer: b.Issuer,
			Balance:     b.Balance,
		})
	}
	for _, s := range acc.Signers {
		out.Signers = append(out.Signers, domain.Signer{Key: s.Key, Weight: s.Weight})
	}
	return out, nil
}

// Package rails 对接后端资金系统：把候选 deposit 发过去，拿回已到账的那部分。
package rails

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"anchorex.com/internal/deposit/domain"
	"anchorex.com/pkg/ratelimit"
	"github.com/segmentio/encoding/json"
	"github.com/shopspring/decimal"
)

const breakerName = "rails.poll"

type Config struct {
	URL            string `mapstructure:"url" validate:"required,url"`
	Token          string `mapstructure:"token"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

type candidate struct {
	ID             string `json:"id"`
	AssetCode      string `json:"asset_code"`
	AssetIssuer    string `json:"asset_issuer,omitempty"`
	AmountIn       string `json:"amount_in,omitempty"`
	StellarAccount string `json:"stellar_account"`
	Memo           string `json:"memo,omitempty"`
	MemoType       string `json:"memo_type,omitempty"`
}

type pollRequest struct {
	Deposits []candidate `json:"deposits"`
}

type readyItem struct {
	ID        string           `json:"id"`
	Kind      string           `json:"kind,omitempty"`
	AmountIn  *decimal.Decimal `json:"amount_in"`
	AmountFee *decimal.Decimal `json:"amount_fee"`
}

type pollResponse struct {
	Ready []readyItem `json:"ready"`
}

// HTTPPoller POST {deposits:[...]}，期望 {ready:[{id, amount_in, amount_fee}]}
type HTTPPoller struct {
	client   *http.Client
	url      string
	token    string
	breakers *ratelimit.Manager
}

var _ domain.RailsIntegration = (*HTTPPoller)(nil)

func NewHTTPPoller(c Config, client *http.Client, breakers *ratelimit.Manager) *HTTPPoller {
	if client == nil {
		timeout := time.Duration(c.TimeoutSeconds) * time.Second
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	return &HTTPPoller{client: client, url: c.URL, token: c.Token, breakers: breakers}
}

// PollReady 返回候选记录的副本，金额按后端的返回填好；kind 以后端为准，交给上层校验
func (p *HTTPPoller) PollReady(ctx context.Context, candidates []*domain.Deposit) ([]*domain.Deposit, error) {
	req := pollRequest{Deposits: make([]candidate, 0, len(candidates))}
	byID := make(map[string]*domain.Deposit, len(candidates))
	for _, d := range candidates {
		byID[d.ID] = d
		c := candidate{
			ID:             d.ID,
			AssetCode:      d.AssetCode,
			AssetIssuer:    d.AssetIssuer,
			StellarAccount: d.StellarAccount,
			Memo:           d.Memo,
			MemoType:       string(d.MemoType),
		}
		if d.AmountIn.Valid {
			c.AmountIn = d.AmountIn.Decimal.String()
		}
		req.Deposits = append(req.Deposits, c)
	}

	var resp pollResponse
	call := func() error { return p.post(ctx, req, &resp) }
	var err error
	if p.breakers != nil {
		err = p.breakers.Execute(breakerName, call)
	} else {
		err = call()
	}
	if err != nil {
		return nil, err
	}

	out := make([]*domain.Deposit, 0, len(resp.Ready))
	for _, item := range resp.Ready {
		src, ok := byID[item.ID]
		if !ok {
			return nil, fmt.Errorf("rails returned unknown deposit %q", item.ID)
		}
		d := *src
		if item.Kind != "" {
			d.Kind = domain.Kind(item.Kind)
		}
		if item.AmountIn != nil {
			d.AmountIn = decimal.NewNullDecimal(*item.AmountIn)
		}
		if item.AmountFee != nil {
			d.AmountFee = decimal.NewNullDecimal(*item.AmountFee)
		}
		out = append(out, &d)
	}
	return out, nil
}

func (p *HTTPPoller) post(ctx context.Context, body any, out any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if p.token != "" {
		req.Header.Set("Authorization", "Bearer "+p.token)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("rails returned %d: %s", resp.StatusCode, truncate(data, 256))
	}
	return json.Unmarshal(data, out)
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		return string(b[:n]) + "..."
	}
	return string(b)
}

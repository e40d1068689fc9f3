package notify

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"anchorex.com/internal/deposit/domain"
	"anchorex.com/pkg/ratelimit"
)

const webhookBreaker = "notify.webhook"

type WebhookConfig struct {
	// 记录没带 on_change_callback 时用这个，两者都空就不发
	DefaultURL     string `mapstructure:"default_url"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

type Webhook struct {
	client   *http.Client
	url      string
	breakers *ratelimit.Manager
}

var _ domain.Notifier = (*Webhook)(nil)

func NewWebhook(c WebhookConfig, client *http.Client, breakers *ratelimit.Manager) *Webhook {
	if client == nil {
		timeout := time.Duration(c.TimeoutSeconds) * time.Second
		if timeout <= 0 {
			timeout = 5 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	return &Webhook{client: client, url: c.DefaultURL, breakers: breakers}
}

func (w *Webhook) Notify(ctx context.Context, d *domain.Deposit) {
	url := d.OnChangeCallback
	if url == "" {
		url = w.url
	}
	if url == "" {
		return
	}
	body, err := encode(d)
	if err != nil {
		failed(ctx, "webhook", d, err)
		return
	}
	send := func() error { return w.post(ctx, url, body) }
	if w.breakers != nil {
		err = w.breakers.Execute(webhookBreaker, send)
	} else {
		err = send()
	}
	if err != nil {
		failed(ctx, "webhook", d, err)
	}
}

func (w *Webhook) post(ctx context.Context, url string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := w.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("callback returned %d", resp.StatusCode)
	}
	return nil
}

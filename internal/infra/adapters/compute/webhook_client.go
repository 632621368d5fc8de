package compute

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"telegram-credit-miniapp/internal/domain"
	"telegram-credit-miniapp/internal/domain/ports/adapter"
	"telegram-credit-miniapp/internal/infra/logging"
	"telegram-credit-miniapp/internal/infra/metrics"
)

var _ adapter.ComputeWebhook = (*WebhookClient)(nil)

// WebhookClient posts compute jobs as JSON. The caller's ctx carries the deadline.
type WebhookClient struct {
	url    string
	client *http.Client
	log    *zerolog.Logger
}

func NewWebhookClient(url string, logger *zerolog.Logger) *WebhookClient {
	return &WebhookClient{url: url, client: &http.Client{}, log: logger}
}

func (c *WebhookClient) Configured() bool { return c.url != "" }

func (c *WebhookClient) Submit(ctx context.Context, req adapter.ComputeRequest) error {
	if c.url == "" {
		return fmt.Errorf("%w: compute webhook url not set", domain.ErrConfiguration)
	}
	b, err := json.Marshal(req)
	if err != nil {
		return err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(b))
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrConfiguration, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	l := logging.With(ctx, c.log)
	start := time.Now()
	resp, err := c.client.Do(httpReq)
	elapsed := time.Since(start).Milliseconds()
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			metrics.ObserveCompute("timeout", elapsed)
			l.Warn().Int64("latency_ms", elapsed).Msg("compute webhook timed out")
			return domain.ErrUpstreamTimeout
		}
		metrics.ObserveCompute("failed", elapsed)
		return fmt.Errorf("%w: %v", domain.ErrUpstreamFailure, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		metrics.ObserveCompute("failed", elapsed)
		l.Warn().Int("status", resp.StatusCode).Int64("latency_ms", elapsed).Msg("compute webhook rejected job")
		return fmt.Errorf("%w: status %d: %s", domain.ErrUpstreamFailure, resp.StatusCode, bytes.TrimSpace(snippet))
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	metrics.ObserveCompute("ok", elapsed)
	return nil
}

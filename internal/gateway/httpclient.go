package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/austa/payments/pkg/config"
	"github.com/austa/payments/pkg/errs"
)

// httpStatusError marks a non-2xx provider response.
type httpStatusError struct {
	status int
	body   string
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("provider returned %d: %s", e.status, e.body)
}

func asStatusError(err error, target **httpStatusError) bool {
	return errors.As(err, target)
}

// retryable classifies errors worth another attempt: network faults,
// timeouts, and provider 5xx. Provider 4xx are final.
func retryable(err error) bool {
	var statusErr *httpStatusError
	if errors.As(err, &statusErr) {
		return statusErr.status >= 500
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}

// providerHTTP is the shared outbound transport: bounded timeout, JSON
// bodies, exponential backoff on retryable failures.
type providerHTTP struct {
	name   string
	cfg    config.GatewayConfig
	client *http.Client
	log    *zap.SugaredLogger
}

func newProviderHTTP(name string, cfg config.GatewayConfig, log *zap.SugaredLogger) *providerHTTP {
	return &providerHTTP{
		name:   name,
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout()},
		log:    log,
	}
}

func (p *providerHTTP) configured() bool {
	return p.cfg.BaseURL != "" && p.cfg.APIKey != ""
}

// doJSON performs one provider call with bounded retries. Calls that are not
// idempotent on the provider side must carry idempotencyKey; without one
// they get a single attempt.
func (p *providerHTTP) doJSON(ctx context.Context, method, path string, idempotencyKey string, in, out any) error {
	attempts := p.cfg.MaxRetries + 1
	if idempotencyKey == "" && method != http.MethodGet {
		attempts = 1
	}

	var lastErr error
	backoff := 500 * time.Millisecond
	for attempt := 1; attempt <= attempts; attempt++ {
		lastErr = p.doOnce(ctx, method, path, idempotencyKey, in, out)
		if lastErr == nil {
			return nil
		}
		if !retryable(lastErr) {
			return lastErr
		}
		p.log.Warnw("gateway_call_retry",
			"gateway", p.name, "path", path, "attempt", attempt, "err", lastErr)
		if attempt == attempts {
			break
		}
		select {
		case <-ctx.Done():
			return errs.GatewayUnavailable(ctx.Err(), "%s: call cancelled", p.name)
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return errs.GatewayUnavailable(lastErr, "%s: gateway unavailable after %d attempts", p.name, attempts)
}

func (p *providerHTTP) doOnce(ctx context.Context, method, path, idempotencyKey string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, p.cfg.BaseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")
	if idempotencyKey != "" {
		req.Header.Set("X-Idempotency-Key", idempotencyKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &httpStatusError{status: resp.StatusCode, body: string(raw)}
	}
	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("decode %s response: %w", p.name, err)
		}
	}
	return nil
}

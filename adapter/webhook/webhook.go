// Package webhook delivers report completion events to an HTTP endpoint.
//
// Each event is POSTed as JSON. Network errors, 429 and 5xx responses are
// retried with doubling backoff; other 4xx responses are final.
package webhook

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/RAGGA-TIME/lifekline/adapter"
	"github.com/RAGGA-TIME/lifekline/iox"
	"github.com/RAGGA-TIME/lifekline/types"
)

const (
	// DefaultTimeout bounds one delivery attempt.
	DefaultTimeout = 10 * time.Second
	// DefaultRetries is the number of extra attempts after the first.
	DefaultRetries = 3
	// DefaultBackoff is the delay before the first retry.
	DefaultBackoff = 500 * time.Millisecond
	// MaxBackoff caps the delay between attempts.
	MaxBackoff = 30 * time.Second
)

// Delivery headers set on every request.
const (
	HeaderEvent       = "X-Lifekline-Event"
	HeaderDelivery    = "X-Lifekline-Delivery"
	HeaderAttemptNum  = "X-Lifekline-Delivery-Attempt"
	contentTypeJSON   = "application/json"
	userAgentTemplate = "lifekline/%s"
)

// Config configures the webhook adapter.
type Config struct {
	// URL receives the POST requests (required).
	URL string
	// Headers are added to every request, after the delivery headers.
	Headers map[string]string
	Timeout time.Duration
	Retries int
	Backoff time.Duration
	// HTTPClient overrides the client built from Timeout.
	HTTPClient *http.Client
}

// Adapter posts events to one endpoint.
type Adapter struct {
	url     string
	headers map[string]string
	retries int
	backoff time.Duration
	client  *http.Client
}

// New validates cfg and returns an adapter.
func New(cfg Config) (*Adapter, error) {
	if cfg.URL == "" {
		return nil, errors.New("webhook adapter requires a URL")
	}
	if cfg.Retries < 0 {
		return nil, fmt.Errorf("retries must be >= 0, got %d", cfg.Retries)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = DefaultBackoff
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &Adapter{
		url:     cfg.URL,
		headers: cfg.Headers,
		retries: cfg.Retries,
		backoff: cfg.Backoff,
		client:  client,
	}, nil
}

// StatusError reports a non-2xx response.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("unexpected status %d", e.Code)
	}
	return fmt.Sprintf("unexpected status %d: %s", e.Code, e.Body)
}

// Retryable reports whether another attempt may succeed.
func (e *StatusError) Retryable() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= 500
}

// DeliveryID identifies an event across retries so receivers can
// deduplicate: the report ID and attempt joined by a slash.
func DeliveryID(event *adapter.ReportEvent) string {
	return event.ReportID + "/" + strconv.Itoa(event.Attempt)
}

// Publish posts the event, retrying transient failures.
func (a *Adapter) Publish(ctx context.Context, event *adapter.ReportEvent) error {
	body, err := adapter.Encode(event, adapter.EncodingJSON)
	if err != nil {
		return fmt.Errorf("webhook: encode event: %w", err)
	}

	attempts := a.retries + 1
	var lastErr error
	for n := 1; n <= attempts; n++ {
		if n > 1 {
			if err := sleep(ctx, a.delay(n-1)); err != nil {
				return fmt.Errorf("webhook: canceled before attempt %d: %w", n, err)
			}
		} else if err := ctx.Err(); err != nil {
			return fmt.Errorf("webhook: canceled: %w", err)
		}

		lastErr = a.post(ctx, event, body, n)
		if lastErr == nil {
			return nil
		}
		var se *StatusError
		if errors.As(lastErr, &se) && !se.Retryable() {
			return fmt.Errorf("webhook: non-retriable error: %w", lastErr)
		}
	}
	return fmt.Errorf("webhook: failed after %d attempts: %w", attempts, lastErr)
}

// delay returns the wait before retry n (1-based), doubling up to MaxBackoff.
func (a *Adapter) delay(n int) time.Duration {
	d := a.backoff
	for i := 1; i < n && d < MaxBackoff; i++ {
		d *= 2
	}
	return min(d, MaxBackoff)
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (a *Adapter) post(ctx context.Context, event *adapter.ReportEvent, body []byte, attempt int) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", contentTypeJSON)
	req.Header.Set("User-Agent", fmt.Sprintf(userAgentTemplate, types.Version))
	req.Header.Set(HeaderEvent, event.EventType)
	req.Header.Set(HeaderDelivery, DeliveryID(event))
	req.Header.Set(HeaderAttemptNum, strconv.Itoa(attempt))
	for k, v := range a.headers {
		req.Header.Set(k, v)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer iox.DrainClose(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{Code: resp.StatusCode, Body: iox.ErrorBody(resp.Body)}
	}
	return nil
}

// Close drops idle connections.
func (a *Adapter) Close() error {
	a.client.CloseIdleConnections()
	return nil
}

var _ adapter.Adapter = (*Adapter)(nil)

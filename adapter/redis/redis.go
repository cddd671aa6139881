// Package redis publishes report completion events on Redis pub/sub.
//
// The channel name may contain {provider} and {outcome}, filled from each
// event, so subscribers can listen to one provider or failures only. When
// KeepLatest is set, the payload is also stored under
// lifekline:report:<report_id> for consumers that subscribe late.
package redis

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/RAGGA-TIME/lifekline/adapter"
)

const (
	// DefaultChannel receives every event unless Channel is set.
	DefaultChannel = "lifekline:report_completed"
	// DefaultTimeout bounds one publish attempt.
	DefaultTimeout = 5 * time.Second
	// DefaultRetries is the number of extra attempts after the first.
	DefaultRetries = 3
	// DefaultBackoff is the delay before the first retry.
	DefaultBackoff = 500 * time.Millisecond
	// LatestKeyPrefix prefixes the retained per-report payload keys.
	LatestKeyPrefix = "lifekline:report:"
)

// Config configures the Redis adapter.
type Config struct {
	// URL is redis://[:password@]host:port[/db] (required).
	URL string
	// Channel is the channel template (default DefaultChannel).
	Channel string
	// Encoding is json (default) or msgpack.
	Encoding string
	Timeout  time.Duration
	Retries  int
	Backoff  time.Duration
	// KeepLatest retains each payload under LatestKey for this long.
	// Zero disables retention.
	KeepLatest time.Duration
}

// Adapter publishes events with PUBLISH.
type Adapter struct {
	channel    string
	encoding   string
	timeout    time.Duration
	retries    int
	backoff    time.Duration
	keepLatest time.Duration
	client     *goredis.Client
}

// New validates cfg and connects lazily.
func New(cfg Config) (*Adapter, error) {
	if cfg.URL == "" {
		return nil, errors.New("redis adapter requires a URL")
	}
	opts, err := goredis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("redis adapter: invalid URL: %w", err)
	}
	if cfg.Retries < 0 {
		return nil, fmt.Errorf("retries must be >= 0, got %d", cfg.Retries)
	}
	if cfg.KeepLatest < 0 {
		return nil, fmt.Errorf("keep latest must be >= 0, got %v", cfg.KeepLatest)
	}

	a := &Adapter{
		channel:    cmp.Or(cfg.Channel, DefaultChannel),
		encoding:   cmp.Or(cfg.Encoding, adapter.EncodingJSON),
		timeout:    cfg.Timeout,
		retries:    cfg.Retries,
		backoff:    cfg.Backoff,
		keepLatest: cfg.KeepLatest,
	}
	if a.encoding != adapter.EncodingJSON && a.encoding != adapter.EncodingMsgpack {
		return nil, fmt.Errorf("redis adapter: unknown encoding %q", a.encoding)
	}
	if a.timeout <= 0 {
		a.timeout = DefaultTimeout
	}
	if a.backoff <= 0 {
		a.backoff = DefaultBackoff
	}
	a.client = goredis.NewClient(opts)
	return a, nil
}

// ChannelFor expands the channel template for event.
func (a *Adapter) ChannelFor(event *adapter.ReportEvent) string {
	if !strings.Contains(a.channel, "{") {
		return a.channel
	}
	return strings.NewReplacer(
		"{provider}", event.Provider,
		"{outcome}", event.Outcome,
	).Replace(a.channel)
}

// LatestKey is the key retaining the last payload of a report.
func LatestKey(reportID string) string {
	return LatestKeyPrefix + reportID
}

// Publish encodes the event and publishes it, retrying failed attempts.
func (a *Adapter) Publish(ctx context.Context, event *adapter.ReportEvent) error {
	payload, err := adapter.Encode(event, a.encoding)
	if err != nil {
		return fmt.Errorf("redis: encode event: %w", err)
	}
	channel := a.ChannelFor(event)

	attempts := a.retries + 1
	var lastErr error
	for n := 0; n < attempts; n++ {
		if n > 0 {
			t := time.NewTimer(a.backoff << (n - 1))
			select {
			case <-ctx.Done():
				t.Stop()
				return fmt.Errorf("redis: canceled during backoff: %w", ctx.Err())
			case <-t.C:
			}
		} else if err := ctx.Err(); err != nil {
			return fmt.Errorf("redis: canceled: %w", err)
		}

		lastErr = a.send(ctx, channel, event.ReportID, payload)
		if lastErr == nil {
			return nil
		}
		if errors.Is(lastErr, goredis.ErrClosed) {
			break
		}
	}
	return fmt.Errorf("redis: failed after %d attempts: %w", attempts, lastErr)
}

// send runs one attempt. With retention on, SET and PUBLISH go in one
// MULTI/EXEC so a subscriber that reads the key after the message sees it.
func (a *Adapter) send(ctx context.Context, channel, reportID string, payload []byte) error {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	if a.keepLatest == 0 {
		return a.client.Publish(ctx, channel, payload).Err()
	}
	_, err := a.client.TxPipelined(ctx, func(p goredis.Pipeliner) error {
		p.Set(ctx, LatestKey(reportID), payload, a.keepLatest)
		p.Publish(ctx, channel, payload)
		return nil
	})
	return err
}

// Close closes the connection pool.
func (a *Adapter) Close() error {
	return a.client.Close()
}

var _ adapter.Adapter = (*Adapter)(nil)

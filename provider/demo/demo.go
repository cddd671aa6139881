// Package demo serves a bundled sample report as if it were streamed by a
// model. It is selected by the API key "demo".
package demo

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/RAGGA-TIME/lifekline/provider"
	"github.com/RAGGA-TIME/lifekline/sse"
)

//go:embed mock-data.json
var mockData []byte

// DefaultChunkRunes is the number of runes per streamed delta.
const DefaultChunkRunes = 64

// Document returns a copy of the bundled sample document.
func Document() []byte {
	return bytes.Clone(mockData)
}

// Config configures the demo provider.
type Config struct {
	ChunkRunes int
	// Delay is the pause between events; zero streams immediately.
	Delay         time.Duration
	StreamOptions []sse.StreamOption
}

// Provider replays the sample document over an in-memory SSE stream.
type Provider struct {
	chunkRunes int
	delay      time.Duration
	streamOpts []sse.StreamOption
}

// New creates a demo provider.
func New(cfg Config) *Provider {
	if cfg.ChunkRunes <= 0 {
		cfg.ChunkRunes = DefaultChunkRunes
	}
	return &Provider{chunkRunes: cfg.ChunkRunes, delay: cfg.Delay, streamOpts: cfg.StreamOptions}
}

// Name returns "demo".
func (p *Provider) Name() string { return "demo" }

// Model returns "demo".
func (p *Provider) Model() string { return "demo" }

// Stream ignores the request and replays the sample document.
func (p *Provider) Stream(ctx context.Context, _ *provider.Request) (provider.Stream, error) {
	events, err := Events(string(mockData), p.chunkRunes)
	if err != nil {
		return nil, err
	}
	r := &eventReader{ctx: ctx, events: events, delay: p.delay}
	return &stream{Stream: sse.NewStream(r, p.streamOpts...)}, nil
}

// Close is a no-op.
func (p *Provider) Close() error { return nil }

// Events renders text as OpenAI-style SSE chunk events of at most n runes
// each, terminated by the [DONE] sentinel.
func Events(text string, n int) ([][]byte, error) {
	runes := []rune(text)
	events := make([][]byte, 0, len(runes)/n+2)
	for start := 0; start < len(runes); start += n {
		end := min(start+n, len(runes))
		payload, err := json.Marshal(map[string]any{
			"choices": []any{map[string]any{"delta": map[string]any{"content": string(runes[start:end])}}},
		})
		if err != nil {
			return nil, fmt.Errorf("demo: encode chunk: %w", err)
		}
		events = append(events, fmt.Appendf(nil, "data: %s\n\n", payload))
	}
	events = append(events, []byte("data: [DONE]\n\n"))
	return events, nil
}

// eventReader yields one event per Read, pausing between events.
type eventReader struct {
	ctx    context.Context
	events [][]byte
	cur    []byte
	delay  time.Duration
}

func (r *eventReader) Read(p []byte) (int, error) {
	if len(r.cur) == 0 {
		if len(r.events) == 0 {
			return 0, io.EOF
		}
		if r.delay > 0 {
			select {
			case <-r.ctx.Done():
				return 0, r.ctx.Err()
			case <-time.After(r.delay):
			}
		}
		r.cur, r.events = r.events[0], r.events[1:]
	}
	n := copy(p, r.cur)
	r.cur = r.cur[n:]
	return n, nil
}

type stream struct {
	*sse.Stream
}

func (s *stream) Close() error { return nil }

var _ provider.Provider = (*Provider)(nil)

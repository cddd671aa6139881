// Package openai implements an OpenAI-compatible chat completions provider.
//
// Streaming answers are read as server-sent events through package sse; the
// non-streaming Complete call is used for the tool-calling round trip.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/RAGGA-TIME/lifekline/iox"
	"github.com/RAGGA-TIME/lifekline/provider"
	"github.com/RAGGA-TIME/lifekline/sse"
)

// Defaults for the OpenAI-compatible backend.
const (
	DefaultBaseURL     = "https://open.bigmodel.cn/api/paas/v4"
	DefaultModel       = "glm-4.6"
	DefaultTemperature = 0.7
	DefaultMaxTokens   = 65536
)

// Config configures the client.
type Config struct {
	Credentials provider.Credentials
	Temperature float64
	MaxTokens   int
	// HTTPClient defaults to a client without timeout; bound requests with the context.
	HTTPClient *http.Client
	// StreamOptions are applied to every SSE stream.
	StreamOptions []sse.StreamOption
}

// Client talks to {BaseURL}/chat/completions.
type Client struct {
	creds       provider.Credentials
	temperature float64
	maxTokens   int
	http        *http.Client
	streamOpts  []sse.StreamOption
}

// New creates a client. Credentials are normalized and validated.
func New(cfg Config) (*Client, error) {
	creds := cfg.Credentials.Normalize().WithDefaults(DefaultBaseURL, DefaultModel)
	if err := creds.Validate(); err != nil {
		return nil, err
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = DefaultTemperature
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{}
	}
	return &Client{
		creds:       creds,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		http:        cfg.HTTPClient,
		streamOpts:  cfg.StreamOptions,
	}, nil
}

// Name returns "openai".
func (c *Client) Name() string { return "openai" }

// Model returns the configured model.
func (c *Client) Model() string { return c.creds.Model }

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("openai: unexpected status %d: %s", e.Code, e.Body)
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatRequest struct {
	Model          string             `json:"model"`
	Messages       []provider.Message `json:"messages"`
	Tools          []provider.Tool    `json:"tools,omitempty"`
	ToolChoice     string             `json:"tool_choice,omitempty"`
	Temperature    float64            `json:"temperature"`
	MaxTokens      int                `json:"max_tokens"`
	Stream         bool               `json:"stream,omitempty"`
	ResponseFormat *responseFormat    `json:"response_format,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message      provider.Message `json:"message"`
		FinishReason string           `json:"finish_reason"`
	} `json:"choices"`
}

func (c *Client) body(req *provider.Request, stream bool) chatRequest {
	msgs := make([]provider.Message, 0, len(req.Messages)+1)
	if req.System != "" {
		msgs = append(msgs, provider.Message{Role: provider.RoleSystem, Content: req.System})
	}
	msgs = append(msgs, req.Messages...)

	body := chatRequest{
		Model:       c.creds.Model,
		Messages:    msgs,
		Tools:       req.Tools,
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
		Stream:      stream,
	}
	if len(req.Tools) > 0 {
		body.ToolChoice = "auto"
	}
	if stream {
		body.ResponseFormat = &responseFormat{Type: "json_object"}
	}
	return body
}

func (c *Client) post(ctx context.Context, body chatRequest) (*http.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("openai: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.creds.BaseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("openai: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.creds.APIKey)
	if body.Stream {
		httpReq.Header.Set("Accept", "text/event-stream")
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("openai: request failed: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer iox.DrainClose(resp.Body)
		return nil, &StatusError{Code: resp.StatusCode, Body: iox.ErrorBody(resp.Body)}
	}
	return resp, nil
}

// Stream starts a streaming completion with a JSON response format.
func (c *Client) Stream(ctx context.Context, req *provider.Request) (provider.Stream, error) {
	resp, err := c.post(ctx, c.body(req, true))
	if err != nil {
		return nil, err
	}
	return &stream{
		Stream: sse.NewStream(resp.Body, c.streamOpts...),
		body:   resp.Body,
	}, nil
}

// Complete performs a non-streaming call and returns the first choice's message.
func (c *Client) Complete(ctx context.Context, req *provider.Request) (*provider.Message, error) {
	resp, err := c.post(ctx, c.body(req, false))
	if err != nil {
		return nil, err
	}
	defer iox.DiscardClose(resp.Body)

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("openai: decode response: %w", err)
	}
	if len(out.Choices) == 0 {
		return nil, fmt.Errorf("openai: response has no choices")
	}
	msg := out.Choices[0].Message
	return &msg, nil
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.http.CloseIdleConnections()
	return nil
}

// stream adapts an SSE body to provider.Stream. Stats comes from the
// embedded sse.Stream.
type stream struct {
	*sse.Stream
	body io.Closer
}

func (s *stream) Close() error {
	return s.body.Close()
}

var (
	_ provider.Provider   = (*Client)(nil)
	_ provider.ToolCaller = (*Client)(nil)
)

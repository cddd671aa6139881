// Package gemini implements a provider backed by the Gemini API.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/RAGGA-TIME/lifekline/provider"
)

// Defaults for the Gemini backend.
const (
	DefaultModel       = "gemini-3-pro-preview"
	DefaultTemperature = float32(0.7)
	jsonMIMEType       = "application/json"
)

// Config configures the client.
type Config struct {
	Credentials provider.Credentials
	Temperature float32
	// Options are appended to the API key and endpoint options.
	Options []option.ClientOption
}

// Client streams completions from a Gemini model.
type Client struct {
	client      *genai.Client
	model       string
	temperature float32
}

// New creates a client. A non-empty BaseURL overrides the API endpoint.
func New(ctx context.Context, cfg Config) (*Client, error) {
	creds := cfg.Credentials.Normalize().WithDefaults("", DefaultModel)
	if err := creds.Validate(); err != nil {
		return nil, err
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = DefaultTemperature
	}

	opts := []option.ClientOption{option.WithAPIKey(creds.APIKey)}
	if creds.BaseURL != "" {
		opts = append(opts, option.WithEndpoint(creds.BaseURL))
	}
	opts = append(opts, cfg.Options...)

	cl, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}
	return &Client{client: cl, model: creds.Model, temperature: cfg.Temperature}, nil
}

// Name returns "gemini".
func (c *Client) Name() string { return "gemini" }

// Model returns the configured model.
func (c *Client) Model() string { return c.model }

// Stream sends the last user message with the earlier turns as chat history.
func (c *Client) Stream(ctx context.Context, req *provider.Request) (provider.Stream, error) {
	m := c.client.GenerativeModel(c.model)
	temp := c.temperature
	m.GenerationConfig = genai.GenerationConfig{
		Temperature:      &temp,
		ResponseMIMEType: jsonMIMEType,
	}
	if req.System != "" {
		m.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(req.System)}}
	}

	history, last, err := splitHistory(req.Messages)
	if err != nil {
		return nil, err
	}
	cs := m.StartChat()
	cs.History = history

	return &stream{iter: cs.SendMessageStream(ctx, genai.Text(last))}, nil
}

// Close releases the underlying client.
func (c *Client) Close() error {
	return c.client.Close()
}

// splitHistory converts messages into chat history plus the final user prompt.
// System and tool turns are dropped; Gemini receives the system prompt separately.
func splitHistory(msgs []provider.Message) ([]*genai.Content, string, error) {
	lastUser := -1
	for i, msg := range msgs {
		if msg.Role == provider.RoleUser {
			lastUser = i
		}
	}
	if lastUser < 0 {
		return nil, "", errors.New("gemini: request has no user message")
	}

	var history []*genai.Content
	for _, msg := range msgs[:lastUser] {
		var role string
		switch msg.Role {
		case provider.RoleUser:
			role = "user"
		case provider.RoleAssistant:
			role = "model"
		default:
			continue
		}
		if msg.Content == "" {
			continue
		}
		history = append(history, &genai.Content{Role: role, Parts: []genai.Part{genai.Text(msg.Content)}})
	}
	return history, msgs[lastUser].Content, nil
}

// responseText concatenates the text parts of the first candidate.
func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 {
		return ""
	}
	cand := resp.Candidates[0]
	if cand == nil || cand.Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, p := range cand.Content.Parts {
		if t, ok := p.(genai.Text); ok {
			sb.WriteString(string(t))
		}
	}
	return sb.String()
}

type responseIterator interface {
	Next() (*genai.GenerateContentResponse, error)
}

type stream struct {
	iter responseIterator
	done bool
}

// Next returns the next non-empty text delta, or io.EOF when the iterator ends.
func (s *stream) Next(ctx context.Context) (string, error) {
	for {
		if s.done {
			return "", io.EOF
		}
		if err := ctx.Err(); err != nil {
			return "", err
		}
		resp, err := s.iter.Next()
		if errors.Is(err, iterator.Done) {
			s.done = true
			return "", io.EOF
		}
		if err != nil {
			return "", fmt.Errorf("gemini: stream: %w", err)
		}
		if text := responseText(resp); text != "" {
			return text, nil
		}
	}
}

func (s *stream) Close() error { return nil }

var _ provider.Provider = (*Client)(nil)

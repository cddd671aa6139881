// Package provider defines the model backends that produce report streams.
//
// A Provider turns a Request into a Stream of answer deltas. Backends that
// support function calling also implement ToolCaller.
package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// DemoKey selects the bundled demo provider when used as the API key.
const DemoKey = "demo"

var (
	// ErrMissingAPIKey is returned when no API key is configured.
	ErrMissingAPIKey = errors.New("provider: API key is required (use \"demo\" for the bundled sample)")
	// ErrInvalidAPIKey is returned when the key contains non-ASCII characters.
	ErrInvalidAPIKey = errors.New("provider: API key contains non-ASCII characters")
	// ErrMissingBaseURL is returned when a backend needs a base URL and has none.
	ErrMissingBaseURL = errors.New("provider: base URL is required")
)

// Message is one chat turn.
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
}

// ToolCall is a function invocation requested by the model.
type ToolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	Function FunctionCall `json:"function"`
}

// FunctionCall names the function and carries its JSON-encoded arguments.
type FunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// Tool describes a function the model may call.
type Tool struct {
	Type     string      `json:"type"`
	Function FunctionDef `json:"function"`
}

// FunctionDef is a tool's name, description and JSON schema parameters.
type FunctionDef struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// Request is a provider-neutral completion request.
type Request struct {
	System   string
	Messages []Message
	Tools    []Tool
}

// Stream yields answer deltas. Next returns io.EOF once the answer is complete.
type Stream interface {
	Next(ctx context.Context) (string, error)
	Close() error
}

// Provider produces streaming completions.
type Provider interface {
	Name() string
	Model() string
	Stream(ctx context.Context, req *Request) (Stream, error)
	Close() error
}

// ToolCaller is implemented by providers that support a non-streaming call
// with tool definitions.
type ToolCaller interface {
	Complete(ctx context.Context, req *Request) (*Message, error)
}

// Credentials identify the backend account and model.
type Credentials struct {
	APIKey  string
	BaseURL string
	Model   string
}

// Normalize trims whitespace from all fields and trailing slashes from BaseURL.
func (c Credentials) Normalize() Credentials {
	return Credentials{
		APIKey:  strings.TrimSpace(c.APIKey),
		BaseURL: strings.TrimRight(strings.TrimSpace(c.BaseURL), "/"),
		Model:   strings.TrimSpace(c.Model),
	}
}

// IsDemo reports whether the key selects the demo provider.
func (c Credentials) IsDemo() bool {
	return strings.EqualFold(strings.TrimSpace(c.APIKey), DemoKey)
}

// Validate checks the API key. Call it on normalized credentials.
func (c Credentials) Validate() error {
	if c.APIKey == "" {
		return ErrMissingAPIKey
	}
	for _, r := range c.APIKey {
		if r > unicode.MaxASCII {
			return ErrInvalidAPIKey
		}
	}
	return nil
}

// WithDefaults fills an empty model and base URL.
func (c Credentials) WithDefaults(baseURL, model string) Credentials {
	if c.BaseURL == "" {
		c.BaseURL = baseURL
	}
	if c.Model == "" {
		c.Model = model
	}
	return c
}

// MaskedKey returns the key with all but the last four characters hidden.
func (c Credentials) MaskedKey() string {
	if len(c.APIKey) <= 4 {
		return strings.Repeat("*", len(c.APIKey))
	}
	return strings.Repeat("*", len(c.APIKey)-4) + c.APIKey[len(c.APIKey)-4:]
}

// IsInvalidCredentials reports whether err is a credentials validation error.
func IsInvalidCredentials(err error) bool {
	return errors.Is(err, ErrMissingAPIKey) || errors.Is(err, ErrInvalidAPIKey) || errors.Is(err, ErrMissingBaseURL)
}

// LastUser returns the content of the last user message, or an error.
func (r *Request) LastUser() (string, error) {
	for i := len(r.Messages) - 1; i >= 0; i-- {
		if r.Messages[i].Role == RoleUser {
			return r.Messages[i].Content, nil
		}
	}
	return "", fmt.Errorf("provider: request has no %s message", RoleUser)
}

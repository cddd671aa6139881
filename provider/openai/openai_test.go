package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/RAGGA-TIME/lifekline/iox"
	"github.com/RAGGA-TIME/lifekline/provider"
	"github.com/RAGGA-TIME/lifekline/sse"
)

func sseChunk(delta string) string {
	b, _ := json.Marshal(map[string]any{
		"choices": []any{map[string]any{"delta": map[string]any{"content": delta}}},
	})
	return "data: " + string(b) + "\n\n"
}

func newClient(t *testing.T, url string) *Client {
	t.Helper()
	c, err := New(Config{Credentials: provider.Credentials{APIKey: "sk-test", BaseURL: url + "/", Model: "glm-test"}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(iox.CloseFunc(c))
	return c
}

func TestStream_SendsRequestAndYieldsDeltas(t *testing.T) {
	var got chatRequest
	var auth, path string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		path = r.URL.Path
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, ": keep-alive\n\n")
		fmt.Fprint(w, sseChunk(`{"chartPoints":`))
		fmt.Fprint(w, sseChunk(`[]}`))
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer ts.Close()

	c := newClient(t, ts.URL)
	s, err := c.Stream(t.Context(), &provider.Request{
		System:   "sys",
		Messages: []provider.Message{{Role: provider.RoleUser, Content: "hi"}},
	})
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	defer iox.DiscardClose(s)

	var text strings.Builder
	for {
		delta, err := s.Next(t.Context())
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		text.WriteString(delta)
	}

	if text.String() != `{"chartPoints":[]}` {
		t.Errorf("text = %q", text.String())
	}
	if auth != "Bearer sk-test" {
		t.Errorf("Authorization = %q", auth)
	}
	if path != "/chat/completions" {
		t.Errorf("path = %q", path)
	}
	if !got.Stream || got.ResponseFormat == nil || got.ResponseFormat.Type != "json_object" {
		t.Errorf("stream request = %+v", got)
	}
	if got.Temperature != DefaultTemperature || got.MaxTokens != DefaultMaxTokens || got.Model != "glm-test" {
		t.Errorf("request params = %+v", got)
	}
	wantMsgs := []provider.Message{
		{Role: provider.RoleSystem, Content: "sys"},
		{Role: provider.RoleUser, Content: "hi"},
	}
	if diff := cmp.Diff(wantMsgs, got.Messages); diff != "" {
		t.Errorf("messages mismatch (-want +got):\n%s", diff)
	}
	if got.ToolChoice != "" || len(got.Tools) != 0 {
		t.Errorf("unexpected tools in request: %+v", got)
	}

	stats, ok := s.(interface{ Stats() sse.Stats })
	if !ok {
		t.Fatal("stream does not expose Stats")
	}
	if st := stats.Stats(); st.Comments != 1 || st.Deltas != 2 || !st.DoneSeen {
		t.Errorf("stats = %+v", st)
	}
}

func TestStream_StatusError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":"invalid api key"}`)
	}))
	defer ts.Close()

	c := newClient(t, ts.URL)
	_, err := c.Stream(t.Context(), &provider.Request{Messages: []provider.Message{{Role: provider.RoleUser, Content: "x"}}})

	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("error = %v, want *StatusError", err)
	}
	if se.Code != http.StatusUnauthorized || !strings.Contains(se.Body, "invalid api key") {
		t.Errorf("StatusError = %+v", se)
	}
}

func TestStream_ContextCanceled(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer ts.Close()

	c := newClient(t, ts.URL)
	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	_, err := c.Stream(ctx, &provider.Request{})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}

func TestComplete_ToolCalls(t *testing.T) {
	var got chatRequest
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		fmt.Fprint(w, `{"choices":[{"finish_reason":"tool_calls","message":{"role":"assistant","content":null,"tool_calls":[{"id":"call_1","type":"function","function":{"name":"get_bazi_detail","arguments":"{\"year\":1990}"}}]}}]}`)
	}))
	defer ts.Close()

	tool := provider.Tool{Type: "function", Function: provider.FunctionDef{Name: "get_bazi_detail", Parameters: map[string]any{"type": "object"}}}
	c := newClient(t, ts.URL)
	msg, err := c.Complete(t.Context(), &provider.Request{
		Messages: []provider.Message{{Role: provider.RoleUser, Content: "x"}},
		Tools:    []provider.Tool{tool},
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}

	if got.Stream || got.ResponseFormat != nil {
		t.Errorf("non-streaming request carried stream settings: %+v", got)
	}
	if got.ToolChoice != "auto" || len(got.Tools) != 1 {
		t.Errorf("tools not sent: %+v", got)
	}
	want := &provider.Message{
		Role: provider.RoleAssistant,
		ToolCalls: []provider.ToolCall{{
			ID:       "call_1",
			Type:     "function",
			Function: provider.FunctionCall{Name: "get_bazi_detail", Arguments: `{"year":1990}`},
		}},
	}
	if diff := cmp.Diff(want, msg); diff != "" {
		t.Errorf("message mismatch (-want +got):\n%s", diff)
	}
}

func TestComplete_NoChoices(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"choices":[]}`)
	}))
	defer ts.Close()

	if _, err := newClient(t, ts.URL).Complete(t.Context(), &provider.Request{}); err == nil {
		t.Fatal("expected error for empty choices")
	}
}

func TestNew_Defaults(t *testing.T) {
	c, err := New(Config{Credentials: provider.Credentials{APIKey: "sk"}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if c.creds.BaseURL != DefaultBaseURL || c.Model() != DefaultModel || c.Name() != "openai" {
		t.Errorf("defaults = %+v", c.creds)
	}
	if _, err := New(Config{}); !errors.Is(err, provider.ErrMissingAPIKey) {
		t.Errorf("New without key = %v", err)
	}
}

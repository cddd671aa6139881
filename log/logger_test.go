package log

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"go.uber.org/zap/zapcore"

	"github.com/RAGGA-TIME/lifekline/types"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]any
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("invalid log line %q: %v", line, err)
		}
		out = append(out, entry)
	}
	return out
}

func TestLogger_ReportFields(t *testing.T) {
	parent := "rep-000"
	meta := &types.ReportMeta{ReportID: "rep-001", Attempt: 2, ParentReportID: &parent}

	var buf bytes.Buffer
	logger := NewLoggerWithWriter(meta, &buf).WithProvider("openai", "glm-4.6")
	logger.Info("stream started", map[string]any{"bytes": 12})

	entries := decodeLines(t, &buf)
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	e := entries[0]
	if e["report_id"] != "rep-001" {
		t.Errorf("report_id = %v", e["report_id"])
	}
	if e["attempt"] != float64(2) {
		t.Errorf("attempt = %v", e["attempt"])
	}
	if e["parent_report_id"] != "rep-000" {
		t.Errorf("parent_report_id = %v", e["parent_report_id"])
	}
	if e["provider"] != "openai" || e["model"] != "glm-4.6" {
		t.Errorf("provider/model = %v/%v", e["provider"], e["model"])
	}
	if e["level"] != "info" || e["message"] != "stream started" {
		t.Errorf("level/message = %v/%v", e["level"], e["message"])
	}
	fields, ok := e["fields"].(map[string]any)
	if !ok || fields["bytes"] != float64(12) {
		t.Errorf("fields = %v", e["fields"])
	}
}

func TestLogger_WithOutputKeepsContext(t *testing.T) {
	meta := &types.ReportMeta{ReportID: "rep-xyz", Attempt: 1}
	var first, second bytes.Buffer
	logger := NewLoggerWithWriter(meta, &first)
	moved := logger.WithOutput(&second)
	moved.Warn("moved", nil)

	if first.Len() != 0 {
		t.Errorf("original writer received output: %q", first.String())
	}
	entries := decodeLines(t, &second)
	if len(entries) != 1 || entries[0]["report_id"] != "rep-xyz" {
		t.Errorf("entries = %v", entries)
	}
}

func TestNewNopLogger(t *testing.T) {
	logger := NewNopLogger()
	logger.Error("ignored", map[string]any{"k": "v"})
	logger.SetLevel(zapcore.DebugLevel)
	logger.Debug("ignored", nil)
}

func TestLogger_SetLevelAppliesToDerived(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter(nil, &buf)
	derived := logger.WithProvider("demo", "")
	logger.SetLevel(zapcore.WarnLevel)

	derived.Info("dropped", nil)
	derived.Warn("kept", nil)

	entries := decodeLines(t, &buf)
	if len(entries) != 1 || entries[0]["message"] != "kept" {
		t.Fatalf("entries = %v", entries)
	}
	if _, ok := entries[0]["fields"]; ok {
		t.Error("entry without fields should not carry a fields key")
	}
	if _, ok := entries[0]["model"]; ok {
		t.Error("empty model should be omitted")
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zapcore.Level
	}{
		{"", zapcore.InfoLevel},
		{"debug", zapcore.DebugLevel},
		{"WARN", zapcore.WarnLevel},
		{"warning", zapcore.WarnLevel},
		{" error ", zapcore.ErrorLevel},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if err != nil || got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, %v; want %v", tt.in, got, err, tt.want)
		}
	}
	if _, err := ParseLevel("trace"); err == nil {
		t.Error("ParseLevel(trace) should fail")
	}
}

package demo

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/RAGGA-TIME/lifekline/report"
	"github.com/RAGGA-TIME/lifekline/sse"
)

func TestDocument_IsValidReport(t *testing.T) {
	var doc any
	if err := json.Unmarshal(Document(), &doc); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	rep, err := report.FromValue(doc)
	if err != nil {
		t.Fatalf("FromValue: %v", err)
	}
	if len(rep.ChartData) != 100 {
		t.Errorf("chart points = %d, want 100", len(rep.ChartData))
	}
	if rep.ChartData[0].Age != 1 || rep.ChartData[99].Age != 100 {
		t.Errorf("ages = %d..%d", rep.ChartData[0].Age, rep.ChartData[99].Age)
	}
	if rep.Analysis.Summary == report.DefaultSummary {
		t.Error("summary fell back to the default")
	}
}

func TestStream_ReplaysDocument(t *testing.T) {
	p := New(Config{ChunkRunes: 7})
	s, err := p.Stream(t.Context(), nil)
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}

	var sb strings.Builder
	for {
		delta, err := s.Next(t.Context())
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		sb.WriteString(delta)
	}
	if sb.String() != string(Document()) {
		t.Error("replayed text differs from the bundled document")
	}

	st := s.(interface{ Stats() sse.Stats }).Stats()
	if !st.DoneSeen || st.Skipped != 0 {
		t.Errorf("stats = %+v", st)
	}
}

func TestEvents_SplitsOnRunes(t *testing.T) {
	events, err := Events("八字ab", 1)
	if err != nil {
		t.Fatalf("Events: %v", err)
	}
	if len(events) != 5 {
		t.Fatalf("events = %d, want 5", len(events))
	}
	if string(events[4]) != "data: [DONE]\n\n" {
		t.Errorf("last event = %q", events[4])
	}
	delta, err := sse.ParseDelta(strings.TrimSuffix(strings.TrimPrefix(string(events[0]), "data: "), "\n\n"))
	if err != nil || delta != "八" {
		t.Errorf("first delta = %q, %v", delta, err)
	}
}

func TestStream_DelayHonorsContext(t *testing.T) {
	p := New(Config{Delay: time.Hour})
	ctx, cancel := context.WithCancel(t.Context())
	s, err := p.Stream(ctx, nil)
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	cancel()

	_, err = s.Next(t.Context())
	if !sse.IsTruncated(err) {
		t.Errorf("Next = %v, want a read failure", err)
	}
}

package sse

import (
	"strings"
	"testing"
)

func TestLineDecoder_CarriesPartialLine(t *testing.T) {
	d := NewLineDecoder()

	lines, err := d.Feed([]byte("data: one\ndata: tw"))
	if err != nil {
		t.Fatalf("Feed failed: %v", err)
	}
	if len(lines) != 1 || lines[0] != "data: one" {
		t.Fatalf("lines = %q, want [\"data: one\"]", lines)
	}
	if d.Buffered() != len("data: tw") {
		t.Errorf("Buffered = %d, want %d", d.Buffered(), len("data: tw"))
	}

	lines, err = d.Feed([]byte("o\n"))
	if err != nil {
		t.Fatalf("Feed failed: %v", err)
	}
	if len(lines) != 1 || lines[0] != "data: two" {
		t.Fatalf("lines = %q, want [\"data: two\"]", lines)
	}
	if _, ok := d.Flush(); ok {
		t.Error("Flush should report an empty buffer")
	}
}

func TestLineDecoder_SplitsMidCodepoint(t *testing.T) {
	input := []byte("data: 人生K线\n")

	for split := 1; split < len(input); split++ {
		d := NewLineDecoder()
		first, err := d.Feed(input[:split])
		if err != nil {
			t.Fatalf("split %d: Feed failed: %v", split, err)
		}
		second, err := d.Feed(input[split:])
		if err != nil {
			t.Fatalf("split %d: Feed failed: %v", split, err)
		}
		got := append(first, second...)
		if len(got) != 1 || got[0] != "data: 人生K线" {
			t.Errorf("split %d: lines = %q", split, got)
		}
	}
}

func TestLineDecoder_FlushReturnsTail(t *testing.T) {
	d := NewLineDecoder()
	if _, err := d.Feed([]byte("data: [DONE]")); err != nil {
		t.Fatalf("Feed failed: %v", err)
	}
	line, ok := d.Flush()
	if !ok {
		t.Fatal("Flush should return the buffered tail")
	}
	if line != "data: [DONE]" {
		t.Errorf("Flush = %q, want %q", line, "data: [DONE]")
	}
	if d.Buffered() != 0 {
		t.Errorf("Buffered = %d after Flush, want 0", d.Buffered())
	}
}

func TestLineDecoder_StripsLeadingBOM(t *testing.T) {
	d := NewLineDecoder()
	lines, err := d.Feed([]byte("\xef\xbb\xbfdata: x\n\xef\xbb\xbfdata: y\n"))
	if err != nil {
		t.Fatalf("Feed failed: %v", err)
	}
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2", len(lines))
	}
	if lines[0] != "data: x" {
		t.Errorf("first line = %q, want BOM stripped", lines[0])
	}
	if lines[1] != "\ufeffdata: y" {
		t.Errorf("second line = %q, want BOM kept mid-stream", lines[1])
	}
}

func TestLineDecoder_ReplacesInvalidBytes(t *testing.T) {
	d := NewLineDecoder()
	lines, err := d.Feed([]byte("data: a\xffb\n"))
	if err != nil {
		t.Fatalf("Feed failed: %v", err)
	}
	if len(lines) != 1 || lines[0] != "data: a\uFFFDb" {
		t.Errorf("lines = %q, want replacement character", lines)
	}
}

func TestLineDecoder_TooLarge(t *testing.T) {
	d := NewLineDecoder()
	_, err := d.Feed([]byte(strings.Repeat("x", MaxLineSize+1)))
	if err == nil {
		t.Fatal("expected error for oversized line")
	}
	if !IsFatalFrameError(err) {
		t.Errorf("oversized line should be fatal, got %v", err)
	}
}

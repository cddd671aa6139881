package repair

import (
	"errors"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestParser_StageSelection(t *testing.T) {
	tests := []struct {
		name      string
		candidate string
		wantStage string
	}{
		{"valid", `{"chartPoints": []}`, StageRaw},
		{"trailing comma", `{"chartPoints": [] , }`, StageRepaired},
		{"smart quotes", "{“chartPoints”: []}", StageRepaired},
		{"mixed quote closes last value", `{"chartPoints": [], "summary": "ok”}`, StageRepaired},
		{"mixed quote closes inner value", `{"chartPoints": [], "summary": "ok”, "wealth": "w"}`, StageRepaired},
		{"raw newline in string", "{\"summary\": \"a\nb\", \"chartPoints\": []}", StageRepaired},
		{"trailing prose", `{"chartPoints": []} see {"x": 1}`, StageRecovered},
		{"missing colon", "{\"chartPoints\": [],\n\"orphan\"\n\"summary\": \"ok\"}", StageRecovered},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := NewParser().Parse(tt.candidate)
			if err != nil {
				t.Fatalf("Parse failed: %v", err)
			}
			if res.Stage != tt.wantStage {
				t.Errorf("Stage = %q, want %q", res.Stage, tt.wantStage)
			}
			if _, ok := res.Value.(map[string]any); !ok {
				t.Errorf("Value = %T, want map[string]any", res.Value)
			}
		})
	}
}

func TestParser_MissingColonFiresHook(t *testing.T) {
	var fired int
	p := NewParser(WithFixFunc(func(before, after string) {
		fired++
		if before == after {
			t.Error("hook called without a change")
		}
	}))

	res, err := p.Parse("{\"chartPoints\": [],\n\"orphan\"\n\"summary\": \"ok\"}")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if fired != 1 {
		t.Errorf("fix hook fired %d times, want 1", fired)
	}

	m := res.Value.(map[string]any)
	if v, ok := m["orphan"]; !ok || v != nil {
		t.Errorf("orphan = %v (present %v), want null", v, ok)
	}
	if m["summary"] != "ok" {
		t.Errorf("summary = %v, want ok", m["summary"])
	}
}

func TestParser_FixerDisabled(t *testing.T) {
	p := NewParser(WithFixer(nil), WithFixFunc(func(_, _ string) {
		t.Error("hook must not fire when the fixer is disabled")
	}))

	_, err := p.Parse("{\"chartPoints\": [],\n\"orphan\"\n\"summary\": \"ok\"}")
	if err == nil {
		t.Fatal("expected parse failure without the fixer")
	}

	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("expected *ParseError, got %T", err)
	}
	if pe.Stage != StageRaw {
		t.Errorf("Stage = %q, want raw stage error", pe.Stage)
	}
}

func TestParser_ValidInputDoesNotFire(t *testing.T) {
	p := NewParser(WithFixFunc(func(_, _ string) {
		t.Error("hook must not fire for valid input")
	}))
	if _, err := p.Parse(`{"bazi": ["甲子", "乙丑"], "chartPoints": []}`); err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
}

func TestParser_AllStagesFail(t *testing.T) {
	candidate := `{"chartPoints": [{"age": 1, "reason": }]` + strings.Repeat(" ", 200)

	_, err := NewParser().Parse(candidate)
	if err == nil {
		t.Fatal("expected failure")
	}

	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("expected *ParseError, got %T", err)
	}
	if pe.Stage != StageRaw {
		t.Errorf("Stage = %q, want %q", pe.Stage, StageRaw)
	}
	if pe.Offset <= 0 {
		t.Errorf("Offset = %d, want positive", pe.Offset)
	}
	if !strings.Contains(pe.Excerpt, `"reason": }`) {
		t.Errorf("Excerpt = %q, want text around the failure", pe.Excerpt)
	}
	if len(pe.Excerpt) > 2*ExcerptRadius+6 {
		t.Errorf("Excerpt length = %d, want bounded", len(pe.Excerpt))
	}
	if !strings.Contains(err.Error(), "offset") {
		t.Errorf("error %q should mention the offset", err.Error())
	}
}

func TestParser_UnexpectedEnd(t *testing.T) {
	_, err := NewParser().Parse(`{"chartPoints": [`)
	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("expected *ParseError, got %v", err)
	}
	if !strings.Contains(pe.Reason, "unexpected end") {
		t.Errorf("Reason = %q, want unexpected end", pe.Reason)
	}
}

func TestExcerpt(t *testing.T) {
	text := strings.Repeat("命", 100) // 3 bytes each

	for _, offset := range []int{0, 1, 2, 50, 151, 299, 300, 1000} {
		got := Excerpt(text, offset, 10)
		if !utf8.ValidString(got) {
			t.Errorf("offset %d: excerpt %q is not valid UTF-8", offset, got)
		}
		if len(got) > 26 {
			t.Errorf("offset %d: excerpt length %d exceeds bound", offset, len(got))
		}
	}

	if got := Excerpt("abcdef", 3, 1); got != "cd" {
		t.Errorf("Excerpt = %q, want %q", got, "cd")
	}
	if got := Excerpt("", 3, 1); got != "" {
		t.Errorf("Excerpt of empty text = %q, want empty", got)
	}
}

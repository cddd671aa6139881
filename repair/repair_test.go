package repair

import (
	"encoding/json"
	"math/rand/v2"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestRepair(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"valid unchanged", `{"a": [1, 2], "b": "x"}`, `{"a": [1, 2], "b": "x"}`},
		{"trailing comma object", `{"a": 1,}`, `{"a": 1}`},
		{"trailing comma array", "[1, 2 ,\n]", "[1, 2 \n]"},
		{"repeated trailing commas", `[1,,]`, `[1]`},
		{"comma inside string kept", `{"a": "x, ]"}`, `{"a": "x, ]"}`},
		{"smart delimiters", "{“a”: “b”}", `{"a": "b"}`},
		{"smart quotes in content kept", `{"a": "他说“好”"}`, `{"a": "他说“好”"}`},
		{"mixed close at end of object", `{"chartPoints": [], "summary": "ok”}`, `{"chartPoints": [], "summary": "ok"}`},
		{"mixed close before comma", `{"summary": "ok”, "wealth": "w"}`, `{"summary": "ok", "wealth": "w"}`},
		{"mixed close on key", `{"summary“: "ok"}`, `{"summary": "ok"}`},
		{"mixed close before bracket", `["a”, "b“]`, `["a", "b"]`},
		{"mixed close at end of text", `"ok”`, `"ok"`},
		{"mixed close before newline", "{\"a\": \"x”\n}", "{\"a\": \"x\"\n}"},
		{"smart open straight close", `{“a": 1}`, `{"a": 1}`},
		{"quoted word in content kept", `{"a": "称为“吉”年", "b": 1}`, `{"a": "称为“吉”年", "b": 1}`},
		{"smart single outside", "{‘a’}", `{'a'}`},
		{"smart single inside kept", `{"a": "‘x’"}`, `{"a": "‘x’"}`},
		{"newline in string", "{\"a\": \"line1\nline2\"}", `{"a": "line1\nline2"}`},
		{"crlf and tab in string", "{\"a\": \"x\r\n\ty\"}", `{"a": "x\r\n\ty"}`},
		{"other control char", "{\"a\": \"x\x01y\"}", `{"a": "x\u0001y"}`},
		{"newline outside string kept", "{\n\"a\": 1\n}", "{\n\"a\": 1\n}"},
		{"escaped quote", `{"a": "x\"y,}"}`, `{"a": "x\"y,}"}`},
		{"bom", "\ufeff{\"a\":1}", `{"a":1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Repair(tt.input)
			if got != tt.want {
				t.Errorf("Repair = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRepair_Idempotent(t *testing.T) {
	inputs := []string{
		`{"a": 1,}`,
		"{“a”: “b”, “c”: [1, 2,],}",
		"{\"a\": \"x\ny\",\n\"b\": \"\x02\"}",
		"“a“b”",
		`{"a": "unterminated`,
		`[1,, ,]`,
		"{‘k’: 1}",
		`{"a": "ok”, "b": "x” y”}`,
		`{"a": "x” ”, "b": 1}`,
		"{\"a\": \"x”\n, \"b\": \"y”\nz\"}",
		`{"s": "\“quoted\”"}`,
		"\ufeff{\"a\":\t\"\t\"}",
		`Here is your result: {"chartPoints": [] , }`,
	}

	for _, in := range inputs {
		once := Repair(in)
		twice := Repair(once)
		if once != twice {
			t.Errorf("Repair not idempotent for %q:\n once  = %q\n twice = %q", in, once, twice)
		}
	}
}

func TestRepair_RoundTrip(t *testing.T) {
	original := map[string]any{
		"chartPoints": []any{
			map[string]any{"age": 1.0, "year": 1990.0, "ganZhi": "庚午", "daYun": "童限", "score": 6.0, "reason": "初生之年，家运平稳"},
			map[string]any{"age": 2.0, "year": 1991.0, "ganZhi": "辛未", "daYun": "童限", "score": 5.5, "reason": "体弱宜养"},
		},
		"bazi":         []any{"庚午", "辛巳", "甲子", "丙寅"},
		"summary":      "先抑后扬，中年发迹",
		"summaryScore": 7.0,
		"nested":       map[string]any{"list": []any{}, "empty": map[string]any{}},
	}

	pretty, err := json.MarshalIndent(original, "", "  ")
	if err != nil {
		t.Fatalf("MarshalIndent failed: %v", err)
	}

	rng := rand.New(rand.NewPCG(1, 2))
	tests := []struct {
		name    string
		replace func(i int) (rune, bool)
	}{
		{"all alternating", func(i int) (rune, bool) {
			if i%2 == 0 {
				return '“', true
			}
			return '”', true
		}},
		{"closing only", func(i int) (rune, bool) { return '”', i%2 == 1 }},
		{"opening only", func(i int) (rune, bool) { return '“', i%2 == 0 }},
		{"every third", func(i int) (rune, bool) { return '”', i%3 == 0 }},
		{"swapped styles", func(i int) (rune, bool) {
			if i%2 == 0 {
				return '”', true
			}
			return '“', true
		}},
		{"random subset", func(int) (rune, bool) {
			switch rng.IntN(3) {
			case 0:
				return '“', true
			case 1:
				return '”', true
			default:
				return 0, false
			}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			damaged := injectTrailingCommas(string(pretty))
			damaged = injectSmartQuotes(damaged, tt.replace)
			if err := json.Unmarshal([]byte(damaged), new(any)); err == nil {
				t.Fatal("damaged text should not parse before repair")
			}

			var got any
			if err := json.Unmarshal([]byte(Repair(damaged)), &got); err != nil {
				t.Fatalf("repaired text does not parse: %v\n%s", err, damaged)
			}
			if diff := cmp.Diff(original, got); diff != "" {
				t.Errorf("round trip mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

// injectTrailingCommas adds a comma after the last member of every non-empty
// object and array in indented JSON.
func injectTrailingCommas(s string) string {
	lines := strings.Split(s, "\n")
	for i := 0; i+1 < len(lines); i++ {
		next := strings.TrimSpace(lines[i+1])
		cur := strings.TrimSpace(lines[i])
		if (next == "}" || next == "]" || next == "}," || next == "],") &&
			!strings.HasSuffix(cur, "{") && !strings.HasSuffix(cur, "[") {
			lines[i] += ","
		}
	}
	return strings.Join(lines, "\n")
}

// injectSmartQuotes passes the index of every straight quote to replace and
// substitutes the returned rune when it reports true.
func injectSmartQuotes(s string, replace func(i int) (rune, bool)) string {
	var b strings.Builder
	i := 0
	for _, r := range s {
		if r != '"' {
			b.WriteRune(r)
			continue
		}
		if q, ok := replace(i); ok {
			b.WriteRune(q)
		} else {
			b.WriteRune(r)
		}
		i++
	}
	return b.String()
}

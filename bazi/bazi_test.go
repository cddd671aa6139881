package bazi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/RAGGA-TIME/lifekline/iox"
)

func validQuery() Query {
	return Query{Year: 1990, Month: 3, Day: 15, Hour: 8, Minute: 5, Gender: GenderMale, CalendarType: CalendarSolar}
}

func sampleChart() *Chart {
	return &Chart{
		FourPillars: FourPillars{Year: "庚午", Month: "己卯", Day: "丙寅", Hour: "壬辰"},
		DaYun:       DaYun{StartAge: 4, Direction: "顺", Sequence: []string{"庚辰", "辛巳", "壬午"}},
		Metadata:    Metadata{SolarDatetime: "1990-03-15T08:05:00+08:00", Gender: GenderMale, CalendarType: CalendarSolar},
	}
}

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	ts := httptest.NewServer(h)
	t.Cleanup(ts.Close)
	c, err := NewClient(Config{Endpoint: ts.URL + "/api/bazi"})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	t.Cleanup(iox.CloseFunc(c))
	return c
}

func TestLookup_Success(t *testing.T) {
	var got Query
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/bazi" || r.Method != http.MethodPost {
			t.Errorf("request = %s %s", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		_ = json.NewEncoder(w).Encode(sampleChart())
	})

	chart, err := c.Lookup(t.Context(), validQuery())
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if diff := cmp.Diff(validQuery(), got); diff != "" {
		t.Errorf("query mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(sampleChart(), chart); diff != "" {
		t.Errorf("chart mismatch (-want +got):\n%s", diff)
	}
}

func TestLookup_StatusError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error":"Missing required parameters"}`)
	})

	_, err := c.Lookup(t.Context(), validQuery())
	var se *StatusError
	if !errors.As(err, &se) || se.Code != http.StatusBadRequest {
		t.Fatalf("error = %v, want StatusError 400", err)
	}
	if !strings.Contains(se.Body, "Missing required") {
		t.Errorf("body = %q", se.Body)
	}
}

func TestLookup_MissingPillars(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"daYun":{"startAge":3}}`)
	})
	if _, err := c.Lookup(t.Context(), validQuery()); err == nil {
		t.Fatal("expected error for response without pillars")
	}
}

func TestLookup_InvalidQueryNotSent(t *testing.T) {
	called := false
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) { called = true })

	q := validQuery()
	q.Gender = "unknown"
	if _, err := c.Lookup(t.Context(), q); !errors.Is(err, ErrInvalidQuery) {
		t.Fatalf("error = %v, want ErrInvalidQuery", err)
	}
	if called {
		t.Error("invalid query reached the service")
	}
}

func TestQuery_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Query)
	}{
		{"zero year", func(q *Query) { q.Year = 0 }},
		{"month 13", func(q *Query) { q.Month = 13 }},
		{"day 0", func(q *Query) { q.Day = 0 }},
		{"hour 24", func(q *Query) { q.Hour = 24 }},
		{"minute 60", func(q *Query) { q.Minute = 60 }},
		{"calendar", func(q *Query) { q.CalendarType = "gregorian" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := validQuery()
			tt.mutate(&q)
			if err := q.Validate(); !errors.Is(err, ErrInvalidQuery) {
				t.Errorf("Validate() = %v", err)
			}
		})
	}
	if err := validQuery().Validate(); err != nil {
		t.Errorf("valid query rejected: %v", err)
	}
}

func TestQuery_MergeArgs(t *testing.T) {
	base := validQuery()
	base.BirthPlace = "上海"

	got, err := base.MergeArgs(`{"year":1991,"hour":0,"gender":"female","month":0}`)
	if err != nil {
		t.Fatalf("MergeArgs: %v", err)
	}
	want := base
	want.Year = 1991
	want.Hour = 0
	want.Gender = GenderFemale
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("merged mismatch (-want +got):\n%s", diff)
	}

	if got, err := base.MergeArgs(""); err != nil || got != base {
		t.Errorf("empty args = %+v, %v", got, err)
	}
	if got, err := base.MergeArgs("{not json"); err == nil || got != base {
		t.Errorf("malformed args = %+v, %v", got, err)
	}
}

func TestChart_Summary(t *testing.T) {
	got := sampleChart().Summary()
	for _, want := range []string{"年柱：庚午\n", "时柱：壬辰\n", "起运年龄：4岁\n", "大运方向：顺\n", "大运序列：庚辰 -> 辛巳 -> 壬午"} {
		if !strings.Contains(got, want) {
			t.Errorf("Summary() missing %q:\n%s", want, got)
		}
	}
}

func TestToolResult(t *testing.T) {
	var ok map[string]any
	if err := json.Unmarshal([]byte(ToolResult(sampleChart())), &ok); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if ok["success"] != true || ok["message"] != sampleChart().Summary() {
		t.Errorf("success payload = %v", ok)
	}

	var fail map[string]any
	if err := json.Unmarshal([]byte(ToolFailure(errors.New("timeout"))), &fail); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if fail["success"] != false || fail["error"] != "timeout" || fail["note"] == "" {
		t.Errorf("failure payload = %v", fail)
	}
}

func TestToolDefinition(t *testing.T) {
	tool := ToolDefinition()
	if tool.Type != "function" || tool.Function.Name != ToolName {
		t.Errorf("tool = %+v", tool)
	}
	required, _ := tool.Function.Parameters["required"].([]string)
	if len(required) != 7 {
		t.Errorf("required = %v", required)
	}
	b, err := json.Marshal(tool)
	if err != nil || !strings.Contains(string(b), `"name":"get_bazi_detail"`) {
		t.Errorf("marshal = %s, %v", b, err)
	}
}

func TestNewClient_RequiresEndpoint(t *testing.T) {
	if _, err := NewClient(Config{Endpoint: "  "}); err == nil {
		t.Fatal("expected error")
	}
}

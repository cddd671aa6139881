package report

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// decodeDoc parses a JSON document the way the ingestion pipeline does.
func decodeDoc(t *testing.T, s string) any {
	t.Helper()
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		t.Fatalf("test document invalid: %v", err)
	}
	return v
}

func TestFromValue_DefaultsAbsentFields(t *testing.T) {
	doc := decodeDoc(t, `{"chartPoints": [{"age":1,"year":1990,"ganZhi":"庚午","open":50,"close":55,"high":60,"low":45,"score":55,"reason":"初运平稳"}], "summary": "ok"}`)

	got, err := FromValue(doc)
	if err != nil {
		t.Fatalf("FromValue failed: %v", err)
	}

	if got.Analysis.Summary != "ok" {
		t.Errorf("Summary = %q, want %q", got.Analysis.Summary, "ok")
	}
	if got.Analysis.SummaryScore != 5 {
		t.Errorf("SummaryScore = %v, want 5", got.Analysis.SummaryScore)
	}
	if got.Analysis.Personality != DefaultPersonality {
		t.Errorf("Personality = %q, want %q", got.Analysis.Personality, DefaultPersonality)
	}

	wantPoints := []KLinePoint{{
		Age: 1, Year: 1990, GanZhi: "庚午",
		Open: 50, Close: 55, High: 60, Low: 45, Score: 55,
		Reason: "初运平稳",
	}}
	if diff := cmp.Diff(wantPoints, got.ChartData); diff != "" {
		t.Errorf("ChartData mismatch (-want +got):\n%s", diff)
	}

	want := DefaultAnalysis()
	want.Summary = "ok"
	if diff := cmp.Diff(want, got.Analysis); diff != "" {
		t.Errorf("Analysis mismatch (-want +got):\n%s", diff)
	}
}

func TestFromValue_EmptyChartPoints(t *testing.T) {
	got, err := FromValue(decodeDoc(t, `{"chartPoints": []}`))
	if err != nil {
		t.Fatalf("FromValue failed: %v", err)
	}
	if got.ChartData == nil || len(got.ChartData) != 0 {
		t.Errorf("ChartData = %v, want empty non-nil slice", got.ChartData)
	}
}

func TestFromValue_KeepsProvidedValues(t *testing.T) {
	doc := decodeDoc(t, `{
		"chartPoints": [],
		"bazi": ["庚午", "辛巳", "甲子", "丙寅"],
		"summary": "先抑后扬", "summaryScore": 8,
		"personality": "外柔内刚", "personalityScore": 7.5,
		"industry": "金融", "industryScore": 6,
		"fengShui": "宜东南", "fengShuiScore": 9,
		"wealth": "中年聚财", "wealthScore": 8,
		"marriage": "晚婚为宜", "marriageScore": 6,
		"health": "注意脾胃", "healthScore": 7,
		"family": "六亲和睦", "familyScore": 8,
		"crypto": "宜稳健", "cryptoScore": 4,
		"cryptoYear": "2025 乙巳", "cryptoStyle": "链上Alpha"
	}`)

	got, err := FromValue(doc)
	if err != nil {
		t.Fatalf("FromValue failed: %v", err)
	}

	want := Analysis{
		Bazi:    []string{"庚午", "辛巳", "甲子", "丙寅"},
		Summary: "先抑后扬", SummaryScore: 8,
		Personality: "外柔内刚", PersonalityScore: 7.5,
		Industry: "金融", IndustryScore: 6,
		FengShui: "宜东南", FengShuiScore: 9,
		Wealth: "中年聚财", WealthScore: 8,
		Marriage: "晚婚为宜", MarriageScore: 6,
		Health: "注意脾胃", HealthScore: 7,
		Family: "六亲和睦", FamilyScore: 8,
		Crypto: "宜稳健", CryptoScore: 4,
		CryptoYear: "2025 乙巳", CryptoStyle: "链上Alpha",
	}
	if diff := cmp.Diff(want, got.Analysis); diff != "" {
		t.Errorf("Analysis mismatch (-want +got):\n%s", diff)
	}
}

func TestFromValue_FalsyValuesDefault(t *testing.T) {
	doc := decodeDoc(t, `{"chartPoints": [], "summary": "", "summaryScore": 0, "wealth": null, "healthScore": "abc", "bazi": "甲子"}`)

	got, err := FromValue(doc)
	if err != nil {
		t.Fatalf("FromValue failed: %v", err)
	}
	if got.Analysis.Summary != DefaultSummary {
		t.Errorf("Summary = %q, want default", got.Analysis.Summary)
	}
	if got.Analysis.SummaryScore != DefaultScore {
		t.Errorf("SummaryScore = %v, want default", got.Analysis.SummaryScore)
	}
	if got.Analysis.Wealth != DefaultNarrative {
		t.Errorf("Wealth = %q, want default", got.Analysis.Wealth)
	}
	if got.Analysis.HealthScore != DefaultScore {
		t.Errorf("HealthScore = %v, want default", got.Analysis.HealthScore)
	}
	if len(got.Analysis.Bazi) != 0 {
		t.Errorf("Bazi = %v, want empty", got.Analysis.Bazi)
	}
}

func TestFromValue_NonStringNarratives(t *testing.T) {
	doc := decodeDoc(t, `{"chartPoints": [{"reason": 12}], "summary": 42, "wealth": {"level": "高"}, "health": ["早睡"], "family": true, "marriage": false, "cryptoYear": 2027}`)

	got, err := FromValue(doc)
	if err != nil {
		t.Fatalf("FromValue failed: %v", err)
	}

	tests := []struct {
		field string
		got   string
		want  string
	}{
		{"reason", got.ChartData[0].Reason, "12"},
		{"summary", got.Analysis.Summary, "42"},
		{"wealth", got.Analysis.Wealth, `{"level":"高"}`},
		{"health", got.Analysis.Health, `["早睡"]`},
		{"family", got.Analysis.Family, "true"},
		{"marriage", got.Analysis.Marriage, DefaultNarrative},
		{"cryptoYear", got.Analysis.CryptoYear, "2027"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s = %q, want %q", tt.field, tt.got, tt.want)
		}
	}
}

func TestFromValue_LenientPoints(t *testing.T) {
	doc := decodeDoc(t, `{"chartPoints": [{"age": 2.0, "year": "1991", "open": "48.5", "daYun": "童限", "score": null}]}`)

	got, err := FromValue(doc)
	if err != nil {
		t.Fatalf("FromValue failed: %v", err)
	}
	want := KLinePoint{Age: 2, Year: 1991, Open: 48.5, DaYun: "童限"}
	if diff := cmp.Diff(want, got.ChartData[0]); diff != "" {
		t.Errorf("point mismatch (-want +got):\n%s", diff)
	}
}

func TestFromValue_SchemaErrors(t *testing.T) {
	tests := []struct {
		name      string
		doc       string
		wantField string
	}{
		{"missing chartPoints", `{"summary": "ok"}`, "chartPoints"},
		{"chartPoints null", `{"chartPoints": null}`, "chartPoints"},
		{"chartPoints string", `{"chartPoints": "[]"}`, "chartPoints"},
		{"chartPoints object", `{"chartPoints": {"age": 1}}`, "chartPoints"},
		{"point not object", `{"chartPoints": [{}, 3]}`, "chartPoints[1]"},
		{"document is array", `[{"chartPoints": []}]`, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromValue(decodeDoc(t, tt.doc))
			if err == nil {
				t.Fatal("expected schema error")
			}

			var schemaErr *SchemaError
			if !errors.As(err, &schemaErr) {
				t.Fatalf("expected *SchemaError, got %T: %v", err, err)
			}
			if schemaErr.Field != tt.wantField {
				t.Errorf("Field = %q, want %q (reason %q)", schemaErr.Field, tt.wantField, schemaErr.Reason)
			}
			if !IsSchemaError(err) {
				t.Error("IsSchemaError = false, want true")
			}
		})
	}
}

func TestAnalysis_Sections(t *testing.T) {
	a := DefaultAnalysis()
	sections := a.Sections()
	if len(sections) != 9 {
		t.Fatalf("got %d sections, want 9", len(sections))
	}
	for _, s := range sections {
		if s.Score != DefaultScore {
			t.Errorf("section %s score = %v, want %v", s.Name, s.Score, DefaultScore)
		}
		if s.Text == "" {
			t.Errorf("section %s has empty text", s.Name)
		}
	}
}

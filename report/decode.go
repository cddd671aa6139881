package report

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// FromValue converts a decoded JSON document into a Report.
//
// The document must be an object whose chartPoints field is an array of
// objects; anything else is a *SchemaError. Every other field is optional:
// absent, null, empty or zero values fall back to the placeholders.
func FromValue(doc any) (*Report, error) {
	if err := Validate(doc); err != nil {
		return nil, err
	}

	m, ok := doc.(map[string]any)
	if !ok {
		return nil, &SchemaError{Reason: fmt.Sprintf("expected object, got %T", doc)}
	}
	raw, ok := m[FieldChartPoints].([]any)
	if !ok {
		return nil, &SchemaError{Field: FieldChartPoints, Reason: "expected array"}
	}

	points := make([]KLinePoint, 0, len(raw))
	for i, item := range raw {
		obj, ok := item.(map[string]any)
		if !ok {
			return nil, &SchemaError{
				Field:  fmt.Sprintf("%s[%d]", FieldChartPoints, i),
				Reason: fmt.Sprintf("expected object, got %T", item),
			}
		}
		points = append(points, pointFromMap(obj))
	}

	return &Report{
		ChartData: points,
		Analysis:  analysisFromMap(m),
	}, nil
}

func pointFromMap(m map[string]any) KLinePoint {
	return KLinePoint{
		Age:    int(math.Round(number(m["age"]))),
		Year:   int(math.Round(number(m["year"]))),
		GanZhi: text(m["ganZhi"], ""),
		DaYun:  text(m["daYun"], ""),
		Open:   number(m["open"]),
		Close:  number(m["close"]),
		High:   number(m["high"]),
		Low:    number(m["low"]),
		Score:  number(m["score"]),
		Reason: text(m["reason"], ""),
	}
}

func analysisFromMap(m map[string]any) Analysis {
	return Analysis{
		Bazi:             stringList(m["bazi"]),
		Summary:          text(m["summary"], DefaultSummary),
		SummaryScore:     score(m["summaryScore"]),
		Personality:      text(m["personality"], DefaultPersonality),
		PersonalityScore: score(m["personalityScore"]),
		Industry:         text(m["industry"], DefaultNarrative),
		IndustryScore:    score(m["industryScore"]),
		FengShui:         text(m["fengShui"], DefaultFengShui),
		FengShuiScore:    score(m["fengShuiScore"]),
		Wealth:           text(m["wealth"], DefaultNarrative),
		WealthScore:      score(m["wealthScore"]),
		Marriage:         text(m["marriage"], DefaultNarrative),
		MarriageScore:    score(m["marriageScore"]),
		Health:           text(m["health"], DefaultNarrative),
		HealthScore:      score(m["healthScore"]),
		Family:           text(m["family"], DefaultNarrative),
		FamilyScore:      score(m["familyScore"]),
		Crypto:           text(m["crypto"], DefaultCrypto),
		CryptoScore:      score(m["cryptoScore"]),
		CryptoYear:       text(m["cryptoYear"], DefaultCryptoYear),
		CryptoStyle:      text(m["cryptoStyle"], DefaultCryptoStyle),
	}
}

// text renders any truthy value as a string: strings as is, non-zero
// numbers and true in their JSON spelling, objects and arrays as compact
// JSON. Empty strings, zero, false and null yield def.
func text(v any, def string) string {
	switch t := v.(type) {
	case string:
		if t != "" {
			return t
		}
	case float64:
		if t != 0 {
			return strconv.FormatFloat(t, 'f', -1, 64)
		}
	case bool:
		if t {
			return "true"
		}
	case map[string]any, []any:
		if b, err := json.Marshal(t); err == nil {
			return string(b)
		}
	}
	return def
}

// number reads a JSON number or a numeric string; anything else is 0.
func number(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
			return f
		}
	}
	return 0
}

// score reads a section score; zero, missing or non-numeric is DefaultScore.
func score(v any) float64 {
	if n := number(v); n != 0 {
		return n
	}
	return DefaultScore
}

func stringList(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return []string{}
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		switch s := item.(type) {
		case string:
			out = append(out, s)
		case nil:
		default:
			out = append(out, fmt.Sprint(s))
		}
	}
	return out
}

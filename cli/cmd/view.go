package cmd

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/RAGGA-TIME/lifekline/cli/tui"
	"github.com/RAGGA-TIME/lifekline/report"
)

// narrativeWidth caps narrative text in table output.
const narrativeWidth = 60

// ReportResponse is the output of generate, ingest and inspect report.
type ReportResponse struct {
	ReportID       string         `json:"report_id,omitempty" yaml:"report_id,omitempty"`
	ParentReportID string         `json:"parent_report_id,omitempty" yaml:"parent_report_id,omitempty"`
	Attempt        int            `json:"attempt,omitempty" yaml:"attempt,omitempty"`
	Provider       string         `json:"provider,omitempty" yaml:"provider,omitempty"`
	Model          string         `json:"model,omitempty" yaml:"model,omitempty"`
	Outcome        string         `json:"outcome" yaml:"outcome"`
	Message        string         `json:"message,omitempty" yaml:"message,omitempty"`
	Stage          string         `json:"stage,omitempty" yaml:"stage,omitempty"`
	Repairs        int            `json:"repairs" yaml:"repairs"`
	DurationMs     int64          `json:"duration_ms,omitempty" yaml:"duration_ms,omitempty"`
	StoragePath    string         `json:"storage_path,omitempty" yaml:"storage_path,omitempty"`
	TranscriptPath string         `json:"transcript_path,omitempty" yaml:"transcript_path,omitempty"`
	CreatedAt      string         `json:"created_at,omitempty" yaml:"created_at,omitempty"`
	Report         *report.Report `json:"report,omitempty" yaml:"report,omitempty"`
}

// Rows implements render.Tabular: identity rows, then one row per section.
func (r *ReportResponse) Rows() [][]string {
	rows := [][]string{{"field", "score", "value"}}
	add := func(field, value string) {
		if value != "" {
			rows = append(rows, []string{field, "", value})
		}
	}
	add("report_id", r.ReportID)
	add("parent_report_id", r.ParentReportID)
	if r.Attempt > 0 {
		add("attempt", strconv.Itoa(r.Attempt))
	}
	add("provider", r.Provider)
	add("model", r.Model)
	add("outcome", r.Outcome)
	add("message", r.Message)
	add("stage", r.Stage)
	add("storage_path", r.StoragePath)
	add("transcript_path", r.TranscriptPath)
	add("created_at", r.CreatedAt)

	if r.Report == nil {
		return rows
	}
	a := r.Report.Analysis
	add("chart_points", strconv.Itoa(len(r.Report.ChartData)))
	if len(r.Report.ChartData) > 0 {
		closes := make([]float64, len(r.Report.ChartData))
		for i, p := range r.Report.ChartData {
			closes[i] = p.Close
		}
		add("chart", tui.Sparkline(closes, narrativeWidth))
	}
	for _, s := range a.Sections() {
		rows = append(rows, []string{s.Name, strconv.FormatFloat(s.Score, 'f', -1, 64), clip(s.Text, narrativeWidth)})
	}
	add("cryptoYear", a.CryptoYear)
	add("cryptoStyle", a.CryptoStyle)
	return rows
}

// TUIData converts the response for the report view.
func (r *ReportResponse) TUIData() *tui.ReportData {
	return &tui.ReportData{
		ReportID: r.ReportID,
		Provider: r.Provider,
		Model:    r.Model,
		Stage:    r.Stage,
		Outcome:  r.Outcome,
		Report:   r.Report,
	}
}

// clip collapses whitespace and shortens s to n runes.
func clip(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return fmt.Sprintf("%s…", string([]rune(s)[:n-1]))
}

package lode

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/justapithecus/lode/lode"
)

// ErrReportNotFound is returned when no report record matches.
var ErrReportNotFound = errors.New("report not found")

// ReportSummary is one row of ListReports.
type ReportSummary struct {
	ReportID     string  `json:"report_id"`
	Attempt      int     `json:"attempt"`
	Provider     string  `json:"provider"`
	Model        string  `json:"model"`
	Day          string  `json:"day"`
	Stage        string  `json:"stage"`
	CreatedAt    string  `json:"created_at"`
	ChartPoints  int     `json:"chart_points"`
	SummaryScore float64 `json:"summary_score"`
}

// ListOptions filters ListReports.
type ListOptions struct {
	// Provider restricts results to one provider.
	Provider string
	// Day restricts results to one partition day (YYYY-MM-DD).
	Day string
	// Limit caps the number of results; 0 means no limit.
	Limit int
}

// QueryReport returns the most recent record of reportID.
func QueryReport(ctx context.Context, ds lode.Dataset, reportID string) (*ReportRecord, error) {
	if reportID == "" {
		return nil, fmt.Errorf("report id is required")
	}
	var found *ReportRecord
	err := walkReports(ctx, ds, ListOptions{}, reportID, func(rec *ReportRecord) bool {
		found = rec
		return false
	})
	if err != nil {
		return nil, err
	}
	if found == nil {
		return nil, fmt.Errorf("%w: %s", ErrReportNotFound, reportID)
	}
	return found, nil
}

// ListReports returns stored reports, most recent first.
func ListReports(ctx context.Context, ds lode.Dataset, opts ListOptions) ([]ReportSummary, error) {
	var out []ReportSummary
	seen := make(map[string]struct{})
	err := walkReports(ctx, ds, opts, "", func(rec *ReportRecord) bool {
		if _, dup := seen[rec.ReportID]; dup {
			return true
		}
		seen[rec.ReportID] = struct{}{}
		out = append(out, summarize(rec))
		return opts.Limit <= 0 || len(out) < opts.Limit
	})
	return out, err
}

// walkReports visits report records latest first until fn returns false.
func walkReports(ctx context.Context, ds lode.Dataset, opts ListOptions, reportID string, fn func(*ReportRecord) bool) error {
	f := recordFilter{kind: RecordKindReport, provider: opts.Provider, day: opts.Day, reportID: reportID}
	return walkRecords(ctx, ds, f, func(m map[string]any) (bool, error) {
		rec, err := fromRecordMap(m)
		if err != nil {
			return false, err
		}
		return fn(rec), nil
	})
}

func summarize(rec *ReportRecord) ReportSummary {
	s := ReportSummary{
		ReportID:  rec.ReportID,
		Attempt:   rec.Attempt,
		Provider:  rec.Provider,
		Model:     rec.Model,
		Day:       rec.Day,
		Stage:     rec.Stage,
		CreatedAt: rec.CreatedAt,
	}
	if rec.Report != nil {
		s.ChartPoints = len(rec.Report.ChartData)
		s.SummaryScore = rec.Report.Analysis.SummaryScore
	}
	return s
}

// ReadTranscript reads a transcript written by WriteTranscript.
func ReadTranscript(ctx context.Context, factory lode.StoreFactory, path string) (string, error) {
	store, err := factory()
	if err != nil {
		return "", WrapInitError(err, path)
	}
	rc, err := store.Get(ctx, path)
	if err != nil {
		return "", WrapReadError(err, path)
	}
	defer func() { _ = rc.Close() }()

	b, err := io.ReadAll(rc)
	if err != nil {
		return "", WrapReadError(err, path)
	}
	return string(b), nil
}

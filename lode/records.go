package lode

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/RAGGA-TIME/lifekline/metrics"
	"github.com/RAGGA-TIME/lifekline/report"
	"github.com/RAGGA-TIME/lifekline/types"
)

// RecordKind discriminator values. record_kind is also the last partition key.
const (
	RecordKindReport  = "report"
	RecordKindMetrics = "metrics"
)

// ReportRecord is the storage format of a completed report.
type ReportRecord struct {
	RecordKind      string         `json:"record_kind"`
	ContractVersion string         `json:"contract_version"`
	ReportID        string         `json:"report_id"`
	ParentReportID  *string        `json:"parent_report_id,omitempty"`
	Attempt         int            `json:"attempt"`
	Provider        string         `json:"provider"`
	Model           string         `json:"model"`
	Day             string         `json:"day"`
	Stage           string         `json:"stage"`
	CreatedAt       string         `json:"created_at"`
	Report          *report.Report `json:"report"`
}

// NewReportRecord builds the record for a report produced under meta.
func NewReportRecord(meta *types.ReportMeta, p Partition, model, stage string, rep *report.Report, createdAt time.Time) *ReportRecord {
	return &ReportRecord{
		RecordKind:      RecordKindReport,
		ContractVersion: types.ContractVersion,
		ReportID:        meta.ReportID,
		ParentReportID:  meta.ParentReportID,
		Attempt:         meta.Attempt,
		Provider:        p.Provider,
		Model:           model,
		Day:             p.Day,
		Stage:           stage,
		CreatedAt:       createdAt.UTC().Format(time.RFC3339Nano),
		Report:          rep,
	}
}

// Partition returns the partition the record is written to.
func (r *ReportRecord) Partition() Partition {
	return Partition{Provider: r.Provider, Day: r.Day, ReportID: r.ReportID}
}

// toReportRecordMap converts a ReportRecord to a map for Lode storage.
// Lode HiveLayout requires records as map[string]any.
func toReportRecordMap(r *ReportRecord) map[string]any {
	m := map[string]any{
		"record_kind":      RecordKindReport,
		"contract_version": r.ContractVersion,
		"report_id":        r.ReportID,
		"attempt":          r.Attempt,
		"provider":         r.Provider,
		"model":            r.Model,
		"day":              r.Day,
		"stage":            r.Stage,
		"created_at":       r.CreatedAt,
		"report":           r.Report,
	}
	if r.ParentReportID != nil {
		m["parent_report_id"] = *r.ParentReportID
	}
	return m
}

// fromRecordMap decodes a stored report record.
func fromRecordMap(m map[string]any) (*ReportRecord, error) {
	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode stored record: %w", err)
	}
	var rec ReportRecord
	if err := json.Unmarshal(b, &rec); err != nil {
		return nil, fmt.Errorf("decode stored record: %w", err)
	}
	return &rec, nil
}

// toMetricsRecordMap converts a metrics snapshot to a map for Lode storage.
func toMetricsRecordMap(p Partition, snap metrics.Snapshot, completedAt time.Time) map[string]any {
	return map[string]any{
		"record_kind":              RecordKindMetrics,
		"ts":                       completedAt.UTC().Format(time.RFC3339Nano),
		"provider":                 p.Provider,
		"day":                      p.Day,
		"report_id":                p.ReportID,
		"model":                    snap.Model,
		"storage":                  snap.StorageBackend,
		"reports_started":          snap.ReportsStarted,
		"reports_completed":        snap.ReportsCompleted,
		"reports_failed":           snap.ReportsFailed,
		"failed_by_kind":           snap.FailedByKind,
		"stream_chunks":            snap.Stream.Chunks,
		"stream_bytes":             snap.Stream.Bytes,
		"stream_frames":            snap.Stream.Frames,
		"data_frames":              snap.Stream.DataFrames,
		"skipped_frames":           snap.Stream.SkippedFrames,
		"drained_frames":           snap.Stream.DrainedFrames,
		"deltas":                   snap.Stream.Deltas,
		"text_bytes":               snap.TextBytes,
		"parsed_by_stage":          snap.ParsedByStage,
		"heuristic_rewrites":       snap.HeuristicRewrites,
		"provider_request_success": snap.ProviderRequestSuccess,
		"provider_request_failure": snap.ProviderRequestFailure,
		"bazi_lookup_success":      snap.BaziLookupSuccess,
		"bazi_lookup_failure":      snap.BaziLookupFailure,
		"lode_write_success":       snap.LodeWriteSuccess,
		"lode_write_failure":       snap.LodeWriteFailure,
		"publish_success":          snap.PublishSuccess,
		"publish_failure":          snap.PublishFailure,
	}
}

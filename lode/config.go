// Package lode persists generated reports to Lode datasets.
//
// Records are Hive-partitioned by provider/day/report_id/record_kind.
// Reports and metrics are dataset records; transcripts of failed answers
// are stored as sidecar files next to them.
package lode

import (
	"context"
	"time"

	"github.com/RAGGA-TIME/lifekline/metrics"
)

// DefaultDataset is the dataset every client writes to unless overridden.
const DefaultDataset = "lifekline"

// partitionKeys is the Hive layout shared by the write and read paths.
var partitionKeys = []string{"provider", "day", "report_id", "record_kind"}

// DeriveDay computes the partition day from the generation start time.
// Format: YYYY-MM-DD in UTC.
func DeriveDay(startTime time.Time) string {
	return startTime.UTC().Format("2006-01-02")
}

// Partition locates the records of one report.
type Partition struct {
	// Provider is the model provider that produced the report.
	Provider string
	// Day is derived from the generation start time (YYYY-MM-DD UTC).
	Day string
	// ReportID is the report identifier.
	ReportID string
}

// Writer abstracts report persistence.
type Writer interface {
	// WriteReport persists a completed report.
	WriteReport(ctx context.Context, rec *ReportRecord) error

	// WriteTranscript stores the raw answer text of a failed report and
	// returns the storage path.
	WriteTranscript(ctx context.Context, p Partition, text string) (string, error)

	// WriteMetrics persists the metrics snapshot of a generation.
	WriteMetrics(ctx context.Context, p Partition, snap metrics.Snapshot, completedAt time.Time) error

	// PartitionPath returns the storage prefix of a report's records.
	PartitionPath(p Partition) string

	// Close releases client resources.
	Close() error
}

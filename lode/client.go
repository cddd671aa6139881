package lode

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/justapithecus/lode/lode"

	"github.com/RAGGA-TIME/lifekline/metrics"
)

// TranscriptFile is the sidecar file name of a stored transcript.
const TranscriptFile = "transcript.txt"

// LodeClient is a Lode-backed implementation of Writer.
// Uses Lode's HiveLayout with partition keys: provider/day/report_id/record_kind.
type LodeClient struct {
	dataset      lode.Dataset
	datasetID    string
	storeFactory lode.StoreFactory

	storeOnce sync.Once
	store     lode.Store
	storeErr  error
}

// NewLodeClientWithFactory creates a new Lode client with a custom store factory.
// Use lode.NewMemoryFactory() for testing.
func NewLodeClientWithFactory(dataset string, factory lode.StoreFactory) (*LodeClient, error) {
	if dataset == "" {
		dataset = DefaultDataset
	}
	ds, err := newDataset(dataset, factory)
	if err != nil {
		return nil, WrapInitError(err, dataset)
	}
	return &LodeClient{
		dataset:      ds,
		datasetID:    dataset,
		storeFactory: factory,
	}, nil
}

// Dataset returns the underlying dataset for queries.
func (c *LodeClient) Dataset() lode.Dataset {
	return c.dataset
}

// WriteReport writes a completed report record.
func (c *LodeClient) WriteReport(ctx context.Context, rec *ReportRecord) error {
	if rec == nil || rec.Report == nil {
		return fmt.Errorf("report record is empty")
	}
	if rec.ReportID == "" {
		return fmt.Errorf("report record missing report_id")
	}
	if _, err := c.dataset.Write(ctx, []any{toReportRecordMap(rec)}, lode.Metadata{}); err != nil {
		return WrapWriteError(err, c.PartitionPath(rec.Partition()))
	}
	return nil
}

// WriteMetrics writes a metrics snapshot record.
func (c *LodeClient) WriteMetrics(ctx context.Context, p Partition, snap metrics.Snapshot, completedAt time.Time) error {
	record := toMetricsRecordMap(p, snap, completedAt)
	if _, err := c.dataset.Write(ctx, []any{record}, lode.Metadata{}); err != nil {
		return WrapWriteError(err, c.PartitionPath(p))
	}
	return nil
}

// WriteTranscript writes the raw answer text as a sidecar file, bypassing
// the dataset's segment and manifest machinery.
func (c *LodeClient) WriteTranscript(ctx context.Context, p Partition, text string) (string, error) {
	store, err := c.getOrCreateStore()
	if err != nil {
		return "", WrapInitError(err, c.datasetID)
	}
	path := c.transcriptPath(p)
	if err := store.Put(ctx, path, strings.NewReader(text)); err != nil {
		return "", WrapWriteError(err, path)
	}
	return path, nil
}

// Close releases client resources.
func (c *LodeClient) Close() error {
	// Dataset doesn't require explicit close in current Lode API
	return nil
}

// getOrCreateStore lazily initializes the Store from the factory.
func (c *LodeClient) getOrCreateStore() (lode.Store, error) {
	c.storeOnce.Do(func() {
		c.store, c.storeErr = c.storeFactory()
	})
	return c.store, c.storeErr
}

// PartitionPath renders the Hive prefix of a report.
func (c *LodeClient) PartitionPath(p Partition) string {
	return fmt.Sprintf("datasets/%s/partitions/provider=%s/day=%s/report_id=%s",
		c.datasetID, p.Provider, p.Day, p.ReportID)
}

// transcriptPath computes the Hive-partitioned path of a transcript.
// Format: datasets/<dataset>/partitions/provider=<p>/day=<d>/report_id=<r>/files/transcript.txt
func (c *LodeClient) transcriptPath(p Partition) string {
	return c.PartitionPath(p) + "/files/" + TranscriptFile
}

// Verify LodeClient implements Writer.
var _ Writer = (*LodeClient)(nil)

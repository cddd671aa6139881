// Package metrics provides per-report metrics collection.
//
// The Collector accumulates counters while a single report is generated. It
// is a leaf package with no internal dependencies. Stream counters are
// absorbed from the decoder at the end of ingestion rather than recorded
// live, avoiding double-counting.
package metrics

import "sync"

// StreamCounters mirrors the decoder's frame counters.
type StreamCounters struct {
	Chunks        int64
	Bytes         int64
	Frames        int64
	DataFrames    int64
	CommentFrames int64
	BlankFrames   int64
	FieldFrames   int64
	SkippedFrames int64
	DrainedFrames int64
	Deltas        int64
}

// Snapshot is an immutable point-in-time view of all metrics.
// Returned by Collector.Snapshot(). Safe to read concurrently after creation.
type Snapshot struct {
	// Report lifecycle
	ReportsStarted   int64
	ReportsCompleted int64
	ReportsFailed    int64
	FailedByKind     map[string]int64

	// Stream (absorbed from the decoder at ingestion end)
	Stream    StreamCounters
	TextBytes int64

	// Parse
	ParsedByStage     map[string]int64
	HeuristicRewrites int64

	// Upstream calls
	ProviderRequestSuccess int64
	ProviderRequestFailure int64
	BaziLookupSuccess      int64
	BaziLookupFailure      int64

	// Lode / Storage
	LodeWriteSuccess int64
	LodeWriteFailure int64

	// Adapter
	PublishSuccess int64
	PublishFailure int64

	// Dimensions (informational, set at construction)
	Provider       string
	Model          string
	StorageBackend string
	ReportID       string
}

// Collector accumulates metrics during a single report generation.
// Thread-safe via sync.Mutex. All methods are nil-receiver safe.
type Collector struct {
	mu sync.Mutex

	reportsStarted   int64
	reportsCompleted int64
	reportsFailed    int64
	failedByKind     map[string]int64

	stream    StreamCounters
	textBytes int64

	parsedByStage     map[string]int64
	heuristicRewrites int64

	providerRequestSuccess int64
	providerRequestFailure int64
	baziLookupSuccess      int64
	baziLookupFailure      int64

	lodeWriteSuccess int64
	lodeWriteFailure int64

	publishSuccess int64
	publishFailure int64

	provider       string
	model          string
	storageBackend string
	reportID       string
}

// NewCollector creates a Collector with dimension labels.
// storageBackend is "none" when reports are not persisted.
func NewCollector(provider, model, storageBackend, reportID string) *Collector {
	return &Collector{
		failedByKind:   make(map[string]int64),
		parsedByStage:  make(map[string]int64),
		provider:       provider,
		model:          model,
		storageBackend: storageBackend,
		reportID:       reportID,
	}
}

// add increments a counter under the lock. Callers check for a nil receiver.
func (c *Collector) add(counter *int64) {
	c.mu.Lock()
	*counter++
	c.mu.Unlock()
}

// --- Report lifecycle ---

// IncReportStarted records the start of a generation.
func (c *Collector) IncReportStarted() {
	if c == nil {
		return
	}
	c.add(&c.reportsStarted)
}

// IncReportCompleted records a report that parsed and validated.
func (c *Collector) IncReportCompleted() {
	if c == nil {
		return
	}
	c.add(&c.reportsCompleted)
}

// IncReportFailed records a failed generation, labelled by failure kind.
func (c *Collector) IncReportFailed(kind string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.reportsFailed++
	c.failedByKind[kind]++
	c.mu.Unlock()
}

// --- Stream ---

// AbsorbStream copies the decoder counters and the final text size.
// Called once when ingestion stops reading.
func (c *Collector) AbsorbStream(counters StreamCounters, textBytes int64) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.stream = counters
	c.textBytes = textBytes
	c.mu.Unlock()
}

// --- Parse ---

// IncParsedByStage records which recovery stage produced the document.
func (c *Collector) IncParsedByStage(stage string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.parsedByStage[stage]++
	c.mu.Unlock()
}

// IncHeuristicRewrite records a fixer rewriting the candidate text.
func (c *Collector) IncHeuristicRewrite() {
	if c == nil {
		return
	}
	c.add(&c.heuristicRewrites)
}

// --- Upstream calls ---

// IncProviderRequestSuccess records an accepted model request.
func (c *Collector) IncProviderRequestSuccess() {
	if c == nil {
		return
	}
	c.add(&c.providerRequestSuccess)
}

// IncProviderRequestFailure records a rejected or failed model request.
func (c *Collector) IncProviderRequestFailure() {
	if c == nil {
		return
	}
	c.add(&c.providerRequestFailure)
}

// IncBaziLookupSuccess records a successful chart calculation.
func (c *Collector) IncBaziLookupSuccess() {
	if c == nil {
		return
	}
	c.add(&c.baziLookupSuccess)
}

// IncBaziLookupFailure records a failed chart calculation.
func (c *Collector) IncBaziLookupFailure() {
	if c == nil {
		return
	}
	c.add(&c.baziLookupFailure)
}

// --- Lode / Storage ---
// Lode counters are per-call, not per-record.

// IncLodeWriteSuccess records a successful Lode write operation.
func (c *Collector) IncLodeWriteSuccess() {
	if c == nil {
		return
	}
	c.add(&c.lodeWriteSuccess)
}

// IncLodeWriteFailure records a failed Lode write operation.
func (c *Collector) IncLodeWriteFailure() {
	if c == nil {
		return
	}
	c.add(&c.lodeWriteFailure)
}

// --- Adapter ---

// IncPublishSuccess records a delivered completion event.
func (c *Collector) IncPublishSuccess() {
	if c == nil {
		return
	}
	c.add(&c.publishSuccess)
}

// IncPublishFailure records an undelivered completion event.
func (c *Collector) IncPublishFailure() {
	if c == nil {
		return
	}
	c.add(&c.publishFailure)
}

// --- Snapshot ---

// Snapshot returns an immutable point-in-time view of all metrics.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	return Snapshot{
		ReportsStarted:   c.reportsStarted,
		ReportsCompleted: c.reportsCompleted,
		ReportsFailed:    c.reportsFailed,
		FailedByKind:     copyCounts(c.failedByKind),

		Stream:    c.stream,
		TextBytes: c.textBytes,

		ParsedByStage:     copyCounts(c.parsedByStage),
		HeuristicRewrites: c.heuristicRewrites,

		ProviderRequestSuccess: c.providerRequestSuccess,
		ProviderRequestFailure: c.providerRequestFailure,
		BaziLookupSuccess:      c.baziLookupSuccess,
		BaziLookupFailure:      c.baziLookupFailure,

		LodeWriteSuccess: c.lodeWriteSuccess,
		LodeWriteFailure: c.lodeWriteFailure,

		PublishSuccess: c.publishSuccess,
		PublishFailure: c.publishFailure,

		Provider:       c.provider,
		Model:          c.model,
		StorageBackend: c.storageBackend,
		ReportID:       c.reportID,
	}
}

func copyCounts(m map[string]int64) map[string]int64 {
	out := make(map[string]int64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

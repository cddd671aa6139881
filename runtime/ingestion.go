package runtime

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/RAGGA-TIME/lifekline/log"
	"github.com/RAGGA-TIME/lifekline/metrics"
	"github.com/RAGGA-TIME/lifekline/repair"
	"github.com/RAGGA-TIME/lifekline/report"
	"github.com/RAGGA-TIME/lifekline/sse"
)

// IngestionError classifies ingestion errors for outcome determination.
type IngestionError struct {
	// Kind is the failure class.
	Kind IngestionErrorKind
	// Err is the underlying error.
	Err error
}

// IngestionErrorKind classifies ingestion errors.
type IngestionErrorKind int

const (
	// IngestionErrorTransport indicates the stream failed or ended before [DONE].
	IngestionErrorTransport IngestionErrorKind = iota
	// IngestionErrorCanceled indicates context cancellation.
	IngestionErrorCanceled
	// IngestionErrorEmptyResponse indicates the stream carried no answer text.
	IngestionErrorEmptyResponse
	// IngestionErrorMalformedReport indicates no parse stage produced a document.
	IngestionErrorMalformedReport
	// IngestionErrorInvalidSchema indicates the document lacks usable chart data.
	IngestionErrorInvalidSchema
)

// String returns the metric and outcome label of the kind.
func (k IngestionErrorKind) String() string {
	switch k {
	case IngestionErrorTransport:
		return "transport_failure"
	case IngestionErrorCanceled:
		return "canceled"
	case IngestionErrorEmptyResponse:
		return "empty_response"
	case IngestionErrorMalformedReport:
		return "malformed_report"
	case IngestionErrorInvalidSchema:
		return "invalid_schema"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

func (e *IngestionError) Error() string {
	return e.Err.Error()
}

func (e *IngestionError) Unwrap() error {
	return e.Err
}

func ingestionKind(err error) (IngestionErrorKind, bool) {
	var ingErr *IngestionError
	if errors.As(err, &ingErr) {
		return ingErr.Kind, true
	}
	return 0, false
}

// IsTransportError returns true if the stream itself failed.
func IsTransportError(err error) bool {
	kind, ok := ingestionKind(err)
	return ok && kind == IngestionErrorTransport
}

// IsCanceledError returns true if the error is due to context cancellation.
func IsCanceledError(err error) bool {
	kind, ok := ingestionKind(err)
	return ok && kind == IngestionErrorCanceled
}

// IsEmptyResponse returns true if the stream produced no answer text.
func IsEmptyResponse(err error) bool {
	kind, ok := ingestionKind(err)
	return ok && kind == IngestionErrorEmptyResponse
}

// IsMalformedReport returns true if no JSON document could be recovered.
func IsMalformedReport(err error) bool {
	kind, ok := ingestionKind(err)
	return ok && kind == IngestionErrorMalformedReport
}

// IsInvalidSchema returns true if the document had no usable chart data.
func IsInvalidSchema(err error) bool {
	kind, ok := ingestionKind(err)
	return ok && kind == IngestionErrorInvalidSchema
}

// IngestionState is the position of an engine in its lifecycle.
type IngestionState int

const (
	// StateStreaming reads deltas and accumulates text.
	StateStreaming IngestionState = iota
	// StateDraining reads the remainder of the stream after [DONE].
	StateDraining
	// StateExtracting locates the JSON candidate and runs the raw stage.
	StateExtracting
	// StateRepairing runs the repaired and recovered stages.
	StateRepairing
	// StateDone holds a report.
	StateDone
	// StateFailed holds an error.
	StateFailed
)

func (s IngestionState) String() string {
	switch s {
	case StateStreaming:
		return "streaming"
	case StateDraining:
		return "draining"
	case StateExtracting:
		return "extracting"
	case StateRepairing:
		return "repairing"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// DeltaSource yields answer text fragments in order.
// Next returns io.EOF when the answer is complete.
type DeltaSource interface {
	Next(ctx context.Context) (string, error)
}

// statsSource is implemented by sources that count SSE frames.
type statsSource interface {
	Stats() sse.Stats
}

// ProgressFunc observes the accumulated answer text after each delta.
// It runs on the ingestion goroutine; it must not retain the engine.
type ProgressFunc func(accumulated string)

// IngestionConfig configures an IngestionEngine.
type IngestionConfig struct {
	// Logger receives state transitions and warnings. Nil discards them.
	Logger *log.Logger
	// Collector records stream and parse counters. Nil disables metrics.
	Collector *metrics.Collector
	// AllowTruncated parses whatever text arrived when the stream ends or
	// fails before [DONE], instead of failing with a transport error.
	AllowTruncated bool
	// DisableColonHeuristic turns off the missing-colon rewrite in the
	// recovered stage.
	DisableColonHeuristic bool
	// Fixer replaces the missing-colon rewrite. Ignored when
	// DisableColonHeuristic is set.
	Fixer repair.Fixer
}

// IngestionEngine turns one delta stream into one report.
// An engine is single-use; its accumulated text is never shared.
//
// Lifecycle:
//
//	Streaming -> Draining -> Extracting -> Repairing(0..2) -> Done | Failed
type IngestionEngine struct {
	source    DeltaSource
	config    IngestionConfig
	logger    *log.Logger
	collector *metrics.Collector

	text    strings.Builder
	state   IngestionState
	repairs int
	stage   string
	report  *report.Report
	err     error
}

// NewIngestionEngine creates an engine reading from src.
func NewIngestionEngine(src DeltaSource, config IngestionConfig) *IngestionEngine {
	logger := config.Logger
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &IngestionEngine{
		source:    src,
		config:    config,
		logger:    logger,
		collector: config.Collector,
		state:     StateStreaming,
	}
}

// State returns the current lifecycle state.
func (e *IngestionEngine) State() IngestionState {
	return e.state
}

// Text returns the answer text accumulated so far.
func (e *IngestionEngine) Text() string {
	return e.text.String()
}

// Stage returns the parse stage that produced the report, or "".
func (e *IngestionEngine) Stage() string {
	return e.stage
}

// Repairs returns how many repair stages ran.
func (e *IngestionEngine) Repairs() int {
	return e.repairs
}

// Report returns the parsed report once the engine is Done.
func (e *IngestionEngine) Report() *report.Report {
	return e.report
}

// Err returns the terminal error, if the engine failed.
func (e *IngestionEngine) Err() error {
	return e.err
}

// Run reads the source to completion and parses the accumulated text.
// Returns:
//   - a report on success
//   - *IngestionError with Kind=IngestionErrorTransport: the stream failed
//   - *IngestionError with Kind=IngestionErrorCanceled: ctx was canceled
//   - *IngestionError with Kind=IngestionErrorEmptyResponse: no answer text
//   - *IngestionError with Kind=IngestionErrorMalformedReport: no JSON recovered
//   - *IngestionError with Kind=IngestionErrorInvalidSchema: chartPoints unusable
func (e *IngestionEngine) Run(ctx context.Context, onProgress ProgressFunc) (*report.Report, error) {
	if e.state != StateStreaming {
		return nil, errors.New("ingestion engine already ran")
	}

	if err := e.stream(ctx, onProgress); err != nil {
		return nil, e.fail(err)
	}
	e.absorbStats()

	if e.text.Len() == 0 {
		return nil, e.fail(&IngestionError{
			Kind: IngestionErrorEmptyResponse,
			Err:  errors.New("model returned no content"),
		})
	}

	rep, err := e.parse(e.text.String())
	if err != nil {
		return nil, e.fail(err)
	}

	e.report = rep
	e.transition(StateDone, map[string]any{
		"stage":        e.stage,
		"chart_points": len(rep.ChartData),
	})
	return rep, nil
}

func (e *IngestionEngine) stream(ctx context.Context, onProgress ProgressFunc) error {
	for {
		delta, err := e.source.Next(ctx)
		if err == nil {
			e.text.WriteString(delta)
			if onProgress != nil {
				onProgress(e.text.String())
			}
			e.checkDraining(false)
			continue
		}

		e.checkDraining(errors.Is(err, io.EOF))
		switch {
		case errors.Is(err, io.EOF):
			return nil
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			e.absorbStats()
			return &IngestionError{Kind: IngestionErrorCanceled, Err: fmt.Errorf("ingestion canceled: %w", err)}
		case sse.IsTruncated(err) && e.config.AllowTruncated:
			e.logger.Warn("stream ended before [DONE], parsing partial text", map[string]any{
				"error":      err.Error(),
				"text_bytes": e.text.Len(),
			})
			return nil
		default:
			e.absorbStats()
			e.logger.Error("stream failed", map[string]any{
				"error":      err.Error(),
				"text_bytes": e.text.Len(),
			})
			return &IngestionError{Kind: IngestionErrorTransport, Err: fmt.Errorf("stream failed: %w", err)}
		}
	}
}

// checkDraining moves to Draining once the source has seen [DONE], or at
// a clean end of stream for sources that expose no stats.
func (e *IngestionEngine) checkDraining(eof bool) {
	if e.state != StateStreaming {
		return
	}
	src, ok := e.source.(statsSource)
	if !eof && (!ok || !src.Stats().DoneSeen) {
		return
	}
	e.transition(StateDraining, map[string]any{"text_bytes": e.text.Len()})
}

func (e *IngestionEngine) absorbStats() {
	src, ok := e.source.(statsSource)
	if !ok {
		e.collector.AbsorbStream(metrics.StreamCounters{}, int64(e.text.Len()))
		return
	}
	st := src.Stats()
	if st.DrainErr != nil {
		e.logger.Debug("read error after [DONE] ignored", map[string]any{"error": st.DrainErr.Error()})
	}
	e.collector.AbsorbStream(metrics.StreamCounters{
		Chunks:        st.Chunks,
		Bytes:         st.Bytes,
		Frames:        st.Frames,
		DataFrames:    st.DataFrames,
		CommentFrames: st.Comments,
		BlankFrames:   st.Blanks,
		FieldFrames:   st.Fields,
		SkippedFrames: st.Skipped,
		DrainedFrames: st.Drained,
		Deltas:        st.Deltas,
	}, int64(e.text.Len()))
}

func (e *IngestionEngine) parse(text string) (*report.Report, error) {
	e.transition(StateExtracting, map[string]any{"text_bytes": len(text)})

	candidate, err := repair.ExtractCandidate(text)
	if err != nil {
		return nil, &IngestionError{Kind: IngestionErrorMalformedReport, Err: err}
	}

	var first error
	for i, stage := range e.parser().Stages() {
		if i > 0 {
			e.repairs++
			e.transition(StateRepairing, map[string]any{"stage": stage.Name, "attempt": e.repairs})
		}
		doc, err := stage.Parse(candidate)
		if err != nil {
			e.logger.Debug("parse stage failed", map[string]any{
				"stage": stage.Name,
				"error": err.Error(),
			})
			if first == nil {
				first = err
			}
			continue
		}

		e.stage = stage.Name
		e.collector.IncParsedByStage(stage.Name)
		rep, err := report.FromValue(doc)
		if err != nil {
			return nil, &IngestionError{Kind: IngestionErrorInvalidSchema, Err: err}
		}
		return rep, nil
	}

	return nil, &IngestionError{
		Kind: IngestionErrorMalformedReport,
		Err:  fmt.Errorf("malformed report: %w", first),
	}
}

func (e *IngestionEngine) parser() *repair.Parser {
	opts := []repair.Option{
		repair.WithFixFunc(func(before, after string) {
			e.collector.IncHeuristicRewrite()
			e.logger.Warn("missing-colon heuristic rewrote candidate", map[string]any{
				"before_bytes": len(before),
				"after_bytes":  len(after),
			})
		}),
	}
	switch {
	case e.config.DisableColonHeuristic:
		opts = append(opts, repair.WithFixer(nil))
	case e.config.Fixer != nil:
		opts = append(opts, repair.WithFixer(e.config.Fixer))
	}
	return repair.NewParser(opts...)
}

func (e *IngestionEngine) fail(err error) error {
	e.err = err
	fields := map[string]any{"error": err.Error()}
	if kind, ok := ingestionKind(err); ok {
		fields["kind"] = kind.String()
	}
	e.transition(StateFailed, fields)
	return err
}

func (e *IngestionEngine) transition(to IngestionState, fields map[string]any) {
	if fields == nil {
		fields = map[string]any{}
	}
	fields["from"] = e.state.String()
	fields["to"] = to.String()
	e.logger.Debug("ingestion state", fields)
	e.state = to
}

// Option configures Ingest.
type Option func(*ingestOptions)

type ingestOptions struct {
	config   IngestionConfig
	readSize int
}

// WithLogger sets the logger used by Ingest.
func WithLogger(logger *log.Logger) Option {
	return func(o *ingestOptions) { o.config.Logger = logger }
}

// WithCollector sets the metrics collector used by Ingest.
func WithCollector(c *metrics.Collector) Option {
	return func(o *ingestOptions) { o.config.Collector = c }
}

// WithAllowTruncated accepts streams that end before [DONE].
func WithAllowTruncated(allow bool) Option {
	return func(o *ingestOptions) { o.config.AllowTruncated = allow }
}

// WithoutColonHeuristic disables the missing-colon rewrite.
func WithoutColonHeuristic() Option {
	return func(o *ingestOptions) { o.config.DisableColonHeuristic = true }
}

// WithFixer replaces the missing-colon rewrite.
func WithFixer(f repair.Fixer) Option {
	return func(o *ingestOptions) { o.config.Fixer = f }
}

// WithReadSize sets the number of bytes requested per read.
func WithReadSize(n int) Option {
	return func(o *ingestOptions) { o.readSize = n }
}

// NewSSESource wraps an SSE body as a DeltaSource. Frames whose payload
// does not decode are dropped and debug-logged.
func NewSSESource(r io.Reader, logger *log.Logger, readSize int) *sse.Stream {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return sse.NewStream(r,
		sse.WithReadSize(readSize),
		sse.WithSkipFunc(func(payload string, err error) {
			logger.Debug("skipping undecodable frame", map[string]any{
				"error":         err.Error(),
				"payload_bytes": len(payload),
			})
		}),
	)
}

// Ingest reads an SSE body to completion and returns the parsed report.
// onProgress, when non-nil, receives the accumulated text after every delta.
func Ingest(ctx context.Context, r io.Reader, onProgress ProgressFunc, opts ...Option) (*report.Report, error) {
	o := ingestOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	src := NewSSESource(r, o.config.Logger, o.readSize)
	return NewIngestionEngine(src, o.config).Run(ctx, onProgress)
}

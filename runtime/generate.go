package runtime

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/RAGGA-TIME/lifekline/adapter"
	"github.com/RAGGA-TIME/lifekline/bazi"
	"github.com/RAGGA-TIME/lifekline/lode"
	"github.com/RAGGA-TIME/lifekline/log"
	"github.com/RAGGA-TIME/lifekline/metrics"
	"github.com/RAGGA-TIME/lifekline/prompt"
	"github.com/RAGGA-TIME/lifekline/provider"
	"github.com/RAGGA-TIME/lifekline/repair"
	"github.com/RAGGA-TIME/lifekline/report"
	"github.com/RAGGA-TIME/lifekline/types"
)

// DefaultPublishTimeout bounds the completion event publish.
const DefaultPublishTimeout = 10 * time.Second

// BaziMode selects how the four pillars reach the model.
type BaziMode string

const (
	// BaziOff lets the model compute the chart itself.
	BaziOff BaziMode = "off"
	// BaziPrecompute looks the chart up first and embeds it in the prompt.
	BaziPrecompute BaziMode = "precompute"
	// BaziTool offers the lookup to the model as a callable tool.
	BaziTool BaziMode = "tool"
)

// ParseBaziMode parses a mode name. An empty name is BaziOff.
func ParseBaziMode(s string) (BaziMode, error) {
	switch BaziMode(s) {
	case "", BaziOff:
		return BaziOff, nil
	case BaziPrecompute, BaziTool:
		return BaziMode(s), nil
	}
	return "", fmt.Errorf("unknown bazi mode %q (want off, precompute or tool)", s)
}

// ChartLookup resolves a birth moment to a chart.
type ChartLookup interface {
	Lookup(ctx context.Context, q bazi.Query) (*bazi.Chart, error)
}

// NewReportMeta creates the identity of a new generation. A non-nil parent
// makes it a retry of parent.
func NewReportMeta(parent *types.ReportMeta) *types.ReportMeta {
	meta := &types.ReportMeta{ReportID: uuid.NewString(), Attempt: 1}
	if parent != nil {
		id := parent.ReportID
		meta.ParentReportID = &id
		meta.Attempt = parent.Attempt + 1
	}
	return meta
}

// GenerateConfig configures a single report generation.
type GenerateConfig struct {
	// Input is the subject's birth data.
	Input prompt.BirthInput
	// ReportMeta is the report identity and lineage.
	ReportMeta *types.ReportMeta
	// Provider streams the model answer (required).
	Provider provider.Provider
	// Bazi resolves charts for BaziPrecompute and BaziTool.
	// If nil, both modes fall back to BaziOff.
	Bazi     ChartLookup
	BaziMode BaziMode
	// Writer persists reports, transcripts and metrics. Optional.
	Writer lode.Writer
	// Adapter publishes the completion event. Optional.
	Adapter        adapter.Adapter
	PublishTimeout time.Duration
	// Collector records metrics. If nil, a collector is created.
	Collector *metrics.Collector
	// Logger overrides the default stderr logger.
	Logger *log.Logger
	// OnProgress is called with the accumulated text after every delta.
	OnProgress ProgressFunc

	AllowTruncated        bool
	DisableColonHeuristic bool
	Fixer                 repair.Fixer

	// Now overrides the clock (for testing).
	Now func() time.Time
}

// GenerateResult is the outcome of a generation.
type GenerateResult struct {
	ReportMeta *types.ReportMeta
	Outcome    *types.Outcome
	// Report is nil unless Outcome is success.
	Report *report.Report
	// Stage names the parse stage that accepted the answer.
	Stage   string
	Repairs int
	// Chart is the chart handed to the model, if any.
	Chart    *bazi.Chart
	Duration time.Duration
	Metrics  metrics.Snapshot
	// StoragePath is the partition prefix when a Writer is configured.
	StoragePath string
	// TranscriptPath is set when a failed answer was stored for diagnosis.
	TranscriptPath string
	// Text is the accumulated answer text.
	Text string
}

// ReportOrchestrator runs one generation end-to-end.
type ReportOrchestrator struct {
	config    *GenerateConfig
	logger    *log.Logger
	collector *metrics.Collector
	startTime time.Time
	chart     *bazi.Chart
}

// NewReportOrchestrator creates an orchestrator.
// Returns error if the report metadata is invalid or no provider is set.
func NewReportOrchestrator(config *GenerateConfig) (*ReportOrchestrator, error) {
	if config.ReportMeta == nil {
		return nil, errors.New("report metadata is required")
	}
	if err := config.ReportMeta.Validate(); err != nil {
		return nil, fmt.Errorf("invalid report metadata: %w", err)
	}
	if config.Provider == nil {
		return nil, errors.New("provider is required")
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	if config.PublishTimeout <= 0 {
		config.PublishTimeout = DefaultPublishTimeout
	}

	logger := config.Logger
	if logger == nil {
		logger = log.NewLogger(config.ReportMeta)
	}
	logger = logger.WithProvider(config.Provider.Name(), config.Provider.Model())

	collector := config.Collector
	if collector == nil {
		backend := ""
		if config.Writer != nil {
			backend = "lode"
		}
		collector = metrics.NewCollector(config.Provider.Name(), config.Provider.Model(), backend, config.ReportMeta.ReportID)
	}

	return &ReportOrchestrator{config: config, logger: logger, collector: collector}, nil
}

// Execute generates the report.
//
// Execution flow:
//  1. Validate the birth input
//  2. Resolve the chart (precompute or tool round trip)
//  3. Stream the answer through the ingestion engine
//  4. Persist the report, or the transcript of a failed answer
//  5. Publish the completion event and persist metrics
//
// Failures of the generation itself are reported in the result's Outcome;
// storage and publish failures are logged and counted only.
func (o *ReportOrchestrator) Execute(ctx context.Context) *GenerateResult {
	o.startTime = o.config.Now()
	o.collector.IncReportStarted()

	in := o.config.Input.Normalize()
	o.logger.Info("starting report", map[string]any{
		"bazi_mode": string(o.config.BaziMode),
		"calendar":  in.Calendar,
	})

	if err := in.Validate(); err != nil {
		return o.finish(ctx, fmt.Errorf("%w: %w", ErrInvalidInput, err), nil)
	}

	req, err := o.buildRequest(ctx, in)
	if err != nil {
		return o.finish(ctx, err, nil)
	}

	stream, err := o.config.Provider.Stream(ctx, req)
	if err != nil {
		o.collector.IncProviderRequestFailure()
		return o.finish(ctx, providerError(err), nil)
	}
	o.collector.IncProviderRequestSuccess()

	engine := NewIngestionEngine(stream, IngestionConfig{
		Logger:                o.logger,
		Collector:             o.collector,
		AllowTruncated:        o.config.AllowTruncated,
		DisableColonHeuristic: o.config.DisableColonHeuristic,
		Fixer:                 o.config.Fixer,
	})
	_, err = engine.Run(ctx, o.config.OnProgress)
	if cerr := stream.Close(); cerr != nil {
		o.logger.Debug("stream close failed", map[string]any{"error": cerr.Error()})
	}
	return o.finish(ctx, err, engine)
}

// buildRequest renders the prompts, resolving the chart per BaziMode.
func (o *ReportOrchestrator) buildRequest(ctx context.Context, in prompt.BirthInput) (*provider.Request, error) {
	req := &provider.Request{System: prompt.System()}
	mode := o.config.BaziMode
	if mode != BaziOff && mode != "" && o.config.Bazi == nil {
		o.logger.Warn("bazi service not configured, model computes the chart", map[string]any{
			"bazi_mode": string(mode),
		})
		mode = BaziOff
	}

	switch mode {
	case BaziPrecompute:
		chart, err := o.config.Bazi.Lookup(ctx, in.Query())
		if err != nil {
			o.collector.IncBaziLookupFailure()
			if ctx.Err() != nil {
				return nil, providerError(ctx.Err())
			}
			o.logger.Warn("bazi lookup failed, model computes the chart", map[string]any{
				"error": err.Error(),
			})
		} else {
			o.collector.IncBaziLookupSuccess()
			o.chart = chart
		}
		req.Messages = []provider.Message{{Role: provider.RoleUser, Content: prompt.BuildUser(in, o.chart)}}
		return req, nil

	case BaziTool:
		caller, ok := o.config.Provider.(provider.ToolCaller)
		if !ok {
			o.logger.Warn("provider does not support tools, model computes the chart", map[string]any{
				"provider": o.config.Provider.Name(),
			})
			break
		}
		if err := o.toolRound(ctx, caller, in, req); err != nil {
			return nil, err
		}
		return req, nil
	}

	req.Messages = []provider.Message{{Role: provider.RoleUser, Content: prompt.BuildUser(in, nil)}}
	return req, nil
}

// toolRound offers get_bazi_detail to the model and answers its first call.
// When the model answers without calling the tool, the request is streamed
// unchanged.
func (o *ReportOrchestrator) toolRound(ctx context.Context, caller provider.ToolCaller, in prompt.BirthInput, req *provider.Request) error {
	req.Messages = []provider.Message{{Role: provider.RoleUser, Content: prompt.BuildToolUser(in)}}
	req.Tools = []provider.Tool{bazi.ToolDefinition()}

	msg, err := caller.Complete(ctx, req)
	if err != nil {
		o.collector.IncProviderRequestFailure()
		return providerError(err)
	}
	o.collector.IncProviderRequestSuccess()

	if len(msg.ToolCalls) == 0 {
		o.logger.Info("model answered without calling the tool", nil)
		return nil
	}

	call := msg.ToolCalls[0]
	o.logger.Info("tool call", map[string]any{
		"tool":         call.Function.Name,
		"tool_call_id": call.ID,
		"calls":        len(msg.ToolCalls),
	})
	req.Messages = append(req.Messages, provider.Message{
		Role:      provider.RoleAssistant,
		Content:   msg.Content,
		ToolCalls: msg.ToolCalls,
	})

	q, err := in.Query().MergeArgs(call.Function.Arguments)
	if err != nil {
		o.logger.Warn("tool arguments ignored", map[string]any{"error": err.Error()})
	}

	var content string
	chart, err := o.config.Bazi.Lookup(ctx, q)
	if err != nil {
		o.collector.IncBaziLookupFailure()
		if ctx.Err() != nil {
			return providerError(ctx.Err())
		}
		o.logger.Warn("bazi lookup failed, model computes the chart", map[string]any{"error": err.Error()})
		content = bazi.ToolFailure(err)
	} else {
		o.collector.IncBaziLookupSuccess()
		o.chart = chart
		content = bazi.ToolResult(chart)
	}

	req.Messages = append(req.Messages,
		provider.Message{Role: provider.RoleTool, ToolCallID: call.ID, Content: content},
		provider.Message{Role: provider.RoleUser, Content: prompt.ToolFollowUp},
	)
	return nil
}

// providerError classifies a provider call failure.
func providerError(err error) error {
	switch {
	case provider.IsInvalidCredentials(err):
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return &IngestionError{Kind: IngestionErrorCanceled, Err: err}
	default:
		return &IngestionError{Kind: IngestionErrorTransport, Err: err}
	}
}

// finish determines the outcome, persists and publishes.
func (o *ReportOrchestrator) finish(ctx context.Context, err error, engine *IngestionEngine) *GenerateResult {
	outcome := DetermineOutcome(err)
	result := &GenerateResult{
		ReportMeta: o.config.ReportMeta,
		Outcome:    outcome,
		Chart:      o.chart,
	}
	if rep, ok := engineReport(engine); ok {
		result.Report = rep
	}
	if engine != nil {
		result.Stage = engine.Stage()
		result.Repairs = engine.Repairs()
		result.Text = engine.Text()
	}

	if outcome.IsSuccess() {
		o.collector.IncReportCompleted()
	} else {
		o.collector.IncReportFailed(string(outcome.Status))
	}

	// Storage and publish run even when the caller's context is done.
	bgCtx := context.WithoutCancel(ctx)
	partition := lode.Partition{
		Provider: o.config.Provider.Name(),
		Day:      lode.DeriveDay(o.startTime),
		ReportID: o.config.ReportMeta.ReportID,
	}
	o.persist(bgCtx, partition, result, engine)

	result.Duration = o.config.Now().Sub(o.startTime)
	o.publish(bgCtx, result, engine)
	result.Metrics = o.collector.Snapshot()
	o.persistMetrics(bgCtx, partition)

	fields := map[string]any{
		"outcome":  string(outcome.Status),
		"duration": result.Duration.String(),
		"stage":    result.Stage,
		"repairs":  result.Repairs,
	}
	if outcome.IsSuccess() {
		o.logger.Info("report completed", fields)
	} else {
		fields["error"] = outcome.Message
		o.logger.Error("report failed", fields)
	}
	return result
}

func (o *ReportOrchestrator) persist(ctx context.Context, p lode.Partition, result *GenerateResult, engine *IngestionEngine) {
	w := o.config.Writer
	if w == nil || engine == nil {
		return
	}
	result.StoragePath = w.PartitionPath(p)

	switch result.Outcome.Status {
	case types.OutcomeSuccess:
		rec := lode.NewReportRecord(o.config.ReportMeta, p, o.config.Provider.Model(), engine.Stage(), result.Report, o.config.Now())
		if err := w.WriteReport(ctx, rec); err != nil {
			o.collector.IncLodeWriteFailure()
			o.logger.Error("report write failed", map[string]any{"error": err.Error()})
			return
		}
		o.collector.IncLodeWriteSuccess()

	case types.OutcomeMalformedReport, types.OutcomeInvalidSchema:
		path, err := w.WriteTranscript(ctx, p, engine.Text())
		if err != nil {
			o.collector.IncLodeWriteFailure()
			o.logger.Error("transcript write failed", map[string]any{"error": err.Error()})
			return
		}
		o.collector.IncLodeWriteSuccess()
		result.TranscriptPath = path
		o.logger.Info("transcript stored", map[string]any{"path": path})
	}
}

func (o *ReportOrchestrator) persistMetrics(ctx context.Context, p lode.Partition) {
	w := o.config.Writer
	if w == nil {
		return
	}
	if err := w.WriteMetrics(ctx, p, o.collector.Snapshot(), o.config.Now()); err != nil {
		o.collector.IncLodeWriteFailure()
		o.logger.Warn("metrics write failed", map[string]any{"error": err.Error()})
		return
	}
	o.collector.IncLodeWriteSuccess()
}

func (o *ReportOrchestrator) publish(ctx context.Context, result *GenerateResult, engine *IngestionEngine) {
	if o.config.Adapter == nil {
		return
	}
	event := &adapter.ReportEvent{
		ContractVersion: types.ContractVersion,
		EventType:       adapter.EventTypeReportCompleted,
		ReportID:        o.config.ReportMeta.ReportID,
		Attempt:         o.config.ReportMeta.Attempt,
		Provider:        o.config.Provider.Name(),
		Model:           o.config.Provider.Model(),
		Outcome:         string(result.Outcome.Status),
		Stage:           result.Stage,
		StoragePath:     result.StoragePath,
		Timestamp:       o.config.Now().UTC().Format(time.RFC3339),
		DurationMs:      result.Duration.Milliseconds(),
	}
	if o.config.ReportMeta.ParentReportID != nil {
		event.ParentReportID = *o.config.ReportMeta.ParentReportID
	}
	if !result.Outcome.IsSuccess() {
		event.Message = result.Outcome.Message
	}
	if rep, ok := engineReport(engine); ok {
		event.ChartPoints = len(rep.ChartData)
		event.SummaryScore = rep.Analysis.SummaryScore
	}

	pubCtx, cancel := context.WithTimeout(ctx, o.config.PublishTimeout)
	defer cancel()
	if err := o.config.Adapter.Publish(pubCtx, event); err != nil {
		o.collector.IncPublishFailure()
		o.logger.Error("completion event publish failed", map[string]any{"error": err.Error()})
		return
	}
	o.collector.IncPublishSuccess()
}

// engineReport returns the engine's report when it finished successfully.
func engineReport(engine *IngestionEngine) (*report.Report, bool) {
	if engine == nil || engine.State() != StateDone {
		return nil, false
	}
	rep := engine.Report()
	return rep, rep != nil
}

// Generate validates config and runs one generation.
func Generate(ctx context.Context, config *GenerateConfig) (*GenerateResult, error) {
	o, err := NewReportOrchestrator(config)
	if err != nil {
		return nil, err
	}
	return o.Execute(ctx), nil
}

package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/RAGGA-TIME/lifekline/cli/render"
	"github.com/RAGGA-TIME/lifekline/cli/tui"
	"github.com/RAGGA-TIME/lifekline/log"
	"github.com/RAGGA-TIME/lifekline/prompt"
	"github.com/RAGGA-TIME/lifekline/runtime"
	"github.com/RAGGA-TIME/lifekline/types"
)

// GenerateCommand returns the generate command, the only command that
// calls a model.
func GenerateCommand() *cli.Command {
	return &cli.Command{
		Name:  "generate",
		Usage: "Generate a life k-line report for a birth moment",
		Flags: join(
			[]cli.Flag{ConfigFlag},
			BirthFlags(),
			[]cli.Flag{
				&cli.IntFlag{
					Name:  "attempt",
					Usage: "Attempt number (starts at 1)",
					Value: 1,
				},
				&cli.StringFlag{
					Name:  "report-id",
					Usage: "Report ID (default: random UUID)",
				},
				&cli.StringFlag{
					Name:  "parent-report-id",
					Usage: "Parent report ID (required for retries)",
				},
				&cli.BoolFlag{
					Name:  "progress",
					Usage: "Print the received length to stderr while streaming",
				},
				&cli.BoolFlag{
					Name:  "quiet",
					Usage: "Suppress result output",
				},
				&cli.StringFlag{
					Name:  "log-level",
					Usage: "Minimum level of stderr logs: debug, info, warn or error",
					Value: "info",
				},
			},
			ProviderFlags(),
			BaziFlags(),
			IngestFlags(),
			StorageFlags(),
			AdapterFlags(),
			OutputFlags(),
		),
		Action: generateAction,
	}
}

// BirthFlags describe the subject.
func BirthFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "input",
			Usage: "Birth input as a JSON file (- for stdin); flags override its fields",
		},
		&cli.StringFlag{Name: "name", Usage: "Subject name"},
		&cli.StringFlag{Name: "gender", Usage: "Gender: male or female"},
		&cli.IntFlag{Name: "year", Usage: "Birth year"},
		&cli.IntFlag{Name: "month", Usage: "Birth month (1-12)"},
		&cli.IntFlag{Name: "day", Usage: "Birth day (1-31)"},
		&cli.IntFlag{Name: "hour", Usage: "Birth hour (0-23)"},
		&cli.IntFlag{Name: "minute", Usage: "Birth minute (0-59)"},
		&cli.StringFlag{Name: "calendar", Usage: "Calendar of the date: solar or lunar", Value: "solar"},
		&cli.StringFlag{Name: "birth-place", Usage: "Birth place"},
	}
}

// birthInput assembles the input from --input and the birth flags.
func birthInput(c *cli.Context) (prompt.BirthInput, error) {
	var in prompt.BirthInput
	if path := c.String("input"); path != "" {
		data, err := readInput(c, path)
		if err != nil {
			return in, err
		}
		if err := json.Unmarshal(data, &in); err != nil {
			return in, fmt.Errorf("%w: --input: %w", runtime.ErrInvalidInput, err)
		}
	}

	for name, dst := range map[string]*string{
		"name":        &in.Name,
		"gender":      &in.Gender,
		"birth-place": &in.BirthPlace,
	} {
		if c.IsSet(name) {
			*dst = c.String(name)
		}
	}
	for name, dst := range map[string]*int{
		"year":   &in.Year,
		"month":  &in.Month,
		"day":    &in.Day,
		"hour":   &in.Hour,
		"minute": &in.Minute,
	} {
		if c.IsSet(name) {
			*dst = c.Int(name)
		}
	}
	if c.IsSet("calendar") || in.Calendar == "" {
		in.Calendar = c.String("calendar")
	}

	in = in.Normalize()
	if err := in.Validate(); err != nil {
		return in, fmt.Errorf("%w: %w", runtime.ErrInvalidInput, err)
	}
	return in, nil
}

// reportMeta builds the report identity from flags.
func reportMeta(c *cli.Context) (*types.ReportMeta, error) {
	meta := runtime.NewReportMeta(nil)
	if id := c.String("report-id"); id != "" {
		meta.ReportID = id
	}
	meta.Attempt = c.Int("attempt")
	if parent := c.String("parent-report-id"); parent != "" {
		meta.ParentReportID = &parent
	}
	if err := meta.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", runtime.ErrInvalidInput, err)
	}
	return meta, nil
}

func generateAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return cli.Exit(err.Error(), runtime.ExitCodeInvalidInput)
	}
	r, err := render.NewRenderer(c)
	if err != nil {
		return cli.Exit(err.Error(), runtime.ExitCodeInvalidInput)
	}

	in, err := birthInput(c)
	if err != nil {
		return exitFor(err)
	}
	meta, err := reportMeta(c)
	if err != nil {
		return exitFor(err)
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()
	if timeout := durationOpt(c, "timeout", cfg.Provider.Timeout); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	level, err := log.ParseLevel(c.String("log-level"))
	if err != nil {
		return cli.Exit(err.Error(), runtime.ExitCodeInvalidInput)
	}
	logger := log.NewLogger(meta)
	logger.SetLevel(level)
	if c.Bool("tui") {
		logger = logger.WithOutput(io.Discard)
	}
	defer func() { _ = logger.Sync() }()

	prov, err := newProvider(ctx, resolveProvider(c, cfg), logger)
	if err != nil {
		return exitFor(err)
	}
	defer func() { _ = prov.Close() }()

	genCfg := &runtime.GenerateConfig{
		Input:                 in,
		ReportMeta:            meta,
		Provider:              prov,
		Logger:                logger,
		AllowTruncated:        boolOpt(c, "allow-truncated", cfg.Ingest.AllowTruncated),
		DisableColonHeuristic: boolOpt(c, "no-colon-heuristic", cfg.Ingest.NoColonHeuristic),
	}

	mode, baziClient, err := newBazi(resolveBazi(c, cfg))
	if err != nil {
		return cli.Exit(err.Error(), runtime.ExitCodeInvalidInput)
	}
	genCfg.BaziMode = mode
	if baziClient != nil {
		genCfg.Bazi = baziClient
		defer func() { _ = baziClient.Close() }()
	}

	if storage := resolveStorage(c, cfg); storage.enabled() {
		writer, err := storage.newWriter(ctx)
		if err != nil {
			return cli.Exit(fmt.Sprintf("storage: %v", err), runtime.ExitCodeInvalidInput)
		}
		genCfg.Writer = writer
		defer func() { _ = writer.Close() }()
	}

	adapterCfg, err := resolveAdapter(c, cfg)
	if err != nil {
		return cli.Exit(err.Error(), runtime.ExitCodeInvalidInput)
	}
	pub, err := newAdapter(adapterCfg)
	if err != nil {
		return cli.Exit(fmt.Sprintf("adapter: %v", err), runtime.ExitCodeInvalidInput)
	}
	if pub != nil {
		genCfg.Adapter = pub
		defer func() { _ = pub.Close() }()
	}

	orchestrator, err := runtime.NewReportOrchestrator(genCfg)
	if err != nil {
		return cli.Exit(err.Error(), runtime.ExitCodeInvalidInput)
	}

	var result *runtime.GenerateResult
	if c.Bool("tui") {
		title := fmt.Sprintf("Generating report %s (%s)", meta.ReportID, prov.Name())
		_, err := tui.RunStream(title, cancel, func(onProgress func(string)) tui.DoneMsg {
			genCfg.OnProgress = onProgress
			result = orchestrator.Execute(ctx)
			return tui.DoneMsg{Outcome: string(result.Outcome.Status), Message: result.Outcome.Message}
		})
		if err != nil {
			return fmt.Errorf("tui: %w", err)
		}
	} else {
		if c.Bool("progress") {
			genCfg.OnProgress = progressPrinter(errWriter(c))
		}
		result = orchestrator.Execute(ctx)
		if c.Bool("progress") {
			fmt.Fprintln(errWriter(c))
		}
	}

	resp := generateResponse(result, prov.Name(), prov.Model())
	if !c.Bool("quiet") {
		if c.Bool("tui") && resp.Report != nil {
			if err := r.RenderTUI(tui.ViewGenerate, resp.TUIData()); err != nil {
				return err
			}
		} else if err := r.Render(resp); err != nil {
			return err
		}
	}

	code := runtime.ExitCode(result.Outcome.Status)
	if code != runtime.ExitCodeCompleted {
		return cli.Exit(result.Outcome.Message, code)
	}
	return nil
}

func generateResponse(result *runtime.GenerateResult, providerName, model string) *ReportResponse {
	resp := &ReportResponse{
		ReportID:       result.ReportMeta.ReportID,
		Attempt:        result.ReportMeta.Attempt,
		Provider:       providerName,
		Model:          model,
		Outcome:        string(result.Outcome.Status),
		Message:        result.Outcome.Message,
		Stage:          result.Stage,
		Repairs:        result.Repairs,
		DurationMs:     result.Duration.Milliseconds(),
		StoragePath:    result.StoragePath,
		TranscriptPath: result.TranscriptPath,
		Report:         result.Report,
	}
	if result.ReportMeta.ParentReportID != nil {
		resp.ParentReportID = *result.ReportMeta.ParentReportID
	}
	return resp
}

// progressPrinter rewrites one stderr line with the received length.
func progressPrinter(w io.Writer) runtime.ProgressFunc {
	var last time.Time
	return func(accumulated string) {
		if now := time.Now(); now.Sub(last) >= 100*time.Millisecond {
			last = now
			fmt.Fprintf(w, "\rreceived %d bytes", len(accumulated))
		}
	}
}

// exitFor maps an error to the command's exit code.
func exitFor(err error) error {
	if errors.Is(err, runtime.ErrInvalidInput) {
		return cli.Exit(err.Error(), runtime.ExitCodeInvalidInput)
	}
	outcome := runtime.DetermineOutcome(err)
	return cli.Exit(err.Error(), runtime.ExitCode(outcome.Status))
}

// readInput reads a file argument, where "-" is the command's stdin.
func readInput(c *cli.Context, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(stdin(c))
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", runtime.ErrInvalidInput, err)
	}
	return data, nil
}

// openInput opens a file argument for streaming, where "-" is stdin.
func openInput(c *cli.Context, path string) (io.ReadCloser, error) {
	if path == "-" {
		return io.NopCloser(stdin(c)), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", runtime.ErrInvalidInput, err)
	}
	return f, nil
}

// errWriter returns the app's error writer.
func errWriter(c *cli.Context) io.Writer {
	if c.App != nil && c.App.ErrWriter != nil {
		return c.App.ErrWriter
	}
	return os.Stderr
}

// stdin returns the app's reader, so tests can substitute it.
func stdin(c *cli.Context) io.Reader {
	if c.App != nil && c.App.Reader != nil {
		return c.App.Reader
	}
	return os.Stdin
}

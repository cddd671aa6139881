package cmd

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/RAGGA-TIME/lifekline/cli/render"
	"github.com/RAGGA-TIME/lifekline/log"
	"github.com/RAGGA-TIME/lifekline/metrics"
	"github.com/RAGGA-TIME/lifekline/repair"
	"github.com/RAGGA-TIME/lifekline/report"
	"github.com/RAGGA-TIME/lifekline/runtime"
)

// IngestCommand returns the ingest command, which parses a captured SSE
// stream without calling a model.
func IngestCommand() *cli.Command {
	return &cli.Command{
		Name:  "ingest",
		Usage: "Parse a captured SSE response into a report",
		Flags: join(
			[]cli.Flag{
				ConfigFlag,
				&cli.StringFlag{
					Name:    "file",
					Aliases: []string{"i"},
					Usage:   "SSE capture to read (- for stdin)",
					Value:   "-",
				},
				&cli.BoolFlag{
					Name:  "progress",
					Usage: "Print the received length to stderr while reading",
				},
				&cli.BoolFlag{
					Name:  "metrics",
					Usage: "Include the metrics snapshot in the output",
				},
				&cli.BoolFlag{
					Name:  "verbose",
					Usage: "Log ingestion state changes to stderr",
				},
			},
			IngestFlags(),
			OutputFlags(),
		),
		Action: ingestAction,
	}
}

// IngestResponse is the output of ingest --metrics.
type IngestResponse struct {
	*ReportResponse `yaml:",inline"`
	Metrics         *metrics.Snapshot `json:"metrics,omitempty" yaml:"metrics,omitempty"`
}

func ingestAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return cli.Exit(err.Error(), runtime.ExitCodeInvalidInput)
	}
	r, err := render.NewRenderer(c)
	if err != nil {
		return cli.Exit(err.Error(), runtime.ExitCodeInvalidInput)
	}
	if c.Bool("tui") {
		return cli.Exit("--tui is not supported for ingest", runtime.ExitCodeInvalidInput)
	}

	body, err := openInput(c, c.String("file"))
	if err != nil {
		return exitFor(err)
	}
	defer func() { _ = body.Close() }()

	logger := log.NewNopLogger()
	if c.Bool("verbose") {
		logger = log.NewLogger(nil)
	}
	collector := metrics.NewCollector("capture", "", "", "")
	engine := runtime.NewIngestionEngine(
		runtime.NewSSESource(body, logger, intOpt(c, "read-size", cfg.Ingest.ReadSize)),
		runtime.IngestionConfig{
			Logger:                logger,
			Collector:             collector,
			AllowTruncated:        boolOpt(c, "allow-truncated", cfg.Ingest.AllowTruncated),
			DisableColonHeuristic: boolOpt(c, "no-colon-heuristic", cfg.Ingest.NoColonHeuristic),
		},
	)

	var progress runtime.ProgressFunc
	if c.Bool("progress") {
		progress = progressPrinter(errWriter(c))
	}
	rep, err := engine.Run(c.Context, progress)
	if c.Bool("progress") {
		fmt.Fprintln(errWriter(c))
	}

	outcome := runtime.DetermineOutcome(err)
	resp := &ReportResponse{
		Outcome: string(outcome.Status),
		Stage:   engine.Stage(),
		Repairs: engine.Repairs(),
		Report:  rep,
	}
	if err != nil {
		resp.Message = outcome.Message
	}

	var out any = resp
	if c.Bool("metrics") {
		snap := collector.Snapshot()
		out = &IngestResponse{ReportResponse: resp, Metrics: &snap}
	}
	if err := r.Render(out); err != nil {
		return err
	}

	if code := runtime.ExitCode(outcome.Status); code != runtime.ExitCodeCompleted {
		return cli.Exit(outcome.Message, code)
	}
	return nil
}

// RepairCommand returns the repair command, which runs extraction and the
// parse stages over raw answer text.
func RepairCommand() *cli.Command {
	return &cli.Command{
		Name:  "repair",
		Usage: "Extract and repair the JSON document in raw model text",
		Flags: join(
			[]cli.Flag{
				&cli.StringFlag{
					Name:    "file",
					Aliases: []string{"i"},
					Usage:   "Raw text to read (- for stdin)",
					Value:   "-",
				},
				&cli.BoolFlag{
					Name:  "report",
					Usage: "Convert the document to a report with defaults applied",
				},
				&cli.BoolFlag{
					Name:  "no-colon-heuristic",
					Usage: "Disable the missing-colon rewrite of the last parse stage",
				},
			},
			OutputFlags(),
		),
		Action: repairAction,
	}
}

// RepairResponse is the output of the repair command.
type RepairResponse struct {
	Stage    string         `json:"stage" yaml:"stage"`
	Rewrote  bool           `json:"rewrote" yaml:"rewrote"`
	Document any            `json:"document,omitempty" yaml:"document,omitempty"`
	Report   *report.Report `json:"report,omitempty" yaml:"report,omitempty"`
}

func repairAction(c *cli.Context) error {
	r, err := render.NewRenderer(c)
	if err != nil {
		return cli.Exit(err.Error(), runtime.ExitCodeInvalidInput)
	}
	if c.Bool("tui") {
		return cli.Exit("--tui is not supported for repair", runtime.ExitCodeInvalidInput)
	}

	text, err := readInput(c, c.String("file"))
	if err != nil {
		return exitFor(err)
	}

	resp, err := repairText(string(bytes.TrimPrefix(text, []byte("\ufeff"))), !c.Bool("no-colon-heuristic"), c.Bool("report"))
	if err != nil {
		return cli.Exit(err.Error(), runtime.ExitCodeReportFailure)
	}
	return r.Render(resp)
}

// repairText runs extraction and the parse stages over text.
func repairText(text string, colonHeuristic, toReport bool) (*RepairResponse, error) {
	candidate, err := repair.ExtractCandidate(text)
	if err != nil {
		return nil, err
	}

	resp := &RepairResponse{}
	opts := []repair.Option{repair.WithFixFunc(func(_, _ string) { resp.Rewrote = true })}
	if !colonHeuristic {
		opts = append(opts, repair.WithFixer(nil))
	}
	result, err := repair.NewParser(opts...).Parse(candidate)
	if err != nil {
		var pe *repair.ParseError
		if errors.As(err, &pe) {
			return nil, fmt.Errorf("malformed report: %w", pe)
		}
		return nil, err
	}
	resp.Stage = result.Stage

	if !toReport {
		resp.Document = result.Value
		return resp, nil
	}
	rep, err := report.FromValue(result.Value)
	if err != nil {
		return nil, err
	}
	resp.Report = rep
	return resp, nil
}

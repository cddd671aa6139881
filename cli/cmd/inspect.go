package cmd

import (
	"errors"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/RAGGA-TIME/lifekline/cli/render"
	"github.com/RAGGA-TIME/lifekline/cli/tui"
	lodestore "github.com/RAGGA-TIME/lifekline/lode"
	"github.com/RAGGA-TIME/lifekline/runtime"
)

// InspectCommand returns the inspect command with subcommands.
// Inspect returns a deep view of a single stored entity.
func InspectCommand() *cli.Command {
	return &cli.Command{
		Name:  "inspect",
		Usage: "Inspect a stored report, its metrics or a transcript",
		Subcommands: []*cli.Command{
			inspectReportCommand(),
			inspectMetricsCommand(),
			inspectTranscriptCommand(),
		},
	}
}

// readFlags are the flags of commands reading the dataset.
func readFlags() []cli.Flag {
	return join([]cli.Flag{ConfigFlag}, StorageFlags(), OutputFlags())
}

func inspectReportCommand() *cli.Command {
	return &cli.Command{
		Name:      "report",
		Usage:     "Inspect a report by ID",
		ArgsUsage: "<report-id>",
		Flags:     readFlags(),
		Action:    inspectReportAction,
	}
}

func inspectReportAction(c *cli.Context) error {
	if c.NArg() < 1 {
		return cli.Exit("report-id required", runtime.ExitCodeInvalidInput)
	}
	reportID := c.Args().First()

	r, storage, err := readSetup(c)
	if err != nil {
		return err
	}
	ds, _, err := storage.newReader(c.Context)
	if err != nil {
		return cli.Exit(fmt.Sprintf("storage: %v", err), runtime.ExitCodeInvalidInput)
	}

	rec, err := lodestore.QueryReport(c.Context, ds, reportID)
	if err != nil {
		if errors.Is(err, lodestore.ErrReportNotFound) {
			return cli.Exit(err.Error(), runtime.ExitCodeReportFailure)
		}
		return cli.Exit(err.Error(), runtime.ExitCodeTransportFailure)
	}

	resp := &ReportResponse{
		ReportID:    rec.ReportID,
		Attempt:     rec.Attempt,
		Provider:    rec.Provider,
		Model:       rec.Model,
		Outcome:     "success",
		Stage:       rec.Stage,
		StoragePath: fmt.Sprintf("%s/%s", storage.datasetID(), rec.Day),
		CreatedAt:   rec.CreatedAt,
		Report:      rec.Report,
	}
	if rec.ParentReportID != nil {
		resp.ParentReportID = *rec.ParentReportID
	}

	if c.Bool("tui") {
		return r.RenderTUI(tui.ViewInspectReport, resp.TUIData())
	}
	return r.Render(resp)
}

func inspectMetricsCommand() *cli.Command {
	return &cli.Command{
		Name:  "metrics",
		Usage: "Inspect the latest metrics record",
		Flags: append(readFlags(),
			&cli.StringFlag{
				Name:  "report-id",
				Usage: "Only consider metrics of this report",
			},
			&cli.StringFlag{
				Name:  "provider",
				Usage: "Only consider metrics of this provider",
			},
		),
		Action: inspectMetricsAction,
	}
}

func inspectMetricsAction(c *cli.Context) error {
	r, storage, err := readSetup(c)
	if err != nil {
		return err
	}
	if c.Bool("tui") {
		return cli.Exit("--tui is not supported for inspect metrics", runtime.ExitCodeInvalidInput)
	}
	ds, _, err := storage.newReader(c.Context)
	if err != nil {
		return cli.Exit(fmt.Sprintf("storage: %v", err), runtime.ExitCodeInvalidInput)
	}

	record, err := lodestore.QueryLatestMetrics(c.Context, ds, c.String("report-id"), c.String("provider"))
	if err != nil {
		if errors.Is(err, lodestore.ErrNoMetricsFound) {
			return cli.Exit(err.Error(), runtime.ExitCodeReportFailure)
		}
		return cli.Exit(err.Error(), runtime.ExitCodeTransportFailure)
	}
	return r.Render(record)
}

func inspectTranscriptCommand() *cli.Command {
	return &cli.Command{
		Name:      "transcript",
		Usage:     "Print a stored transcript of a failed report",
		ArgsUsage: "<transcript-path>",
		Flags:     join([]cli.Flag{ConfigFlag}, StorageFlags()),
		Action:    inspectTranscriptAction,
	}
}

func inspectTranscriptAction(c *cli.Context) error {
	if c.NArg() < 1 {
		return cli.Exit("transcript-path required", runtime.ExitCodeInvalidInput)
	}
	cfg, err := loadConfig(c)
	if err != nil {
		return cli.Exit(err.Error(), runtime.ExitCodeInvalidInput)
	}
	storage := resolveStorage(c, cfg)
	factory, err := storage.factory(c.Context)
	if err != nil {
		return cli.Exit(fmt.Sprintf("storage: %v", err), runtime.ExitCodeInvalidInput)
	}

	text, err := lodestore.ReadTranscript(c.Context, factory, c.Args().First())
	if err != nil {
		return cli.Exit(err.Error(), runtime.ExitCodeTransportFailure)
	}
	_, err = fmt.Fprintln(c.App.Writer, text)
	return err
}

// readSetup loads config and the renderer for dataset readers.
func readSetup(c *cli.Context) (*render.Renderer, storageChoice, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, storageChoice{}, cli.Exit(err.Error(), runtime.ExitCodeInvalidInput)
	}
	r, err := render.NewRenderer(c)
	if err != nil {
		return nil, storageChoice{}, cli.Exit(err.Error(), runtime.ExitCodeInvalidInput)
	}
	return r, resolveStorage(c, cfg), nil
}

package cmd

import (
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/RAGGA-TIME/lifekline/cli/render"
	lodestore "github.com/RAGGA-TIME/lifekline/lode"
	"github.com/RAGGA-TIME/lifekline/runtime"
)

// largeListing is the unbounded result size that earns a --limit hint.
const largeListing = 100

// ListCommand groups listings of stored records. Rows are summaries;
// inspect returns the full record.
func ListCommand() *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List stored entities",
		Subcommands: []*cli.Command{{
			Name:  "reports",
			Usage: "List stored reports, most recent first",
			Flags: append(readFlags(),
				&cli.StringFlag{Name: "provider", Usage: "Only reports of this provider"},
				&cli.StringFlag{Name: "day", Usage: "Only reports of this partition day (YYYY-MM-DD, UTC)"},
				&cli.IntFlag{Name: "limit", Usage: "Return at most this many reports (0 = all)"},
			),
			Action: listReports,
		}},
	}
}

// listOptions turns the filter flags into query options.
func listOptions(c *cli.Context) (lodestore.ListOptions, error) {
	opts := lodestore.ListOptions{
		Provider: c.String("provider"),
		Day:      c.String("day"),
		Limit:    c.Int("limit"),
	}
	if opts.Limit < 0 {
		return opts, fmt.Errorf("--limit must be >= 0, got %d", opts.Limit)
	}
	if opts.Day != "" {
		if _, err := time.Parse(time.DateOnly, opts.Day); err != nil {
			return opts, fmt.Errorf("--day must be YYYY-MM-DD, got %q", opts.Day)
		}
	}
	return opts, nil
}

func listReports(c *cli.Context) error {
	if c.Bool("tui") {
		return cli.Exit("--tui is not supported for list commands", runtime.ExitCodeInvalidInput)
	}
	opts, err := listOptions(c)
	if err != nil {
		return cli.Exit(err.Error(), runtime.ExitCodeInvalidInput)
	}
	r, storage, err := readSetup(c)
	if err != nil {
		return err
	}
	ds, _, err := storage.newReader(c.Context)
	if err != nil {
		return cli.Exit(fmt.Sprintf("storage: %v", err), runtime.ExitCodeInvalidInput)
	}

	summaries, err := lodestore.ListReports(c.Context, ds, opts)
	if err != nil {
		return cli.Exit(err.Error(), runtime.ExitCodeTransportFailure)
	}
	if opts.Limit == 0 && len(summaries) > largeListing && render.IsTerminal(c.App.ErrWriter) {
		fmt.Fprintf(c.App.ErrWriter, "%d reports listed; pass --limit to shorten the output.\n\n", len(summaries))
	}
	return r.Render(summaries)
}

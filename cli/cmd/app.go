package cmd

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/RAGGA-TIME/lifekline/types"
)

// NewApp returns the lifekline CLI application.
func NewApp(commit string) *cli.App {
	return &cli.App{
		Name:    "lifekline",
		Usage:   "Stream a life k-line report from a model and parse it into structured data",
		Version: fmt.Sprintf("%s (commit: %s)", types.Version, commit),
		Commands: []*cli.Command{
			GenerateCommand(),
			IngestCommand(),
			RepairCommand(),
			InspectCommand(),
			ListCommand(),
			VersionCommand(commit),
		},
	}
}

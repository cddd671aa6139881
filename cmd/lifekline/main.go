// Command lifekline streams a life k-line report from a model and parses
// it into structured data.
//
//	lifekline <command> [subcommand] [options]
//
// generate, ingest and repair exit with:
//
//	0  report produced
//	1  empty, malformed or schema-invalid answer
//	2  transport, provider or cancellation failure
//	3  invalid input or configuration
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/RAGGA-TIME/lifekline/cli/cmd"
)

// commit is stamped with -ldflags "-X main.commit=...".
var commit = "unknown"

func main() {
	os.Exit(run(context.Background(), os.Args, os.Stdout, os.Stderr))
}

// run executes the CLI and returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	app := cmd.NewApp(commit)
	app.Writer = stdout
	app.ErrWriter = stderr
	// Exit codes are resolved by exitCode, not by cli.HandleExitCoder.
	app.ExitErrHandler = func(*cli.Context, error) {}
	return exitCode(app.RunContext(ctx, args), stderr)
}

// exitCode prints err to stderr and maps it to an exit code. cli.Exit
// errors keep their code; anything else is 1.
func exitCode(err error, stderr io.Writer) int {
	if err == nil {
		return 0
	}
	var coder cli.ExitCoder
	if !errors.As(err, &coder) {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	// cli.Exit("", n) reads "exit status n"; there is nothing to print.
	if msg := coder.Error(); msg != "" && msg != fmt.Sprintf("exit status %d", coder.ExitCode()) {
		fmt.Fprintln(stderr, msg)
	}
	return coder.ExitCode()
}

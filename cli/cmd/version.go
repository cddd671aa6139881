package cmd

import (
	goruntime "runtime"
	"runtime/debug"

	"github.com/urfave/cli/v2"

	"github.com/RAGGA-TIME/lifekline/cli/render"
	"github.com/RAGGA-TIME/lifekline/runtime"
	"github.com/RAGGA-TIME/lifekline/types"
)

// VersionResponse is printed by the version command.
type VersionResponse struct {
	Version         string `json:"version"`
	ContractVersion string `json:"contract_version"`
	Commit          string `json:"commit"`
	GoVersion       string `json:"go_version"`
	Platform        string `json:"platform"`
}

// VersionCommand reports build information. commit comes from ldflags;
// when it is "unknown" the VCS revision stamped by the Go toolchain is used.
func VersionCommand(commit string) *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Show version information",
		Flags: OutputFlags(),
		Action: func(c *cli.Context) error {
			if c.Bool("tui") {
				return cli.Exit("--tui is not supported for version command", runtime.ExitCodeInvalidInput)
			}
			r, err := render.NewRenderer(c)
			if err != nil {
				return cli.Exit(err.Error(), runtime.ExitCodeInvalidInput)
			}
			return r.Render(newVersionResponse(commit))
		},
	}
}

func newVersionResponse(commit string) VersionResponse {
	if commit == "" || commit == "unknown" {
		commit = vcsRevision()
	}
	return VersionResponse{
		Version:         types.Version,
		ContractVersion: types.ContractVersion,
		Commit:          commit,
		GoVersion:       goruntime.Version(),
		Platform:        goruntime.GOOS + "/" + goruntime.GOARCH,
	}
}

// vcsRevision returns the short VCS revision of the binary, marked dirty
// when built from a modified tree.
func vcsRevision() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "unknown"
	}
	var rev string
	var dirty bool
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			rev = s.Value
		case "vcs.modified":
			dirty = s.Value == "true"
		}
	}
	if rev == "" {
		return "unknown"
	}
	if len(rev) > 12 {
		rev = rev[:12]
	}
	if dirty {
		rev += "-dirty"
	}
	return rev
}

// Package cmd provides CLI commands for the lifekline binary.
package cmd

import (
	"time"

	"github.com/urfave/cli/v2"

	"github.com/RAGGA-TIME/lifekline/cli/config"
)

// Shared output flags.
var (
	// FormatFlag selects output format: json, table, yaml.
	FormatFlag = &cli.StringFlag{
		Name:    "format",
		Aliases: []string{"f"},
		Usage:   "Output format: json, table, yaml",
	}

	// NoColorFlag disables colored table headers.
	NoColorFlag = &cli.BoolFlag{
		Name:  "no-color",
		Usage: "Disable colored output",
	}

	// TUIFlag enables Bubble Tea interactive mode.
	// Only valid for generate and inspect report.
	TUIFlag = &cli.BoolFlag{
		Name:  "tui",
		Usage: "Enable interactive TUI mode (generate, inspect report)",
	}

	// ConfigFlag points at a lifekline.yaml file.
	ConfigFlag = &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to config file",
		Value:   config.DefaultPath,
		EnvVars: []string{"LIFEKLINE_CONFIG"},
	}
)

// OutputFlags returns the shared output flags. Every command accepts --tui
// so unsupported commands can reject it with a clear message.
func OutputFlags() []cli.Flag {
	return []cli.Flag{
		FormatFlag,
		NoColorFlag,
		TUIFlag,
	}
}

// ProviderFlags select and configure the model backend.
func ProviderFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "provider",
			Usage:   "Model provider: openai, gemini or demo (default openai, or demo for --api-key demo)",
			EnvVars: []string{"LIFEKLINE_PROVIDER"},
		},
		&cli.StringFlag{
			Name:    "api-key",
			Usage:   "Provider API key (\"demo\" replays the bundled sample)",
			EnvVars: []string{"LIFEKLINE_API_KEY"},
		},
		&cli.StringFlag{
			Name:    "base-url",
			Usage:   "Provider base URL (OpenAI-compatible: ends before /chat/completions)",
			EnvVars: []string{"LIFEKLINE_BASE_URL"},
		},
		&cli.StringFlag{
			Name:    "model",
			Usage:   "Model name",
			EnvVars: []string{"LIFEKLINE_MODEL"},
		},
		&cli.Float64Flag{
			Name:  "temperature",
			Usage: "Sampling temperature (0 uses the provider default)",
		},
		&cli.IntFlag{
			Name:  "max-tokens",
			Usage: "Completion token limit (openai only)",
		},
		&cli.DurationFlag{
			Name:  "timeout",
			Usage: "Overall generation timeout (0 = none)",
		},
		&cli.DurationFlag{
			Name:  "demo-delay",
			Usage: "Delay between demo stream events",
			Value: 20 * time.Millisecond,
		},
	}
}

// BaziFlags configure the chart service.
func BaziFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "bazi-mode",
			Usage: "Chart resolution: off, precompute or tool",
		},
		&cli.StringFlag{
			Name:    "bazi-endpoint",
			Usage:   "Bazi service URL",
			EnvVars: []string{"LIFEKLINE_BAZI_ENDPOINT"},
		},
		&cli.DurationFlag{
			Name:  "bazi-timeout",
			Usage: "Bazi service request timeout",
		},
	}
}

// IngestFlags tune the ingestion engine.
func IngestFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{
			Name:  "allow-truncated",
			Usage: "Parse whatever arrived when the stream ends without its terminator",
		},
		&cli.BoolFlag{
			Name:  "no-colon-heuristic",
			Usage: "Disable the missing-colon rewrite of the last parse stage",
		},
		&cli.IntFlag{
			Name:  "read-size",
			Usage: "Bytes requested per stream read (0 = default)",
		},
	}
}

// StorageFlags select the Lode dataset.
func StorageFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "storage-dataset",
			Usage: "Lode dataset ID",
		},
		&cli.StringFlag{
			Name:  "storage-backend",
			Usage: "Storage backend: fs or s3",
		},
		&cli.StringFlag{
			Name:  "storage-path",
			Usage: "Storage path (fs: directory, s3: bucket/prefix)",
		},
		&cli.StringFlag{
			Name:  "storage-region",
			Usage: "AWS region for S3 backend (optional, uses default chain)",
		},
		&cli.StringFlag{
			Name:  "storage-endpoint",
			Usage: "Custom S3 endpoint (R2, MinIO)",
		},
		&cli.BoolFlag{
			Name:  "storage-s3-path-style",
			Usage: "Force path-style S3 addressing",
		},
	}
}

// AdapterFlags configure the completion event adapter.
func AdapterFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "adapter",
			Usage: "Completion event adapter: webhook or redis",
		},
		&cli.StringFlag{
			Name:  "adapter-url",
			Usage: "Webhook URL or Redis URL",
		},
		&cli.StringFlag{
			Name:  "adapter-channel",
			Usage: "Redis pub/sub channel",
		},
		&cli.StringFlag{
			Name:  "adapter-encoding",
			Usage: "Redis payload encoding: json or msgpack",
		},
		&cli.StringSliceFlag{
			Name:  "adapter-header",
			Usage: "Webhook header as key=value (repeatable)",
		},
		&cli.DurationFlag{
			Name:  "adapter-timeout",
			Usage: "Per-attempt publish timeout",
		},
		&cli.IntFlag{
			Name:  "adapter-retries",
			Usage: "Publish retries",
		},
		&cli.DurationFlag{
			Name:  "adapter-keep-latest",
			Usage: "Keep the last redis payload of each report for this long",
		},
	}
}

// join concatenates flag groups.
func join(groups ...[]cli.Flag) []cli.Flag {
	var out []cli.Flag
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}

// stringOpt returns the flag value when set on the command line, else the
// config file value when non-empty, else the flag default.
func stringOpt(c *cli.Context, name, fileValue string) string {
	if c.IsSet(name) || fileValue == "" {
		return c.String(name)
	}
	return fileValue
}

func boolOpt(c *cli.Context, name string, fileValue bool) bool {
	if c.IsSet(name) {
		return c.Bool(name)
	}
	return fileValue || c.Bool(name)
}

func intOpt(c *cli.Context, name string, fileValue int) int {
	if c.IsSet(name) || fileValue == 0 {
		return c.Int(name)
	}
	return fileValue
}

func floatOpt(c *cli.Context, name string, fileValue float64) float64 {
	if c.IsSet(name) || fileValue == 0 {
		return c.Float64(name)
	}
	return fileValue
}

func durationOpt(c *cli.Context, name string, fileValue config.Duration) time.Duration {
	if c.IsSet(name) || fileValue.Duration == 0 {
		return c.Duration(name)
	}
	return fileValue.Duration
}

// loadConfig loads --config. A missing file is an error only when the path
// was given explicitly.
func loadConfig(c *cli.Context) (*config.Config, error) {
	return config.LoadOptional(c.String("config"), c.IsSet("config"))
}

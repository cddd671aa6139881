package config

import (
	"fmt"
	"time"
)

// Config represents a lifekline.yaml configuration file.
// All values are optional and act as defaults for command flags.
type Config struct {
	Provider ProviderConfig `yaml:"provider"`
	Bazi     BaziConfig     `yaml:"bazi"`
	Ingest   IngestConfig   `yaml:"ingest"`
	Storage  StorageConfig  `yaml:"storage"`
	Adapter  AdapterConfig  `yaml:"adapter"`
}

// ProviderConfig selects and configures the model backend.
type ProviderConfig struct {
	// Name is openai, gemini or demo. Empty means openai, or demo when
	// the API key is "demo".
	Name        string   `yaml:"name"`
	APIKey      string   `yaml:"api_key"`
	BaseURL     string   `yaml:"base_url"`
	Model       string   `yaml:"model"`
	Temperature float64  `yaml:"temperature,omitempty"`
	MaxTokens   int      `yaml:"max_tokens,omitempty"`
	Timeout     Duration `yaml:"timeout,omitempty"`
}

// BaziConfig configures the chart service.
type BaziConfig struct {
	// Mode is off, precompute or tool.
	Mode     string   `yaml:"mode"`
	Endpoint string   `yaml:"endpoint"`
	Timeout  Duration `yaml:"timeout,omitempty"`
}

// IngestConfig holds ingestion defaults.
type IngestConfig struct {
	AllowTruncated   bool `yaml:"allow_truncated"`
	NoColonHeuristic bool `yaml:"no_colon_heuristic"`
	ReadSize         int  `yaml:"read_size,omitempty"`
}

// StorageConfig holds storage defaults.
type StorageConfig struct {
	Dataset     string `yaml:"dataset"`
	Backend     string `yaml:"backend"`
	Path        string `yaml:"path"`
	Region      string `yaml:"region"`
	Endpoint    string `yaml:"endpoint"`
	S3PathStyle bool   `yaml:"s3_path_style"`
}

// AdapterConfig holds completion event adapter defaults.
type AdapterConfig struct {
	Type     string            `yaml:"type"`
	URL      string            `yaml:"url"`
	Channel  string            `yaml:"channel,omitempty"`
	Encoding string            `yaml:"encoding,omitempty"`
	Headers  map[string]string `yaml:"headers,omitempty"`
	Timeout  Duration          `yaml:"timeout,omitempty"`
	Retries  *int              `yaml:"retries,omitempty"`
	// KeepLatest retains the last redis payload per report.
	KeepLatest Duration `yaml:"keep_latest,omitempty"`
}

// Validate checks enum values. Required-ness is checked by the commands,
// since flags may still supply missing values.
func (c *Config) Validate() error {
	if err := oneOf("provider.name", c.Provider.Name, "openai", "gemini", "demo"); err != nil {
		return err
	}
	if err := oneOf("bazi.mode", c.Bazi.Mode, "off", "precompute", "tool"); err != nil {
		return err
	}
	if err := oneOf("storage.backend", c.Storage.Backend, "fs", "s3"); err != nil {
		return err
	}
	if err := oneOf("adapter.type", c.Adapter.Type, "webhook", "redis"); err != nil {
		return err
	}
	if err := oneOf("adapter.encoding", c.Adapter.Encoding, "json", "msgpack"); err != nil {
		return err
	}
	if c.Adapter.Retries != nil && *c.Adapter.Retries < 0 {
		return fmt.Errorf("adapter.retries must be >= 0, got %d", *c.Adapter.Retries)
	}
	return nil
}

// oneOf accepts an empty value or one of allowed.
func oneOf(field, value string, allowed ...string) error {
	if value == "" {
		return nil
	}
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}
	return fmt.Errorf("%s: unknown value %q (want one of %v)", field, value, allowed)
}

// Duration wraps time.Duration for YAML string parsing (e.g. "10s", "5m").
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses a duration string like "10s" or "5m30s".
func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}

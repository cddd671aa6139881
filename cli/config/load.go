package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultPath is the config file looked up when --config is not given.
const DefaultPath = "lifekline.yaml"

// Load reads the config file at path and parses it.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return nil, fmt.Errorf("config file not found: %s", path)
	case err != nil:
		return nil, fmt.Errorf("cannot read config file %q: %w", path, err)
	}
	return Parse(data, path)
}

// Parse expands environment references in data and decodes it. Unknown
// keys are rejected; an empty document yields a zero config. name only
// labels errors.
func Parse(data []byte, name string) (*Config, error) {
	expanded, err := Expand(string(data), os.LookupEnv)
	if err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", name, err)
	}

	cfg := new(Config)
	dec := yaml.NewDecoder(bytes.NewBufferString(expanded))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && err != io.EOF {
		return nil, fmt.Errorf("invalid YAML in %s: %w", name, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", name, err)
	}
	return cfg, nil
}

// LoadOptional is Load for the implicit default path: when explicit is
// false and nothing exists at path, it returns an empty config.
func LoadOptional(path string, explicit bool) (*Config, error) {
	if explicit {
		return Load(path)
	}
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return &Config{}, nil
	}
	return Load(path)
}

package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/justapithecus/lode/lode"
	"github.com/urfave/cli/v2"

	"github.com/RAGGA-TIME/lifekline/adapter"
	redisadapter "github.com/RAGGA-TIME/lifekline/adapter/redis"
	"github.com/RAGGA-TIME/lifekline/adapter/webhook"
	"github.com/RAGGA-TIME/lifekline/bazi"
	"github.com/RAGGA-TIME/lifekline/cli/config"
	lodestore "github.com/RAGGA-TIME/lifekline/lode"
	"github.com/RAGGA-TIME/lifekline/log"
	"github.com/RAGGA-TIME/lifekline/provider"
	"github.com/RAGGA-TIME/lifekline/provider/demo"
	"github.com/RAGGA-TIME/lifekline/provider/gemini"
	"github.com/RAGGA-TIME/lifekline/provider/openai"
	"github.com/RAGGA-TIME/lifekline/runtime"
	"github.com/RAGGA-TIME/lifekline/sse"
)

// Provider names accepted by --provider.
const (
	providerOpenAI = "openai"
	providerGemini = "gemini"
	providerDemo   = "demo"
)

// providerChoice holds the resolved provider configuration.
type providerChoice struct {
	name        string
	creds       provider.Credentials
	temperature float64
	maxTokens   int
	demoDelay   time.Duration
	readSize    int
}

func resolveProvider(c *cli.Context, cfg *config.Config) providerChoice {
	return providerChoice{
		name: stringOpt(c, "provider", cfg.Provider.Name),
		creds: provider.Credentials{
			APIKey:  stringOpt(c, "api-key", cfg.Provider.APIKey),
			BaseURL: stringOpt(c, "base-url", cfg.Provider.BaseURL),
			Model:   stringOpt(c, "model", cfg.Provider.Model),
		},
		temperature: floatOpt(c, "temperature", cfg.Provider.Temperature),
		maxTokens:   intOpt(c, "max-tokens", cfg.Provider.MaxTokens),
		demoDelay:   c.Duration("demo-delay"),
		readSize:    intOpt(c, "read-size", cfg.Ingest.ReadSize),
	}
}

// providerName returns the backend to use. The demo key selects demo
// unless another provider was named explicitly.
func (p providerChoice) providerName() string {
	if p.name != "" {
		return p.name
	}
	if p.creds.IsDemo() {
		return providerDemo
	}
	return providerOpenAI
}

// newProvider builds the selected provider. Credential errors are wrapped
// in runtime.ErrInvalidInput.
func newProvider(ctx context.Context, choice providerChoice, logger *log.Logger) (provider.Provider, error) {
	streamOpts := []sse.StreamOption{
		sse.WithReadSize(choice.readSize),
		sse.WithSkipFunc(func(payload string, err error) {
			logger.Debug("skipping undecodable frame", map[string]any{
				"error":         err.Error(),
				"payload_bytes": len(payload),
			})
		}),
	}

	var (
		p   provider.Provider
		err error
	)
	switch name := choice.providerName(); name {
	case providerDemo:
		return demo.New(demo.Config{Delay: choice.demoDelay, StreamOptions: streamOpts}), nil
	case providerOpenAI:
		p, err = openai.New(openai.Config{
			Credentials:   choice.creds,
			Temperature:   choice.temperature,
			MaxTokens:     choice.maxTokens,
			StreamOptions: streamOpts,
		})
	case providerGemini:
		p, err = gemini.New(ctx, gemini.Config{
			Credentials: choice.creds,
			Temperature: float32(choice.temperature),
		})
	default:
		return nil, fmt.Errorf("%w: unknown provider %q (want openai, gemini or demo)", runtime.ErrInvalidInput, name)
	}
	if err != nil {
		if provider.IsInvalidCredentials(err) {
			return nil, fmt.Errorf("%w: %w", runtime.ErrInvalidInput, err)
		}
		return nil, err
	}
	return p, nil
}

// baziChoice holds the resolved chart service configuration.
type baziChoice struct {
	mode     string
	endpoint string
	timeout  time.Duration
}

func resolveBazi(c *cli.Context, cfg *config.Config) baziChoice {
	return baziChoice{
		mode:     stringOpt(c, "bazi-mode", cfg.Bazi.Mode),
		endpoint: stringOpt(c, "bazi-endpoint", cfg.Bazi.Endpoint),
		timeout:  durationOpt(c, "bazi-timeout", cfg.Bazi.Timeout),
	}
}

// newBazi returns the parsed mode and, when an endpoint is configured, a
// client. With an endpoint and no mode, precompute is used.
func newBazi(choice baziChoice) (runtime.BaziMode, *bazi.Client, error) {
	modeName := choice.mode
	if modeName == "" && choice.endpoint != "" {
		modeName = string(runtime.BaziPrecompute)
	}
	mode, err := runtime.ParseBaziMode(modeName)
	if err != nil {
		return "", nil, err
	}
	if mode == runtime.BaziOff {
		return mode, nil, nil
	}
	if choice.endpoint == "" {
		return "", nil, fmt.Errorf("--bazi-mode %s requires --bazi-endpoint", mode)
	}
	client, err := bazi.NewClient(bazi.Config{Endpoint: choice.endpoint, Timeout: choice.timeout})
	if err != nil {
		return "", nil, err
	}
	return mode, client, nil
}

// storageChoice holds the resolved Lode storage configuration.
type storageChoice struct {
	dataset   string
	backend   string
	path      string
	region    string
	endpoint  string
	pathStyle bool
}

func resolveStorage(c *cli.Context, cfg *config.Config) storageChoice {
	return storageChoice{
		dataset:   stringOpt(c, "storage-dataset", cfg.Storage.Dataset),
		backend:   stringOpt(c, "storage-backend", cfg.Storage.Backend),
		path:      stringOpt(c, "storage-path", cfg.Storage.Path),
		region:    stringOpt(c, "storage-region", cfg.Storage.Region),
		endpoint:  stringOpt(c, "storage-endpoint", cfg.Storage.Endpoint),
		pathStyle: boolOpt(c, "storage-s3-path-style", cfg.Storage.S3PathStyle),
	}
}

// enabled reports whether a storage path was configured.
func (s storageChoice) enabled() bool {
	return s.path != ""
}

func (s storageChoice) datasetID() string {
	if s.dataset == "" {
		return lodestore.DefaultDataset
	}
	return s.dataset
}

// factory builds the Lode store factory of the configured backend.
func (s storageChoice) factory(ctx context.Context) (lode.StoreFactory, error) {
	if !s.enabled() {
		return nil, errors.New("--storage-path is required")
	}
	switch s.backend {
	case "", "fs":
		return lode.NewFSFactory(s.path), nil
	case "s3":
		bucket, prefix := lodestore.ParseS3Path(s.path)
		return lodestore.NewS3Factory(ctx, lodestore.S3Config{
			Bucket:       bucket,
			Prefix:       prefix,
			Region:       s.region,
			Endpoint:     s.endpoint,
			UsePathStyle: s.pathStyle,
		})
	default:
		return nil, fmt.Errorf("unknown storage backend %q (want fs or s3)", s.backend)
	}
}

func (s storageChoice) newWriter(ctx context.Context) (*lodestore.LodeClient, error) {
	factory, err := s.factory(ctx)
	if err != nil {
		return nil, err
	}
	return lodestore.NewLodeClientWithFactory(s.datasetID(), factory)
}

func (s storageChoice) newReader(ctx context.Context) (lode.Dataset, lode.StoreFactory, error) {
	factory, err := s.factory(ctx)
	if err != nil {
		return nil, nil, err
	}
	ds, err := lodestore.NewReadDataset(s.datasetID(), factory)
	if err != nil {
		return nil, nil, lodestore.WrapInitError(err, s.datasetID())
	}
	return ds, factory, nil
}

// adapterChoice holds the resolved adapter configuration.
type adapterChoice struct {
	kind     string
	url      string
	channel  string
	encoding string
	headers  map[string]string
	timeout  time.Duration
	retries  *int
	keep     time.Duration
}

func resolveAdapter(c *cli.Context, cfg *config.Config) (adapterChoice, error) {
	headers := make(map[string]string, len(cfg.Adapter.Headers))
	for k, v := range cfg.Adapter.Headers {
		headers[k] = v
	}
	for _, h := range c.StringSlice("adapter-header") {
		k, v, ok := strings.Cut(h, "=")
		if !ok || strings.TrimSpace(k) == "" {
			return adapterChoice{}, fmt.Errorf("invalid --adapter-header %q (want key=value)", h)
		}
		headers[strings.TrimSpace(k)] = v
	}

	retries := cfg.Adapter.Retries
	if c.IsSet("adapter-retries") {
		n := c.Int("adapter-retries")
		retries = &n
	}

	return adapterChoice{
		kind:     stringOpt(c, "adapter", cfg.Adapter.Type),
		url:      stringOpt(c, "adapter-url", cfg.Adapter.URL),
		channel:  stringOpt(c, "adapter-channel", cfg.Adapter.Channel),
		encoding: stringOpt(c, "adapter-encoding", cfg.Adapter.Encoding),
		headers:  headers,
		timeout:  durationOpt(c, "adapter-timeout", cfg.Adapter.Timeout),
		retries:  retries,
		keep:     durationOpt(c, "adapter-keep-latest", cfg.Adapter.KeepLatest),
	}, nil
}

// newAdapter builds the configured adapter, or nil when none is set.
func newAdapter(choice adapterChoice) (adapter.Adapter, error) {
	switch choice.kind {
	case "":
		return nil, nil
	case "webhook":
		retries := webhook.DefaultRetries
		if choice.retries != nil {
			retries = *choice.retries
		}
		a, err := webhook.New(webhook.Config{
			URL:     choice.url,
			Headers: choice.headers,
			Timeout: choice.timeout,
			Retries: retries,
		})
		if err != nil {
			return nil, err
		}
		return a, nil
	case "redis":
		retries := redisadapter.DefaultRetries
		if choice.retries != nil {
			retries = *choice.retries
		}
		a, err := redisadapter.New(redisadapter.Config{
			URL:        choice.url,
			Channel:    choice.channel,
			Encoding:   choice.encoding,
			Timeout:    choice.timeout,
			Retries:    retries,
			KeepLatest: choice.keep,
		})
		if err != nil {
			return nil, err
		}
		return a, nil
	default:
		return nil, fmt.Errorf("unknown adapter %q (want webhook or redis)", choice.kind)
	}
}

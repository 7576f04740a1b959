// Package config loads sitecheck settings from defaults, a YAML file, a
// .env file and SITECHECK_* environment variables. Command-line flags are
// applied last by the CLI.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"

	"github.com/lukemcguire/sitecheck/crawler"
	"github.com/lukemcguire/sitecheck/extract"
	"github.com/lukemcguire/sitecheck/result"
	"github.com/lukemcguire/sitecheck/urlutil"
)

const (
	AppName           = "sitecheck"
	DefaultConfigFile = ".sitecheck.yaml"
	DefaultBaseURL    = "http://localhost:8080"
	DefaultOutput     = "broken_links.yaml"
)

// File is the on-disk configuration. Durations are whole seconds.
type File struct {
	BaseURL          string   `yaml:"base_url"`
	Engine           string   `yaml:"engine"`
	MaxConcurrent    int      `yaml:"max_concurrent"` // 0 picks the engine default
	Timeout          int      `yaml:"timeout"`
	DiscoveryTimeout int      `yaml:"discovery_timeout"`
	Output           string   `yaml:"output"`
	Format           string   `yaml:"format"`
	Extractor        string   `yaml:"extractor"`
	FallbackStatus   []int    `yaml:"fallback_status"`
	FallbackAnyError bool     `yaml:"fallback_any_error"`
	ExcludeExt       []string `yaml:"exclude_ext"`
	RateLimit        int      `yaml:"rate_limit"`
	AdaptiveRate     bool     `yaml:"adaptive_rate"`
	Retries          int      `yaml:"retries"`
	UserAgent        string   `yaml:"user_agent"`
	RespectRobots    bool     `yaml:"respect_robots"`
	Sitemap          bool     `yaml:"sitemap"`
	FollowLinks      bool     `yaml:"follow_links"`
	BloomPageSet     bool     `yaml:"bloom_page_set"`
	BatchSize        int      `yaml:"batch_size"`
	MemoryLimitMB    int64    `yaml:"memory_limit_mb"`
	FailOnBroken     bool     `yaml:"fail_on_broken"`
}

// Default returns the built-in settings.
func Default() File {
	fallback := crawler.DefaultFallbackPolicy()
	return File{
		BaseURL:          DefaultBaseURL,
		Engine:           string(crawler.EnginePool),
		Timeout:          int(crawler.DefaultRequestTimeout / time.Second),
		DiscoveryTimeout: int(crawler.DefaultDiscoveryTimeout / time.Second),
		Output:           DefaultOutput,
		Format:           string(result.FormatYAML),
		Extractor:        string(extract.KindRegex),
		FallbackStatus:   fallback.Statuses,
		FallbackAnyError: fallback.OnAnyError,
		ExcludeExt:       slices.Clone(urlutil.DefaultExcludedExtensions),
		UserAgent:        crawler.DefaultUserAgent,
		BatchSize:        crawler.DefaultBatchSize,
	}
}

// Find returns the configuration file to load. An explicit path must
// exist. Otherwise ./.sitecheck.yaml and then the XDG config directory are
// searched; "" means no file was found.
func Find(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("%w: %s", ErrConfigNotFound, explicit)
		}
		return explicit, nil
	}

	candidates := []string{
		DefaultConfigFile,
		filepath.Join(xdg.ConfigHome, AppName, "config.yaml"),
	}
	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", nil
}

// Load reads path over base; keys absent from the file keep base's values.
func Load(path string, base File) (File, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path chosen by the user
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return base, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return base, fmt.Errorf("read config %s: %w", path, err)
	}

	f := base
	if err := yaml.Unmarshal(data, &f); err != nil {
		return base, fmt.Errorf("parse config %s: %w", path, err)
	}
	return f, nil
}

// Validate checks the settings for values no run could use.
func (f File) Validate() error {
	if f.BaseURL == "" {
		return ErrMissingBaseURL
	}
	if _, err := urlutil.TrimBase(f.BaseURL); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidBaseURL, f.BaseURL)
	}
	switch crawler.Engine(f.Engine) {
	case crawler.EnginePool, crawler.EngineCooperative:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidEngine, f.Engine)
	}
	if f.FollowLinks && crawler.Engine(f.Engine) != crawler.EngineCooperative {
		return ErrFollowNeedsCooperative
	}
	if f.Timeout <= 0 || f.DiscoveryTimeout <= 0 {
		return ErrInvalidTimeout
	}
	if f.MaxConcurrent < 0 {
		return ErrInvalidConcurrency
	}
	if f.BatchSize <= 0 {
		return ErrInvalidBatchSize
	}
	if f.RateLimit < 0 {
		return ErrInvalidRateLimit
	}
	if f.Retries < 0 {
		return ErrInvalidRetries
	}
	if f.MemoryLimitMB < 0 {
		return ErrInvalidMemoryLimit
	}
	for _, code := range f.FallbackStatus {
		if code < 400 || code > 599 {
			return fmt.Errorf("%w: %d", ErrInvalidFallbackStatus, code)
		}
	}
	if _, err := result.ParseFormat(f.Format); err != nil {
		return err
	}
	if _, err := extract.ParseKind(f.Extractor); err != nil {
		return err
	}
	return nil
}

// Crawler converts validated settings into a crawler.Config.
func (f File) Crawler(logger *slog.Logger) (crawler.Config, error) {
	if err := f.Validate(); err != nil {
		return crawler.Config{}, err
	}
	kind, _ := extract.ParseKind(f.Extractor)

	cfg := crawler.DefaultConfig(f.BaseURL)
	cfg.Engine = crawler.Engine(f.Engine)
	cfg.Concurrency = f.MaxConcurrent
	cfg.RequestTimeout = time.Duration(f.Timeout) * time.Second
	cfg.DiscoveryTimeout = time.Duration(f.DiscoveryTimeout) * time.Second
	cfg.UserAgent = f.UserAgent
	cfg.RateLimit = f.RateLimit
	cfg.AdaptiveRate = f.AdaptiveRate
	cfg.RetryPolicy.MaxRetries = f.Retries
	cfg.Fallback = crawler.FallbackPolicy{Statuses: slices.Clone(f.FallbackStatus), OnAnyError: f.FallbackAnyError}
	cfg.Extractor = kind
	cfg.ExcludedExtensions = slices.Clone(f.ExcludeExt)
	if cfg.ExcludedExtensions == nil {
		cfg.ExcludedExtensions = []string{}
	}
	cfg.RespectRobots = f.RespectRobots
	cfg.UseSitemap = f.Sitemap
	cfg.FollowLinks = f.FollowLinks
	cfg.BloomPageSet = f.BloomPageSet
	cfg.BatchSize = f.BatchSize
	cfg.MemoryLimitMB = f.MemoryLimitMB
	cfg.Logger = logger
	return cfg, nil
}

package crawler

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"slices"
	"time"

	"github.com/lukemcguire/sitecheck/extract"
	"github.com/lukemcguire/sitecheck/urlutil"
)

// Engine names a scheduling backend.
type Engine string

const (
	// EnginePool runs a fixed set of workers, each with its own HTTP
	// client, over two phases: all pages, then all unique links.
	EnginePool Engine = "pool"
	// EngineCooperative runs every request through one shared client
	// behind a concurrency gate, draining pages in batches and checking
	// links as soon as they are first seen.
	EngineCooperative Engine = "cooperative"
)

const (
	DefaultRequestTimeout   = 10 * time.Second
	DefaultDiscoveryTimeout = 30 * time.Second
	DefaultBatchSize        = 20
	DefaultMaxBodyBytes     = 5 << 20
	DefaultCooperativeLimit = 5
	DefaultUserAgent        = "sitecheck/1.0 (+https://github.com/lukemcguire/sitecheck)"
)

var (
	ErrUnknownEngine   = errors.New("unknown engine")
	ErrFollowNeedsCoop = errors.New("following linked pages requires the cooperative engine")
)

// FallbackPolicy decides when a HEAD probe is confirmed with a GET.
type FallbackPolicy struct {
	Statuses   []int // HEAD statuses that always trigger a GET
	OnAnyError bool  // any HEAD status >= 400 triggers a GET
}

// DefaultFallbackPolicy retries 403 and 405 explicitly and confirms every
// other failure status with a GET as well.
func DefaultFallbackPolicy() FallbackPolicy {
	return FallbackPolicy{Statuses: []int{403, 405}, OnAnyError: true}
}

// Triggers reports whether a HEAD response with status needs a GET.
func (f FallbackPolicy) Triggers(status int) bool {
	if slices.Contains(f.Statuses, status) {
		return true
	}
	return f.OnAnyError && status >= 400
}

// Config holds crawler configuration.
type Config struct {
	BaseURL            string         // site root, e.g. "https://docs.example.com"
	Engine             Engine         // scheduling backend (default pool)
	Concurrency        int            // workers (pool) or in-flight requests (cooperative)
	RequestTimeout     time.Duration  // per page fetch or link probe (default 10s)
	DiscoveryTimeout   time.Duration  // landing page fetch (default 30s)
	UserAgent          string         // User-Agent header sent with every request
	RateLimit          int            // requests per second across all workers, 0 = unlimited
	AdaptiveRate       bool           // let RateLimit float with observed response times
	RetryPolicy        RetryPolicy    // transient failure retries (default none)
	Fallback           FallbackPolicy // HEAD to GET confirmation rules
	Extractor          extract.Kind   // link extraction backend (default regex)
	ExcludedExtensions []string       // non-page resources skipped during extraction
	RespectRobots      bool           // skip pages disallowed by robots.txt
	UseSitemap         bool           // add sitemap.xml entries to the navigation seed set
	FollowLinks        bool           // cooperative only: crawl linked pages, not just check them
	BatchSize          int            // cooperative pages per batch (default 20)
	BloomPageSet       bool           // track followed pages in a disk-backed bloom filter
	MemoryLimitMB      int64          // soft memory limit; 0 disables the memory watch
	MaxBodyBytes       int64          // page bodies are truncated beyond this (default 5 MiB)
	Logger             *slog.Logger   // progress and diagnostics (default slog.Default())
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig(baseURL string) Config {
	return Config{
		BaseURL:            baseURL,
		Engine:             EnginePool,
		Concurrency:        defaultConcurrency(EnginePool),
		RequestTimeout:     DefaultRequestTimeout,
		DiscoveryTimeout:   DefaultDiscoveryTimeout,
		UserAgent:          DefaultUserAgent,
		RetryPolicy:        DefaultRetryPolicy(),
		Fallback:           DefaultFallbackPolicy(),
		Extractor:          extract.KindRegex,
		ExcludedExtensions: slices.Clone(urlutil.DefaultExcludedExtensions),
		BatchSize:          DefaultBatchSize,
		MaxBodyBytes:       DefaultMaxBodyBytes,
	}
}

// defaultConcurrency leaves one CPU for the coordinator in pool mode.
func defaultConcurrency(engine Engine) int {
	if engine == EngineCooperative {
		return DefaultCooperativeLimit
	}
	return max(runtime.NumCPU()-1, 1)
}

// withDefaults fills zero values and validates the result.
func (cfg Config) withDefaults() (Config, error) {
	if cfg.Engine == "" {
		cfg.Engine = EnginePool
	}
	if cfg.Engine != EnginePool && cfg.Engine != EngineCooperative {
		return cfg, fmt.Errorf("%w: %q", ErrUnknownEngine, cfg.Engine)
	}
	if cfg.FollowLinks && cfg.Engine != EngineCooperative {
		return cfg, ErrFollowNeedsCoop
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultConcurrency(cfg.Engine)
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}
	if cfg.DiscoveryTimeout <= 0 {
		cfg.DiscoveryTimeout = DefaultDiscoveryTimeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.RateLimit < 0 {
		cfg.RateLimit = 0
	}
	cfg.RetryPolicy = cfg.RetryPolicy.normalized()
	if cfg.Extractor == "" {
		cfg.Extractor = extract.KindRegex
	}
	if cfg.ExcludedExtensions == nil {
		cfg.ExcludedExtensions = slices.Clone(urlutil.DefaultExcludedExtensions)
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return cfg, nil
}

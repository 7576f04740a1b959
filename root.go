package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/lukemcguire/sitecheck/config"
	"github.com/lukemcguire/sitecheck/crawler"
	"github.com/lukemcguire/sitecheck/result"
	"github.com/lukemcguire/sitecheck/tui"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

// errIssuesFound ends a --fail-on-broken run that found problems. The
// summary has already been printed, so Execute adds nothing.
var errIssuesFound = errors.New("broken links found")

const dotenvFile = ".env"

// cliOptions are flags that never come from a config file.
type cliOptions struct {
	configPath string
	verbose    bool
	tui        bool
}

// NewRootCmd creates the sitecheck command.
func NewRootCmd() *cobra.Command {
	var (
		opts  cliOptions
		flags = config.Default()
	)

	cmd := &cobra.Command{
		Use:   "sitecheck",
		Short: "Check a deployed documentation site for broken links",
		Long: `sitecheck loads a documentation site's landing page, treats every page its
navigation links to as a page to verify, and checks each distinct internal
link found in those pages' content exactly once.

Navigation pages that fail to load and pages with broken links are written
to a report (YAML by default). Settings are read from built-in defaults, a
config file, a .env file and SITECHECK_* variables, then command-line flags.`,
		Version:       version,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, opts, flags)
		},
	}

	f := cmd.Flags()
	f.StringVar(&flags.BaseURL, "base-url", flags.BaseURL, "site root to check")
	f.StringVar(&flags.Engine, "engine", flags.Engine, "scheduling engine: pool or cooperative")
	f.IntVar(&flags.MaxConcurrent, "max-concurrent", 0, "concurrent workers or in-flight requests (0 = engine default)")
	f.IntVar(&flags.MaxConcurrent, "processes", 0, "alias for --max-concurrent")
	f.IntVar(&flags.Timeout, "timeout", flags.Timeout, "per-request timeout in seconds")
	f.IntVar(&flags.DiscoveryTimeout, "discovery-timeout", flags.DiscoveryTimeout, "landing page timeout in seconds")
	f.StringVarP(&flags.Output, "output", "o", flags.Output, `report path ("-" for stdout)`)
	f.StringVar(&flags.Format, "format", flags.Format, "report format: yaml, json, csv or markdown")
	f.StringVar(&flags.Extractor, "extractor", flags.Extractor, "link extractor: regex or dom")
	f.IntSliceVar(&flags.FallbackStatus, "fallback-status", flags.FallbackStatus, "HEAD statuses that are always confirmed with GET")
	f.BoolVar(&flags.FallbackAnyError, "fallback-any-error", flags.FallbackAnyError, "confirm every failing HEAD with GET")
	f.StringSliceVar(&flags.ExcludeExt, "exclude-ext", flags.ExcludeExt, "link extensions that are not pages")
	f.IntVar(&flags.RateLimit, "rate-limit", 0, "requests per second across the run (0 = unlimited)")
	f.BoolVar(&flags.AdaptiveRate, "adaptive-rate", false, "adjust the rate limit to the site's response times")
	f.IntVar(&flags.Retries, "retries", 0, "retries for transient failures")
	f.StringVar(&flags.UserAgent, "user-agent", flags.UserAgent, "User-Agent header")
	f.BoolVar(&flags.RespectRobots, "respect-robots", false, "skip pages disallowed by robots.txt")
	f.BoolVar(&flags.FollowLinks, "follow-links", false, "cooperative engine: also process linked pages")
	f.BoolVar(&flags.BloomPageSet, "bloom-page-set", false, "track followed pages in a disk-backed bloom filter")
	f.BoolVar(&flags.Sitemap, "sitemap", false, "add sitemap.xml entries to the navigation pages")
	f.IntVar(&flags.BatchSize, "batch-size", flags.BatchSize, "cooperative engine: pages per batch")
	f.Int64Var(&flags.MemoryLimitMB, "memory-limit", 0, "soft memory limit in MiB; shrinks batches under pressure")
	f.BoolVar(&flags.FailOnBroken, "fail-on-broken", false, "exit 1 when broken links or navigation errors are found")

	f.StringVar(&opts.configPath, "config", "", "config file (default ./.sitecheck.yaml, then the user config dir)")
	f.BoolVar(&opts.tui, "tui", false, "show an interactive progress view")
	f.BoolVarP(&opts.verbose, "verbose", "v", false, "enable debug logging")

	return cmd
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		if !errors.Is(err, errIssuesFound) {
			fmt.Fprintln(os.Stderr, "ERROR:", err)
		}
		os.Exit(1)
	}
}

func setupLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// loadSettings layers the config file, the environment and explicitly set
// flags over the defaults.
func loadSettings(fs *pflag.FlagSet, configPath string, flags config.File, logger *slog.Logger) (config.File, error) {
	settings := config.Default()

	path, err := config.Find(configPath)
	if err != nil {
		return settings, err
	}
	if path != "" {
		if settings, err = config.Load(path, settings); err != nil {
			return settings, err
		}
		logger.Debug("loaded config file", "path", path)
	}

	if settings, err = config.ApplyEnv(settings, dotenvFile, os.LookupEnv); err != nil {
		return settings, err
	}

	fs.Visit(func(fl *pflag.Flag) {
		if apply, ok := flagOverrides[fl.Name]; ok {
			apply(&settings, flags)
		}
	})
	return settings, settings.Validate()
}

// flagOverrides copies a changed flag's value into the layered settings.
var flagOverrides = map[string]func(dst *config.File, src config.File){
	"base-url":           func(d *config.File, s config.File) { d.BaseURL = s.BaseURL },
	"engine":             func(d *config.File, s config.File) { d.Engine = s.Engine },
	"max-concurrent":     func(d *config.File, s config.File) { d.MaxConcurrent = s.MaxConcurrent },
	"processes":          func(d *config.File, s config.File) { d.MaxConcurrent = s.MaxConcurrent },
	"timeout":            func(d *config.File, s config.File) { d.Timeout = s.Timeout },
	"discovery-timeout":  func(d *config.File, s config.File) { d.DiscoveryTimeout = s.DiscoveryTimeout },
	"output":             func(d *config.File, s config.File) { d.Output = s.Output },
	"format":             func(d *config.File, s config.File) { d.Format = s.Format },
	"extractor":          func(d *config.File, s config.File) { d.Extractor = s.Extractor },
	"fallback-status":    func(d *config.File, s config.File) { d.FallbackStatus = s.FallbackStatus },
	"fallback-any-error": func(d *config.File, s config.File) { d.FallbackAnyError = s.FallbackAnyError },
	"exclude-ext":        func(d *config.File, s config.File) { d.ExcludeExt = s.ExcludeExt },
	"rate-limit":         func(d *config.File, s config.File) { d.RateLimit = s.RateLimit },
	"adaptive-rate":      func(d *config.File, s config.File) { d.AdaptiveRate = s.AdaptiveRate },
	"retries":            func(d *config.File, s config.File) { d.Retries = s.Retries },
	"user-agent":         func(d *config.File, s config.File) { d.UserAgent = s.UserAgent },
	"respect-robots":     func(d *config.File, s config.File) { d.RespectRobots = s.RespectRobots },
	"follow-links":       func(d *config.File, s config.File) { d.FollowLinks = s.FollowLinks },
	"bloom-page-set":     func(d *config.File, s config.File) { d.BloomPageSet = s.BloomPageSet },
	"sitemap":            func(d *config.File, s config.File) { d.Sitemap = s.Sitemap },
	"batch-size":         func(d *config.File, s config.File) { d.BatchSize = s.BatchSize },
	"memory-limit":       func(d *config.File, s config.File) { d.MemoryLimitMB = s.MemoryLimitMB },
	"fail-on-broken":     func(d *config.File, s config.File) { d.FailOnBroken = s.FailOnBroken },
}

func run(cmd *cobra.Command, opts cliOptions, flags config.File) error {
	stderr := cmd.ErrOrStderr()
	logger := setupLogger(stderr, opts.verbose)

	settings, err := loadSettings(cmd.Flags(), opts.configPath, flags, logger)
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	format, err := result.ParseFormat(settings.Format)
	if err != nil {
		return err
	}

	runLogger := logger
	if opts.tui {
		runLogger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	cfg, err := settings.Crawler(runLogger)
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var rep *result.Report
	if opts.tui {
		rep, err = runTUI(ctx, cfg, stderr)
	} else {
		var c *crawler.Crawler
		if c, err = crawler.New(cfg, nil); err != nil {
			return err
		}
		rep, err = c.Run(ctx)
	}
	if err != nil {
		var discErr *crawler.DiscoveryError
		if errors.As(err, &discErr) {
			return discErr
		}
		return fmt.Errorf("link check: %w", err)
	}

	if err := writeReport(cmd.OutOrStdout(), settings.Output, format, rep); err != nil {
		return err
	}
	if !opts.tui {
		result.PrintSummary(stderr, rep)
	}
	logger.Info("report written", "path", settings.Output, "format", string(format))

	if settings.FailOnBroken && rep.HasIssues() {
		return errIssuesFound
	}
	return nil
}

func runTUI(ctx context.Context, cfg crawler.Config, out io.Writer) (*result.Report, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	progressCh := make(chan crawler.CrawlEvent, 256)
	c, err := crawler.New(cfg, progressCh)
	if err != nil {
		return nil, err
	}

	program := tea.NewProgram(tui.NewModel(ctx, cancel, c, progressCh), tea.WithOutput(out))
	final, err := program.Run()
	if err != nil {
		return nil, fmt.Errorf("run progress view: %w", err)
	}
	model, ok := final.(tui.Model)
	if !ok {
		return nil, fmt.Errorf("unexpected progress view model %T", final)
	}
	if model.Quitting() && model.Report() == nil {
		return nil, context.Canceled
	}
	return model.Report(), model.Err()
}

func writeReport(stdout io.Writer, path string, format result.Format, rep *result.Report) error {
	if path == "-" {
		return result.Write(stdout, format, rep)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report: %w", err)
	}
	if err := result.Write(f, format, rep); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close report: %w", err)
	}
	return nil
}

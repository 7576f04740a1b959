// Package crawler checks a deployed documentation site for broken internal
// links. A run discovers the pages advertised by the landing page, fetches
// each of them once, and checks every distinct internal link once, using
// one of two interchangeable scheduling engines.
package crawler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/lukemcguire/sitecheck/extract"
	"github.com/lukemcguire/sitecheck/result"
	"github.com/lukemcguire/sitecheck/urlutil"
)

// Scheduler drives the page and link phases of a run. Both engines satisfy
// the same contract: every page is processed at most once, every distinct
// link is checked exactly once, and every result reaches agg.
type Scheduler interface {
	Name() string
	Crawl(ctx context.Context, pages []PageJob, agg *result.Aggregator) error
}

// Crawler runs one link check against a site.
type Crawler struct {
	cfg       Config
	base      string
	filter    extract.Filter
	extractor extract.Extractor
	limiter   *AdaptiveLimiter
	robots    *RobotsChecker
	discovery *Worker
	scheduler Scheduler
	progress  chan<- CrawlEvent
	logger    *slog.Logger
}

// New validates cfg and assembles a Crawler. progressCh is optional; when
// set it receives one CrawlEvent per processed page and checked link and is
// never closed by the Crawler.
func New(cfg Config, progressCh chan<- CrawlEvent) (*Crawler, error) {
	cfg, err := cfg.withDefaults()
	if err != nil {
		return nil, err
	}
	base, err := urlutil.TrimBase(cfg.BaseURL)
	if err != nil {
		return nil, err
	}

	filter := extract.Filter{BaseURL: base, ExcludedExtensions: cfg.ExcludedExtensions}
	ex, err := extract.New(cfg.Extractor, filter)
	if err != nil {
		return nil, err
	}

	c := &Crawler{
		cfg:       cfg,
		base:      base,
		filter:    filter,
		extractor: ex,
		progress:  progressCh,
		logger:    cfg.Logger.With("run_id", uuid.NewString(), "engine", string(cfg.Engine)),
	}
	c.cfg.Logger = c.logger

	if cfg.RateLimit > 0 {
		c.limiter = NewAdaptiveLimiter(cfg.RateLimit, DefaultTargetRTT)
		if !cfg.AdaptiveRate {
			c.limiter.Pin(cfg.RateLimit)
		}
	}
	if cfg.RespectRobots {
		c.robots = NewRobotsChecker(&http.Client{Timeout: robotsFetchWait})
	}
	c.discovery = NewWorker(c.cfg, ex, c.limiter, c.robots, 1)

	opts := []Option{
		WithLogger(c.logger),
		WithProgress(progressCh),
	}
	switch cfg.Engine {
	case EngineCooperative:
		opts = append(opts,
			WithBatchSize(cfg.BatchSize),
			WithFollowLinks(cfg.FollowLinks),
		)
		if cfg.BloomPageSet {
			opts = append(opts, WithPageSet(func() (PageSet, error) {
				set, err := NewBloomPageSet("")
				if err != nil {
					return nil, err
				}
				c.logger.Debug("bloom page set created", "path", set.Path())
				return set, nil
			}))
		}
		if cfg.MemoryLimitMB > 0 {
			opts = append(opts, WithMemoryWatcher(NewMemoryWatcher(cfg.MemoryLimitMB)))
		}
		shared := NewWorker(c.cfg, ex, c.limiter, c.robots, cfg.Concurrency)
		c.scheduler = NewCooperative(shared, cfg.Concurrency, opts...)
	default:
		c.scheduler = NewPool(func() Tasks {
			return NewWorker(c.cfg, ex, c.limiter, c.robots, 2)
		}, cfg.Concurrency, opts...)
	}
	return c, nil
}

// BaseURL returns the normalized site root the run is scoped to.
func (c *Crawler) BaseURL() string { return c.base }

// Engine returns the name of the scheduling engine in use.
func (c *Crawler) Engine() string { return c.scheduler.Name() }

// Run discovers the site's pages, processes them, checks their links and
// returns the joined report. A discovery failure is returned as a
// *DiscoveryError and yields no report.
func (c *Crawler) Run(ctx context.Context) (*result.Report, error) {
	start := time.Now()
	c.logger.Info("starting link check",
		"base_url", c.base,
		"concurrency", c.cfg.Concurrency,
		"extractor", c.extractor.Kind(),
	)

	// Each run sees the site's current robots.txt.
	if c.robots != nil {
		c.robots.Forget()
	}

	pages, err := c.Discover(ctx)
	if err != nil {
		return nil, err
	}
	c.logger.Info("navigation discovered", "pages", len(pages))

	agg := result.NewAggregator(c.base)
	if err := c.scheduler.Crawl(ctx, pages, agg); err != nil {
		return nil, fmt.Errorf("%s engine: %w", c.scheduler.Name(), err)
	}

	rep := agg.Report(start, time.Now())
	c.logger.Info("link check finished",
		"pages", rep.Summary.PagesProcessed,
		"links", rep.Summary.UniqueLinksChecked,
		"broken", rep.Summary.UniqueBrokenLinks,
		"elapsed", rep.Summary.Elapsed.Round(time.Millisecond),
	)
	if c.limiter != nil && c.cfg.AdaptiveRate {
		c.logger.Info("adaptive rate settled",
			"rate", c.limiter.Rate(),
			"smoothed_rtt", c.limiter.SmoothedRTT().Round(time.Millisecond),
		)
	}
	return rep, nil
}

// Discover fetches the landing page and returns the seed page set: every
// internal link in the whole document and in its content region, the
// landing page itself, and optionally the sitemap's entries. The result is
// sorted and every job is marked as coming from navigation.
func (c *Crawler) Discover(ctx context.Context) ([]PageJob, error) {
	landing := c.base + "/"
	page, err := c.discovery.fetchPage(ctx, landing, c.cfg.DiscoveryTimeout)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, &DiscoveryError{URL: landing, Err: err}
	}
	if page.status >= 400 {
		return nil, &DiscoveryError{URL: landing, StatusCode: page.status}
	}

	seeds := map[string]struct{}{landing: {}}
	if page.body != nil {
		nav := c.extractor.AllLinks(page.body, page.finalURL)
		content := c.extractor.ContentLinks(page.body, page.finalURL)
		c.logger.Debug("landing page extracted",
			"nav_links", len(nav.Links),
			"content_links", len(content.Links),
			"region", content.Region,
		)
		for _, link := range slices.Concat(nav.Links, content.Links) {
			seeds[link] = struct{}{}
		}
	}

	if c.cfg.UseSitemap {
		locs, err := c.sitemapPages(ctx)
		if err != nil {
			c.logger.Warn("sitemap unavailable", "error", err)
		}
		added := 0
		for _, loc := range locs {
			if link, ok := c.filter.Accept(loc, landing); ok {
				if _, dup := seeds[link]; !dup {
					seeds[link] = struct{}{}
					added++
				}
			}
		}
		if len(locs) > 0 {
			c.logger.Info("sitemap merged", "entries", len(locs), "new_pages", added)
		}
	}

	urls := make([]string, 0, len(seeds))
	for u := range seeds {
		urls = append(urls, u)
	}
	slices.Sort(urls)

	jobs := make([]PageJob, len(urls))
	for i, u := range urls {
		jobs[i] = PageJob{URL: u, FromNav: true}
	}
	newTracker(c.progress, c.logger).emit(ctx, CrawlEvent{
		Phase:      PhaseDiscovery,
		URL:        page.finalURL,
		StatusCode: page.status,
		Done:       len(jobs),
		Total:      len(jobs),
	})
	return jobs, nil
}

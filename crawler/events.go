package crawler

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/lukemcguire/sitecheck/result"
)

// Phase identifies the stage of a run an event belongs to.
type Phase string

const (
	PhaseDiscovery Phase = "discovery"
	PhasePages     Phase = "pages"
	PhaseLinks     Phase = "links"
)

// CrawlEvent reports progress for a single processed page or checked link.
type CrawlEvent struct {
	Phase         Phase
	URL           string
	StatusCode    int
	Error         string
	ErrorCategory result.ErrorCategory
	Done          int // items finished in this phase
	Total         int // items known in this phase; grows when pages are followed
	Broken        int // navigation errors (pages) or broken links (links) so far
}

const (
	pageLogEvery = 50
	linkLogEvery = 200
)

// tracker counts progress for a scheduler and fans it out to the progress
// channel and, at intervals, to the log.
type tracker struct {
	ch     chan<- CrawlEvent
	logger *slog.Logger
	start  time.Time

	// logBatches switches page progress logging to explicit batch lines.
	logBatches bool

	pagesDone, pagesTotal, navErrors atomic.Int64
	linksDone, linksTotal, broken    atomic.Int64
}

func newTracker(ch chan<- CrawlEvent, logger *slog.Logger) *tracker {
	return &tracker{ch: ch, logger: logger, start: time.Now()}
}

func (t *tracker) addPages(n int) { t.pagesTotal.Add(int64(n)) }
func (t *tracker) addLinks(n int) { t.linksTotal.Add(int64(n)) }

func (t *tracker) page(ctx context.Context, p result.PageResult) {
	done := t.pagesDone.Add(1)
	failed := !p.OK && !p.Skipped && p.FromNav
	if failed {
		t.navErrors.Add(1)
	}
	total := t.pagesTotal.Load()

	if failed {
		t.logger.Warn("navigation page failed", "url", p.URL, "status", p.Display())
	}
	if !t.logBatches && (done%pageLogEvery == 0 || done == total) {
		t.logger.Info("pages processed", "done", done, "total", total, "rate", t.rate(done))
	}

	evt := CrawlEvent{
		Phase:         PhasePages,
		URL:           p.URL,
		StatusCode:    p.StatusCode,
		ErrorCategory: p.ErrorCategory,
		Done:          int(done),
		Total:         int(total),
		Broken:        int(t.navErrors.Load()),
	}
	if failed {
		evt.Error = p.Display()
	}
	t.emit(ctx, evt)
}

func (t *tracker) link(ctx context.Context, s result.LinkStatus) {
	done := t.linksDone.Add(1)
	if !s.OK {
		t.broken.Add(1)
	}
	total := t.linksTotal.Load()

	if !t.logBatches && (done%linkLogEvery == 0 || done == total) {
		t.logger.Info("links checked", "done", done, "total", total, "rate", t.rate(done))
	}

	evt := CrawlEvent{
		Phase:         PhaseLinks,
		URL:           s.URL,
		StatusCode:    s.StatusCode,
		ErrorCategory: s.ErrorCategory,
		Done:          int(done),
		Total:         int(total),
		Broken:        int(t.broken.Load()),
	}
	if !s.OK {
		evt.Error = s.Display()
	}
	t.emit(ctx, evt)
}

// batch logs one progress line after a cooperative batch drains.
func (t *tracker) batch(done, queued int, agg *result.Aggregator) {
	_, withIssues, broken := agg.Counts()
	t.logger.Info("batch complete",
		"pages", fmt.Sprintf("%d/%d", done, done+queued),
		"pages_with_issues", withIssues,
		"links_checked", t.linksDone.Load(),
		"broken", broken,
		"rate", t.rate(int64(done)),
	)
}

func (t *tracker) rate(done int64) string {
	elapsed := time.Since(t.start).Seconds()
	if elapsed <= 0 {
		return "0.0/s"
	}
	return fmt.Sprintf("%.1f/s", float64(done)/elapsed)
}

// emit sends evt unless nobody listens or the run is being cancelled.
func (t *tracker) emit(ctx context.Context, evt CrawlEvent) {
	if t.ch == nil {
		return
	}
	select {
	case t.ch <- evt:
	case <-ctx.Done():
	}
}

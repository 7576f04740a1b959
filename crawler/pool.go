package crawler

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/lukemcguire/sitecheck/result"
)

// Pool is the worker-pool engine. A fixed set of workers, each owning its
// own Tasks, pull jobs from one channel. Pages are processed first; only
// once every page has reported does the link phase start over the
// aggregator's deduplicated link set.
type Pool struct {
	newTasks func() Tasks
	workers  int
	settings schedulerSettings
}

var _ Scheduler = (*Pool)(nil)

// NewPool creates a pool of workers that each call newTasks once.
func NewPool(newTasks func() Tasks, workers int, opts ...Option) *Pool {
	return &Pool{
		newTasks: newTasks,
		workers:  max(workers, 1),
		settings: newSchedulerSettings(opts),
	}
}

// Name implements Scheduler.
func (p *Pool) Name() string { return string(EnginePool) }

// poolJob is either a page to process or a link to check.
type poolJob struct {
	page *PageJob
	link string
}

type poolOutcome struct {
	page   *result.PageResult
	status *result.LinkStatus
}

// Crawl implements Scheduler.
func (p *Pool) Crawl(ctx context.Context, pages []PageJob, agg *result.Aggregator) error {
	track := newTracker(p.settings.progress, p.settings.logger)
	jobs := make(chan poolJob, p.workers*2)
	outcomes := make(chan poolOutcome, p.workers*2)

	g, gctx := errgroup.WithContext(ctx)
	for range p.workers {
		tasks := p.newTasks()
		g.Go(func() error {
			for job := range jobs {
				var out poolOutcome
				if job.page != nil {
					res := tasks.ProcessPage(gctx, *job.page)
					out.page = &res
				} else {
					st := tasks.CheckLink(gctx, job.link)
					out.status = &st
				}
				select {
				case outcomes <- out:
				case <-gctx.Done():
					return gctx.Err()
				}
			}
			return nil
		})
	}

	// The coordinator owns agg; workers only hand back values.
	run := func(feed []poolJob) error {
		fed := make(chan struct{})
		defer func() { <-fed }()
		go func() {
			defer close(fed)
			for _, j := range feed {
				select {
				case jobs <- j:
				case <-gctx.Done():
					return
				}
			}
		}()
		for range feed {
			select {
			case out := <-outcomes:
				if out.page != nil {
					agg.AddPage(*out.page)
					track.page(gctx, *out.page)
				} else {
					agg.AddStatus(*out.status)
					track.link(gctx, *out.status)
				}
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	}

	pageJobs := make([]poolJob, len(pages))
	for i := range pages {
		pageJobs[i] = poolJob{page: &pages[i]}
	}
	track.addPages(len(pageJobs))
	err := run(pageJobs)

	if err == nil {
		links := agg.UniqueLinks()
		p.settings.logger.Info("page phase complete", "pages", len(pages), "unique_links", len(links))
		linkJobs := make([]poolJob, len(links))
		for i, l := range links {
			linkJobs[i] = poolJob{link: l}
		}
		track.addLinks(len(linkJobs))
		err = run(linkJobs)
	}

	close(jobs)
	if waitErr := g.Wait(); err == nil {
		err = waitErr
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return err
}

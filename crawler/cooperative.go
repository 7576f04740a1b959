package crawler

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/lukemcguire/sitecheck/result"
)

// Cooperative is the single-client engine. Every request shares one Tasks
// and passes through a weighted semaphore, so at most limit requests are in
// flight. Pages drain in batches; a link is scheduled for its check the
// moment the aggregator first sees it, overlapping the two phases.
type Cooperative struct {
	tasks    Tasks
	sem      *semaphore.Weighted
	settings schedulerSettings
}

var _ Scheduler = (*Cooperative)(nil)

// NewCooperative creates an engine allowing limit concurrent requests.
func NewCooperative(tasks Tasks, limit int, opts ...Option) *Cooperative {
	return &Cooperative{
		tasks:    tasks,
		sem:      semaphore.NewWeighted(int64(max(limit, 1))),
		settings: newSchedulerSettings(opts),
	}
}

// Name implements Scheduler.
func (c *Cooperative) Name() string { return string(EngineCooperative) }

// Crawl implements Scheduler.
func (c *Cooperative) Crawl(ctx context.Context, pages []PageJob, agg *result.Aggregator) error {
	log := c.settings.logger
	track := newTracker(c.settings.progress, log)
	track.logBatches = true

	seen, err := c.settings.newPageSet()
	if err != nil {
		return err
	}
	defer func() {
		if err := seen.Close(); err != nil {
			log.Warn("closing page set", "error", err)
		}
	}()

	queue := make([]PageJob, 0, len(pages))
	for _, p := range pages {
		if seen.VisitIfNew(p.URL) {
			queue = append(queue, p)
		}
	}
	track.addPages(len(queue))

	batchSize := c.settings.batchSize
	if mem := c.settings.memory; mem != nil {
		defer mem.Release()
		mem.OnChange(func(level ThrottleLevel) {
			switch level {
			case ThrottleCritical:
				batchSize = max(batchSize/2, 1)
			case ThrottleNormal:
				batchSize = c.settings.batchSize
			}
			log.Warn("memory pressure changed", "level", level.String(), "batch_size", batchSize)
		})
	}

	done := 0
	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		if mem := c.settings.memory; mem != nil {
			mem.Check()
		}

		n := min(batchSize, len(queue))
		batch := queue[:n]
		queue = queue[n:]

		results := c.runBatch(ctx, batch, agg, track)
		done += n

		if c.settings.follow {
			for _, res := range results {
				if !res.OK {
					continue
				}
				for _, link := range res.Links {
					if seen.VisitIfNew(link) {
						queue = append(queue, PageJob{URL: link})
						track.addPages(1)
					}
				}
			}
		}
		track.batch(done, len(queue), agg)
	}
	return ctx.Err()
}

// runBatch processes batch concurrently and waits for the pages and for
// every link they introduced. Results are returned in batch order.
func (c *Cooperative) runBatch(ctx context.Context, batch []PageJob, agg *result.Aggregator, track *tracker) []result.PageResult {
	results := make([]result.PageResult, len(batch))
	var wg sync.WaitGroup

	for i, job := range batch {
		wg.Go(func() {
			if err := c.sem.Acquire(ctx, 1); err != nil {
				return
			}
			res := c.tasks.ProcessPage(ctx, job)
			c.sem.Release(1)

			results[i] = res
			fresh := agg.AddPage(res)
			track.page(ctx, res)
			track.addLinks(len(fresh))

			for _, link := range fresh {
				wg.Go(func() { c.checkLink(ctx, link, agg, track) })
			}
		})
	}
	wg.Wait()
	return results
}

func (c *Cooperative) checkLink(ctx context.Context, link string, agg *result.Aggregator, track *tracker) {
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return
	}
	status := c.tasks.CheckLink(ctx, link)
	c.sem.Release(1)

	agg.AddStatus(status)
	track.link(ctx, status)
}

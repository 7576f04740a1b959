package crawler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lukemcguire/sitecheck/result"
)

const fakeBase = "https://docs.example.com"

// fakeSite is an in-memory Tasks. Pages absent from links answer 404.
type fakeSite struct {
	links  map[string][]string // page -> content links
	broken map[string]int      // link -> failing status

	mu        sync.Mutex
	processed map[string]int
	checked   map[string]int
}

func newFakeSite() *fakeSite {
	return &fakeSite{
		links:     make(map[string][]string),
		broken:    make(map[string]int),
		processed: make(map[string]int),
		checked:   make(map[string]int),
	}
}

func (f *fakeSite) ProcessPage(ctx context.Context, job PageJob) result.PageResult {
	f.mu.Lock()
	f.processed[job.URL]++
	f.mu.Unlock()

	res := result.PageResult{URL: job.URL, FromNav: job.FromNav, Links: []string{}}
	links, ok := f.links[job.URL]
	if !ok {
		res.StatusCode = 404
		res.ErrorCategory = result.Category4xx
		return res
	}
	res.OK = true
	res.StatusCode = 200
	res.Links = links
	return res
}

func (f *fakeSite) CheckLink(ctx context.Context, link string) result.LinkStatus {
	f.mu.Lock()
	f.checked[link]++
	f.mu.Unlock()

	if code, ok := f.broken[link]; ok {
		return result.LinkStatus{URL: link, StatusCode: code, ErrorCategory: result.ClassifyError(nil, code)}
	}
	return result.LinkStatus{URL: link, OK: true, StatusCode: 200}
}

func (f *fakeSite) counts() (processed, checked map[string]int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.processed, f.checked
}

// wideSite has many pages sharing a small pool of links, so that the same
// link is reported concurrently by several workers.
func wideSite(pages, shared int) (*fakeSite, []PageJob) {
	site := newFakeSite()
	var jobs []PageJob
	for i := range pages {
		page := fmt.Sprintf("%s/p/%03d/", fakeBase, i)
		jobs = append(jobs, PageJob{URL: page, FromNav: true})
		var links []string
		for j := range shared {
			links = append(links, fmt.Sprintf("%s/shared/%02d/", fakeBase, j))
		}
		links = append(links, fmt.Sprintf("%s/own/%03d/", fakeBase, i))
		site.links[page] = links
	}
	site.broken[fakeBase+"/shared/03/"] = 404
	site.broken[fakeBase+"/own/007/"] = 500
	jobs = append(jobs, PageJob{URL: fakeBase + "/gone/", FromNav: true})
	return site, jobs
}

type engineCase struct {
	name string
	make func(site *fakeSite, opts ...Option) Scheduler
}

func engines() []engineCase {
	return []engineCase{
		{
			name: "pool",
			make: func(site *fakeSite, opts ...Option) Scheduler {
				return NewPool(func() Tasks { return site }, 8, opts...)
			},
		},
		{
			name: "cooperative",
			make: func(site *fakeSite, opts ...Option) Scheduler {
				return NewCooperative(site, 5, append([]Option{WithBatchSize(7)}, opts...)...)
			},
		},
	}
}

func TestSchedulersCheckEachLinkOnce(t *testing.T) {
	for _, eng := range engines() {
		t.Run(eng.name, func(t *testing.T) {
			site, jobs := wideSite(60, 10)
			agg := result.NewAggregator(fakeBase)

			require.NoError(t, eng.make(site).Crawl(context.Background(), jobs, agg))

			processed, checked := site.counts()
			assert.Len(t, processed, len(jobs))
			for page, n := range processed {
				assert.Equal(t, 1, n, "page %s processed more than once", page)
			}
			assert.Len(t, checked, 10+60)
			for link, n := range checked {
				assert.Equal(t, 1, n, "link %s checked more than once", link)
			}
		})
	}
}

func TestSchedulersAgree(t *testing.T) {
	reports := make(map[string][]byte)
	for _, eng := range engines() {
		site, jobs := wideSite(25, 4)
		agg := result.NewAggregator(fakeBase)
		require.NoError(t, eng.make(site).Crawl(context.Background(), jobs, agg))

		rep := agg.Report(time.Time{}, time.Time{})
		body, err := result.YAMLBody(rep)
		require.NoError(t, err)
		reports[eng.name] = body

		assert.Equal(t, 26, rep.Summary.PagesProcessed, eng.name)
		assert.Equal(t, 1, rep.Summary.NavigationErrors, eng.name)
		assert.Equal(t, 2, rep.Summary.UniqueBrokenLinks, eng.name)
	}
	assert.Equal(t, string(reports["pool"]), string(reports["cooperative"]))
}

func TestSchedulersStreamProgress(t *testing.T) {
	for _, eng := range engines() {
		t.Run(eng.name, func(t *testing.T) {
			site, jobs := wideSite(5, 2)
			events := make(chan CrawlEvent, 100)
			agg := result.NewAggregator(fakeBase)

			require.NoError(t, eng.make(site, WithProgress(events)).Crawl(context.Background(), jobs, agg))
			close(events)

			var pages, links int
			for evt := range events {
				switch evt.Phase {
				case PhasePages:
					pages++
				case PhaseLinks:
					links++
				}
				assert.LessOrEqual(t, evt.Done, evt.Total)
			}
			assert.Equal(t, len(jobs), pages)
			assert.Equal(t, 2+5, links)
		})
	}
}

func TestSchedulersHonourCancellation(t *testing.T) {
	for _, eng := range engines() {
		t.Run(eng.name, func(t *testing.T) {
			site, jobs := wideSite(30, 3)
			ctx, cancel := context.WithCancel(context.Background())
			cancel()

			err := eng.make(site).Crawl(ctx, jobs, result.NewAggregator(fakeBase))
			assert.ErrorIs(t, err, context.Canceled)
		})
	}
}

func TestCooperativeFollowLinks(t *testing.T) {
	site := newFakeSite()
	site.links[fakeBase+"/"] = []string{fakeBase + "/guide/"}
	site.links[fakeBase+"/guide/"] = []string{fakeBase + "/guide/deep/", fakeBase + "/"}
	site.links[fakeBase+"/guide/deep/"] = []string{fakeBase + "/orphan/"}
	// /orphan/ is linked but does not exist.

	tests := []struct {
		name    string
		pageSet func() (PageSet, error)
	}{
		{name: "memory page set"},
		{name: "bloom page set", pageSet: func() (PageSet, error) { return NewBloomPageSet(t.TempDir()) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			processed := newFakeSite()
			processed.links = site.links

			eng := NewCooperative(processed, 3, WithFollowLinks(true), WithBatchSize(1), WithPageSet(tt.pageSet))
			agg := result.NewAggregator(fakeBase)
			jobs := []PageJob{{URL: fakeBase + "/", FromNav: true}}
			require.NoError(t, eng.Crawl(context.Background(), jobs, agg))

			p, c := processed.counts()
			assert.Equal(t, map[string]int{
				fakeBase + "/":            1,
				fakeBase + "/guide/":      1,
				fakeBase + "/guide/deep/": 1,
				fakeBase + "/orphan/":     1,
			}, p)
			for link, n := range c {
				assert.Equal(t, 1, n, link)
			}

			rep := agg.Report(time.Time{}, time.Time{})
			assert.Empty(t, rep.NavErrors, "followed pages are not navigation pages")
			assert.Equal(t, 4, rep.Summary.PagesProcessed)
		})
	}
}

func TestCooperativeShrinksBatchUnderPressure(t *testing.T) {
	site, jobs := wideSite(12, 1)
	mem := NewMemoryWatcher(100)
	heap := uint64(95 << 20)
	fixedHeap(mem, &heap)

	eng := NewCooperative(site, 2, WithBatchSize(8), WithMemoryWatcher(mem))
	require.NoError(t, eng.Crawl(context.Background(), jobs, result.NewAggregator(fakeBase)))

	processed, _ := site.counts()
	assert.Len(t, processed, len(jobs))
}

func TestCooperativeLogsBatchProgress(t *testing.T) {
	site, jobs := wideSite(8, 4)
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	eng := NewCooperative(site, 3, WithBatchSize(4), WithLogger(logger))
	require.NoError(t, eng.Crawl(context.Background(), jobs, result.NewAggregator(fakeBase)))

	type batchLine struct {
		Msg             string `json:"msg"`
		Pages           string `json:"pages"`
		PagesWithIssues int    `json:"pages_with_issues"`
		Broken          int    `json:"broken"`
	}
	var batches []batchLine
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var bl batchLine
		require.NoError(t, json.Unmarshal([]byte(line), &bl))
		if bl.Msg == "batch complete" {
			batches = append(batches, bl)
		}
	}

	require.Len(t, batches, 3)
	last := batches[len(batches)-1]
	assert.Equal(t, "9/9", last.Pages)
	// Every page links to the broken /shared/03/, and /gone/ fails.
	assert.Equal(t, 9, last.PagesWithIssues)
	assert.Equal(t, 2, last.Broken)
}

package result

import (
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/lukemcguire/sitecheck/urlutil"
)

// Aggregator collects page results and link statuses from concurrent
// workers and joins them into a Report. All methods are safe for
// concurrent use.
type Aggregator struct {
	baseURL string

	mu       sync.Mutex
	pages    map[string]PageResult
	refs     map[string]map[string]struct{} // link -> pages linking to it
	statuses map[string]LinkStatus
}

// NewAggregator creates an empty Aggregator for a site rooted at baseURL.
func NewAggregator(baseURL string) *Aggregator {
	return &Aggregator{
		baseURL:  baseURL,
		pages:    make(map[string]PageResult),
		refs:     make(map[string]map[string]struct{}),
		statuses: make(map[string]LinkStatus),
	}
}

// AddPage records a processed page and merges its links into the global
// link set. It returns the links that were seen for the first time, in
// sorted order; every link is returned by exactly one AddPage call.
func (a *Aggregator) AddPage(p PageResult) []string {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.pages[p.URL] = p

	var fresh []string
	for _, link := range p.Links {
		referrers, ok := a.refs[link]
		if !ok {
			referrers = make(map[string]struct{})
			a.refs[link] = referrers
			fresh = append(fresh, link)
		}
		referrers[p.URL] = struct{}{}
	}
	return fresh
}

// AddStatus records the status of a unique link.
func (a *Aggregator) AddStatus(s LinkStatus) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.statuses[s.URL] = s
}

// UniqueLinks returns every distinct link referenced so far, sorted.
func (a *Aggregator) UniqueLinks() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	links := make([]string, 0, len(a.refs))
	for link := range a.refs {
		links = append(links, link)
	}
	slices.Sort(links)
	return links
}

// Counts returns a snapshot of the run so far: pages recorded, pages with a
// navigation error or a known broken link, and broken links.
func (a *Aggregator) Counts() (pages, withIssues, broken int) {
	a.mu.Lock()
	defer a.mu.Unlock()

	problemPages := make(map[string]struct{})
	for _, p := range a.pages {
		if !p.OK && !p.Skipped && p.FromNav {
			problemPages[p.URL] = struct{}{}
		}
	}
	for link, s := range a.statuses {
		if s.OK {
			continue
		}
		broken++
		for page := range a.refs[link] {
			problemPages[page] = struct{}{}
		}
	}
	return len(a.pages), len(problemPages), broken
}

// Report joins link statuses back to their referencing pages. Links that
// never received a status are reported as broken with reason "Unknown".
func (a *Aggregator) Report(start, now time.Time) *Report {
	a.mu.Lock()
	defer a.mu.Unlock()

	rep := &Report{
		BaseURL:     a.baseURL,
		GeneratedAt: now,
		NavErrors:   []NavigationError{},
		Pages:       []PageIssues{},
	}
	sum := &rep.Summary
	sum.PagesProcessed = len(a.pages)
	sum.UniqueLinksChecked = len(a.statuses)
	sum.Elapsed = now.Sub(start)

	problemPages := make(map[string]struct{})

	for _, p := range a.pages {
		switch {
		case p.Skipped:
			sum.PagesSkipped++
		case p.OK:
			sum.PagesFetched++
		case p.FromNav:
			rep.NavErrors = append(rep.NavErrors, NavigationError{
				Page:          p.URL,
				Status:        p.Display(),
				ErrorCategory: p.ErrorCategory,
			})
			problemPages[p.URL] = struct{}{}
		}
	}
	slices.SortFunc(rep.NavErrors, func(x, y NavigationError) int {
		return strings.Compare(x.Page, y.Page)
	})
	sum.NavigationErrors = len(rep.NavErrors)

	byPage := make(map[string][]BrokenLink)
	for link, referrers := range a.refs {
		status, ok := a.statuses[link]
		if !ok {
			status = LinkStatus{URL: link, Reason: "Unknown", ErrorCategory: CategoryUnknown}
		}
		if status.OK {
			continue
		}
		sum.UniqueBrokenLinks++
		for page := range referrers {
			byPage[page] = append(byPage[page], BrokenLink{URL: link, Status: status})
			sum.BrokenLinkReferences++
		}
	}

	for page, links := range byPage {
		slices.SortFunc(links, func(x, y BrokenLink) int {
			return strings.Compare(a.displayLink(x), a.displayLink(y))
		})
		rep.Pages = append(rep.Pages, PageIssues{Page: page, Links: links})
		problemPages[page] = struct{}{}
	}
	slices.SortFunc(rep.Pages, func(x, y PageIssues) int {
		return strings.Compare(x.Page, y.Page)
	})
	sum.PagesWithIssues = len(problemPages)

	return rep
}

func (a *Aggregator) displayLink(l BrokenLink) string {
	return FormatEntry(urlutil.Relative(l.URL, a.baseURL), l.Status.Display())
}

// FormatEntry renders a report line such as "/missing (Status: 404)".
func FormatEntry(target, status string) string {
	return target + " (Status: " + status + ")"
}

package result

import (
	"strconv"
	"time"
)

// LinkStatus is the outcome of validating one unique link.
type LinkStatus struct {
	URL           string        `json:"url"`
	OK            bool          `json:"ok"`
	StatusCode    int           `json:"status_code,omitempty"` // HTTP status (0 if unreachable)
	Reason        string        `json:"reason,omitempty"`      // failure text when no HTTP status exists
	ErrorCategory ErrorCategory `json:"error_type,omitempty"`
	UsedFallback  bool          `json:"used_fallback,omitempty"` // a GET followed the HEAD probe
}

// Display renders the status the way reports show it: the numeric code
// when there is one, otherwise the failure reason.
func (s LinkStatus) Display() string {
	if s.StatusCode > 0 {
		return strconv.Itoa(s.StatusCode)
	}
	if s.Reason != "" {
		return s.Reason
	}
	return "Unknown"
}

// PageResult is what processing one page produced.
type PageResult struct {
	URL           string        // page URL as scheduled
	FromNav       bool          // advertised by site navigation
	OK            bool          // fetched with status < 400
	Skipped       bool          // not fetched, e.g. disallowed by robots.txt
	StatusCode    int           // HTTP status (0 if unreachable)
	Reason        string        // failure text when no HTTP status exists
	ErrorCategory ErrorCategory // classification of the failure
	Links         []string      // sorted internal links found in the content region
}

// Display renders the page's failure status for reports.
func (p PageResult) Display() string {
	return LinkStatus{StatusCode: p.StatusCode, Reason: p.Reason}.Display()
}

// NavigationError records a navigation page that could not be fetched.
type NavigationError struct {
	Page          string        `json:"page"`
	Status        string        `json:"status"`
	ErrorCategory ErrorCategory `json:"error_type,omitempty"`
}

// BrokenLink is one invalid link as seen from one page.
type BrokenLink struct {
	URL    string     `json:"url"`
	Status LinkStatus `json:"status"`
}

// PageIssues groups the broken links found on a single page.
type PageIssues struct {
	Page  string       `json:"page"`
	Links []BrokenLink `json:"broken_links"`
}

// Summary contains aggregate statistics for a run.
type Summary struct {
	PagesProcessed       int           `json:"pages_processed"`
	PagesFetched         int           `json:"pages_fetched"`
	PagesSkipped         int           `json:"pages_skipped"`
	UniqueLinksChecked   int           `json:"unique_links_checked"`
	BrokenLinkReferences int           `json:"broken_link_references"`
	UniqueBrokenLinks    int           `json:"unique_broken_links"`
	PagesWithIssues      int           `json:"pages_with_issues"`
	NavigationErrors     int           `json:"navigation_errors"`
	Elapsed              time.Duration `json:"elapsed_ns"`
}

// Report represents the complete output of a run. NavErrors and Pages
// are sorted, and each page's Links are sorted by their display form.
type Report struct {
	BaseURL     string            `json:"base_url"`
	GeneratedAt time.Time         `json:"generated_at"`
	NavErrors   []NavigationError `json:"nav_errors"`
	Pages       []PageIssues      `json:"pages"`
	Summary     Summary           `json:"summary"`
}

// HasIssues reports whether the run found anything to fix.
func (r *Report) HasIssues() bool {
	return r != nil && (len(r.NavErrors) > 0 || len(r.Pages) > 0)
}

// Package extract pulls internal hyperlinks out of rendered documentation
// pages. Two interchangeable backends exist: a regular-expression scanner
// and a DOM walker built on goquery. Both honor the same Filter and region
// rules, and neither ever fails: malformed markup yields fewer links, not
// an error.
package extract

import (
	"fmt"
	"slices"
	"strings"

	"github.com/lukemcguire/sitecheck/urlutil"
)

// Kind names an extractor backend.
type Kind string

const (
	KindRegex Kind = "regex"
	KindDOM   Kind = "dom"
)

// Region identifies which part of a page links were taken from.
type Region string

const (
	RegionArticle  Region = "article"
	RegionMain     Region = "main"
	RegionContent  Region = "content"
	RegionDocument Region = "document"
)

// Result is the outcome of one extraction: sorted, unique, normalized
// internal links and the region they came from.
type Result struct {
	Links  []string
	Region Region
}

// Extractor finds internal links in an HTML body fetched from pageURL.
type Extractor interface {
	// ContentLinks scans the primary content region only, so site-wide
	// navigation chrome does not inflate every page's link set.
	ContentLinks(body []byte, pageURL string) Result
	// AllLinks scans the whole document.
	AllLinks(body []byte, pageURL string) Result
	Kind() Kind
}

// Filter decides which hrefs become links.
type Filter struct {
	BaseURL            string   // trimmed, normalized site root
	ExcludedExtensions []string // non-page resources, e.g. ".pdf"
}

// Accept resolves href against pageURL and returns the normalized link when
// it is an internal, non-excluded page reference.
func (f Filter) Accept(href, pageURL string) (string, bool) {
	if urlutil.IsSkippedHref(href) {
		return "", false
	}
	link, err := urlutil.Resolve(href, pageURL)
	if err != nil {
		return "", false
	}
	if urlutil.HasExcludedExtension(link, f.ExcludedExtensions) {
		return "", false
	}
	if !urlutil.IsInternal(link, f.BaseURL) {
		return "", false
	}
	return link, true
}

// New returns the extractor backend named by kind.
func New(kind Kind, filter Filter) (Extractor, error) {
	switch kind {
	case KindRegex, "":
		return NewRegexExtractor(filter), nil
	case KindDOM:
		return NewDOMExtractor(filter), nil
	default:
		return nil, fmt.Errorf("unknown extractor %q (want %q or %q)", kind, KindRegex, KindDOM)
	}
}

// ParseKind converts a flag value into a Kind.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	switch k {
	case KindRegex, KindDOM:
		return k, nil
	default:
		return "", fmt.Errorf("unknown extractor %q (want %q or %q)", s, KindRegex, KindDOM)
	}
}

// collector accumulates accepted links for one extraction.
type collector struct {
	filter  Filter
	pageURL string
	seen    map[string]struct{}
}

func newCollector(filter Filter, pageURL string) *collector {
	return &collector{filter: filter, pageURL: pageURL, seen: make(map[string]struct{})}
}

func (c *collector) add(href string) {
	if link, ok := c.filter.Accept(href, c.pageURL); ok {
		c.seen[link] = struct{}{}
	}
}

func (c *collector) result(region Region) Result {
	links := make([]string, 0, len(c.seen))
	for link := range c.seen {
		links = append(links, link)
	}
	slices.Sort(links)
	return Result{Links: links, Region: region}
}

package extract

import (
	"html"
	"regexp"
)

var (
	linkPattern = regexp.MustCompile(`(?is)<a\b[^>]*?\bhref\s*=\s*(?:"([^"]*)"|'([^']*)'|([^\s>]+))`)

	// sectionPatterns are tried in order; the first match wins.
	sectionPatterns = []struct {
		region  Region
		pattern *regexp.Regexp
	}{
		{RegionArticle, regexp.MustCompile(`(?is)<article\b[^>]*>(.*?)</article>`)},
		{RegionMain, regexp.MustCompile(`(?is)<main\b[^>]*>(.*?)</main>`)},
		{RegionContent, regexp.MustCompile(`(?is)<div\b[^>]*class[^>]*md-content[^>]*>(.*?)</div>`)},
	}
)

// RegexExtractor scans markup with regular expressions. It is the fast
// path and tolerates arbitrarily broken HTML. The md-content fallback stops
// at the first closing div, so deeply nested content regions are only
// partially scanned; use DOMExtractor when that matters.
type RegexExtractor struct {
	filter Filter
}

// NewRegexExtractor creates a RegexExtractor applying filter.
func NewRegexExtractor(filter Filter) *RegexExtractor {
	return &RegexExtractor{filter: filter}
}

// Kind implements Extractor.
func (e *RegexExtractor) Kind() Kind { return KindRegex }

// ContentLinks implements Extractor.
func (e *RegexExtractor) ContentLinks(body []byte, pageURL string) Result {
	section, region := primaryContent(body)
	return e.scan(section, pageURL, region)
}

// AllLinks implements Extractor.
func (e *RegexExtractor) AllLinks(body []byte, pageURL string) Result {
	return e.scan(body, pageURL, RegionDocument)
}

func (e *RegexExtractor) scan(markup []byte, pageURL string, region Region) Result {
	c := newCollector(e.filter, pageURL)
	for _, m := range linkPattern.FindAllSubmatch(markup, -1) {
		var raw []byte
		switch {
		case m[1] != nil:
			raw = m[1]
		case m[2] != nil:
			raw = m[2]
		default:
			raw = m[3]
		}
		c.add(html.UnescapeString(string(raw)))
	}
	return c.result(region)
}

func primaryContent(body []byte) ([]byte, Region) {
	for _, section := range sectionPatterns {
		if m := section.pattern.FindSubmatch(body); m != nil {
			return m[1], section.region
		}
	}
	return body, RegionDocument
}

package extract

import (
	"bytes"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// contentSelectors are tried in order; the first non-empty selection wins.
var contentSelectors = []struct {
	region   Region
	selector string
}{
	{RegionArticle, "article"},
	{RegionMain, "main"},
	{RegionContent, `div[class*="md-content"]`},
}

// DOMExtractor parses the page into a tree and selects anchors with
// goquery. Slower than RegexExtractor but region boundaries follow the
// real element nesting.
type DOMExtractor struct {
	filter Filter
}

// NewDOMExtractor creates a DOMExtractor applying filter.
func NewDOMExtractor(filter Filter) *DOMExtractor {
	return &DOMExtractor{filter: filter}
}

// Kind implements Extractor.
func (e *DOMExtractor) Kind() Kind { return KindDOM }

// ContentLinks implements Extractor.
func (e *DOMExtractor) ContentLinks(body []byte, pageURL string) Result {
	doc, ok := parseDocument(body)
	if !ok {
		return Result{Links: []string{}, Region: RegionDocument}
	}
	for _, candidate := range contentSelectors {
		if sel := doc.Find(candidate.selector).First(); sel.Length() > 0 {
			return e.collect(sel, pageURL, candidate.region)
		}
	}
	return e.collect(doc.Selection, pageURL, RegionDocument)
}

// AllLinks implements Extractor.
func (e *DOMExtractor) AllLinks(body []byte, pageURL string) Result {
	doc, ok := parseDocument(body)
	if !ok {
		return Result{Links: []string{}, Region: RegionDocument}
	}
	return e.collect(doc.Selection, pageURL, RegionDocument)
}

func (e *DOMExtractor) collect(sel *goquery.Selection, pageURL string, region Region) Result {
	c := newCollector(e.filter, pageURL)
	sel.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		c.add(href)
	})
	return c.result(region)
}

func parseDocument(body []byte) (*goquery.Document, bool) {
	root, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, false
	}
	return goquery.NewDocumentFromNode(root), true
}

package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lukemcguire/sitecheck/urlutil"
)

const testBase = "https://docs.example.com"

func testFilter() Filter {
	return Filter{BaseURL: testBase, ExcludedExtensions: urlutil.DefaultExcludedExtensions}
}

// backends returns every extractor so contract tests run against each.
func backends() []Extractor {
	return []Extractor{NewRegexExtractor(testFilter()), NewDOMExtractor(testFilter())}
}

const materialPage = `<!doctype html>
<html><head><title>A</title></head>
<body>
<nav class="md-nav"><a href="/">Home</a><a href="/nav-only/">Nav only</a></nav>
<main>
  <article class="md-content__inner">
    <h1 id="a">A</h1>
    <p><a href="../b/">B</a> and <a href='/missing#top'>missing</a></p>
    <p><a href=/c>C unquoted</a> <a href="/b/#again">B again</a></p>
    <p><a href="#a">anchor</a> <a href="mailto:x@example.com">mail</a>
       <a href="javascript:void(0)">js</a> <a href="tel:123">tel</a></p>
    <p><a href="/manual.pdf">pdf</a> <a href="/spec.DOCX">docx</a></p>
    <p><a href="https://github.com/example">external</a></p>
    <p><a href="/q?x=1&amp;y=2">query</a></p>
  </article>
</main>
<footer><a href="/footer/">Footer</a></footer>
</body></html>`

func TestContentLinks_ArticleRegion(t *testing.T) {
	for _, ex := range backends() {
		t.Run(string(ex.Kind()), func(t *testing.T) {
			got := ex.ContentLinks([]byte(materialPage), testBase+"/a/")

			assert.Equal(t, RegionArticle, got.Region)
			assert.Equal(t, []string{
				"https://docs.example.com/b/",
				"https://docs.example.com/c",
				"https://docs.example.com/missing",
				"https://docs.example.com/q?x=1&y=2",
			}, got.Links)
		})
	}
}

func TestAllLinks_WholeDocument(t *testing.T) {
	for _, ex := range backends() {
		t.Run(string(ex.Kind()), func(t *testing.T) {
			got := ex.AllLinks([]byte(materialPage), testBase+"/a/")

			assert.Equal(t, RegionDocument, got.Region)
			assert.Contains(t, got.Links, "https://docs.example.com/")
			assert.Contains(t, got.Links, "https://docs.example.com/nav-only/")
			assert.Contains(t, got.Links, "https://docs.example.com/footer/")
			assert.Contains(t, got.Links, "https://docs.example.com/b/")
			assert.NotContains(t, got.Links, "https://github.com/example")
		})
	}
}

func TestContentLinks_RegionFallbackOrder(t *testing.T) {
	tests := []struct {
		name   string
		html   string
		region Region
		links  []string
	}{
		{
			name:   "main without article",
			html:   `<nav><a href="/x">x</a></nav><main><a href="/in-main">m</a></main>`,
			region: RegionMain,
			links:  []string{"https://docs.example.com/in-main"},
		},
		{
			name:   "md-content div",
			html:   `<nav><a href="/x">x</a></nav><div class="md-content" data-md-component="content"><a href="/in-content">c</a></div>`,
			region: RegionContent,
			links:  []string{"https://docs.example.com/in-content"},
		},
		{
			name:   "whole document when no region",
			html:   `<body><a href="/one">1</a><a href="/two">2</a></body>`,
			region: RegionDocument,
			links:  []string{"https://docs.example.com/one", "https://docs.example.com/two"},
		},
		{
			name:   "article preferred over main",
			html:   `<main><a href="/main-link">m</a><article><a href="/article-link">a</a></article></main>`,
			region: RegionArticle,
			links:  []string{"https://docs.example.com/article-link"},
		},
	}

	for _, ex := range backends() {
		for _, tt := range tests {
			t.Run(string(ex.Kind())+"/"+tt.name, func(t *testing.T) {
				got := ex.ContentLinks([]byte(tt.html), testBase+"/")
				assert.Equal(t, tt.region, got.Region)
				assert.Equal(t, tt.links, got.Links)
			})
		}
	}
}

func TestContentLinks_MalformedInputNeverFails(t *testing.T) {
	inputs := []string{
		"",
		"not html at all",
		`<a href="/unclosed">Unclosed`,
		`<article><a href="http://[::1">bad</a><a href="/ok">ok</a>`,
		"<a href=\"/nul\x00\">nul</a>",
	}

	for _, ex := range backends() {
		for _, in := range inputs {
			got := ex.ContentLinks([]byte(in), testBase+"/")
			assert.NotNil(t, got.Links, "%s: links must be an empty slice, not nil", ex.Kind())
		}
	}
}

func TestContentLinks_DeduplicatesWithinPage(t *testing.T) {
	html := `<article><a href="/page">1</a><a href="/page#x">2</a><a href="page">3</a></article>`
	for _, ex := range backends() {
		got := ex.ContentLinks([]byte(html), testBase+"/")
		assert.Equal(t, []string{"https://docs.example.com/page"}, got.Links, ex.Kind())
	}
}

func TestBackendsAgreeOnWellFormedPages(t *testing.T) {
	regex := NewRegexExtractor(testFilter())
	dom := NewDOMExtractor(testFilter())

	pages := []string{
		materialPage,
		`<html><body><main><p><a href="/x/">x</a> <a href="y">y</a></p></main></body></html>`,
		`<html><body><a HREF="/upper">u</a><a href = "/spaced">s</a></body></html>`,
		`<html><body><nav><a href="/nav">n</a></nav><div class="md-content__inner"><a href="/c">c</a></div></body></html>`,
	}
	for i, page := range pages {
		r := regex.ContentLinks([]byte(page), testBase+"/dir/")
		d := dom.ContentLinks([]byte(page), testBase+"/dir/")
		assert.Equal(t, r, d, "page %d", i)
	}
}

func TestContentRegionMatchesClassSubstring(t *testing.T) {
	page := []byte(`<nav><a href="/nav">n</a></nav><div class="md-content__inner"><a href="/c">c</a></div>`)
	for _, ex := range []Extractor{NewRegexExtractor(testFilter()), NewDOMExtractor(testFilter())} {
		t.Run(string(ex.Kind()), func(t *testing.T) {
			got := ex.ContentLinks(page, testBase+"/")
			assert.Equal(t, RegionContent, got.Region)
			assert.Equal(t, []string{testBase + "/c"}, got.Links)
		})
	}
}

func TestFilterAccept(t *testing.T) {
	f := testFilter()

	link, ok := f.Accept("/guide/#install", testBase+"/a")
	require.True(t, ok)
	assert.Equal(t, "https://docs.example.com/guide/", link)

	_, ok = f.Accept("https://other.example.com/", testBase+"/a")
	assert.False(t, ok)

	_, ok = f.Accept("/files/report.PDF", testBase+"/a")
	assert.False(t, ok)
}

func TestNew(t *testing.T) {
	ex, err := New(KindDOM, testFilter())
	require.NoError(t, err)
	assert.Equal(t, KindDOM, ex.Kind())

	ex, err = New("", testFilter())
	require.NoError(t, err)
	assert.Equal(t, KindRegex, ex.Kind())

	_, err = New("xpath", testFilter())
	assert.Error(t, err)
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind(" DOM ")
	require.NoError(t, err)
	assert.Equal(t, KindDOM, k)

	_, err = ParseKind("soup")
	assert.Error(t, err)
}

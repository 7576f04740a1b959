package crawler

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/lukemcguire/sitecheck/extract"
	"github.com/lukemcguire/sitecheck/result"
)

// PageJob is a page scheduled for processing.
type PageJob struct {
	URL     string // normalized page URL
	FromNav bool   // advertised by the site navigation (or sitemap)
}

// Tasks is the unit of work a scheduler hands to its workers. A scheduler
// never mutates shared state through Tasks; results come back as values.
type Tasks interface {
	// ProcessPage fetches a page and extracts its content links.
	ProcessPage(ctx context.Context, job PageJob) result.PageResult
	// CheckLink determines whether a link resolves. It never fails:
	// transport errors are reported in the returned status.
	CheckLink(ctx context.Context, link string) result.LinkStatus
}

// probeDrainLimit bounds how much of a probe response is read so the
// connection can be reused.
const probeDrainLimit = 64 << 10

// Worker is the per-worker context: it owns an HTTP client with its own
// connection pool and shares the limiter and robots cache of its Crawler.
type Worker struct {
	cfg       Config
	client    *http.Client
	extractor extract.Extractor
	limiter   *AdaptiveLimiter // nil when unlimited
	robots    *RobotsChecker   // nil when robots.txt is ignored
}

var _ Tasks = (*Worker)(nil)

// NewWorker creates a Worker whose client keeps up to idleConns idle
// connections to the site.
func NewWorker(cfg Config, ex extract.Extractor, limiter *AdaptiveLimiter, robots *RobotsChecker, idleConns int) *Worker {
	return &Worker{
		cfg:       cfg,
		client:    newHTTPClient(idleConns),
		extractor: ex,
		limiter:   limiter,
		robots:    robots,
	}
}

func newHTTPClient(idleConns int) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.MaxIdleConns = max(idleConns, 2)
	transport.MaxIdleConnsPerHost = max(idleConns, 2)
	return &http.Client{Transport: transport}
}

// ProcessPage implements Tasks.
func (w *Worker) ProcessPage(ctx context.Context, job PageJob) result.PageResult {
	res := result.PageResult{URL: job.URL, FromNav: job.FromNav, Links: []string{}}

	if w.robots != nil {
		allowed, err := w.robots.Allowed(ctx, job.URL, w.cfg.UserAgent)
		if err != nil {
			w.cfg.Logger.Debug("robots.txt check failed, allowing", "url", job.URL, "error", err)
		}
		if !allowed {
			w.cfg.Logger.Debug("page disallowed by robots.txt", "url", job.URL)
			res.Skipped = true
			return res
		}
	}

	page, err := w.fetchPage(ctx, job.URL, w.cfg.RequestTimeout)
	if err != nil {
		res.Reason = result.Reason(err)
		res.ErrorCategory = result.ClassifyError(err, 0)
		return res
	}

	res.StatusCode = page.status
	if page.status >= 400 {
		res.ErrorCategory = result.ClassifyError(nil, page.status)
		return res
	}

	res.OK = true
	if page.body != nil {
		res.Links = w.extractor.ContentLinks(page.body, page.finalURL).Links
	}
	return res
}

// CheckLink implements Tasks. It sends a HEAD first and confirms with a
// single GET when the fallback policy asks for it.
func (w *Worker) CheckLink(ctx context.Context, link string) result.LinkStatus {
	status := result.LinkStatus{URL: link}

	code, err := w.probe(ctx, http.MethodHead, link)
	if err == nil && w.cfg.Fallback.Triggers(code) {
		status.UsedFallback = true
		code, err = w.probe(ctx, http.MethodGet, link)
	}
	if err != nil {
		status.Reason = result.Reason(err)
		status.ErrorCategory = result.ClassifyError(err, 0)
		return status
	}

	status.StatusCode = code
	status.OK = code < 400
	if !status.OK {
		status.ErrorCategory = result.ClassifyError(nil, code)
	}
	return status
}

// fetchedPage is a successfully transferred page. body is nil for non-HTML
// responses and for failure statuses.
type fetchedPage struct {
	status   int
	finalURL string
	body     []byte
}

// fetchPage GETs rawURL and reads an HTML body, following redirects. Links
// are later resolved against finalURL, the address after redirects.
func (w *Worker) fetchPage(ctx context.Context, rawURL string, timeout time.Duration) (fetchedPage, error) {
	resp, cancel, err := w.do(ctx, http.MethodGet, rawURL, timeout)
	defer cancel()
	if err != nil {
		return fetchedPage{}, err
	}
	defer func() { _ = resp.Body.Close() }()

	page := fetchedPage{status: resp.StatusCode, finalURL: resp.Request.URL.String()}
	if resp.StatusCode >= 400 || isBinaryContentType(resp.Header.Get("Content-Type")) {
		return page, nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, w.cfg.MaxBodyBytes))
	if err != nil {
		return fetchedPage{}, fmt.Errorf("read body of %s: %w", rawURL, err)
	}
	page.body = body
	return page, nil
}

// probe sends one request (plus retries) and returns the status code.
func (w *Worker) probe(ctx context.Context, method, link string) (int, error) {
	resp, cancel, err := w.do(ctx, method, link, w.cfg.RequestTimeout)
	defer cancel()
	if err != nil {
		return 0, err
	}
	drainAndClose(resp)
	return resp.StatusCode, nil
}

// do sends a request through the limiter, applying timeout to each attempt
// and the retry policy across attempts.
func (w *Worker) do(ctx context.Context, method, rawURL string, timeout time.Duration) (*http.Response, context.CancelFunc, error) {
	return withRetry(ctx, w.cfg.RetryPolicy, func(ctx context.Context) (*http.Response, context.CancelFunc, error) {
		noop := func() {}
		if w.limiter != nil {
			if err := w.limiter.Wait(ctx); err != nil {
				return nil, noop, fmt.Errorf("rate limiter wait: %w", err)
			}
		}

		reqCtx, cancel := context.WithTimeout(ctx, timeout)
		req, err := http.NewRequestWithContext(reqCtx, method, rawURL, nil)
		if err != nil {
			cancel()
			return nil, noop, fmt.Errorf("create %s request for %s: %w", method, rawURL, err)
		}
		req.Header.Set("User-Agent", w.cfg.UserAgent)

		start := time.Now()
		resp, err := w.client.Do(req)
		if err != nil {
			cancel()
			return nil, noop, err
		}
		if w.limiter != nil {
			w.limiter.ObserveRTT(time.Since(start))
		}
		return resp, cancel, nil
	})
}

func drainAndClose(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, probeDrainLimit))
	_ = resp.Body.Close()
}

// binaryTypePrefixes lists media types that never contain links worth
// extracting.
var binaryTypePrefixes = []string{"image/", "video/", "audio/", "font/"}

var binaryTypes = map[string]bool{
	"application/pdf":              true,
	"application/zip":              true,
	"application/x-zip-compressed": true,
	"application/gzip":             true,
	"application/vnd.rar":          true,
	"application/x-7z-compressed":  true,
	"application/octet-stream":     true,
}

// isBinaryContentType reports whether a Content-Type header names a
// non-document payload.
func isBinaryContentType(contentType string) bool {
	if contentType == "" {
		return false
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))
	}
	if binaryTypes[mediaType] {
		return true
	}
	for _, prefix := range binaryTypePrefixes {
		if strings.HasPrefix(mediaType, prefix) {
			return true
		}
	}
	return false
}

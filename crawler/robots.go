package crawler

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/temoto/robotstxt"
)

const (
	robotsCacheTTL  = time.Hour
	robotsMaxBytes  = 512 << 10
	robotsFetchWait = 10 * time.Second
)

// robotsEntry is a cached robots.txt. A nil group set means every path is
// allowed, which is also what a missing or unreadable file amounts to.
type robotsEntry struct {
	rules     *robotstxt.RobotsData
	fetchedAt time.Time
}

// RobotsChecker answers whether a page may be fetched under the site's
// robots.txt. Lookups fail open: any trouble reading the file allows the
// page and is returned as an error for logging.
type RobotsChecker struct {
	client *http.Client
	ttl    time.Duration

	mu      sync.Mutex
	entries map[string]robotsEntry // keyed by scheme://host
}

// NewRobotsChecker creates a checker that fetches through client.
func NewRobotsChecker(client *http.Client) *RobotsChecker {
	return &RobotsChecker{
		client:  client,
		ttl:     robotsCacheTTL,
		entries: make(map[string]robotsEntry),
	}
}

// Allowed reports whether userAgent may fetch rawURL.
func (r *RobotsChecker) Allowed(ctx context.Context, rawURL, userAgent string) (bool, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return true, fmt.Errorf("parse URL: %w", err)
	}
	if u.Host == "" {
		return true, nil
	}

	origin := u.Scheme + "://" + u.Host
	rules, err := r.rulesFor(ctx, origin)
	if rules == nil {
		return true, err
	}
	return rules.TestAgent(u.EscapedPath(), userAgent), err
}

// Forget drops every cached robots.txt.
func (r *RobotsChecker) Forget() {
	r.mu.Lock()
	defer r.mu.Unlock()
	clear(r.entries)
}

func (r *RobotsChecker) rulesFor(ctx context.Context, origin string) (*robotstxt.RobotsData, error) {
	r.mu.Lock()
	entry, ok := r.entries[origin]
	r.mu.Unlock()
	if ok && time.Since(entry.fetchedAt) < r.ttl {
		return entry.rules, nil
	}

	rules, err := r.fetch(ctx, origin)
	r.mu.Lock()
	r.entries[origin] = robotsEntry{rules: rules, fetchedAt: time.Now()}
	r.mu.Unlock()
	return rules, err
}

func (r *RobotsChecker) fetch(ctx context.Context, origin string) (*robotstxt.RobotsData, error) {
	ctx, cancel := context.WithTimeout(ctx, robotsFetchWait)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, origin+"/robots.txt", nil)
	if err != nil {
		return nil, fmt.Errorf("create robots.txt request for %s: %w", origin, err)
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch robots.txt for %s: %w", origin, err)
	}
	defer func() { _ = resp.Body.Close() }()

	// A missing file or a failing server places no restrictions.
	if resp.StatusCode == http.StatusNotFound || resp.StatusCode >= 500 {
		return nil, nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, robotsMaxBytes))
	if err != nil {
		return nil, fmt.Errorf("read robots.txt for %s: %w", origin, err)
	}
	rules, err := robotstxt.FromStatusAndBytes(resp.StatusCode, body)
	if err != nil {
		return nil, fmt.Errorf("parse robots.txt for %s: %w", origin, err)
	}
	return rules, nil
}

package crawler

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"
)

// RetryPolicy configures retries of transient request failures. Retries
// happen inside a single probe: a link is still checked once, but that
// check may send more than one request.
type RetryPolicy struct {
	MaxRetries int           // retries after the first attempt (0 = single attempt)
	BaseDelay  time.Duration // first backoff delay
	MaxDelay   time.Duration // backoff cap
}

// DefaultRetryPolicy returns a policy that never retries but carries the
// backoff timings used once retries are switched on.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: 0,
		BaseDelay:  1 * time.Second,
		MaxDelay:   30 * time.Second,
	}
}

func (p RetryPolicy) normalized() RetryPolicy {
	def := DefaultRetryPolicy()
	if p.MaxRetries < 0 {
		p.MaxRetries = 0
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = def.BaseDelay
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = def.MaxDelay
	}
	if p.MaxDelay < p.BaseDelay {
		p.MaxDelay = p.BaseDelay
	}
	return p
}

// requestFunc performs one attempt. The returned cancel func releases the
// attempt's timeout and must be called once the body has been consumed.
type requestFunc func(ctx context.Context) (*http.Response, context.CancelFunc, error)

// withRetry runs attempt until it succeeds, fails permanently, or the
// policy is exhausted, sleeping with exponential backoff in between.
func withRetry(ctx context.Context, policy RetryPolicy, attempt requestFunc) (*http.Response, context.CancelFunc, error) {
	backoff := policy.BaseDelay
	for n := 0; ; n++ {
		resp, cancel, err := attempt(ctx)
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		if n >= policy.MaxRetries || !shouldRetry(status, err) {
			return resp, cancel, err
		}

		if resp != nil {
			drainAndClose(resp)
		}
		cancel()

		select {
		case <-ctx.Done():
			return nil, func() {}, ctx.Err()
		case <-time.After(backoff):
			backoff = min(backoff*2, policy.MaxDelay)
		}
	}
}

// shouldRetry determines if a failed request should be retried.
// Returns true for:
// - Network errors (timeout, connection refused, DNS failure)
// - HTTP 429 (rate limited)
// - HTTP 5xx (server errors)
// Returns false for client errors and for cancellation.
func shouldRetry(status int, err error) bool {
	if err != nil {
		return isRetryableError(err)
	}
	return status == http.StatusTooManyRequests || status >= 500
}

// isRetryableError checks if an error type is retryable.
func isRetryableError(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	// A host that does not exist will not appear on retry.
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return dnsErr.IsTemporary || dnsErr.IsTimeout || !dnsErr.IsNotFound
	}

	// Covers dial failures and connection resets.
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}

	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

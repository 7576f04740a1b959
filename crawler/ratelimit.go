package crawler

import (
	"context"
	"math"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Bounds and tuning for the adaptive request rate, in requests per second.
const (
	rateFloor   = 1.0
	rateCeiling = 200.0

	// rttSmoothing weights a new RTT sample against the running average.
	rttSmoothing = 0.2
	// rateGrowth is applied per sample while the site answers faster than
	// the target.
	rateGrowth = 1.1
	// maxRateDrop caps how far one slow sample can cut the rate.
	maxRateDrop = 0.5
	// rateEpsilon ignores adjustments too small to matter.
	rateEpsilon = 0.1
)

// DefaultTargetRTT is the response time the adaptive limiter steers toward.
const DefaultTargetRTT = 500 * time.Millisecond

// AdaptiveLimiter paces requests across every worker of a run. With
// adaptation on it slows down while the site's smoothed response time
// exceeds the target and speeds back up once it recovers. A pinned limiter
// holds its rate.
type AdaptiveLimiter struct {
	limiter *rate.Limiter
	target  time.Duration

	mu       sync.RWMutex
	smoothed time.Duration
	rps      float64
	pinned   bool
}

// NewAdaptiveLimiter starts at rps requests per second and adapts toward
// target. A non-positive target selects DefaultTargetRTT.
func NewAdaptiveLimiter(rps int, target time.Duration) *AdaptiveLimiter {
	if target <= 0 {
		target = DefaultTargetRTT
	}
	r := clampRate(float64(rps))
	return &AdaptiveLimiter{
		limiter:  rate.NewLimiter(rate.Limit(r), burstFor(r)),
		target:   target,
		smoothed: target,
		rps:      r,
	}
}

// Wait blocks until a request may be sent or ctx ends.
func (a *AdaptiveLimiter) Wait(ctx context.Context) error {
	return a.limiter.Wait(ctx)
}

// ObserveRTT feeds one response time into the smoothed average and
// retunes the rate.
func (a *AdaptiveLimiter) ObserveRTT(rtt time.Duration) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.pinned {
		return
	}

	a.smoothed = time.Duration(rttSmoothing*float64(rtt) + (1-rttSmoothing)*float64(a.smoothed))
	if a.smoothed <= 0 {
		return
	}

	next := a.rps * rateGrowth
	if ratio := float64(a.target) / float64(a.smoothed); ratio < 1 {
		next = math.Max(a.rps*ratio, a.rps*maxRateDrop)
	}
	next = clampRate(next)

	if math.Abs(next-a.rps) > rateEpsilon {
		a.applyLocked(next)
	}
}

// Pin fixes the rate at rps and stops adaptation.
func (a *AdaptiveLimiter) Pin(rps int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.pinned = true
	a.applyLocked(clampRate(float64(rps)))
}

// Rate returns the current rate rounded to whole requests per second.
func (a *AdaptiveLimiter) Rate() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return int(math.Round(a.rps))
}

// SmoothedRTT returns the running response time average.
func (a *AdaptiveLimiter) SmoothedRTT() time.Duration {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.smoothed
}

func (a *AdaptiveLimiter) applyLocked(rps float64) {
	a.rps = rps
	a.limiter.SetLimit(rate.Limit(rps))
	a.limiter.SetBurst(burstFor(rps))
}

func burstFor(rps float64) int {
	return int(math.Ceil(rps))
}

func clampRate(rps float64) float64 {
	return math.Min(math.Max(rps, rateFloor), rateCeiling)
}

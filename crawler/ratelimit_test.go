package crawler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAdaptiveLimiter(t *testing.T) {
	tests := []struct {
		name   string
		rps    int
		target time.Duration
		want   int
	}{
		{name: "within bounds", rps: 10, target: 200 * time.Millisecond, want: 10},
		{name: "below floor", rps: 0, target: 200 * time.Millisecond, want: int(rateFloor)},
		{name: "above ceiling", rps: 10_000, target: 200 * time.Millisecond, want: int(rateCeiling)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := NewAdaptiveLimiter(tt.rps, tt.target)
			assert.Equal(t, tt.want, l.Rate())
			assert.Equal(t, tt.target, l.SmoothedRTT(), "average starts at the target")
		})
	}
}

func TestNewAdaptiveLimiterDefaultTarget(t *testing.T) {
	l := NewAdaptiveLimiter(10, 0)
	assert.Equal(t, DefaultTargetRTT, l.SmoothedRTT())
}

func TestAdaptiveLimiterWaitCancelled(t *testing.T) {
	l := NewAdaptiveLimiter(1, time.Second)
	ctx, cancel := context.WithCancel(context.Background())

	require.NoError(t, l.Wait(ctx), "first token is available immediately")
	cancel()
	assert.Error(t, l.Wait(ctx))
}

func TestAdaptiveLimiterBacksOffWhenSlow(t *testing.T) {
	l := NewAdaptiveLimiter(50, 200*time.Millisecond)
	for range 5 {
		l.ObserveRTT(time.Second)
	}
	assert.Less(t, l.Rate(), 50)
	assert.GreaterOrEqual(t, l.Rate(), int(rateFloor))
}

func TestAdaptiveLimiterSingleSampleDropIsCapped(t *testing.T) {
	l := NewAdaptiveLimiter(40, 100*time.Millisecond)
	l.ObserveRTT(time.Hour)
	assert.Equal(t, 20, l.Rate(), "one sample may at most halve the rate")
}

func TestAdaptiveLimiterRecovers(t *testing.T) {
	l := NewAdaptiveLimiter(50, 200*time.Millisecond)
	for range 10 {
		l.ObserveRTT(time.Second)
	}
	low := l.Rate()

	for range 40 {
		l.ObserveRTT(10 * time.Millisecond)
	}
	assert.Greater(t, l.Rate(), low)
	assert.LessOrEqual(t, l.Rate(), int(rateCeiling))
}

func TestAdaptiveLimiterSmoothing(t *testing.T) {
	l := NewAdaptiveLimiter(10, 100*time.Millisecond)
	l.ObserveRTT(600 * time.Millisecond)
	// 0.2*600 + 0.8*100
	assert.Equal(t, 200*time.Millisecond, l.SmoothedRTT())
}

func TestAdaptiveLimiterPin(t *testing.T) {
	l := NewAdaptiveLimiter(10, 100*time.Millisecond)
	l.Pin(30)
	assert.Equal(t, 30, l.Rate())

	for range 10 {
		l.ObserveRTT(5 * time.Second)
	}
	assert.Equal(t, 30, l.Rate(), "pinned rate ignores observations")
}

func TestAdaptiveLimiterConcurrentUse(t *testing.T) {
	l := NewAdaptiveLimiter(rateCeiling, 100*time.Millisecond)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = l.Wait(ctx)
			l.ObserveRTT(time.Duration(i) * 10 * time.Millisecond)
			_ = l.Rate()
		}()
	}
	wg.Wait()
}

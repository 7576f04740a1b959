package crawler

import (
	"math"
	"runtime"
	"runtime/debug"
	"sync"
)

// ThrottleLevel grades heap usage against the configured limit.
type ThrottleLevel int

const (
	ThrottleNormal   ThrottleLevel = iota // below 75% of the limit
	ThrottleWarning                       // 75% to 90%
	ThrottleCritical                      // 90% and above
)

func (l ThrottleLevel) String() string {
	switch l {
	case ThrottleWarning:
		return "warning"
	case ThrottleCritical:
		return "critical"
	default:
		return "normal"
	}
}

// MemoryWatcher grades heap usage against a soft limit and reports level
// changes to a callback. The cooperative engine polls it between batches.
type MemoryWatcher struct {
	limit    int64
	previous int64 // runtime soft limit before this watcher installed its own
	heap     func() uint64

	mu       sync.Mutex
	level    ThrottleLevel
	onChange func(ThrottleLevel)
}

// NewMemoryWatcher installs limitMB as the runtime's soft memory limit.
// Call Release to restore the previous limit.
func NewMemoryWatcher(limitMB int64) *MemoryWatcher {
	limit := limitMB << 20
	return &MemoryWatcher{
		limit:    limit,
		previous: debug.SetMemoryLimit(limit),
		heap:     heapInUse,
	}
}

func heapInUse() uint64 {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return ms.HeapAlloc
}

// OnChange registers fn to run whenever Check observes a new level.
func (m *MemoryWatcher) OnChange(fn func(ThrottleLevel)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onChange = fn
}

// Check samples the heap and returns usage as a percentage of the limit.
func (m *MemoryWatcher) Check() (float64, ThrottleLevel) {
	if m.limit <= 0 {
		return 0, ThrottleNormal
	}
	used := float64(m.heap()) / float64(m.limit) * 100

	level := ThrottleNormal
	switch {
	case used >= 90:
		level = ThrottleCritical
	case used >= 75:
		level = ThrottleWarning
	}

	m.mu.Lock()
	changed := level != m.level
	m.level = level
	fn := m.onChange
	m.mu.Unlock()

	if changed && fn != nil {
		fn(level)
	}
	return used, level
}

// Release restores the soft memory limit that was in place before.
func (m *MemoryWatcher) Release() {
	if m.previous <= 0 {
		debug.SetMemoryLimit(math.MaxInt64)
		return
	}
	debug.SetMemoryLimit(m.previous)
}

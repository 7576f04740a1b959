package crawler

import "sync"

// PageSet records which pages a run has already queued for processing.
// Implementations are safe for concurrent use.
type PageSet interface {
	// VisitIfNew marks url and reports whether it was unseen.
	VisitIfNew(url string) bool
	Close() error
}

// memoryPageSet is an exact PageSet held in a map.
type memoryPageSet struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

func newMemoryPageSet() *memoryPageSet {
	return &memoryPageSet{seen: make(map[string]struct{})}
}

func (m *memoryPageSet) VisitIfNew(url string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.seen[url]; ok {
		return false
	}
	m.seen[url] = struct{}{}
	return true
}

func (m *memoryPageSet) Close() error { return nil }

package crawler

import (
	"io"
	"log/slog"
)

// schedulerSettings holds what both engines accept. The pool engine
// ignores the batch, follow, page set and memory settings.
type schedulerSettings struct {
	logger     *slog.Logger
	progress   chan<- CrawlEvent
	batchSize  int
	follow     bool
	newPageSet func() (PageSet, error)
	memory     *MemoryWatcher
}

// Option configures a Scheduler.
type Option func(*schedulerSettings)

func newSchedulerSettings(opts []Option) schedulerSettings {
	s := schedulerSettings{
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		batchSize:  DefaultBatchSize,
		newPageSet: func() (PageSet, error) { return newMemoryPageSet(), nil },
	}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// WithLogger sets the progress logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *schedulerSettings) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithProgress streams a CrawlEvent per page and per link to ch.
func WithProgress(ch chan<- CrawlEvent) Option {
	return func(s *schedulerSettings) { s.progress = ch }
}

// WithBatchSize sets how many pages the cooperative engine drains per
// batch.
func WithBatchSize(n int) Option {
	return func(s *schedulerSettings) {
		if n > 0 {
			s.batchSize = n
		}
	}
}

// WithFollowLinks makes the cooperative engine process linked pages as
// well as checking them.
func WithFollowLinks(follow bool) Option {
	return func(s *schedulerSettings) { s.follow = follow }
}

// WithPageSet replaces the in-memory page set used when following links.
func WithPageSet(factory func() (PageSet, error)) Option {
	return func(s *schedulerSettings) {
		if factory != nil {
			s.newPageSet = factory
		}
	}
}

// WithMemoryWatcher lets the cooperative engine shrink its batches under
// memory pressure.
func WithMemoryWatcher(w *MemoryWatcher) Option {
	return func(s *schedulerSettings) { s.memory = w }
}

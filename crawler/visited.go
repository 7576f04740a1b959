package crawler

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"sync"

	bloom "github.com/bits-and-blooms/bloom/v3"
	"github.com/edsrzf/mmap-go"
)

const (
	// bloomCapacity and bloomFalsePositive size the filter for large sites.
	bloomCapacity      = 100_000
	bloomFalsePositive = 0.001
	bloomFlushEvery    = 1000
)

// BloomPageSet is a PageSet backed by a bloom filter mirrored into a
// memory-mapped temp file, so its footprint stays flat however many pages
// are followed. A false positive makes the run skip a page it never
// processed; it never causes a page to be processed twice.
type BloomPageSet struct {
	mu      sync.Mutex
	filter  *bloom.BloomFilter
	file    *os.File
	region  mmap.MMap
	pending int   // additions since the last flush
	err     error // first flush failure, reported by Close
}

var _ PageSet = (*BloomPageSet)(nil)

// NewBloomPageSet creates the filter and its backing file in dir (the OS
// temp directory when dir is empty).
func NewBloomPageSet(dir string) (*BloomPageSet, error) {
	filter := bloom.NewWithEstimates(bloomCapacity, bloomFalsePositive)

	var buf bytes.Buffer
	if _, err := filter.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("encode bloom filter: %w", err)
	}

	file, err := os.CreateTemp(dir, "sitecheck-pages-*.bloom")
	if err != nil {
		return nil, fmt.Errorf("create page set file: %w", err)
	}
	discard := func(cause error) (*BloomPageSet, error) {
		_ = file.Close()
		_ = os.Remove(file.Name())
		return nil, cause
	}

	if err := file.Truncate(int64(buf.Len())); err != nil {
		return discard(fmt.Errorf("size page set file: %w", err))
	}
	region, err := mmap.Map(file, mmap.RDWR, 0)
	if err != nil {
		return discard(fmt.Errorf("map page set file: %w", err))
	}
	copy(region, buf.Bytes())

	return &BloomPageSet{filter: filter, file: file, region: region}, nil
}

// VisitIfNew implements PageSet.
func (b *BloomPageSet) VisitIfNew(url string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.filter.TestOrAddString(url) {
		return false
	}
	b.pending++
	if b.pending >= bloomFlushEvery {
		b.flushLocked()
	}
	return true
}

// Path returns the backing file, or "" once closed.
func (b *BloomPageSet) Path() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.file == nil {
		return ""
	}
	return b.file.Name()
}

func (b *BloomPageSet) flushLocked() {
	b.pending = 0
	var buf bytes.Buffer
	if _, err := b.filter.WriteTo(&buf); err != nil {
		b.recordLocked(fmt.Errorf("encode bloom filter: %w", err))
		return
	}
	copy(b.region, buf.Bytes())
	if err := b.region.Flush(); err != nil {
		b.recordLocked(fmt.Errorf("flush page set: %w", err))
	}
}

func (b *BloomPageSet) recordLocked(err error) {
	if b.err == nil {
		b.err = err
	}
}

// Close flushes, unmaps and removes the backing file.
func (b *BloomPageSet) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.file == nil {
		return nil
	}

	if b.pending > 0 {
		b.flushLocked()
	}
	errs := []error{b.err}
	if err := b.region.Unmap(); err != nil {
		errs = append(errs, fmt.Errorf("unmap page set: %w", err))
	}
	if err := b.file.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close page set file: %w", err))
	}
	if err := os.Remove(b.file.Name()); err != nil && !os.IsNotExist(err) {
		errs = append(errs, fmt.Errorf("remove page set file: %w", err))
	}
	b.region, b.file = nil, nil
	return errors.Join(errs...)
}

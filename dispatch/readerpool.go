package dispatch

import (
	stdcontext "context"
	"runtime"

	"golang.org/x/sync/semaphore"
)

// ReaderPool bounds how many storage read requests run concurrently (§5
// Storage readers: "a fixed-size pool of reader threads... a sane default is
// max(4, cpu_count)"). Storage reads themselves already take an MVCC-style
// RLock and never block the writer; this pool exists to cap fan-out from a
// P2P layer that might otherwise issue thousands of concurrent lookups.
//
// Grounded on verifier.ComputePool's same weighted-semaphore shape, reused
// here for a distinct resource (reads, not compute).
type ReaderPool struct {
	sem *semaphore.Weighted
}

// NewReaderPool sizes the pool at max(4, workers); workers <= 0 picks
// max(4, runtime.NumCPU()).
func NewReaderPool(workers int) *ReaderPool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers < 4 {
		workers = 4
	}
	return &ReaderPool{sem: semaphore.NewWeighted(int64(workers))}
}

// Do runs fn with a reader slot held, blocking until one is free or ctx is
// cancelled.
func (p *ReaderPool) Do(ctx stdcontext.Context, fn func() (interface{}, error)) (interface{}, error) {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer p.sem.Release(1)
	return fn()
}

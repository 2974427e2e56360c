package verifier

import (
	stdcontext "context"
	"runtime"

	"golang.org/x/sync/semaphore"

	"git.gammaspectra.live/P2Pool/monero-node-core/internal/xlog"
)

var logger = xlog.NewModuleLogger(xlog.ModuleVerifier)

// ComputePool is the separate OS-thread pool CPU-heavy verification work
// runs on (§5 Scheduling model): PoW hashing, RandomX VM construction, and
// parallel signature verification. Nothing scheduled here may block on a
// storage write or a service response; those suspension points belong to
// the caller, not the pool.
//
// Grounded on the teacher's worker/agent split (work/worker.go's Agent
// interface hands CPU-heavy sealing off a request-handling goroutine),
// generalized from one fixed job kind to an arbitrary closure bounded by a
// weighted semaphore instead of a fixed worker-goroutine count.
type ComputePool struct {
	sem *semaphore.Weighted
}

// NewComputePool sizes the pool at workers; workers <= 0 picks
// runtime.GOMAXPROCS(0). This default differs from the reader pool's
// max(4, cpu_count).
func NewComputePool(workers int) *ComputePool {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &ComputePool{sem: semaphore.NewWeighted(int64(workers))}
}

// Do runs fn on the pool, blocking the calling goroutine until a slot frees
// up or ctx is cancelled.
func (p *ComputePool) Do(ctx stdcontext.Context, fn func() error) error {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer p.sem.Release(1)
	return fn()
}


package txpool

import (
	"gopkg.in/fatih/set.v0"

	ctypes "git.gammaspectra.live/P2Pool/monero-node-core/types"
)

// TxsBeingHandled is the in-process guard set of §4.5: blob hashes
// currently being verified by some incoming-tx batch, so a second batch
// racing in with an overlapping set of txs does not duplicate that work
// (§5 Bounded queues).
//
// Grounded on the teacher's work/worker.go, which tracks ancestor/family/
// uncle hash membership the same way via a *set.Set guarded by the caller
// rather than internally locked state.
type TxsBeingHandled struct {
	s *set.Set
}

func NewTxsBeingHandled() *TxsBeingHandled {
	return &TxsBeingHandled{s: set.New()}
}

// LocalTracker starts tracking a new batch's claims against the shared set,
// returning a handle that releases every blob hash it successfully claimed
// when the batch finishes (success or failure) — the Go equivalent of the
// reference implementation's Drop-based release.
func (h *TxsBeingHandled) LocalTracker() *LocalTracker {
	return &LocalTracker{shared: h}
}

// LocalTracker tracks the blob hashes one batch has claimed in the shared
// TxsBeingHandled set, so they can all be released together once the batch
// completes.
type LocalTracker struct {
	shared *TxsBeingHandled
	claimed []ctypes.Hash
}

// TryAdd claims blobHash for this batch. Returns false if another batch
// already claimed it (the caller should drop that tx from this batch
// rather than verify it twice).
func (t *LocalTracker) TryAdd(blobHash ctypes.Hash) bool {
	if t.shared.s.Has(blobHash) {
		return false
	}
	t.shared.s.Add(blobHash)
	t.claimed = append(t.claimed, blobHash)
	return true
}

// Release frees every blob hash this tracker claimed. Must be called
// exactly once, when the owning batch is done with them (§5: "serializes
// per-batch work ... to prevent two batches from verifying the same blob
// concurrently").
func (t *LocalTracker) Release() {
	for _, h := range t.claimed {
		t.shared.s.Remove(h)
	}
	t.claimed = nil
}

package verifier

import "sync"

// ReorgLock is the process-wide reader/writer lock of §5: block and
// transaction verification take the read side; a reorg (PopBlocks followed
// by replaying the new main chain as a batch of WriteBlocks) takes the
// write side, making reorgs atomic with respect to every verifier. It is
// passed explicitly to whatever constructs a Verifier and to the reorg
// operation, never held as a package-level global (§9 Design notes: "Global
// state").
type ReorgLock struct {
	mu sync.RWMutex
}

func NewReorgLock() *ReorgLock { return &ReorgLock{} }

func (l *ReorgLock) RLock()   { l.mu.RLock() }
func (l *ReorgLock) RUnlock() { l.mu.RUnlock() }
func (l *ReorgLock) Lock()    { l.mu.Lock() }
func (l *ReorgLock) Unlock()  { l.mu.Unlock() }

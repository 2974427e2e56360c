package context

import (
	"sync"

	"github.com/fjl/memsize"

	"git.gammaspectra.live/P2Pool/monero-node-core/consensus"
	ctypes "git.gammaspectra.live/P2Pool/monero-node-core/types"
)

// RandomXVM is an opaque, expensive-to-construct VM handle. Construction
// and hashing are delegated to the external cryptographic-primitives
// collaborator (§1); this cache only manages lifetime and sharing.
type RandomXVM interface {
	SeedHash() ctypes.Hash
	Close()
}

// vmEntry pairs a VM with the seed height it was built for, and tracks its
// memory footprint for operator diagnostics (VMs are tens of MB each).
type vmEntry struct {
	seedHeight uint64
	seedHash   ctypes.Hash
	vm         RandomXVM
	refs       int32
}

// RxVMCache holds up to RX_SEEDS_CACHED main-chain VMs, at most one
// opportunistically-received VM, and lends out read-only borrows to
// verifiers. Construction happens on the caller's compute pool; this cache
// only arbitrates sharing (§3 RandomX VM cache, §5 Shared resources).
type RxVMCache struct {
	mu          sync.Mutex
	main        []*vmEntry // up to RxSeedsCached, most-recently-used last
	opportunistic *vmEntry
	altChains   *arcCache // ChainId -> *vmEntry, at most one VM per alt chain
}

func NewRxVMCache(altChainCapacity int) *RxVMCache {
	alt, _ := newArcCache(maxInt(altChainCapacity, 1))
	return &RxVMCache{altChains: alt}
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// Get returns a cached main-chain VM for seedHeight, if resident.
func (c *RxVMCache) Get(seedHeight uint64) (RandomXVM, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, e := range c.main {
		if e.seedHeight == seedHeight {
			// Move the hit to the most-recently-used end.
			c.main = append(append(c.main[:i:i], c.main[i+1:]...), e)
			return e.vm, true
		}
	}
	if c.opportunistic != nil && c.opportunistic.seedHeight == seedHeight {
		return c.opportunistic.vm, true
	}
	return nil, false
}

// Insert places a freshly built main-chain VM into the cache, evicting the
// least-recently-used entry once RX_SEEDS_CACHED is exceeded.
func (c *RxVMCache) Insert(seedHeight uint64, seedHash ctypes.Hash, vm RandomXVM) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range c.main {
		if e.seedHeight == seedHeight {
			return
		}
	}
	c.main = append(c.main, &vmEntry{seedHeight: seedHeight, seedHash: seedHash, vm: vm})
	if len(c.main) > consensus.RxSeedsCached {
		evicted := c.main[0]
		c.main = c.main[1:]
		if evicted.refs == 0 {
			evicted.vm.Close()
		}
	}
}

// DonateOpportunistic accepts a VM a verifier built for an alt chain whose
// seed matches an upcoming main-chain need (§5 Shared resources). Only one
// such VM is kept; a second donation replaces the first.
func (c *RxVMCache) DonateOpportunistic(seedHeight uint64, seedHash ctypes.Hash, vm RandomXVM) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.opportunistic != nil && c.opportunistic.refs == 0 {
		c.opportunistic.vm.Close()
	}
	c.opportunistic = &vmEntry{seedHeight: seedHeight, seedHash: seedHash, vm: vm}
}

// AltChainVM returns (or reports absent) the single cached VM for chain.
func (c *RxVMCache) AltChainVM(chain ctypes.ChainId) (RandomXVM, bool) {
	v, ok := c.altChains.Get(chain)
	if !ok {
		return nil, false
	}
	return v.(*vmEntry).vm, true
}

func (c *RxVMCache) SetAltChainVM(chain ctypes.ChainId, seedHeight uint64, seedHash ctypes.Hash, vm RandomXVM) {
	c.altChains.Add(chain, &vmEntry{seedHeight: seedHeight, seedHash: seedHash, vm: vm})
}

// MemoryFootprint reports the approximate resident size of every cached VM
// handle's Go-visible state, for operator diagnostics. It deliberately
// does not attempt to account for the RandomX dataset itself, which lives
// in memory the cryptographic collaborator owns and sizes opaquely; it
// covers the bookkeeping structures this cache is responsible for.
func (c *RxVMCache) MemoryFootprint() uintptr {
	c.mu.Lock()
	defer c.mu.Unlock()
	sizes := memsize.Scan(c.main)
	return sizes.Total
}

// Package context implements the context engine (§4.2): the single
// writer-owned, many-reader-snapshotted source of truth for "what does
// consensus look like right now" — next difficulty, next block weight
// limits, the active hard-fork version, and the RandomX VMs needed to check
// proof of work, for both the main chain and every live alt chain.
package context

import (
	"sync"

	"git.gammaspectra.live/P2Pool/monero-node-core/consensus"
	ctypes "git.gammaspectra.live/P2Pool/monero-node-core/types"
)

// ContextSnapshot is the immutable value handed to a verifier or RPC reader
// (§4.2 Context() op). It is a point-in-time copy: the caller can use it for
// as long as it likes without blocking the writer.
type ContextSnapshot struct {
	Chain           ctypes.Chain
	HardForkVersion consensus.HFVersion
	Difficulty      *DifficultyCache
	Weight          *WeightCache
}

func (s ContextSnapshot) NextDifficulty() ctypes.Difficulty {
	return s.Difficulty.NextDifficulty(s.HardForkVersion)
}

func (s ContextSnapshot) MedianWeightForBlockReward() uint64 {
	return s.Weight.MedianWeightForBlockReward()
}

// MedianBlockTimestamp exposes the difficulty cache's trailing-window
// timestamp median for the block-timestamp check (§4.2, §4.4 step 4).
func (s ContextSnapshot) MedianBlockTimestamp() *uint64 {
	return s.Difficulty.MedianTimestamp()
}

// MainContext is the top-level C2 component. A single writer calls
// NewBlock/PopBlocks, serialized with storage commits by the dispatch
// layer (PopBlocks under the reorg lock's write side, §5); any number of
// readers call Context()/AltContextCache/AltChainRxVM concurrently. This
// mirrors the teacher's single-writer worker feeding read-mostly snapshot
// consumers (work/worker.go's result-feed pattern), collapsed to the one
// mutable resource this engine owns.
type MainContext struct {
	network Network

	mu         sync.RWMutex
	tipHeight  uint64
	difficulty *DifficultyCache
	weight     *WeightCache
	hardFork   *HardForkCache

	rx *RxVMCache

	altMu       sync.Mutex
	altContexts *arcCache // ChainId -> *AltChainContext
}

// AltChainCacheCapacity bounds how many alt-chain contexts are kept resident
// at once; beyond this, the ARC cache (cache.go) evicts entries, and an
// evicted context must be derived again through AltContextCache on next use
// (§3 Invariants allow this: AltContextCache is idempotent and cheap relative
// to verification itself).
const AltChainCacheCapacity = 64

func NewMainContext(network Network) *MainContext {
	alt, _ := newArcCache(AltChainCacheCapacity)
	return &MainContext{
		network:     network,
		difficulty:  NewDifficultyCache(),
		weight:      NewWeightCache(),
		hardFork:    NewHardForkCache(network, consensus.DefaultHardForkWindow),
		rx:          NewRxVMCache(AltChainCacheCapacity),
		altContexts: alt,
	}
}

// ChainTail is the ordered (oldest-first) tail of main-chain history the
// caches need to seed from, as read once at startup or after a deep reorg
// recovery (§4.2 Seed).
type ChainTail struct {
	Height            uint64 // height of the last (most recent) entry
	DifficultySamples []consensus.DifficultySample
	ShortTermWeights  []uint64
	LongTermWeights   []uint64
	HardForkCurrent   consensus.HFVersion
	HardForkVotes     []consensus.HFVersion
}

// Seed initializes the caches from storage, done once before the context
// engine starts serving NewBlock/Context calls.
func (m *MainContext) Seed(tail ChainTail) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tipHeight = tail.Height
	m.difficulty.Seed(tail.DifficultySamples)
	m.weight.Seed(tail.ShortTermWeights, tail.LongTermWeights)
	m.hardFork.Seed(tail.HardForkCurrent, tail.HardForkVotes)
}

// Context returns a read-only snapshot for chain (§4.2 Context() op). For an
// alt chain it delegates to that chain's own cached context; the caller is
// expected to have already established it via AltContextCache.
func (m *MainContext) Context(chain ctypes.Chain) (ContextSnapshot, bool) {
	if !chain.IsMain() {
		v, ok := m.altContexts.Get(chain.AltId)
		if !ok {
			return ContextSnapshot{}, false
		}
		return v.(*AltChainContext).Snapshot(), true
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	return ContextSnapshot{
		Chain:           ctypes.Main,
		HardForkVersion: m.hardFork.Current(),
		Difficulty:      m.difficulty.Clone(),
		Weight:          m.weight.Clone(),
	}, true
}

// NewBlock advances the main-chain caches by exactly one block. Must only be
// called by the single writer, after storage has durably recorded the block
// and inside the same serialized commit section as that write (§4.2 NewBlock
// op, §5).
func (m *MainContext) NewBlock(info *ctypes.VerifiedBlockInformation, height uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tipHeight = height
	m.difficulty.PushBlock(info.Block.Header.Timestamp, info.CumulativeDifficulty)
	m.weight.PushBlock(info.Weight, info.LongTermWeight)
	m.hardFork.PushBlock(height, consensus.HFVersion(info.Block.Header.MinorVersion))

	if consensus.IsRandomXSeedHeight(height) {
		m.rx.mu.Lock()
		m.rx.opportunistic = nil
		m.rx.mu.Unlock()
	}
}

// PopBlocks rewinds the main-chain caches by n blocks (§4.2 PopBlocks op).
// If any cache cannot satisfy the rewind from its own ring (n exceeds the
// window it retains), PopBlocks calls reseed and re-initializes every cache
// from the returned tail instead. If reseed fails, its error is returned and
// the caches stay in their pre-call state rather than partially rewound.
func (m *MainContext) PopBlocks(n uint64, reseed func() (ChainTail, error)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	d := m.difficulty.Clone()
	w := m.weight.Clone()
	h := m.hardFork.Clone()

	okD := d.PopBlocks(int(n))
	okW := w.PopBlocks(int(n))
	okH := h.PopBlocks(int(n))

	if okD && okW && okH {
		m.difficulty = d
		m.weight = w
		m.hardFork = h
		m.tipHeight -= n
		return nil
	}

	tail, err := reseed()
	if err != nil {
		return err
	}
	m.tipHeight = tail.Height
	m.difficulty.Seed(tail.DifficultySamples)
	m.weight.Seed(tail.ShortTermWeights, tail.LongTermWeights)
	m.hardFork.Seed(tail.HardForkCurrent, tail.HardForkVotes)
	return nil
}

// RxVM returns the main-chain RandomX VM for height's PoW seed, building one
// via buildVM if it is not already cached (§4.2 implied by §3 RandomX VM
// cache; exposed here so the verifier never constructs a VM directly).
func (m *MainContext) RxVM(height uint64, seedHash ctypes.Hash, buildVM func(ctypes.Hash) (RandomXVM, error)) (RandomXVM, error) {
	seedHeight := consensus.RandomXSeedHeight(height)
	if vm, ok := m.rx.Get(seedHeight); ok {
		return vm, nil
	}
	vm, err := buildVM(seedHash)
	if err != nil {
		return nil, err
	}
	m.rx.Insert(seedHeight, seedHash, vm)
	return vm, nil
}

// PromoteAltChain splices an alt chain's cached context in as the new main
// context once that chain becomes canonical after a reorg (§4.2 implied:
// the reorg swaps storage's main/alt labeling, and the context engine must
// follow). The promoted chain's own caches already hold the correct history
// up to its tip; the caller supplies the new tip height.
func (m *MainContext) PromoteAltChain(chain ctypes.ChainId, tipHeight uint64) bool {
	v, ok := m.altContexts.Get(chain)
	if !ok {
		return false
	}
	ac := v.(*AltChainContext)

	m.mu.Lock()
	m.difficulty = ac.difficulty
	m.weight = ac.weight
	m.hardFork = ac.hardFork
	m.tipHeight = tipHeight
	m.mu.Unlock()

	m.altMu.Lock()
	m.altContexts.Remove(chain)
	m.altMu.Unlock()
	return true
}

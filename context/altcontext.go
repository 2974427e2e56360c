package context

import (
	"git.gammaspectra.live/P2Pool/monero-node-core/consensus"
	"git.gammaspectra.live/P2Pool/monero-node-core/errs"
	ctypes "git.gammaspectra.live/P2Pool/monero-node-core/types"
)

// AltChainContext is the per-alt-chain analogue of MainContext: the same
// three caches (difficulty, weight, hard-fork), derived from the main
// chain's caches truncated at the fork's common-ancestor height and then
// advanced by whatever alt blocks already extend that chain (§4.2
// AltContextCache).
type AltChainContext struct {
	chain        ctypes.ChainId
	parent       ctypes.Chain
	forkHeight   uint64
	difficulty   *DifficultyCache
	weight       *WeightCache
	hardFork     *HardForkCache
}

func (a *AltChainContext) Snapshot() ContextSnapshot {
	return ContextSnapshot{
		Chain:           ctypes.Alt(a.chain),
		HardForkVersion: a.hardFork.Current(),
		Difficulty:      a.difficulty,
		Weight:          a.weight,
	}
}

// AltChainStore is the read-only slice of the storage engine AltContextCache
// needs: enough of FindBlock/BlockExtendedHeaderInRange to walk from a fork
// point back through the main chain's history (§4.3).
type AltChainStore interface {
	BlockExtendedHeaderInRange(chain ctypes.Chain, startHeight, count uint64) ([]consensus.DifficultySample, []uint64, []uint64, []consensus.HFVersion, error)
}

// AltContextCache derives (or returns an already-cached) AltChainContext for
// chain, whose history before forkHeight lives on parentMain (§4.2
// AltContextCache op). The parent's caches (the main context's own, or the
// cached parent alt chain's) supply the history, cloned and truncated to
// forkHeight; no storage read is made. A parent alt chain without a cached
// context yields a NotFound error.
func (m *MainContext) AltContextCache(chain ctypes.ChainId, parent ctypes.Chain, forkHeight uint64) (*AltChainContext, error) {
	m.altMu.Lock()
	defer m.altMu.Unlock()

	if existing, ok := m.altContexts.Get(chain); ok {
		return existing.(*AltChainContext), nil
	}

	if !parent.IsMain() {
		parentCtx, ok := m.altContexts.Get(parent.AltId)
		if !ok {
			return nil, errs.NotFoundf("parent alt chain %s has no cached context", parent.AltId)
		}
		p := parentCtx.(*AltChainContext)
		return m.deriveFrom(chain, parent, forkHeight, p.difficulty, p.weight, p.hardFork)
	}

	return m.deriveFrom(chain, parent, forkHeight, m.difficulty, m.weight, m.hardFork)
}

func (m *MainContext) deriveFrom(chain ctypes.ChainId, parent ctypes.Chain, forkHeight uint64, diff *DifficultyCache, weight *WeightCache, hf *HardForkCache) (*AltChainContext, error) {
	d := diff.Clone()
	w := weight.Clone()
	h := hf.Clone()

	// The parent caches describe the chain tip at the time of the call, which
	// may be ahead of forkHeight; truncate to exactly the common ancestor.
	if d.Len() > 0 {
		overshoot := 0
		// Samples are one-per-block in height order; the cache's own Len()
		// corresponds to the parent's current tip height by construction, so
		// the number to drop is the difference.
		if m.tipHeight > forkHeight {
			overshoot = int(m.tipHeight - forkHeight)
		}
		if overshoot > 0 {
			d.PopBlocks(minInt(overshoot, d.Len()))
			w.PopBlocks(minInt(overshoot, len(w.longTerm)))
			h.PopBlocks(minInt(overshoot, len(h.votes)))
		}
	}

	ac := &AltChainContext{
		chain:      chain,
		parent:     parent,
		forkHeight: forkHeight,
		difficulty: d,
		weight:     w,
		hardFork:   h,
	}
	m.altContexts.Add(chain, ac)
	return ac, nil
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// PushAltBlock advances chain's cached context by one block, mirroring
// MainContext.NewBlock for the alt-chain case (§4.2).
func (m *MainContext) PushAltBlock(chain ctypes.ChainId, info *ctypes.AltBlockInformation) {
	m.altMu.Lock()
	defer m.altMu.Unlock()
	v, ok := m.altContexts.Get(chain)
	if !ok {
		return
	}
	ac := v.(*AltChainContext)
	ac.difficulty.PushBlock(info.Block.Header.Timestamp, info.CumulativeDifficulty)
	ac.weight.PushBlock(info.Weight, info.LongTermWeight)
	ac.hardFork.PushBlock(info.Height, consensus.HFVersion(info.Block.Header.MinorVersion))
}

// AltChainRxVM returns the RandomX VM for chain's PoW seed height, building
// and caching one via buildVM if absent (§4.2 AltChainRxVM op). Construction
// itself happens on the verifier's compute pool; this only coordinates the
// cache slot.
func (m *MainContext) AltChainRxVM(chain ctypes.ChainId, seedHeight uint64, seedHash ctypes.Hash, buildVM func(ctypes.Hash) (RandomXVM, error)) (RandomXVM, error) {
	if vm, ok := m.rx.AltChainVM(chain); ok {
		return vm, nil
	}
	if vm, ok := m.rx.Get(seedHeight); ok {
		return vm, nil
	}
	vm, err := buildVM(seedHash)
	if err != nil {
		return nil, err
	}
	m.rx.SetAltChainVM(chain, seedHeight, seedHash, vm)
	return vm, nil
}

// DropAltContext discards a fork's cached context, called once it is either
// promoted into the main chain (PromoteAltChain) or flushed entirely
// (§3 Lifecycles).
func (m *MainContext) DropAltContext(chain ctypes.ChainId) {
	m.altMu.Lock()
	defer m.altMu.Unlock()
	m.altContexts.Remove(chain)
}

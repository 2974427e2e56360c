package storage

import (
	"git.gammaspectra.live/P2Pool/monero-node-core/consensus"
	chainctx "git.gammaspectra.live/P2Pool/monero-node-core/context"
	"git.gammaspectra.live/P2Pool/monero-node-core/errs"
)

// maxLongTermWeightReplay bounds how many long-term weight samples ChainTail
// rebuilds from storage on a seed or reseed. It equals
// consensus.LongTermWeightWindow (100000), so it takes effect whenever the
// chain is taller than that window: at startup seeding and at every reseed
// after a pop on such a chain.
const maxLongTermWeightReplay = 100_000

// ChainTail rebuilds a context.ChainTail for the main chain as of height by
// replaying BlockInfos and headers backward, for the context engine to Seed
// or PopBlocks-reseed from (§4.2 ChainTail; §5 Ordering guarantees: this
// runs on a reader, never on the writer goroutine).
func (e *Engine) ChainTail(height uint64) (chainctx.ChainTail, error) {
	e.stateMu.RLock()
	defer e.stateMu.RUnlock()

	if !e.hasGenesis || height > e.tipHeight.Load() {
		return chainctx.ChainTail{}, errs.NotFoundf("no chain tail at height %d", height)
	}

	tail := chainctx.ChainTail{Height: height}

	diffFrom := uint64(0)
	if height+1 > consensus.DifficultyWindow+consensus.DifficultyLag {
		diffFrom = height + 1 - (consensus.DifficultyWindow + consensus.DifficultyLag)
	}
	for h := diffFrom; h <= height; h++ {
		info, err := e.blockInfoAt(h)
		if err != nil {
			return chainctx.ChainTail{}, err
		}
		tail.DifficultySamples = append(tail.DifficultySamples, consensus.DifficultySample{
			Timestamp:            info.Timestamp,
			CumulativeDifficulty: info.CumulativeDifficulty,
		})
	}

	shortFrom := uint64(0)
	if height+1 > consensus.ShortTermWeightWindow {
		shortFrom = height + 1 - consensus.ShortTermWeightWindow
	}
	longFrom := uint64(0)
	if height+1 > maxLongTermWeightReplay {
		longFrom = height + 1 - maxLongTermWeightReplay
	}
	for h := longFrom; h <= height; h++ {
		info, err := e.blockInfoAt(h)
		if err != nil {
			return chainctx.ChainTail{}, err
		}
		tail.LongTermWeights = append(tail.LongTermWeights, info.LongTermWeight)
		if h >= shortFrom {
			tail.ShortTermWeights = append(tail.ShortTermWeights, info.BlockWeight)
		}
	}

	hfFrom := uint64(0)
	if height+1 > consensus.DefaultHardForkWindow {
		hfFrom = height + 1 - consensus.DefaultHardForkWindow
	}
	var current consensus.HFVersion
	for h := hfFrom; h <= height; h++ {
		hdrBuf, err := e.blockHeaders.Get(blockHeaderKey(h))
		if err != nil {
			return chainctx.ChainTail{}, err
		}
		hdr := decodeBlockHeader(hdrBuf[:blockHeaderSize])
		vote := consensus.HFVersion(hdr.MinorVersion)
		tail.HardForkVotes = append(tail.HardForkVotes, vote)
		current = consensus.HFVersion(hdr.MajorVersion)
	}
	tail.HardForkCurrent = current

	return tail, nil
}

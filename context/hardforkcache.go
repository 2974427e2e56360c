package context

import (
	"git.gammaspectra.live/P2Pool/monero-node-core/consensus"
)

// HardForkCache holds the current activated version, the candidate next
// version, and a rolling window of per-block votes (§3 Hard-fork state).
// Structurally this mirrors the teacher's Istanbul voting snapshot (a
// rolling window of headers re-evaluated against a threshold on every
// block) collapsed down to the one thing this core tracks: a vote tally,
// not a validator set.
type HardForkCache struct {
	network Network
	current consensus.HFVersion
	votes   []consensus.HFVersion // ring of the last DefaultHardForkWindow votes, oldest first
	window  int
}

type Network = consensus.Network

func NewHardForkCache(network Network, window int) *HardForkCache {
	if window <= 0 {
		window = consensus.DefaultHardForkWindow
	}
	return &HardForkCache{network: network, current: consensus.HFVersion1, window: window}
}

func (c *HardForkCache) Seed(current consensus.HFVersion, votes []consensus.HFVersion) {
	c.current = current
	if len(votes) > c.window {
		votes = votes[len(votes)-c.window:]
	}
	c.votes = append([]consensus.HFVersion(nil), votes...)
}

func (c *HardForkCache) Current() consensus.HFVersion { return c.current }

// PushBlock records the block's vote and re-evaluates activation (§4.2
// Hard-fork activation): push the vote, evict the oldest if the window
// overflowed, then promote to the highest candidate whose activation
// height has passed and whose vote threshold is met.
func (c *HardForkCache) PushBlock(height uint64, vote consensus.HFVersion) {
	c.votes = append(c.votes, vote)
	if len(c.votes) > c.window {
		c.votes = c.votes[len(c.votes)-c.window:]
	}

	for {
		next := c.current + 1
		table := consensus.ActivationTable(c.network)
		if int(next)-1 >= len(table) {
			return
		}
		rule := table[next-1]
		if height+1 < rule.Height {
			return
		}
		needed := ceilDiv(rule.VoteThresholdPercent*uint64(len(c.votes)), 100)
		if c.votesFor(next) < needed {
			return
		}
		c.current = next
	}
}

func (c *HardForkCache) votesFor(v consensus.HFVersion) uint64 {
	var n uint64
	for _, vote := range c.votes {
		if vote >= v {
			n++
		}
	}
	return n
}

func ceilDiv(a, b uint64) uint64 {
	if b == 0 {
		return 0
	}
	return (a + b - 1) / b
}

// PopBlocks rewinds the vote window by n. Returns false if n exceeds the
// window's current contents, signalling a re-seed from storage is
// required; the current version itself cannot be un-promoted from cache
// state alone, so callers handling a false return must also re-derive
// `current` from the popped-to height via storage.
func (c *HardForkCache) PopBlocks(n int) bool {
	if n > len(c.votes) {
		return false
	}
	c.votes = c.votes[:len(c.votes)-n]
	return true
}

func (c *HardForkCache) Clone() *HardForkCache {
	return &HardForkCache{
		network: c.network,
		current: c.current,
		votes:   append([]consensus.HFVersion(nil), c.votes...),
		window:  c.window,
	}
}

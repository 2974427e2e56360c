package context

import (
	"git.gammaspectra.live/P2Pool/monero-node-core/consensus"
	ctypes "git.gammaspectra.live/P2Pool/monero-node-core/types"
)

// DifficultyCache is a ring of the last window+lag (timestamp,
// cumulative_difficulty) pairs (§3 Difficulty cache). It describes exactly
// the top N blocks of whatever chain it is attached to (§3 Invariants): a
// PushBlock/PopBlocks pair is required to be a no-op on the cache contents.
type DifficultyCache struct {
	samples []consensus.DifficultySample // oldest first
	window  int
}

func NewDifficultyCache() *DifficultyCache {
	return &DifficultyCache{window: consensus.DifficultyWindow + consensus.DifficultyLag}
}

// Seed rebuilds the cache from an ordered (oldest-first) slice of the chain
// tail, as read from storage during an AltContextCache rebuild or a
// PopBlocks overflow (§4.2 Failure semantics).
func (c *DifficultyCache) Seed(samples []consensus.DifficultySample) {
	if len(samples) > c.window {
		samples = samples[len(samples)-c.window:]
	}
	c.samples = append([]consensus.DifficultySample(nil), samples...)
}

// PushBlock advances the cache by exactly one block.
func (c *DifficultyCache) PushBlock(timestamp uint64, cumulativeDifficulty ctypes.Difficulty) {
	c.samples = append(c.samples, consensus.DifficultySample{Timestamp: timestamp, CumulativeDifficulty: cumulativeDifficulty})
	if len(c.samples) > c.window {
		c.samples = c.samples[len(c.samples)-c.window:]
	}
}

// PopBlocks rewinds the cache by n blocks. Returns false if n exceeds what
// the cache currently holds, signalling the caller must re-seed from
// storage instead (§4.2 PopBlocks).
func (c *DifficultyCache) PopBlocks(n int) bool {
	if n > len(c.samples) {
		return false
	}
	c.samples = c.samples[:len(c.samples)-n]
	return true
}

// NextDifficulty computes the next block's required difficulty from the
// cache's current contents (§4.1 Difficulty).
func (c *DifficultyCache) NextDifficulty(hf consensus.HFVersion) ctypes.Difficulty {
	return consensus.NextDifficulty(c.samples, hf)
}

// LastCumulativeDifficulty returns the cumulative difficulty of the top
// block described by the cache, or the zero value if the cache is empty
// (genesis has no predecessor).
func (c *DifficultyCache) LastCumulativeDifficulty() ctypes.Difficulty {
	if len(c.samples) == 0 {
		return ctypes.ZeroDifficulty
	}
	return c.samples[len(c.samples)-1].CumulativeDifficulty
}

// Len reports how many samples are currently held.
func (c *DifficultyCache) Len() int { return len(c.samples) }

// Clone returns a deep copy, used when deriving an alt-chain cache from the
// main chain's cache truncated at a common-ancestor height.
func (c *DifficultyCache) Clone() *DifficultyCache {
	return &DifficultyCache{samples: append([]consensus.DifficultySample(nil), c.samples...), window: c.window}
}

// TruncateAt keeps only the first count samples (cache indices 0..count-1),
// for deriving an alt-chain cache at a common-ancestor height that falls
// inside the current window (§4.2 AltContextCache).
func (c *DifficultyCache) TruncateAt(count int) {
	if count < len(c.samples) {
		c.samples = c.samples[:count]
	}
}

// MedianTimestampWindow is the number of trailing blocks the next block's
// timestamp is checked against (§4.2 Median timestamp).
const MedianTimestampWindow = 60

// MedianTimestamp returns the median of the last MedianTimestampWindow
// block timestamps, or nil if too few blocks exist for the check to apply
// (§8 Boundary behaviours). The reference implementation's one-block-early
// quirk is preserved: exactly one block short of a full window, a single
// zero timestamp is prepended rather than waiting for a 60th real sample.
func (c *DifficultyCache) MedianTimestamp() *uint64 {
	n := len(c.samples)
	window := MedianTimestampWindow

	if n+1 == window {
		timestamps := make([]uint64, 0, window)
		timestamps = append(timestamps, 0)
		for _, s := range c.samples {
			timestamps = append(timestamps, s.Timestamp)
		}
		med := consensus.MedianUint64(timestamps)
		return &med
	}
	if n < window {
		return nil
	}
	tail := c.samples[n-window:]
	timestamps := make([]uint64, len(tail))
	for i, s := range tail {
		timestamps[i] = s.Timestamp
	}
	med := consensus.MedianUint64(timestamps)
	return &med
}

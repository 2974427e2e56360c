package context

import (
	"git.gammaspectra.live/P2Pool/monero-node-core/consensus"
)

// WeightCache holds the last 100 long-term weights' short-term companion
// window plus the last 100000 long-term weights (§3 Weight cache).
type WeightCache struct {
	shortTerm []uint64 // ring of last ShortTermWeightWindow block weights
	longTerm  []uint64 // ring of last LongTermWeightWindow long-term weights
}

func NewWeightCache() *WeightCache {
	return &WeightCache{}
}

func (c *WeightCache) Seed(shortTerm, longTerm []uint64) {
	c.shortTerm = clip(shortTerm, consensus.ShortTermWeightWindow)
	c.longTerm = clip(longTerm, consensus.LongTermWeightWindow)
}

func clip(v []uint64, window int) []uint64 {
	if len(v) > window {
		v = v[len(v)-window:]
	}
	return append([]uint64(nil), v...)
}

func (c *WeightCache) PushBlock(weight, longTermWeight uint64) {
	c.shortTerm = append(c.shortTerm, weight)
	if len(c.shortTerm) > consensus.ShortTermWeightWindow {
		c.shortTerm = c.shortTerm[len(c.shortTerm)-consensus.ShortTermWeightWindow:]
	}
	c.longTerm = append(c.longTerm, longTermWeight)
	if len(c.longTerm) > consensus.LongTermWeightWindow {
		c.longTerm = c.longTerm[len(c.longTerm)-consensus.LongTermWeightWindow:]
	}
}

// PopBlocks rewinds both rings by n. Returns false if n exceeds the
// long-term ring, in which case the caller must re-seed from storage.
func (c *WeightCache) PopBlocks(n int) bool {
	if n > len(c.longTerm) {
		return false
	}
	c.longTerm = c.longTerm[:len(c.longTerm)-n]
	if n <= len(c.shortTerm) {
		c.shortTerm = c.shortTerm[:len(c.shortTerm)-n]
	} else {
		c.shortTerm = nil
	}
	return true
}

// MedianWeightForBlockReward is §4.1's penalty-free-zone-floored median of
// the short-term window.
func (c *WeightCache) MedianWeightForBlockReward() uint64 {
	return consensus.MedianWeightForBlockReward(c.shortTerm)
}

// NextLongTermWeight implements §4.2's "Next block long-term weight".
func (c *WeightCache) NextLongTermWeight(hf consensus.HFVersion, blockWeight uint64) uint64 {
	return consensus.NextLongTermWeight(hf, blockWeight, c.longTerm)
}

// EffectiveMedianWeight is the median used for the block-size sanity bound
// (§4.1 Block: Size sanity); equal to the reward-weight median floored the
// same way.
func (c *WeightCache) EffectiveMedianWeight() uint64 {
	return consensus.MedianWeightForBlockReward(c.shortTerm)
}

func (c *WeightCache) Clone() *WeightCache {
	return &WeightCache{
		shortTerm: append([]uint64(nil), c.shortTerm...),
		longTerm:  append([]uint64(nil), c.longTerm...),
	}
}

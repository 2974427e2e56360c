package context

import (
	"testing"

	"github.com/stretchr/testify/require"

	"git.gammaspectra.live/P2Pool/monero-node-core/consensus"
	ctypes "git.gammaspectra.live/P2Pool/monero-node-core/types"
)

// fakeVM is the test double for RandomXVM: the compute/hashing side is the
// cryptographic-primitives collaborator's job, not this cache's.
type fakeVM struct {
	seed   ctypes.Hash
	closed bool
}

func (v *fakeVM) SeedHash() ctypes.Hash { return v.seed }
func (v *fakeVM) Close()                { v.closed = true }

func TestDifficultyCachePushPopIsNoop(t *testing.T) {
	c := NewDifficultyCache()
	for i := uint64(1); i <= 5; i++ {
		c.PushBlock(i*10, ctypes.DifficultyFromUint64(i))
	}
	require.Equal(t, 5, c.Len())
	last := c.LastCumulativeDifficulty()

	require.True(t, c.PopBlocks(2))
	require.Equal(t, 3, c.Len())

	c.PushBlock(40, ctypes.DifficultyFromUint64(4))
	c.PushBlock(50, ctypes.DifficultyFromUint64(5))
	require.Equal(t, 5, c.Len())
	require.True(t, last.Equals(c.LastCumulativeDifficulty()))
}

func TestDifficultyCachePopBeyondContentsFails(t *testing.T) {
	c := NewDifficultyCache()
	c.PushBlock(1, ctypes.DifficultyFromUint64(1))
	require.False(t, c.PopBlocks(5))
	require.Equal(t, 1, c.Len())
}

func TestDifficultyCacheMedianTimestampBoundary(t *testing.T) {
	c := NewDifficultyCache()
	require.Nil(t, c.MedianTimestamp(), "fewer than window-1 samples: no median yet")

	for i := uint64(1); i < MedianTimestampWindow; i++ {
		c.PushBlock(i, ctypes.ZeroDifficulty)
	}
	require.Equal(t, MedianTimestampWindow-1, c.Len())
	med := c.MedianTimestamp()
	require.NotNil(t, med, "one short of a full window: a zero timestamp is prepended rather than waiting")

	c.PushBlock(MedianTimestampWindow, ctypes.ZeroDifficulty)
	require.NotNil(t, c.MedianTimestamp())
}

func TestWeightCachePushPopAndMedian(t *testing.T) {
	c := NewWeightCache()
	for i := uint64(1); i <= 10; i++ {
		c.PushBlock(i*1000, i*1000)
	}
	med := c.MedianWeightForBlockReward()
	require.Greater(t, med, uint64(0))

	require.True(t, c.PopBlocks(3))
	require.False(t, c.PopBlocks(1000), "popping past the long-term ring must fail, not underflow")
}

func TestHardForkCacheSeedAndPopBoundary(t *testing.T) {
	c := NewHardForkCache(consensus.Mainnet, 10)
	c.Seed(consensus.HFVersion1, []consensus.HFVersion{1, 1, 1})
	require.Equal(t, consensus.HFVersion1, c.Current())

	// Height is far below V2's mainnet activation height, so the vote tally
	// accumulates but the version cannot promote.
	c.PushBlock(100, consensus.HFVersion1)
	require.Equal(t, consensus.HFVersion1, c.Current())

	require.False(t, c.PopBlocks(100), "popping past the vote window must fail")
	require.True(t, c.PopBlocks(1))
}

func TestMainContextSeedNewBlockAndPopRoundTrip(t *testing.T) {
	mc := NewMainContext(consensus.Mainnet)
	mc.Seed(ChainTail{
		Height:            0,
		DifficultySamples: nil,
		ShortTermWeights:  nil,
		LongTermWeights:   nil,
		HardForkCurrent:   consensus.HFVersion1,
		HardForkVotes:     nil,
	})

	info := &ctypes.VerifiedBlockInformation{
		Block:                ctypes.Block{Header: ctypes.BlockHeader{MinorVersion: 1, Timestamp: 1000}},
		Weight:               300,
		LongTermWeight:       300,
		CumulativeDifficulty: ctypes.DifficultyFromUint64(7),
	}
	mc.NewBlock(info, 0)

	snap, ok := mc.Context(ctypes.Main)
	require.True(t, ok)
	require.Equal(t, consensus.HFVersion1, snap.HardForkVersion)
	require.True(t, snap.Difficulty.LastCumulativeDifficulty().Equals64(7))

	reseeded := false
	err := mc.PopBlocks(1, func() (ChainTail, error) {
		reseeded = true
		return ChainTail{Height: 0, HardForkCurrent: consensus.HFVersion1}, nil
	})
	require.NoError(t, err)
	require.False(t, reseeded, "a single pop from a freshly-pushed block must satisfy from cache alone")

	snap, ok = mc.Context(ctypes.Main)
	require.True(t, ok)
	require.Equal(t, 0, snap.Difficulty.Len())
}

func TestMainContextRxVMCachedAcrossSameSeedHeight(t *testing.T) {
	mc := NewMainContext(consensus.Mainnet)

	builds := 0
	build := func(seed ctypes.Hash) (RandomXVM, error) {
		builds++
		return &fakeVM{seed: seed}, nil
	}

	height := consensus.RandomXSeedHeight(100) + 1
	vm1, err := mc.RxVM(height, ctypes.Hash{0xaa}, build)
	require.NoError(t, err)
	vm2, err := mc.RxVM(height, ctypes.Hash{0xaa}, build)
	require.NoError(t, err)
	require.Same(t, vm1, vm2)
	require.Equal(t, 1, builds, "second call for the same seed height must hit the cache")
}

package consensus

import (
	"testing"

	"github.com/stretchr/testify/require"

	ctypes "git.gammaspectra.live/P2Pool/monero-node-core/types"
)

func TestRandomXSeedHeightBoundaries(t *testing.T) {
	require.EqualValues(t, 0, RandomXSeedHeight(2112))
	require.EqualValues(t, 2048, RandomXSeedHeight(2113))
	require.True(t, IsRandomXSeedHeight(0))
	require.True(t, IsRandomXSeedHeight(2048))
	require.False(t, IsRandomXSeedHeight(2049))
}

func TestNextDifficultyFewSamples(t *testing.T) {
	require.True(t, NextDifficulty(nil, HFVersion1).Equals64(1))
	one := []DifficultySample{{Timestamp: 100, CumulativeDifficulty: ctypes.DifficultyFromUint64(5)}}
	require.True(t, NextDifficulty(one, HFVersion1).Equals64(1))
}

func TestFromVoteDefaultsAndSaturates(t *testing.T) {
	require.Equal(t, HFVersion1, FromVote(0))
	require.Equal(t, HFVersion16, FromVote(255))
	require.Equal(t, HFVersion5, FromVote(5))
}

func TestCheckBlockVersionVote(t *testing.T) {
	require.NoError(t, CheckBlockVersionVote(HFVersion11, HFVersion11, HFVersion12))
	require.Error(t, CheckBlockVersionVote(HFVersion11, HFVersion10, HFVersion12))
	require.Error(t, CheckBlockVersionVote(HFVersion11, HFVersion11, HFVersion10))
}

func TestDecoyMinimumTable(t *testing.T) {
	cases := map[HFVersion]int{
		HFVersion2: 2, HFVersion5: 2, HFVersion6: 4, HFVersion7: 6,
		HFVersion8: 10, HFVersion14: 10, HFVersion15: 15, HFVersion16: 15,
	}
	for hf, want := range cases {
		require.Equal(t, want, DecoyMinimum(hf), "hf=%d", hf)
	}
}

func TestMedianUint64EvenLowerMiddle(t *testing.T) {
	require.EqualValues(t, 2, MedianUint64([]uint64{1, 2, 3, 4}))
	require.EqualValues(t, 3, MedianUint64([]uint64{1, 2, 3, 4, 5}))
}

func TestIsDecomposedAmount(t *testing.T) {
	require.True(t, isDecomposedAmount(0))
	require.True(t, isDecomposedAmount(5000))
	require.True(t, isDecomposedAmount(900000000))
	require.False(t, isDecomposedAmount(1234))
}

func TestCheckPowOverflow(t *testing.T) {
	var maxHash ctypes.Hash
	for i := range maxHash {
		maxHash[i] = 0xff
	}
	require.False(t, CheckPow(maxHash, ctypes.DifficultyFromUint64(2)))
	var zeroHash ctypes.Hash
	require.True(t, CheckPow(zeroHash, ctypes.DifficultyFromUint64(1<<62)))
}

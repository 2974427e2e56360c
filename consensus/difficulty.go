package consensus

import (
	"sort"

	ctypes "git.gammaspectra.live/P2Pool/monero-node-core/types"
)

// Difficulty window parameters (§6 Consensus hard-coded constants).
const (
	DifficultyWindow = 720
	DifficultyCut    = 60
	DifficultyLag    = 15
)

// DifficultySample is one (timestamp, cumulative_difficulty) pair from the
// tail of a chain, as kept by the context engine's difficulty cache.
type DifficultySample struct {
	Timestamp            uint64
	CumulativeDifficulty ctypes.Difficulty
}

// NextDifficulty implements §4.1's difficulty algorithm: given the most
// recent `window+lag` samples (oldest first), drop the last `lag`, select
// the timestamps at ranks `cut` and `window-cut-1` by value, and derive
// work-per-second scaled to the hard fork's target block time.
//
// With fewer than 2 usable samples the result is exactly 1 (§8 Boundary
// behaviours).
func NextDifficulty(samples []DifficultySample, hf HFVersion) ctypes.Difficulty {
	target := TargetBlockTime(hf)

	usable := samples
	if len(usable) > DifficultyLag {
		usable = usable[:len(usable)-DifficultyLag]
	} else {
		usable = nil
	}

	if len(usable) < 2 {
		return ctypes.DifficultyFromUint64(1)
	}

	cut := DifficultyCut
	if cut*2 >= len(usable) {
		// Degenerate window (fewer samples than 2*cut): fall back to using
		// every sample as both ends, rather than an empty selection.
		cut = 0
	}

	timestamps := make([]uint64, len(usable))
	for i, s := range usable {
		timestamps[i] = s.Timestamp
	}
	sorted := append([]uint64(nil), timestamps...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	loRank := cut
	hiRank := len(sorted) - cut - 1
	if hiRank <= loRank {
		loRank, hiRank = 0, len(sorted)-1
	}
	tsLo := sorted[loRank]
	tsHi := sorted[hiRank]

	timeSpan := uint64(1)
	if tsHi > tsLo {
		timeSpan = tsHi - tsLo
	}

	// Work is read at the fixed chronological positions loRank/hiRank of
	// usable itself, not at the original index of whichever sample sorts to
	// that rank: the reference implementation only reorders a throwaway
	// timestamp copy to find tsLo/tsHi, and always indexes
	// cumulative_difficulties positionally.
	work := usable[hiRank].CumulativeDifficulty.Sub(usable[loRank].CumulativeDifficulty)

	numerator := work.Mul64(target)
	result := numerator.Div64(timeSpan)
	if !numerator.Mod64(timeSpan).IsZero() {
		result = result.Add64(1)
	}
	if result.IsZero() {
		result = result.Add64(1)
	}
	return result
}

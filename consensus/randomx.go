package consensus

import (
	"git.gammaspectra.live/P2Pool/consensus/v4/monero/randomx"
)

// RandomX epoch parameters, re-exported from the primitives library so the
// seed-height algorithm below stays numerically identical to the reference
// implementation without duplicating the constants (§6).
const (
	RandomXSeedEpochBlocks = uint64(randomx.SeedHashEpochBlocks)
	RandomXSeedEpochLag    = uint64(randomx.SeedHashEpochLag)
)

// RandomXSeedHeight returns the height whose block hash seeds the RandomX
// VM used to verify PoW for the block at height h (§4.1 PoW selection).
//
// h <= 2048+64 returns 0 (the genesis seed); otherwise the result is the
// largest multiple of 2048 not within `lag` blocks of h.
func RandomXSeedHeight(h uint64) uint64 {
	if h <= RandomXSeedEpochBlocks+RandomXSeedEpochLag {
		return 0
	}
	return (h - RandomXSeedEpochLag - 1) &^ (RandomXSeedEpochBlocks - 1)
}

// IsRandomXSeedHeight reports whether h is itself a seed height, i.e. a
// multiple of the epoch length.
func IsRandomXSeedHeight(h uint64) bool {
	return h%RandomXSeedEpochBlocks == 0
}

// RX_SEEDS_CACHED is the number of main-chain RandomX VMs the context
// engine keeps resident at once (§3 RandomX VM cache).
const RxSeedsCached = 2

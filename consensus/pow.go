package consensus

import (
	ctypes "git.gammaspectra.live/P2Pool/monero-node-core/types"
)

// PowAlgorithm identifies which external hashing routine produces a block's
// PoW hash. Actual hash computation is delegated to the compute pool and
// the cryptographic primitives collaborator (§1); this core only selects
// which one applies and, for RandomX, which seed it requires.
type PowAlgorithm uint8

const (
	PowCryptoNightV0 PowAlgorithm = iota
	PowCryptoNightV1
	PowCryptoNightV2
	PowCryptoNightR
	PowRandomX
)

// specialCaseHeight and specialCaseHash implement the one hard-coded PoW
// exception in Monero's history: block 202612's hash was accepted by the
// reference client regardless of what its bytes would hash to (§4.1 PoW
// selection, §6, §8 Boundary behaviours).
const specialCaseHeight = 202612

var specialCaseHash = ctypes.Hash{
	0x84, 0xf6, 0x4c, 0x44, 0x46, 0x7a, 0xf5, 0x95,
	0x73, 0x48, 0x86, 0x18, 0x9b, 0x15, 0x7b, 0xa6,
	0xf2, 0xb9, 0x6b, 0x5d, 0x4a, 0xff, 0x9d, 0xe1,
	0x35, 0xb1, 0xb2, 0x1c, 0x00, 0x00, 0x00, 0x00,
}

// SelectAlgorithm returns which PoW algorithm applies to a block of the
// given hard-fork version (§4.1 PoW selection). CryptoNight-R and RandomX
// additionally need the block height (RandomX via its seed height), which
// the caller supplies to the hasher separately.
func SelectAlgorithm(v HFVersion) PowAlgorithm {
	switch {
	case v <= HFVersion6:
		return PowCryptoNightV0
	case v == HFVersion7:
		return PowCryptoNightV1
	case v == HFVersion8, v == HFVersion9:
		return PowCryptoNightV2
	case v == HFVersion10, v == HFVersion11:
		return PowCryptoNightR
	default: // V12+
		return PowRandomX
	}
}

// PowHashForHeight returns the special-cased hash for height, and true, if
// height is the one hard-coded exception; otherwise (false, zero) and the
// caller must compute the hash normally via SelectAlgorithm.
func PowHashForHeight(height uint64) (ctypes.Hash, bool) {
	if height == specialCaseHeight {
		return specialCaseHash, true
	}
	return ctypes.Hash{}, false
}

// CheckPow validates a block's (already computed) PoW hash against the
// target difficulty: interpret the 32-byte hash as a little-endian 256-bit
// integer h and require h*difficulty to not overflow 256 bits (§4.1 Block:
// PoW, §4.4 step 8).
func CheckPow(hash ctypes.Hash, difficulty ctypes.Difficulty) bool {
	return !ctypes.Overflows256(hash, difficulty)
}

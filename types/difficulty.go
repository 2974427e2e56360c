package types

import (
	"math/big"

	"lukechampine.com/uint128"
)

// Difficulty is a 128-bit unsigned block difficulty or cumulative difficulty
// value. Monero's cumulative difficulty is a running sum from genesis and
// must strictly increase along any chain (§3 Invariants).
type Difficulty = uint128.Uint128

// ZeroDifficulty is the additive identity.
var ZeroDifficulty = uint128.Zero

// AddDifficulty returns a+b, used when extending cumulative difficulty by
// one block's worth of work.
func AddDifficulty(a, b Difficulty) Difficulty {
	return a.Add(b)
}

// SubDifficulty returns a-b. Callers must ensure a >= b; this is used only
// when computing the work delta between two ranked difficulty-window
// samples, which is always non-negative by construction (§4.1 Difficulty).
func SubDifficulty(a, b Difficulty) Difficulty {
	return a.Sub(b)
}

// DifficultyFromUint64 lifts a plain 64-bit value into the 128-bit
// difficulty domain.
func DifficultyFromUint64(v uint64) Difficulty {
	return uint128.From64(v)
}

// Overflows256 reports whether hash*difficulty overflows 256 bits, where
// hash is interpreted as a little-endian 256-bit unsigned integer (§4.1
// Block: PoW). difficulty here is widened from the 128-bit cache type to a
// plain big.Int for the one multiply that genuinely needs more than 128
// bits of headroom.
func Overflows256(hash [32]byte, difficulty Difficulty) bool {
	h := new(big.Int).SetBytes(reverseBytes(hash[:]))
	d := new(big.Int).SetUint64(difficulty.Hi)
	d.Lsh(d, 64)
	d.Or(d, new(big.Int).SetUint64(difficulty.Lo))
	product := new(big.Int).Mul(h, d)
	return product.BitLen() > 256
}

func reverseBytes(b []byte) []byte {
	out := make([]byte, len(b))
	for i, v := range b {
		out[len(b)-1-i] = v
	}
	return out
}

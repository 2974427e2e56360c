package consensus

import (
	"time"

	"git.gammaspectra.live/P2Pool/monero-node-core/errs"
	ctypes "git.gammaspectra.live/P2Pool/monero-node-core/types"
)

// FutureTimeLimit is how far into the future (from "now") a block's
// timestamp may be and still be accepted (§6).
const FutureTimeLimit = 2 * time.Hour

// MaxTxCount bounds the number of transactions (including the miner tx) a
// single block may reference (§4.1 Block).
const MaxTxCount = 1 << 28

// BlockContext is the subset of a Context snapshot (§4.2) the structural
// and weight checks below need; kept narrow so C1 stays free of any
// dependency on the context engine's concrete type.
type BlockContext struct {
	TopHash                ctypes.Hash
	MedianBlockTimestamp    *uint64 // nil when fewer than 59 blocks exist (see context.DifficultyCache.MedianTimestamp)
	MedianWeightForReward   ctypes.Weight
	EffectiveMedianWeight   ctypes.Weight
	Now                     time.Time
}

// CheckBlockStructure validates the purely structural invariants of §4.1
// Block: previous-id linkage, tx-count bound and tx-hash uniqueness. It does
// not check the timestamp (see CheckBlockTimestamp) or weight (see
// CheckBlockWeight), which have their own entry points because the verifier
// evaluates them against slightly different inputs.
func CheckBlockStructure(b ctypes.Block, ctx BlockContext) error {
	if b.Header.Previous != ctx.TopHash {
		return errs.Consensusf("PrevIdMismatch", "block previous %x != chain top %x", b.Header.Previous, ctx.TopHash)
	}
	if uint64(len(b.TxHashes))+1 > MaxTxCount {
		return errs.Consensusf("TooManyTxs", "block references %d txs, max %d", len(b.TxHashes)+1, MaxTxCount)
	}
	seen := make(map[ctypes.Hash]struct{}, len(b.TxHashes))
	for _, h := range b.TxHashes {
		if _, dup := seen[h]; dup {
			return errs.Consensusf("DuplicateTxHash", "tx hash %x appears twice in block", h)
		}
		seen[h] = struct{}{}
	}
	return nil
}

// CheckBlockTimestamp enforces the median-of-60 lower bound (once at least
// 60 blocks exist) and the future-time upper bound (§4.1 Block).
func CheckBlockTimestamp(b ctypes.Block, ctx BlockContext) error {
	if ctx.MedianBlockTimestamp != nil && b.Header.Timestamp < *ctx.MedianBlockTimestamp {
		return errs.Consensusf("TimestampTooOld", "timestamp %d below median %d", b.Header.Timestamp, *ctx.MedianBlockTimestamp)
	}
	limit := ctx.Now.Add(FutureTimeLimit).Unix()
	if int64(b.Header.Timestamp) > limit {
		return errs.Consensusf("TimestampTooFarInFuture", "timestamp %d exceeds now+2h (%d)", b.Header.Timestamp, limit)
	}
	return nil
}

// CheckBlockWeight enforces the §4.1 weight and size-sanity bounds:
// block_weight <= 2*median_weight_for_block_reward, and
// blob_len <= 2*effective_median_weight + 100.
func CheckBlockWeight(blockWeight ctypes.Weight, blobLen uint64, ctx BlockContext) error {
	if blockWeight > 2*ctx.MedianWeightForReward {
		return errs.Consensusf("BlockWeightTooHigh", "block weight %d exceeds 2x median reward weight %d", blockWeight, ctx.MedianWeightForReward)
	}
	limit := 2*ctx.EffectiveMedianWeight + 100
	if blobLen > limit {
		return errs.Consensusf("BlockSizeTooHigh", "blob length %d exceeds 2x effective median + 100 (%d)", blobLen, limit)
	}
	return nil
}

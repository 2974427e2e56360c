package types

import "time"

// BlockHeader is the fixed portion of a block: versions, timestamp, nonce
// and the link to the previous block. Immutable after construction.
type BlockHeader struct {
	MajorVersion uint8
	MinorVersion uint8 // the "vote" for the next hard-fork version
	Timestamp    uint64
	Nonce        uint32
	Previous     Hash
}

// Time returns the header timestamp as a time.Time for comparisons against
// wall-clock bounds (the 2h future-time limit, §6).
func (h BlockHeader) Time() time.Time {
	return time.Unix(int64(h.Timestamp), 0).UTC()
}

// Block is a header, a miner (coinbase) transaction, and the ordered list of
// non-miner transaction hashes it references. Immutable after construction;
// the transactions themselves are looked up separately by hash.
type Block struct {
	Header   BlockHeader
	MinerTx  Transaction
	TxHashes []Hash
}

// BlockId is the block's identifying hash. Computation of the hash itself
// (tree hash over header+miner-tx+tx-hash-merkle-root) is delegated to the
// external block serializer (§1 Deliberately excluded); the core treats the
// result as an opaque Hash supplied alongside the block by the caller, or
// already known from a prior FindBlock/WriteBlock round-trip.
type BlockId = Hash

// Weight is a block's serialized weight in bytes, after accounting for the
// per-output "bulletproof discount" the reference implementation applies;
// the core receives it as already computed by the external parser/verifier
// boundary and only ever compares/aggregates it.
type Weight = uint64

// BlockInfo is the per-height summary record the storage engine persists
// and the context engine's caches are built from (§3 Data model).
type BlockInfo struct {
	Timestamp           uint64
	CumulativeGenerated Amount
	BlockWeight         Weight
	CumulativeDifficulty Difficulty
	BlockHash           Hash
	CumulativeRctOutputs uint64
	LongTermWeight      Weight
}

// Amount is a clear (non-RingCT) output or subsidy amount, in atomic units.
type Amount = uint64

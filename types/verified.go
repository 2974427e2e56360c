package types

// VerifiedBlockInformation is what the verifier (C4) hands to storage (C3)
// after a main-chain block passes every structural, contextual and PoW
// check (§4.4 step 9). It carries everything storage needs to append the
// block without recomputing anything the verifier already derived.
type VerifiedBlockInformation struct {
	Block               Block
	BlockHash           Hash
	MinerTxHash         Hash // identifying hash of Block.MinerTx, supplied by the external parser
	Txs                 []Transaction
	TxHashes            []Hash
	// Blobs holds the wire bytes storage persists: index 0 is the miner
	// transaction, indices 1..len(Txs) parallel Txs/TxHashes.
	Blobs               []TxBlob
	Weight              Weight
	LongTermWeight      Weight
	HardForkVersion     uint8
	GeneratedCoins      Amount
	CumulativeDifficulty Difficulty
	PowHash             Hash
}

// AltBlockInformation is the alt-chain counterpart: verified but not (yet)
// part of the main chain. The verifier also returns the alt chain's
// cumulative difficulty so the caller can decide whether a reorg is
// warranted (§4.4 Alt-chain block verification algorithm).
type AltBlockInformation struct {
	Block                Block
	BlockHash            Hash
	MinerTxHash          Hash
	Txs                  []Transaction
	TxHashes             []Hash
	Blobs                []TxBlob
	Weight               Weight
	LongTermWeight       Weight
	HardForkVersion      uint8
	CumulativeDifficulty Difficulty
	Chain                ChainId
	ParentChain          Chain
	Height               uint64
}

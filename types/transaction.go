package types

// TxVersion distinguishes the pre-RingCT (1) and RingCT (2) transaction
// formats (§3 Data model).
type TxVersion uint8

const (
	TxVersionOne TxVersion = 1
	TxVersionTwo TxVersion = 2
)

// TimeLockKind selects how AdditionalTimelock.Value is interpreted.
type TimeLockKind uint8

const (
	TimeLockNone TimeLockKind = iota
	TimeLockBlockHeight
	TimeLockUnixTime
)

// TimeLock restricts spending an output before a given height or time.
type TimeLock struct {
	Kind  TimeLockKind
	Value uint64
}

func (t TimeLock) IsLocked(currentHeight uint64, adjustedTime uint64) bool {
	switch t.Kind {
	case TimeLockNone:
		return false
	case TimeLockBlockHeight:
		return currentHeight < t.Value
	case TimeLockUnixTime:
		return adjustedTime < t.Value
	default:
		return true
	}
}

// InputKind distinguishes the miner "Gen" input from a real key-image input.
type InputKind uint8

const (
	InputGen InputKind = iota
	InputToKey
)

// Input is either a miner Gen(height) input or a ToKey ring-signature input.
// For ToKey inputs, KeyOffsets are stored relative (each entry is the delta
// from the previous absolute index, first entry absolute) exactly as on the
// wire; AbsoluteOffsets (§4.1 Transaction) converts them once.
type Input struct {
	Kind        InputKind
	GenHeight   uint64 // valid when Kind == InputGen
	Amount      Amount // pre-RCT ring amount; zero (by convention) for RCT inputs
	KeyOffsets  []uint64
	KeyImage    KeyImage
}

// AbsoluteOffsets converts the stored relative ring-member offsets to
// absolute amount_index values.
func (in Input) AbsoluteOffsets() []uint64 {
	out := make([]uint64, len(in.KeyOffsets))
	var acc uint64
	for i, rel := range in.KeyOffsets {
		acc += rel
		out[i] = acc
	}
	return out
}

// Output is a transaction output as it appears inside a transaction (before
// it is assigned a global position by the storage engine).
type Output struct {
	Amount    Amount // zero for RCT outputs
	PublicKey Hash
	ViewTag   *uint8 // present from the hard fork that introduced view tags
}

// RingCTSignatures is an opaque bundle of Pedersen commitments / range
// proofs / MLSAG-or-CLSAG data. Its cryptographic validity is checked by the
// external collaborator (§1); the core only needs the commitment list to
// resolve ring members and the per-output flag of whether it is present.
type RingCTSignatures struct {
	PseudoOuts  []Hash // per-input pseudo output commitments, version-dependent
	Commitments []Hash // per-output commitments, one per Output
}

// Transaction is the core's view of a parsed transaction.
type Transaction struct {
	Version            TxVersion
	AdditionalTimelock TimeLock
	Inputs             []Input
	Outputs            []Output
	Extra              []byte
	Rct                *RingCTSignatures // nil for TxVersionOne
	Fee                Amount
	Weight             Weight
	BlobLen            uint64
}

// TxId is the transaction's identifying hash, supplied by the external parser
// alongside the parsed transaction (see BlockId for the same convention).
type TxId = Hash

// TxBlob is a transaction's wire bytes split the way the reference
// implementation splits them for pruning: the part every node keeps
// (everything but ring signatures) and the prunable part (signatures),
// stored separately so a pruned node can discard the latter (§4.3
// PrunedBlobs / PrunableBlobs tables).
type TxBlob struct {
	Pruned   []byte
	Prunable []byte
}

// TxInfo is what storage keeps per transaction, independent of the blob
// bytes themselves (§4.3 Tables, `TxInfos`).
type TxInfo struct {
	Height              uint64
	PrunedOffset        uint64
	PrunedSize          uint64
	PrunableOffset      uint64
	PrunableSize        uint64
	RctOutputStartIndex uint64
	NumRctOutputs       uint64
}

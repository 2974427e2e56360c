package types

// OutputFlags records per-output bits the storage engine keeps alongside
// the output body (e.g. unlock-time presence).
type OutputFlags uint8

const (
	OutputFlagNone        OutputFlags = 0
	OutputFlagNonZeroTime OutputFlags = 1 << iota
)

// OutputId identifies a pre-RCT output: the pair (amount, amount_index).
// AmountIndex is unique within one Amount but recurs across different
// amounts; the pair as a whole is the lookup key (§3).
type OutputId struct {
	Amount      Amount
	AmountIndex uint64
}

// PreRCTOutput is a pre-RCT output record as stored (distinct from the
// transaction-embedded types.Output in transaction.go, which lacks
// position/owner info).
type PreRCTOutput struct {
	PublicKey Hash
	Height    uint64
	Timelock  TimeLock
	TxId      TxId
	Flags     OutputFlags
}

// RctOutput is an output whose sole identifier is its global RCT index
// (amount is definitionally zero for RCT outputs).
type RctOutput struct {
	PublicKey  Hash
	Commitment Hash
	Height     uint64
	Timelock   TimeLock
	TxId       TxId
}

// RctOutputIndex is the monotonically assigned global position of an RCT
// output. Never reused, even after a pop (§3 Invariants).
type RctOutputIndex = uint64

// Package verifier implements the block/tx verifier (C4): statically
// checks block and transaction invariants, then checks them contextually
// against the context engine (C2) and storage (C3), combining C1's pure
// rules with both (§4.4).
package verifier

import (
	"git.gammaspectra.live/P2Pool/monero-node-core/consensus"
	chainctx "git.gammaspectra.live/P2Pool/monero-node-core/context"
	ctypes "git.gammaspectra.live/P2Pool/monero-node-core/types"
)

// PowHasher computes a block's proof-of-work hash for the selected
// algorithm. Hash computation itself (RandomX, CryptoNight) is an opaque
// cryptographic primitive (§1); the verifier only selects the algorithm and
// seed and calls into this collaborator on the compute pool.
type PowHasher interface {
	Hash(algo consensus.PowAlgorithm, block ctypes.Block, vm chainctx.RandomXVM) (ctypes.Hash, error)
}

// VMBuilder constructs a RandomX VM for the given seed hash. Construction is
// expensive (tens of MB, ~1s) and always runs on the compute pool (§5
// Shared resources).
type VMBuilder func(seedHash ctypes.Hash) (chainctx.RandomXVM, error)

// RingMember is one resolved ring-signature candidate for a ToKey input,
// either a pre-RCT output or an RCT output depending on the spending
// transaction's version.
type RingMember struct {
	PreRCT *ctypes.PreRCTOutput
	Rct    *ctypes.RctOutput
}

// SignatureVerifier checks the curve-level cryptographic soundness of a
// transaction's ring signatures or RingCT proof against its resolved ring
// members. Curve operations are an external collaborator (§1); this core
// only orchestrates resolving ring members and calling into the check, once
// per transaction with all of its inputs' rings, transactions in parallel on
// the compute pool.
type SignatureVerifier interface {
	VerifyRingSignatures(tx ctypes.Transaction, rings [][]RingMember) error
}

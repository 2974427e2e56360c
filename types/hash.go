// Package types holds the consensus-core data model described in the
// specification: blocks, transactions, outputs, key images and the
// bookkeeping records the storage and context engines persist about them.
//
// Cryptographic primitives (curve points, RandomX, CryptoNight) are treated
// as an external collaborator: this package borrows the 32-byte identifier
// type from the monero consensus primitives library rather than redefining
// its own, since a block hash, a transaction hash, a key image and an output
// public key are all, from this core's point of view, opaque 32-byte values.
package types

import (
	monerotypes "git.gammaspectra.live/P2Pool/consensus/v4/types"
)

// Hash is the common 32-byte identifier type shared by block hashes,
// transaction hashes, key images, output public keys and commitments.
type Hash = monerotypes.Hash

// ZeroHash is the all-zero identifier, used as the "no value" sentinel
// (e.g. the previous-id of the genesis block, or an un-set chain pointer).
var ZeroHash = monerotypes.ZeroHash

// HashSize is the width in bytes of Hash.
const HashSize = monerotypes.HashSize

// KeyImage is a 32-byte curve point uniquely identifying a spent output.
// Membership in the spent set, not count, is what the storage engine tracks.
type KeyImage = Hash

package storage

import (
	"encoding/binary"

	ctypes "git.gammaspectra.live/P2Pool/monero-node-core/types"
)

// Key encoding for the logical tables of §4.3, following the teacher's
// big-endian height-prefixed scheme (headerKey/headerHashKey in
// db_manager.go) so range scans over heights stay in ascending key order.

func encodeHeight(h uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, h)
	return b
}

func decodeHeight(b []byte) uint64 {
	return binary.BigEndian.Uint64(b)
}

func blockInfoKey(height uint64) []byte   { return encodeHeight(height) }
func blockHeaderKey(height uint64) []byte { return encodeHeight(height) }
func blockTxHashesKey(height uint64) []byte { return encodeHeight(height) }

func blockHeightKey(hash ctypes.Hash) []byte { return hash[:] }

func txIdKey(hash ctypes.Hash) []byte { return hash[:] }

func txInfoKey(txID uint64) []byte { return encodeHeight(txID) }

// outputKey encodes (amount, amount_index) for the Outputs table.
func outputKey(amount ctypes.Amount, index uint64) []byte {
	b := make([]byte, 16)
	binary.BigEndian.PutUint64(b[:8], amount)
	binary.BigEndian.PutUint64(b[8:], index)
	return b
}

func rctOutputKey(globalIndex uint64) []byte { return encodeHeight(globalIndex) }

func numOutputsKey(amount ctypes.Amount) []byte { return encodeHeight(amount) }

func keyImageKey(ki ctypes.KeyImage) []byte { return ki[:] }

func altBlockHeightKey(hash ctypes.Hash) []byte { return hash[:] }

// altBlockInfoKey encodes (chain_id, height) for AltBlocksInfo/AltBlockBlobs/
// AltBlockTxBlobs.
func altBlockInfoKey(chain ctypes.ChainId, height uint64) []byte {
	b := make([]byte, 16+8)
	copy(b, chain[:])
	binary.BigEndian.PutUint64(b[16:], height)
	return b
}

func altChainInfoKey(chain ctypes.ChainId) []byte { return chain[:] }

// altChainPrefix is the common prefix of every (chain_id, height) key for
// chain, used to range-scan all of a fork's blocks in height order.
func altChainPrefix(chain ctypes.ChainId) []byte { return chain[:] }

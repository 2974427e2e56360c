package storage

import (
	"sort"

	"git.gammaspectra.live/P2Pool/monero-node-core/consensus"
	"git.gammaspectra.live/P2Pool/monero-node-core/errs"
	ctypes "git.gammaspectra.live/P2Pool/monero-node-core/types"
)

// Read requests (§4.3). Every method here runs directly against the backend,
// under stateMu's read lock except TotalTxCount, which reads an atomic
// counter; none of them touch the write queue.

// stripPrefix removes the two-byte table prefix a table iterator's Key()
// still carries (database.table namespaces but does not hide it on Key()).
func stripPrefix(k []byte) []byte {
	return k[2:]
}

func (e *Engine) blockInfoAt(height uint64) (*ctypes.BlockInfo, error) {
	buf, err := e.blockInfos.Get(blockInfoKey(height))
	if err != nil {
		return nil, errs.NotFoundf("no block at height %d", height)
	}
	return decodeBlockInfo(buf), nil
}

// blockExtendedHeaderLocked returns the per-height summary record used both
// by loadState (to recover the tip's rolling counters on startup) and by the
// exported BlockExtendedHeader read request.
func (e *Engine) blockExtendedHeaderLocked(height uint64) (*ctypes.BlockInfo, error) {
	return e.blockInfoAt(height)
}

// BlockExtendedHeader returns the summary record for a main-chain height.
func (e *Engine) BlockExtendedHeader(height uint64) (*ctypes.BlockInfo, error) {
	e.stateMu.RLock()
	defer e.stateMu.RUnlock()
	return e.blockInfoAt(height)
}

// ChainHeight reports the main chain's current height (tip height + 1 tx
// count equivalent; here, simply the count of blocks).
func (e *Engine) ChainHeight() uint64 {
	e.stateMu.RLock()
	defer e.stateMu.RUnlock()
	if !e.hasGenesis {
		return 0
	}
	return e.tipHeight.Load() + 1
}

// TotalTxCount returns the number of transactions (including miner
// transactions) ever written to the main chain. totalTxCount is an
// atomic.Uint64 mutated only by the single writer goroutine, so readers
// load it without stateMu.
func (e *Engine) TotalTxCount() uint64 {
	return e.totalTxCount.Load()
}

// Block reconstructs the full block at height: header, miner transaction,
// and the ordered list of non-miner transaction hashes it references.
func (e *Engine) Block(height uint64) (ctypes.Block, error) {
	e.stateMu.RLock()
	defer e.stateMu.RUnlock()

	hdrBuf, err := e.blockHeaders.Get(blockHeaderKey(height))
	if err != nil {
		return ctypes.Block{}, errs.NotFoundf("no block at height %d", height)
	}
	header := decodeBlockHeader(hdrBuf[:blockHeaderSize])
	minerTxBuf, _ := takeBytes(hdrBuf, blockHeaderSize)
	minerTx := decodeTransaction(minerTxBuf)

	var txHashes []ctypes.Hash
	if buf, err := e.blockTxHashes.Get(blockTxHashesKey(height)); err == nil {
		txHashes = decodeHashList(buf)
	}

	return ctypes.Block{Header: header, MinerTx: minerTx, TxHashes: txHashes}, nil
}

// BlockHash returns the identifying hash of the block at height on chain.
func (e *Engine) BlockHash(height uint64, chain ctypes.Chain) (ctypes.Hash, error) {
	e.stateMu.RLock()
	defer e.stateMu.RUnlock()

	if chain.IsMain() {
		info, err := e.blockInfoAt(height)
		if err != nil {
			return ctypes.Hash{}, err
		}
		return info.BlockHash, nil
	}
	buf, err := e.altInfos.Get(altBlockInfoKey(chain.AltId, height))
	if err != nil {
		return ctypes.Hash{}, errs.NotFoundf("no alt block at height %d on chain %s", height, chain.AltId)
	}
	return decodeBlockInfo(buf).BlockHash, nil
}

// BlockByHash resolves hash to its height on the main chain (FindBlock
// narrowed to the common case of looking up a known main-chain block) and
// returns the reconstructed block.
func (e *Engine) BlockByHash(hash ctypes.Hash) (ctypes.Block, uint64, error) {
	e.stateMu.RLock()
	buf, err := e.blockHeights.Get(blockHeightKey(hash))
	e.stateMu.RUnlock()
	if err != nil {
		return ctypes.Block{}, 0, errs.NotFoundf("block hash %x not known", hash)
	}
	height := decodeHeight(buf)
	blk, err := e.Block(height)
	return blk, height, err
}

// FindBlock reports which chain (main or a specific alt) knows hash, and at
// what height, without materializing the block itself.
func (e *Engine) FindBlock(hash ctypes.Hash) (ctypes.Chain, uint64, error) {
	e.stateMu.RLock()
	defer e.stateMu.RUnlock()

	if buf, err := e.blockHeights.Get(blockHeightKey(hash)); err == nil {
		return ctypes.Main, decodeHeight(buf), nil
	}
	if buf, err := e.altHeights.Get(altBlockHeightKey(hash)); err == nil {
		chain, height := decodeAltBlockHeightRecord(buf)
		return ctypes.Alt(chain), height, nil
	}
	return ctypes.Chain{}, 0, errs.NotFoundf("block hash %x not known on any chain", hash)
}

// FilterUnknownHashes returns the subset of hashes this engine has not seen
// on any chain (main or alt), used to answer inventory/offer messages
// without re-requesting already-stored blocks or transactions.
func (e *Engine) FilterUnknownHashes(hashes []ctypes.Hash) []ctypes.Hash {
	e.stateMu.RLock()
	defer e.stateMu.RUnlock()

	out := make([]ctypes.Hash, 0, len(hashes))
	for _, h := range hashes {
		if _, err := e.blockHeights.Get(blockHeightKey(h)); err == nil {
			continue
		}
		if _, err := e.altHeights.Get(altBlockHeightKey(h)); err == nil {
			continue
		}
		if _, err := e.txIds.Get(txIdKey(h)); err == nil {
			continue
		}
		out = append(out, h)
	}
	return out
}

// GeneratedCoins returns the cumulative coin supply as of height.
func (e *Engine) GeneratedCoins(height uint64) (ctypes.Amount, error) {
	e.stateMu.RLock()
	defer e.stateMu.RUnlock()
	info, err := e.blockInfoAt(height)
	if err != nil {
		return 0, err
	}
	return info.CumulativeGenerated, nil
}

// BlockExtendedHeaderInRange serves AltChainStore: the per-block difficulty
// sample, weight, long-term weight and hard-fork vote for every height in
// [startHeight, startHeight+count) on chain, in ascending height order. Alt
// heights fall back to the matching main-chain height when chain is Main or
// the alt chain has not yet produced a block at that height (the common
// prefix shared with its parent).
func (e *Engine) BlockExtendedHeaderInRange(chain ctypes.Chain, startHeight, count uint64) ([]consensus.DifficultySample, []uint64, []uint64, []consensus.HFVersion, error) {
	e.stateMu.RLock()
	defer e.stateMu.RUnlock()

	samples := make([]consensus.DifficultySample, 0, count)
	weights := make([]uint64, 0, count)
	longTermWeights := make([]uint64, 0, count)
	versions := make([]consensus.HFVersion, 0, count)

	for h := startHeight; h < startHeight+count; h++ {
		var info *ctypes.BlockInfo
		var err error
		var hdr ctypes.BlockHeader

		if !chain.IsMain() {
			if buf, aerr := e.altInfos.Get(altBlockInfoKey(chain.AltId, h)); aerr == nil {
				info = decodeBlockInfo(buf)
				if hbuf, herr := e.altBlockBlobs.Get(altBlockInfoKey(chain.AltId, h)); herr == nil {
					hdr = decodeBlockHeader(hbuf[:blockHeaderSize])
				}
			}
		}
		if info == nil {
			info, err = e.blockInfoAt(h)
			if err != nil {
				return nil, nil, nil, nil, err
			}
			if hbuf, herr := e.blockHeaders.Get(blockHeaderKey(h)); herr == nil {
				hdr = decodeBlockHeader(hbuf[:blockHeaderSize])
			}
		}

		samples = append(samples, consensus.DifficultySample{
			Timestamp:            info.Timestamp,
			CumulativeDifficulty: info.CumulativeDifficulty,
		})
		weights = append(weights, info.BlockWeight)
		longTermWeights = append(longTermWeights, info.LongTermWeight)
		versions = append(versions, consensus.HFVersion(hdr.MinorVersion))
	}
	return samples, weights, longTermWeights, versions, nil
}

// CompactChainHistory returns block ids spaced by powers of two from the
// tip backwards (top, top-1, top-2, top-4, top-8, ...), the format peers
// exchange to agree on a common ancestor cheaply.
func (e *Engine) CompactChainHistory() ([]ctypes.Hash, error) {
	e.stateMu.RLock()
	defer e.stateMu.RUnlock()

	if !e.hasGenesis {
		return nil, nil
	}

	var out []ctypes.Hash
	step := uint64(1)
	h := e.tipHeight.Load()
	for {
		info, err := e.blockInfoAt(h)
		if err != nil {
			break
		}
		out = append(out, info.BlockHash)
		if h == 0 {
			break
		}
		if h < step {
			h = 0
		} else {
			h -= step
		}
		if len(out) > 1 {
			step *= 2
		}
	}
	return out, nil
}

// FindFirstUnknown binary-searches hashes (given oldest first, in ascending
// height order) for the first entry this engine does not recognize on the
// main chain, returning its index. Assumes the known entries of hashes (if
// any) form a contiguous prefix, which holds because hashes come from a
// single peer's chain view.
func (e *Engine) FindFirstUnknown(hashes []ctypes.Hash) (int, error) {
	e.stateMu.RLock()
	defer e.stateMu.RUnlock()

	known := func(i int) bool {
		_, err := e.blockHeights.Get(blockHeightKey(hashes[i]))
		return err == nil
	}

	if len(hashes) == 0 {
		return 0, nil
	}
	if !known(0) {
		return 0, nil
	}
	lo, hi := 0, len(hashes)-1
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if known(mid) {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	return lo + 1, nil
}

// AltBlocksInChain returns every alt block height belonging to chain, in
// ascending height order.
func (e *Engine) AltBlocksInChain(chain ctypes.ChainId) ([]uint64, error) {
	e.stateMu.RLock()
	defer e.stateMu.RUnlock()

	it := e.altInfos.NewIteratorWithPrefix(altChainPrefix(chain))
	defer it.Release()

	var heights []uint64
	for it.Next() {
		key := stripPrefix(it.Key())
		heights = append(heights, decodeHeight(key[16:24]))
	}
	sort.Slice(heights, func(i, j int) bool { return heights[i] < heights[j] })
	return heights, nil
}

// Outputs resolves a set of (amount, amount_index) pairs against the
// pre-RCT Outputs table only; RCT outputs are resolved by RctOutputs.
func (e *Engine) Outputs(amount ctypes.Amount, indices []uint64) ([]*ctypes.PreRCTOutput, error) {
	e.stateMu.RLock()
	defer e.stateMu.RUnlock()

	out := make([]*ctypes.PreRCTOutput, len(indices))
	for i, idx := range indices {
		buf, err := e.outputs.Get(outputKey(amount, idx))
		if err != nil {
			return nil, errs.NotFoundf("output (%d,%d) not found", amount, idx)
		}
		out[i] = decodePreRCTOutput(buf)
	}
	return out, nil
}

// RctOutputs resolves a set of global RCT indices.
func (e *Engine) RctOutputs(indices []uint64) ([]*ctypes.RctOutput, error) {
	e.stateMu.RLock()
	defer e.stateMu.RUnlock()

	out := make([]*ctypes.RctOutput, len(indices))
	for i, idx := range indices {
		buf, err := e.rctOutputs.Get(rctOutputKey(idx))
		if err != nil {
			return nil, errs.NotFoundf("rct output %d not found", idx)
		}
		out[i] = decodeRctOutput(buf)
	}
	return out, nil
}

// NumberOutputsWithAmount returns, for each requested amount, the count of
// pre-RCT outputs ever created with that amount (the width of its ring-
// member pool).
func (e *Engine) NumberOutputsWithAmount(amounts []ctypes.Amount) ([]uint64, error) {
	e.stateMu.RLock()
	defer e.stateMu.RUnlock()

	out := make([]uint64, len(amounts))
	for i, a := range amounts {
		buf, err := e.numOutputs.Get(numOutputsKey(a))
		if err != nil {
			out[i] = 0
			continue
		}
		out[i] = decodeUint64(buf)
	}
	return out, nil
}

// KeyImagesSpent reports true if any of images has already been spent on
// the main chain (a double-spend attempt need only match one).
func (e *Engine) KeyImagesSpent(images []ctypes.KeyImage) (bool, error) {
	e.stateMu.RLock()
	defer e.stateMu.RUnlock()

	for _, ki := range images {
		if ok, _ := e.keyImages.Has(keyImageKey(ki)); ok {
			return true, nil
		}
	}
	return false, nil
}

// DatabaseSize reports the bytes written to the two append-only tapes (their
// logical write offsets). The KV backend's files are not counted.
func (e *Engine) DatabaseSize() uint64 {
	e.stateMu.RLock()
	defer e.stateMu.RUnlock()

	var size uint64
	if e.prunedTape != nil {
		size += e.prunedTape.WriteOffset()
	}
	if e.prunableTape != nil {
		size += e.prunableTape.WriteOffset()
	}
	return size
}

// OutputHistogram buckets the number of pre-RCT outputs by amount, the way
// peers use it to judge ring-member availability for a candidate amount.
func (e *Engine) OutputHistogram() (map[ctypes.Amount]uint64, error) {
	e.stateMu.RLock()
	defer e.stateMu.RUnlock()

	hist := make(map[ctypes.Amount]uint64)
	it := e.numOutputs.NewIteratorWithPrefix(nil)
	defer it.Release()
	for it.Next() {
		amount := decodeHeight(stripPrefix(it.Key()))
		hist[amount] = decodeUint64(it.Value())
	}
	return hist, nil
}

// CoinbaseTxSum sums the miner-transaction generated-coin amounts for the
// count blocks starting at height.
func (e *Engine) CoinbaseTxSum(height, count uint64) (ctypes.Amount, error) {
	e.stateMu.RLock()
	defer e.stateMu.RUnlock()

	var sum ctypes.Amount
	for h := height; h < height+count; h++ {
		info, err := e.blockInfoAt(h)
		if err != nil {
			return 0, err
		}
		var prev ctypes.Amount
		if h > 0 {
			if pinfo, err := e.blockInfoAt(h - 1); err == nil {
				prev = pinfo.CumulativeGenerated
			}
		}
		sum += info.CumulativeGenerated - prev
	}
	return sum, nil
}

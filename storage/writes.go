package storage

import (
	"git.gammaspectra.live/P2Pool/monero-node-core/errs"
	ctypes "git.gammaspectra.live/P2Pool/monero-node-core/types"
)

// Write requests (§4.3). Every exported method here enqueues a closure on
// the single writer goroutine via submit and blocks for its result; none of
// them touch the backend directly from the calling goroutine.

// firstDuplicateKeyImage checks every ToKey input's key image across miner
// (never has one, but scanned uniformly) and ordinary txs against both the
// already-committed KeyImages table and the rest of this same block, so a
// block cannot smuggle a double spend in in two of its own transactions
// either (§3 Invariants, §8 Duplicate key image scenario).
func (e *Engine) firstDuplicateKeyImage(miner ctypes.Transaction, txs []ctypes.Transaction) (ctypes.KeyImage, bool) {
	seenInBlock := make(map[ctypes.KeyImage]struct{})
	check := func(tx ctypes.Transaction) (ctypes.KeyImage, bool) {
		for _, in := range tx.Inputs {
			if in.Kind != ctypes.InputToKey {
				continue
			}
			if _, ok := seenInBlock[in.KeyImage]; ok {
				return in.KeyImage, true
			}
			seenInBlock[in.KeyImage] = struct{}{}
			if ok, _ := e.keyImages.Has(keyImageKey(in.KeyImage)); ok {
				return in.KeyImage, true
			}
		}
		return ctypes.KeyImage{}, false
	}
	if ki, dup := check(miner); dup {
		return ki, true
	}
	for _, tx := range txs {
		if ki, dup := check(tx); dup {
			return ki, true
		}
	}
	return ctypes.KeyImage{}, false
}

// appendTx persists one transaction's blob, assigns its outputs' storage
// positions, and records everything PopBlocks needs to undo it later.
// Returns the local tx id assigned.
func (e *Engine) appendTx(height uint64, hash ctypes.Hash, tx ctypes.Transaction, blob ctypes.TxBlob) (uint64, error) {
	txId := e.nextTxId.Load()
	e.nextTxId.Add(1)
	e.totalTxCount.Add(1)

	var prunedOff, prunedSize, prunableOff, prunableSize uint64
	var err error
	if e.prunedTape != nil {
		prunedOff, prunedSize, err = e.prunedTape.Append(blob.Pruned)
		if err != nil {
			return 0, err
		}
		if len(blob.Prunable) > 0 {
			prunableOff, prunableSize, err = e.prunableTape.Append(blob.Prunable)
			if err != nil {
				return 0, err
			}
		}
	}

	rctStart := e.nextRctIndex.Load()
	var outputIds []ctypes.OutputId
	var numRct uint64

	isRct := tx.Rct != nil
	for i, out := range tx.Outputs {
		if isRct {
			idx := e.nextRctIndex.Load()
			e.nextRctIndex.Add(1)
			numRct++
			var commitment ctypes.Hash
			if i < len(tx.Rct.Commitments) {
				commitment = tx.Rct.Commitments[i]
			}
			rec := &ctypes.RctOutput{
				PublicKey:  out.PublicKey,
				Commitment: commitment,
				Height:     height,
				Timelock:   tx.AdditionalTimelock,
				TxId:       hash,
			}
			if err := e.rctOutputs.Put(rctOutputKey(idx), encodeRctOutput(rec)); err != nil {
				return 0, errs.Iof(err, "write rct output %d", idx)
			}
		} else {
			countBuf, cerr := e.numOutputs.Get(numOutputsKey(out.Amount))
			var count uint64
			if cerr == nil {
				count = decodeUint64(countBuf)
			}
			if err := e.numOutputs.Put(numOutputsKey(out.Amount), encodeUint64(count+1)); err != nil {
				return 0, errs.Iof(err, "update output count for amount %d", out.Amount)
			}
			rec := &ctypes.PreRCTOutput{
				PublicKey: out.PublicKey,
				Height:    height,
				Timelock:  tx.AdditionalTimelock,
				TxId:      hash,
			}
			if tx.AdditionalTimelock.Kind != ctypes.TimeLockNone {
				rec.Flags = ctypes.OutputFlagNonZeroTime
			}
			if err := e.outputs.Put(outputKey(out.Amount, count), encodePreRCTOutput(rec)); err != nil {
				return 0, errs.Iof(err, "write output (%d,%d)", out.Amount, count)
			}
			outputIds = append(outputIds, ctypes.OutputId{Amount: out.Amount, AmountIndex: count})
		}
	}

	var keyImages []ctypes.KeyImage
	for _, in := range tx.Inputs {
		if in.Kind != ctypes.InputToKey {
			continue
		}
		if err := e.keyImages.Put(keyImageKey(in.KeyImage), []byte{1}); err != nil {
			return 0, errs.Iof(err, "write key image")
		}
		keyImages = append(keyImages, in.KeyImage)
	}

	info := &ctypes.TxInfo{
		Height:              height,
		PrunedOffset:        prunedOff,
		PrunedSize:          prunedSize,
		PrunableOffset:      prunableOff,
		PrunableSize:        prunableSize,
		RctOutputStartIndex: rctStart,
		NumRctOutputs:       numRct,
	}
	if err := e.txInfos.Put(txInfoKey(txId), encodeTxInfo(info)); err != nil {
		return 0, errs.Iof(err, "write tx info")
	}
	if err := e.txIds.Put(txIdKey(hash), encodeUint64(txId)); err != nil {
		return 0, errs.Iof(err, "write tx id")
	}
	if len(outputIds) > 0 {
		if err := e.outputRefs.Put(txInfoKey(txId), encodeOutputIdList(outputIds)); err != nil {
			return 0, errs.Iof(err, "write output refs")
		}
	}
	if len(keyImages) > 0 {
		if err := e.keyImageRefs.Put(txInfoKey(txId), encodeKeyImageList(keyImages)); err != nil {
			return 0, errs.Iof(err, "write key image refs")
		}
	}
	return txId, nil
}

// WriteBlock atomically appends a verified main-chain block: its miner and
// ordinary transactions, their outputs and key images, and the per-height
// summary record (§4.3 Write requests).
func (e *Engine) WriteBlock(info *ctypes.VerifiedBlockInformation) error {
	_, err := e.submit(func() (interface{}, error) {
		e.stateMu.Lock()
		defer e.stateMu.Unlock()

		height := uint64(0)
		if e.hasGenesis {
			height = e.tipHeight.Load() + 1
		}
		if len(info.Blobs) != len(info.Txs)+1 {
			return nil, errs.Structuralf("block at height %d: %d blobs for %d transactions (+miner)", height, len(info.Blobs), len(info.Txs))
		}

		// Reject the whole block before mutating anything if any input's key
		// image is already globally spent (§3 Invariants: "Every key image
		// in a confirmed block is globally unique across the main chain").
		// This is the storage-side half of the tx/block key-image race
		// (§9 Open Questions, resolved in DESIGN.md): whichever writer's
		// request reaches this single-writer queue first wins.
		if ki, dup := e.firstDuplicateKeyImage(info.Block.MinerTx, info.Txs); dup {
			return nil, errs.Consensusf("DoubleSpend", "key image %x already spent at height %d", ki, height)
		}

		minerHash := info.MinerTxHash
		if _, err := e.appendTx(height, minerHash, info.Block.MinerTx, info.Blobs[0]); err != nil {
			return nil, err
		}
		for i, tx := range info.Txs {
			if _, err := e.appendTx(height, info.TxHashes[i], tx, info.Blobs[i+1]); err != nil {
				return nil, err
			}
		}

		var prevGenerated ctypes.Amount
		if height > 0 {
			if prev, err := e.blockInfoAt(height - 1); err == nil {
				prevGenerated = prev.CumulativeGenerated
			}
		}

		binfo := &ctypes.BlockInfo{
			Timestamp:            info.Block.Header.Timestamp,
			CumulativeGenerated:  prevGenerated + info.GeneratedCoins,
			BlockWeight:          info.Weight,
			CumulativeDifficulty: info.CumulativeDifficulty,
			BlockHash:            info.BlockHash,
			CumulativeRctOutputs: e.nextRctIndex.Load(),
			LongTermWeight:       info.LongTermWeight,
		}
		if err := e.blockInfos.Put(blockInfoKey(height), encodeBlockInfo(binfo)); err != nil {
			return nil, errs.Iof(err, "write block info at height %d", height)
		}

		hdrBuf := encodeBlockHeader(info.Block.Header)
		minerBuf := encodeTransaction(info.Block.MinerTx)
		full := append(hdrBuf, encodeUint64(uint64(len(minerBuf)))...)
		full = append(full, minerBuf...)
		if err := e.blockHeaders.Put(blockHeaderKey(height), full); err != nil {
			return nil, errs.Iof(err, "write block header at height %d", height)
		}
		if err := e.blockTxHashes.Put(blockTxHashesKey(height), encodeHashList(info.TxHashes)); err != nil {
			return nil, errs.Iof(err, "write block tx hashes at height %d", height)
		}
		if err := e.blockHeights.Put(blockHeightKey(info.BlockHash), encodeHeight(height)); err != nil {
			return nil, errs.Iof(err, "write block height index at height %d", height)
		}
		if err := e.minerTxHashes.Put(blockHeaderKey(height), minerHash[:]); err != nil {
			return nil, errs.Iof(err, "write miner tx hash at height %d", height)
		}

		e.tipHeight.Store(height)
		e.hasGenesis = true
		return nil, nil
	})
	return err
}

// WriteAltBlock appends a verified alt-chain block: its blob (header, miner
// tx, tx hash list), its transactions' blobs, and the alt chain's own
// summary record. Alt blocks never touch the main output/key-image tables;
// they are promoted into those tables only by ReverseReorg.
func (e *Engine) WriteAltBlock(info *ctypes.AltBlockInformation) error {
	_, err := e.submit(func() (interface{}, error) {
		e.stateMu.Lock()
		defer e.stateMu.Unlock()

		chain := info.Chain
		key := altBlockInfoKey(chain, info.Height)

		hdrBuf := encodeBlockHeader(info.Block.Header)
		minerBuf := encodeTransaction(info.Block.MinerTx)
		blobBuf := append([]byte{}, info.MinerTxHash[:]...)
		blobBuf = append(blobBuf, hdrBuf...)
		blobBuf = append(blobBuf, encodeUint64(uint64(len(minerBuf)))...)
		blobBuf = append(blobBuf, minerBuf...)
		blobBuf = append(blobBuf, encodeHashList(info.TxHashes)...)
		if err := e.altBlockBlobs.Put(key, blobBuf); err != nil {
			return nil, errs.Iof(err, "write alt block blob")
		}

		var txBuf []byte
		txBuf = append(txBuf, encodeUint64(uint64(len(info.Txs)))...)
		for _, tx := range info.Txs {
			enc := encodeTransaction(tx)
			txBuf = append(txBuf, encodeUint64(uint64(len(enc)))...)
			txBuf = append(txBuf, enc...)
		}
		if err := e.altTxBlobs.Put(key, txBuf); err != nil {
			return nil, errs.Iof(err, "write alt tx blobs")
		}

		binfo := &ctypes.BlockInfo{
			Timestamp:            info.Block.Header.Timestamp,
			BlockWeight:          info.Weight,
			CumulativeDifficulty: info.CumulativeDifficulty,
			BlockHash:            info.BlockHash,
			LongTermWeight:       info.LongTermWeight,
		}
		if err := e.altInfos.Put(key, encodeBlockInfo(binfo)); err != nil {
			return nil, errs.Iof(err, "write alt block info")
		}
		if err := e.altHeights.Put(altBlockHeightKey(info.BlockHash), encodeAltBlockHeightRecord(chain, info.Height)); err != nil {
			return nil, errs.Iof(err, "write alt block height index")
		}

		existing, err := e.altChains.Get(altChainInfoKey(chain))
		var chainInfo *ctypes.AltChainInfo
		if err == nil {
			chainInfo = decodeAltChainInfo(chain, existing)
			chainInfo.ChainHeight = info.Height
		} else {
			ancestor := uint64(0)
			if info.Height > 0 {
				ancestor = info.Height - 1
			}
			chainInfo = &ctypes.AltChainInfo{
				ChainId:              chain,
				ParentChain:          info.ParentChain,
				CommonAncestorHeight: ancestor,
				ChainHeight:          info.Height,
			}
		}
		if err := e.altChains.Put(altChainInfoKey(chain), encodeAltChainInfo(chainInfo)); err != nil {
			return nil, errs.Iof(err, "write alt chain info")
		}
		return nil, nil
	})
	return err
}

// popOneMainBlock undoes the effects of the most recently written main-chain
// block: it deletes the block's own records and every output/key-image
// reference its transactions created, but never decrements nextTxId or
// nextRctIndex or any per-amount output counter, so those identifiers are
// never reused even across a pop (types.RctOutputIndex's stated invariant,
// generalized to tx ids and pre-RCT indices for consistency).
func (e *Engine) popOneMainBlock() error {
	height := e.tipHeight.Load()

	minerHashBuf, err := e.minerTxHashes.Get(blockHeaderKey(height))
	if err != nil {
		return errs.NotFoundf("no miner tx hash recorded at height %d", height)
	}
	var minerHash ctypes.Hash
	copy(minerHash[:], minerHashBuf)

	var otherHashes []ctypes.Hash
	if buf, err := e.blockTxHashes.Get(blockTxHashesKey(height)); err == nil {
		otherHashes = decodeHashList(buf)
	}

	allHashes := append([]ctypes.Hash{minerHash}, otherHashes...)
	for _, hash := range allHashes {
		idBuf, err := e.txIds.Get(txIdKey(hash))
		if err != nil {
			continue
		}
		txId := decodeUint64(idBuf)

		if refBuf, err := e.outputRefs.Get(txInfoKey(txId)); err == nil {
			for _, id := range decodeOutputIdList(refBuf) {
				e.outputs.Delete(outputKey(id.Amount, id.AmountIndex))
			}
			e.outputRefs.Delete(txInfoKey(txId))
		}
		if refBuf, err := e.keyImageRefs.Get(txInfoKey(txId)); err == nil {
			for _, ki := range decodeKeyImageList(refBuf) {
				e.keyImages.Delete(keyImageKey(ki))
			}
			e.keyImageRefs.Delete(txInfoKey(txId))
		}
		if infoBuf, err := e.txInfos.Get(txInfoKey(txId)); err == nil {
			info := decodeTxInfo(infoBuf)
			if info.NumRctOutputs > 0 {
				for idx := info.RctOutputStartIndex; idx < info.RctOutputStartIndex+info.NumRctOutputs; idx++ {
					e.rctOutputs.Delete(rctOutputKey(idx))
				}
			}
		}
		e.txInfos.Delete(txInfoKey(txId))
		e.txIds.Delete(txIdKey(hash))
		e.totalTxCount.Sub(1)
	}

	if info, err := e.blockInfoAt(height); err == nil {
		e.blockHeights.Delete(blockHeightKey(info.BlockHash))
	}

	e.blockInfos.Delete(blockInfoKey(height))
	e.blockHeaders.Delete(blockHeaderKey(height))
	e.blockTxHashes.Delete(blockTxHashesKey(height))
	e.minerTxHashes.Delete(blockHeaderKey(height))

	if height == 0 {
		e.hasGenesis = false
		e.tipHeight.Store(0)
	} else {
		e.tipHeight.Store(height - 1)
	}
	return nil
}

// PopBlocks removes the n most recent main-chain blocks, recording the
// popped segment as a new alt chain rooted at main with a freshly minted
// ChainId before it deletes anything, and returns that ChainId (§4.3:
// "recording the popped segment as a new alt chain... and returns that
// ChainId"; §8 Reorg scenario: "call PopBlocks(2) (returns chain_id c)").
//
// Non-miner transaction bodies are not retained here: once a main-chain
// transaction is appended (appendTx), only its wire blob and output/key-image
// references survive, not the parsed ctypes.Transaction itself (storage
// never owns a parser, §1). The recorded alt chain therefore carries each
// popped block's header, miner transaction and BlockInfo faithfully but an
// empty Txs list; this is sufficient for AltBlocksInChain and BlockHash
// queries against the popped segment, which is this ChainId's only
// documented further use (DESIGN.md).
func (e *Engine) PopBlocks(n uint64) (ctypes.ChainId, error) {
	v, err := e.submit(func() (interface{}, error) {
		e.stateMu.Lock()
		defer e.stateMu.Unlock()

		if !e.hasGenesis || n == 0 || n > e.tipHeight.Load()+1 {
			return nil, errs.Structuralf("cannot pop %d blocks from a chain of height %d", n, e.tipHeight.Load()+1)
		}

		chain := ctypes.NewChainId()
		origTip := e.tipHeight.Load()
		ancestorHeight := origTip - n

		for h := origTip - n + 1; h <= origTip; h++ {
			if err := e.captureMainBlockAsAlt(chain, h); err != nil {
				return nil, err
			}
		}
		chainInfo := &ctypes.AltChainInfo{
			ChainId:              chain,
			ParentChain:          ctypes.Main,
			CommonAncestorHeight: ancestorHeight,
			ChainHeight:          origTip,
		}
		if err := e.altChains.Put(altChainInfoKey(chain), encodeAltChainInfo(chainInfo)); err != nil {
			return nil, errs.Iof(err, "write popped-segment alt chain info")
		}

		for i := uint64(0); i < n; i++ {
			if err := e.popOneMainBlock(); err != nil {
				return nil, err
			}
		}
		return chain, nil
	})
	if err != nil {
		return ctypes.ChainId{}, err
	}
	return v.(ctypes.ChainId), nil
}

// captureMainBlockAsAlt copies the still-live main-chain block at height into
// chain's alt-block rows, ahead of popOneMainBlock deleting the main rows.
// Caller holds stateMu.
func (e *Engine) captureMainBlockAsAlt(chain ctypes.ChainId, height uint64) error {
	info, err := e.blockInfoAt(height)
	if err != nil {
		return err
	}
	hdrBuf, err := e.blockHeaders.Get(blockHeaderKey(height))
	if err != nil {
		return errs.NotFoundf("no block header at height %d", height)
	}
	header := decodeBlockHeader(hdrBuf[:blockHeaderSize])
	minerTxBuf, _ := takeBytes(hdrBuf, blockHeaderSize)
	minerTx := decodeTransaction(minerTxBuf)

	var txHashes []ctypes.Hash
	if buf, err := e.blockTxHashes.Get(blockTxHashesKey(height)); err == nil {
		txHashes = decodeHashList(buf)
	}
	minerHashBuf, _ := e.minerTxHashes.Get(blockHeaderKey(height))
	var minerHash ctypes.Hash
	copy(minerHash[:], minerHashBuf)

	key := altBlockInfoKey(chain, height)

	blobBuf := append([]byte{}, minerHash[:]...)
	blobBuf = append(blobBuf, encodeBlockHeader(header)...)
	minerEnc := encodeTransaction(minerTx)
	blobBuf = append(blobBuf, encodeUint64(uint64(len(minerEnc)))...)
	blobBuf = append(blobBuf, minerEnc...)
	blobBuf = append(blobBuf, encodeHashList(txHashes)...)
	if err := e.altBlockBlobs.Put(key, blobBuf); err != nil {
		return errs.Iof(err, "write popped-segment alt block blob at height %d", height)
	}
	if err := e.altInfos.Put(key, encodeBlockInfo(info)); err != nil {
		return errs.Iof(err, "write popped-segment alt block info at height %d", height)
	}
	if err := e.altHeights.Put(altBlockHeightKey(info.BlockHash), encodeAltBlockHeightRecord(chain, height)); err != nil {
		return errs.Iof(err, "write popped-segment alt height index at height %d", height)
	}
	return nil
}

// ReverseReorg promotes chain onto the main chain: the main chain is popped
// back to chain's common ancestor, then chain's alt blocks are replayed as
// main-chain blocks in height order. Only forks whose parent is the main
// chain are supported; a fork of a fork must first have its own parent
// promoted (documented limitation, §9).
func (e *Engine) ReverseReorg(chain ctypes.ChainId) error {
	_, err := e.submit(func() (interface{}, error) {
		e.stateMu.Lock()
		defer e.stateMu.Unlock()

		cbuf, err := e.altChains.Get(altChainInfoKey(chain))
		if err != nil {
			return nil, errs.NotFoundf("unknown alt chain %s", chain)
		}
		info := decodeAltChainInfo(chain, cbuf)
		if !info.ParentChain.IsMain() {
			return nil, errs.Structuralf("cannot reverse-reorg chain %s: parent is itself an alt chain", chain)
		}

		for e.hasGenesis && e.tipHeight.Load() > info.CommonAncestorHeight {
			if err := e.popOneMainBlock(); err != nil {
				return nil, err
			}
		}

		for h := info.CommonAncestorHeight + 1; h <= info.ChainHeight; h++ {
			key := altBlockInfoKey(chain, h)
			blobBuf, err := e.altBlockBlobs.Get(key)
			if err != nil {
				return nil, errs.NotFoundf("alt chain %s missing block at height %d", chain, h)
			}
			var minerTxHash ctypes.Hash
			copy(minerTxHash[:], blobBuf[:32])
			header := decodeBlockHeader(blobBuf[32 : 32+blockHeaderSize])
			minerBuf, off := takeBytes(blobBuf, 32+blockHeaderSize)
			minerTx := decodeTransaction(minerBuf)
			txHashes := decodeHashList(blobBuf[off:])

			var txs []ctypes.Transaction
			if txBuf, err := e.altTxBlobs.Get(key); err == nil {
				n := int(decodeUint64(txBuf[0:8]))
				off := 8
				for i := 0; i < n; i++ {
					var enc []byte
					enc, off = takeBytes(txBuf, off)
					txs = append(txs, decodeTransaction(enc))
				}
			}

			altInfoBuf, err := e.altInfos.Get(key)
			if err != nil {
				return nil, errs.NotFoundf("alt chain %s missing block info at height %d", chain, h)
			}
			altInfo := decodeBlockInfo(altInfoBuf)

			if err := e.appendPromotedBlock(h, header, altInfo.BlockHash, minerTxHash, minerTx, txs, txHashes, altInfo.BlockWeight, altInfo.LongTermWeight, altInfo.CumulativeDifficulty); err != nil {
				return nil, err
			}

			e.altBlockBlobs.Delete(key)
			e.altTxBlobs.Delete(key)
			e.altInfos.Delete(key)
			e.altHeights.Delete(altBlockHeightKey(altInfo.BlockHash))
		}

		e.altChains.Delete(altChainInfoKey(chain))
		return nil, nil
	})
	return err
}

// appendPromotedBlock is WriteBlock's body inlined for the reorg path,
// where the caller has already resolved every field from alt-chain storage
// instead of a fresh VerifiedBlockInformation. The promoted miner tx is
// keyed by blockHash, which is unique per block, in txIds/txInfos/
// outputRefs/keyImageRefs and in the per-height miner-hash row; the
// minerTxHash argument (the hash stored in the alt block blob) is not used.
func (e *Engine) appendPromotedBlock(height uint64, header ctypes.BlockHeader, blockHash, minerTxHash ctypes.Hash, minerTx ctypes.Transaction, txs []ctypes.Transaction, txHashes []ctypes.Hash, weight, longTermWeight ctypes.Weight, cumDiff ctypes.Difficulty) error {
	minerKey := blockHash // the promoted miner tx is keyed by the owning block's hash, unique by construction
	if _, err := e.appendTx(height, minerKey, minerTx, ctypes.TxBlob{}); err != nil {
		return err
	}
	for i, tx := range txs {
		if i < len(txHashes) {
			if _, err := e.appendTx(height, txHashes[i], tx, ctypes.TxBlob{}); err != nil {
				return err
			}
		}
	}

	var prevGenerated ctypes.Amount
	if height > 0 {
		if prev, err := e.blockInfoAt(height - 1); err == nil {
			prevGenerated = prev.CumulativeGenerated
		}
	}

	binfo := &ctypes.BlockInfo{
		Timestamp:            header.Timestamp,
		CumulativeGenerated:  prevGenerated,
		BlockWeight:          weight,
		CumulativeDifficulty: cumDiff,
		BlockHash:            blockHash,
		CumulativeRctOutputs: e.nextRctIndex.Load(),
		LongTermWeight:       longTermWeight,
	}
	if err := e.blockInfos.Put(blockInfoKey(height), encodeBlockInfo(binfo)); err != nil {
		return errs.Iof(err, "write promoted block info at height %d", height)
	}

	hdrBuf := encodeBlockHeader(header)
	minerBuf := encodeTransaction(minerTx)
	full := append(hdrBuf, encodeUint64(uint64(len(minerBuf)))...)
	full = append(full, minerBuf...)
	if err := e.blockHeaders.Put(blockHeaderKey(height), full); err != nil {
		return errs.Iof(err, "write promoted block header at height %d", height)
	}
	if err := e.blockTxHashes.Put(blockTxHashesKey(height), encodeHashList(txHashes)); err != nil {
		return errs.Iof(err, "write promoted block tx hashes at height %d", height)
	}
	if err := e.blockHeights.Put(blockHeightKey(blockHash), encodeHeight(height)); err != nil {
		return errs.Iof(err, "write promoted block height index at height %d", height)
	}
	if err := e.minerTxHashes.Put(blockHeaderKey(height), minerKey[:]); err != nil {
		return errs.Iof(err, "write promoted miner tx hash at height %d", height)
	}

	e.tipHeight.Store(height)
	e.hasGenesis = true
	return nil
}

// FlushAltBlocks discards every stored block of chain without promoting it,
// used when a fork falls far enough behind the main tip that it can no
// longer win. Only chain's own rows are removed; alt chains forked from it
// keep theirs.
func (e *Engine) FlushAltBlocks(chain ctypes.ChainId) error {
	_, err := e.submit(func() (interface{}, error) {
		e.stateMu.Lock()
		defer e.stateMu.Unlock()

		it := e.altInfos.NewIteratorWithPrefix(altChainPrefix(chain))
		var keys [][]byte
		for it.Next() {
			k := append([]byte{}, stripPrefix(it.Key())...)
			keys = append(keys, k)
		}
		it.Release()

		for _, k := range keys {
			if buf, err := e.altInfos.Get(k); err == nil {
				info := decodeBlockInfo(buf)
				e.altHeights.Delete(altBlockHeightKey(info.BlockHash))
			}
			e.altInfos.Delete(k)
			e.altBlockBlobs.Delete(k)
			e.altTxBlobs.Delete(k)
		}
		e.altChains.Delete(altChainInfoKey(chain))
		return nil, nil
	})
	return err
}

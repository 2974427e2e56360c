package verifier

import (
	stdcontext "context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"git.gammaspectra.live/P2Pool/monero-node-core/consensus"
	chainctx "git.gammaspectra.live/P2Pool/monero-node-core/context"
	"git.gammaspectra.live/P2Pool/monero-node-core/errs"
	"git.gammaspectra.live/P2Pool/monero-node-core/storage"
	ctypes "git.gammaspectra.live/P2Pool/monero-node-core/types"
)

// Verifier is C4: it holds handles to the context engine (C2) and storage
// (C3) and combines them with C1's pure rules to check whether a candidate
// block or transaction batch may be accepted (§4.4). It never writes to
// storage or advances the context engine itself — VerifyBlock/VerifyAltBlock
// return a value for the caller (C7) to persist in the correct order
// relative to the context engine's NewBlock (§5 Ordering guarantees).
type Verifier struct {
	ctx   *chainctx.MainContext
	store *storage.Engine
	pool  *ComputePool
	reorg *ReorgLock

	pow PowHasher
	vm  VMBuilder
	sig SignatureVerifier
}

// New constructs a Verifier. pow, vm and sig are the external collaborators
// (§1): concrete RandomX/CryptoNight hashing and curve-level signature
// checking live outside this core.
func New(ctx *chainctx.MainContext, store *storage.Engine, pool *ComputePool, reorg *ReorgLock, pow PowHasher, vm VMBuilder, sig SignatureVerifier) *Verifier {
	return &Verifier{ctx: ctx, store: store, pool: pool, reorg: reorg, pow: pow, vm: vm, sig: sig}
}

// VerifyBlockRequest is C4's VerifyBlock request (§4.4): an already-parsed
// block and its already-parsed, not-yet-validated transactions. Parsing raw
// wire bytes is the external serializer's job (§6); by the time a request
// reaches the verifier, Block/Txs/TxHashes/Blobs are already materialized
// and need only be checked.
type VerifyBlockRequest struct {
	Block       ctypes.Block
	BlockHash   ctypes.Hash
	MinerTxHash ctypes.Hash
	Txs         []ctypes.Transaction
	TxHashes    []ctypes.Hash
	// Blobs holds the wire bytes storage will persist if the block is
	// accepted: index 0 is the miner transaction, 1..len(Txs) parallel
	// Txs/TxHashes (§4.3 WriteBlock).
	Blobs []ctypes.TxBlob
}

// blockHashAt resolves the hash of the block at height on chain, falling
// back to the main chain when chain is an alt chain that has not itself
// stored a block at that height (the common prefix shared with its
// parent, below the fork point).
func (v *Verifier) blockHashAt(chain ctypes.Chain, height uint64) (ctypes.Hash, error) {
	hash, err := v.store.BlockHash(height, chain)
	if err == nil {
		return hash, nil
	}
	if !chain.IsMain() {
		return v.store.BlockHash(height, ctypes.Main)
	}
	return ctypes.Hash{}, err
}

// VerifyBlock runs the main-chain block verification algorithm (§4.4 steps
// 1-9).
func (v *Verifier) VerifyBlock(ctx stdcontext.Context, req VerifyBlockRequest) (*ctypes.VerifiedBlockInformation, error) {
	v.reorg.RLock()
	defer v.reorg.RUnlock()

	snap, ok := v.ctx.Context(ctypes.Main)
	if !ok {
		return nil, errs.Servicef(errors.New("context not seeded"), "main context snapshot unavailable")
	}

	height := v.store.ChainHeight()

	var topHash ctypes.Hash
	if height > 0 {
		var err error
		topHash, err = v.blockHashAt(ctypes.Main, height-1)
		if err != nil {
			return nil, err
		}
	}

	hf, err := consensus.FromVersion(req.Block.Header.MajorVersion)
	if err != nil {
		return nil, err
	}
	vote := consensus.FromVote(req.Block.Header.MinorVersion)
	if err := consensus.CheckBlockVersionVote(snap.HardForkVersion, hf, vote); err != nil {
		return nil, err
	}

	bctx := consensus.BlockContext{
		TopHash:               topHash,
		MedianBlockTimestamp:  snap.MedianBlockTimestamp(),
		MedianWeightForReward: snap.MedianWeightForBlockReward(),
		EffectiveMedianWeight: snap.Weight.EffectiveMedianWeight(),
		Now:                   time.Now(),
	}
	if err := consensus.CheckBlockStructure(req.Block, bctx); err != nil {
		return nil, err
	}
	if err := consensus.CheckBlockTimestamp(req.Block, bctx); err != nil {
		return nil, err
	}

	totalFees, err := v.verifyTxBatch(ctx, req.Txs, hf)
	if err != nil {
		return nil, err
	}

	blockWeight := req.Block.MinerTx.Weight
	for _, tx := range req.Txs {
		blockWeight += tx.Weight
	}
	var blobLen uint64
	for _, b := range req.Blobs {
		blobLen += uint64(len(b.Pruned) + len(b.Prunable))
	}
	if err := consensus.CheckBlockWeight(blockWeight, blobLen, bctx); err != nil {
		return nil, err
	}

	var prevGenerated ctypes.Amount
	if height > 0 {
		prevGenerated, err = v.store.GeneratedCoins(height - 1)
		if err != nil {
			return nil, err
		}
	}
	longTermWeight := snap.Weight.NextLongTermWeight(hf, blockWeight)

	generated, err := consensus.CheckMinerTx(req.Block.MinerTx, consensus.MinerTxContext{
		Height:             height,
		HardFork:           hf,
		AlreadyGenerated:   prevGenerated,
		BlockWeight:        blockWeight,
		MedianRewardWeight: snap.MedianWeightForBlockReward(),
		TotalFees:          totalFees,
	})
	if err != nil {
		return nil, err
	}

	powHash, err := v.computePow(ctx, ctypes.Main, height, hf, req.Block)
	if err != nil {
		return nil, err
	}
	nextDifficulty := snap.NextDifficulty()
	if !consensus.CheckPow(powHash, nextDifficulty) {
		return nil, errs.Consensusf("BadPow", "pow hash does not meet target difficulty at height %d", height)
	}
	cumulativeDifficulty := ctypes.AddDifficulty(snap.Difficulty.LastCumulativeDifficulty(), nextDifficulty)

	return &ctypes.VerifiedBlockInformation{
		Block:                req.Block,
		BlockHash:            req.BlockHash,
		MinerTxHash:          req.MinerTxHash,
		Txs:                  req.Txs,
		TxHashes:             req.TxHashes,
		Blobs:                req.Blobs,
		Weight:               blockWeight,
		LongTermWeight:       longTermWeight,
		HardForkVersion:      uint8(hf),
		GeneratedCoins:       generated,
		CumulativeDifficulty: cumulativeDifficulty,
		PowHash:              powHash,
	}, nil
}

// VerifyAltBlockRequest is §4.4's alt-chain counterpart of VerifyBlockRequest.
// Chain identifies the fork this block extends: either an already-known
// ChainId (continuing an existing fork) or a freshly minted one (the first
// block of a new fork); minting is the caller's responsibility (§4.4
// "on a new fork, mint a fresh ChainId").
type VerifyAltBlockRequest struct {
	VerifyBlockRequest
	Chain ctypes.ChainId
	// Parent and ForkHeight seed a first-time AltContextCache lookup; they
	// are ignored if the context engine already has Chain's context cached.
	Parent     ctypes.Chain
	ForkHeight uint64
	// Height is this block's height on Chain.
	Height uint64
}

// VerifyAltBlock runs the alt-chain block verification algorithm: identical
// checks to VerifyBlock, sourced from AltContextCache instead of the main
// context (§4.4 "Alt-chain block verification algorithm").
func (v *Verifier) VerifyAltBlock(ctx stdcontext.Context, req VerifyAltBlockRequest) (*ctypes.AltBlockInformation, error) {
	v.reorg.RLock()
	defer v.reorg.RUnlock()

	chain := ctypes.Alt(req.Chain)
	altCtx, err := v.ctx.AltContextCache(req.Chain, req.Parent, req.ForkHeight)
	if err != nil {
		return nil, err
	}
	snap := altCtx.Snapshot()

	var topHash ctypes.Hash
	if req.Height > 0 {
		topHash, err = v.blockHashAt(chain, req.Height-1)
		if err != nil {
			return nil, err
		}
	}

	hf, err := consensus.FromVersion(req.Block.Header.MajorVersion)
	if err != nil {
		return nil, err
	}
	vote := consensus.FromVote(req.Block.Header.MinorVersion)
	if err := consensus.CheckBlockVersionVote(snap.HardForkVersion, hf, vote); err != nil {
		return nil, err
	}

	bctx := consensus.BlockContext{
		TopHash:               topHash,
		MedianBlockTimestamp:  snap.MedianBlockTimestamp(),
		MedianWeightForReward: snap.MedianWeightForBlockReward(),
		EffectiveMedianWeight: snap.Weight.EffectiveMedianWeight(),
		Now:                   time.Now(),
	}
	if err := consensus.CheckBlockStructure(req.Block, bctx); err != nil {
		return nil, err
	}
	if err := consensus.CheckBlockTimestamp(req.Block, bctx); err != nil {
		return nil, err
	}

	totalFees, err := v.verifyTxBatch(ctx, req.Txs, hf)
	if err != nil {
		return nil, err
	}

	blockWeight := req.Block.MinerTx.Weight
	for _, tx := range req.Txs {
		blockWeight += tx.Weight
	}
	var blobLen uint64
	for _, b := range req.Blobs {
		blobLen += uint64(len(b.Pruned) + len(b.Prunable))
	}
	if err := consensus.CheckBlockWeight(blockWeight, blobLen, bctx); err != nil {
		return nil, err
	}

	var prevGenerated ctypes.Amount
	if req.Height > 0 {
		prevGenerated, _ = v.store.GeneratedCoins(req.Height - 1) // best effort: alt heights below the fork live on main
	}
	longTermWeight := snap.Weight.NextLongTermWeight(hf, blockWeight)

	generated, err := consensus.CheckMinerTx(req.Block.MinerTx, consensus.MinerTxContext{
		Height:             req.Height,
		HardFork:           hf,
		AlreadyGenerated:   prevGenerated,
		BlockWeight:        blockWeight,
		MedianRewardWeight: snap.MedianWeightForBlockReward(),
		TotalFees:          totalFees,
	})
	if err != nil {
		return nil, err
	}
	_ = generated // alt blocks don't carry a CumulativeGenerated field until promoted

	powHash, err := v.computePow(ctx, chain, req.Height, hf, req.Block)
	if err != nil {
		return nil, err
	}
	nextDifficulty := snap.NextDifficulty()
	if !consensus.CheckPow(powHash, nextDifficulty) {
		return nil, errs.Consensusf("BadPow", "pow hash does not meet target difficulty at alt height %d", req.Height)
	}
	cumulativeDifficulty := ctypes.AddDifficulty(snap.Difficulty.LastCumulativeDifficulty(), nextDifficulty)

	return &ctypes.AltBlockInformation{
		Block:                req.Block,
		BlockHash:            req.BlockHash,
		MinerTxHash:          req.MinerTxHash,
		Txs:                  req.Txs,
		TxHashes:             req.TxHashes,
		Blobs:                req.Blobs,
		Weight:               blockWeight,
		LongTermWeight:       longTermWeight,
		HardForkVersion:      uint8(hf),
		CumulativeDifficulty: cumulativeDifficulty,
		Chain:                req.Chain,
		ParentChain:          req.Parent,
		Height:               req.Height,
	}, nil
}

// VerifyMempoolTx runs the same structural/contextual checks a block's
// transactions get, for one transaction arriving outside of a block (§2
// incoming-transaction data flow: "structural check, txpool dedup,
// contextual verify, txpool insert, dandelion route"). hf is the currently
// active hard-fork version, from the caller's own Context() snapshot.
func (v *Verifier) VerifyMempoolTx(ctx stdcontext.Context, tx ctypes.Transaction, hf consensus.HFVersion) error {
	v.reorg.RLock()
	defer v.reorg.RUnlock()
	_, err := v.verifyTxBatch(ctx, []ctypes.Transaction{tx}, hf)
	return err
}

// verifyTxBatch is §4.4's "Transaction batch verification": resolve the
// union of ring members in grouped queries, enforce per-hard-fork decoy
// structure via a single NumberOutputsWithAmount query, reject any batch
// touching an already-spent key image, and verify signatures in parallel on
// the compute pool. Returns the sum of the batch's fees.
func (v *Verifier) verifyTxBatch(ctx stdcontext.Context, txs []ctypes.Transaction, hf consensus.HFVersion) (ctypes.Amount, error) {
	if len(txs) == 0 {
		return 0, nil
	}

	var totalFees ctypes.Amount
	amountsNeeded := make(map[ctypes.Amount]struct{})
	var allKeyImages []ctypes.KeyImage

	for i, tx := range txs {
		if err := consensus.CheckTransactionStructure(tx, hf); err != nil {
			return 0, errors.Wrapf(err, "tx %d", i)
		}
		totalFees += tx.Fee
		for _, in := range tx.Inputs {
			if in.Kind != ctypes.InputToKey {
				continue
			}
			allKeyImages = append(allKeyImages, in.KeyImage)
			if tx.Rct == nil {
				amountsNeeded[in.Amount] = struct{}{}
			}
		}
	}

	spent, err := v.store.KeyImagesSpent(allKeyImages)
	if err != nil {
		return 0, err
	}
	if spent {
		return 0, errs.Consensusf("DoubleSpend", "transaction batch spends an already-spent key image")
	}

	amounts := make([]ctypes.Amount, 0, len(amountsNeeded))
	for a := range amountsNeeded {
		amounts = append(amounts, a)
	}
	counts, err := v.store.NumberOutputsWithAmount(amounts)
	if err != nil {
		return 0, err
	}
	available := make(map[ctypes.Amount]uint64, len(amounts))
	for i, a := range amounts {
		available[a] = counts[i]
	}

	rings, err := v.resolveRings(txs)
	if err != nil {
		return 0, err
	}

	// Each tx's checks are independent, so failures are aggregated rather
	// than short-circuited on the first one (§4.4 Transaction batch
	// verification): a caller dropping a whole batch wants to know about
	// every bad tx in it, not just whichever happened to fail first.
	var wg sync.WaitGroup
	var mu sync.Mutex
	var combined error
	for idx := range txs {
		i := idx
		tx := txs[i]
		txRings := rings[i]
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := v.pool.Do(ctx, func() error {
				return v.verifyOneTx(tx, txRings, hf, available)
			})
			if err != nil {
				mu.Lock()
				combined = multierr.Append(combined, errors.Wrapf(err, "tx %d", i))
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if combined != nil {
		return 0, combined
	}
	return totalFees, nil
}

func (v *Verifier) verifyOneTx(tx ctypes.Transaction, rings [][]RingMember, hf consensus.HFVersion, available map[ctypes.Amount]uint64) error {
	mixable := make([]bool, 0, len(tx.Inputs))
	for _, in := range tx.Inputs {
		if in.Kind != ctypes.InputToKey {
			continue
		}
		var count uint64
		if tx.Rct != nil {
			// An RCT ring's offsets were already bounds-checked against
			// RingSizeBounds by CheckTransactionStructure; its width is its
			// own mixability evidence.
			count = uint64(len(in.KeyOffsets))
		} else {
			count = available[in.Amount]
		}
		mixable = append(mixable, consensus.IsMixable(hf, count))
	}
	if err := consensus.CheckDecoyPolicy(hf, mixable); err != nil {
		return err
	}
	if v.sig == nil {
		return nil
	}
	return v.sig.VerifyRingSignatures(tx, rings)
}

// computePow computes a block's PoW hash on the compute pool, honoring the
// one hard-coded historical exception (§4.1 PoW selection) and borrowing
// (or building) the RandomX VM for the block's seed height from the context
// engine when required.
func (v *Verifier) computePow(ctx stdcontext.Context, chain ctypes.Chain, height uint64, hf consensus.HFVersion, block ctypes.Block) (ctypes.Hash, error) {
	if hash, ok := consensus.PowHashForHeight(height); ok {
		return hash, nil
	}

	algo := consensus.SelectAlgorithm(hf)
	var vm chainctx.RandomXVM
	if algo == consensus.PowRandomX {
		seedHeight := consensus.RandomXSeedHeight(height)
		seedHash, err := v.blockHashAt(chain, seedHeight)
		if err != nil {
			return ctypes.Hash{}, err
		}
		build := func(sh ctypes.Hash) (chainctx.RandomXVM, error) {
			var built chainctx.RandomXVM
			err := v.pool.Do(ctx, func() error {
				var err error
				built, err = v.vm(sh)
				return err
			})
			return built, err
		}
		if chain.IsMain() {
			vm, err = v.ctx.RxVM(height, seedHash, build)
		} else {
			vm, err = v.ctx.AltChainRxVM(chain.AltId, seedHeight, seedHash, build)
		}
		if err != nil {
			return ctypes.Hash{}, err
		}
	}

	var hash ctypes.Hash
	err := v.pool.Do(ctx, func() error {
		var err error
		hash, err = v.pow.Hash(algo, block, vm)
		return err
	})
	return hash, err
}

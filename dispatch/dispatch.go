// Package dispatch implements the request dispatch / service glue (C7):
// presents C2-C6 as request/response services with the concurrency
// contracts of §5, in the strict commit order §5's Ordering guarantees
// section requires ("NewBlock notifications to the context engine are
// strictly ordered with the storage writer's commits").
//
// Grounded on the teacher's consensus/istanbul/backend/backend.go and
// work/worker.go, which glue a consensus engine, a database and a worker
// pool behind a small set of request methods the RPC/P2P layers call into;
// this package plays the same role for C2-C6 instead of klaytn's consensus
// backend.
package dispatch

import (
	stdcontext "context"
	"sync"
	"time"

	"github.com/rcrowley/go-metrics"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"git.gammaspectra.live/P2Pool/monero-node-core/consensus"
	chainctx "git.gammaspectra.live/P2Pool/monero-node-core/context"
	"git.gammaspectra.live/P2Pool/monero-node-core/dandelion"
	"git.gammaspectra.live/P2Pool/monero-node-core/errs"
	"git.gammaspectra.live/P2Pool/monero-node-core/internal/xlog"
	"git.gammaspectra.live/P2Pool/monero-node-core/storage"
	"git.gammaspectra.live/P2Pool/monero-node-core/txpool"
	ctypes "git.gammaspectra.live/P2Pool/monero-node-core/types"
	"git.gammaspectra.live/P2Pool/monero-node-core/verifier"
)

var logger = xlog.NewModuleLogger(xlog.ModuleService)

// PeerID identifies an outbound peer for Dandelion++ routing purposes.
// Concrete peer identity (address, connection handle) is a P2P-layer
// concern (§1 Deliberately excluded); the dispatch layer only needs
// something comparable to key stem routes by.
type PeerID = string

// Router and PoolManager fix dandelion's generic parameters to this core's
// concrete transaction representation (§4.7: "C6 holds handles to C5").
type Router = dandelion.Router[PeerID, txpool.Entry]
type PoolManager = dandelion.PoolManager[txpool.Entry, ctypes.Hash, PeerID]

var (
	blocksAcceptedCounter = metrics.NewRegisteredCounter("dispatch/blocks/accepted", nil)
	blocksRejectedCounter = metrics.NewRegisteredCounter("dispatch/blocks/rejected", nil)
	txsAcceptedCounter    = metrics.NewRegisteredCounter("dispatch/txs/accepted", nil)
	txsRejectedCounter    = metrics.NewRegisteredCounter("dispatch/txs/rejected", nil)
	submitBlockTimer      = metrics.NewRegisteredTimer("dispatch/submitblock/latency", nil)
	submitTxTimer         = metrics.NewRegisteredTimer("dispatch/submittx/latency", nil)
)

// Service is C7: it owns no state of its own beyond what strict commit
// ordering requires (commitMu) and routes requests to C2-C6 in the order
// §5 mandates.
type Service struct {
	ctx      *chainctx.MainContext
	store    *storage.Engine
	verifier *verifier.Verifier
	pool     *txpool.Pool
	router   *Router
	manager  *PoolManager
	reorg    *verifier.ReorgLock

	readers *ReaderPool

	guard *txpool.TxsBeingHandled
	sf    singleflight.Group

	// commitMu serializes the WriteBlock+NewBlock critical section across
	// concurrent SubmitBlock calls: storage's single writer already
	// serializes WriteBlock itself, but NewBlock runs in the calling
	// goroutine afterward and must not be allowed to interleave out of
	// order if two blocks are submitted concurrently (§5 Ordering
	// guarantees).
	commitMu sync.Mutex
}

// New constructs the dispatch service over already-constructed C2-C6
// components (§4.7: "there are no cycles among these handles").
func New(ctx *chainctx.MainContext, store *storage.Engine, v *verifier.Verifier, pool *txpool.Pool, router *Router, manager *PoolManager, reorg *verifier.ReorgLock, readerThreads int) *Service {
	return &Service{
		ctx:      ctx,
		store:    store,
		verifier: v,
		pool:     pool,
		router:   router,
		manager:  manager,
		reorg:    reorg,
		readers:  NewReaderPool(readerThreads),
		guard:    txpool.NewTxsBeingHandled(),
	}
}

// SubmitBlock verifies, persists and advances the context engine for one
// main-chain block, in that order (§5 Ordering guarantees; §4.7). The reorg
// read lock is held only inside VerifyBlock; the write and NewBlock run
// together under commitMu.
func (s *Service) SubmitBlock(ctx stdcontext.Context, req verifier.VerifyBlockRequest) error {
	start := time.Now()
	defer submitBlockTimer.UpdateSince(start)

	info, err := s.verifier.VerifyBlock(ctx, req)
	if err != nil {
		blocksRejectedCounter.Inc(1)
		return err
	}

	s.commitMu.Lock()
	defer s.commitMu.Unlock()

	height := s.store.ChainHeight()
	if err := s.store.WriteBlock(info); err != nil {
		blocksRejectedCounter.Inc(1)
		return err
	}
	s.ctx.NewBlock(info, height)
	s.pool.RemoveByKeyImages(collectKeyImages(info))
	blocksAcceptedCounter.Inc(1)
	return nil
}

func collectKeyImages(info *ctypes.VerifiedBlockInformation) []ctypes.KeyImage {
	var out []ctypes.KeyImage
	collect := func(tx ctypes.Transaction) {
		for _, in := range tx.Inputs {
			if in.Kind == ctypes.InputToKey {
				out = append(out, in.KeyImage)
			}
		}
	}
	collect(info.Block.MinerTx)
	for _, tx := range info.Txs {
		collect(tx)
	}
	return out
}

// Reorg performs the write-locked rewind/replay sequence of §5: PopBlocks
// the current main chain, then WriteBlock each block of the new chain in
// order, taking the reorg lock's write side for the whole operation so no
// verifier observes a half-rewound chain.
func (s *Service) Reorg(ctx stdcontext.Context, popCount uint64, replay []*ctypes.VerifiedBlockInformation) (ctypes.ChainId, error) {
	s.reorg.Lock()
	defer s.reorg.Unlock()

	chain, err := s.store.PopBlocks(popCount)
	if err != nil {
		return ctypes.ChainId{}, err
	}

	if newHeight := s.store.ChainHeight(); newHeight > 0 {
		tail, err := s.store.ChainTail(newHeight - 1)
		if err != nil {
			return chain, errs.Iof(err, "reseed context after pop")
		}
		if err := s.ctx.PopBlocks(popCount, func() (chainctx.ChainTail, error) { return tail, nil }); err != nil {
			return chain, err
		}
	}

	s.commitMu.Lock()
	defer s.commitMu.Unlock()
	for _, info := range replay {
		height := s.store.ChainHeight()
		if err := s.store.WriteBlock(info); err != nil {
			return chain, err
		}
		s.ctx.NewBlock(info, height)
	}
	return chain, nil
}

// IncomingTxBatch is one batch of candidate transactions arriving together
// (from a peer relay or local submission), mirroring §4.5's AddTransaction
// request shape fanned out over N transactions.
type IncomingTxBatch struct {
	Txs   []ctypes.Transaction
	TxIds []ctypes.Hash
	Blobs [][]byte
	Hf    consensus.HFVersion
	// Kind and From describe how each tx arrived, for Dandelion++ routing
	// (§4.6 Route request): TxLocal for a locally-originated tx, TxStem for
	// one relayed to us in stem state by From, TxFluff otherwise.
	Kind dandelion.TxStateKind
	From PeerID
}

// SubmitTransactions runs the incoming-transaction flow of §2: structural
// + contextual verification, txpool dedup/insert, then Dandelion++ routing,
// for every not-already-known tx in the batch, each independently and
// concurrently bounded by the verifier's own compute pool.
//
// Grounded on the teacher's miner/worker fan-out (work/worker.go spins one
// goroutine per result and joins); here golang.org/x/sync/errgroup plays
// that role, with per-tx errors captured rather than cancelling siblings,
// since one bad tx in a batch must not drop the rest (§5 Bounded queues).
func (s *Service) SubmitTransactions(ctx stdcontext.Context, batch IncomingTxBatch) []error {
	start := time.Now()
	defer submitTxTimer.UpdateSince(start)

	tracker := s.guard.LocalTracker()
	defer tracker.Release()

	errsOut := make([]error, len(batch.Txs))
	g, gctx := errgroup.WithContext(ctx)
	for i := range batch.Txs {
		if !tracker.TryAdd(batch.TxIds[i]) {
			continue
		}
		i := i
		g.Go(func() error {
			txId := batch.TxIds[i]
			_, err, _ := s.sf.Do(string(txId[:]), func() (interface{}, error) {
				return nil, s.submitOneTx(gctx, batch, i)
			})
			errsOut[i] = err
			return nil
		})
	}
	_ = g.Wait()
	return errsOut
}

func (s *Service) submitOneTx(ctx stdcontext.Context, batch IncomingTxBatch, i int) error {
	tx := batch.Txs[i]
	txId := batch.TxIds[i]
	blob := batch.Blobs[i]

	if err := s.verifier.VerifyMempoolTx(ctx, tx, batch.Hf); err != nil {
		txsRejectedCounter.Inc(1)
		return err
	}

	var keyImages []ctypes.KeyImage
	for _, in := range tx.Inputs {
		if in.Kind == ctypes.InputToKey {
			keyImages = append(keyImages, in.KeyImage)
		}
	}

	if owner, err := s.pool.AddTransaction(txpool.AddTransactionRequest{
		TxId:      txId,
		BlobHash:  txId,
		Blob:      blob,
		KeyImages: keyImages,
		StateStem: batch.Kind != dandelion.TxFluff,
	}); err != nil {
		txsRejectedCounter.Inc(1)
		return err
	} else if owner != nil {
		logger.Debugw("transaction shares a key image with an already-pooled tx", "txid", txId, "owner", *owner)
		return errs.Consensusf("DoubleSpend", "tx %x conflicts with pooled tx %x", txId, *owner)
	}

	entry, _, found := s.pool.Get(txId)
	if !found {
		return nil
	}

	s.manager.Submit(dandelion.IncomingTx[txpool.Entry, ctypes.Hash, PeerID]{
		Tx:   entry,
		TxId: txId,
		State: dandelion.TxState[PeerID]{
			Kind: batch.Kind,
			From: batch.From,
		},
	})

	txsAcceptedCounter.Inc(1)
	return nil
}

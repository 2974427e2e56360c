package dispatch

import (
	stdcontext "context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"git.gammaspectra.live/P2Pool/monero-node-core/consensus"
	chainctx "git.gammaspectra.live/P2Pool/monero-node-core/context"
	"git.gammaspectra.live/P2Pool/monero-node-core/dandelion"
	"git.gammaspectra.live/P2Pool/monero-node-core/storage"
	"git.gammaspectra.live/P2Pool/monero-node-core/storage/database"
	"git.gammaspectra.live/P2Pool/monero-node-core/txpool"
	ctypes "git.gammaspectra.live/P2Pool/monero-node-core/types"
	"git.gammaspectra.live/P2Pool/monero-node-core/verifier"
)

// capturingSink records every transaction the router decided to fluff,
// standing in for the P2P broadcast collaborator (§1).
type capturingSink struct {
	mu  sync.Mutex
	got []txpool.Entry
}

func (s *capturingSink) Diffuse(tx txpool.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.got = append(s.got, tx)
	return nil
}

func (s *capturingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.got)
}

// noPeers never offers a stem candidate, so the router always degrades to
// fluffing (§4.6: "If Stem is selected but stem_peers is empty, fall back
// to fluff").
type noPeers struct{}

func (noPeers) Peers() <-chan dandelion.OutboundPeer[PeerID, txpool.Entry] {
	ch := make(chan dandelion.OutboundPeer[PeerID, txpool.Entry])
	close(ch)
	return ch
}

func newTestService(t *testing.T) (*Service, *capturingSink) {
	t.Helper()
	store, err := storage.New(storage.Config{Dir: t.TempDir(), DBType: database.MemoryDB, Sync: storage.SyncSafe})
	require.NoError(t, err)
	t.Cleanup(store.Close)

	mc := chainctx.NewMainContext(consensus.Mainnet)
	mc.Seed(chainctx.ChainTail{HardForkCurrent: consensus.HFVersion1})

	pool := verifier.NewComputePool(1)
	reorg := &verifier.ReorgLock{}
	v := verifier.New(mc, store, pool, reorg, nil, nil, nil)

	txPool := txpool.New()
	sink := &capturingSink{}
	cfg := dandelion.Config{FluffProbability: 1, EpochDuration: time.Hour, StemGraphSize: 1, EmbargoMeanSeconds: 1}
	router := dandelion.NewRouter[PeerID, txpool.Entry](sink, noPeers{}, cfg)
	manager := dandelion.NewPoolManager[txpool.Entry, ctypes.Hash, PeerID](router, txPool, cfg)

	runCtx, cancel := stdcontext.WithCancel(stdcontext.Background())
	t.Cleanup(cancel)
	go manager.Run(runCtx)

	svc := New(mc, store, v, txPool, router, manager, reorg, 4)
	return svc, sink
}

func unmixableTx(keyImage ctypes.Hash) ctypes.Transaction {
	return ctypes.Transaction{
		Version: ctypes.TxVersionOne,
		Inputs: []ctypes.Input{
			{Kind: ctypes.InputToKey, Amount: 1000, KeyOffsets: []uint64{5}, KeyImage: keyImage},
		},
		Outputs: []ctypes.Output{{Amount: 1000}},
		Fee:     10,
	}
}

func TestSubmitTransactionsAcceptsAndRoutesLocalTx(t *testing.T) {
	svc, sink := newTestService(t)

	txId := ctypes.Hash{0x01}
	batch := IncomingTxBatch{
		Txs:   []ctypes.Transaction{unmixableTx(ctypes.Hash{0x02})},
		TxIds: []ctypes.Hash{txId},
		Blobs: [][]byte{{0x01, 0x02}},
		Hf:    consensus.HFVersion1,
		Kind:  dandelion.TxLocal,
	}

	errsOut := svc.SubmitTransactions(stdcontext.Background(), batch)
	require.Len(t, errsOut, 1)
	require.NoError(t, errsOut[0])

	entry, _, found := svc.pool.Get(txId)
	require.True(t, found)
	require.Equal(t, txId, entry.TxId)

	require.Eventually(t, func() bool { return sink.count() == 1 }, time.Second, time.Millisecond,
		"a local tx with no stem peers available must fall back to fluff")
}

func TestSubmitTransactionsRejectsStructurallyInvalidTx(t *testing.T) {
	svc, _ := newTestService(t)

	batch := IncomingTxBatch{
		Txs:   []ctypes.Transaction{{Version: ctypes.TxVersionOne}}, // no inputs
		TxIds: []ctypes.Hash{{0x03}},
		Blobs: [][]byte{{0x00}},
		Hf:    consensus.HFVersion1,
		Kind:  dandelion.TxLocal,
	}

	errsOut := svc.SubmitTransactions(stdcontext.Background(), batch)
	require.Len(t, errsOut, 1)
	require.Error(t, errsOut[0])

	_, _, found := svc.pool.Get(batch.TxIds[0])
	require.False(t, found, "a structurally rejected tx must never enter the pool")
}

func TestSubmitBlockRejectsBadHardForkVersion(t *testing.T) {
	svc, _ := newTestService(t)

	req := verifier.VerifyBlockRequest{
		Block: ctypes.Block{
			Header: ctypes.BlockHeader{MajorVersion: 0}, // out of [1,16]
		},
	}
	err := svc.SubmitBlock(stdcontext.Background(), req)
	require.Error(t, err)
	require.EqualValues(t, 0, svc.store.ChainHeight())
}

func TestReorgOnEmptyChainReturnsError(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.Reorg(stdcontext.Background(), 1, nil)
	require.Error(t, err, "popping a block off an empty chain must fail, not underflow")
}

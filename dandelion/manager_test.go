package dandelion

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type memStore struct {
	txs   map[int]string
	stem  map[int]bool
}

func newMemStore() *memStore {
	return &memStore{txs: make(map[int]string), stem: make(map[int]bool)}
}

func (s *memStore) Get(id int) (string, bool, bool) {
	tx, ok := s.txs[id]
	if !ok {
		return "", false, false
	}
	return tx, s.stem[id], true
}

func (s *memStore) Promote(id int) error {
	s.stem[id] = false
	return nil
}

func TestPoolManagerSamePeerTwiceForcesFluff(t *testing.T) {
	sink := &fakeSink{}
	peer := &fakePeer{id: 1}
	router := NewRouter[int, string](sink, newStaticSource(peer), Config{FluffProbability: 0, EpochDuration: time.Hour, StemGraphSize: 1})

	store := newMemStore()
	store.txs[42] = "txblob"
	store.stem[42] = true

	mgr := NewPoolManager[string, int, int](router, store, Config{EmbargoMeanSeconds: 1})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go mgr.Run(ctx)

	mgr.Submit(IncomingTx[string, int, int]{Tx: "txblob", TxId: 42, State: TxState[int]{Kind: TxStem, From: 9}})
	require.Equal(t, []string{"txblob"}, peer.stemmed)

	// Same peer relays it again: force-promote and fluff instead of
	// stemming a second time.
	mgr.Submit(IncomingTx[string, int, int]{Tx: "txblob", TxId: 42, State: TxState[int]{Kind: TxStem, From: 9}})

	require.Eventually(t, func() bool {
		return len(sink.diffused) == 1
	}, time.Second, time.Millisecond)
	require.Equal(t, []string{"txblob"}, sink.diffused)
	require.False(t, store.stem[42])
}

func TestPoolManagerEmbargoPromotesOnExpiry(t *testing.T) {
	sink := &fakeSink{}
	peer := &fakePeer{id: 1}
	router := NewRouter[int, string](sink, newStaticSource(peer), Config{FluffProbability: 0, EpochDuration: time.Hour, StemGraphSize: 1})

	store := newMemStore()
	store.txs[7] = "blob7"
	store.stem[7] = true

	mgr := NewPoolManager[string, int, int](router, store, Config{EmbargoMeanSeconds: 0.001})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go mgr.Run(ctx)

	mgr.Submit(IncomingTx[string, int, int]{Tx: "blob7", TxId: 7, State: TxState[int]{Kind: TxLocal}})

	require.Eventually(t, func() bool {
		return len(sink.diffused) == 1
	}, time.Second, time.Millisecond)
	require.False(t, store.stem[7])
}

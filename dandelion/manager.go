package dandelion

import (
	"container/heap"
	"context"
	"math"
	"math/rand"
	"time"
)

// TxStore is the minimal slice of the backing transaction pool (C5) the
// pool manager needs: enough to promote a stemmed tx to fluff and fetch it
// back after a routing failure (§4.6, §4.7: "C6 holds handles to C5").
type TxStore[Tx any, TxId comparable] interface {
	Get(id TxId) (tx Tx, stem bool, found bool)
	Promote(id TxId) error
}

// IncomingTx is one transaction submitted to the pool manager for routing.
type IncomingTx[Tx any, TxId comparable, PeerID comparable] struct {
	Tx    Tx
	TxId  TxId
	State TxState[PeerID]
}

// embargoEntry is one armed embargo timer (§4.6 Embargo).
type embargoEntry[TxId comparable] struct {
	deadline time.Time
	txId     TxId
	index    int
}

type embargoQueue[TxId comparable] []*embargoEntry[TxId]

func (q embargoQueue[TxId]) Len() int           { return len(q) }
func (q embargoQueue[TxId]) Less(i, j int) bool { return q[i].deadline.Before(q[j].deadline) }
func (q embargoQueue[TxId]) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}
func (q *embargoQueue[TxId]) Push(x any) {
	e := x.(*embargoEntry[TxId])
	e.index = len(*q)
	*q = append(*q, e)
}
func (q *embargoQueue[TxId]) Pop() any {
	old := *q
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return e
}

// PoolManager is C6's stateful loop: it owns the embargo timers and the
// stem-origin bookkeeping needed for the same-peer-twice antispam
// heuristic, driving Router.Route and promoting transactions into the
// backing store's fluff pool (§4.6 Embargo).
//
// Grounded on cuprate's dandelion-tower pool::manager::DandelionPoolManager:
// the same embargo/stem-origin/routing-result state machine, translated
// from a tokio::select! loop over an mpsc channel, a JoinSet of routing
// futures and a tokio_util::DelayQueue into a single-goroutine Go select
// loop over channels and a container/heap timer queue — no DelayQueue
// analogue exists anywhere in the retrieved pack, so the heap+timer idiom
// is built directly on the standard library (see DESIGN.md).
type PoolManager[Tx any, TxId comparable, PeerID comparable] struct {
	router *Router[PeerID, Tx]
	store  TxStore[Tx, TxId]
	config Config

	incoming chan incomingTxRequest[Tx, TxId, PeerID]

	rng *rand.Rand
}

type incomingTxRequest[Tx any, TxId comparable, PeerID comparable] struct {
	tx   IncomingTx[Tx, TxId, PeerID]
	done chan struct{}
}

func NewPoolManager[Tx any, TxId comparable, PeerID comparable](router *Router[PeerID, Tx], store TxStore[Tx, TxId], config Config) *PoolManager[Tx, TxId, PeerID] {
	return &PoolManager[Tx, TxId, PeerID]{
		router:   router,
		store:    store,
		config:   config,
		incoming: make(chan incomingTxRequest[Tx, TxId, PeerID]),
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Submit hands a newly accepted transaction to the pool manager for
// routing, blocking until the initial routing decision (stem or fluff) has
// been made; embargo follow-up continues in the background on Run's
// goroutine.
func (m *PoolManager[Tx, TxId, PeerID]) Submit(tx IncomingTx[Tx, TxId, PeerID]) {
	req := incomingTxRequest[Tx, TxId, PeerID]{tx: tx, done: make(chan struct{})}
	m.incoming <- req
	<-req.done
}

// Run drives the pool manager's event loop until ctx is done. Call it once,
// from its own goroutine.
func (m *PoolManager[Tx, TxId, PeerID]) Run(ctx context.Context) {
	stemOrigins := make(map[TxId]map[PeerID]struct{})
	queue := &embargoQueue[TxId]{}
	heap.Init(queue)

	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	resetTimer := func() {
		if queue.Len() == 0 {
			return
		}
		d := time.Until((*queue)[0].deadline)
		if d < 0 {
			d = 0
		}
		timer.Reset(d)
	}

	armEmbargo := func(txId TxId) {
		mean := m.config.EmbargoMeanSeconds
		if mean <= 0 {
			mean = 1
		}
		// Exponential(rate = 1/mean) via inverse-CDF sampling, matching the
		// reference implementation's rand_distr::Exp parameterization
		// (§4.6 Embargo).
		u := m.rng.Float64()
		for u == 0 {
			u = m.rng.Float64()
		}
		seconds := -mean * math.Log(u)
		wasEmpty := queue.Len() == 0
		heap.Push(queue, &embargoEntry[TxId]{
			deadline: time.Now().Add(time.Duration(seconds * float64(time.Second))),
			txId:     txId,
		})
		if wasEmpty || (*queue)[0].txId == txId {
			resetTimer()
		}
	}

	promoteAndFluff := func(txId TxId) {
		tx, stem, found := m.store.Get(txId)
		if !found || !stem {
			logger.Debugw("transaction gone from stem pool, skipping embargo promotion")
			return
		}
		if err := m.store.Promote(txId); err != nil {
			logger.Errorw("failed to promote transaction", "err", err)
			return
		}
		delete(stemOrigins, txId)
		if _, err := m.router.Route(tx, TxState[PeerID]{Kind: TxFluff}); err != nil {
			logger.Errorw("failed to fluff promoted transaction", "err", err)
		}
	}

	handle := func(tx Tx, txId TxId, state TxState[PeerID]) {
		switch state.Kind {
		case TxStem:
			origins := stemOrigins[txId]
			if origins == nil {
				origins = make(map[PeerID]struct{})
				stemOrigins[txId] = origins
			}
			if _, seen := origins[state.From]; seen {
				logger.Debugw("received stem tx twice from same peer, fluffing it")
				promoteAndFluff(txId)
				return
			}
			origins[state.From] = struct{}{}
			if _, err := m.router.Route(tx, state); err != nil {
				logger.Errorw("error routing stem transaction", "err", err)
				return
			}
			armEmbargo(txId)
		case TxLocal:
			if _, err := m.router.Route(tx, state); err != nil {
				logger.Errorw("error routing local transaction", "err", err)
				return
			}
			armEmbargo(txId)
		case TxFluff:
			if _, err := m.router.Route(tx, state); err != nil {
				logger.Errorw("error routing fluffed transaction", "err", err)
			}
		}
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			if queue.Len() == 0 {
				continue
			}
			e := heap.Pop(queue).(*embargoEntry[TxId])
			logger.Debugw("embargo timer fired, did not see stem tx fluffed in time")
			promoteAndFluff(e.txId)
			resetTimer()
		case req := <-m.incoming:
			handle(req.tx.Tx, req.tx.TxId, req.tx.State)
			close(req.done)
		}
	}
}

// Package txpool implements the transaction pool (C5): two logical
// sub-pools, stem and fluff, holding not-yet-mined transactions pending
// Dandelion++ routing and eventual inclusion in a block (§4.5).
//
// Grounded on the teacher's node/sc/bridge_tx_pool.go: an RWMutex-guarded
// map keyed by hash, backed by a registered metrics counter, generalized
// here from one pool keyed by account to two pools keyed by tx id.
package txpool

import (
	"sync"
	"time"

	"github.com/rcrowley/go-metrics"

	"git.gammaspectra.live/P2Pool/monero-node-core/errs"
	"git.gammaspectra.live/P2Pool/monero-node-core/internal/xlog"
	ctypes "git.gammaspectra.live/P2Pool/monero-node-core/types"
)

var logger = xlog.NewModuleLogger(xlog.ModuleTxPool)

var (
	stemSizeGauge  = metrics.NewRegisteredGauge("txpool/stem/size", nil)
	fluffSizeGauge = metrics.NewRegisteredGauge("txpool/fluff/size", nil)
	addedCounter   = metrics.NewRegisteredCounter("txpool/added", nil)
	promotedCounter = metrics.NewRegisteredCounter("txpool/promoted", nil)
)

// Entry is what the pool stores per transaction (§4.5).
type Entry struct {
	TxId      ctypes.Hash
	BlobHash  ctypes.Hash
	Blob      []byte
	KeyImages []ctypes.KeyImage
	Stem      bool
	Promoted  bool
	Arrived   time.Time
}

// Pool is C5's backing store: a stem sub-pool and a fluff sub-pool, plus
// the indices needed to dedup incoming wire frames and detect in-pool
// double spends before a tx is ever stemmed or fluffed (§4.5 Invariants).
type Pool struct {
	mu sync.RWMutex

	byId       map[ctypes.Hash]*Entry // tx id -> entry, across both sub-pools
	byBlobHash map[ctypes.Hash]ctypes.Hash // blob hash -> tx id, across both sub-pools
	byKeyImage map[ctypes.KeyImage]ctypes.Hash // key image -> owning tx id, in-pool conflict detection
}

func New() *Pool {
	return &Pool{
		byId:       make(map[ctypes.Hash]*Entry),
		byBlobHash: make(map[ctypes.Hash]ctypes.Hash),
		byKeyImage: make(map[ctypes.KeyImage]ctypes.Hash),
	}
}

// FilterKnownTxBlobHashes removes hashes already present in the pool,
// additionally reporting which of the known ones are currently in stem
// state (so the caller can decide to re-relay them, §4.5).
func (p *Pool) FilterKnownTxBlobHashes(blobHashes []ctypes.Hash) (unknown []ctypes.Hash, stemPoolHashes []ctypes.Hash) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	unknown = make([]ctypes.Hash, 0, len(blobHashes))
	for _, h := range blobHashes {
		txId, ok := p.byBlobHash[h]
		if !ok {
			unknown = append(unknown, h)
			continue
		}
		if e := p.byId[txId]; e != nil && e.Stem {
			stemPoolHashes = append(stemPoolHashes, txId)
		}
	}
	return unknown, stemPoolHashes
}

// AddTransactionRequest is C5's AddTransaction request (§4.5).
type AddTransactionRequest struct {
	TxId      ctypes.Hash
	BlobHash  ctypes.Hash
	Blob      []byte
	KeyImages []ctypes.KeyImage
	StateStem bool
}

// AddTransaction inserts tx into the stem or fluff sub-pool depending on
// StateStem. If any of its key images are already owned by a different
// pooled transaction, the new tx is rejected and that transaction's id is
// returned as the in-pool double-spend conflict (§4.5 AddTransaction).
func (p *Pool) AddTransaction(req AddTransactionRequest) (*ctypes.Hash, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if existing, ok := p.byId[req.TxId]; ok {
		// Already known: re-adding in fluff state promotes it, otherwise a
		// no-op, matching Promote's idempotence (§4.5 Invariants).
		if !req.StateStem && existing.Stem {
			p.promoteLocked(existing)
		}
		return nil, nil
	}

	for _, ki := range req.KeyImages {
		if owner, ok := p.byKeyImage[ki]; ok && owner != req.TxId {
			return &owner, nil
		}
	}

	e := &Entry{
		TxId:      req.TxId,
		BlobHash:  req.BlobHash,
		Blob:      req.Blob,
		KeyImages: req.KeyImages,
		Stem:      req.StateStem,
		Arrived:   time.Now(),
	}
	p.byId[req.TxId] = e
	p.byBlobHash[req.BlobHash] = req.TxId
	for _, ki := range req.KeyImages {
		p.byKeyImage[ki] = req.TxId
	}

	addedCounter.Inc(1)
	p.updateGaugesLocked()
	return nil, nil
}

// TxBlob returns the wire bytes for txId, or a NotFound error.
func (p *Pool) TxBlob(txId ctypes.Hash) ([]byte, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	e, ok := p.byId[txId]
	if !ok {
		return nil, errs.NotFoundf("transaction %x not in pool", txId)
	}
	return e.Blob, nil
}

// State reports whether txId is currently in the stem pool, for callers
// deciding how to route a re-seen tx.
func (p *Pool) State(txId ctypes.Hash) (stem bool, found bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	e, ok := p.byId[txId]
	if !ok {
		return false, false
	}
	return e.Stem, true
}

// Get returns a copy of the pool entry for txId, satisfying the
// dandelion.TxStore[Entry, ctypes.Hash] contract so the pool manager can
// re-fetch a transaction's blob after a routing failure or an embargo
// expiry (§4.7: "C6 holds handles to C5").
func (p *Pool) Get(txId ctypes.Hash) (Entry, bool, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	e, ok := p.byId[txId]
	if !ok {
		return Entry{}, false, false
	}
	return *e, e.Stem, true
}

// Promote moves a tx from stem to fluff. A no-op if the tx is already
// fluffed (§4.5 Invariants: "Promote is idempotent"); returns a NotFound
// error if the tx is not in the pool.
func (p *Pool) Promote(txId ctypes.Hash) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, ok := p.byId[txId]
	if !ok {
		return errs.NotFoundf("transaction %x not in pool", txId)
	}
	p.promoteLocked(e)
	return nil
}

func (p *Pool) promoteLocked(e *Entry) {
	if !e.Stem {
		return
	}
	e.Stem = false
	e.Promoted = true
	promotedCounter.Inc(1)
	p.updateGaugesLocked()
}

// RemoveByKeyImages drops every pooled transaction that spends any of
// images, called once those images appear in an accepted block (§4.5:
// "double-spend marker set if any of its key images appeared in an
// accepted block"). Returns the ids removed.
func (p *Pool) RemoveByKeyImages(images []ctypes.KeyImage) []ctypes.Hash {
	p.mu.Lock()
	defer p.mu.Unlock()

	seen := make(map[ctypes.Hash]struct{})
	for _, ki := range images {
		if txId, ok := p.byKeyImage[ki]; ok {
			seen[txId] = struct{}{}
		}
	}
	removed := make([]ctypes.Hash, 0, len(seen))
	for txId := range seen {
		p.removeLocked(txId)
		removed = append(removed, txId)
	}
	if len(removed) > 0 {
		p.updateGaugesLocked()
	}
	return removed
}

func (p *Pool) removeLocked(txId ctypes.Hash) {
	e, ok := p.byId[txId]
	if !ok {
		return
	}
	delete(p.byId, txId)
	delete(p.byBlobHash, e.BlobHash)
	for _, ki := range e.KeyImages {
		if owner, ok := p.byKeyImage[ki]; ok && owner == txId {
			delete(p.byKeyImage, ki)
		}
	}
}

func (p *Pool) updateGaugesLocked() {
	var stem, fluff int64
	for _, e := range p.byId {
		if e.Stem {
			stem++
		} else {
			fluff++
		}
	}
	stemSizeGauge.Update(stem)
	fluffSizeGauge.Update(fluff)
}

// Size reports the current (stem, fluff) pool sizes.
func (p *Pool) Size() (stem int, fluff int) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, e := range p.byId {
		if e.Stem {
			stem++
		} else {
			fluff++
		}
	}
	return stem, fluff
}

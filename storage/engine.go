// Package storage implements the storage engine (§4.3): the single source
// of truth for the main chain, every live alt chain, outputs and key
// images, fronted by one writer goroutine and read concurrently by any
// number of callers.
package storage

import (
	"path/filepath"
	"sync"

	"go.uber.org/atomic"

	"git.gammaspectra.live/P2Pool/monero-node-core/errs"
	"git.gammaspectra.live/P2Pool/monero-node-core/internal/xlog"
	"git.gammaspectra.live/P2Pool/monero-node-core/storage/database"
	ctypes "git.gammaspectra.live/P2Pool/monero-node-core/types"
)

var logger = xlog.NewModuleLogger(xlog.ModuleStorage)

// SyncMode selects how aggressively the engine flushes a commit to disk
// before acknowledging it (§6 "The environment's sync mode is configurable").
// FastThenSafe and Threshold from the reference implementation are declared
// but unimplemented there too (§9 Open Questions) and are omitted here.
type SyncMode uint8

const (
	// SyncSafe msyncs both tapes on every commit, before acknowledging it.
	// KV writes use the backend's default write options in every mode.
	SyncSafe SyncMode = iota
	// SyncAsync msyncs the tapes off the writer goroutine after each commit
	// without blocking it on completion.
	SyncAsync
	// SyncFast never flushes explicitly, relying on the OS to write back the
	// memory-mapped tapes and the KV backend's own durability on Close.
	SyncFast
)

// Config selects the backend and on-disk location for an Engine.
type Config struct {
	Dir              string
	DBType           database.DBType
	LevelDBCacheSize int
	LevelDBHandles   int
	Sync             SyncMode
}

// Engine is the storage engine. One Engine owns one database directory; all
// writes funnel through its single writer goroutine (writer.go), all reads
// run directly against the backend and the in-memory scalar state tracked
// below.
type Engine struct {
	db database.Database

	blockInfos    database.Database
	blockHeaders  database.Database
	blockTxHashes database.Database
	blockHeights  database.Database
	minerTxHashes database.Database // height -> miner tx hash
	txIds         database.Database
	txInfos       database.Database
	outputRefs    database.Database // tx id -> pre-RCT OutputId list, for clean PopBlocks removal
	keyImageRefs  database.Database // tx id -> key image list, for clean PopBlocks removal
	outputs       database.Database
	rctOutputs    database.Database
	numOutputs    database.Database
	keyImages     database.Database
	altHeights    database.Database
	altInfos      database.Database
	altBlockBlobs database.Database
	altTxBlobs    database.Database
	altChains     database.Database

	prunedTape   *tape
	prunableTape *tape
	hot          *hotCache
	sync         SyncMode

	queue *writeQueue

	// stateMu guards hasGenesis and coordinates composite read-modify-write
	// sequences that touch more than one of the counters below. The
	// counters themselves are atomic.Uint64: the single writer goroutine is
	// their only mutator, so readers load them lock-free instead of taking
	// stateMu just to see a scalar (§5 "a single writer... many readers").
	stateMu      sync.RWMutex
	hasGenesis   bool
	tipHeight    atomic.Uint64 // height of the last written block; genesis is height 0
	nextTxId     atomic.Uint64
	nextRctIndex atomic.Uint64
	totalTxCount atomic.Uint64
}

// New opens (or creates) the storage engine at cfg.Dir.
func New(cfg Config) (*Engine, error) {
	db, err := database.New(&database.DBConfig{
		Dir:              filepath.Join(cfg.Dir, "kv"),
		DBType:           cfg.DBType,
		LevelDBCacheSize: cfg.LevelDBCacheSize,
		LevelDBHandles:   cfg.LevelDBHandles,
	})
	if err != nil {
		return nil, errs.Iof(err, "open storage backend")
	}

	var prunedTape, prunableTape *tape
	if cfg.DBType != database.MemoryDB {
		prunedTape, err = openTape(filepath.Join(cfg.Dir, "pruned.tape"))
		if err != nil {
			db.Close()
			return nil, err
		}
		prunableTape, err = openTape(filepath.Join(cfg.Dir, "prunable.tape"))
		if err != nil {
			db.Close()
			prunedTape.Close()
			return nil, err
		}
	}

	e := &Engine{
		db:            db,
		blockInfos:    database.NewTable(db, "bi"),
		blockHeaders:  database.NewTable(db, "bh"),
		blockTxHashes: database.NewTable(db, "bt"),
		blockHeights:  database.NewTable(db, "bn"),
		minerTxHashes: database.NewTable(db, "mh"),
		txIds:         database.NewTable(db, "ti"),
		txInfos:       database.NewTable(db, "tf"),
		outputRefs:    database.NewTable(db, "or"),
		keyImageRefs:  database.NewTable(db, "kr"),
		outputs:       database.NewTable(db, "ou"),
		rctOutputs:    database.NewTable(db, "ro"),
		numOutputs:    database.NewTable(db, "no"),
		keyImages:     database.NewTable(db, "ki"),
		altHeights:    database.NewTable(db, "ah"),
		altInfos:      database.NewTable(db, "ai"),
		altBlockBlobs: database.NewTable(db, "ab"),
		altTxBlobs:    database.NewTable(db, "at"),
		altChains:     database.NewTable(db, "ac"),
		prunedTape:    prunedTape,
		prunableTape:  prunableTape,
		hot:           newHotCache(),
		sync:          cfg.Sync,
		queue:         newWriteQueue(),
	}

	if err := e.loadState(); err != nil {
		return nil, err
	}

	go e.writerLoop()
	return e, nil
}

// loadState scans BlockInfos for the current tip and recomputes the
// in-memory scalar counters a fresh process needs before serving requests.
func (e *Engine) loadState() error {
	it := e.blockInfos.NewIteratorWithPrefix(nil)
	defer it.Release()

	var top uint64
	found := false
	for it.Next() {
		h := decodeHeight(stripPrefix(it.Key()))
		if !found || h > top {
			top = h
			found = true
		}
	}
	e.hasGenesis = found
	e.tipHeight.Store(top)

	if found {
		info, err := e.blockExtendedHeaderLocked(top)
		if err == nil {
			e.nextRctIndex.Store(info.CumulativeRctOutputs)
		}
	}

	txIt := e.txInfos.NewIteratorWithPrefix(nil)
	defer txIt.Release()
	var maxTxId uint64
	var count uint64
	for txIt.Next() {
		id := decodeHeight(stripPrefix(txIt.Key()))
		if id+1 > maxTxId {
			maxTxId = id + 1
		}
		count++
	}
	e.nextTxId.Store(maxTxId)
	e.totalTxCount.Store(count)
	return nil
}

func (e *Engine) Close() {
	e.queue.close()
	e.db.Close()
	if e.prunedTape != nil {
		e.prunedTape.Close()
	}
	if e.prunableTape != nil {
		e.prunableTape.Close()
	}
}

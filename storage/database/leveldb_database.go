package database

import (
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/errors"
	"github.com/syndtr/goleveldb/leveldb/filter"
	"github.com/syndtr/goleveldb/leveldb/iterator"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/util"

	"github.com/rcrowley/go-metrics"
)

type levelDB struct {
	fn string
	db *leveldb.DB

	compReadMeter  metrics.Meter
	compWriteMeter metrics.Meter
	diskReadMeter  metrics.Meter
	diskWriteMeter metrics.Meter
}

func ldbOptions(cacheSize, handles int) *opt.Options {
	if cacheSize < 16 {
		cacheSize = 16
	}
	if handles < 16 {
		handles = 16
	}
	return &opt.Options{
		OpenFilesCacheCapacity: handles,
		BlockCacheCapacity:     cacheSize / 2 * opt.MiB,
		WriteBuffer:            cacheSize / 4 * opt.MiB,
		Filter:                 filter.NewBloomFilter(10),
		Compression:            opt.SnappyCompression,
	}
}

// NewLDBDatabase opens (or recovers) the goleveldb environment that all of
// the engine's logical tables share.
func NewLDBDatabase(dir string, cacheSize, handles int) (Database, error) {
	opts := ldbOptions(cacheSize, handles)
	db, err := leveldb.OpenFile(dir, opts)
	if _, corrupted := err.(*errors.ErrCorrupted); corrupted {
		logger.Warnw("leveldb corruption detected, attempting recovery", "dir", dir)
		db, err = leveldb.RecoverFile(dir, nil)
	}
	if err != nil {
		return nil, err
	}
	return &levelDB{
		fn:             dir,
		db:             db,
		compReadMeter:  newRegisteredMeter("storage/leveldb/compaction/read"),
		compWriteMeter: newRegisteredMeter("storage/leveldb/compaction/write"),
		diskReadMeter:  newRegisteredMeter("storage/leveldb/disk/read"),
		diskWriteMeter: newRegisteredMeter("storage/leveldb/disk/write"),
	}, nil
}

func (db *levelDB) Type() DBType { return LevelDB }
func (db *levelDB) Path() string { return db.fn }

func (db *levelDB) Put(key, value []byte) error { return db.db.Put(key, value, nil) }
func (db *levelDB) Has(key []byte) (bool, error) { return db.db.Has(key, nil) }
func (db *levelDB) Get(key []byte) ([]byte, error) { return db.db.Get(key, nil) }
func (db *levelDB) Delete(key []byte) error { return db.db.Delete(key, nil) }

func (db *levelDB) NewIteratorWithPrefix(prefix []byte) Iterator {
	return &ldbIterator{it: db.db.NewIterator(util.BytesPrefix(prefix), nil)}
}

func (db *levelDB) Close() {
	if err := db.db.Close(); err != nil {
		logger.Errorw("failed to close leveldb", "dir", db.fn, "err", err)
	}
}

func (db *levelDB) Meter(prefix string) {
	s := new(leveldb.DBStats)
	if err := db.db.Stats(s); err != nil {
		return
	}
	var read, write int64
	for i := range s.LevelRead {
		read += s.LevelRead[i]
		write += s.LevelWrite[i]
	}
	db.compReadMeter.Mark(read)
	db.compWriteMeter.Mark(write)
	db.diskReadMeter.Mark(int64(s.IORead))
	db.diskWriteMeter.Mark(int64(s.IOWrite))
}

func (db *levelDB) NewBatch() Batch {
	return &ldbBatch{db: db.db, b: new(leveldb.Batch)}
}

type ldbIterator struct {
	it iterator.Iterator
}

func (i *ldbIterator) Next() bool     { return i.it.Next() }
func (i *ldbIterator) Key() []byte    { return i.it.Key() }
func (i *ldbIterator) Value() []byte  { return i.it.Value() }
func (i *ldbIterator) Release()       { i.it.Release() }
func (i *ldbIterator) Error() error   { return i.it.Error() }

type ldbBatch struct {
	db   *leveldb.DB
	b    *leveldb.Batch
	size int
}

func (b *ldbBatch) Put(key, value []byte) error {
	b.b.Put(key, value)
	b.size += len(key) + len(value)
	return nil
}

func (b *ldbBatch) Delete(key []byte) error {
	b.b.Delete(key)
	b.size += len(key)
	return nil
}

func (b *ldbBatch) Write() error     { return b.db.Write(b.b, nil) }
func (b *ldbBatch) ValueSize() int   { return b.size }
func (b *ldbBatch) Reset()           { b.b.Reset(); b.size = 0 }

package database

import (
	"time"

	"github.com/dgraph-io/badger"
)

const gcSizeThreshold = int64(1 << 30)
const gcTickInterval = time.Minute

type badgerDatabase struct {
	fn       string
	db       *badger.DB
	gcTicker *time.Ticker
	quit     chan struct{}
}

// NewBadgerDatabase opens a badger environment, grounded on the teacher's
// badger_database.go including its background value-log GC loop.
func NewBadgerDatabase(dir string) (Database, error) {
	opts := badger.DefaultOptions
	opts.Dir = dir
	opts.ValueDir = dir

	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}

	bd := &badgerDatabase{
		fn:       dir,
		db:       db,
		gcTicker: time.NewTicker(gcTickInterval),
		quit:     make(chan struct{}),
	}
	go bd.runValueLogGC()
	return bd, nil
}

func (bd *badgerDatabase) runValueLogGC() {
	_, lastSize := bd.db.Size()
	for {
		select {
		case <-bd.quit:
			return
		case <-bd.gcTicker.C:
			_, curSize := bd.db.Size()
			if curSize-lastSize < gcSizeThreshold {
				continue
			}
			if err := bd.db.RunValueLogGC(0.5); err != nil {
				logger.Debugw("value log GC skipped", "err", err)
				continue
			}
			_, lastSize = bd.db.Size()
		}
	}
}

func (bd *badgerDatabase) Type() DBType { return BadgerDB }
func (bd *badgerDatabase) Path() string { return bd.fn }

func (bd *badgerDatabase) Put(key, value []byte) error {
	txn := bd.db.NewTransaction(true)
	defer txn.Discard()
	if err := txn.Set(key, value); err != nil {
		return err
	}
	return txn.Commit(nil)
}

func (bd *badgerDatabase) Has(key []byte) (bool, error) {
	txn := bd.db.NewTransaction(false)
	defer txn.Discard()
	_, err := txn.Get(key)
	if err == badger.ErrKeyNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (bd *badgerDatabase) Get(key []byte) ([]byte, error) {
	txn := bd.db.NewTransaction(false)
	defer txn.Discard()
	item, err := txn.Get(key)
	if err != nil {
		return nil, err
	}
	return item.Value()
}

func (bd *badgerDatabase) Delete(key []byte) error {
	txn := bd.db.NewTransaction(true)
	defer txn.Discard()
	if err := txn.Delete(key); err != nil {
		return err
	}
	return txn.Commit(nil)
}

func (bd *badgerDatabase) NewIteratorWithPrefix(prefix []byte) Iterator {
	txn := bd.db.NewTransaction(false)
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	it := txn.NewIterator(opts)
	it.Seek(prefix)
	return &badgerIterator{txn: txn, it: it, prefix: prefix, started: false}
}

type badgerIterator struct {
	txn     *badger.Txn
	it      *badger.Iterator
	prefix  []byte
	started bool
	value   []byte
}

func (i *badgerIterator) Next() bool {
	if i.started {
		i.it.Next()
	}
	i.started = true
	return i.it.ValidForPrefix(i.prefix)
}

func (i *badgerIterator) Key() []byte {
	return append([]byte(nil), i.it.Item().Key()...)
}

func (i *badgerIterator) Value() []byte {
	v, err := i.it.Item().Value()
	if err != nil {
		return nil
	}
	return append([]byte(nil), v...)
}

func (i *badgerIterator) Release() {
	i.it.Close()
	i.txn.Discard()
}

func (i *badgerIterator) Error() error { return nil }

func (bd *badgerDatabase) Close() {
	close(bd.quit)
	bd.gcTicker.Stop()
	if err := bd.db.Close(); err != nil {
		logger.Errorw("failed to close badger db", "dir", bd.fn, "err", err)
	}
}

func (bd *badgerDatabase) Meter(prefix string) {
	logger.Debugw("badger backend does not export go-metrics counters", "prefix", prefix)
}

func (bd *badgerDatabase) NewBatch() Batch {
	return &badgerBatch{db: bd.db, txn: bd.db.NewTransaction(true)}
}

// badgerBatch buffers puts/deletes in a single transaction, mirroring the
// teacher's badgerBatch (one txn per batch, committed on Write).
type badgerBatch struct {
	db   *badger.DB
	txn  *badger.Txn
	size int
}

func (b *badgerBatch) Put(key, value []byte) error {
	b.size += len(key) + len(value)
	return b.txn.Set(key, value)
}

func (b *badgerBatch) Delete(key []byte) error {
	b.size += len(key)
	return b.txn.Delete(key)
}

func (b *badgerBatch) Write() error   { return b.txn.Commit(nil) }
func (b *badgerBatch) ValueSize() int { return b.size }

func (b *badgerBatch) Reset() {
	b.txn.Discard()
	b.txn = b.db.NewTransaction(true)
	b.size = 0
}

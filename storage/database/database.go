// Package database provides the key/value backend abstraction the storage
// engine (§4.3) builds its tables on top of. It mirrors the teacher's
// db_manager.go layering (a Database interface, a Batch interface, a table
// wrapper for prefixed keys) collapsed to a single selectable backend since
// this core's tables share one environment rather than klaytn's many
// per-concern partitions.
package database

import (
	"github.com/pkg/errors"
	"github.com/rcrowley/go-metrics"

	"git.gammaspectra.live/P2Pool/monero-node-core/internal/xlog"
)

var logger = xlog.NewModuleLogger(xlog.ModuleStorage)

// DBType selects the on-disk backend.
type DBType string

const (
	LevelDB  DBType = "leveldb"
	BadgerDB DBType = "badger"
	MemoryDB DBType = "memory"
)

// Database is the minimal key/value contract every backend implements.
type Database interface {
	Type() DBType
	Path() string

	Put(key, value []byte) error
	Has(key []byte) (bool, error)
	Get(key []byte) ([]byte, error)
	Delete(key []byte) error

	NewIteratorWithPrefix(prefix []byte) Iterator

	NewBatch() Batch
	Meter(prefix string)
	Close()
}

// Iterator walks a key range in ascending key order.
type Iterator interface {
	Next() bool
	Key() []byte
	Value() []byte
	Release()
	Error() error
}

// Batch buffers writes for a single atomic commit, mirroring the teacher's
// Batch contract (Put/Write/ValueSize/Reset) so the engine's write path is
// identical regardless of backend.
type Batch interface {
	Put(key, value []byte) error
	Delete(key []byte) error
	Write() error
	ValueSize() int
	Reset()
}

// DBConfig configures the single backing store the engine opens.
type DBConfig struct {
	Dir    string
	DBType DBType

	LevelDBCacheSize int
	LevelDBHandles   int
}

// New opens a backend according to cfg.DBType, defaulting to LevelDB the way
// the teacher's newDatabase falls back when DBType is unset.
func New(cfg *DBConfig) (Database, error) {
	switch cfg.DBType {
	case LevelDB:
		return NewLDBDatabase(cfg.Dir, cfg.LevelDBCacheSize, cfg.LevelDBHandles)
	case BadgerDB:
		return NewBadgerDatabase(cfg.Dir)
	case MemoryDB:
		return NewMemDatabase(), nil
	case "":
		logger.Info("database type unset, defaulting to leveldb")
		return NewLDBDatabase(cfg.Dir, cfg.LevelDBCacheSize, cfg.LevelDBHandles)
	default:
		return nil, errors.Errorf("unknown database type %q", cfg.DBType)
	}
}

// table namespaces a Database under a fixed key prefix, used to share one
// physical backend across the engine's several logical tables (§4.3).
type table struct {
	db     Database
	prefix string
}

// NewTable returns db restricted to keys under prefix.
func NewTable(db Database, prefix string) Database {
	return &table{db: db, prefix: prefix}
}

func (t *table) Type() DBType  { return t.db.Type() }
func (t *table) Path() string  { return t.db.Path() }
func (t *table) Meter(p string) { t.db.Meter(p) }
func (t *table) Close()        {}

func (t *table) key(k []byte) []byte {
	key := make([]byte, 0, len(t.prefix)+len(k))
	key = append(key, t.prefix...)
	key = append(key, k...)
	return key
}

func (t *table) Put(k, v []byte) error      { return t.db.Put(t.key(k), v) }
func (t *table) Has(k []byte) (bool, error) { return t.db.Has(t.key(k)) }
func (t *table) Get(k []byte) ([]byte, error) { return t.db.Get(t.key(k)) }
func (t *table) Delete(k []byte) error      { return t.db.Delete(t.key(k)) }

func (t *table) NewIteratorWithPrefix(prefix []byte) Iterator {
	return t.db.NewIteratorWithPrefix(t.key(prefix))
}

func (t *table) NewBatch() Batch {
	return &tableBatch{batch: t.db.NewBatch(), prefix: t.prefix}
}

type tableBatch struct {
	batch  Batch
	prefix string
}

func (tb *tableBatch) prefixed(k []byte) []byte {
	key := make([]byte, 0, len(tb.prefix)+len(k))
	key = append(key, tb.prefix...)
	key = append(key, k...)
	return key
}

func (tb *tableBatch) Put(k, v []byte) error { return tb.batch.Put(tb.prefixed(k), v) }
func (tb *tableBatch) Delete(k []byte) error  { return tb.batch.Delete(tb.prefixed(k)) }
func (tb *tableBatch) Write() error           { return tb.batch.Write() }
func (tb *tableBatch) ValueSize() int         { return tb.batch.ValueSize() }
func (tb *tableBatch) Reset()                 { tb.batch.Reset() }

// newRegisteredMeter is a thin helper so backends can register go-metrics
// meters without each reimplementing the nil-metrics-disabled guard.
func newRegisteredMeter(prefix string) metrics.Meter {
	if !metrics.Enabled {
		return metrics.NilMeter{}
	}
	return metrics.GetOrRegisterMeter(prefix, metrics.DefaultRegistry)
}

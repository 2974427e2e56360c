package database

import (
	"bytes"
	"sort"
	"sync"

	"github.com/pkg/errors"
)

// MemDatabase is an in-memory Database, used by tests and by
// DBType=MemoryDB for ephemeral nodes. Grounded on the teacher's
// NewMemoryDBManager path (db_manager.go), which assumes a MemDatabase type
// with the same Database surface as the on-disk backends.
type MemDatabase struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func NewMemDatabase() *MemDatabase {
	return &MemDatabase{data: make(map[string][]byte)}
}

func (db *MemDatabase) Type() DBType { return MemoryDB }
func (db *MemDatabase) Path() string { return "" }

func (db *MemDatabase) Put(key, value []byte) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.data[string(key)] = append([]byte(nil), value...)
	return nil
}

func (db *MemDatabase) Has(key []byte) (bool, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	_, ok := db.data[string(key)]
	return ok, nil
}

func (db *MemDatabase) Get(key []byte) ([]byte, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	v, ok := db.data[string(key)]
	if !ok {
		return nil, errors.New("not found")
	}
	return append([]byte(nil), v...), nil
}

func (db *MemDatabase) Delete(key []byte) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	delete(db.data, string(key))
	return nil
}

func (db *MemDatabase) NewIteratorWithPrefix(prefix []byte) Iterator {
	db.mu.RLock()
	defer db.mu.RUnlock()

	var keys []string
	for k := range db.data {
		if bytes.HasPrefix([]byte(k), prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	return &memIterator{db: db, keys: keys, idx: -1}
}

type memIterator struct {
	db   *MemDatabase
	keys []string
	idx  int
}

func (i *memIterator) Next() bool {
	i.idx++
	return i.idx < len(i.keys)
}

func (i *memIterator) Key() []byte {
	return []byte(i.keys[i.idx])
}

func (i *memIterator) Value() []byte {
	v, _ := i.db.Get([]byte(i.keys[i.idx]))
	return v
}

func (i *memIterator) Release()     {}
func (i *memIterator) Error() error { return nil }

func (db *MemDatabase) Close()              {}
func (db *MemDatabase) Meter(prefix string) {}

func (db *MemDatabase) NewBatch() Batch {
	return &memBatch{db: db}
}

type memOp struct {
	key    []byte
	value  []byte
	delete bool
}

type memBatch struct {
	db   *MemDatabase
	ops  []memOp
	size int
}

func (b *memBatch) Put(key, value []byte) error {
	b.ops = append(b.ops, memOp{key: append([]byte(nil), key...), value: append([]byte(nil), value...)})
	b.size += len(key) + len(value)
	return nil
}

func (b *memBatch) Delete(key []byte) error {
	b.ops = append(b.ops, memOp{key: append([]byte(nil), key...), delete: true})
	b.size += len(key)
	return nil
}

func (b *memBatch) Write() error {
	b.db.mu.Lock()
	defer b.db.mu.Unlock()
	for _, op := range b.ops {
		if op.delete {
			delete(b.db.data, string(op.key))
		} else {
			b.db.data[string(op.key)] = op.value
		}
	}
	return nil
}

func (b *memBatch) ValueSize() int { return b.size }

func (b *memBatch) Reset() {
	b.ops = nil
	b.size = 0
}

// Package storage provides an in-memory database.Database used by
// tests and as the node's fallback when BadgerDB cannot be opened.
package storage

import (
	"bytes"
	"context"
	"sort"
	"sync"

	"github.com/luxfi/database"
)

// MemDB is a sorted in-memory key-value database. Iterators operate on
// a snapshot taken at creation time.
type MemDB struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func New() *MemDB {
	return &MemDB{data: make(map[string][]byte)}
}

func (m *MemDB) Get(key []byte) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	val, ok := m.data[string(key)]
	if !ok {
		return nil, database.ErrNotFound
	}
	return append([]byte(nil), val...), nil
}

func (m *MemDB) Put(key []byte, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[string(key)] = append([]byte(nil), value...)
	return nil
}

func (m *MemDB) Delete(key []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, string(key))
	return nil
}

func (m *MemDB) Has(key []byte) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.data[string(key)]
	return ok, nil
}

func (m *MemDB) Close() error {
	return nil
}

func (m *MemDB) Compact(start []byte, limit []byte) error {
	return nil
}

func (m *MemDB) HealthCheck(ctx context.Context) (interface{}, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return map[string]interface{}{
		"type": "memdb",
		"size": len(m.data),
	}, nil
}

func (m *MemDB) NewBatch() database.Batch {
	return &memBatch{db: m}
}

func (m *MemDB) NewIterator() database.Iterator {
	return m.NewIteratorWithStartAndPrefix(nil, nil)
}

func (m *MemDB) NewIteratorWithStart(start []byte) database.Iterator {
	return m.NewIteratorWithStartAndPrefix(start, nil)
}

func (m *MemDB) NewIteratorWithPrefix(prefix []byte) database.Iterator {
	return m.NewIteratorWithStartAndPrefix(nil, prefix)
}

func (m *MemDB) NewIteratorWithStartAndPrefix(start, prefix []byte) database.Iterator {
	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := make([]string, 0, len(m.data))
	for k := range m.data {
		kb := []byte(k)
		if prefix != nil && !bytes.HasPrefix(kb, prefix) {
			continue
		}
		if start != nil && bytes.Compare(kb, start) < 0 {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	it := &memIterator{pos: -1}
	for _, k := range keys {
		it.keys = append(it.keys, []byte(k))
		it.values = append(it.values, append([]byte(nil), m.data[k]...))
	}
	return it
}

// memIterator walks a snapshot in ascending key order.
type memIterator struct {
	keys   [][]byte
	values [][]byte
	pos    int
}

func (it *memIterator) Next() bool {
	if it.pos+1 >= len(it.keys) {
		it.pos = len(it.keys)
		return false
	}
	it.pos++
	return true
}

func (it *memIterator) Error() error {
	return nil
}

func (it *memIterator) Key() []byte {
	if it.pos < 0 || it.pos >= len(it.keys) {
		return nil
	}
	return it.keys[it.pos]
}

func (it *memIterator) Value() []byte {
	if it.pos < 0 || it.pos >= len(it.values) {
		return nil
	}
	return it.values[it.pos]
}

func (it *memIterator) Release() {
	it.keys = nil
	it.values = nil
}

// memBatch buffers writes and applies them atomically.
type memBatch struct {
	db  *MemDB
	ops []batchOp
}

type batchOp struct {
	delete bool
	key    []byte
	value  []byte
}

func (b *memBatch) Put(key, value []byte) error {
	b.ops = append(b.ops, batchOp{
		key:   append([]byte(nil), key...),
		value: append([]byte(nil), value...),
	})
	return nil
}

func (b *memBatch) Delete(key []byte) error {
	b.ops = append(b.ops, batchOp{delete: true, key: append([]byte(nil), key...)})
	return nil
}

func (b *memBatch) ValueSize() int {
	size := 0
	for _, op := range b.ops {
		size += len(op.value)
	}
	return size
}

func (b *memBatch) Size() int {
	size := 0
	for _, op := range b.ops {
		size += len(op.key) + len(op.value)
	}
	return size
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

func (b *memBatch) Reset() {
	b.ops = b.ops[:0]
}

func (b *memBatch) Replay(w database.KeyValueWriterDeleter) error {
	for _, op := range b.ops {
		if op.delete {
			if err := w.Delete(op.key); err != nil {
				return err
			}
		} else {
			if err := w.Put(op.key, op.value); err != nil {
				return err
			}
		}
	}
	return nil
}

func (b *memBatch) Inner() database.Batch {
	return b
}

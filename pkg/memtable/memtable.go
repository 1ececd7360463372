// Package memtable implements the ordered, sequence-numbered, multi-version
// in-memory write buffer that sits in front of the page and segment layers.
package memtable

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/flowkv/flowkv/pkg/record"
)

// MemTable is an ordered multi-map keyed by (key ASC, sequence_number DESC),
// backed by a skip list. All record bytes are copied into the caller's
// arena by convention; entries are never mutated in place.
type MemTable struct {
	skipList     *SkipList
	nextCounter  uint64
	creationTime time.Time
	immutable    atomic.Bool
	mu           sync.RWMutex
	metrics      Metrics
}

// New creates an empty, mutable MemTable.
func New() *MemTable {
	return NewWithMetrics(NewNoopMetrics())
}

// NewWithMetrics creates an empty MemTable instrumented with the given
// Metrics implementation.
func NewWithMetrics(metrics Metrics) *MemTable {
	if metrics == nil {
		metrics = NewNoopMetrics()
	}
	return &MemTable{
		skipList:     NewSkipList(),
		creationTime: time.Now(),
		metrics:      metrics,
	}
}

// nextSeqNum allocates the next packed sequence number for entryType,
// bumping the internal counter.
func (m *MemTable) nextSeqNum(entryType record.EntryType) uint64 {
	counter := atomic.AddUint64(&m.nextCounter, 1)
	return record.PackSequenceNumber(counter, entryType)
}

// Put inserts a write record for key. Always succeeds while the MemTable is
// mutable; calling Put on an immutable MemTable is a no-op.
func (m *MemTable) Put(key, value []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.IsImmutable() {
		return
	}
	rec := record.Record{Key: key, Value: value, EntryType: record.TypeWrite, SeqNum: m.nextSeqNum(record.TypeWrite)}
	m.skipList.Insert(rec)
	m.metrics.RecordPut(len(key), len(value))
}

// Delete inserts a tombstone for key.
func (m *MemTable) Delete(key []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.IsImmutable() {
		return
	}
	rec := record.Record{Key: key, EntryType: record.TypeDelete, SeqNum: m.nextSeqNum(record.TypeDelete)}
	m.skipList.Insert(rec)
	m.metrics.RecordDelete(len(key))
}

// Get looks up key. It returns (Write, value, true) if a live value exists,
// (Delete, nil, true) if the key was deleted (a tombstone is a found
// result, not NotFound — the caller interprets it), and (_, nil, false) if
// the key has never been written.
func (m *MemTable) Get(key []byte) (record.EntryType, []byte, bool) {
	if m.IsImmutable() {
		rec, ok := m.skipList.Find(key)
		if !ok {
			return 0, nil, false
		}
		return rec.EntryType, rec.Value, true
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.skipList.Find(key)
	if !ok {
		return 0, nil, false
	}
	return rec.EntryType, rec.Value, true
}

// Contains reports whether key has any entry (write or tombstone).
func (m *MemTable) Contains(key []byte) bool {
	_, _, ok := m.Get(key)
	return ok
}

// ApproximateMemoryUsage returns the approximate arena bytes consumed by
// this MemTable.
func (m *MemTable) ApproximateMemoryUsage() int64 {
	return m.skipList.ApproximateSize()
}

// SetImmutable marks the MemTable read-only; no further Put/Delete calls
// will have any effect.
func (m *MemTable) SetImmutable() {
	m.immutable.Store(true)
}

// IsImmutable reports whether the MemTable has been frozen.
func (m *MemTable) IsImmutable() bool {
	return m.immutable.Load()
}

// Age returns the time elapsed since the MemTable was created.
func (m *MemTable) Age() time.Duration {
	return time.Since(m.creationTime)
}

// NextSequenceNumber returns the sequence number that will be stamped on
// the next inserted record.
func (m *MemTable) NextSequenceNumber() uint64 {
	return record.PackSequenceNumber(atomic.LoadUint64(&m.nextCounter)+1, record.TypeWrite)
}

// Iterator returns an ordered, duplicate-free iterator over the MemTable's
// current contents: exactly one record per key, the newest version.
func (m *MemTable) Iterator() *Iterator {
	if m.IsImmutable() {
		return &Iterator{raw: m.skipList.newRawIterator()}
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return &Iterator{raw: m.skipList.newRawIterator()}
}

// Iterator walks the MemTable in ascending key order, yielding only the
// newest record for each key: Next skips over older versions of a key it
// has already returned.
type Iterator struct {
	raw *rawIterator
}

// SeekToFirst positions the iterator at the first key.
func (it *Iterator) SeekToFirst() {
	it.raw.SeekToFirst()
}

// Seek positions the iterator at the first key >= target.
func (it *Iterator) Seek(target []byte) {
	it.raw.Seek(target)
}

// Next advances past the current key's newest record, skipping every
// subsequent record that shares the same key so only the latest entry per
// key is ever yielded.
func (it *Iterator) Next() {
	if !it.raw.Valid() {
		return
	}
	key := it.raw.Record().Key
	for {
		it.raw.Next()
		if !it.raw.Valid() || record.CompareKeys(it.raw.Record(), record.Record{Key: key}) != 0 {
			return
		}
	}
}

// Valid reports whether the iterator is positioned at an entry.
func (it *Iterator) Valid() bool {
	return it.raw.Valid()
}

// Key returns the current key.
func (it *Iterator) Key() []byte {
	return it.raw.Record().Key
}

// Value returns the current value (nil for a tombstone).
func (it *Iterator) Value() []byte {
	return it.raw.Record().Value
}

// Type returns the current entry's type.
func (it *Iterator) Type() record.EntryType {
	return it.raw.Record().EntryType
}

// SequenceNumber returns the current entry's sequence number.
func (it *Iterator) SequenceNumber() uint64 {
	return it.raw.Record().SeqNum
}

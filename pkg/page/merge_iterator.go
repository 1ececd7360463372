package page

import (
	"container/heap"

	commoniter "github.com/flowkv/flowkv/pkg/common/iterator"
	"github.com/flowkv/flowkv/pkg/record"
)

// MergeIterator performs a k-way ascending merge over a fixed set of page
// iterators, using a heap so each Next is O(log k). Within a single
// overflow chain the inputs are disjoint per key, so no tie-breaking policy
// beyond source order is required.
type MergeIterator struct {
	h        iterHeap
	key      []byte
	value    []byte
	valid    bool
	seqNum   uint64
	tomb     bool
	sources  []commoniter.Iterator
}

type heapItem struct {
	it  commoniter.Iterator
}

type iterHeap []heapItem

func (h iterHeap) Len() int { return len(h) }
func (h iterHeap) Less(i, j int) bool {
	return record.CompareKeys(
		record.Record{Key: h[i].it.Key()},
		record.Record{Key: h[j].it.Key()},
	) < 0
}
func (h iterHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *iterHeap) Push(x any)   { *h = append(*h, x.(heapItem)) }
func (h *iterHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// NewMergeIterator returns a MergeIterator over iters, already positioned
// with SeekToFirst semantics (each source must already be positioned by the
// caller; MergeIterator only ever calls Next/Valid/Key/Value on sources it
// is handed).
func NewMergeIterator(iters []commoniter.Iterator) *MergeIterator {
	m := &MergeIterator{sources: iters}
	m.rebuild()
	return m
}

// rebuild constructs the heap from the currently-valid sources and loads
// the first record.
func (m *MergeIterator) rebuild() {
	m.h = m.h[:0]
	for _, it := range m.sources {
		if it.Valid() {
			m.h = append(m.h, heapItem{it: it})
		}
	}
	heap.Init(&m.h)
	m.load()
}

func (m *MergeIterator) load() {
	if len(m.h) == 0 {
		m.valid = false
		return
	}
	top := m.h[0].it
	m.valid = true
	m.key = top.Key()
	m.value = top.Value()
	m.seqNum = top.SequenceNumber()
	m.tomb = top.IsTombstone()
}

// Valid reports whether the iterator is positioned on a record.
func (m *MergeIterator) Valid() bool { return m.valid }

// Key returns the current record's key.
func (m *MergeIterator) Key() []byte { return m.key }

// Value returns the current record's value.
func (m *MergeIterator) Value() []byte { return m.value }

// IsTombstone reports whether the current record is a deletion marker.
func (m *MergeIterator) IsTombstone() bool { return m.tomb }

// SequenceNumber returns the current record's sequence number.
func (m *MergeIterator) SequenceNumber() uint64 { return m.seqNum }

// Next advances to the next record in ascending key order.
func (m *MergeIterator) Next() bool {
	if len(m.h) == 0 {
		m.valid = false
		return false
	}
	top := m.h[0].it
	if top.Next() {
		heap.Fix(&m.h, 0)
	} else {
		heap.Pop(&m.h)
	}
	m.load()
	return m.valid
}

// RecordsLeft returns an upper bound on the number of records remaining:
// the sum of each source's own RecordsLeft when it exposes one, else a
// conservative count of 1 per still-valid source.
func (m *MergeIterator) RecordsLeft() int {
	total := 0
	for _, item := range m.h {
		if rl, ok := item.it.(interface{ RecordsLeft() int }); ok {
			total += rl.RecordsLeft()
		} else if item.it.Valid() {
			total++
		}
	}
	return total
}

// SeekToLast is not supported by a heap-based forward merge; it exists to
// satisfy commoniter.Iterator for callers that only ever use it for
// forward traversal driven by C5/C6/C7 (which never seek to the end of a
// merged view).
func (m *MergeIterator) SeekToLast() {}

// SeekToFirst is not supported once construction has consumed source
// state; merges in this core are always driven forward from construction.
func (m *MergeIterator) SeekToFirst() {}

// Seek is not supported by MergeIterator; seeking happens on the
// individual sources before they are handed to NewMergeIterator.
func (m *MergeIterator) Seek(target []byte) bool { return false }

var _ commoniter.Iterator = (*MergeIterator)(nil)

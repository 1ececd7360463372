package page

import (
	"sort"

	commoniter "github.com/flowkv/flowkv/pkg/common/iterator"
	"github.com/flowkv/flowkv/pkg/record"
)

// Iterator walks a single page's records in ascending key order.
type Iterator struct {
	records []record.Record
	pos     int
}

// newIterator returns an Iterator over recs, sorting a private copy by key
// so callers never observe Put order.
func newIterator(recs []record.Record) *Iterator {
	sorted := make([]record.Record, len(recs))
	copy(sorted, recs)
	sort.Slice(sorted, func(i, j int) bool {
		return record.Compare(sorted[i], sorted[j]) < 0
	})
	return &Iterator{records: sorted, pos: 0}
}

func (it *Iterator) SeekToFirst() { it.pos = 0 }

func (it *Iterator) SeekToLast() {
	it.pos = len(it.records) - 1
}

func (it *Iterator) Seek(target []byte) bool {
	it.pos = sort.Search(len(it.records), func(i int) bool {
		return record.CompareKeys(it.records[i], record.Record{Key: target}) >= 0
	})
	return it.Valid()
}

func (it *Iterator) Next() bool {
	if !it.Valid() {
		return false
	}
	it.pos++
	return it.Valid()
}

func (it *Iterator) Valid() bool {
	return it.pos >= 0 && it.pos < len(it.records)
}

func (it *Iterator) Key() []byte {
	if !it.Valid() {
		return nil
	}
	return it.records[it.pos].Key
}

func (it *Iterator) Value() []byte {
	if !it.Valid() {
		return nil
	}
	return it.records[it.pos].Value
}

func (it *Iterator) IsTombstone() bool {
	return it.Valid() && it.records[it.pos].IsTombstone()
}

func (it *Iterator) SequenceNumber() uint64 {
	if !it.Valid() {
		return 0
	}
	return it.records[it.pos].SeqNum
}

// RecordsLeft returns the count of records from the current position
// (inclusive) to the end.
func (it *Iterator) RecordsLeft() int {
	if it.pos >= len(it.records) {
		return 0
	}
	if it.pos < 0 {
		return len(it.records)
	}
	return len(it.records) - it.pos
}

// Record returns the full record at the current position.
func (it *Iterator) Record() record.Record {
	return it.records[it.pos]
}

var _ commoniter.Iterator = (*Iterator)(nil)

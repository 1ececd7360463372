package memtable

import (
	commoniter "github.com/flowkv/flowkv/pkg/common/iterator"
	"github.com/flowkv/flowkv/pkg/record"
)

// IteratorAdapter adapts a MemTable Iterator to the package-agnostic
// commoniter.Iterator interface so MemTable records can be merged
// uniformly with page and segment iterators.
type IteratorAdapter struct {
	it *Iterator
}

// NewIteratorAdapter wraps it as a commoniter.Iterator.
func NewIteratorAdapter(it *Iterator) *IteratorAdapter {
	return &IteratorAdapter{it: it}
}

func (a *IteratorAdapter) SeekToFirst() { a.it.SeekToFirst() }

func (a *IteratorAdapter) SeekToLast() {
	// The MemTable iterator only supports forward traversal, so finding the
	// last key means scanning forward once and seeking back to it.
	a.it.SeekToFirst()
	if !a.it.Valid() {
		return
	}
	var lastKey []byte
	for a.it.Valid() {
		lastKey = append(lastKey[:0], a.it.Key()...)
		a.it.Next()
	}
	a.it.Seek(lastKey)
}

func (a *IteratorAdapter) Seek(target []byte) bool {
	a.it.Seek(target)
	return a.it.Valid()
}

func (a *IteratorAdapter) Next() bool {
	a.it.Next()
	return a.it.Valid()
}

func (a *IteratorAdapter) Key() []byte {
	if !a.it.Valid() {
		return nil
	}
	return a.it.Key()
}

func (a *IteratorAdapter) Value() []byte {
	if !a.it.Valid() {
		return nil
	}
	return a.it.Value()
}

func (a *IteratorAdapter) Valid() bool { return a.it.Valid() }

func (a *IteratorAdapter) IsTombstone() bool {
	return a.it.Valid() && a.it.Type() == record.TypeDelete
}

func (a *IteratorAdapter) SequenceNumber() uint64 {
	if !a.it.Valid() {
		return 0
	}
	return a.it.SequenceNumber()
}

var _ commoniter.Iterator = (*IteratorAdapter)(nil)

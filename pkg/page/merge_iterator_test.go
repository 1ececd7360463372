package page

import (
	"testing"

	commoniter "github.com/flowkv/flowkv/pkg/common/iterator"
)

func newPageWithKeys(keys ...uint64) *Page {
	p := New(0, NoUpperBound, 4096)
	for i, k := range keys {
		p.Put(mustRecord(k, string(rune('a'+i)), uint64(i+1)))
	}
	return p
}

func collectKeys(it commoniter.Iterator) []uint64 {
	var out []uint64
	for it.Valid() {
		out = append(out, keyToUint64(it.Key()))
		it.Next()
	}
	return out
}

func keyToUint64(k []byte) uint64 {
	var v uint64
	for _, b := range k {
		v = v<<8 | uint64(b)
	}
	return v
}

func TestMergeIteratorOrdersAcrossSources(t *testing.T) {
	p1 := newPageWithKeys(1, 4, 7)
	p2 := newPageWithKeys(2, 5, 8)
	p3 := newPageWithKeys(3, 6, 9)

	it1 := p1.GetIterator()
	it1.SeekToFirst()
	it2 := p2.GetIterator()
	it2.SeekToFirst()
	it3 := p3.GetIterator()
	it3.SeekToFirst()

	merged := NewMergeIterator([]commoniter.Iterator{it1, it2, it3})
	got := collectKeys(merged)
	want := []uint64{1, 2, 3, 4, 5, 6, 7, 8, 9}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}

func TestMergeIteratorEmptySources(t *testing.T) {
	p1 := New(0, NoUpperBound, 4096)
	it1 := p1.GetIterator()
	it1.SeekToFirst()
	merged := NewMergeIterator([]commoniter.Iterator{it1})
	if merged.Valid() {
		t.Fatal("expected an empty merge to be invalid")
	}
}

func TestMergeIteratorRecordsLeft(t *testing.T) {
	p1 := newPageWithKeys(1, 2)
	p2 := newPageWithKeys(3, 4, 5)
	it1 := p1.GetIterator()
	it1.SeekToFirst()
	it2 := p2.GetIterator()
	it2.SeekToFirst()

	merged := NewMergeIterator([]commoniter.Iterator{it1, it2})
	if merged.RecordsLeft() != 5 {
		t.Fatalf("expected 5 records left, got %d", merged.RecordsLeft())
	}
}

package page

import (
	"testing"

	commoniter "github.com/flowkv/flowkv/pkg/common/iterator"
	"github.com/flowkv/flowkv/pkg/record"
)

func TestRecordMergerPrefersInMemoryOnTie(t *testing.T) {
	disk := newPageWithKeys(1, 2, 3)
	it := disk.GetIterator()
	it.SeekToFirst()
	pmi := NewMergeIterator([]commoniter.Iterator{it})

	mem := []record.Record{mustRecord(2, "mem-b", 100)}
	m := NewRecordMerger(mem)
	m.UpdatePageIterator(pmi)

	var got []string
	for m.HasRecords() {
		r := m.GetNext()
		got = append(got, string(r.Value))
	}
	want := []string{"a", "mem-b", "c"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}

func TestRecordMergerOnlyMemory(t *testing.T) {
	disk := New(0, NoUpperBound, 4096)
	it := disk.GetIterator()
	it.SeekToFirst()
	pmi := NewMergeIterator([]commoniter.Iterator{it})

	mem := []record.Record{mustRecord(1, "a", 1), mustRecord(2, "b", 1)}
	m := NewRecordMerger(mem)
	m.UpdatePageIterator(pmi)

	count := 0
	for m.HasRecords() {
		m.GetNext()
		count++
	}
	if count != 2 {
		t.Fatalf("expected 2 records, got %d", count)
	}
}

func TestRecordMergerOnlyDisk(t *testing.T) {
	disk := newPageWithKeys(1, 2, 3)
	it := disk.GetIterator()
	it.SeekToFirst()
	pmi := NewMergeIterator([]commoniter.Iterator{it})

	m := NewRecordMerger(nil)
	m.UpdatePageIterator(pmi)

	count := 0
	for m.HasRecords() {
		m.GetNext()
		count++
	}
	if count != 3 {
		t.Fatalf("expected 3 records, got %d", count)
	}
}

func keyOf(key uint64) []byte {
	k := make([]byte, 8)
	for i := 0; i < 8; i++ {
		k[7-i] = byte(key >> (8 * i))
	}
	return k
}

func TestRecordMergerPreservesDiskEntryType(t *testing.T) {
	disk := New(0, NoUpperBound, 4096)
	disk.Put(mustRecord(1, "a", 1))
	disk.Put(record.New(keyOf(2), nil, 2, record.TypeDelete))
	disk.Put(mustRecord(3, "c", 3))
	it := disk.GetIterator()
	it.SeekToFirst()
	pmi := NewMergeIterator([]commoniter.Iterator{it})

	// No in-memory records: every record is emitted through the
	// "disk-only" branch (m.pos >= len(m.records) is vacuously true).
	m := NewRecordMerger(nil)
	m.UpdatePageIterator(pmi)

	var got []record.Record
	for m.HasRecords() {
		got = append(got, m.GetNext())
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 records, got %d", len(got))
	}
	if got[0].IsTombstone() || got[0].EntryType != record.TypeWrite {
		t.Fatalf("expected key 1 to be a live write, got EntryType %v", got[0].EntryType)
	}
	if !got[1].IsTombstone() || got[1].EntryType != record.TypeDelete {
		t.Fatalf("expected key 2 to survive the merge as a tombstone, got EntryType %v", got[1].EntryType)
	}
	if got[2].IsTombstone() || got[2].EntryType != record.TypeWrite {
		t.Fatalf("expected key 3 to be a live write, got EntryType %v", got[2].EntryType)
	}
}

func TestRecordMergerPreservesDiskEntryTypeWhenMemoryRecordIsAhead(t *testing.T) {
	disk := New(0, NoUpperBound, 4096)
	disk.Put(record.New(keyOf(1), nil, 1, record.TypeDelete))
	it := disk.GetIterator()
	it.SeekToFirst()
	pmi := NewMergeIterator([]commoniter.Iterator{it})

	// The in-memory record sorts after the disk record, so GetNext must
	// take the "page key sorts first" branch (cmp > 0) to emit it.
	mem := []record.Record{mustRecord(5, "mem", 2)}
	m := NewRecordMerger(mem)
	m.UpdatePageIterator(pmi)

	r := m.GetNext()
	if !r.IsTombstone() || r.EntryType != record.TypeDelete {
		t.Fatalf("expected the disk tombstone to survive the merge, got EntryType %v", r.EntryType)
	}

	r = m.GetNext()
	if r.IsTombstone() || string(r.Value) != "mem" {
		t.Fatalf("expected the in-memory record to follow, got %+v", r)
	}
}

func TestRecordMergerUpdatePageIteratorAcrossChains(t *testing.T) {
	disk1 := newPageWithKeys(1, 2)
	it1 := disk1.GetIterator()
	it1.SeekToFirst()
	pmi1 := NewMergeIterator([]commoniter.Iterator{it1})

	mem := []record.Record{mustRecord(5, "mem", 1)}
	m := NewRecordMerger(mem)
	m.UpdatePageIterator(pmi1)

	var got []string
	for m.HasPageRecords() {
		r := m.GetNext()
		got = append(got, string(r.Value))
	}

	disk2 := newPageWithKeys(3, 4)
	it2 := disk2.GetIterator()
	it2.SeekToFirst()
	pmi2 := NewMergeIterator([]commoniter.Iterator{it2})
	m.UpdatePageIterator(pmi2)

	for m.HasRecords() {
		r := m.GetNext()
		got = append(got, string(r.Value))
	}

	want := []string{"a", "b", "a", "b", "mem"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

package page

import (
	"bytes"

	"github.com/flowkv/flowkv/pkg/record"
)

// RecordMerger performs the 2-way newest-wins merge between a page merge
// iterator (on-disk records) and a sorted in-memory record slice. On key
// equality the in-memory record wins and both sides advance;
// UpdatePageIterator lets the caller walk the disk side across successive
// page chains while preserving the in-memory cursor, exactly as the
// rewrite's sliding window does.
type RecordMerger struct {
	pmi      *MergeIterator
	records  []record.Record
	pos      int
}

// NewRecordMerger returns a RecordMerger over the given sorted in-memory
// records. Call UpdatePageIterator before GetNext to supply the first page
// chain's iterator.
func NewRecordMerger(records []record.Record) *RecordMerger {
	return &RecordMerger{records: records}
}

// UpdatePageIterator swaps in a new page-side iterator, used to move across
// successive page chains while the in-memory cursor position is preserved.
func (m *RecordMerger) UpdatePageIterator(pmi *MergeIterator) {
	m.pmi = pmi
}

// HasPageRecords reports whether the current page-side iterator still has
// records.
func (m *RecordMerger) HasPageRecords() bool {
	return m.pmi != nil && m.pmi.Valid()
}

// HasRecords reports whether either side still has records to offer.
func (m *RecordMerger) HasRecords() bool {
	return m.HasPageRecords() || m.pos < len(m.records)
}

// GetNext returns the next record in merged ascending-key order, preferring
// the in-memory record on key ties.
func (m *RecordMerger) GetNext() record.Record {
	if !m.HasPageRecords() {
		r := m.records[m.pos]
		m.pos++
		return r
	}
	if m.pos >= len(m.records) {
		r := record.Record{Key: append([]byte(nil), m.pmi.Key()...), Value: append([]byte(nil), m.pmi.Value()...), SeqNum: m.pmi.SequenceNumber()}
		_, r.EntryType = record.UnpackSequenceNumber(r.SeqNum)
		m.pmi.Next()
		return r
	}

	memRec := m.records[m.pos]
	pageKey := m.pmi.Key()
	cmp := bytes.Compare(memRec.Key, pageKey)
	if cmp <= 0 {
		m.pos++
		if cmp == 0 {
			m.pmi.Next()
		}
		return memRec
	}
	r := record.Record{Key: append([]byte(nil), pageKey...), Value: append([]byte(nil), m.pmi.Value()...), SeqNum: m.pmi.SequenceNumber()}
	_, r.EntryType = record.UnpackSequenceNumber(r.SeqNum)
	m.pmi.Next()
	return r
}

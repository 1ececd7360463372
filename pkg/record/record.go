// Package record defines the logical record shape shared by the MemTable,
// page, and segment layers: a key, a value, a sequence number, and an entry
// type (write or delete tombstone).
package record

import "bytes"

// EntryType distinguishes a value write from a deletion tombstone.
type EntryType uint8

const (
	// TypeWrite marks an entry that carries a live value.
	TypeWrite EntryType = iota + 1
	// TypeDelete marks a tombstone; the value is always empty.
	TypeDelete
)

func (t EntryType) String() string {
	switch t {
	case TypeWrite:
		return "Write"
	case TypeDelete:
		return "Delete"
	default:
		return "Unknown"
	}
}

// entryTypeBits is the number of low bits of a sequence number reserved for
// the entry type: the low 8 bits encode entry_type, the high 56 bits the
// monotonic counter.
const entryTypeBits = 8

// PackSequenceNumber combines a monotonic counter and an entry type into the
// 64-bit sequence number stamped on every record.
func PackSequenceNumber(counter uint64, t EntryType) uint64 {
	return (counter << entryTypeBits) | uint64(t)
}

// UnpackSequenceNumber splits a stamped sequence number back into its
// monotonic counter and entry type.
func UnpackSequenceNumber(seq uint64) (counter uint64, t EntryType) {
	return seq >> entryTypeBits, EntryType(seq & 0xFF)
}

// Record is the logical (key, value, sequence_number, entry_type) tuple
// shared across the write path.
type Record struct {
	Key       []byte
	Value     []byte
	SeqNum    uint64
	EntryType EntryType
}

// New builds a Record, packing the entry type into the low bits of seq.
func New(key, value []byte, counter uint64, t EntryType) Record {
	return Record{
		Key:       key,
		Value:     value,
		SeqNum:    PackSequenceNumber(counter, t),
		EntryType: t,
	}
}

// IsTombstone reports whether this record is a deletion marker.
func (r Record) IsTombstone() bool {
	return r.EntryType == TypeDelete
}

// Size returns a conservative estimate of the record's in-memory footprint,
// including a fixed per-record metadata overhead.
func (r Record) Size() int {
	return len(r.Key) + len(r.Value) + 16
}

// CompareKeys orders two records by key only.
func CompareKeys(a, b Record) int {
	return bytes.Compare(a.Key, b.Key)
}

// Compare implements the MemTable's comparator contract: records are
// ordered by key ascending, and on equal keys the record with
// the greater sequence number sorts first ("latest wins" becomes a property
// of iteration order rather than a lookup-time filter).
func Compare(a, b Record) int {
	if c := bytes.Compare(a.Key, b.Key); c != 0 {
		return c
	}
	switch {
	case a.SeqNum > b.SeqNum:
		return -1
	case a.SeqNum < b.SeqNum:
		return 1
	default:
		return 0
	}
}

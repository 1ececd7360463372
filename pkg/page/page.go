// Package page implements the reorg/rewrite core's view of a page: the
// merge iterator that drives both reorganization paths (C2), the two-way
// newest-wins merger between on-disk and in-memory records (C3), and the
// ring allocator that bounds how much of a rewrite lives in memory at once
// (C4). The page codec itself — key/value serialization, prefix
// compression, and checksums — is a typed external collaborator; Page here
// implements just enough of that contract (backed by a flat, uncompressed
// record list) for the core's algorithms to exercise real bytes end to end.
package page

import (
	"encoding/binary"
	"fmt"

	"github.com/cespare/xxhash/v2"
	"github.com/flowkv/flowkv/pkg/model"
	"github.com/flowkv/flowkv/pkg/record"
	"github.com/flowkv/flowkv/pkg/storage"
)

// ErrPageFull is returned by Put when a page has no more room.
var ErrPageFull = fmt.Errorf("page: full")

// Page is a fixed-size collection of records sharing a common [Lower,
// Upper) key interval, with an optional overflow link and an optional
// per-segment model line.
type Page struct {
	Lower   uint64
	Upper   uint64 // exclusive; max uint64 means "no upper bound"
	records []record.Record
	overflow storage.PageId
	model    *model.Line
	maxBytes int
	usedBytes int
}

// NoUpperBound is the sentinel Upper value meaning "unbounded".
const NoUpperBound = ^uint64(0)

// New creates an empty page spanning [lower, upper) with capacity maxBytes
// for record payloads.
func New(lower, upper uint64, maxBytes int) *Page {
	return &Page{Lower: lower, Upper: upper, maxBytes: maxBytes}
}

// Put inserts rec, returning ErrPageFull if there is no remaining capacity.
func (p *Page) Put(rec record.Record) error {
	size := rec.Size()
	if p.usedBytes+size > p.maxBytes {
		return ErrPageFull
	}
	p.records = append(p.records, rec)
	p.usedBytes += size
	return nil
}

// GetIterator returns an iterator over this page's records in key order.
// Put keeps records in insertion order; the iterator sorts its own copy by
// record.Compare, so the order of Put calls does not matter.
func (p *Page) GetIterator() *Iterator {
	return newIterator(p.records)
}

// GetOverflow returns this page's overflow link, if any.
func (p *Page) GetOverflow() storage.PageId {
	return p.overflow
}

// SetOverflow sets this page's overflow link.
func (p *Page) SetOverflow(id storage.PageId) {
	p.overflow = id
}

// HasOverflow reports whether this page chains to an overflow page.
func (p *Page) HasOverflow() bool {
	return p.overflow.IsValid()
}

// SetModel attaches the segment-level model line to page 0 of a segment.
func (p *Page) SetModel(line model.Line) {
	p.model = &line
}

// Model returns the page's model line, if one was set.
func (p *Page) Model() (model.Line, bool) {
	if p.model == nil {
		return model.Line{}, false
	}
	return *p.model, true
}

// NumRecords returns the number of records currently stored.
func (p *Page) NumRecords() int {
	return len(p.records)
}

// Records returns a read-only view of the page's records, in whatever order
// they were inserted. Callers that need key order should use GetIterator.
func (p *Page) Records() []record.Record {
	return p.records
}

// HeaderSize is lower(8) + upper(8) + overflow(8) + bodyLen(4) + reserved(4)
// + checksum(8). bodyLen lets Decode stop at the real end of the variable-
// length record data even when it is handed a fixed-size, zero-padded page
// frame rather than the exact bytes Encode produced. Exported so callers
// sizing a page's in-memory Put budget against a fixed on-disk page size
// can reserve room for it.
const HeaderSize = 8 + 8 + 8 + 4 + 4 + 8

const headerSize = HeaderSize

// Encode serializes the page to a flat byte buffer: a fixed header
// (lower/upper bounds, overflow id, body length, checksum) followed by each
// record's key length, key, value length, value, seq num, and entry type.
func (p *Page) Encode() []byte {
	buf := make([]byte, headerSize, headerSize+p.usedBytes+len(p.records)*24)
	binary.BigEndian.PutUint64(buf[0:8], p.Lower)
	binary.BigEndian.PutUint64(buf[8:16], p.Upper)
	binary.BigEndian.PutUint64(buf[16:24], uint64(p.overflow))
	// buf[24:28] (body length) and buf[32:40] (checksum) are filled in once
	// the body is known; buf[28:32] is reserved.

	var scratch [8]byte
	for _, r := range p.records {
		binary.BigEndian.PutUint32(scratch[0:4], uint32(len(r.Key)))
		buf = append(buf, scratch[0:4]...)
		buf = append(buf, r.Key...)
		binary.BigEndian.PutUint32(scratch[0:4], uint32(len(r.Value)))
		buf = append(buf, scratch[0:4]...)
		buf = append(buf, r.Value...)
		binary.BigEndian.PutUint64(scratch[0:8], r.SeqNum)
		buf = append(buf, scratch[0:8]...)
		buf = append(buf, byte(r.EntryType))
	}

	bodyLen := len(buf) - headerSize
	binary.BigEndian.PutUint32(buf[24:28], uint32(bodyLen))
	checksum := xxhash.Sum64(buf[headerSize:])
	binary.BigEndian.PutUint64(buf[32:40], checksum)
	return buf
}

// Decode parses a page previously produced by Encode. data may be longer
// than the encoded page (e.g. a fixed-size, zero-padded page frame); any
// trailing bytes beyond the recorded body length are ignored.
func Decode(data []byte) (*Page, error) {
	if len(data) < headerSize {
		return nil, fmt.Errorf("page: truncated header")
	}
	lower := binary.BigEndian.Uint64(data[0:8])
	upper := binary.BigEndian.Uint64(data[8:16])
	overflow := binary.BigEndian.Uint64(data[16:24])
	bodyLen := int(binary.BigEndian.Uint32(data[24:28]))

	if headerSize+bodyLen > len(data) {
		return nil, fmt.Errorf("page: truncated body")
	}
	return decodeBody(data[:headerSize+bodyLen], lower, upper, storage.PageId(overflow))
}

func decodeBody(data []byte, lower, upper uint64, overflow storage.PageId) (*Page, error) {
	p := &Page{Lower: lower, Upper: upper, overflow: overflow}
	body := data[headerSize:]
	off := 0
	for off < len(body) {
		if off+4 > len(body) {
			return nil, fmt.Errorf("page: truncated key length")
		}
		keyLen := int(binary.BigEndian.Uint32(body[off : off+4]))
		off += 4
		if off+keyLen > len(body) {
			return nil, fmt.Errorf("page: truncated key")
		}
		key := append([]byte(nil), body[off:off+keyLen]...)
		off += keyLen

		if off+4 > len(body) {
			return nil, fmt.Errorf("page: truncated value length")
		}
		valLen := int(binary.BigEndian.Uint32(body[off : off+4]))
		off += 4
		if off+valLen > len(body) {
			return nil, fmt.Errorf("page: truncated value")
		}
		value := append([]byte(nil), body[off:off+valLen]...)
		off += valLen

		if off+9 > len(body) {
			return nil, fmt.Errorf("page: truncated record trailer")
		}
		seqNum := binary.BigEndian.Uint64(body[off : off+8])
		off += 8
		entryType := record.EntryType(body[off])
		off++

		p.records = append(p.records, record.Record{Key: key, Value: value, SeqNum: seqNum, EntryType: entryType})
		p.usedBytes += keyLen + valLen + 16
	}
	return p, nil
}

// OverflowFromBytes reads just the overflow page id out of an encoded
// page's header, without parsing its records. It is installed as a
// storage.MemStore overflow resolver so the store can walk chains without
// depending on this package's full decode path.
func OverflowFromBytes(data []byte) storage.PageId {
	if len(data) < headerSize {
		return storage.InvalidPageId
	}
	return storage.PageId(binary.BigEndian.Uint64(data[16:24]))
}

// Checksum returns the checksum stored in an encoded page's header.
func Checksum(data []byte) uint64 {
	if len(data) < headerSize {
		return 0
	}
	return binary.BigEndian.Uint64(data[32:40])
}

// bodyLenOf returns the recorded length of the variable-length record data,
// so callers can bound the byte range a checksum was computed over even
// when data is a larger, zero-padded buffer.
func bodyLenOf(data []byte) int {
	return int(binary.BigEndian.Uint32(data[24:28]))
}

// VerifyChecksum reports whether data's stored checksum matches its body.
func VerifyChecksum(data []byte) bool {
	if len(data) < headerSize {
		return false
	}
	n := bodyLenOf(data)
	if headerSize+n > len(data) {
		return false
	}
	return Checksum(data) == xxhash.Sum64(data[headerSize:headerSize+n])
}

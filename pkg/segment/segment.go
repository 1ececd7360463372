// Package segment implements the multi-page, learned-index rewrite path:
// given one or more overflowing segments (optionally folding in a sorted
// batch of in-memory records), it rebuilds them into fresh segments sized
// from the fixed class {1, 2, 4, 8, 16} pages, each carrying its own
// per-segment model line for pages beyond the first.
package segment

import (
	"encoding/binary"

	"github.com/flowkv/flowkv/pkg/model"
	"github.com/flowkv/flowkv/pkg/record"
)

// PageCounts enumerates the legal segment sizes in pages, smallest first.
var PageCounts = []int{1, 2, 4, 8, 16}

// Segment is one output unit of a SegmentBuilder: a run of ascending,
// already-deduplicated records destined for a single fresh segment.
type Segment struct {
	BaseKey   uint64
	PageCount int
	Records   []record.Record
	Model     *model.Line // nil when PageCount == 1
}

// SegmentBuilder consumes records in ascending key order and groups them
// into segments sized from PageCounts. Offer may return zero or more
// completed segments; Finish flushes whatever is left buffered.
type SegmentBuilder interface {
	Offer(rec record.Record) []Segment
	Finish() []Segment

	// CurrentBaseKey returns the key of the oldest record still buffered,
	// used by a caller to decide which already-consumed source pages are
	// now safe to release from memory.
	CurrentBaseKey() (uint64, bool)
}

// greedyBuilder is a single-pass stand-in for full piecewise-linear-model
// fitting: it buffers records until the run fills a size class's goal+delta
// band, then emits that class sized at records_per_page_goal per page,
// carrying any excess into the next segment. This always produces valid
// PageCounts-sized output and exercises the full sliding-window/finalize
// machinery; it does not attempt to minimize per-key model error the way a
// true PLR builder would.
type greedyBuilder struct {
	goal, delta int
	pending     []record.Record
}

// NewGreedyBuilder returns a SegmentBuilder using goal as the target
// records-per-page and delta as the tolerance band around it.
func NewGreedyBuilder(goal, delta int) SegmentBuilder {
	if goal < 1 {
		goal = 1
	}
	if delta < 0 {
		delta = 0
	}
	return &greedyBuilder{goal: goal, delta: delta}
}

func (b *greedyBuilder) Offer(rec record.Record) []Segment {
	b.pending = append(b.pending, rec)

	fullClass := 0
	for _, pc := range PageCounts {
		if len(b.pending) >= pc*(b.goal+b.delta) {
			fullClass = pc
		} else {
			break
		}
	}
	if fullClass == 0 {
		return nil
	}

	n := fullClass * b.goal
	if n > len(b.pending) {
		n = len(b.pending)
	}
	segRecords := append([]record.Record(nil), b.pending[:n]...)
	b.pending = append([]record.Record(nil), b.pending[n:]...)
	return []Segment{buildSegment(segRecords, fullClass)}
}

func (b *greedyBuilder) Finish() []Segment {
	if len(b.pending) == 0 {
		return nil
	}
	pc := b.smallestFit(len(b.pending))
	seg := buildSegment(b.pending, pc)
	b.pending = nil
	return []Segment{seg}
}

func (b *greedyBuilder) CurrentBaseKey() (uint64, bool) {
	if len(b.pending) == 0 {
		return 0, false
	}
	return keyFromBytes(b.pending[0].Key), true
}

// smallestFit returns the smallest class in PageCounts whose goal-fullness
// capacity (pageCount * goal) can hold n records, or the largest class if n
// exceeds even that (the caller is then responsible for the resulting
// overfull last page, same as the sliding-window rewrite's "flush when the
// buffer can't grow further" path).
func (b *greedyBuilder) smallestFit(n int) int {
	for _, pc := range PageCounts {
		if n <= pc*b.goal {
			return pc
		}
	}
	return PageCounts[len(PageCounts)-1]
}

func buildSegment(records []record.Record, pageCount int) Segment {
	seg := Segment{
		BaseKey:   keyFromBytes(records[0].Key),
		PageCount: pageCount,
		Records:   records,
	}
	if pageCount > 1 {
		keys := make([]uint64, len(records))
		for i, r := range records {
			keys[i] = keyFromBytes(r.Key)
		}
		line := model.FitPageModel(keys, pageCount)
		seg.Model = &line
	}
	return seg
}

func keyBytes(k uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, k)
	return b
}

func keyFromBytes(b []byte) uint64 {
	return binary.BigEndian.Uint64(b)
}

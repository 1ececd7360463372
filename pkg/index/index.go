// Package index implements the ordered Key -> SegmentInfo map the core
// consumes: an ordered map with LowerBound, UpperBound, Before, FloorEntry,
// Insert, Erase, BulkLoad, Len and Keys. Unlike the MemTable (pkg/memtable), which
// is written once per record and therefore wants a lock-free skip list,
// index mutations only happen in a batch at the end of a reorganization or
// rewrite — there is never a hot per-write insert path here. A
// mutex-protected sorted slice with binary search is the simpler,
// equally-correct tool for that access pattern.
package index

import (
	"sort"
	"sync"

	"github.com/flowkv/flowkv/pkg/model"
	"github.com/flowkv/flowkv/pkg/storage"
)

// SegmentInfo is the value stored for each live segment base key.
type SegmentInfo struct {
	ID          storage.SegmentId
	Model       *model.Line // nil for single-page segments
	PageCount   int
	HasOverflow bool
}

// entry is one (base key, SegmentInfo) pair kept in ascending key order.
type entry struct {
	Key  uint64
	Info SegmentInfo
}

// Index is the ordered map of segment base key to SegmentInfo.
type Index struct {
	mu      sync.RWMutex
	entries []entry
}

// New returns an empty Index.
func New() *Index {
	return &Index{}
}

// search returns the position of the first entry with Key >= key.
func (idx *Index) search(key uint64) int {
	return sort.Search(len(idx.entries), func(i int) bool {
		return idx.entries[i].Key >= key
	})
}

// LowerBound returns the first entry with base key >= key, and whether one
// exists.
func (idx *Index) LowerBound(key uint64) (uint64, SegmentInfo, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	i := idx.search(key)
	if i >= len(idx.entries) {
		return 0, SegmentInfo{}, false
	}
	return idx.entries[i].Key, idx.entries[i].Info, true
}

// UpperBound returns the first entry with base key > key, and whether one
// exists.
func (idx *Index) UpperBound(key uint64) (uint64, SegmentInfo, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	i := sort.Search(len(idx.entries), func(i int) bool {
		return idx.entries[i].Key > key
	})
	if i >= len(idx.entries) {
		return 0, SegmentInfo{}, false
	}
	return idx.entries[i].Key, idx.entries[i].Info, true
}

// Before returns the last entry with base key strictly less than key, used
// to scan left for overflowing neighbor segments during a rewrite.
func (idx *Index) Before(key uint64) (uint64, SegmentInfo, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	i := idx.search(key)
	if i == 0 {
		return 0, SegmentInfo{}, false
	}
	e := idx.entries[i-1]
	return e.Key, e.Info, true
}

// FloorEntry returns the segment whose interval [base, next_base) contains
// key: the last entry with base key <= key. This is the lookup a reader
// performs to resolve a key to its owning segment.
func (idx *Index) FloorEntry(key uint64) (uint64, SegmentInfo, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	i := idx.search(key)
	if i < len(idx.entries) && idx.entries[i].Key == key {
		return idx.entries[i].Key, idx.entries[i].Info, true
	}
	if i == 0 {
		return 0, SegmentInfo{}, false
	}
	e := idx.entries[i-1]
	return e.Key, e.Info, true
}

// Insert adds or replaces the entry for key.
func (idx *Index) Insert(key uint64, info SegmentInfo) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	i := idx.search(key)
	if i < len(idx.entries) && idx.entries[i].Key == key {
		idx.entries[i].Info = info
		return
	}
	idx.entries = append(idx.entries, entry{})
	copy(idx.entries[i+1:], idx.entries[i:])
	idx.entries[i] = entry{Key: key, Info: info}
}

// Erase removes the entry for key, reporting whether it was present.
func (idx *Index) Erase(key uint64) bool {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	i := idx.search(key)
	if i >= len(idx.entries) || idx.entries[i].Key != key {
		return false
	}
	idx.entries = append(idx.entries[:i], idx.entries[i+1:]...)
	return true
}

// BulkLoad replaces the entire index contents with pairs, which must
// already be sorted ascending by key and contain no duplicates. It is
// intended for initial load, not incremental maintenance.
func (idx *Index) BulkLoad(pairs []struct {
	Key  uint64
	Info SegmentInfo
}) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.entries = make([]entry, len(pairs))
	for i, p := range pairs {
		idx.entries[i] = entry{Key: p.Key, Info: p.Info}
	}
}

// Len returns the number of live segments in the index.
func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.entries)
}

// Keys returns a copy of every live base key, in ascending order.
func (idx *Index) Keys() []uint64 {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	keys := make([]uint64, len(idx.entries))
	for i, e := range idx.entries {
		keys[i] = e.Key
	}
	return keys
}

package memtable

import (
	"math/rand"
	"sync"
	"sync/atomic"
	"time"
	"unsafe"

	"github.com/flowkv/flowkv/pkg/record"
)

const (
	// MaxHeight is the maximum height of the skip list.
	MaxHeight = 12

	// BranchingFactor determines the probability of increasing the height.
	BranchingFactor = 4
)

// node represents a node in the skip list. All record bytes referenced by
// rec live in the caller's arena; nodes are never mutated in place once
// linked.
type node struct {
	rec    record.Record
	height int32
	next   [MaxHeight]unsafe.Pointer
}

func newNode(rec record.Record, height int) *node {
	return &node{rec: rec, height: int32(height)}
}

func (n *node) getNext(level int) *node {
	return (*node)(atomic.LoadPointer(&n.next[level]))
}

func (n *node) setNext(level int, next *node) {
	atomic.StorePointer(&n.next[level], unsafe.Pointer(next))
}

// SkipList is the order-preserving structure backing the MemTable: ordered
// by (key ASC, sequence_number DESC), with logarithmic insert and ordered
// iteration.
type SkipList struct {
	head      *node
	maxHeight int32
	rnd       *rand.Rand
	rndMtx    sync.Mutex
	size      int64
}

// NewSkipList creates an empty skip list.
func NewSkipList() *SkipList {
	return &SkipList{
		head:      newNode(record.Record{}, MaxHeight),
		maxHeight: 1,
		rnd:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (s *SkipList) randomHeight() int {
	s.rndMtx.Lock()
	defer s.rndMtx.Unlock()

	height := 1
	for height < MaxHeight && s.rnd.Intn(BranchingFactor) == 0 {
		height++
	}
	return height
}

func (s *SkipList) getCurrentHeight() int {
	return int(atomic.LoadInt32(&s.maxHeight))
}

// Insert adds rec to the skip list. Entries are never mutated in place; a
// new node is always allocated.
func (s *SkipList) Insert(rec record.Record) {
	height := s.randomHeight()
	var prev [MaxHeight]*node
	n := newNode(rec, height)

	currHeight := s.getCurrentHeight()
	if height > currHeight {
		if atomic.CompareAndSwapInt32(&s.maxHeight, int32(currHeight), int32(height)) {
			currHeight = height
		}
	}

	current := s.head
	for level := currHeight - 1; level >= 0; level-- {
		for next := current.getNext(level); next != nil; next = current.getNext(level) {
			if record.Compare(next.rec, rec) >= 0 {
				break
			}
			current = next
		}
		prev[level] = current
	}

	for level := 0; level < height; level++ {
		n.setNext(level, prev[level].getNext(level))
		prev[level].setNext(level, n)
	}

	atomic.AddInt64(&s.size, int64(rec.Size()))
}

// Find returns the newest record with the given key, or false if none
// exists.
func (s *SkipList) Find(key []byte) (record.Record, bool) {
	current := s.head
	height := s.getCurrentHeight()

	for level := height - 1; level >= 0; level-- {
		for next := current.getNext(level); next != nil; next = current.getNext(level) {
			if record.CompareKeys(next.rec, record.Record{Key: key}) >= 0 {
				break
			}
			current = next
		}
	}

	n := current.getNext(0)
	if n != nil && record.CompareKeys(n.rec, record.Record{Key: key}) == 0 {
		// Because entries with the same key sort newest-first, the first
		// match at level 0 is already the newest.
		return n.rec, true
	}
	return record.Record{}, false
}

// ApproximateSize returns the approximate arena bytes consumed by inserted
// records.
func (s *SkipList) ApproximateSize() int64 {
	return atomic.LoadInt64(&s.size)
}

// rawIterator provides sequential access over every record stored in the
// skip list, including every sequence-numbered version of a key. It does
// not skip duplicates; that is the MemTable Iterator's job.
type rawIterator struct {
	list    *SkipList
	current *node
}

func (s *SkipList) newRawIterator() *rawIterator {
	return &rawIterator{list: s, current: s.head}
}

func (it *rawIterator) Valid() bool {
	return it.current != nil && it.current != it.list.head
}

func (it *rawIterator) Next() {
	if it.current == nil {
		return
	}
	it.current = it.current.getNext(0)
}

func (it *rawIterator) SeekToFirst() {
	it.current = it.list.head.getNext(0)
}

func (it *rawIterator) Seek(key []byte) {
	current := it.list.head
	height := it.list.getCurrentHeight()

	for level := height - 1; level >= 0; level-- {
		for next := current.getNext(level); next != nil; next = current.getNext(level) {
			if record.CompareKeys(next.rec, record.Record{Key: key}) >= 0 {
				break
			}
			current = next
		}
	}
	it.current = current.getNext(0)
}

func (it *rawIterator) Record() record.Record {
	if !it.Valid() {
		return record.Record{}
	}
	return it.current.rec
}

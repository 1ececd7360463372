package segment

import (
	commoniter "github.com/flowkv/flowkv/pkg/common/iterator"
	"github.com/flowkv/flowkv/pkg/page"
)

// PageChain holds one segment page and its optional overflow page, both
// already decoded, while they sit in the sliding window's in-memory buffer.
type PageChain struct {
	main     *page.Page
	overflow *page.Page
}

// SingleOnly returns a PageChain with no overflow.
func SingleOnly(main *page.Page) PageChain {
	return PageChain{main: main}
}

// WithOverflow returns a PageChain with an overflow page.
func WithOverflow(main, overflow *page.Page) PageChain {
	return PageChain{main: main, overflow: overflow}
}

// NumPages reports how many buffer slots this chain occupies.
func (c PageChain) NumPages() int {
	if c.overflow != nil {
		return 2
	}
	return 1
}

// GetIterator returns a merge iterator over the chain's records.
func (c PageChain) GetIterator() *page.MergeIterator {
	mainIt := c.main.GetIterator()
	mainIt.SeekToFirst()
	sources := []commoniter.Iterator{mainIt}
	if c.overflow != nil {
		ovIt := c.overflow.GetIterator()
		ovIt.SeekToFirst()
		sources = append(sources, ovIt)
	}
	return page.NewMergeIterator(sources)
}

// LargestKey returns the largest key across the chain, and whether the
// chain holds any records at all.
func (c PageChain) LargestKey() (uint64, bool) {
	var largest uint64
	found := false

	mainIt := c.main.GetIterator()
	mainIt.SeekToLast()
	if mainIt.Valid() {
		largest = keyFromBytes(mainIt.Key())
		found = true
	}
	if c.overflow != nil {
		ovIt := c.overflow.GetIterator()
		ovIt.SeekToLast()
		if ovIt.Valid() {
			k := keyFromBytes(ovIt.Key())
			if !found || k > largest {
				largest = k
				found = true
			}
		}
	}
	return largest, found
}

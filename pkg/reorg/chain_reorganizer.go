// Package reorg implements the single-chain reorganization procedure:
// given an overflow chain that has grown past its flush-worker threshold,
// redistribute its records into a bounded number of fresh pages and update
// the index atomically with respect to readers.
package reorg

import (
	"context"

	commoniter "github.com/flowkv/flowkv/pkg/common/iterator"
	"github.com/flowkv/flowkv/pkg/common/log"
	"github.com/flowkv/flowkv/pkg/config"
	"github.com/flowkv/flowkv/pkg/page"
	"github.com/flowkv/flowkv/pkg/record"
	"github.com/flowkv/flowkv/pkg/reorgerr"
	"github.com/flowkv/flowkv/pkg/storage"
)

// perRecordMetadataSize is the bookkeeping overhead (key length, value
// length, sequence number, entry type) the page codec spends per stored
// record.
const perRecordMetadataSize = 17

// PageIndex is the narrow index contract ChainReorganizer needs: map a
// segment's lower boundary key to the page that now owns it. This is
// distinct from pkg/index.Index (which maps base key -> SegmentInfo for the
// segmented/learned variant); the single-chain variant's "model" is a
// direct key -> page-id index.
type PageIndex interface {
	Insert(key uint64, id storage.PageId)
}

// ChainReorganizer rebuilds a single overflow chain into at most
// MaxReorgFanout fresh pages.
type ChainReorganizer struct {
	bufMgr  storage.BufferManager
	opts    *config.Options
	logger  log.Logger
	metrics Metrics
}

// New returns a ChainReorganizer. logger and metrics may be nil, in which
// case the package default logger and a no-op Metrics are used.
func New(bufMgr storage.BufferManager, opts *config.Options, logger log.Logger, metrics Metrics) *ChainReorganizer {
	if metrics == nil {
		metrics = NewNoopMetrics()
	}
	return &ChainReorganizer{bufMgr: bufMgr, opts: opts, logger: logger, metrics: metrics}
}

func (r *ChainReorganizer) log(format string, args ...any) {
	if r.logger != nil {
		r.logger.Info(format, args...)
	} else {
		log.Info(format, args...)
	}
}

func (r *ChainReorganizer) warn(format string, args ...any) {
	if r.logger != nil {
		r.logger.Warn(format, args...)
	} else {
		log.Warn(format, args...)
	}
}

// Reorganize rebuilds the overflow chain rooted at headID. headID is the
// physical page id of the chain's head; pageFillPct is the caller-supplied
// initial target fullness
// for the rebuilt pages. idx receives the new (lower boundary, page id)
// pairs; it is the caller's job to also remove any now-stale entries if the
// chain's own lower boundary changed (it never does: page 0's lower
// boundary is preserved verbatim — see step 8 below).
func (r *ChainReorganizer) Reorganize(ctx context.Context, headID storage.PageId, pageFillPct int, idx PageIndex) error {
	// Step 1: acquire the chain exclusively, retrying on a nil result
	// (a concurrent model change invalidated a prior attempt).
	var chain storage.Chain
	for chain == nil {
		var err error
		chain, err = r.bufMgr.FixOverflowChain(ctx, headID, true, false)
		if err != nil {
			return reorgerr.IOErrorf(err, "fixing overflow chain at page %d", headID)
		}
	}

	// Step 2: already-short chain means a duplicate scheduling; no-op.
	if len(chain) == 1 {
		r.bufMgr.UnfixPage(chain[0], false)
		return nil
	}

	// Step 3: fanout cap.
	if len(chain) > r.opts.MaxReorgFanout {
		for _, frame := range chain {
			r.bufMgr.UnfixPage(frame, false)
		}
		r.log("chain at page %d is too long to reorganize without violating the maximum reorganization fanout (length %d)", headID, len(chain))
		return reorgerr.InvalidArgumentf("chain length %d exceeds max reorg fanout %d", len(chain), r.opts.MaxReorgFanout)
	}

	pages := make([]*page.Page, len(chain))
	for i, frame := range chain {
		p, err := page.Decode(frame.Data)
		if err != nil {
			for _, f := range chain {
				r.bufMgr.UnfixPage(f, false)
			}
			return reorgerr.IOErrorf(err, "decoding chain page %d", frame.ID)
		}
		pages[i] = p
	}

	lower := pages[0].Lower
	upper := pages[0].Upper
	prefixLen := commonPrefixLen(keyBytes(lower), keyBytes(upper))

	// Step 4: plan the split.
	fullRecordSize := r.opts.RecordSize
	effectiveRecordSize := fullRecordSize - prefixLen
	if effectiveRecordSize < 1 {
		effectiveRecordSize = 1
	}
	usable := r.opts.PageSize - headerOverhead()
	maxPerPage := (usable - 2*fullRecordSize) / (effectiveRecordSize + perRecordMetadataSize)
	if maxPerPage < 1 {
		maxPerPage = 1
	}

	chainLen := len(chain)
	nEst := chainLen * maxPerPage

	fillPct := pageFillPct
	recordsPerPage := recordsPerPageForFillPct(maxPerPage, fillPct)
	numPages := ceilDiv(nEst, recordsPerPage)
	for numPages > r.opts.MaxReorgFanout {
		fillPct++
		recordsPerPage = recordsPerPageForFillPct(maxPerPage, fillPct)
		numPages = ceilDiv(nEst, recordsPerPage)
	}

	// Step 5: first pass, find boundaries and count records.
	merge1 := buildMerge(pages)
	recordCount := 0
	boundaryKeys := [][]byte{keyBytes(lower)}
	for merge1.Valid() {
		if recordCount%recordsPerPage == 0 && recordCount > 0 {
			boundaryKeys = append(boundaryKeys, append([]byte(nil), merge1.Key()...))
		}
		recordCount++
		merge1.Next()
	}
	if recordCount > nEst {
		r.warn("chain reorg at page %d observed more records (%d) than the conservative estimate (%d)", headID, recordCount, nEst)
	}
	boundaryKeys = append(boundaryKeys, keyBytes(upper))

	oldNumPages := len(chain)
	newNumPages := len(boundaryKeys) - 1

	// Step 6: allocate in-memory pages with their boundaries.
	newPages := make([]*page.Page, newNumPages)
	for i := 0; i < newNumPages; i++ {
		lo := keyFromBytes(boundaryKeys[i])
		var hi uint64
		if i == newNumPages-1 {
			hi = upper
		} else {
			hi = keyFromBytes(boundaryKeys[i+1])
		}
		newPages[i] = page.New(lo, hi, r.opts.PageSize-headerOverhead())
	}

	// Step 7: second pass, populate.
	merge2 := buildMerge(pages)
	idxRec := 0
	for merge2.Valid() {
		target := newPages[idxRec/recordsPerPage]
		rec := mergeCurrentRecord(merge2)
		if err := target.Put(rec); err != nil {
			wrapped := reorgerr.Fullf("chain reorg: populating page %d failed: %v", idxRec/recordsPerPage, err)
			reorgerr.AssertNeverFull(wrapped)
		}
		idxRec++
		merge2.Next()
	}

	// Step 8: commit backward.
	for i := newNumPages - 1; i >= 0; i-- {
		var frame *storage.Frame
		if i < oldNumPages {
			frame = chain[i]
		} else {
			id, err := r.bufMgr.FileManager().AllocatePage()
			if err != nil {
				return reorgerr.IOErrorf(err, "allocating page for reorg")
			}
			frame, err = r.bufMgr.FixPage(ctx, id, true, true)
			if err != nil {
				return reorgerr.IOErrorf(err, "fixing newly allocated page")
			}
		}

		encoded := newPages[i].Encode()
		if len(encoded) > len(frame.Data) {
			wrapped := reorgerr.Fullf("chain reorg: page %d encoded to %d bytes, exceeding its %d-byte frame", i, len(encoded), len(frame.Data))
			reorgerr.AssertNeverFull(wrapped)
		}
		copy(frame.Data, encoded)

		idx.Insert(newPages[i].Lower, frame.ID)
		r.bufMgr.UnfixPage(frame, true)
	}

	// Step 9: leak handling for a shrinking reorg.
	if newNumPages < oldNumPages {
		for i := newNumPages; i < oldNumPages; i++ {
			for b := range chain[i].Data {
				chain[i].Data[b] = 0
			}
			r.bufMgr.UnfixPage(chain[i], true)
		}
		leaked := oldNumPages - newNumPages
		r.metrics.RecordLeak(leaked)
		r.warn("reorganization of chain at page %d produced fewer pages than the original chain length; pages will be leaked on disk (old=%d, new=%d, lower=%d, upper=%d)",
			headID, oldNumPages, newNumPages, lower, upper)
	}

	r.metrics.RecordReorg(oldNumPages, newNumPages, true)
	return nil
}

func buildMerge(pages []*page.Page) *page.MergeIterator {
	iters := make([]commoniter.Iterator, len(pages))
	for i, p := range pages {
		it := p.GetIterator()
		it.SeekToFirst()
		iters[i] = it
	}
	return page.NewMergeIterator(iters)
}

// mergeCurrentRecord snapshots the merge iterator's current position into
// an owned record.Record, since Put stores references that must outlive
// the iterator's next advance.
func mergeCurrentRecord(m *page.MergeIterator) record.Record {
	entryType := record.TypeWrite
	if m.IsTombstone() {
		entryType = record.TypeDelete
	}
	return record.Record{
		Key:       append([]byte(nil), m.Key()...),
		Value:     append([]byte(nil), m.Value()...),
		SeqNum:    m.SequenceNumber(),
		EntryType: entryType,
	}
}

// recordsPerPageForFillPct scales maxPerPage by a fill percentage in
// (0, 100].
func recordsPerPageForFillPct(maxPerPage, fillPct int) int {
	rpp := maxPerPage * fillPct / 100
	if rpp < 1 {
		rpp = 1
	}
	return rpp
}

func ceilDiv(a, b int) int {
	if b <= 0 {
		return a
	}
	return (a + b - 1) / b
}

// headerOverhead is the per-page fixed header cost spent by the page codec;
// a page's usable size is its configured page size minus this overhead.
func headerOverhead() int {
	return page.HeaderSize
}

package segment

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/flowkv/flowkv/pkg/common/log"
	"github.com/flowkv/flowkv/pkg/config"
	"github.com/flowkv/flowkv/pkg/index"
	"github.com/flowkv/flowkv/pkg/model"
	"github.com/flowkv/flowkv/pkg/page"
	"github.com/flowkv/flowkv/pkg/record"
	"github.com/flowkv/flowkv/pkg/reorgerr"
	"github.com/flowkv/flowkv/pkg/storage"
)

// Index is the narrow index contract SegmentRewriter and ChainFlattener
// need: base-key lookups in both directions plus the batch erase/insert a
// rewrite finalizes with. *index.Index satisfies it.
type Index interface {
	LowerBound(key uint64) (uint64, index.SegmentInfo, bool)
	UpperBound(key uint64) (uint64, index.SegmentInfo, bool)
	Before(key uint64) (uint64, index.SegmentInfo, bool)
	Erase(key uint64) bool
	Insert(key uint64, info index.SegmentInfo)
}

// SegmentRewriter rebuilds one or more neighboring overflowing segments,
// optionally folding in a sorted batch of in-memory records, using a
// bounded sliding window over the source pages.
type SegmentRewriter struct {
	segIO   storage.SegmentIO
	idx     Index
	opts    *config.Options
	logger  log.Logger
	metrics Metrics
}

// New returns a SegmentRewriter. logger and metrics may be nil.
func New(segIO storage.SegmentIO, idx Index, opts *config.Options, logger log.Logger, metrics Metrics) *SegmentRewriter {
	if metrics == nil {
		metrics = NewNoopMetrics()
	}
	return &SegmentRewriter{segIO: segIO, idx: idx, opts: opts, logger: logger, metrics: metrics}
}

func (r *SegmentRewriter) log(format string, args ...any) {
	if r.logger != nil {
		r.logger.Info(format, args...)
	} else {
		log.Info(format, args...)
	}
}

type rewriteEntry struct {
	key  uint64
	info index.SegmentInfo
}

// RewriteSegments rewrites the segment based at segmentBase (and, if
// opts.ConsiderNeighborsDuringRewrite is set, every consecutive neighbor
// that also has overflow), folding addtl (already sorted ascending by key)
// into the merged output.
func (r *SegmentRewriter) RewriteSegments(ctx context.Context, segmentBase uint64, addtl []record.Record) error {
	baseKey, baseInfo, ok := r.idx.LowerBound(segmentBase)
	if !ok || baseKey != segmentBase {
		return reorgerr.NotFoundf("segment base %d not found in index", segmentBase)
	}

	toRewrite := []rewriteEntry{{key: baseKey, info: baseInfo}}
	if r.opts.ConsiderNeighborsDuringRewrite {
		cur := baseKey
		for {
			pk, pinfo, pok := r.idx.Before(cur)
			if !pok || !pinfo.HasOverflow {
				break
			}
			toRewrite = append(toRewrite, rewriteEntry{pk, pinfo})
			cur = pk
		}
		cur = baseKey
		for {
			nk, ninfo, nok := r.idx.UpperBound(cur)
			if !nok || !ninfo.HasOverflow {
				break
			}
			toRewrite = append(toRewrite, rewriteEntry{nk, ninfo})
			cur = nk
		}
		sort.Slice(toRewrite, func(i, j int) bool { return toRewrite[i].key < toRewrite[j].key })
	}

	windowCap := PageCounts[len(PageCounts)-1] * 4 // 16*4 = 64
	pageBuf := page.NewCircularPageBuffer(windowCap, r.opts.PageSize)
	builder := NewGreedyBuilder(r.opts.RecordsPerPageGoal, r.opts.RecordsPerPageDelta)
	merger := page.NewRecordMerger(addtl)

	var pagesToProcess, pagesProcessed []PageChain
	var rewritten []rewriteEntry
	var oldSegments, overflowsToClear []storage.SegmentId

	loadAndFree := func(segs []Segment) error {
		for i, seg := range segs {
			var upper uint64
			if i < len(segs)-1 {
				upper = segs[i+1].BaseKey
			} else if bk, ok := builder.CurrentBaseKey(); ok {
				upper = bk
			} else {
				lastKey := keyFromBytes(seg.Records[len(seg.Records)-1].Key)
				if nk, _, nok := r.idx.UpperBound(lastKey); nok {
					upper = nk
				} else {
					upper = math.MaxUint64
				}
			}
			newKey, newInfo, err := r.loadIntoNewSegment(seg, upper)
			if err != nil {
				return err
			}
			rewritten = append(rewritten, rewriteEntry{key: newKey, info: newInfo})
		}

		if bk, ok := builder.CurrentBaseKey(); ok {
			for len(pagesProcessed) > 0 {
				largest, has := pagesProcessed[0].LargestKey()
				if has && largest >= bk {
					break
				}
				pageBuf.Free()
				for j := 1; j < pagesProcessed[0].NumPages(); j++ {
					pageBuf.Free()
				}
				pagesProcessed = pagesProcessed[1:]
			}
		} else {
			for len(pagesProcessed) > 0 {
				for j := 0; j < pagesProcessed[0].NumPages(); j++ {
					pageBuf.Free()
				}
				pagesProcessed = pagesProcessed[1:]
			}
		}
		return nil
	}

	flush := func() error {
		segs := builder.Finish()
		if len(segs) == 0 {
			return nil
		}
		return loadAndFree(segs)
	}

	for _, entry := range toRewrite {
		segPages := entry.info.PageCount
		if segPages > pageBuf.NumFreePages() {
			if err := flush(); err != nil {
				return err
			}
		}

		raw, err := r.segIO.ReadSegment(entry.info.ID)
		if err != nil {
			return reorgerr.IOErrorf(err, "reading segment %d", entry.info.ID)
		}
		pages, err := decodeSegmentPages(raw, r.opts.PageSize, segPages)
		if err != nil {
			return reorgerr.IOErrorf(err, "decoding segment %d", entry.info.ID)
		}

		numOverflows := 0
		for _, p := range pages {
			if p.HasOverflow() {
				numOverflows++
			}
		}
		if segPages+numOverflows > pageBuf.NumFreePages() {
			if err := flush(); err != nil {
				return err
			}
		}

		chains := make([]PageChain, segPages)
		var overflowReads []storage.OverflowRead
		var overflowSlots []int
		for i, p := range pages {
			if _, err := pageBuf.Allocate(); err != nil {
				return reorgerr.IOErrorf(err, "allocating sliding-window slot")
			}
			if p.HasOverflow() {
				slot, err := pageBuf.Allocate()
				if err != nil {
					return reorgerr.IOErrorf(err, "allocating overflow slot")
				}
				overflowID := storage.SegmentId(p.GetOverflow())
				overflowReads = append(overflowReads, storage.OverflowRead{ID: overflowID, Dst: slot})
				overflowSlots = append(overflowSlots, i)
				overflowsToClear = append(overflowsToClear, overflowID)
				chains[i] = SingleOnly(p)
			} else {
				chains[i] = SingleOnly(p)
			}
		}
		if len(overflowReads) > 0 {
			if err := r.segIO.ReadOverflows(overflowReads); err != nil {
				return reorgerr.IOErrorf(err, "reading overflow pages")
			}
			for k, i := range overflowSlots {
				op, err := page.Decode(overflowReads[k].Dst)
				if err != nil {
					return reorgerr.IOErrorf(err, "decoding overflow page")
				}
				chains[i] = WithOverflow(pages[i], op)
			}
		}

		oldSegments = append(oldSegments, entry.info.ID)
		pagesToProcess = append(pagesToProcess, chains...)

		for len(pagesToProcess) > 0 {
			pc := pagesToProcess[0]
			merger.UpdatePageIterator(pc.GetIterator())
			for merger.HasPageRecords() {
				segs := builder.Offer(merger.GetNext())
				if len(segs) == 0 {
					continue
				}
				if err := loadAndFree(segs); err != nil {
					return err
				}
			}
			pagesProcessed = append(pagesProcessed, pc)
			pagesToProcess = pagesToProcess[1:]
		}
	}

	for merger.HasRecords() {
		segs := builder.Offer(merger.GetNext())
		if len(segs) == 0 {
			continue
		}
		if err := loadAndFree(segs); err != nil {
			return err
		}
	}
	if err := flush(); err != nil {
		return err
	}

	if err := r.finalize(oldSegments, overflowsToClear, toRewrite, rewritten); err != nil {
		return err
	}

	r.metrics.RecordRewrite(len(toRewrite), len(rewritten))
	r.log("rewrote %d segment(s) based at %d into %d new segment(s)", len(toRewrite), segmentBase, len(rewritten))
	return nil
}

// finalize zeros page 0 of the old segments and overflows and frees them,
// then erases the old base keys from the index and inserts the new entries.
func (r *SegmentRewriter) finalize(oldSegments, overflows []storage.SegmentId, toRewrite, rewritten []rewriteEntry) error {
	zero := make([]byte, r.opts.PageSize)
	for _, id := range oldSegments {
		if err := r.segIO.WritePages(int64(id), zero, 1); err != nil {
			return reorgerr.IOErrorf(err, "zeroing old segment %d", id)
		}
	}
	for _, id := range overflows {
		if err := r.segIO.WritePages(int64(id), zero, 1); err != nil {
			return reorgerr.IOErrorf(err, "zeroing old overflow %d", id)
		}
	}
	for _, e := range toRewrite {
		r.segIO.FreeSegment(e.info.ID, e.info.PageCount)
	}
	for _, id := range overflows {
		r.segIO.FreeSegment(id, 1)
	}

	for _, e := range toRewrite {
		r.idx.Erase(e.key)
	}
	for _, e := range rewritten {
		r.idx.Insert(e.key, e.info)
	}
	return nil
}

// loadIntoNewSegment splits seg's records across its pages at model-derived
// boundaries, attaches the model to page 0 of a multi-page segment, encodes,
// and persists the segment. Page.Encode does not serialize the model, so the
// persisted bytes carry no model; it is returned in the SegmentInfo.
func (r *SegmentRewriter) loadIntoNewSegment(seg Segment, upperBound uint64) (uint64, index.SegmentInfo, error) {
	var bounds []uint64
	if seg.PageCount > 1 {
		bounds = model.ComputePageLowerBoundaries(seg.BaseKey, *seg.Model, seg.PageCount)
	} else {
		bounds = []uint64{seg.BaseKey}
	}

	pages := make([]*page.Page, seg.PageCount)
	recIdx := 0
	for i := 0; i < seg.PageCount; i++ {
		lo := bounds[i]
		var hi uint64
		if i < seg.PageCount-1 {
			hi = bounds[i+1]
		} else {
			hi = upperBound
		}
		p := page.New(lo, hi, r.opts.PageSize-page.HeaderSize)
		for recIdx < len(seg.Records) {
			k := keyFromBytes(seg.Records[recIdx].Key)
			if i < seg.PageCount-1 && k >= hi {
				break
			}
			if err := p.Put(seg.Records[recIdx]); err != nil {
				wrapped := reorgerr.Fullf("segment rewrite: page %d overflowed its builder-guaranteed capacity: %v", i, err)
				reorgerr.AssertNeverFull(wrapped)
				return 0, index.SegmentInfo{}, wrapped
			}
			recIdx++
		}
		pages[i] = p
	}
	if seg.PageCount > 1 {
		pages[0].SetModel(*seg.Model)
	}

	flat := encodeSegmentPages(pages, r.opts.PageSize)

	segID, err := r.segIO.AllocateSegment(seg.PageCount)
	if err != nil {
		return 0, index.SegmentInfo{}, reorgerr.IOErrorf(err, "allocating segment of %d pages", seg.PageCount)
	}
	if err := r.segIO.WritePages(int64(segID), flat, seg.PageCount); err != nil {
		return 0, index.SegmentInfo{}, reorgerr.IOErrorf(err, "writing segment %d", segID)
	}
	r.metrics.RecordPagesWritten(seg.PageCount)

	return seg.BaseKey, index.SegmentInfo{ID: segID, Model: seg.Model, PageCount: seg.PageCount, HasOverflow: false}, nil
}

// decodeSegmentPages splits a flat, pageCount*pageSize byte buffer into its
// constituent decoded pages.
func decodeSegmentPages(raw []byte, pageSize, pageCount int) ([]*page.Page, error) {
	pages := make([]*page.Page, pageCount)
	for i := 0; i < pageCount; i++ {
		start := i * pageSize
		end := start + pageSize
		if end > len(raw) {
			return nil, fmt.Errorf("segment: truncated page %d", i)
		}
		p, err := page.Decode(raw[start:end])
		if err != nil {
			return nil, fmt.Errorf("segment: decoding page %d: %w", i, err)
		}
		pages[i] = p
	}
	return pages, nil
}

// encodeSegmentPages lays out pages into a flat pageCount*pageSize buffer,
// each page's encoded bytes copied into its own zero-padded slot.
func encodeSegmentPages(pages []*page.Page, pageSize int) []byte {
	flat := make([]byte, len(pages)*pageSize)
	for i, p := range pages {
		encoded := p.Encode()
		if len(encoded) > pageSize {
			wrapped := reorgerr.Fullf("segment rewrite: page %d encoded to %d bytes, exceeding the %d-byte page size", i, len(encoded), pageSize)
			reorgerr.AssertNeverFull(wrapped)
		}
		copy(flat[i*pageSize:(i+1)*pageSize], encoded)
	}
	return flat
}

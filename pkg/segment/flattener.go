package segment

import (
	"context"
	"fmt"
	"math"

	commoniter "github.com/flowkv/flowkv/pkg/common/iterator"
	"github.com/flowkv/flowkv/pkg/common/log"
	"github.com/flowkv/flowkv/pkg/config"
	"github.com/flowkv/flowkv/pkg/page"
	"github.com/flowkv/flowkv/pkg/record"
	"github.com/flowkv/flowkv/pkg/reorgerr"
	"github.com/flowkv/flowkv/pkg/storage"
)

// ChainFlattener specializes the segment rewrite for the common case of a
// single 1-page segment that has accumulated exactly one overflow page: it
// reads both pages, merges them with a sorted in-memory batch, and bulk
// loads the result into one or more fresh 1-page segments.
type ChainFlattener struct {
	segIO   storage.SegmentIO
	idx     Index
	opts    *config.Options
	logger  log.Logger
	metrics Metrics
}

// NewChainFlattener returns a ChainFlattener. logger and metrics may be nil.
func NewChainFlattener(segIO storage.SegmentIO, idx Index, opts *config.Options, logger log.Logger, metrics Metrics) *ChainFlattener {
	if metrics == nil {
		metrics = NewNoopMetrics()
	}
	return &ChainFlattener{segIO: segIO, idx: idx, opts: opts, logger: logger, metrics: metrics}
}

// Flatten rewrites the 1-page segment based at base, folding in addtl
// (sorted ascending by key), into one or more fresh 1-page segments.
func (f *ChainFlattener) Flatten(ctx context.Context, base uint64, addtl []record.Record) error {
	baseKey, info, ok := f.idx.LowerBound(base)
	if !ok || baseKey != base {
		return reorgerr.NotFoundf("segment base %d not found in index", base)
	}
	if info.PageCount != 1 {
		return reorgerr.InvalidArgumentf("segment base %d has %d pages, not a flattenable 1-page segment", base, info.PageCount)
	}

	upper := uint64(math.MaxUint64)
	if nk, _, nok := f.idx.UpperBound(base); nok {
		upper = nk
	}

	raw, err := f.segIO.ReadSegment(info.ID)
	if err != nil {
		return reorgerr.IOErrorf(err, "reading segment %d", info.ID)
	}
	mainPage, err := page.Decode(raw)
	if err != nil {
		return reorgerr.IOErrorf(err, "decoding segment %d", info.ID)
	}

	var overflowID storage.SegmentId
	var overflowPage *page.Page
	hasOverflow := mainPage.HasOverflow()
	if hasOverflow {
		overflowID = storage.SegmentId(mainPage.GetOverflow())
		ovRaw, err := f.segIO.ReadSegment(overflowID)
		if err != nil {
			return reorgerr.IOErrorf(err, "reading overflow segment %d", overflowID)
		}
		overflowPage, err = page.Decode(ovRaw)
		if err != nil {
			return reorgerr.IOErrorf(err, "decoding overflow segment %d", overflowID)
		}
	}

	mainIt := mainPage.GetIterator()
	mainIt.SeekToFirst()
	sources := []commoniter.Iterator{mainIt}
	if overflowPage != nil {
		ovIt := overflowPage.GetIterator()
		ovIt.SeekToFirst()
		sources = append(sources, ovIt)
	}
	pmi := page.NewMergeIterator(sources)
	merger := page.NewRecordMerger(addtl)
	merger.UpdatePageIterator(pmi)

	var merged []record.Record
	for merger.HasRecords() {
		merged = append(merged, merger.GetNext())
	}
	if len(merged) == 0 {
		return fmt.Errorf("segment: flatten produced no records for base %d", base)
	}

	segs := splitIntoPages(merged, f.opts.RecordsPerPageGoal)

	var rewriter SegmentRewriter
	rewriter.segIO = f.segIO
	rewriter.idx = f.idx
	rewriter.opts = f.opts
	rewriter.logger = f.logger
	rewriter.metrics = f.metrics

	var rewritten []rewriteEntry
	for i, seg := range segs {
		var segUpper uint64
		if i < len(segs)-1 {
			segUpper = segs[i+1].BaseKey
		} else {
			segUpper = upper
		}
		key, newInfo, err := rewriter.loadIntoNewSegment(seg, segUpper)
		if err != nil {
			return err
		}
		rewritten = append(rewritten, rewriteEntry{key: key, info: newInfo})
	}

	oldSegments := []storage.SegmentId{info.ID}
	var overflows []storage.SegmentId
	if hasOverflow {
		overflows = append(overflows, overflowID)
	}
	if err := rewriter.finalize(oldSegments, overflows, []rewriteEntry{{key: baseKey, info: info}}, rewritten); err != nil {
		return err
	}

	f.metrics.RecordRewrite(1, len(rewritten))
	if f.logger != nil {
		f.logger.Info("flattened chain at base %d into %d page(s)", base, len(rewritten))
	} else {
		log.Info("flattened chain at base %d into %d page(s)", base, len(rewritten))
	}
	return nil
}

// splitIntoPages packs records into 1-page segments of up to goal records
// each, so LoadIntoNewSegment never needs to grow a chain's page count back
// up; a chain only ever flattens into more single pages, never segments.
func splitIntoPages(records []record.Record, goal int) []Segment {
	if goal < 1 {
		goal = 1
	}
	var segs []Segment
	for start := 0; start < len(records); start += goal {
		end := start + goal
		if end > len(records) {
			end = len(records)
		}
		chunk := records[start:end]
		segs = append(segs, Segment{
			BaseKey:   keyFromBytes(chunk[0].Key),
			PageCount: 1,
			Records:   chunk,
		})
	}
	return segs
}

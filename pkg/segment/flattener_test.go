package segment

import (
	"context"
	"testing"

	"github.com/flowkv/flowkv/pkg/index"
	"github.com/flowkv/flowkv/pkg/record"
	"github.com/flowkv/flowkv/pkg/storage"
)

func TestChainFlattenerMergesOverflowAndInMemoryBatch(t *testing.T) {
	pageSize := 4096
	ms := storage.NewMemStore(pageSize)
	idx := index.New()

	// Disk: (1000, "v") on the main page, (1010, "v") on its overflow;
	// in-memory batch: (1010, "v1-new"), (1020, "v2").
	// Newest-wins on the 1010 tie means the in-memory value survives.
	writeOnePageSegment(t, ms, idx, pageSize, 1000, []uint64{1000}, []uint64{1010})

	opts := testOpts()
	f := NewChainFlattener(ms, idx, opts, nil, nil)

	addtl := []record.Record{
		mustRec(1010, "v1-new", 500),
		mustRec(1020, "v2", 501),
	}
	if err := f.Flatten(context.Background(), 1000, addtl); err != nil {
		t.Fatalf("Flatten failed: %v", err)
	}

	if idx.Len() != 1 {
		t.Fatalf("expected exactly one surviving page after flatten, got %d", idx.Len())
	}
	newBase, info, ok := idx.LowerBound(0)
	if !ok || newBase != 1000 {
		t.Fatalf("expected flattened page based at 1000, got base=%d ok=%v", newBase, ok)
	}
	if info.PageCount != 1 {
		t.Fatalf("expected a single 1-page segment, got page count %d", info.PageCount)
	}

	raw, err := ms.ReadSegment(info.ID)
	if err != nil {
		t.Fatalf("ReadSegment failed: %v", err)
	}
	pages, err := decodeSegmentPages(raw, pageSize, 1)
	if err != nil {
		t.Fatalf("decodeSegmentPages failed: %v", err)
	}
	records := pages[0].Records()
	if len(records) != 3 {
		t.Fatalf("expected 3 merged records, got %d", len(records))
	}

	byKey := map[uint64]string{}
	for _, rec := range records {
		byKey[keyFromBytes(rec.Key)] = string(rec.Value)
	}
	if byKey[1000] != "v" {
		t.Fatalf("expected disk-only key 1000 to keep its value, got %q", byKey[1000])
	}
	if byKey[1010] != "v1-new" {
		t.Fatalf("expected the in-memory write to win on key 1010, got %q", byKey[1010])
	}
	if byKey[1020] != "v2" {
		t.Fatalf("expected in-memory-only key 1020 to be present, got %q", byKey[1020])
	}
}

func TestChainFlattenerRejectsMultiPageSegment(t *testing.T) {
	pageSize := 4096
	ms := storage.NewMemStore(pageSize)
	idx := index.New()
	idx.Insert(2000, index.SegmentInfo{ID: storage.SegmentId(1), PageCount: 2, HasOverflow: false})

	opts := testOpts()
	f := NewChainFlattener(ms, idx, opts, nil, nil)

	if err := f.Flatten(context.Background(), 2000, nil); err == nil {
		t.Fatal("expected an error when flattening a multi-page segment")
	}
}

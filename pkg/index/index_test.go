package index

import (
	"testing"

	"github.com/flowkv/flowkv/pkg/storage"
)

func TestIndexInsertAndLowerBound(t *testing.T) {
	idx := New()
	idx.Insert(100, SegmentInfo{ID: 1})
	idx.Insert(300, SegmentInfo{ID: 3})
	idx.Insert(200, SegmentInfo{ID: 2})

	key, info, ok := idx.LowerBound(150)
	if !ok || key != 200 || info.ID != 2 {
		t.Fatalf("expected (200, id=2), got (%d, %+v, %v)", key, info, ok)
	}

	key, info, ok = idx.LowerBound(200)
	if !ok || key != 200 || info.ID != 2 {
		t.Fatalf("expected LowerBound(200) to return the exact match, got (%d, %+v, %v)", key, info, ok)
	}

	_, _, ok = idx.LowerBound(301)
	if ok {
		t.Fatal("expected no entry beyond the largest key")
	}
}

func TestIndexUpperBound(t *testing.T) {
	idx := New()
	idx.Insert(100, SegmentInfo{ID: 1})
	idx.Insert(200, SegmentInfo{ID: 2})

	key, _, ok := idx.UpperBound(100)
	if !ok || key != 200 {
		t.Fatalf("expected UpperBound(100) = 200, got (%d, %v)", key, ok)
	}

	_, _, ok = idx.UpperBound(200)
	if ok {
		t.Fatal("expected no entry strictly greater than the largest key")
	}
}

func TestIndexFloorEntry(t *testing.T) {
	idx := New()
	idx.Insert(100, SegmentInfo{ID: 1})
	idx.Insert(200, SegmentInfo{ID: 2})

	key, info, ok := idx.FloorEntry(150)
	if !ok || key != 100 || info.ID != 1 {
		t.Fatalf("expected floor(150) = (100, id=1), got (%d, %+v, %v)", key, info, ok)
	}

	_, _, ok = idx.FloorEntry(50)
	if ok {
		t.Fatal("expected no floor entry below the smallest key")
	}

	key, info, ok = idx.FloorEntry(200)
	if !ok || key != 200 || info.ID != 2 {
		t.Fatalf("expected exact match at 200, got (%d, %+v, %v)", key, info, ok)
	}
}

func TestIndexInsertReplacesExisting(t *testing.T) {
	idx := New()
	idx.Insert(100, SegmentInfo{ID: 1})
	idx.Insert(100, SegmentInfo{ID: 99})

	_, info, ok := idx.LowerBound(100)
	if !ok || info.ID != 99 {
		t.Fatalf("expected replaced info with ID 99, got %+v", info)
	}
	if idx.Len() != 1 {
		t.Fatalf("expected a single entry after replace-insert, got %d", idx.Len())
	}
}

func TestIndexErase(t *testing.T) {
	idx := New()
	idx.Insert(100, SegmentInfo{ID: 1})

	if !idx.Erase(100) {
		t.Fatal("expected erase of an existing key to report true")
	}
	if idx.Erase(100) {
		t.Fatal("expected erase of an already-removed key to report false")
	}
	if idx.Len() != 0 {
		t.Fatalf("expected empty index, got %d entries", idx.Len())
	}
}

func TestIndexBulkLoad(t *testing.T) {
	idx := New()
	idx.BulkLoad([]struct {
		Key  uint64
		Info SegmentInfo
	}{
		{Key: 10, Info: SegmentInfo{ID: 1}},
		{Key: 20, Info: SegmentInfo{ID: 2}},
	})
	if idx.Len() != 2 {
		t.Fatalf("expected 2 entries after bulk load, got %d", idx.Len())
	}
	keys := idx.Keys()
	if keys[0] != 10 || keys[1] != 20 {
		t.Fatalf("expected sorted keys [10, 20], got %v", keys)
	}
}

func TestIndexKeysOrdering(t *testing.T) {
	idx := New()
	for _, k := range []uint64{50, 10, 30, 20, 40} {
		idx.Insert(k, SegmentInfo{ID: storage.SegmentId(k)})
	}
	keys := idx.Keys()
	for i := 1; i < len(keys); i++ {
		if keys[i] <= keys[i-1] {
			t.Fatalf("expected strictly increasing keys, got %v", keys)
		}
	}
}

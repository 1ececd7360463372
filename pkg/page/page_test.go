package page

import (
	"testing"

	"github.com/flowkv/flowkv/pkg/model"
	"github.com/flowkv/flowkv/pkg/record"
)

func mustRecord(key uint64, value string, seq uint64) record.Record {
	k := make([]byte, 8)
	for i := 0; i < 8; i++ {
		k[7-i] = byte(key >> (8 * i))
	}
	return record.New(k, []byte(value), seq, record.TypeWrite)
}

func TestPagePutAndIterate(t *testing.T) {
	p := New(0, NoUpperBound, 4096)
	if err := p.Put(mustRecord(3, "c", 1)); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := p.Put(mustRecord(1, "a", 1)); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := p.Put(mustRecord(2, "b", 1)); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	it := p.GetIterator()
	it.SeekToFirst()
	var got []string
	for it.Valid() {
		got = append(got, string(it.Value()))
		it.Next()
	}
	want := []string{"a", "b", "c"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}

func TestPagePutFullReturnsError(t *testing.T) {
	p := New(0, NoUpperBound, 10)
	if err := p.Put(mustRecord(1, "0123456789", 1)); err == nil {
		t.Fatal("expected ErrPageFull for an oversized record")
	}
}

func TestPageOverflowLink(t *testing.T) {
	p := New(0, NoUpperBound, 4096)
	if p.HasOverflow() {
		t.Fatal("expected no overflow by default")
	}
	p.SetOverflow(42)
	if !p.HasOverflow() || p.GetOverflow() != 42 {
		t.Fatalf("expected overflow 42, got %v", p.GetOverflow())
	}
}

func TestPageModel(t *testing.T) {
	p := New(0, NoUpperBound, 4096)
	if _, ok := p.Model(); ok {
		t.Fatal("expected no model by default")
	}
	p.SetModel(model.Line{Slope: 1, Intercept: 2})
	line, ok := p.Model()
	if !ok || line.Slope != 1 || line.Intercept != 2 {
		t.Fatalf("unexpected model: %+v, %v", line, ok)
	}
}

func TestPageEncodeDecodeRoundTrip(t *testing.T) {
	p := New(100, 200, 4096)
	p.SetOverflow(7)
	p.Put(mustRecord(110, "hello", 5))
	p.Put(mustRecord(150, "world", 6))

	data := p.Encode()
	if !VerifyChecksum(data) {
		t.Fatal("expected checksum to verify on a freshly encoded page")
	}

	decoded, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if decoded.Lower != 100 || decoded.Upper != 200 {
		t.Fatalf("expected bounds [100,200), got [%d,%d)", decoded.Lower, decoded.Upper)
	}
	if decoded.GetOverflow() != 7 {
		t.Fatalf("expected overflow 7, got %v", decoded.GetOverflow())
	}
	if decoded.NumRecords() != 2 {
		t.Fatalf("expected 2 records, got %d", decoded.NumRecords())
	}
}

func TestPageEncodeDetectsCorruption(t *testing.T) {
	p := New(0, NoUpperBound, 4096)
	p.Put(mustRecord(1, "a", 1))
	data := p.Encode()
	data[len(data)-1] ^= 0xFF
	if VerifyChecksum(data) {
		t.Fatal("expected checksum mismatch after corrupting the body")
	}
}

func TestOverflowFromBytes(t *testing.T) {
	p := New(0, NoUpperBound, 4096)
	p.SetOverflow(99)
	data := p.Encode()
	if got := OverflowFromBytes(data); got != 99 {
		t.Fatalf("expected overflow 99, got %v", got)
	}
}

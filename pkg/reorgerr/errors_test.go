package reorgerr

import (
	"errors"
	"testing"
)

func TestInvalidArgumentf(t *testing.T) {
	err := InvalidArgumentf("chain head %d exceeds fanout cap", 9)
	if !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected wrapped ErrInvalidArgument, got: %v", err)
	}
}

func TestNotFoundf(t *testing.T) {
	err := NotFoundf("page %d", 7)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected wrapped ErrNotFound, got: %v", err)
	}
}

func TestIOErrorf(t *testing.T) {
	cause := errors.New("disk full")
	err := IOErrorf(cause, "writing page %d", 3)
	if !errors.Is(err, ErrIOError) {
		t.Fatalf("expected wrapped ErrIOError, got: %v", err)
	}
}

func TestFullf(t *testing.T) {
	err := Fullf("no free slots")
	if !errors.Is(err, ErrFull) {
		t.Fatalf("expected wrapped ErrFull, got: %v", err)
	}
}

func TestAssertNeverFullPanicsOnFull(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for ErrFull")
		}
	}()
	AssertNeverFull(Fullf("buffer exhausted"))
}

func TestAssertNeverFullNoPanicOnOtherError(t *testing.T) {
	defer func() {
		if r := recover(); r != nil {
			t.Fatalf("unexpected panic: %v", r)
		}
	}()
	AssertNeverFull(NotFoundf("page %d", 1))
	AssertNeverFull(nil)
}

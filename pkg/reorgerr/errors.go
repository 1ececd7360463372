// Package reorgerr defines the sentinel errors the reorg/rewrite core
// returns, using the Go idiom of errors.Is/errors.As over wrapped
// sentinels rather than a Status/error-code type.
package reorgerr

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidArgument is returned when a caller-supplied argument
	// violates a precondition (e.g. a chain head beyond the configured
	// fanout cap).
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrNotFound is returned when a requested key, page, or segment does
	// not exist.
	ErrNotFound = errors.New("not found")

	// ErrIOError wraps a failure from the underlying storage collaborator.
	ErrIOError = errors.New("io error")

	// ErrFull is returned when a page has no room left for a record, or an
	// encoded page does not fit its page-sized frame.
	ErrFull = errors.New("page full")

	// ErrCorrupt is returned when on-disk structures fail a checksum or
	// structural sanity check.
	ErrCorrupt = errors.New("corrupt data")
)

// InvalidArgumentf wraps ErrInvalidArgument with a formatted message.
func InvalidArgumentf(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrInvalidArgument)
}

// NotFoundf wraps ErrNotFound with a formatted message.
func NotFoundf(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrNotFound)
}

// IOErrorf wraps ErrIOError with a formatted message and an underlying cause.
func IOErrorf(cause error, format string, args ...any) error {
	return fmt.Errorf("%s: %w: %v", fmt.Sprintf(format, args...), ErrIOError, cause)
}

// Fullf wraps ErrFull with a formatted message.
func Fullf(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrFull)
}

// AssertNeverFull panics if err wraps ErrFull. The reorg and rewrite paths
// size their output pages so that a page Put never legitimately fails; a
// caller that hits ErrFull anyway has broken that sizing, and continuing
// would only produce a silently truncated page.
func AssertNeverFull(err error) {
	if errors.Is(err, ErrFull) {
		panic(fmt.Sprintf("reorgerr: unexpected full page: %v", err))
	}
}

// Package config holds the tunables the reorg/rewrite core reads from its
// embedding engine. The core only ever consumes an *Options value, but this
// package follows a manifest-backed, JSON-validated shape rather than a bag
// of loose parameters.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

const (
	// DefaultManifestFileName is the name of the on-disk manifest file.
	DefaultManifestFileName = "MANIFEST"
	// CurrentManifestVersion is the manifest schema version this package writes.
	CurrentManifestVersion = 1
)

var (
	ErrInvalidConfig    = errors.New("invalid configuration")
	ErrManifestNotFound = errors.New("manifest not found")
	ErrInvalidManifest  = errors.New("invalid manifest")
)

// Options holds every tunable the reorg/rewrite core reads from its
// embedding engine.
type Options struct {
	Version int `json:"version"`

	// Record/key sizing, used for page capacity math.
	RecordSize int `json:"record_size"`
	KeySize    int `json:"key_size"`

	// PageSize is the fixed on-disk page size.
	PageSize int `json:"page_size"`

	// MaxReorgFanout is the hard upper bound on pages produced by a single
	// chain reorganization.
	MaxReorgFanout int `json:"max_reorg_fanout"`

	// PageFillPct is the initial target fullness for reorganization output.
	PageFillPct int `json:"page_fill_pct"`

	// RecordsPerPageGoal / RecordsPerPageDelta are targets for the segment
	// builder.
	RecordsPerPageGoal  int `json:"records_per_page_goal"`
	RecordsPerPageDelta int `json:"records_per_page_delta"`

	// ConsiderNeighborsDuringRewrite extends a segment rewrite to adjacent
	// overflowing segments.
	ConsiderNeighborsDuringRewrite bool `json:"consider_neighbors_during_rewrite"`

	// UseSegments chooses the segmented rewrite variant over the
	// single-page-chain reorganization variant.
	UseSegments bool `json:"use_segments"`

	// UseMemoryBasedIO opens segment files memory-backed.
	UseMemoryBasedIO bool `json:"use_memory_based_io"`

	// WriteDebugInfo emits a segment summary CSV to debug/segment_summary.csv.
	WriteDebugInfo bool `json:"write_debug_info"`

	// SegmentPageCounts enumerates the legal segment sizes in pages.
	SegmentPageCounts []int `json:"segment_page_counts"`

	// SlidingWindowPages is validated and persisted with the other options.
	// The segment rewriter does not read it: its in-memory page buffer is
	// always four times the largest segment size (64 pages).
	SlidingWindowPages int `json:"sliding_window_pages"`

	mu sync.RWMutex
}

// NewDefaultOptions returns an Options value with sensible defaults (max
// segment size 16 pages, 4x sliding window, 4KiB pages).
func NewDefaultOptions() *Options {
	return &Options{
		Version: CurrentManifestVersion,

		RecordSize: 64,
		KeySize:    8,
		PageSize:   4096,

		MaxReorgFanout: 8,
		PageFillPct:    50,

		RecordsPerPageGoal:  44,
		RecordsPerPageDelta: 5,

		ConsiderNeighborsDuringRewrite: true,
		UseSegments:                    true,
		UseMemoryBasedIO:               false,
		WriteDebugInfo:                 false,

		SegmentPageCounts:  []int{1, 2, 4, 8, 16},
		SlidingWindowPages: 64,
	}
}

// Validate checks that the configuration is internally consistent.
func (c *Options) Validate() error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.Version <= 0 {
		return fmt.Errorf("%w: invalid version %d", ErrInvalidConfig, c.Version)
	}
	if c.RecordSize <= 0 {
		return fmt.Errorf("%w: record size must be positive", ErrInvalidConfig)
	}
	if c.KeySize <= 0 {
		return fmt.Errorf("%w: key size must be positive", ErrInvalidConfig)
	}
	if c.PageSize <= 0 {
		return fmt.Errorf("%w: page size must be positive", ErrInvalidConfig)
	}
	if c.MaxReorgFanout <= 0 {
		return fmt.Errorf("%w: max reorg fanout must be positive", ErrInvalidConfig)
	}
	if c.PageFillPct <= 0 || c.PageFillPct > 100 {
		return fmt.Errorf("%w: page fill pct must be in (0, 100]", ErrInvalidConfig)
	}
	if c.RecordsPerPageGoal <= 0 {
		return fmt.Errorf("%w: records per page goal must be positive", ErrInvalidConfig)
	}
	if len(c.SegmentPageCounts) == 0 {
		return fmt.Errorf("%w: segment page counts must not be empty", ErrInvalidConfig)
	}
	if c.SlidingWindowPages <= 0 {
		return fmt.Errorf("%w: sliding window pages must be positive", ErrInvalidConfig)
	}
	return nil
}

// LoadOptionsFromManifest loads just the configuration portion of the
// manifest file under dbPath.
func LoadOptionsFromManifest(dbPath string) (*Options, error) {
	manifestPath := filepath.Join(dbPath, DefaultManifestFileName)
	data, err := os.ReadFile(manifestPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrManifestNotFound
		}
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	var opts Options
	if err := json.Unmarshal(data, &opts); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidManifest, err)
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return &opts, nil
}

// SaveManifest writes c to dbPath/MANIFEST using a write-temp-then-rename
// sequence so a crash never leaves a partially written manifest.
func (c *Options) SaveManifest(dbPath string) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if err := c.validateLocked(); err != nil {
		return err
	}
	if err := os.MkdirAll(dbPath, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	manifestPath := filepath.Join(dbPath, DefaultManifestFileName)
	tempPath := manifestPath + ".tmp"

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	if err := os.Rename(tempPath, manifestPath); err != nil {
		return fmt.Errorf("failed to rename manifest: %w", err)
	}
	return nil
}

// validateLocked checks the version, the record/key/page sizes and the
// reorg fanout without re-acquiring the read lock, for callers that already
// hold it. Unlike Validate it does not check the fill percentage, the
// records-per-page goal, the segment page counts or the sliding window.
func (c *Options) validateLocked() error {
	if c.Version <= 0 {
		return fmt.Errorf("%w: invalid version %d", ErrInvalidConfig, c.Version)
	}
	if c.RecordSize <= 0 || c.KeySize <= 0 || c.PageSize <= 0 {
		return fmt.Errorf("%w: sizes must be positive", ErrInvalidConfig)
	}
	if c.MaxReorgFanout <= 0 {
		return fmt.Errorf("%w: max reorg fanout must be positive", ErrInvalidConfig)
	}
	return nil
}

// Update applies fn to the configuration under the write lock.
func (c *Options) Update(fn func(*Options)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn(c)
}

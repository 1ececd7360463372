package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestNewDefaultOptions(t *testing.T) {
	opts := NewDefaultOptions()
	if err := opts.Validate(); err != nil {
		t.Fatalf("default options should validate, got: %v", err)
	}
	if len(opts.SegmentPageCounts) == 0 {
		t.Fatal("expected default segment page counts to be populated")
	}
}

func TestOptionsValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Options)
		wantErr bool
	}{
		{"valid defaults", func(o *Options) {}, false},
		{"zero version", func(o *Options) { o.Version = 0 }, true},
		{"negative record size", func(o *Options) { o.RecordSize = -1 }, true},
		{"zero key size", func(o *Options) { o.KeySize = 0 }, true},
		{"zero page size", func(o *Options) { o.PageSize = 0 }, true},
		{"zero max fanout", func(o *Options) { o.MaxReorgFanout = 0 }, true},
		{"fill pct over 100", func(o *Options) { o.PageFillPct = 101 }, true},
		{"fill pct zero", func(o *Options) { o.PageFillPct = 0 }, true},
		{"zero records per page goal", func(o *Options) { o.RecordsPerPageGoal = 0 }, true},
		{"empty segment page counts", func(o *Options) { o.SegmentPageCounts = nil }, true},
		{"zero sliding window", func(o *Options) { o.SlidingWindowPages = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := NewDefaultOptions()
			tt.mutate(opts)
			err := opts.Validate()
			if tt.wantErr && err == nil {
				t.Fatal("expected validation error, got nil")
			}
			if !tt.wantErr && err != nil {
				t.Fatalf("expected no error, got: %v", err)
			}
			if tt.wantErr && !errors.Is(err, ErrInvalidConfig) {
				t.Fatalf("expected ErrInvalidConfig, got: %v", err)
			}
		})
	}
}

func TestSaveAndLoadOptionsFromManifest(t *testing.T) {
	dir := t.TempDir()

	opts := NewDefaultOptions()
	opts.MaxReorgFanout = 12
	if err := opts.SaveManifest(dir); err != nil {
		t.Fatalf("SaveManifest failed: %v", err)
	}

	loaded, err := LoadOptionsFromManifest(dir)
	if err != nil {
		t.Fatalf("LoadOptionsFromManifest failed: %v", err)
	}
	if loaded.MaxReorgFanout != 12 {
		t.Fatalf("expected MaxReorgFanout 12, got %d", loaded.MaxReorgFanout)
	}
}

func TestLoadOptionsFromManifestMissing(t *testing.T) {
	dir := t.TempDir()
	_, err := LoadOptionsFromManifest(dir)
	if !errors.Is(err, ErrManifestNotFound) {
		t.Fatalf("expected ErrManifestNotFound, got: %v", err)
	}
}

func TestLoadOptionsFromManifestCorrupt(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, DefaultManifestFileName)
	if err := os.WriteFile(path, []byte("not json"), 0644); err != nil {
		t.Fatalf("failed to write corrupt manifest: %v", err)
	}

	_, err := LoadOptionsFromManifest(dir)
	if !errors.Is(err, ErrInvalidManifest) {
		t.Fatalf("expected ErrInvalidManifest, got: %v", err)
	}
}

func TestOptionsUpdate(t *testing.T) {
	opts := NewDefaultOptions()
	opts.Update(func(o *Options) {
		o.WriteDebugInfo = true
	})
	if !opts.WriteDebugInfo {
		t.Fatal("expected WriteDebugInfo to be true after Update")
	}
}

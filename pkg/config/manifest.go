package config

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// ManifestEntry is one versioned snapshot of the configuration plus the set
// of files known to exist at that point.
type ManifestEntry struct {
	Timestamp  int64            `json:"timestamp"`
	Version    int              `json:"version"`
	Options    *Options         `json:"options"`
	FileSystem map[string]int64 `json:"filesystem,omitempty"` // file path -> sequence number
}

// Manifest is the append-only history of configuration changes for a
// database directory, persisted as a JSON array under DefaultManifestFileName.
type Manifest struct {
	DBPath     string
	Entries    []ManifestEntry
	Current    *ManifestEntry
	LastUpdate time.Time
	mu         sync.RWMutex
}

// NewManifest creates a new manifest for the given database path.
func NewManifest(dbPath string, opts *Options) (*Manifest, error) {
	if opts == nil {
		opts = NewDefaultOptions()
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	entry := ManifestEntry{
		Timestamp: time.Now().Unix(),
		Version:   CurrentManifestVersion,
		Options:   opts,
	}

	m := &Manifest{
		DBPath:     dbPath,
		Entries:    []ManifestEntry{entry},
		LastUpdate: time.Now(),
	}
	m.Current = &m.Entries[0]

	return m, nil
}

// LoadManifest loads an existing manifest from the database directory.
func LoadManifest(dbPath string) (*Manifest, error) {
	manifestPath := filepath.Join(dbPath, DefaultManifestFileName)
	file, err := os.Open(manifestPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrManifestNotFound
		}
		return nil, fmt.Errorf("failed to open manifest: %w", err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	var entries []ManifestEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidManifest, err)
	}

	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: no entries in manifest", ErrInvalidManifest)
	}

	current := &entries[len(entries)-1]
	if err := current.Options.Validate(); err != nil {
		return nil, err
	}

	m := &Manifest{
		DBPath:     dbPath,
		Entries:    entries,
		Current:    current,
		LastUpdate: time.Now(),
	}

	return m, nil
}

// Save persists the manifest to disk.
func (m *Manifest) Save() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.Current.Options.Validate(); err != nil {
		return err
	}

	if err := os.MkdirAll(m.DBPath, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	manifestPath := filepath.Join(m.DBPath, DefaultManifestFileName)
	tempPath := manifestPath + ".tmp"

	data, err := json.MarshalIndent(m.Entries, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}

	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}

	if err := os.Rename(tempPath, manifestPath); err != nil {
		return fmt.Errorf("failed to rename manifest: %w", err)
	}

	m.LastUpdate = time.Now()
	return nil
}

// UpdateOptions appends a new configuration entry derived from the current
// one by applying fn.
func (m *Manifest) UpdateOptions(fn func(*Options)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	currentJSON, err := json.Marshal(m.Current.Options)
	if err != nil {
		return fmt.Errorf("failed to marshal current options: %w", err)
	}

	var newOpts Options
	if err := json.Unmarshal(currentJSON, &newOpts); err != nil {
		return fmt.Errorf("failed to unmarshal options: %w", err)
	}

	fn(&newOpts)

	if err := newOpts.Validate(); err != nil {
		return err
	}

	entry := ManifestEntry{
		Timestamp: time.Now().Unix(),
		Version:   CurrentManifestVersion,
		Options:   &newOpts,
	}

	m.Entries = append(m.Entries, entry)
	m.Current = &m.Entries[len(m.Entries)-1]

	return nil
}

// AddFile registers a file in the manifest.
func (m *Manifest) AddFile(path string, seqNum int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Current.FileSystem == nil {
		m.Current.FileSystem = make(map[string]int64)
	}

	m.Current.FileSystem[path] = seqNum
	return nil
}

// RemoveFile removes a file from the manifest.
func (m *Manifest) RemoveFile(path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Current.FileSystem == nil {
		return nil
	}

	delete(m.Current.FileSystem, path)
	return nil
}

// GetOptions returns the current configuration.
func (m *Manifest) GetOptions() *Options {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.Current.Options
}

// GetFiles returns all files registered in the manifest.
func (m *Manifest) GetFiles() map[string]int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.Current.FileSystem == nil {
		return make(map[string]int64)
	}

	files := make(map[string]int64, len(m.Current.FileSystem))
	for k, v := range m.Current.FileSystem {
		files[k] = v
	}

	return files
}

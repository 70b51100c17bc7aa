package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Cache snapshot file names.
const (
	SearchCacheFile = "search_cache.json"
	URLCacheFile    = "url_cache.json"
)

// JSONFilePersister stores a cache as one flat, pretty-printed JSON object.
// It is not safe for several processes writing the same file.
type JSONFilePersister[V any] struct {
	path string
}

// NewJSONFilePersister persists to dir/fileName.
func NewJSONFilePersister[V any](dir, fileName string) *JSONFilePersister[V] {
	return &JSONFilePersister[V]{path: filepath.Join(dir, fileName)}
}

// Location returns the snapshot file path.
func (p *JSONFilePersister[V]) Location() string {
	return p.path
}

// Load reads the snapshot. A missing file yields an empty map.
func (p *JSONFilePersister[V]) Load(ctx context.Context) (map[string]V, error) {
	if err := os.MkdirAll(filepath.Dir(p.path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	data, err := os.ReadFile(p.path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]V{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cache file: %w", err)
	}

	entries := map[string]V{}
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse cache file: %w", err)
	}
	return entries, nil
}

// Store rewrites the snapshot file in full.
func (p *JSONFilePersister[V]) Store(ctx context.Context, entries map[string]V) error {
	dir := filepath.Dir(p.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode cache: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(p.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write cache: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write cache: %w", err)
	}
	return os.Rename(tmp.Name(), p.path)
}

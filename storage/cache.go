// Package storage provides the caches and persistence used by toolhub.
//
// Information Hiding:
// - Map storage and its mutex hidden behind Cache
// - Persistence medium (JSON file, Redis hash) hidden behind Persister
// - Merge policy fixed in one place: in-memory entries win over persisted
//   entries, both when loading and when saving

package storage

import (
	"context"
	"fmt"
	"sync"
)

// Persister loads and stores a whole cache snapshot.
type Persister[V any] interface {
	// Load returns the persisted entries. A missing snapshot is an empty map,
	// not an error.
	Load(ctx context.Context) (map[string]V, error)

	// Store replaces the persisted snapshot with entries.
	Store(ctx context.Context, entries map[string]V) error

	// Location describes where the snapshot lives (for logging).
	Location() string
}

// Cache is a key/value cache with no expiry and no eviction.
//
// Concurrent misses on the same key are not coalesced: callers that both
// miss will both do the underlying work and the last Put wins.
type Cache[V any] struct {
	mu        sync.RWMutex
	entries   map[string]V
	persister Persister[V]
}

// NewCache creates an empty cache. persister may be nil for a cache that
// lives only in memory.
func NewCache[V any](persister Persister[V]) *Cache[V] {
	return &Cache[V]{
		entries:   make(map[string]V),
		persister: persister,
	}
}

// Get returns the value stored under key.
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	v, ok := c.entries[key]
	return v, ok
}

// Put stores value under key, replacing any previous value.
func (c *Cache[V]) Put(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = value
}

// Len returns the number of entries.
func (c *Cache[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.entries)
}

// Snapshot returns a copy of all entries.
func (c *Cache[V]) Snapshot() map[string]V {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[string]V, len(c.entries))
	for k, v := range c.entries {
		out[k] = v
	}
	return out
}

// Persistent reports whether the cache has a persister.
func (c *Cache[V]) Persistent() bool {
	return c.persister != nil
}

// Location returns the persister location, or "" for a memory-only cache.
func (c *Cache[V]) Location() string {
	if c.persister == nil {
		return ""
	}
	return c.persister.Location()
}

// MergeFromDisk loads persisted entries into the cache. Keys already present
// in memory keep their in-memory value. Returns the number of keys added.
func (c *Cache[V]) MergeFromDisk(ctx context.Context) (int, error) {
	if c.persister == nil {
		return 0, nil
	}
	persisted, err := c.persister.Load(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to load cache from %s: %w", c.persister.Location(), err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	added := 0
	for k, v := range persisted {
		if _, exists := c.entries[k]; !exists {
			c.entries[k] = v
			added++
		}
	}
	return added, nil
}

// FlushToDisk merges the persisted snapshot with the in-memory entries
// (in-memory wins on conflict) and rewrites the snapshot in full.
// An unreadable snapshot is treated as empty.
func (c *Cache[V]) FlushToDisk(ctx context.Context) error {
	if c.persister == nil {
		return nil
	}
	merged, err := c.persister.Load(ctx)
	if err != nil || merged == nil {
		merged = make(map[string]V)
	}
	for k, v := range c.Snapshot() {
		merged[k] = v
	}
	if err := c.persister.Store(ctx, merged); err != nil {
		return fmt.Errorf("failed to write cache to %s: %w", c.persister.Location(), err)
	}
	return nil
}

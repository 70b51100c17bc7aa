// In-memory embedding storage.
//
// Information Hiding:
// - Map storage structure hidden from users
// - Thread-safe access via RWMutex hidden behind interface
// - Suitable for testing and ephemeral runs

package storage

import (
	"context"
	"sync"
)

// InMemoryStorage implements EmbeddingStore using an in-memory map.
// Data is lost when process terminates.
type InMemoryStorage struct {
	mu   sync.RWMutex
	sets map[string][][]float32
}

var _ EmbeddingStore = (*InMemoryStorage)(nil)

// NewInMemoryStorage creates a new in-memory storage.
func NewInMemoryStorage() *InMemoryStorage {
	return &InMemoryStorage{
		sets: make(map[string][][]float32),
	}
}

// LoadEmbeddings returns a copy of the vectors stored under key.
func (s *InMemoryStorage) LoadEmbeddings(ctx context.Context, key string) ([][]float32, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	vectors, ok := s.sets[key]
	if !ok {
		return nil, false, nil
	}
	return copyVectors(vectors), true, nil
}

// SaveEmbeddings stores a copy of vectors under key.
func (s *InMemoryStorage) SaveEmbeddings(ctx context.Context, key string, vectors [][]float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sets[key] = copyVectors(vectors)
	return nil
}

// Keys returns the stored cache keys.
func (s *InMemoryStorage) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.sets))
	for k := range s.sets {
		keys = append(keys, k)
	}
	return keys
}

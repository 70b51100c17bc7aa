package storage

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
)

// EmbeddingStore persists corpus embeddings under a cache key derived from
// the embedding model and the corpus identity.
type EmbeddingStore interface {
	// LoadEmbeddings returns the vectors stored under key, with ok=false
	// when nothing is stored.
	LoadEmbeddings(ctx context.Context, key string) (vectors [][]float32, ok bool, err error)

	// SaveEmbeddings replaces the vectors stored under key.
	SaveEmbeddings(ctx context.Context, key string, vectors [][]float32) error
}

func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(buf []byte) ([]float32, error) {
	if len(buf)%4 != 0 {
		return nil, fmt.Errorf("vector blob length %d is not a multiple of 4", len(buf))
	}
	v := make([]float32, len(buf)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return v, nil
}

func copyVectors(vectors [][]float32) [][]float32 {
	out := make([][]float32, len(vectors))
	for i, v := range vectors {
		out[i] = append([]float32(nil), v...)
	}
	return out
}

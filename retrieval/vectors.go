package retrieval

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"
	"slices"
	"strconv"

	"github.com/philippgille/chromem-go"
)

// vectorSet holds corpus vectors in an in-memory chromem collection. Document
// IDs are corpus positions.
type vectorSet struct {
	collection *chromem.Collection
	dimension  int
}

type scored struct {
	position int
	score    float64
}

// precomputed is the collection's embedding function. Documents and queries
// always carry their vectors, so it never runs.
func precomputed(context.Context, string) ([]float32, error) {
	return nil, errors.New("embedding function called but vectors are precomputed")
}

func newVectorSet(ctx context.Context, name string, vectors [][]float32) (*vectorSet, error) {
	col, err := chromem.NewDB().CreateCollection(name, nil, precomputed)
	if err != nil {
		return nil, fmt.Errorf("failed to create vector collection: %w", err)
	}
	set := &vectorSet{collection: col}
	if len(vectors) == 0 {
		return set, nil
	}

	set.dimension = len(vectors[0])
	docs := make([]chromem.Document, len(vectors))
	for i, v := range vectors {
		if len(v) == 0 || len(v) != set.dimension {
			return nil, fmt.Errorf("corpus vector %d has dimension %d, want %d", i, len(v), set.dimension)
		}
		docs[i] = chromem.Document{ID: strconv.Itoa(i), Embedding: v}
	}
	if err := col.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return nil, fmt.Errorf("failed to add corpus vectors: %w", err)
	}
	return set, nil
}

// rank scores every corpus vector against query and returns the best k,
// highest similarity first with ties in corpus order. Zero-norm vectors
// score 0.
func (s *vectorSet) rank(ctx context.Context, query []float32, k int) ([]scored, error) {
	n := s.collection.Count()
	if k <= 0 || n == 0 {
		return nil, nil
	}
	if len(query) != s.dimension {
		return nil, fmt.Errorf("query vector has dimension %d, want %d", len(query), s.dimension)
	}

	results, err := s.collection.QueryEmbedding(ctx, query, n, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("vector query failed: %w", err)
	}

	ranked := make([]scored, 0, len(results))
	for _, r := range results {
		pos, err := strconv.Atoi(r.ID)
		if err != nil {
			return nil, fmt.Errorf("unexpected document id %q", r.ID)
		}
		score := float64(r.Similarity)
		if math.IsNaN(score) {
			score = 0
		}
		ranked = append(ranked, scored{position: pos, score: score})
	}
	slices.SortFunc(ranked, func(a, b scored) int {
		if c := cmp.Compare(b.score, a.score); c != 0 {
			return c
		}
		return cmp.Compare(a.position, b.position)
	})
	return ranked[:min(k, len(ranked))], nil
}

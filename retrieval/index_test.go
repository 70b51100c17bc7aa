package retrieval

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/richinex/toolhub/model"
	"github.com/richinex/toolhub/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// keywordEmbedder scores one dimension per keyword by substring presence.
type keywordEmbedder struct {
	model    string
	keywords []string

	mu    sync.Mutex
	calls [][]string
}

func newKeywordEmbedder(model string, keywords ...string) *keywordEmbedder {
	return &keywordEmbedder{model: model, keywords: keywords}
}

func (e *keywordEmbedder) Model() string { return e.model }

func (e *keywordEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	e.mu.Lock()
	e.calls = append(e.calls, append([]string(nil), texts...))
	e.mu.Unlock()

	out := make([][]float32, len(texts))
	for i, text := range texts {
		lower := strings.ToLower(text)
		v := make([]float32, len(e.keywords))
		for j, kw := range e.keywords {
			if strings.Contains(lower, kw) {
				v[j] = 1
			}
		}
		out[i] = v
	}
	return out, nil
}

func (e *keywordEmbedder) callCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.calls)
}

// vectorEmbedder returns fixed vectors per text.
type vectorEmbedder struct {
	vectors map[string][]float32
}

func (e *vectorEmbedder) Model() string { return "fixed" }

func (e *vectorEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, ok := e.vectors[t]
		if !ok {
			return nil, fmt.Errorf("no vector for %q", t)
		}
		out[i] = v
	}
	return out, nil
}

type failingEmbedder struct{}

func (failingEmbedder) Model() string { return "broken" }
func (failingEmbedder) Embed(context.Context, []string) ([][]float32, error) {
	return nil, errors.New("embedding service unavailable")
}

func docCorpus(names ...string) ([]string, map[string]model.ToolDoc) {
	corpus := NewCorpus()
	for _, n := range names {
		corpus.Add(n, model.ToolDoc{ToolName: n, CallSpec: model.ToolSpec{Name: n}})
	}
	return corpus.Entries(), corpus.Docs()
}

func TestCorpusIdentifierIsMD5OfConcatenation(t *testing.T) {
	sum := md5.Sum([]byte("abc"))
	assert.Equal(t, hex.EncodeToString(sum[:]), CorpusIdentifier([]string{"ab", "c"}))

	key := md5.Sum([]byte("model_corpus"))
	assert.Equal(t, hex.EncodeToString(key[:]), EmbeddingCacheKey("model", "corpus"))
}

func TestModelFamilyFormatting(t *testing.T) {
	tests := []struct {
		model, passage, query string
	}{
		{"intfloat/E5-large-v2", "passage: x", "query: x"},
		{"multilingual-e5-base", "passage: x", "query: x"},
		{"BAAI/bge-large-en", "x", "x"},
		{"text-embedding-3-small", "x", "x"},
	}
	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			assert.Equal(t, tt.passage, FormatPassage(tt.model, "x"))
			assert.Equal(t, tt.query, FormatQuery(tt.model, "x"))
		})
	}
}

func TestIndexEmbedsFormattedCorpusAndQuery(t *testing.T) {
	emb := newKeywordEmbedder("e5-small", "weather", "movie")
	corpus, docs := docCorpus("weather lookup", "movie search")

	idx, err := NewIndex(context.Background(), IndexConfig{Corpus: corpus, Docs: docs, Embedder: emb})
	require.NoError(t, err)

	got, err := idx.Retrieve(context.Background(), "movie", 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "movie search", got[0].ToolName)

	require.Equal(t, 2, emb.callCount())
	assert.Equal(t, []string{"passage: weather lookup", "passage: movie search"}, emb.calls[0])
	assert.Equal(t, []string{"query: movie"}, emb.calls[1])
}

func TestIndexReusesCachedEmbeddings(t *testing.T) {
	store := storage.NewInMemoryStorage()
	corpus, docs := docCorpus("alpha", "beta", "gamma")
	ctx := context.Background()

	first := newKeywordEmbedder("bge", "alpha", "beta")
	idx, err := NewIndex(ctx, IndexConfig{Corpus: corpus, Docs: docs, Embedder: first, Store: store})
	require.NoError(t, err)
	assert.Equal(t, 1, first.callCount())
	assert.Equal(t, []string{idx.CacheKey()}, store.Keys())

	second := newKeywordEmbedder("bge", "alpha", "beta")
	_, err = NewIndex(ctx, IndexConfig{Corpus: corpus, Docs: docs, Embedder: second, Store: store})
	require.NoError(t, err)
	assert.Zero(t, second.callCount(), "cached vectors should be reused")

	otherModel := newKeywordEmbedder("e5", "alpha", "beta")
	_, err = NewIndex(ctx, IndexConfig{Corpus: corpus, Docs: docs, Embedder: otherModel, Store: store})
	require.NoError(t, err)
	assert.Equal(t, 1, otherModel.callCount(), "a different model must not reuse the cache")
}

func TestIndexBatchesCorpusEmbedding(t *testing.T) {
	emb := newKeywordEmbedder("m", "a")
	corpus, docs := docCorpus("a1", "a2", "a3", "a4", "a5")

	_, err := NewIndex(context.Background(), IndexConfig{Corpus: corpus, Docs: docs, Embedder: emb, BatchSize: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, emb.callCount())
}

func TestIndexConstructionErrors(t *testing.T) {
	corpus, docs := docCorpus("a")

	_, err := NewIndex(context.Background(), IndexConfig{Corpus: corpus, Docs: docs})
	assert.Error(t, err, "missing embedder")

	_, err = NewIndex(context.Background(), IndexConfig{Corpus: []string{"b"}, Docs: docs, Embedder: newKeywordEmbedder("m")})
	assert.Error(t, err, "corpus entry without doc")

	_, err = NewIndex(context.Background(), IndexConfig{Corpus: corpus, Docs: docs, Embedder: failingEmbedder{}})
	assert.ErrorContains(t, err, "embedding service unavailable")
}

func TestRetrieveNonPositiveK(t *testing.T) {
	corpus, docs := docCorpus("a")
	idx, err := NewIndex(context.Background(), IndexConfig{Corpus: corpus, Docs: docs, Embedder: newKeywordEmbedder("m", "a")})
	require.NoError(t, err)

	got, err := idx.Retrieve(context.Background(), "a", 0)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSearchScoresZeroNormAsZero(t *testing.T) {
	corpus, docs := docCorpus("blank", "aligned", "opposite")
	idx, err := NewIndex(context.Background(), IndexConfig{
		Corpus: corpus, Docs: docs,
		Embedder: &vectorEmbedder{vectors: map[string][]float32{
			"blank":    {0, 0},
			"aligned":  {2, 0},
			"opposite": {-1, 0},
			"q":        {5, 0},
		}},
	})
	require.NoError(t, err)

	hits, err := idx.Search(context.Background(), "q", 3)
	require.NoError(t, err)
	require.Len(t, hits, 3)
	assert.Equal(t, "aligned", hits[0].Doc.ToolName)
	assert.InDelta(t, 1.0, hits[0].Score, 1e-6)
	assert.Equal(t, "blank", hits[1].Doc.ToolName)
	assert.Zero(t, hits[1].Score)
	assert.InDelta(t, -1.0, hits[2].Score, 1e-6)
}

func TestSearchTiesKeepCorpusOrder(t *testing.T) {
	corpus, docs := docCorpus("a", "b", "c", "d")
	idx, err := NewIndex(context.Background(), IndexConfig{
		Corpus: corpus, Docs: docs,
		Embedder: &vectorEmbedder{vectors: map[string][]float32{
			"a": {1, 1}, "b": {1, 0}, "c": {2, 2}, "d": {3, 0}, "q": {1, 0},
		}},
	})
	require.NoError(t, err)

	hits, err := idx.Search(context.Background(), "q", 4)
	require.NoError(t, err)
	var positions []int
	for _, h := range hits {
		positions = append(positions, h.Position)
	}
	assert.Equal(t, []int{1, 3, 0, 2}, positions)
}

func TestSearchZeroQueryKeepsCorpusOrder(t *testing.T) {
	corpus, docs := docCorpus("a", "b")
	idx, err := NewIndex(context.Background(), IndexConfig{
		Corpus: corpus, Docs: docs,
		Embedder: &vectorEmbedder{vectors: map[string][]float32{
			"a": {0, 1}, "b": {1, 0}, "q": {0, 0},
		}},
	})
	require.NoError(t, err)

	got, err := idx.Retrieve(context.Background(), "q", 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].ToolName)
	assert.Equal(t, "b", got[1].ToolName)
}

func TestIndexRejectsMixedDimensions(t *testing.T) {
	corpus, docs := docCorpus("a", "b")
	_, err := NewIndex(context.Background(), IndexConfig{
		Corpus: corpus, Docs: docs,
		Embedder: &vectorEmbedder{vectors: map[string][]float32{"a": {1, 0}, "b": {1}}},
	})
	assert.ErrorContains(t, err, "dimension")
}

func TestRetrieveOrderingProperty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(1, 20).Draw(rt, "n")
		k := rapid.IntRange(0, 25).Draw(rt, "k")
		component := rapid.IntRange(-3, 3)

		vectors := map[string][]float32{}
		names := make([]string, n)
		for i := range names {
			names[i] = fmt.Sprintf("tool-%d", i)
			vectors[names[i]] = []float32{
				float32(component.Draw(rt, "x")),
				float32(component.Draw(rt, "y")),
			}
		}
		vectors["q"] = []float32{float32(component.Draw(rt, "qx")), float32(component.Draw(rt, "qy"))}

		corpus, docs := docCorpus(names...)
		idx, err := NewIndex(context.Background(), IndexConfig{
			Corpus: corpus, Docs: docs, Embedder: &vectorEmbedder{vectors: vectors},
		})
		if err != nil {
			rt.Fatalf("NewIndex: %v", err)
		}

		hits, err := idx.Search(context.Background(), "q", k)
		if err != nil {
			rt.Fatalf("Search: %v", err)
		}
		if len(hits) != min(k, n) {
			rt.Fatalf("got %d hits, want %d", len(hits), min(k, n))
		}
		for i := 1; i < len(hits); i++ {
			prev, cur := hits[i-1], hits[i]
			if cur.Score > prev.Score {
				rt.Fatalf("scores increase at %d: %v > %v", i, cur.Score, prev.Score)
			}
			if cur.Score == prev.Score && cur.Position < prev.Position {
				rt.Fatalf("tie at %d not in insertion order", i)
			}
		}

		again, _ := idx.Search(context.Background(), "q", k)
		for i := range hits {
			if hits[i].Position != again[i].Position {
				rt.Fatalf("non-deterministic result at %d", i)
			}
		}
	})
}

func TestCorpusAddDeduplicates(t *testing.T) {
	c := NewCorpus()
	assert.True(t, c.Add("x", model.ToolDoc{ToolName: "first"}))
	assert.False(t, c.Add("x", model.ToolDoc{ToolName: "second"}))
	assert.True(t, c.Add("y", model.ToolDoc{ToolName: "y"}))

	assert.Equal(t, []string{"x", "y"}, c.Entries())
	assert.Equal(t, "first", c.Docs()["x"].ToolName)
	assert.Len(t, c.Docs(), c.Len())
}

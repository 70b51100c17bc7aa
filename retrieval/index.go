// Package retrieval implements semantic search over tool description corpora.
//
// Information Hiding:
// - Corpus identity and embedding cache keys
// - Model-family query/passage formatting
// - Embedding reuse from the store, batched computation on a miss
// - Nearest-neighbour ranking with stable tie-breaking
package retrieval

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/richinex/toolhub/llm"
	"github.com/richinex/toolhub/model"
	"github.com/richinex/toolhub/storage"
	"go.uber.org/zap"
)

// DefaultBatchSize is the number of corpus entries embedded per request.
const DefaultBatchSize = 64

// Retriever answers "which k tools best match this query".
// executable carries the caller's live tool specs; retrievers that do not
// override by name ignore it.
type Retriever interface {
	RetrieveTools(ctx context.Context, query string, k int, executable []model.ToolSpec) ([]model.ToolDoc, error)
}

// IndexConfig configures NewIndex.
type IndexConfig struct {
	// Corpus is the ordered list of unique content strings.
	Corpus []string
	// Docs maps each corpus string to its ToolDoc.
	Docs map[string]model.ToolDoc
	// Embedder computes vectors. Its Model() selects formatting.
	Embedder llm.Embedder
	// Store caches corpus vectors across runs. Nil disables reuse.
	Store storage.EmbeddingStore
	// CorpusID overrides the content-hash corpus identifier.
	CorpusID  string
	BatchSize int
	Logger    *zap.Logger
}

// Index is an immutable embedding index over a fixed corpus.
type Index struct {
	corpus    []string
	docs      []model.ToolDoc
	byContent map[string]int
	vectors   *vectorSet
	embedder  llm.Embedder
	corpusID  string
	cacheKey  string
	logger    *zap.Logger
}

// Hit is a ranked corpus entry.
type Hit struct {
	Position int
	Score    float64
	Doc      model.ToolDoc
}

var _ Retriever = (*Index)(nil)

// NewIndex builds an index, reusing cached corpus vectors when the store
// holds a matching set for the (model, corpus) pair.
func NewIndex(ctx context.Context, cfg IndexConfig) (*Index, error) {
	if cfg.Embedder == nil {
		return nil, errors.New("retrieval index requires an embedder")
	}

	docs := make([]model.ToolDoc, len(cfg.Corpus))
	byContent := make(map[string]int, len(cfg.Corpus))
	for i, content := range cfg.Corpus {
		doc, ok := cfg.Docs[content]
		if !ok {
			return nil, fmt.Errorf("corpus entry %d has no tool doc", i)
		}
		if _, dup := byContent[content]; dup {
			return nil, fmt.Errorf("corpus entry %d duplicates an earlier entry", i)
		}
		docs[i] = doc
		byContent[content] = i
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	corpusID := cfg.CorpusID
	if corpusID == "" {
		corpusID = CorpusIdentifier(cfg.Corpus)
	}
	modelID := cfg.Embedder.Model()

	idx := &Index{
		corpus:    cfg.Corpus,
		docs:      docs,
		byContent: byContent,
		embedder:  cfg.Embedder,
		corpusID:  corpusID,
		cacheKey:  EmbeddingCacheKey(modelID, corpusID),
		logger: logger.With(
			zap.String("component", "retrieval"),
			zap.String("model", modelID),
		),
	}

	vectors, err := idx.buildVectors(ctx, cfg.Store, cfg.BatchSize)
	if err != nil {
		return nil, err
	}
	if idx.vectors, err = newVectorSet(ctx, idx.cacheKey, vectors); err != nil {
		return nil, err
	}
	return idx, nil
}

func (idx *Index) buildVectors(ctx context.Context, store storage.EmbeddingStore, batchSize int) ([][]float32, error) {
	if len(idx.corpus) == 0 {
		return nil, nil
	}

	if store != nil {
		vectors, ok, err := store.LoadEmbeddings(ctx, idx.cacheKey)
		switch {
		case err != nil:
			idx.logger.Warn("embedding cache read failed", zap.Error(err))
		case ok && len(vectors) == len(idx.corpus):
			idx.logger.Info("loaded cached corpus embeddings",
				zap.String("cache_key", idx.cacheKey),
				zap.Int("entries", len(vectors)))
			return vectors, nil
		}
	}

	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	modelID := idx.embedder.Model()
	formatted := make([]string, len(idx.corpus))
	for i, text := range idx.corpus {
		formatted[i] = FormatPassage(modelID, text)
	}

	vectors := make([][]float32, 0, len(formatted))
	for start := 0; start < len(formatted); start += batchSize {
		end := min(start+batchSize, len(formatted))
		batch, err := idx.embedder.Embed(ctx, formatted[start:end])
		if err != nil {
			return nil, fmt.Errorf("failed to embed corpus batch %d-%d: %w", start, end, err)
		}
		if len(batch) != end-start {
			return nil, fmt.Errorf("embedder returned %d vectors for %d texts", len(batch), end-start)
		}
		vectors = append(vectors, batch...)
	}
	idx.logger.Info("computed corpus embeddings", zap.Int("entries", len(vectors)))

	if store != nil {
		if err := store.SaveEmbeddings(ctx, idx.cacheKey, vectors); err != nil {
			idx.logger.Warn("embedding cache write failed", zap.Error(err))
		}
	}
	return vectors, nil
}

// CorpusIdentifier is the hex md5 of the concatenated corpus.
func CorpusIdentifier(corpus []string) string {
	h := md5.New()
	for _, s := range corpus {
		h.Write([]byte(s))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// EmbeddingCacheKey derives the store key for a (model, corpus) pair.
func EmbeddingCacheKey(modelID, corpusID string) string {
	sum := md5.Sum([]byte(modelID + "_" + corpusID))
	return hex.EncodeToString(sum[:])
}

func isE5(modelID string) bool {
	return strings.Contains(strings.ToLower(modelID), "e5")
}

// FormatPassage formats a corpus entry for the model family.
func FormatPassage(modelID, text string) string {
	if isE5(modelID) {
		return "passage: " + text
	}
	return text
}

// FormatQuery formats a query for the model family.
func FormatQuery(modelID, text string) string {
	if isE5(modelID) {
		return "query: " + text
	}
	return text
}

// Len returns the number of corpus entries.
func (idx *Index) Len() int {
	return len(idx.corpus)
}

// CorpusID returns the corpus identifier.
func (idx *Index) CorpusID() string {
	return idx.corpusID
}

// CacheKey returns the embedding cache key.
func (idx *Index) CacheKey() string {
	return idx.cacheKey
}

// Doc returns the ToolDoc for a content string.
func (idx *Index) Doc(content string) (model.ToolDoc, bool) {
	i, ok := idx.byContent[content]
	if !ok {
		return model.ToolDoc{}, false
	}
	return idx.docs[i], true
}

// Search ranks the corpus against query and returns at most k hits.
func (idx *Index) Search(ctx context.Context, query string, k int) ([]Hit, error) {
	if k <= 0 || len(idx.corpus) == 0 {
		return []Hit{}, nil
	}

	qv, err := idx.embedder.Embed(ctx, []string{FormatQuery(idx.embedder.Model(), query)})
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	if len(qv) != 1 {
		return nil, fmt.Errorf("embedder returned %d vectors for query", len(qv))
	}

	ranked, err := idx.vectors.rank(ctx, qv[0], k)
	if err != nil {
		return nil, err
	}
	hits := make([]Hit, len(ranked))
	for i, r := range ranked {
		hits[i] = Hit{Position: r.position, Score: r.score, Doc: idx.docs[r.position]}
	}
	return hits, nil
}

// Retrieve returns the top k ToolDocs for query.
func (idx *Index) Retrieve(ctx context.Context, query string, k int) ([]model.ToolDoc, error) {
	hits, err := idx.Search(ctx, query, k)
	if err != nil {
		return nil, err
	}
	docs := make([]model.ToolDoc, len(hits))
	for i, h := range hits {
		docs[i] = h.Doc
	}
	return docs, nil
}

// RetrieveTools implements Retriever; executable is ignored.
func (idx *Index) RetrieveTools(ctx context.Context, query string, k int, _ []model.ToolSpec) ([]model.ToolDoc, error) {
	return idx.Retrieve(ctx, query, k)
}

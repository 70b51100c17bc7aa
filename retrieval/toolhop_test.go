package retrieval

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/richinex/toolhub/model"
	"github.com/richinex/toolhub/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const toolhopFixture = `[
  {
    "id": 1,
    "question": "What is the weather where the director of Alien was born?",
    "functions": ["def get_director(movie): ...", "def get_weather(city): ..."],
    "tools": {
      "Who directed Alien?": {"name": "get_director", "description": "Find a film's director", "parameters": {"type": "object", "properties": {"movie": {"type": "string"}}}},
      "What is the weather in South Shields?": {"name": "get_weather", "description": "Current weather for a city", "parameters": {"type": "object", "properties": {"city": {"type": "string"}}}},
      "Unnamed step": {"name": "", "description": "ignored"}
    }
  },
  {
    "id": "2",
    "question": "Weather at the birthplace of another director?",
    "functions": ["def get_weather(city): ..."],
    "tools": {
      "What is the weather in Gwangju?": {"name": "get_weather", "description": "Current weather for a city", "parameters": {"type": "object", "properties": {"city": {"type": "string"}}}}
    }
  }
]`

func writeToolhopFixture(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "toolhop.json")
	require.NoError(t, os.WriteFile(path, []byte(toolhopFixture), 0644))
	return path
}

func TestToolHopSamplesKeepToolOrder(t *testing.T) {
	samples, err := LoadToolHopSamples(writeToolhopFixture(t))
	require.NoError(t, err)
	require.Len(t, samples, 2)

	assert.Equal(t, "1", samples[0].ID)
	assert.Equal(t, "2", samples[1].ID)

	var subs []string
	for _, tool := range samples[0].Tools {
		subs = append(subs, tool.SubQuestion)
	}
	assert.Equal(t, []string{"Who directed Alien?", "What is the weather in South Shields?", "Unnamed step"}, subs)
	assert.Equal(t, `{"type":"object","properties":{"city":{"type":"string"}}}`, samples[0].Tools[1].Params)
}

func TestBuildToolHopCorpusCoalescesIdenticalTools(t *testing.T) {
	samples, err := LoadToolHopSamples(writeToolhopFixture(t))
	require.NoError(t, err)

	corpus := BuildToolHopCorpus(samples)
	require.Equal(t, 2, corpus.Len(), "identical get_weather specs collapse and empty names are skipped")

	weather := corpus.Docs()[corpus.Entries()[1]]
	assert.Equal(t, "get_weather", weather.ToolName)
	assert.Equal(t, samples[0].Functions, weather.SourceFunctions, "first sample's functions are kept")
	assert.Equal(t,
		"get_weather\nDescription: Current weather for a city\nParameters: {\"type\":\"object\",\"properties\":{\"city\":{\"type\":\"string\"}}}",
		corpus.Entries()[1])
}

func TestToolHopOverrideByExecutableTools(t *testing.T) {
	samples, err := LoadToolHopSamples(writeToolhopFixture(t))
	require.NoError(t, err)

	idx, err := NewToolHopIndexFromSamples(context.Background(), samples, IndexConfig{
		Embedder: newKeywordEmbedder("bge", "weather", "director"),
	})
	require.NoError(t, err)

	override := model.ToolSpec{
		Name:        "get_weather",
		Description: "Current weather for a city",
		Parameters: map[string]any{
			"type":       "object",
			"properties": map[string]any{"city": map[string]any{"type": "string"}, "unit": map[string]any{"type": "string"}},
		},
	}

	got, err := idx.Retrieve(context.Background(), "weather", 5, []model.ToolSpec{override})
	require.NoError(t, err)

	count := 0
	for _, doc := range got {
		if doc.ToolName == "get_weather" {
			count++
			assert.Equal(t, override, doc.CallSpec)
			assert.Equal(t, samples[0].Functions, doc.SourceFunctions)
		}
	}
	assert.Equal(t, 1, count, "get_weather must appear exactly once")
	assert.Equal(t, "get_weather", got[0].ToolName, "best match first")
	assert.LessOrEqual(t, len(got), 5)
}

func TestToolHopRetrieveUniqueNamesWithoutOverride(t *testing.T) {
	samples := []ToolHopSample{}
	require.NoError(t, json.Unmarshal([]byte(`[
		{"id": "a", "functions": ["fa"], "tools": {"q1": {"name": "lookup", "description": "weather v1"}}},
		{"id": "b", "functions": ["fb"], "tools": {"q2": {"name": "lookup", "description": "weather v2"}}},
		{"id": "c", "functions": ["fc"], "tools": {"q3": {"name": "other", "description": "weather too"}}}
	]`), &samples))

	idx, err := NewToolHopIndexFromSamples(context.Background(), samples, IndexConfig{
		Embedder: newKeywordEmbedder("m", "weather"),
	})
	require.NoError(t, err)
	assert.Equal(t, 3, idx.Len())

	got, err := idx.Retrieve(context.Background(), "weather", 2, nil)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "lookup", got[0].ToolName)
	assert.Equal(t, "weather v1", got[0].CallSpec.Description, "ties resolve to the earlier entry")
	assert.Equal(t, "other", got[1].ToolName)
}

func TestNewToolHopIndexKeysCacheByContent(t *testing.T) {
	ctx := context.Background()
	path := writeToolhopFixture(t)
	store := storage.NewInMemoryStorage()

	first, err := NewToolHopIndex(ctx, path, IndexConfig{Embedder: newKeywordEmbedder("m", "weather"), Store: store})
	require.NoError(t, err)
	corpus := BuildToolHopCorpus(mustLoadSamples(t, path))
	assert.Equal(t, CorpusIdentifier(corpus.Entries()), first.index.CorpusID())

	unchanged := newKeywordEmbedder("m", "weather")
	_, err = NewToolHopIndex(ctx, path, IndexConfig{Embedder: unchanged, Store: store})
	require.NoError(t, err)
	assert.Zero(t, unchanged.callCount(), "an unchanged corpus reuses cached vectors")

	edited := strings.Replace(toolhopFixture, "Find a film's director", "Look up who directed a film", 1)
	require.NoError(t, os.WriteFile(path, []byte(edited), 0644))

	rebuilt := newKeywordEmbedder("m", "weather")
	second, err := NewToolHopIndex(ctx, path, IndexConfig{Embedder: rebuilt, Store: store})
	require.NoError(t, err)
	assert.Equal(t, first.Len(), second.Len())
	assert.NotEqual(t, first.index.CacheKey(), second.index.CacheKey())
	assert.Equal(t, 1, rebuilt.callCount(), "an edited corpus of the same size is embedded again")
}

func mustLoadSamples(t *testing.T, path string) []ToolHopSample {
	t.Helper()
	samples, err := LoadToolHopSamples(path)
	require.NoError(t, err)
	return samples
}

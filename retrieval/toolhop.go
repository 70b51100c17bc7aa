package retrieval

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/richinex/toolhub/model"
)

// OverFetchFactor multiplies k when fetching ToolHop candidates, since many
// samples reuse a tool name with different signatures.
const OverFetchFactor = 20

// ToolHopSample is one multi-hop question with its per-subquestion tools.
type ToolHopSample struct {
	ID        string
	Question  string
	Functions []string
	Tools     []SubQuestionTool // file order
}

// SubQuestionTool binds a sub-question to the tool that answers it.
type SubQuestionTool struct {
	SubQuestion string
	Spec        model.ToolSpec
	// Params is the compact parameter JSON as it appeared in the file.
	Params string
}

type rawSample struct {
	ID        json.RawMessage `json:"id"`
	Question  string          `json:"question"`
	Functions []string        `json:"functions"`
	Tools     json.RawMessage `json:"tools"`
}

type rawTool struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

// UnmarshalJSON decodes a sample, keeping the order of the tools object.
func (s *ToolHopSample) UnmarshalJSON(data []byte) error {
	var raw rawSample
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	tools, err := decodeOrderedTools(raw.Tools)
	if err != nil {
		return fmt.Errorf("sample tools: %w", err)
	}

	*s = ToolHopSample{
		ID:        rawID(raw.ID),
		Question:  raw.Question,
		Functions: raw.Functions,
		Tools:     tools,
	}
	return nil
}

func rawID(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	if s, err := strconv.Unquote(string(raw)); err == nil {
		return s
	}
	return string(raw)
}

func decodeOrderedTools(raw json.RawMessage) ([]SubQuestionTool, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("expected object, got %v", tok)
	}

	var tools []SubQuestionTool
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, _ := keyTok.(string)

		var t rawTool
		if err := dec.Decode(&t); err != nil {
			return nil, fmt.Errorf("tool %q: %w", key, err)
		}

		params := "{}"
		var paramMap map[string]any
		if len(t.Parameters) > 0 && string(t.Parameters) != "null" {
			var buf bytes.Buffer
			if err := json.Compact(&buf, t.Parameters); err != nil {
				return nil, fmt.Errorf("tool %q parameters: %w", key, err)
			}
			params = buf.String()
			// Non-object schemas are kept in the content string only.
			_ = json.Unmarshal(t.Parameters, &paramMap)
		}

		tools = append(tools, SubQuestionTool{
			SubQuestion: key,
			Spec: model.ToolSpec{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  paramMap,
			},
			Params: params,
		})
	}
	return tools, nil
}

// LoadToolHopSamples reads a JSON array of samples.
func LoadToolHopSamples(path string) ([]ToolHopSample, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read toolhop corpus: %w", err)
	}
	var samples []ToolHopSample
	if err := json.Unmarshal(data, &samples); err != nil {
		return nil, fmt.Errorf("failed to parse toolhop corpus %s: %w", path, err)
	}
	return samples, nil
}

// BuildToolHopCorpus indexes every named sub-question tool. Identical
// content keeps the first sample's doc.
func BuildToolHopCorpus(samples []ToolHopSample) *Corpus {
	corpus := NewCorpus()
	for _, sample := range samples {
		for _, t := range sample.Tools {
			if t.Spec.Name == "" {
				continue
			}
			corpus.Add(IndexContent(t.Spec.Name, t.Spec.Description, t.Params), model.ToolDoc{
				ToolName:        t.Spec.Name,
				CallSpec:        t.Spec,
				SourceFunctions: sample.Functions,
			})
		}
	}
	return corpus
}

// ToolHopIndex retrieves unique tool names, preferring the caller's live
// executable specs over the indexed copies.
type ToolHopIndex struct {
	index *Index
}

var _ Retriever = (*ToolHopIndex)(nil)

// NewToolHopIndex loads samples from path and indexes them.
func NewToolHopIndex(ctx context.Context, path string, cfg IndexConfig) (*ToolHopIndex, error) {
	samples, err := LoadToolHopSamples(path)
	if err != nil {
		return nil, err
	}
	return NewToolHopIndexFromSamples(ctx, samples, cfg)
}

// NewToolHopIndexFromSamples indexes already-decoded samples.
func NewToolHopIndexFromSamples(ctx context.Context, samples []ToolHopSample, cfg IndexConfig) (*ToolHopIndex, error) {
	corpus := BuildToolHopCorpus(samples)
	cfg.Corpus = corpus.Entries()
	cfg.Docs = corpus.Docs()

	idx, err := NewIndex(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &ToolHopIndex{index: idx}, nil
}

// Len returns the number of unique corpus entries.
func (t *ToolHopIndex) Len() int {
	return t.index.Len()
}

// Retrieve returns up to k docs with distinct tool names in score order.
// A name present in executable is emitted with that spec.
func (t *ToolHopIndex) Retrieve(ctx context.Context, query string, k int, executable []model.ToolSpec) ([]model.ToolDoc, error) {
	if k <= 0 {
		return []model.ToolDoc{}, nil
	}

	candidates, err := t.index.Retrieve(ctx, query, k*OverFetchFactor)
	if err != nil {
		return nil, err
	}

	overrides := make(map[string]model.ToolSpec, len(executable))
	for _, spec := range executable {
		if spec.Name != "" {
			overrides[spec.Name] = spec
		}
	}

	seen := make(map[string]bool, k)
	out := make([]model.ToolDoc, 0, k)
	for _, doc := range candidates {
		if len(out) >= k {
			break
		}
		if doc.ToolName == "" || seen[doc.ToolName] {
			continue
		}
		if spec, ok := overrides[doc.ToolName]; ok {
			doc = model.ToolDoc{
				ToolName:        doc.ToolName,
				CallSpec:        spec,
				SourceFunctions: doc.SourceFunctions,
			}
		}
		out = append(out, doc)
		seen[doc.ToolName] = true
	}
	return out, nil
}

// RetrieveTools implements Retriever.
func (t *ToolHopIndex) RetrieveTools(ctx context.Context, query string, k int, executable []model.ToolSpec) ([]model.ToolDoc, error) {
	return t.Retrieve(ctx, query, k, executable)
}

package retrieval

import (
	"encoding/json"

	"github.com/richinex/toolhub/model"
)

// Corpus accumulates unique content strings with their ToolDocs in
// insertion order.
type Corpus struct {
	entries []string
	docs    map[string]model.ToolDoc
}

// NewCorpus returns an empty corpus.
func NewCorpus() *Corpus {
	return &Corpus{docs: make(map[string]model.ToolDoc)}
}

// Add appends content with its doc. A content string already present is
// skipped and the first doc is kept; Add reports whether it inserted.
func (c *Corpus) Add(content string, doc model.ToolDoc) bool {
	if _, ok := c.docs[content]; ok {
		return false
	}
	c.entries = append(c.entries, content)
	c.docs[content] = doc
	return true
}

// Entries returns the content strings in insertion order.
func (c *Corpus) Entries() []string {
	return c.entries
}

// Docs returns the content → ToolDoc table.
func (c *Corpus) Docs() map[string]model.ToolDoc {
	return c.docs
}

// Len returns the number of unique entries.
func (c *Corpus) Len() int {
	return len(c.entries)
}

// IndexContent formats a tool for indexing. params is the compact JSON of
// the parameter schema.
func IndexContent(name, description, params string) string {
	return name + "\nDescription: " + description + "\nParameters: " + params
}

// SpecContent formats a ToolSpec for indexing.
func SpecContent(spec model.ToolSpec) string {
	return IndexContent(spec.Name, spec.Description, compactParams(spec.Parameters))
}

func compactParams(params map[string]any) string {
	if params == nil {
		return "{}"
	}
	data, err := json.Marshal(params)
	if err != nil {
		return "{}"
	}
	return string(data)
}

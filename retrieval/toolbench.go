package retrieval

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"github.com/richinex/toolhub/model"
)

const (
	maxFunctionNameLen   = 64
	maxDescriptionLength = 256
)

var (
	whitespaceRun = regexp.MustCompile(`\s+`)
	nonNameChar   = regexp.MustCompile(`[^a-z0-9_]`)

	reservedNames = map[string]bool{
		"from": true, "class": true, "return": true, "false": true,
		"true": true, "id": true, "and": true,
	}

	paramTypes = map[string]string{
		"NUMBER":  "integer",
		"STRING":  "string",
		"BOOLEAN": "boolean",
	}
)

// Standardize lowercases name, turns whitespace runs into underscores and
// drops characters outside [a-z0-9_].
func Standardize(name string) string {
	s := strings.ToLower(name)
	s = whitespaceRun.ReplaceAllString(s, "_")
	return nonNameChar.ReplaceAllString(s, "")
}

// ChangeName prefixes names that collide with reserved words.
func ChangeName(name string) string {
	if reservedNames[name] {
		return "is_" + name
	}
	return name
}

// FunctionName joins api and tool as "<api>_for_<tool>", keeping the last
// 64 characters.
func FunctionName(api, tool string) string {
	name := api + "_for_" + tool
	if len(name) > maxFunctionNameLen {
		name = name[len(name)-maxFunctionNameLen:]
	}
	return name
}

// ToolBenchParam is a RapidAPI parameter description.
type ToolBenchParam struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description"`
	Default     any    `json:"default"`
}

// ToolBenchDocument is one row of the ToolBench corpus TSV.
type ToolBenchDocument struct {
	CategoryName       string           `json:"category_name"`
	ToolName           string           `json:"tool_name"`
	APIName            string           `json:"api_name"`
	APIDescription     string           `json:"api_description"`
	RequiredParameters []ToolBenchParam `json:"required_parameters"`
	OptionalParameters []ToolBenchParam `json:"optional_parameters"`
	Method             string           `json:"method"`
	TemplateResponse   any              `json:"template_response"`
}

// Content is the retrieval text for the document.
func (d ToolBenchDocument) Content() string {
	marshal := func(v any) string {
		data, _ := json.Marshal(v)
		return string(data)
	}
	return strings.Join([]string{
		d.CategoryName, d.ToolName, d.APIName, d.APIDescription,
		"required_params: " + marshal(d.RequiredParameters),
		"optional_params: " + marshal(d.OptionalParameters),
		"return_schema: " + marshal(d.TemplateResponse),
	}, ", ")
}

// ToolDoc converts the document into its callable ToolDoc.
func (d ToolBenchDocument) ToolDoc() model.ToolDoc {
	tool := Standardize(d.ToolName)
	api := ChangeName(Standardize(d.APIName))
	name := FunctionName(api, tool)

	description := fmt.Sprintf("This is the subfunction for tool %q, you can use this tool.", tool)
	if desc := strings.TrimSpace(d.APIDescription); desc != "" {
		desc = strings.ReplaceAll(desc, d.APIName, name)
		if len(desc) > maxDescriptionLength {
			desc = desc[:maxDescriptionLength]
		}
		description += fmt.Sprintf("The description of this function is: %q", desc)
	}

	properties := map[string]any{}
	required := []string{}
	optional := []string{}
	for _, p := range d.RequiredParameters {
		n := ChangeName(Standardize(p.Name))
		properties[n] = p.schema()
		required = append(required, n)
	}
	for _, p := range d.OptionalParameters {
		n := ChangeName(Standardize(p.Name))
		properties[n] = p.schema()
		optional = append(optional, n)
	}

	return model.ToolDoc{
		ToolName: tool,
		CallSpec: model.ToolSpec{
			Name:        name,
			Description: description,
			Parameters: map[string]any{
				"type":       "object",
				"properties": properties,
				"required":   required,
				"optional":   optional,
			},
		},
		CategoryName: d.CategoryName,
		APIName:      api,
	}
}

func (p ToolBenchParam) schema() map[string]any {
	t, ok := paramTypes[p.Type]
	if !ok {
		t = "string"
	}
	desc := p.Description
	if len(desc) > maxDescriptionLength {
		desc = desc[:maxDescriptionLength]
	}
	s := map[string]any{"type": t, "description": desc}
	if p.Default != nil && fmt.Sprint(p.Default) != "" {
		s["example_value"] = p.Default
	}
	return s
}

// LoadToolBenchDocuments reads a TSV with a header containing docid and
// document_content (a JSON object) columns.
func LoadToolBenchDocuments(path string) ([]ToolBenchDocument, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open toolbench corpus: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.Comma = '\t'
	r.LazyQuotes = true
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read toolbench header: %w", err)
	}
	col := -1
	for i, h := range header {
		if strings.TrimSpace(h) == "document_content" {
			col = i
		}
	}
	if col < 0 {
		return nil, errors.New("toolbench corpus has no document_content column")
	}

	var docs []ToolBenchDocument
	for line := 2; ; line++ {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("toolbench corpus line %d: %w", line, err)
		}
		if col >= len(record) {
			continue
		}
		var doc ToolBenchDocument
		if err := json.Unmarshal([]byte(record[col]), &doc); err != nil {
			return nil, fmt.Errorf("toolbench corpus line %d: %w", line, err)
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// BuildToolBenchCorpus indexes documents by their retrieval text.
func BuildToolBenchCorpus(docs []ToolBenchDocument) *Corpus {
	corpus := NewCorpus()
	for _, d := range docs {
		corpus.Add(d.Content(), d.ToolDoc())
	}
	return corpus
}

// ToolBenchToolDocs converts all documents to ToolDocs in file order.
func ToolBenchToolDocs(docs []ToolBenchDocument) []model.ToolDoc {
	out := make([]model.ToolDoc, len(docs))
	for i, d := range docs {
		out[i] = d.ToolDoc()
	}
	return out
}

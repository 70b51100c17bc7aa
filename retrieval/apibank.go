package retrieval

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/richinex/toolhub/model"
)

// APIBankParam describes one API-Bank input parameter.
type APIBankParam struct {
	Type        string `json:"type"`
	Description string `json:"description"`
}

// APIBankAPI is one API description file.
type APIBankAPI struct {
	Name             string                  `json:"name"`
	Description      string                  `json:"description"`
	InputParameters  map[string]APIBankParam `json:"input_parameters"`
	OutputParameters map[string]APIBankParam `json:"output_parameters,omitempty"`
}

// Spec returns the API as a callable spec; every input is required.
func (a APIBankAPI) Spec() model.ToolSpec {
	properties := make(map[string]any, len(a.InputParameters))
	required := make([]string, 0, len(a.InputParameters))
	for name, p := range a.InputParameters {
		properties[name] = map[string]any{"type": jsonType(p.Type), "description": p.Description}
		required = append(required, name)
	}
	slices.Sort(required)

	return model.ToolSpec{
		Name:        a.Name,
		Description: a.Description,
		Parameters: map[string]any{
			"type":       "object",
			"properties": properties,
			"required":   required,
		},
	}
}

func jsonType(t string) string {
	switch t {
	case "int", "integer":
		return "integer"
	case "float", "number":
		return "number"
	case "bool", "boolean":
		return "boolean"
	case "list", "array":
		return "array"
	case "dict", "object":
		return "object"
	default:
		return "string"
	}
}

// LoadAPIBankAPIs reads every *.json file in dir, sorted by file name.
func LoadAPIBankAPIs(dir string) ([]APIBankAPI, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return nil, fmt.Errorf("failed to list api-bank apis: %w", err)
	}
	slices.Sort(paths)

	apis := make([]APIBankAPI, 0, len(paths))
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read api-bank api: %w", err)
		}
		var api APIBankAPI
		if err := json.Unmarshal(data, &api); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
		}
		if api.Name == "" {
			continue
		}
		apis = append(apis, api)
	}
	return apis, nil
}

// BuildAPIBankCorpus indexes APIs by their formatted spec.
func BuildAPIBankCorpus(apis []APIBankAPI) *Corpus {
	corpus := NewCorpus()
	for _, api := range apis {
		spec := api.Spec()
		corpus.Add(SpecContent(spec), model.ToolDoc{
			ToolName: api.Name,
			CallSpec: spec,
			APIName:  api.Name,
		})
	}
	return corpus
}

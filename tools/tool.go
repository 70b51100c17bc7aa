// Package tools provides the built-in tool handlers of the research datasets.
//
// Information Hiding:
// - Tool execution details hidden behind interface
// - Argument decoding and schema reflection hidden in helpers
// - Collaborators (search, fetch, files, code, vision) injected per tool
// - Error handling internalized per tool
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/invopop/jsonschema"
	"github.com/mitchellh/mapstructure"
	"github.com/richinex/toolhub/model"
)

// Tool is the interface that all built-in tools must implement.
//
// Execute never returns a Go error: bad arguments and collaborator failures
// travel as error Results so the driving model can react to them.
type Tool interface {
	// Spec returns the callable signature listed to the model.
	Spec() model.ToolSpec

	// Execute runs the tool with the given arguments.
	Execute(ctx context.Context, args map[string]any) model.Result
}

// decodeArgs decodes loosely typed JSON arguments into a typed struct.
// Numbers arriving as strings (and vice versa) are converted.
func decodeArgs(args map[string]any, out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		TagName:          "json",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return fmt.Errorf("failed to create decoder: %w", err)
	}
	if err := decoder.Decode(args); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}

// schemaFor reflects an OpenAI parameter schema from an argument struct.
//
// Supported tags:
//   - json:"name" - Parameter name
//   - jsonschema:"required" - Required parameter
//   - jsonschema:"description=..." - Parameter description
func schemaFor[T any]() map[string]any {
	reflector := &jsonschema.Reflector{
		RequiredFromJSONSchemaTags: true,
		ExpandedStruct:             true,
		DoNotReference:             true,
	}
	schema := reflector.Reflect(new(T))

	data, err := json.Marshal(schema)
	if err != nil {
		panic(fmt.Sprintf("tools: reflect schema: %v", err))
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		panic(fmt.Sprintf("tools: reflect schema: %v", err))
	}

	result := map[string]any{
		"type":       "object",
		"properties": m["properties"],
	}
	if req, ok := m["required"]; ok {
		result["required"] = req
	}
	return result
}

// pathAllowed checks if a path is within the allowed paths.
// If allowedPaths is empty, all paths are allowed.
func pathAllowed(path string, allowedPaths []string) bool {
	if len(allowedPaths) == 0 {
		return true
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	for _, allowed := range allowedPaths {
		allowedAbs, err := filepath.Abs(allowed)
		if err != nil {
			continue
		}
		if absPath == allowedAbs || strings.HasPrefix(absPath, allowedAbs+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

// truncateRunes returns at most n runes of s.
func truncateRunes(s string, n int) string {
	if n <= 0 {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

// Package json extracts tool calls from model output.
//
// Models often return the call wrapped in a markdown fence or surrounded by
// commentary, and OpenAI-style calls carry their arguments as a JSON-encoded
// string. This package normalizes all of these into a model.ToolCall.
package json

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/richinex/toolhub/model"
)

// StripCodeFence removes a surrounding ```json or ``` fence.
func StripCodeFence(s string) string {
	trimmed := strings.TrimSpace(s)
	if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimPrefix(trimmed, "```")
		// Drop the info string (json, JSON, ...) on the opening line.
		if nl := strings.IndexByte(trimmed, '\n'); nl >= 0 && !strings.ContainsAny(trimmed[:nl], "{[") {
			trimmed = trimmed[nl+1:]
		}
		trimmed = strings.TrimSpace(trimmed)
	}
	trimmed = strings.TrimSuffix(trimmed, "```")
	return strings.TrimSpace(trimmed)
}

// ExtractJSON returns the JSON portion of s: the whole text when it parses,
// otherwise the span from the first '{' to the last '}'.
//
// Limitations:
// - Arrays are only recognized when they are the whole text
// - Uses simple brace matching, not full JSON parsing
func ExtractJSON(s string) (string, error) {
	s = StripCodeFence(s)
	if json.Valid([]byte(s)) {
		return s, nil
	}

	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start != -1 && end > start {
		candidate := s[start : end+1]
		if json.Valid([]byte(candidate)) {
			return candidate, nil
		}
	}

	preview := s
	if len(preview) > 100 {
		preview = preview[:100] + "..."
	}
	return "", fmt.Errorf("failed to extract valid JSON from response: %q", preview)
}

// Decode extracts JSON from s and unmarshals it into a T.
func Decode[T any](s string) (T, error) {
	var out T
	raw, err := ExtractJSON(s)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return out, fmt.Errorf("failed to unmarshal JSON: %w", err)
	}
	return out, nil
}

type rawCall struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
	Function  *rawCall        `json:"function"`
}

// ParseToolCall parses {"name", "arguments"} or the OpenAI form
// {"function": {"name", "arguments"}}. Arguments may be an object or a
// JSON-encoded object string; missing or null arguments become an empty map.
func ParseToolCall(s string) (model.ToolCall, error) {
	rc, err := Decode[rawCall](s)
	if err != nil {
		return model.ToolCall{}, err
	}
	if rc.Function != nil {
		rc = *rc.Function
	}
	if rc.Name == "" {
		return model.ToolCall{}, fmt.Errorf("tool call has no name")
	}

	args, err := decodeArguments(rc.Arguments)
	if err != nil {
		return model.ToolCall{}, fmt.Errorf("invalid arguments for %s: %w", rc.Name, err)
	}
	return model.ToolCall{Name: rc.Name, Arguments: args}, nil
}

func decodeArguments(raw json.RawMessage) (map[string]any, error) {
	args := map[string]any{}
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return args, nil
	}

	if strings.HasPrefix(trimmed, `"`) {
		var encoded string
		if err := json.Unmarshal(raw, &encoded); err != nil {
			return nil, err
		}
		if strings.TrimSpace(encoded) == "" {
			return args, nil
		}
		raw = json.RawMessage(encoded)
	}
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, err
	}
	return args, nil
}

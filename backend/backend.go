// Package backend provides the adapters that turn a tool call into a
// concrete side effect.
//
// Information Hiding:
// - Wire formats of each remote service
// - Token acquisition and reuse for ticketed APIs
// - Episode bookkeeping for environment steppers
// - Override precedence for locally bound functions
package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/richinex/toolhub/model"
)

// Kind identifies the backend variant an orchestrator resolved.
type Kind int

const (
	KindNone Kind = iota
	KindGeneric
	KindTicketed
	KindStepper
	KindLocalDispatch
	KindBuiltin
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindGeneric:
		return "generic"
	case KindTicketed:
		return "ticketed"
	case KindStepper:
		return "stepper"
	case KindLocalDispatch:
		return "local_dispatch"
	case KindBuiltin:
		return "builtin"
	default:
		return "unknown"
	}
}

// Backend resolves tool calls. Failures the driving model can act on are
// returned as error Results; Call never panics on bad input.
type Backend interface {
	Kind() Kind
	Call(ctx context.Context, call model.ToolCall, rollout *model.RolloutState) model.Result
}

// Lister is implemented by backends that publish their callable functions.
type Lister interface {
	Functions() []model.ToolSpec
}

// maxErrorBody bounds how much of a failed response is echoed back.
const maxErrorBody = 512

// readJSON reads a response body, decoding JSON when possible and falling
// back to the raw text. Non-2xx statuses are errors.
func readJSON(resp *http.Response) (any, error) {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		text := strings.TrimSpace(string(body))
		if len(text) > maxErrorBody {
			text = text[:maxErrorBody]
		}
		return nil, fmt.Errorf("HTTP error: %s: %s", resp.Status, text)
	}

	var v any
	if err := json.Unmarshal(body, &v); err != nil {
		return string(body), nil
	}
	return v, nil
}

// missingRequired returns the first parameter listed as required in spec
// that args lacks, or "".
func missingRequired(spec model.ToolSpec, args map[string]any) string {
	for _, name := range requiredParams(spec) {
		if v, ok := args[name]; !ok || v == nil || v == "" {
			return name
		}
	}
	return ""
}

func requiredParams(spec model.ToolSpec) []string {
	switch req := spec.Parameters["required"].(type) {
	case []string:
		return req
	case []any:
		out := make([]string, 0, len(req))
		for _, r := range req {
			if s, ok := r.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// argString renders a scalar argument for a URL. Integral JSON numbers drop
// their fractional part.
func argString(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		if x == float64(int64(x)) {
			return strconv.FormatInt(int64(x), 10)
		}
		return strconv.FormatFloat(x, 'f', -1, 64)
	case json.Number:
		return x.String()
	case nil:
		return ""
	default:
		return fmt.Sprint(x)
	}
}

// objectSchema builds an OpenAI parameter schema of string properties.
func objectSchema(required []string, props ...[2]string) map[string]any {
	properties := make(map[string]any, len(props))
	for _, p := range props {
		properties[p[0]] = map[string]any{"type": "string", "description": p[1]}
	}
	schema := map[string]any{"type": "object", "properties": properties}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

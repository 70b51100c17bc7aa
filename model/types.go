// Package model provides domain types shared across packages.
package model

// ToolCall is a single model-issued invocation of a named capability.
type ToolCall struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// Arg returns the named argument, or nil when the call has none.
func (c ToolCall) Arg(name string) any {
	if c.Arguments == nil {
		return nil
	}
	return c.Arguments[name]
}

// ToolSpec is the callable signature of a tool in OpenAI function form.
type ToolSpec struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

// Function wraps a ToolSpec in the {"type":"function"} envelope used when
// listing tools to a model.
type Function struct {
	Type     string   `json:"type"`
	Function ToolSpec `json:"function"`
}

// AsFunction returns the ToolSpec wrapped in a function envelope.
func (s ToolSpec) AsFunction() Function {
	return Function{Type: "function", Function: s}
}

// ToolDoc is the record associated with one corpus entry of a retrieval index.
// JSON field names follow the remote retrieval wire format.
type ToolDoc struct {
	ToolName        string   `json:"tool_name"`
	CallSpec        ToolSpec `json:"openai_function"`
	SourceFunctions []string `json:"all_functions,omitempty"`
	CategoryName    string   `json:"category_name,omitempty"`
	APIName         string   `json:"api_name,omitempty"`
}

// SearchResult is one organic web search hit.
type SearchResult struct {
	Title    string `json:"title"`
	URL      string `json:"url"`
	Snippet  string `json:"snippet"`
	Position int    `json:"position,omitempty"`
	Date     string `json:"date,omitempty"`
}

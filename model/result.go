package model

import (
	"encoding/json"
	"fmt"
)

// Result is the outcome of a tool call. Exactly one of Value and Err is
// meaningful: a non-empty Err marks the call as failed.
//
// Failures that the driving model can reason about (bad arguments, network
// errors, unknown tools) travel as Results rather than Go errors.
type Result struct {
	Value any
	Err   string
}

// OK wraps a successful value.
func OK(v any) Result {
	return Result{Value: v}
}

// Errorf creates a failed Result with a formatted message.
func Errorf(format string, args ...any) Result {
	return Result{Err: fmt.Sprintf(format, args...)}
}

// ErrorResult creates a failed Result from an error.
func ErrorResult(err error) Result {
	return Result{Err: err.Error()}
}

// Failed reports whether the Result carries an error payload.
func (r Result) Failed() bool {
	return r.Err != ""
}

// MarshalJSON encodes the value itself, or {"error": message} on failure.
func (r Result) MarshalJSON() ([]byte, error) {
	if r.Failed() {
		return json.Marshal(struct {
			Error string `json:"error"`
		}{Error: r.Err})
	}
	return json.Marshal(r.Value)
}

// UnmarshalJSON decodes a value, treating an object whose only key is
// "error" (with a string value) as a failure.
func (r *Result) UnmarshalJSON(data []byte) error {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err == nil && len(probe) == 1 {
		if raw, ok := probe["error"]; ok {
			var msg string
			if err := json.Unmarshal(raw, &msg); err == nil {
				*r = Result{Err: msg}
				return nil
			}
		}
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*r = Result{Value: v}
	return nil
}

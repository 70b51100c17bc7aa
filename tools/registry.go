// Package tools provides tool management and registration.
//
// Information Hiding:
// - Tool storage and lookup implementation hidden
// - Registration and discovery mechanisms abstracted

package tools

import (
	"fmt"
	"sync"

	"github.com/richinex/toolhub/internal/dsa"
	"github.com/richinex/toolhub/model"
)

// Registry manages available tools with dynamic registration.
type Registry struct {
	mu    sync.RWMutex
	tools *dsa.Trie[Tool]
}

// NewRegistry creates a new empty tool registry.
func NewRegistry() *Registry {
	return &Registry{
		tools: dsa.NewTrie[Tool](),
	}
}

// Register adds a new tool to the registry.
// Returns error if a tool with the same name already exists.
func (r *Registry) Register(tool Tool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := tool.Spec().Name
	if !r.tools.Insert(name, tool) {
		return fmt.Errorf("tool '%s' already registered", name)
	}
	return nil
}

// Get returns a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.tools.Get(name)
}

// Names returns all registered tool names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.tools.Keys()
}

// Specs returns the specs of tools whose names start with prefix, sorted by
// name. An empty prefix lists every tool.
func (r *Registry) Specs(prefix string) []model.ToolSpec {
	r.mu.RLock()
	defer r.mu.RUnlock()

	matched := r.tools.WithPrefix(prefix)
	specs := make([]model.ToolSpec, len(matched))
	for i, t := range matched {
		specs[i] = t.Spec()
	}
	return specs
}

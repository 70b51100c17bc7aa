// Package dsa provides the ordered name index used by tool registries.
package dsa

import (
	"github.com/armon/go-radix"
)

// Trie is a radix tree keyed by name. Walks visit keys in lexical order,
// so listings come out sorted without a separate sort pass.
type Trie[V any] struct {
	tree *radix.Tree
}

// NewTrie creates an empty tree.
func NewTrie[V any]() *Trie[V] {
	return &Trie[V]{tree: radix.New()}
}

// Insert stores value under key. It reports false when key was already
// present, in which case the stored value is left unchanged.
func (t *Trie[V]) Insert(key string, value V) bool {
	if _, exists := t.tree.Get(key); exists {
		return false
	}
	t.tree.Insert(key, value)
	return true
}

// Get looks up key.
func (t *Trie[V]) Get(key string) (V, bool) {
	val, found := t.tree.Get(key)
	if !found {
		var zero V
		return zero, false
	}
	return val.(V), true
}

// Len returns the number of keys.
func (t *Trie[V]) Len() int {
	return t.tree.Len()
}

// WithPrefix returns the values whose keys start with prefix, in key order.
// An empty prefix returns every value.
func (t *Trie[V]) WithPrefix(prefix string) []V {
	var out []V
	t.tree.WalkPrefix(prefix, func(_ string, v any) bool {
		out = append(out, v.(V))
		return false
	})
	return out
}

// Keys returns every key in lexical order.
func (t *Trie[V]) Keys() []string {
	keys := make([]string, 0, t.tree.Len())
	t.tree.Walk(func(k string, _ any) bool {
		keys = append(keys, k)
		return false
	})
	return keys
}

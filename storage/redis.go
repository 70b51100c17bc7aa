package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisPersister stores a cache as one Redis hash, one field per key with a
// JSON-encoded value. Store writes fields with HSET, so several processes
// can share the hash: a field written by any process survives unless a
// later writer sets the same field.
type RedisPersister[V any] struct {
	client *redis.Client
	key    string
}

// NewRedisPersister persists into the hash "<prefix>:<name>".
func NewRedisPersister[V any](client *redis.Client, prefix, name string) *RedisPersister[V] {
	key := name
	if prefix != "" {
		key = prefix + ":" + name
	}
	return &RedisPersister[V]{client: client, key: key}
}

// Location returns the hash key.
func (p *RedisPersister[V]) Location() string {
	return "redis:" + p.key
}

// Load reads every field of the hash.
func (p *RedisPersister[V]) Load(ctx context.Context) (map[string]V, error) {
	fields, err := p.client.HGetAll(ctx, p.key).Result()
	if err != nil {
		return nil, fmt.Errorf("redis hgetall %s: %w", p.key, err)
	}

	entries := make(map[string]V, len(fields))
	for k, raw := range fields {
		var v V
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			return nil, fmt.Errorf("failed to decode field %q: %w", k, err)
		}
		entries[k] = v
	}
	return entries, nil
}

// Store writes every entry as a hash field in one pipeline.
func (p *RedisPersister[V]) Store(ctx context.Context, entries map[string]V) error {
	if len(entries) == 0 {
		return nil
	}

	values := make([]any, 0, len(entries)*2)
	for k, v := range entries {
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("failed to encode field %q: %w", k, err)
		}
		values = append(values, k, string(data))
	}

	pipe := p.client.TxPipeline()
	pipe.HSet(ctx, p.key, values...)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis hset %s: %w", p.key, err)
	}
	return nil
}

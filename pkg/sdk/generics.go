package sdk

import (
	"context"
	"encoding/json"
	"fmt"
)

// Get retrieves a type-safe value using Go generics.
// It handles JSON unmarshaling into the target type automatically.
func Get[T any](ctx context.Context, s KVReader, key string) (T, error) {
	var target T
	raw, err := s.Get(ctx, key)
	if err != nil {
		return target, err
	}
	if err := json.Unmarshal(raw, &target); err != nil {
		return target, fmt.Errorf("decode %s: %w", key, err)
	}
	return target, nil
}

// Set stores a type-safe value using Go generics.
func Set[T any](ctx context.Context, s KVWriter, key string, val T) error {
	raw, err := json.Marshal(val)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return s.Set(ctx, key, raw)
}

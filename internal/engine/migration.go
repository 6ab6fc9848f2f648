package engine

import (
	"context"
	"fmt"
	"sort"

	"github.com/celerix-dev/celerix-crm/pkg/sdk"
)

// Migrate copies every key from src into dst and returns the number copied.
// This works for any pair of backends, e.g. file -> sqlite for an upgrade
// or bolt -> file for a plain-text backup.
func Migrate(ctx context.Context, src, dst sdk.Store) (int, error) {
	data, err := src.Dump(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to dump source: %w", err)
	}

	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for i, k := range keys {
		if err := dst.Set(ctx, k, data[k]); err != nil {
			return i, fmt.Errorf("failed to set key %s in destination: %w", k, err)
		}
	}
	return len(keys), nil
}

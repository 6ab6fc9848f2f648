// Package engine implements the storage backends behind sdk.Store.
package engine

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/celerix-dev/celerix-crm/pkg/sdk"
	"go.uber.org/zap"
)

// Supported backend drivers.
const (
	DriverMemory = "memory"
	DriverFile   = "file"
	DriverBolt   = "bolt"
	DriverSQLite = "sqlite"
)

// ErrInvalidKey is returned for keys that cannot be stored safely.
var ErrInvalidKey = errors.New("invalid key")

// Options selects and configures a backend.
type Options struct {
	Driver string
	// Dir is the data directory. Ignored by the memory driver.
	Dir    string
	Logger *zap.Logger
}

// Open initializes the store described by opts.
// It returns the interface, so callers don't care which engine backs it.
func Open(opts Options) (sdk.Store, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	switch strings.ToLower(opts.Driver) {
	case DriverMemory:
		return NewMemStore(nil, nil), nil

	case DriverFile, "":
		p, err := NewPersistence(opts.Dir, logger)
		if err != nil {
			return nil, err
		}
		initial, err := p.LoadAll()
		if err != nil {
			return nil, err
		}
		logger.Info("file store loaded", zap.String("dir", opts.Dir), zap.Int("keys", len(initial)))
		return NewMemStore(initial, p), nil

	case DriverBolt:
		return NewBoltStore(filepath.Join(opts.Dir, "crm.bolt"))

	case DriverSQLite:
		return NewSQLiteStore(filepath.Join(opts.Dir, "crm.db"))
	}
	return nil, fmt.Errorf("unknown storage driver %q", opts.Driver)
}

func validateKey(key string) error {
	if key == "" || strings.ContainsAny(key, `/\`) || key == "." || key == ".." {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return nil
}

// Package sdk defines the key-value contract every Celerix CRM storage backend satisfies.
package sdk

import (
	"context"
	"errors"
)

var (
	// ErrKeyNotFound is returned when a requested key does not exist.
	ErrKeyNotFound = errors.New("key not found")
)

// Reserved keys of the CRM storage layout.
const (
	KeyCurrentUser = "currentUser"
	KeyClients     = "clients"
	KeyActivities  = "activities"
	KeyDarkMode    = "isDarkMode"
)

// --- Functional Interfaces (Interface Segregation) ---

// KVReader defines the basic read operation for the store.
// Values are returned as their JSON encoding.
type KVReader interface {
	Get(ctx context.Context, key string) ([]byte, error)
}

// KVWriter defines the basic write and delete operations for the store.
// Delete of a missing key is not an error.
type KVWriter interface {
	Set(ctx context.Context, key string, val []byte) error
	Delete(ctx context.Context, key string) error
}

// KeyEnumeration allows discovering stored keys.
type KeyEnumeration interface {
	Keys(ctx context.Context) ([]string, error)
}

// BatchExporter allows retrieving every key at once.
type BatchExporter interface {
	Dump(ctx context.Context) (map[string][]byte, error)
}

// --- Composite Interfaces ---

// Store is the persistent key-value store underlying all CRM persistence.
// The in-memory, file, bbolt and SQLite engines all implement it.
type Store interface {
	KVReader
	KVWriter
	KeyEnumeration
	BatchExporter

	Close() error
}

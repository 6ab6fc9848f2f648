package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/celerix-dev/celerix-crm/pkg/sdk"
	"go.etcd.io/bbolt"
)

const boltBucketKV = "kv" // key -> JSON value

// BoltStore keeps every key in a single bbolt bucket.
type BoltStore struct {
	db *bbolt.DB
}

// NewBoltStore opens (or creates) the bbolt database at path.
func NewBoltStore(path string) (*BoltStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, err
	}

	if err := db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(boltBucketKV))
		return err
	}); err != nil {
		_ = db.Close()

		return nil, err
	}

	return &BoltStore{db: db}, nil
}

func (b *BoltStore) Get(_ context.Context, key string) ([]byte, error) {
	var val []byte

	err := b.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket([]byte(boltBucketKV)).Get([]byte(key))
		if data == nil {
			return sdk.ErrKeyNotFound
		}
		// bbolt values are only valid inside the transaction.
		val = cloneBytes(data)

		return nil
	})

	return val, err
}

func (b *BoltStore) Set(_ context.Context, key string, val []byte) error {
	if err := validateKey(key); err != nil {
		return err
	}

	return b.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(boltBucketKV)).Put([]byte(key), val)
	})
}

func (b *BoltStore) Delete(_ context.Context, key string) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(boltBucketKV)).Delete([]byte(key))
	})
}

func (b *BoltStore) Keys(_ context.Context) ([]string, error) {
	var keys []string

	err := b.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(boltBucketKV)).ForEach(func(k, _ []byte) error {
			keys = append(keys, string(k))

			return nil
		})
	})

	return keys, err
}

func (b *BoltStore) Dump(_ context.Context) (map[string][]byte, error) {
	out := make(map[string][]byte)

	err := b.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(boltBucketKV)).ForEach(func(k, v []byte) error {
			out[string(k)] = cloneBytes(v)

			return nil
		})
	})

	return out, err
}

func (b *BoltStore) Close() error {
	return b.db.Close()
}

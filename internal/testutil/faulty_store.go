// Package testutil provides fixtures shared by package tests.
package testutil

import (
	"context"
	"errors"
	"sync"

	"github.com/celerix-dev/celerix-crm/internal/engine"
	"github.com/celerix-dev/celerix-crm/pkg/sdk"
)

// ErrInjected is returned by FaultyStore for every operation it is told to fail.
var ErrInjected = errors.New("injected storage failure")

// FaultyStore wraps a store and fails reads or writes on demand.
type FaultyStore struct {
	sdk.Store

	mu        sync.Mutex
	failGet   bool
	failWrite bool
	writes    int
}

// NewFaultyStore wraps an in-memory store.
func NewFaultyStore() *FaultyStore {
	return &FaultyStore{Store: engine.NewMemStore(nil, nil)}
}

// Wrap returns a FaultyStore around s.
func Wrap(s sdk.Store) *FaultyStore {
	return &FaultyStore{Store: s}
}

// FailReads makes every Get fail until called with false.
func (f *FaultyStore) FailReads(fail bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failGet = fail
}

// FailWrites makes every Set and Delete fail until called with false.
func (f *FaultyStore) FailWrites(fail bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failWrite = fail
}

// Writes returns the number of successful Set and Delete calls.
func (f *FaultyStore) Writes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.writes
}

func (f *FaultyStore) Get(ctx context.Context, key string) ([]byte, error) {
	f.mu.Lock()
	fail := f.failGet
	f.mu.Unlock()
	if fail {
		return nil, ErrInjected
	}
	return f.Store.Get(ctx, key)
}

func (f *FaultyStore) Set(ctx context.Context, key string, val []byte) error {
	if err := f.checkWrite(); err != nil {
		return err
	}
	return f.Store.Set(ctx, key, val)
}

func (f *FaultyStore) Delete(ctx context.Context, key string) error {
	if err := f.checkWrite(); err != nil {
		return err
	}
	return f.Store.Delete(ctx, key)
}

func (f *FaultyStore) checkWrite() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWrite {
		return ErrInjected
	}
	f.writes++
	return nil
}

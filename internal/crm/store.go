// Package crm is the system of record for clients and activities.
//
// Store keeps both collections in memory and rewrites the full collection to
// the key-value store after every mutation. It does not filter by role:
// visibility is applied by callers through the policy package.
package crm

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/celerix-dev/celerix-crm/internal/metrics"
	"github.com/celerix-dev/celerix-crm/pkg/schema"
	"github.com/celerix-dev/celerix-crm/pkg/sdk"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	// ErrNoActiveIdentity is returned by operations that need an actor when none is logged in.
	ErrNoActiveIdentity = errors.New("no active identity")
	// ErrPersist wraps a failed collection write. Memory already holds the change.
	ErrPersist = errors.New("persist failed")
	// ErrInvalidActivityType is returned for activity types outside the closed set.
	ErrInvalidActivityType = errors.New("invalid activity type")
)

// Actor reports who is acting. *session.Session satisfies it.
type Actor interface {
	Current() (schema.Identity, bool)
}

// PersistErrorFunc is called after a collection write fails.
type PersistErrorFunc func(key string, err error)

// Options configures a Store. Zero values select the defaults.
type Options struct {
	Logger  *zap.Logger
	Metrics *metrics.Metrics
	// OnPersistError is the recovery hook for failed writes.
	OnPersistError PersistErrorFunc
	// Now and NewID are overridable for tests.
	Now   func() time.Time
	NewID func() string
}

// Store owns the in-memory client and activity collections.
// Mutations are serialized: the lock is held across the memory change and the write.
type Store struct {
	mu         sync.Mutex
	clients    []schema.Client
	activities []schema.Activity
	// pending holds keys whose last write failed.
	pending map[string]error

	kv             sdk.Store
	actor          Actor
	logger         *zap.Logger
	metrics        *metrics.Metrics
	onPersistError PersistErrorFunc
	now            func() time.Time
	newID          func() string
}

// NewStore creates an empty store. Call Load once an identity is active.
func NewStore(kv sdk.Store, actor Actor, opts Options) *Store {
	s := &Store{
		pending:        make(map[string]error),
		kv:             kv,
		actor:          actor,
		logger:         opts.Logger,
		metrics:        opts.Metrics,
		onPersistError: opts.OnPersistError,
		now:            opts.Now,
		newID:          opts.NewID,
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.newID == nil {
		s.newID = uuid.NewString
	}
	return s
}

// Load replaces both collections with their persisted state.
// A missing key is an empty collection. A read failure leaves the affected
// collection empty and is returned after both keys have been attempted.
func (s *Store) Load(ctx context.Context) error {
	clients, cErr := loadCollection[schema.Client](ctx, s.kv, sdk.KeyClients)
	activities, aErr := loadCollection[schema.Activity](ctx, s.kv, sdk.KeyActivities)

	s.mu.Lock()
	s.clients = clients
	s.activities = activities
	s.mu.Unlock()

	s.metrics.SetRecords(sdk.KeyClients, len(clients))
	s.metrics.SetRecords(sdk.KeyActivities, len(activities))

	err := errors.Join(cErr, aErr)
	if err != nil {
		s.logger.Error("error loading data", zap.Error(err))
		return err
	}
	s.logger.Debug("data loaded", zap.Int("clients", len(clients)), zap.Int("activities", len(activities)))
	return nil
}

// Reset drops both in-memory collections. Used when the session ends.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.clients = nil
	s.activities = nil
	s.pending = make(map[string]error)
	s.metrics.SetPending(0)
}

func loadCollection[T any](ctx context.Context, kv sdk.KVReader, key string) ([]T, error) {
	items, err := sdk.Get[[]T](ctx, kv, key)
	if errors.Is(err, sdk.ErrKeyNotFound) {
		return []T{}, nil
	}
	if err != nil {
		return []T{}, fmt.Errorf("load %s: %w", key, err)
	}
	if items == nil {
		items = []T{}
	}
	return items, nil
}

// persistLocked writes one collection and tracks the outcome.
// It must be called with s.mu held.
func (s *Store) persistLocked(ctx context.Context, key string, val any) error {
	err := sdk.Set(ctx, s.kv, key, val)
	if err == nil {
		if _, ok := s.pending[key]; ok {
			delete(s.pending, key)
			s.metrics.SetPending(len(s.pending))
			s.logger.Info("collection back in sync", zap.String("key", key))
		}
		return nil
	}

	s.pending[key] = err
	s.metrics.ObservePersistFailure(key)
	s.metrics.SetPending(len(s.pending))
	s.logger.Error("error saving collection", zap.String("key", key), zap.Error(err))
	if s.onPersistError != nil {
		s.onPersistError(key, err)
	}
	return fmt.Errorf("%w: %s: %w", ErrPersist, key, err)
}

func (s *Store) persistClientsLocked(ctx context.Context) error {
	if s.clients == nil {
		s.clients = []schema.Client{}
	}
	return s.persistLocked(ctx, sdk.KeyClients, s.clients)
}

func (s *Store) persistActivitiesLocked(ctx context.Context) error {
	if s.activities == nil {
		s.activities = []schema.Activity{}
	}
	return s.persistLocked(ctx, sdk.KeyActivities, s.activities)
}

// Pending returns the keys whose in-memory state is ahead of storage.
func (s *Store) Pending() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := make([]string, 0, len(s.pending))
	for _, k := range []string{sdk.KeyClients, sdk.KeyActivities} {
		if _, ok := s.pending[k]; ok {
			keys = append(keys, k)
		}
	}
	return keys
}

// Retry rewrites every pending collection from memory.
func (s *Store) Retry(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	if _, ok := s.pending[sdk.KeyClients]; ok {
		errs = append(errs, s.persistClientsLocked(ctx))
	}
	if _, ok := s.pending[sdk.KeyActivities]; ok {
		errs = append(errs, s.persistActivitiesLocked(ctx))
	}
	return errors.Join(errs...)
}

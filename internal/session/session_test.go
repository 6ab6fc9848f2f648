package session

import (
	"context"
	"testing"
	"time"

	"github.com/celerix-dev/celerix-crm/internal/testutil"
	"github.com/celerix-dev/celerix-crm/pkg/schema"
	"github.com/celerix-dev/celerix-crm/pkg/sdk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSession(t *testing.T) (*Session, *testutil.FaultyStore) {
	t.Helper()
	kv := testutil.NewFaultyStore()
	s := New(kv, Options{LoginDelay: -1})
	require.NoError(t, s.Restore(context.Background()))
	return s, kv
}

func TestNew_StartsAuthenticating(t *testing.T) {
	s := New(testutil.NewFaultyStore(), Options{})
	assert.Equal(t, StateAuthenticating, s.State())
	_, ok := s.Current()
	assert.False(t, ok)
}

func TestLogin_Success(t *testing.T) {
	ctx := context.Background()
	s, kv := newTestSession(t)
	assert.Equal(t, StateUnauthenticated, s.State())

	ok, err := s.Login(ctx, "admin@crm.com", "password123")
	require.NoError(t, err)
	require.True(t, ok)

	id, active := s.Current()
	require.True(t, active)
	assert.Equal(t, DefaultDirectory[0], id)
	assert.Equal(t, StateAuthenticated, s.State())

	stored, err := sdk.Get[schema.Identity](ctx, kv, sdk.KeyCurrentUser)
	require.NoError(t, err)
	assert.Equal(t, id, stored)
}

func TestLogin_WrongSecret(t *testing.T) {
	s, kv := newTestSession(t)

	ok, err := s.Login(context.Background(), "admin@crm.com", "wrong")
	require.NoError(t, err)
	assert.False(t, ok)

	_, active := s.Current()
	assert.False(t, active)
	assert.Equal(t, StateUnauthenticated, s.State())
	assert.Zero(t, kv.Writes())
}

func TestLogin_UnknownEmail(t *testing.T) {
	s, _ := newTestSession(t)

	ok, err := s.Login(context.Background(), "nobody@crm.com", "password123")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLogin_FailureKeepsPreviousIdentity(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestSession(t)

	ok, _ := s.Login(ctx, "john@crm.com", "password123")
	require.True(t, ok)

	ok, err := s.Login(ctx, "admin@crm.com", "nope")
	require.NoError(t, err)
	assert.False(t, ok)

	id, active := s.Current()
	require.True(t, active)
	assert.Equal(t, "2", id.ID)
	assert.Equal(t, StateAuthenticated, s.State())
}

func TestLogin_PersistFailure(t *testing.T) {
	s, kv := newTestSession(t)
	kv.FailWrites(true)

	ok, err := s.Login(context.Background(), "sarah@crm.com", "password123")
	assert.True(t, ok)
	assert.ErrorIs(t, err, ErrPersist)
	assert.ErrorIs(t, err, testutil.ErrInjected)

	id, active := s.Current()
	require.True(t, active)
	assert.Equal(t, schema.RoleSupport, id.Role)
}

func TestLogin_DelayHonoursContext(t *testing.T) {
	s := New(testutil.NewFaultyStore(), Options{LoginDelay: time.Hour})
	require.NoError(t, s.Restore(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ok, err := s.Login(ctx, "admin@crm.com", "password123")
	assert.False(t, ok)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StateUnauthenticated, s.State())
}

func TestLogin_WaitsConfiguredDelay(t *testing.T) {
	s := New(testutil.NewFaultyStore(), Options{LoginDelay: 20 * time.Millisecond})

	start := time.Now()
	ok, err := s.Login(context.Background(), "admin@crm.com", "password123")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestLogin_FailureDoesNotUndoConcurrentLogout(t *testing.T) {
	ctx := context.Background()
	kv := testutil.NewFaultyStore()
	s := New(kv, Options{LoginDelay: 100 * time.Millisecond})
	require.NoError(t, s.Restore(ctx))

	ok, err := s.Login(ctx, "john@crm.com", "password123")
	require.NoError(t, err)
	require.True(t, ok)

	done := make(chan bool)
	go func() {
		ok, _ := s.Login(ctx, "admin@crm.com", "wrong")
		done <- ok
	}()

	require.Eventually(t, func() bool { return s.State() == StateAuthenticating },
		time.Second, time.Millisecond)
	require.NoError(t, s.Logout(ctx))
	assert.False(t, <-done)

	_, active := s.Current()
	assert.False(t, active)
	assert.Equal(t, StateUnauthenticated, s.State())

	_, err = kv.Get(ctx, sdk.KeyCurrentUser)
	assert.ErrorIs(t, err, sdk.ErrKeyNotFound)
}

func TestLogin_OverlappingAttemptsMatchStorage(t *testing.T) {
	ctx := context.Background()
	kv := testutil.NewFaultyStore()
	s := New(kv, Options{LoginDelay: 30 * time.Millisecond})
	require.NoError(t, s.Restore(ctx))

	failed := make(chan bool)
	go func() {
		ok, _ := s.Login(ctx, "admin@crm.com", "wrong")
		failed <- ok
	}()
	require.Eventually(t, func() bool { return s.State() == StateAuthenticating },
		time.Second, time.Millisecond)

	ok, err := s.Login(ctx, "sarah@crm.com", "password123")
	require.NoError(t, err)
	require.True(t, ok)
	assert.False(t, <-failed)

	id, active := s.Current()
	require.True(t, active)
	assert.Equal(t, "3", id.ID)
	assert.Equal(t, StateAuthenticated, s.State())

	stored, err := sdk.Get[schema.Identity](ctx, kv, sdk.KeyCurrentUser)
	require.NoError(t, err)
	assert.Equal(t, id, stored)
}

func TestLogout_Idempotent(t *testing.T) {
	ctx := context.Background()
	s, kv := newTestSession(t)

	ok, _ := s.Login(ctx, "admin@crm.com", "password123")
	require.True(t, ok)

	require.NoError(t, s.Logout(ctx))
	require.NoError(t, s.Logout(ctx))

	_, active := s.Current()
	assert.False(t, active)
	assert.Equal(t, StateUnauthenticated, s.State())

	_, err := kv.Get(ctx, sdk.KeyCurrentUser)
	assert.ErrorIs(t, err, sdk.ErrKeyNotFound)
}

func TestRestore_AdoptsPersistedIdentity(t *testing.T) {
	ctx := context.Background()
	kv := testutil.NewFaultyStore()

	first := New(kv, Options{LoginDelay: -1})
	require.NoError(t, first.Restore(ctx))
	ok, _ := first.Login(ctx, "john@crm.com", "password123")
	require.True(t, ok)

	second := New(kv, Options{LoginDelay: -1})
	require.NoError(t, second.Restore(ctx))

	id, active := second.Current()
	require.True(t, active)
	assert.Equal(t, "John Sales", id.Name)
	assert.Equal(t, StateAuthenticated, second.State())
}

func TestRestore_ReadFailureFailsOpen(t *testing.T) {
	kv := testutil.NewFaultyStore()
	kv.FailReads(true)

	s := New(kv, Options{LoginDelay: -1})
	err := s.Restore(context.Background())
	assert.ErrorIs(t, err, testutil.ErrInjected)

	_, active := s.Current()
	assert.False(t, active)
	assert.Equal(t, StateUnauthenticated, s.State())
}

func TestDirectory_SortedByID(t *testing.T) {
	s, _ := newTestSession(t)
	assert.Equal(t, DefaultDirectory, s.Directory())
}

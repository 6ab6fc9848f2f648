// Package session owns the active identity of a CRM process.
//
// A Session is created once, restored from the key-value store on startup and
// passed explicitly to everything that needs to know who is acting. There is
// exactly one active identity at a time.
package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/celerix-dev/celerix-crm/internal/metrics"
	"github.com/celerix-dev/celerix-crm/pkg/schema"
	"github.com/celerix-dev/celerix-crm/pkg/sdk"
	"go.uber.org/zap"
)

// ErrPersist wraps storage failures while saving or clearing the session.
var ErrPersist = errors.New("session persistence failed")

// DefaultSecret is the password shared by every account in the directory.
const DefaultSecret = "password123"

// DefaultLoginDelay mimics the latency of a remote authentication call.
const DefaultLoginDelay = time.Second

// DefaultDirectory is the fixed set of accounts that may log in.
var DefaultDirectory = []schema.Identity{
	{ID: "1", Name: "Admin User", Email: "admin@crm.com", Role: schema.RoleAdmin},
	{ID: "2", Name: "John Sales", Email: "john@crm.com", Role: schema.RoleSales},
	{ID: "3", Name: "Sarah Support", Email: "sarah@crm.com", Role: schema.RoleSupport},
}

// State is the authentication state of a Session.
type State int

const (
	// StateAuthenticating is the initial state and the state during a login attempt.
	StateAuthenticating State = iota
	StateUnauthenticated
	StateAuthenticated
)

func (s State) String() string {
	switch s {
	case StateAuthenticating:
		return "authenticating"
	case StateUnauthenticated:
		return "unauthenticated"
	case StateAuthenticated:
		return "authenticated"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Options configures a Session. Zero values select the defaults.
type Options struct {
	Directory []schema.Identity
	Secret    string
	// LoginDelay is waited before every credential check. Negative disables it.
	LoginDelay time.Duration
	Logger     *zap.Logger
	Metrics    *metrics.Metrics
}

// Session holds the active identity and persists it under sdk.KeyCurrentUser.
type Session struct {
	// loginMu serializes Login calls across the delay.
	loginMu sync.Mutex

	mu      sync.RWMutex
	state   State
	current *schema.Identity

	kv        sdk.Store
	directory map[string]schema.Identity
	secret    string
	delay     time.Duration
	logger    *zap.Logger
	metrics   *metrics.Metrics
}

// New creates a Session in the Authenticating state; call Restore next.
func New(kv sdk.Store, opts Options) *Session {
	dir := opts.Directory
	if dir == nil {
		dir = DefaultDirectory
	}
	byEmail := make(map[string]schema.Identity, len(dir))
	for _, id := range dir {
		byEmail[id.Email] = id
	}

	secret := opts.Secret
	if secret == "" {
		secret = DefaultSecret
	}

	delay := opts.LoginDelay
	switch {
	case delay == 0:
		delay = DefaultLoginDelay
	case delay < 0:
		delay = 0
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Session{
		state:     StateAuthenticating,
		kv:        kv,
		directory: byEmail,
		secret:    secret,
		delay:     delay,
		logger:    logger,
		metrics:   opts.Metrics,
	}
}

// Restore adopts a previously persisted identity without re-checking credentials.
// A read failure leaves the session logged out and is returned for reporting.
func (s *Session) Restore(ctx context.Context) error {
	id, err := sdk.Get[schema.Identity](ctx, s.kv, sdk.KeyCurrentUser)

	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case errors.Is(err, sdk.ErrKeyNotFound):
		s.setLocked(nil)
		return nil
	case err != nil:
		s.logger.Warn("could not restore session", zap.Error(err))
		s.setLocked(nil)
		return fmt.Errorf("restore session: %w", err)
	}

	s.setLocked(&id)
	s.logger.Info("session restored", zap.String("user_id", id.ID), zap.String("role", string(id.Role)))
	return nil
}

// Login checks email and secret against the directory.
// Bad credentials return false with a nil error and leave the previous identity
// in place. If the match succeeds but the identity cannot be persisted, Login
// returns true and an error wrapping ErrPersist: the session is active in
// memory only.
func (s *Session) Login(ctx context.Context, email, secret string) (bool, error) {
	s.loginMu.Lock()
	defer s.loginMu.Unlock()

	s.mu.Lock()
	prevState, prev := s.state, s.current
	s.state = StateAuthenticating
	s.mu.Unlock()

	if err := s.wait(ctx); err != nil {
		s.rollback(prevState, prev)
		s.metrics.ObserveLogin("error")
		return false, err
	}

	id, ok := s.directory[email]
	if !ok || secret != s.secret {
		s.rollback(prevState, prev)
		s.metrics.ObserveLogin("failure")
		s.logger.Info("login rejected", zap.String("email", email))
		return false, nil
	}

	s.mu.Lock()
	s.setLocked(&id)
	s.mu.Unlock()
	s.metrics.ObserveLogin("success")
	s.logger.Info("login succeeded", zap.String("user_id", id.ID), zap.String("role", string(id.Role)))

	if err := sdk.Set(ctx, s.kv, sdk.KeyCurrentUser, id); err != nil {
		s.logger.Error("could not persist session", zap.Error(err))
		return true, fmt.Errorf("%w: %w", ErrPersist, err)
	}
	return true, nil
}

// Logout clears the active identity from memory and storage. It is idempotent.
func (s *Session) Logout(ctx context.Context) error {
	s.mu.Lock()
	s.setLocked(nil)
	s.mu.Unlock()

	if err := s.kv.Delete(ctx, sdk.KeyCurrentUser); err != nil {
		s.logger.Error("could not clear persisted session", zap.Error(err))
		return fmt.Errorf("%w: %w", ErrPersist, err)
	}
	return nil
}

// Current returns the active identity, if any.
func (s *Session) Current() (schema.Identity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.current == nil {
		return schema.Identity{}, false
	}
	return *s.current, true
}

// State returns the authentication state.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Directory returns the accounts that may log in.
func (s *Session) Directory() []schema.Identity {
	out := make([]schema.Identity, 0, len(s.directory))
	for _, id := range s.directory {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// rollback restores the state seen before a failed login. A Logout or
// Restore that ran during the attempt wins over the snapshot.
func (s *Session) rollback(prevState State, prev *schema.Identity) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateAuthenticating {
		return
	}
	s.state, s.current = prevState, prev
	if s.state == StateAuthenticating {
		s.state = StateUnauthenticated
	}
}

// setLocked must be called with s.mu held.
func (s *Session) setLocked(id *schema.Identity) {
	s.current = id
	if id == nil {
		s.state = StateUnauthenticated
	} else {
		s.state = StateAuthenticated
	}
}

func (s *Session) wait(ctx context.Context) error {
	if s.delay <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(s.delay)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Package app wires the session, the CRM store and the theme preference
// around one key-value store and owns their lifecycle.
package app

import (
	"context"
	"errors"

	"github.com/celerix-dev/celerix-crm/internal/crm"
	"github.com/celerix-dev/celerix-crm/internal/metrics"
	"github.com/celerix-dev/celerix-crm/internal/session"
	"github.com/celerix-dev/celerix-crm/internal/theme"
	"github.com/celerix-dev/celerix-crm/pkg/schema"
	"github.com/celerix-dev/celerix-crm/pkg/sdk"
	"go.uber.org/zap"
)

// Options configures an App.
type Options struct {
	Session        session.Options
	Logger         *zap.Logger
	Metrics        *metrics.Metrics
	OnPersistError crm.PersistErrorFunc
}

// App is one CRM instance: a single active session over a single store.
type App struct {
	KV      sdk.Store
	Session *session.Session
	CRM     *crm.Store
	Theme   *theme.Preferences

	logger *zap.Logger
}

// New builds an App over kv. Call Start before serving.
func New(kv sdk.Store, opts Options) *App {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	sOpts := opts.Session
	if sOpts.Logger == nil {
		sOpts.Logger = logger.Named("session")
	}
	if sOpts.Metrics == nil {
		sOpts.Metrics = opts.Metrics
	}
	sess := session.New(kv, sOpts)

	store := crm.NewStore(kv, sess, crm.Options{
		Logger:         logger.Named("crm"),
		Metrics:        opts.Metrics,
		OnPersistError: opts.OnPersistError,
	})

	return &App{
		KV:      kv,
		Session: sess,
		CRM:     store,
		Theme:   theme.New(kv),
		logger:  logger,
	}
}

// Start restores a persisted session and, if one is active, loads the collections.
// Errors are returned for reporting only; the App stays usable.
func (a *App) Start(ctx context.Context) error {
	if err := a.Session.Restore(ctx); err != nil {
		return err
	}
	if _, ok := a.Session.Current(); ok {
		return a.CRM.Load(ctx)
	}
	return nil
}

// Login authenticates and loads the collections for the new identity.
// A load failure does not undo the login.
func (a *App) Login(ctx context.Context, email, secret string) (bool, error) {
	ok, err := a.Session.Login(ctx, email, secret)
	if !ok {
		return false, err
	}
	return true, errors.Join(err, a.CRM.Load(ctx))
}

// Logout ends the session and drops the in-memory collections.
func (a *App) Logout(ctx context.Context) error {
	err := a.Session.Logout(ctx)
	a.CRM.Reset()
	return err
}

// Identity returns the active identity, if any.
func (a *App) Identity() (schema.Identity, bool) {
	return a.Session.Current()
}

// Close releases the underlying store.
func (a *App) Close() error {
	return a.KV.Close()
}

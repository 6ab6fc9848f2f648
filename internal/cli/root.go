// Package cli implements the celerix-crm command tree on an embedded store.
package cli

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/celerix-dev/celerix-crm/internal/app"
	"github.com/celerix-dev/celerix-crm/internal/config"
	"github.com/celerix-dev/celerix-crm/internal/engine"
	"github.com/celerix-dev/celerix-crm/internal/logging"
	"github.com/celerix-dev/celerix-crm/internal/session"
	"github.com/celerix-dev/celerix-crm/pkg/schema"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// AppName is the binary name.
const AppName = "celerix-crm"

var errNotLoggedIn = errors.New("not logged in: run `" + AppName + " login` first")

// rootOptions carries the global flags and the App opened for the running command.
type rootOptions struct {
	configPath string
	driver     string
	dataDir    string
	loginDelay time.Duration
	logLevel   string

	cfg    *config.Config
	logger *zap.Logger
	app    *app.App
}

// NewRootCmd builds a fresh command tree.
func NewRootCmd() *cobra.Command {
	cmd, _ := newRoot()
	return cmd
}

func newRoot() (*cobra.Command, *rootOptions) {
	o := &rootOptions{}

	root := &cobra.Command{
		Use:   AppName,
		Short: "A small role-aware CRM",
		Long: `celerix-crm manages clients and activities in a local data directory.

The logged-in identity is remembered between invocations. What you can see
and change depends on its role: admins see everything, sales staff see and
manage their own records, support staff have read access to their own.`,
		SilenceUsage:      true,
		PersistentPreRunE: o.open,
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return o.close()
		},
	}

	f := root.PersistentFlags()
	f.StringVar(&o.configPath, "config", os.Getenv("CELERIX_CONFIG"), "Path to a YAML config file")
	f.StringVar(&o.driver, "driver", "", "Storage driver (memory, file, bolt, sqlite)")
	f.StringVar(&o.dataDir, "data-dir", "", "Data directory")
	f.DurationVar(&o.loginDelay, "login-delay", 0, "Simulated login latency (negative disables)")
	f.StringVar(&o.logLevel, "log-level", "warn", "Log level")

	root.AddCommand(
		newLoginCmd(o),
		newLogoutCmd(o),
		newWhoamiCmd(o),
		newClientsCmd(o),
		newActivitiesCmd(o),
		newDashboardCmd(o),
		newThemeCmd(o),
		newMigrateCmd(o),
	)
	return root, o
}

// Execute runs the command tree and exits non-zero on failure.
func Execute() {
	root, o := newRoot()
	err := root.Execute()
	// PersistentPostRunE is skipped when a command fails.
	_ = o.close()
	if err != nil {
		os.Exit(1)
	}
}

func (o *rootOptions) open(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if flags.Changed("driver") {
		cfg.Storage.Driver = o.driver
	}
	if flags.Changed("data-dir") {
		cfg.Storage.Path = o.dataDir
	}
	if flags.Changed("login-delay") {
		cfg.Auth.LoginDelay = o.loginDelay
	}
	o.cfg = cfg

	logger, err := logging.New(o.logLevel, "console")
	if err != nil {
		return err
	}
	o.logger = logger

	kv, err := engine.Open(engine.Options{
		Driver: cfg.Storage.Driver,
		Dir:    cfg.Storage.Path,
		Logger: logger.Named("engine"),
	})
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}

	o.app = app.New(kv, app.Options{
		Session: session.Options{LoginDelay: cfg.Auth.LoginDelay},
		Logger:  logger,
	})
	if err := o.app.Start(cmd.Context()); err != nil {
		logger.Warn("starting with an empty session", zap.Error(err))
	}
	return nil
}

func (o *rootOptions) close() error {
	if o.logger != nil {
		_ = o.logger.Sync()
	}
	if o.app == nil {
		return nil
	}
	err := o.app.Close()
	o.app = nil
	return err
}

// identity returns the logged-in identity or errNotLoggedIn.
func (o *rootOptions) identity() (schema.Identity, error) {
	id, ok := o.app.Identity()
	if !ok {
		return schema.Identity{}, errNotLoggedIn
	}
	return id, nil
}

package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/celerix-dev/celerix-crm/internal/api"
	"github.com/celerix-dev/celerix-crm/internal/app"
	"github.com/celerix-dev/celerix-crm/internal/config"
	"github.com/celerix-dev/celerix-crm/internal/engine"
	"github.com/celerix-dev/celerix-crm/internal/logging"
	"github.com/celerix-dev/celerix-crm/internal/metrics"
	"github.com/celerix-dev/celerix-crm/internal/session"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

func main() {
	// 1. Configuration and logging
	cfg, err := config.Load(os.Getenv("CELERIX_CONFIG"))
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting Celerix CRM daemon",
		zap.String("driver", cfg.Storage.Driver),
		zap.String("data_dir", cfg.Storage.Path),
		zap.String("addr", cfg.Addr()),
	)

	// 2. Storage
	kv, err := engine.Open(engine.Options{
		Driver: cfg.Storage.Driver,
		Dir:    cfg.Storage.Path,
		Logger: logger.Named("engine"),
	})
	if err != nil {
		logger.Fatal("Failed to open store", zap.Error(err))
	}

	// 3. Session and CRM state
	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.NewMetrics(prometheus.DefaultRegisterer)
	}

	crmApp := app.New(kv, app.Options{
		Session: session.Options{LoginDelay: cfg.Auth.LoginDelay},
		Logger:  logger,
		Metrics: m,
		OnPersistError: func(key string, err error) {
			logger.Warn("Collection kept in memory only; POST /api/persistence/retry to resync",
				zap.String("key", key), zap.Error(err))
		},
	})
	if err := crmApp.Start(context.Background()); err != nil {
		logger.Warn("Starting with an empty session", zap.Error(err))
	}
	if id, ok := crmApp.Identity(); ok {
		logger.Info("Session restored", zap.String("user_id", id.ID), zap.Int("clients", len(crmApp.CRM.ListClients())))
	}

	// 4. HTTP API
	gin.SetMode(gin.ReleaseMode)
	h := &api.Handler{App: crmApp, Logger: logger.Named("api")}

	routerOpts := api.RouterOptions{}
	if cfg.Metrics.Enabled {
		routerOpts.MetricsPath = cfg.Metrics.Path
	}

	srv := &http.Server{
		Addr:    cfg.Addr(),
		Handler: api.NewRouter(h, routerOpts),
	}

	go func() {
		logger.Info(fmt.Sprintf("HTTP API listening on %s", cfg.Addr()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	// 5. Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	logger.Info("Shutdown signal received")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
	}

	if pending := crmApp.CRM.Pending(); len(pending) > 0 {
		if err := crmApp.CRM.Retry(ctx); err != nil {
			logger.Error("Unsaved collections lost on exit", zap.Strings("keys", pending), zap.Error(err))
		}
	}

	if err := crmApp.Close(); err != nil {
		logger.Error("Failed to close store", zap.Error(err))
	}
	logger.Info("Shutdown complete")
}

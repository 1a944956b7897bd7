// Reqaudit - HTTP Request Audit Logging
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reqaudit

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tomtom215/reqaudit/internal/accesslog"
	"github.com/tomtom215/reqaudit/internal/api"
	"github.com/tomtom215/reqaudit/internal/config"
	"github.com/tomtom215/reqaudit/internal/extractor"
	"github.com/tomtom215/reqaudit/internal/logging"
	"github.com/tomtom215/reqaudit/internal/middleware"
	"github.com/tomtom215/reqaudit/internal/notify"
	"github.com/tomtom215/reqaudit/internal/retention"
	"github.com/tomtom215/reqaudit/internal/storage"
	"github.com/tomtom215/reqaudit/internal/supervisor"
	"github.com/tomtom215/reqaudit/internal/supervisor/services"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}
	logging.Init(cfg.LoggingConfig())

	if err := run(cfg); err != nil {
		logging.Fatal().Err(err).Msg("Reqaudit stopped with an error")
	}
	logging.Info().Msg("Reqaudit stopped gracefully")
}

//nolint:gocyclo // sequential wiring of optional components
func run(cfg *config.Config) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logging.Info().
		Str("version", version).
		Str("storage", cfg.Storage.Backend).
		Bool("dual_write", cfg.Storage.DualWrite).
		Bool("async", cfg.AuditLogger.Async).
		Msg("Starting reqaudit")

	store, err := storage.Open(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing audit storage")
		}
	}()

	transport, err := cfg.NotifyTransport()
	if err != nil {
		return fmt.Errorf("notifier transport: %w", err)
	}
	notifier, err := notify.New(transport, cfg.NotifyOptions())
	if err != nil {
		return fmt.Errorf("notifier: %w", err)
	}
	defer func() {
		if err := notifier.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing notifier")
		}
	}()

	// Records go straight to storage, or through NATS in async mode.
	var (
		requestWriter middleware.Writer = store.Sink
		accessWriter  accesslog.Writer  = store.Sink
		pipeline      *asyncPipeline
	)
	var checks []api.HealthCheck
	if store.HasDatabase() {
		checks = append(checks, api.HealthCheck{Name: "duckdb", Check: store.Ping})
	}
	if cfg.AuditLogger.Async {
		pipeline, err = initQueue(cfg, store.Sink, notifier)
		if err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
			defer cancel()
			pipeline.Close(shutdownCtx)
		}()
		requestWriter = pipeline.publisher
		accessWriter = pipeline.publisher
		checks = append(checks, pipeline.healthChecks()...)
	}

	interceptor, err := middleware.NewInterceptor(
		extractor.New(cfg.ExtractorOptions()),
		requestWriter,
		notifier,
		cfg.MiddlewareOptions(),
	)
	if err != nil {
		return fmt.Errorf("audit interceptor: %w", err)
	}

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	})
	if err != nil {
		return fmt.Errorf("supervisor tree: %w", err)
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)

	var adapter *accesslog.Adapter
	if cfg.AccessLog.Enabled || cfg.AccessLog.IngestFile != "" {
		opts := cfg.AccessLogOptions()
		opts.Notifier = notifier
		adapter, err = accesslog.NewAdapter(accessWriter, opts)
		if err != nil {
			return fmt.Errorf("access log adapter: %w", err)
		}
		tree.AddPipelineService(adapter)

		if cfg.AccessLog.IngestFile != "" {
			ingest, err := services.NewAccessLogIngestService(cfg.AccessLog.IngestFile, adapter, os.Getpid(), addr)
			if err != nil {
				return err
			}
			tree.AddMaintenanceService(ingest)
		}
	}

	if pipeline != nil && pipeline.consumer != nil {
		tree.AddPipelineService(pipeline.consumer)
	}

	if cfg.Retention.Scheduled {
		sweeper, err := retention.New(store.Sink, cfg.RetentionOptions())
		if err != nil {
			return fmt.Errorf("retention sweeper: %w", err)
		}
		scheduler, err := retention.NewScheduler(sweeper, cfg.Retention.Interval, cfg.Retention.RunOnStart)
		if err != nil {
			return fmt.Errorf("retention scheduler: %w", err)
		}
		tree.AddMaintenanceService(scheduler)
	}

	if store.Querier == nil {
		logging.Warn().Msg("Configured storage cannot be browsed; log view endpoints will return 503")
	}
	handler := api.NewHandler(store.Querier, api.HandlerConfig{
		DefaultPageSize: cfg.API.DefaultPageSize,
		MaxPageSize:     cfg.API.MaxPageSize,
		Version:         version,
	}, checks...)

	mwCfg := api.DefaultChiMiddlewareConfig()
	mwCfg.CORSAllowedOrigins = cfg.Security.CORSOrigins
	mwCfg.RateLimitRequests = cfg.Security.RateLimitReqs
	mwCfg.RateLimitWindow = cfg.Security.RateLimitWindow
	mwCfg.RateLimitDisabled = cfg.Security.RateLimitDisabled
	if mwCfg.RateLimitDisabled {
		logging.Warn().Msg("Rate limiting is disabled")
	}

	var root http.Handler = api.NewRouter(handler, api.RouterConfig{
		Middleware: mwCfg,
		Audit:      interceptor.Handler,
	})
	if adapter != nil && cfg.AccessLog.Enabled {
		root = accesslog.Handler(root, adapter, addr)
	}

	server := &http.Server{
		Addr:              addr,
		Handler:           root,
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))
	logging.Info().Str("addr", addr).Msg("HTTP server service added")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	errCh := tree.ServeBackground(ctx)
	var treeErr error
	select {
	case <-ctx.Done():
		logging.Info().Msg("Waiting for supervisor tree to stop")
		treeErr = <-errCh
	case treeErr = <-errCh:
	}
	tree.LogUnstopped()

	if treeErr != nil && !errors.Is(treeErr, context.Canceled) {
		return fmt.Errorf("supervisor tree: %w", treeErr)
	}
	return nil
}

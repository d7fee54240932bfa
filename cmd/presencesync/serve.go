// Presencesync - Real-time listening presence synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/presencesync

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

	"github.com/tomtom215/presencesync/internal/api"
	"github.com/tomtom215/presencesync/internal/config"
	"github.com/tomtom215/presencesync/internal/events"
	"github.com/tomtom215/presencesync/internal/hostsignal"
	"github.com/tomtom215/presencesync/internal/logging"
	"github.com/tomtom215/presencesync/internal/models"
	"github.com/tomtom215/presencesync/internal/presence"
	"github.com/tomtom215/presencesync/internal/supervisor"
	"github.com/tomtom215/presencesync/internal/supervisor/services"
	syncpkg "github.com/tomtom215/presencesync/internal/sync"
	ws "github.com/tomtom215/presencesync/internal/websocket"
)

// initLogging applies the logging section of cfg.
func initLogging(cfg *config.Config) {
	logCfg := logging.DefaultConfig()
	logCfg.Level = cfg.Logging.Level
	logCfg.Format = cfg.Logging.Format
	logCfg.Caller = cfg.Logging.Caller
	logCfg.File = logging.FileConfig{
		Path:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
		Compress:   cfg.Logging.Compress,
	}
	logging.Init(logCfg)
}

// watchLogLevel reloads the log level when the config file changes.
func watchLogLevel(path string) {
	err := config.WatchConfigFile(path, func() {
		cfg, err := config.LoadWithKoanf()
		if err != nil {
			logging.Warn().Err(err).Str("path", path).Msg("Ignoring invalid configuration change")
			return
		}
		logging.SetLevelString(cfg.Logging.Level)
		logging.Info().Str("level", cfg.Logging.Level).Msg("Log level reloaded")
	})
	if err != nil {
		logging.Warn().Err(err).Str("path", path).Msg("Config file watch unavailable")
	}
}

//nolint:gocyclo // Sequential component wiring
func runServe(parent context.Context) error {
	cfg, err := config.LoadWithKoanf()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	initLogging(cfg)
	defer func() { _ = logging.Close() }()

	logging.Info().
		Str("version", version).
		Str("identity", cfg.Identity).
		Str("store", cfg.Store.Type).
		Str("config", cfg.SourcePath).
		Msg("Starting Presencesync")

	if cfg.SourcePath != "" {
		watchLogLevel(cfg.SourcePath)
	}

	store, err := presence.OpenStore(presence.StoreType(cfg.Store.Type), cfg.Store.Path, false)
	if err != nil {
		// The cache is an optimization; run network-only without it.
		logging.Warn().Err(err).Str("path", cfg.Store.Path).Msg("Snapshot store unavailable, continuing without cache")
		store = nil
	}
	if store != nil {
		defer func() {
			if err := store.Close(); err != nil {
				logging.Error().Err(err).Msg("Error closing snapshot store")
			}
		}()
	}

	reconciler := presence.NewReconciler(store)
	fetcher := syncpkg.NewCircuitBreakerFetcher(
		syncpkg.NewPresenceClient(cfg.Presence.URL, cfg.Identity, cfg.Presence.Timeout),
		"presence-api",
		syncpkg.DefaultBreakerSettings(),
	)
	coordinator := syncpkg.NewCoordinator(syncpkg.CoordinatorConfig{
		GatewayURL:       cfg.Gateway.URL,
		Identity:         cfg.Identity,
		RetryDelay:       cfg.Gateway.RetryDelay,
		WriteTimeout:     cfg.Gateway.WriteTimeout,
		DefaultHeartbeat: cfg.Gateway.DefaultHeartbeat,
	}, syncpkg.NewWebSocketDialer(cfg.Gateway.HandshakeTimeout), syncpkg.NewPoller(fetcher, cfg.Presence.PollInterval), reconciler)

	hub := ws.NewHub()
	hub.SetSnapshotSource(func() models.PresenceView { return reconciler.State().View() })
	defer reconciler.Subscribe(hub.BroadcastPresence)()

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		FailureThreshold: cfg.Supervisor.FailureThreshold,
		FailureDecay:     cfg.Supervisor.FailureDecay,
		FailureBackoff:   cfg.Supervisor.FailureBackoff,
		ShutdownTimeout:  cfg.Supervisor.ShutdownTimeout,
	})
	if err != nil {
		return fmt.Errorf("create supervisor tree: %w", err)
	}

	tree.AddSyncService(services.NewCoordinatorService(coordinator))
	tree.AddMessagingService(services.NewWebSocketHubService(hub))

	if cfg.DBus.Enabled {
		tree.AddSyncService(services.NewHostSignalService(hostsignal.NewWatcher(nil, coordinator)))
		logging.Info().Msg("D-Bus host signal watcher enabled")
	}

	if cfg.NATS.Enabled {
		unsubscribe, err := addNATSPublisher(tree, cfg.NATS, reconciler)
		if err != nil {
			return err
		}
		defer unsubscribe()
	}

	if cfg.Server.Enabled {
		tree.AddAPIService(services.NewHTTPServerService(newHTTPServer(cfg.Server, coordinator, hub), cfg.Server.ShutdownTimeout))
		logging.Info().Str("addr", cfg.Server.Addr()).Msg("HTTP API enabled")
	}

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = tree.Serve(ctx)
	if report, rerr := tree.UnstoppedServiceReport(); rerr == nil && len(report) > 0 {
		logging.Warn().Int("count", len(report)).Msg("Services did not stop within the shutdown timeout")
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("supervisor tree stopped: %w", err)
	}
	logging.Info().Msg("Presencesync stopped")
	return nil
}

// addNATSPublisher wires state changes to NATS, starting an embedded server
// when configured.
func addNATSPublisher(tree *supervisor.SupervisorTree, cfg config.NATSConfig, reconciler *presence.Reconciler) (func(), error) {
	url := cfg.URL
	var embedded *events.EmbeddedServer
	if cfg.Embedded {
		srv, err := events.NewEmbeddedServer(events.ServerConfig{Host: cfg.Host, Port: cfg.Port})
		if err != nil {
			return nil, fmt.Errorf("start embedded NATS server: %w", err)
		}
		embedded = srv
		url = srv.ClientURL()
		logging.Info().Str("url", url).Msg("Embedded NATS server started")
	}

	pub, err := events.NewPublisher(events.PublisherConfig{URL: url, Subject: cfg.Subject})
	if err != nil {
		if embedded != nil {
			_ = embedded.Shutdown(context.Background())
		}
		return nil, fmt.Errorf("create NATS publisher: %w", err)
	}

	if embedded != nil {
		tree.AddMessagingService(services.NewNATSPublisherService(pub, embedded))
	} else {
		tree.AddMessagingService(services.NewNATSPublisherService(pub, nil))
	}
	logging.Info().Str("url", url).Str("subject", pub.Subject()).Msg("NATS state publisher enabled")
	return reconciler.Subscribe(pub.Notify), nil
}

// newHTTPServer builds the API server.
func newHTTPServer(cfg config.ServerConfig, coordinator *syncpkg.Coordinator, hub *ws.Hub) *http.Server {
	mwConfig := api.DefaultChiMiddlewareConfig()
	mwConfig.CORSAllowedOrigins = cfg.CORSOrigins
	mwConfig.RateLimitRequests = cfg.RateLimitRequests
	if cfg.RateLimitWindow > 0 {
		mwConfig.RateLimitWindow = cfg.RateLimitWindow
	}

	handler := api.NewHandler(coordinator, hub, cfg.CORSOrigins)
	router := api.NewRouter(handler, api.NewChiMiddleware(mwConfig))

	return &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router.SetupChi(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}

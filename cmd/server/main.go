// Command server runs the dtsociety HTTP API.
//
// The server keeps per-session datasets and answers forecast requests over
// them:
//  1. Imports datasets by URL and normalizes their geography to ISO3 codes
//  2. Reshapes wide datasets into long format
//  3. Aligns selected features on their common timestamps
//  4. Fits VAR or Holt-Winters models and scenario regressions
//  5. Summarizes features as correlation heatmaps and statistics
//
// Usage:
//
//	server \
//	  -listen=:8080 \
//	  -storage=redis \
//	  -redis-addr=redis:6379 \
//	  -workers=8
//
// Environment variables:
//
//	LISTEN          - HTTP listen address (default: :8080)
//	STORAGE         - Storage backend: memory, redis, postgres (default: memory)
//	REDIS_ADDR      - Redis server address (default: localhost:6379)
//	POSTGRES_DSN    - PostgreSQL connection string
//	CACHE_TTL       - Prepared table cache TTL (default: 10m)
//	WORKERS         - Concurrent per-country fits (default: 4)
//	REQUEST_TIMEOUT - Per-request processing timeout (default: 90s)
//	LOG_LEVEL       - Logging level: debug, info, warn, error (default: info)
//	LOG_FORMAT      - Logging format: text, json (default: text)
//	ENV_FILE        - File loaded into the environment first (default: .env)
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/HatiCode/dtsociety/cmd/server/config"
	"github.com/HatiCode/dtsociety/cmd/server/logger"
	"github.com/HatiCode/dtsociety/cmd/server/metrics"
	"github.com/HatiCode/dtsociety/cmd/server/router"
	"github.com/HatiCode/dtsociety/cmd/server/store"
	"github.com/HatiCode/dtsociety/pkg/httpx"
	"github.com/HatiCode/dtsociety/pkg/pipeline"
	"github.com/HatiCode/dtsociety/pkg/storage"
	dttls "github.com/HatiCode/dtsociety/pkg/tls"
)

// version is set via ldflags at build time
var version = "dev"

func main() {
	cfg := config.ParseFlags()
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, "invalid configuration:", err)
		os.Exit(1)
	}

	logger := logger.New(cfg)
	slog.SetDefault(logger)

	logger.Info("starting dtsociety server",
		"version", version,
		"storage", cfg.Storage,
		"workers", cfg.Workers,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, err := store.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to create store", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := st.Close(); err != nil {
			logger.Error("failed to close store", "error", err)
		}
	}()

	client, err := httpx.NewClient(cfg.ImportTLS, cfg.ImportTimeout)
	if err != nil {
		logger.Error("failed to create import client", "error", err)
		os.Exit(1)
	}

	svc, err := pipeline.New(pipeline.Config{
		Repository: st,
		Cache:      storage.NewTableCache(cfg.CacheTTL),
		Workers:    cfg.Workers,
		HTTPClient: client,
		Observer:   metrics.New(nil),
		Logger:     logger,
	})
	if err != nil {
		logger.Error("failed to create pipeline", "error", err)
		os.Exit(1)
	}

	handler := router.SetupRoutes(svc, st.Ping, cfg.RequestTimeout, logger)
	httpServer := httpx.NewServer(cfg.Listen, handler, logger)

	if cfg.TLS.Enabled {
		tlsConfig, err := dttls.NewServerTLSConfig(cfg.TLS.CertFile, cfg.TLS.KeyFile, cfg.TLS.CAFile)
		if err != nil {
			logger.Error("failed to create TLS config", "error", err)
			os.Exit(1)
		}
		httpServer.SetTLSConfig(tlsConfig)
	}

	serverErr := make(chan error, 1)
	go func() {
		if cfg.TLS.Enabled {
			serverErr <- httpServer.StartTLS(cfg.TLS.CertFile, cfg.TLS.KeyFile)
			return
		}
		serverErr <- httpServer.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", "signal", sig)
	case err := <-serverErr:
		if err != nil {
			logger.Error("server failed", "error", err)
		}
	}

	logger.Info("shutting down")
	cancel()

	if err := httpServer.Stop(10 * time.Second); err != nil {
		logger.Error("server shutdown failed", "error", err)
		os.Exit(1)
	}

	logger.Info("shutdown complete")
}

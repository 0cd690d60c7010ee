// Package main is the entry point for the Iron Forge athlete API.
//
// main stays minimal: it reads configuration, builds the logger and the
// long-lived dependencies (store, rate limit counter), and hands them to
// internal/server. All actual logic lives in the imported packages.
package main

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/ironforge/athlete-api/internal/config"
	"github.com/ironforge/athlete-api/internal/repository/sqlstore"
	"github.com/ironforge/athlete-api/internal/server"
)

func main() {
	// === 1. READ CONFIGURATION ===
	// Reads .env when present, then the process environment. Any invalid
	// setting (short JWT_SECRET, bad PORT) stops the process here.
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// === 2. SET UP LOGGING ===
	// Human-readable text in development, JSON for log shippers in production.
	logger := newLogger(cfg)
	slog.SetDefault(logger)

	ctx := context.Background()

	// === 3. OPEN THE STORE ===
	// SQLite needs its directory to exist; MySQL needs nothing local.
	if cfg.DBDriver == config.DriverSQLite {
		dbDir := filepath.Dir(cfg.DBPath)
		if err := os.MkdirAll(dbDir, 0o755); err != nil {
			logger.Error("failed to create database directory",
				slog.String("dir", dbDir),
				slog.String("error", err.Error()),
			)
			os.Exit(1)
		}
	}

	store, err := sqlstore.Open(ctx, cfg.DBDriver, cfg.DSN())
	if err != nil {
		logger.Error("failed to open database",
			slog.String("driver", cfg.DBDriver),
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}

	// === 4. RATE LIMITING ===
	// Optional: without Redis the API runs unlimited.
	counter, releaseCounter := server.ConnectRateLimiter(ctx, cfg, logger)
	defer releaseCounter()

	// === 5. CREATE AND START THE SERVER ===
	srv, err := server.New(cfg, store, counter, logger)
	if err != nil {
		_ = store.Close()
		logger.Error("failed to create server", slog.String("error", err.Error()))
		os.Exit(1)
	}
	srv.CheckHealth(ctx)

	// Start() blocks until the server is shut down (via Ctrl+C or SIGTERM)
	// and closes the store on the way out.
	if err := srv.Start(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		releaseCounter()
		os.Exit(1)
	}
}

func newLogger(cfg config.Config) *slog.Logger {
	if cfg.IsProduction() {
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

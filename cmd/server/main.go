// Package main is the entry point for the openwiki backend.
//
// main only reads configuration, builds the long-lived dependencies (logger,
// article store, Wikipedia client, auth gateway) and hands them to
// internal/server. All behaviour lives in the internal packages.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sakif/openwiki/internal/auth"
	"github.com/sakif/openwiki/internal/config"
	"github.com/sakif/openwiki/internal/repository"
	"github.com/sakif/openwiki/internal/repository/postgres"
	sqliteRepo "github.com/sakif/openwiki/internal/repository/sqlite"
	"github.com/sakif/openwiki/internal/server"
	"github.com/sakif/openwiki/internal/wiki"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// No configured logger yet.
		slog.Error("failed to load configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger := newLogger(cfg.Logging)
	slog.SetDefault(logger)

	store, err := openStore(cfg.Database, logger)
	if err != nil {
		logger.Error("failed to open article store",
			slog.String("driver", cfg.Database.Driver),
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}

	if !cfg.Auth.RequireSession {
		logger.Warn("requests without a readable session fall back to the default user",
			slog.String("default_user_id", cfg.Auth.DefaultUserID),
		)
	}

	srv := server.New(
		server.Config{
			Port:              cfg.Server.Port,
			ReadTimeout:       cfg.Server.ReadTimeout,
			WriteTimeout:      cfg.Server.WriteTimeout,
			ShutdownTimeout:   cfg.Server.ShutdownTimeout,
			CORSOrigins:       cfg.Server.CORSOrigins,
			RateLimitRequests: cfg.Server.RateLimitRequests,
			RateLimitWindow:   cfg.Server.RateLimitWindow,
			RateLimitDisabled: cfg.Server.RateLimitDisabled,
			RequireSession:    cfg.Auth.RequireSession,
		},
		store,
		wiki.New(cfg.WikiClient(), logger),
		auth.NewGateway(cfg.AuthGateway(), logger),
		logger,
	)

	// Start blocks until SIGINT/SIGTERM and closes the store on the way out.
	if err := srv.Start(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func newLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.Format, "json") {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

func openStore(cfg config.DatabaseConfig, logger *slog.Logger) (repository.ArticleRepository, error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		store, err := postgres.Open(ctx, cfg.DSN)
		if err != nil {
			return nil, err
		}
		logger.Info("using postgres article store")
		return store, nil

	case config.DriverSQLite:
		if cfg.Path != ":memory:" {
			dir := filepath.Dir(cfg.Path)
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("creating database directory %s: %w", dir, err)
			}
		}

		store, err := sqliteRepo.New(cfg.Path)
		if err != nil {
			return nil, err
		}
		logger.Info("using sqlite article store", slog.String("path", cfg.Path))
		return store, nil

	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
}

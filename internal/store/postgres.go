// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Chatgate Contributors

// Package store provides database bootstrap: driver selection, connection
// pools and schema migrations.
package store

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"

	"github.com/chatgate/chatgate/internal/xdg"
)

// Driver names a supported credential backend.
type Driver string

// Supported drivers.
const (
	DriverPostgres Driver = "postgres"
	DriverSQLite   Driver = "sqlite"
)

// DefaultSQLiteFile is the database file name used for a bare sqlite:// URL.
const DefaultSQLiteFile = "chatgate.db"

// ParseURL picks the driver for databaseURL and returns the DSN that driver
// expects. postgres:// and postgresql:// select PostgreSQL and are passed
// through; sqlite://<path> and file: URLs select SQLite. A bare sqlite://
// places the database in the XDG data directory.
func ParseURL(databaseURL string) (Driver, string, error) {
	switch {
	case databaseURL == "":
		return "", "", oops.Code("DB_URL_MISSING").Errorf("database url is required")
	case strings.HasPrefix(databaseURL, "postgres://"), strings.HasPrefix(databaseURL, "postgresql://"):
		return DriverPostgres, databaseURL, nil
	case strings.HasPrefix(databaseURL, "sqlite://"):
		path := strings.TrimPrefix(databaseURL, "sqlite://")
		if path == "" {
			dir, err := xdg.DataDir()
			if err != nil {
				return "", "", oops.With("operation", "resolve default sqlite path").Wrap(err)
			}
			path = filepath.Join(dir, DefaultSQLiteFile)
		}
		return DriverSQLite, path, nil
	case strings.HasPrefix(databaseURL, "file:"):
		return DriverSQLite, databaseURL, nil
	}

	scheme, _, _ := strings.Cut(databaseURL, ":")
	return "", "", oops.Code("DB_URL_INVALID").
		With("scheme", scheme).
		Errorf("unsupported database url scheme")
}

// PoolConfig tunes OpenPool.
type PoolConfig struct {
	// MaxConns caps the pool size. Zero keeps the pgx default.
	MaxConns int32
	// PingTimeout bounds each startup connectivity check.
	PingTimeout time.Duration
	// ConnectRetries is how many extra pings are attempted before giving up.
	ConnectRetries uint64
}

// DefaultPoolConfig returns the settings used when none are configured.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		MaxConns:       10,
		PingTimeout:    3 * time.Second,
		ConnectRetries: 5,
	}
}

// OpenPool creates a pgx pool and waits until the database answers a ping,
// retrying with exponential backoff. It fails if the database never answers.
func OpenPool(ctx context.Context, databaseURL string, cfg PoolConfig, logger *slog.Logger) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, oops.Code("DB_URL_INVALID").With("operation", "parse database url").Wrap(err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.PingTimeout <= 0 {
		cfg.PingTimeout = DefaultPoolConfig().PingTimeout
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, oops.Code("DB_CONNECT_FAILED").With("operation", "create pool").Wrap(err)
	}

	backoff := retry.NewExponential(200 * time.Millisecond)
	backoff = retry.WithCappedDuration(2*time.Second, backoff)
	backoff = retry.WithMaxRetries(cfg.ConnectRetries, backoff)

	attempt := 0
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		pingCtx, cancel := context.WithTimeout(ctx, cfg.PingTimeout)
		defer cancel()
		if pingErr := pool.Ping(pingCtx); pingErr != nil {
			logger.WarnContext(ctx, "database not reachable yet", "attempt", attempt, "error", pingErr)
			return retry.RetryableError(pingErr)
		}
		return nil
	})
	if err != nil {
		pool.Close()
		return nil, oops.Code("DB_UNREACHABLE").
			With("attempts", attempt).
			Wrap(err)
	}

	logger.InfoContext(ctx, "database connected", "attempts", attempt, "max_conns", poolCfg.MaxConns)
	return pool, nil
}

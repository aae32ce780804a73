// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Chatgate Contributors

package main

import (
	"context"
	"log/slog"

	"github.com/samber/oops"

	"github.com/chatgate/chatgate/internal/auth"
	"github.com/chatgate/chatgate/internal/auth/postgres"
	"github.com/chatgate/chatgate/internal/auth/sqlite"
	"github.com/chatgate/chatgate/internal/config"
	"github.com/chatgate/chatgate/internal/store"
)

// openStore opens the backend selected by the database URL scheme. For
// PostgreSQL it waits for the server, then applies pending migrations when
// auto_migrate is set.
// The returned func releases the store.
func openStore(ctx context.Context, cfg config.DatabaseConfig, logger *slog.Logger) (auth.CredentialStore, func(), error) {
	driver, dsn, err := store.ParseURL(cfg.URL)
	if err != nil {
		return nil, nil, err
	}

	switch driver {
	case store.DriverSQLite:
		db, err := sqlite.Open(ctx, logger, dsn)
		if err != nil {
			return nil, nil, err
		}
		return sqlite.NewCredentialRepository(db, cfg.QueryTimeout), func() { _ = db.Close() }, nil

	case store.DriverPostgres:
		pool, err := store.OpenPool(ctx, dsn, store.PoolConfig{
			MaxConns:       cfg.MaxConns,
			PingTimeout:    store.DefaultPoolConfig().PingTimeout,
			ConnectRetries: cfg.ConnectRetries,
		}, logger)
		if err != nil {
			return nil, nil, err
		}
		if cfg.AutoMigrate {
			if err := migrateUp(dsn, logger); err != nil {
				pool.Close()
				return nil, nil, err
			}
		}
		return postgres.NewCredentialRepository(pool, cfg.QueryTimeout), pool.Close, nil
	}

	return nil, nil, oops.Code("DB_URL_INVALID").With("driver", string(driver)).Errorf("unsupported driver")
}

func migrateUp(databaseURL string, logger *slog.Logger) (err error) {
	m, err := store.NewMigrator(databaseURL)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := m.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	pending, err := m.Pending()
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		return nil
	}
	if err := m.Up(); err != nil {
		return err
	}
	logger.Info("applied migrations", "versions", pending)
	return nil
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Chatgate Contributors

// Package sqlite provides an embedded SQLite credential store for local
// development and single-node deployments.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/chatgate/chatgate/internal/auth"
	"github.com/chatgate/chatgate/internal/xdg"
)

//go:embed schema.sql
var schemaSQL string

// DefaultQueryTimeout bounds every statement issued by the repository.
const DefaultQueryTimeout = 5 * time.Second

// Open opens (creating if needed) the SQLite database at dsn and applies the
// schema. dsn is a file path, ":memory:" or a file: URI.
func Open(ctx context.Context, logger *slog.Logger, dsn string) (*sql.DB, error) {
	if dsn != ":memory:" && !strings.HasPrefix(dsn, "file:") {
		if err := xdg.EnsureDir(filepath.Dir(dsn)); err != nil {
			return nil, oops.With("operation", "create db parent directory").Wrap(err)
		}
	}

	sep := "?"
	if strings.ContainsRune(dsn, '?') {
		sep = "&"
	}
	full := dsn + sep + "_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"

	handle, err := sql.Open("sqlite", full)
	if err != nil {
		return nil, oops.Code("DB_CONNECT_FAILED").With("operation", "open sqlite").Wrap(err)
	}
	// One connection serializes writers and keeps ":memory:" a single database.
	handle.SetMaxOpenConns(1)

	if err := handle.PingContext(ctx); err != nil {
		_ = handle.Close()
		return nil, oops.Code("DB_UNREACHABLE").With("operation", "ping sqlite").Wrap(err)
	}
	if _, err := handle.ExecContext(ctx, schemaSQL); err != nil {
		_ = handle.Close()
		return nil, oops.Code("MIGRATION_UP_FAILED").With("operation", "apply sqlite schema").Wrap(err)
	}

	logger.InfoContext(ctx, "sqlite credential store ready", "dsn", dsn)
	return handle, nil
}

// CredentialRepository implements auth.CredentialStore on SQLite.
type CredentialRepository struct {
	db      *sql.DB
	timeout time.Duration
}

// NewCredentialRepository creates a new CredentialRepository.
// A non-positive timeout selects DefaultQueryTimeout.
func NewCredentialRepository(db *sql.DB, timeout time.Duration) *CredentialRepository {
	if timeout <= 0 {
		timeout = DefaultQueryTimeout
	}
	return &CredentialRepository{db: db, timeout: timeout}
}

// Exists reports whether identity is registered.
func (r *CredentialRepository) Exists(ctx context.Context, identity string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM credentials WHERE identity = ?)`,
		identity,
	).Scan(&exists)
	if err != nil {
		return false, auth.NewError(auth.KindDatabaseError, err, "operation", "check identity")
	}
	return exists, nil
}

// Insert stores a new credential.
func (r *CredentialRepository) Insert(ctx context.Context, cred *auth.Credential) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO credentials (id, identity, password_hash, created_at) VALUES (?, ?, ?, ?)`,
		cred.ID.String(),
		cred.Identity,
		cred.PasswordHash,
		cred.CreatedAt.UnixMicro(),
	)
	if err == nil {
		return nil
	}
	if isUniqueViolation(err) {
		return auth.NewError(auth.KindUserAlreadyExists, err, "operation", "insert credential")
	}
	return auth.NewError(auth.KindDatabaseError, err,
		"operation", "insert credential",
		"credential_id", cred.ID.String())
}

// Lookup retrieves a credential by exact identity.
func (r *CredentialRepository) Lookup(ctx context.Context, identity string) (*auth.Credential, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var (
		cred    auth.Credential
		idStr   string
		created int64
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT id, identity, password_hash, created_at FROM credentials WHERE identity = ?`,
		identity,
	).Scan(&idStr, &cred.Identity, &cred.PasswordHash, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, auth.ErrNotFound
	}
	if err != nil {
		return nil, auth.NewError(auth.KindDatabaseError, err, "operation", "lookup credential")
	}

	id, err := ulid.Parse(idStr)
	if err != nil {
		return nil, auth.NewError(auth.KindDatabaseError, err, "operation", "parse credential id")
	}
	cred.ID = id
	cred.CreatedAt = time.UnixMicro(created).UTC()
	return &cred, nil
}

// Ping checks that the database is usable.
func (r *CredentialRepository) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if err := r.db.PingContext(ctx); err != nil {
		return auth.NewError(auth.KindDatabaseError, err, "operation", "ping")
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE
}

// Compile-time interface check.
var _ auth.CredentialStore = (*CredentialRepository)(nil)

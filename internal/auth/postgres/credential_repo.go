// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Chatgate Contributors

// Package postgres provides PostgreSQL implementations of auth repositories.
package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oklog/ulid/v2"

	"github.com/chatgate/chatgate/internal/auth"
)

// Pool is the subset of *pgxpool.Pool used by the repository.
// pgxmock.PgxPoolIface satisfies it in tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
}

// DefaultQueryTimeout bounds every statement issued by the repository.
const DefaultQueryTimeout = 5 * time.Second

// CredentialRepository implements auth.CredentialStore using PostgreSQL.
type CredentialRepository struct {
	pool    Pool
	timeout time.Duration
}

// NewCredentialRepository creates a new CredentialRepository.
// A non-positive timeout selects DefaultQueryTimeout.
func NewCredentialRepository(pool Pool, timeout time.Duration) *CredentialRepository {
	if timeout <= 0 {
		timeout = DefaultQueryTimeout
	}
	return &CredentialRepository{pool: pool, timeout: timeout}
}

// Exists reports whether identity is registered.
func (r *CredentialRepository) Exists(ctx context.Context, identity string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM credentials WHERE identity = $1)`,
		identity,
	).Scan(&exists)
	if err != nil {
		return false, auth.NewError(auth.KindDatabaseError, err, "operation", "check identity")
	}
	return exists, nil
}

// Insert stores a new credential. The UNIQUE constraint on identity decides
// concurrent inserts of the same identity.
func (r *CredentialRepository) Insert(ctx context.Context, cred *auth.Credential) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	_, err := r.pool.Exec(ctx, `
		INSERT INTO credentials (id, identity, password_hash, created_at)
		VALUES ($1, $2, $3, $4)
	`,
		cred.ID.String(),
		cred.Identity,
		cred.PasswordHash,
		cred.CreatedAt,
	)
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
		return auth.NewError(auth.KindUserAlreadyExists, err,
			"operation", "insert credential",
			"constraint", pgErr.ConstraintName)
	}
	return auth.NewError(auth.KindDatabaseError, err,
		"operation", "insert credential",
		"credential_id", cred.ID.String())
}

// Lookup retrieves a credential by exact identity.
func (r *CredentialRepository) Lookup(ctx context.Context, identity string) (*auth.Credential, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	row := r.pool.QueryRow(ctx, `
		SELECT id, identity, password_hash, created_at
		FROM credentials
		WHERE identity = $1
	`, identity)

	cred, err := scanCredential(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, auth.ErrNotFound
	}
	if err != nil {
		return nil, auth.NewError(auth.KindDatabaseError, err, "operation", "lookup credential")
	}
	return cred, nil
}

// Ping checks that the database is reachable.
func (r *CredentialRepository) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if err := r.pool.Ping(ctx); err != nil {
		return auth.NewError(auth.KindDatabaseError, err, "operation", "ping")
	}
	return nil
}

func scanCredential(row pgx.Row) (*auth.Credential, error) {
	var (
		cred  auth.Credential
		idStr string
	)
	if err := row.Scan(&idStr, &cred.Identity, &cred.PasswordHash, &cred.CreatedAt); err != nil {
		return nil, err //nolint:wrapcheck // callers classify the error
	}

	id, err := ulid.Parse(idStr)
	if err != nil {
		return nil, err //nolint:wrapcheck // callers classify the error
	}
	cred.ID = id
	return &cred, nil
}

// Compile-time interface check.
var _ auth.CredentialStore = (*CredentialRepository)(nil)

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Chatgate Contributors

package auth

import (
	"context"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// MaxIdentityLength matches the width of the identity column.
const MaxIdentityLength = 255

// Credential is a registered identity and its password hash.
// Records are created once and never mutated.
type Credential struct {
	ID           ulid.ULID
	Identity     string
	PasswordHash string
	CreatedAt    time.Time
}

// NewCredential creates a Credential with a fresh ID.
func NewCredential(identity, passwordHash string) (*Credential, error) {
	if identity == "" {
		return nil, oops.Code("CREDENTIAL_INVALID").Errorf("identity cannot be empty")
	}
	if len(identity) > MaxIdentityLength {
		return nil, oops.Code("CREDENTIAL_INVALID").
			With("max", MaxIdentityLength).
			Errorf("identity must be at most %d bytes", MaxIdentityLength)
	}
	if !strings.HasPrefix(passwordHash, "$argon2id$") {
		return nil, oops.Code("CREDENTIAL_INVALID").Errorf("password hash must be an argon2id PHC string")
	}

	return &Credential{
		ID:           ulid.Make(),
		Identity:     identity,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().UTC(),
	}, nil
}

// CredentialStore manages credential persistence.
//
// Implementations must enforce identity uniqueness atomically in storage;
// Insert is the only authority on whether an identity is taken.
type CredentialStore interface {
	// Exists reports whether identity is registered. Advisory only.
	Exists(ctx context.Context, identity string) (bool, error)

	// Insert stores a new credential. Returns an error of KindUserAlreadyExists
	// when the identity is taken and KindDatabaseError on storage failure.
	Insert(ctx context.Context, cred *Credential) error

	// Lookup retrieves a credential by exact identity.
	// Returns ErrNotFound if no credential has the given identity.
	Lookup(ctx context.Context, identity string) (*Credential, error)

	// Ping checks that storage is reachable.
	Ping(ctx context.Context) error
}

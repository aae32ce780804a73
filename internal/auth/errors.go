// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Chatgate Contributors

package auth

import (
	"errors"
	"fmt"

	"github.com/samber/oops"
)

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// Kind classifies every failure the auth subsystem can surface to a client.
// The set is closed: anything that is not one of these is KindUnknown.
type Kind int

// Failure kinds.
const (
	KindUnknown Kind = iota
	KindWrongCredentials
	KindMissingCredentials
	KindInvalidToken
	KindTokenCreation
	KindUserAlreadyExists
	KindDatabaseError
	KindPasswordHash
)

// Sentinels matched by errors.Is for each Kind.
var (
	ErrWrongCredentials   = errors.New("wrong credentials")
	ErrMissingCredentials = errors.New("missing credentials")
	ErrInvalidToken       = errors.New("invalid token")
	ErrTokenCreation      = errors.New("token creation failed")
	ErrUserAlreadyExists  = errors.New("user already exists")
	ErrDatabase           = errors.New("database error")
	ErrPasswordHash       = errors.New("password processing failed")
)

var kindSentinels = map[Kind]error{
	KindWrongCredentials:   ErrWrongCredentials,
	KindMissingCredentials: ErrMissingCredentials,
	KindInvalidToken:       ErrInvalidToken,
	KindTokenCreation:      ErrTokenCreation,
	KindUserAlreadyExists:  ErrUserAlreadyExists,
	KindDatabaseError:      ErrDatabase,
	KindPasswordHash:       ErrPasswordHash,
}

// kindOrder fixes the lookup order in KindOf. An error chain normally carries
// a single kind, but when it carries two the more specific one wins.
var kindOrder = []Kind{
	KindUserAlreadyExists,
	KindWrongCredentials,
	KindMissingCredentials,
	KindInvalidToken,
	KindTokenCreation,
	KindPasswordHash,
	KindDatabaseError,
}

// Kinds returns every known kind, excluding KindUnknown.
func Kinds() []Kind {
	out := make([]Kind, len(kindOrder))
	copy(out, kindOrder)
	return out
}

// Code returns the oops error code attached to errors of this kind.
func (k Kind) Code() string {
	switch k {
	case KindWrongCredentials:
		return "AUTH_WRONG_CREDENTIALS"
	case KindMissingCredentials:
		return "AUTH_MISSING_CREDENTIALS"
	case KindInvalidToken:
		return "AUTH_INVALID_TOKEN"
	case KindTokenCreation:
		return "AUTH_TOKEN_CREATION"
	case KindUserAlreadyExists:
		return "AUTH_USER_ALREADY_EXISTS"
	case KindDatabaseError:
		return "AUTH_DATABASE_ERROR"
	case KindPasswordHash:
		return "AUTH_PASSWORD_HASH"
	default:
		return "AUTH_UNKNOWN"
	}
}

// String returns a short snake_case label, used for metrics and logs.
func (k Kind) String() string {
	switch k {
	case KindWrongCredentials:
		return "wrong_credentials"
	case KindMissingCredentials:
		return "missing_credentials"
	case KindInvalidToken:
		return "invalid_token"
	case KindTokenCreation:
		return "token_creation"
	case KindUserAlreadyExists:
		return "user_already_exists"
	case KindDatabaseError:
		return "database_error"
	case KindPasswordHash:
		return "password_hash"
	default:
		return "unknown"
	}
}

// NewError builds an oops error of kind k. The cause, if any, stays in the
// chain next to the kind sentinel so both errors.Is checks succeed.
// kv is passed to oops.With as alternating key/value pairs.
func NewError(k Kind, cause error, kv ...any) error {
	sentinel, ok := kindSentinels[k]
	if !ok {
		sentinel = errors.New("unclassified auth failure")
	}

	builder := oops.Code(k.Code())
	if len(kv) > 0 {
		builder = builder.With(kv...)
	}

	if cause == nil {
		return builder.Wrap(sentinel)
	}
	return builder.Wrap(fmt.Errorf("%w: %w", sentinel, cause))
}

// KindOf reports the kind carried by err, or KindUnknown.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	for _, k := range kindOrder {
		if errors.Is(err, kindSentinels[k]) {
			return k
		}
	}
	return KindUnknown
}

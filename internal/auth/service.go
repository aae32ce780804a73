// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Chatgate Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/samber/oops"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("chatgate/auth")

// TokenIssuer creates signed tokens for authenticated identities.
type TokenIssuer interface {
	NewClaims(subject string) Claims
	Issue(claims Claims) (string, error)
}

// IssuedToken is the result of a successful login.
type IssuedToken struct {
	Token  string
	Claims Claims
}

// dummyPasswordHash is used when a user doesn't exist to prevent timing attacks.
// It is NOT a real credential and never matches any password. Hashers that
// implement DummyHash supply one matching their own cost parameters instead.
//
//nolint:gosec // G101: This is an intentionally fake hash for timing attack prevention, not a credential.
const dummyPasswordHash = "$argon2id$v=19$m=65536,t=1,p=4$AAAAAAAAAAAAAAAAAAAAAA$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithoutExistsPrecheck skips the advisory Exists query before hashing, so
// every registration goes straight to the store's uniqueness constraint.
func WithoutExistsPrecheck() ServiceOption {
	return func(s *Service) {
		s.precheck = false
	}
}

// Service provides registration and login.
type Service struct {
	store     CredentialStore
	hasher    PasswordHasher
	tokens    TokenIssuer
	logger    *slog.Logger
	dummyHash string
	precheck  bool
}

// NewService creates a new Service.
func NewService(store CredentialStore, hasher PasswordHasher, tokens TokenIssuer, logger *slog.Logger, opts ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("credential store is required")
	}
	if hasher == nil {
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("password hasher is required")
	}
	if tokens == nil {
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("token issuer is required")
	}
	if logger == nil {
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("logger is required")
	}

	s := &Service{
		store:     store,
		hasher:    hasher,
		tokens:    tokens,
		logger:    logger,
		dummyHash: dummyPasswordHash,
		precheck:  true,
	}
	if d, ok := hasher.(interface{ DummyHash() string }); ok {
		s.dummyHash = d.DummyHash()
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Register stores a new credential for identity.
//
// The store's uniqueness constraint decides concurrent registrations of the
// same identity; the Exists precheck only saves a hash on the common path.
func (s *Service) Register(ctx context.Context, identity, password string) (cred *Credential, err error) {
	ctx, span := tracer.Start(ctx, "auth.register", trace.WithAttributes(
		attribute.Bool("auth.precheck", s.precheck),
	))
	defer func() { endSpan(span, err) }()

	if err := validateInput("register", identity, password); err != nil {
		return nil, err
	}

	if s.precheck {
		start := time.Now()
		exists, err := s.store.Exists(ctx, identity)
		if err != nil {
			return nil, withKind(KindDatabaseError, err, "check identity")
		}
		s.logger.DebugContext(ctx, "identity lookup finished", "duration", time.Since(start))
		if exists {
			return nil, NewError(KindUserAlreadyExists, nil, "operation", "register")
		}
	}

	start := time.Now()
	hash, err := s.hasher.Hash(ctx, password)
	if err != nil {
		return nil, withKind(KindPasswordHash, err, "hash password")
	}
	s.logger.DebugContext(ctx, "password hashed", "duration", time.Since(start))

	cred, err = NewCredential(identity, hash)
	if err != nil {
		return nil, withKind(KindPasswordHash, err, "build credential")
	}

	start = time.Now()
	if err := s.store.Insert(ctx, cred); err != nil {
		return nil, withKind(KindDatabaseError, err, "insert credential")
	}
	s.logger.DebugContext(ctx, "credential inserted", "duration", time.Since(start))

	s.logger.InfoContext(ctx, "credential registered", "credential_id", cred.ID.String())
	return cred, nil
}

// Login verifies the password for identity and issues a token.
// Unknown identities and wrong passwords fail identically and take
// comparable time.
func (s *Service) Login(ctx context.Context, identity, password string) (issued IssuedToken, err error) {
	ctx, span := tracer.Start(ctx, "auth.login")
	defer func() { endSpan(span, err) }()

	if err := validateInput("login", identity, password); err != nil {
		return IssuedToken{}, err
	}

	start := time.Now()
	cred, lookupErr := s.store.Lookup(ctx, identity)
	s.logger.DebugContext(ctx, "credential lookup finished", "duration", time.Since(start))

	var (
		targetHash string
		exists     bool
	)
	switch {
	case lookupErr == nil:
		targetHash = cred.PasswordHash
		exists = true
	case errors.Is(lookupErr, ErrNotFound):
		targetHash = s.dummyHash
	default:
		return IssuedToken{}, withKind(KindDatabaseError, lookupErr, "lookup credential")
	}

	// Always verify so unknown identities cost the same as known ones.
	start = time.Now()
	valid, verifyErr := s.hasher.Verify(ctx, password, targetHash)
	s.logger.DebugContext(ctx, "password verified", "duration", time.Since(start))
	// Verify failures are reported identically for unknown identities.
	if verifyErr != nil {
		return IssuedToken{}, withKind(KindPasswordHash, verifyErr, "verify password")
	}

	if !exists || !valid {
		return IssuedToken{}, NewError(KindWrongCredentials, nil, "operation", "login")
	}

	claims := s.tokens.NewClaims(cred.Identity)
	token, err := s.tokens.Issue(claims)
	if err != nil {
		return IssuedToken{}, withKind(KindTokenCreation, err, "issue token")
	}

	s.logger.InfoContext(ctx, "login succeeded", "credential_id", cred.ID.String())
	return IssuedToken{Token: token, Claims: claims}, nil
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		kind := KindOf(err)
		span.SetAttributes(attribute.String("auth.failure_kind", kind.String()))
		span.RecordError(err)
		span.SetStatus(codes.Error, kind.String())
	}
	span.End()
}

func validateInput(operation, identity, password string) error {
	if identity == "" || password == "" {
		return NewError(KindMissingCredentials, nil, "operation", operation)
	}
	if len(identity) > MaxIdentityLength {
		return NewError(KindMissingCredentials, nil,
			"operation", operation,
			"reason", "identity too long")
	}
	return nil
}

// withKind annotates err with the failed operation, classifying it as
// fallback when it does not already carry a kind.
func withKind(fallback Kind, err error, operation string) error {
	if KindOf(err) == KindUnknown {
		return NewError(fallback, err, "operation", operation)
	}
	return oops.With("operation", operation).Wrap(err)
}

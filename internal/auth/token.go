// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Chatgate Contributors

package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/samber/oops"
)

// DefaultTokenTTL is how long an issued token stays valid.
const DefaultTokenTTL = 24 * time.Hour

// TokenType is the scheme clients present tokens under.
const TokenType = "Bearer"

// Claims is the verified content of a token.
type Claims struct {
	// Subject is the identity the token was issued to.
	Subject string
	// ExpiresAt is the expiry in Unix seconds. The token is invalid once
	// the current time reaches it.
	ExpiresAt int64
	// IssuedAt is informational.
	IssuedAt int64
}

// Expiry returns ExpiresAt as a time.Time.
func (c Claims) Expiry() time.Time {
	return time.Unix(c.ExpiresAt, 0)
}

// TokenVerifier checks a compact token and returns its claims.
type TokenVerifier interface {
	Verify(token string) (Claims, error)
}

// TokenOption configures a TokenService.
type TokenOption func(*TokenService)

// WithClock replaces the wall clock used for issuance and expiry checks.
func WithClock(now func() time.Time) TokenOption {
	return func(s *TokenService) {
		if now != nil {
			s.now = now
		}
	}
}

// TokenService issues and verifies HS256 tokens.
type TokenService struct {
	keys *KeyMaterial
	ttl  time.Duration
	now  func() time.Time
}

// NewTokenService creates a TokenService signing with keys.
func NewTokenService(keys *KeyMaterial, ttl time.Duration, opts ...TokenOption) (*TokenService, error) {
	if keys == nil {
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("key material is required")
	}
	if ttl <= 0 {
		return nil, oops.Code("AUTH_INVALID_CONFIG").
			With("ttl", ttl.String()).
			Errorf("token ttl must be positive")
	}

	s := &TokenService{
		keys: keys,
		ttl:  ttl,
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// TTL returns the configured token lifetime.
func (s *TokenService) TTL() time.Duration {
	return s.ttl
}

// NewClaims returns claims for subject expiring one TTL from now.
func (s *TokenService) NewClaims(subject string) Claims {
	now := s.now()
	return Claims{
		Subject:   subject,
		ExpiresAt: now.Add(s.ttl).Unix(),
		IssuedAt:  now.Unix(),
	}
}

// Issue signs claims into a compact token.
func (s *TokenService) Issue(claims Claims) (string, error) {
	if claims.Subject == "" {
		return "", NewError(KindTokenCreation, nil, "reason", "empty subject")
	}

	registered := jwt.RegisteredClaims{
		Subject:   claims.Subject,
		ExpiresAt: jwt.NewNumericDate(time.Unix(claims.ExpiresAt, 0)),
	}
	if claims.IssuedAt != 0 {
		registered.IssuedAt = jwt.NewNumericDate(time.Unix(claims.IssuedAt, 0))
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, registered).SignedString(s.keys.bytes())
	if err != nil {
		return "", NewError(KindTokenCreation, err, "operation", "sign token", "subject", claims.Subject)
	}
	return token, nil
}

// Verify checks the signature, algorithm and expiry of token.
// Every failure is KindInvalidToken.
func (s *TokenService) Verify(token string) (Claims, error) {
	if token == "" {
		return Claims{}, NewError(KindInvalidToken, nil, "reason", "empty token")
	}

	var registered jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(token, &registered,
		func(*jwt.Token) (any, error) { return s.keys.bytes(), nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return Claims{}, NewError(KindInvalidToken, err, "operation", "parse token")
	}

	if registered.Subject == "" {
		return Claims{}, NewError(KindInvalidToken, nil, "reason", "missing subject")
	}

	claims := Claims{
		Subject:   registered.Subject,
		ExpiresAt: registered.ExpiresAt.Unix(),
	}
	if registered.IssuedAt != nil {
		claims.IssuedAt = registered.IssuedAt.Unix()
	}
	return claims, nil
}

var _ TokenVerifier = (*TokenService)(nil)

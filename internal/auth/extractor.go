// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Chatgate Contributors

package auth

import (
	"context"
	"strings"

	"github.com/samber/oops"
)

// ExtractBearer returns the token from an Authorization header value.
// The scheme must be "Bearer" (any case) followed by exactly one token.
func ExtractBearer(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", NewError(KindInvalidToken, nil, "reason", "missing authorization header")
	}

	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, TokenType) {
		return "", NewError(KindInvalidToken, nil, "reason", "unsupported authorization scheme")
	}

	token = strings.TrimSpace(token)
	if token == "" || strings.ContainsAny(token, " \t") {
		return "", NewError(KindInvalidToken, nil, "reason", "malformed bearer token")
	}
	return token, nil
}

// Extractor turns request credentials into verified claims.
// Only the Authorization header is consulted.
type Extractor struct {
	tokens TokenVerifier
}

// NewExtractor creates an Extractor backed by tokens.
func NewExtractor(tokens TokenVerifier) (*Extractor, error) {
	if tokens == nil {
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("token verifier is required")
	}
	return &Extractor{tokens: tokens}, nil
}

// Authenticate verifies the bearer token carried in header.
func (e *Extractor) Authenticate(header string) (Claims, error) {
	token, err := ExtractBearer(header)
	if err != nil {
		return Claims{}, err
	}
	return e.tokens.Verify(token)
}

type claimsKey struct{}

// WithClaims returns a context carrying verified claims.
func WithClaims(ctx context.Context, claims Claims) context.Context {
	return context.WithValue(ctx, claimsKey{}, claims)
}

// ClaimsFromContext returns the claims stored by WithClaims.
func ClaimsFromContext(ctx context.Context) (Claims, bool) {
	claims, ok := ctx.Value(claimsKey{}).(Claims)
	return claims, ok
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Chatgate Contributors

package auth

import (
	"log/slog"

	"github.com/samber/oops"
)

// RecommendedKeyLength is the minimum secret length for HS256 that does not
// trigger a startup warning.
const RecommendedKeyLength = 32

// ErrEmptyKey is returned when the signing secret is missing.
var ErrEmptyKey = oops.Code("AUTH_EMPTY_KEY").Errorf("signing secret cannot be empty")

// KeyMaterial holds the token signing secret. It is built once at startup,
// never mutated, and safe to share between goroutines.
type KeyMaterial struct {
	secret []byte
}

// NewKeyMaterial copies secret into a new KeyMaterial.
func NewKeyMaterial(secret []byte) (*KeyMaterial, error) {
	if len(secret) == 0 {
		return nil, ErrEmptyKey
	}
	buf := make([]byte, len(secret))
	copy(buf, secret)
	return &KeyMaterial{secret: buf}, nil
}

// Len returns the secret length in bytes.
func (k *KeyMaterial) Len() int {
	return len(k.secret)
}

// Weak reports whether the secret is shorter than RecommendedKeyLength.
func (k *KeyMaterial) Weak() bool {
	return len(k.secret) < RecommendedKeyLength
}

// String never reveals the secret.
func (k *KeyMaterial) String() string {
	return "[REDACTED]"
}

// LogValue keeps the secret out of structured logs.
func (k *KeyMaterial) LogValue() slog.Value {
	return slog.GroupValue(slog.Int("length", len(k.secret)))
}

func (k *KeyMaterial) bytes() []byte {
	return k.secret
}

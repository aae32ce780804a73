// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Chatgate Contributors

package auth

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/samber/oops"
	"golang.org/x/crypto/argon2"
	"golang.org/x/sync/semaphore"
)

// OWASP-recommended argon2id parameters.
const (
	DefaultHashIterations  = 1         // iterations
	DefaultHashMemory      = 64 * 1024 // 64 MiB, expressed in KiB
	DefaultHashParallelism = 4         // threads
	DefaultHashSaltLength  = 16        // bytes
	DefaultHashKeyLength   = 32        // bytes
)

// DefaultHashTimeout bounds a single hash or verify, including queueing.
const DefaultHashTimeout = 10 * time.Second

// HashParams are the argon2id cost parameters used when producing new hashes.
// Verification always uses the parameters encoded in the stored hash.
type HashParams struct {
	Memory      uint32 `koanf:"memory_kib"`
	Iterations  uint32 `koanf:"iterations"`
	Parallelism uint8  `koanf:"parallelism"`
	SaltLength  uint32 `koanf:"salt_length"`
	KeyLength   uint32 `koanf:"key_length"`
}

// DefaultHashParams returns the OWASP-recommended parameters.
func DefaultHashParams() HashParams {
	return HashParams{
		Memory:      DefaultHashMemory,
		Iterations:  DefaultHashIterations,
		Parallelism: DefaultHashParallelism,
		SaltLength:  DefaultHashSaltLength,
		KeyLength:   DefaultHashKeyLength,
	}
}

// Validate rejects parameter sets argon2 cannot use.
func (p HashParams) Validate() error {
	switch {
	case p.Memory == 0:
		return oops.Code("AUTH_INVALID_HASH_PARAMS").Errorf("memory must be positive")
	case p.Iterations == 0:
		return oops.Code("AUTH_INVALID_HASH_PARAMS").Errorf("iterations must be positive")
	case p.Parallelism == 0:
		return oops.Code("AUTH_INVALID_HASH_PARAMS").Errorf("parallelism must be positive")
	case p.SaltLength < 8:
		return oops.Code("AUTH_INVALID_HASH_PARAMS").
			With("salt_length", p.SaltLength).
			Errorf("salt length must be at least 8 bytes")
	case p.KeyLength < 16:
		return oops.Code("AUTH_INVALID_HASH_PARAMS").
			With("key_length", p.KeyLength).
			Errorf("key length must be at least 16 bytes")
	}
	return nil
}

// PasswordHasher provides password hashing and verification.
type PasswordHasher interface {
	// Hash produces an argon2id hash of the password.
	Hash(ctx context.Context, password string) (string, error)

	// Verify checks if the password matches the hash.
	// Returns (true, nil) on match, (false, nil) on mismatch, or error on invalid hash.
	Verify(ctx context.Context, password, hash string) (bool, error)
}

// HashObserver receives the wall time of each completed hash or verify.
// op is "hash" or "verify".
type HashObserver func(op string, d time.Duration)

// HasherOption configures an Argon2idHasher.
type HasherOption func(*Argon2idHasher)

// WithMaxConcurrent caps the number of hashes computed at once.
func WithMaxConcurrent(n int) HasherOption {
	return func(h *Argon2idHasher) {
		if n > 0 {
			h.maxConcurrent = int64(n)
		}
	}
}

// WithHashTimeout bounds each operation. Zero disables the bound.
func WithHashTimeout(d time.Duration) HasherOption {
	return func(h *Argon2idHasher) {
		h.timeout = d
	}
}

// WithHashObserver registers a callback for operation timings.
func WithHashObserver(fn HashObserver) HasherOption {
	return func(h *Argon2idHasher) {
		h.observe = fn
	}
}

// Argon2idHasher implements PasswordHasher using argon2id.
//
// Key derivation runs on a separate goroutine gated by a weighted semaphore,
// so at most maxConcurrent derivations are in flight and callers stop
// waiting once their context or the configured timeout expires.
type Argon2idHasher struct {
	params        HashParams
	maxConcurrent int64
	timeout       time.Duration
	sem           *semaphore.Weighted
	observe       HashObserver
}

// NewArgon2idHasher creates a new Argon2idHasher.
func NewArgon2idHasher(params HashParams, opts ...HasherOption) (*Argon2idHasher, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	h := &Argon2idHasher{
		params:        params,
		maxConcurrent: int64(runtime.GOMAXPROCS(0)),
		timeout:       DefaultHashTimeout,
	}
	for _, opt := range opts {
		opt(h)
	}
	h.sem = semaphore.NewWeighted(h.maxConcurrent)

	return h, nil
}

// Params returns the parameters used for new hashes.
func (h *Argon2idHasher) Params() HashParams {
	return h.params
}

// Hash produces an argon2id hash of the password.
func (h *Argon2idHasher) Hash(ctx context.Context, password string) (string, error) {
	if password == "" {
		return "", NewError(KindPasswordHash, nil, "reason", "empty password")
	}

	salt := make([]byte, h.params.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", NewError(KindPasswordHash, err, "operation", "generate salt")
	}

	var key []byte
	err := h.offload(ctx, "hash", func() {
		key = argon2.IDKey([]byte(password), salt, h.params.Iterations, h.params.Memory, h.params.Parallelism, h.params.KeyLength)
	})
	if err != nil {
		return "", err
	}

	return encodeHash(h.params.Memory, h.params.Iterations, h.params.Parallelism, salt, key), nil
}

// Verify checks if the password matches the hash.
func (h *Argon2idHasher) Verify(ctx context.Context, password, encodedHash string) (bool, error) {
	decoded, err := decodeHash(encodedHash)
	if err != nil {
		return false, err
	}

	var computed []byte
	err = h.offload(ctx, "verify", func() {
		computed = argon2.IDKey([]byte(password), decoded.salt, decoded.iterations, decoded.memory, decoded.threads, uint32(len(decoded.key)))
	})
	if err != nil {
		return false, err
	}

	return subtle.ConstantTimeCompare(computed, decoded.key) == 1, nil
}

// DummyHash returns a well-formed hash with this hasher's parameters that no
// password matches. Verifying against it costs the same as a real verify.
func (h *Argon2idHasher) DummyHash() string {
	return encodeHash(
		h.params.Memory,
		h.params.Iterations,
		h.params.Parallelism,
		make([]byte, h.params.SaltLength),
		make([]byte, h.params.KeyLength),
	)
}

// offload runs fn on its own goroutine once a semaphore slot is free.
func (h *Argon2idHasher) offload(ctx context.Context, op string, fn func()) error {
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	if err := h.sem.Acquire(ctx, 1); err != nil {
		return NewError(KindPasswordHash, err, "operation", op, "stage", "queue")
	}

	start := time.Now()
	done := make(chan struct{})
	go func() {
		defer h.sem.Release(1)
		defer close(done)
		fn()
	}()

	select {
	case <-done:
		if h.observe != nil {
			h.observe(op, time.Since(start))
		}
		return nil
	case <-ctx.Done():
		return NewError(KindPasswordHash, ctx.Err(), "operation", op, "stage", "compute")
	}
}

// encodeHash renders the PHC string form:
// $argon2id$v=19$m=65536,t=1,p=4$<salt>$<hash>
func encodeHash(memory, iterations uint32, threads uint8, salt, key []byte) string {
	return fmt.Sprintf(
		"$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		memory,
		iterations,
		threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	)
}

type decodedHash struct {
	memory     uint32
	iterations uint32
	threads    uint8
	salt       []byte
	key        []byte
}

func decodeHash(encodedHash string) (decodedHash, error) {
	invalid := func(cause error, format string, args ...any) (decodedHash, error) {
		if cause == nil {
			cause = fmt.Errorf(format, args...)
		}
		return decodedHash{}, NewError(KindPasswordHash, cause, "operation", "decode hash")
	}

	parts := strings.Split(encodedHash, "$")
	if len(parts) != 6 {
		return invalid(nil, "invalid hash format")
	}

	if parts[1] != "argon2id" {
		return invalid(nil, "unsupported hash algorithm: %s", parts[1])
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return invalid(err, "")
	}
	if version != argon2.Version {
		return invalid(nil, "unsupported argon2 version: %d", version)
	}

	var memory, iterations, threads uint32
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &iterations, &threads); err != nil {
		return invalid(err, "")
	}

	// threads must fit in uint8 to prevent silent truncation
	if threads == 0 || threads > 255 {
		return invalid(nil, "threads value %d out of range", threads)
	}
	if memory == 0 || iterations == 0 {
		return invalid(nil, "cost parameters must be positive")
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return invalid(err, "")
	}

	key, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return invalid(err, "")
	}

	// guard the uint32 conversion passed to argon2
	if len(key) == 0 || len(key) > 1<<30 {
		return invalid(nil, "invalid hash key length: %d", len(key))
	}

	return decodedHash{
		memory:     memory,
		iterations: iterations,
		threads:    uint8(threads),
		salt:       salt,
		key:        key,
	}, nil
}

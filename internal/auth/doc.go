// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Chatgate Contributors

// Package auth provides authentication primitives for chatgate.
//
// # Domain Types
//
// Credential records should be created with NewCredential, which assigns an
// ID and validates the identity and hash. CredentialStore implementations
// receive pre-validated records and are responsible for enforcing identity
// uniqueness at the storage layer.
//
// # Tokens
//
// KeyMaterial holds the signing secret and is built once at startup.
// TokenService issues and verifies HS256 tokens carrying Claims. Extractor
// turns an Authorization header into verified Claims; there is no fallback
// to cookies or query parameters.
//
// # Errors
//
// Every failure that reaches a client carries exactly one Kind. Use
// NewError to create one and KindOf to recover it. Mapping kinds to
// transport status codes is left to the transport layer.
//
// # Services
//
// Service coordinates registration and login. It is created with
// NewService, which validates its dependencies.
package auth

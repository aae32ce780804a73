// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Chatgate Contributors

package errutil_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/samber/oops"

	"github.com/chatgate/chatgate/internal/auth"
	"github.com/chatgate/chatgate/pkg/errutil"
)

func TestAssertErrorCode_MatchingCode(t *testing.T) {
	err := oops.Code("AUTH_INVALID_TOKEN").Errorf("token expired")
	errutil.AssertErrorCode(t, err, "AUTH_INVALID_TOKEN")
}

func TestAssertErrorCode_SurvivesOuterWrap(t *testing.T) {
	inner := oops.Code("DB_CONNECT_FAILED").Errorf("dial tcp")
	errutil.AssertErrorCode(t, oops.With("operation", "serve").Wrap(inner), "DB_CONNECT_FAILED")
	errutil.AssertErrorCode(t, fmt.Errorf("startup: %w", inner), "DB_CONNECT_FAILED")
}

func TestAssertErrorKind(t *testing.T) {
	for _, kind := range auth.Kinds() {
		t.Run(kind.String(), func(t *testing.T) {
			err := auth.NewError(kind, errors.New("cause"), "operation", "test")
			errutil.AssertErrorKind(t, err, kind)
		})
	}
}

func TestAssertErrorContext_MatchingKeyValue(t *testing.T) {
	err := oops.With("identity", "alice@example.com").Errorf("lookup failed")
	errutil.AssertErrorContext(t, err, "identity", "alice@example.com")
}

func TestAssertNotExposed(t *testing.T) {
	err := auth.NewError(auth.KindDatabaseError, errors.New("connection refused"),
		"operation", "insert credential",
		"credential_id", "01JABCDEF",
		"attempt", 3)
	errutil.AssertNotExposed(t, `{"error":"Database error"}`, err)
}

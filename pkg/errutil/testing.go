// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Chatgate Contributors

package errutil

import (
	"fmt"
	"testing"

	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Coder is a failure classification backed by an oops code. auth.Kind
// implements it.
type Coder interface {
	Code() string
}

// AssertErrorCode asserts that err is an oops error whose code is code.
// On mismatch the error's context is printed alongside.
func AssertErrorCode(t *testing.T, err error, code string) {
	t.Helper()
	oopsErr, ok := oops.AsOops(err)
	require.True(t, ok, "expected oops error, got %T: %v", err, err)
	assert.Equal(t, code, oopsErr.Code(), "context: %v", oopsErr.Context())
}

// AssertErrorKind asserts that err is classified as kind.
func AssertErrorKind(t *testing.T, err error, kind Coder) {
	t.Helper()
	require.Error(t, err, "expected a %s failure", kind.Code())
	AssertErrorCode(t, err, kind.Code())
}

// AssertErrorContext asserts that err carries key with the given value.
func AssertErrorContext(t *testing.T, err error, key string, value any) {
	t.Helper()
	oopsErr, ok := oops.AsOops(err)
	require.True(t, ok, "expected oops error, got %T: %v", err, err)
	ctx := oopsErr.Context()
	require.Contains(t, ctx, key)
	assert.Equal(t, value, ctx[key])
}

// AssertNotExposed asserts that body, as sent to a client, contains none of
// the string context values recorded on err.
func AssertNotExposed(t *testing.T, body string, err error) {
	t.Helper()
	oopsErr, ok := oops.AsOops(err)
	require.True(t, ok, "expected oops error, got %T: %v", err, err)
	for key, value := range oopsErr.Context() {
		s, ok := value.(string)
		if !ok || s == "" {
			continue
		}
		assert.NotContains(t, body, s, fmt.Sprintf("context %q leaked", key))
	}
}

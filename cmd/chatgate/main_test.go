// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Chatgate Contributors

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatgate/chatgate/internal/auth"
	"github.com/chatgate/chatgate/internal/config"
	"github.com/chatgate/chatgate/pkg/errutil"
)

// isolate gives the test its own XDG home and a SQLite database.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "config"))
	t.Setenv("JWT_SECRET", "0123456789abcdef0123456789abcdef")
	t.Setenv("DATABASE_URL", "sqlite://"+filepath.Join(dir, "data", "chatgate.db"))
	// Keep argon2 cheap.
	t.Setenv("CHATGATE_HASH__MEMORY_KIB", "64")
	t.Setenv("CHATGATE_HASH__PARALLELISM", "1")
	return dir
}

func execute(t *testing.T, cmdArgs []string, stdin string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(cmdArgs)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestRootCmd_Subcommands(t *testing.T) {
	cmd := NewRootCmd()

	var names []string
	for _, sub := range cmd.Commands() {
		names = append(names, sub.Name())
	}
	assert.ElementsMatch(t, []string{"serve", "migrate", "hash"}, names)

	for _, flag := range []string{"config", "database-url", "log-format", "log-level"} {
		assert.NotNil(t, cmd.PersistentFlags().Lookup(flag), "missing --%s", flag)
	}
}

type served struct {
	api     string
	metrics string
}

func startServe(t *testing.T, deps *ServeDeps, args ...string) (served, <-chan error, context.CancelFunc) {
	t.Helper()
	if deps == nil {
		deps = &ServeDeps{}
	}
	ready := make(chan served, 1)
	deps.OnListening = func(api, metrics string) { ready <- served{api, metrics} }

	cmd := newRootCmd(deps)
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(append([]string{"serve", "--listen", "127.0.0.1:0", "--metrics-addr", "127.0.0.1:0"}, args...))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- cmd.ExecuteContext(ctx) }()

	select {
	case s := <-ready:
		return s, done, cancel
	case err := <-done:
		cancel()
		t.Fatalf("serve exited early: %v", err)
	case <-time.After(10 * time.Second):
		cancel()
		t.Fatal("serve did not start")
	}
	return served{}, nil, cancel
}

func post(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func TestServe_EndToEnd(t *testing.T) {
	isolate(t)
	s, done, cancel := startServe(t, nil)
	defer cancel()

	creds := `{"email":"alice@example.com","password":"hunter2"}`

	resp := post(t, "http://"+s.api+"/register", creds)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = post(t, "http://"+s.api+"/authorize", creds)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var body struct {
		AccessToken string `json:"access_token"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))

	req, err := http.NewRequest(http.MethodGet, "http://"+s.api+"/check", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+body.AccessToken)
	checkResp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = checkResp.Body.Close() }()
	text, err := io.ReadAll(checkResp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, checkResp.StatusCode)
	assert.Contains(t, string(text), "Email: alice@example.com")

	readiness, err := http.Get("http://" + s.metrics + "/healthz/readiness")
	require.NoError(t, err)
	_ = readiness.Body.Close()
	assert.Equal(t, http.StatusOK, readiness.StatusCode)

	metrics, err := http.Get("http://" + s.metrics + "/metrics")
	require.NoError(t, err)
	defer func() { _ = metrics.Body.Close() }()
	metricsBody, err := io.ReadAll(metrics.Body)
	require.NoError(t, err)
	assert.Contains(t, string(metricsBody), "chatgate_tokens_issued_total 1")
	assert.Contains(t, string(metricsBody), `chatgate_password_hash_seconds_count{op="hash"} 1`)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(15 * time.Second):
		t.Fatal("serve did not shut down")
	}
}

func TestServe_MetricsDisabled(t *testing.T) {
	isolate(t)
	t.Setenv("CHATGATE_METRICS__ENABLED", "false")

	s, done, cancel := startServe(t, nil)
	assert.Empty(t, s.metrics)

	cancel()
	assert.NoError(t, <-done)
}

func TestServe_StartupFailures(t *testing.T) {
	t.Run("missing secret", func(t *testing.T) {
		isolate(t)
		t.Setenv("JWT_SECRET", "")

		_, err := execute(t, []string{"serve"}, "")
		errutil.AssertErrorCode(t, err, "CONFIG_INVALID")
	})

	t.Run("missing database url", func(t *testing.T) {
		isolate(t)
		t.Setenv("DATABASE_URL", "")

		_, err := execute(t, []string{"serve"}, "")
		errutil.AssertErrorCode(t, err, "CONFIG_INVALID")
	})

	t.Run("unsupported database scheme", func(t *testing.T) {
		isolate(t)

		_, err := execute(t, []string{"serve", "--database-url", "mysql://localhost/chat"}, "")
		errutil.AssertErrorCode(t, err, "DB_URL_INVALID")
	})

	t.Run("store unreachable", func(t *testing.T) {
		isolate(t)
		deps := &ServeDeps{
			StoreOpener: func(context.Context, config.DatabaseConfig, *slog.Logger) (auth.CredentialStore, func(), error) {
				return nil, nil, errors.New("connection refused")
			},
		}
		cmd := newRootCmd(deps)
		cmd.SetOut(io.Discard)
		cmd.SetErr(io.Discard)
		cmd.SetArgs([]string{"serve", "--listen", "127.0.0.1:0"})

		err := cmd.ExecuteContext(context.Background())
		require.Error(t, err)
		errutil.AssertErrorContext(t, err, "operation", "open credential store")
	})
}

func TestHashCmd(t *testing.T) {
	cheap := []string{"--memory-kib", "64", "--iterations", "1", "--parallelism", "1"}

	out, err := execute(t, append([]string{"hash"}, cheap...), "hunter2\n")
	require.NoError(t, err)
	hash := strings.TrimSpace(out)
	assert.True(t, strings.HasPrefix(hash, "$argon2id$v=19$m=64,t=1,p=1$"), hash)

	out, err = execute(t, append([]string{"hash", "--verify", hash}, cheap...), "hunter2\r\n")
	require.NoError(t, err)
	assert.Equal(t, "ok\n", out)

	_, err = execute(t, append([]string{"hash", "--verify", hash}, cheap...), "wrong\n")
	errutil.AssertErrorCode(t, err, "AUTH_WRONG_CREDENTIALS")

	_, err = execute(t, []string{"hash"}, "")
	errutil.AssertErrorCode(t, err, "INVALID_INPUT")
}

func TestMigrateCmd_SQLite(t *testing.T) {
	isolate(t)
	t.Setenv("JWT_SECRET", "")

	out, err := execute(t, []string{"migrate", "up"}, "")
	require.NoError(t, err)
	assert.Contains(t, out, "Schema is up to date")

	_, err = execute(t, []string{"migrate", "down"}, "")
	errutil.AssertErrorCode(t, err, "MIGRATE_UNSUPPORTED")

	_, err = execute(t, []string{"migrate", "steps", "zero"}, "")
	errutil.AssertErrorCode(t, err, "INVALID_ARGUMENT")
}

func TestReadPassword(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "hunter2\n", want: "hunter2"},
		{in: "hunter2\r\n", want: "hunter2"},
		{in: "no newline", want: "no newline"},
		{in: "first\nsecond\n", want: "first"},
		{in: "  spaced  \n", want: "  spaced  "},
		{in: "\n", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := readPassword(strings.NewReader(tt.in))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Chatgate Contributors

package store

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatgate/chatgate/pkg/errutil"
)

func TestParseURL(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		driver  Driver
		dsn     string
		errCode string
	}{
		{"postgres", "postgres://u:p@db/chat", DriverPostgres, "postgres://u:p@db/chat", ""},
		{"postgresql", "postgresql://db/chat", DriverPostgres, "postgresql://db/chat", ""},
		{"sqlite path", "sqlite:///var/lib/chatgate.db", DriverSQLite, "/var/lib/chatgate.db", ""},
		{"sqlite relative", "sqlite://chatgate.db", DriverSQLite, "chatgate.db", ""},
		{"file url", "file:chatgate.db?_pragma=busy_timeout(5000)", DriverSQLite, "file:chatgate.db?_pragma=busy_timeout(5000)", ""},
		{"empty", "", "", "", "DB_URL_MISSING"},
		{"mysql", "mysql://db/chat", "", "", "DB_URL_INVALID"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			driver, dsn, err := ParseURL(tt.url)
			if tt.errCode != "" {
				require.Error(t, err)
				errutil.AssertErrorCode(t, err, tt.errCode)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.driver, driver)
			assert.Equal(t, tt.dsn, dsn)
		})
	}
}

func TestParseURL_BareSQLiteUsesDataDir(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", "/srv/data")

	driver, dsn, err := ParseURL("sqlite://")
	require.NoError(t, err)
	assert.Equal(t, DriverSQLite, driver)
	assert.Equal(t, filepath.Join("/srv/data", "chatgate", DefaultSQLiteFile), dsn)
}

func TestOpenPool_InvalidURL(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	_, err := OpenPool(context.Background(), "postgres://%zz", DefaultPoolConfig(), logger)
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "DB_URL_INVALID")
}

func TestOpenPool_UnreachableFailsAfterRetries(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := PoolConfig{PingTimeout: 200 * time.Millisecond, ConnectRetries: 1}

	_, err := OpenPool(context.Background(), "postgres://u:p@127.0.0.1:1/chat?connect_timeout=1", cfg, logger)
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "DB_UNREACHABLE")
	errutil.AssertErrorContext(t, err, "attempts", 2)
}

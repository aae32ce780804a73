// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Chatgate Contributors

// Package config loads chatgate configuration from defaults, a YAML file,
// the environment and command-line flags, in that order of precedence.
package config

import (
	"errors"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/chatgate/chatgate/internal/auth"
	"github.com/chatgate/chatgate/internal/xdg"
)

// EnvPrefix namespaces environment overrides. CHATGATE_HTTP__ADDR sets http.addr.
const EnvPrefix = "CHATGATE_"

// Config is the complete runtime configuration.
type Config struct {
	HTTP     HTTPConfig     `koanf:"http"`
	Metrics  MetricsConfig  `koanf:"metrics"`
	Database DatabaseConfig `koanf:"database"`
	Token    TokenConfig    `koanf:"token"`
	Hash     HashConfig     `koanf:"hash"`
	Auth     AuthConfig     `koanf:"auth"`
	Log      LogConfig      `koanf:"log"`
}

// HTTPConfig configures the public API listener.
type HTTPConfig struct {
	Addr            string        `koanf:"addr"`
	AllowedOrigins  []string      `koanf:"allowed_origins"`
	CookieEnabled   bool          `koanf:"cookie_enabled"`
	CookieSecure    bool          `koanf:"cookie_secure"`
	RateLimit       float64       `koanf:"rate_limit"`
	RateBurst       int           `koanf:"rate_burst"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// MetricsConfig configures the observability listener.
type MetricsConfig struct {
	Enabled bool   `koanf:"enabled"`
	Addr    string `koanf:"addr"`
}

// DatabaseConfig configures the credential store.
type DatabaseConfig struct {
	URL            string        `koanf:"url"`
	MaxConns       int32         `koanf:"max_conns"`
	QueryTimeout   time.Duration `koanf:"query_timeout"`
	ConnectRetries uint64        `koanf:"connect_retries"`
	AutoMigrate    bool          `koanf:"auto_migrate"`
}

// TokenConfig configures token issuance.
type TokenConfig struct {
	Secret string        `koanf:"secret"`
	TTL    time.Duration `koanf:"ttl"`
}

// HashConfig configures password hashing.
type HashConfig struct {
	auth.HashParams `koanf:",squash"`
	MaxConcurrent   int           `koanf:"max_concurrent"`
	Timeout         time.Duration `koanf:"timeout"`
}

// AuthConfig toggles registration behaviour.
type AuthConfig struct {
	RegistrationPrecheck bool `koanf:"registration_precheck"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Format string `koanf:"format"`
	Level  string `koanf:"level"`
}

// defaults mirrors the behaviour of a bare deployment: listen on loopback
// port 3001, accept the local web client origin, 24h tokens.
func defaults() map[string]any {
	params := auth.DefaultHashParams()
	return map[string]any{
		"http.addr":             "127.0.0.1:3001",
		"http.allowed_origins":  []string{"http://localhost:3000"},
		"http.cookie_enabled":   true,
		"http.cookie_secure":    true,
		"http.rate_limit":       5.0,
		"http.rate_burst":       10,
		"http.read_timeout":     10 * time.Second,
		"http.write_timeout":    30 * time.Second,
		"http.shutdown_timeout": 10 * time.Second,

		"metrics.enabled": true,
		"metrics.addr":    "127.0.0.1:9101",

		"database.url":             "",
		"database.max_conns":       10,
		"database.query_timeout":   5 * time.Second,
		"database.connect_retries": 5,
		"database.auto_migrate":    true,

		"token.secret": "",
		"token.ttl":    auth.DefaultTokenTTL,

		"hash.memory_kib":     params.Memory,
		"hash.iterations":     params.Iterations,
		"hash.parallelism":    params.Parallelism,
		"hash.salt_length":    params.SaltLength,
		"hash.key_length":     params.KeyLength,
		"hash.max_concurrent": 0,
		"hash.timeout":        auth.DefaultHashTimeout,

		"auth.registration_precheck": true,

		"log.format": "json",
		"log.level":  "info",
	}
}

// flagKeys maps command-line flag names to config keys.
var flagKeys = map[string]string{
	"listen":       "http.addr",
	"metrics-addr": "metrics.addr",
	"database-url": "database.url",
	"log-format":   "log.format",
	"log-level":    "log.level",
	"token-ttl":    "token.ttl",
}

// Options controls where Load reads from.
type Options struct {
	// File is an explicit config path. It must exist when set. When empty,
	// the XDG config file is used if present.
	File string
	// Flags, when set, overrides other sources for every flag the user
	// changed. Flags named in flagKeys are recognised.
	Flags *pflag.FlagSet
	// DatabaseOnly validates only the database section, for commands that
	// never issue tokens or listen.
	DatabaseOnly bool
}

// Load builds and validates a Config.
func Load(opts Options) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", "defaults").Wrap(err)
	}

	path, err := configPath(opts.File)
	if err != nil {
		return nil, err
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").
				With("source", "file").
				With("path", path).
				Wrap(err)
		}
	}

	if err := k.Load(env.ProviderWithValue("", ".", envKey), nil); err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", "env").Wrap(err)
	}

	if opts.Flags != nil {
		provider := posflag.ProviderWithFlag(opts.Flags, ".", k, func(f *pflag.Flag) (string, any) {
			key, ok := flagKeys[f.Name]
			if !ok {
				return "", nil
			}
			return key, posflag.FlagVal(opts.Flags, f)
		})
		if err := k.Load(provider, nil); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", "flags").Wrap(err)
		}
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").With("operation", "unmarshal").Wrap(err)
	}

	validate := cfg.Validate
	if opts.DatabaseOnly {
		validate = cfg.ValidateDatabase
	}
	if err := validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func configPath(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", oops.Code("CONFIG_FILE_NOT_FOUND").With("path", explicit).Wrap(err)
		}
		return explicit, nil
	}

	def, err := xdg.ConfigFile()
	if err != nil {
		// No home directory: run on defaults and environment alone.
		return "", nil //nolint:nilerr // optional file
	}
	if _, err := os.Stat(def); errors.Is(err, fs.ErrNotExist) {
		return "", nil
	} else if err != nil {
		return "", oops.Code("CONFIG_FILE_NOT_FOUND").With("path", def).Wrap(err)
	}
	return def, nil
}

// envKey maps JWT_SECRET, DATABASE_URL and CHATGATE_* variables to config
// keys; everything else in the environment is ignored.
func envKey(key, value string) (string, any) {
	switch key {
	case "JWT_SECRET":
		return "token.secret", value
	case "DATABASE_URL":
		return "database.url", value
	}

	rest, ok := strings.CutPrefix(key, EnvPrefix)
	if !ok || rest == "" {
		return "", nil
	}
	return strings.ToLower(strings.ReplaceAll(rest, "__", ".")), value
}

// Validate checks required settings and ranges.
func (c *Config) Validate() error {
	invalid := func(field, format string, args ...any) error {
		return oops.Code("CONFIG_INVALID").With("field", field).Errorf(format, args...)
	}

	if c.Token.Secret == "" {
		return invalid("token.secret", "JWT_SECRET must be set")
	}
	if c.Token.TTL <= 0 {
		return invalid("token.ttl", "token ttl must be positive")
	}
	if err := c.ValidateDatabase(); err != nil {
		return err
	}
	if c.HTTP.Addr == "" {
		return invalid("http.addr", "listen address is required")
	}
	if c.HTTP.RateLimit < 0 || c.HTTP.RateBurst < 0 {
		return invalid("http.rate_limit", "rate limit settings must not be negative")
	}
	if c.HTTP.RateLimit > 0 && c.HTTP.RateBurst == 0 {
		return invalid("http.rate_burst", "rate burst must be positive when rate limiting is enabled")
	}
	if c.Metrics.Enabled && c.Metrics.Addr == "" {
		return invalid("metrics.addr", "metrics address is required when metrics are enabled")
	}
	if c.Hash.MaxConcurrent < 0 {
		return invalid("hash.max_concurrent", "max concurrent hashes must not be negative")
	}
	if err := c.Hash.HashParams.Validate(); err != nil {
		// Not wrapped: the outer code must stay CONFIG_INVALID.
		return invalid("hash", "invalid hash parameters: %v", err)
	}
	switch c.Log.Format {
	case "json", "text":
	default:
		return invalid("log.format", "log format must be json or text, got %q", c.Log.Format)
	}
	if _, err := c.LogLevel(); err != nil {
		return invalid("log.level", "unknown log level %q", c.Log.Level)
	}
	return nil
}

// ValidateDatabase checks the database section alone.
func (c *Config) ValidateDatabase() error {
	invalid := func(field, msg string) error {
		return oops.Code("CONFIG_INVALID").With("field", field).Errorf("%s", msg)
	}

	if c.Database.URL == "" {
		return invalid("database.url", "DATABASE_URL must be set")
	}
	if c.Database.QueryTimeout <= 0 {
		return invalid("database.query_timeout", "query timeout must be positive")
	}
	if c.Database.MaxConns <= 0 {
		return invalid("database.max_conns", "max connections must be positive")
	}
	return nil
}

// LogLevel parses Log.Level.
func (c *Config) LogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return slog.LevelInfo, oops.Code("CONFIG_INVALID").With("field", "log.level").Wrap(err)
	}
	return level, nil
}

// LogValue renders the config for logs with secrets removed.
func (c *Config) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("http_addr", c.HTTP.Addr),
		slog.Any("allowed_origins", c.HTTP.AllowedOrigins),
		slog.Bool("cookie_enabled", c.HTTP.CookieEnabled),
		slog.Bool("metrics_enabled", c.Metrics.Enabled),
		slog.String("metrics_addr", c.Metrics.Addr),
		slog.String("database_url", redactURL(c.Database.URL)),
		slog.Duration("token_ttl", c.Token.TTL),
		slog.Int("token_secret_len", len(c.Token.Secret)),
		slog.Uint64("hash_memory_kib", uint64(c.Hash.Memory)),
		slog.Uint64("hash_iterations", uint64(c.Hash.Iterations)),
		slog.String("log_level", c.Log.Level),
	)
}

func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "[unparseable]"
	}
	return u.Redacted()
}

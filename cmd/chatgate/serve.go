// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Chatgate Contributors

package main

import (
	"context"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/oops"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/chatgate/chatgate/internal/auth"
	"github.com/chatgate/chatgate/internal/config"
	"github.com/chatgate/chatgate/internal/observability"
	"github.com/chatgate/chatgate/internal/web"
	"github.com/chatgate/chatgate/pkg/errutil"
)

// ServeDeps contains injectable dependencies for the serve command.
// All fields with nil values use their default implementations.
type ServeDeps struct {
	// StoreOpener opens the credential store named by the config.
	// Default: openStore
	StoreOpener func(ctx context.Context, cfg config.DatabaseConfig, logger *slog.Logger) (auth.CredentialStore, func(), error)

	// OnListening is called with the bound API and metrics addresses once
	// both listeners are up. The metrics address is empty when disabled.
	OnListening func(apiAddr, metricsAddr string)
}

// NewServeCmd creates the serve subcommand.
func NewServeCmd(configPath func() string, deps *ServeDeps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the authentication HTTP server",
		Long: `Start the HTTP API (/register, /authorize, /check) and the
observability endpoints. JWT_SECRET and DATABASE_URL must be set.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, configPath(), deps)
		},
	}

	cmd.Flags().String("listen", "127.0.0.1:3001", "API listen address")
	cmd.Flags().String("metrics-addr", "127.0.0.1:9101", "metrics/health listen address")
	cmd.Flags().Duration("token-ttl", auth.DefaultTokenTTL, "access token lifetime")

	return cmd
}

func runServe(cmd *cobra.Command, configFile string, deps *ServeDeps) error {
	if deps == nil {
		deps = &ServeDeps{}
	}
	if deps.StoreOpener == nil {
		deps.StoreOpener = openStore
	}

	cfg, logger, err := loadConfig(cmd, configFile, false)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	logger.InfoContext(ctx, "starting chatgate", "config", cfg)

	keys, err := auth.NewKeyMaterial([]byte(cfg.Token.Secret))
	if err != nil {
		return oops.With("operation", "load signing key").Wrap(err)
	}
	if keys.Weak() {
		logger.WarnContext(ctx, "JWT_SECRET is shorter than recommended",
			"length", keys.Len(),
			"recommended", auth.RecommendedKeyLength)
	}

	credentials, closeStore, err := deps.StoreOpener(ctx, cfg.Database, logger)
	if err != nil {
		errutil.LogError(ctx, logger, "credential store unavailable", err)
		return oops.With("operation", "open credential store").Wrap(err)
	}
	defer closeStore()

	var (
		obs     *observability.Server
		metrics *observability.Metrics
	)
	if cfg.Metrics.Enabled {
		obs = observability.NewServer(cfg.Metrics.Addr, credentials.Ping, logger)
		metrics = obs.Metrics()
	} else {
		metrics = observability.NewMetrics(prometheus.NewRegistry())
	}

	hasher, err := auth.NewArgon2idHasher(cfg.Hash.HashParams,
		auth.WithMaxConcurrent(cfg.Hash.MaxConcurrent),
		auth.WithHashTimeout(cfg.Hash.Timeout),
		auth.WithHashObserver(metrics.ObserveHash),
	)
	if err != nil {
		return err
	}

	tokens, err := auth.NewTokenService(keys, cfg.Token.TTL)
	if err != nil {
		return err
	}

	var svcOpts []auth.ServiceOption
	if !cfg.Auth.RegistrationPrecheck {
		svcOpts = append(svcOpts, auth.WithoutExistsPrecheck())
	}
	svc, err := auth.NewService(credentials, hasher, tokens, logger.With("component", "auth"), svcOpts...)
	if err != nil {
		return err
	}

	extractor, err := auth.NewExtractor(tokens)
	if err != nil {
		return err
	}

	app, err := web.New(web.Config{
		CookieEnabled:  cfg.HTTP.CookieEnabled,
		CookieSecure:   cfg.HTTP.CookieSecure,
		AllowedOrigins: cfg.HTTP.AllowedOrigins,
		RateLimit:      cfg.HTTP.RateLimit,
		RateBurst:      cfg.HTTP.RateBurst,
	}, svc, extractor, metrics, logger.With("component", "web"))
	if err != nil {
		return err
	}

	grp, gctx := errgroup.WithContext(ctx)

	listener, err := web.Listen(gctx, cfg.HTTP.Addr)
	if err != nil {
		return err
	}

	metricsAddr := ""
	var obsErrs <-chan error
	if obs != nil {
		obsErrs, err = obs.Start()
		if err != nil {
			_ = listener.Close()
			return oops.With("operation", "start observability server").Wrap(err)
		}
		metricsAddr = obs.Addr()
	}

	web.Serve(gctx, grp, app.Server, listener, web.Timeouts{
		ReadHeader: web.DefaultTimeouts().ReadHeader,
		Read:       cfg.HTTP.ReadTimeout,
		Write:      cfg.HTTP.WriteTimeout,
		Shutdown:   cfg.HTTP.ShutdownTimeout,
	})

	if obs != nil {
		grp.Go(func() error {
			select {
			case err, ok := <-obsErrs:
				if ok && err != nil {
					return oops.Code("SERVE_FAILED").With("server", "observability").Wrap(err)
				}
				return nil
			case <-gctx.Done():
				shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), cfg.HTTP.ShutdownTimeout)
				defer cancel()
				return obs.Stop(shutdownCtx)
			}
		})
	}

	logger.InfoContext(ctx, "chatgate listening",
		"addr", listener.Addr().String(),
		"metrics_addr", metricsAddr)
	if deps.OnListening != nil {
		deps.OnListening(listener.Addr().String(), metricsAddr)
	}

	if err := grp.Wait(); err != nil {
		errutil.LogError(ctx, logger, "server failed", err)
		return err
	}
	logger.InfoContext(ctx, "chatgate stopped")
	return nil
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Chatgate Contributors

// Package web exposes the authentication service over HTTP.
package web

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
	"golang.org/x/time/rate"

	"github.com/chatgate/chatgate/internal/logging"
	"github.com/chatgate/chatgate/internal/observability"
)

// Config controls the public HTTP surface.
type Config struct {
	// CookieEnabled sets the auth_token cookie on successful login in
	// addition to returning the token in the body.
	CookieEnabled bool
	CookieSecure  bool
	// AllowedOrigins lists the CORS origins allowed to call the API with
	// credentials.
	AllowedOrigins []string
	// RateLimit is the sustained per-client-IP request rate on the
	// credential endpoints. Zero disables rate limiting.
	RateLimit float64
	RateBurst int
	// BodyLimit caps request bodies, e.g. "16K".
	BodyLimit string
}

// DefaultConfig returns the settings of a bare deployment.
func DefaultConfig() Config {
	return Config{
		CookieEnabled:  true,
		CookieSecure:   true,
		AllowedOrigins: []string{"http://localhost:3000"},
		RateLimit:      5,
		RateBurst:      10,
		BodyLimit:      "16K",
	}
}

// New builds the HTTP application.
func New(
	cfg Config,
	svc Authenticator,
	tokens TokenAuthenticator,
	metrics *observability.Metrics,
	logger *slog.Logger,
) (*echo.Echo, error) {
	switch {
	case svc == nil:
		return nil, oops.Code("WEB_INVALID_CONFIG").Errorf("authenticator is required")
	case tokens == nil:
		return nil, oops.Code("WEB_INVALID_CONFIG").Errorf("token authenticator is required")
	case metrics == nil:
		return nil, oops.Code("WEB_INVALID_CONFIG").Errorf("metrics are required")
	case logger == nil:
		return nil, oops.Code("WEB_INVALID_CONFIG").Errorf("logger is required")
	}
	if cfg.BodyLimit == "" {
		cfg.BodyLimit = DefaultConfig().BodyLimit
	}

	srv := echo.New()
	srv.HideBanner = true
	srv.HidePort = true
	srv.Logger.SetLevel(log.OFF)
	srv.HTTPErrorHandler = errorHandler(logger, metrics)

	srv.Use(
		middleware.RequestIDWithConfig(middleware.RequestIDConfig{
			Generator: func() string { return ulid.Make().String() },
			RequestIDHandler: func(c echo.Context, id string) {
				req := c.Request()
				c.SetRequest(req.WithContext(logging.WithRequestID(req.Context(), id)))
			},
		}),
		observeRequests(logger, metrics),
		middleware.Recover(),
		middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins:     cfg.AllowedOrigins,
			AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
			AllowHeaders:     []string{echo.HeaderContentType, echo.HeaderAuthorization},
			AllowCredentials: true,
		}),
		middleware.Secure(),
		middleware.BodyLimit(cfg.BodyLimit),
	)

	h := handler{svc: svc, cfg: cfg, metrics: metrics}

	var credentialMW []echo.MiddlewareFunc
	if cfg.RateLimit > 0 {
		credentialMW = append(credentialMW, rateLimit(cfg.RateLimit, cfg.RateBurst, metrics))
	}
	srv.POST("/register", h.register, credentialMW...)
	srv.POST("/authorize", h.authorize, credentialMW...)
	srv.GET("/check", Guard(tokens, h.check))

	return srv, nil
}

// rateLimit limits requests per client IP. One store is shared by every
// route it is attached to.
func rateLimit(perSecond float64, burst int, metrics *observability.Metrics) echo.MiddlewareFunc {
	store := middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
		Rate:      rate.Limit(perSecond),
		Burst:     burst,
		ExpiresIn: 3 * time.Minute,
	})
	return middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Store: store,
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return c.RealIP(), nil
		},
		DenyHandler: func(c echo.Context, _ string, _ error) error {
			metrics.RateLimitedTotal.WithLabelValues(c.Path()).Inc()
			return echo.NewHTTPError(http.StatusTooManyRequests, "Too many requests")
		},
		ErrorHandler: func(_ echo.Context, err error) error {
			return echo.NewHTTPError(http.StatusForbidden, "Forbidden").SetInternal(err)
		},
	})
}

// observeRequests logs and counts every request once its response,
// including any error response, has been written.
func observeRequests(logger *slog.Logger, metrics *observability.Metrics) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}
			latency := time.Since(start)

			req := c.Request()
			res := c.Response()
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			metrics.ObserveRequest(route, req.Method, res.Status, latency)

			logger.LogAttrs(
				req.Context(),
				slog.LevelInfo,
				"request handled",
				slog.String("method", req.Method),
				slog.String("route", route),
				slog.String("remote_ip", c.RealIP()),
				slog.Duration("latency", latency),
				slog.Int("status", res.Status),
			)
			return nil
		}
	}
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Chatgate Contributors

package web

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/chatgate/chatgate/internal/auth"
	"github.com/chatgate/chatgate/internal/observability"
	"github.com/chatgate/chatgate/pkg/errutil"
)

// errorResponse is the body of every failed request.
type errorResponse struct {
	Error string `json:"error"`
}

type errorMapping struct {
	status  int
	message string
}

// kindResponses is the only place auth error kinds become HTTP responses.
var kindResponses = map[auth.Kind]errorMapping{
	auth.KindWrongCredentials:   {http.StatusUnauthorized, "Wrong credentials"},
	auth.KindMissingCredentials: {http.StatusBadRequest, "Missing credentials"},
	auth.KindInvalidToken:       {http.StatusUnauthorized, "Invalid token"},
	auth.KindTokenCreation:      {http.StatusInternalServerError, "Token creation error"},
	auth.KindUserAlreadyExists:  {http.StatusConflict, "User already exists"},
	auth.KindDatabaseError:      {http.StatusInternalServerError, "Database error"},
	auth.KindPasswordHash:       {http.StatusInternalServerError, "Password processing error"},
}

var internalError = errorMapping{http.StatusInternalServerError, "Internal server error"}

// responseFor maps err to the status and public message sent to clients.
func responseFor(err error) errorMapping {
	if m, ok := kindResponses[auth.KindOf(err)]; ok {
		return m
	}

	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		msg := http.StatusText(httpErr.Code)
		if s, ok := httpErr.Message.(string); ok && s != "" {
			msg = s
		}
		return errorMapping{httpErr.Code, msg}
	}
	return internalError
}

// errorHandler renders errors as {"error": message}. Server-side failures
// are logged with their oops context; the cause never reaches the client.
func errorHandler(logger *slog.Logger, metrics *observability.Metrics) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		m := responseFor(err)
		ctx := c.Request().Context()

		if kind := auth.KindOf(err); kind != auth.KindUnknown {
			metrics.RecordAuthFailure(kind.String())
		}

		switch {
		case m.status >= http.StatusInternalServerError:
			errutil.LogError(ctx, logger, "request failed", err)
		default:
			logger.DebugContext(ctx, "request rejected", errutil.Attrs(err)...)
		}

		var writeErr error
		if c.Request().Method == http.MethodHead {
			writeErr = c.NoContent(m.status)
		} else {
			writeErr = c.JSON(m.status, errorResponse{Error: m.message})
		}
		if writeErr != nil {
			logger.WarnContext(ctx, "failed to write error response", "error", writeErr)
		}
	}
}

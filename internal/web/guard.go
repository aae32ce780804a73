// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Chatgate Contributors

package web

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/chatgate/chatgate/internal/auth"
)

// TokenAuthenticator verifies an Authorization header value.
type TokenAuthenticator interface {
	Authenticate(header string) (auth.Claims, error)
}

// ProtectedHandler handles a request whose bearer token has been verified.
// It cannot be routed without Guard, so it never runs unauthenticated.
type ProtectedHandler func(c echo.Context, claims auth.Claims) error

// Guard verifies the bearer token before calling h. Requests without a
// valid token fail with an InvalidToken error and h is not called.
func Guard(tokens TokenAuthenticator, h ProtectedHandler) echo.HandlerFunc {
	return func(c echo.Context) error {
		req := c.Request()
		claims, err := tokens.Authenticate(req.Header.Get(echo.HeaderAuthorization))
		if err != nil {
			return err
		}
		c.SetRequest(req.WithContext(auth.WithClaims(req.Context(), claims)))
		return h(c, claims)
	}
}

// authCookie carries the access token for browser clients. It lives exactly
// as long as the token.
func authCookie(token string, claims auth.Claims, secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(claims.ExpiresAt - claims.IssuedAt),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
}

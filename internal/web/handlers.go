// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Chatgate Contributors

package web

import (
	"context"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/chatgate/chatgate/internal/auth"
	"github.com/chatgate/chatgate/internal/observability"
)

// CookieName is the cookie set on successful login when cookies are enabled.
const CookieName = "auth_token"

// Authenticator registers identities and exchanges credentials for tokens.
type Authenticator interface {
	Register(ctx context.Context, identity, password string) (*auth.Credential, error)
	Login(ctx context.Context, identity, password string) (auth.IssuedToken, error)
}

// credentialsRequest is the body of /register and /authorize.
type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type authorizeResponse struct {
	Status      string `json:"status"`
	Message     string `json:"message"`
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresAt   int64  `json:"expires_at"`
}

type handler struct {
	svc     Authenticator
	cfg     Config
	metrics *observability.Metrics
}

// bindCredentials decodes the JSON body. Any decode failure is reported as
// missing credentials.
func bindCredentials(c echo.Context) (credentialsRequest, error) {
	var req credentialsRequest
	if err := c.Echo().JSONSerializer.Deserialize(c, &req); err != nil {
		return credentialsRequest{}, auth.NewError(auth.KindMissingCredentials, err, "reason", "malformed body")
	}
	return req, nil
}

func (h handler) register(c echo.Context) error {
	req, err := bindCredentials(c)
	if err != nil {
		return err
	}

	if _, err := h.svc.Register(c.Request().Context(), req.Email, req.Password); err != nil {
		return err
	}
	h.metrics.Registrations.Inc()
	return c.JSON(http.StatusOK, messageResponse{Message: "User registered successfully"})
}

func (h handler) authorize(c echo.Context) error {
	req, err := bindCredentials(c)
	if err != nil {
		return err
	}

	issued, err := h.svc.Login(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return err
	}
	h.metrics.TokensIssued.Inc()

	if h.cfg.CookieEnabled {
		c.SetCookie(authCookie(issued.Token, issued.Claims, h.cfg.CookieSecure))
	}
	return c.JSON(http.StatusOK, authorizeResponse{
		Status:      "success",
		Message:     "Authentication successful",
		AccessToken: issued.Token,
		TokenType:   auth.TokenType,
		ExpiresAt:   issued.Claims.ExpiresAt,
	})
}

func (h handler) check(c echo.Context, claims auth.Claims) error {
	return c.String(http.StatusOK,
		fmt.Sprintf("Welcome to the protected area :)\nYour data:\nEmail: %s", claims.Subject))
}

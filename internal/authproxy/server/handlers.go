package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
	"unicode/utf8"

	"github.com/smolib/backend/supabase"

	"github.com/labstack/echo/v4"
)

const minPasswordLength = 8

// AuthClient is the slice of the provider's auth API the proxy uses: one
// method per proxied operation. Implemented by *supabase.Client; tests
// substitute a scripted implementation.
type AuthClient interface {
	SignUp(ctx context.Context, email, password string, metadata map[string]any) (*supabase.AuthResponse, error)
	SignInWithPassword(ctx context.Context, email, password string) (*supabase.AuthResponse, error)
	RefreshSession(ctx context.Context, refreshToken string) (*supabase.AuthResponse, error)
	GetUser(ctx context.Context, accessToken string) (json.RawMessage, error)
	SignOut(ctx context.Context, accessToken string, scope supabase.SignOutScope) error
}

type signUpRequest struct {
	Email    string         `json:"email"`
	Password string         `json:"password"`
	Metadata map[string]any `json:"metadata"`
}

type signInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type signOutRequest struct {
	Scope string `json:"scope"`
}

// POST /auth/sign-up
func (s *Server) handleSignUp(c echo.Context) error {
	var req signUpRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Email == "" || req.Password == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "email and password are required")
	}
	if utf8.RuneCountInString(req.Password) < minPasswordLength {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("password must be at least %d characters", minPasswordLength))
	}

	start := time.Now()
	res, err := s.newClient().SignUp(c.Request().Context(), req.Email, req.Password, req.Metadata)
	recordProviderCall("sign_up", start, err)
	if err != nil {
		return mapAuthError(err)
	}
	return c.JSON(http.StatusOK, newAuthResultView(res))
}

// POST /auth/sign-in
func (s *Server) handleSignIn(c echo.Context) error {
	var req signInRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Email == "" || req.Password == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "email and password are required")
	}

	start := time.Now()
	res, err := s.newClient().SignInWithPassword(c.Request().Context(), req.Email, req.Password)
	recordProviderCall("sign_in", start, err)
	if err != nil {
		return mapAuthError(err)
	}
	return c.JSON(http.StatusOK, newAuthResultView(res))
}

// POST /auth/refresh
func (s *Server) handleRefresh(c echo.Context) error {
	var req refreshRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.RefreshToken == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "refresh_token is required")
	}

	start := time.Now()
	res, err := s.newClient().RefreshSession(c.Request().Context(), req.RefreshToken)
	recordProviderCall("refresh", start, err)
	if err != nil {
		return mapAuthError(err)
	}
	return c.JSON(http.StatusOK, newAuthResultView(res))
}

// GET /auth/me
func (s *Server) handleGetUser(c echo.Context) error {
	token, err := bearerToken(c.Request())
	if err != nil {
		return err
	}

	start := time.Now()
	user, err := s.newClient().GetUser(c.Request().Context(), token)
	recordProviderCall("get_user", start, err)
	if err != nil {
		return mapAuthError(err)
	}
	// Expired or revoked tokens can come back as a structurally fine
	// response with no user record.
	if len(user) == 0 {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid or expired token")
	}
	return c.JSON(http.StatusOK, userView{User: user})
}

// POST /auth/sign-out
func (s *Server) handleSignOut(c echo.Context) error {
	token, err := bearerToken(c.Request())
	if err != nil {
		return err
	}

	// No body at all means a global sign-out. A supplied body's scope is
	// validated; an omitted scope field falls back to global as well.
	scope := supabase.SignOutGlobal
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "reading request body")
	}
	if len(bytes.TrimSpace(body)) > 0 {
		var req signOutRequest
		if err := json.Unmarshal(body, &req); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
		}
		if req.Scope != "" {
			scope, err = parseSignOutScope(req.Scope)
			if err != nil {
				return echo.NewHTTPError(http.StatusBadRequest, err.Error())
			}
		}
	}

	start := time.Now()
	err = s.newClient().SignOut(c.Request().Context(), token, scope)
	recordProviderCall("sign_out", start, err)
	if err != nil {
		return mapAuthError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

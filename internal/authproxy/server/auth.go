package server

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// bearerToken extracts the access token from the Authorization header. A
// missing or malformed header is rejected here, before any provider call,
// as an unauthenticated failure.
func bearerToken(req *http.Request) (string, error) {
	authheader := req.Header.Get(echo.HeaderAuthorization)
	if authheader == "" {
		return "", echo.NewHTTPError(http.StatusUnauthorized, "missing Authorization header")
	}

	parts := strings.SplitN(authheader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", echo.NewHTTPError(http.StatusUnauthorized, "Authorization header must use the Bearer scheme")
	}

	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", echo.NewHTTPError(http.StatusUnauthorized, "empty bearer token")
	}
	return token, nil
}

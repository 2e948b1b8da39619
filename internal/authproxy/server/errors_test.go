package server

import (
	"errors"
	"net/http"
	"testing"

	"github.com/smolib/backend/supabase"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
)

func TestMapAuthErrorAPIError(t *testing.T) {
	err := mapAuthError(&supabase.Error{
		StatusCode: http.StatusUnprocessableEntity,
		Message:    "Signup requires a valid password",
	})

	var he *echo.HTTPError
	require.ErrorAs(t, err, &he)
	require.Equal(t, http.StatusUnprocessableEntity, he.Code)
	require.Equal(t, "Signup requires a valid password", he.Message)
}

func TestMapAuthErrorAPIErrorNoMessage(t *testing.T) {
	err := mapAuthError(&supabase.Error{StatusCode: http.StatusTooManyRequests})

	var he *echo.HTTPError
	require.ErrorAs(t, err, &he)
	require.Equal(t, http.StatusTooManyRequests, he.Code)
	require.Equal(t, http.StatusText(http.StatusTooManyRequests), he.Message)
}

func TestMapAuthErrorGeneric(t *testing.T) {
	err := mapAuthError(errors.New("decoding auth response: unexpected EOF"))

	var he *echo.HTTPError
	require.ErrorAs(t, err, &he)
	require.Equal(t, http.StatusBadRequest, he.Code)
	require.Equal(t, "decoding auth response: unexpected EOF", he.Message)
}

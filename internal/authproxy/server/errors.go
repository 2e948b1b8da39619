package server

import (
	"errors"
	"net/http"

	"github.com/smolib/backend/supabase"

	"github.com/labstack/echo/v4"
)

// mapAuthError is the single crossing point from provider errors to
// transport errors. Provider API errors keep their upstream status and
// message unmodified; anything else (transport failures, unparseable
// responses) becomes a 400 with the error text.
func mapAuthError(err error) error {
	var apiErr *supabase.Error
	if errors.As(err, &apiErr) {
		msg := apiErr.Message
		if msg == "" {
			msg = http.StatusText(apiErr.StatusCode)
		}
		return echo.NewHTTPError(apiErr.StatusCode, msg)
	}
	return echo.NewHTTPError(http.StatusBadRequest, err.Error())
}

package supabase

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Error is returned for any request the provider explicitly rejected. It
// preserves the upstream HTTP status and human-readable message so callers
// can surface them unmodified. Failures to reach or parse the provider are
// returned as plain errors instead.
type Error struct {
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("auth API error %d", e.StatusCode)
	}
	return fmt.Sprintf("auth API error %d: %s", e.StatusCode, e.Message)
}

// errorBody covers the message key variants GoTrue has used across
// versions. The first non-empty field wins.
type errorBody struct {
	Msg       string `json:"msg"`
	Message   string `json:"message"`
	ErrorDesc string `json:"error_description"`
	ErrStr    string `json:"error"`
}

func (eb *errorBody) text() string {
	for _, s := range []string{eb.Msg, eb.Message, eb.ErrorDesc, eb.ErrStr} {
		if s != "" {
			return s
		}
	}
	return ""
}

func errorFromResponse(resp *http.Response) error {
	e := &Error{StatusCode: resp.StatusCode}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		e.Message = resp.Status
		return e
	}

	var eb errorBody
	if err := json.Unmarshal(body, &eb); err == nil {
		if msg := eb.text(); msg != "" {
			e.Message = msg
			return e
		}
	}

	e.Message = strings.TrimSpace(string(body))
	if e.Message == "" {
		e.Message = resp.Status
	}
	return e
}

package server

import (
	"encoding/json"
	"fmt"

	"github.com/smolib/backend/supabase"
)

// authResultView is the wire shape for successful sign-up, sign-in, and
// refresh responses. Both fields serialize as null when absent; the user
// record is passed through verbatim, while the session carries exactly the
// five fields of supabase.Session.
type authResultView struct {
	User    json.RawMessage   `json:"user"`
	Session *supabase.Session `json:"session"`
}

type userView struct {
	User json.RawMessage `json:"user"`
}

func newAuthResultView(res *supabase.AuthResponse) authResultView {
	if res == nil {
		return authResultView{}
	}
	return authResultView{
		User:    res.User,
		Session: res.Session,
	}
}

func parseSignOutScope(s string) (supabase.SignOutScope, error) {
	switch scope := supabase.SignOutScope(s); scope {
	case supabase.SignOutGlobal, supabase.SignOutLocal, supabase.SignOutOthers:
		return scope, nil
	default:
		return "", fmt.Errorf("invalid sign-out scope: %q", s)
	}
}

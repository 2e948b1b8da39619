// Package supabase is a minimal client for the Supabase (GoTrue) auth REST
// API. It covers only the operations the proxy forwards: account creation,
// password sign-in, session refresh, user lookup, and sign-out. The client
// holds no session state and never refreshes tokens on its own; every request
// is independently authenticated.
package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/carlmjohnson/versioninfo"
)

// SignOutScope selects which of the account's sessions a sign-out
// invalidates.
type SignOutScope string

const (
	SignOutGlobal SignOutScope = "global"
	SignOutLocal  SignOutScope = "local"
	SignOutOthers SignOutScope = "others"
)

// Session is the subset of the GoTrue session object exposed to callers.
// Anything else the provider includes in a session is dropped at decode
// time.
type Session struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	ExpiresAt    int64  `json:"expires_at"`
	TokenType    string `json:"token_type"`
}

// AuthResponse is the outcome of a successful auth operation. User is the
// provider's user record verbatim. Either field may be nil: sign-ups that
// require email confirmation return a user with no session, and some
// responses carry a session with no embedded user.
type AuthResponse struct {
	User    json.RawMessage
	Session *Session
}

type Client struct {
	// Client is an HTTP client to use. If not set, defaults to a shared
	// client with a 20s timeout and no retries.
	Client    *http.Client
	Host      string
	Key       string
	UserAgent *string
}

var defaultClient = &http.Client{
	Timeout: 20 * time.Second,
	Transport: &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	},
}

func (c *Client) getClient() *http.Client {
	if c.Client == nil {
		return defaultClient
	}
	return c.Client
}

// do issues a single request against the auth endpoint and returns the raw
// response body. The API key rides along both as the apikey header and as a
// bearer Authorization header; accessToken, when non-empty, replaces the
// latter for operations acting on a user's own session.
func (c *Client) do(ctx context.Context, method, path string, params url.Values, bodyobj any, accessToken string) ([]byte, error) {
	var body io.Reader
	if bodyobj != nil {
		b, err := json.Marshal(bodyobj)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(b)
	}

	uri := strings.TrimSuffix(c.Host, "/") + "/auth/v1/" + path
	if len(params) > 0 {
		uri += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, uri, body)
	if err != nil {
		return nil, err
	}

	if bodyobj != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.UserAgent != nil {
		req.Header.Set("User-Agent", *c.UserAgent)
	} else {
		req.Header.Set("User-Agent", "authproxy/"+versioninfo.Short())
	}
	req.Header.Set("apikey", c.Key)
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	} else {
		req.Header.Set("Authorization", "Bearer "+c.Key)
	}

	resp, err := c.getClient().Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, errorFromResponse(resp)
	}

	out, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}
	return out, nil
}

// authPayload mirrors the two body shapes GoTrue returns on success: a
// session object with an embedded user, or (for sign-ups pending email
// confirmation) a bare user record with no access token.
type authPayload struct {
	AccessToken  string          `json:"access_token"`
	TokenType    string          `json:"token_type"`
	ExpiresIn    int64           `json:"expires_in"`
	ExpiresAt    int64           `json:"expires_at"`
	RefreshToken string          `json:"refresh_token"`
	User         json.RawMessage `json:"user"`
}

func decodeAuthResponse(body []byte) (*AuthResponse, error) {
	var p authPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("decoding auth response: %w", err)
	}

	if p.AccessToken == "" {
		trimmed := bytes.TrimSpace(body)
		if emptyRecord(trimmed) {
			return &AuthResponse{}, nil
		}
		return &AuthResponse{User: json.RawMessage(trimmed)}, nil
	}

	res := &AuthResponse{
		Session: &Session{
			AccessToken:  p.AccessToken,
			RefreshToken: p.RefreshToken,
			ExpiresIn:    p.ExpiresIn,
			ExpiresAt:    p.ExpiresAt,
			TokenType:    p.TokenType,
		},
	}
	if !emptyRecord(bytes.TrimSpace(p.User)) {
		res.User = p.User
	}
	return res, nil
}

func emptyRecord(trimmed []byte) bool {
	return len(trimmed) == 0 ||
		bytes.Equal(trimmed, []byte("null")) ||
		bytes.Equal(trimmed, []byte("{}"))
}

// SignUp registers a new account. Metadata, when non-nil, is stored as the
// account's user metadata.
func (c *Client) SignUp(ctx context.Context, email, password string, metadata map[string]any) (*AuthResponse, error) {
	body := map[string]any{
		"email":    email,
		"password": password,
	}
	if metadata != nil {
		body["data"] = metadata
	}

	raw, err := c.do(ctx, http.MethodPost, "signup", nil, body, "")
	if err != nil {
		return nil, err
	}
	return decodeAuthResponse(raw)
}

// SignInWithPassword authenticates with email and password and returns a
// fresh session.
func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*AuthResponse, error) {
	params := url.Values{"grant_type": []string{"password"}}
	body := map[string]string{
		"email":    email,
		"password": password,
	}

	raw, err := c.do(ctx, http.MethodPost, "token", params, body, "")
	if err != nil {
		return nil, err
	}
	return decodeAuthResponse(raw)
}

// RefreshSession exchanges a refresh token for a new session.
func (c *Client) RefreshSession(ctx context.Context, refreshToken string) (*AuthResponse, error) {
	params := url.Values{"grant_type": []string{"refresh_token"}}
	body := map[string]string{"refresh_token": refreshToken}

	raw, err := c.do(ctx, http.MethodPost, "token", params, body, "")
	if err != nil {
		return nil, err
	}
	return decodeAuthResponse(raw)
}

// GetUser fetches the user record for the given access token. Expired or
// revoked tokens can surface as a 200 with an empty record, so a nil result
// with a nil error means "no authenticated user" and callers must treat it
// as such.
func (c *Client) GetUser(ctx context.Context, accessToken string) (json.RawMessage, error) {
	raw, err := c.do(ctx, http.MethodGet, "user", nil, nil, accessToken)
	if err != nil {
		return nil, err
	}

	trimmed := bytes.TrimSpace(raw)
	if emptyRecord(trimmed) {
		return nil, nil
	}
	return json.RawMessage(trimmed), nil
}

// SignOut invalidates the token holder's session(s) per the given scope.
func (c *Client) SignOut(ctx context.Context, accessToken string, scope SignOutScope) error {
	params := url.Values{}
	if scope != "" {
		params.Set("scope", string(scope))
	}

	_, err := c.do(ctx, http.MethodPost, "logout", params, nil, accessToken)
	return err
}

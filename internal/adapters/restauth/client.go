package restauth

// Package restauth is the HTTP client for the remote conference
// registration backend's auth surface.

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/congresoumg/portal-gateway/internal/ports"
)

// defaultSessionDuration bounds a session when the backend response
// carries no expiry of its own.
const defaultSessionDuration = 8 * time.Hour

// Config controls the backend client.
type Config struct {
	// BaseURL is the backend base URL, e.g. "https://api.congreso.umg.edu.gt".
	BaseURL string
	// Timeout applies per request. Defaults to 10s when zero.
	Timeout time.Duration
	// SessionDuration is the local session lifetime when the backend
	// response has no expires_at field.
	SessionDuration time.Duration
}

// Client implements ports.BackendClient against the REST backend:
// POST /login, GET /session, POST /logout.
type Client struct {
	baseURL         string
	http            *http.Client
	sessionDuration time.Duration
}

var _ ports.BackendClient = (*Client)(nil)

// NewClient constructs a backend client from Config.
func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("restauth: BaseURL is required")
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	dur := cfg.SessionDuration
	if dur == 0 {
		dur = defaultSessionDuration
	}
	return &Client{
		baseURL:         strings.TrimRight(cfg.BaseURL, "/"),
		http:            &http.Client{Timeout: timeout},
		sessionDuration: dur,
	}, nil
}

// loginResponse is the wire shape of a successful POST /login.
type loginResponse struct {
	Token     string         `json:"token"`
	Profile   map[string]any `json:"profile"`
	ExpiresAt *time.Time     `json:"expires_at,omitempty"`
}

// errorResponse is the backend's machine-readable error body.
type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// LoginError carries the backend's user-displayable login failure.
// Credential rejections unwrap to ports.ErrBackendUnauthorized so
// callers can match them with errors.Is.
type LoginError struct {
	Code    string
	Message string
	err     error
}

func (e *LoginError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "login failed"
}

func (e *LoginError) Unwrap() error { return e.err }

func (c *Client) Login(ctx context.Context, email, password string) (ports.LoginResult, error) {
	body, err := json.Marshal(map[string]string{"email": email, "password": password})
	if err != nil {
		return ports.LoginResult{}, fmt.Errorf("marshal login request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/login", bytes.NewReader(body))
	if err != nil {
		return ports.LoginResult{}, fmt.Errorf("build login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return ports.LoginResult{}, fmt.Errorf("login request: %w", err)
	}
	defer drainAndClose(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return ports.LoginResult{}, loginErrorFrom(resp)
	}

	var lr loginResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return ports.LoginResult{}, fmt.Errorf("decode login response: %w", err)
	}
	if lr.Token == "" {
		return ports.LoginResult{}, errors.New("login response missing token")
	}

	expires := time.Now().Add(c.sessionDuration)
	if lr.ExpiresAt != nil && lr.ExpiresAt.After(time.Now()) {
		expires = *lr.ExpiresAt
	}
	return ports.LoginResult{Token: lr.Token, Payload: lr.Profile, ExpiresAt: expires}, nil
}

func (c *Client) FetchProfile(ctx context.Context, token string) (map[string]any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/session", nil)
	if err != nil {
		return nil, fmt.Errorf("build session request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("session request: %w", err)
	}
	defer drainAndClose(resp.Body)

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, ports.ErrBackendUnauthorized
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("session request: unexpected status %d", resp.StatusCode)
	}

	var payload map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode session response: %w", err)
	}
	return payload, nil
}

func (c *Client) Logout(ctx context.Context, token string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/logout", nil)
	if err != nil {
		return fmt.Errorf("build logout request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("logout request: %w", err)
	}
	defer drainAndClose(resp.Body)

	if resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("logout request: unexpected status %d", resp.StatusCode)
	}
	return nil
}

// loginErrorFrom extracts the backend's machine-readable error when
// present, falling back to a generic message by status.
func loginErrorFrom(resp *http.Response) error {
	le := &LoginError{
		Code:    "backend_error",
		Message: fmt.Sprintf("login failed with status %d", resp.StatusCode),
	}
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusBadRequest {
		le.Code = "invalid_credentials"
		le.Message = "invalid email or password"
		le.err = ports.ErrBackendUnauthorized
	}

	var er errorResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&er); err == nil && er.Message != "" {
		le.Message = er.Message
		if er.Error != "" {
			le.Code = er.Error
		}
	}
	return le
}

// drainAndClose reads the remainder of a response body so the underlying
// connection can be reused, then closes it.
func drainAndClose(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, io.LimitReader(body, 1<<16))
	_ = body.Close()
}

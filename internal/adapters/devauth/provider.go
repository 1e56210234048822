package devauth

// Package devauth provides a simple, config-driven backend client for
// local development. It short-circuits the remote REST backend with a
// single configured identity: any password matching DEV_AUTH_PASSWORD
// logs the configured user in.

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/congresoumg/portal-gateway/internal/ports"
)

// Config controls the dev backend behavior.
type Config struct {
	UserID          string
	Email           string
	Password        string
	RoleLevel       int
	SessionDuration time.Duration // default 8h when zero
}

// Backend implements ports.BackendClient for local development.
// Tokens it issues are random strings tracked in memory, so logout and
// token revalidation behave like the real backend.
type Backend struct {
	cfg Config

	mu     sync.Mutex
	tokens map[string]time.Time // token -> expiry
}

var _ ports.BackendClient = (*Backend)(nil)

// NewBackend constructs a dev backend from Config.
func NewBackend(cfg Config) (*Backend, error) {
	if cfg.UserID == "" {
		return nil, errors.New("dev auth: UserID is required")
	}
	if cfg.Email == "" {
		return nil, errors.New("dev auth: Email is required")
	}
	if cfg.SessionDuration == 0 {
		cfg.SessionDuration = 8 * time.Hour
	}
	return &Backend{cfg: cfg, tokens: map[string]time.Time{}}, nil
}

func (b *Backend) Login(_ context.Context, email, password string) (ports.LoginResult, error) {
	if !strings.EqualFold(email, b.cfg.Email) || (b.cfg.Password != "" && password != b.cfg.Password) {
		return ports.LoginResult{}, ports.ErrBackendUnauthorized
	}

	token, err := randomToken(32)
	if err != nil {
		return ports.LoginResult{}, fmt.Errorf("generate token: %w", err)
	}
	expires := time.Now().Add(b.cfg.SessionDuration)

	b.mu.Lock()
	b.tokens[token] = expires
	b.mu.Unlock()

	return ports.LoginResult{Token: token, Payload: b.payload(), ExpiresAt: expires}, nil
}

func (b *Backend) FetchProfile(_ context.Context, token string) (map[string]any, error) {
	b.mu.Lock()
	expires, ok := b.tokens[token]
	if ok && time.Now().After(expires) {
		delete(b.tokens, token)
		ok = false
	}
	b.mu.Unlock()

	if !ok {
		return nil, ports.ErrBackendUnauthorized
	}
	return b.payload(), nil
}

func (b *Backend) Logout(_ context.Context, token string) error {
	b.mu.Lock()
	delete(b.tokens, token)
	b.mu.Unlock()
	return nil
}

// payload mirrors the real backend's documented profile shape so the
// default claims-mapper expressions apply unchanged.
func (b *Backend) payload() map[string]any {
	return map[string]any{
		"id":         b.cfg.UserID,
		"email":      b.cfg.Email,
		"role_level": float64(b.cfg.RoleLevel),
	}
}

func randomToken(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

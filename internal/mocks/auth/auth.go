package auth

// Package auth contains simple hand-written test doubles for auth ports.
// These are lightweight and suitable for unit tests without codegen.

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	domainauth "github.com/congresoumg/portal-gateway/internal/domain/auth"
	"github.com/congresoumg/portal-gateway/internal/ports"
)

// Ensure compile-time conformance to ports.
var (
	_ ports.BackendClient = (*MockBackendClient)(nil)
	_ ports.SessionStore  = (*MemorySessionStore)(nil)
	_ ports.ClaimsMapper  = (*MockClaimsMapper)(nil)
	_ ports.SSOProvider   = (*MockSSOProvider)(nil)
	_ ports.AuditRecorder = (*MemoryAuditRecorder)(nil)
)

// MockBackendClient simulates the remote auth backend for tests with
// deterministic token and payload handling.
type MockBackendClient struct {
	LoginFunc        func(ctx context.Context, email, password string) (ports.LoginResult, error)
	FetchProfileFunc func(ctx context.Context, token string) (map[string]any, error)
	LogoutFunc       func(ctx context.Context, token string) error

	// Deterministic values used when no override func is set.
	Token   string
	Payload map[string]any

	// Call counters for asserting interaction patterns.
	mu            sync.Mutex
	LoginCalls    int
	FetchCalls    int
	LogoutCalls   int
	LoggedOutWith []string
}

// NewMockBackendClient creates a MockBackendClient with sensible defaults.
func NewMockBackendClient() *MockBackendClient {
	return &MockBackendClient{
		Token: "backend-token-1",
		Payload: map[string]any{
			"id":         "user-1",
			"email":      "alumno@miumg.edu.gt",
			"role_level": float64(0),
		},
	}
}

func (m *MockBackendClient) Login(ctx context.Context, email, password string) (ports.LoginResult, error) {
	m.mu.Lock()
	m.LoginCalls++
	m.mu.Unlock()

	if m.LoginFunc != nil {
		return m.LoginFunc(ctx, email, password)
	}
	return ports.LoginResult{
		Token:     m.Token,
		Payload:   m.Payload,
		ExpiresAt: time.Now().Add(time.Hour),
	}, nil
}

func (m *MockBackendClient) FetchProfile(ctx context.Context, token string) (map[string]any, error) {
	m.mu.Lock()
	m.FetchCalls++
	m.mu.Unlock()

	if m.FetchProfileFunc != nil {
		return m.FetchProfileFunc(ctx, token)
	}
	if token != m.Token {
		return nil, ports.ErrBackendUnauthorized
	}
	return m.Payload, nil
}

func (m *MockBackendClient) Logout(ctx context.Context, token string) error {
	m.mu.Lock()
	m.LogoutCalls++
	m.LoggedOutWith = append(m.LoggedOutWith, token)
	m.mu.Unlock()

	if m.LogoutFunc != nil {
		return m.LogoutFunc(ctx, token)
	}
	return nil
}

// MemorySessionStore is an in-memory session store for unit tests.
type MemorySessionStore struct {
	mu       sync.Mutex
	sessions map[string]domainauth.Session
}

// NewMemorySessionStore creates a new in-memory session store.
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{
		sessions: make(map[string]domainauth.Session),
	}
}

func (m *MemorySessionStore) Save(_ context.Context, sess domainauth.Session) error {
	if sess.ID == "" {
		return errors.New("session ID cannot be empty")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[sess.ID] = sess
	return nil
}

func (m *MemorySessionStore) Get(_ context.Context, id string) (domainauth.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[id]
	if !ok {
		return domainauth.Session{}, ports.ErrSessionNotFound
	}
	return sess, nil
}

func (m *MemorySessionStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

func (m *MemorySessionStore) Update(_ context.Context, sess domainauth.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[sess.ID]; !ok {
		return ports.ErrSessionNotFound
	}
	m.sessions[sess.ID] = sess
	return nil
}

func (m *MemorySessionStore) ActiveIDs(_ context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	return ids, nil
}

// Len reports the number of stored sessions.
func (m *MemorySessionStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// MockClaimsMapper maps payloads to profiles via an override func, or by
// reading the conventional keys directly.
type MockClaimsMapper struct {
	MapFunc func(payload map[string]any) (domainauth.Profile, error)
}

func (m *MockClaimsMapper) Map(payload map[string]any) (domainauth.Profile, error) {
	if m.MapFunc != nil {
		return m.MapFunc(payload)
	}

	p := domainauth.Profile{}
	if v, ok := payload["id"].(string); ok {
		p.ID = v
	}
	if v, ok := payload["email"].(string); ok {
		p.Email = v
	}
	if v, ok := payload["staff_role"].(string); ok {
		p.StaffRole = domainauth.Role(v)
	}
	switch v := payload["role_level"].(type) {
	case float64:
		p.RoleLevel = int(v)
	case int:
		p.RoleLevel = v
	}
	p.Normalize()
	return p, nil
}

// MockSSOProvider simulates an IdP for tests with deterministic
// state/nonce handling.
type MockSSOProvider struct {
	BeginFunc    func(ctx context.Context, in ports.BeginInput) (authURL, state, nonce string, err error)
	ExchangeFunc func(ctx context.Context, in ports.ExchangeInput) (ports.Identity, error)

	AuthURL         string
	DefaultIdentity ports.Identity

	callCount int
}

// NewMockSSOProvider creates a MockSSOProvider with sensible defaults.
func NewMockSSOProvider() *MockSSOProvider {
	return &MockSSOProvider{
		AuthURL: "https://mock-idp/auth",
		DefaultIdentity: ports.Identity{
			Subject: "staff-1",
			Email:   "docente@umg.edu.gt",
			Claims: map[string]any{
				"id":         "staff-1",
				"email":      "docente@umg.edu.gt",
				"staff_role": "Asistente",
				"role_level": float64(1),
			},
		},
	}
}

func (m *MockSSOProvider) Begin(ctx context.Context, in ports.BeginInput) (string, string, string, error) {
	if m.BeginFunc != nil {
		return m.BeginFunc(ctx, in)
	}
	m.callCount++
	return m.AuthURL, fmt.Sprintf("state-%d", m.callCount), fmt.Sprintf("nonce-%d", m.callCount), nil
}

func (m *MockSSOProvider) Exchange(ctx context.Context, in ports.ExchangeInput) (ports.Identity, error) {
	if m.ExchangeFunc != nil {
		return m.ExchangeFunc(ctx, in)
	}
	identity := m.DefaultIdentity
	identity.ExpiresAt = time.Now().Add(time.Hour)
	return identity, nil
}

// MemoryAuditRecorder collects denial records in memory.
type MemoryAuditRecorder struct {
	mu      sync.Mutex
	Denials []ports.Denial
	Err     error
}

func (m *MemoryAuditRecorder) Record(_ context.Context, d ports.Denial) error {
	if m.Err != nil {
		return m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	d.ID = int64(len(m.Denials) + 1)
	m.Denials = append(m.Denials, d)
	return nil
}

func (m *MemoryAuditRecorder) Recent(_ context.Context, limit int) ([]ports.Denial, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]ports.Denial, 0, limit)
	for i := len(m.Denials) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.Denials[i])
	}
	return out, nil
}

// Count reports the number of recorded denials.
func (m *MemoryAuditRecorder) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Denials)
}

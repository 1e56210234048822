package ports

// Package ports defines interfaces (hexagonal ports) for auth-related behavior.
// Implementations live in internal/adapters; orchestration in internal/service.

import (
	"context"
	"errors"
	"time"

	domainauth "github.com/congresoumg/portal-gateway/internal/domain/auth"
)

// ErrBackendUnauthorized is returned by backend operations when the
// credential is invalid or expired (HTTP 401). Callers use it to tell
// "token rejected" apart from transport failures; both demote the
// session, but only the former is worth surfacing to the user.
var ErrBackendUnauthorized = errors.New("backend rejected credential")

// ErrSessionNotFound is returned by SessionStore when no session exists
// for the given ID. Update also returns it when the session was deleted
// between read and write, letting a concurrent logout win.
var ErrSessionNotFound = errors.New("session not found")

// LoginResult carries the backend's response to a credential login:
// the issued token plus the raw profile payload for the claims mapper.
type LoginResult struct {
	Token     string
	Payload   map[string]any
	ExpiresAt time.Time
}

// BackendClient talks to the remote auth backend's REST surface.
type BackendClient interface {
	// Login authenticates credentials and returns the issued token with
	// the raw profile payload.
	Login(ctx context.Context, email, password string) (LoginResult, error)

	// FetchProfile re-confirms a token against the backend's "who am I"
	// endpoint and returns the current raw profile payload. Returns
	// ErrBackendUnauthorized when the token is invalid or expired.
	FetchProfile(ctx context.Context, token string) (map[string]any, error)

	// Logout invalidates the token server-side. Best effort: callers
	// log failures and clear local state regardless.
	Logout(ctx context.Context, token string) error
}

// ClaimsMapper maps a provider-specific profile payload into the
// domain Profile shape.
type ClaimsMapper interface {
	Map(payload map[string]any) (domainauth.Profile, error)
}

// SessionStore persists and retrieves user sessions.
type SessionStore interface {
	Save(ctx context.Context, sess domainauth.Session) error
	Get(ctx context.Context, id string) (domainauth.Session, error)
	Delete(ctx context.Context, id string) error

	// Update rewrites an existing session only if it still exists, so a
	// revalidation finishing after a logout never resurrects the record.
	Update(ctx context.Context, sess domainauth.Session) error

	// ActiveIDs lists the IDs of currently stored sessions for the
	// background revalidation sweep.
	ActiveIDs(ctx context.Context) ([]string, error)
}

// BeginInput carries inputs for initiating a staff SSO flow.
type BeginInput struct {
	RedirectURL string
}

// ExchangeInput groups parameters for the SSO code/token exchange.
type ExchangeInput struct {
	Code  string
	State string
	Nonce string
}

// Identity is the principal returned by the SSO provider. The claims
// mapper turns its raw claims into a Profile.
type Identity struct {
	Subject   string
	Email     string
	Claims    map[string]any
	ExpiresAt time.Time
}

// SSOProvider initiates and completes a staff single sign-on flow
// against the institutional IdP.
type SSOProvider interface {
	// Begin starts the login flow and returns the provider auth URL, an
	// opaque state, and a nonce.
	Begin(ctx context.Context, in BeginInput) (authURL, state, nonce string, err error)

	// Exchange completes the login flow, verifying state and nonce, and
	// returns the authenticated identity.
	Exchange(ctx context.Context, in ExchangeInput) (Identity, error)
}

// Denial is one recorded access denial.
type Denial struct {
	ID         int64
	OccurredAt time.Time
	UserID     string
	Email      string
	RoleLevel  int
	Path       string
	Reason     string
	RedirectTo string
	Layer      string // "edge" or "guard"
}

// AuditRecorder persists access denials for staff review.
type AuditRecorder interface {
	Record(ctx context.Context, d Denial) error
	Recent(ctx context.Context, limit int) ([]Denial, error)
}

package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// AuthMode represents the authentication mode for the application.
type AuthMode string

const (
	// AuthModeCredentials authenticates against the remote auth backend's
	// REST endpoints with email and password.
	AuthModeCredentials AuthMode = "credentials"
	// AuthModeOAuth additionally enables staff OAuth/OIDC sign-on.
	AuthModeOAuth AuthMode = "oauth"
	// AuthModeMock uses mock/dev authentication (for development only).
	AuthModeMock AuthMode = "mock"
)

// UnmarshalText implements encoding.TextUnmarshaler for AuthMode.
func (a *AuthMode) UnmarshalText(text []byte) error {
	v := strings.ToLower(string(text))
	switch v {
	case "credentials", "oauth", "mock":
		*a = AuthMode(v)
		return nil
	default:
		return fmt.Errorf("invalid AuthMode: %q (valid options: credentials, oauth, mock)", v)
	}
}

// BackendConfig points at the remote auth backend's REST surface.
type BackendConfig struct {
	// URL is the backend base URL (e.g. https://auth.example.edu.gt).
	URL string `env:"URL"`

	// Timeout bounds each backend round trip.
	Timeout time.Duration `env:"TIMEOUT" envDefault:"10s"`

	// SessionDuration is the fallback session lifetime when the backend
	// response does not carry an expiry.
	SessionDuration time.Duration `env:"SESSION_DURATION" envDefault:"8h"`
}

// ClaimsConfig holds the JMESPath expressions that locate profile fields
// in the backend's payload. Defaults match the backend's flat shape.
type ClaimsConfig struct {
	IDExpr        string `env:"ID_EXPR"         envDefault:"id"`
	EmailExpr     string `env:"EMAIL_EXPR"      envDefault:"email"`
	RoleExpr      string `env:"ROLE_EXPR"       envDefault:"staff_role"`
	RoleLevelExpr string `env:"ROLE_LEVEL_EXPR" envDefault:"role_level"`
}

// OAuthConfig contains OAuth/OIDC configuration for staff sign-on.
type OAuthConfig struct {
	ClientID     string `env:"CLIENT_ID"     envDefault:"congreso-portal"`
	ClientSecret string `env:"CLIENT_SECRET"`
	RedirectURL  string `env:"REDIRECT_URL"  envDefault:"http://localhost:8080/auth/sso/callback"`
	Scope        string `env:"SCOPE"         envDefault:"openid profile email"`
	DiscoveryURL string `env:"DISCOVERY_URL"`
	LogoutURL    string `env:"LOGOUT_URL"`
}

// DevAuthConfig controls mock/dev authentication identity.
// Used when AUTH_MODE=mock for development and testing.
type DevAuthConfig struct {
	UserID    string `env:"USER_ID"    envDefault:"dev-user"`
	Email     string `env:"EMAIL"      envDefault:"dev@miumg.edu.gt"`
	Password  string `env:"PASSWORD"   envDefault:"dev-password"`
	RoleLevel int    `env:"ROLE_LEVEL" envDefault:"3"`
}

// AuthConfig groups all authentication-related configuration.
type AuthConfig struct {
	// Mode determines which authentication provider to use.
	Mode AuthMode `env:"AUTH_MODE" envDefault:"credentials"`

	// Backend configuration (used when Mode=credentials or Mode=oauth).
	Backend BackendConfig `envPrefix:"AUTH_BACKEND_"`

	// Claims mapping configuration.
	Claims ClaimsConfig `envPrefix:"AUTH_CLAIMS_"`

	// OAuth configuration (used when Mode=oauth).
	OAuth OAuthConfig `envPrefix:"OAUTH_"`

	// DevAuth configuration (used when Mode=mock).
	DevAuth DevAuthConfig `envPrefix:"DEV_AUTH_"`

	// EdgeSigningSecret signs the edge token cookie. At least 32 bytes.
	EdgeSigningSecret string `env:"EDGE_SIGNING_SECRET"`

	// RevalidateInterval is how long a backend confirmation stays fresh
	// before sessions are re-confirmed.
	RevalidateInterval time.Duration `env:"AUTH_REVALIDATE_INTERVAL" envDefault:"5m"`
}

// Validate rejects configurations that cannot possibly serve traffic.
// Missing secrets are refused at startup rather than discovered when the
// first protected request fails.
func (a *AuthConfig) Validate() error {
	if a.EdgeSigningSecret == "" {
		return errors.New("EDGE_SIGNING_SECRET is required")
	}
	if a.Mode != AuthModeMock && a.Backend.URL == "" {
		return errors.New("AUTH_BACKEND_URL is required unless AUTH_MODE=mock")
	}
	if a.Mode == AuthModeOAuth && a.OAuth.DiscoveryURL == "" {
		return errors.New("OAUTH_DISCOVERY_URL is required when AUTH_MODE=oauth")
	}
	return nil
}

// Sanitize applies guardrails to auth configuration values.
func (a *AuthConfig) Sanitize() {
	if a.RevalidateInterval < 30*time.Second {
		a.RevalidateInterval = 30 * time.Second
	}
	if a.Backend.Timeout <= 0 {
		a.Backend.Timeout = 10 * time.Second
	}
	if a.Backend.SessionDuration <= 0 {
		a.Backend.SessionDuration = 8 * time.Hour
	}
}

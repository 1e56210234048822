package bootstrap

import (
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/congresoumg/portal-gateway/config"
	"github.com/congresoumg/portal-gateway/internal/adapters/authclaims"
	"github.com/congresoumg/portal-gateway/internal/adapters/devauth"
	"github.com/congresoumg/portal-gateway/internal/adapters/edgetoken"
	"github.com/congresoumg/portal-gateway/internal/adapters/oidc"
	redisadapter "github.com/congresoumg/portal-gateway/internal/adapters/redis"
	"github.com/congresoumg/portal-gateway/internal/adapters/restauth"
	"github.com/congresoumg/portal-gateway/internal/data"
	"github.com/congresoumg/portal-gateway/internal/ports"
	"github.com/congresoumg/portal-gateway/internal/service"
	"github.com/redis/go-redis/v9"
)

// AuthConfig contains configuration for the auth stack.
type AuthConfig struct {
	Auth        config.AuthConfig
	RedisClient redis.UniversalClient
	DB          *sql.DB // Optional: denial auditing is skipped when nil
	Logger      *slog.Logger
}

// AuthStack bundles the services the HTTP router and background
// revalidator need. SSO is nil unless AUTH_MODE=oauth.
type AuthStack struct {
	Sessions *service.SessionService
	Store    *redisadapter.SessionStore
	SSO      *service.SSOService
	Tokens   *edgetoken.Manager
	Audit    *service.AuditService
}

// BuildAuthStack wires the session backend, claims mapper, session store,
// edge token manager, and audit recorder for the configured auth mode.
func BuildAuthStack(cfg AuthConfig) (*AuthStack, error) {
	if cfg.RedisClient == nil {
		return nil, fmt.Errorf("auth stack requires a redis client")
	}

	backend, err := buildBackend(cfg.Auth)
	if err != nil {
		return nil, fmt.Errorf("build auth backend: %w", err)
	}

	mapper, err := authclaims.NewMapper(authclaims.Config{
		IDExpr:        cfg.Auth.Claims.IDExpr,
		EmailExpr:     cfg.Auth.Claims.EmailExpr,
		RoleExpr:      cfg.Auth.Claims.RoleExpr,
		RoleLevelExpr: cfg.Auth.Claims.RoleLevelExpr,
	})
	if err != nil {
		return nil, fmt.Errorf("build claims mapper: %w", err)
	}

	store := redisadapter.NewSessionStoreWithPrefix(cfg.RedisClient, "session:")

	sessions, err := service.NewSessionService(service.SessionServiceOptions{
		Backend:            backend,
		Sessions:           store,
		Claims:             mapper,
		Logger:             cfg.Logger,
		RevalidateInterval: cfg.Auth.RevalidateInterval,
	})
	if err != nil {
		return nil, fmt.Errorf("build session service: %w", err)
	}

	tokens, err := edgetoken.NewManager(cfg.Auth.EdgeSigningSecret)
	if err != nil {
		return nil, fmt.Errorf("build edge token manager: %w", err)
	}

	stack := &AuthStack{
		Sessions: sessions,
		Store:    store,
		Tokens:   tokens,
	}

	if cfg.Auth.Mode == config.AuthModeOAuth {
		sso, ssoErr := buildSSOService(cfg.Auth.OAuth, sessions)
		if ssoErr != nil {
			return nil, ssoErr
		}
		stack.SSO = sso
	}

	if cfg.DB != nil {
		audit, auditErr := service.NewAuditService(service.AuditServiceOptions{
			Recorder: data.NewAuditRepo(cfg.DB),
			Logger:   cfg.Logger,
		})
		if auditErr != nil {
			return nil, fmt.Errorf("build audit service: %w", auditErr)
		}
		stack.Audit = audit
	} else if cfg.Logger != nil {
		cfg.Logger.Warn("denial auditing disabled: database not configured")
	}

	return stack, nil
}

//nolint:ireturn // the backend varies by auth mode.
func buildBackend(cfg config.AuthConfig) (ports.BackendClient, error) {
	if cfg.Mode == config.AuthModeMock {
		return devauth.NewBackend(devauth.Config{
			UserID:          cfg.DevAuth.UserID,
			Email:           cfg.DevAuth.Email,
			Password:        cfg.DevAuth.Password,
			RoleLevel:       cfg.DevAuth.RoleLevel,
			SessionDuration: cfg.Backend.SessionDuration,
		})
	}

	return restauth.NewClient(restauth.Config{
		BaseURL:         cfg.Backend.URL,
		Timeout:         cfg.Backend.Timeout,
		SessionDuration: cfg.Backend.SessionDuration,
	})
}

func buildSSOService(oauth config.OAuthConfig, sessions *service.SessionService) (*service.SSOService, error) {
	if oauth.DiscoveryURL == "" || oauth.ClientID == "" || oauth.ClientSecret == "" {
		return nil, fmt.Errorf("AUTH_MODE=oauth requires OAUTH_DISCOVERY_URL, OAUTH_CLIENT_ID, and OAUTH_CLIENT_SECRET")
	}

	prov, err := oidc.NewProvider(oidc.ProviderConfig{
		ClientID:     oauth.ClientID,
		ClientSecret: oauth.ClientSecret,
		RedirectURL:  oauth.RedirectURL,
		Scope:        oauth.Scope,
		DiscoveryURL: oauth.DiscoveryURL,
	})
	if err != nil {
		return nil, fmt.Errorf("build OIDC provider: %w", err)
	}

	return service.NewSSOService(service.SSOServiceOptions{
		Provider: prov,
		Sessions: sessions,
	})
}

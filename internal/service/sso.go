package service

import (
	"context"
	"errors"
	"fmt"

	domainauth "github.com/congresoumg/portal-gateway/internal/domain/auth"
	"github.com/congresoumg/portal-gateway/internal/ports"
)

// SSOServiceOptions groups dependencies for SSOService.
type SSOServiceOptions struct {
	Provider ports.SSOProvider // Required: institutional IdP
	Sessions *SessionService   // Required: session creation
}

// SSOService runs the staff single sign-on flow against the
// institutional identity provider and hands the verified identity to
// the session service.
type SSOService struct {
	provider ports.SSOProvider
	sessions *SessionService
}

// NewSSOService constructs a new SSOService.
func NewSSOService(opts SSOServiceOptions) (*SSOService, error) {
	if opts.Provider == nil {
		return nil, errors.New("SSOProvider is required")
	}
	if opts.Sessions == nil {
		return nil, errors.New("SessionService is required")
	}
	return &SSOService{
		provider: opts.Provider,
		sessions: opts.Sessions,
	}, nil
}

// BeginLoginResult contains the result of beginning an SSO flow.
type BeginLoginResult struct {
	AuthURL string
	State   string
	Nonce   string
}

// BeginLogin initiates the SSO flow and returns the provider auth URL
// with state and nonce for the caller to stash in short-lived cookies.
func (s *SSOService) BeginLogin(ctx context.Context, redirectURL string) (*BeginLoginResult, error) {
	if redirectURL == "" {
		return nil, errors.New("redirect URL is required")
	}

	authURL, state, nonce, err := s.provider.Begin(ctx, ports.BeginInput{RedirectURL: redirectURL})
	if err != nil {
		return nil, fmt.Errorf("begin sso flow: %w", err)
	}

	return &BeginLoginResult{
		AuthURL: authURL,
		State:   state,
		Nonce:   nonce,
	}, nil
}

// CompleteLoginInput groups parameters for completing an SSO flow.
type CompleteLoginInput struct {
	Code  string
	State string
	Nonce string
}

// CompleteLogin exchanges the authorization code for an identity and
// creates a session for it.
func (s *SSOService) CompleteLogin(ctx context.Context, input CompleteLoginInput) (domainauth.Session, error) {
	if input.Code == "" {
		return domainauth.Session{}, errors.New("authorization code is required")
	}
	if input.State == "" {
		return domainauth.Session{}, errors.New("state parameter is required")
	}
	if input.Nonce == "" {
		return domainauth.Session{}, errors.New("nonce parameter is required")
	}

	identity, err := s.provider.Exchange(ctx, ports.ExchangeInput{
		Code:  input.Code,
		State: input.State,
		Nonce: input.Nonce,
	})
	if err != nil {
		return domainauth.Session{}, fmt.Errorf("exchange authorization code: %w", err)
	}

	return s.sessions.CompleteSSOLogin(ctx, identity)
}

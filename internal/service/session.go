package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	domainauth "github.com/congresoumg/portal-gateway/internal/domain/auth"
	apperrors "github.com/congresoumg/portal-gateway/internal/errors"
	"github.com/congresoumg/portal-gateway/internal/ports"
)

const defaultRevalidateInterval = 5 * time.Minute

// SessionServiceOptions groups dependencies for SessionService.
type SessionServiceOptions struct {
	Backend  ports.BackendClient // Required: remote auth backend
	Sessions ports.SessionStore  // Required: session persistence
	Claims   ports.ClaimsMapper  // Required: payload to Profile mapping
	Logger   *slog.Logger        // Optional: structured logger

	// RevalidateInterval is how long a backend confirmation stays fresh.
	// Sessions older than this are re-confirmed before being trusted.
	RevalidateInterval time.Duration

	// Now overrides the clock for tests.
	Now func() time.Time
}

// SessionService orchestrates the session lifecycle: credential login,
// SSO completion, resolution with periodic backend re-confirmation, and
// logout. Resolution is the single source of truth the guards consult;
// a request is never allowed through on a session the service could not
// vouch for.
type SessionService struct {
	backend  ports.BackendClient
	sessions ports.SessionStore
	claims   ports.ClaimsMapper
	logger   *slog.Logger

	revalidateInterval time.Duration
	now                func() time.Time

	// flight collapses concurrent revalidations of the same session into
	// one backend round trip.
	flight singleflight.Group
}

// NewSessionService constructs a new SessionService.
func NewSessionService(opts SessionServiceOptions) (*SessionService, error) {
	if opts.Backend == nil {
		return nil, errors.New("BackendClient is required")
	}
	if opts.Sessions == nil {
		return nil, errors.New("SessionStore is required")
	}
	if opts.Claims == nil {
		return nil, errors.New("ClaimsMapper is required")
	}
	if opts.RevalidateInterval <= 0 {
		opts.RevalidateInterval = defaultRevalidateInterval
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &SessionService{
		backend:            opts.Backend,
		sessions:           opts.Sessions,
		claims:             opts.Claims,
		logger:             logger.With("component", "session_service"),
		revalidateInterval: opts.RevalidateInterval,
		now:                opts.Now,
	}, nil
}

// Login authenticates credentials against the backend and persists a new
// session for the returned profile.
func (s *SessionService) Login(ctx context.Context, email, password string) (domainauth.Session, error) {
	if email == "" || password == "" {
		return domainauth.Session{}, apperrors.Validation("email and password are required")
	}

	result, err := s.backend.Login(ctx, email, password)
	if err != nil {
		if errors.Is(err, ports.ErrBackendUnauthorized) {
			return domainauth.Session{}, apperrors.Wrap(err, apperrors.ErrCodeUnauthorized, "invalid credentials")
		}
		return domainauth.Session{}, fmt.Errorf("backend login: %w", err)
	}

	profile, err := s.claims.Map(result.Payload)
	if err != nil {
		return domainauth.Session{}, fmt.Errorf("map profile claims: %w", err)
	}
	if profile.Email == "" {
		profile.Email = email
		profile.Normalize()
	}

	return s.createSession(ctx, profile, result.Token, result.ExpiresAt)
}

// CompleteSSOLogin persists a session for an identity returned by the
// staff SSO provider. The raw claims go through the same mapper as the
// credential backend so the role level comes from one place.
func (s *SessionService) CompleteSSOLogin(ctx context.Context, identity ports.Identity) (domainauth.Session, error) {
	if identity.Subject == "" {
		return domainauth.Session{}, apperrors.Validation("identity subject is required")
	}

	payload := make(map[string]any, len(identity.Claims)+2)
	for k, v := range identity.Claims {
		payload[k] = v
	}
	if _, ok := payload["id"]; !ok {
		payload["id"] = identity.Subject
	}
	if _, ok := payload["email"]; !ok && identity.Email != "" {
		payload["email"] = identity.Email
	}

	profile, err := s.claims.Map(payload)
	if err != nil {
		return domainauth.Session{}, fmt.Errorf("map profile claims: %w", err)
	}

	return s.createSession(ctx, profile, "", identity.ExpiresAt)
}

func (s *SessionService) createSession(ctx context.Context, profile domainauth.Profile, token string, expiresAt time.Time) (domainauth.Session, error) {
	now := s.now()
	if expiresAt.IsZero() || !expiresAt.After(now) {
		return domainauth.Session{}, apperrors.Validation("session expiry must be in the future")
	}

	sess := domainauth.Session{
		ID:           uuid.New().String(),
		Profile:      profile,
		BackendToken: token,
		IssuedAt:     now,
		VerifiedAt:   now,
		ExpiresAt:    expiresAt,
	}

	if err := s.sessions.Save(ctx, sess); err != nil {
		return domainauth.Session{}, fmt.Errorf("save session: %w", err)
	}

	s.logger.InfoContext(ctx, "session created",
		"session_id", sess.ID,
		"user_id", profile.ID,
		"role_level", profile.RoleLevel,
	)
	return sess, nil
}

// Resolve loads a session and, if its last backend confirmation is older
// than the revalidation interval, re-confirms it before returning. Any
// failure to vouch for the session comes back as an error; callers must
// treat an error as "not authenticated" rather than fall through.
func (s *SessionService) Resolve(ctx context.Context, sessionID string) (domainauth.Session, error) {
	sess, err := s.load(ctx, sessionID)
	if err != nil {
		return domainauth.Session{}, err
	}

	if !sess.StaleAfter(s.revalidateInterval, s.now()) {
		return sess, nil
	}
	return s.revalidate(ctx, sess)
}

// Revalidate forces an immediate backend re-confirmation regardless of
// how fresh the session is.
func (s *SessionService) Revalidate(ctx context.Context, sessionID string) (domainauth.Session, error) {
	sess, err := s.load(ctx, sessionID)
	if err != nil {
		return domainauth.Session{}, err
	}
	return s.revalidate(ctx, sess)
}

func (s *SessionService) load(ctx context.Context, sessionID string) (domainauth.Session, error) {
	if sessionID == "" {
		return domainauth.Session{}, apperrors.Unauthorized("missing session")
	}

	sess, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, ports.ErrSessionNotFound) {
			return domainauth.Session{}, apperrors.Unauthorized("session not found")
		}
		return domainauth.Session{}, fmt.Errorf("get session: %w", err)
	}

	if s.now().After(sess.ExpiresAt) {
		if delErr := s.sessions.Delete(ctx, sessionID); delErr != nil {
			s.logger.WarnContext(ctx, "failed to delete expired session", "session_id", sessionID, "error", delErr)
		}
		return domainauth.Session{}, apperrors.Unauthorized("session expired")
	}

	return sess, nil
}

// revalidate re-confirms the session's backend token and refreshes the
// stored profile. Sessions without a backend token (staff SSO) only get
// their VerifiedAt bumped; the IdP token was verified at exchange time
// and the session expiry bounds its life.
func (s *SessionService) revalidate(ctx context.Context, sess domainauth.Session) (domainauth.Session, error) {
	v, err, _ := s.flight.Do(sess.ID, func() (any, error) {
		return s.revalidateOnce(ctx, sess)
	})
	if err != nil {
		return domainauth.Session{}, err
	}
	refreshed, ok := v.(domainauth.Session)
	if !ok {
		return domainauth.Session{}, errors.New("unexpected revalidation result type")
	}
	return refreshed, nil
}

func (s *SessionService) revalidateOnce(ctx context.Context, sess domainauth.Session) (domainauth.Session, error) {
	if sess.BackendToken != "" {
		payload, err := s.backend.FetchProfile(ctx, sess.BackendToken)
		if err != nil {
			if errors.Is(err, ports.ErrBackendUnauthorized) {
				if delErr := s.sessions.Delete(ctx, sess.ID); delErr != nil {
					s.logger.WarnContext(ctx, "failed to delete rejected session", "session_id", sess.ID, "error", delErr)
				}
				s.logger.InfoContext(ctx, "backend rejected session token", "session_id", sess.ID)
				return domainauth.Session{}, apperrors.Wrap(err, apperrors.ErrCodeUnauthorized, "backend rejected session")
			}
			// Transient backend failure: deny this request but keep the
			// session so a later attempt can retry once the backend is
			// reachable again.
			return domainauth.Session{}, fmt.Errorf("revalidate session: %w", err)
		}

		profile, mapErr := s.claims.Map(payload)
		if mapErr != nil {
			return domainauth.Session{}, fmt.Errorf("map profile claims: %w", mapErr)
		}
		if profile.RoleLevel != sess.Profile.RoleLevel {
			s.logger.InfoContext(ctx, "role level changed on revalidation",
				"session_id", sess.ID,
				"old_level", sess.Profile.RoleLevel,
				"new_level", profile.RoleLevel,
			)
		}
		sess.Profile = profile
	}

	sess.VerifiedAt = s.now()

	if err := s.sessions.Update(ctx, sess); err != nil {
		if errors.Is(err, ports.ErrSessionNotFound) {
			// The session was logged out while we were revalidating.
			return domainauth.Session{}, apperrors.Unauthorized("session revoked")
		}
		return domainauth.Session{}, fmt.Errorf("update session: %w", err)
	}

	return sess, nil
}

// Logout tears down a session. The backend token is invalidated best
// effort; the local session record is deleted regardless so the user is
// logged out even when the backend is unreachable.
func (s *SessionService) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}

	sess, err := s.sessions.Get(ctx, sessionID)
	if err == nil && sess.BackendToken != "" {
		if logoutErr := s.backend.Logout(ctx, sess.BackendToken); logoutErr != nil {
			s.logger.WarnContext(ctx, "backend logout failed", "session_id", sessionID, "error", logoutErr)
		}
	} else if err != nil && !errors.Is(err, ports.ErrSessionNotFound) {
		s.logger.WarnContext(ctx, "failed to load session for logout", "session_id", sessionID, "error", err)
	}

	if delErr := s.sessions.Delete(ctx, sessionID); delErr != nil {
		return fmt.Errorf("delete session: %w", delErr)
	}
	return nil
}

package httpx

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/congresoumg/portal-gateway/internal/authz"
	domainauth "github.com/congresoumg/portal-gateway/internal/domain/auth"
	apperrors "github.com/congresoumg/portal-gateway/internal/errors"
	"github.com/congresoumg/portal-gateway/internal/ports"
	"github.com/congresoumg/portal-gateway/internal/service"
)

// stubSessions is a test double for the session service: it resolves
// sessions from a fixed map and records interactions.
type stubSessions struct {
	sessions map[string]domainauth.Session

	loginFunc  func(ctx context.Context, email, password string) (domainauth.Session, error)
	resolveErr error

	mu          sync.Mutex
	resolved    []string
	revalidated []string
	loggedOut   []string
}

func newStubSessions(sessions ...domainauth.Session) *stubSessions {
	s := &stubSessions{sessions: map[string]domainauth.Session{}}
	for _, sess := range sessions {
		s.sessions[sess.ID] = sess
	}
	return s
}

func (s *stubSessions) Login(ctx context.Context, email, password string) (domainauth.Session, error) {
	if s.loginFunc != nil {
		return s.loginFunc(ctx, email, password)
	}
	return domainauth.Session{}, apperrors.Unauthorized("invalid credentials")
}

func (s *stubSessions) Resolve(_ context.Context, sessionID string) (domainauth.Session, error) {
	s.mu.Lock()
	s.resolved = append(s.resolved, sessionID)
	s.mu.Unlock()

	if s.resolveErr != nil {
		return domainauth.Session{}, s.resolveErr
	}
	sess, ok := s.sessions[sessionID]
	if !ok {
		return domainauth.Session{}, apperrors.Unauthorized("session not found")
	}
	return sess, nil
}

func (s *stubSessions) Revalidate(ctx context.Context, sessionID string) (domainauth.Session, error) {
	s.mu.Lock()
	s.revalidated = append(s.revalidated, sessionID)
	s.mu.Unlock()
	return s.Resolve(ctx, sessionID)
}

func (s *stubSessions) Logout(_ context.Context, sessionID string) error {
	s.mu.Lock()
	s.loggedOut = append(s.loggedOut, sessionID)
	s.mu.Unlock()
	delete(s.sessions, sessionID)
	return nil
}

var _ SessionServiceInterface = (*stubSessions)(nil)

// denialSpy records denials handed to the audit layer.
type denialSpy struct {
	mu      sync.Mutex
	denials []ports.Denial
}

func (d *denialSpy) RecordDenial(_ context.Context, denial ports.Denial) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.denials = append(d.denials, denial)
}

func (d *denialSpy) recorded() []ports.Denial {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]ports.Denial(nil), d.denials...)
}

func sessionWithLevel(id string, level int) domainauth.Session {
	profile := domainauth.Profile{
		ID:        "user-" + id,
		Email:     "user-" + id + "@miumg.edu.gt",
		RoleLevel: level,
	}
	profile.Normalize()
	return domainauth.Session{
		ID:         id,
		Profile:    profile,
		IssuedAt:   time.Now(),
		VerifiedAt: time.Now(),
		ExpiresAt:  time.Now().Add(time.Hour),
	}
}

// okHandler marks that the request made it past the guard.
func okHandler(reached *bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*reached = true
		w.WriteHeader(http.StatusOK)
	})
}

func browserGet(path, sessionID string) *http.Request {
	r := httptest.NewRequest(http.MethodGet, path, nil)
	r.Header.Set("Accept", "text/html")
	if sessionID != "" {
		r.AddCookie(&http.Cookie{Name: CookieSession, Value: sessionID})
	}
	return r
}

func apiGet(path, sessionID string) *http.Request {
	r := httptest.NewRequest(http.MethodGet, path, nil)
	r.Header.Set("Accept", "application/json")
	if sessionID != "" {
		r.AddCookie(&http.Cookie{Name: CookieSession, Value: sessionID})
	}
	return r
}

func TestPageGuard_AnonymousOnStaffZoneRedirectsToLogin(t *testing.T) {
	audit := &denialSpy{}
	guard := PageGuard(GuardDeps{Sessions: newStubSessions(), Audit: audit})

	var reached bool
	w := httptest.NewRecorder()
	guard(okHandler(&reached)).ServeHTTP(w, browserGet("/dashboard", ""))

	assert.False(t, reached)
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/inscripcion?next=%2Fdashboard", w.Header().Get("Location"))

	denials := audit.recorded()
	require.Len(t, denials, 1)
	assert.Equal(t, string(authz.ReasonNotAuthenticated), denials[0].Reason)
	assert.Equal(t, DenialLayerGuard, denials[0].Layer)
	assert.Empty(t, denials[0].UserID)
}

func TestPageGuard_StudentOnStaffZoneRedirectsHome(t *testing.T) {
	audit := &denialSpy{}
	sessions := newStubSessions(sessionWithLevel("s1", domainauth.LevelStudent))
	guard := PageGuard(GuardDeps{Sessions: sessions, Audit: audit})

	var reached bool
	w := httptest.NewRecorder()
	guard(okHandler(&reached)).ServeHTTP(w, browserGet("/dashboard", "s1"))

	assert.False(t, reached)
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, authz.StudentHome, w.Header().Get("Location"))

	denials := audit.recorded()
	require.Len(t, denials, 1)
	assert.Equal(t, string(authz.ReasonWrongProfileType), denials[0].Reason)
	assert.Equal(t, "user-s1", denials[0].UserID)
	assert.Equal(t, domainauth.LevelStudent, denials[0].RoleLevel)
}

func TestPageGuard_StaffOnAdminZoneRedirectsToDashboard(t *testing.T) {
	sessions := newStubSessions(sessionWithLevel("s1", domainauth.LevelStaff))
	guard := PageGuard(GuardDeps{Sessions: sessions})

	var reached bool
	w := httptest.NewRecorder()
	guard(okHandler(&reached)).ServeHTTP(w, browserGet("/admin/usuarios", "s1"))

	assert.False(t, reached)
	assert.Equal(t, authz.StaffDashboard, w.Header().Get("Location"))
}

func TestPageGuard_AdminAllowedOnAdminZone(t *testing.T) {
	sessions := newStubSessions(sessionWithLevel("a1", domainauth.LevelAdmin))
	guard := PageGuard(GuardDeps{Sessions: sessions})

	var reached bool
	w := httptest.NewRecorder()
	guard(okHandler(&reached)).ServeHTTP(w, browserGet("/admin/usuarios", "a1"))

	assert.True(t, reached)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestPageGuard_AttachesSessionToContext(t *testing.T) {
	sessions := newStubSessions(sessionWithLevel("a1", domainauth.LevelAdmin))
	guard := PageGuard(GuardDeps{Sessions: sessions})

	var gotProfile *domainauth.Profile
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotProfile = ProfileFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	w := httptest.NewRecorder()
	guard(handler).ServeHTTP(w, browserGet("/dashboard", "a1"))

	require.NotNil(t, gotProfile)
	assert.Equal(t, "user-a1", gotProfile.ID)
}

func TestPageGuard_APIDenialIsJSON(t *testing.T) {
	guard := PageGuard(GuardDeps{Sessions: newStubSessions()})

	var reached bool
	w := httptest.NewRecorder()
	guard(okHandler(&reached)).ServeHTTP(w, apiGet("/dashboard", ""))

	assert.False(t, reached)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Body.String(), string(authz.ReasonNotAuthenticated))
	assert.Contains(t, w.Body.String(), "/inscripcion?next=%2Fdashboard")
}

func TestPageGuard_APIForbiddenForWrongLevel(t *testing.T) {
	sessions := newStubSessions(sessionWithLevel("s1", domainauth.LevelStaff))
	guard := PageGuard(GuardDeps{Sessions: sessions})

	var reached bool
	w := httptest.NewRecorder()
	guard(okHandler(&reached)).ServeHTTP(w, apiGet("/admin/usuarios", "s1"))

	assert.False(t, reached)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), string(authz.ReasonInsufficientLevel))
}

// A transient session-store failure means the principal is unknown, not
// anonymous: the guard answers deny-as-anonymous rather than letting the
// request through.
func TestPageGuard_ResolveFailureFailsClosed(t *testing.T) {
	sessions := newStubSessions()
	sessions.resolveErr = errors.New("redis connection refused")
	guard := PageGuard(GuardDeps{Sessions: sessions})

	var reached bool
	w := httptest.NewRecorder()
	guard(okHandler(&reached)).ServeHTTP(w, browserGet("/dashboard", "s1"))

	assert.False(t, reached)
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/inscripcion?next=%2Fdashboard", w.Header().Get("Location"))
}

func TestPageGuard_PublicPathPassesAnonymous(t *testing.T) {
	guard := PageGuard(GuardDeps{Sessions: newStubSessions()})

	var reached bool
	w := httptest.NewRecorder()
	guard(okHandler(&reached)).ServeHTTP(w, browserGet("/faq", ""))

	assert.True(t, reached)
}

func TestRoleLevelGuard_EnforcesBand(t *testing.T) {
	sessions := newStubSessions(
		sessionWithLevel("student", domainauth.LevelStudent),
		sessionWithLevel("staff", domainauth.LevelStaff),
		sessionWithLevel("admin", domainauth.LevelAdmin),
	)
	guard := RoleLevelGuard(GuardDeps{Sessions: sessions}, domainauth.LevelAdmin, -1)

	for id, wantPass := range map[string]bool{
		"student": false,
		"staff":   false,
		"admin":   true,
	} {
		var reached bool
		w := httptest.NewRecorder()
		guard(okHandler(&reached)).ServeHTTP(w, apiGet("/api/admin/denials", id))
		assert.Equal(t, wantPass, reached, "session %s", id)
	}
}

func TestRoleLevelGuard_UpperCap(t *testing.T) {
	sessions := newStubSessions(
		sessionWithLevel("admin", domainauth.LevelAdmin),
		sessionWithLevel("dev", domainauth.LevelAdminDev),
	)
	guard := RoleLevelGuard(GuardDeps{Sessions: sessions}, domainauth.LevelStudent, domainauth.LevelAdmin)

	var reached bool
	w := httptest.NewRecorder()
	guard(okHandler(&reached)).ServeHTTP(w, apiGet("/api/some", "admin"))
	assert.True(t, reached)

	reached = false
	w = httptest.NewRecorder()
	guard(okHandler(&reached)).ServeHTTP(w, apiGet("/api/some", "dev"))
	assert.False(t, reached)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), string(authz.ReasonExcessLevel))
}

func TestRoleSetGuard(t *testing.T) {
	sessions := newStubSessions(
		sessionWithLevel("staff", domainauth.LevelStaff),
		sessionWithLevel("admin", domainauth.LevelAdmin),
	)
	guard := RoleSetGuard(GuardDeps{Sessions: sessions}, domainauth.RoleAdmin, domainauth.RoleAdminDev)

	var reached bool
	w := httptest.NewRecorder()
	guard(okHandler(&reached)).ServeHTTP(w, apiGet("/api/x", "admin"))
	assert.True(t, reached)

	reached = false
	w = httptest.NewRecorder()
	guard(okHandler(&reached)).ServeHTTP(w, apiGet("/api/x", "staff"))
	assert.False(t, reached)
	assert.Contains(t, w.Body.String(), string(authz.ReasonRoleNotPermitted))
}

func TestOptionalSession_AttachesWhenPresent(t *testing.T) {
	sessions := newStubSessions(sessionWithLevel("s1", domainauth.LevelStudent))
	mw := OptionalSession(GuardDeps{Sessions: sessions})

	var gotProfile *domainauth.Profile
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotProfile = ProfileFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	w := httptest.NewRecorder()
	mw(handler).ServeHTTP(w, browserGet("/faq", "s1"))

	require.NotNil(t, gotProfile)
	assert.Equal(t, "user-s1", gotProfile.ID)
}

func TestOptionalSession_PassesAnonymousThrough(t *testing.T) {
	mw := OptionalSession(GuardDeps{Sessions: newStubSessions()})

	var reached bool
	var gotProfile *domainauth.Profile
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached = true
		gotProfile = ProfileFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	w := httptest.NewRecorder()
	mw(handler).ServeHTTP(w, browserGet("/faq", ""))

	assert.True(t, reached)
	assert.Nil(t, gotProfile)
}

// The audit hook is optional; a guard without one must still deny.
func TestPageGuard_NoAuditConfigured(t *testing.T) {
	guard := PageGuard(GuardDeps{Sessions: newStubSessions()})

	w := httptest.NewRecorder()
	var reached bool
	guard(okHandler(&reached)).ServeHTTP(w, browserGet("/admin", ""))

	assert.False(t, reached)
	assert.Equal(t, http.StatusSeeOther, w.Code)
}

// Interface checks for the real service types.
var (
	_ SessionServiceInterface = (*service.SessionService)(nil)
	_ SSOServiceInterface     = (*service.SSOService)(nil)
	_ DenialRecorder          = (*service.AuditService)(nil)
)

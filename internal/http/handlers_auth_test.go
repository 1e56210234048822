package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/congresoumg/portal-gateway/internal/authz"
	domainauth "github.com/congresoumg/portal-gateway/internal/domain/auth"
	apperrors "github.com/congresoumg/portal-gateway/internal/errors"
	"github.com/congresoumg/portal-gateway/internal/service"
)

// stubSSO is a test double for the staff SSO service.
type stubSSO struct {
	beginFunc    func(ctx context.Context, redirectURL string) (*service.BeginLoginResult, error)
	completeFunc func(ctx context.Context, input service.CompleteLoginInput) (domainauth.Session, error)
}

func (s *stubSSO) BeginLogin(ctx context.Context, redirectURL string) (*service.BeginLoginResult, error) {
	return s.beginFunc(ctx, redirectURL)
}

func (s *stubSSO) CompleteLogin(ctx context.Context, input service.CompleteLoginInput) (domainauth.Session, error) {
	return s.completeFunc(ctx, input)
}

func newAuthHandlers(t *testing.T, sessions SessionServiceInterface) *AuthHandlers {
	t.Helper()
	return &AuthHandlers{
		Sessions:    sessions,
		Tokens:      newEdgeTokenManager(t),
		CallbackURL: "https://congreso.umg.edu.gt/auth/sso/callback",
	}
}

func cookieByName(resp *http.Response, name string) *http.Cookie {
	for _, c := range resp.Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestLogin_Success(t *testing.T) {
	sessions := newStubSessions()
	sessions.loginFunc = func(_ context.Context, email, password string) (domainauth.Session, error) {
		assert.Equal(t, "alumno@miumg.edu.gt", email)
		assert.Equal(t, "secreto", password)
		return sessionWithLevel("new-session", domainauth.LevelStudent), nil
	}
	h := newAuthHandlers(t, sessions)

	body := strings.NewReader(`{"email":"alumno@miumg.edu.gt","password":"secreto"}`)
	r := httptest.NewRequest(http.MethodPost, "/auth/login", body)
	w := httptest.NewRecorder()
	h.Login(w, r)

	require.Equal(t, http.StatusOK, w.Code)

	resp := w.Result()
	sessionCookie := cookieByName(resp, CookieSession)
	require.NotNil(t, sessionCookie)
	assert.Equal(t, "new-session", sessionCookie.Value)
	assert.True(t, sessionCookie.HttpOnly)

	edgeCookie := cookieByName(resp, CookieEdgeToken)
	require.NotNil(t, edgeCookie)
	assert.NotEmpty(t, edgeCookie.Value)

	var payload map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	assert.Equal(t, true, payload["authenticated"])
	assert.Equal(t, authz.StudentHome, payload["redirect_to"])
}

func TestLogin_NextParameterHonored(t *testing.T) {
	sessions := newStubSessions()
	sessions.loginFunc = func(_ context.Context, _, _ string) (domainauth.Session, error) {
		return sessionWithLevel("s1", domainauth.LevelStudent), nil
	}
	h := newAuthHandlers(t, sessions)

	body := strings.NewReader(`{"email":"a@b.c","password":"x","next":"/inscripcion/completar"}`)
	r := httptest.NewRequest(http.MethodPost, "/auth/login", body)
	w := httptest.NewRecorder()
	h.Login(w, r)

	require.Equal(t, http.StatusOK, w.Code)
	var payload map[string]any
	require.NoError(t, json.NewDecoder(w.Body).Decode(&payload))
	assert.Equal(t, "/inscripcion/completar", payload["redirect_to"])
}

func TestLogin_RejectsAbsoluteNextURL(t *testing.T) {
	sessions := newStubSessions()
	sessions.loginFunc = func(_ context.Context, _, _ string) (domainauth.Session, error) {
		return sessionWithLevel("s1", domainauth.LevelStudent), nil
	}
	h := newAuthHandlers(t, sessions)

	body := strings.NewReader(`{"email":"a@b.c","password":"x","next":"https://evil.example/phish"}`)
	r := httptest.NewRequest(http.MethodPost, "/auth/login", body)
	w := httptest.NewRecorder()
	h.Login(w, r)

	require.Equal(t, http.StatusOK, w.Code)
	var payload map[string]any
	require.NoError(t, json.NewDecoder(w.Body).Decode(&payload))
	// Unsafe target falls back to the profile's own zone.
	assert.Equal(t, authz.StudentHome, payload["redirect_to"])
}

func TestLogin_MissingCredentials(t *testing.T) {
	h := newAuthHandlers(t, newStubSessions())

	r := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"email":"a@b.c"}`))
	w := httptest.NewRecorder()
	h.Login(w, r)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "missing_credentials")
}

func TestLogin_InvalidJSON(t *testing.T) {
	h := newAuthHandlers(t, newStubSessions())

	r := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{not json`))
	w := httptest.NewRecorder()
	h.Login(w, r)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid_json")
}

func TestLogin_InvalidCredentials(t *testing.T) {
	sessions := newStubSessions()
	sessions.loginFunc = func(_ context.Context, _, _ string) (domainauth.Session, error) {
		return domainauth.Session{}, apperrors.Unauthorized("invalid credentials")
	}
	h := newAuthHandlers(t, sessions)

	body := strings.NewReader(`{"email":"a@b.c","password":"mal"}`)
	r := httptest.NewRequest(http.MethodPost, "/auth/login", body)
	w := httptest.NewRecorder()
	h.Login(w, r)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "invalid_credentials")
}

func TestLogin_BackendUnavailable(t *testing.T) {
	sessions := newStubSessions()
	sessions.loginFunc = func(_ context.Context, _, _ string) (domainauth.Session, error) {
		return domainauth.Session{}, errors.New("backend login: connection refused")
	}
	h := newAuthHandlers(t, sessions)

	body := strings.NewReader(`{"email":"a@b.c","password":"x"}`)
	r := httptest.NewRequest(http.MethodPost, "/auth/login", body)
	w := httptest.NewRecorder()
	h.Login(w, r)

	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Contains(t, w.Body.String(), "login_unavailable")
}

func TestLogout_ClearsCookiesAndSession(t *testing.T) {
	sessions := newStubSessions(sessionWithLevel("s1", domainauth.LevelStudent))
	h := newAuthHandlers(t, sessions)

	r := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	r.Header.Set("Accept", "application/json")
	r.AddCookie(&http.Cookie{Name: CookieSession, Value: "s1"})
	w := httptest.NewRecorder()
	h.Logout(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"s1"}, sessions.loggedOut)

	resp := w.Result()
	for _, name := range []string{CookieSession, CookieEdgeToken} {
		c := cookieByName(resp, name)
		require.NotNil(t, c, "cookie %s should be cleared", name)
		assert.Empty(t, c.Value)
		assert.Equal(t, -1, c.MaxAge)
	}
}

func TestLogout_BrowserRedirectsToLogin(t *testing.T) {
	h := newAuthHandlers(t, newStubSessions())

	r := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	r.Header.Set("Accept", "text/html")
	w := httptest.NewRecorder()
	h.Logout(w, r)

	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, authz.LoginPath, w.Header().Get("Location"))
}

func TestStatus_NoCookie(t *testing.T) {
	h := newAuthHandlers(t, newStubSessions())

	r := httptest.NewRequest(http.MethodGet, "/auth/session", nil)
	w := httptest.NewRecorder()
	h.Status(w, r)

	require.Equal(t, http.StatusOK, w.Code)
	var payload map[string]any
	require.NoError(t, json.NewDecoder(w.Body).Decode(&payload))
	assert.Equal(t, false, payload["authenticated"])
}

func TestStatus_ValidSession(t *testing.T) {
	sessions := newStubSessions(sessionWithLevel("s1", domainauth.LevelStaff))
	h := newAuthHandlers(t, sessions)

	r := httptest.NewRequest(http.MethodGet, "/auth/session", nil)
	r.AddCookie(&http.Cookie{Name: CookieSession, Value: "s1"})
	w := httptest.NewRecorder()
	h.Status(w, r)

	require.Equal(t, http.StatusOK, w.Code)

	resp := w.Result()
	var payload map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	assert.Equal(t, true, payload["authenticated"])

	// A fresh edge token rides along so its claims track the profile.
	edgeCookie := cookieByName(resp, CookieEdgeToken)
	require.NotNil(t, edgeCookie)
	assert.NotEmpty(t, edgeCookie.Value)

	assert.Empty(t, sessions.revalidated)
}

func TestStatus_RefreshForcesRevalidation(t *testing.T) {
	sessions := newStubSessions(sessionWithLevel("s1", domainauth.LevelStaff))
	h := newAuthHandlers(t, sessions)

	r := httptest.NewRequest(http.MethodGet, "/auth/session?refresh=1", nil)
	r.AddCookie(&http.Cookie{Name: CookieSession, Value: "s1"})
	w := httptest.NewRecorder()
	h.Status(w, r)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"s1"}, sessions.revalidated)
}

func TestStatus_InvalidSessionClearsCookies(t *testing.T) {
	h := newAuthHandlers(t, newStubSessions())

	r := httptest.NewRequest(http.MethodGet, "/auth/session", nil)
	r.AddCookie(&http.Cookie{Name: CookieSession, Value: "gone"})
	w := httptest.NewRecorder()
	h.Status(w, r)

	require.Equal(t, http.StatusOK, w.Code)

	resp := w.Result()
	var payload map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	assert.Equal(t, false, payload["authenticated"])

	c := cookieByName(resp, CookieSession)
	require.NotNil(t, c)
	assert.Equal(t, -1, c.MaxAge)
}

// A backend outage must not log the client out; the answer is "try
// again", not "anonymous".
func TestStatus_TransientFailureKeepsClientState(t *testing.T) {
	sessions := newStubSessions()
	sessions.resolveErr = errors.New("redis timeout")
	h := newAuthHandlers(t, sessions)

	r := httptest.NewRequest(http.MethodGet, "/auth/session", nil)
	r.AddCookie(&http.Cookie{Name: CookieSession, Value: "s1"})
	w := httptest.NewRecorder()
	h.Status(w, r)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "session_unavailable")
	assert.Nil(t, cookieByName(w.Result(), CookieSession))
}

func TestSSOLogin_Disabled(t *testing.T) {
	h := newAuthHandlers(t, newStubSessions())

	r := httptest.NewRequest(http.MethodGet, "/auth/sso/login", nil)
	w := httptest.NewRecorder()
	h.SSOLogin(w, r)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "sso_disabled")
}

func TestSSOLogin_RedirectsToIdP(t *testing.T) {
	h := newAuthHandlers(t, newStubSessions())
	h.SSO = &stubSSO{
		beginFunc: func(_ context.Context, redirectURL string) (*service.BeginLoginResult, error) {
			assert.Equal(t, "https://congreso.umg.edu.gt/auth/sso/callback", redirectURL)
			return &service.BeginLoginResult{
				AuthURL: "https://idp.umg.edu.gt/auth?client_id=x",
				State:   "state-1",
				Nonce:   "nonce-1",
			}, nil
		},
	}

	r := httptest.NewRequest(http.MethodGet, "/auth/sso/login?next=/dashboard", nil)
	w := httptest.NewRecorder()
	h.SSOLogin(w, r)

	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "https://idp.umg.edu.gt/auth?client_id=x", w.Header().Get("Location"))

	resp := w.Result()
	state := cookieByName(resp, CookieOAuthState)
	require.NotNil(t, state)
	assert.Equal(t, "state-1", state.Value)
	nonce := cookieByName(resp, CookieOAuthNonce)
	require.NotNil(t, nonce)
	assert.Equal(t, "nonce-1", nonce.Value)
	next := cookieByName(resp, CookiePostLoginNext)
	require.NotNil(t, next)
	assert.Equal(t, "/dashboard", next.Value)
}

func TestSSOCallback_CompletesLogin(t *testing.T) {
	h := newAuthHandlers(t, newStubSessions())
	h.SSO = &stubSSO{
		completeFunc: func(_ context.Context, input service.CompleteLoginInput) (domainauth.Session, error) {
			assert.Equal(t, "code-1", input.Code)
			assert.Equal(t, "state-1", input.State)
			assert.Equal(t, "nonce-1", input.Nonce)
			return sessionWithLevel("staff-session", domainauth.LevelStaff), nil
		},
	}

	r := httptest.NewRequest(http.MethodGet, "/auth/sso/callback?code=code-1&state=state-1", nil)
	r.AddCookie(&http.Cookie{Name: CookieOAuthState, Value: "state-1"})
	r.AddCookie(&http.Cookie{Name: CookieOAuthNonce, Value: "nonce-1"})
	r.AddCookie(&http.Cookie{Name: CookiePostLoginNext, Value: "/dashboard"})
	w := httptest.NewRecorder()
	h.SSOCallback(w, r)

	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/dashboard", w.Header().Get("Location"))

	resp := w.Result()
	sessionCookie := cookieByName(resp, CookieSession)
	require.NotNil(t, sessionCookie)
	assert.Equal(t, "staff-session", sessionCookie.Value)
}

func TestSSOCallback_DefaultsToProfileZone(t *testing.T) {
	h := newAuthHandlers(t, newStubSessions())
	h.SSO = &stubSSO{
		completeFunc: func(_ context.Context, _ service.CompleteLoginInput) (domainauth.Session, error) {
			return sessionWithLevel("admin-session", domainauth.LevelAdmin), nil
		},
	}

	r := httptest.NewRequest(http.MethodGet, "/auth/sso/callback?code=c&state=s", nil)
	r.AddCookie(&http.Cookie{Name: CookieOAuthState, Value: "s"})
	r.AddCookie(&http.Cookie{Name: CookieOAuthNonce, Value: "n"})
	w := httptest.NewRecorder()
	h.SSOCallback(w, r)

	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, authz.AdminHome, w.Header().Get("Location"))
}

func TestSSOCallback_StateMismatch(t *testing.T) {
	h := newAuthHandlers(t, newStubSessions())
	h.SSO = &stubSSO{}

	r := httptest.NewRequest(http.MethodGet, "/auth/sso/callback?code=c&state=forged", nil)
	r.AddCookie(&http.Cookie{Name: CookieOAuthState, Value: "original"})
	w := httptest.NewRecorder()
	h.SSOCallback(w, r)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid_state")
}

func TestSSOCallback_MissingParameters(t *testing.T) {
	h := newAuthHandlers(t, newStubSessions())
	h.SSO = &stubSSO{}

	r := httptest.NewRequest(http.MethodGet, "/auth/sso/callback", nil)
	w := httptest.NewRecorder()
	h.SSOCallback(w, r)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "missing_parameters")
}

func TestSafeRedirectPath(t *testing.T) {
	assert.Equal(t, "/", safeRedirectPath(""))
	assert.Equal(t, "/", safeRedirectPath("https://evil.example/x"))
	assert.Equal(t, "/", safeRedirectPath("//evil.example/x"))
	assert.Equal(t, "/", safeRedirectPath("no-leading-slash"))
	assert.Equal(t, "/dashboard", safeRedirectPath("/dashboard"))
	assert.Equal(t, "/inscripcion?next=%2Fdashboard", safeRedirectPath("/inscripcion?next=%2Fdashboard"))
}

func TestSessionCookies_ExpireWithSession(t *testing.T) {
	sessions := newStubSessions()
	sess := sessionWithLevel("s1", domainauth.LevelStudent)
	sess.ExpiresAt = time.Now().Add(30 * time.Minute)
	sessions.loginFunc = func(_ context.Context, _, _ string) (domainauth.Session, error) {
		return sess, nil
	}
	h := newAuthHandlers(t, sessions)

	body := strings.NewReader(`{"email":"a@b.c","password":"x"}`)
	r := httptest.NewRequest(http.MethodPost, "/auth/login", body)
	w := httptest.NewRecorder()
	h.Login(w, r)

	c := cookieByName(w.Result(), CookieSession)
	require.NotNil(t, c)
	assert.InDelta(t, 30*60, c.MaxAge, 5)
}

package httpx

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/congresoumg/portal-gateway/internal/adapters/edgetoken"
	"github.com/congresoumg/portal-gateway/internal/authz"
	domainauth "github.com/congresoumg/portal-gateway/internal/domain/auth"
)

func newEdgeTokenManager(t *testing.T) *edgetoken.Manager {
	t.Helper()
	m, err := edgetoken.NewManager("0123456789abcdef0123456789abcdef")
	require.NoError(t, err)
	return m
}

func edgeRequest(t *testing.T, m *edgetoken.Manager, path string, level int) *http.Request {
	t.Helper()
	r := httptest.NewRequest(http.MethodGet, path, nil)
	r.Header.Set("Accept", "text/html")
	if level >= 0 {
		token, err := m.Issue(sessionWithLevel("edge", level))
		require.NoError(t, err)
		r.AddCookie(&http.Cookie{Name: CookieEdgeToken, Value: token})
	}
	return r
}

func TestEdgeGuard_AnonymousOnPublicPath(t *testing.T) {
	m := newEdgeTokenManager(t)
	guard := EdgeGuard(EdgeGuardDeps{Tokens: m})

	var reached bool
	w := httptest.NewRecorder()
	guard(okHandler(&reached)).ServeHTTP(w, edgeRequest(t, m, "/faq", -1))

	assert.True(t, reached)
}

// The edge layer only enforces the staff boundary; authenticated-zone
// checks belong to the session-backed guards downstream.
func TestEdgeGuard_AnonymousOnAuthPathPassesThrough(t *testing.T) {
	m := newEdgeTokenManager(t)
	guard := EdgeGuard(EdgeGuardDeps{Tokens: m})

	var reached bool
	w := httptest.NewRecorder()
	guard(okHandler(&reached)).ServeHTTP(w, edgeRequest(t, m, "/mi-cuenta", -1))

	assert.True(t, reached)
}

func TestEdgeGuard_AnonymousOnStaffZoneDenied(t *testing.T) {
	m := newEdgeTokenManager(t)
	audit := &denialSpy{}
	guard := EdgeGuard(EdgeGuardDeps{Tokens: m, Audit: audit})

	var reached bool
	w := httptest.NewRecorder()
	guard(okHandler(&reached)).ServeHTTP(w, edgeRequest(t, m, "/dashboard", -1))

	assert.False(t, reached)
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/inscripcion?next=%2Fdashboard", w.Header().Get("Location"))

	denials := audit.recorded()
	require.Len(t, denials, 1)
	assert.Equal(t, DenialLayerEdge, denials[0].Layer)
	assert.Equal(t, string(authz.ReasonNotAuthenticated), denials[0].Reason)
}

func TestEdgeGuard_StudentTokenOnStaffZoneDenied(t *testing.T) {
	m := newEdgeTokenManager(t)
	audit := &denialSpy{}
	guard := EdgeGuard(EdgeGuardDeps{Tokens: m, Audit: audit})

	var reached bool
	w := httptest.NewRecorder()
	guard(okHandler(&reached)).ServeHTTP(w, edgeRequest(t, m, "/dashboard", domainauth.LevelStudent))

	assert.False(t, reached)
	assert.Equal(t, http.StatusSeeOther, w.Code)

	denials := audit.recorded()
	require.Len(t, denials, 1)
	assert.Equal(t, "user-edge", denials[0].UserID)
	assert.Equal(t, domainauth.LevelStudent, denials[0].RoleLevel)
}

func TestEdgeGuard_StaffTokenOnStaffZoneAllowed(t *testing.T) {
	m := newEdgeTokenManager(t)
	guard := EdgeGuard(EdgeGuardDeps{Tokens: m})

	var reached bool
	w := httptest.NewRecorder()
	guard(okHandler(&reached)).ServeHTTP(w, edgeRequest(t, m, "/dashboard", domainauth.LevelStaff))

	assert.True(t, reached)
}

func TestEdgeGuard_StaffTokenOnAdminZoneDenied(t *testing.T) {
	m := newEdgeTokenManager(t)
	guard := EdgeGuard(EdgeGuardDeps{Tokens: m})

	var reached bool
	w := httptest.NewRecorder()
	guard(okHandler(&reached)).ServeHTTP(w, edgeRequest(t, m, "/admin/usuarios", domainauth.LevelStaff))

	assert.False(t, reached)
	assert.Equal(t, authz.StaffDashboard, w.Header().Get("Location"))
}

func TestEdgeGuard_AdminTokenOnAdminZoneAllowed(t *testing.T) {
	m := newEdgeTokenManager(t)
	guard := EdgeGuard(EdgeGuardDeps{Tokens: m})

	var reached bool
	w := httptest.NewRecorder()
	guard(okHandler(&reached)).ServeHTTP(w, edgeRequest(t, m, "/admin/usuarios", domainauth.LevelAdmin))

	assert.True(t, reached)
}

// A tampered or garbage token demotes the request to anonymous instead
// of erroring.
func TestEdgeGuard_InvalidTokenTreatedAsAnonymous(t *testing.T) {
	m := newEdgeTokenManager(t)
	guard := EdgeGuard(EdgeGuardDeps{Tokens: m})

	r := httptest.NewRequest(http.MethodGet, "/faq", nil)
	r.Header.Set("Accept", "text/html")
	r.AddCookie(&http.Cookie{Name: CookieEdgeToken, Value: "garbage"})

	var reached bool
	w := httptest.NewRecorder()
	guard(okHandler(&reached)).ServeHTTP(w, r)
	assert.True(t, reached)

	r = httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	r.Header.Set("Accept", "text/html")
	r.AddCookie(&http.Cookie{Name: CookieEdgeToken, Value: "garbage"})

	reached = false
	w = httptest.NewRecorder()
	guard(okHandler(&reached)).ServeHTTP(w, r)
	assert.False(t, reached)
	assert.Equal(t, "/inscripcion?next=%2Fdashboard", w.Header().Get("Location"))
}

func TestEdgeGuard_ExpiredTokenTreatedAsAnonymous(t *testing.T) {
	m := newEdgeTokenManager(t)
	guard := EdgeGuard(EdgeGuardDeps{Tokens: m})

	sess := sessionWithLevel("edge", domainauth.LevelAdmin)
	sess.ExpiresAt = time.Now().Add(-time.Minute)
	token, err := m.Issue(sess)
	require.NoError(t, err)

	r := httptest.NewRequest(http.MethodGet, "/admin", nil)
	r.Header.Set("Accept", "text/html")
	r.AddCookie(&http.Cookie{Name: CookieEdgeToken, Value: token})

	var reached bool
	w := httptest.NewRecorder()
	guard(okHandler(&reached)).ServeHTTP(w, r)

	assert.False(t, reached)
	assert.Equal(t, http.StatusSeeOther, w.Code)
}

package httpx

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/congresoumg/portal-gateway/internal/authz"
	domainauth "github.com/congresoumg/portal-gateway/internal/domain/auth"
	apperrors "github.com/congresoumg/portal-gateway/internal/errors"
	"github.com/congresoumg/portal-gateway/internal/ports"
)

// SessionServiceInterface defines the session operations guards and handlers need.
type SessionServiceInterface interface {
	Login(ctx context.Context, email, password string) (domainauth.Session, error)
	Resolve(ctx context.Context, sessionID string) (domainauth.Session, error)
	Revalidate(ctx context.Context, sessionID string) (domainauth.Session, error)
	Logout(ctx context.Context, sessionID string) error
}

// DenialRecorder records access denials without failing the request.
type DenialRecorder interface {
	RecordDenial(ctx context.Context, d ports.Denial)
}

// GuardDeps groups the dependencies shared by all guard middlewares.
type GuardDeps struct {
	Sessions SessionServiceInterface // Required
	Audit    DenialRecorder          // Optional: denial audit trail
	Logger   *slog.Logger            // Optional
}

func (d GuardDeps) logger() *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return slog.Default()
}

// PageGuard returns the middleware enforcing the route classification
// for whole zones. It resolves the session from the request cookie,
// evaluates the path, and either passes the request through with the
// session in context or answers the denial: browsers get a redirect to
// the verdict's target, API callers get a JSON 401/403.
func PageGuard(deps GuardDeps) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			session := deps.resolveSession(r)
			verdict := authz.Evaluate(r.URL.Path, profileOf(session), false)
			deps.serveVerdict(w, r, next, session, verdict)
		})
	}
}

// RoleLevelGuard returns a middleware allowing only profiles whose role
// level falls in [minLevel, maxLevel]. maxLevel < 0 means no upper cap.
// The cap exists for surfaces that make sense only for one band, like
// the student zone endpoints a dev admin has no business posting to.
func RoleLevelGuard(deps GuardDeps, minLevel, maxLevel int) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			session := deps.resolveSession(r)
			verdict := authz.EvaluateLevelRange(profileOf(session), false, minLevel, maxLevel)
			deps.serveVerdict(w, r, next, session, verdict)
		})
	}
}

// RoleSetGuard returns a middleware allowing only an explicit set of
// role codes. Meant for narrow staff features where a level band is the
// wrong shape.
func RoleSetGuard(deps GuardDeps, roles ...domainauth.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			session := deps.resolveSession(r)
			verdict := authz.EvaluateRoles(profileOf(session), false, roles...)
			deps.serveVerdict(w, r, next, session, verdict)
		})
	}
}

// OptionalSession returns a middleware that attaches the session to the
// request context when one resolves, without gating access. Public pages
// use it so handlers can still personalize for signed-in users.
func OptionalSession(deps GuardDeps) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if session := deps.resolveSession(r); session != nil {
				r = r.WithContext(SetSessionInContext(r.Context(), session))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// resolveSession loads and revalidates the session named by the request
// cookie. Any failure yields nil: an unresolvable session and a missing
// one look the same to the authorization decision.
func (d GuardDeps) resolveSession(r *http.Request) *domainauth.Session {
	cookie, err := r.Cookie(CookieSession)
	if err != nil || cookie.Value == "" {
		return nil
	}

	session, err := d.Sessions.Resolve(r.Context(), cookie.Value)
	if err != nil {
		if !apperrors.IsUnauthorized(err) {
			d.logger().WarnContext(r.Context(), "session resolution failed",
				"path", r.URL.Path,
				"error", err,
			)
		}
		return nil
	}
	return &session
}

func profileOf(session *domainauth.Session) *domainauth.Profile {
	if session == nil {
		return nil
	}
	return &session.Profile
}

// serveVerdict acts on the engine's output: pass through on allow,
// answer the denial otherwise.
func (d GuardDeps) serveVerdict(
	w http.ResponseWriter,
	r *http.Request,
	next http.Handler,
	session *domainauth.Session,
	verdict authz.Verdict,
) {
	switch {
	case verdict.Allowed():
		ctx := SetSessionInContext(r.Context(), session)
		next.ServeHTTP(w, r.WithContext(ctx))

	case verdict.Indeterminate():
		// No final decision means no committed navigation. Ask the
		// client to retry rather than bounce it anywhere.
		w.Header().Set("Retry-After", "1")
		WriteJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "session_restoring",
		})

	default:
		d.recordDenial(r, session, verdict, DenialLayerGuard)
		writeDenial(w, r, verdict)
	}
}

func (d GuardDeps) recordDenial(
	r *http.Request,
	session *domainauth.Session,
	verdict authz.Verdict,
	layer string,
) {
	if d.Audit == nil {
		return
	}

	denial := ports.Denial{
		Path:       r.URL.Path,
		Reason:     string(verdict.Reason),
		RedirectTo: verdict.RedirectTo,
		Layer:      layer,
	}
	if session != nil {
		denial.UserID = session.Profile.ID
		denial.Email = session.Profile.Email
		denial.RoleLevel = session.Profile.RoleLevel
	}
	d.Audit.RecordDenial(r.Context(), denial)
}

// writeDenial answers a denied request: browsers are redirected to the
// verdict's target, API callers get a JSON error carrying the reason and
// the redirect so clients can navigate themselves.
func writeDenial(w http.ResponseWriter, r *http.Request, verdict authz.Verdict) {
	if IsBrowserRequest(r) {
		http.Redirect(w, r, verdict.RedirectTo, http.StatusSeeOther)
		return
	}

	status := http.StatusForbidden
	if verdict.Reason == authz.ReasonNotAuthenticated {
		status = http.StatusUnauthorized
	}
	WriteJSON(w, status, map[string]string{
		"error":       string(verdict.Reason),
		"redirect_to": verdict.RedirectTo,
	})
}

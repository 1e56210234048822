package httpx

import (
	"log/slog"
	"net/http"

	"github.com/congresoumg/portal-gateway/internal/adapters/edgetoken"
	"github.com/congresoumg/portal-gateway/internal/authz"
	"github.com/congresoumg/portal-gateway/internal/ports"
)

// EdgeGuardDeps groups dependencies for the edge guard.
type EdgeGuardDeps struct {
	Tokens *edgetoken.Manager // Required: edge token verification
	Audit  DenialRecorder     // Optional: denial audit trail
	Logger *slog.Logger       // Optional
}

// EdgeGuard returns the outermost authorization middleware. It runs
// before any handler and decides from the signed edge token alone,
// never touching the session store or the auth backend. Its decision is
// a conservative subset of the session-backed guards: it may let a
// request through that a guard later denies, but a zone classified
// staff or above never renders without a token proving at least staff.
func EdgeGuard(deps EdgeGuardDeps) func(http.Handler) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, authenticated := deps.verifyCookie(r, logger)

			roleLevel := 0
			if claims != nil {
				roleLevel = claims.RoleLevel
			}

			verdict := authz.EvaluateEdge(r.URL.Path, roleLevel, authenticated)
			if verdict.Allowed() {
				next.ServeHTTP(w, r)
				return
			}

			deps.recordDenial(r, claims, verdict)
			writeDenial(w, r, verdict)
		})
	}
}

// verifyCookie extracts and verifies the edge token. A missing or
// invalid token makes the request anonymous at this layer; the
// session-backed guards still get their say downstream.
func (d EdgeGuardDeps) verifyCookie(r *http.Request, logger *slog.Logger) (*edgetoken.Claims, bool) {
	cookie, err := r.Cookie(CookieEdgeToken)
	if err != nil || cookie.Value == "" {
		return nil, false
	}

	claims, err := d.Tokens.Verify(cookie.Value)
	if err != nil {
		logger.DebugContext(r.Context(), "edge token rejected",
			"path", r.URL.Path,
			"error", err,
		)
		return nil, false
	}
	return claims, true
}

func (d EdgeGuardDeps) recordDenial(r *http.Request, claims *edgetoken.Claims, verdict authz.Verdict) {
	if d.Audit == nil {
		return
	}

	denial := ports.Denial{
		Path:       r.URL.Path,
		Reason:     string(verdict.Reason),
		RedirectTo: verdict.RedirectTo,
		Layer:      DenialLayerEdge,
	}
	if claims != nil {
		denial.UserID = claims.Subject
		denial.RoleLevel = claims.RoleLevel
	}
	d.Audit.RecordDenial(r.Context(), denial)
}

package httpx

import (
	"io/fs"
	"log/slog"
	"net/http"

	"github.com/congresoumg/portal-gateway/internal/adapters/edgetoken"
	domainauth "github.com/congresoumg/portal-gateway/internal/domain/auth"
	"github.com/congresoumg/portal-gateway/internal/service"
)

// RouterServices holds all the services needed by the HTTP router.
type RouterServices struct {
	Sessions *service.SessionService
	SSO      *service.SSOService   // Optional: staff SSO flow
	Audit    *service.AuditService // Optional: denial audit trail
	Tokens   *edgetoken.Manager
	Static   fs.FS // Optional: frontend bundle served under /static/
	// Configuration
	CookieDomain   string
	SSOCallbackURL string
	Logger         *slog.Logger
}

// NewRouter creates and configures the gateway's HTTP router. Every
// request flows through the edge guard first; the session-backed guards
// then enforce the full decision per zone.
func NewRouter(services RouterServices) http.Handler {
	mux := http.NewServeMux()

	deps := GuardDeps{Sessions: services.Sessions, Logger: services.Logger}
	if services.Audit != nil {
		deps.Audit = services.Audit
	}

	pages := &PageHandlers{Logger: services.Logger}
	authHandlers := &AuthHandlers{
		Sessions:     services.Sessions,
		Tokens:       services.Tokens,
		CookieDomain: services.CookieDomain,
		CallbackURL:  services.SSOCallbackURL,
		Logger:       services.Logger,
	}
	if services.SSO != nil {
		authHandlers.SSO = services.SSO
	}

	registerPublicRoutes(mux, pages, deps)
	registerStudentRoutes(mux, pages, deps)
	registerStaffRoutes(mux, pages, deps)
	registerAuthRoutes(mux, authHandlers)
	if services.Audit != nil {
		registerAuditRoutes(mux, &AuditHandlers{Svc: services.Audit}, deps)
	}

	mux.Handle("GET /healthz", http.HandlerFunc(healthHandler))
	mux.Handle("HEAD /healthz", http.HandlerFunc(healthHandler))

	if services.Static != nil {
		mux.Handle("GET /static/", http.FileServerFS(services.Static))
	}

	edge := EdgeGuard(EdgeGuardDeps{
		Tokens: services.Tokens,
		Audit:  deps.Audit,
		Logger: services.Logger,
	})

	// The edge guard fronts everything routable; browser detection sits
	// outside it so edge denials already know how to answer. Logging,
	// recovery, and compression are applied by the server bootstrap.
	return BrowserDetection()(edge(mux))
}

// registerPublicRoutes wires the public zone. The session is attached
// when present so pages can personalize, but nothing is gated.
func registerPublicRoutes(mux *http.ServeMux, h *PageHandlers, deps GuardDeps) {
	opt := OptionalSession(deps)
	mux.Handle("GET /{$}", opt(http.HandlerFunc(h.Home)))
	mux.Handle("GET /inscripcion", opt(http.HandlerFunc(h.Registration)))
	mux.Handle("GET /faq", opt(http.HandlerFunc(h.FAQ)))
	mux.Handle("GET /actividades", opt(http.HandlerFunc(h.Activities)))
	mux.Handle("GET /agenda", opt(http.HandlerFunc(h.Agenda)))
	mux.Handle("GET /ganadores", opt(http.HandlerFunc(h.Winners)))
	mux.Handle("GET /podio", opt(http.HandlerFunc(h.Podium)))
}

// registerStudentRoutes wires the authenticated student zone.
func registerStudentRoutes(mux *http.ServeMux, h *PageHandlers, deps GuardDeps) {
	guard := PageGuard(deps)
	mux.Handle("GET /mi-cuenta", guard(http.HandlerFunc(h.StudentHome)))
	mux.Handle("GET /portal", guard(http.HandlerFunc(h.Portal)))
	mux.Handle("GET /inscripcion/completar", guard(http.HandlerFunc(h.CompleteRegistration)))
}

// registerStaffRoutes wires the staff, admin, and dev admin zones. The
// page guard classifies each path itself, so one wrapper serves all
// three bands.
func registerStaffRoutes(mux *http.ServeMux, h *PageHandlers, deps GuardDeps) {
	guard := PageGuard(deps)
	mux.Handle("GET /dashboard", guard(http.HandlerFunc(h.Dashboard)))
	mux.Handle("GET /staff", guard(http.HandlerFunc(h.Staff)))
	mux.Handle("GET /admin", guard(http.HandlerFunc(h.AdminHome)))
	mux.Handle("GET /admin/usuarios", guard(http.HandlerFunc(h.AdminUsers)))
	mux.Handle("GET /admin/configuracion", guard(http.HandlerFunc(h.AdminSettings)))
	mux.Handle("GET /admin/dev", guard(http.HandlerFunc(h.AdminDev)))
}

func registerAuthRoutes(mux *http.ServeMux, h *AuthHandlers) {
	mux.HandleFunc("POST /auth/login", h.Login)
	mux.HandleFunc("POST /auth/logout", h.Logout)
	mux.HandleFunc("GET /auth/session", h.Status)
	mux.HandleFunc("GET /auth/sso/login", h.SSOLogin)
	mux.HandleFunc("GET /auth/sso/callback", h.SSOCallback)
}

// registerAuditRoutes wires the denial listing, admin level and above.
func registerAuditRoutes(mux *http.ServeMux, h *AuditHandlers, deps GuardDeps) {
	adminOnly := RoleLevelGuard(deps, domainauth.LevelAdmin, -1)
	mux.Handle("GET /api/admin/denials", adminOnly(http.HandlerFunc(h.ListDenials)))
}

package httpx

import (
	"html/template"
	"log/slog"
	"net/http"

	"github.com/congresoumg/portal-gateway/internal/authz"
)

// PageHandlers renders the server-side shells for each zone. The heavy
// page content lives in the frontend bundle; these handlers exist so
// every guarded path resolves to a real document and the guards have
// something to protect.
type PageHandlers struct {
	Logger *slog.Logger
}

var pageTemplate = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html lang="es">
<head>
  <meta charset="utf-8">
  <meta name="viewport" content="width=device-width, initial-scale=1">
  <title>{{.Title}} | Congreso UMG</title>
</head>
<body data-zone="{{.Zone}}">
  <div id="app" data-page="{{.Page}}"{{if .Email}} data-user="{{.Email}}"{{end}}></div>
  <script src="/static/js/app.js" defer></script>
</body>
</html>
`))

type pageData struct {
	Title string
	Zone  string
	Page  string
	Email string
}

func (h *PageHandlers) logger() *slog.Logger {
	if h != nil && h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

func (h *PageHandlers) render(w http.ResponseWriter, r *http.Request, title, page string) {
	data := pageData{
		Title: title,
		Zone:  authz.Classify(r.URL.Path).String(),
		Page:  page,
	}
	if profile := ProfileFromContext(r.Context()); profile != nil {
		data.Email = profile.Email
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := pageTemplate.Execute(w, data); err != nil {
		h.logger().ErrorContext(r.Context(), "failed to render page", "page", page, "error", err)
	}
}

// Home renders the public landing page.
// GET /.
func (h *PageHandlers) Home(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "Congreso Tecnológico", "home")
}

// Registration renders the combined registration and login entry. A
// browser that is already signed in is sent to its own zone instead; the
// target is always allowed for that profile, so this cannot loop.
// GET /inscripcion.
func (h *PageHandlers) Registration(w http.ResponseWriter, r *http.Request) {
	if profile := ProfileFromContext(r.Context()); profile != nil && IsBrowserRequest(r) {
		http.Redirect(w, r, authz.DefaultZone(profile), http.StatusSeeOther)
		return
	}
	h.render(w, r, "Inscripción", "registration")
}

// Public informational pages.
func (h *PageHandlers) FAQ(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "Preguntas Frecuentes", "faq")
}

func (h *PageHandlers) Activities(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "Actividades", "activities")
}

func (h *PageHandlers) Agenda(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "Agenda", "agenda")
}

func (h *PageHandlers) Winners(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "Ganadores", "winners")
}

func (h *PageHandlers) Podium(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "Podio", "podium")
}

// Student zone.
func (h *PageHandlers) StudentHome(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "Mi Cuenta", "student-home")
}

func (h *PageHandlers) Portal(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "Portal", "portal")
}

func (h *PageHandlers) CompleteRegistration(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "Completar Inscripción", "complete-registration")
}

// Staff zone.
func (h *PageHandlers) Dashboard(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "Dashboard", "dashboard")
}

func (h *PageHandlers) Staff(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "Staff", "staff")
}

// Admin zone.
func (h *PageHandlers) AdminHome(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "Administración", "admin-home")
}

func (h *PageHandlers) AdminUsers(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "Usuarios", "admin-users")
}

func (h *PageHandlers) AdminSettings(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "Configuración", "admin-settings")
}

// Dev admin zone.
func (h *PageHandlers) AdminDev(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "Herramientas Dev", "admin-dev")
}

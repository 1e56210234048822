package httpx

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/congresoumg/portal-gateway/internal/adapters/edgetoken"
	"github.com/congresoumg/portal-gateway/internal/authz"
	domainauth "github.com/congresoumg/portal-gateway/internal/domain/auth"
	apperrors "github.com/congresoumg/portal-gateway/internal/errors"
	"github.com/congresoumg/portal-gateway/internal/service"
)

// SSOServiceInterface defines the staff SSO operations the handlers need.
type SSOServiceInterface interface {
	BeginLogin(ctx context.Context, redirectURL string) (*service.BeginLoginResult, error)
	CompleteLogin(ctx context.Context, input service.CompleteLoginInput) (domainauth.Session, error)
}

// AuthHandlers provides HTTP handlers for authentication operations.
type AuthHandlers struct {
	Sessions     SessionServiceInterface
	SSO          SSOServiceInterface // Optional: nil when staff SSO is disabled
	Tokens       *edgetoken.Manager
	CookieDomain string
	CallbackURL  string // Absolute redirect URL registered with the IdP
	Logger       *slog.Logger
}

func (h *AuthHandlers) logger() *slog.Logger {
	if h != nil && h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

// loginRequest is the credential login payload.
type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Next     string `json:"next,omitempty"`
}

// Login handles credential login.
// POST /auth/login.
func (h *AuthHandlers) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	if req.Email == "" || req.Password == "" {
		WriteError(w, ErrorParams{
			Code:    http.StatusBadRequest,
			ErrCode: "missing_credentials",
			Err:     errors.New("email and password are required"),
		})
		return
	}

	session, err := h.Sessions.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if apperrors.IsUnauthorized(err) {
			WriteError(w, ErrorParams{
				Code:    http.StatusUnauthorized,
				ErrCode: "invalid_credentials",
				Err:     errors.New("invalid email or password"),
			})
			return
		}
		if apperrors.IsValidation(err) {
			WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_request", Err: err})
			return
		}
		h.logger().ErrorContext(r.Context(), "login failed", "error", err)
		WriteError(w, ErrorParams{
			Code:    http.StatusBadGateway,
			ErrCode: "login_unavailable",
			Err:     errors.New("authentication service unavailable"),
		})
		return
	}

	if !h.setSessionCookies(w, r, session) {
		return
	}

	redirectTo := safeRedirectPath(req.Next)
	if redirectTo == "/" {
		redirectTo = authz.DefaultZone(&session.Profile)
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"authenticated": true,
		"profile":       session.Profile,
		"redirect_to":   redirectTo,
		"expires_at":    session.ExpiresAt,
	})
}

// Logout handles the logout endpoint.
// POST /auth/logout.
func (h *AuthHandlers) Logout(w http.ResponseWriter, r *http.Request) {
	if sessionCookie, err := r.Cookie(CookieSession); err == nil {
		if logoutErr := h.Sessions.Logout(r.Context(), sessionCookie.Value); logoutErr != nil {
			h.logger().WarnContext(r.Context(), "logout failed", "error", logoutErr)
		}
	}

	// Clear both cookies regardless of server-side outcome.
	h.clearCookie(w, r, CookieSession)
	h.clearCookie(w, r, CookieEdgeToken)

	if IsBrowserRequest(r) {
		http.Redirect(w, r, authz.LoginPath, http.StatusSeeOther)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{
		"status":      "success",
		"redirect_to": authz.LoginPath,
	})
}

// Status returns the current authentication status.
// GET /auth/session. Pass refresh=1 to force a backend re-confirmation.
func (h *AuthHandlers) Status(w http.ResponseWriter, r *http.Request) {
	sessionCookie, err := r.Cookie(CookieSession)
	if err != nil || sessionCookie.Value == "" {
		WriteJSON(w, http.StatusOK, map[string]any{"authenticated": false})
		return
	}

	resolve := h.Sessions.Resolve
	if r.URL.Query().Get("refresh") == "1" {
		resolve = h.Sessions.Revalidate
	}

	session, err := resolve(r.Context(), sessionCookie.Value)
	if err != nil {
		if apperrors.IsUnauthorized(err) {
			// Session is invalid or expired, clear the cookies.
			h.clearCookie(w, r, CookieSession)
			h.clearCookie(w, r, CookieEdgeToken)
			WriteJSON(w, http.StatusOK, map[string]any{"authenticated": false})
			return
		}
		// Transient backend failure: report nothing definitive so the
		// client keeps its state and retries, rather than logging out.
		h.logger().WarnContext(r.Context(), "session status check failed", "error", err)
		WriteError(w, ErrorParams{
			Code:    http.StatusServiceUnavailable,
			ErrCode: "session_unavailable",
			Err:     errors.New("session could not be confirmed"),
		})
		return
	}

	// Re-issue the edge token so its claims track the freshest profile.
	if token, issueErr := h.Tokens.Issue(session); issueErr == nil {
		h.setCookie(w, r, CookieEdgeToken, token, int(time.Until(session.ExpiresAt).Seconds()))
	} else {
		h.logger().ErrorContext(r.Context(), "failed to issue edge token", "error", issueErr)
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"authenticated": true,
		"profile":       session.Profile,
		"expires_at":    session.ExpiresAt,
	})
}

// SSOLogin initiates the staff SSO flow.
// GET /auth/sso/login?next=<optional_redirect>.
func (h *AuthHandlers) SSOLogin(w http.ResponseWriter, r *http.Request) {
	if h.SSO == nil {
		WriteError(w, ErrorParams{
			Code:    http.StatusNotFound,
			ErrCode: "sso_disabled",
			Err:     errors.New("staff sign-on is not configured"),
		})
		return
	}

	next := safeRedirectPath(r.URL.Query().Get("next"))

	result, err := h.SSO.BeginLogin(r.Context(), h.CallbackURL)
	if err != nil {
		h.logger().ErrorContext(r.Context(), "sso begin failed", "error", err)
		WriteError(w, ErrorParams{
			Code:    http.StatusInternalServerError,
			ErrCode: "login_failed",
			Err:     errors.New("could not start sign-on"),
		})
		return
	}

	h.setCookie(w, r, CookieOAuthState, result.State, oauthCookieMaxAge)
	h.setCookie(w, r, CookieOAuthNonce, result.Nonce, oauthCookieMaxAge)
	h.setCookie(w, r, CookiePostLoginNext, next, oauthCookieMaxAge)

	http.Redirect(w, r, result.AuthURL, http.StatusFound)
}

// SSOCallback completes the staff SSO flow.
// GET /auth/sso/callback?code=<code>&state=<state>.
func (h *AuthHandlers) SSOCallback(w http.ResponseWriter, r *http.Request) {
	if h.SSO == nil {
		WriteError(w, ErrorParams{
			Code:    http.StatusNotFound,
			ErrCode: "sso_disabled",
			Err:     errors.New("staff sign-on is not configured"),
		})
		return
	}

	code := r.URL.Query().Get("code")
	state := r.URL.Query().Get("state")
	if code == "" || state == "" {
		WriteError(w, ErrorParams{
			Code:    http.StatusBadRequest,
			ErrCode: "missing_parameters",
			Err:     errors.New("code and state are required"),
		})
		return
	}

	stateCookie, err := r.Cookie(CookieOAuthState)
	if err != nil || stateCookie.Value != state {
		WriteError(w, ErrorParams{
			Code:    http.StatusBadRequest,
			ErrCode: "invalid_state",
			Err:     errors.New("invalid or missing state parameter"),
		})
		return
	}
	nonceCookie, err := r.Cookie(CookieOAuthNonce)
	if err != nil {
		WriteError(w, ErrorParams{
			Code:    http.StatusBadRequest,
			ErrCode: "missing_nonce",
			Err:     errors.New("missing nonce parameter"),
		})
		return
	}

	session, err := h.SSO.CompleteLogin(r.Context(), service.CompleteLoginInput{
		Code:  code,
		State: state,
		Nonce: nonceCookie.Value,
	})
	if err != nil {
		h.logger().ErrorContext(r.Context(), "sso completion failed", "error", err)
		WriteError(w, ErrorParams{
			Code:    http.StatusInternalServerError,
			ErrCode: "login_completion_failed",
			Err:     errors.New("could not complete sign-on"),
		})
		return
	}

	if !h.setSessionCookies(w, r, session) {
		return
	}
	h.clearCookie(w, r, CookieOAuthState)
	h.clearCookie(w, r, CookieOAuthNonce)

	http.Redirect(w, r, h.getPostLoginRedirect(w, r, &session.Profile), http.StatusFound)
}

// setSessionCookies writes the session and edge token cookies. Returns
// false after writing an error response if the edge token cannot be
// issued: a session without a matching edge token would dead-end staff
// users at the edge layer.
func (h *AuthHandlers) setSessionCookies(w http.ResponseWriter, r *http.Request, s domainauth.Session) bool {
	token, err := h.Tokens.Issue(s)
	if err != nil {
		h.logger().ErrorContext(r.Context(), "failed to issue edge token", "error", err)
		WriteError(w, ErrorParams{
			Code:    http.StatusInternalServerError,
			ErrCode: "login_failed",
			Err:     errors.New("could not establish session"),
		})
		return false
	}

	maxAge := int(time.Until(s.ExpiresAt).Seconds())
	h.setCookie(w, r, CookieSession, s.ID, maxAge)
	h.setCookie(w, r, CookieEdgeToken, token, maxAge)
	return true
}

func (h *AuthHandlers) setCookie(w http.ResponseWriter, r *http.Request, name, value string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   h.CookieDomain,
		HttpOnly: true,
		Secure:   isSecureRequest(r),
		SameSite: http.SameSiteLaxMode,
		MaxAge:   maxAge,
	})
}

// clearCookie clears a cookie by setting it to expire immediately.
// It mirrors key attributes (Secure, Path, Domain, SameSite) used when setting cookies
// to maximize compatibility across browsers during deletion.
func (h *AuthHandlers) clearCookie(w http.ResponseWriter, r *http.Request, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		Domain:   h.CookieDomain,
		HttpOnly: true,
		Secure:   isSecureRequest(r),
		MaxAge:   -1,
		Expires:  time.Unix(0, 0).UTC(),
		SameSite: http.SameSiteLaxMode,
	})
}

func isSecureRequest(r *http.Request) bool {
	return r.TLS != nil || strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}

// getPostLoginRedirect returns the post-login redirect URL and clears the cookie.
// An empty or unsafe value falls back to the profile's own zone.
func (h *AuthHandlers) getPostLoginRedirect(w http.ResponseWriter, r *http.Request, profile *domainauth.Profile) string {
	redirectURI := ""
	if redirectCookie, err := r.Cookie(CookiePostLoginNext); err == nil {
		redirectURI = safeRedirectPath(redirectCookie.Value)
		h.clearCookie(w, r, CookiePostLoginNext)
	}
	if redirectURI == "" || redirectURI == "/" {
		return authz.DefaultZone(profile)
	}
	return redirectURI
}

// safeRedirectPath ensures the provided redirect is a same-origin relative path
// starting with "/" and not an absolute URL. Returns "/" when invalid.
func safeRedirectPath(candidate string) string {
	if candidate == "" {
		return "/"
	}
	u, err := url.Parse(candidate)
	if err != nil || u.IsAbs() || u.Host != "" || !strings.HasPrefix(u.Path, "/") {
		return "/"
	}
	return candidate
}

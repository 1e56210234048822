package httpx

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/congresoumg/portal-gateway/internal/ports"
)

// AuditServiceInterface defines the audit operations the handlers need.
type AuditServiceInterface interface {
	RecentDenials(ctx context.Context, limit int) ([]ports.Denial, error)
}

// AuditHandlers provides HTTP handlers for the access-denial audit trail.
type AuditHandlers struct {
	Svc AuditServiceInterface
}

// ListDenials returns recent access denials, newest first.
// GET /api/admin/denials?limit=<n>.
func (h *AuditHandlers) ListDenials(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			WriteError(w, ErrorParams{
				Code:    http.StatusBadRequest,
				ErrCode: "invalid_limit",
				Err:     errors.New("limit must be a non-negative integer"),
			})
			return
		}
		limit = parsed
	}

	denials, err := h.Svc.RecentDenials(r.Context(), limit)
	if err != nil {
		WriteError(w, ErrorParams{
			Code:    http.StatusInternalServerError,
			ErrCode: "denials_unavailable",
			Err:     errors.New("could not list denials"),
		})
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"denials": denials,
		"count":   len(denials),
	})
}

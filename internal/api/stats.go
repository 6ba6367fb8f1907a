package api

import (
	"net/http"

	"github.com/erazemk/lostfound/internal/service"
)

// StatsHandler reports totals for the admin dashboard.
type StatsHandler struct {
	Users  *service.Users
	Items  *service.Items
	Claims *service.Claims
}

// Get handles GET /api/stats.
func (h *StatsHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	users, err := h.Users.Count(ctx)
	if err != nil {
		internalError(w, r, "failed to count users", err)
		return
	}
	items, err := h.Items.Stats(ctx)
	if err != nil {
		internalError(w, r, "failed to count items", err)
		return
	}
	claims, err := h.Claims.Stats(ctx)
	if err != nil {
		internalError(w, r, "failed to count claims", err)
		return
	}

	jsonResponse(w, http.StatusOK, map[string]any{
		"users":  users,
		"items":  items,
		"claims": claims,
	})
}

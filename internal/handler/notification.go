package handler

import (
	"net/http"
)

// Badge handles GET /api/v1/notifications/badge
func (h *Handler) Badge(w http.ResponseWriter, r *http.Request) {
	badge, err := h.notifications.Badge(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("failed to build badge counts")
		writeError(w, http.StatusServiceUnavailable, "store_unavailable", "Failed to build badge counts")
		return
	}

	writeJSON(w, http.StatusOK, badge)
}

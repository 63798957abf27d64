package handler

import (
	"net/http"
)

// ListSessions handles GET /api/v1/sessions
func (h *Handler) ListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.sessionSvc.ListSessions(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("failed to list sessions")
		writeError(w, http.StatusServiceUnavailable, "store_unavailable", "Failed to list sessions")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"sessions": sessions})
}

// CheckSession handles GET /api/v1/sessions/check. It answers whether
// the subject currently holds an active session for the resource; a
// subject with no session gets active=false, never an error.
func (h *Handler) CheckSession(w http.ResponseWriter, r *http.Request) {
	subjectID := r.URL.Query().Get("subjectId")
	resourceURL := r.URL.Query().Get("resourceUrl")
	if subjectID == "" || resourceURL == "" {
		writeError(w, http.StatusBadRequest, "validation_error", "subjectId and resourceUrl are required")
		return
	}

	active, session, err := h.sessionSvc.HasActiveSession(r.Context(), subjectID, resourceURL)
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", err.Error())
		return
	}

	resp := map[string]any{"active": active}
	if session != nil {
		resp["session"] = session
	}
	writeJSON(w, http.StatusOK, resp)
}

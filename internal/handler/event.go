package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gatepass/gatepass/internal/model"
	"github.com/gatepass/gatepass/internal/service"
)

// RecordEventBody is the payload for POST /api/v1/events
type RecordEventBody struct {
	Type        string `json:"type" validate:"required"`
	SubjectID   string `json:"subjectId"`
	ResourceURL string `json:"resourceUrl"`
	RequestID   string `json:"requestId"`
	DeviceID    string `json:"deviceId"`
	Details     string `json:"details"`
}

// RecordEvent handles POST /api/v1/events. Clients report events they
// observe, a blocked action for instance; persistence is batched so the
// entry may land in the log shortly after the 202.
func (h *Handler) RecordEvent(w http.ResponseWriter, r *http.Request) {
	var body RecordEventBody
	if err := readValidJSON(r, &body); err != nil {
		writeErrorWithDetails(w, http.StatusBadRequest, "validation_error", "Invalid event payload", validationDetails(err))
		return
	}

	err := h.auditSvc.Record(model.Event{
		Kind:        model.EventKind(body.Type),
		SubjectID:   body.SubjectID,
		ResourceURL: body.ResourceURL,
		RequestID:   body.RequestID,
		DeviceID:    body.DeviceID,
		Details:     body.Details,
	})
	if err != nil {
		if errors.Is(err, service.ErrInvalidEvent) {
			writeError(w, http.StatusBadRequest, "validation_error", err.Error())
			return
		}
		h.log.Error().Err(err).Msg("failed to record event")
		writeError(w, http.StatusInternalServerError, "internal_error", "Failed to record event")
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{"status": "accepted"})
}

// ListEvents handles GET /api/v1/events
func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	query := service.AuditQuery{
		Kind:            model.EventKind(r.URL.Query().Get("type")),
		SubjectContains: r.URL.Query().Get("subject"),
	}

	if raw := r.URL.Query().Get("from"); raw != "" {
		from, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "validation_error", "from must be an RFC 3339 timestamp")
			return
		}
		query.From = &from
	}
	if raw := r.URL.Query().Get("to"); raw != "" {
		to, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "validation_error", "to must be an RFC 3339 timestamp")
			return
		}
		query.To = &to
	}

	entries, err := h.auditSvc.Query(r.Context(), query)
	if err != nil {
		if errors.Is(err, service.ErrInvalidEvent) {
			writeError(w, http.StatusBadRequest, "validation_error", err.Error())
			return
		}
		h.log.Error().Err(err).Msg("failed to query events")
		writeError(w, http.StatusServiceUnavailable, "store_unavailable", "Failed to query events")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"events": entries})
}

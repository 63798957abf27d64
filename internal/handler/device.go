package handler

import (
	"errors"
	"net/http"

	"github.com/gatepass/gatepass/internal/model"
	"github.com/gatepass/gatepass/internal/service"
)

// HeartbeatBody is the payload for POST /api/v1/devices/heartbeat
type HeartbeatBody struct {
	DeviceID       string `json:"deviceId" validate:"required"`
	SubjectID      string `json:"subjectId" validate:"required"`
	DisplayEmail   string `json:"displayEmail" validate:"omitempty,email"`
	UserAgent      string `json:"userAgent"`
	NetworkAddress string `json:"networkAddress"`
}

// Heartbeat handles POST /api/v1/devices/heartbeat. The write is
// best-effort; a store outage still yields 202 so clients never stall
// on presence reporting.
func (h *Handler) Heartbeat(w http.ResponseWriter, r *http.Request) {
	var body HeartbeatBody
	if err := readValidJSON(r, &body); err != nil {
		writeErrorWithDetails(w, http.StatusBadRequest, "validation_error", "Invalid heartbeat payload", validationDetails(err))
		return
	}

	profile := model.DeviceProfile{
		DisplayEmail:   body.DisplayEmail,
		UserAgent:      body.UserAgent,
		NetworkAddress: body.NetworkAddress,
	}
	if profile.UserAgent == "" {
		profile.UserAgent = r.UserAgent()
	}
	if profile.NetworkAddress == "" {
		profile.NetworkAddress = getClientIP(r)
	}

	if err := h.deviceSvc.Heartbeat(r.Context(), body.DeviceID, body.SubjectID, profile); err != nil {
		if errors.Is(err, service.ErrInvalidInput) {
			writeError(w, http.StatusBadRequest, "validation_error", err.Error())
			return
		}
		h.log.Error().Err(err).Msg("failed to process heartbeat")
		writeError(w, http.StatusInternalServerError, "internal_error", "Failed to process heartbeat")
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{"status": "accepted"})
}

// ListDevices handles GET /api/v1/devices
func (h *Handler) ListDevices(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	switch model.DeviceStatus(status) {
	case "", model.DeviceActive, model.DeviceRemoved:
	default:
		writeError(w, http.StatusBadRequest, "validation_error", "Unknown device status")
		return
	}

	devices, err := h.deviceSvc.List(r.Context(), service.DeviceFilter{
		Status:          model.DeviceStatus(status),
		SubjectContains: r.URL.Query().Get("subject"),
	})
	if err != nil {
		h.log.Error().Err(err).Msg("failed to list devices")
		writeError(w, http.StatusServiceUnavailable, "store_unavailable", "Failed to list devices")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"devices": devices})
}

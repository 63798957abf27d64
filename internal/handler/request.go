package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gatepass/gatepass/internal/middleware"
	"github.com/gatepass/gatepass/internal/model"
	"github.com/gatepass/gatepass/internal/service"
	"github.com/gatepass/gatepass/internal/store"
)

// SubmitRequestBody is the payload for POST /api/v1/requests
type SubmitRequestBody struct {
	SubjectID       string `json:"subjectId" validate:"required"`
	ResourceURL     string `json:"resourceUrl" validate:"required,url"`
	DurationMinutes int    `json:"requestedDurationMinutes" validate:"required,gt=0"`
	DurationKind    string `json:"durationKind" validate:"omitempty,oneof=preset custom"`
}

// SubmitRequest handles POST /api/v1/requests
func (h *Handler) SubmitRequest(w http.ResponseWriter, r *http.Request) {
	var body SubmitRequestBody
	if err := readValidJSON(r, &body); err != nil {
		writeErrorWithDetails(w, http.StatusBadRequest, "validation_error", "Invalid request payload", validationDetails(err))
		return
	}

	kind := model.DurationKind(body.DurationKind)
	if kind == "" {
		kind = model.DurationPreset
	}

	req, err := h.requestSvc.Submit(r.Context(), service.SubmitInput{
		SubjectID:       body.SubjectID,
		ResourceURL:     body.ResourceURL,
		DurationMinutes: body.DurationMinutes,
		DurationKind:    kind,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidInput), errors.Is(err, service.ErrInvalidDuration):
			writeError(w, http.StatusBadRequest, "validation_error", err.Error())
		case errors.Is(err, store.ErrUnavailable):
			writeError(w, http.StatusServiceUnavailable, "store_unavailable", "The durable store is unavailable")
		default:
			h.log.Error().Err(err).Msg("failed to submit request")
			writeError(w, http.StatusInternalServerError, "internal_error", "Failed to submit request")
		}
		return
	}

	writeJSON(w, http.StatusCreated, req)
}

// ListRequests handles GET /api/v1/requests
func (h *Handler) ListRequests(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")

	var (
		requests []*model.AccessRequest
		err      error
	)
	switch model.RequestStatus(status) {
	case "":
		requests, err = h.requestSvc.ListAll(r.Context())
	case model.RequestPending:
		requests, err = h.requestSvc.ListPending(r.Context())
	case model.RequestApproved, model.RequestDenied:
		var all []*model.AccessRequest
		all, err = h.requestSvc.ListAll(r.Context())
		for _, req := range all {
			if req.Status == model.RequestStatus(status) {
				requests = append(requests, req)
			}
		}
	default:
		writeError(w, http.StatusBadRequest, "validation_error", "Unknown request status")
		return
	}
	if err != nil {
		h.log.Error().Err(err).Msg("failed to list requests")
		writeError(w, http.StatusServiceUnavailable, "store_unavailable", "Failed to list requests")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"requests": requests})
}

// ApproveRequest handles POST /api/v1/requests/{id}/approve
func (h *Handler) ApproveRequest(w http.ResponseWriter, r *http.Request) {
	h.resolveRequest(w, r, h.requestSvc.Approve)
}

// DenyRequest handles POST /api/v1/requests/{id}/deny
func (h *Handler) DenyRequest(w http.ResponseWriter, r *http.Request) {
	h.resolveRequest(w, r, h.requestSvc.Deny)
}

func (h *Handler) resolveRequest(w http.ResponseWriter, r *http.Request, resolve func(ctx context.Context, requestID, approverID string) (*model.AccessRequest, error)) {
	requestID := r.PathValue("id")
	if requestID == "" {
		writeError(w, http.StatusBadRequest, "validation_error", "Request ID is required")
		return
	}

	approverID := middleware.ApproverFromContext(r.Context())
	if approverID == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized", "Authentication required")
		return
	}

	req, err := resolve(r.Context(), requestID, approverID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrRequestNotFound):
			writeError(w, http.StatusNotFound, "not_found", "Request not found")
		case errors.Is(err, service.ErrRequestResolved):
			details := map[string]any{}
			if req != nil {
				details["status"] = req.Status
				details["version"] = req.Version
			}
			writeErrorWithDetails(w, http.StatusConflict, "already_resolved", "Request has already been resolved", details)
		case errors.Is(err, service.ErrConcurrentUpdate):
			writeError(w, http.StatusConflict, "conflict", "Request was modified concurrently, retry")
		case errors.Is(err, service.ErrInvalidInput):
			writeError(w, http.StatusBadRequest, "validation_error", err.Error())
		case errors.Is(err, store.ErrUnavailable):
			writeError(w, http.StatusServiceUnavailable, "store_unavailable", "The durable store is unavailable")
		default:
			h.log.Error().Err(err).Str("request_id", requestID).Msg("failed to resolve request")
			writeError(w, http.StatusInternalServerError, "internal_error", "Failed to resolve request")
		}
		return
	}

	writeJSON(w, http.StatusOK, req)
}

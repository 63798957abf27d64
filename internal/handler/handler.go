package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/gatepass/gatepass/internal/config"
	"github.com/gatepass/gatepass/internal/logger"
	"github.com/gatepass/gatepass/internal/service"
	"github.com/gatepass/gatepass/internal/store"
)

// Handler holds all HTTP handlers
type Handler struct {
	st            store.Store
	log           *logger.Logger
	cfg           *config.Config
	requestSvc    *service.RequestService
	sessionSvc    *service.SessionService
	deviceSvc     *service.DeviceService
	auditSvc      *service.AuditService
	notifications *service.NotificationService
	adminSvc      *service.AdminService
	started       time.Time
}

// New creates a new Handler instance
func New(st store.Store, log *logger.Logger, cfg *config.Config, requestSvc *service.RequestService, sessionSvc *service.SessionService, deviceSvc *service.DeviceService, auditSvc *service.AuditService, notifications *service.NotificationService, adminSvc *service.AdminService) *Handler {
	return &Handler{
		st:            st,
		log:           log,
		cfg:           cfg,
		requestSvc:    requestSvc,
		sessionSvc:    sessionSvc,
		deviceSvc:     deviceSvc,
		auditSvc:      auditSvc,
		notifications: notifications,
		adminSvc:      adminSvc,
		started:       time.Now(),
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// errorEnvelope is the uniform error response shape.
type errorEnvelope struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorEnvelope{Error: errorBody{Code: code, Message: message}})
}

func writeErrorWithDetails(w http.ResponseWriter, status int, code, message string, details map[string]any) {
	writeJSON(w, status, errorEnvelope{Error: errorBody{Code: code, Message: message, Details: details}})
}

func readJSON(r *http.Request, v any) error {
	if r.Body == nil {
		return errors.New("empty request body")
	}
	defer r.Body.Close()

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// readValidJSON decodes the body into v and runs struct validation
func readValidJSON(r *http.Request, v any) error {
	if err := readJSON(r, v); err != nil {
		return err
	}
	return validate.Struct(v)
}

// validationDetails flattens validator field errors for error responses
func validationDetails(err error) map[string]any {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return nil
	}
	details := make(map[string]any, len(fieldErrs))
	for _, fe := range fieldErrs {
		details[fe.Field()] = fe.Tag()
	}
	return details
}

// getClientIP extracts the originating client address, preferring the
// first hop of X-Forwarded-For when a proxy filled it in
func getClientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		return strings.TrimSpace(first)
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	return r.RemoteAddr
}

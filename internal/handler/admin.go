package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gatepass/gatepass/internal/service"
)

// AdminLoginBody is the payload for POST /api/v1/admin/login
type AdminLoginBody struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
	// TotpCode is required when a TOTP secret is configured.
	TotpCode string `json:"totpCode"`
}

// AdminLogin handles POST /api/v1/admin/login
func (h *Handler) AdminLogin(w http.ResponseWriter, r *http.Request) {
	var body AdminLoginBody
	if err := readValidJSON(r, &body); err != nil {
		writeErrorWithDetails(w, http.StatusBadRequest, "validation_error", "Invalid login payload", validationDetails(err))
		return
	}

	token, expiresAt, err := h.adminSvc.Login(r.Context(), body.Username, body.Password, body.TotpCode)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrTOTPRequired):
			writeError(w, http.StatusUnauthorized, "totp_required", "A TOTP code is required")
		case errors.Is(err, service.ErrInvalidCredentials):
			writeError(w, http.StatusUnauthorized, "invalid_credentials", "Invalid username or password")
		case errors.Is(err, service.ErrAdminDisabled):
			writeError(w, http.StatusForbidden, "admin_disabled", "No admin account is configured")
		default:
			h.log.Error().Err(err).Msg("admin login failed")
			writeError(w, http.StatusInternalServerError, "internal_error", "Could not complete the login")
		}
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     "gatepass_admin_token",
		Value:    token,
		Path:     "/",
		MaxAge:   int(time.Until(expiresAt).Seconds()),
		HttpOnly: true,
		Secure:   h.cfg.Server.TLS.Enabled,
		SameSite: http.SameSiteLaxMode,
	})

	writeJSON(w, http.StatusOK, map[string]any{
		"token":     token,
		"tokenType": "Bearer",
		"expiresAt": expiresAt.UTC().Format(time.RFC3339),
	})
}

// AdminTOTPSetup handles POST /api/v1/admin/totp/setup. It generates a
// fresh second-factor secret for the operator to copy into the server
// configuration; nothing is persisted.
func (h *Handler) AdminTOTPSetup(w http.ResponseWriter, r *http.Request) {
	setup, err := h.adminSvc.GenerateTOTP(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("TOTP setup failed")
		writeError(w, http.StatusInternalServerError, "internal_error", "Failed to generate TOTP secret")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"secret":     setup.Secret,
		"otpauthUrl": setup.OtpauthURL,
		"qrCode":     setup.QRCodePNG,
	})
}

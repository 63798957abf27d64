package service

import (
	"context"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/pquerna/otp/totp"
	qrcode "github.com/skip2/go-qrcode"

	"github.com/gatepass/gatepass/internal/auth"
	"github.com/gatepass/gatepass/internal/config"
	"github.com/gatepass/gatepass/internal/logger"
)

var (
	// ErrInvalidCredentials is returned when a login attempt fails
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAdminDisabled is returned when no admin account is configured
	ErrAdminDisabled = errors.New("admin account is not configured")
	// ErrTOTPRequired is returned when a second factor is configured but
	// the login attempt did not carry a code
	ErrTOTPRequired = errors.New("a TOTP code is required")
)

// AdminService authenticates the operator account that approves and
// denies requests. There is a single configured admin; its identity
// becomes the approver id recorded on resolutions.
type AdminService struct {
	tokens *auth.TokenService
	cfg    *config.Config
	log    *logger.Logger
}

// NewAdminService creates a new AdminService
func NewAdminService(tokens *auth.TokenService, cfg *config.Config, log *logger.Logger) *AdminService {
	return &AdminService{
		tokens: tokens,
		cfg:    cfg,
		log:    log.WithComponent("admin_service"),
	}
}

// Login verifies the admin credentials and issues a bearer token
// carrying the approver identity. When a TOTP secret is configured the
// code becomes a required second factor.
func (s *AdminService) Login(ctx context.Context, username, password, totpCode string) (string, time.Time, error) {
	admin := s.cfg.Admin
	if admin.Username == "" || (admin.PasswordHash == "" && admin.Password == "") {
		return "", time.Time{}, ErrAdminDisabled
	}

	usernameOK := subtle.ConstantTimeCompare([]byte(username), []byte(admin.Username)) == 1

	var passwordOK bool
	if admin.PasswordHash != "" {
		ok, err := auth.VerifyPassword(password, admin.PasswordHash)
		if err != nil {
			s.log.Error().Err(err).Msg("admin password hash is malformed")
			return "", time.Time{}, fmt.Errorf("failed to verify credentials: %w", err)
		}
		passwordOK = ok
	} else {
		passwordOK = subtle.ConstantTimeCompare([]byte(password), []byte(admin.Password)) == 1
	}

	if !usernameOK || !passwordOK {
		s.log.Warn().Str("username", username).Msg("failed admin login attempt")
		return "", time.Time{}, ErrInvalidCredentials
	}

	if admin.TOTPSecret != "" {
		if totpCode == "" {
			return "", time.Time{}, ErrTOTPRequired
		}
		if !totp.Validate(totpCode, admin.TOTPSecret) {
			s.log.Warn().Str("username", username).Msg("failed admin login attempt: bad TOTP code")
			return "", time.Time{}, ErrInvalidCredentials
		}
	}

	token, expiresAt, err := s.tokens.GenerateToken(admin.Username)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to issue admin token: %w", err)
	}

	s.log.Info().Str("username", admin.Username).Time("expires_at", expiresAt).Msg("admin logged in")
	return token, expiresAt, nil
}

// TOTPSetup holds a freshly generated second-factor secret. The secret
// is not stored anywhere; the operator copies it into the configuration
// to activate it.
type TOTPSetup struct {
	Secret     string
	OtpauthURL string
	// QRCodePNG is the provisioning QR code as a base64 encoded PNG.
	QRCodePNG string
}

// GenerateTOTP creates a new TOTP secret with a provisioning QR code for
// authenticator apps.
func (s *AdminService) GenerateTOTP(ctx context.Context) (*TOTPSetup, error) {
	issuer := s.cfg.Admin.TokenIssuer
	if issuer == "" {
		issuer = "gatepass"
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      issuer,
		AccountName: s.cfg.Admin.Username,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create TOTP secret: %w", err)
	}

	png, err := qrcode.Encode(key.URL(), qrcode.Medium, 256)
	if err != nil {
		return nil, fmt.Errorf("failed to render provisioning QR code: %w", err)
	}

	s.log.Info().Str("username", s.cfg.Admin.Username).Msg("TOTP secret generated")

	return &TOTPSetup{
		Secret:     key.Secret(),
		OtpauthURL: key.URL(),
		QRCodePNG:  base64.StdEncoding.EncodeToString(png),
	}, nil
}

package service

import (
	"context"
	"encoding/base64"
	"testing"
	"time"

	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatepass/gatepass/internal/auth"
	"github.com/gatepass/gatepass/internal/config"
	"github.com/gatepass/gatepass/internal/logger"
)

func newAdminService(t *testing.T, mutate func(*config.AdminConfig)) *AdminService {
	t.Helper()
	cfg := testConfig()
	cfg.Admin = config.AdminConfig{
		Username:    "root@example.com",
		Password:    "open sesame",
		TokenSecret: "0123456789abcdef0123456789abcdef",
		TokenTTL:    time.Hour,
		TokenIssuer: "gatepass",
	}
	if mutate != nil {
		mutate(&cfg.Admin)
	}
	tokens, err := auth.NewTokenService(cfg.Admin)
	require.NoError(t, err)
	return NewAdminService(tokens, cfg, logger.New("error", "json"))
}

func TestAdminService_LoginIssuesToken(t *testing.T) {
	svc := newAdminService(t, nil)

	token, expiresAt, err := svc.Login(context.Background(), "root@example.com", "open sesame", "")
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.True(t, expiresAt.After(time.Now()))
}

func TestAdminService_LoginRejectsBadCredentials(t *testing.T) {
	svc := newAdminService(t, nil)

	_, _, err := svc.Login(context.Background(), "root@example.com", "wrong", "")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, _, err = svc.Login(context.Background(), "intruder@example.com", "open sesame", "")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestAdminService_LoginVerifiesArgonHash(t *testing.T) {
	hash, err := auth.HashPassword("open sesame")
	require.NoError(t, err)
	svc := newAdminService(t, func(admin *config.AdminConfig) {
		admin.Password = ""
		admin.PasswordHash = hash
	})

	_, _, err = svc.Login(context.Background(), "root@example.com", "open sesame", "")
	assert.NoError(t, err)

	_, _, err = svc.Login(context.Background(), "root@example.com", "wrong", "")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestAdminService_LoginDisabledWithoutCredentials(t *testing.T) {
	svc := newAdminService(t, func(admin *config.AdminConfig) {
		admin.Password = ""
		admin.PasswordHash = ""
	})

	_, _, err := svc.Login(context.Background(), "root@example.com", "anything", "")
	assert.ErrorIs(t, err, ErrAdminDisabled)
}

func TestAdminService_LoginEnforcesTOTP(t *testing.T) {
	setupSvc := newAdminService(t, nil)
	setup, err := setupSvc.GenerateTOTP(context.Background())
	require.NoError(t, err)

	svc := newAdminService(t, func(admin *config.AdminConfig) {
		admin.TOTPSecret = setup.Secret
	})

	// Correct password without a code is not enough.
	_, _, err = svc.Login(context.Background(), "root@example.com", "open sesame", "")
	assert.ErrorIs(t, err, ErrTOTPRequired)

	_, _, err = svc.Login(context.Background(), "root@example.com", "open sesame", "000000")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	code, err := totp.GenerateCode(setup.Secret, time.Now())
	require.NoError(t, err)
	token, _, err := svc.Login(context.Background(), "root@example.com", "open sesame", code)
	require.NoError(t, err)
	assert.NotEmpty(t, token)
}

func TestAdminService_GenerateTOTP(t *testing.T) {
	svc := newAdminService(t, nil)

	setup, err := svc.GenerateTOTP(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, setup.Secret)
	assert.Contains(t, setup.OtpauthURL, "otpauth://totp/")
	assert.Contains(t, setup.OtpauthURL, "gatepass")

	png, err := base64.StdEncoding.DecodeString(setup.QRCodePNG)
	require.NoError(t, err)
	assert.Equal(t, []byte("\x89PNG"), png[:4])

	// The generated secret is immediately usable.
	code, err := totp.GenerateCode(setup.Secret, time.Now())
	require.NoError(t, err)
	assert.True(t, totp.Validate(code, setup.Secret))
}

package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatepass/gatepass/internal/config"
)

func testTokenConfig() config.AdminConfig {
	return config.AdminConfig{
		TokenSecret: "0123456789abcdef0123456789abcdef",
		TokenTTL:    time.Hour,
		TokenIssuer: "gatepass",
	}
}

func TestTokenService_GenerateAndValidate(t *testing.T) {
	svc, err := NewTokenService(testTokenConfig())
	require.NoError(t, err)

	token, expiresAt, err := svc.GenerateToken("root@example.com")
	require.NoError(t, err)
	assert.True(t, expiresAt.After(time.Now()))

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "root@example.com", claims.Subject)
	assert.Equal(t, "gatepass", claims.Issuer)
	assert.NotEmpty(t, claims.ID)
}

func TestNewTokenService_RequiresStrongSecret(t *testing.T) {
	cfg := testTokenConfig()
	cfg.TokenSecret = ""
	_, err := NewTokenService(cfg)
	assert.Error(t, err)

	cfg.TokenSecret = "short"
	_, err = NewTokenService(cfg)
	assert.Error(t, err)
}

func TestTokenService_RejectsForeignToken(t *testing.T) {
	svc, err := NewTokenService(testTokenConfig())
	require.NoError(t, err)

	other := testTokenConfig()
	other.TokenSecret = "ffffffffffffffffffffffffffffffff"
	otherSvc, err := NewTokenService(other)
	require.NoError(t, err)

	token, _, err := otherSvc.GenerateToken("root@example.com")
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	assert.Error(t, err)
}

func TestTokenService_RejectsExpiredToken(t *testing.T) {
	cfg := testTokenConfig()
	cfg.TokenTTL = -time.Minute
	svc, err := NewTokenService(cfg)
	require.NoError(t, err)

	token, _, err := svc.GenerateToken("root@example.com")
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	assert.Error(t, err)
}

func TestTokenService_RejectsWrongIssuer(t *testing.T) {
	issuer := testTokenConfig()
	issuer.TokenIssuer = "someone-else"
	issuing, err := NewTokenService(issuer)
	require.NoError(t, err)

	token, _, err := issuing.GenerateToken("root@example.com")
	require.NoError(t, err)

	validating, err := NewTokenService(testTokenConfig())
	require.NoError(t, err)
	_, err = validating.ValidateToken(token)
	assert.Error(t, err)

	_, err = validating.ValidateToken("not.a.token")
	assert.Error(t, err)
}

package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/gatepass/gatepass/internal/config"
)

// TokenService issues and validates the bearer tokens that carry the
// approver identity on admin routes. Tokens are HS256-signed with the
// configured secret; there is no refresh flow, an expired token means
// logging in again.
type TokenService struct {
	cfg config.AdminConfig
}

// NewTokenService creates a new TokenService
func NewTokenService(cfg config.AdminConfig) (*TokenService, error) {
	if cfg.TokenSecret == "" {
		return nil, errors.New("admin token secret is not configured")
	}
	if len(cfg.TokenSecret) < 32 {
		return nil, errors.New("admin token secret must be at least 32 bytes")
	}
	return &TokenService{cfg: cfg}, nil
}

// GenerateToken creates a signed token for the given approver identity
func (s *TokenService) GenerateToken(approverID string) (string, time.Time, error) {
	issued := time.Now()
	expiresAt := issued.Add(s.cfg.TokenTTL)

	claims := jwt.RegisteredClaims{
		Issuer:    s.cfg.TokenIssuer,
		Subject:   approverID,
		IssuedAt:  jwt.NewNumericDate(issued),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
		ID:        uuid.NewString(),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.cfg.TokenSecret))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// ValidateToken checks the signature, issuer and expiry, returning the
// verified claims
func (s *TokenService) ValidateToken(raw string) (*jwt.RegisteredClaims, error) {
	token, err := jwt.ParseWithClaims(raw, &jwt.RegisteredClaims{}, s.signingKey,
		jwt.WithIssuer(s.cfg.TokenIssuer),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)
	if err != nil {
		return nil, fmt.Errorf("token rejected: %w", err)
	}

	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok || !token.Valid {
		return nil, errors.New("token rejected: unusable claims")
	}
	if claims.Subject == "" {
		return nil, errors.New("token rejected: no subject")
	}
	return claims, nil
}

func (s *TokenService) signingKey(*jwt.Token) (any, error) {
	return []byte(s.cfg.TokenSecret), nil
}

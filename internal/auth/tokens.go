// Package auth mints and validates the JWT session pair handed out after a
// successful biometric identification.
package auth

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/condoplex/facegate/internal/biometric"
	"github.com/condoplex/facegate/internal/config"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token has expired")
	ErrWrongUse     = errors.New("token used for wrong purpose")
)

// Token use values distinguish access from refresh tokens so a refresh token
// can never authorize an API call.
const (
	useAccess  = "access"
	useRefresh = "refresh"
)

// Claims carry the identity and the biometric attempt that produced the
// session.
type Claims struct {
	IdentityID string `json:"identity_id"`
	AttemptID  string `json:"attempt_id,omitempty"`
	Use        string `json:"use"`
	jwt.RegisteredClaims
}

// Manager signs and validates session tokens with a shared HS256 secret.
type Manager struct {
	signingKey []byte
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
}

func NewManager(cfg *config.AuthConfig) (*Manager, error) {
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT secret is required")
	}
	return &Manager{
		signingKey: []byte(cfg.JWTSecret),
		issuer:     cfg.Issuer,
		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,
	}, nil
}

func (m *Manager) sign(identityID, attemptID, use string, ttl time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		IdentityID: identityID,
		AttemptID:  attemptID,
		Use:        use,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    m.issuer,
			Subject:   identityID,
			ID:        uuid.NewString(),
		},
	})
	return token.SignedString(m.signingKey)
}

// Issue mints an access and refresh token pair for an identity that passed a
// biometric check. Implements biometric.TokenIssuer.
func (m *Manager) Issue(ctx context.Context, identityID, attemptID string) (*biometric.Session, error) {
	access, err := m.sign(identityID, attemptID, useAccess, m.accessTTL)
	if err != nil {
		return nil, err
	}
	refresh, err := m.sign(identityID, attemptID, useRefresh, m.refreshTTL)
	if err != nil {
		return nil, err
	}
	return &biometric.Session{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresAt:    time.Now().Add(m.accessTTL),
	}, nil
}

func (m *Manager) validate(tokenString, use string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return m.signingKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}
	if !parsed.Valid {
		return nil, ErrInvalidToken
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || claims.IdentityID == "" {
		return nil, ErrInvalidToken
	}
	if claims.Use != use {
		return nil, ErrWrongUse
	}
	return claims, nil
}

// ValidateAccess checks an access token and returns its claims.
func (m *Manager) ValidateAccess(tokenString string) (*Claims, error) {
	return m.validate(tokenString, useAccess)
}

// Refresh exchanges a valid refresh token for a fresh session pair.
func (m *Manager) Refresh(ctx context.Context, refreshToken string) (*biometric.Session, error) {
	claims, err := m.validate(refreshToken, useRefresh)
	if err != nil {
		return nil, err
	}
	return m.Issue(ctx, claims.IdentityID, claims.AttemptID)
}

// Verify interface compliance.
var _ biometric.TokenIssuer = (*Manager)(nil)

package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/condoplex/facegate/internal/config"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager(&config.AuthConfig{
		JWTSecret:  "test-secret",
		Issuer:     "facegate-test",
		AccessTTL:  30 * time.Minute,
		RefreshTTL: 24 * time.Hour,
	})
	if err != nil {
		t.Fatalf("failed to create manager: %v", err)
	}
	return m
}

func TestNewManager_RequiresSecret(t *testing.T) {
	_, err := NewManager(&config.AuthConfig{})
	if err == nil {
		t.Error("expected error for missing secret")
	}
}

func TestIssueAndValidate(t *testing.T) {
	m := newTestManager(t)

	session, err := m.Issue(context.Background(), "alice", "attempt-1")
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	if session.AccessToken == "" || session.RefreshToken == "" {
		t.Fatal("incomplete session pair")
	}
	if session.AccessToken == session.RefreshToken {
		t.Error("access and refresh tokens must differ")
	}

	claims, err := m.ValidateAccess(session.AccessToken)
	if err != nil {
		t.Fatalf("ValidateAccess failed: %v", err)
	}
	if claims.IdentityID != "alice" {
		t.Errorf("expected identity alice, got %q", claims.IdentityID)
	}
	if claims.AttemptID != "attempt-1" {
		t.Errorf("expected attempt-1, got %q", claims.AttemptID)
	}
	if claims.Issuer != "facegate-test" {
		t.Errorf("unexpected issuer %q", claims.Issuer)
	}
}

func TestValidateAccess_RejectsRefreshToken(t *testing.T) {
	m := newTestManager(t)
	session, _ := m.Issue(context.Background(), "alice", "")

	if _, err := m.ValidateAccess(session.RefreshToken); !errors.Is(err, ErrWrongUse) {
		t.Errorf("expected ErrWrongUse, got %v", err)
	}
}

func TestValidateAccess_RejectsGarbage(t *testing.T) {
	m := newTestManager(t)
	if _, err := m.ValidateAccess("not.a.token"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken, got %v", err)
	}
}

func TestValidateAccess_RejectsForeignSignature(t *testing.T) {
	m := newTestManager(t)
	other, err := NewManager(&config.AuthConfig{
		JWTSecret:  "different-secret",
		Issuer:     "facegate-test",
		AccessTTL:  30 * time.Minute,
		RefreshTTL: 24 * time.Hour,
	})
	if err != nil {
		t.Fatalf("failed to create second manager: %v", err)
	}

	session, _ := other.Issue(context.Background(), "alice", "")
	if _, err := m.ValidateAccess(session.AccessToken); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken, got %v", err)
	}
}

func TestValidateAccess_Expired(t *testing.T) {
	m, err := NewManager(&config.AuthConfig{
		JWTSecret:  "test-secret",
		Issuer:     "facegate-test",
		AccessTTL:  -time.Minute,
		RefreshTTL: 24 * time.Hour,
	})
	if err != nil {
		t.Fatalf("failed to create manager: %v", err)
	}

	session, _ := m.Issue(context.Background(), "alice", "")
	if _, err := m.ValidateAccess(session.AccessToken); !errors.Is(err, ErrExpiredToken) {
		t.Errorf("expected ErrExpiredToken, got %v", err)
	}
}

func TestRefresh(t *testing.T) {
	m := newTestManager(t)
	session, _ := m.Issue(context.Background(), "alice", "attempt-1")

	renewed, err := m.Refresh(context.Background(), session.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}

	claims, err := m.ValidateAccess(renewed.AccessToken)
	if err != nil {
		t.Fatalf("renewed access token invalid: %v", err)
	}
	if claims.IdentityID != "alice" {
		t.Errorf("identity lost on refresh: %q", claims.IdentityID)
	}

	// Access tokens cannot be used to refresh.
	if _, err := m.Refresh(context.Background(), session.AccessToken); !errors.Is(err, ErrWrongUse) {
		t.Errorf("expected ErrWrongUse, got %v", err)
	}
}

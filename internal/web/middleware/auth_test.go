package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/condoplex/facegate/internal/auth"
	"github.com/condoplex/facegate/internal/config"
)

func newTokenManager(t *testing.T) *auth.Manager {
	t.Helper()
	m, err := auth.NewManager(&config.AuthConfig{
		JWTSecret:  "test-secret",
		Issuer:     "facegate-test",
		AccessTTL:  30 * time.Minute,
		RefreshTTL: 24 * time.Hour,
	})
	if err != nil {
		t.Fatalf("failed to create token manager: %v", err)
	}
	return m
}

func TestRequireAuth(t *testing.T) {
	tokens := newTokenManager(t)
	var seenIdentity string
	handler := RequireAuth(tokens)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenIdentity = IdentityFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	session, err := tokens.Issue(context.Background(), "alice", "")
	if err != nil {
		t.Fatalf("failed to issue session: %v", err)
	}

	tests := []struct {
		name       string
		header     string
		wantStatus int
	}{
		{"valid token", "Bearer " + session.AccessToken, http.StatusOK},
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized},
		{"garbage token", "Bearer not.a.token", http.StatusUnauthorized},
		{"refresh token rejected", "Bearer " + session.RefreshToken, http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seenIdentity = ""
			req := httptest.NewRequest("GET", "/api/v1/enrollments", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			recorder := httptest.NewRecorder()
			handler.ServeHTTP(recorder, req)

			if recorder.Code != tt.wantStatus {
				t.Errorf("expected status %d, got %d", tt.wantStatus, recorder.Code)
			}
			if tt.wantStatus == http.StatusOK && seenIdentity != "alice" {
				t.Errorf("expected identity alice in context, got %q", seenIdentity)
			}
		})
	}
}

func TestIdentityFromContext_Empty(t *testing.T) {
	if id := IdentityFromContext(context.Background()); id != "" {
		t.Errorf("expected empty identity, got %q", id)
	}
}

package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/condoplex/facegate/internal/auth"
)

// AuthHandler serves session maintenance endpoints.
type AuthHandler struct {
	tokens *auth.Manager
}

func NewAuthHandler(tokens *auth.Manager) *AuthHandler {
	return &AuthHandler{tokens: tokens}
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// Refresh handles POST /auth/refresh, exchanging a refresh token for a new
// session pair.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RefreshToken == "" {
		respondError(w, http.StatusBadRequest, "invalid_input", "invalid request body")
		return
	}

	session, err := h.tokens.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "unauthorized", "invalid or expired refresh token")
		return
	}
	respondJSON(w, http.StatusOK, session)
}

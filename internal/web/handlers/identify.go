package handlers

import (
	"log"
	"net/http"

	"github.com/condoplex/facegate/internal/biometric"
)

// IdentifyHandler serves the face login endpoint.
type IdentifyHandler struct {
	service *biometric.Service
}

func NewIdentifyHandler(service *biometric.Service) *IdentifyHandler {
	return &IdentifyHandler{service: service}
}

// identifyResponse pairs the match decision with the session minted for it.
type identifyResponse struct {
	Decision *biometric.Decision `json:"decision"`
	Session  *biometric.Session  `json:"session,omitempty"`
}

// Identify handles POST /identify. A match returns 200 with a session pair;
// no match is 401. Ambiguity and extraction failures map through the shared
// error taxonomy.
func (h *IdentifyHandler) Identify(w http.ResponseWriter, r *http.Request) {
	probe, err := readImageUpload(r)
	if err != nil || len(probe) == 0 {
		respondError(w, http.StatusBadRequest, "invalid_input", "missing or unreadable image upload")
		return
	}

	decision, session, err := h.service.Identify(r.Context(), probe)
	if err != nil {
		log.Printf("identify failed: %v", err)
		respondBiometricError(w, err)
		return
	}

	log.Printf("identify attempt=%s matched=%t", decision.AttemptID, decision.Matched)
	if !decision.Matched {
		respondJSON(w, http.StatusUnauthorized, identifyResponse{Decision: decision})
		return
	}
	respondJSON(w, http.StatusOK, identifyResponse{Decision: decision, Session: session})
}

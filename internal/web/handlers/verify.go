package handlers

import (
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/condoplex/facegate/internal/biometric"
)

// VerifyHandler serves 1:1 verification requests.
type VerifyHandler struct {
	service *biometric.Service
}

func NewVerifyHandler(service *biometric.Service) *VerifyHandler {
	return &VerifyHandler{service: service}
}

// Verify handles POST /enrollments/{identityID}/verify. The probe image
// arrives as a multipart "image" part or raw body. The decision is always
// 200; matched or not is in the body.
func (h *VerifyHandler) Verify(w http.ResponseWriter, r *http.Request) {
	identityID := chi.URLParam(r, "identityID")

	probe, err := readImageUpload(r)
	if err != nil || len(probe) == 0 {
		respondError(w, http.StatusBadRequest, "invalid_input", "missing or unreadable image upload")
		return
	}

	decision, err := h.service.Verify(r.Context(), identityID, probe)
	if err != nil {
		log.Printf("verify %s failed: %v", sanitizeForLog(identityID), err)
		respondBiometricError(w, err)
		return
	}

	log.Printf("verify %s attempt=%s matched=%t mode=%s",
		sanitizeForLog(identityID), decision.AttemptID, decision.Matched, decision.Mode)
	respondJSON(w, http.StatusOK, decision)
}

package handlers

import (
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/condoplex/facegate/internal/biometric"
	"github.com/condoplex/facegate/internal/database"
)

// EnrollmentsHandler serves the enrollment lifecycle endpoints.
type EnrollmentsHandler struct {
	manager *biometric.Manager
	service *biometric.Service
}

func NewEnrollmentsHandler(manager *biometric.Manager, service *biometric.Service) *EnrollmentsHandler {
	return &EnrollmentsHandler{manager: manager, service: service}
}

// enrollmentResponse is the wire form of an enrollment record. Photo bytes
// and raw embeddings never leave the service.
type enrollmentResponse struct {
	IdentityID  string                   `json:"identity_id"`
	DisplayName string                   `json:"display_name,omitempty"`
	State       database.EnrollmentState `json:"state"`
	Model       string                   `json:"model,omitempty"`
	Confidence  float64                  `json:"confidence,omitempty"`
	UpdatedAt   time.Time                `json:"updated_at"`
}

func toEnrollmentResponse(rec *database.EnrollmentRecord) enrollmentResponse {
	return enrollmentResponse{
		IdentityID:  rec.IdentityID,
		DisplayName: rec.DisplayName,
		State:       rec.State(),
		Model:       rec.Model,
		Confidence:  rec.Confidence,
		UpdatedAt:   rec.UpdatedAt,
	}
}

// Enroll handles PUT /enrollments/{identityID}. The photo arrives as a
// multipart "image" part (or raw body); an optional "display_name" form
// value labels the identity.
//
// A failed extraction still stores the photo, so the error status comes with
// the persisted state in the body.
func (h *EnrollmentsHandler) Enroll(w http.ResponseWriter, r *http.Request) {
	identityID := chi.URLParam(r, "identityID")

	photo, err := readImageUpload(r)
	if err != nil || len(photo) == 0 {
		respondError(w, http.StatusBadRequest, "invalid_input", "missing or unreadable image upload")
		return
	}
	displayName := r.FormValue("display_name")

	rec, err := h.manager.Enroll(r.Context(), identityID, displayName, photo)
	if err != nil {
		log.Printf("enroll %s failed: %v", sanitizeForLog(identityID), err)
		if rec != nil {
			// Photo persisted, extraction failed. Report both.
			respondJSON(w, enrollFailureStatus(err), map[string]any{
				"error_code": enrollFailureCode(err),
				"enrollment": toEnrollmentResponse(rec),
			})
			return
		}
		respondBiometricError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, toEnrollmentResponse(rec))
}

func enrollFailureStatus(err error) int {
	switch enrollFailureCode(err) {
	case "no_face_detected":
		return http.StatusUnprocessableEntity
	case "extraction_timeout":
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func enrollFailureCode(err error) string {
	switch {
	case errors.Is(err, biometric.ErrNoFaceDetected):
		return "no_face_detected"
	case errors.Is(err, biometric.ErrExtractionTimeout):
		return "extraction_timeout"
	case errors.Is(err, biometric.ErrDimensionMismatch):
		return "dimension_mismatch"
	default:
		return "internal"
	}
}

// Status handles GET /enrollments/{identityID}.
func (h *EnrollmentsHandler) Status(w http.ResponseWriter, r *http.Request) {
	identityID := chi.URLParam(r, "identityID")

	rec, err := h.manager.Status(r.Context(), identityID)
	if err != nil {
		respondBiometricError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, toEnrollmentResponse(rec))
}

// Clear handles DELETE /enrollments/{identityID}. Removes photo and
// embedding; the identity itself stays.
func (h *EnrollmentsHandler) Clear(w http.ResponseWriter, r *http.Request) {
	identityID := chi.URLParam(r, "identityID")

	if err := h.manager.Clear(r.Context(), identityID); err != nil {
		respondBiometricError(w, err)
		return
	}
	log.Printf("enrollment cleared for %s", sanitizeForLog(identityID))
	respondJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

// List handles GET /enrollments. An optional ?q= filters by display name,
// ignoring case and diacritics.
func (h *EnrollmentsHandler) List(w http.ResponseWriter, r *http.Request) {
	entries, err := h.service.Roster(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		respondBiometricError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"enrollments": entries,
		"count":       len(entries),
	})
}

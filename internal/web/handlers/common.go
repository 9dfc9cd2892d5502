package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/condoplex/facegate/internal/biometric"
)

// maxUploadBytes caps photo uploads. Typical phone photos stay well below.
const maxUploadBytes = 16 << 20

// sanitizeForLog removes newlines and carriage returns to prevent log injection.
func sanitizeForLog(s string) string {
	return strings.NewReplacer("\n", "", "\r", "").Replace(s)
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// respondError sends an error response with a stable machine-readable code.
func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, map[string]string{"error": message, "error_code": code})
}

// respondBiometricError maps the biometric error taxonomy onto HTTP. Internal
// error detail never reaches the client.
func respondBiometricError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, biometric.ErrInvalidInput):
		respondError(w, http.StatusBadRequest, "invalid_input", "image could not be decoded")
	case errors.Is(err, biometric.ErrNoFaceDetected):
		respondError(w, http.StatusUnprocessableEntity, "no_face_detected", "no face detected in image")
	case errors.Is(err, biometric.ErrNotEnrolled):
		respondError(w, http.StatusConflict, "not_enrolled", "identity has no usable enrollment")
	case errors.Is(err, biometric.ErrNotFound):
		respondError(w, http.StatusNotFound, "not_found", "identity not found")
	case errors.Is(err, biometric.ErrAmbiguousMatch):
		respondError(w, http.StatusConflict, "ambiguous_match", "multiple enrolled identities match")
	case errors.Is(err, biometric.ErrExtractionTimeout):
		respondError(w, http.StatusGatewayTimeout, "extraction_timeout", "embedding extraction timed out")
	case errors.Is(err, biometric.ErrDimensionMismatch):
		respondError(w, http.StatusInternalServerError, "dimension_mismatch", "embedding dimension mismatch")
	default:
		respondError(w, http.StatusInternalServerError, "internal", "internal error")
	}
}

// readImageUpload reads the uploaded image from a request. Accepts either a
// multipart form with an "image" part or a raw body.
func readImageUpload(r *http.Request) ([]byte, error) {
	r.Body = http.MaxBytesReader(nil, r.Body, maxUploadBytes)

	contentType := r.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "multipart/form-data") {
		if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
			return nil, err
		}
		file, _, err := r.FormFile("image")
		if err != nil {
			return nil, err
		}
		defer file.Close()
		return io.ReadAll(file)
	}

	return io.ReadAll(r.Body)
}

// HealthCheck handles the health check endpoint.
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}

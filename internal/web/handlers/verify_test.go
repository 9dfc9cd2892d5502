package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/condoplex/facegate/internal/biometric"
	"github.com/condoplex/facegate/internal/extractor"
)

func verifyRequest(t *testing.T, identityID string, probe []byte) *http.Request {
	t.Helper()
	req := multipartImageRequest(t, "POST", "/api/v1/enrollments/"+identityID+"/verify", probe, nil)
	return withURLParam(req, "identityID", identityID)
}

func TestVerifyHandler_Match(t *testing.T) {
	env := newTestEnv(t)
	enrollHandler := NewEnrollmentsHandler(env.manager, env.service)
	handler := NewVerifyHandler(env.service)

	recorder := httptest.NewRecorder()
	enrollHandler.Enroll(recorder, enrollRequest(t, "alice", testPhoto(t, 1), "Alice"))
	assertStatusCode(t, recorder, http.StatusOK)

	// Same extractor output: distance zero, clear match.
	recorder = httptest.NewRecorder()
	handler.Verify(recorder, verifyRequest(t, "alice", testPhoto(t, 2)))
	assertStatusCode(t, recorder, http.StatusOK)

	var decision biometric.Decision
	parseJSONResponse(t, recorder, &decision)
	if !decision.Matched {
		t.Error("expected match")
	}
	if decision.Mode != biometric.ModeVerify {
		t.Errorf("expected verify mode, got %s", decision.Mode)
	}
	if decision.Distance == nil || *decision.Distance != 0 {
		t.Errorf("expected zero distance, got %v", decision.Distance)
	}
}

func TestVerifyHandler_NonMatchIsStill200(t *testing.T) {
	env := newTestEnv(t)
	enrollHandler := NewEnrollmentsHandler(env.manager, env.service)
	handler := NewVerifyHandler(env.service)

	recorder := httptest.NewRecorder()
	enrollHandler.Enroll(recorder, enrollRequest(t, "alice", testPhoto(t, 1), "Alice"))
	assertStatusCode(t, recorder, http.StatusOK)

	env.ext.result = &extractor.Result{
		Embedding: []float32{5, 5, 5, 5},
		Model:     "buffalo_l",
		Dim:       testDim,
	}

	recorder = httptest.NewRecorder()
	handler.Verify(recorder, verifyRequest(t, "alice", testPhoto(t, 2)))
	assertStatusCode(t, recorder, http.StatusOK)

	var decision biometric.Decision
	parseJSONResponse(t, recorder, &decision)
	if decision.Matched {
		t.Error("expected non-match")
	}
}

func TestVerifyHandler_NotEnrolled(t *testing.T) {
	env := newTestEnv(t)
	handler := NewVerifyHandler(env.service)

	recorder := httptest.NewRecorder()
	handler.Verify(recorder, verifyRequest(t, "nobody", testPhoto(t, 1)))
	assertStatusCode(t, recorder, http.StatusConflict)

	var resp map[string]string
	parseJSONResponse(t, recorder, &resp)
	if resp["error_code"] != "not_enrolled" {
		t.Errorf("expected not_enrolled, got %q", resp["error_code"])
	}
}

func TestVerifyHandler_NoFace(t *testing.T) {
	env := newTestEnv(t)
	enrollHandler := NewEnrollmentsHandler(env.manager, env.service)
	handler := NewVerifyHandler(env.service)

	recorder := httptest.NewRecorder()
	enrollHandler.Enroll(recorder, enrollRequest(t, "alice", testPhoto(t, 1), "Alice"))
	assertStatusCode(t, recorder, http.StatusOK)

	env.ext.err = extractor.ErrNoFaceFound
	recorder = httptest.NewRecorder()
	handler.Verify(recorder, verifyRequest(t, "alice", testPhoto(t, 2)))
	assertStatusCode(t, recorder, http.StatusUnprocessableEntity)
}

func TestVerifyHandler_ExtractionTimeout(t *testing.T) {
	env := newTestEnv(t)
	enrollHandler := NewEnrollmentsHandler(env.manager, env.service)
	handler := NewVerifyHandler(env.service)

	recorder := httptest.NewRecorder()
	enrollHandler.Enroll(recorder, enrollRequest(t, "alice", testPhoto(t, 1), "Alice"))
	assertStatusCode(t, recorder, http.StatusOK)

	env.ext.err = extractor.ErrTimeout
	recorder = httptest.NewRecorder()
	handler.Verify(recorder, verifyRequest(t, "alice", testPhoto(t, 2)))
	assertStatusCode(t, recorder, http.StatusGatewayTimeout)
}

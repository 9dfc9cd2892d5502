package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/condoplex/facegate/internal/database"
	"github.com/condoplex/facegate/internal/extractor"
)

func enrollRequest(t *testing.T, identityID string, photo []byte, displayName string) *http.Request {
	t.Helper()
	fields := map[string]string{}
	if displayName != "" {
		fields["display_name"] = displayName
	}
	req := multipartImageRequest(t, "PUT", "/api/v1/enrollments/"+identityID, photo, fields)
	return withURLParam(req, "identityID", identityID)
}

func TestEnrollmentsHandler_Enroll_Success(t *testing.T) {
	env := newTestEnv(t)
	handler := NewEnrollmentsHandler(env.manager, env.service)

	recorder := httptest.NewRecorder()
	handler.Enroll(recorder, enrollRequest(t, "alice", testPhoto(t, 1), "Alice"))

	assertStatusCode(t, recorder, http.StatusOK)
	var resp enrollmentResponse
	parseJSONResponse(t, recorder, &resp)
	if resp.State != database.StateEmbedded {
		t.Errorf("expected embedded state, got %s", resp.State)
	}
	if resp.DisplayName != "Alice" {
		t.Errorf("expected display name Alice, got %q", resp.DisplayName)
	}
}

func TestEnrollmentsHandler_Enroll_InvalidImage(t *testing.T) {
	env := newTestEnv(t)
	handler := NewEnrollmentsHandler(env.manager, env.service)

	recorder := httptest.NewRecorder()
	handler.Enroll(recorder, enrollRequest(t, "alice", []byte("junk"), ""))

	assertStatusCode(t, recorder, http.StatusBadRequest)
}

func TestEnrollmentsHandler_Enroll_NoFaceReportsPersistedState(t *testing.T) {
	env := newTestEnv(t)
	env.ext.err = extractor.ErrNoFaceFound
	handler := NewEnrollmentsHandler(env.manager, env.service)

	recorder := httptest.NewRecorder()
	handler.Enroll(recorder, enrollRequest(t, "alice", testPhoto(t, 1), "Alice"))

	assertStatusCode(t, recorder, http.StatusUnprocessableEntity)
	var resp struct {
		ErrorCode  string             `json:"error_code"`
		Enrollment enrollmentResponse `json:"enrollment"`
	}
	parseJSONResponse(t, recorder, &resp)
	if resp.ErrorCode != "no_face_detected" {
		t.Errorf("expected no_face_detected, got %q", resp.ErrorCode)
	}
	if resp.Enrollment.State != database.StatePhotoOnly {
		t.Errorf("photo must be kept on extraction failure, state %s", resp.Enrollment.State)
	}
}

func TestEnrollmentsHandler_StatusAndClear(t *testing.T) {
	env := newTestEnv(t)
	handler := NewEnrollmentsHandler(env.manager, env.service)

	recorder := httptest.NewRecorder()
	handler.Enroll(recorder, enrollRequest(t, "alice", testPhoto(t, 1), "Alice"))
	assertStatusCode(t, recorder, http.StatusOK)

	// Status
	req := withURLParam(httptest.NewRequest("GET", "/api/v1/enrollments/alice", nil), "identityID", "alice")
	recorder = httptest.NewRecorder()
	handler.Status(recorder, req)
	assertStatusCode(t, recorder, http.StatusOK)
	var status enrollmentResponse
	parseJSONResponse(t, recorder, &status)
	if status.State != database.StateEmbedded {
		t.Errorf("expected embedded, got %s", status.State)
	}

	// Clear
	req = withURLParam(httptest.NewRequest("DELETE", "/api/v1/enrollments/alice", nil), "identityID", "alice")
	recorder = httptest.NewRecorder()
	handler.Clear(recorder, req)
	assertStatusCode(t, recorder, http.StatusOK)

	// Status now empty
	req = withURLParam(httptest.NewRequest("GET", "/api/v1/enrollments/alice", nil), "identityID", "alice")
	recorder = httptest.NewRecorder()
	handler.Status(recorder, req)
	var cleared enrollmentResponse
	parseJSONResponse(t, recorder, &cleared)
	if cleared.State != database.StateEmpty {
		t.Errorf("expected empty after clear, got %s", cleared.State)
	}
}

func TestEnrollmentsHandler_Status_NotFound(t *testing.T) {
	env := newTestEnv(t)
	handler := NewEnrollmentsHandler(env.manager, env.service)

	req := withURLParam(httptest.NewRequest("GET", "/api/v1/enrollments/nobody", nil), "identityID", "nobody")
	recorder := httptest.NewRecorder()
	handler.Status(recorder, req)
	assertStatusCode(t, recorder, http.StatusNotFound)
}

func TestEnrollmentsHandler_Clear_NotFound(t *testing.T) {
	env := newTestEnv(t)
	handler := NewEnrollmentsHandler(env.manager, env.service)

	req := withURLParam(httptest.NewRequest("DELETE", "/api/v1/enrollments/nobody", nil), "identityID", "nobody")
	recorder := httptest.NewRecorder()
	handler.Clear(recorder, req)
	assertStatusCode(t, recorder, http.StatusNotFound)
}

func TestEnrollmentsHandler_List(t *testing.T) {
	env := newTestEnv(t)
	handler := NewEnrollmentsHandler(env.manager, env.service)

	recorder := httptest.NewRecorder()
	handler.Enroll(recorder, enrollRequest(t, "u1", testPhoto(t, 1), "José García"))
	assertStatusCode(t, recorder, http.StatusOK)
	recorder = httptest.NewRecorder()
	handler.Enroll(recorder, enrollRequest(t, "u2", testPhoto(t, 2), "Jan Novák"))
	assertStatusCode(t, recorder, http.StatusOK)

	recorder = httptest.NewRecorder()
	handler.List(recorder, httptest.NewRequest("GET", "/api/v1/enrollments?q=jose", nil))
	assertStatusCode(t, recorder, http.StatusOK)

	var resp struct {
		Enrollments []struct {
			IdentityID string `json:"identity_id"`
		} `json:"enrollments"`
		Count int `json:"count"`
	}
	parseJSONResponse(t, recorder, &resp)
	if resp.Count != 1 || resp.Enrollments[0].IdentityID != "u1" {
		t.Errorf("unexpected filter result: %+v", resp)
	}
}

package handlers

import (
	"encoding/json"
	"net/http/httptest"
	"testing"
)

func assertErrorResponse(t *testing.T, rr *httptest.ResponseRecorder, wantStatus int, wantError string) {
	t.Helper()
	if rr.Code != wantStatus {
		t.Fatalf("expected status %d, got %d", wantStatus, rr.Code)
	}
	var body map[string]string
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	if body["error"] != wantError {
		t.Fatalf("expected error %q, got %q", wantError, body["error"])
	}
}

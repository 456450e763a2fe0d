package httputil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestError(t *testing.T) {
	w := httptest.NewRecorder()
	Error(w, http.StatusNotFound, "NOT_FOUND", "file not found")

	if w.Code != http.StatusNotFound {
		t.Errorf("want 404, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("want application/json, got %s", ct)
	}
	var resp ErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if resp.Code != "NOT_FOUND" || resp.Reason != "" {
		t.Errorf("unexpected body: %+v", resp)
	}
}

func TestDenied(t *testing.T) {
	w := httptest.NewRecorder()
	Denied(w, "expired")

	var resp ErrorResponse
	json.NewDecoder(w.Body).Decode(&resp)
	if w.Code != http.StatusForbidden || resp.Code != "ACCESS_DENIED" || resp.Reason != "expired" {
		t.Errorf("unexpected response %d %+v", w.Code, resp)
	}
}

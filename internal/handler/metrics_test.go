package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gatehouse/gatehouse/internal/metrics"
)

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()

	recorder := metrics.NewInMemory()
	recorder.IncRegistration("created")
	recorder.IncLogin("success")

	h := NewMetricsHandler(recorder)
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	h.Metrics(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var snap metrics.Snapshot
	if err := json.Unmarshal(rec.Body.Bytes(), &snap); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if snap.Registrations["created"] != 1 {
		t.Errorf("expected 1 created registration, got %d", snap.Registrations["created"])
	}
	if snap.Logins["success"] != 1 {
		t.Errorf("expected 1 successful login, got %d", snap.Logins["success"])
	}
}

func TestMetricsEndpoint_NotConfigured(t *testing.T) {
	t.Parallel()

	h := NewMetricsHandler(nil)
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	h.Metrics(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

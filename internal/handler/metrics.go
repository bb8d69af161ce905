package handler

import (
	"net/http"

	"github.com/gatehouse/gatehouse/internal/metrics"
)

// MetricsHandler exposes the in-memory metrics snapshot.
type MetricsHandler struct {
	snapshotter metrics.Snapshotter
}

// NewMetricsHandler creates a new MetricsHandler.
func NewMetricsHandler(s metrics.Snapshotter) *MetricsHandler {
	return &MetricsHandler{snapshotter: s}
}

// Metrics returns current counters as JSON.
//
// GET /metrics
func (h *MetricsHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	if h.snapshotter == nil {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "metrics not enabled")
		return
	}
	writeJSON(w, http.StatusOK, h.snapshotter.Snapshot())
}

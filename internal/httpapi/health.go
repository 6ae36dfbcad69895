package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// HealthStatus is the GET /health/full response body.
type HealthStatus struct {
	Status     string               `json:"status"`
	Timestamp  time.Time            `json:"timestamp"`
	Components map[string]Component `json:"components"`
}

// Component is one dependency's health.
type Component struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Latency int64  `json:"latencyMs,omitempty"`
}

type healthHandler struct {
	dbPing func(context.Context) error
}

func (h *healthHandler) full(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	status := HealthStatus{
		Timestamp:  time.Now().UTC(),
		Status:     "healthy",
		Components: make(map[string]Component),
	}

	start := time.Now()
	err := h.dbPing(ctx)
	latency := time.Since(start).Milliseconds()
	if err != nil {
		status.Components["database"] = Component{Status: "unhealthy", Message: err.Error(), Latency: latency}
		status.Status = "unhealthy"
	} else {
		status.Components["database"] = Component{Status: "healthy", Latency: latency}
	}

	httpStatus := http.StatusOK
	if status.Status == "unhealthy" {
		httpStatus = http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatus)
	json.NewEncoder(w).Encode(status)
}

func (h *healthHandler) ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	if err := h.dbPing(ctx); err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("database unavailable"))
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (h *healthHandler) live(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("alive"))
}

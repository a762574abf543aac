package http

import (
	"encoding/json"
	"net/http"
	"time"

	"lexvoice-server/pkg/version"
)

// HealthStatus is the response body for the /health endpoint
type HealthStatus struct {
	Status      string            `json:"status"`
	Version     string            `json:"version"`
	Uptime      string            `json:"uptime"`
	ActiveCalls int               `json:"active_calls"`
	Components  map[string]string `json:"components"`
}

// HealthHandler reports overall service health. Degraded external
// connections (AMQP) do not make the service unhealthy; calls proceed
// without them.
func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	health := HealthStatus{
		Status:     "healthy",
		Version:    version.Version,
		Uptime:     time.Since(s.startTime).String(),
		Components: make(map[string]string),
	}

	if s.metricsProvider != nil {
		health.ActiveCalls = s.metricsProvider.GetActiveCallCount()
	}

	health.Components["http"] = "up"
	if s.amqpReporter != nil {
		if s.amqpReporter.IsConnected() {
			health.Components["amqp"] = "up"
		} else {
			health.Components["amqp"] = "down"
			health.Status = "degraded"
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(health)
}

// LivenessHandler is the static liveness indicator
func (s *Server) LivenessHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("alive"))
}

// ReadinessHandler reports readiness to accept calls
func (s *Server) ReadinessHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ready"))
}

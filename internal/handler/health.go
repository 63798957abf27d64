package handler

import (
	"io"
	"net/http"
	"time"

	"github.com/gatepass/gatepass/internal/version"
)

// HealthResponse is the body of GET /health
type HealthResponse struct {
	Status   string            `json:"status"`
	Version  string            `json:"version"`
	Uptime   string            `json:"uptime"`
	Services map[string]string `json:"services"`
}

// Health reports liveness plus the state of each dependency. An
// unhealthy dependency turns the overall status to "degraded" and the
// response into a 503.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	services := map[string]string{
		"store": "healthy",
	}
	overall := "healthy"
	status := http.StatusOK

	if err := h.st.HealthCheck(r.Context()); err != nil {
		h.log.Warn().Err(err).Msg("store health check failed")
		services["store"] = "unhealthy"
		overall = "degraded"
		status = http.StatusServiceUnavailable
	}

	writeJSON(w, status, HealthResponse{
		Status:   overall,
		Version:  version.Version,
		Uptime:   time.Since(h.started).Truncate(time.Second).String(),
		Services: services,
	})
}

// Ready answers 200 only when the store is reachable, for readiness
// probes that gate traffic
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	if err := h.st.HealthCheck(r.Context()); err != nil {
		http.Error(w, "store not ready", http.StatusServiceUnavailable)
		return
	}

	io.WriteString(w, "ready\n")
}

// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/okian/warden/internal/domain/classifier"
	"github.com/okian/warden/pkg/metrics"
)

// HealthDependencies defines the interface for health reads.
type HealthDependencies interface {
	ModelState() (classifier.State, error)
}

// HealthHandler handles health check and metrics requests.
type HealthHandler struct {
	deps HealthDependencies
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(deps HealthDependencies) *HealthHandler {
	return &HealthHandler{deps: deps}
}

// healthResponse reports process and model health. The service stays "ok"
// on model failure: the pipeline degrades to UNKNOWN results, it does not
// go down.
type healthResponse struct {
	Status     string `json:"status"`
	ModelState string `json:"model_state"`
	ModelError string `json:"model_error,omitempty"`
}

// HandleHealth handles GET /healthz requests.
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	state, err := h.deps.ModelState()
	resp := healthResponse{Status: "ok", ModelState: state.String()}
	if err != nil {
		resp.ModelError = err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleMetrics serves the Prometheus registry.
func (h *HealthHandler) HandleMetrics(w http.ResponseWriter, r *http.Request) {
	promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{}).ServeHTTP(w, r)
}

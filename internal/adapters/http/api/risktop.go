// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/okian/warden/internal/adapters/repository"
)

// RiskTopDependencies defines the interface for the at-risk listing.
type RiskTopDependencies interface {
	TopRisk(ctx context.Context, n int) []repository.ScoreEntry
}

// RiskTopHandler handles top-risk listing requests.
type RiskTopHandler struct {
	deps     RiskTopDependencies
	maxLimit int
}

// NewRiskTopHandler creates a new top-risk handler.
func NewRiskTopHandler(deps RiskTopDependencies, maxLimit int) *RiskTopHandler {
	return &RiskTopHandler{deps: deps, maxLimit: maxLimit}
}

// HandleGetTop handles GET /risk/top?limit=N requests.
func (h *RiskTopHandler) HandleGetTop(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_risk_top"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	limitStr := r.URL.Query().Get("limit")
	n, err := strconv.Atoi(limitStr)
	if err != nil || n < 1 {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}
	if n > h.maxLimit {
		writeError(w, http.StatusBadRequest, "limit_exceeded", NewKind(op, ErrBadRequest))
		return
	}
	entries := h.deps.TopRisk(r.Context(), n)
	if entries == nil {
		entries = []repository.ScoreEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

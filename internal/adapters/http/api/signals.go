// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/okian/warden/internal/domain/scoring"
)

// SignalsDependencies defines the interface for the diagnostics surface.
type SignalsDependencies interface {
	Signals(ctx context.Context, userID, warrantyID string) scoring.SignalsReport
}

// SignalsHandler handles signal summary requests.
type SignalsHandler struct {
	deps SignalsDependencies
}

// NewSignalsHandler creates a new signals handler.
func NewSignalsHandler(deps SignalsDependencies) *SignalsHandler {
	return &SignalsHandler{deps: deps}
}

// HandleGetSignals handles GET /signals?user_id=&warranty_id= requests.
func (h *SignalsHandler) HandleGetSignals(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_signals"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	userID := strings.TrimSpace(r.URL.Query().Get("user_id"))
	warrantyID := strings.TrimSpace(r.URL.Query().Get("warranty_id"))
	if userID == "" || warrantyID == "" {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}
	writeJSON(w, http.StatusOK, h.deps.Signals(r.Context(), userID, warrantyID))
}

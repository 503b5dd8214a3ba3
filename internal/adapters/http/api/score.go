// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/okian/warden/internal/domain/model"
)

// ScoreDependencies defines the interface for score reads.
type ScoreDependencies interface {
	Score(ctx context.Context, userID, warrantyID, productType string) model.ScoreResult
}

// ScoreHandler handles risk score requests.
type ScoreHandler struct {
	deps ScoreDependencies
}

// NewScoreHandler creates a new score handler.
func NewScoreHandler(deps ScoreDependencies) *ScoreHandler {
	return &ScoreHandler{deps: deps}
}

// HandleGetScore handles GET /score?user_id=&warranty_id=&product_type= requests.
// Scoring itself never fails; the only error here is a malformed query.
func (h *ScoreHandler) HandleGetScore(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_score"
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
	productType := r.URL.Query().Get("product_type")

	result := h.deps.Score(r.Context(), userID, warrantyID, productType)
	writeJSON(w, http.StatusOK, result)
}

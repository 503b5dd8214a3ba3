// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/okian/warden/internal/domain/evbattery"
)

// EVScoreDependencies defines the interface for EV battery scoring.
type EVScoreDependencies interface {
	ScoreEV(ctx context.Context, features evbattery.Features) evbattery.Score
}

// EVScoreHandler handles EV battery score requests.
type EVScoreHandler struct {
	deps EVScoreDependencies
}

// NewEVScoreHandler creates a new EV score handler.
func NewEVScoreHandler(deps EVScoreDependencies) *EVScoreHandler {
	return &EVScoreHandler{deps: deps}
}

// evScoreRequest mirrors the POST /score/ev schema. Features is a sparse
// document; omitted keys take the model defaults.
type evScoreRequest struct {
	Features map[string]float64 `json:"features"`
}

// HandlePostEVScore handles POST /score/ev requests.
func (h *EVScoreHandler) HandlePostEVScore(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_ev_score"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req evScoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	result := h.deps.ScoreEV(r.Context(), evbattery.Features(req.Features))
	writeJSON(w, http.StatusOK, result)
}

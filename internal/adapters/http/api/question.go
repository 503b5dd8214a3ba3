// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"net/http"
	"strings"
)

// QuestionDependencies defines the interface for questionnaire prompts.
type QuestionDependencies interface {
	NextQuestion(ctx context.Context, userID, productType, warrantyID string) (string, error)
}

// QuestionHandler serves the next due questionnaire prompt.
type QuestionHandler struct {
	deps QuestionDependencies
}

// NewQuestionHandler creates a new question handler.
func NewQuestionHandler(deps QuestionDependencies) *QuestionHandler {
	return &QuestionHandler{deps: deps}
}

// questionResponse carries the next prompt. Due is false while the profile
// is inside its cooldown.
type questionResponse struct {
	UserID     string `json:"user_id"`
	WarrantyID string `json:"warranty_id,omitempty"`
	Due        bool   `json:"due"`
	Question   string `json:"question,omitempty"`
}

// HandleGetQuestion handles GET /behaviour/question?user_id=&warranty_id=&product_type= requests.
func (h *QuestionHandler) HandleGetQuestion(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_behaviour_question"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	q := r.URL.Query()
	userID := strings.TrimSpace(q.Get("user_id"))
	warrantyID := strings.TrimSpace(q.Get("warranty_id"))
	productType := strings.TrimSpace(q.Get("product_type"))
	if userID == "" {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}

	question, err := h.deps.NextQuestion(r.Context(), userID, productType, warrantyID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, questionResponse{
		UserID:     userID,
		WarrantyID: warrantyID,
		Due:        question != "",
		Question:   question,
	})
}

// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/okian/warden/internal/domain/model"
)

// BehaviourDependencies defines the interface for questionnaire updates.
type BehaviourDependencies interface {
	AnswerBehaviour(ctx context.Context, userID, productType, warrantyID, questionID, answerValue string) (model.BehaviourProfile, error)
}

// BehaviourHandler handles questionnaire answer submissions.
type BehaviourHandler struct {
	deps BehaviourDependencies
}

// NewBehaviourHandler creates a new behaviour handler.
func NewBehaviourHandler(deps BehaviourDependencies) *BehaviourHandler {
	return &BehaviourHandler{deps: deps}
}

// answerRequest mirrors the POST /behaviour/answer schema.
type answerRequest struct {
	UserID      string `json:"user_id"`
	ProductType string `json:"product_type"`
	WarrantyID  string `json:"warranty_id"`
	QuestionID  string `json:"question_id"`
	AnswerValue string `json:"answer_value"`
}

func (a answerRequest) validate() error {
	switch {
	case strings.TrimSpace(a.UserID) == "":
		return errors.New("missing user_id")
	case strings.TrimSpace(a.AnswerValue) == "":
		return errors.New("missing answer_value")
	}
	return nil
}

// answerResponse returns the updated profile scores.
type answerResponse struct {
	UserID              string  `json:"user_id"`
	ProductType         string  `json:"product_type,omitempty"`
	WarrantyID          string  `json:"warranty_id,omitempty"`
	BehaviourScore      float64 `json:"behaviour_score"`
	CareScore           float64 `json:"care_score"`
	ResponsivenessScore float64 `json:"responsiveness_score"`
}

// HandlePostAnswer handles POST /behaviour/answer requests.
func (h *BehaviourHandler) HandlePostAnswer(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_behaviour_answer"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req answerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	profile, err := h.deps.AnswerBehaviour(r.Context(), req.UserID, req.ProductType, req.WarrantyID, req.QuestionID, req.AnswerValue)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, answerResponse{
		UserID:              profile.UserID,
		ProductType:         profile.ProductType,
		WarrantyID:          profile.WarrantyID,
		BehaviourScore:      profile.BehaviourScore,
		CareScore:           profile.CareScore,
		ResponsivenessScore: profile.ResponsivenessScore,
	})
}

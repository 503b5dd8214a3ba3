// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/okian/warden/internal/adapters/mq/queue"
	"github.com/okian/warden/internal/adapters/repository"
	"github.com/okian/warden/internal/domain/classifier"
	"github.com/okian/warden/internal/domain/dedupe"
	"github.com/okian/warden/internal/domain/evbattery"
	"github.com/okian/warden/internal/domain/model"
	"github.com/okian/warden/internal/domain/scoring"
)

// Dependencies required by the HTTP handlers. An interface bundle keeps the
// handler layer loosely coupled to the application service.
type Dependencies interface {
	dedupe.Deduper

	// Enqueue pushes a telemetry event for async ingestion.
	Enqueue(ctx context.Context, e queue.Event) error

	// Score runs the full risk pipeline for a (user, warranty).
	Score(ctx context.Context, userID, warrantyID, productType string) model.ScoreResult

	// ScoreEV runs the EV battery variant over a feature document.
	ScoreEV(ctx context.Context, features evbattery.Features) evbattery.Score

	// AnswerBehaviour records a questionnaire answer and returns the
	// updated profile.
	AnswerBehaviour(ctx context.Context, userID, productType, warrantyID, questionID, answerValue string) (model.BehaviourProfile, error)

	// NextQuestion picks the next due questionnaire prompt, or empty when
	// the profile is still inside its cooldown.
	NextQuestion(ctx context.Context, userID, productType, warrantyID string) (string, error)

	// Signals composes the per-source signal summaries.
	Signals(ctx context.Context, userID, warrantyID string) scoring.SignalsReport

	// TopRisk returns the n highest-risk indexed warranties.
	TopRisk(ctx context.Context, n int) []repository.ScoreEntry

	// ModelState reports the classifier lifecycle state.
	ModelState() (classifier.State, error)
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler    *HealthHandler
	scoreHandler     *ScoreHandler
	evScoreHandler   *EVScoreHandler
	telemetryHandler *TelemetryHandler
	behaviourHandler *BehaviourHandler
	questionHandler  *QuestionHandler
	signalsHandler   *SignalsHandler
	riskTopHandler   *RiskTopHandler
}

// NewServer creates an API server with all handlers. maxTopLimit bounds
// GET /risk/top.
func NewServer(deps Dependencies, maxTopLimit int) *Server {
	return &Server{
		healthHandler:    NewHealthHandler(deps),
		scoreHandler:     NewScoreHandler(deps),
		evScoreHandler:   NewEVScoreHandler(deps),
		telemetryHandler: NewTelemetryHandler(deps),
		behaviourHandler: NewBehaviourHandler(deps),
		questionHandler:  NewQuestionHandler(deps),
		signalsHandler:   NewSignalsHandler(deps),
		riskTopHandler:   NewRiskTopHandler(deps, maxTopLimit),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/metrics", s.healthHandler.HandleMetrics)
	mux.HandleFunc("/score", MetricsMiddleware(s.scoreHandler.HandleGetScore, "score"))
	mux.HandleFunc("/score/ev", MetricsMiddleware(s.evScoreHandler.HandlePostEVScore, "score_ev"))
	mux.HandleFunc("/telemetry", MetricsMiddleware(s.telemetryHandler.HandlePostTelemetry, "telemetry"))
	mux.HandleFunc("/behaviour/answer", MetricsMiddleware(s.behaviourHandler.HandlePostAnswer, "behaviour_answer"))
	mux.HandleFunc("/behaviour/question", MetricsMiddleware(s.questionHandler.HandleGetQuestion, "behaviour_question"))
	mux.HandleFunc("/signals", MetricsMiddleware(s.signalsHandler.HandleGetSignals, "signals"))
	mux.HandleFunc("/risk/top", MetricsMiddleware(s.riskTopHandler.HandleGetTop, "risk_top"))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// Package scoring sequences the predictive risk pipeline: feature vector,
// classifier or heuristic fallback, behaviour delta, final label.
//
// Score never fails. Every outcome, including total signal absence and a
// broken model artifact, is a well-formed ScoreResult; UNKNOWN is a
// first-class label, not an error path.
package scoring

import (
	"context"
	"math"

	"github.com/okian/warden/internal/domain/behaviour"
	"github.com/okian/warden/internal/domain/classifier"
	"github.com/okian/warden/internal/domain/feature"
	"github.com/okian/warden/internal/domain/heuristic"
	"github.com/okian/warden/internal/domain/model"
	"github.com/okian/warden/pkg/logger"
)

// Risk band thresholds. The final label is always derived from the final
// score through these, even when the classifier proposed its own label.
const (
	HighThreshold   = 0.66
	MediumThreshold = 0.33
)

// Fallback reason shown when no richer explanation exists.
const notReadyReason = "Predictive engine not ready yet."

// UnknownScore is the neutral score reported with an UNKNOWN label.
const UnknownScore = 0.5

// expiryWarningDays is the days-left bar under which expiry becomes a reason.
const expiryWarningDays = 60

// maxReasons caps the reasons lists on output.
const maxReasons = 4

// TelemetryReader supplies raw history for the heuristic fallback.
type TelemetryReader interface {
	Events(ctx context.Context, userID, warrantyID string) ([]model.TelemetryEvent, error)
}

// Scorer is the public scoring entry point consumed by the notification and
// recommendation subsystems.
type Scorer struct {
	builder    *feature.Builder
	classifier *classifier.Classifier
	adjuster   *behaviour.Adjuster
	telemetry  TelemetryReader
	log        logger.Logger
}

// Option applies a configuration option to the Scorer.
type Option func(*Scorer)

// WithLogger sets a logger for score-adjustment audit lines.
func WithLogger(log logger.Logger) Option {
	return func(s *Scorer) { s.log = log }
}

// New creates a Scorer from its pipeline stages.
func New(builder *feature.Builder, cls *classifier.Classifier, adjuster *behaviour.Adjuster, telemetry TelemetryReader, opts ...Option) *Scorer {
	s := &Scorer{
		builder:    builder,
		classifier: cls,
		adjuster:   adjuster,
		telemetry:  telemetry,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Score computes the structured risk output for a (user, warranty) pair.
func (s *Scorer) Score(ctx context.Context, userID, warrantyID, productType string) model.ScoreResult {
	vec, _, extras := s.builder.Build(ctx, userID, warrantyID, productType)

	pred, ok := s.classifier.Predict(vec)

	// Model missing or broken: graceful unknown, no heuristic guess. An
	// UNKNOWN result surfaces operational health instead of masking it.
	if !ok && s.classifier.Err() != nil {
		return model.ScoreResult{
			RiskLabel:        model.RiskUnknown,
			RiskScore:        UnknownScore,
			Proba:            map[model.RiskLabel]float64{},
			Reasons:          []string{notReadyReason},
			BaseRiskScore:    UnknownScore,
			BehaviourDelta:   0,
			BehaviourReasons: []string{},
		}
	}

	var (
		baseScore float64
		riskLabel model.RiskLabel
		reasons   []string
		proba     = map[model.RiskLabel]float64{}
	)
	if ok {
		reasons = classifier.ExplainReasons(vec, pred.Label)
		if extras.DaysLeft != nil {
			if *extras.DaysLeft <= expiryWarningDays {
				reasons = append(reasons, "Warranty is close to expiry.")
			} else {
				reasons = append(reasons, "Warranty still has time left.")
			}
		}
		if extras.MaintenanceCount == 0 {
			reasons = append(reasons, "No maintenance recorded.")
		}
		riskLabel = pred.Label
		baseScore = pred.Score
		if pred.Proba != nil {
			proba = pred.Proba
		}
	} else {
		// Classifier loaded but produced nothing: heuristic fallback over
		// the raw history.
		events, err := s.telemetry.Events(ctx, userID, warrantyID)
		if err != nil {
			events = nil
		}
		score, fallbackReasons := heuristic.DeriveScore(events)
		baseScore = score
		riskLabel = LabelForScore(score)
		reasons = fallbackReasons
		if len(reasons) == 0 {
			reasons = []string{notReadyReason}
		}
	}

	signal := s.adjuster.ComputeRiskSignal(ctx, userID, warrantyID)
	riskScore := baseScore
	if signal.Delta != 0 {
		riskScore = clamp01(baseScore + signal.Delta)
		// Behaviour reasons lead: the freshest signal explains the score first.
		reasons = append(append([]string{}, signal.Reasons...), reasons...)
	}

	// Label always follows the final score under the fixed thresholds.
	riskLabel = LabelForScore(riskScore)

	if s.log != nil {
		s.log.Info(ctx, "behaviour adjusted risk score",
			logger.String("user_id", userID),
			logger.String("warranty_id", warrantyID),
			logger.Float64("base_score", Round3(baseScore)),
			logger.Float64("behaviour_delta", signal.Delta),
			logger.Float64("final_score", Round3(riskScore)),
			logger.String("final_label", string(riskLabel)),
		)
	}

	if len(reasons) > maxReasons {
		reasons = reasons[:maxReasons]
	}
	if len(reasons) == 0 {
		reasons = []string{notReadyReason}
	}
	behaviourReasons := signal.Reasons
	if len(behaviourReasons) > maxReasons {
		behaviourReasons = behaviourReasons[:maxReasons]
	}
	if behaviourReasons == nil {
		behaviourReasons = []string{}
	}

	return model.ScoreResult{
		RiskLabel:        riskLabel,
		RiskScore:        Round3(riskScore),
		Proba:            proba,
		Reasons:          reasons,
		BaseRiskScore:    Round3(baseScore),
		BehaviourDelta:   Round3(signal.Delta),
		BehaviourReasons: behaviourReasons,
	}
}

// SignalsReport is the composed debug view of every signal source feeding a
// (user, warranty) score.
type SignalsReport struct {
	Behaviour          behaviour.Signal    `json:"behaviour"`
	Nudges             feature.NudgeStats  `json:"nudges"`
	Reviews            feature.PeerStats   `json:"peer_reviews"`
	Searches           feature.SearchStats `json:"symptom_searches"`
	FailureReasons     []string            `json:"failure_reasons"`
	SuggestedQuestions []string            `json:"suggested_questions"`
	ModelState         string              `json:"model_state"`
}

// Signals composes the per-source signal summaries without scoring. It backs
// the diagnostics surface.
func (s *Scorer) Signals(ctx context.Context, userID, warrantyID string) SignalsReport {
	_, _, extras := s.builder.Build(ctx, userID, warrantyID, "")

	events, err := s.telemetry.Events(ctx, userID, warrantyID)
	if err != nil {
		events = nil
	}
	failureReasons := heuristic.AggregateFailureReasons(events)
	if failureReasons == nil {
		failureReasons = []string{}
	}

	s.classifier.Load()
	return SignalsReport{
		Behaviour:          s.adjuster.ComputeRiskSignal(ctx, userID, warrantyID),
		Nudges:             extras.Nudges,
		Reviews:            extras.Reviews,
		Searches:           extras.Searches,
		FailureReasons:     failureReasons,
		SuggestedQuestions: heuristic.SuggestQuestions(events),
		ModelState:         s.classifier.State().String(),
	}
}

// SuggestQuestions proposes context questions from the raw history; used by
// the questionnaire surface alongside scoring.
func (s *Scorer) SuggestQuestions(ctx context.Context, userID, warrantyID string) []string {
	events, err := s.telemetry.Events(ctx, userID, warrantyID)
	if err != nil {
		events = nil
	}
	return heuristic.SuggestQuestions(events)
}

// ModelState exposes the wrapped classifier state for health surfaces.
func (s *Scorer) ModelState() (classifier.State, error) {
	s.classifier.Load()
	return s.classifier.State(), s.classifier.Err()
}

// LabelForScore maps a score to its risk band: above 0.66 is HIGH, 0.33 and
// up is MEDIUM, anything lower is LOW.
func LabelForScore(score float64) model.RiskLabel {
	switch {
	case score > HighThreshold:
		return model.RiskHigh
	case score >= MediumThreshold:
		return model.RiskMedium
	default:
		return model.RiskLow
	}
}

// Round3 rounds to three decimals for output; internal math stays full
// precision.
func Round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

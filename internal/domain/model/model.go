// Package model contains domain records passed between layers.
package model

import "time"

// TelemetryEvent types recognised by the scoring pipeline. Unknown types are
// stored but ignored by the counters.
const (
	EventUsage       = "usage"
	EventError       = "error"
	EventFailure     = "failure"
	EventMaintenance = "maintenance"
)

// RiskLabel is the coarse risk band of a scoring result.
type RiskLabel string

// Risk bands. UNKNOWN is a first-class outcome, not an error: it signals
// that the predictive engine is unavailable.
const (
	RiskLow     RiskLabel = "LOW"
	RiskMedium  RiskLabel = "MEDIUM"
	RiskHigh    RiskLabel = "HIGH"
	RiskUnknown RiskLabel = "UNKNOWN"
)

// ClassOrder is the fixed 3-class ordering the trained classifier was fit
// against. Index positions matter: argmax over a probability vector maps
// through this slice.
var ClassOrder = []RiskLabel{RiskLow, RiskMedium, RiskHigh}

// Warranty is a registered coverage record for one product instance. It is
// owned by the ingestion subsystem; the scoring core only reads it.
type Warranty struct {
	ID               string
	ProductName      string
	Brand            string
	ModelCode        string
	SerialNo         string
	PurchaseDate     *time.Time
	CoverageMonths   int
	ExpiryDate       *time.Time
	RegionCode       string
	ClimateZone      string
	PowerQualityBand string
}

// TelemetryEvent is an append-only observation tied to a user and warranty.
// Payload carries free-form numeric sub-fields such as "hours", "errors",
// "reason" or "code".
type TelemetryEvent struct {
	ID         string
	UserID     string
	WarrantyID string
	EventType  string
	Payload    map[string]any
	Timestamp  time.Time
}

// Hours returns the "hours" payload field as a float, 0 when absent or
// not numeric.
func (e TelemetryEvent) Hours() float64 {
	return payloadFloat(e.Payload, "hours")
}

// Errors returns the "errors" payload field as an int, 0 when absent.
func (e TelemetryEvent) Errors() int {
	return int(payloadFloat(e.Payload, "errors"))
}

// PayloadString returns a string payload field, "" when absent.
func (e TelemetryEvent) PayloadString(key string) string {
	if e.Payload == nil {
		return ""
	}
	if s, ok := e.Payload[key].(string); ok {
		return s
	}
	return ""
}

func payloadFloat(payload map[string]any, key string) float64 {
	if payload == nil {
		return 0
	}
	switch v := payload[key].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	default:
		return 0
	}
}

// BehaviourProfile holds the slowly-evolving care scores for one
// (user, product type, warranty) combination. All three scores stay in
// [0,1]; new profiles start at 0.5 across the board.
type BehaviourProfile struct {
	UserID              string
	ProductType         string
	WarrantyID          string
	BehaviourScore      float64
	CareScore           float64
	ResponsivenessScore float64
	LastQuestionAt      *time.Time
	LastUpdatedAt       *time.Time
}

// NewBehaviourProfile returns a profile with neutral defaults.
func NewBehaviourProfile(userID, productType, warrantyID string) BehaviourProfile {
	return BehaviourProfile{
		UserID:              userID,
		ProductType:         productType,
		WarrantyID:          warrantyID,
		BehaviourScore:      0.5,
		CareScore:           0.5,
		ResponsivenessScore: 0.5,
	}
}

// BehaviourAnswer is one answered questionnaire question. Answers are kept
// append-only; their effect is folded into the BehaviourProfile at write time.
type BehaviourAnswer struct {
	ID          int64
	UserID      string
	WarrantyID  string
	QuestionID  string
	AnswerValue string
	CreatedAt   time.Time
}

// NudgeEvent records a nudge shown to a user and its outcome.
type NudgeEvent struct {
	ID         int64
	UserID     string
	WarrantyID string
	NudgeType  string
	Outcome    string // acted | ignored | dismissed | ""
	ShownAt    time.Time
	ActedAt    *time.Time
	IgnoredAt  *time.Time
}

// PeerReviewSignal is an upserted aggregate per warranty or (brand, model):
// one row per key, updated in place.
type PeerReviewSignal struct {
	ID              int64
	WarrantyID      string
	ProductType     string
	Brand           string
	Model           string
	AvgRating       float64
	ReviewSentiment float64
	FailureKeywords []string
	SymptomKeyword  string
	SeverityHint    string
	Source          string
	LastUpdatedAt   time.Time
}

// SymptomSearch is an append-only free-text symptom query, optionally
// matched to a component.
type SymptomSearch struct {
	ID               int64
	UserID           string
	WarrantyID       string
	ProductType      string
	Brand            string
	Model            string
	QueryText        string
	MatchedComponent string
	Region           string
	CreatedAt        time.Time
}

// ScoreResult is the structured output of a scoring call. Reasons are
// ordered and capped at four entries; scores are rounded to 3 decimals.
type ScoreResult struct {
	RiskLabel        RiskLabel             `json:"risk_label"`
	RiskScore        float64               `json:"risk_score"`
	Proba            map[RiskLabel]float64 `json:"proba"`
	Reasons          []string              `json:"reasons"`
	BaseRiskScore    float64               `json:"base_risk_score"`
	BehaviourDelta   float64               `json:"behaviour_delta"`
	BehaviourReasons []string              `json:"behaviour_reasons"`
}

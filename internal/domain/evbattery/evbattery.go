// Package evbattery scores EV battery degradation risk. It parallels the
// main warranty pipeline with its own feature order and model artifact, and
// falls back to rule-based scoring when no model is available.
package evbattery

import (
	"math"

	"github.com/okian/warden/internal/domain/classifier"
	"github.com/okian/warden/internal/domain/model"
)

// FeatureNames is the EV model's fixed feature order. Product type 3 is an
// EV car, 4 an EV two-wheeler.
var FeatureNames = []string{
	"product_type",
	"age_months",
	"daily_km",
	"fast_charge_sessions",
	"deep_discharge_events",
	"max_temp_seen",
	"behaviour_score",
	"care_score",
	"responsiveness_score",
	"region_climate_band",
}

// EV-specific risk thresholds. The medium bar sits lower than the main
// pipeline's: battery wear accumulates earlier.
const (
	highBar   = 0.66
	mediumBar = 0.4
)

// Features is a sparse feature document; missing keys take the documented
// defaults.
type Features map[string]float64

func (f Features) get(key string, def float64) float64 {
	if v, ok := f[key]; ok {
		return v
	}
	return def
}

// Vector assembles the fixed-order vector with per-key defaults.
func (f Features) Vector() []float64 {
	return []float64{
		f.get("product_type", 3),
		f.get("age_months", 0),
		f.get("daily_km", 0),
		f.get("fast_charge_sessions", 0),
		f.get("deep_discharge_events", 0),
		f.get("max_temp_seen", 25),
		f.get("behaviour_score", 0.5),
		f.get("care_score", 0.5),
		f.get("responsiveness_score", 0.5),
		f.get("region_climate_band", 0),
	}
}

// Score is the structured EV battery risk output.
type Score struct {
	RiskLabel   model.RiskLabel             `json:"risk_label"`
	RiskScore   float64                     `json:"risk_score"`
	Proba       map[model.RiskLabel]float64 `json:"proba"`
	Reasons     []string                    `json:"reasons"`
	Suggestions []string                    `json:"suggestions"`
}

// Scorer wraps the EV classifier with the rule fallback.
type Scorer struct {
	cls *classifier.Classifier
}

// NewScorer creates a Scorer over the EV model wrapper.
func NewScorer(cls *classifier.Classifier) *Scorer {
	return &Scorer{cls: cls}
}

// Score runs the EV model when available, else the rule heuristic.
func (s *Scorer) Score(features Features) Score {
	pred, ok := s.cls.Predict(features.Vector())
	if !ok {
		return heuristicScore(features)
	}

	var reasons []string
	if features.get("daily_km", 0) > 60 {
		reasons = append(reasons, "High daily kilometres.")
	}
	if features.get("fast_charge_sessions", 0) > 8 {
		reasons = append(reasons, "Frequent fast charging.")
	}
	if features.get("deep_discharge_events", 0) > 2 {
		reasons = append(reasons, "Battery often drops below 10%.")
	}
	if features.get("max_temp_seen", 0) > 40 || features.get("region_climate_band", 0) >= 2 {
		reasons = append(reasons, "Hot conditions may stress the battery.")
	}
	if features.get("behaviour_score", 0.5) < 0.4 {
		reasons = append(reasons, "Care habits could be improved.")
	}
	if len(reasons) > 4 {
		reasons = reasons[:4]
	}
	if len(reasons) == 0 {
		reasons = []string{"Driving pattern looks healthy."}
	}

	proba := pred.Proba
	if proba == nil {
		proba = map[model.RiskLabel]float64{}
	}
	return Score{
		RiskLabel: pred.Label,
		RiskScore: round3(pred.Score),
		Proba:     proba,
		Reasons:   reasons,
		Suggestions: []string{
			"Avoid fast charging unless needed.",
			"Keep charge between 20% and 80% for daily use.",
			"Park in shade to reduce heat.",
		},
	}
}

// heuristicScore is the deterministic fallback when no model is loaded.
func heuristicScore(f Features) Score {
	score := 0.2
	var reasons []string

	if f.get("daily_km", 0) > 60 {
		score += 0.2
		reasons = append(reasons, "High daily kilometres.")
	}
	if f.get("fast_charge_sessions", 0) > 8 {
		score += 0.2
		reasons = append(reasons, "Frequent fast charging.")
	}
	if f.get("deep_discharge_events", 0) > 2 {
		score += 0.2
		reasons = append(reasons, "Battery often drops below 10%.")
	}
	if f.get("max_temp_seen", 25) > 40 || f.get("region_climate_band", 0) >= 2 {
		score += 0.15
		reasons = append(reasons, "Used in hot conditions.")
	}
	if f.get("behaviour_score", 0.5) < 0.4 || f.get("care_score", 0.5) < 0.4 {
		score += 0.1
		reasons = append(reasons, "Limited care habits.")
	}

	label := model.RiskLow
	switch {
	case score >= highBar:
		label = model.RiskHigh
	case score >= mediumBar:
		label = model.RiskMedium
	}
	if len(reasons) == 0 {
		reasons = []string{"Light usage so far."}
	}
	return Score{
		RiskLabel: label,
		RiskScore: round3(score),
		Proba:     map[model.RiskLabel]float64{},
		Reasons:   reasons,
		Suggestions: []string{
			"Avoid fast charging unless you need a quick top-up.",
			"Try not to let the battery drop below 10%.",
			"Parking in shade helps battery health.",
		},
	}
}

// FeaturesFromTelemetry derives a feature document from telemetry, starting
// from the request defaults and taking the latest payload value per field.
func FeaturesFromTelemetry(events []model.TelemetryEvent) Features {
	f := Features{
		"product_type":          3,
		"age_months":            12,
		"daily_km":              40,
		"fast_charge_sessions":  4,
		"deep_discharge_events": 1,
		"max_temp_seen":         32,
		"behaviour_score":       0.5,
		"care_score":            0.5,
		"responsiveness_score":  0.5,
		"region_climate_band":   1,
	}
	for _, ev := range events {
		switch ev.EventType {
		case model.EventUsage:
			if v, ok := payloadNumber(ev, "daily_km"); ok {
				f["daily_km"] = v
			}
		case model.EventFailure:
			if v, ok := payloadNumber(ev, "deep_discharge_events"); ok {
				f["deep_discharge_events"] = v
			}
		case model.EventMaintenance:
			if v, ok := payloadNumber(ev, "max_temp_seen"); ok {
				f["max_temp_seen"] = v
			}
		}
	}
	return f
}

func payloadNumber(ev model.TelemetryEvent, key string) (float64, bool) {
	if ev.Payload == nil {
		return 0, false
	}
	switch v := ev.Payload[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	default:
		return 0, false
	}
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}

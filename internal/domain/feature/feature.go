// Package feature assembles the fixed-order numeric vector consumed by the
// risk classifier.
//
// Every signal read is degraded to a documented default at this boundary:
// Build never fails and never produces a vector with missing entries.
package feature

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/okian/warden/internal/domain/model"
)

// Names is the canonical feature order the classifier was trained against.
// Changing length or order silently corrupts predictions; the model artifact
// carries its own copy which is validated at load time.
var Names = []string{
	"product_type",
	"age_months",
	"usage_hours_per_day",
	"error_count",
	"failure_count",
	"maintenance_count",
	"behaviour_score",
	"care_score",
	"responsiveness_score",
	"region_code",
	"climate_band",
	"power_quality_band",
}

// Vector index positions, used by the classifier's reason explainer.
const (
	IdxProductType = iota
	IdxAgeMonths
	IdxUsageHoursPerDay
	IdxErrorCount
	IdxFailureCount
	IdxMaintenanceCount
	IdxBehaviourScore
	IdxCareScore
	IdxResponsivenessScore
	IdxRegionCode
	IdxClimateBand
	IdxPowerQualityBand
)

// climateVocab maps climate zone labels to their band code by position.
var climateVocab = []string{"hot", "humid", "dry", "cold", "coastal"}

// defaultProfileScore is used when the behaviour profile cannot be read.
const defaultProfileScore = 0.5

// TelemetryReader returns the ordered event history for a (user, warranty).
type TelemetryReader interface {
	Events(ctx context.Context, userID, warrantyID string) ([]model.TelemetryEvent, error)
}

// WarrantyReader resolves warranty metadata. A missing warranty is reported
// with found=false, not an error.
type WarrantyReader interface {
	Warranty(ctx context.Context, warrantyID string) (model.Warranty, bool, error)
}

// BehaviourReader returns the three bounded profile scores.
type BehaviourReader interface {
	Scores(ctx context.Context, userID, productType, warrantyID string) (behaviour, care, responsiveness float64, err error)
}

// NudgeStats summarises nudge-response history for a (user, warranty).
type NudgeStats struct {
	Shown     int     `json:"shown"`
	Acted     int     `json:"acted"`
	Ignored   int     `json:"ignored"`
	ActedRate float64 `json:"acted_rate"`
}

// NudgeReader aggregates nudge outcomes.
type NudgeReader interface {
	NudgeStats(ctx context.Context, userID, warrantyID string) (NudgeStats, error)
}

// PeerStats summarises the peer-review aggregate for a warranty or its
// (brand, model).
type PeerStats struct {
	AvgRating    float64 `json:"avg_rating"`
	Sentiment    float64 `json:"sentiment"`
	KeywordCount int     `json:"keyword_count"`
}

// PeerReviewReader resolves the peer-review aggregate, preferring the
// warranty-keyed row and falling back to (brand, model).
type PeerReviewReader interface {
	PeerStats(ctx context.Context, warrantyID, brand, modelCode string) (PeerStats, error)
}

// SearchStats summarises symptom-search activity for a (user, warranty).
type SearchStats struct {
	Count      int            `json:"count"`
	Unresolved int            `json:"unresolved"`
	Components map[string]int `json:"components"`
}

// SearchReader aggregates symptom searches.
type SearchReader interface {
	SearchStats(ctx context.Context, userID, warrantyID string) (SearchStats, error)
}

// Extras carries side outputs that are not part of the vector but feed
// downstream reason composition and the signals debug surface.
type Extras struct {
	UsageHours       float64
	ErrorCount       int
	FailureCount     int
	MaintenanceCount int
	ProductTypeLabel string
	// DaysLeft until expiry, clamped at 0. Nil when no expiry is known.
	DaysLeft *int
	Nudges   NudgeStats
	Reviews  PeerStats
	Searches SearchStats
}

// Builder constructs feature vectors from the signal readers.
type Builder struct {
	telemetry  TelemetryReader
	warranties WarrantyReader
	behaviour  BehaviourReader
	nudges     NudgeReader
	reviews    PeerReviewReader
	searches   SearchReader

	now       func() time.Time
	onDegrade func(source string)
}

// Option applies a configuration option to the Builder.
type Option func(*Builder)

// WithNudgeReader wires the nudge-history reader.
func WithNudgeReader(r NudgeReader) Option {
	return func(b *Builder) { b.nudges = r }
}

// WithPeerReviewReader wires the peer-review reader.
func WithPeerReviewReader(r PeerReviewReader) Option {
	return func(b *Builder) { b.reviews = r }
}

// WithSearchReader wires the symptom-search reader.
func WithSearchReader(r SearchReader) Option {
	return func(b *Builder) { b.searches = r }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(b *Builder) {
		if now != nil {
			b.now = now
		}
	}
}

// WithDegradeHook installs a callback invoked once per signal source whose
// read failed and was replaced by defaults.
func WithDegradeHook(hook func(source string)) Option {
	return func(b *Builder) { b.onDegrade = hook }
}

// NewBuilder creates a Builder over the three mandatory readers.
func NewBuilder(telemetry TelemetryReader, warranties WarrantyReader, behaviour BehaviourReader, opts ...Option) *Builder {
	b := &Builder{
		telemetry:  telemetry,
		warranties: warranties,
		behaviour:  behaviour,
		now:        time.Now,
		onDegrade:  func(string) {},
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build assembles the vector in the exact order of Names. It never fails:
// each missing or unreadable signal degrades to its default.
func (b *Builder) Build(ctx context.Context, userID, warrantyID, productTypeOverride string) ([]float64, []string, Extras) {
	var warranty model.Warranty
	haveWarranty := false
	if w, found, err := b.warranties.Warranty(ctx, warrantyID); err != nil {
		b.onDegrade("warranty")
	} else if found {
		warranty, haveWarranty = w, true
	}

	events, err := b.telemetry.Events(ctx, userID, warrantyID)
	if err != nil {
		b.onDegrade("telemetry")
		events = nil
	}

	productTypeLabel := productTypeOverride
	if productTypeLabel == "" && haveWarranty {
		productTypeLabel = warranty.ProductName
	}
	productType := ProductTypeCode(productTypeLabel)

	ageMonths := 0.0
	if haveWarranty && warranty.PurchaseDate != nil {
		days := b.now().UTC().Sub(*warranty.PurchaseDate).Hours() / 24
		ageMonths = days / 30.0
		if ageMonths < 0 {
			ageMonths = 0
		}
	}

	usageHours := 0.0
	usageEvents := 0
	errorCount := 0
	failureCount := 0
	maintenanceCount := 0
	for _, ev := range events {
		switch ev.EventType {
		case model.EventUsage:
			usageHours += ev.Hours()
			usageEvents++
		case model.EventError:
			errorCount++
		case model.EventFailure:
			failureCount++
		case model.EventMaintenance:
			maintenanceCount++
		}
	}
	denom := usageEvents
	if denom < 1 {
		denom = 1
	}
	usageHoursPerDay := usageHours / float64(denom)

	behaviourScore, careScore, responsivenessScore, err := b.behaviour.Scores(ctx, userID, productTypeLabel, warrantyID)
	if err != nil {
		b.onDegrade("behaviour_profile")
		behaviourScore, careScore, responsivenessScore = defaultProfileScore, defaultProfileScore, defaultProfileScore
	}

	regionCode := 0.0
	climateBand := 0.0
	powerQualityBand := 0.0
	if haveWarranty {
		regionCode = mapStrToCode(warranty.RegionCode, nil)
		climateBand = mapStrToCode(warranty.ClimateZone, climateVocab)
		powerQualityBand = mapStrToCode(warranty.PowerQualityBand, nil)
	}

	vec := []float64{
		productType,
		ageMonths,
		usageHoursPerDay,
		float64(errorCount),
		float64(failureCount),
		float64(maintenanceCount),
		behaviourScore,
		careScore,
		responsivenessScore,
		regionCode,
		climateBand,
		powerQualityBand,
	}

	extras := Extras{
		UsageHours:       usageHours,
		ErrorCount:       errorCount,
		FailureCount:     failureCount,
		MaintenanceCount: maintenanceCount,
		ProductTypeLabel: productTypeLabel,
		DaysLeft:         b.daysLeft(warranty, haveWarranty),
	}
	extras.Nudges = b.nudgeStats(ctx, userID, warrantyID)
	extras.Reviews = b.peerStats(ctx, warranty, haveWarranty, warrantyID)
	extras.Searches = b.searchStats(ctx, userID, warrantyID)

	return vec, Names, extras
}

func (b *Builder) daysLeft(w model.Warranty, have bool) *int {
	if !have || w.ExpiryDate == nil {
		return nil
	}
	days := int(w.ExpiryDate.UTC().Sub(b.now().UTC()).Hours() / 24)
	if days < 0 {
		days = 0
	}
	return &days
}

func (b *Builder) nudgeStats(ctx context.Context, userID, warrantyID string) NudgeStats {
	if b.nudges == nil {
		return NudgeStats{}
	}
	stats, err := b.nudges.NudgeStats(ctx, userID, warrantyID)
	if err != nil {
		b.onDegrade("nudges")
		return NudgeStats{}
	}
	return stats
}

func (b *Builder) peerStats(ctx context.Context, w model.Warranty, have bool, warrantyID string) PeerStats {
	if b.reviews == nil {
		return PeerStats{}
	}
	brand, modelCode := "", ""
	if have {
		brand, modelCode = w.Brand, w.ModelCode
	}
	stats, err := b.reviews.PeerStats(ctx, warrantyID, brand, modelCode)
	if err != nil {
		b.onDegrade("peer_review")
		return PeerStats{}
	}
	return stats
}

func (b *Builder) searchStats(ctx context.Context, userID, warrantyID string) SearchStats {
	if b.searches == nil {
		return SearchStats{}
	}
	stats, err := b.searches.SearchStats(ctx, userID, warrantyID)
	if err != nil {
		b.onDegrade("symptom_search")
		return SearchStats{}
	}
	return stats
}

// ProductTypeCode resolves a numeric product-type code from a label: fridge
// family is 1, air conditioning 2, a numeric string maps to itself, anything
// else 0.
func ProductTypeCode(label string) float64 {
	if label == "" {
		return 0
	}
	name := strings.ToLower(label)
	switch {
	case strings.Contains(name, "fridge"), name == "refrigerator":
		return 1
	case strings.Contains(name, "ac"), strings.Contains(name, "air"):
		return 2
	}
	if n, err := strconv.Atoi(name); err == nil {
		return float64(n)
	}
	return 0
}

// mapStrToCode maps a categorical value through a fixed vocabulary. Numeric
// strings map to their value; unknown values map to 0.
func mapStrToCode(val string, vocab []string) float64 {
	if val == "" {
		return 0
	}
	if n, err := strconv.Atoi(val); err == nil {
		return float64(n)
	}
	for i, v := range vocab {
		if v == val {
			return float64(i)
		}
	}
	return 0
}

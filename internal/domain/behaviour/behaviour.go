// Package behaviour derives a fast-moving risk adjustment from recent
// telemetry and applies questionnaire answers to behaviour profiles.
//
// The usage-intensity classification is intentionally recency-biased: the
// last usage event's raw hours gate "low", while "medium" vs "high" splits
// on the average of the last ten usage events.
package behaviour

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/okian/warden/internal/domain/model"
)

// Default window configuration.
const (
	DefaultWindowDays = 30
	DefaultMaxEvents  = 50
)

// QuestionCooldownDays is the minimum gap between questionnaire prompts for
// one profile.
const QuestionCooldownDays = 7

// QuestionDue reports whether the profile is past its question cooldown.
// Profiles that were never asked are always due.
func QuestionDue(profile model.BehaviourProfile, now time.Time) bool {
	if profile.LastQuestionAt == nil {
		return true
	}
	return profile.LastQuestionAt.Before(now.Add(-QuestionCooldownDays * 24 * time.Hour))
}

// Delta composition constants.
const (
	deltaBound = 0.25

	usageLowDelta    = -0.12
	usageMediumDelta = 0.05
	usageHighDelta   = 0.18

	errorNoneDelta   = -0.02
	errorSomeDelta   = 0.08
	errorManyDelta   = 0.2
	errorSomeMax     = 3
	recentErrorLimit = 5

	lastUsageWindow = 10
	lowHoursBar     = 10
	mediumAvgBar    = 500
)

// Signal is the outcome of the recent-activity inspection.
type Signal struct {
	Delta          float64  `json:"behaviour_risk_delta"`
	Reasons        []string `json:"reasons"`
	UsageIntensity string   `json:"usage_intensity,omitempty"`
	ErrorBurden    int      `json:"error_burden"`
	HoursWindow    float64  `json:"hours_window"`
}

// TelemetryReader returns the event history for a (user, warranty).
type TelemetryReader interface {
	Events(ctx context.Context, userID, warrantyID string) ([]model.TelemetryEvent, error)
}

// Adjuster computes bounded behaviour deltas over a trailing window.
type Adjuster struct {
	telemetry  TelemetryReader
	windowDays int
	maxEvents  int
	now        func() time.Time
}

// Option applies a configuration option to the Adjuster.
type Option func(*Adjuster)

// WithWindowDays sets the trailing window length.
func WithWindowDays(days int) Option {
	return func(a *Adjuster) {
		if days > 0 {
			a.windowDays = days
		}
	}
}

// WithMaxEvents caps how many windowed events are inspected.
func WithMaxEvents(n int) Option {
	return func(a *Adjuster) {
		if n > 0 {
			a.maxEvents = n
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(a *Adjuster) {
		if now != nil {
			a.now = now
		}
	}
}

// NewAdjuster creates an Adjuster over the telemetry reader.
func NewAdjuster(telemetry TelemetryReader, opts ...Option) *Adjuster {
	a := &Adjuster{
		telemetry:  telemetry,
		windowDays: DefaultWindowDays,
		maxEvents:  DefaultMaxEvents,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// ComputeRiskSignal inspects recent telemetry for a (user, warranty) pair
// and derives a bounded delta in [-0.25, 0.25]. No telemetry in the window
// is neutral: delta 0, no reasons.
func (a *Adjuster) ComputeRiskSignal(ctx context.Context, userID, warrantyID string) Signal {
	events, err := a.telemetry.Events(ctx, userID, warrantyID)
	if err != nil || len(events) == 0 {
		return Signal{Reasons: []string{}}
	}

	cutoff := a.now().UTC().Add(-time.Duration(a.windowDays) * 24 * time.Hour)
	recent := make([]model.TelemetryEvent, 0, len(events))
	for _, ev := range events {
		if !ev.Timestamp.Before(cutoff) {
			recent = append(recent, ev)
		}
	}
	sort.SliceStable(recent, func(i, j int) bool {
		return recent[i].Timestamp.Before(recent[j].Timestamp)
	})
	if len(recent) > a.maxEvents {
		recent = recent[len(recent)-a.maxEvents:]
	}
	if len(recent) == 0 {
		return Signal{Reasons: []string{}}
	}

	var usageEvents, errorEvents []model.TelemetryEvent
	for _, ev := range recent {
		switch ev.EventType {
		case model.EventUsage:
			usageEvents = append(usageEvents, ev)
		case model.EventError:
			errorEvents = append(errorEvents, ev)
		}
	}
	lastUsage := usageEvents
	if len(lastUsage) > lastUsageWindow {
		lastUsage = lastUsage[len(lastUsage)-lastUsageWindow:]
	}

	totalHours := 0.0
	for _, ev := range lastUsage {
		totalHours += ev.Hours()
	}
	lastHours := 0.0
	avgHours := 0.0
	lastErrors := 0
	if len(lastUsage) > 0 {
		lastHours = lastUsage[len(lastUsage)-1].Hours()
		avgHours = totalHours / float64(len(lastUsage))
		lastErrors = lastUsage[len(lastUsage)-1].Errors()
	}

	recentErrors := len(errorEvents)
	if recentErrors > recentErrorLimit {
		recentErrors = recentErrorLimit
	}
	errorBurden := lastErrors + recentErrors

	// Latest usage gates "low"; the recent average splits medium/high.
	usageIntensity := "high"
	switch {
	case lastHours < lowHoursBar:
		usageIntensity = "low"
	case avgHours < mediumAvgBar:
		usageIntensity = "medium"
	}

	delta := 0.0
	var reasons []string
	switch usageIntensity {
	case "low":
		delta += usageLowDelta
		reasons = append(reasons, fmt.Sprintf("Light recent usage (%d hrs last event)", int(lastHours)))
	case "medium":
		delta += usageMediumDelta
		reasons = append(reasons, fmt.Sprintf("Moderate usage (%d hrs avg recent)", int(avgHours)))
	default:
		delta += usageHighDelta
		reasons = append(reasons, fmt.Sprintf("Heavy use (%d hrs recent window)", int(totalHours)))
	}

	switch {
	case errorBurden == 0:
		delta += errorNoneDelta
	case errorBurden <= errorSomeMax:
		delta += errorSomeDelta
		reasons = append(reasons, fmt.Sprintf("Some errors recorded (%d)", errorBurden))
	default:
		delta += errorManyDelta
		reasons = append(reasons, fmt.Sprintf("Multiple recent errors (%d)", errorBurden))
	}

	if delta > deltaBound {
		delta = deltaBound
	}
	if delta < -deltaBound {
		delta = -deltaBound
	}

	return Signal{
		Delta:          delta,
		Reasons:        reasons,
		UsageIntensity: usageIntensity,
		ErrorBurden:    errorBurden,
		HoursWindow:    totalHours,
	}
}

// ApplyAnswer nudges profile scores from a questionnaire answer value.
// Affirmative answers reward care, negatives penalise behaviour, low scale
// values penalise further, and any answer at all counts towards
// responsiveness. All scores stay clamped to [0,1].
func ApplyAnswer(profile *model.BehaviourProfile, answerValue string) {
	val := strings.ToLower(strings.TrimSpace(answerValue))
	switch val {
	case "yes", "y", "true", "1", "5":
		profile.CareScore = clamp01(profile.CareScore + 0.03)
		profile.BehaviourScore = clamp01(profile.BehaviourScore + 0.01)
	case "no", "n", "false", "0":
		profile.BehaviourScore = clamp01(profile.BehaviourScore - 0.02)
	}
	if val == "1" || val == "2" {
		profile.BehaviourScore = clamp01(profile.BehaviourScore - 0.05)
	}
	if val == "4" || val == "5" {
		profile.ResponsivenessScore = clamp01(profile.ResponsivenessScore + 0.02)
	}
	profile.ResponsivenessScore = clamp01(profile.ResponsivenessScore + 0.02)
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

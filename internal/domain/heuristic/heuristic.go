// Package heuristic provides the rule-based fallback scorer used when the
// trained classifier is unavailable, plus telemetry summarisation helpers.
package heuristic

import (
	"fmt"
	"sort"

	"github.com/okian/warden/internal/domain/model"
)

// Scoring constants. Bumps are capped so a flood of one event type cannot
// saturate the score on its own.
const (
	baseScore          = 0.2
	usageHoursHighBar  = 100
	usageBump          = 0.15
	errorBumpPerEvent  = 0.05
	errorBumpCap       = 0.3
	failureBumpPer     = 0.2
	failureBumpCap     = 0.4
	maintenanceCutPer  = 0.03
	maintenanceCutCap  = 0.15
	topFailureKeywords = 5
)

// DeriveScore computes a deterministic risk score in [0,1] from raw
// telemetry, with the reasons that moved it. Monotone in errors and
// failures; maintenance reduces risk.
func DeriveScore(events []model.TelemetryEvent) (float64, []string) {
	score := baseScore
	var reasons []string

	usageHours := 0.0
	errors := 0
	failures := 0
	maintenance := 0
	for _, ev := range events {
		switch ev.EventType {
		case model.EventUsage:
			usageHours += ev.Hours()
		case model.EventError:
			errors++
		case model.EventFailure:
			failures++
		case model.EventMaintenance:
			maintenance++
		}
	}

	if usageHours > usageHoursHighBar {
		score += usageBump
		reasons = append(reasons, "High usage hours")
	}
	if errors > 0 {
		score += min(errorBumpPerEvent*float64(errors), errorBumpCap)
		reasons = append(reasons, fmt.Sprintf("%d error events", errors))
	}
	if failures > 0 {
		score += min(failureBumpPer*float64(failures), failureBumpCap)
		reasons = append(reasons, fmt.Sprintf("%d recorded failures", failures))
	}
	if maintenance > 0 {
		score -= min(maintenanceCutPer*float64(maintenance), maintenanceCutCap)
		reasons = append(reasons, "Recent maintenance lowers risk")
	}

	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}
	return score, reasons
}

// AggregateFailureReasons tallies error codes (weight 1) and failure reasons
// (weight 2) across the history, returning the top five.
func AggregateFailureReasons(events []model.TelemetryEvent) []string {
	counts := map[string]int{}
	var order []string
	bump := func(key string, weight int) {
		if _, seen := counts[key]; !seen {
			order = append(order, key)
		}
		counts[key] += weight
	}

	for _, ev := range events {
		switch ev.EventType {
		case model.EventError:
			code := ev.PayloadString("code")
			if code == "" {
				code = ev.PayloadString("message")
			}
			if code == "" {
				code = "unknown_error"
			}
			bump(code, 1)
		case model.EventFailure:
			reason := ev.PayloadString("reason")
			if reason == "" {
				reason = "unspecified_failure"
			}
			bump(reason, 2)
		}
	}

	// Sort by count descending, first-seen order breaking ties.
	rank := make(map[string]int, len(order))
	for i, key := range order {
		rank[key] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		if counts[order[i]] != counts[order[j]] {
			return counts[order[i]] > counts[order[j]]
		}
		return rank[order[i]] < rank[order[j]]
	})
	if len(order) > topFailureKeywords {
		order = order[:topFailureKeywords]
	}
	return order
}

// SuggestQuestions proposes context questions for signal gaps in the
// telemetry history.
func SuggestQuestions(events []model.TelemetryEvent) []string {
	seen := map[string]bool{}
	for _, ev := range events {
		seen[ev.EventType] = true
	}
	var questions []string
	if !seen[model.EventMaintenance] {
		questions = append(questions, "When was the last maintenance or cleaning performed?")
	}
	if seen[model.EventError] && len(events) > 0 {
		questions = append(questions, "Have you noticed specific conditions when errors appear (load, temperature, firmware)?")
	}
	if !seen[model.EventUsage] {
		questions = append(questions, "How many hours per day/week do you use the product?")
	}
	questions = append(questions, "Any unusual noises, smells, or performance drops recently?")
	return questions
}

func min(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

package heuristic_test

import (
	"fmt"
	"testing"

	"github.com/okian/warden/internal/domain/heuristic"
	"github.com/okian/warden/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func usageEvent(hours float64) model.TelemetryEvent {
	return model.TelemetryEvent{EventType: model.EventUsage, Payload: map[string]any{"hours": hours}}
}

func typedEvent(eventType string) model.TelemetryEvent {
	return model.TelemetryEvent{EventType: eventType}
}

func TestDeriveScore(t *testing.T) {
	Convey("Given an empty telemetry history", t, func() {
		Convey("When deriving the score", func() {
			score, reasons := heuristic.DeriveScore(nil)

			Convey("Then it should return the base score with no reasons", func() {
				So(score, ShouldEqual, 0.2)
				So(reasons, ShouldBeEmpty)
			})
		})
	})

	Convey("Given a history with heavy usage", t, func() {
		events := []model.TelemetryEvent{usageEvent(60), usageEvent(50)}

		Convey("When deriving the score", func() {
			score, reasons := heuristic.DeriveScore(events)

			Convey("Then the usage bump should apply", func() {
				So(score, ShouldAlmostEqual, 0.35, 1e-9)
				So(reasons, ShouldContain, "High usage hours")
			})
		})
	})

	Convey("Given a history with errors and failures", t, func() {
		events := []model.TelemetryEvent{
			typedEvent(model.EventError),
			typedEvent(model.EventError),
			typedEvent(model.EventFailure),
		}

		Convey("When deriving the score", func() {
			score, reasons := heuristic.DeriveScore(events)

			Convey("Then error and failure bumps should add up", func() {
				So(score, ShouldAlmostEqual, 0.2+0.1+0.2, 1e-9)
				So(reasons, ShouldContain, "2 error events")
				So(reasons, ShouldContain, "1 recorded failures")
			})
		})
	})

	Convey("Given a flood of error events", t, func() {
		events := make([]model.TelemetryEvent, 20)
		for i := range events {
			events[i] = typedEvent(model.EventError)
		}

		Convey("When deriving the score", func() {
			score, _ := heuristic.DeriveScore(events)

			Convey("Then the error bump should stay capped", func() {
				So(score, ShouldAlmostEqual, 0.2+0.3, 1e-9)
			})
		})
	})

	Convey("Given maintenance history", t, func() {
		events := []model.TelemetryEvent{
			typedEvent(model.EventMaintenance),
			typedEvent(model.EventMaintenance),
		}

		Convey("When deriving the score", func() {
			score, reasons := heuristic.DeriveScore(events)

			Convey("Then maintenance should lower the score", func() {
				So(score, ShouldAlmostEqual, 0.2-0.06, 1e-9)
				So(reasons, ShouldContain, "Recent maintenance lowers risk")
			})
		})

		Convey("When many failures also occurred", func() {
			for i := 0; i < 10; i++ {
				events = append(events, typedEvent(model.EventFailure))
			}
			score, _ := heuristic.DeriveScore(events)

			Convey("Then the failure bump should stay capped", func() {
				So(score, ShouldAlmostEqual, 0.2+0.4-0.06, 1e-9)
			})
		})
	})

	Convey("Given monotonicity over error counts", t, func() {
		Convey("When comparing growing histories", func() {
			prev := 0.0
			for n := 0; n <= 6; n++ {
				events := make([]model.TelemetryEvent, n)
				for i := range events {
					events[i] = typedEvent(model.EventError)
				}
				score, _ := heuristic.DeriveScore(events)

				Convey(fmt.Sprintf("Then %d errors should not score below %d", n, n-1), func() {
					So(score, ShouldBeGreaterThanOrEqualTo, prev)
				})
				prev = score
			}
		})
	})
}

func TestAggregateFailureReasons(t *testing.T) {
	Convey("Given a history with coded errors and failures", t, func() {
		events := []model.TelemetryEvent{
			{EventType: model.EventError, Payload: map[string]any{"code": "E42"}},
			{EventType: model.EventError, Payload: map[string]any{"code": "E42"}},
			{EventType: model.EventFailure, Payload: map[string]any{"reason": "compressor_stall"}},
			{EventType: model.EventError, Payload: map[string]any{"message": "overheat"}},
			{EventType: model.EventError},
		}

		Convey("When aggregating failure reasons", func() {
			reasons := heuristic.AggregateFailureReasons(events)

			Convey("Then failures should rank above single errors", func() {
				// compressor_stall carries weight 2, E42 counts twice.
				So(reasons[0], ShouldBeIn, "E42", "compressor_stall")
				So(reasons[1], ShouldBeIn, "E42", "compressor_stall")
				So(reasons, ShouldContain, "overheat")
				So(reasons, ShouldContain, "unknown_error")
			})
		})
	})

	Convey("Given more than five distinct keys", t, func() {
		var events []model.TelemetryEvent
		for i := 0; i < 8; i++ {
			events = append(events, model.TelemetryEvent{
				EventType: model.EventError,
				Payload:   map[string]any{"code": fmt.Sprintf("E%d", i)},
			})
		}

		Convey("When aggregating failure reasons", func() {
			reasons := heuristic.AggregateFailureReasons(events)

			Convey("Then the list should cap at five in first-seen order", func() {
				So(len(reasons), ShouldEqual, 5)
				So(reasons[0], ShouldEqual, "E0")
			})
		})
	})
}

func TestSuggestQuestions(t *testing.T) {
	Convey("Given a history with no events", t, func() {
		Convey("When suggesting questions", func() {
			questions := heuristic.SuggestQuestions(nil)

			Convey("Then it should probe maintenance and usage gaps", func() {
				So(questions, ShouldContain, "When was the last maintenance or cleaning performed?")
				So(questions, ShouldContain, "How many hours per day/week do you use the product?")
				So(questions, ShouldContain, "Any unusual noises, smells, or performance drops recently?")
			})
		})
	})

	Convey("Given a history with errors and usage", t, func() {
		events := []model.TelemetryEvent{usageEvent(4), typedEvent(model.EventError)}

		Convey("When suggesting questions", func() {
			questions := heuristic.SuggestQuestions(events)

			Convey("Then it should ask about error conditions, not usage", func() {
				So(questions, ShouldContain, "Have you noticed specific conditions when errors appear (load, temperature, firmware)?")
				So(questions, ShouldNotContain, "How many hours per day/week do you use the product?")
			})
		})
	})
}

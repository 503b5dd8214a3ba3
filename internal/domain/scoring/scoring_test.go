package scoring_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/okian/warden/internal/domain/behaviour"
	"github.com/okian/warden/internal/domain/classifier"
	"github.com/okian/warden/internal/domain/feature"
	"github.com/okian/warden/internal/domain/model"
	"github.com/okian/warden/internal/domain/scoring"
	. "github.com/smartystreets/goconvey/convey"
)

var testNow = time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return testNow }

type fakeTelemetry struct {
	events []model.TelemetryEvent
}

func (f *fakeTelemetry) Events(_ context.Context, _, _ string) ([]model.TelemetryEvent, error) {
	return f.events, nil
}

type fakeWarranties struct {
	warranty model.Warranty
	found    bool
}

func (f *fakeWarranties) Warranty(_ context.Context, _ string) (model.Warranty, bool, error) {
	return f.warranty, f.found, nil
}

type fakeBehaviour struct{}

func (fakeBehaviour) Scores(_ context.Context, _, _, _ string) (float64, float64, float64, error) {
	return 0.5, 0.5, 0.5, nil
}

type probaModel struct {
	proba []float64
}

func (m *probaModel) Predict(_ []float64) (int, error) { return 0, nil }
func (m *probaModel) PredictProba(_ []float64) ([]float64, error) {
	return m.proba, nil
}

func modelLoader(m classifier.Model, err error) classifier.Loader {
	return func(_ string) (classifier.Model, error) { return m, err }
}

func newScorer(telemetry *fakeTelemetry, warranties *fakeWarranties, loader classifier.Loader) *scoring.Scorer {
	builder := feature.NewBuilder(telemetry, warranties, fakeBehaviour{}, feature.WithClock(fixedClock))
	cls := classifier.New("model.json", loader)
	adjuster := behaviour.NewAdjuster(telemetry, behaviour.WithClock(fixedClock))
	return scoring.New(builder, cls, adjuster, telemetry)
}

func warrantyWithDaysLeft(days int) *fakeWarranties {
	expiry := testNow.AddDate(0, 0, days)
	return &fakeWarranties{warranty: model.Warranty{ID: "w1", ExpiryDate: &expiry}, found: true}
}

func usageAt(daysAgo int, hours float64) model.TelemetryEvent {
	return model.TelemetryEvent{
		EventType: model.EventUsage,
		Payload:   map[string]any{"hours": hours},
		Timestamp: testNow.AddDate(0, 0, -daysAgo),
	}
}

func TestScoreUnknown(t *testing.T) {
	Convey("Given a classifier whose artifact cannot load", t, func() {
		scorer := newScorer(&fakeTelemetry{}, &fakeWarranties{}, modelLoader(nil, errors.New("artifact corrupt")))

		Convey("When scoring", func() {
			result := scorer.Score(context.Background(), "u1", "w1", "")

			Convey("Then the unknown shape should come back whole", func() {
				So(result.RiskLabel, ShouldEqual, model.RiskUnknown)
				So(result.RiskScore, ShouldEqual, 0.5)
				So(result.Proba, ShouldBeEmpty)
				So(result.Reasons, ShouldResemble, []string{"Predictive engine not ready yet."})
				So(result.BaseRiskScore, ShouldEqual, 0.5)
				So(result.BehaviourDelta, ShouldEqual, 0)
				So(result.BehaviourReasons, ShouldBeEmpty)
			})

			Convey("And scoring again should stay unknown", func() {
				again := scorer.Score(context.Background(), "u1", "w1", "")
				So(again.RiskLabel, ShouldEqual, model.RiskUnknown)
			})
		})

		Convey("When checking model state", func() {
			state, err := scorer.ModelState()

			Convey("Then the failure should be visible", func() {
				So(state, ShouldEqual, classifier.StateFailed)
				So(err, ShouldNotBeNil)
			})
		})
	})
}

func TestScoreModelPath(t *testing.T) {
	Convey("Given a confident low-class prediction with no recent activity", t, func() {
		// The classifier proposes LOW at 0.7 confidence, but the final label
		// is always re-derived from the score, and 0.7 sits above the high
		// threshold.
		scorer := newScorer(&fakeTelemetry{}, warrantyWithDaysLeft(100),
			modelLoader(&probaModel{proba: []float64{0.7, 0.2, 0.1}}, nil))

		Convey("When scoring", func() {
			result := scorer.Score(context.Background(), "u1", "w1", "")

			Convey("Then the label should follow the thresholds, not the class", func() {
				So(result.RiskLabel, ShouldEqual, model.RiskHigh)
				So(result.RiskScore, ShouldEqual, 0.7)
				So(result.BaseRiskScore, ShouldEqual, 0.7)
				So(result.BehaviourDelta, ShouldEqual, 0)
			})

			Convey("And the probability map should carry all classes", func() {
				So(result.Proba[model.RiskLow], ShouldAlmostEqual, 0.7, 1e-9)
				So(result.Proba[model.RiskMedium], ShouldAlmostEqual, 0.2, 1e-9)
				So(result.Proba[model.RiskHigh], ShouldAlmostEqual, 0.1, 1e-9)
			})

			Convey("And reasons should cap at four with expiry context", func() {
				So(len(result.Reasons), ShouldEqual, 4)
				So(result.Reasons, ShouldContain, "Warranty still has time left.")
				So(result.Reasons, ShouldContain, "No maintenance recorded.")
			})
		})
	})

	Convey("Given a near-expiry warranty", t, func() {
		scorer := newScorer(&fakeTelemetry{}, warrantyWithDaysLeft(10),
			modelLoader(&probaModel{proba: []float64{0.2, 0.6, 0.2}}, nil))

		Convey("When scoring", func() {
			result := scorer.Score(context.Background(), "u1", "w1", "")

			Convey("Then the expiry warning should appear", func() {
				So(result.Reasons, ShouldContain, "Warranty is close to expiry.")
				So(result.RiskLabel, ShouldEqual, model.RiskMedium)
			})
		})
	})

	Convey("Given a behaviour delta that crosses a band boundary", t, func() {
		// Heavy recent usage pushes a 0.5 base over the high threshold.
		telemetry := &fakeTelemetry{events: []model.TelemetryEvent{
			usageAt(1, 600),
			{EventType: model.EventError, Timestamp: testNow.AddDate(0, 0, -1)},
			{EventType: model.EventError, Timestamp: testNow.AddDate(0, 0, -1)},
			{EventType: model.EventError, Timestamp: testNow.AddDate(0, 0, -1)},
			{EventType: model.EventError, Timestamp: testNow.AddDate(0, 0, -1)},
		}}
		scorer := newScorer(telemetry, warrantyWithDaysLeft(100),
			modelLoader(&probaModel{proba: []float64{0.2, 0.5, 0.3}}, nil))

		Convey("When scoring", func() {
			result := scorer.Score(context.Background(), "u1", "w1", "")

			Convey("Then the blended score should relabel to HIGH", func() {
				// usage high (+0.18) plus many errors (+0.2) clamps at +0.25.
				So(result.BehaviourDelta, ShouldEqual, 0.25)
				So(result.RiskScore, ShouldEqual, 0.75)
				So(result.BaseRiskScore, ShouldEqual, 0.5)
				So(result.RiskLabel, ShouldEqual, model.RiskHigh)
			})

			Convey("And behaviour reasons should lead the list", func() {
				So(result.Reasons[0], ShouldEqual, "Heavy use (600 hrs recent window)")
				So(result.BehaviourReasons, ShouldNotBeEmpty)
			})
		})
	})

	Convey("Given a negative delta on a medium base", t, func() {
		telemetry := &fakeTelemetry{events: []model.TelemetryEvent{usageAt(2, 4)}}
		scorer := newScorer(telemetry, warrantyWithDaysLeft(100),
			modelLoader(&probaModel{proba: []float64{0.25, 0.4, 0.35}}, nil))

		Convey("When scoring", func() {
			result := scorer.Score(context.Background(), "u1", "w1", "")

			Convey("Then the blended score should relabel downwards", func() {
				So(result.BehaviourDelta, ShouldAlmostEqual, -0.14, 1e-9)
				So(result.RiskScore, ShouldAlmostEqual, 0.26, 1e-9)
				So(result.RiskLabel, ShouldEqual, model.RiskLow)
			})
		})
	})
}

func TestScoreFallback(t *testing.T) {
	Convey("Given an artifact that decodes to no model", t, func() {
		telemetry := &fakeTelemetry{events: []model.TelemetryEvent{
			{EventType: model.EventError, Timestamp: testNow.AddDate(0, 0, -90)},
			{EventType: model.EventError, Timestamp: testNow.AddDate(0, 0, -90)},
			{EventType: model.EventFailure, Timestamp: testNow.AddDate(0, 0, -90)},
		}}
		scorer := newScorer(telemetry, &fakeWarranties{}, modelLoader(nil, nil))

		Convey("When scoring", func() {
			result := scorer.Score(context.Background(), "u1", "w1", "")

			Convey("Then the heuristic should produce the base score", func() {
				// base 0.2 + two errors 0.1 + one failure 0.2, events sit
				// outside the behaviour window so no delta applies.
				So(result.RiskScore, ShouldEqual, 0.5)
				So(result.RiskLabel, ShouldEqual, model.RiskMedium)
				So(result.BehaviourDelta, ShouldEqual, 0)
				So(result.Proba, ShouldBeEmpty)
			})

			Convey("And the fallback reasons should surface", func() {
				So(result.Reasons, ShouldContain, "2 error events")
				So(result.Reasons, ShouldContain, "1 recorded failures")
			})
		})
	})

	Convey("Given no model and no telemetry at all", t, func() {
		scorer := newScorer(&fakeTelemetry{}, &fakeWarranties{}, modelLoader(nil, nil))

		Convey("When scoring", func() {
			result := scorer.Score(context.Background(), "u1", "w1", "")

			Convey("Then the bare base score should label LOW", func() {
				So(result.RiskScore, ShouldEqual, 0.2)
				So(result.RiskLabel, ShouldEqual, model.RiskLow)
				So(result.Reasons, ShouldResemble, []string{"Predictive engine not ready yet."})
			})
		})
	})
}

func TestLabelForScore(t *testing.T) {
	Convey("Given the fixed thresholds", t, func() {
		Convey("Then scores above 0.66 are HIGH", func() {
			So(scoring.LabelForScore(0.661), ShouldEqual, model.RiskHigh)
			So(scoring.LabelForScore(1.0), ShouldEqual, model.RiskHigh)
		})
		Convey("Then 0.66 itself is MEDIUM", func() {
			So(scoring.LabelForScore(0.66), ShouldEqual, model.RiskMedium)
		})
		Convey("Then 0.33 is the MEDIUM floor", func() {
			So(scoring.LabelForScore(0.33), ShouldEqual, model.RiskMedium)
			So(scoring.LabelForScore(0.329), ShouldEqual, model.RiskLow)
		})
	})
}

func TestRound3(t *testing.T) {
	Convey("Given raw float scores", t, func() {
		Convey("Then output rounds to three decimals", func() {
			So(scoring.Round3(0.123456), ShouldEqual, 0.123)
			So(scoring.Round3(0.9995), ShouldEqual, 1.0)
			So(scoring.Round3(0.0004), ShouldEqual, 0)
		})
	})
}

func TestSignals(t *testing.T) {
	Convey("Given a history with failures and no maintenance", t, func() {
		telemetry := &fakeTelemetry{events: []model.TelemetryEvent{
			{EventType: model.EventFailure, Payload: map[string]any{"reason": "compressor_stall"}, Timestamp: testNow.AddDate(0, 0, -1)},
			usageAt(1, 20),
		}}
		scorer := newScorer(telemetry, &fakeWarranties{}, modelLoader(nil, nil))

		Convey("When composing the signals report", func() {
			report := scorer.Signals(context.Background(), "u1", "w1")

			Convey("Then every source summary should be present", func() {
				So(report.FailureReasons, ShouldResemble, []string{"compressor_stall"})
				So(report.SuggestedQuestions, ShouldContain, "When was the last maintenance or cleaning performed?")
				So(report.ModelState, ShouldEqual, "unloaded")
				So(report.Behaviour.UsageIntensity, ShouldEqual, "medium")
			})
		})
	})
}

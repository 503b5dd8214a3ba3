package feature_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/okian/warden/internal/domain/feature"
	"github.com/okian/warden/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

var testNow = time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return testNow }

type fakeTelemetry struct {
	events []model.TelemetryEvent
	err    error
}

func (f *fakeTelemetry) Events(_ context.Context, _, _ string) ([]model.TelemetryEvent, error) {
	return f.events, f.err
}

type fakeWarranties struct {
	warranty model.Warranty
	found    bool
	err      error
}

func (f *fakeWarranties) Warranty(_ context.Context, _ string) (model.Warranty, bool, error) {
	return f.warranty, f.found, f.err
}

type fakeBehaviour struct {
	behaviour, care, resp float64
	err                   error
}

func (f *fakeBehaviour) Scores(_ context.Context, _, _, _ string) (float64, float64, float64, error) {
	return f.behaviour, f.care, f.resp, f.err
}

type fakeNudges struct {
	stats feature.NudgeStats
	err   error
}

func (f *fakeNudges) NudgeStats(_ context.Context, _, _ string) (feature.NudgeStats, error) {
	return f.stats, f.err
}

func usageEvent(hours float64) model.TelemetryEvent {
	return model.TelemetryEvent{EventType: model.EventUsage, Payload: map[string]any{"hours": hours}}
}

func TestBuild(t *testing.T) {
	Convey("Given a fully populated signal set", t, func() {
		purchase := testNow.AddDate(0, 0, -90)
		expiry := testNow.AddDate(0, 0, 30)
		warranties := &fakeWarranties{
			warranty: model.Warranty{
				ID:           "w1",
				ProductName:  "Smart Fridge",
				PurchaseDate: &purchase,
				ExpiryDate:   &expiry,
				RegionCode:   "7",
				ClimateZone:  "humid",
			},
			found: true,
		}
		telemetry := &fakeTelemetry{events: []model.TelemetryEvent{
			usageEvent(10),
			usageEvent(20),
			{EventType: model.EventError},
			{EventType: model.EventFailure},
			{EventType: model.EventMaintenance},
		}}
		behaviour := &fakeBehaviour{behaviour: 0.6, care: 0.7, resp: 0.8}
		builder := feature.NewBuilder(telemetry, warranties, behaviour, feature.WithClock(fixedClock))

		Convey("When building the vector", func() {
			vec, names, extras := builder.Build(context.Background(), "u1", "w1", "")

			Convey("Then every position should line up with the contract", func() {
				So(names, ShouldResemble, feature.Names)
				So(len(vec), ShouldEqual, len(feature.Names))
				So(vec[feature.IdxProductType], ShouldEqual, 1) // fridge family
				So(vec[feature.IdxAgeMonths], ShouldAlmostEqual, 3.0, 0.01)
				So(vec[feature.IdxUsageHoursPerDay], ShouldAlmostEqual, 15, 1e-9)
				So(vec[feature.IdxErrorCount], ShouldEqual, 1)
				So(vec[feature.IdxFailureCount], ShouldEqual, 1)
				So(vec[feature.IdxMaintenanceCount], ShouldEqual, 1)
				So(vec[feature.IdxBehaviourScore], ShouldEqual, 0.6)
				So(vec[feature.IdxRegionCode], ShouldEqual, 7)
				So(vec[feature.IdxClimateBand], ShouldEqual, 1) // humid
			})

			Convey("And the extras should carry side outputs", func() {
				So(extras.UsageHours, ShouldEqual, 30)
				So(extras.ProductTypeLabel, ShouldEqual, "Smart Fridge")
				So(extras.DaysLeft, ShouldNotBeNil)
				So(*extras.DaysLeft, ShouldEqual, 30)
			})
		})

		Convey("When an explicit product type overrides the warranty", func() {
			vec, _, extras := builder.Build(context.Background(), "u1", "w1", "ac unit")

			Convey("Then the override should win", func() {
				So(vec[feature.IdxProductType], ShouldEqual, 2)
				So(extras.ProductTypeLabel, ShouldEqual, "ac unit")
			})
		})
	})

	Convey("Given every signal source failing", t, func() {
		var degraded []string
		builder := feature.NewBuilder(
			&fakeTelemetry{err: errors.New("down")},
			&fakeWarranties{err: errors.New("down")},
			&fakeBehaviour{err: errors.New("down")},
			feature.WithClock(fixedClock),
			feature.WithNudgeReader(&fakeNudges{err: errors.New("down")}),
			feature.WithDegradeHook(func(source string) { degraded = append(degraded, source) }),
		)

		Convey("When building the vector", func() {
			vec, _, extras := builder.Build(context.Background(), "u1", "w1", "")

			Convey("Then it should never fail and fall back to defaults", func() {
				So(len(vec), ShouldEqual, len(feature.Names))
				So(vec[feature.IdxBehaviourScore], ShouldEqual, 0.5)
				So(vec[feature.IdxCareScore], ShouldEqual, 0.5)
				So(vec[feature.IdxErrorCount], ShouldEqual, 0)
				So(extras.DaysLeft, ShouldBeNil)
			})

			Convey("And each degraded source should be reported once", func() {
				So(degraded, ShouldContain, "telemetry")
				So(degraded, ShouldContain, "warranty")
				So(degraded, ShouldContain, "behaviour_profile")
				So(degraded, ShouldContain, "nudges")
			})
		})
	})

	Convey("Given a missing warranty", t, func() {
		builder := feature.NewBuilder(
			&fakeTelemetry{},
			&fakeWarranties{found: false},
			&fakeBehaviour{behaviour: 0.5, care: 0.5, resp: 0.5},
			feature.WithClock(fixedClock),
		)

		Convey("When building the vector", func() {
			vec, _, extras := builder.Build(context.Background(), "u1", "w404", "")

			Convey("Then warranty-derived slots should stay zero without error", func() {
				So(vec[feature.IdxAgeMonths], ShouldEqual, 0)
				So(vec[feature.IdxRegionCode], ShouldEqual, 0)
				So(extras.DaysLeft, ShouldBeNil)
			})
		})
	})

	Convey("Given an expired warranty", t, func() {
		expiry := testNow.AddDate(0, 0, -10)
		builder := feature.NewBuilder(
			&fakeTelemetry{},
			&fakeWarranties{warranty: model.Warranty{ID: "w1", ExpiryDate: &expiry}, found: true},
			&fakeBehaviour{behaviour: 0.5, care: 0.5, resp: 0.5},
			feature.WithClock(fixedClock),
		)

		Convey("When building the vector", func() {
			_, _, extras := builder.Build(context.Background(), "u1", "w1", "")

			Convey("Then days left should clamp at zero", func() {
				So(extras.DaysLeft, ShouldNotBeNil)
				So(*extras.DaysLeft, ShouldEqual, 0)
			})
		})
	})
}

func TestProductTypeCode(t *testing.T) {
	Convey("Given the label vocabulary", t, func() {
		Convey("Then fridges map to 1", func() {
			So(feature.ProductTypeCode("Smart Fridge"), ShouldEqual, 1)
			So(feature.ProductTypeCode("refrigerator"), ShouldEqual, 1)
		})
		Convey("Then air conditioning maps to 2", func() {
			So(feature.ProductTypeCode("AC Unit"), ShouldEqual, 2)
			So(feature.ProductTypeCode("air cooler"), ShouldEqual, 2)
		})
		Convey("Then numeric strings map to themselves", func() {
			So(feature.ProductTypeCode("3"), ShouldEqual, 3)
		})
		Convey("Then unknown labels map to 0", func() {
			So(feature.ProductTypeCode("toaster"), ShouldEqual, 0)
			So(feature.ProductTypeCode(""), ShouldEqual, 0)
		})
	})
}

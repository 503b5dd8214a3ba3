// Package repository defines the signal store interface and its SQLite and
// in-memory implementations.
package repository

import (
	"context"

	"github.com/okian/warden/internal/domain/feature"
	"github.com/okian/warden/internal/domain/model"
)

// Store provides read/write access to warranties, telemetry and the
// behavioural signal tables. The read side of this interface satisfies the
// feature builder's reader contracts.
type Store interface {
	// Warranty resolves a warranty by id. A missing warranty is reported
	// with found=false, not an error.
	Warranty(ctx context.Context, warrantyID string) (model.Warranty, bool, error)
	// UpsertWarranty inserts or replaces a warranty record.
	UpsertWarranty(ctx context.Context, w model.Warranty) error

	// Events returns the telemetry history for a (user, warranty), ordered
	// by timestamp ascending.
	Events(ctx context.Context, userID, warrantyID string) ([]model.TelemetryEvent, error)
	// InsertEvent appends a telemetry event. A reused event id returns
	// ErrDuplicateEvent.
	InsertEvent(ctx context.Context, ev model.TelemetryEvent) error

	// Scores returns the three bounded behaviour profile scores, creating
	// the neutral default profile when none exists.
	Scores(ctx context.Context, userID, productType, warrantyID string) (behaviour, care, responsiveness float64, err error)
	// Profile fetches the behaviour profile for the exact key.
	Profile(ctx context.Context, userID, productType, warrantyID string) (model.BehaviourProfile, bool, error)
	// SaveProfile inserts or replaces a behaviour profile.
	SaveProfile(ctx context.Context, p model.BehaviourProfile) error
	// RecordAnswer appends a questionnaire answer.
	RecordAnswer(ctx context.Context, a model.BehaviourAnswer) error

	// NudgeStats aggregates nudge outcomes for a (user, warranty).
	NudgeStats(ctx context.Context, userID, warrantyID string) (feature.NudgeStats, error)
	// InsertNudge appends a nudge event and returns its id.
	InsertNudge(ctx context.Context, n model.NudgeEvent) (int64, error)

	// PeerStats resolves the peer-review aggregate, preferring the
	// warranty-keyed row and falling back to (brand, model).
	PeerStats(ctx context.Context, warrantyID, brand, modelCode string) (feature.PeerStats, error)
	// UpsertPeerReview inserts or updates the aggregate for its key.
	UpsertPeerReview(ctx context.Context, s model.PeerReviewSignal) error

	// SearchStats aggregates symptom searches for a (user, warranty).
	SearchStats(ctx context.Context, userID, warrantyID string) (feature.SearchStats, error)
	// InsertSearch appends a symptom search and returns its id.
	InsertSearch(ctx context.Context, s model.SymptomSearch) (int64, error)

	// Close releases the underlying resources.
	Close() error
}

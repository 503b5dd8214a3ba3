package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/okian/warden/internal/domain/feature"
	"github.com/okian/warden/internal/domain/model"
)

// MemoryStore is a mutex-guarded in-memory Store. It backs db-less runs and
// most of the test suite.
type MemoryStore struct {
	mu sync.RWMutex

	warranties map[string]model.Warranty
	events     []model.TelemetryEvent
	eventIDs   map[string]struct{}
	profiles   map[profileKey]model.BehaviourProfile
	answers    []model.BehaviourAnswer
	nudges     []model.NudgeEvent
	peers      []model.PeerReviewSignal
	searches   []model.SymptomSearch
	nextID     int64
}

type profileKey struct {
	userID, productType, warrantyID string
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		warranties: map[string]model.Warranty{},
		eventIDs:   map[string]struct{}{},
		profiles:   map[profileKey]model.BehaviourProfile{},
		nextID:     1,
	}
}

// Close is a no-op for the memory store.
func (s *MemoryStore) Close() error { return nil }

// Warranty resolves a warranty by id.
func (s *MemoryStore) Warranty(_ context.Context, warrantyID string) (model.Warranty, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	w, ok := s.warranties[warrantyID]
	return w, ok, nil
}

// UpsertWarranty inserts or replaces a warranty record.
func (s *MemoryStore) UpsertWarranty(_ context.Context, w model.Warranty) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.warranties[w.ID] = w
	return nil
}

// Events returns the telemetry history ordered by timestamp ascending.
func (s *MemoryStore) Events(_ context.Context, userID, warrantyID string) ([]model.TelemetryEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.TelemetryEvent
	for _, ev := range s.events {
		if ev.UserID == userID && ev.WarrantyID == warrantyID {
			out = append(out, ev)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

// InsertEvent appends a telemetry event, rejecting reused ids.
func (s *MemoryStore) InsertEvent(_ context.Context, ev model.TelemetryEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, seen := s.eventIDs[ev.ID]; seen {
		return fmt.Errorf("%w: %s", ErrDuplicateEvent, ev.ID)
	}
	s.eventIDs[ev.ID] = struct{}{}
	s.events = append(s.events, ev)
	return nil
}

// Scores returns the profile scores, defaulting to the neutral profile.
func (s *MemoryStore) Scores(ctx context.Context, userID, productType, warrantyID string) (float64, float64, float64, error) {
	p, found, err := s.Profile(ctx, userID, productType, warrantyID)
	if err != nil {
		return 0, 0, 0, err
	}
	if !found {
		p = model.NewBehaviourProfile(userID, productType, warrantyID)
	}
	return p.BehaviourScore, p.CareScore, p.ResponsivenessScore, nil
}

// Profile fetches the behaviour profile for the exact key.
func (s *MemoryStore) Profile(_ context.Context, userID, productType, warrantyID string) (model.BehaviourProfile, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[profileKey{userID, productType, warrantyID}]
	return p, ok, nil
}

// SaveProfile inserts or replaces a behaviour profile.
func (s *MemoryStore) SaveProfile(_ context.Context, p model.BehaviourProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[profileKey{p.UserID, p.ProductType, p.WarrantyID}] = p
	return nil
}

// RecordAnswer appends a questionnaire answer.
func (s *MemoryStore) RecordAnswer(_ context.Context, a model.BehaviourAnswer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a.ID = s.nextID
	s.nextID++
	s.answers = append(s.answers, a)
	return nil
}

// NudgeStats aggregates nudge outcomes for a (user, warranty).
func (s *MemoryStore) NudgeStats(_ context.Context, userID, warrantyID string) (feature.NudgeStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var stats feature.NudgeStats
	for _, n := range s.nudges {
		if n.UserID != userID || n.WarrantyID != warrantyID {
			continue
		}
		stats.Shown++
		switch n.Outcome {
		case "acted":
			stats.Acted++
		case "ignored":
			stats.Ignored++
		}
	}
	if stats.Shown > 0 {
		stats.ActedRate = float64(stats.Acted) / float64(stats.Shown)
	}
	return stats, nil
}

// InsertNudge appends a nudge event.
func (s *MemoryStore) InsertNudge(_ context.Context, n model.NudgeEvent) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n.ID = s.nextID
	s.nextID++
	if n.ShownAt.IsZero() {
		n.ShownAt = time.Now()
	}
	s.nudges = append(s.nudges, n)
	return n.ID, nil
}

// PeerStats prefers the warranty-keyed aggregate, then (brand, model).
func (s *MemoryStore) PeerStats(_ context.Context, warrantyID, brand, modelCode string) (feature.PeerStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := len(s.peers) - 1; i >= 0; i-- {
		if s.peers[i].WarrantyID != "" && s.peers[i].WarrantyID == warrantyID {
			return peerStatsOf(s.peers[i]), nil
		}
	}
	if brand != "" && modelCode != "" {
		for i := len(s.peers) - 1; i >= 0; i-- {
			if s.peers[i].Brand == brand && s.peers[i].Model == modelCode {
				return peerStatsOf(s.peers[i]), nil
			}
		}
	}
	return feature.PeerStats{}, nil
}

func peerStatsOf(sig model.PeerReviewSignal) feature.PeerStats {
	return feature.PeerStats{
		AvgRating:    sig.AvgRating,
		Sentiment:    sig.ReviewSentiment,
		KeywordCount: len(sig.FailureKeywords),
	}
}

// UpsertPeerReview updates the aggregate row for its key in place.
func (s *MemoryStore) UpsertPeerReview(_ context.Context, sig model.PeerReviewSignal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sig.LastUpdatedAt.IsZero() {
		sig.LastUpdatedAt = time.Now()
	}
	for i, existing := range s.peers {
		sameWarranty := sig.WarrantyID != "" && existing.WarrantyID == sig.WarrantyID
		sameModel := sig.WarrantyID == "" && existing.WarrantyID == "" &&
			existing.Brand == sig.Brand && existing.Model == sig.Model
		if sameWarranty || sameModel {
			sig.ID = existing.ID
			s.peers[i] = sig
			return nil
		}
	}
	sig.ID = s.nextID
	s.nextID++
	s.peers = append(s.peers, sig)
	return nil
}

// SearchStats aggregates symptom searches for a (user, warranty).
func (s *MemoryStore) SearchStats(_ context.Context, userID, warrantyID string) (feature.SearchStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stats := feature.SearchStats{Components: map[string]int{}}
	for _, q := range s.searches {
		if q.UserID != userID || q.WarrantyID != warrantyID {
			continue
		}
		stats.Count++
		component := q.MatchedComponent
		if component == "" {
			stats.Unresolved++
			component = "other"
		}
		stats.Components[component]++
	}
	return stats, nil
}

// InsertSearch appends a symptom search.
func (s *MemoryStore) InsertSearch(_ context.Context, q model.SymptomSearch) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q.ID = s.nextID
	s.nextID++
	if q.CreatedAt.IsZero() {
		q.CreatedAt = time.Now()
	}
	s.searches = append(s.searches, q)
	return q.ID, nil
}

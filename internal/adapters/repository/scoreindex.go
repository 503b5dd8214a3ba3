package repository

import (
	"sort"
	"sync"
	"time"

	"github.com/okian/warden/internal/domain/model"
)

// ScoreEntry is one row of the at-risk read model.
type ScoreEntry struct {
	Rank       int             `json:"rank"`
	UserID     string          `json:"user_id"`
	WarrantyID string          `json:"warranty_id"`
	RiskLabel  model.RiskLabel `json:"risk_label"`
	RiskScore  float64         `json:"risk_score"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// ScoreIndex keeps the latest score per (user, warranty) and answers top-N
// at-risk queries. It is a read model fed by the scoring path; the stores
// stay the source of truth for raw signals.
type ScoreIndex struct {
	mu      sync.RWMutex
	entries map[scoreKey]ScoreEntry
	now     func() time.Time
}

type scoreKey struct {
	userID, warrantyID string
}

// NewScoreIndex creates an empty index.
func NewScoreIndex() *ScoreIndex {
	return &ScoreIndex{
		entries: map[scoreKey]ScoreEntry{},
		now:     time.Now,
	}
}

// Record replaces the entry for a (user, warranty) with the latest result.
// UNKNOWN results are dropped: a neutral placeholder score would distort the
// at-risk ranking.
func (x *ScoreIndex) Record(userID, warrantyID string, result model.ScoreResult) {
	if result.RiskLabel == model.RiskUnknown {
		return
	}
	x.mu.Lock()
	defer x.mu.Unlock()
	x.entries[scoreKey{userID, warrantyID}] = ScoreEntry{
		UserID:     userID,
		WarrantyID: warrantyID,
		RiskLabel:  result.RiskLabel,
		RiskScore:  result.RiskScore,
		UpdatedAt:  x.now().UTC(),
	}
}

// TopN returns the n highest-risk entries, score descending, freshest first
// on ties. Rank is 1-based.
func (x *ScoreIndex) TopN(n int) []ScoreEntry {
	if n <= 0 {
		return nil
	}
	x.mu.RLock()
	out := make([]ScoreEntry, 0, len(x.entries))
	for _, e := range x.entries {
		out = append(out, e)
	}
	x.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].RiskScore != out[j].RiskScore {
			return out[i].RiskScore > out[j].RiskScore
		}
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	if len(out) > n {
		out = out[:n]
	}
	for i := range out {
		out[i].Rank = i + 1
	}
	return out
}

// Count returns how many (user, warranty) pairs are indexed.
func (x *ScoreIndex) Count() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.entries)
}

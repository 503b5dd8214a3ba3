// Package classifier wraps the lazily-loaded trained risk model.
//
// The wrapper is a process-wide singleton in spirit: Load attempts
// deserialization exactly once, and any load failure is sticky for the
// process lifetime. A broken model path is surfaced as state, never as a
// panic or a per-request retry storm; recovery requires a restart.
package classifier

import (
	"fmt"
	"sync"

	"github.com/okian/warden/internal/domain/model"
)

// State of the wrapped model.
type State int

// Classifier states. Failed is terminal until process restart.
const (
	StateUnloaded State = iota
	StateReady
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateUnloaded:
		return "unloaded"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Model is the hard-label inference contract: a class index into
// model.ClassOrder.
type Model interface {
	Predict(features []float64) (int, error)
}

// ProbabilityModel additionally produces a class distribution aligned with
// model.ClassOrder. The wrapper prefers this interface when the loaded
// artifact supports it.
type ProbabilityModel interface {
	Model
	PredictProba(features []float64) ([]float64, error)
}

// Loader deserializes a model artifact from path. A nil model with a nil
// error is a valid outcome (artifact present but empty); the classifier then
// yields no predictions without entering the failed state.
type Loader func(path string) (Model, error)

// Prediction is the outcome of a successful inference.
type Prediction struct {
	Label model.RiskLabel
	Score float64
	Proba map[model.RiskLabel]float64
}

// Classifier wraps a lazily-loaded model with sticky error semantics.
type Classifier struct {
	path   string
	loader Loader

	once  sync.Once
	mu    sync.RWMutex
	model Model
	err   error
}

// New creates a Classifier that will load from path on first use.
func New(path string, loader Loader) *Classifier {
	return &Classifier{path: path, loader: loader}
}

// Load attempts deserialization once. Idempotent: if already loaded or
// already errored it is a no-op. Concurrent first loads are serialized by
// sync.Once; the model is read-only afterwards.
func (c *Classifier) Load() {
	c.once.Do(func() {
		m, err := c.loader(c.path)
		c.mu.Lock()
		defer c.mu.Unlock()
		if err != nil {
			c.err = err
			return
		}
		c.model = m
	})
}

// Err returns the sticky error, nil when none has been recorded.
func (c *Classifier) Err() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.err
}

// State reports the classifier state for health and metrics surfaces.
func (c *Classifier) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	switch {
	case c.err != nil:
		return StateFailed
	case c.model != nil:
		return StateReady
	default:
		return StateUnloaded
	}
}

// Predict runs inference over the feature vector. ok is false when no model
// is available or inference failed; inference failures are recorded as the
// sticky error.
func (c *Classifier) Predict(features []float64) (Prediction, bool) {
	c.Load()

	c.mu.RLock()
	m := c.model
	c.mu.RUnlock()
	if m == nil {
		return Prediction{}, false
	}

	if pm, ok := m.(ProbabilityModel); ok {
		proba, err := pm.PredictProba(features)
		if err != nil {
			c.recordErr(err)
			return Prediction{}, false
		}
		idx := argmax(proba)
		if idx < 0 || idx >= len(model.ClassOrder) {
			idx = 0
		}
		dist := make(map[model.RiskLabel]float64, len(model.ClassOrder))
		for i, label := range model.ClassOrder {
			if i < len(proba) {
				dist[label] = proba[i]
			}
		}
		return Prediction{Label: model.ClassOrder[idx], Score: proba[idx], Proba: dist}, true
	}

	idx, err := m.Predict(features)
	if err != nil {
		c.recordErr(err)
		return Prediction{}, false
	}
	if idx < 0 || idx >= len(model.ClassOrder) {
		idx = 0
	}
	// Hard classifiers carry no calibrated confidence.
	return Prediction{Label: model.ClassOrder[idx], Score: 1.0, Proba: map[model.RiskLabel]float64{}}, true
}

func (c *Classifier) recordErr(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err == nil {
		c.err = fmt.Errorf("inference failed: %w", err)
	}
}

func argmax(vals []float64) int {
	if len(vals) == 0 {
		return -1
	}
	best := 0
	for i, v := range vals {
		if v > vals[best] {
			best = i
		}
	}
	return best
}

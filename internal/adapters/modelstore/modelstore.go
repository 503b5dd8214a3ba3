// Package modelstore decodes serialized classifier artifacts.
//
// An artifact is a JSON document in one of two shapes: a bare model object,
// or a metadata wrapper {"model": ..., "feature_names": [...]}. When feature
// names are present they are validated for length and order against the
// vector builder before the model is accepted; a mismatch means the artifact
// was trained against a different vector contract and must be rejected.
package modelstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"

	"github.com/okian/warden/internal/domain/classifier"
)

// Load reads and decodes the artifact at path. A missing file is reported
// as ErrModelMissing; the caller's sticky-error semantics make that
// permanent for the process lifetime.
func Load(expectedFeatures []string) classifier.Loader {
	return func(path string) (classifier.Model, error) {
		raw, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("%w: %s", ErrModelMissing, path)
			}
			return nil, fmt.Errorf("%w: %w", ErrDecode, err)
		}
		return Decode(raw, expectedFeatures)
	}
}

// artifactDoc covers both artifact shapes; Kind is set only on bare model
// documents.
type artifactDoc struct {
	Kind         string          `json:"kind"`
	Model        json.RawMessage `json:"model"`
	FeatureNames []string        `json:"feature_names"`
}

// Decode parses an artifact document. A metadata wrapper with an empty
// model decodes to (nil, nil): the classifier stays predictionless without
// entering its failed state.
func Decode(raw []byte, expectedFeatures []string) (classifier.Model, error) {
	var doc artifactDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}

	// Bare model document.
	if doc.Kind != "" {
		return decodeModel(raw, len(expectedFeatures))
	}

	// Metadata wrapper.
	if doc.FeatureNames != nil {
		if err := validateFeatureNames(doc.FeatureNames, expectedFeatures); err != nil {
			return nil, err
		}
	}
	if len(doc.Model) == 0 || string(doc.Model) == "null" {
		return nil, nil
	}
	return decodeModel(doc.Model, len(expectedFeatures))
}

func validateFeatureNames(got, want []string) error {
	if len(got) != len(want) {
		return fmt.Errorf("%w: artifact has %d features, expected %d", ErrFeatureMismatch, len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			return fmt.Errorf("%w: feature %d is %q, expected %q", ErrFeatureMismatch, i, got[i], want[i])
		}
	}
	return nil
}

func decodeModel(raw []byte, featureDim int) (classifier.Model, error) {
	var kindDoc struct {
		Kind string `json:"kind"`
	}
	if err := json.Unmarshal(raw, &kindDoc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	switch kindDoc.Kind {
	case "softmax":
		var m SoftmaxModel
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrDecode, err)
		}
		if err := m.validate(featureDim); err != nil {
			return nil, err
		}
		return &m, nil
	case "threshold":
		var m ThresholdModel
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrDecode, err)
		}
		if err := m.validate(featureDim); err != nil {
			return nil, err
		}
		return &m, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kindDoc.Kind)
	}
}

// SoftmaxModel is a multinomial logistic classifier: one weight row and
// intercept per class, probabilities via softmax over the linear logits.
// Implements classifier.ProbabilityModel.
type SoftmaxModel struct {
	Kind       string      `json:"kind"`
	Weights    [][]float64 `json:"weights"`
	Intercepts []float64   `json:"intercepts"`
}

func (m *SoftmaxModel) validate(featureDim int) error {
	if len(m.Weights) == 0 || len(m.Weights) != len(m.Intercepts) {
		return fmt.Errorf("%w: weights/intercepts shape", ErrDecode)
	}
	for _, row := range m.Weights {
		if len(row) != featureDim {
			return fmt.Errorf("%w: weight row has %d features, expected %d", ErrFeatureMismatch, len(row), featureDim)
		}
	}
	return nil
}

// PredictProba returns the softmax class distribution.
func (m *SoftmaxModel) PredictProba(features []float64) ([]float64, error) {
	logits := make([]float64, len(m.Weights))
	for c, row := range m.Weights {
		if len(features) != len(row) {
			return nil, fmt.Errorf("%w: got %d features, expected %d", ErrFeatureMismatch, len(features), len(row))
		}
		sum := m.Intercepts[c]
		for i, w := range row {
			sum += w * features[i]
		}
		logits[c] = sum
	}
	// Softmax with max subtraction for numeric stability.
	maxLogit := logits[0]
	for _, l := range logits[1:] {
		if l > maxLogit {
			maxLogit = l
		}
	}
	total := 0.0
	proba := make([]float64, len(logits))
	for i, l := range logits {
		proba[i] = math.Exp(l - maxLogit)
		total += proba[i]
	}
	for i := range proba {
		proba[i] /= total
	}
	return proba, nil
}

// Predict returns the argmax class index.
func (m *SoftmaxModel) Predict(features []float64) (int, error) {
	proba, err := m.PredictProba(features)
	if err != nil {
		return 0, err
	}
	best := 0
	for i, p := range proba {
		if p > proba[best] {
			best = i
		}
	}
	return best, nil
}

// ThresholdModel is a hard 3-class stump over a single feature: below the
// first cut is class 0, below the second is class 1, else class 2. It
// deliberately implements only classifier.Model so the no-probability
// inference path stays exercised.
type ThresholdModel struct {
	Kind    string    `json:"kind"`
	Feature int       `json:"feature"`
	Cuts    []float64 `json:"cuts"`
}

func (m *ThresholdModel) validate(featureDim int) error {
	if m.Feature < 0 || m.Feature >= featureDim {
		return fmt.Errorf("%w: feature index %d out of range", ErrFeatureMismatch, m.Feature)
	}
	if len(m.Cuts) != 2 {
		return fmt.Errorf("%w: threshold model needs exactly 2 cuts", ErrDecode)
	}
	return nil
}

// Predict returns the class index for the stump.
func (m *ThresholdModel) Predict(features []float64) (int, error) {
	if m.Feature >= len(features) {
		return 0, fmt.Errorf("%w: got %d features, need index %d", ErrFeatureMismatch, len(features), m.Feature)
	}
	v := features[m.Feature]
	switch {
	case v <= m.Cuts[0]:
		return 0, nil
	case v <= m.Cuts[1]:
		return 1, nil
	default:
		return 2, nil
	}
}

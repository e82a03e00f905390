// Package classifier provides the adapter between aligned feature vectors
// and the trained traffic model. The model is a logistic scorer exported at
// training time as a JSON artifact: ordered feature names, per-feature
// weights, bias and decision threshold. Categorical features (addresses,
// ports) are hashed into a bounded numeric code, the same mapping the
// training exporter uses.
package classifier

import (
	"encoding/json"
	"fmt"
	"hash/fnv"
	"math"
	"os"

	"TwinGuard/internal/model"
)

const (
	defaultThreshold   = 0.5
	defaultHashBuckets = 1024
)

// artifact is the on-disk layout of the trained model.
type artifact struct {
	FeatureNames []string           `json:"feature_names"`
	Weights      map[string]float64 `json:"weights"`
	Bias         float64            `json:"bias"`
	Threshold    float64            `json:"threshold"`
	HashBuckets  int                `json:"hash_buckets"`
}

// LinearModel scores aligned feature vectors with a logistic model. It is
// immutable after load and safe for concurrent use.
type LinearModel struct {
	featureNames []string
	weights      map[string]float64
	bias         float64
	threshold    float64
	hashBuckets  uint32
}

// Load reads and validates a model artifact from path.
func Load(path string) (*LinearModel, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read model artifact: %w", err)
	}

	var art artifact
	if err := json.Unmarshal(data, &art); err != nil {
		return nil, fmt.Errorf("failed to parse model artifact: %w", err)
	}

	if len(art.FeatureNames) == 0 {
		return nil, fmt.Errorf("model artifact declares no feature names")
	}
	for _, name := range art.FeatureNames {
		if _, ok := art.Weights[name]; !ok {
			return nil, fmt.Errorf("model artifact missing weight for feature %q", name)
		}
	}

	threshold := art.Threshold
	if threshold <= 0 || threshold >= 1 {
		threshold = defaultThreshold
	}
	buckets := art.HashBuckets
	if buckets <= 0 {
		buckets = defaultHashBuckets
	}

	return &LinearModel{
		featureNames: art.FeatureNames,
		weights:      art.Weights,
		bias:         art.Bias,
		threshold:    threshold,
		hashBuckets:  uint32(buckets),
	}, nil
}

// FeatureNames returns the ordered schema the model was trained on.
func (m *LinearModel) FeatureNames() []string {
	out := make([]string, len(m.featureNames))
	copy(out, m.featureNames)
	return out
}

// Score computes the attack probability for an aligned vector. A vector
// missing an expected feature is an internal error: alignment upstream is
// supposed to make that impossible.
func (m *LinearModel) Score(fv *model.FeatureVector) (model.ClassifierVerdict, error) {
	z := m.bias
	for _, name := range m.featureNames {
		v, ok := fv.Get(name)
		if !ok {
			return model.ClassifierVerdict{}, fmt.Errorf("feature vector missing expected field %q", name)
		}
		z += m.weights[name] * m.encode(v)
	}

	prob := 1.0 / (1.0 + math.Exp(-z))
	class := 0
	if prob >= m.threshold {
		class = 1
	}

	return model.ClassifierVerdict{PredictedClass: class, AttackProbability: prob}, nil
}

// encode maps a feature value onto the numeric space the model was trained
// in: numerics pass through, categoricals hash to [0,1).
func (m *LinearModel) encode(v model.FeatureValue) float64 {
	if v.IsNum {
		return v.Num
	}
	hasher := fnv.New32a()
	hasher.Write([]byte(v.Str))
	return float64(hasher.Sum32()%m.hashBuckets) / float64(m.hashBuckets)
}

package model

// FeatureValue is one entry of a feature vector: either a categorical string
// (addresses, ports) or a numeric measurement.
type FeatureValue struct {
	Str   string
	Num   float64
	IsNum bool
}

// StringFeature builds a categorical feature value.
func StringFeature(s string) FeatureValue { return FeatureValue{Str: s} }

// NumFeature builds a numeric feature value.
func NumFeature(f float64) FeatureValue { return FeatureValue{Num: f, IsNum: true} }

// FeatureVector is an ordered set of named features. Iteration order is the
// declaration order, which after alignment equals the classifier's expected
// schema exactly. Vectors are built fresh per event and never mutated after
// construction.
type FeatureVector struct {
	names  []string
	values map[string]FeatureValue
}

// NewFeatureVector creates an empty vector with room for n features.
func NewFeatureVector(n int) *FeatureVector {
	return &FeatureVector{
		names:  make([]string, 0, n),
		values: make(map[string]FeatureValue, n),
	}
}

// Set appends a named feature. Setting an existing name overwrites the value
// without changing its position.
func (fv *FeatureVector) Set(name string, v FeatureValue) {
	if _, ok := fv.values[name]; !ok {
		fv.names = append(fv.names, name)
	}
	fv.values[name] = v
}

// Get returns the value for name.
func (fv *FeatureVector) Get(name string) (FeatureValue, bool) {
	v, ok := fv.values[name]
	return v, ok
}

// Names returns the field names in declaration order.
func (fv *FeatureVector) Names() []string {
	out := make([]string, len(fv.names))
	copy(out, fv.names)
	return out
}

// Len returns the number of features.
func (fv *FeatureVector) Len() int { return len(fv.names) }

// Classifier scores an aligned feature vector. Implementations must treat
// the vector as read-only. FeatureNames is queried once at startup and is
// fixed for the process lifetime.
type Classifier interface {
	FeatureNames() []string
	Score(fv *FeatureVector) (ClassifierVerdict, error)
}

// VerdictWriter persists or publishes scored verdicts. Writers run off the
// request path; a failed write must not affect the scoring decision.
type VerdictWriter interface {
	Write(rec VerdictRecord) error
	Close() error
}

// Package fusion combines the traffic classifier's verdict with the vitals
// rule assessment into one final decision. The policy is a deterministic OR:
// either signal alone is enough to flag an attack; the two are never
// averaged or weighted.
package fusion

import (
	"TwinGuard/internal/model"
)

// Fuser applies the fusion policy.
type Fuser struct {
	// vitalsConfidence is reported when only the rule layer fires; the rule
	// layer has no native probability, so this stands in for one.
	vitalsConfidence float64
}

// NewFuser creates a fuser. vitalsConfidence must be in [0,1].
func NewFuser(vitalsConfidence float64) *Fuser {
	return &Fuser{vitalsConfidence: vitalsConfidence}
}

// Combine fuses the two signals into a FinalVerdict.
//
// Confidence precedence, first match wins:
//  1. model says attack: the model's attack probability.
//  2. only the vitals rules say attack: the fixed vitals confidence.
//  3. normal: the model's probability of the normal class.
func (f *Fuser) Combine(cv model.ClassifierVerdict, aa model.AnomalyAssessment) model.FinalVerdict {
	modelAttack := cv.PredictedClass == 1
	vitalsAttack := aa.IsAnomalous && aa.Level == model.LevelHigh

	verdict := model.FinalVerdict{
		Label:  model.LabelNormal,
		Model:  cv,
		Vitals: aa,
	}

	switch {
	case modelAttack:
		verdict.Label = model.LabelAttack
		verdict.Confidence = cv.AttackProbability
	case vitalsAttack:
		verdict.Label = model.LabelAttack
		verdict.Confidence = f.vitalsConfidence
	default:
		verdict.Confidence = 1 - cv.AttackProbability
	}

	return verdict
}

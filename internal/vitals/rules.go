// Package vitals implements the stateless threshold rules over vital-sign
// readings. The rules run independently of the traffic classifier and feed
// the fusion layer alongside it.
package vitals

import (
	"TwinGuard/internal/config"
	"TwinGuard/internal/model"
)

// Reason strings reported on anomalous readings. Reasons accumulate
// independently; a single reading can fire several.
const (
	ReasonLowOxygen      = "low oxygen saturation"
	ReasonTachycardia    = "tachycardia"
	ReasonAbnormalStatus = "abnormal device status"
)

// statusError escalates severity regardless of the numeric vitals.
const statusError = "error"

// RuleEngine evaluates a reading against configured thresholds. It holds no
// per-device state; Assess is a pure function of its input.
type RuleEngine struct {
	cfg config.VitalsConfig
}

// NewRuleEngine creates a rule engine with the given thresholds.
func NewRuleEngine(cfg config.VitalsConfig) *RuleEngine {
	return &RuleEngine{cfg: cfg}
}

// Assess applies the threshold rules to one reading.
func (e *RuleEngine) Assess(r model.VitalsReading) model.AnomalyAssessment {
	var reasons []string

	if r.SpO2 < e.cfg.SpO2Low {
		reasons = append(reasons, ReasonLowOxygen)
	}
	if r.Pulse > e.cfg.PulseHigh {
		reasons = append(reasons, ReasonTachycardia)
	}
	if r.Status != "ok" {
		reasons = append(reasons, ReasonAbnormalStatus)
	}

	level := model.LevelNone
	switch {
	case r.SpO2 < e.cfg.SpO2Critical || r.Pulse > e.cfg.PulseCritical || r.Status == statusError:
		level = model.LevelHigh
	case len(reasons) > 0:
		level = model.LevelMedium
	}

	return model.AnomalyAssessment{
		IsAnomalous: len(reasons) > 0,
		Level:       level,
		Reasons:     reasons,
	}
}

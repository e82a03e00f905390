package vitals

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"TwinGuard/internal/config"
	"TwinGuard/internal/model"
)

func defaultEngine() *RuleEngine {
	return NewRuleEngine(config.Default().Vitals)
}

func TestAssess_BoundaryCases(t *testing.T) {
	tests := []struct {
		name        string
		reading     model.VitalsReading
		wantAnomaly bool
		wantLevel   model.AnomalyLevel
		wantReasons []string
	}{
		{
			name:        "all normal",
			reading:     model.VitalsReading{SpO2: 98.0, Pulse: 72, Status: "ok"},
			wantAnomaly: false,
			wantLevel:   model.LevelNone,
		},
		{
			name:        "spo2 exactly at threshold does not fire",
			reading:     model.VitalsReading{SpO2: 90.0, Pulse: 72, Status: "ok"},
			wantAnomaly: false,
			wantLevel:   model.LevelNone,
		},
		{
			name:        "spo2 just under threshold fires medium",
			reading:     model.VitalsReading{SpO2: 89.9, Pulse: 72, Status: "ok"},
			wantAnomaly: true,
			wantLevel:   model.LevelMedium,
			wantReasons: []string{ReasonLowOxygen},
		},
		{
			name:        "spo2 under critical escalates to high",
			reading:     model.VitalsReading{SpO2: 84.9, Pulse: 72, Status: "ok"},
			wantAnomaly: true,
			wantLevel:   model.LevelHigh,
			wantReasons: []string{ReasonLowOxygen},
		},
		{
			name:        "pulse exactly at threshold does not fire",
			reading:     model.VitalsReading{SpO2: 98.0, Pulse: 130, Status: "ok"},
			wantAnomaly: false,
			wantLevel:   model.LevelNone,
		},
		{
			name:        "pulse just over threshold fires medium",
			reading:     model.VitalsReading{SpO2: 98.0, Pulse: 131, Status: "ok"},
			wantAnomaly: true,
			wantLevel:   model.LevelMedium,
			wantReasons: []string{ReasonTachycardia},
		},
		{
			name:        "pulse over critical escalates to high",
			reading:     model.VitalsReading{SpO2: 98.0, Pulse: 151, Status: "ok"},
			wantAnomaly: true,
			wantLevel:   model.LevelHigh,
			wantReasons: []string{ReasonTachycardia},
		},
		{
			name:        "non-ok status fires medium",
			reading:     model.VitalsReading{SpO2: 98.0, Pulse: 72, Status: "alert"},
			wantAnomaly: true,
			wantLevel:   model.LevelMedium,
			wantReasons: []string{ReasonAbnormalStatus},
		},
		{
			name:        "error status escalates to high",
			reading:     model.VitalsReading{SpO2: 98.0, Pulse: 72, Status: "error"},
			wantAnomaly: true,
			wantLevel:   model.LevelHigh,
			wantReasons: []string{ReasonAbnormalStatus},
		},
		{
			name:        "reasons accumulate independently",
			reading:     model.VitalsReading{SpO2: 87.0, Pulse: 140, Status: "alert"},
			wantAnomaly: true,
			wantLevel:   model.LevelMedium,
			wantReasons: []string{ReasonLowOxygen, ReasonTachycardia, ReasonAbnormalStatus},
		},
		{
			name:        "any critical signal wins over accumulated mediums",
			reading:     model.VitalsReading{SpO2: 80.0, Pulse: 140, Status: "alert"},
			wantAnomaly: true,
			wantLevel:   model.LevelHigh,
			wantReasons: []string{ReasonLowOxygen, ReasonTachycardia, ReasonAbnormalStatus},
		},
	}

	engine := defaultEngine()
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := engine.Assess(tc.reading)
			assert.Equal(t, tc.wantAnomaly, got.IsAnomalous)
			assert.Equal(t, tc.wantLevel, got.Level)
			assert.Equal(t, tc.wantReasons, got.Reasons)
		})
	}
}

func TestAssess_IsPure(t *testing.T) {
	engine := defaultEngine()
	reading := model.VitalsReading{SpO2: 84.0, Pulse: 160, Status: "error"}

	first := engine.Assess(reading)
	second := engine.Assess(reading)
	assert.Equal(t, first, second)
}

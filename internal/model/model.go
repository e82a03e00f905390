package model

import (
	"time"
)

// TelemetryEvent is a single reading published by a biometric device,
// optionally annotated with network metadata by the gateway bridge.
type TelemetryEvent struct {
	Type     string           `json:"type"`
	DeviceID string           `json:"device_id"`
	TsUnix   float64          `json:"ts_unix"`
	Seq      int64            `json:"seq"`
	SpO2     float64          `json:"spo2"`
	Pulse    int              `json:"pulse"`
	Status   string           `json:"status"`
	Network  *NetworkMetadata `json:"network_metadata,omitempty"`
}

// Vitals extracts the vital-sign fields of the event.
func (e *TelemetryEvent) Vitals() VitalsReading {
	return VitalsReading{SpO2: e.SpO2, Pulse: e.Pulse, Status: e.Status}
}

// NetworkMetadata carries transport-level context measured at the gateway.
// When present it is authoritative: the scoring service uses these counters
// directly instead of its own per-source tracker.
type NetworkMetadata struct {
	SrcIP         string  `json:"src_ip,omitempty"`
	DstIP         string  `json:"dst_ip,omitempty"`
	SrcPort       int     `json:"src_port,omitempty"`
	DstPort       int     `json:"dst_port,omitempty"`
	PktSize       int     `json:"pkt_size,omitempty"`
	FlowPktCount  uint64  `json:"flow_pkt_count,omitempty"`
	FlowByteCount uint64  `json:"flow_byte_count,omitempty"`
	FlowDuration  float64 `json:"flow_duration,omitempty"`
	CurrentRate   float64 `json:"current_rate,omitempty"`
	BusTopic      string  `json:"bus_topic,omitempty"`
	GatewayID     string  `json:"gateway_id,omitempty"`
	Timestamp     float64 `json:"timestamp,omitempty"`
}

// VitalsReading are the vital-sign fields taken verbatim from an event.
type VitalsReading struct {
	SpO2   float64
	Pulse  int
	Status string
}

// AnomalyLevel grades a vitals anomaly.
type AnomalyLevel string

const (
	LevelNone   AnomalyLevel = "none"
	LevelMedium AnomalyLevel = "medium"
	LevelHigh   AnomalyLevel = "high"
)

// AnomalyAssessment is the rule-engine view of a single reading.
type AnomalyAssessment struct {
	IsAnomalous bool         `json:"is_anomalous"`
	Level       AnomalyLevel `json:"level"`
	Reasons     []string     `json:"reasons"`
}

// ClassifierVerdict is the raw output of the traffic classifier.
type ClassifierVerdict struct {
	PredictedClass    int     `json:"predicted_class"`
	AttackProbability float64 `json:"attack_probability"`
}

// Verdict labels for the fused decision.
const (
	LabelAttack = "ATTACK"
	LabelNormal = "NORMAL"
)

// FinalVerdict is the fused decision for one event, produced once and never
// mutated. The contributing classifier and vitals outputs are carried along
// for observability.
type FinalVerdict struct {
	Label      string            `json:"label"`
	Confidence float64           `json:"confidence"`
	Model      ClassifierVerdict `json:"model"`
	Vitals     AnomalyAssessment `json:"vitals_anomaly"`
}

// FlowSnapshot is the tracker's view of one traffic source at the moment an
// event is recorded.
type FlowSnapshot struct {
	PktCount    uint64
	ByteCount   uint64
	Duration    float64 // seconds, floored to stay division-safe
	Rate        float64 // lifetime average, packets per second
	CurrentRate float64 // trailing ~1s window, packets per second
}

// VerdictRecord is the unit handed to verdict observers and sinks.
type VerdictRecord struct {
	ID       string       `json:"id"`
	DeviceID string       `json:"device_id"`
	Seq      int64        `json:"seq"`
	Verdict  FinalVerdict `json:"verdict"`
	Flow     FlowSnapshot `json:"-"`
	EventTs  float64      `json:"event_ts"`
	ScoredAt time.Time    `json:"scored_at"`
}

// Package pipeline wires the scoring components together: feature synthesis,
// classification, vitals rules and fusion, plus best-effort verdict
// broadcast to observers and sinks.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"TwinGuard/internal/feature"
	"TwinGuard/internal/metrics"
	"TwinGuard/internal/model"
	"TwinGuard/internal/vitals"
)

// Fuser is the fusion policy consumed by the engine.
type Fuser interface {
	Combine(model.ClassifierVerdict, model.AnomalyAssessment) model.FinalVerdict
}

// Engine drives one event through the full scoring pipeline. The per-source
// tracker inside the synthesizer is the only shared mutable state; the
// engine itself is safe for concurrent Score calls.
type Engine struct {
	synth       *feature.Synthesizer
	classifier  model.Classifier
	rules       *vitals.RuleEngine
	fuser       Fuser
	broadcaster *Broadcaster
	metrics     *metrics.Metrics
}

// NewEngine assembles the pipeline.
func NewEngine(synth *feature.Synthesizer, clf model.Classifier, rules *vitals.RuleEngine, fuser Fuser, m *metrics.Metrics) *Engine {
	return &Engine{
		synth:       synth,
		classifier:  clf,
		rules:       rules,
		fuser:       fuser,
		broadcaster: NewBroadcaster(m),
		metrics:     m,
	}
}

// Broadcaster exposes the verdict fan-out for observers and sinks.
func (e *Engine) Broadcaster() *Broadcaster { return e.broadcaster }

// Score runs one event through synthesis, classification, vitals assessment
// and fusion, then fans the verdict out to observers. The context bounds
// nothing here today (all stages are in-process) but is honored between
// stages so an abandoned request stops early without leaking state.
func (e *Engine) Score(ctx context.Context, event *model.TelemetryEvent, peer feature.PeerInfo) (model.VerdictRecord, error) {
	start := time.Now()

	fv := e.synth.Build(event, peer, start)

	if err := ctx.Err(); err != nil {
		return model.VerdictRecord{}, err
	}

	cv, err := e.classifier.Score(fv)
	if err != nil {
		e.metrics.ScoringFailures.Inc()
		return model.VerdictRecord{}, fmt.Errorf("classifier scoring failed: %w", err)
	}

	assessment := e.rules.Assess(event.Vitals())
	verdict := e.fuser.Combine(cv, assessment)

	rec := model.VerdictRecord{
		ID:       uuid.NewString(),
		DeviceID: event.DeviceID,
		Seq:      event.Seq,
		Verdict:  verdict,
		Flow:     flowFromVector(fv),
		EventTs:  event.TsUnix,
		ScoredAt: time.Now().UTC(),
	}

	e.metrics.EventsScored.Inc()
	e.metrics.ScoringSeconds.Observe(time.Since(start).Seconds())
	if verdict.Label == model.LabelAttack {
		e.metrics.AttacksDetected.Inc()
	}

	e.broadcaster.Publish(rec)
	return rec, nil
}

// flowFromVector recovers the flow counters from the aligned vector so the
// response can echo them without a second tracker read.
func flowFromVector(fv *model.FeatureVector) model.FlowSnapshot {
	snap := model.FlowSnapshot{}
	if v, ok := fv.Get(feature.FieldTotPkts); ok {
		snap.PktCount = uint64(v.Num)
	}
	if v, ok := fv.Get(feature.FieldTotBytes); ok {
		snap.ByteCount = uint64(v.Num)
	}
	if v, ok := fv.Get(feature.FieldDur); ok {
		snap.Duration = v.Num
	}
	if v, ok := fv.Get(feature.FieldRate); ok {
		snap.Rate = v.Num
	}
	return snap
}

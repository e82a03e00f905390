// Package metrics exports Prometheus counters for the scoring service and
// the bus bridge. Both surfaces expose them on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the instrument set for one process.
type Metrics struct {
	EventsScored    prometheus.Counter
	AttacksDetected prometheus.Counter
	ScoringFailures prometheus.Counter
	ScoringSeconds  prometheus.Histogram

	MessagesForwarded prometheus.Counter
	MessagesBlocked   prometheus.Counter
	StatusMirrored    prometheus.Counter
	MessagesDropped   prometheus.Counter

	ObserversPruned prometheus.Counter
}

// New registers the instrument set on the default registry.
func New() *Metrics {
	return NewWith(prometheus.DefaultRegisterer)
}

// NewWith registers the instrument set on reg. Tests pass their own registry
// so repeated construction does not collide.
func NewWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		EventsScored: factory.NewCounter(prometheus.CounterOpts{
			Name: "twinguard_events_scored_total",
			Help: "Telemetry events run through the scoring pipeline.",
		}),
		AttacksDetected: factory.NewCounter(prometheus.CounterOpts{
			Name: "twinguard_attacks_detected_total",
			Help: "Events whose fused verdict was ATTACK.",
		}),
		ScoringFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "twinguard_scoring_failures_total",
			Help: "Scoring attempts that ended in an internal error.",
		}),
		ScoringSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "twinguard_scoring_duration_seconds",
			Help:    "Wall time of one scoring pipeline pass.",
			Buckets: prometheus.DefBuckets,
		}),
		MessagesForwarded: factory.NewCounter(prometheus.CounterOpts{
			Name: "twinguard_bridge_forwarded_total",
			Help: "Data messages republished downstream after a NORMAL verdict.",
		}),
		MessagesBlocked: factory.NewCounter(prometheus.CounterOpts{
			Name: "twinguard_bridge_blocked_total",
			Help: "Data messages blocked (ATTACK verdict or fail-closed).",
		}),
		StatusMirrored: factory.NewCounter(prometheus.CounterOpts{
			Name: "twinguard_bridge_status_mirrored_total",
			Help: "Status messages mirrored verbatim downstream.",
		}),
		MessagesDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "twinguard_bridge_dropped_total",
			Help: "Inbound messages dropped before scoring (malformed payloads).",
		}),
		ObserversPruned: factory.NewCounter(prometheus.CounterOpts{
			Name: "twinguard_verdict_observers_pruned_total",
			Help: "Verdict observers detached for not keeping up.",
		}),
	}
}

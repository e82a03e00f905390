// Package bridge is the bus-facing forwarding gate. It sits between the
// device ingress subjects and the downstream consumer: status messages are
// mirrored verbatim, data messages are scored and then either republished
// or blocked. Any failure of the scoring call blocks the message —
// fail-closed, never fail-open.
package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"TwinGuard/internal/config"
	"TwinGuard/internal/flowstats"
	"TwinGuard/internal/metrics"
	"TwinGuard/internal/model"
)

// Outcome is the terminal state of one inbound message.
type Outcome string

const (
	OutcomeForwarded Outcome = "FORWARDED"
	OutcomeBlocked   Outcome = "BLOCKED"
	OutcomeMirrored  Outcome = "MIRRORED"
	OutcomeDropped   Outcome = "DROPPED"
)

const statusSuffix = "status"

// Publisher abstracts the outbound side of the bus. *nats.Conn satisfies it.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// Gate implements the per-message forward/block decision. It keeps its own
// per-device traffic counters: the bridge runs in a separate process from
// the scoring service, so it cannot share the service's tracker.
type Gate struct {
	cfg     config.BridgeConfig
	scorer  Scorer
	pub     Publisher
	tracker *flowstats.Tracker
	metrics *metrics.Metrics
}

// NewGate creates a gate. The idle timeout on the bridge-side tracker
// matches the pipeline default; the counters only feed metadata, so drift
// between the two trackers is acceptable.
func NewGate(cfg config.BridgeConfig, scorer Scorer, pub Publisher, m *metrics.Metrics) *Gate {
	return &Gate{
		cfg:     cfg,
		scorer:  scorer,
		pub:     pub,
		tracker: flowstats.NewTracker(5 * time.Second),
		metrics: m,
	}
}

// Handle processes one inbound message and returns its terminal outcome.
// Messages are independent: no retry, no reordering beyond what the bus
// already provides.
func (g *Gate) Handle(subject string, payload []byte) Outcome {
	deviceID, isStatus := g.parseSubject(subject)

	if isStatus {
		return g.mirrorStatus(deviceID, payload)
	}
	return g.forwardData(deviceID, subject, payload)
}

// parseSubject extracts the device id from an ingress subject of the form
// "<root>.<gateway>.in.<device>[.status]".
func (g *Gate) parseSubject(subject string) (deviceID string, isStatus bool) {
	parts := strings.Split(subject, ".")
	if len(parts) >= 5 && parts[len(parts)-1] == statusSuffix {
		return parts[len(parts)-2], true
	}
	if len(parts) >= 4 {
		return parts[len(parts)-1], false
	}
	return "unknown", false
}

// mirrorStatus republishes a status message byte-identical downstream.
// Status messages carry no attack-relevant payload and bypass scoring.
func (g *Gate) mirrorStatus(deviceID string, payload []byte) Outcome {
	out := fmt.Sprintf("%s.%s.%s", g.cfg.EgressRoot, deviceID, statusSuffix)
	if err := g.pub.Publish(out, payload); err != nil {
		log.Printf("Failed to mirror status for device %s: %v", deviceID, err)
		return OutcomeDropped
	}
	g.metrics.StatusMirrored.Inc()
	return OutcomeMirrored
}

func (g *Gate) forwardData(topicDevice, subject string, payload []byte) Outcome {
	var data map[string]any
	if err := json.Unmarshal(payload, &data); err != nil {
		log.Printf("Non-JSON payload on %s dropped: %v", subject, err)
		g.metrics.MessagesDropped.Inc()
		return OutcomeDropped
	}

	deviceID := topicDevice
	if id, ok := data["device_id"].(string); ok && id != "" {
		deviceID = id
	}

	// Annotate the event with gateway-side flow statistics; the scoring
	// service treats them as authoritative.
	data["network_metadata"] = g.buildMetadata(deviceID, subject, len(payload))
	request, err := json.Marshal(data)
	if err != nil {
		log.Printf("Failed to marshal scoring request for device %s: %v", deviceID, err)
		g.metrics.MessagesDropped.Inc()
		return OutcomeDropped
	}

	reply, err := g.scorer.Score(context.Background(), request)
	if err != nil {
		// Fail-closed: a slow or failed scoring call blocks the message.
		log.Printf("Blocking message from device %s: scoring call failed: %v", deviceID, err)
		g.metrics.MessagesBlocked.Inc()
		return OutcomeBlocked
	}

	if reply.Prediction != model.LabelNormal {
		log.Printf("Blocking message from device %s: prediction=%s confidence=%.4f",
			deviceID, reply.Prediction, reply.Confidence)
		g.metrics.MessagesBlocked.Inc()
		if g.cfg.PublishAlerts {
			alertSubject := fmt.Sprintf("%s.%s.alert", g.cfg.EgressRoot, deviceID)
			if err := g.pub.Publish(alertSubject, reply.Raw); err != nil {
				log.Printf("Failed to publish alert for device %s: %v", deviceID, err)
			}
		}
		return OutcomeBlocked
	}

	// Forward the original payload, not the verdict: the downstream
	// consumer expects the vitals JSON the device produced.
	out := fmt.Sprintf("%s.%s", g.cfg.EgressRoot, deviceID)
	if err := g.pub.Publish(out, payload); err != nil {
		log.Printf("Failed to forward message for device %s: %v", deviceID, err)
		g.metrics.MessagesBlocked.Inc()
		return OutcomeBlocked
	}

	g.metrics.MessagesForwarded.Inc()
	return OutcomeForwarded
}

func (g *Gate) buildMetadata(deviceID, subject string, payloadSize int) model.NetworkMetadata {
	now := time.Now()
	snap := g.tracker.Record(deviceID, payloadSize, now)

	return model.NetworkMetadata{
		SrcIP:         g.cfg.DeviceIP,
		DstIP:         g.cfg.GatewayIP,
		SrcPort:       1883,
		DstPort:       8000,
		PktSize:       payloadSize,
		FlowPktCount:  snap.PktCount,
		FlowByteCount: snap.ByteCount,
		FlowDuration:  snap.Duration,
		CurrentRate:   snap.CurrentRate,
		BusTopic:      subject,
		GatewayID:     g.cfg.GatewayID,
		Timestamp:     float64(now.UnixNano()) / 1e9,
	}
}

// Bridge owns the bus subscription feeding a Gate.
type Bridge struct {
	gate *Gate
	nc   *nats.Conn
	sub  *nats.Subscription
	cfg  config.BridgeConfig
}

// NewBridge connects to NATS and assembles the gate around the connection.
func NewBridge(cfg config.BridgeConfig, m *metrics.Metrics) (*Bridge, error) {
	timeout, err := cfg.ScoringTimeoutDuration()
	if err != nil {
		return nil, err
	}

	nc, err := nats.Connect(cfg.NATSURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	log.Printf("Connected to NATS server at %s", cfg.NATSURL)

	scorer := NewHTTPScorer(cfg.APIURL, timeout)
	return &Bridge{
		gate: NewGate(cfg, scorer, nc, m),
		nc:   nc,
		cfg:  cfg,
	}, nil
}

// Start subscribes to the ingress subject tree and dispatches each message
// to the gate.
func (b *Bridge) Start() error {
	subject := fmt.Sprintf("%s.%s.in.>", b.cfg.IngressRoot, b.cfg.GatewayID)
	sub, err := b.nc.Subscribe(subject, func(msg *nats.Msg) {
		outcome := b.gate.Handle(msg.Subject, msg.Data)
		log.Printf("%s: %s", msg.Subject, outcome)
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to '%s': %w", subject, err)
	}
	b.sub = sub
	log.Printf("Subscribed to '%s'. Forwarding to '%s.*'", subject, b.cfg.EgressRoot)
	log.Printf("Using scoring endpoint: %s", b.cfg.APIURL)
	return nil
}

// Close unsubscribes and drains the NATS connection.
func (b *Bridge) Close() {
	if b.sub != nil {
		b.sub.Unsubscribe()
	}
	if b.nc != nil {
		b.nc.Drain()
		log.Println("NATS connection drained and closed.")
	}
}

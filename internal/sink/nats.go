package sink

import (
	"encoding/json"
	"fmt"
	"log"

	"github.com/nats-io/nats.go"

	"TwinGuard/internal/model"
)

// NATSPublisher publishes verdict records to a per-device subject so live
// observers (dashboards, alert consumers) can watch verdicts in real time.
// NATS publishes are fire-and-forget, which matches the best-effort
// broadcast contract.
type NATSPublisher struct {
	nc   *nats.Conn
	root string
}

// NewNATSPublisher connects to the server and returns a publisher rooted at
// subjectRoot (verdicts go to "<root>.<device-id>").
func NewNATSPublisher(url, subjectRoot string) (*NATSPublisher, error) {
	nc, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	log.Printf("Connected to NATS server at %s for verdict broadcast", url)
	return &NATSPublisher{nc: nc, root: subjectRoot}, nil
}

// Write publishes one record.
func (p *NATSPublisher) Write(rec model.VerdictRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal verdict record: %w", err)
	}
	return p.nc.Publish(p.root+"."+rec.DeviceID, data)
}

// Close drains and closes the NATS connection.
func (p *NATSPublisher) Close() error {
	if p.nc != nil {
		p.nc.Drain()
	}
	return nil
}

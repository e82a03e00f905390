package main

import (
	"TwinGuard/internal/model"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand"
	"time"

	"github.com/nats-io/nats.go"
)

// tg-simdev simulates a pulse oximeter publishing vitals onto the edge bus.
// It exercises the full forwarding path: bridge ingress, scoring call, and
// conditional egress.

func generateVitals(deviceID string, seq int, attack bool) model.TelemetryEvent {
	var spo2 float64
	var pulse int
	if attack {
		spo2 = math.Round((70+rand.Float64()*20)*10) / 10 // depressed oxygen
		pulse = 110 + rand.Intn(71)                       // elevated heart rate
	} else {
		spo2 = math.Round((92+rand.Float64()*8)*10) / 10 // normal: 92-100%
		pulse = 60 + rand.Intn(41)                       // normal: 60-100 bpm
	}
	return model.TelemetryEvent{
		Type:     "vitals",
		DeviceID: deviceID,
		TsUnix:   float64(time.Now().UnixNano()) / 1e9,
		Seq:      int64(seq),
		SpO2:     spo2,
		Pulse:    pulse,
		Status:   "ok",
	}
}

func main() {
	url := flag.String("nats", nats.DefaultURL, "NATS server URL.")
	deviceID := flag.String("device-id", "oximeter-001", "Device ID.")
	gatewayID := flag.String("gateway-id", "pi-01", "Gateway ID.")
	count := flag.Int("count", 5, "Number of messages to send.")
	interval := flag.Duration("interval", 2*time.Second, "Delay between messages.")
	attack := flag.Bool("attack", false, "Simulate an attack scenario with abnormal vitals.")
	rapid := flag.Bool("rapid", false, "Send messages rapidly (100ms interval) to trigger rate features.")
	flag.Parse()

	subject := fmt.Sprintf("edge.%s.in.%s", *gatewayID, *deviceID)

	nc, err := nats.Connect(*url, nats.Name("tg-simdev-"+*deviceID))
	if err != nil {
		log.Fatalf("Failed to connect to NATS at %s: %v", *url, err)
	}
	defer nc.Drain()
	log.Printf("Connected to %s, publishing %d messages on %s", *url, *count, subject)

	delay := *interval
	if *rapid {
		delay = 100 * time.Millisecond
	}

	for i := 1; i <= *count; i++ {
		event := generateVitals(*deviceID, i, *attack)
		payload, err := json.Marshal(event)
		if err != nil {
			log.Fatalf("Failed to marshal event: %v", err)
		}
		if err := nc.Publish(subject, payload); err != nil {
			log.Printf("Publish %d/%d failed: %v", i, *count, err)
			continue
		}
		log.Printf("Message %d/%d: spo2=%.1f pulse=%d seq=%d", i, *count, event.SpO2, event.Pulse, event.Seq)
		if i < *count {
			time.Sleep(delay)
		}
	}

	// Give the server a moment to flush before draining.
	if err := nc.Flush(); err != nil {
		log.Printf("Flush failed: %v", err)
	}
	log.Printf("Completed sending %d messages.", *count)
}

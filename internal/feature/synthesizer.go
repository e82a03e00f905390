package feature

import (
	"log"
	"strconv"
	"strings"
	"time"

	"TwinGuard/internal/flowstats"
	"TwinGuard/internal/model"
)

// Canonical raw feature names. The classifier declares which subset (and
// order) it actually consumes; Align reconciles the two.
const (
	FieldSrcAddr  = "SrcAddr"
	FieldDstAddr  = "DstAddr"
	FieldSport    = "Sport"
	FieldDport    = "Dport"
	FieldTotPkts  = "TotPkts"
	FieldTotBytes = "TotBytes"
	FieldDur      = "Dur"
	FieldRate     = "Rate"
	FieldSrcBytes = "SrcBytes"
	FieldDstBytes = "DstBytes"
)

// metadataDurFloor is the duration floor applied to gateway-supplied flow
// durations, matching the floor the gateway counters were collected under.
const metadataDurFloor = 0.001

// metadataRateFloor avoids degenerate near-zero rates in downstream scoring.
const metadataRateFloor = 0.1

// Localhost clamp bounds. Loopback traffic accumulates absurd rates in local
// testing; the clamp keeps the numbers in the range the model was trained on.
const (
	localDurFloor = 1.0
	localRateCap  = 50.0
)

// PeerInfo is the transport-level identity of the event producer, used when
// no gateway metadata is supplied.
type PeerInfo struct {
	Addr string
	Port int
}

// Options are the policy knobs for the tracker-derived path.
type Options struct {
	// DstAddr and DstPort describe the fixed local endpoint events arrive at.
	DstAddr string
	DstPort int
	// ApproxEventBytes is the assumed wire size of one event.
	ApproxEventBytes int
	// LocalClamp enables the loopback duration/rate clamp.
	LocalClamp bool
}

// Synthesizer builds classifier-ready feature vectors from telemetry
// events. Gateway-supplied network metadata is authoritative; otherwise the
// per-source tracker is consulted (and updated as a side effect).
type Synthesizer struct {
	tracker  *flowstats.Tracker
	expected []string
	opts     Options
}

// NewSynthesizer creates a synthesizer aligned to the classifier's expected
// field names.
func NewSynthesizer(tracker *flowstats.Tracker, expected []string, opts Options) *Synthesizer {
	if opts.ApproxEventBytes <= 0 {
		opts.ApproxEventBytes = 300
	}
	return &Synthesizer{tracker: tracker, expected: expected, opts: opts}
}

// Build derives the raw feature map for one event and aligns it to the
// classifier schema. When event.Network is nil the tracker is mutated.
func (s *Synthesizer) Build(event *model.TelemetryEvent, peer PeerInfo, now time.Time) *model.FeatureVector {
	var raw *model.FeatureVector
	if event.Network != nil {
		raw = s.fromMetadata(event.Network)
	} else {
		raw = s.fromTracker(event, peer, now)
	}
	return Align(raw, s.expected)
}

func (s *Synthesizer) fromMetadata(meta *model.NetworkMetadata) *model.FeatureVector {
	srcIP := meta.SrcIP
	if srcIP == "" {
		srcIP = "0.0.0.0"
	}
	dstIP := meta.DstIP
	if dstIP == "" {
		dstIP = s.opts.DstAddr
	}

	pktSize := meta.PktSize
	if pktSize <= 0 {
		pktSize = s.opts.ApproxEventBytes
	}
	pktCount := meta.FlowPktCount
	if pktCount == 0 {
		pktCount = 1
	}
	byteCount := meta.FlowByteCount
	if byteCount == 0 {
		byteCount = uint64(pktSize)
	}

	dur := meta.FlowDuration
	if dur < metadataDurFloor {
		dur = metadataDurFloor
	}

	// Prefer the gateway's burst-sensitive rate; fall back to the lifetime
	// average from its counters.
	rate := meta.CurrentRate
	if rate == 0 {
		rate = float64(pktCount) / dur
	}
	if rate < metadataRateFloor {
		rate = metadataRateFloor
	}

	fv := model.NewFeatureVector(10)
	fv.Set(FieldSrcAddr, model.StringFeature(srcIP))
	fv.Set(FieldDstAddr, model.StringFeature(dstIP))
	fv.Set(FieldSport, model.StringFeature(strconv.Itoa(meta.SrcPort)))
	fv.Set(FieldDport, model.StringFeature(strconv.Itoa(meta.DstPort)))
	fv.Set(FieldTotPkts, model.NumFeature(float64(pktCount)))
	fv.Set(FieldTotBytes, model.NumFeature(float64(byteCount)))
	fv.Set(FieldDur, model.NumFeature(dur))
	fv.Set(FieldRate, model.NumFeature(rate))
	fv.Set(FieldSrcBytes, model.NumFeature(float64(byteCount)))
	fv.Set(FieldDstBytes, model.NumFeature(0))
	return fv
}

func (s *Synthesizer) fromTracker(event *model.TelemetryEvent, peer PeerInfo, now time.Time) *model.FeatureVector {
	srcIP := peer.Addr
	if srcIP == "" {
		srcIP = "0.0.0.0"
	}

	key := srcIP + "-" + event.DeviceID
	snap := s.tracker.Record(key, s.opts.ApproxEventBytes, now)

	dur := snap.Duration
	rate := snap.Rate
	if s.opts.LocalClamp && isLoopback(srcIP) {
		if dur < localDurFloor {
			dur = localDurFloor
		}
		if rate > localRateCap {
			rate = localRateCap
		}
	}

	fv := model.NewFeatureVector(10)
	fv.Set(FieldSrcAddr, model.StringFeature(srcIP))
	fv.Set(FieldDstAddr, model.StringFeature(s.opts.DstAddr))
	fv.Set(FieldSport, model.StringFeature(strconv.Itoa(peer.Port)))
	fv.Set(FieldDport, model.StringFeature(strconv.Itoa(s.opts.DstPort)))
	fv.Set(FieldTotPkts, model.NumFeature(float64(snap.PktCount)))
	fv.Set(FieldTotBytes, model.NumFeature(float64(snap.ByteCount)))
	fv.Set(FieldDur, model.NumFeature(dur))
	fv.Set(FieldRate, model.NumFeature(rate))
	fv.Set(FieldSrcBytes, model.NumFeature(float64(snap.ByteCount)))
	fv.Set(FieldDstBytes, model.NumFeature(0))
	return fv
}

func isLoopback(addr string) bool {
	return strings.HasPrefix(addr, "127.") || addr == "::1" || addr == "localhost"
}

// Align reconciles a raw feature vector with the classifier's expected
// ordered field names: expected fields present in raw are copied, missing
// ones are filled with a zero default, and raw fields outside the schema are
// dropped. The output order equals expected exactly, so the classifier
// always receives a structurally valid input regardless of upstream drift.
func Align(raw *model.FeatureVector, expected []string) *model.FeatureVector {
	out := model.NewFeatureVector(len(expected))
	var missing, extra []string

	for _, name := range expected {
		if v, ok := raw.Get(name); ok {
			out.Set(name, v)
		} else {
			missing = append(missing, name)
			out.Set(name, defaultFor(name))
		}
	}

	if raw.Len() != out.Len() || len(missing) > 0 {
		for _, name := range raw.Names() {
			if _, ok := out.Get(name); !ok {
				extra = append(extra, name)
			}
		}
	}
	if len(missing) > 0 || len(extra) > 0 {
		// Schema drift is absorbed, not propagated, but worth seeing in logs.
		log.Printf("Feature schema drift: filled %v, dropped %v", missing, extra)
	}

	return out
}

// defaultFor picks the fill value for an expected field absent from the raw
// map: "0" for the categorical address/port fields, 0.0 otherwise.
func defaultFor(name string) model.FeatureValue {
	switch name {
	case FieldSrcAddr, FieldDstAddr, FieldSport, FieldDport:
		return model.StringFeature("0")
	default:
		return model.NumFeature(0)
	}
}

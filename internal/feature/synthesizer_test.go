package feature

import (
	"testing"
	"time"

	"TwinGuard/internal/flowstats"
	"TwinGuard/internal/model"
)

var allFields = []string{
	FieldSrcAddr, FieldDstAddr, FieldSport, FieldDport,
	FieldTotPkts, FieldTotBytes, FieldDur, FieldRate,
	FieldSrcBytes, FieldDstBytes,
}

func TestAlign_FillsMissingAndDropsExtra(t *testing.T) {
	// Raw map with one unexpected field and one expected field missing.
	raw := model.NewFeatureVector(3)
	raw.Set(FieldSrcAddr, model.StringFeature("10.0.0.9"))
	raw.Set("Foo", model.NumFeature(42))
	raw.Set(FieldDur, model.NumFeature(2.5))

	expected := []string{FieldSrcAddr, FieldDur, FieldRate}
	out := Align(raw, expected)

	// 1. "Foo" must be gone.
	if _, ok := out.Get("Foo"); ok {
		t.Errorf("Expected unexpected field Foo to be dropped")
	}

	// 2. Missing "Rate" must be filled with 0.0.
	rate, ok := out.Get(FieldRate)
	if !ok {
		t.Fatalf("Expected Rate to be filled in")
	}
	if !rate.IsNum || rate.Num != 0 {
		t.Errorf("Expected Rate default 0.0, got %+v", rate)
	}

	// 3. Key set and order must equal the expected list exactly.
	names := out.Names()
	if len(names) != len(expected) {
		t.Fatalf("Expected %d fields, got %d", len(expected), len(names))
	}
	for i, name := range expected {
		if names[i] != name {
			t.Errorf("Field %d: expected %q, got %q", i, name, names[i])
		}
	}
}

func TestAlign_PreservesDeclaredOrder(t *testing.T) {
	raw := model.NewFeatureVector(10)
	// Insert in scrambled order.
	raw.Set(FieldRate, model.NumFeature(3))
	raw.Set(FieldSrcAddr, model.StringFeature("1.2.3.4"))
	raw.Set(FieldDur, model.NumFeature(1))

	out := Align(raw, allFields)
	names := out.Names()
	for i, name := range allFields {
		if names[i] != name {
			t.Fatalf("Expected order %v, got %v", allFields, names)
		}
	}
}

func TestBuild_MetadataPathIsAuthoritative(t *testing.T) {
	tracker := flowstats.NewTracker(5 * time.Second)
	synth := NewSynthesizer(tracker, allFields, Options{
		DstAddr: "127.0.0.1", DstPort: 8000, ApproxEventBytes: 300,
	})

	event := &model.TelemetryEvent{
		DeviceID: "oxi-01",
		Network: &model.NetworkMetadata{
			SrcIP:         "192.168.1.100",
			DstIP:         "192.168.1.1",
			SrcPort:       1883,
			DstPort:       8000,
			PktSize:       250,
			FlowPktCount:  12,
			FlowByteCount: 3000,
			FlowDuration:  4.0,
			CurrentRate:   20.0,
		},
	}

	fv := synth.Build(event, PeerInfo{Addr: "10.9.9.9", Port: 55555}, time.Now())

	// Metadata values win over the transport peer and the tracker.
	if v, _ := fv.Get(FieldSrcAddr); v.Str != "192.168.1.100" {
		t.Errorf("Expected metadata src address, got %q", v.Str)
	}
	if v, _ := fv.Get(FieldTotPkts); v.Num != 12 {
		t.Errorf("Expected metadata pkt count 12, got %f", v.Num)
	}
	if v, _ := fv.Get(FieldRate); v.Num != 20.0 {
		t.Errorf("Expected metadata current rate 20.0, got %f", v.Num)
	}
	// The tracker must not have been consulted for feature derivation.
	if tracker.Len() != 0 {
		t.Errorf("Expected tracker untouched on the metadata path, got %d keys", tracker.Len())
	}
}

func TestBuild_MetadataRateDerivedWithFloor(t *testing.T) {
	synth := NewSynthesizer(flowstats.NewTracker(5*time.Second), allFields, Options{
		DstAddr: "127.0.0.1", DstPort: 8000,
	})

	event := &model.TelemetryEvent{
		DeviceID: "oxi-01",
		Network: &model.NetworkMetadata{
			SrcIP:         "192.168.1.100",
			FlowPktCount:  1,
			FlowByteCount: 200,
			FlowDuration:  100.0, // 0.01 pkt/s lifetime, under the floor
		},
	}

	fv := synth.Build(event, PeerInfo{}, time.Now())
	if v, _ := fv.Get(FieldRate); v.Num != metadataRateFloor {
		t.Errorf("Expected rate floored at %f, got %f", metadataRateFloor, v.Num)
	}
	if v, _ := fv.Get(FieldDur); v.Num != 100.0 {
		t.Errorf("Expected metadata duration kept, got %f", v.Num)
	}
}

func TestBuild_TrackerPathUpdatesState(t *testing.T) {
	tracker := flowstats.NewTracker(5 * time.Second)
	synth := NewSynthesizer(tracker, allFields, Options{
		DstAddr: "10.0.0.1", DstPort: 8000, ApproxEventBytes: 300,
	})

	event := &model.TelemetryEvent{DeviceID: "oxi-02"}
	peer := PeerInfo{Addr: "192.168.1.50", Port: 40001}
	base := time.Date(2024, 5, 13, 12, 0, 0, 0, time.UTC)

	synth.Build(event, peer, base)
	fv := synth.Build(event, peer, base.Add(2*time.Second))

	if v, _ := fv.Get(FieldTotPkts); v.Num != 2 {
		t.Errorf("Expected 2 packets recorded, got %f", v.Num)
	}
	if v, _ := fv.Get(FieldTotBytes); v.Num != 600 {
		t.Errorf("Expected 600 bytes recorded, got %f", v.Num)
	}
	if v, _ := fv.Get(FieldDstAddr); v.Str != "10.0.0.1" {
		t.Errorf("Expected fixed destination address, got %q", v.Str)
	}
	if tracker.Len() != 1 {
		t.Errorf("Expected one tracked key, got %d", tracker.Len())
	}
}

func TestBuild_LocalClampToggle(t *testing.T) {
	base := time.Date(2024, 5, 13, 12, 0, 0, 0, time.UTC)
	event := &model.TelemetryEvent{DeviceID: "oxi-03"}
	peer := PeerInfo{Addr: "127.0.0.1", Port: 40002}

	// 1. Clamp on: a rapid loopback burst gets demo-realistic numbers.
	clamped := NewSynthesizer(flowstats.NewTracker(5*time.Second), allFields, Options{
		DstAddr: "127.0.0.1", DstPort: 8000, LocalClamp: true,
	})
	var fv *model.FeatureVector
	for i := 0; i < 100; i++ {
		fv = clamped.Build(event, peer, base.Add(time.Duration(i)*time.Millisecond))
	}
	if v, _ := fv.Get(FieldRate); v.Num > localRateCap {
		t.Errorf("Expected clamped rate <= %f, got %f", localRateCap, v.Num)
	}
	if v, _ := fv.Get(FieldDur); v.Num < localDurFloor {
		t.Errorf("Expected clamped duration >= %f, got %f", localDurFloor, v.Num)
	}

	// 2. Clamp off: raw tracker numbers flow through untouched.
	unclamped := NewSynthesizer(flowstats.NewTracker(5*time.Second), allFields, Options{
		DstAddr: "127.0.0.1", DstPort: 8000, LocalClamp: false,
	})
	for i := 0; i < 100; i++ {
		fv = unclamped.Build(event, peer, base.Add(time.Duration(i)*time.Millisecond))
	}
	if v, _ := fv.Get(FieldRate); v.Num <= localRateCap {
		t.Errorf("Expected raw burst rate above %f with clamp off, got %f", localRateCap, v.Num)
	}
}

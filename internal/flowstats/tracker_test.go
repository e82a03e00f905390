package flowstats

import (
	"fmt"
	"math"
	"sync"
	"testing"
	"time"
)

func TestTracker_AccumulateWithinIdleWindow(t *testing.T) {
	tracker := NewTracker(5 * time.Second)
	base := time.Date(2024, 5, 13, 12, 0, 0, 0, time.UTC)

	// 1. Record 4 events for one key, one second apart.
	var last = tracker.Record("10.0.0.1-oxi-01", 300, base)
	for i := 1; i < 4; i++ {
		last = tracker.Record("10.0.0.1-oxi-01", 300, base.Add(time.Duration(i)*time.Second))
	}

	// 2. Verify the lifetime counters.
	if last.PktCount != 4 {
		t.Errorf("Expected pkt_count 4, got %d", last.PktCount)
	}
	if last.ByteCount != 1200 {
		t.Errorf("Expected byte_count 1200, got %d", last.ByteCount)
	}
	if math.Abs(last.Duration-3.0) > 1e-9 {
		t.Errorf("Expected duration 3.0s, got %f", last.Duration)
	}

	// 3. rate must equal pkt_count / duration.
	want := float64(last.PktCount) / last.Duration
	if math.Abs(last.Rate-want) > 1e-9 {
		t.Errorf("Expected rate %f, got %f", want, last.Rate)
	}
}

func TestTracker_IdleGapResetsFlow(t *testing.T) {
	tracker := NewTracker(5 * time.Second)
	base := time.Date(2024, 5, 13, 12, 0, 0, 0, time.UTC)

	// 1. Three events close together.
	tracker.Record("dev", 100, base)
	tracker.Record("dev", 100, base.Add(1*time.Second))
	tracker.Record("dev", 100, base.Add(2*time.Second))

	// 2. One more after a gap exceeding the idle timeout.
	snap := tracker.Record("dev", 250, base.Add(10*time.Second))

	// 3. The flow must have restarted, not accumulated to 4.
	if snap.PktCount != 1 {
		t.Errorf("Expected pkt_count 1 after idle reset, got %d", snap.PktCount)
	}
	if snap.ByteCount != 250 {
		t.Errorf("Expected byte_count 250 after idle reset, got %d", snap.ByteCount)
	}
	if snap.Duration != durationEpsilon {
		t.Errorf("Expected epsilon duration after reset, got %f", snap.Duration)
	}
}

func TestTracker_KeysAreIndependent(t *testing.T) {
	tracker := NewTracker(5 * time.Second)
	base := time.Date(2024, 5, 13, 12, 0, 0, 0, time.UTC)

	// Interleave events for two keys; each must only see its own counts.
	for i := 0; i < 6; i++ {
		tracker.Record("a", 10, base.Add(time.Duration(i)*100*time.Millisecond))
		if i%2 == 0 {
			tracker.Record("b", 20, base.Add(time.Duration(i)*100*time.Millisecond))
		}
	}

	a, ok := tracker.Snapshot("a")
	if !ok || a.PktCount != 6 {
		t.Errorf("Expected 6 packets for key a, got %d (ok=%v)", a.PktCount, ok)
	}
	b, ok := tracker.Snapshot("b")
	if !ok || b.PktCount != 3 {
		t.Errorf("Expected 3 packets for key b, got %d (ok=%v)", b.PktCount, ok)
	}
	if tracker.Len() != 2 {
		t.Errorf("Expected 2 tracked keys, got %d", tracker.Len())
	}
}

func TestTracker_BurstWindowResets(t *testing.T) {
	tracker := NewTracker(5 * time.Second)
	base := time.Date(2024, 5, 13, 12, 0, 0, 0, time.UTC)

	// 1. A burst of 5 events inside one second.
	var snap = tracker.Record("dev", 100, base)
	for i := 1; i < 5; i++ {
		snap = tracker.Record("dev", 100, base.Add(time.Duration(i)*50*time.Millisecond))
	}
	if snap.CurrentRate != 5 {
		t.Errorf("Expected current_rate 5 inside the burst window, got %f", snap.CurrentRate)
	}

	// 2. The next event lands past the 1s window but inside the idle
	// timeout: lifetime count keeps growing while the window restarts.
	snap = tracker.Record("dev", 100, base.Add(2*time.Second))
	if snap.PktCount != 6 {
		t.Errorf("Expected lifetime pkt_count 6, got %d", snap.PktCount)
	}
	if snap.CurrentRate != 1 {
		t.Errorf("Expected current_rate reset to 1, got %f", snap.CurrentRate)
	}
}

func TestTracker_ConcurrentSameKey(t *testing.T) {
	tracker := NewTracker(5 * time.Second)
	base := time.Date(2024, 5, 13, 12, 0, 0, 0, time.UTC)

	const goroutines = 8
	const perGoroutine = 200

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for g := 0; g < goroutines; g++ {
		go func(g int) {
			defer wg.Done()
			for i := 0; i < perGoroutine; i++ {
				// All timestamps within the idle window so nothing resets.
				tracker.Record("shared", 1, base.Add(time.Duration(i)*time.Millisecond))
			}
		}(g)
	}
	wg.Wait()

	snap, ok := tracker.Snapshot("shared")
	if !ok {
		t.Fatalf("Expected snapshot for shared key")
	}
	if snap.PktCount != goroutines*perGoroutine {
		t.Errorf("Expected %d packets, got %d", goroutines*perGoroutine, snap.PktCount)
	}
}

func TestTracker_DistinctKeysDoNotShareState(t *testing.T) {
	tracker := NewTracker(time.Second)
	base := time.Date(2024, 5, 13, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 300; i++ {
		tracker.Record(fmt.Sprintf("dev-%03d", i), 10, base)
	}
	if tracker.Len() != 300 {
		t.Errorf("Expected 300 tracked keys, got %d", tracker.Len())
	}
}

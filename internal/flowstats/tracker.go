package flowstats

import (
	"hash/fnv"
	"sync"
	"time"

	"TwinGuard/internal/model"
)

const defaultShardCount = 256

// durationEpsilon keeps duration strictly positive so rate division is safe.
const durationEpsilon = 1e-5

// burstWindow is the span of the secondary sliding window used for the
// instantaneous rate. A lifetime average smooths short bursts away; this
// window catches them.
const burstWindow = time.Second

// flowState is the mutable per-key state. It is owned exclusively by the
// tracker and only touched under its shard's lock.
type flowState struct {
	startTime time.Time
	lastTime  time.Time
	pktCount  uint64
	byteCount uint64

	windowStart    time.Time
	windowPktCount uint64
}

// shard is a part of the sharded key map, with its own mutex so that
// distinct keys proceed independently.
type shard struct {
	flows map[string]*flowState
	mu    sync.Mutex
}

// Tracker accumulates per-source traffic statistics under a sharded map.
// A key whose idle gap exceeds the configured timeout is reset in place on
// its next event, modeling flow expiry. Entries persist for the process
// lifetime.
type Tracker struct {
	shards      []*shard
	shardCount  uint32
	idleTimeout time.Duration
}

// NewTracker creates a tracker with the given idle timeout.
func NewTracker(idleTimeout time.Duration) *Tracker {
	t := &Tracker{
		shards:      make([]*shard, defaultShardCount),
		shardCount:  defaultShardCount,
		idleTimeout: idleTimeout,
	}
	for i := 0; i < defaultShardCount; i++ {
		t.shards[i] = &shard{flows: make(map[string]*flowState)}
	}
	return t
}

// getShard returns the appropriate shard for a given key.
func (t *Tracker) getShard(key string) *shard {
	hasher := fnv.New32a()
	hasher.Write([]byte(key))
	return t.shards[hasher.Sum32()%t.shardCount]
}

// Record registers one event of eventSize bytes for key at time now and
// returns the resulting snapshot. Calls for the same key are serialized by
// the shard lock; calls for keys on different shards never contend.
func (t *Tracker) Record(key string, eventSize int, now time.Time) model.FlowSnapshot {
	sh := t.getShard(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	fs, ok := sh.flows[key]
	if !ok || now.Sub(fs.lastTime) > t.idleTimeout {
		// First event for the key, or the flow went idle past the timeout:
		// start fresh and discard any accumulated history.
		fs = &flowState{
			startTime:      now,
			lastTime:       now,
			pktCount:       1,
			byteCount:      uint64(eventSize),
			windowStart:    now,
			windowPktCount: 1,
		}
		sh.flows[key] = fs
	} else {
		fs.lastTime = now
		fs.pktCount++
		fs.byteCount += uint64(eventSize)

		if now.Sub(fs.windowStart) > burstWindow {
			fs.windowStart = now
			fs.windowPktCount = 1
		} else {
			fs.windowPktCount++
		}
	}

	return snapshotLocked(fs)
}

// Snapshot returns the current statistics for key without mutating state.
// The second return is false when the key has never been recorded.
func (t *Tracker) Snapshot(key string) (model.FlowSnapshot, bool) {
	sh := t.getShard(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	fs, ok := sh.flows[key]
	if !ok {
		return model.FlowSnapshot{}, false
	}
	return snapshotLocked(fs), true
}

// Len returns the number of tracked keys across all shards.
func (t *Tracker) Len() int {
	count := 0
	for _, sh := range t.shards {
		sh.mu.Lock()
		count += len(sh.flows)
		sh.mu.Unlock()
	}
	return count
}

func snapshotLocked(fs *flowState) model.FlowSnapshot {
	dur := fs.lastTime.Sub(fs.startTime).Seconds()
	if dur < durationEpsilon {
		dur = durationEpsilon
	}

	return model.FlowSnapshot{
		PktCount:  fs.pktCount,
		ByteCount: fs.byteCount,
		Duration:  dur,
		Rate:      float64(fs.pktCount) / dur,
		// Packets seen in the trailing window, read as packets per second
		// since the window spans at most one second.
		CurrentRate: float64(fs.windowPktCount),
	}
}

package pipeline

import (
	"log"
	"sync"

	"TwinGuard/internal/metrics"
	"TwinGuard/internal/model"
)

// maxConsecutiveDrops is how many sends in a row an observer may miss before
// it is pruned. A full buffer means the observer is not draining; pruning it
// keeps the forward/block path from ever waiting on a slow consumer.
const maxConsecutiveDrops = 16

type observer struct {
	ch    chan model.VerdictRecord
	name  string
	drops int
}

// Broadcaster fans verdict records out to registered observers. Sends never
// block: a record an observer cannot accept is dropped for that observer,
// and observers that stay stuck are pruned.
type Broadcaster struct {
	mu        sync.Mutex
	observers map[chan model.VerdictRecord]*observer
	metrics   *metrics.Metrics
}

// NewBroadcaster creates an empty broadcaster.
func NewBroadcaster(m *metrics.Metrics) *Broadcaster {
	return &Broadcaster{
		observers: make(map[chan model.VerdictRecord]*observer),
		metrics:   m,
	}
}

// Subscribe registers a named observer and returns its channel. The buffer
// absorbs short bursts; an observer that falls behind for good is detached.
func (b *Broadcaster) Subscribe(name string, buffer int) <-chan model.VerdictRecord {
	if buffer <= 0 {
		buffer = 64
	}
	ch := make(chan model.VerdictRecord, buffer)

	b.mu.Lock()
	defer b.mu.Unlock()
	b.observers[ch] = &observer{ch: ch, name: name}
	return ch
}

// Unsubscribe detaches an observer and closes its channel.
func (b *Broadcaster) Unsubscribe(ch <-chan model.VerdictRecord) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for c, obs := range b.observers {
		if c == ch {
			delete(b.observers, c)
			close(obs.ch)
			return
		}
	}
}

// Publish delivers rec to every observer that can take it right now.
func (b *Broadcaster) Publish(rec model.VerdictRecord) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for c, obs := range b.observers {
		select {
		case obs.ch <- rec:
			obs.drops = 0
		default:
			obs.drops++
			if obs.drops >= maxConsecutiveDrops {
				log.Printf("Verdict observer %q is not keeping up, detaching it", obs.name)
				delete(b.observers, c)
				close(obs.ch)
				if b.metrics != nil {
					b.metrics.ObserversPruned.Inc()
				}
			}
		}
	}
}

// Len returns the number of attached observers.
func (b *Broadcaster) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.observers)
}

// Package history keeps a bounded, chronological window of rate samples per
// interface. The ring never grows past its capacity and hands out copies so
// readers can render or export a snapshot without holding the writer up.
package history

import (
	"sync"

	"github.com/netwatch/trafikwatch/models"
)

// Ring is a fixed-capacity FIFO of RateSamples. Once full, each append evicts
// the oldest sample. Safe for concurrent use.
type Ring struct {
	mu    sync.RWMutex
	data  []models.RateSample
	head  int // index of the oldest sample
	count int
}

// NewRing builds a ring holding at most capacity samples. Capacity must be
// positive; non-positive values fall back to 1 so Append never panics.
func NewRing(capacity int) *Ring {
	if capacity < 1 {
		capacity = 1
	}
	return &Ring{data: make([]models.RateSample, capacity)}
}

// Append adds a sample, evicting the oldest when the ring is full. Invalid
// samples are appended like any other so gaps stay visible in the window.
func (r *Ring) Append(s models.RateSample) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.count < len(r.data) {
		r.data[(r.head+r.count)%len(r.data)] = s
		r.count++
		return
	}
	r.data[r.head] = s
	r.head = (r.head + 1) % len(r.data)
}

// Snapshot returns the buffered samples oldest-first. The slice is a copy;
// mutating it does not affect the ring.
func (r *Ring) Snapshot() []models.RateSample {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.RateSample, r.count)
	for i := 0; i < r.count; i++ {
		out[i] = r.data[(r.head+i)%len(r.data)]
	}
	return out
}

// Last returns the most recent sample and true, or the zero sample and false
// when the ring is empty.
func (r *Ring) Last() (models.RateSample, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.count == 0 {
		return models.RateSample{}, false
	}
	return r.data[(r.head+r.count-1)%len(r.data)], true
}

// Len reports how many samples are currently buffered.
func (r *Ring) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.count
}

// Cap reports the fixed capacity of the ring.
func (r *Ring) Cap() int {
	return len(r.data)
}

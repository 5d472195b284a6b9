// Package eventlog provides a fixed-capacity ring of timestamped,
// human-readable system events for operator visibility. Oldest entries are
// silently dropped on overflow; there is no persistence.
package eventlog

import (
	"fmt"
	"sync"
	"time"
)

// DefaultCapacity is the number of entries retained when none is configured.
const DefaultCapacity = 50

// Entry is a single logged event.
type Entry struct {
	TS      time.Time `json:"ts"`
	Message string    `json:"message"`
}

// Ring is a fixed-size circular buffer of log entries.
//
// Thread-safe for concurrent writes and reads.
type Ring struct {
	mu   sync.RWMutex
	buf  []Entry
	pos  int // next write position
	full bool

	now func() time.Time // injectable clock for tests
}

// New creates a ring with the given capacity. Non-positive capacities fall
// back to DefaultCapacity.
func New(capacity int) *Ring {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Ring{
		buf: make([]Entry, capacity),
		now: time.Now,
	}
}

// Append adds a timestamped entry. When the ring is full the oldest entry
// is overwritten; Append never fails.
func (r *Ring) Append(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.buf[r.pos] = Entry{TS: r.now().UTC(), Message: msg}
	r.pos = (r.pos + 1) % len(r.buf)
	if r.pos == 0 && !r.full {
		r.full = true
	}
}

// Appendf formats and appends an entry.
func (r *Ring) Appendf(format string, args ...any) {
	r.Append(fmt.Sprintf(format, args...))
}

// Entries returns a newest-first copy of the current entries.
func (r *Ring) Entries() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := r.len()
	out := make([]Entry, n)
	for i := 0; i < n; i++ {
		// newest is at pos-1, walk backwards
		idx := (r.pos - 1 - i + len(r.buf)*2) % len(r.buf)
		out[i] = r.buf[idx]
	}
	return out
}

// Len returns the number of entries currently retained.
func (r *Ring) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.len()
}

// Cap returns the ring capacity.
func (r *Ring) Cap() int {
	return len(r.buf)
}

func (r *Ring) len() int {
	if r.full {
		return len(r.buf)
	}
	return r.pos
}

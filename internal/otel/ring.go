package otel

import (
	"strings"
	"sync"
)

// DefaultRingSize is the overlay's default capacity.
const DefaultRingSize = 512

// Ring keeps the last N events. Safe for concurrent use.
type Ring struct {
	mu   sync.Mutex
	buf  []Event
	next int
	full bool
}

// NewRing returns a ring holding up to size events; size <= 0 means
// DefaultRingSize.
func NewRing(size int) *Ring {
	if size <= 0 {
		size = DefaultRingSize
	}
	return &Ring{buf: make([]Event, size)}
}

// Push stores e, evicting the oldest event when full. Extra is copied so
// the caller may reuse its map.
func (r *Ring) Push(e Event) {
	if e.Extra != nil {
		m := make(map[string]any, len(e.Extra))
		for k, v := range e.Extra {
			m[k] = v
		}
		e.Extra = m
	}
	r.mu.Lock()
	r.buf[r.next] = e
	r.next++
	if r.next == len(r.buf) {
		r.next = 0
		r.full = true
	}
	r.mu.Unlock()
}

// Len returns the number of stored events.
func (r *Ring) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lenLocked()
}

func (r *Ring) lenLocked() int {
	if r.full {
		return len(r.buf)
	}
	return r.next
}

// Cap returns the capacity.
func (r *Ring) Cap() int { return len(r.buf) }

// Last returns up to n most recent events, oldest first.
func (r *Ring) Last(n int) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := r.lenLocked()
	if n <= 0 || count == 0 {
		return nil
	}
	n = min(n, count)
	out := make([]Event, n)
	start := r.next - n
	if start < 0 {
		start += len(r.buf)
	}
	for i := range out {
		out[i] = r.buf[(start+i)%len(r.buf)]
	}
	return out
}

// All returns every stored event, oldest first.
func (r *Ring) All() []Event {
	return r.Last(r.Cap())
}

// Filter returns stored events whose kind starts with prefix, oldest first.
func (r *Ring) Filter(prefix string) []Event {
	var out []Event
	for _, e := range r.All() {
		if strings.HasPrefix(string(e.Kind), prefix) {
			out = append(out, e)
		}
	}
	return out
}

// Counts tallies stored events by kind.
func (r *Ring) Counts() map[EventKind]int {
	counts := make(map[EventKind]int)
	for _, e := range r.All() {
		counts[e.Kind]++
	}
	return counts
}

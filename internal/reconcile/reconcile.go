// Package reconcile merges an initial snapshot and a live stream of
// full-replacement updates into one ordered, deduplicated collection.
//
// # Ordering
//
// An update for a known key replaces that item in place; its index never
// changes. An update for an unknown key is prepended. Items that are not
// touched by an update keep their relative order.
//
// # Snapshot race
//
// The snapshot fetch and the stream are independent. Call Mark before
// issuing the snapshot request and pass the mark to Install when it
// resolves: items the stream delivered after the mark are newer than the
// snapshot and are kept, everything else takes the snapshot value.
//
// Every Mark also numbers its request. A response for a request older than
// one already settled (installed or failed) is superseded and ignored, so
// overlapping refreshes resolve last-request-wins.
//
// # Concurrency
//
// A Reconciler is owned by a single goroutine (the Bubble Tea update loop
// or a CLI loop). It has no locks.
//
// # Scale
//
// Key lookup on ingest is a linear scan. That is fine at dashboard scale
// (tens to a few hundred items) and is the known ceiling of this type.
package reconcile

// Keyed is an item with a stable identity.
type Keyed interface {
	Key() string
}

// Decoder turns a raw payload into an item or reports it malformed.
type Decoder[T Keyed] func(raw []byte) (T, error)

// Outcome describes what a single ingest did.
type Outcome int

const (
	Dropped Outcome = iota
	Replaced
	Prepended
)

func (o Outcome) String() string {
	switch o {
	case Replaced:
		return "replaced"
	case Prepended:
		return "prepended"
	default:
		return "dropped"
	}
}

// Mark is a position in the stream's observation sequence together with
// the number of the snapshot request it was taken for.
type Mark struct {
	seq uint64
	req uint64
}

// Stats counts ingest outcomes since construction.
type Stats struct {
	Replaced  int
	Prepended int
	Dropped   int
	Installs  int
}

type entry[T Keyed] struct {
	item T
	seq  uint64 // stream observation sequence; 0 when the value came from a snapshot
}

// Reconciler holds the live collection.
type Reconciler[T Keyed] struct {
	decode    Decoder[T]
	entries   []entry[T]
	seq       uint64
	reqs      uint64 // marks handed out
	settled   uint64 // newest request installed or failed
	installed bool
	stats     Stats
}

// New creates an empty Reconciler using decode for raw payloads.
func New[T Keyed](decode func(raw []byte) (T, error)) *Reconciler[T] {
	return &Reconciler[T]{decode: decode}
}

// Ingest decodes raw and merges it. A payload that fails to decode is
// dropped without touching the collection.
func (r *Reconciler[T]) Ingest(raw []byte) Outcome {
	item, err := r.decode(raw)
	if err != nil || item.Key() == "" {
		r.stats.Dropped++
		return Dropped
	}
	return r.Apply(item)
}

// Apply merges an already decoded item.
func (r *Reconciler[T]) Apply(item T) Outcome {
	r.seq++
	key := item.Key()
	for i := range r.entries {
		if r.entries[i].item.Key() == key {
			r.entries[i] = entry[T]{item: item, seq: r.seq}
			r.stats.Replaced++
			return Replaced
		}
	}
	r.entries = append(r.entries, entry[T]{})
	copy(r.entries[1:], r.entries)
	r.entries[0] = entry[T]{item: item, seq: r.seq}
	r.stats.Prepended++
	return Prepended
}

// Mark returns the current observation position. Take it before requesting
// a snapshot.
func (r *Reconciler[T]) Mark() Mark {
	r.reqs++
	return Mark{seq: r.seq, req: r.reqs}
}

// Superseded reports whether a newer request than since has already
// settled.
func (r *Reconciler[T]) Superseded(since Mark) bool {
	return since.req < r.settled
}

// Pending reports whether a request handed out by Mark has not settled yet.
func (r *Reconciler[T]) Pending() bool {
	return r.settled < r.reqs
}

// Fail settles the request taken at since without changing the collection.
// It reports false when the failure is superseded and should not be shown.
func (r *Reconciler[T]) Fail(since Mark) bool {
	if r.Superseded(since) {
		return false
	}
	r.settled = since.req
	return true
}

// Install merges a snapshot requested at since. It reports false, and
// changes nothing, when a newer request has already settled.
//
// Existing items keep their positions. An existing item is overwritten by
// the snapshot value unless the stream delivered it after since. Snapshot
// items with unknown keys are appended in snapshot order. Duplicate keys
// within the snapshot keep their first occurrence.
func (r *Reconciler[T]) Install(snapshot []T, since Mark) bool {
	if r.Superseded(since) {
		return false
	}
	r.settled = since.req
	index := make(map[string]int, len(r.entries))
	for i, e := range r.entries {
		index[e.item.Key()] = i
	}
	seen := make(map[string]bool, len(snapshot))
	for _, item := range snapshot {
		key := item.Key()
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		if i, ok := index[key]; ok {
			if r.entries[i].seq <= since.seq {
				r.entries[i] = entry[T]{item: item, seq: r.entries[i].seq}
			}
			continue
		}
		index[key] = len(r.entries)
		r.entries = append(r.entries, entry[T]{item: item})
	}
	r.installed = true
	r.stats.Installs++
	return true
}

// Installed reports whether a snapshot has been installed.
func (r *Reconciler[T]) Installed() bool {
	return r.installed
}

// Snapshot returns a copy of the collection in display order.
func (r *Reconciler[T]) Snapshot() []T {
	out := make([]T, len(r.entries))
	for i, e := range r.entries {
		out[i] = e.item
	}
	return out
}

// Len returns the number of items.
func (r *Reconciler[T]) Len() int {
	return len(r.entries)
}

// At returns the item at index i.
func (r *Reconciler[T]) At(i int) T {
	return r.entries[i].item
}

// Index returns the position of key, or -1.
func (r *Reconciler[T]) Index(key string) int {
	for i, e := range r.entries {
		if e.item.Key() == key {
			return i
		}
	}
	return -1
}

// Stats returns the outcome counters.
func (r *Reconciler[T]) Stats() Stats {
	return r.stats
}

// Reset empties the collection, e.g. when the view is torn down.
func (r *Reconciler[T]) Reset() {
	r.entries = nil
	r.installed = false
}

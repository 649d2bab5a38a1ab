// Package ranking drives the lens/window ranking view.
//
// A Selector is a small state machine:
//
//	Idle -> Loading -> Ready | Error
//
// and re-enters Loading whenever the (lens, window) key changes. Every fetch
// carries a request id. Only the result of the most recent request is
// published; anything older is discarded on arrival, no matter when it
// resolves. The in-flight HTTP call is not cancelled, only ignored.
package ranking

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/abelbrown/divyadrishti/internal/model"
)

// State is the selector lifecycle state.
type State int

const (
	StateIdle State = iota
	StateLoading
	StateReady
	StateError
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateError:
		return "error"
	default:
		return "idle"
	}
}

// Key selects one ranking query.
type Key struct {
	Lens   model.Lens
	Window model.Window
}

// Valid reports whether both halves of the key are known values.
func (k Key) Valid() bool {
	return k.Lens.Valid() && k.Window.Valid()
}

func (k Key) String() string {
	return fmt.Sprintf("%s/%s", k.Lens, k.Window)
}

// DefaultKey is the selection shown on first open.
var DefaultKey = Key{Lens: model.LensTop, Window: model.WindowToday}

// Fetcher is the ranking collaborator.
type Fetcher interface {
	Rankings(ctx context.Context, window model.Window, lens model.Lens) ([]model.MetricNode, error)
}

// Request identifies one issued fetch.
type Request struct {
	ID     string
	Key    Key
	Issued time.Time
}

// Result is the completion of a Request.
type Result struct {
	Request Request
	Metrics []model.MetricNode
	Err     error
}

// Run performs req against f. It is safe to call from any goroutine; the
// returned Result must be handed back to the owning Selector.
func Run(ctx context.Context, f Fetcher, req Request) Result {
	metrics, err := f.Rankings(ctx, req.Key.Window, req.Key.Lens)
	return Result{Request: req, Metrics: metrics, Err: err}
}

// Rank assigns ranks 1..N in the order given. The collaborator's order is
// trusted; nothing is re-sorted.
func Rank(metrics []model.MetricNode) []model.RankingEntry {
	entries := make([]model.RankingEntry, len(metrics))
	for i, m := range metrics {
		entries[i] = model.RankingEntry{Rank: i + 1, Metric: m}
	}
	return entries
}

// Selector owns the current selection and the published ranking. It is
// used from a single goroutine.
type Selector struct {
	key     Key
	state   State
	pending string
	entries []model.RankingEntry
	err     error
	now     func() time.Time
	newID   func() string
}

// NewSelector creates an idle selector positioned on key. An invalid key
// falls back to DefaultKey.
func NewSelector(key Key) *Selector {
	if !key.Valid() {
		key = DefaultKey
	}
	return &Selector{
		key:   key,
		now:   time.Now,
		newID: uuid.NewString,
	}
}

// Select moves to key and returns the request to run. ok is false when
// nothing needs fetching: the key is invalid, or it equals the current key
// and a fetch for it is already loading or published.
func (s *Selector) Select(key Key) (req Request, ok bool) {
	if !key.Valid() {
		return Request{}, false
	}
	if key == s.key && (s.state == StateLoading || s.state == StateReady) {
		return Request{}, false
	}
	s.key = key
	return s.issue(), true
}

// SetLens changes the lens and keeps the window.
func (s *Selector) SetLens(l model.Lens) (Request, bool) {
	return s.Select(Key{Lens: l, Window: s.key.Window})
}

// SetWindow changes the window and keeps the lens.
func (s *Selector) SetWindow(w model.Window) (Request, bool) {
	return s.Select(Key{Lens: s.key.Lens, Window: w})
}

// Refresh re-fetches the current key unconditionally.
func (s *Selector) Refresh() Request {
	return s.issue()
}

func (s *Selector) issue() Request {
	req := Request{ID: s.newID(), Key: s.key, Issued: s.now()}
	s.pending = req.ID
	s.state = StateLoading
	s.err = nil
	return req
}

// Resolve applies res if it answers the latest request and reports whether
// it was published. Stale results leave the selector untouched.
func (s *Selector) Resolve(res Result) bool {
	if s.pending == "" || res.Request.ID != s.pending || res.Request.Key != s.key {
		return false
	}
	s.pending = ""
	if res.Err != nil {
		s.state = StateError
		s.err = res.Err
		s.entries = nil
		return true
	}
	s.state = StateReady
	s.err = nil
	s.entries = Rank(res.Metrics)
	return true
}

// Key returns the current selection.
func (s *Selector) Key() Key { return s.key }

// State returns the lifecycle state.
func (s *Selector) State() State { return s.state }

// Entries returns the published ranking. While Loading it still holds the
// previous result.
func (s *Selector) Entries() []model.RankingEntry { return s.entries }

// Err returns the fetch error when State is StateError.
func (s *Selector) Err() error { return s.err }

// Pending returns the id of the in-flight request, or "".
func (s *Selector) Pending() string { return s.pending }

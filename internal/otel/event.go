// Package otel records structured dashboard events as JSONL.
//
// Events flow through an asynchronous Logger: Emit never blocks the caller,
// and a single drain goroutine owns the destination writer. A Ring attached
// to the Logger keeps the most recent events in memory for the debug overlay.
package otel

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Level is event severity.
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// EventKind names an event as "<subsystem>.<action>".
type EventKind string

const (
	// Snapshot fetches and installs.
	KindSnapshotStart   EventKind = "snapshot.start"
	KindSnapshotInstall EventKind = "snapshot.install"
	KindSnapshotError   EventKind = "snapshot.error"
	KindSnapshotStale   EventKind = "snapshot.stale"

	// Live stream.
	KindStreamConnect    EventKind = "stream.connect"
	KindStreamDisconnect EventKind = "stream.disconnect"
	KindStreamIngest     EventKind = "stream.ingest"
	KindStreamDrop       EventKind = "stream.drop"

	// Ranking selector.
	KindRankingSelect  EventKind = "ranking.select"
	KindRankingPublish EventKind = "ranking.publish"
	KindRankingStale   EventKind = "ranking.stale"

	// HTTP collaborator.
	KindFetchRequest EventKind = "fetch.request"
	KindFetchRetry   EventKind = "fetch.retry"
	KindFetchError   EventKind = "fetch.error"

	// Process lifecycle.
	KindStartup  EventKind = "sys.startup"
	KindShutdown EventKind = "sys.shutdown"
	KindError    EventKind = "sys.error"

	// Message tracing, only when DIVYA_TRACE is set.
	KindTraceMsg EventKind = "trace.msg"
)

// Subsystem returns the part of the kind before the first dot.
func (k EventKind) Subsystem() string {
	s, _, _ := strings.Cut(string(k), ".")
	return s
}

// Event is one JSONL record. Only Kind is required; Time and SessionID are
// filled in by the Logger.
type Event struct {
	Time      time.Time      `json:"t"`
	Level     Level          `json:"level,omitempty"`
	Kind      EventKind      `json:"kind"`
	Comp      string         `json:"comp,omitempty"` // "coord", "client", "stream", "ui", "main"
	SessionID string         `json:"session_id,omitempty"`
	ReqID     string         `json:"rid,omitempty"` // ranking request id
	Dur       time.Duration  `json:"-"`
	DurMs     float64        `json:"dur_ms,omitempty"`
	Count     int            `json:"count,omitempty"`
	Stream    string         `json:"stream,omitempty"`
	Endpoint  string         `json:"endpoint,omitempty"`
	Status    int            `json:"status,omitempty"`
	Key       string         `json:"key,omitempty"`
	Err       string         `json:"err,omitempty"`
	Msg       string         `json:"msg,omitempty"`
	Extra     map[string]any `json:"extra,omitempty"`
}

// MarshalJSON writes Dur as fractional milliseconds.
func (e Event) MarshalJSON() ([]byte, error) {
	type plain Event
	p := plain(e)
	if e.Dur > 0 {
		p.DurMs = float64(e.Dur) / float64(time.Millisecond)
	}
	return json.Marshal(p)
}

// Summary renders the event as a single human-readable line.
func (e Event) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %-18s", e.Time.Format("15:04:05.000"), e.Kind)
	if e.Comp != "" {
		fmt.Fprintf(&b, " [%s]", e.Comp)
	}
	for _, kv := range [][2]string{
		{"stream", e.Stream},
		{"endpoint", e.Endpoint},
		{"key", e.Key},
		{"rid", shortID(e.ReqID)},
	} {
		if kv[1] != "" {
			fmt.Fprintf(&b, " %s=%s", kv[0], kv[1])
		}
	}
	if e.Status != 0 {
		fmt.Fprintf(&b, " status=%d", e.Status)
	}
	if e.Count != 0 {
		fmt.Fprintf(&b, " n=%d", e.Count)
	}
	switch {
	case e.Dur > 0:
		fmt.Fprintf(&b, " %s", e.Dur.Round(time.Millisecond))
	case e.DurMs > 0:
		fmt.Fprintf(&b, " %.0fms", e.DurMs)
	}
	if e.Msg != "" {
		b.WriteString(" " + e.Msg)
	}
	if e.Err != "" {
		b.WriteString(" err=" + e.Err)
	}
	return b.String()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

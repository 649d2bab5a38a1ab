package otel

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"
)

// now is replaced in tests.
var now = time.Now

// Query selects events when reading a JSONL log.
type Query struct {
	Prefix  string    // kind prefix, e.g. "stream." or "ranking"
	Session string    // exact session id
	Since   time.Time // inclusive lower bound
	MinLvl  Level
}

func levelRank(l Level) int {
	switch l {
	case LevelDebug:
		return 0
	case LevelWarn:
		return 2
	case LevelError:
		return 3
	default:
		return 1
	}
}

// Match reports whether e satisfies q.
func (q Query) Match(e Event) bool {
	if q.Prefix != "" && !strings.HasPrefix(string(e.Kind), q.Prefix) {
		return false
	}
	if q.Session != "" && e.SessionID != q.Session {
		return false
	}
	if !q.Since.IsZero() && e.Time.Before(q.Since) {
		return false
	}
	if q.MinLvl != "" && levelRank(e.Level) < levelRank(q.MinLvl) {
		return false
	}
	return true
}

// ReadEvents scans a JSONL log and calls fn for each event matching q. Lines
// that do not parse are skipped and counted. fn returning false stops the scan.
func ReadEvents(r io.Reader, q Query, fn func(Event) bool) (skipped int, err error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1<<20)
	for sc.Scan() {
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		var e Event
		if err := json.Unmarshal(line, &e); err != nil || e.Kind == "" {
			skipped++
			continue
		}
		if e.Dur == 0 && e.DurMs > 0 {
			e.Dur = time.Duration(e.DurMs * float64(time.Millisecond))
		}
		if !q.Match(e) {
			continue
		}
		if !fn(e) {
			break
		}
	}
	if err := sc.Err(); err != nil {
		return skipped, fmt.Errorf("read events: %w", err)
	}
	return skipped, nil
}

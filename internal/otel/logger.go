package otel

// The drain goroutine is the only reader of l.ch and the only writer to l.w.
// l.mu guards the ring pointer alone; the Ring has its own lock and the two
// are never held together.

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
)

// queueSize bounds the number of events waiting for the drain goroutine.
const queueSize = 4096

// EnvTrace enables per-message tracing in the UI when set.
const EnvTrace = "DIVYA_TRACE"

// TraceEnabled reports whether message tracing was requested.
func TraceEnabled() bool {
	return os.Getenv(EnvTrace) != ""
}

type pending struct {
	line []byte
	ev   Event
}

// Logger writes events as JSONL without blocking the caller. Safe for
// concurrent use. When the queue is full the event is dropped and counted.
type Logger struct {
	mu      sync.Mutex
	ring    *Ring
	session string
	ch      chan pending
	w       io.Writer
	closer  io.Closer
	dropped atomic.Uint64
	closed  atomic.Bool
	done    chan struct{}
	once    sync.Once
}

// NewLogger starts a Logger writing to w. Close must be called to flush.
func NewLogger(w io.Writer) *Logger {
	var sid [8]byte
	_, _ = rand.Read(sid[:])
	l := &Logger{
		session: hex.EncodeToString(sid[:]),
		ch:      make(chan pending, queueSize),
		w:       w,
		done:    make(chan struct{}),
	}
	go l.drain()
	return l
}

// Open appends to the JSONL file at path, creating parent directories.
// Close also closes the file.
func Open(path string) (*Logger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create event log dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open event log: %w", err)
	}
	l := NewLogger(f)
	l.closer = f
	return l, nil
}

// Discard returns a Logger that drops everything it is given.
func Discard() *Logger {
	return NewLogger(io.Discard)
}

func (l *Logger) drain() {
	defer close(l.done)
	for p := range l.ch {
		if _, err := l.w.Write(p.line); err != nil {
			l.dropped.Add(1)
		}
		l.mu.Lock()
		r := l.ring
		l.mu.Unlock()
		if r != nil {
			r.Push(p.ev)
		}
	}
}

// Emit queues e. A zero Time is set to now. Emit after Close counts as a
// drop rather than a panic.
func (l *Logger) Emit(e Event) {
	if l == nil {
		return
	}
	defer func() {
		if recover() != nil {
			l.dropped.Add(1)
		}
	}()
	if l.closed.Load() {
		l.dropped.Add(1)
		return
	}
	if e.Time.IsZero() {
		e.Time = now()
	}
	e.SessionID = l.session

	line, err := json.Marshal(e)
	if err != nil {
		l.dropped.Add(1)
		return
	}
	select {
	case l.ch <- pending{line: append(line, '\n'), ev: e}:
	default:
		l.dropped.Add(1)
	}
}

func (l *Logger) Info(kind EventKind, comp, msg string) {
	l.Emit(Event{Level: LevelInfo, Kind: kind, Comp: comp, Msg: msg})
}

func (l *Logger) Warn(kind EventKind, comp, msg string) {
	l.Emit(Event{Level: LevelWarn, Kind: kind, Comp: comp, Msg: msg})
}

// Error emits an error-level event. A nil err is recorded with no message.
func (l *Logger) Error(kind EventKind, comp string, err error) {
	e := Event{Level: LevelError, Kind: kind, Comp: comp}
	if err != nil {
		e.Err = err.Error()
	}
	l.Emit(e)
}

// Attach makes r receive every event written from now on.
func (l *Logger) Attach(r *Ring) {
	l.mu.Lock()
	l.ring = r
	l.mu.Unlock()
}

// Session returns the random id stamped on every event of this run.
func (l *Logger) Session() string { return l.session }

// Dropped returns how many events were lost.
func (l *Logger) Dropped() uint64 { return l.dropped.Load() }

// Close drains queued events and stops the writer. Idempotent.
func (l *Logger) Close() error {
	if l == nil {
		return nil
	}
	var err error
	l.once.Do(func() {
		l.closed.Store(true)
		close(l.ch)
		<-l.done
		if l.closer != nil {
			err = l.closer.Close()
		}
	})
	return err
}

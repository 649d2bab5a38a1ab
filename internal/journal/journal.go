// Package journal records raw stream traffic to SQLite for later replay.
//
// It is development tooling: the dashboard writes to it when a path is
// configured but never reads it back. divyactl replays a recorded session
// through a fresh reconciler to reproduce what the dashboard showed.
package journal

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/abelbrown/divyadrishti/internal/reconcile"
)

// Kind classifies a journal record.
type Kind string

const (
	// KindRequest marks the moment a snapshot was requested.
	KindRequest Kind = "request"
	// KindSnapshot holds the snapshot response as a JSON array.
	KindSnapshot Kind = "snapshot"
	// KindEvent holds one raw stream payload.
	KindEvent Kind = "event"
)

const schema = `
CREATE TABLE IF NOT EXISTS records (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	session     TEXT NOT NULL,
	stream      TEXT NOT NULL,
	kind        TEXT NOT NULL,
	received_ns INTEGER NOT NULL,
	payload     BLOB NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_records_session ON records(session, stream, id);
`

// Record is one journal row.
type Record struct {
	ID         int64  `db:"id"`
	Session    string `db:"session"`
	Stream     string `db:"stream"`
	Kind       Kind   `db:"kind"`
	ReceivedNs int64  `db:"received_ns"`
	Payload    []byte `db:"payload"`
}

// Received returns the receive time.
func (r Record) Received() time.Time {
	return time.Unix(0, r.ReceivedNs)
}

// Journal is an append-only SQLite log. Safe for concurrent use.
type Journal struct {
	db      *sqlx.DB
	session string
	now     func() time.Time
}

// Open opens or creates the journal at path. ":memory:" gives a private
// in-memory journal.
func Open(path string) (*Journal, error) {
	dsn := path
	if path != ":memory:" {
		dsn = path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open journal %s: %w", path, err)
	}
	// One connection: writes are serialized anyway, and an in-memory
	// database exists only on the connection that created it.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate journal: %w", err)
	}
	return &Journal{db: db, session: uuid.NewString(), now: time.Now}, nil
}

// Close closes the database.
func (j *Journal) Close() error {
	return j.db.Close()
}

// Session returns the id under which this process records.
func (j *Journal) Session() string { return j.session }

// Record appends one payload for stream.
func (j *Journal) Record(ctx context.Context, stream string, kind Kind, payload []byte) error {
	if payload == nil {
		payload = []byte{}
	}
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO records (session, stream, kind, received_ns, payload) VALUES (?, ?, ?, ?, ?)`,
		j.session, stream, string(kind), j.now().UnixNano(), payload)
	if err != nil {
		return fmt.Errorf("journal %s %s: %w", stream, kind, err)
	}
	return nil
}

// Records returns the records of one session and stream in arrival order.
// An empty session selects the most recent one.
func (j *Journal) Records(ctx context.Context, session, stream string) ([]Record, error) {
	if session == "" {
		var err error
		if session, err = j.latestSession(ctx); err != nil {
			return nil, err
		}
	}
	var out []Record
	err := j.db.SelectContext(ctx, &out,
		`SELECT id, session, stream, kind, received_ns, payload FROM records
		 WHERE session = ? AND stream = ? ORDER BY id`, session, stream)
	if err != nil {
		return nil, fmt.Errorf("read journal: %w", err)
	}
	return out, nil
}

func (j *Journal) latestSession(ctx context.Context) (string, error) {
	var s string
	err := j.db.GetContext(ctx, &s, `SELECT session FROM records ORDER BY id DESC LIMIT 1`)
	if err != nil {
		return "", fmt.Errorf("find latest session: %w", err)
	}
	return s, nil
}

// Stat summarizes one (session, stream, kind) group.
type Stat struct {
	Session string `db:"session"`
	Stream  string `db:"stream"`
	Kind    Kind   `db:"kind"`
	Count   int    `db:"n"`
	FirstNs int64  `db:"first_ns"`
	LastNs  int64  `db:"last_ns"`
	Bytes   int64  `db:"bytes"`
}

// First returns the earliest receive time in the group.
func (s Stat) First() time.Time { return time.Unix(0, s.FirstNs) }

// Last returns the latest receive time in the group.
func (s Stat) Last() time.Time { return time.Unix(0, s.LastNs) }

// Stats groups the journal by session, stream and kind, oldest session first.
func (j *Journal) Stats(ctx context.Context) ([]Stat, error) {
	var out []Stat
	err := j.db.SelectContext(ctx, &out, `
		SELECT session, stream, kind, COUNT(*) AS n,
		       MIN(received_ns) AS first_ns, MAX(received_ns) AS last_ns,
		       COALESCE(SUM(LENGTH(payload)), 0) AS bytes
		FROM records
		GROUP BY session, stream, kind
		ORDER BY MIN(id), stream, kind`)
	if err != nil {
		return nil, fmt.Errorf("journal stats: %w", err)
	}
	return out, nil
}

// Prune deletes records received before cutoff and returns how many went.
func (j *Journal) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := j.db.ExecContext(ctx, `DELETE FROM records WHERE received_ns < ?`, cutoff.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("prune journal: %w", err)
	}
	return res.RowsAffected()
}

// Replay feeds records through a fresh reconciler in their recorded order:
// a request takes a mark, a snapshot is installed against the latest mark,
// and events are ingested. Malformed snapshot elements are skipped the same
// way the dashboard skips them.
func Replay[T reconcile.Keyed](records []Record, decode func([]byte) (T, error)) (*reconcile.Reconciler[T], error) {
	r := reconcile.New(decode)
	var mark reconcile.Mark
	for _, rec := range records {
		switch rec.Kind {
		case KindRequest:
			mark = r.Mark()
		case KindSnapshot:
			var raw []json.RawMessage
			if err := json.Unmarshal(rec.Payload, &raw); err != nil {
				return nil, fmt.Errorf("record %d: snapshot is not a JSON array: %w", rec.ID, err)
			}
			items := make([]T, 0, len(raw))
			for _, p := range raw {
				if it, err := decode(p); err == nil && strings.TrimSpace(it.Key()) != "" {
					items = append(items, it)
				}
			}
			r.Install(items, mark)
		case KindEvent:
			r.Ingest(rec.Payload)
		}
	}
	return r, nil
}

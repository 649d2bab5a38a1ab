package otel

import (
	"strings"
	"testing"
	"time"
)

func TestReadEvents(t *testing.T) {
	log := strings.Join([]string{
		`{"t":"2024-01-01T00:00:00Z","level":"info","kind":"stream.ingest","session_id":"a"}`,
		`not json`,
		`{"t":"2024-01-01T00:00:01Z","level":"warn","kind":"fetch.retry","session_id":"a","dur_ms":12}`,
		``,
		`{"t":"2024-01-01T00:00:02Z","level":"error","kind":"stream.drop","session_id":"b"}`,
	}, "\n")

	tests := []struct {
		name string
		q    Query
		want []EventKind
	}{
		{"all", Query{}, []EventKind{KindStreamIngest, KindFetchRetry, KindStreamDrop}},
		{"prefix", Query{Prefix: "stream."}, []EventKind{KindStreamIngest, KindStreamDrop}},
		{"session", Query{Session: "a"}, []EventKind{KindStreamIngest, KindFetchRetry}},
		{"level", Query{MinLvl: LevelWarn}, []EventKind{KindFetchRetry, KindStreamDrop}},
		{"since", Query{Since: time.Date(2024, 1, 1, 0, 0, 1, 0, time.UTC)}, []EventKind{KindFetchRetry, KindStreamDrop}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []EventKind
			skipped, err := ReadEvents(strings.NewReader(log), tt.q, func(e Event) bool {
				got = append(got, e.Kind)
				return true
			})
			if err != nil {
				t.Fatal(err)
			}
			if skipped != 1 {
				t.Errorf("skipped = %d, want 1", skipped)
			}
			if strings.Join(kinds(got), ",") != strings.Join(kinds(tt.want), ",") {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestReadEventsRestoresDur(t *testing.T) {
	in := `{"t":"2024-01-01T00:00:00Z","kind":"fetch.request","dur_ms":12}`
	var got Event
	ReadEvents(strings.NewReader(in), Query{}, func(e Event) bool { got = e; return false })
	if got.Dur != 12*time.Millisecond {
		t.Fatalf("Dur = %v", got.Dur)
	}
}

func kinds(ks []EventKind) []string {
	out := make([]string, len(ks))
	for i, k := range ks {
		out[i] = string(k)
	}
	return out
}

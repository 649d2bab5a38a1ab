package journal

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/abelbrown/divyadrishti/internal/model"
)

func openMem(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { j.Close() })
	return j
}

func TestRecordAndRead(t *testing.T) {
	ctx := context.Background()
	j := openMem(t)
	base := time.Unix(1700000000, 0)
	tick := 0
	j.now = func() time.Time { tick++; return base.Add(time.Duration(tick) * time.Second) }

	must(t, j.Record(ctx, "trending", KindRequest, nil))
	must(t, j.Record(ctx, "trending", KindEvent, []byte(`{"id":1}`)))
	must(t, j.Record(ctx, "metrics", KindEvent, []byte(`{"id":"m"}`)))

	recs, err := j.Records(ctx, "", "trending")
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 2 {
		t.Fatalf("got %d records", len(recs))
	}
	if recs[0].Kind != KindRequest || recs[1].Kind != KindEvent || string(recs[1].Payload) != `{"id":1}` {
		t.Fatalf("records = %+v", recs)
	}
	if !recs[1].Received().Equal(base.Add(2 * time.Second)) {
		t.Errorf("received = %v", recs[1].Received())
	}
	if recs[0].Session != j.Session() {
		t.Errorf("session = %q", recs[0].Session)
	}
}

func TestStats(t *testing.T) {
	ctx := context.Background()
	j := openMem(t)
	must(t, j.Record(ctx, "trending", KindEvent, []byte("abc")))
	must(t, j.Record(ctx, "trending", KindEvent, []byte("de")))
	must(t, j.Record(ctx, "trending", KindSnapshot, []byte("[]")))

	stats, err := j.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	var ev *Stat
	for i := range stats {
		if stats[i].Kind == KindEvent {
			ev = &stats[i]
		}
	}
	if len(stats) != 2 || ev == nil {
		t.Fatalf("stats = %+v", stats)
	}
	if ev.Count != 2 || ev.Bytes != 5 || ev.Stream != "trending" {
		t.Errorf("event stat = %+v", *ev)
	}
	if ev.Last().Before(ev.First()) {
		t.Error("last before first")
	}
}

func TestPrune(t *testing.T) {
	ctx := context.Background()
	j := openMem(t)
	old := time.Unix(1000, 0)
	j.now = func() time.Time { return old }
	must(t, j.Record(ctx, "trending", KindEvent, []byte("x")))
	j.now = time.Now
	must(t, j.Record(ctx, "trending", KindEvent, []byte("y")))

	n, err := j.Prune(ctx, time.Unix(2000, 0))
	if err != nil || n != 1 {
		t.Fatalf("Prune = %d, %v", n, err)
	}
}

func TestReplayReproducesRace(t *testing.T) {
	// Request, live update for 2, live new item 3, then a snapshot that is
	// older than the live update.
	recs := []Record{
		{ID: 1, Kind: KindRequest},
		{ID: 2, Kind: KindEvent, Payload: []byte(`{"id":2,"title":"live","score":50}`)},
		{ID: 3, Kind: KindEvent, Payload: []byte(`{"id":3,"title":"new"}`)},
		{ID: 4, Kind: KindEvent, Payload: []byte(`not json`)},
		{ID: 5, Kind: KindSnapshot, Payload: []byte(`[{"id":1,"title":"a"},{"id":2,"title":"stale","score":10},{"id":0}]`)},
	}
	r, err := Replay(recs, model.DecodeStory)
	if err != nil {
		t.Fatal(err)
	}
	got := r.Snapshot()
	want := []struct {
		id    int64
		title string
	}{{3, "new"}, {2, "live"}, {1, "a"}}
	if len(got) != len(want) {
		t.Fatalf("got %d items: %+v", len(got), got)
	}
	for i, w := range want {
		if got[i].ID != w.id || got[i].Title != w.title {
			t.Errorf("item %d = %d %q, want %d %q", i, got[i].ID, got[i].Title, w.id, w.title)
		}
	}
	if r.Stats().Dropped != 1 {
		t.Errorf("dropped = %d, want 1", r.Stats().Dropped)
	}
}

func TestReplayRejectsBadSnapshot(t *testing.T) {
	_, err := Replay([]Record{{Kind: KindSnapshot, Payload: []byte(`{}`)}}, model.DecodeMetricNode)
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestOpenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	j, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	must(t, j.Record(context.Background(), "metrics", KindEvent, []byte("{}")))
	j.Close()

	j2, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer j2.Close()
	recs, err := j2.Records(context.Background(), "", "metrics")
	if err != nil || len(recs) != 1 {
		t.Fatalf("records = %v, %v", recs, err)
	}
}

func must(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatal(err)
	}
}

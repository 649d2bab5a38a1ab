package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/abelbrown/divyadrishti/internal/model"
)

func fastOpts() Options {
	return Options{
		Rate:       1000,
		Burst:      100,
		Retries:    3,
		BackoffMin: time.Millisecond,
		BackoffMax: 2 * time.Millisecond,
	}
}

func newTestClient(t *testing.T, h http.Handler, opts Options) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := New(srv.URL, opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestRankingsQueryAndOrder(t *testing.T) {
	var gotQuery string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rankings" {
			http.NotFound(w, r)
			return
		}
		gotQuery = r.URL.RawQuery
		w.Write([]byte(`[{"id":"b","label":"B"},{"id":"a","label":"A"}]`))
	}), fastOpts())

	got, err := c.Rankings(context.Background(), model.WindowWeek, model.LensHeated)
	if err != nil {
		t.Fatalf("Rankings: %v", err)
	}
	if gotQuery != "lens=heated&window=week" {
		t.Errorf("query = %q", gotQuery)
	}
	if len(got) != 2 || got[0].ID != "b" || got[1].ID != "a" {
		t.Errorf("got %+v, want server order", got)
	}
}

func TestNotFoundIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, `{"detail":"Metric node not found"}`, http.StatusNotFound)
	}), fastOpts())

	_, err := c.MetricDetail(context.Background(), "nope", model.WindowToday)
	if !errors.Is(err, ErrNotFound) || !IsNotFound(err) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("calls = %d, want 1", calls.Load())
	}
}

func TestServerErrorRetriedThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`[{"id":1,"title":"t"}]`))
	}), fastOpts())

	got, err := c.TrendingStories(context.Background(), 0)
	if err != nil {
		t.Fatalf("TrendingStories: %v", err)
	}
	if len(got) != 1 || got[0].ID != 1 {
		t.Fatalf("got %+v", got)
	}
	if calls.Load() != 3 {
		t.Fatalf("calls = %d, want 3", calls.Load())
	}
}

func TestRetriesExhausted(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}), fastOpts())

	_, err := c.TopMetrics(context.Background(), 20)
	var se *StatusError
	if !errors.As(err, &se) || se.Code != http.StatusBadGateway {
		t.Fatalf("err = %v, want StatusError 502", err)
	}
	if calls.Load() != 4 {
		t.Fatalf("calls = %d, want 4", calls.Load())
	}
}

func TestClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad window", http.StatusUnprocessableEntity)
	}), fastOpts())

	_, err := c.MetricSeries(context.Background(), "m", "bogus")
	var se *StatusError
	if !errors.As(err, &se) || se.Code != http.StatusUnprocessableEntity || se.Temporary() {
		t.Fatalf("err = %v", err)
	}
	if se.Body != "bad window" {
		t.Errorf("body = %q", se.Body)
	}
	if calls.Load() != 1 {
		t.Fatalf("calls = %d, want 1", calls.Load())
	}
}

func TestTooManyRequestsRetried(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{"id":7,"title":"x"}`))
	}), fastOpts())

	s, err := c.Story(context.Background(), 7)
	if err != nil || s.ID != 7 {
		t.Fatalf("Story = %+v, %v", s, err)
	}
}

func TestCommentsNested(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/stories/1/comments" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(`[{"id":2,"parent":1,"text":"a"},{"id":3,"parent":2,"text":"b"}]`))
	}), fastOpts())

	got, err := c.Comments(context.Background(), 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || len(got[0].Children) != 1 || got[0].Children[0].ID != 3 {
		t.Fatalf("got %+v", got)
	}
}

func TestSeriesGapsDecodeAsNil(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"ts":"2024-01-01T00:00:00+00:00","presence_pct":10,"valence":null}]`))
	}), fastOpts())

	got, err := c.MetricSeries(context.Background(), "m", model.WindowHour)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].PresencePct == nil || got[0].Valence != nil {
		t.Fatalf("got %+v", got)
	}
}

func TestDecodeError(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{not json`))
	}), fastOpts())
	if _, err := c.TopMetrics(context.Background(), 0); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestContextCancelStopsRetry(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}), Options{Rate: 1000, Burst: 10, Retries: 10, BackoffMin: time.Second, BackoffMax: time.Second})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	start := time.Now()
	_, err := c.TopMetrics(ctx, 0)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v", err)
	}
	if time.Since(start) > 900*time.Millisecond {
		t.Fatal("retry loop ignored cancellation")
	}
}

type recordingObserver struct {
	mu    sync.Mutex
	calls []string
}

func (o *recordingObserver) ObserveRequest(endpoint string, code int, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls = append(o.calls, endpoint+" "+http.StatusText(code))
}

func TestObserverSeesRoutes(t *testing.T) {
	obs := &recordingObserver{}
	opts := fastOpts()
	opts.Observer = obs
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	}), opts)

	c.Comments(context.Background(), 99)
	if len(obs.calls) != 1 || obs.calls[0] != "/stories/{id}/comments OK" {
		t.Fatalf("calls = %v", obs.calls)
	}
}

func TestRoute(t *testing.T) {
	tests := map[string]string{
		"/stories/trending":    "/stories/trending",
		"/stories/42":          "/stories/{id}",
		"/stories/42/comments": "/stories/{id}/comments",
		"/metrics/top":         "/metrics/top",
		"/metrics/m-1/series":  "/metrics/{id}/series",
		"/rankings":            "/rankings",
	}
	for in, want := range tests {
		if got := Route(in); got != want {
			t.Errorf("Route(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNewRejectsBadURL(t *testing.T) {
	for _, u := range []string{"ftp://x", "::", "localhost:8000"} {
		if _, err := New(u, Options{}); err == nil {
			t.Errorf("New(%q) succeeded", u)
		}
	}
}

func TestURL(t *testing.T) {
	c, err := New("http://api.local/v1/", Options{})
	if err != nil {
		t.Fatal(err)
	}
	if got := c.URL("/stream/trending", nil); got != "http://api.local/v1/stream/trending" {
		t.Fatalf("URL = %q", got)
	}
}

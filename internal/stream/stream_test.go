package stream

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestReadEvents(t *testing.T) {
	body := ": keepalive\r\n" +
		"event: update\n" +
		"id: 7\n" +
		"data: {\"id\":1}\n" +
		"\n" +
		"data: line one\n" +
		"data: line two\n" +
		"retry: 1000\n" +
		"\n" +
		"event: empty\n" +
		"\n" +
		"data: unterminated"

	var got []Event
	if err := ReadEvents(strings.NewReader(body), func(e Event) { got = append(got, e) }); err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d events: %+v", len(got), got)
	}
	if got[0].Type != "update" || got[0].ID != "7" || got[0].Data != `{"id":1}` {
		t.Errorf("event 0 = %+v", got[0])
	}
	if got[1].Data != "line one\nline two" || got[1].Type != "" {
		t.Errorf("event 1 = %+v", got[1])
	}
}

func TestSplit(t *testing.T) {
	tests := []struct {
		name  string
		frame string
		want  []string
	}{
		{"object", `{"id":1}`, []string{`{"id":1}`}},
		{"array", `[{"id":1}, {"id":2}]`, []string{`{"id":1}`, `{"id":2}`}},
		{"empty array", `[]`, []string{}},
		{"broken array", `[{"id":1}`, []string{`[{"id":1}`}},
		{"garbage", `nope`, []string{`nope`}},
		{"scalar elements", `[1,"x"]`, []string{`1`, `"x"`}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Split([]byte(tt.frame))
			if len(got) != len(tt.want) {
				t.Fatalf("got %d parts, want %d", len(got), len(tt.want))
			}
			for i := range got {
				if string(got[i]) != tt.want[i] {
					t.Errorf("part %d = %s, want %s", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestNewRewritesScheme(t *testing.T) {
	s, err := New(Trending, "https://api.example/stream/trending", Options{Transport: WebSocket})
	if err != nil {
		t.Fatal(err)
	}
	if s.URL() != "wss://api.example/stream/trending" {
		t.Fatalf("URL = %s", s.URL())
	}
	if _, err := New(Trending, "http://x", Options{Transport: "carrier-pigeon"}); err == nil {
		t.Fatal("unknown transport accepted")
	}
}

func TestJoinURL(t *testing.T) {
	if got := JoinURL("http://h:8000/", Path(Metrics)); got != "http://h:8000/stream/metrics" {
		t.Fatalf("JoinURL = %s", got)
	}
}

// collector gathers payloads and signals once n have arrived.
type collector struct {
	mu   sync.Mutex
	got  []string
	n    int
	done chan struct{}
	once sync.Once
}

func newCollector(n int) *collector {
	return &collector{n: n, done: make(chan struct{})}
}

func (c *collector) handle(p []byte) {
	c.mu.Lock()
	c.got = append(c.got, string(p))
	full := len(c.got) >= c.n
	c.mu.Unlock()
	if full {
		c.once.Do(func() { close(c.done) })
	}
}

func (c *collector) wait(t *testing.T) []string {
	t.Helper()
	select {
	case <-c.done:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for payloads")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.got...)
}

func runUntil(t *testing.T, s *Subscription, c *collector) []string {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- s.Run(ctx, c.handle) }()
	got := c.wait(t)
	cancel()
	select {
	case err := <-errc:
		if err != context.Canceled {
			t.Fatalf("Run returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
	return got
}

func TestSSEReconnectsAndSplits(t *testing.T) {
	var conns atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := conns.Add(1)
		w.Header().Set("Content-Type", "text/event-stream")
		if n == 1 {
			// First connection: one array frame, then hang up.
			fmt.Fprint(w, "data: [{\"id\":1},{\"id\":2}]\n\n")
			return
		}
		fmt.Fprint(w, "data: {\"id\":3}\n\n")
		w.(http.Flusher).Flush()
		<-r.Context().Done()
	}))
	defer srv.Close()

	var states []State
	var smu sync.Mutex
	s, err := New(Trending, srv.URL+Path(Trending), Options{
		ReconnectMin: time.Millisecond,
		ReconnectMax: 5 * time.Millisecond,
		OnState: func(st State) {
			smu.Lock()
			states = append(states, st)
			smu.Unlock()
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	got := runUntil(t, s, newCollector(3))
	want := []string{`{"id":1}`, `{"id":2}`, `{"id":3}`}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("got %v, want %v", got, want)
	}
	if conns.Load() < 2 {
		t.Fatalf("connections = %d, want reconnect", conns.Load())
	}
	smu.Lock()
	defer smu.Unlock()
	if len(states) < 3 || !states[0].Connected || states[1].Connected {
		t.Fatalf("states = %+v", states)
	}
}

func TestPayloadsAreOwnedByReceiver(t *testing.T) {
	frames := []string{`{"id":1}`, `[{"id":2},{"id":3}]`, `{"id":4}`, `{"id":5}`}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		for _, f := range frames {
			fmt.Fprintf(w, "data: %s\n\n", f)
		}
		w.(http.Flusher).Flush()
		<-r.Context().Done()
	}))
	defer srv.Close()

	s, err := New(Trending, srv.URL, Options{})
	if err != nil {
		t.Fatal(err)
	}

	// Keep the slices themselves, the way the coordinator forwards them.
	var (
		mu   sync.Mutex
		kept [][]byte
	)
	done := make(chan struct{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx, func(p []byte) {
		mu.Lock()
		defer mu.Unlock()
		kept = append(kept, p)
		if len(kept) == 5 {
			close(done)
		}
	})
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for payloads")
	}
	cancel()

	mu.Lock()
	defer mu.Unlock()
	for i, p := range kept {
		if want := fmt.Sprintf(`{"id":%d}`, i+1); string(p) != want {
			t.Errorf("payload %d = %s, want %s", i, p, want)
		}
	}
}

func TestSSEBadStatusRetries(t *testing.T) {
	var conns atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if conns.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"id\":9}\n\n")
		w.(http.Flusher).Flush()
		<-r.Context().Done()
	}))
	defer srv.Close()

	s, _ := New(Trending, srv.URL, Options{ReconnectMin: time.Millisecond, ReconnectMax: time.Millisecond})
	got := runUntil(t, s, newCollector(1))
	if got[0] != `{"id":9}` {
		t.Fatalf("got %v", got)
	}
}

func TestWebSocketReconnects(t *testing.T) {
	up := websocket.Upgrader{}
	var conns atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer c.Close()
		n := conns.Add(1)
		c.WriteMessage(websocket.TextMessage, []byte(fmt.Sprintf(`[{"id":"m%d"}]`, n)))
		if n == 1 {
			c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "bye"))
			return
		}
		// Hold the second connection until the client goes away.
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	s, err := New(Metrics, srv.URL, Options{
		Transport:    WebSocket,
		ReconnectMin: time.Millisecond,
		ReconnectMax: 5 * time.Millisecond,
	})
	if err != nil {
		t.Fatal(err)
	}
	got := runUntil(t, s, newCollector(2))
	if got[0] != `{"id":"m1"}` || got[1] != `{"id":"m2"}` {
		t.Fatalf("got %v", got)
	}
}

func TestRunStopsWhileBackingOff(t *testing.T) {
	s, _ := New(Trending, "http://127.0.0.1:1/stream/trending", Options{ReconnectMin: time.Hour, ReconnectMax: time.Hour})
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	if err := s.Run(ctx, func([]byte) {}); err != context.DeadlineExceeded {
		t.Fatalf("Run = %v", err)
	}
}

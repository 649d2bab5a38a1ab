package e2e

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/abelbrown/divyadrishti/internal/model"
)

// fixtureAPI serves a deterministic snapshot for every list endpoint and
// pushes one live story over the trending stream shortly after connect.
func fixtureAPI(t *testing.T) *httptest.Server {
	t.Helper()
	now := time.Now().Unix()

	stories := []model.Story{
		{ID: 1, Title: "Fixture Story One", By: "alice", Score: 120, Time: now - 600, Descendants: 4},
		{ID: 2, Title: "Fixture Story Two", By: "bob", Score: 80, Time: now - 1200},
	}
	metrics := []model.MetricNode{
		{ID: "m-rust", Label: "Rust adoption", PresencePct: 12.5, Heat: 0.8, Momentum: 0.3, Valence: 0.4,
			Sentiment: model.Sentiment{Positive: 6, Negative: 2, Neutral: 2}},
		{ID: "m-ai", Label: "AI regulation", PresencePct: 9.1, Heat: 0.5, Momentum: -0.2, Valence: -0.3},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/stories/trending", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, stories)
	})
	mux.HandleFunc("/metrics/top", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, metrics)
	})
	mux.HandleFunc("/rankings", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, metrics)
	})
	mux.HandleFunc("/stream/trending", func(w http.ResponseWriter, r *http.Request) {
		live, _ := json.Marshal(model.Story{ID: 3, Title: "Live Story Three", By: "carol", Score: 5, Time: now})
		sse(w, r, 500*time.Millisecond, string(live))
	})
	mux.HandleFunc("/stream/metrics", func(w http.ResponseWriter, r *http.Request) {
		sse(w, r, 0)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// sse writes each payload as one event after delay, then holds the
// connection open until the client goes away.
func sse(w http.ResponseWriter, r *http.Request, delay time.Duration, payloads ...string) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.WriteHeader(http.StatusOK)
	fl, _ := w.(http.Flusher)
	if fl != nil {
		fl.Flush()
	}
	select {
	case <-time.After(delay):
	case <-r.Context().Done():
		return
	}
	for _, p := range payloads {
		fmt.Fprintf(w, "data: %s\n\n", p)
	}
	if fl != nil {
		fl.Flush()
	}
	<-r.Context().Done()
}

// dumpLogs prints the diagnostic log and event log of a failed run.
func dumpLogs(t *testing.T, dataDir string) {
	t.Helper()
	matches, _ := filepath.Glob(filepath.Join(dataDir, "logs", "*"))
	matches = append(matches, filepath.Join(dataDir, "events.jsonl"))
	for _, m := range matches {
		if b, err := os.ReadFile(m); err == nil {
			t.Logf("%s:\n%s", filepath.Base(m), b)
		}
	}
}

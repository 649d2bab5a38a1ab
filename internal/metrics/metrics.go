// Package metrics exposes Prometheus counters for the stream, ranking and
// HTTP paths. The listener is optional; counters are always kept.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns a private registry so tests and multiple instances do not
// collide on the global one.
type Metrics struct {
	reg *prometheus.Registry

	StreamPayloads   *prometheus.CounterVec
	StreamConnected  *prometheus.GaugeVec
	StreamReconnects *prometheus.CounterVec
	SnapshotInstalls *prometheus.CounterVec
	SnapshotErrors   *prometheus.CounterVec
	RankingResults   *prometheus.CounterVec
	HTTPRequests     *prometheus.CounterVec
	HTTPDuration     *prometheus.HistogramVec
}

// New creates and registers every collector.
func New() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		StreamPayloads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "divya_stream_payloads_total",
				Help: "Live payloads by stream and reconcile outcome",
			},
			[]string{"stream", "outcome"}, // outcome: replaced|prepended|dropped
		),
		StreamConnected: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "divya_stream_connected",
				Help: "1 while the stream connection is up",
			},
			[]string{"stream"},
		),
		StreamReconnects: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "divya_stream_disconnects_total",
				Help: "Stream connections lost or refused",
			},
			[]string{"stream"},
		),
		SnapshotInstalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "divya_snapshot_installs_total",
				Help: "Snapshots installed into a reconciled collection",
			},
			[]string{"stream"},
		),
		SnapshotErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "divya_snapshot_errors_total",
				Help: "Snapshot fetches that failed",
			},
			[]string{"stream"},
		),
		RankingResults: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "divya_ranking_results_total",
				Help: "Ranking fetch results by outcome",
			},
			[]string{"outcome"}, // published|stale
		),
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "divya_http_requests_total",
				Help: "API requests by route and status code (0 = transport error)",
			},
			[]string{"endpoint", "code"},
		),
		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "divya_http_request_duration_seconds",
				Help:    "API request latency",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
			},
			[]string{"endpoint"},
		),
	}
	m.reg.MustRegister(
		m.StreamPayloads, m.StreamConnected, m.StreamReconnects,
		m.SnapshotInstalls, m.SnapshotErrors, m.RankingResults,
		m.HTTPRequests, m.HTTPDuration,
	)
	return m
}

// The helpers below are no-ops on a nil *Metrics, so callers need not
// check whether metrics are enabled.

// ObserveRequest records one API attempt.
func (m *Metrics) ObserveRequest(endpoint string, code int, d time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(endpoint, strconv.Itoa(code)).Inc()
	m.HTTPDuration.WithLabelValues(endpoint).Observe(d.Seconds())
}

// Payload counts a live payload outcome.
func (m *Metrics) Payload(stream, outcome string) {
	if m == nil {
		return
	}
	m.StreamPayloads.WithLabelValues(stream, outcome).Inc()
}

// Connected sets the connection gauge, counting every drop.
func (m *Metrics) Connected(stream string, up bool) {
	if m == nil {
		return
	}
	if up {
		m.StreamConnected.WithLabelValues(stream).Set(1)
		return
	}
	m.StreamConnected.WithLabelValues(stream).Set(0)
	m.StreamReconnects.WithLabelValues(stream).Inc()
}

// Ranking counts a ranking result as published or stale.
func (m *Metrics) Ranking(published bool) {
	if m == nil {
		return
	}
	if published {
		m.RankingResults.WithLabelValues("published").Inc()
		return
	}
	m.RankingResults.WithLabelValues("stale").Inc()
}

// SnapshotInstalled counts an installed snapshot.
func (m *Metrics) SnapshotInstalled(stream string) {
	if m == nil {
		return
	}
	m.SnapshotInstalls.WithLabelValues(stream).Inc()
}

// SnapshotError counts a failed snapshot fetch.
func (m *Metrics) SnapshotError(stream string) {
	if m == nil {
		return
	}
	m.SnapshotErrors.WithLabelValues(stream).Inc()
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

// Serve listens on addr and serves /metrics until ctx is cancelled.
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("metrics listen %s: %w", addr, err)
	}
	return m.serve(ctx, ln)
}

func (m *Metrics) serve(ctx context.Context, ln net.Listener) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics server: %w", err)
	}
	return nil
}

// Package ui is the Bubble Tea dashboard.
//
// The App never performs I/O. Every fetch is a tea.Cmd supplied through
// Deps, and live stream traffic arrives as messages sent by the
// coordinator. All reconciled state is owned by the Update goroutine.
package ui

import (
	"github.com/abelbrown/divyadrishti/internal/model"
	"github.com/abelbrown/divyadrishti/internal/ranking"
	"github.com/abelbrown/divyadrishti/internal/reconcile"
	"github.com/abelbrown/divyadrishti/internal/stream"
)

// StreamPayload carries one raw live payload, already split from any array
// frame.
type StreamPayload struct {
	Stream  string
	Payload []byte
}

// StreamStatus reports a connection change on a live stream.
type StreamStatus struct {
	Stream string
	State  stream.State
}

// TrendingLoaded answers a trending snapshot request taken at Mark.
type TrendingLoaded struct {
	Mark    reconcile.Mark
	Stories []model.Story
	Err     error
}

// MetricsLoaded answers a top metrics snapshot request taken at Mark.
type MetricsLoaded struct {
	Mark    reconcile.Mark
	Metrics []model.MetricNode
	Err     error
}

// RankingLoaded carries a ranking result for the selector to judge.
type RankingLoaded struct {
	Result ranking.Result
}

// MetricLoaded carries the metric detail and its series, fetched together.
type MetricLoaded struct {
	ID        string
	Window    model.Window
	Detail    model.MetricDetail
	Series    []model.SeriesPoint
	Err       error // detail failure; the view shows nothing else
	SeriesErr error // series failure alone leaves the detail visible
}

// StoryLoaded carries a story and its comment forest, fetched together.
type StoryLoaded struct {
	ID          int64
	Story       model.Story
	Comments    []model.Comment
	Err         error
	CommentsErr error
}

// clockTick re-renders relative times.
type clockTick struct{}

// Package coord runs the dashboard's background work: live stream
// subscriptions, snapshot and detail fetches, and the optional journal and
// metrics listener. Results reach the UI only as messages.
package coord

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/sync/errgroup"

	"github.com/abelbrown/divyadrishti/internal/journal"
	"github.com/abelbrown/divyadrishti/internal/logging"
	"github.com/abelbrown/divyadrishti/internal/metrics"
	"github.com/abelbrown/divyadrishti/internal/model"
	"github.com/abelbrown/divyadrishti/internal/otel"
	"github.com/abelbrown/divyadrishti/internal/ranking"
	"github.com/abelbrown/divyadrishti/internal/reconcile"
	"github.com/abelbrown/divyadrishti/internal/stream"
	"github.com/abelbrown/divyadrishti/internal/ui"
)

// fetchTimeout bounds each snapshot or detail fetch, retries included.
const fetchTimeout = 30 * time.Second

// journalQueue is the number of journal writes that may wait for the
// writer before new ones are dropped.
const journalQueue = 1024

// API is the subset of the HTTP client the coordinator uses.
type API interface {
	TrendingStories(ctx context.Context, limit int) ([]model.Story, error)
	TopMetrics(ctx context.Context, limit int) ([]model.MetricNode, error)
	Rankings(ctx context.Context, window model.Window, lens model.Lens) ([]model.MetricNode, error)
	MetricDetail(ctx context.Context, id string, window model.Window) (model.MetricDetail, error)
	MetricSeries(ctx context.Context, id string, window model.Window) ([]model.SeriesPoint, error)
	Story(ctx context.Context, id int64) (model.Story, error)
	Comments(ctx context.Context, storyID int64) ([]model.Comment, error)
}

// Subscriber is one live stream.
type Subscriber interface {
	Name() string
	Run(ctx context.Context, h stream.Handler) error
}

// sender is satisfied by *tea.Program.
type sender interface {
	Send(msg tea.Msg)
}

// Options configures a Coordinator. Everything but API is optional.
type Options struct {
	API           API
	Streams       []Subscriber
	Journal       *journal.Journal
	Metrics       *metrics.Metrics
	MetricsAddr   string
	Events        *otel.Logger
	TrendingLimit int
	MetricsLimit  int
}

type journalEntry struct {
	stream  string
	kind    journal.Kind
	payload []byte
}

// Coordinator manages the background goroutines. Context cancellation is
// the only stop mechanism.
type Coordinator struct {
	opts    Options
	streams []Subscriber // fixed at construction
	wg      sync.WaitGroup

	jq      chan journalEntry
	jstart  sync.Once
	jclosed chan struct{}
}

// New creates a Coordinator.
func New(opts Options) *Coordinator {
	streams := make([]Subscriber, len(opts.Streams))
	copy(streams, opts.Streams)
	c := &Coordinator{opts: opts, streams: streams}
	if opts.Journal != nil {
		c.jq = make(chan journalEntry, journalQueue)
		c.jclosed = make(chan struct{})
	}
	return c
}

// Start launches stream subscriptions, the journal writer and the metrics
// listener. A nil program is allowed in tests.
func (c *Coordinator) Start(ctx context.Context, program sender) {
	for _, s := range c.streams {
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			c.runStream(ctx, s, program)
		}()
	}

	if c.jq != nil {
		c.startJournal(ctx)
	}

	if c.opts.Metrics != nil && c.opts.MetricsAddr != "" {
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			if err := c.opts.Metrics.Serve(ctx, c.opts.MetricsAddr); err != nil {
				logging.Error("metrics listener stopped", "addr", c.opts.MetricsAddr, "err", err)
				c.opts.Events.Error(otel.KindError, "coord", err)
			}
		}()
	}
}

// Wait blocks until every background goroutine has exited. Call after
// cancelling the context passed to Start.
func (c *Coordinator) Wait() {
	c.wg.Wait()
}

func (c *Coordinator) runStream(ctx context.Context, s Subscriber, program sender) {
	name := s.Name()
	logging.Info("stream subscribed", "stream", name)
	_ = s.Run(ctx, func(payload []byte) {
		if program == nil {
			return
		}
		program.Send(ui.StreamPayload{Stream: name, Payload: payload})
	})
	logging.Info("stream stopped", "stream", name)
}

// StreamStatus adapts a stream.State callback into a UI message and updates
// the connection gauge. Wire it into stream.Options.OnState.
func (c *Coordinator) StreamStatus(name string, program sender) func(stream.State) {
	return func(st stream.State) {
		c.opts.Metrics.Connected(name, st.Connected)
		if st.Connected {
			logging.Info("stream connected", "stream", name, "attempt", st.Attempt)
		} else {
			logging.Warn("stream disconnected", "stream", name, "attempt", st.Attempt, "err", st.Err)
		}
		if program != nil {
			program.Send(ui.StreamStatus{Stream: name, State: st})
		}
	}
}

// LoadTrending fetches the trending snapshot for a request taken at mark.
func (c *Coordinator) LoadTrending(mark reconcile.Mark) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
		defer cancel()
		start := time.Now()
		c.opts.Events.Emit(otel.Event{Kind: otel.KindSnapshotStart, Comp: "coord", Stream: stream.Trending})
		stories, err := c.opts.API.TrendingStories(ctx, c.opts.TrendingLimit)
		c.snapshotDone(stream.Trending, len(stories), time.Since(start), err)
		if err == nil {
			c.RecordSnapshot(stream.Trending, stories)
		}
		return ui.TrendingLoaded{Mark: mark, Stories: stories, Err: err}
	}
}

// LoadMetrics fetches the top metrics snapshot for a request taken at mark.
func (c *Coordinator) LoadMetrics(mark reconcile.Mark) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
		defer cancel()
		start := time.Now()
		c.opts.Events.Emit(otel.Event{Kind: otel.KindSnapshotStart, Comp: "coord", Stream: stream.Metrics})
		nodes, err := c.opts.API.TopMetrics(ctx, c.opts.MetricsLimit)
		c.snapshotDone(stream.Metrics, len(nodes), time.Since(start), err)
		if err == nil {
			c.RecordSnapshot(stream.Metrics, nodes)
		}
		return ui.MetricsLoaded{Mark: mark, Metrics: nodes, Err: err}
	}
}

func (c *Coordinator) snapshotDone(name string, n int, d time.Duration, err error) {
	if err != nil {
		c.opts.Metrics.SnapshotError(name)
		c.opts.Events.Emit(otel.Event{Level: otel.LevelError, Kind: otel.KindSnapshotError, Comp: "coord", Stream: name, Dur: d, Err: err.Error()})
		logging.Warn("snapshot failed", "stream", name, "err", err)
		return
	}
	c.opts.Events.Emit(otel.Event{Level: otel.LevelInfo, Kind: otel.KindSnapshotInstall, Comp: "coord", Stream: name, Count: n, Dur: d})
}

// LoadRanking runs one selector request.
func (c *Coordinator) LoadRanking(req ranking.Request) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
		defer cancel()
		res := ranking.Run(ctx, c.opts.API, req)
		ev := otel.Event{Kind: otel.KindRankingSelect, Comp: "coord", ReqID: req.ID, Key: req.Key.String(), Count: len(res.Metrics), Dur: time.Since(req.Issued)}
		if res.Err != nil {
			ev.Level, ev.Err = otel.LevelWarn, res.Err.Error()
		}
		c.opts.Events.Emit(ev)
		return ui.RankingLoaded{Result: res}
	}
}

// LoadMetric fetches a metric's detail and series in parallel. A series
// failure does not hide the detail.
func (c *Coordinator) LoadMetric(id string, window model.Window) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
		defer cancel()

		msg := ui.MetricLoaded{ID: id, Window: window}
		var g errgroup.Group
		g.Go(func() error {
			msg.Detail, msg.Err = c.opts.API.MetricDetail(ctx, id, window)
			return nil
		})
		g.Go(func() error {
			msg.Series, msg.SeriesErr = c.opts.API.MetricSeries(ctx, id, window)
			return nil
		})
		_ = g.Wait()
		return msg
	}
}

// LoadStory fetches a story and its comments in parallel.
func (c *Coordinator) LoadStory(id int64) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
		defer cancel()

		msg := ui.StoryLoaded{ID: id}
		var g errgroup.Group
		g.Go(func() error {
			msg.Story, msg.Err = c.opts.API.Story(ctx, id)
			return nil
		})
		g.Go(func() error {
			msg.Comments, msg.CommentsErr = c.opts.API.Comments(ctx, id)
			return nil
		})
		_ = g.Wait()
		return msg
	}
}

// RecordRequest journals that a snapshot was requested on stream. The UI
// calls it at the moment it takes the reconciler mark.
func (c *Coordinator) RecordRequest(name string) {
	c.record(name, journal.KindRequest, nil)
}

// RecordEvent journals one live payload in the order the UI applied it.
func (c *Coordinator) RecordEvent(name string, payload []byte) {
	c.record(name, journal.KindEvent, payload)
}

// RecordSnapshot journals a snapshot response.
func (c *Coordinator) RecordSnapshot(name string, items any) {
	if c.jq == nil {
		return
	}
	data, err := json.Marshal(items)
	if err != nil {
		logging.Warn("journal snapshot encode failed", "stream", name, "err", err)
		return
	}
	c.record(name, journal.KindSnapshot, data)
}

func (c *Coordinator) record(name string, kind journal.Kind, payload []byte) {
	if c.jq == nil {
		return
	}
	select {
	case <-c.jclosed:
		return
	default:
	}
	select {
	case c.jq <- journalEntry{stream: name, kind: kind, payload: payload}:
	default:
		logging.Warn("journal queue full, entry dropped", "stream", name, "kind", kind)
	}
}

// startJournal drains the journal queue on its own goroutine so SQLite
// writes never run on the UI goroutine.
func (c *Coordinator) startJournal(ctx context.Context) {
	c.jstart.Do(func() {
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			defer close(c.jclosed)
			write := func(e journalEntry) {
				wctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := c.opts.Journal.Record(wctx, e.stream, e.kind, e.payload); err != nil {
					logging.Warn("journal write failed", "err", err)
				}
			}
			for {
				select {
				case e := <-c.jq:
					write(e)
				case <-ctx.Done():
					// Flush what is already queued.
					for {
						select {
						case e := <-c.jq:
							write(e)
						default:
							return
						}
					}
				}
			}
		}()
	})
}

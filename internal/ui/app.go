package ui

import (
	"fmt"
	"slices"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/abelbrown/divyadrishti/internal/comments"
	"github.com/abelbrown/divyadrishti/internal/metrics"
	"github.com/abelbrown/divyadrishti/internal/model"
	"github.com/abelbrown/divyadrishti/internal/otel"
	"github.com/abelbrown/divyadrishti/internal/ranking"
	"github.com/abelbrown/divyadrishti/internal/reconcile"
	"github.com/abelbrown/divyadrishti/internal/sanitize"
	"github.com/abelbrown/divyadrishti/internal/series"
	"github.com/abelbrown/divyadrishti/internal/stream"
)

// clockInterval is how often relative times are re-rendered.
const clockInterval = 30 * time.Second

type view int

const (
	viewTrending view = iota
	viewMetrics
	viewRankings
	viewMetric
	viewStory
)

var topViews = []view{viewTrending, viewMetrics, viewRankings}

func (v view) String() string {
	switch v {
	case viewTrending:
		return "Trending"
	case viewMetrics:
		return "Metrics"
	case viewRankings:
		return "Rankings"
	case viewMetric:
		return "Metric"
	case viewStory:
		return "Story"
	}
	return "?"
}

// Recorder journals snapshot requests and live payloads in the order the
// App applies them.
type Recorder interface {
	RecordRequest(stream string)
	RecordEvent(stream string, payload []byte)
}

// Deps are the App's collaborators. Every command factory may be nil, in
// which case the corresponding load is skipped.
type Deps struct {
	LoadTrending func(mark reconcile.Mark) tea.Cmd
	LoadMetrics  func(mark reconcile.Mark) tea.Cmd
	LoadRanking  func(req ranking.Request) tea.Cmd
	LoadMetric   func(id string, window model.Window) tea.Cmd
	LoadStory    func(id int64) tea.Cmd

	Journal   Recorder           // optional
	Events    *otel.Logger       // optional
	Ring      *otel.Ring         // optional, feeds the debug overlay
	Metrics   *metrics.Metrics   // optional
	Sanitizer sanitize.Sanitizer // nil means sanitize.HTML{}

	Ranking ranking.Key // initial lens and window
}

type streamInfo struct {
	stream.State
	Payloads int
}

type metricState struct {
	id        string
	window    model.Window
	loading   bool
	detail    *model.MetricDetail
	points    []model.SeriesPoint
	field     series.Field
	err       error
	seriesErr error
}

type storyState struct {
	id          int64
	loading     bool
	story       *model.Story
	forest      *comments.Forest
	err         error
	commentsErr error
}

// App is the root Bubble Tea model.
// IMPORTANT: App performs no I/O. Fetches are commands from Deps and live
// payloads arrive as StreamPayload messages.
type App struct {
	deps Deps

	trending        *reconcile.Reconciler[model.Story]
	metrics         *reconcile.Reconciler[model.MetricNode]
	trendingLoading bool
	metricsLoading  bool
	trendingErr     error
	metricsErr      error

	selector *ranking.Selector
	streams  map[string]streamInfo

	view    view
	back    view
	cursors map[view]int

	metric metricState
	story  storyState

	viewport  viewport.Model
	spinner   spinner.Model
	help      help.Model
	showHelp  bool
	showDebug bool

	now    func() time.Time
	width  int
	height int
	ready  bool
}

// NewApp creates the App.
func NewApp(deps Deps) App {
	if deps.Sanitizer == nil {
		deps.Sanitizer = sanitize.HTML{}
	}
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = StatusBarKey
	return App{
		deps:     deps,
		trending: reconcile.New(model.DecodeStory),
		metrics:  reconcile.New(model.DecodeMetricNode),
		selector: ranking.NewSelector(deps.Ranking),
		streams:  make(map[string]streamInfo),
		cursors:  make(map[view]int),
		viewport: viewport.New(80, 20),
		spinner:  s,
		help:     help.New(),
		now:      time.Now,
		metric:   metricState{field: series.FieldPresence},

		trendingLoading: deps.LoadTrending != nil,
		metricsLoading:  deps.LoadMetrics != nil,
	}
}

// Init issues the two snapshot requests and the initial ranking request.
func (a App) Init() tea.Cmd {
	cmds := []tea.Cmd{a.spinner.Tick, tickClock()}
	if cmd := a.refreshTrending(); cmd != nil {
		cmds = append(cmds, cmd)
	}
	if cmd := a.refreshMetrics(); cmd != nil {
		cmds = append(cmds, cmd)
	}
	if a.deps.LoadRanking != nil {
		cmds = append(cmds, a.deps.LoadRanking(a.selector.Refresh()))
	}
	return tea.Batch(cmds...)
}

func tickClock() tea.Cmd {
	return tea.Tick(clockInterval, func(time.Time) tea.Msg { return clockTick{} })
}

// Update handles messages and returns the updated model and any commands.
func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if otel.TraceEnabled() {
		a.deps.Events.Emit(otel.Event{Level: otel.LevelDebug, Kind: otel.KindTraceMsg, Comp: "ui", Msg: fmt.Sprintf("%T", msg)})
	}

	switch msg := msg.(type) {
	case tea.KeyMsg:
		return a.handleKeyMsg(msg)

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.ready = true
		a.help.Width = msg.Width
		a.viewport.Width = msg.Width
		a.viewport.Height = max(msg.Height-3, 1)
		a.syncViewport()
		return a, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		return a, cmd

	case clockTick:
		a.syncViewport()
		return a, tickClock()

	case StreamStatus:
		info := a.streams[msg.Stream]
		info.State = msg.State
		a.streams[msg.Stream] = info
		return a, nil

	case StreamPayload:
		a.ingest(msg)
		return a, nil

	case TrendingLoaded:
		switch {
		case msg.Err != nil:
			if !a.trending.Fail(msg.Mark) {
				a.emitSuperseded(stream.Trending)
				break
			}
			a.trendingErr = msg.Err
		case a.trending.Install(msg.Stories, msg.Mark):
			a.trendingErr = nil
			a.deps.Metrics.SnapshotInstalled(stream.Trending)
			a.clampCursor(viewTrending)
		default:
			a.emitSuperseded(stream.Trending)
		}
		a.trendingLoading = a.trending.Pending()
		return a, nil

	case MetricsLoaded:
		switch {
		case msg.Err != nil:
			if !a.metrics.Fail(msg.Mark) {
				a.emitSuperseded(stream.Metrics)
				break
			}
			a.metricsErr = msg.Err
		case a.metrics.Install(msg.Metrics, msg.Mark):
			a.metricsErr = nil
			a.deps.Metrics.SnapshotInstalled(stream.Metrics)
			a.clampCursor(viewMetrics)
		default:
			a.emitSuperseded(stream.Metrics)
		}
		a.metricsLoading = a.metrics.Pending()
		return a, nil

	case RankingLoaded:
		a.resolveRanking(msg.Result)
		return a, nil

	case MetricLoaded:
		if msg.ID != a.metric.id || msg.Window != a.metric.window {
			return a, nil
		}
		a.metric.loading = false
		a.metric.err = msg.Err
		a.metric.seriesErr = msg.SeriesErr
		a.metric.detail = nil
		a.metric.points = nil
		if msg.Err == nil {
			d := msg.Detail
			a.metric.detail = &d
			a.metric.points = msg.Series
		}
		a.syncViewport()
		return a, nil

	case StoryLoaded:
		if msg.ID != a.story.id {
			return a, nil
		}
		a.story.loading = false
		a.story.err = msg.Err
		a.story.commentsErr = msg.CommentsErr
		a.story.story = nil
		a.story.forest = nil
		if msg.Err == nil {
			s := msg.Story
			a.story.story = &s
			a.story.forest = comments.Build(msg.Comments)
		}
		a.syncViewport()
		return a, nil
	}

	return a, nil
}

// ingest applies one live payload to the matching reconciler. The cursor
// follows the selected item when a new one is prepended above it.
func (a *App) ingest(msg StreamPayload) {
	var (
		out reconcile.Outcome
		v   view
	)
	switch msg.Stream {
	case stream.Trending:
		out, v = a.trending.Ingest(msg.Payload), viewTrending
	case stream.Metrics:
		out, v = a.metrics.Ingest(msg.Payload), viewMetrics
	default:
		return
	}

	info := a.streams[msg.Stream]
	info.Payloads++
	a.streams[msg.Stream] = info

	if a.deps.Journal != nil {
		a.deps.Journal.RecordEvent(msg.Stream, msg.Payload)
	}
	a.deps.Metrics.Payload(msg.Stream, out.String())

	switch out {
	case reconcile.Dropped:
		a.deps.Events.Emit(otel.Event{Level: otel.LevelWarn, Kind: otel.KindStreamDrop, Comp: "ui", Stream: msg.Stream, Count: len(msg.Payload)})
		return
	case reconcile.Prepended:
		if a.listLen(v) > 1 {
			a.cursors[v]++
		}
	}
	a.deps.Events.Emit(otel.Event{Level: otel.LevelDebug, Kind: otel.KindStreamIngest, Comp: "ui", Stream: msg.Stream, Msg: out.String()})
}

func (a *App) resolveRanking(res ranking.Result) {
	published := a.selector.Resolve(res)
	a.deps.Metrics.Ranking(published)
	ev := otel.Event{Comp: "ui", ReqID: res.Request.ID, Key: res.Request.Key.String(), Count: len(res.Metrics)}
	if published {
		ev.Level, ev.Kind = otel.LevelInfo, otel.KindRankingPublish
		if res.Err != nil {
			ev.Level, ev.Err = otel.LevelWarn, res.Err.Error()
		}
		a.clampCursor(viewRankings)
	} else {
		ev.Level, ev.Kind = otel.LevelDebug, otel.KindRankingStale
	}
	a.deps.Events.Emit(ev)
}

// emitSuperseded records a snapshot response that lost to a newer request.
func (a *App) emitSuperseded(name string) {
	a.deps.Events.Emit(otel.Event{Level: otel.LevelDebug, Kind: otel.KindSnapshotStale, Comp: "ui", Stream: name})
}

// refreshTrending takes a mark, journals the request and returns the
// snapshot command.
func (a *App) refreshTrending() tea.Cmd {
	if a.deps.LoadTrending == nil {
		return nil
	}
	mark := a.trending.Mark()
	if a.deps.Journal != nil {
		a.deps.Journal.RecordRequest(stream.Trending)
	}
	a.trendingLoading = true
	return a.deps.LoadTrending(mark)
}

func (a *App) refreshMetrics() tea.Cmd {
	if a.deps.LoadMetrics == nil {
		return nil
	}
	mark := a.metrics.Mark()
	if a.deps.Journal != nil {
		a.deps.Journal.RecordRequest(stream.Metrics)
	}
	a.metricsLoading = true
	return a.deps.LoadMetrics(mark)
}

func (a *App) loadRanking(req ranking.Request) tea.Cmd {
	if a.deps.LoadRanking == nil {
		return nil
	}
	return a.deps.LoadRanking(req)
}

func (a *App) openMetric(id string, window model.Window) tea.Cmd {
	a.enterDetail(viewMetric)
	a.metric = metricState{id: id, window: window, loading: true, field: a.metric.field}
	a.syncViewport()
	if a.deps.LoadMetric == nil {
		return nil
	}
	return a.deps.LoadMetric(id, window)
}

func (a *App) openStory(id int64) tea.Cmd {
	a.enterDetail(viewStory)
	a.story = storyState{id: id, loading: true}
	a.syncViewport()
	if a.deps.LoadStory == nil {
		return nil
	}
	return a.deps.LoadStory(id)
}

func (a *App) enterDetail(v view) {
	if slices.Contains(topViews, a.view) {
		a.back = a.view
	}
	a.view = v
	a.viewport.GotoTop()
}

// handleKeyMsg processes keyboard input.
func (a App) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Quit):
		return a, tea.Quit

	case key.Matches(msg, keys.Debug):
		a.showDebug = !a.showDebug
		return a, nil

	case key.Matches(msg, keys.Help):
		a.showHelp = !a.showHelp
		a.help.ShowAll = a.showHelp
		return a, nil

	case key.Matches(msg, keys.Trending):
		a.view = viewTrending
		return a, nil

	case key.Matches(msg, keys.Metrics):
		a.view = viewMetrics
		return a, nil

	case key.Matches(msg, keys.Rankings):
		a.view = viewRankings
		return a, nil

	case key.Matches(msg, keys.NextView):
		i := slices.Index(topViews, a.view)
		a.view = topViews[(i+1)%len(topViews)]
		return a, nil

	case key.Matches(msg, keys.Back):
		if !slices.Contains(topViews, a.view) {
			a.view = a.back
		}
		return a, nil

	case key.Matches(msg, keys.Refresh):
		return a, a.refresh()

	case key.Matches(msg, keys.Lens):
		return a, a.cycleLens(1)

	case key.Matches(msg, keys.LensBack):
		return a, a.cycleLens(-1)

	case key.Matches(msg, keys.Window):
		return a, a.cycleWindow()

	case key.Matches(msg, keys.Field):
		if a.view == viewMetric {
			a.metric.field = a.metric.field.Next()
			a.syncViewport()
		}
		return a, nil
	}

	if a.view == viewMetric || a.view == viewStory {
		switch {
		case key.Matches(msg, keys.Top):
			a.viewport.GotoTop()
			return a, nil
		case key.Matches(msg, keys.Bottom):
			a.viewport.GotoBottom()
			return a, nil
		}
		var cmd tea.Cmd
		a.viewport, cmd = a.viewport.Update(msg)
		return a, cmd
	}

	n := a.listLen(a.view)
	switch {
	case key.Matches(msg, keys.Down):
		if a.cursors[a.view] < n-1 {
			a.cursors[a.view]++
		}
	case key.Matches(msg, keys.Up):
		if a.cursors[a.view] > 0 {
			a.cursors[a.view]--
		}
	case key.Matches(msg, keys.Top):
		a.cursors[a.view] = 0
	case key.Matches(msg, keys.Bottom):
		a.cursors[a.view] = max(n-1, 0)
	case key.Matches(msg, keys.Open):
		return a, a.openSelected()
	}
	return a, nil
}

func (a *App) openSelected() tea.Cmd {
	i := a.cursors[a.view]
	if i < 0 || i >= a.listLen(a.view) {
		return nil
	}
	switch a.view {
	case viewTrending:
		return a.openStory(a.trending.At(i).ID)
	case viewMetrics:
		return a.openMetric(a.metrics.At(i).ID, a.selector.Key().Window)
	case viewRankings:
		return a.openMetric(a.selector.Entries()[i].Metric.ID, a.selector.Key().Window)
	}
	return nil
}

func (a *App) refresh() tea.Cmd {
	switch a.view {
	case viewTrending:
		return a.refreshTrending()
	case viewMetrics:
		return a.refreshMetrics()
	case viewRankings:
		return a.loadRanking(a.selector.Refresh())
	case viewMetric:
		return a.openMetric(a.metric.id, a.metric.window)
	case viewStory:
		return a.openStory(a.story.id)
	}
	return nil
}

// cycleLens moves the rankings lens by step. Only the rankings view has a
// lens.
func (a *App) cycleLens(step int) tea.Cmd {
	if a.view != viewRankings {
		return nil
	}
	i := slices.Index(model.Lenses, a.selector.Key().Lens)
	n := len(model.Lenses)
	next := model.Lenses[((i+step)%n+n)%n]
	req, ok := a.selector.SetLens(next)
	if !ok {
		return nil
	}
	return a.loadRanking(req)
}

// cycleWindow advances the time window. On the metric view it refetches the
// metric for the new window; elsewhere it drives the ranking selector.
func (a *App) cycleWindow() tea.Cmd {
	if a.view == viewMetric {
		if a.metric.id == "" {
			return nil
		}
		return a.openMetric(a.metric.id, nextWindow(a.metric.window))
	}
	if a.view != viewRankings && a.view != viewMetrics {
		return nil
	}
	req, ok := a.selector.SetWindow(nextWindow(a.selector.Key().Window))
	if !ok {
		return nil
	}
	return a.loadRanking(req)
}

func nextWindow(w model.Window) model.Window {
	i := slices.Index(model.Windows, w)
	return model.Windows[(i+1)%len(model.Windows)]
}

func (a *App) listLen(v view) int {
	switch v {
	case viewTrending:
		return a.trending.Len()
	case viewMetrics:
		return a.metrics.Len()
	case viewRankings:
		return len(a.selector.Entries())
	}
	return 0
}

func (a *App) clampCursor(v view) {
	n := a.listLen(v)
	if a.cursors[v] >= n {
		a.cursors[v] = max(n-1, 0)
	}
}

// loading reports whether the current view is waiting on a fetch.
func (a App) loading() bool {
	switch a.view {
	case viewTrending:
		return a.trendingLoading
	case viewMetrics:
		return a.metricsLoading
	case viewRankings:
		return a.selector.State() == ranking.StateLoading
	case viewMetric:
		return a.metric.loading
	case viewStory:
		return a.story.loading
	}
	return false
}

func (a *App) syncViewport() {
	switch a.view {
	case viewMetric:
		a.viewport.SetContent(a.renderMetric(a.viewport.Width))
	case viewStory:
		a.viewport.SetContent(a.renderStory(a.viewport.Width))
	}
}

// View renders the UI.
func (a App) View() string {
	if !a.ready {
		return "Loading..."
	}
	if a.showDebug {
		return debugOverlay(a.deps.Ring, a.streams, a.width, a.height-1) + "\n" + debugStatusBar(a.width)
	}

	header := a.renderTabs()
	footer := a.renderStatusBar()
	if a.showHelp {
		footer = a.help.View(keys) + "\n" + footer
	}
	bodyHeight := max(a.height-lineCount(header)-lineCount(footer), 1)

	var body string
	switch a.view {
	case viewTrending:
		body = a.renderTrending(a.width, bodyHeight)
	case viewMetrics:
		body = a.renderMetrics(a.width, bodyHeight)
	case viewRankings:
		body = a.renderRankings(a.width, bodyHeight)
	case viewMetric, viewStory:
		a.viewport.Height = bodyHeight
		body = a.viewport.View()
	}
	return header + "\n" + body + "\n" + footer
}

// Cursor returns the cursor of the current view (for testing).
func (a App) Cursor() int {
	return a.cursors[a.view]
}

// Stories returns the reconciled trending stories (for testing).
func (a App) Stories() []model.Story {
	return a.trending.Snapshot()
}

// MetricNodes returns the reconciled top metrics (for testing).
func (a App) MetricNodes() []model.MetricNode {
	return a.metrics.Snapshot()
}

// Rankings returns the published ranking entries (for testing).
func (a App) Rankings() []model.RankingEntry {
	return a.selector.Entries()
}

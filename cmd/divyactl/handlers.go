package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"slices"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/abelbrown/divyadrishti/internal/classify"
	"github.com/abelbrown/divyadrishti/internal/client"
	"github.com/abelbrown/divyadrishti/internal/comments"
	"github.com/abelbrown/divyadrishti/internal/config"
	"github.com/abelbrown/divyadrishti/internal/journal"
	"github.com/abelbrown/divyadrishti/internal/logging"
	"github.com/abelbrown/divyadrishti/internal/model"
	"github.com/abelbrown/divyadrishti/internal/otel"
	"github.com/abelbrown/divyadrishti/internal/ranking"
	"github.com/abelbrown/divyadrishti/internal/reconcile"
	"github.com/abelbrown/divyadrishti/internal/sanitize"
	"github.com/abelbrown/divyadrishti/internal/sentiment"
	"github.com/abelbrown/divyadrishti/internal/series"
	"github.com/abelbrown/divyadrishti/internal/stream"
)

func loadConfig() (*config.Config, error) {
	path := cfgFile
	if path == "" {
		path = config.DefaultPath()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if apiURL != "" {
		cfg.API.URL = apiURL
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

func newClient(cfg *config.Config) (*client.Client, error) {
	return client.New(cfg.API.URL, client.Options{
		Timeout:    cfg.API.Timeout,
		Rate:       cfg.API.Rate,
		Burst:      cfg.API.Burst,
		Retries:    cfg.API.Retries,
		BackoffMin: cfg.API.BackoffMin,
		BackoffMax: cfg.API.BackoffMax,
		UserAgent:  "divyactl",
	})
}

func setup(ctx context.Context) (context.Context, context.CancelFunc, *config.Config, *client.Client, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, nil, nil, err
	}
	api, err := newClient(cfg)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	return ctx, cancel, cfg, api, nil
}

func runTrending(ctx context.Context, limit int) error {
	ctx, cancel, cfg, api, err := setup(ctx)
	if err != nil {
		return err
	}
	defer cancel()
	if limit <= 0 {
		limit = cfg.UI.TrendingLimit
	}

	stories, err := api.TrendingStories(ctx, limit)
	if err != nil {
		return err
	}
	p := newPrinter()
	if jsonOutput {
		return p.json(stories)
	}
	if len(stories) == 0 {
		fmt.Fprintln(p.w, "No trending stories.")
		return nil
	}

	now := time.Now()
	tw := p.table()
	fmt.Fprintln(tw, "ID\tSCORE\tCOMMENTS\tAGE\tSENTIMENT\tTITLE")
	for _, s := range stories {
		fmt.Fprintf(tw, "%d\t%d\t%d\t%s\t%s\t%s\n",
			s.ID, s.Score, s.Descendants, humanize.RelTime(s.Posted(), now, "ago", "from now"),
			sentimentSummary(s.SentimentOrZero()), truncate(s.Title, 70))
	}
	return tw.Flush()
}

func sentimentSummary(s model.Sentiment) string {
	sh := sentiment.Normalize(s)
	if sh.NoData() {
		return "-"
	}
	return fmt.Sprintf("+%s/-%s", sentiment.Percent(sh.Positive), sentiment.Percent(sh.Negative))
}

func runRankings(ctx context.Context, lensArg, windowArg string) error {
	ctx, cancel, cfg, api, err := setup(ctx)
	if err != nil {
		return err
	}
	defer cancel()

	key := ranking.Key{Lens: cfg.Lens(), Window: cfg.Window()}
	if lensArg != "" {
		if key.Lens, err = model.ParseLens(lensArg); err != nil {
			return err
		}
	}
	if windowArg != "" {
		if key.Window, err = model.ParseWindow(windowArg); err != nil {
			return err
		}
	}

	res := ranking.Run(ctx, api, ranking.Request{ID: "cli", Key: key, Issued: time.Now()})
	if res.Err != nil {
		return fmt.Errorf("rankings %s: %w", key, res.Err)
	}
	entries := ranking.Rank(res.Metrics)

	p := newPrinter()
	if jsonOutput {
		return p.json(entries)
	}
	fmt.Fprintf(p.w, "%s · %s\n\n", p.bold(key.Lens.Label()), key.Window.Label())
	if len(entries) == 0 {
		fmt.Fprintln(p.w, "No metrics for this lens and window.")
		return nil
	}
	tw := p.table()
	fmt.Fprintln(tw, "RANK\tMETRIC\tPRESENCE\tHEAT\tMOMENTUM\tVALENCE\tID")
	for _, e := range entries {
		m := e.Metric
		fmt.Fprintf(tw, "%d\t%s\t%.1f%%\t%s\t%s\t%s\t%s\n",
			e.Rank, truncate(m.Label, 40), m.PresencePct,
			heatLabel(p, m.Heat), momentumLabel(p, m.Momentum), valenceLabel(p, m.Valence), m.ID)
	}
	return tw.Flush()
}

func heatLabel(p printer, v float64) string {
	h := classify.ClassifyHeat(v)
	return p.paint(h.Color(), h.String())
}

func momentumLabel(p printer, v float64) string {
	return p.paint(classify.ClassifyMomentum(v).Color(), classify.Momentum(v))
}

func valenceLabel(p printer, v float64) string {
	l := classify.ClassifyValence(v)
	return p.paint(l.Color(), l.String()+" "+classify.Signed(v))
}

func runMetric(ctx context.Context, id, windowArg, fieldArg string) error {
	ctx, cancel, cfg, api, err := setup(ctx)
	if err != nil {
		return err
	}
	defer cancel()

	window := cfg.Window()
	if windowArg != "" {
		if window, err = model.ParseWindow(windowArg); err != nil {
			return err
		}
	}
	field, err := series.ParseField(fieldArg)
	if err != nil {
		return err
	}

	detail, err := api.MetricDetail(ctx, id, window)
	if client.IsNotFound(err) {
		return fmt.Errorf("metric %q not found", id)
	}
	if err != nil {
		return err
	}
	points, seriesErr := api.MetricSeries(ctx, id, window)
	if seriesErr != nil {
		logging.Warn("series unavailable", "metric", id, "err", seriesErr)
	}

	p := newPrinter()
	if jsonOutput {
		return p.json(struct {
			Detail model.MetricDetail  `json:"detail"`
			Series []model.SeriesPoint `json:"series"`
		}{detail, points})
	}

	r := detail.Rollup
	fmt.Fprintf(p.w, "%s  (%s, %s)\n", p.bold(detail.Label), detail.ID, window.Label())
	if detail.Definition != "" {
		fmt.Fprintln(p.w, detail.Definition)
	}
	fmt.Fprintln(p.w)
	tw := p.table()
	fmt.Fprintf(tw, "presence\t%.1f%%\n", r.PresencePct)
	fmt.Fprintf(tw, "heat\t%s (%.2f)\n", heatLabel(p, r.Heat), r.Heat)
	fmt.Fprintf(tw, "momentum\t%s\n", momentumLabel(p, r.Momentum))
	fmt.Fprintf(tw, "valence\t%s\n", valenceLabel(p, r.Valence))
	fmt.Fprintf(tw, "split / consensus\t%.2f / %.2f\n", r.Split, r.Consensus)
	fmt.Fprintf(tw, "unique authors\t%s\n", humanize.Comma(int64(r.UniqueAuthors)))
	sh := sentiment.Normalize(r.Sentiment)
	if sh.NoData() {
		fmt.Fprintf(tw, "sentiment\tno data\n")
	} else {
		fmt.Fprintf(tw, "sentiment\t+%s ~%s -%s\n",
			sentiment.PercentOneDecimal(sh.Positive), sentiment.PercentOneDecimal(sh.Neutral), sentiment.PercentOneDecimal(sh.Negative))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(p.w, "\n%s\n", p.bold("Series: "+field.Label()))
	switch proj := series.Project(points, field); {
	case seriesErr != nil:
		fmt.Fprintf(p.w, "unavailable: %v\n", seriesErr)
	case proj.Empty():
		fmt.Fprintln(p.w, "no data")
	default:
		tw := p.table()
		for _, s := range proj.Samples {
			v := "-"
			if s.Valid {
				v = strconv.FormatFloat(s.Value, 'f', 3, 64)
			}
			fmt.Fprintf(tw, "%s\t%s\n", s.TS.Local().Format("2006-01-02 15:04"), v)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
		fmt.Fprintf(p.w, "%d points, %d gaps\n", len(proj.Samples), proj.Gaps())
	}

	if len(detail.ExampleItems) > 0 {
		fmt.Fprintf(p.w, "\n%s\n", p.bold("Examples"))
		for _, s := range detail.ExampleItems {
			fmt.Fprintf(p.w, "  %d  %s\n", s.ID, truncate(s.Title, 80))
		}
	}
	return nil
}

func runStory(ctx context.Context, idArg string, maxRows int) error {
	id, err := strconv.ParseInt(idArg, 10, 64)
	if err != nil {
		return fmt.Errorf("story id %q: %w", idArg, err)
	}
	ctx, cancel, _, api, err := setup(ctx)
	if err != nil {
		return err
	}
	defer cancel()

	story, err := api.Story(ctx, id)
	if client.IsNotFound(err) {
		return fmt.Errorf("story %d not found", id)
	}
	if err != nil {
		return err
	}
	thread, commentsErr := api.Comments(ctx, id)

	p := newPrinter()
	if jsonOutput {
		return p.json(struct {
			Story    model.Story     `json:"story"`
			Comments []model.Comment `json:"comments"`
		}{story, thread})
	}

	now := time.Now()
	fmt.Fprintln(p.w, p.bold(story.Title))
	if story.URL != "" {
		fmt.Fprintln(p.w, story.URL)
	}
	fmt.Fprintf(p.w, "%d points · %s · %s · %d comments · sentiment %s\n\n",
		story.Score, story.By, humanize.RelTime(story.Posted(), now, "ago", "from now"),
		story.Descendants, sentimentSummary(story.SentimentOrZero()))

	if commentsErr != nil {
		return fmt.Errorf("comments: %w", commentsErr)
	}
	forest := comments.Build(thread)
	if forest.Len() == 0 {
		fmt.Fprintln(p.w, "No comments.")
		return nil
	}

	san := sanitize.HTML{}
	shown := 0
	forest.Walk(func(r comments.Row) bool {
		if maxRows > 0 && shown >= maxRows {
			return false
		}
		shown++
		pad := strings.Repeat(" ", r.Indent)
		by := r.By
		if by == "" {
			by = "[deleted]"
		}
		fmt.Fprintf(p.w, "%s%s %s %s\n", pad, p.paint(r.Color(), "▌"), p.bold(by),
			humanize.RelTime(time.Unix(r.Time, 0), now, "ago", "from now"))
		for _, line := range strings.Split(san.Text(r.Text), "\n") {
			fmt.Fprintf(p.w, "%s  %s\n", pad, line)
		}
		return true
	})
	if shown < forest.Len() {
		fmt.Fprintf(p.w, "\n… %d more comments\n", forest.Len()-shown)
	}
	return nil
}

func runTail(ctx context.Context, name, transport string, count, top int) error {
	ctx, cancel, cfg, api, err := setup(ctx)
	if err != nil {
		return err
	}
	defer cancel()

	if transport == "" {
		transport = cfg.Stream.Transport
	}
	path := cfg.Stream.TrendingPath
	if name == stream.Metrics {
		path = cfg.Stream.MetricsPath
	} else if name != stream.Trending {
		return fmt.Errorf("unknown stream %q: want %s or %s", name, stream.Trending, stream.Metrics)
	}

	p := newPrinter()
	sub, err := stream.New(name, stream.JoinURL(cfg.API.URL, path), stream.Options{
		Transport:    stream.Transport(transport),
		ReconnectMin: cfg.Stream.ReconnectMin,
		ReconnectMax: cfg.Stream.ReconnectMax,
		IdleTimeout:  cfg.Stream.IdleTimeout,
		OnState: func(st stream.State) {
			if st.Connected {
				fmt.Fprintf(os.Stderr, "connected to %s (attempt %d)\n", name, st.Attempt)
			} else {
				fmt.Fprintf(os.Stderr, "disconnected from %s: %v\n", name, st.Err)
			}
		},
	})
	if err != nil {
		return err
	}

	if name == stream.Metrics {
		return tail(ctx, p, sub, model.DecodeMetricNode,
			func(ctx context.Context) ([]model.MetricNode, error) { return api.TopMetrics(ctx, cfg.UI.MetricsLimit) },
			func(m model.MetricNode) string {
				return fmt.Sprintf("%s  %.1f%%  %s", m.Label, m.PresencePct, heatLabel(p, m.Heat))
			}, count, top)
	}
	return tail(ctx, p, sub, model.DecodeStory,
		func(ctx context.Context) ([]model.Story, error) {
			return api.TrendingStories(ctx, cfg.UI.TrendingLimit)
		},
		func(s model.Story) string { return fmt.Sprintf("%d pts  %s", s.Score, truncate(s.Title, 60)) },
		count, top)
}

type snapshot[T any] struct {
	items []T
	err   error
}

// tail runs the same snapshot-plus-stream merge as the dashboard. This
// goroutine owns the reconciler; the subscription and the snapshot fetch
// hand their results over channels.
func tail[T reconcile.Keyed](
	ctx context.Context,
	p printer,
	sub *stream.Subscription,
	decode func([]byte) (T, error),
	fetch func(context.Context) ([]T, error),
	describe func(T) string,
	count, top int,
) error {
	r := reconcile.New(decode)
	mark := r.Mark()

	ctx, stop := context.WithCancel(ctx)
	defer stop()

	payloads := make(chan []byte, 256)
	go func() {
		_ = sub.Run(ctx, func(b []byte) {
			select {
			case payloads <- bytes.Clone(b):
			case <-ctx.Done():
			}
		})
	}()
	snaps := make(chan snapshot[T], 1)
	go func() {
		items, err := fetch(ctx)
		snaps <- snapshot[T]{items, err}
	}()

	seen := 0
	for {
		select {
		case <-ctx.Done():
			return printCollection(p, r, describe, top)

		case s := <-snaps:
			if s.err != nil {
				fmt.Fprintf(os.Stderr, "snapshot failed: %v\n", s.err)
				continue
			}
			r.Install(s.items, mark)
			fmt.Fprintf(p.w, "%s snapshot  %d items\n", time.Now().Format("15:04:05"), len(s.items))

		case b := <-payloads:
			out := r.Ingest(b)
			line := fmt.Sprintf("%s %-9s", time.Now().Format("15:04:05"), out)
			if it, err := decode(b); err == nil {
				line += "  " + it.Key() + "  " + describe(it)
			} else {
				line += "  " + truncate(string(b), 60)
			}
			fmt.Fprintln(p.w, line)
			seen++
			if count > 0 && seen >= count {
				return printCollection(p, r, describe, top)
			}
		}
	}
}

func printCollection[T reconcile.Keyed](p printer, r *reconcile.Reconciler[T], describe func(T) string, top int) error {
	st := r.Stats()
	fmt.Fprintf(p.w, "\n%d items · %d replaced · %d prepended · %d dropped\n",
		r.Len(), st.Replaced, st.Prepended, st.Dropped)
	items := r.Snapshot()
	if top > 0 && len(items) > top {
		items = items[:top]
	}
	for i, it := range items {
		fmt.Fprintf(p.w, "%3d. %s\n", i+1, describe(it))
	}
	return nil
}

type eventsOpts struct {
	tail    int
	kind    string
	level   string
	session string
	since   time.Duration
	path    string
}

func runEvents(o eventsOpts) error {
	path := o.path
	if path == "" {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		path = cfg.EventsPath()
	}
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("%w (run divya first to generate events)", err)
	}
	defer f.Close()

	q := otel.Query{Prefix: o.kind, Session: o.session, MinLvl: otel.Level(o.level)}
	if o.since > 0 {
		q.Since = time.Now().Add(-o.since)
	}

	var matched []otel.Event
	skipped, err := otel.ReadEvents(f, q, func(e otel.Event) bool {
		matched = append(matched, e)
		if o.tail > 0 && len(matched) > 2*o.tail {
			matched = slices.Clone(matched[len(matched)-o.tail:])
		}
		return true
	})
	if err != nil {
		return err
	}
	if o.tail > 0 && len(matched) > o.tail {
		matched = matched[len(matched)-o.tail:]
	}

	p := newPrinter()
	if jsonOutput {
		return p.json(matched)
	}
	for _, e := range matched {
		line := e.Summary()
		switch e.Level {
		case otel.LevelError:
			line = p.paint(classify.LabelColor(model.LabelNegative), line)
		case otel.LevelWarn:
			line = p.paint("#f59e0b", line)
		}
		fmt.Fprintln(p.w, line)
	}
	if skipped > 0 {
		fmt.Fprintf(os.Stderr, "%d malformed lines skipped\n", skipped)
	}
	return nil
}

func openJournal(path string) (*journal.Journal, error) {
	if path == "" {
		cfg, err := loadConfig()
		if err != nil {
			return nil, err
		}
		path = cfg.Journal.Path
	}
	if path == "" {
		return nil, errors.New("no journal configured: pass --file or set journal.path / DIVYA_JOURNAL_PATH")
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("journal %s: %w", path, err)
	}
	return journal.Open(path)
}

func runJournalStats(ctx context.Context, path string) error {
	j, err := openJournal(path)
	if err != nil {
		return err
	}
	defer j.Close()

	stats, err := j.Stats(ctx)
	if err != nil {
		return err
	}
	p := newPrinter()
	if jsonOutput {
		return p.json(stats)
	}
	if len(stats) == 0 {
		fmt.Fprintln(p.w, "Journal is empty.")
		return nil
	}
	tw := p.table()
	fmt.Fprintln(tw, "SESSION\tSTREAM\tKIND\tRECORDS\tBYTES\tFIRST\tLAST")
	for _, s := range stats {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			s.Session[:min(8, len(s.Session))], s.Stream, s.Kind, humanize.Comma(int64(s.Count)),
			humanize.Bytes(uint64(s.Bytes)), s.First().Format(time.DateTime), humanize.Time(s.Last()))
	}
	return tw.Flush()
}

func runJournalReplay(ctx context.Context, path, session, name string, top int) error {
	j, err := openJournal(path)
	if err != nil {
		return err
	}
	defer j.Close()

	records, err := j.Records(ctx, session, name)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return fmt.Errorf("no %s records in session %q", name, session)
	}

	p := newPrinter()
	switch name {
	case stream.Trending:
		r, err := journal.Replay(records, model.DecodeStory)
		if err != nil {
			return err
		}
		if jsonOutput {
			return p.json(r.Snapshot())
		}
		return printCollection(p, r, func(s model.Story) string {
			return fmt.Sprintf("%d  %d pts  %s", s.ID, s.Score, truncate(s.Title, 60))
		}, top)
	case stream.Metrics:
		r, err := journal.Replay(records, model.DecodeMetricNode)
		if err != nil {
			return err
		}
		if jsonOutput {
			return p.json(r.Snapshot())
		}
		return printCollection(p, r, func(m model.MetricNode) string {
			return fmt.Sprintf("%s  %.1f%%  %s", m.Label, m.PresencePct, heatLabel(p, m.Heat))
		}, top)
	}
	return fmt.Errorf("unknown stream %q", name)
}

func runJournalPrune(ctx context.Context, path string, olderThan time.Duration) error {
	j, err := openJournal(path)
	if err != nil {
		return err
	}
	defer j.Close()

	cutoff := time.Now().Add(-olderThan)
	n, err := j.Prune(ctx, cutoff)
	if err != nil {
		return err
	}
	fmt.Printf("pruned %s records older than %s\n", humanize.Comma(n), humanize.Time(cutoff))
	return nil
}

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/x/term"
	"github.com/spf13/cobra"

	"github.com/abelbrown/divyadrishti/internal/client"
	"github.com/abelbrown/divyadrishti/internal/config"
	"github.com/abelbrown/divyadrishti/internal/coord"
	"github.com/abelbrown/divyadrishti/internal/journal"
	"github.com/abelbrown/divyadrishti/internal/logging"
	"github.com/abelbrown/divyadrishti/internal/metrics"
	"github.com/abelbrown/divyadrishti/internal/otel"
	"github.com/abelbrown/divyadrishti/internal/ranking"
	"github.com/abelbrown/divyadrishti/internal/sanitize"
	"github.com/abelbrown/divyadrishti/internal/stream"
	"github.com/abelbrown/divyadrishti/internal/ui"
)

// overrides are command-line settings applied on top of the config file and
// environment.
type overrides struct {
	apiURL      string
	transport   string
	lens        string
	window      string
	journal     string
	metricsAddr string
	logLevel    string
}

func (o overrides) apply(cmd *cobra.Command, cfg *config.Config) error {
	f := cmd.Flags()
	if f.Changed("api") {
		cfg.API.URL = o.apiURL
	}
	if f.Changed("transport") {
		cfg.Stream.Transport = o.transport
	}
	if f.Changed("lens") {
		cfg.UI.Lens = o.lens
	}
	if f.Changed("window") {
		cfg.UI.Window = o.window
	}
	if f.Changed("journal") {
		cfg.Journal.Path = o.journal
	}
	if f.Changed("metrics-addr") {
		cfg.Metrics.Addr = o.metricsAddr
	}
	return cfg.Validate()
}

func loadConfig() (*config.Config, error) {
	path := cfgFile
	if path == "" {
		path = config.DefaultPath()
	}
	return config.Load(path)
}

func run(cmd *cobra.Command, o overrides) error {
	if !term.IsTerminal(os.Stdout.Fd()) {
		return errors.New("divya needs an interactive terminal; use divyactl for scripted access")
	}

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := o.apply(cmd, cfg); err != nil {
		return err
	}
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}

	logPath, err := logging.InitFile(cfg.LogDir(), logging.ParseLevel(o.logLevel))
	if err != nil {
		return err
	}
	defer logging.Close()

	events, err := otel.Open(cfg.EventsPath())
	if err != nil {
		logging.Warn("event log disabled", "err", err)
		events = otel.Discard()
	}
	defer events.Close()
	ring := otel.NewRing(otel.DefaultRingSize)
	events.Attach(ring)

	logging.Info("divya starting", "api", cfg.API.URL, "transport", cfg.Stream.Transport, "log", logPath)
	events.Emit(otel.Event{Level: otel.LevelInfo, Kind: otel.KindStartup, Comp: "main", Endpoint: cfg.API.URL, Msg: cfg.Stream.Transport})

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	m := metrics.New()
	api, err := client.New(cfg.API.URL, client.Options{
		Timeout:    cfg.API.Timeout,
		Rate:       cfg.API.Rate,
		Burst:      cfg.API.Burst,
		Retries:    cfg.API.Retries,
		BackoffMin: cfg.API.BackoffMin,
		BackoffMax: cfg.API.BackoffMax,
		Events:     events,
		Observer:   m,
	})
	if err != nil {
		return err
	}

	var jr *journal.Journal
	if cfg.Journal.Path != "" {
		if jr, err = journal.Open(cfg.Journal.Path); err != nil {
			return err
		}
		defer jr.Close()
		logging.Info("journal enabled", "path", cfg.Journal.Path, "session", jr.Session())
	}

	// The stream status callbacks reach the coordinator and the program,
	// both of which need the streams first. They are assigned before any
	// stream goroutine starts.
	var (
		co      *coord.Coordinator
		program *tea.Program
	)
	subs, err := newStreams(cfg, events, func(name string) func(stream.State) {
		return func(st stream.State) { co.StreamStatus(name, program)(st) }
	})
	if err != nil {
		return err
	}

	co = coord.New(coord.Options{
		API:           api,
		Streams:       subs,
		Journal:       jr,
		Metrics:       m,
		MetricsAddr:   cfg.Metrics.Addr,
		Events:        events,
		TrendingLimit: cfg.UI.TrendingLimit,
		MetricsLimit:  cfg.UI.MetricsLimit,
	})

	app := ui.NewApp(ui.Deps{
		LoadTrending: co.LoadTrending,
		LoadMetrics:  co.LoadMetrics,
		LoadRanking:  co.LoadRanking,
		LoadMetric:   co.LoadMetric,
		LoadStory:    co.LoadStory,
		Journal:      co,
		Events:       events,
		Ring:         ring,
		Metrics:      m,
		Sanitizer:    sanitize.HTML{},
		Ranking:      ranking.Key{Lens: cfg.Lens(), Window: cfg.Window()},
	})

	program = tea.NewProgram(app, tea.WithAltScreen(), tea.WithContext(ctx))
	co.Start(ctx, program)

	_, runErr := program.Run()
	cancel()
	co.Wait()

	events.Emit(otel.Event{Level: otel.LevelInfo, Kind: otel.KindShutdown, Comp: "main", Count: int(events.Dropped())})
	logging.Info("divya stopped")

	if runErr != nil && !errors.Is(runErr, tea.ErrProgramKilled) && !errors.Is(runErr, context.Canceled) {
		return fmt.Errorf("run dashboard: %w", runErr)
	}
	return nil
}

// newStreams builds the trending and metrics subscriptions.
func newStreams(cfg *config.Config, events *otel.Logger, onState func(name string) func(stream.State)) ([]coord.Subscriber, error) {
	paths := map[string]string{
		stream.Trending: cfg.Stream.TrendingPath,
		stream.Metrics:  cfg.Stream.MetricsPath,
	}
	var subs []coord.Subscriber
	for _, name := range []string{stream.Trending, stream.Metrics} {
		sub, err := stream.New(name, stream.JoinURL(cfg.API.URL, paths[name]), stream.Options{
			Transport:    stream.Transport(cfg.Stream.Transport),
			ReconnectMin: cfg.Stream.ReconnectMin,
			ReconnectMax: cfg.Stream.ReconnectMax,
			IdleTimeout:  cfg.Stream.IdleTimeout,
			Events:       events,
			OnState:      onState(name),
		})
		if err != nil {
			return nil, fmt.Errorf("stream %s: %w", name, err)
		}
		subs = append(subs, sub)
	}
	return subs, nil
}

// Command divyactl is the scriptable companion to divya.
//
// Usage:
//
//	divyactl trending               Trending stories
//	divyactl rankings               Metrics ranked by a lens over a window
//	divyactl metric <id>            Metric rollup, series and examples
//	divyactl story <id>             Story with its comment tree
//	divyactl tail [stream]          Reconcile a live stream and print each update
//	divyactl events                 JSONL event log viewer
//	divyactl journal stats|replay|prune
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/abelbrown/divyadrishti/internal/logging"
	"github.com/abelbrown/divyadrishti/internal/series"
	"github.com/abelbrown/divyadrishti/internal/stream"
)

var (
	cfgFile    string
	apiURL     string
	jsonOutput bool
	logLevel   string
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "divyactl",
		Short:         "Query the divyadrishti API, live streams, event log and journal",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logging.InitWriter(os.Stderr, logging.ParseLevel(logLevel))
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default: ~/.divyadrishti/config.yaml)")
	pf.StringVar(&apiURL, "api", "", "API base URL (overrides config)")
	pf.BoolVar(&jsonOutput, "json", false, "output as JSON")
	pf.StringVar(&logLevel, "log-level", "warn", "diagnostic log level on stderr")

	root.AddCommand(trendingCmd())
	root.AddCommand(rankingsCmd())
	root.AddCommand(metricCmd())
	root.AddCommand(storyCmd())
	root.AddCommand(tailCmd())
	root.AddCommand(eventsCmd())
	root.AddCommand(journalCmd())
	return root
}

func trendingCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "trending",
		Short: "Show trending stories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrending(cmd.Context(), limit)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "max stories (default: from config)")
	return cmd
}

func rankingsCmd() *cobra.Command {
	var lens, window string

	cmd := &cobra.Command{
		Use:   "rankings",
		Short: "Rank metrics by a lens over a time window",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRankings(cmd.Context(), lens, window)
		},
	}

	cmd.Flags().StringVar(&lens, "lens", "", "top, controversial, consensus_pos, consensus_neg, heated, rising")
	cmd.Flags().StringVar(&window, "window", "", "hour, today, week, month")
	return cmd
}

func metricCmd() *cobra.Command {
	var window, field string

	cmd := &cobra.Command{
		Use:   "metric <id>",
		Short: "Show a metric's rollup, series and example stories",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMetric(cmd.Context(), args[0], window, field)
		},
	}

	cmd.Flags().StringVar(&window, "window", "", "hour, today, week, month")
	cmd.Flags().StringVar(&field, "field", string(series.FieldPresence), "series field: presence_pct, valence, heat, momentum")
	return cmd
}

func storyCmd() *cobra.Command {
	var maxRows int

	cmd := &cobra.Command{
		Use:   "story <id>",
		Short: "Show a story and its comment tree",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStory(cmd.Context(), args[0], maxRows)
		},
	}

	cmd.Flags().IntVar(&maxRows, "max", 0, "stop after this many comments (0: all)")
	return cmd
}

func tailCmd() *cobra.Command {
	var (
		count     int
		transport string
		top       int
	)

	cmd := &cobra.Command{
		Use:       "tail [trending|metrics]",
		Short:     "Install a snapshot, then reconcile the live stream and print each update",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{stream.Trending, stream.Metrics},
		RunE: func(cmd *cobra.Command, args []string) error {
			name := stream.Trending
			if len(args) == 1 {
				name = args[0]
			}
			return runTail(cmd.Context(), name, transport, count, top)
		},
	}

	cmd.Flags().IntVar(&count, "count", 0, "exit after this many payloads (0: until interrupted)")
	cmd.Flags().StringVar(&transport, "transport", "", "sse or ws (default: from config)")
	cmd.Flags().IntVar(&top, "top", 10, "items to print from the reconciled collection on exit")
	return cmd
}

func eventsCmd() *cobra.Command {
	var (
		tail    int
		kind    string
		level   string
		session string
		since   time.Duration
		path    string
	)

	cmd := &cobra.Command{
		Use:   "events",
		Short: "Show the JSONL event log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEvents(eventsOpts{tail: tail, kind: kind, level: level, session: session, since: since, path: path})
		},
	}

	f := cmd.Flags()
	f.IntVar(&tail, "tail", 50, "number of most recent matching events to show (0: all)")
	f.StringVar(&kind, "kind", "", "kind prefix, e.g. stream or ranking.")
	f.StringVar(&level, "level", "", "minimum level: debug, info, warn, error")
	f.StringVar(&session, "session", "", "session id")
	f.DurationVar(&since, "since", 0, "only events newer than this, e.g. 1h")
	f.StringVar(&path, "file", "", "event log path (default: from config)")
	return cmd
}

func journalCmd() *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Inspect, replay and prune a recorded stream journal",
	}
	cmd.PersistentFlags().StringVar(&path, "file", "", "journal path (default: journal.path from config)")

	stats := &cobra.Command{
		Use:   "stats",
		Short: "Summarize recorded sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runJournalStats(cmd.Context(), path)
		},
	}

	var session, name string
	var top int
	replay := &cobra.Command{
		Use:   "replay",
		Short: "Rebuild the reconciled collection from a recorded session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runJournalReplay(cmd.Context(), path, session, name, top)
		},
	}
	replay.Flags().StringVar(&session, "session", "", "session id (default: most recent)")
	replay.Flags().StringVar(&name, "stream", stream.Trending, "trending or metrics")
	replay.Flags().IntVar(&top, "top", 20, "items to print")

	var olderThan time.Duration
	prune := &cobra.Command{
		Use:   "prune",
		Short: "Delete records older than a duration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runJournalPrune(cmd.Context(), path, olderThan)
		},
	}
	prune.Flags().DurationVar(&olderThan, "older-than", 7*24*time.Hour, "age cutoff")

	cmd.AddCommand(stats, replay, prune)
	return cmd
}

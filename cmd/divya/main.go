// Command divya is the live public-intelligence dashboard.
//
// It loads the initial trending stories, top metrics and rankings from the
// divyadrishti API, then keeps them current from the live streams until the
// user quits.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var o overrides

	root := &cobra.Command{
		Use:          "divya",
		Short:        "Live dashboard of trending stories, discourse metrics and sentiment",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, o)
		},
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ~/.divyadrishti/config.yaml)")
	f := root.Flags()
	f.StringVar(&o.apiURL, "api", "", "API base URL")
	f.StringVar(&o.transport, "transport", "", "stream transport: sse or ws")
	f.StringVar(&o.lens, "lens", "", "initial ranking lens")
	f.StringVar(&o.window, "window", "", "initial time window")
	f.StringVar(&o.journal, "journal", "", "record snapshots and stream payloads to this SQLite file")
	f.StringVar(&o.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	f.StringVar(&o.logLevel, "log-level", "info", "diagnostic log level: debug, info, warn, error")
	return root
}

package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/albertocavalcante/sitebake/cmd/sitebake/internal/incremental"
	"github.com/albertocavalcante/sitebake/cmd/sitebake/internal/metrics"
	"github.com/albertocavalcante/sitebake/cmd/sitebake/internal/watch"
	"github.com/albertocavalcante/sitebake/internal/log"
)

var watchFlags struct {
	debounce    int
	metricsAddr string
	workers     int
	verbose     bool
	json        bool
	noColor     bool
}

var watchCmd = &cobra.Command{
	Use:   "watch [path]",
	Short: "Rebuild the site whenever sources change",
	Long: `Runs a build, then watches src/ and rebuilds incrementally each time
files are added, changed or removed.

Changes arriving within the debounce window are rebuilt together. A failed
rebuild is reported and the watcher keeps going; the next change retries
against the last successful state.

Example output:

  $ sitebake watch

  sitebake: watching 42 files in /path/to/site/src
  sitebake: ready

  [14:32:15] ~ rebuilding src/css/site.css...
  [14:32:15] ✓ rebuilt 2 files (1 written, 1 unchanged, 0 removed) in 12ms

Press Ctrl+C to stop watching.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().IntVar(&watchFlags.debounce, "debounce", 0,
		"Debounce window in milliseconds (0 = config default)")
	watchCmd.Flags().StringVar(&watchFlags.metricsAddr, "metrics-addr", "",
		"Serve Prometheus metrics on this address (e.g. :9090)")
	watchCmd.Flags().IntVarP(&watchFlags.workers, "workers", "j", 0,
		"Worker pool size (0 = config or one per CPU)")
	watchCmd.Flags().BoolVar(&watchFlags.verbose, "verbose", false,
		"Show file-level changes")
	watchCmd.Flags().BoolVar(&watchFlags.json, "json", false,
		"Stream JSON events (for tooling integration)")
	watchCmd.Flags().BoolVar(&watchFlags.noColor, "no-color", false,
		"Disable colored output")

	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	e, err := loadEnv(cmd, args)
	if err != nil {
		return err
	}

	collector := metrics.NewCollector()
	r, err := e.rebuilder(watchFlags.workers, incremental.WithObserver(collector))
	if err != nil {
		return err
	}

	// Setup signal handling for graceful shutdown
	// Include SIGHUP to handle terminal hangup
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
	defer cancel()

	addr := watchFlags.metricsAddr
	if addr == "" {
		addr = e.config.Watch.MetricsAddr
	}
	if addr != "" {
		go func() {
			if err := collector.Serve(ctx, addr); err != nil {
				log.Error("metrics server stopped", "addr", addr, "error", err)
			}
		}()
		log.Info("serving metrics", "addr", addr)
	}

	debounce := watchFlags.debounce
	if debounce <= 0 {
		debounce = e.config.Watch.DebounceMs
	}

	w, err := watch.New(watch.Config{
		Rebuilder: r,
		Debounce:  time.Duration(debounce) * time.Millisecond,
		Verbose:   watchFlags.verbose,
		NoColor:   watchFlags.noColor,
		JSON:      watchFlags.json,
		Output:    cmd.OutOrStdout(),
	})
	if err != nil {
		return err
	}
	defer func() { _ = w.Close() }()

	// A failed initial build leaves the previous state in place; the first
	// batch runs a cold pass against it.
	if report, err := r.Cold(context.WithoutCancel(ctx)); err != nil {
		w.Logger().Error(err)
		w.Resync()
	} else if !report.NoOp {
		w.Logger().Rebuilt(report)
	}

	return w.Run(ctx)
}

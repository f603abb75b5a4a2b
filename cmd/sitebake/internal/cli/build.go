package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var buildFlags struct {
	workers int
	json    bool
}

var buildCmd = &cobra.Command{
	Use:   "build [path]",
	Short: "Rebuild the site incrementally",
	Long: `Compares src/ against the dependency graph saved by the previous build
and rebuilds only what changed, plus everything that depends on it.

With no changes this is a no-op that does not touch any output. The first
build, or a build after 'sitebake clean' or an upgrade, rebuilds everything.

The --json flag prints the rebuild report as JSON.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runBuild,
}

func init() {
	buildCmd.Flags().IntVarP(&buildFlags.workers, "workers", "j", 0,
		"Worker pool size (0 = config or one per CPU)")
	buildCmd.Flags().BoolVar(&buildFlags.json, "json", false,
		"Output the report as JSON")

	rootCmd.AddCommand(buildCmd)
}

func runBuild(cmd *cobra.Command, args []string) error {
	e, err := loadEnv(cmd, args)
	if err != nil {
		return err
	}
	r, err := e.rebuilder(buildFlags.workers)
	if err != nil {
		return err
	}

	report, err := r.Cold(context.Background())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if buildFlags.json {
		return outputJSON(out, report)
	}

	if report.NoOp {
		_, _ = fmt.Fprintln(out, "Site is up to date")
		return nil
	}
	cs := report.Changes
	_, _ = fmt.Fprintf(out, "Changes: %d added, %d changed, %d deleted\n",
		len(cs.Added), len(cs.Changed), len(cs.Deleted))
	_, _ = fmt.Fprintf(out, "Rebuilt %d files: %d outputs written, %d unchanged, %d removed (%s)\n",
		len(report.Rebuilt), report.Produced, report.Reused, len(report.DeletedOutputs),
		report.Duration.Round(time.Millisecond))
	return nil
}

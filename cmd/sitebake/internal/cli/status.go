package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/albertocavalcante/sitebake/cmd/sitebake/internal/incremental"
)

var statusFlags struct {
	verbose bool
	json    bool
}

var statusCmd = &cobra.Command{
	Use:   "status [path]",
	Short: "Show which sources changed since the last build",
	Long: `Compares the source tree against the graph saved by the last
'sitebake build' without scanning or building anything.

The --verbose flag lists individual files (added, changed, deleted).
The --json flag outputs the result as JSON for scripting.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().BoolVar(&statusFlags.verbose, "verbose", false,
		"Show individual file changes")
	statusCmd.Flags().BoolVar(&statusFlags.json, "json", false,
		"Output as JSON")

	rootCmd.AddCommand(statusCmd)
}

// StatusOutput is the JSON output format for sitebake status.
type StatusOutput struct {
	Stale        bool     `json:"stale"`
	AffectedDirs []string `json:"affected_dirs"`
	Added        []string `json:"added,omitempty"`
	Changed      []string `json:"changed,omitempty"`
	Deleted      []string `json:"deleted,omitempty"`
	Error        string   `json:"error,omitempty"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	e, err := loadEnv(cmd, args)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	store := incremental.NewGraphStore(e.project)
	if !store.Exists() {
		if statusFlags.json {
			return outputJSON(out, StatusOutput{
				Stale:        true,
				AffectedDirs: []string{e.project.SourceDir},
				Error:        "no state found",
			})
		}
		_, _ = fmt.Fprintln(out, "No state found. Run 'sitebake build' to create it.")
		return nil
	}

	graphs, err := store.Load()
	if err != nil {
		return fmt.Errorf("failed to load state: %w", err)
	}
	snap, err := incremental.Walk(context.Background(), e.project)
	if err != nil {
		return fmt.Errorf("failed to walk sources: %w", err)
	}
	cs := incremental.Diff(graphs.Dependencies, snap)

	if statusFlags.json {
		return outputJSON(out, StatusOutput{
			Stale:        !cs.IsEmpty(),
			AffectedDirs: cs.AffectedDirs(),
			Added:        cs.Added,
			Changed:      cs.Changed,
			Deleted:      cs.Deleted,
		})
	}

	if cs.IsEmpty() {
		_, _ = fmt.Fprintln(out, "Site is up to date")
		return nil
	}

	dirs := cs.AffectedDirs()
	_, _ = fmt.Fprintf(out, "Changed directories (%d):\n", len(dirs))
	for _, dir := range dirs {
		_, _ = fmt.Fprintf(out, "  %s\n", dir)
	}

	if statusFlags.verbose {
		for _, group := range []struct {
			title  string
			marker string
			files  []string
		}{
			{"Added", "+", cs.Added},
			{"Changed", "~", cs.Changed},
			{"Deleted", "-", cs.Deleted},
		} {
			if len(group.files) == 0 {
				continue
			}
			_, _ = fmt.Fprintf(out, "\n%s files (%d):\n", group.title, len(group.files))
			for _, f := range group.files {
				_, _ = fmt.Fprintf(out, "  %s %s\n", group.marker, f)
			}
		}
	}

	_, _ = fmt.Fprintln(out, "\nRun 'sitebake build' to rebuild")
	return nil
}

package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/albertocavalcante/sitebake/cmd/sitebake/internal/incremental"
)

var cleanCmd = &cobra.Command{
	Use:   "clean [path]",
	Short: "Remove build state and outputs",
	Long: `Removes the state directory (out/ by default), which holds the saved
graphs and the published site. The next build rebuilds everything.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runClean,
}

func init() {
	rootCmd.AddCommand(cleanCmd)
}

func runClean(cmd *cobra.Command, args []string) error {
	e, err := loadEnv(cmd, args)
	if err != nil {
		return err
	}
	if err := incremental.NewGraphStore(e.project).Clear(); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", e.project.Abs(e.project.StateDir))
	return nil
}

package cli

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/albertocavalcante/sitebake/pkg/config"
)

var initFlags struct {
	check  bool
	dryRun bool
}

var initCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Initialize a sitebake project",
	Long: `Initializes a sitebake project in the given directory (default: current).

This command will:
1. Create sitebake.toml with the default settings
2. Create src/index.html if the source directory is empty
3. Add the state directory to .gitignore

Existing files are never overwritten.

Use --check to verify configuration without making changes (useful for CI).
Use --dry-run to preview changes without applying them.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initFlags.check, "check", false,
		"Check if project is properly configured (exit 1 if not)")
	initCmd.Flags().BoolVar(&initFlags.dryRun, "dry-run", false,
		"Show what would change without applying")

	rootCmd.AddCommand(initCmd)
}

// errNotConfigured is returned by init --check.
var errNotConfigured = errors.New("project is not configured")

const starterPage = `<!DOCTYPE html>
<html>
<head>
  <meta charset="utf-8">
  <title>Hello</title>
</head>
<body>
  <h1>Hello from sitebake</h1>
</body>
</html>
`

// initPlan lists the files init would write.
type initPlan struct {
	configFile    string
	configContent string
	configExists  bool

	indexFile   string
	indexExists bool

	gitignoreFile  string
	gitignoreEntry string
	gitignoreOK    bool
}

func runInit(cmd *cobra.Command, args []string) error {
	path := "."
	if len(args) > 0 {
		path = args[0]
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}

	plan, err := planInit(absPath)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if initFlags.check {
		return runInitCheck(out, cmd.ErrOrStderr(), plan)
	}
	if initFlags.dryRun {
		return runInitDryRun(out, plan)
	}
	return runInitApply(out, plan)
}

func planInit(root string) (*initPlan, error) {
	cfg := config.NewConfig()
	var buf bytes.Buffer
	if err := cfg.Encode(&buf); err != nil {
		return nil, fmt.Errorf("failed to encode config: %w", err)
	}

	plan := &initPlan{
		configFile:     filepath.Join(root, config.ConfigFileName),
		configContent:  buf.String(),
		indexFile:      filepath.Join(root, filepath.FromSlash(cfg.Project.Source), "index.html"),
		gitignoreFile:  filepath.Join(root, ".gitignore"),
		gitignoreEntry: cfg.Project.State + "/",
	}
	plan.configExists = fileExists(plan.configFile)
	plan.indexExists = fileExists(plan.indexFile) || hasSources(filepath.Dir(plan.indexFile))
	plan.gitignoreOK = gitignoreHas(plan.gitignoreFile, plan.gitignoreEntry)
	return plan, nil
}

func runInitCheck(out, errOut io.Writer, plan *initPlan) error {
	var issues []string
	if !plan.configExists {
		issues = append(issues, fmt.Sprintf("%s not found at %s", config.ConfigFileName, plan.configFile))
	} else if _, err := config.ParseFile(plan.configFile); err != nil {
		issues = append(issues, fmt.Sprintf("%s is invalid: %v", config.ConfigFileName, err))
	}
	if !plan.indexExists {
		issues = append(issues, fmt.Sprintf("source directory is empty: %s", filepath.Dir(plan.indexFile)))
	}
	if !plan.gitignoreOK {
		issues = append(issues, fmt.Sprintf(".gitignore does not list %s", plan.gitignoreEntry))
	}

	if len(issues) > 0 {
		_, _ = fmt.Fprintln(errOut, "Project configuration issues:")
		for _, issue := range issues {
			_, _ = fmt.Fprintf(errOut, "  - %s\n", issue)
		}
		_, _ = fmt.Fprintln(errOut, "\nRun 'sitebake init' to fix")
		return errNotConfigured
	}

	_, _ = fmt.Fprintln(out, "Project is properly configured")
	return nil
}

func runInitDryRun(out io.Writer, plan *initPlan) error {
	if !plan.configExists {
		_, _ = fmt.Fprintf(out, "Would create %s:\n", plan.configFile)
		_, _ = fmt.Fprintln(out, plan.configContent)
	} else {
		_, _ = fmt.Fprintf(out, "%s exists at %s (would not modify)\n", config.ConfigFileName, plan.configFile)
	}

	if !plan.indexExists {
		_, _ = fmt.Fprintf(out, "Would create %s\n", plan.indexFile)
	}
	if !plan.gitignoreOK {
		_, _ = fmt.Fprintf(out, "Would add %s to %s\n", plan.gitignoreEntry, plan.gitignoreFile)
	}
	return nil
}

func runInitApply(out io.Writer, plan *initPlan) error {
	if !plan.configExists {
		if err := os.WriteFile(plan.configFile, []byte(plan.configContent), 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", config.ConfigFileName, err)
		}
		_, _ = fmt.Fprintf(out, "Created %s\n", plan.configFile)
	} else {
		_, _ = fmt.Fprintf(out, "%s already exists (skipping)\n", config.ConfigFileName)
	}

	if !plan.indexExists {
		if err := os.MkdirAll(filepath.Dir(plan.indexFile), 0o755); err != nil {
			return fmt.Errorf("failed to create source directory: %w", err)
		}
		if err := os.WriteFile(plan.indexFile, []byte(starterPage), 0o644); err != nil {
			return fmt.Errorf("failed to write index.html: %w", err)
		}
		_, _ = fmt.Fprintf(out, "Created %s\n", plan.indexFile)
	}

	if !plan.gitignoreOK {
		if err := appendLine(plan.gitignoreFile, plan.gitignoreEntry); err != nil {
			return fmt.Errorf("failed to update .gitignore: %w", err)
		}
		_, _ = fmt.Fprintf(out, "Added %s to %s\n", plan.gitignoreEntry, plan.gitignoreFile)
	}

	_, _ = fmt.Fprintln(out, "\nNext steps:")
	_, _ = fmt.Fprintln(out, "  1. Add pages, stylesheets and assets under src/")
	_, _ = fmt.Fprintln(out, "  2. Run 'sitebake build' or 'sitebake watch'")
	return nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func hasSources(dir string) bool {
	entries, err := os.ReadDir(dir)
	return err == nil && len(entries) > 0
}

func gitignoreHas(path, entry string) bool {
	data, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	bare := strings.TrimSuffix(entry, "/")
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == entry || line == bare || line == "/"+entry || line == "/"+bare {
			return true
		}
	}
	return false
}

func appendLine(path, line string) error {
	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	if len(data) > 0 && !bytes.HasSuffix(data, []byte("\n")) {
		data = append(data, '\n')
	}
	data = append(data, line...)
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o644)
}

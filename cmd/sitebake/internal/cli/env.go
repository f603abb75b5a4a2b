package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/albertocavalcante/sitebake/cmd/sitebake/internal/handlers"
	"github.com/albertocavalcante/sitebake/cmd/sitebake/internal/incremental"
	"github.com/albertocavalcante/sitebake/internal/log"
	"github.com/albertocavalcante/sitebake/pkg/config"
)

// env is the resolved project a command runs against.
type env struct {
	root    string
	config  *config.Config
	project *incremental.Project
}

// loadEnv resolves the optional [path] argument, loads layered config and
// builds the project. A log level from config applies unless -v was given.
func loadEnv(cmd *cobra.Command, args []string) (*env, error) {
	path := "."
	if len(args) > 0 {
		path = args[0]
	}
	root, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve path: %w", err)
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("invalid path %s: %w", path, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("path must be a directory: %s", path)
	}

	log.SetRoot(root)
	cfg := config.LoadFrom(root)
	if cfg.Log.Level != "" && !cmd.Flags().Changed("verbosity") {
		v, err := log.ParseVerbosity(cfg.Log.Level)
		if err != nil {
			return nil, fmt.Errorf("invalid config: %w", err)
		}
		format := cfg.Log.Format
		if cmd.Flags().Changed("log-format") {
			format = globalFlags.logFormat
		}
		log.Init(v, format)
	}
	for _, f := range cfg.Files {
		log.Debug("loaded config", "path", f)
	}

	return &env{root: root, config: cfg, project: projectFromConfig(root, cfg)}, nil
}

// projectFromConfig applies the [project] section to the default layout.
func projectFromConfig(root string, cfg *config.Config) *incremental.Project {
	p := incremental.NewProject(root, Version)
	pc := cfg.Project
	if pc.Source != "" {
		p.SourceDir = filepath.ToSlash(filepath.Clean(pc.Source))
	}
	if pc.Output != "" {
		p.OutputDir = filepath.ToSlash(filepath.Clean(pc.Output))
	}
	if pc.Artifacts != "" {
		p.ArtifactDir = filepath.ToSlash(filepath.Clean(pc.Artifacts))
	}
	if pc.State != "" {
		p.StateDir = filepath.ToSlash(filepath.Clean(pc.State))
	}
	p.Ignore = append(p.Ignore, pc.Ignore...)
	return p
}

// rebuilder creates the default handler registry and a rebuilder over it.
// workers overrides the configured pool size when positive.
func (e *env) rebuilder(workers int, opts ...incremental.Option) (*incremental.Rebuilder, error) {
	reg, err := handlers.NewDefault(e.project, handlers.Options{
		HashExtensions: e.config.Build.HashExtensions,
		RefCacheSize:   e.config.Build.RefCacheSize,
	})
	if err != nil {
		return nil, err
	}

	if workers <= 0 {
		workers = e.config.Build.Workers
	}
	if workers > 0 {
		opts = append(opts, incremental.WithWorkers(workers))
	}
	return incremental.NewRebuilder(e.project, reg, opts...), nil
}

package watch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/albertocavalcante/sitebake/cmd/sitebake/internal/incremental"
	"github.com/albertocavalcante/sitebake/internal/log"
)

// DefaultDebounce is used when Config.Debounce is zero.
const DefaultDebounce = 100 * time.Millisecond

// Config configures the watcher.
type Config struct {
	Rebuilder *incremental.Rebuilder
	Debounce  time.Duration
	Verbose   bool
	NoColor   bool
	JSON      bool
	Output    io.Writer
}

// Watcher watches the source tree and runs a hot rebuild for each
// debounced batch of changes.
type Watcher struct {
	config    Config
	project   *incremental.Project
	rebuilder *incremental.Rebuilder
	fsWatcher *fsnotify.Watcher
	debouncer *Debouncer
	logger    *Logger

	ctx context.Context

	// passMu serializes rebuild passes and guards resync.
	passMu sync.Mutex
	// resync makes the next batch diff the whole tree against the stored
	// graph. It is set after a failed pass, whose changes were not saved.
	resync bool
}

// New creates a watcher. The rebuilder's project decides what is watched.
func New(cfg Config) (*Watcher, error) {
	if cfg.Rebuilder == nil {
		return nil, errors.New("watch: rebuilder is required")
	}
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	return &Watcher{
		config:    cfg,
		project:   cfg.Rebuilder.Project(),
		rebuilder: cfg.Rebuilder,
		fsWatcher: fsWatcher,
		logger: NewLogger(LoggerConfig{
			Writer:  cfg.Output,
			Verbose: cfg.Verbose,
			NoColor: cfg.NoColor,
			JSON:    cfg.JSON,
		}),
		ctx: context.Background(),
	}, nil
}

// Logger returns the console logger.
func (w *Watcher) Logger() *Logger {
	return w.logger
}

// Run watches until ctx is cancelled. It does not run an initial build;
// callers run Rebuilder.Cold first.
func (w *Watcher) Run(ctx context.Context) error {
	// A pass that has started runs to completion even if ctx is cancelled.
	w.ctx = context.WithoutCancel(ctx)

	window := w.config.Debounce
	if window <= 0 {
		window = DefaultDebounce
	}
	w.debouncer = NewDebouncer(window, w.handleChangedPaths)
	defer w.debouncer.Stop()

	srcDir := w.project.Abs(w.project.SourceDir)
	if err := os.MkdirAll(srcDir, 0o755); err != nil {
		return fmt.Errorf("failed to create source directory: %w", err)
	}
	if err := w.addRecursive(srcDir); err != nil {
		return fmt.Errorf("failed to watch sources: %w", err)
	}

	fileCount := 0
	if graphs, err := w.rebuilder.Store().Load(); err == nil {
		fileCount = graphs.Dependencies.Len()
	}
	w.logger.Ready(fileCount, srcDir)

	for {
		select {
		case <-ctx.Done():
			w.logger.Shutdown()
			return nil

		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return nil
			}
			w.handleEvent(event)

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Error(err)
		}
	}
}

// addRecursive adds a directory and its non-ignored subdirectories.
func (w *Watcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsPermission(err) {
				if w.config.Verbose {
					w.logger.Error(fmt.Errorf("permission denied: %s", path))
				}
				return nil
			}
			w.logger.Error(fmt.Errorf("walk error at %s: %w", path, err))
			return nil
		}

		if !d.IsDir() {
			return nil
		}
		if path != root && w.ignored(path) {
			return filepath.SkipDir
		}

		if err := w.fsWatcher.Add(path); err != nil {
			if isWatchLimitError(err) {
				return fmt.Errorf("%w for %s: %v\n"+
					"Increase limit with: sudo sysctl fs.inotify.max_user_watches=524288",
					ErrWatchLimitReached, path, err)
			}
			if w.config.Verbose {
				w.logger.Error(fmt.Errorf("failed to watch %s: %w", path, err))
			}
		}
		return nil
	})
}

// isWatchLimitError checks if an error is due to inotify watch limits.
func isWatchLimitError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "no space left on device") ||
		strings.Contains(errStr, "too many open files")
}

// ignored reports whether an absolute path is outside the sources or
// matches an ignore prefix.
func (w *Watcher) ignored(abs string) bool {
	rel, err := w.project.Rel(abs)
	if err != nil {
		return true
	}
	return !w.project.IsSource(rel) || w.project.Ignored(rel)
}

// handleEvent queues the path behind one filesystem event.
func (w *Watcher) handleEvent(event fsnotify.Event) {
	path := event.Name
	if w.ignored(path) {
		return
	}

	var change ChangeType
	switch {
	case event.Has(fsnotify.Create):
		change = ChangeAdded
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			if err := w.addRecursive(path); err != nil {
				w.logger.Error(fmt.Errorf("failed to watch new directory %s: %w", path, err))
			}
		}
	case event.Has(fsnotify.Write):
		change = ChangeModified
	case event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename):
		change = ChangeDeleted
	default:
		return // chmod
	}

	rel, err := w.project.Rel(path)
	if err != nil {
		return
	}
	w.logger.FileChanged(rel, change)
	w.debouncer.Add(rel)
}

// Resync makes the next batch run a cold pass instead of a hot one. Call it
// after a build outside the watcher failed.
func (w *Watcher) Resync() {
	w.passMu.Lock()
	defer w.passMu.Unlock()
	w.resync = true
}

// handleChangedPaths classifies a batch against the stored graph and runs
// a hot rebuild. Failures are logged and the watcher keeps going; the batch
// after a failure runs a cold pass so files that failed are retried even
// when they did not change again.
func (w *Watcher) handleChangedPaths(paths []string) {
	if len(paths) == 0 {
		return
	}

	w.passMu.Lock()
	defer w.passMu.Unlock()

	if w.resync {
		w.coldPass()
		return
	}

	graphs, err := w.rebuilder.Store().Load()
	if err != nil {
		w.logger.Error(fmt.Errorf("failed to load state: %w", err))
		return
	}

	changes, err := incremental.ClassifyPaths(w.project, graphs.Dependencies, paths)
	if err != nil {
		w.logger.Error(err)
		return
	}
	if changes.IsEmpty() {
		log.Component("watch").Debug("batch matches stored graph", "paths", len(paths))
		return
	}

	w.logger.Rebuilding(changes)
	report, err := w.rebuilder.Hot(w.ctx, changes, graphs)
	if err != nil {
		w.resync = true
		w.logger.Error(err)
		return
	}
	w.logger.Rebuilt(report)
}

// coldPass diffs the source tree against the last saved graph, which
// covers every change since the last successful pass. Callers hold passMu.
func (w *Watcher) coldPass() {
	log.Component("watch").Debug("resyncing after failed pass")
	report, err := w.rebuilder.Cold(w.ctx)
	if err != nil {
		w.logger.Error(err)
		return
	}
	w.resync = false
	if !report.NoOp {
		w.logger.Rebuilt(report)
	}
}

// Close closes the watcher and releases resources.
func (w *Watcher) Close() error {
	if w.fsWatcher != nil {
		return w.fsWatcher.Close()
	}
	return nil
}

// ErrWatchLimitReached is returned when the OS watch limit is exceeded.
var ErrWatchLimitReached = errors.New("filesystem watch limit reached")

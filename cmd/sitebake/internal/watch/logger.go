package watch

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"golang.org/x/term"

	"github.com/albertocavalcante/sitebake/cmd/sitebake/internal/incremental"
)

// ChangeType represents the type of file change.
type ChangeType string

const (
	ChangeAdded    ChangeType = "+"
	ChangeModified ChangeType = "~"
	ChangeDeleted  ChangeType = "-"
)

// Logger prints watch progress for humans, or JSON lines for tools.
type Logger struct {
	writer  io.Writer
	isTTY   bool
	verbose bool
	noColor bool
	jsonOut bool

	outMu sync.Mutex
	mu    sync.Mutex
	stats WatchStats
}

// WatchStats tracks statistics for the watch session.
type WatchStats struct {
	RebuildCount int
	ErrorCount   int
	StartTime    time.Time
}

// LoggerConfig configures the logger.
type LoggerConfig struct {
	Writer  io.Writer
	Verbose bool
	NoColor bool
	JSON    bool
}

// NewLogger creates a new logger with the given configuration.
func NewLogger(cfg LoggerConfig) *Logger {
	writer := cfg.Writer
	if writer == nil {
		writer = os.Stdout
	}

	isTTY := false
	if f, ok := writer.(*os.File); ok {
		isTTY = term.IsTerminal(int(f.Fd()))
	}

	return &Logger{
		writer:  writer,
		isTTY:   isTTY,
		verbose: cfg.Verbose,
		noColor: cfg.NoColor,
		jsonOut: cfg.JSON,
		stats: WatchStats{
			StartTime: time.Now(),
		},
	}
}

// Ready logs that the watcher is running.
func (l *Logger) Ready(fileCount int, path string) {
	if l.jsonOut {
		l.writeJSON(map[string]any{
			"event": "ready",
			"files": fileCount,
			"path":  path,
		})
		return
	}

	l.printf("sitebake: watching %d files in %s\n", fileCount, path)
	l.println("sitebake: ready")
	l.println()
}

// FileChanged logs a raw filesystem event in verbose mode.
func (l *Logger) FileChanged(path string, change ChangeType) {
	if l.jsonOut {
		if l.verbose {
			l.writeJSON(map[string]any{
				"event":  "file_changed",
				"path":   path,
				"change": string(change),
				"time":   time.Now().Format(time.RFC3339),
			})
		}
		return
	}

	if l.verbose {
		l.printf("[%s] %s %s\n", l.timestamp(), l.colorize(string(change), change), path)
	}
}

// Rebuilding logs the classified change set about to be rebuilt.
func (l *Logger) Rebuilding(cs *incremental.ChangeSet) {
	if l.jsonOut {
		l.writeJSON(map[string]any{
			"event":   "rebuilding",
			"added":   cs.Added,
			"changed": cs.Changed,
			"deleted": cs.Deleted,
			"time":    time.Now().Format(time.RFC3339),
		})
		return
	}

	if cs.TotalChanges() == 1 {
		for _, group := range []struct {
			paths  []string
			change ChangeType
		}{{cs.Added, ChangeAdded}, {cs.Changed, ChangeModified}, {cs.Deleted, ChangeDeleted}} {
			if len(group.paths) == 1 {
				l.printf("[%s] rebuilding %s %s...\n", l.timestamp(), l.colorize(string(group.change), group.change), group.paths[0])
			}
		}
		return
	}
	l.printf("[%s] rebuilding %d changes (+%d ~%d -%d)...\n", l.timestamp(),
		cs.TotalChanges(), len(cs.Added), len(cs.Changed), len(cs.Deleted))
}

// Rebuilt logs a successful pass.
func (l *Logger) Rebuilt(r *incremental.Report) {
	l.mu.Lock()
	l.stats.RebuildCount++
	l.mu.Unlock()

	if l.jsonOut {
		l.writeJSON(map[string]any{
			"event":           "rebuilt",
			"rebuilt":         r.Rebuilt,
			"produced":        r.Produced,
			"reused":          r.Reused,
			"deleted_outputs": r.DeletedOutputs,
			"duration":        r.Duration.String(),
			"time":            time.Now().Format(time.RFC3339),
		})
		return
	}

	checkmark := l.colorize("✓", ChangeAdded)
	l.printf("[%s] %s rebuilt %d files (%d written, %d unchanged, %d removed) in %s\n",
		l.timestamp(), checkmark, len(r.Rebuilt), r.Produced, r.Reused,
		len(r.DeletedOutputs), r.Duration.Round(time.Millisecond))
	if l.verbose {
		for _, p := range r.Rebuilt {
			l.printf("    %s\n", p)
		}
	}
}

// Error logs an error.
func (l *Logger) Error(err error) {
	l.mu.Lock()
	l.stats.ErrorCount++
	l.mu.Unlock()

	if l.jsonOut {
		l.writeJSON(map[string]any{
			"event": "error",
			"error": err.Error(),
			"time":  time.Now().Format(time.RFC3339),
		})
		return
	}

	xmark := l.colorize("✗", ChangeDeleted)
	l.printf("[%s] %s error: %v\n", l.timestamp(), xmark, err)
}

// Shutdown logs the shutdown message with statistics.
func (l *Logger) Shutdown() {
	stats := l.Stats()

	if l.jsonOut {
		l.writeJSON(map[string]any{
			"event":    "shutdown",
			"rebuilds": stats.RebuildCount,
			"errors":   stats.ErrorCount,
			"duration": time.Since(stats.StartTime).String(),
		})
		return
	}

	l.println()
	l.printf("sitebake: shutting down (%d rebuilds, %d errors)\n",
		stats.RebuildCount, stats.ErrorCount)
}

// Stats returns the current watch statistics.
func (l *Logger) Stats() WatchStats {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stats
}

func (l *Logger) timestamp() string {
	return time.Now().Format("15:04:05")
}

// colorize applies ANSI color codes on a terminal.
func (l *Logger) colorize(s string, change ChangeType) string {
	if l.noColor || !l.isTTY {
		return s
	}

	var color string
	switch change {
	case ChangeAdded:
		color = "\033[32m" // green
	case ChangeModified:
		color = "\033[33m" // yellow
	case ChangeDeleted:
		color = "\033[31m" // red
	default:
		return s
	}
	return color + s + "\033[0m"
}

func (l *Logger) writeJSON(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		l.println(`{"event":"internal_error","error":"json marshal failed"}`)
		return
	}
	l.println(string(data))
}

// printf ignores write errors; console output is informational.
func (l *Logger) printf(format string, args ...any) {
	l.outMu.Lock()
	defer l.outMu.Unlock()
	_, _ = fmt.Fprintf(l.writer, format, args...)
}

func (l *Logger) println(args ...any) {
	l.outMu.Lock()
	defer l.outMu.Unlock()
	_, _ = fmt.Fprintln(l.writer, args...)
}

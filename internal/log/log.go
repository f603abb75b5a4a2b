package log

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
)

var (
	logger    atomic.Pointer[slog.Logger]
	level     = new(slog.LevelVar)
	verbosity atomic.Int32

	// mu guards active; handlers are rebuilt from it on every change.
	mu     sync.Mutex
	active = settings{output: os.Stderr, format: "text"}
)

type settings struct {
	output io.Writer
	format string
	root   string
}

func init() {
	// Warnings only until Init is called
	level.Set(slog.LevelWarn)
	verbosity.Store(VerbosityWarn)
	logger.Store(slog.New(newHandler(active)))
}

func newHandler(s settings) slog.Handler {
	return NewHandler(HandlerOptions{
		Level:  level,
		Format: s.format,
		Output: s.output,
		Root:   s.root,
	})
}

func apply(s settings) {
	active = s
	l := slog.New(newHandler(s))
	logger.Store(l)
	slog.SetDefault(l)
}

// Init initializes the global logger (call once at startup).
func Init(v int, format string) {
	InitOutput(os.Stderr, v, format)
}

// InitOutput is Init with an explicit destination.
func InitOutput(w io.Writer, v int, format string) {
	mu.Lock()
	defer mu.Unlock()

	SetVerbosity(v)
	s := active
	s.output = w
	s.format = format
	apply(s)
}

// SetRoot makes logged paths under root project-relative. An empty root
// logs paths as given.
func SetRoot(root string) {
	mu.Lock()
	defer mu.Unlock()

	s := active
	s.root = root
	apply(s)
}

// SetVerbosity changes verbosity at runtime.
func SetVerbosity(v int) {
	verbosity.Store(int32(v))
	level.Set(VerbosityToLevel(v))
}

// Verbosity returns the current verbosity level.
func Verbosity() int {
	return int(verbosity.Load())
}

// Logger returns the current logger instance.
func Logger() *slog.Logger {
	return logger.Load()
}

// Error logs at error level (v=0).
func Error(msg string, args ...any) {
	logger.Load().Error(msg, args...)
}

// Warn logs at warn level (v=1).
func Warn(msg string, args ...any) {
	logger.Load().Warn(msg, args...)
}

// Info logs at info level (v=2).
func Info(msg string, args ...any) {
	logger.Load().Info(msg, args...)
}

// Debug logs at debug level (v=3).
func Debug(msg string, args ...any) {
	logger.Load().Debug(msg, args...)
}

// Trace logs at trace level (v=4).
func Trace(msg string, args ...any) {
	logger.Load().Log(context.Background(), LevelTrace, msg, args...)
}

// V returns a logger that only logs if verbosity >= level.
// Usage: log.V(3).Info("detailed", "key", value)
func V(v int) *slog.Logger {
	if int(verbosity.Load()) >= v {
		return logger.Load()
	}
	return slog.New(slog.DiscardHandler)
}

// With returns a logger with additional context. It follows later calls
// to Init.
func With(args ...any) *slog.Logger {
	return slog.New(followHandler{}).With(args...)
}

// Component returns a logger tagged with component name.
func Component(name string) *slog.Logger {
	return With("component", name)
}

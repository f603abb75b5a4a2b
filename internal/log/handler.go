package log

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"
)

// HandlerOptions configures the log handler.
type HandlerOptions struct {
	Level  slog.Leveler
	Format string // "text" or "json"
	Output io.Writer

	// Root, when set, turns absolute paths under it into project-relative
	// slash paths in attribute values.
	Root string
}

// NewHandler creates appropriate handler based on options.
func NewHandler(opts HandlerOptions) slog.Handler {
	if opts.Output == nil {
		opts.Output = os.Stderr // Always stderr, stdout carries command output
	}

	handlerOpts := &slog.HandlerOptions{
		Level:       opts.Level,
		ReplaceAttr: replaceAttr(opts.Root),
	}

	if opts.Format == "json" {
		return slog.NewJSONHandler(opts.Output, handlerOpts)
	}
	return slog.NewTextHandler(opts.Output, handlerOpts)
}

// replaceAttr names custom levels, shortens project paths and rounds
// durations to microseconds.
func replaceAttr(root string) func([]string, slog.Attr) slog.Attr {
	prefix := ""
	if root != "" {
		prefix = filepath.Clean(root) + string(filepath.Separator)
	}

	return func(_ []string, a slog.Attr) slog.Attr {
		switch {
		case a.Key == slog.LevelKey:
			if level, ok := a.Value.Any().(slog.Level); ok {
				a.Value = slog.StringValue(LevelName(level))
			}
		case a.Key == slog.MessageKey:
		case a.Value.Kind() == slog.KindString && prefix != "":
			if s := a.Value.String(); strings.HasPrefix(s, prefix) {
				a.Value = slog.StringValue(filepath.ToSlash(s[len(prefix):]))
			}
		case a.Value.Kind() == slog.KindDuration:
			a.Value = slog.DurationValue(a.Value.Duration().Round(time.Microsecond))
		}
		return a
	}
}

// followHandler resolves the global handler for every record, so loggers
// taken at package init follow a later Init or SetRoot.
type followHandler struct {
	wrap []func(slog.Handler) slog.Handler
}

func (h followHandler) resolve() slog.Handler {
	out := logger.Load().Handler()
	for _, w := range h.wrap {
		out = w(out)
	}
	return out
}

func (h followHandler) Enabled(ctx context.Context, l slog.Level) bool {
	return logger.Load().Handler().Enabled(ctx, l)
}

func (h followHandler) Handle(ctx context.Context, r slog.Record) error {
	return h.resolve().Handle(ctx, r)
}

func (h followHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return h.with(func(next slog.Handler) slog.Handler { return next.WithAttrs(attrs) })
}

func (h followHandler) WithGroup(name string) slog.Handler {
	return h.with(func(next slog.Handler) slog.Handler { return next.WithGroup(name) })
}

func (h followHandler) with(w func(slog.Handler) slog.Handler) followHandler {
	return followHandler{wrap: append(slices.Clip(h.wrap), w)}
}

// Package log provides structured logging with verbosity levels for
// sitebake, built on log/slog and following kubectl/klog -v conventions.
package log

import (
	"fmt"
	"log/slog"
	"strings"
)

// LevelTrace is a custom level below Debug for per-file scheduler detail.
const LevelTrace = slog.Level(-8)

// Verbosity levels selectable with -v=N.
const (
	VerbosityError = 0 // Errors only (quiet)
	VerbosityWarn  = 1 // + Warnings
	VerbosityInfo  = 2 // + Info (rebuild summaries, watch events)
	VerbosityDebug = 3 // + Debug (change sets, handler dispatch)
	VerbosityTrace = 4 // + Trace (state transitions, output claims)
)

// VerbosityToLevel maps -v=N to a slog level.
func VerbosityToLevel(v int) slog.Level {
	switch {
	case v <= 0:
		return slog.LevelError
	case v == 1:
		return slog.LevelWarn
	case v == 2:
		return slog.LevelInfo
	case v == 3:
		return slog.LevelDebug
	default:
		return LevelTrace
	}
}

// LevelToVerbosity maps a slog level back to -v=N.
func LevelToVerbosity(l slog.Level) int {
	switch {
	case l >= slog.LevelError:
		return VerbosityError
	case l >= slog.LevelWarn:
		return VerbosityWarn
	case l >= slog.LevelInfo:
		return VerbosityInfo
	case l >= slog.LevelDebug:
		return VerbosityDebug
	default:
		return VerbosityTrace
	}
}

// LevelName returns the display name for l, including TRACE.
func LevelName(l slog.Level) string {
	if l <= LevelTrace {
		return "TRACE"
	}
	return l.String()
}

// ParseVerbosity converts a level name from a config file ("error",
// "warn", "info", "debug", "trace") to a verbosity.
func ParseVerbosity(name string) (int, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "error", "quiet":
		return VerbosityError, nil
	case "warn", "warning":
		return VerbosityWarn, nil
	case "info":
		return VerbosityInfo, nil
	case "debug":
		return VerbosityDebug, nil
	case "trace":
		return VerbosityTrace, nil
	default:
		return 0, fmt.Errorf("unknown log level %q", name)
	}
}

// Package config provides configuration management for sitebake.
// It supports multi-layer configuration with precedence:
//  1. Built-in defaults (lowest priority)
//  2. Global user config (~/.config/sitebake/config.toml)
//  3. Project config (.sitebake/config.toml or sitebake.toml)
//  4. .env in the project root (never overrides the real environment)
//  5. Environment variables (SITEBAKE_*)
//  6. CLI flags (highest priority)
package config

import (
	"io"
	"slices"

	"github.com/BurntSushi/toml"
)

// Config is the main configuration struct for sitebake.
type Config struct {
	// Project configures the directory layout.
	Project ProjectConfig `toml:"project"`

	// Build configures the rebuild engine and default handlers.
	Build BuildConfig `toml:"build"`

	// Watch configures the watch command.
	Watch WatchConfig `toml:"watch"`

	// Log configures logging when no -v flag is given.
	Log LogConfig `toml:"log"`

	// Files lists the config files that were merged, lowest precedence first.
	Files []string `toml:"-"`
}

// ProjectConfig holds project-relative directory settings.
type ProjectConfig struct {
	Source    string `toml:"source"`
	Output    string `toml:"output"`
	Artifacts string `toml:"artifacts"`
	State     string `toml:"state"`

	// Ignore holds extra name prefixes skipped while walking sources.
	// Entries are added to the built-in list.
	Ignore []string `toml:"ignore,omitempty"`
}

// BuildConfig holds rebuild settings.
type BuildConfig struct {
	// Workers is the scheduler pool size. Zero means one per CPU.
	Workers int `toml:"workers,omitempty"`

	// HashExtensions replaces the default list of assets published with a
	// .hash file.
	HashExtensions []string `toml:"hash_extensions,omitempty"`

	// RefCacheSize bounds the parsed-reference cache.
	RefCacheSize int `toml:"ref_cache_size,omitempty"`
}

// WatchConfig holds watch settings.
type WatchConfig struct {
	// DebounceMs is the quiet period before a batch of events is rebuilt.
	DebounceMs int `toml:"debounce_ms"`

	// MetricsAddr, when set, serves Prometheus metrics (e.g. ":9090").
	MetricsAddr string `toml:"metrics_addr,omitempty"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	// Level is one of error, warn, info, debug, trace.
	Level string `toml:"level,omitempty"`

	// Format is "text" or "json".
	Format string `toml:"format"`
}

// Default values.
const (
	DefaultSource     = "src"
	DefaultOutput     = "out/www"
	DefaultArtifacts  = "out/artifacts"
	DefaultState      = "out"
	DefaultDebounceMs = 100
)

// NewConfig creates a new Config with built-in defaults.
func NewConfig() *Config {
	return &Config{
		Project: ProjectConfig{
			Source:    DefaultSource,
			Output:    DefaultOutput,
			Artifacts: DefaultArtifacts,
			State:     DefaultState,
			Ignore:    []string{},
		},
		Build: BuildConfig{},
		Watch: WatchConfig{
			DebounceMs: DefaultDebounceMs,
		},
		Log: LogConfig{
			Format: "text",
		},
	}
}

// Merge merges another config into this one (other takes precedence).
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}

	// Merge project config
	if other.Project.Source != "" {
		c.Project.Source = other.Project.Source
	}
	if other.Project.Output != "" {
		c.Project.Output = other.Project.Output
	}
	if other.Project.Artifacts != "" {
		c.Project.Artifacts = other.Project.Artifacts
	}
	if other.Project.State != "" {
		c.Project.State = other.Project.State
	}
	for _, ig := range other.Project.Ignore {
		if !slices.Contains(c.Project.Ignore, ig) {
			c.Project.Ignore = append(c.Project.Ignore, ig)
		}
	}

	// Merge build config
	if other.Build.Workers > 0 {
		c.Build.Workers = other.Build.Workers
	}
	if len(other.Build.HashExtensions) > 0 {
		c.Build.HashExtensions = other.Build.HashExtensions
	}
	if other.Build.RefCacheSize > 0 {
		c.Build.RefCacheSize = other.Build.RefCacheSize
	}

	// Merge watch config
	if other.Watch.DebounceMs > 0 {
		c.Watch.DebounceMs = other.Watch.DebounceMs
	}
	if other.Watch.MetricsAddr != "" {
		c.Watch.MetricsAddr = other.Watch.MetricsAddr
	}

	// Merge log config
	if other.Log.Level != "" {
		c.Log.Level = other.Log.Level
	}
	if other.Log.Format != "" {
		c.Log.Format = other.Log.Format
	}

	c.Files = append(c.Files, other.Files...)
}

// Encode writes c as TOML.
func (c *Config) Encode(w io.Writer) error {
	return toml.NewEncoder(w).Encode(c)
}

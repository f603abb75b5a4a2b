package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"github.com/albertocavalcante/sitebake/internal/log"
)

// ConfigFileName is the name of the project-level config file.
const ConfigFileName = "sitebake.toml"

// ConfigDirName is the name of the project-level config directory.
const ConfigDirName = ".sitebake"

// GlobalConfigDir is the name of the global config directory inside user's config.
const GlobalConfigDir = "sitebake"

// DotEnvFile is read from the project root before environment variables
// are applied.
const DotEnvFile = ".env"

// Load loads configuration from all layers, starting the project search
// in the current directory.
//
// CLI flags are applied separately after Load() returns.
func Load() *Config {
	wd, err := os.Getwd()
	if err != nil {
		wd = "."
	}
	return LoadFrom(wd)
}

// LoadFrom loads configuration starting from a specific directory.
func LoadFrom(dir string) *Config {
	cfg := NewConfig()

	// Layer 2: Global user config
	if globalCfg := loadGlobalConfig(); globalCfg != nil {
		cfg.Merge(globalCfg)
	}

	// Layer 3: Project config from specified directory
	root := dir
	if projectCfg, projectRoot := loadProjectConfigFrom(dir); projectCfg != nil {
		cfg.Merge(projectCfg)
		root = projectRoot
	}

	// Layer 4: .env
	loadDotEnv(root)

	// Layer 5: Environment variables
	applyEnvironmentVariables(cfg)

	return cfg
}

// loadGlobalConfig loads the global user configuration from ~/.config/sitebake/config.toml.
func loadGlobalConfig() *Config {
	path := GetGlobalConfigPath()
	if path == "" {
		return nil
	}
	return loadConfigFile(path)
}

// loadProjectConfigFrom looks for project configuration starting from the
// given directory. It returns the config and the directory it was found in.
func loadProjectConfigFrom(dir string) (*Config, string) {
	// Search up the directory tree for config files
	current := dir
	for {
		for _, path := range GetProjectConfigPaths(current) {
			if cfg := loadConfigFile(path); cfg != nil {
				return cfg, current
			}
		}

		// Stop at filesystem root or repository root
		if isWorkspaceRoot(current) {
			break
		}

		parent := filepath.Dir(current)
		if parent == current {
			break
		}
		current = parent
	}

	return nil, ""
}

// isWorkspaceRoot checks if the directory is a repository root.
func isWorkspaceRoot(dir string) bool {
	markers := []string{".git", ".hg", ".svn"}
	for _, marker := range markers {
		if _, err := os.Stat(filepath.Join(dir, marker)); err == nil {
			return true
		}
	}
	return false
}

// loadConfigFile loads a configuration from a TOML file. A file that exists
// but does not parse is logged and skipped.
func loadConfigFile(path string) *Config {
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	cfg, err := ParseFile(path)
	if err != nil {
		log.Warn("ignoring invalid config file", "path", path, "error", err)
		return nil
	}
	return cfg
}

// ParseFile decodes a single TOML config file. Keys that do not map to a
// setting are reported as errors.
func ParseFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	md, err := toml.Decode(string(data), &cfg)
	if err != nil {
		return nil, err
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("unknown key %q", undecoded[0].String())
	}
	cfg.Files = []string{path}
	return &cfg, nil
}

// loadDotEnv reads dir/.env into the process environment without
// overriding variables that are already set.
func loadDotEnv(dir string) {
	path := filepath.Join(dir, DotEnvFile)
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Warn("ignoring invalid env file", "path", path, "error", err)
	}
}

// applyEnvironmentVariables applies SITEBAKE_* environment variables to the config.
func applyEnvironmentVariables(cfg *Config) {
	// Directory layout
	applyStringEnv("SITEBAKE_SOURCE_DIR", &cfg.Project.Source)
	applyStringEnv("SITEBAKE_OUTPUT_DIR", &cfg.Project.Output)
	applyStringEnv("SITEBAKE_ARTIFACT_DIR", &cfg.Project.Artifacts)
	applyStringEnv("SITEBAKE_STATE_DIR", &cfg.Project.State)

	// SITEBAKE_IGNORE: comma-separated name prefixes, added to the list
	if v := os.Getenv("SITEBAKE_IGNORE"); v != "" {
		cfg.Merge(&Config{Project: ProjectConfig{Ignore: splitAndTrim(v)}})
	}

	// Build settings
	applyIntEnv("SITEBAKE_WORKERS", &cfg.Build.Workers)
	if v := os.Getenv("SITEBAKE_HASH_EXTENSIONS"); v != "" {
		cfg.Build.HashExtensions = splitAndTrim(v)
	}
	applyIntEnv("SITEBAKE_REF_CACHE_SIZE", &cfg.Build.RefCacheSize)

	// Watch settings
	applyIntEnv("SITEBAKE_DEBOUNCE_MS", &cfg.Watch.DebounceMs)
	applyStringEnv("SITEBAKE_METRICS_ADDR", &cfg.Watch.MetricsAddr)

	// Logging
	applyStringEnv("SITEBAKE_LOG_LEVEL", &cfg.Log.Level)
	applyStringEnv("SITEBAKE_LOG_FORMAT", &cfg.Log.Format)
}

// splitAndTrim splits a comma-separated string and trims whitespace.
func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}

func applyStringEnv(envVar string, target *string) {
	if v := strings.TrimSpace(os.Getenv(envVar)); v != "" {
		*target = v
	}
}

// applyIntEnv applies a positive integer environment variable. Invalid
// values are logged and ignored.
func applyIntEnv(envVar string, target *int) {
	v := strings.TrimSpace(os.Getenv(envVar))
	if v == "" {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		log.Warn("ignoring invalid environment variable", "name", envVar, "value", v)
		return
	}
	*target = n
}

// GetGlobalConfigPath returns the path to the global config file.
func GetGlobalConfigPath() string {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(configDir, GlobalConfigDir, "config.toml")
}

// GetProjectConfigPaths returns potential project config paths for a given directory.
func GetProjectConfigPaths(dir string) []string {
	return []string{
		filepath.Join(dir, ConfigDirName, "config.toml"),
		filepath.Join(dir, ConfigFileName),
	}
}

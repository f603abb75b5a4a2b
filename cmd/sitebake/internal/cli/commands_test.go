package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/albertocavalcante/sitebake/cmd/sitebake/internal/incremental"
	"github.com/albertocavalcante/sitebake/pkg/config"
)

// isolateConfig keeps the user's global config and environment out of a test.
func isolateConfig(t *testing.T) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("HOME", t.TempDir())
}

// newSite creates a project directory holding files (slash-separated).
func newSite(t *testing.T, files map[string]string) string {
	t.Helper()
	isolateConfig(t)
	root := t.TempDir()
	for rel, content := range files {
		abs := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(abs), 0o755))
		require.NoError(t, os.WriteFile(abs, []byte(content), 0o644))
	}
	return root
}

// testCommand returns a bare command whose output is captured.
func testCommand() (*cobra.Command, *bytes.Buffer) {
	var out bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	return cmd, &out
}

func TestBuildCmdFlags(t *testing.T) {
	tests := []struct {
		flag     string
		defValue string
	}{
		{"workers", "0"},
		{"json", "false"},
	}

	for _, tt := range tests {
		f := buildCmd.Flags().Lookup(tt.flag)
		if f == nil {
			t.Errorf("build command missing --%s flag", tt.flag)
			continue
		}
		if f.DefValue != tt.defValue {
			t.Errorf("--%s default = %q, want %q", tt.flag, f.DefValue, tt.defValue)
		}
	}
}

func TestStatusCmdFlags(t *testing.T) {
	tests := []struct {
		flag     string
		defValue string
	}{
		{"verbose", "false"},
		{"json", "false"},
	}

	for _, tt := range tests {
		f := statusCmd.Flags().Lookup(tt.flag)
		if f == nil {
			t.Errorf("status command missing --%s flag", tt.flag)
			continue
		}
		if f.DefValue != tt.defValue {
			t.Errorf("--%s default = %q, want %q", tt.flag, f.DefValue, tt.defValue)
		}
	}
}

func TestWatchCmdFlags(t *testing.T) {
	tests := []struct {
		flag     string
		defValue string
	}{
		{"debounce", "0"},
		{"metrics-addr", ""},
		{"verbose", "false"},
		{"json", "false"},
		{"no-color", "false"},
	}

	for _, tt := range tests {
		f := watchCmd.Flags().Lookup(tt.flag)
		if f == nil {
			t.Errorf("watch command missing --%s flag", tt.flag)
			continue
		}
		if f.DefValue != tt.defValue {
			t.Errorf("--%s default = %q, want %q", tt.flag, f.DefValue, tt.defValue)
		}
	}
}

func TestInitCmdFlags(t *testing.T) {
	for _, name := range []string{"check", "dry-run"} {
		f := initCmd.Flags().Lookup(name)
		if f == nil {
			t.Errorf("init command missing --%s flag", name)
			continue
		}
		if f.DefValue != "false" {
			t.Errorf("--%s default = %q, want %q", name, f.DefValue, "false")
		}
	}
}

func TestCommandsHaveRunE(t *testing.T) {
	for _, cmd := range []*cobra.Command{initCmd, buildCmd, statusCmd, watchCmd, cleanCmd} {
		if cmd.RunE == nil {
			t.Errorf("command %q should have RunE", cmd.Name())
		}
	}
}

func TestOutputJSON(t *testing.T) {
	var buf bytes.Buffer
	err := outputJSON(&buf, StatusOutput{
		Stale:        true,
		AffectedDirs: []string{"src/css"},
		Changed:      []string{"src/css/site.css"},
	})
	require.NoError(t, err)

	var got StatusOutput
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.True(t, got.Stale)
	assert.Equal(t, []string{"src/css"}, got.AffectedDirs)
	assert.Equal(t, []string{"src/css/site.css"}, got.Changed)
	assert.Contains(t, buf.String(), "\n  \"stale\": true", "output should be indented")
}

func TestVersionCmd(t *testing.T) {
	cmd, out := testCommand()
	versionCmd.Run(cmd, nil)
	assert.Equal(t, "sitebake dev (unknown)\n", out.String())
}

func TestLoadEnvDefaults(t *testing.T) {
	root := newSite(t, nil)
	cmd, _ := testCommand()

	e, err := loadEnv(cmd, []string{root})
	require.NoError(t, err)

	assert.Equal(t, root, e.root)
	assert.Equal(t, "src", e.project.SourceDir)
	assert.Equal(t, "out/www", e.project.OutputDir)
	assert.Equal(t, "out", e.project.StateDir)
	assert.Equal(t, Version, e.project.Version)
}

func TestLoadEnvProjectConfig(t *testing.T) {
	root := newSite(t, map[string]string{
		config.ConfigFileName: `
[project]
source = "content/"
output = "public"
state = ".state"
ignore = ["drafts"]
`,
	})
	cmd, _ := testCommand()

	e, err := loadEnv(cmd, []string{root})
	require.NoError(t, err)

	assert.Equal(t, "content", e.project.SourceDir)
	assert.Equal(t, "public", e.project.OutputDir)
	assert.Equal(t, ".state", e.project.StateDir)
	assert.Contains(t, e.project.Ignore, "drafts")
	assert.True(t, e.project.Ignored("content/drafts/post.html"))
}

func TestLoadEnvInvalidPath(t *testing.T) {
	root := newSite(t, map[string]string{"file.txt": "x"})
	cmd, _ := testCommand()

	_, err := loadEnv(cmd, []string{filepath.Join(root, "missing")})
	assert.Error(t, err)

	_, err = loadEnv(cmd, []string{filepath.Join(root, "file.txt")})
	assert.ErrorContains(t, err, "must be a directory")
}

func TestLoadEnvInvalidLogLevel(t *testing.T) {
	root := newSite(t, map[string]string{
		config.ConfigFileName: "[log]\nlevel = \"chatty\"\n",
	})
	cmd, _ := testCommand()

	_, err := loadEnv(cmd, []string{root})
	assert.ErrorContains(t, err, "unknown log level")
}

func TestStatusNoState(t *testing.T) {
	root := newSite(t, map[string]string{"src/index.html": "<p>hi</p>"})
	cmd, out := testCommand()
	statusFlags.json = false

	require.NoError(t, runStatus(cmd, []string{root}))
	assert.Contains(t, out.String(), "No state found")
}

func TestStatusJSON(t *testing.T) {
	root := newSite(t, map[string]string{
		"src/index.html":   "<p>hi</p>",
		"src/css/site.css": "body {}",
	})
	p := incremental.NewProject(root, Version)
	require.NoError(t, incremental.NewGraphStore(p).Save(incremental.EmptyGraphs()))

	cmd, out := testCommand()
	statusFlags.json = true
	t.Cleanup(func() { statusFlags.json = false })

	require.NoError(t, runStatus(cmd, []string{root}))

	var got StatusOutput
	require.NoError(t, json.Unmarshal(out.Bytes(), &got))
	assert.True(t, got.Stale)
	assert.Equal(t, []string{"src/css/site.css", "src/index.html"}, got.Added)
	assert.Equal(t, []string{"src", "src/css"}, got.AffectedDirs)
}

func TestStatusVerbose(t *testing.T) {
	root := newSite(t, map[string]string{"src/index.html": "<p>hi</p>"})
	p := incremental.NewProject(root, Version)
	require.NoError(t, incremental.NewGraphStore(p).Save(incremental.EmptyGraphs()))

	cmd, out := testCommand()
	statusFlags.verbose = true
	t.Cleanup(func() { statusFlags.verbose = false })

	require.NoError(t, runStatus(cmd, []string{root}))
	assert.Contains(t, out.String(), "Added files (1):")
	assert.Contains(t, out.String(), "+ src/index.html")
	assert.Contains(t, out.String(), "Run 'sitebake build'")
}

func TestClean(t *testing.T) {
	root := newSite(t, map[string]string{"src/index.html": "<p>hi</p>"})
	p := incremental.NewProject(root, Version)
	require.NoError(t, incremental.NewGraphStore(p).Save(incremental.EmptyGraphs()))

	cmd, out := testCommand()
	require.NoError(t, runClean(cmd, []string{root}))

	assert.NoDirExists(t, filepath.Join(root, "out"))
	assert.FileExists(t, filepath.Join(root, "src", "index.html"))
	assert.Contains(t, out.String(), "Removed ")
}

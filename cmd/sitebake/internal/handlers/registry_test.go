package handlers

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/albertocavalcante/sitebake/cmd/sitebake/internal/incremental"
)

type recordingHandler struct {
	name  string
	calls []string
}

func (h *recordingHandler) Scan(_ context.Context, rel string, src []byte) (*incremental.ScanResult, error) {
	h.calls = append(h.calls, "scan "+rel+" "+string(src))
	return &incremental.ScanResult{Produces: []string{h.name + "/" + rel}}, nil
}

func (h *recordingHandler) Build(_ context.Context, rel string, src []byte) (*incremental.BuildResult, error) {
	h.calls = append(h.calls, "build "+rel+" "+string(src))
	return &incremental.BuildResult{Produced: []string{h.name + "/" + rel}}, nil
}

func newTestProject(t *testing.T, files map[string]string) *incremental.Project {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		abs := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(abs), 0o755))
		require.NoError(t, os.WriteFile(abs, []byte(content), 0o644))
	}
	return incremental.NewProject(root, "test")
}

func TestRegistryFirstMatchWins(t *testing.T) {
	p := newTestProject(t, map[string]string{"src/a.md": "hello"})
	md := &recordingHandler{name: "md"}
	all := &recordingHandler{name: "all"}
	reg := NewRegistry(p,
		Row{Name: "md", Match: func(rel string) bool { return strings.HasSuffix(rel, ".md") }, Handler: md},
		Row{Name: "all", Match: func(string) bool { return true }, Handler: all},
	)

	assert.Equal(t, []string{"md", "all"}, reg.Names())

	row, ok := reg.Resolve("src/a.md")
	require.True(t, ok)
	assert.Equal(t, "md", row.Name)

	row, ok = reg.Resolve("src/b.txt")
	require.True(t, ok)
	assert.Equal(t, "all", row.Name)

	scan, err := reg.ScanFile(context.Background(), "src/a.md")
	require.NoError(t, err)
	assert.Equal(t, []string{"md/src/a.md"}, scan.Produces)

	_, err = reg.BuildFile(context.Background(), "src/a.md")
	require.NoError(t, err)
	assert.Equal(t, []string{"scan src/a.md hello", "build src/a.md hello"}, md.calls)
	assert.Empty(t, all.calls)
}

func TestRegistryNoMatch(t *testing.T) {
	p := newTestProject(t, map[string]string{"src/a.md": "hello"})
	reg := NewRegistry(p, Row{Name: "none", Match: func(string) bool { return false }, Handler: &recordingHandler{}})

	_, err := reg.ScanFile(context.Background(), "src/a.md")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no handler for src/a.md")
}

func TestRegistryMissingFile(t *testing.T) {
	p := newTestProject(t, nil)
	reg := NewRegistry(p, Row{Name: "all", Match: func(string) bool { return true }, Handler: &recordingHandler{}})

	_, err := reg.BuildFile(context.Background(), "src/gone.txt")
	require.Error(t, err)
	assert.True(t, os.IsNotExist(err) || strings.Contains(err.Error(), "no such file"))
	assert.Contains(t, err.Error(), "all: src/gone.txt")
}

func TestDefaultTableOrder(t *testing.T) {
	tests := []struct {
		rel  string
		want string
	}{
		{"src/index.html", "html"},
		{"src/about.HTM", "html"},
		{"src/css/site.css", "css"},
		{"src/js/app.mjs", "js"},
		{"src/img/logo.PNG", "hash"},
		{"src/fonts/a.woff2", "hash"},
		{"src/robots.txt", "copy"},
		{"src/noext", "copy"},
	}

	reg := NewRegistry(nil, defaultRowsForTest()...)
	for _, tt := range tests {
		t.Run(tt.rel, func(t *testing.T) {
			row, ok := reg.Resolve(tt.rel)
			require.True(t, ok)
			assert.Equal(t, tt.want, row.Name)
		})
	}
}

// defaultRowsForTest mirrors the NewDefault matchers without a parser backend.
func defaultRowsForTest() []Row {
	h := &recordingHandler{}
	return []Row{
		{Name: "html", Match: byExtension(ExtensionSet(Extensions["html"])), Handler: h},
		{Name: "css", Match: byExtension(ExtensionSet(Extensions["css"])), Handler: h},
		{Name: "js", Match: byExtension(ExtensionSet(Extensions["js"])), Handler: h},
		{Name: "hash", Match: byExtension(ExtensionSet(DefaultHashExtensions)), Handler: h},
		{Name: "copy", Match: func(string) bool { return true }, Handler: h},
	}
}

func TestExtensionSet(t *testing.T) {
	set := ExtensionSet([]string{"PNG", ".Svg"}, []string{"woff"})
	assert.Equal(t, map[string]bool{".png": true, ".svg": true, ".woff": true}, set)

	assert.True(t, isPage("src/a/index.html"))
	assert.True(t, isPage("src/a.HTM"))
	assert.False(t, isPage("src/a.css"))

	assert.True(t, isScript("src/js/a.mjs"))
	assert.True(t, importsAsset("src/css/a.css"))
	assert.False(t, importsAsset("src/js/a.js"))
	assert.False(t, importsAsset("src/index.html"))
	assert.False(t, linksAsset("src/about.html"))
}

package handlers

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/albertocavalcante/sitebake/cmd/sitebake/internal/incremental"
)

func TestPublishHashed(t *testing.T) {
	p := newTestProject(t, nil)
	pub := &publisher{project: p}

	res, err := pub.publish("out/www/a/b.png", []byte("pixels"), true)
	require.NoError(t, err)
	assert.Equal(t, []string{"out/www/a/b.png", "out/www/a/b.png.hash"}, res.Produced)
	assert.Empty(t, res.Reused)

	data, err := os.ReadFile(p.Abs("out/www/a/b.png"))
	require.NoError(t, err)
	assert.Equal(t, "pixels", string(data))

	sum, ok := pub.readHash("src/a/b.png")
	require.True(t, ok)
	assert.Equal(t, incremental.HashBytes([]byte("pixels")), sum)

	// Same content is reused without touching the file.
	old := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(p.Abs("out/www/a/b.png"), old, old))

	res, err = pub.publish("out/www/a/b.png", []byte("pixels"), true)
	require.NoError(t, err)
	assert.Empty(t, res.Produced)
	assert.Equal(t, []string{"out/www/a/b.png", "out/www/a/b.png.hash"}, res.Reused)

	info, err := os.Stat(p.Abs("out/www/a/b.png"))
	require.NoError(t, err)
	assert.True(t, info.ModTime().Equal(old))

	// New content is written.
	res, err = pub.publish("out/www/a/b.png", []byte("other"), true)
	require.NoError(t, err)
	assert.Len(t, res.Produced, 2)
	sum, _ = pub.readHash("src/a/b.png")
	assert.Equal(t, incremental.HashBytes([]byte("other")), sum)
}

func TestPublishRewritesTamperedOutput(t *testing.T) {
	p := newTestProject(t, nil)
	pub := &publisher{project: p}

	_, err := pub.publish("out/www/x.svg", []byte("<svg/>"), true)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(p.Abs("out/www/x.svg"), []byte("edited"), 0o644))

	res, err := pub.publish("out/www/x.svg", []byte("<svg/>"), true)
	require.NoError(t, err)
	assert.Len(t, res.Produced, 2)
}

func TestPublishCopy(t *testing.T) {
	p := newTestProject(t, nil)
	pub := &publisher{project: p}

	res, err := pub.publish("out/www/robots.txt", []byte("User-agent: *"), false)
	require.NoError(t, err)
	assert.Equal(t, []string{"out/www/robots.txt"}, res.Produced)
	assert.NoFileExists(t, p.Abs("out/www/robots.txt.hash"))

	res, err = pub.publish("out/www/robots.txt", []byte("User-agent: *"), false)
	require.NoError(t, err)
	assert.Equal(t, []string{"out/www/robots.txt"}, res.Reused)

	_, ok := pub.readHash("src/robots.txt")
	assert.False(t, ok)
}

func TestWriteFileAtomicLeavesNoTemp(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "f.txt")
	require.NoError(t, writeFileAtomic(target, []byte("one")))
	require.NoError(t, writeFileAtomic(target, []byte("two")))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	data, _ := os.ReadFile(target)
	assert.Equal(t, "two", string(data))
}

func TestMkdirAll(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b", "c")
	require.NoError(t, mkdirAll(dir))
	require.NoError(t, mkdirAll(dir))
	assert.DirExists(t, dir)
}

func TestMkdirAllFileInTheWay(t *testing.T) {
	base := t.TempDir()
	blocker := filepath.Join(base, "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))

	err := mkdirAll(filepath.Join(blocker, "sub"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to create directory")
}

//go:build cgo

package handlers

import (
	"context"
	"errors"
	"os"
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/albertocavalcante/sitebake/cmd/sitebake/internal/incremental"
)

var site = map[string]string{
	"src/index.html": `<!doctype html>
<html>
<head><link rel="stylesheet" href="css/site.css"></head>
<body>
<img src="img/logo.png" alt="logo">
<a href="about.html">About</a>
<a href="https://example.com/">Elsewhere</a>
<script type="module" src="/js/app.js"></script>
</body>
</html>
`,
	"src/about.html":   "<p><a href=\"index.html\">Home</a></p>\n",
	"src/css/site.css": "@import \"base.css\";\nbody { background: url(../img/logo.png); }\n",
	"src/css/base.css": "p { color: red; }\n",
	"src/img/logo.png": "PNG-1",
	"src/js/app.js":    "import { f } from \"./util.js\";\nimport _ from \"lodash\";\nconst lazy = import(\"./lazy.js\");\n",
	"src/js/util.js":   "export function f() {}\n",
	"src/js/lazy.js":   "export default 1;\n",
	"src/robots.txt":   "User-agent: *\n",
}

func newSiteRegistry(t *testing.T, p *incremental.Project) *Registry {
	t.Helper()
	reg, err := NewDefault(p, Options{})
	require.NoError(t, err)
	return reg
}

func readOut(t *testing.T, p *incremental.Project, rel string) string {
	t.Helper()
	data, err := os.ReadFile(p.Abs(rel))
	require.NoError(t, err)
	return string(data)
}

func TestScanDependencies(t *testing.T) {
	p := newTestProject(t, site)
	reg := newSiteRegistry(t, p)
	ctx := context.Background()

	tests := []struct {
		rel      string
		deps     []string
		produces []string
	}{
		{
			rel:      "src/index.html",
			deps:     []string{"src/css/site.css", "src/img/logo.png", "src/js/app.js"},
			produces: []string{"out/www/index.html", "out/www/index.html.hash"},
		},
		{
			rel:      "src/css/site.css",
			deps:     []string{"src/css/base.css", "src/img/logo.png"},
			produces: []string{"out/www/css/site.css", "out/www/css/site.css.hash"},
		},
		{
			rel:      "src/js/app.js",
			produces: []string{"out/www/js/app.js", "out/www/js/app.js.hash"},
		},
		{
			rel:      "src/img/logo.png",
			produces: []string{"out/www/img/logo.png", "out/www/img/logo.png.hash"},
		},
		{
			rel:      "src/robots.txt",
			produces: []string{"out/www/robots.txt"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.rel, func(t *testing.T) {
			res, err := reg.ScanFile(ctx, tt.rel)
			require.NoError(t, err)
			assert.Equal(t, tt.deps, res.Dependencies)
			assert.Equal(t, tt.produces, res.Produces)
		})
	}
}

func TestParsedReferencesAreCached(t *testing.T) {
	p := newTestProject(t, site)
	reg := newSiteRegistry(t, p)

	_, err := reg.ScanFile(context.Background(), "src/css/site.css")
	require.NoError(t, err)
	_, err = reg.BuildFile(context.Background(), "src/css/site.css")
	require.NoError(t, err)

	row, _ := reg.Resolve("src/css/site.css")
	assert.Equal(t, 1, row.Handler.(*webHandler).refs.cache.len())
}

func TestBuildSite(t *testing.T) {
	p := newTestProject(t, site)
	r := incremental.NewRebuilder(p, newSiteRegistry(t, p), incremental.WithWorkers(4))
	ctx := context.Background()

	report, err := r.Cold(ctx)
	require.NoError(t, err)
	assert.Len(t, report.Rebuilt, len(site))

	logoHash := readOut(t, p, "out/www/img/logo.png.hash")
	cssHash := readOut(t, p, "out/www/css/site.css.hash")
	assert.Equal(t, incremental.HashBytes([]byte("PNG-1")), logoHash)

	css := readOut(t, p, "out/www/css/site.css")
	assert.Contains(t, css, "url(../img/logo.png?v="+incremental.ShortHash(logoHash)+")")
	assert.Contains(t, css, "@import \"base.css?v=")
	assert.Equal(t, incremental.HashBytes([]byte(css)), cssHash)

	page := readOut(t, p, "out/www/index.html")
	assert.Contains(t, page, `href="css/site.css?v=`+incremental.ShortHash(cssHash)+`"`)
	assert.Contains(t, page, `src="img/logo.png?v=`+incremental.ShortHash(logoHash)+`"`)
	assert.Contains(t, page, `href="about.html"`)
	assert.Contains(t, page, `href="https://example.com/"`)

	js := readOut(t, p, "out/www/js/app.js")
	assert.Equal(t, site["src/js/app.js"], js, "scripts are published unchanged")
	assert.Equal(t, site["src/robots.txt"], readOut(t, p, "out/www/robots.txt"))

	report, err = r.Cold(ctx)
	require.NoError(t, err)
	assert.True(t, report.NoOp)
}

func TestTouchKeepsOutputs(t *testing.T) {
	p := newTestProject(t, site)
	r := incremental.NewRebuilder(p, newSiteRegistry(t, p))
	ctx := context.Background()

	_, err := r.Cold(ctx)
	require.NoError(t, err)

	past := time.Now().Add(-time.Hour).Truncate(time.Second)
	require.NoError(t, os.Chtimes(p.Abs("out/www/index.html"), past, past))
	future := time.Now().Add(time.Minute)
	require.NoError(t, os.Chtimes(p.Abs("src/index.html"), future, future))

	report, err := r.Cold(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"src/index.html"}, report.Changes.Changed)
	assert.Equal(t, []string{"src/index.html"}, report.Rebuilt)
	assert.Equal(t, 0, report.Produced)

	info, err := os.Stat(p.Abs("out/www/index.html"))
	require.NoError(t, err)
	assert.True(t, info.ModTime().Equal(past), "unchanged output must not be rewritten")
}

func TestAssetChangeBustsReferrers(t *testing.T) {
	p := newTestProject(t, site)
	r := incremental.NewRebuilder(p, newSiteRegistry(t, p))
	ctx := context.Background()

	_, err := r.Cold(ctx)
	require.NoError(t, err)
	before := readOut(t, p, "out/www/index.html")

	require.NoError(t, os.WriteFile(p.Abs("src/img/logo.png"), []byte("PNG-two"), 0o644))

	report, err := r.Cold(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"src/css/site.css", "src/img/logo.png", "src/index.html"}, slices.Sorted(slices.Values(report.Rebuilt)))

	after := readOut(t, p, "out/www/index.html")
	assert.NotEqual(t, before, after)
	assert.Contains(t, after, "img/logo.png?v="+incremental.ShortHash(incremental.HashBytes([]byte("PNG-two"))))
}

func TestDeletedPageRemovesOutputs(t *testing.T) {
	p := newTestProject(t, site)
	r := incremental.NewRebuilder(p, newSiteRegistry(t, p))
	ctx := context.Background()

	_, err := r.Cold(ctx)
	require.NoError(t, err)
	require.FileExists(t, p.Abs("out/www/about.html"))

	require.NoError(t, os.Remove(p.Abs("src/about.html")))
	report, err := r.Cold(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"src/about.html"}, report.Changes.Deleted)
	assert.NoFileExists(t, p.Abs("out/www/about.html"))
	assert.NoFileExists(t, p.Abs("out/www/about.html.hash"))
}

func TestStylesheetCycle(t *testing.T) {
	p := newTestProject(t, map[string]string{
		"src/a.css": "@import \"b.css\";\n",
		"src/b.css": "@import \"a.css\";\n",
	})
	r := incremental.NewRebuilder(p, newSiteRegistry(t, p))

	_, err := r.Cold(context.Background())
	require.Error(t, err)

	var cycle *incremental.CyclicDependencyError
	require.True(t, errors.As(err, &cycle))
	assert.ElementsMatch(t, []string{"src/a.css", "src/b.css"}, cycle.Files)
	assert.False(t, r.Store().Exists(), "failed pass must not persist state")
}

func TestSelfReferenceIsIgnored(t *testing.T) {
	p := newTestProject(t, map[string]string{
		"src/a.css": "@import \"a.css\";\n",
	})
	reg := newSiteRegistry(t, p)

	res, err := reg.ScanFile(context.Background(), "src/a.css")
	require.NoError(t, err)
	assert.Empty(t, res.Dependencies)

	_, err = incremental.NewRebuilder(p, reg).Cold(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "@import \"a.css\";\n", readOut(t, p, "out/www/a.css"))
}

func TestMutualScriptImportsBuild(t *testing.T) {
	files := map[string]string{
		"src/a.js": "import { b } from \"./b.js\";\nexport const a = () => b();\n",
		"src/b.js": "import { a } from \"./a.js\";\nexport const b = () => a();\n",
	}
	p := newTestProject(t, files)
	reg := newSiteRegistry(t, p)
	r := incremental.NewRebuilder(p, reg)
	ctx := context.Background()

	res, err := reg.ScanFile(ctx, "src/a.js")
	require.NoError(t, err)
	assert.Empty(t, res.Dependencies)

	report, err := r.Cold(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"src/a.js", "src/b.js"}, report.Rebuilt)
	assert.Equal(t, files["src/a.js"], readOut(t, p, "out/www/a.js"))
	assert.Equal(t, files["src/b.js"], readOut(t, p, "out/www/b.js"))
	assert.FileExists(t, p.Abs("out/www/b.js.hash"))
	assert.True(t, r.Store().Exists())

	built, err := reg.BuildFile(ctx, "src/b.js")
	require.NoError(t, err)
	assert.Empty(t, built.Children)
}

func TestScriptStylesheetImportIsVersioned(t *testing.T) {
	p := newTestProject(t, map[string]string{
		"src/js/app.js":   "import \"../css/app.css\";\nimport { f } from \"./util.js\";\n",
		"src/js/util.js":  "export function f() {}\n",
		"src/css/app.css": "p { color: red; }\n",
	})
	reg := newSiteRegistry(t, p)
	ctx := context.Background()

	res, err := reg.ScanFile(ctx, "src/js/app.js")
	require.NoError(t, err)
	assert.Equal(t, []string{"src/css/app.css"}, res.Dependencies)

	_, err = incremental.NewRebuilder(p, reg).Cold(ctx)
	require.NoError(t, err)
	cssHash := readOut(t, p, "out/www/css/app.css.hash")
	js := readOut(t, p, "out/www/js/app.js")
	assert.Contains(t, js, "import \"../css/app.css?v="+incremental.ShortHash(cssHash)+"\";")
	assert.Contains(t, js, "from \"./util.js\";")
}

package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/albertocavalcante/sitebake/cmd/sitebake/internal/incremental"
	"github.com/albertocavalcante/sitebake/internal/log"
	"github.com/albertocavalcante/sitebake/pkg/treesitter"
)

// Row is one entry of the dispatch table.
type Row struct {
	Name    string
	Match   func(rel string) bool
	Handler Handler
}

// Registry dispatches files to the first matching row. It implements
// incremental.Processor.
type Registry struct {
	project  *incremental.Project
	rows     []Row
	resolved sync.Map // rel -> int (row index)
	logger   *slog.Logger
}

// NewRegistry creates a registry from an explicit ordered table.
func NewRegistry(p *incremental.Project, rows ...Row) *Registry {
	return &Registry{project: p, rows: rows, logger: log.Component("handlers")}
}

// Options configures the default handler set.
type Options struct {
	// HashExtensions overrides DefaultHashExtensions when non-empty.
	HashExtensions []string
	// RefCacheSize bounds the parsed-reference cache. Zero uses the default.
	RefCacheSize int
	// Backend overrides the tree-sitter backend, mostly for tests.
	Backend treesitter.Backend
}

// NewDefault builds the standard table: html, css, js, hash, copy.
func NewDefault(p *incremental.Project, opts Options) (*Registry, error) {
	backend := opts.Backend
	if backend == nil {
		var err error
		backend, err = treesitter.NewBackend()
		if err != nil {
			return nil, fmt.Errorf("failed to create parser backend: %w", err)
		}
	}
	cache, err := newRefCache(opts.RefCacheSize)
	if err != nil {
		return nil, err
	}

	hashExts := opts.HashExtensions
	if len(hashExts) == 0 {
		hashExts = DefaultHashExtensions
	}

	pub := &publisher{project: p}
	refs := &refFinder{project: p, backend: backend, cache: cache}

	return NewRegistry(p,
		Row{Name: "html", Match: byExtension(ExtensionSet(Extensions["html"])),
			Handler: &webHandler{name: "html", lang: treesitter.HTML, project: p, refs: refs, pub: pub, follow: linksAsset}},
		Row{Name: "css", Match: byExtension(ExtensionSet(Extensions["css"])),
			Handler: &webHandler{name: "css", lang: treesitter.CSS, project: p, refs: refs, pub: pub}},
		Row{Name: "js", Match: byExtension(ExtensionSet(Extensions["js"])),
			Handler: &webHandler{name: "js", lang: treesitter.JavaScript, project: p, refs: refs, pub: pub, follow: importsAsset}},
		Row{Name: "hash", Match: byExtension(ExtensionSet(hashExts)),
			Handler: &assetHandler{name: "hash", project: p, pub: pub, hashed: true}},
		Row{Name: "copy", Match: func(string) bool { return true },
			Handler: &assetHandler{name: "copy", project: p, pub: pub}},
	), nil
}

// Names returns the row names in dispatch order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.rows))
	for i, row := range r.rows {
		names[i] = row.Name
	}
	return names
}

// Resolve returns the row that handles rel. The answer is computed once per
// path and remembered.
func (r *Registry) Resolve(rel string) (Row, bool) {
	if i, ok := r.resolved.Load(rel); ok {
		return r.rows[i.(int)], true
	}
	for i, row := range r.rows {
		if row.Match(rel) {
			r.resolved.Store(rel, i)
			return row, true
		}
	}
	return Row{}, false
}

// ScanFile implements incremental.Processor.
func (r *Registry) ScanFile(ctx context.Context, rel string) (*incremental.ScanResult, error) {
	row, src, err := r.load(rel)
	if err != nil {
		return nil, err
	}
	r.logger.Debug("scan", "path", rel, "handler", row.Name)
	return row.Handler.Scan(ctx, rel, src)
}

// BuildFile implements incremental.Processor.
func (r *Registry) BuildFile(ctx context.Context, rel string) (*incremental.BuildResult, error) {
	row, src, err := r.load(rel)
	if err != nil {
		return nil, err
	}
	r.logger.Debug("build", "path", rel, "handler", row.Name)
	return row.Handler.Build(ctx, rel, src)
}

func (r *Registry) load(rel string) (Row, []byte, error) {
	row, ok := r.Resolve(rel)
	if !ok {
		return Row{}, nil, fmt.Errorf("no handler for %s", rel)
	}
	src, err := os.ReadFile(r.project.Abs(rel))
	if err != nil {
		return Row{}, nil, fmt.Errorf("%s: %s: %w", row.Name, rel, err)
	}
	return row, src, nil
}

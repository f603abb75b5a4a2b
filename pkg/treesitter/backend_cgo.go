//go:build cgo

package treesitter

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/css"
	"github.com/smacker/go-tree-sitter/html"
	"github.com/smacker/go-tree-sitter/javascript"
)

var grammars = map[Language]func() *sitter.Language{
	HTML:       html.GetLanguage,
	CSS:        css.GetLanguage,
	JavaScript: javascript.GetLanguage,
}

// cgoBackend parses with smacker/go-tree-sitter. A sitter.Parser is not
// safe for concurrent use, so each language has its own pool.
type cgoBackend struct {
	pools  map[Language]*sync.Pool
	closed atomic.Bool
}

// NewBackend creates the CGO tree-sitter backend.
func NewBackend() (Backend, error) {
	b := &cgoBackend{pools: make(map[Language]*sync.Pool, len(grammars))}
	for lang, grammar := range grammars {
		b.pools[lang] = &sync.Pool{New: func() any {
			p := sitter.NewParser()
			p.SetLanguage(grammar())
			return p
		}}
	}
	return b, nil
}

func (b *cgoBackend) Name() string {
	return "cgo"
}

func (b *cgoBackend) SupportsLanguage(lang Language) bool {
	_, ok := b.pools[lang]
	return ok
}

func (b *cgoBackend) Parse(ctx context.Context, lang Language, source []byte) (Tree, error) {
	if b.closed.Load() {
		return nil, ErrBackendClosed{Backend: b.Name()}
	}
	pool, ok := b.pools[lang]
	if !ok {
		return nil, ErrLanguageNotSupported{Language: lang, Backend: b.Name()}
	}

	parser := pool.Get().(*sitter.Parser)
	tree, err := parser.ParseCtx(ctx, nil, source)
	if err != nil {
		// An interrupted parse leaves state behind.
		parser.Reset()
		pool.Put(parser)
		return nil, fmt.Errorf("parse error: %w", err)
	}
	pool.Put(parser)

	return &cgoTree{tree: tree, source: source}, nil
}

// Close stops new parses. Pooled parsers are released by their finalizers.
func (b *cgoBackend) Close() error {
	b.closed.Store(true)
	return nil
}

type cgoTree struct {
	tree   *sitter.Tree
	source []byte
}

func (t *cgoTree) RootNode() Node {
	return wrap(t.tree.RootNode())
}

func (t *cgoTree) Source() []byte {
	return t.source
}

func (t *cgoTree) HasError() bool {
	root := t.tree.RootNode()
	return root != nil && root.HasError()
}

func (t *cgoTree) Close() error {
	t.tree.Close()
	return nil
}

// cgoNode always wraps a non-nil node; wrap maps nil to a nil Node.
type cgoNode struct {
	n *sitter.Node
}

func wrap(n *sitter.Node) Node {
	if n == nil {
		return nil
	}
	return cgoNode{n: n}
}

func (c cgoNode) Type() string                   { return c.n.Type() }
func (c cgoNode) StartByte() uint32              { return c.n.StartByte() }
func (c cgoNode) EndByte() uint32                { return c.n.EndByte() }
func (c cgoNode) Content(source []byte) string   { return c.n.Content(source) }
func (c cgoNode) ChildCount() uint32             { return c.n.ChildCount() }
func (c cgoNode) NamedChildCount() uint32        { return c.n.NamedChildCount() }
func (c cgoNode) Child(i uint32) Node            { return wrap(c.n.Child(int(i))) }
func (c cgoNode) NamedChild(i uint32) Node       { return wrap(c.n.NamedChild(int(i))) }
func (c cgoNode) ChildByFieldName(f string) Node { return wrap(c.n.ChildByFieldName(f)) }
func (c cgoNode) Parent() Node                   { return wrap(c.n.Parent()) }
func (c cgoNode) IsNull() bool                   { return c.n.IsNull() }
func (c cgoNode) String() string                 { return c.n.String() }

func (c cgoNode) StartPoint() Point {
	p := c.n.StartPoint()
	return Point{Row: p.Row, Column: p.Column}
}

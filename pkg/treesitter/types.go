// Package treesitter provides a small abstraction over tree-sitter parsing
// for the web languages sitebake understands: HTML, CSS and JavaScript.
//
// The only backend is the CGO one (smacker/go-tree-sitter). Builds without
// CGO compile, but NewBackend returns ErrCGODisabled.
//
// # Quick Start
//
//	backend, err := treesitter.NewBackend()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer backend.Close()
//
//	tree, err := treesitter.Parse(ctx, backend, treesitter.CSS, src)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer tree.Close()
//
//	for _, n := range treesitter.FindByType(tree.RootNode(), "import_statement") {
//	    fmt.Println(n.Content(src))
//	}
//
// # Thread Safety
//
// Backends are safe for concurrent use: each language keeps a pool of
// parsers and a parse borrows one for its duration. Trees and nodes belong
// to the caller and must not be shared across goroutines.
package treesitter

import (
	"context"
	"fmt"
)

// Language is a grammar that can be parsed.
type Language string

const (
	HTML       Language = "html"
	CSS        Language = "css"
	JavaScript Language = "javascript"
)

// AllLanguages returns every supported Language.
func AllLanguages() []Language {
	return []Language{HTML, CSS, JavaScript}
}

// Backend parses source for the supported languages.
type Backend interface {
	// Name returns the backend identifier.
	Name() string

	// SupportsLanguage checks if the backend can parse the given language.
	SupportsLanguage(lang Language) bool

	// Parse parses source as lang. The caller owns the returned tree.
	Parse(ctx context.Context, lang Language, source []byte) (Tree, error)

	// Close releases any resources held by the backend.
	Close() error
}

// Tree is a parsed syntax tree.
type Tree interface {
	RootNode() Node
	Source() []byte
	// HasError reports whether the tree contains any syntax errors.
	HasError() bool
	Close() error
}

// Node is a node in the syntax tree. Methods returning a Node return nil
// when there is no such node.
type Node interface {
	// Type returns the grammar type of this node, e.g. "attribute_value".
	Type() string

	StartByte() uint32
	EndByte() uint32
	StartPoint() Point

	// Content returns source[StartByte():EndByte()].
	Content(source []byte) string

	ChildCount() uint32
	Child(index uint32) Node
	NamedChildCount() uint32
	NamedChild(index uint32) Node
	ChildByFieldName(name string) Node
	Parent() Node

	IsNull() bool

	// String returns an S-expression of the subtree.
	String() string
}

// Point is a 0-indexed (row, column) position.
type Point struct {
	Row    uint32
	Column uint32
}

// ErrLanguageNotSupported is returned when a backend cannot parse a language.
type ErrLanguageNotSupported struct {
	Language Language
	Backend  string
}

func (e ErrLanguageNotSupported) Error() string {
	return "language " + string(e.Language) + " is not supported by backend " + e.Backend
}

// ErrBackendClosed is returned when attempting to use a backend after Close.
type ErrBackendClosed struct {
	Backend string
}

func (e ErrBackendClosed) Error() string {
	return "backend " + e.Backend + " has been closed"
}

// Parse parses source as lang, naming the language in errors.
func Parse(ctx context.Context, b Backend, lang Language, source []byte) (Tree, error) {
	tree, err := b.Parse(ctx, lang, source)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", lang, err)
	}
	return tree, nil
}

// NamedChildren returns all named children of n.
func NamedChildren(n Node) []Node {
	if n == nil || n.IsNull() {
		return nil
	}
	count := n.NamedChildCount()
	children := make([]Node, 0, count)
	for i := uint32(0); i < count; i++ {
		if child := n.NamedChild(i); child != nil {
			children = append(children, child)
		}
	}
	return children
}

// FindFirst performs a depth-first search and returns the first node
// matching the predicate, or nil.
func FindFirst(n Node, predicate func(Node) bool) Node {
	var found Node
	Walk(n, func(node Node) bool {
		if predicate(node) {
			found = node
			return false
		}
		return true
	})
	return found
}

// FindAll performs a depth-first search and returns all nodes matching the
// predicate.
func FindAll(n Node, predicate func(Node) bool) []Node {
	var results []Node
	Walk(n, func(node Node) bool {
		if predicate(node) {
			results = append(results, node)
		}
		return true
	})
	return results
}

// Walk traverses the tree depth-first. The visitor returns false to stop.
// Walk returns true if the entire tree was traversed.
func Walk(n Node, visitor func(Node) bool) bool {
	if n == nil || n.IsNull() {
		return true
	}
	if !visitor(n) {
		return false
	}
	count := n.ChildCount()
	for i := uint32(0); i < count; i++ {
		if child := n.Child(i); child != nil {
			if !Walk(child, visitor) {
				return false
			}
		}
	}
	return true
}

// FindByType returns all nodes of the given type, in document order.
func FindByType(n Node, nodeType string) []Node {
	return FindAll(n, func(node Node) bool {
		return node.Type() == nodeType
	})
}

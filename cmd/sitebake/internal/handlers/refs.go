package handlers

import (
	"cmp"
	"context"
	"os"
	"path"
	"slices"
	"strings"

	"github.com/albertocavalcante/sitebake/cmd/sitebake/internal/incremental"
	"github.com/albertocavalcante/sitebake/pkg/treesitter"
)

// Ref is a reference found in a source file: the raw target text and the
// byte range it occupies.
type Ref struct {
	Target string
	Start  uint32
	End    uint32
}

// refFinder extracts references with tree-sitter and resolves them to
// source paths.
type refFinder struct {
	project *incremental.Project
	backend treesitter.Backend
	cache   *refCache
}

// find returns the references in src, in document order.
func (f *refFinder) find(ctx context.Context, lang treesitter.Language, src []byte) ([]Ref, error) {
	if refs, ok := f.cache.get(lang, src); ok {
		return refs, nil
	}

	tree, err := treesitter.Parse(ctx, f.backend, lang, src)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tree.Close() }()

	var refs []Ref
	root := tree.RootNode()
	switch lang {
	case treesitter.HTML:
		refs = htmlRefs(root, src)
	case treesitter.CSS:
		refs = cssRefs(root, src)
	case treesitter.JavaScript:
		refs = jsRefs(root, src)
	}
	slices.SortFunc(refs, func(a, b Ref) int { return cmp.Compare(a.Start, b.Start) })
	refs = slices.CompactFunc(refs, func(a, b Ref) bool { return a.Start == b.Start })

	f.cache.add(lang, src, refs)
	return refs, nil
}

// htmlRefs collects src and href attribute values.
func htmlRefs(root treesitter.Node, src []byte) []Ref {
	var refs []Ref
	for _, attr := range treesitter.FindByType(root, "attribute") {
		name := attr.NamedChild(0)
		if name == nil || name.Type() != "attribute_name" {
			continue
		}
		switch strings.ToLower(name.Content(src)) {
		case "src", "href":
		default:
			continue
		}
		val := treesitter.FindFirst(attr, func(n treesitter.Node) bool {
			return n.Type() == "attribute_value"
		})
		if val == nil {
			continue
		}
		refs = append(refs, Ref{Target: val.Content(src), Start: val.StartByte(), End: val.EndByte()})
	}
	return refs
}

// cssRefs collects @import targets and url(...) arguments.
func cssRefs(root treesitter.Node, src []byte) []Ref {
	var refs []Ref
	for _, imp := range treesitter.FindByType(root, "import_statement") {
		for _, n := range treesitter.NamedChildren(imp) {
			if n.Type() == "string_value" {
				refs = append(refs, quotedRef(n, src))
			}
		}
	}
	for _, call := range treesitter.FindByType(root, "call_expression") {
		fn := call.NamedChild(0)
		if fn == nil || !strings.EqualFold(fn.Content(src), "url") {
			continue
		}
		args := treesitter.FindFirst(call, func(n treesitter.Node) bool { return n.Type() == "arguments" })
		if args == nil || args.NamedChildCount() == 0 {
			continue
		}
		refs = append(refs, quotedRef(args.NamedChild(0), src))
	}
	return refs
}

// jsRefs collects static import/export sources and dynamic import() strings.
func jsRefs(root treesitter.Node, src []byte) []Ref {
	var refs []Ref
	for _, kind := range []string{"import_statement", "export_statement"} {
		for _, n := range treesitter.FindByType(root, kind) {
			if s := n.ChildByFieldName("source"); s != nil {
				refs = append(refs, quotedRef(s, src))
			}
		}
	}
	for _, call := range treesitter.FindByType(root, "call_expression") {
		fn := call.ChildByFieldName("function")
		if fn == nil || fn.Type() != "import" {
			continue
		}
		args := call.ChildByFieldName("arguments")
		if args == nil || args.NamedChildCount() == 0 {
			continue
		}
		if arg := args.NamedChild(0); arg.Type() == "string" {
			refs = append(refs, quotedRef(arg, src))
		}
	}
	return refs
}

// quotedRef returns a Ref for n with surrounding quotes excluded.
func quotedRef(n treesitter.Node, src []byte) Ref {
	start, end := n.StartByte(), n.EndByte()
	if end-start >= 2 {
		first, last := src[start], src[end-1]
		if (first == '"' || first == '\'') && first == last {
			start++
			end--
		}
	}
	return Ref{Target: string(src[start:end]), Start: start, End: end}
}

// resolve maps a reference target written in from to an existing source
// path. External URLs, fragments and missing files do not resolve.
func (f *refFinder) resolve(from, target string) (string, bool) {
	t := strings.TrimSpace(target)
	if t == "" || strings.HasPrefix(t, "#") || strings.HasPrefix(t, "//") || hasScheme(t) {
		return "", false
	}
	if i := strings.IndexAny(t, "?#"); i >= 0 {
		t = t[:i]
	}
	if t == "" {
		return "", false
	}

	var rel string
	if strings.HasPrefix(t, "/") {
		rel = path.Join(f.project.SourceDir, t)
	} else {
		rel = path.Join(path.Dir(from), t)
	}
	if !f.project.IsSource(rel) || f.project.Ignored(rel) {
		return "", false
	}
	info, err := os.Stat(f.project.Abs(rel))
	if err != nil || !info.Mode().IsRegular() {
		return "", false
	}
	return rel, true
}

// isRelativeSpecifier reports whether a JavaScript module specifier points
// at a file rather than a package.
func isRelativeSpecifier(t string) bool {
	return strings.HasPrefix(t, "./") || strings.HasPrefix(t, "../") || strings.HasPrefix(t, "/")
}

// hasScheme reports whether t starts with a URL scheme such as "https:" or
// "data:".
func hasScheme(t string) bool {
	i := strings.IndexByte(t, ':')
	if i <= 0 {
		return false
	}
	for j, c := range t[:i] {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		case j > 0 && (c >= '0' && c <= '9' || c == '+' || c == '-' || c == '.'):
		default:
			return false
		}
	}
	return true
}

// withVersion appends a v=<hash> query parameter to target, replacing any
// existing one and keeping the fragment last.
func withVersion(target, version string) string {
	base, frag, hasFrag := strings.Cut(target, "#")
	base, query, _ := strings.Cut(base, "?")

	var params []string
	for _, p := range strings.Split(query, "&") {
		if p != "" && !strings.HasPrefix(p, "v=") {
			params = append(params, p)
		}
	}
	params = append(params, "v="+version)

	out := base + "?" + strings.Join(params, "&")
	if hasFrag {
		out += "#" + frag
	}
	return out
}

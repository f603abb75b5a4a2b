package handlers

import (
	"bytes"
	"context"
	"fmt"
	"slices"

	"github.com/albertocavalcante/sitebake/cmd/sitebake/internal/incremental"
	"github.com/albertocavalcante/sitebake/pkg/treesitter"
)

// webHandler handles text formats whose references are found by parsing:
// HTML, CSS and JavaScript.
type webHandler struct {
	name    string
	lang    treesitter.Language
	project *incremental.Project
	refs    *refFinder
	pub     *publisher

	// follow reports whether a resolved reference is a dependency. A nil
	// follow keeps every reference. References it rejects are published
	// untouched, so the build never reads their outputs.
	follow func(dep string) bool
}

type resolvedRef struct {
	Ref
	dep string
}

func (h *webHandler) Scan(ctx context.Context, rel string, src []byte) (*incremental.ScanResult, error) {
	deps, _, err := h.dependencies(ctx, rel, src)
	if err != nil {
		return nil, h.wrap(rel, err)
	}
	out, err := h.output(rel)
	if err != nil {
		return nil, err
	}
	return &incremental.ScanResult{Dependencies: deps, Produces: []string{out, out + HashSuffix}}, nil
}

func (h *webHandler) Build(ctx context.Context, rel string, src []byte) (*incremental.BuildResult, error) {
	deps, resolved, err := h.dependencies(ctx, rel, src)
	if err != nil {
		return nil, h.wrap(rel, err)
	}
	out, err := h.output(rel)
	if err != nil {
		return nil, err
	}

	res, err := h.pub.publish(out, h.render(src, resolved), true)
	if err != nil {
		return nil, h.wrap(rel, err)
	}
	res.Children = deps
	return res, nil
}

// dependencies returns the sorted distinct source files rel refers to, and
// every reference that resolved, in document order.
func (h *webHandler) dependencies(ctx context.Context, rel string, src []byte) ([]string, []resolvedRef, error) {
	refs, err := h.refs.find(ctx, h.lang, src)
	if err != nil {
		return nil, nil, err
	}

	var deps []string
	var resolved []resolvedRef
	for _, ref := range refs {
		if h.lang == treesitter.JavaScript && !isRelativeSpecifier(ref.Target) {
			continue
		}
		dep, ok := h.refs.resolve(rel, ref.Target)
		if !ok || dep == rel {
			continue
		}
		if h.follow != nil && !h.follow(dep) {
			continue
		}
		deps = append(deps, dep)
		resolved = append(resolved, resolvedRef{Ref: ref, dep: dep})
	}
	slices.Sort(deps)
	return slices.Compact(deps), resolved, nil
}

// render rewrites each resolved reference whose dependency has a published
// hash. References without one are left untouched.
func (h *webHandler) render(src []byte, refs []resolvedRef) []byte {
	var buf bytes.Buffer
	buf.Grow(len(src) + 12*len(refs))

	last := uint32(0)
	for _, r := range refs {
		sum, ok := h.pub.readHash(r.dep)
		if !ok || r.Start < last {
			continue
		}
		buf.Write(src[last:r.Start])
		buf.WriteString(withVersion(r.Target, incremental.ShortHash(sum)))
		last = r.End
	}
	buf.Write(src[last:])
	return buf.Bytes()
}

func (h *webHandler) output(rel string) (string, error) {
	out, ok := h.project.OutputFor(rel)
	if !ok {
		return "", fmt.Errorf("%s: %s: not under %s", h.name, rel, h.project.SourceDir)
	}
	return out, nil
}

func (h *webHandler) wrap(rel string, err error) error {
	return fmt.Errorf("%s: %s: %w", h.name, rel, err)
}

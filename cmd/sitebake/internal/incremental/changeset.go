package incremental

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"slices"
	"strings"

	"github.com/albertocavalcante/sitebake/pkg/depgraph"
)

// ChangeSet represents the differences between the last recorded graph and
// the current source tree.
type ChangeSet struct {
	Added   []string `json:"added"`
	Changed []string `json:"changed"`
	Deleted []string `json:"deleted"`
}

// NewChangeSet creates an empty ChangeSet.
func NewChangeSet() *ChangeSet {
	return &ChangeSet{
		Added:   []string{},
		Changed: []string{},
		Deleted: []string{},
	}
}

// IsEmpty returns true if there are no changes.
func (cs *ChangeSet) IsEmpty() bool {
	if cs == nil {
		return true
	}
	return len(cs.Added) == 0 && len(cs.Changed) == 0 && len(cs.Deleted) == 0
}

// TotalChanges returns the total number of changed files.
func (cs *ChangeSet) TotalChanges() int {
	if cs == nil {
		return 0
	}
	return len(cs.Added) + len(cs.Changed) + len(cs.Deleted)
}

// AffectedDirs returns sorted unique directories containing changes.
func (cs *ChangeSet) AffectedDirs() []string {
	if cs == nil {
		return nil
	}

	dirs := make(map[string]struct{})
	for _, list := range [][]string{cs.Added, cs.Changed, cs.Deleted} {
		for _, p := range list {
			dirs[path.Dir(p)] = struct{}{}
		}
	}

	result := make([]string, 0, len(dirs))
	for dir := range dirs {
		result = append(result, dir)
	}
	slices.Sort(result)
	return result
}

// sort sorts all slices for deterministic output.
func (cs *ChangeSet) sort() {
	if cs == nil {
		return
	}
	slices.Sort(cs.Added)
	slices.Sort(cs.Changed)
	slices.Sort(cs.Deleted)
}

// Diff compares the recorded dependency graph against a fresh snapshot.
// A nil graph is treated as empty.
func Diff(old *depgraph.Graph, snap Snapshot) *ChangeSet {
	cs := NewChangeSet()

	for p, sig := range snap {
		node, ok := old.Node(p)
		if !ok {
			cs.Added = append(cs.Added, p)
			continue
		}
		if !node.Signature.Equal(sig) {
			cs.Changed = append(cs.Changed, p)
		}
	}

	for _, p := range old.Paths() {
		if _, ok := snap[p]; !ok {
			cs.Deleted = append(cs.Deleted, p)
		}
	}

	cs.sort()
	return cs
}

// ClassifyPaths turns a set of touched project-relative paths into a
// ChangeSet by checking each one against disk and the recorded graph.
// Directories are expanded; paths outside the source tree are ignored.
func ClassifyPaths(p *Project, old *depgraph.Graph, paths []string) (*ChangeSet, error) {
	cs := NewChangeSet()
	seen := make(map[string]struct{})
	add := func(list *[]string, rel string) {
		if _, ok := seen[rel]; ok {
			return
		}
		seen[rel] = struct{}{}
		*list = append(*list, rel)
	}

	for _, rel := range paths {
		if !p.IsSource(rel) || p.Ignored(rel) {
			continue
		}

		info, err := os.Stat(p.Abs(rel))
		switch {
		case err == nil && !info.IsDir() && !info.Mode().IsRegular():
			// Walk never records non-regular files.
			if old.Has(rel) {
				add(&cs.Deleted, rel)
			}
			continue
		case errors.Is(err, fs.ErrNotExist):
			if old.Has(rel) {
				add(&cs.Deleted, rel)
			}
			prefix := rel + "/"
			for _, known := range old.Paths() {
				if strings.HasPrefix(known, prefix) {
					add(&cs.Deleted, known)
				}
			}
			continue
		case err != nil:
			return nil, fmt.Errorf("failed to stat %s: %w", rel, err)
		}

		if info.IsDir() {
			snap, err := walkDir(p, rel)
			if err != nil {
				return nil, err
			}
			for _, f := range snap.Paths() {
				classifyFile(cs, old, f, snap[f], add)
			}
			continue
		}
		classifyFile(cs, old, rel, depgraph.SignatureFromInfo(info), add)
	}

	cs.sort()
	return cs, nil
}

func classifyFile(cs *ChangeSet, old *depgraph.Graph, rel string, sig depgraph.Signature, add func(*[]string, string)) {
	node, ok := old.Node(rel)
	switch {
	case !ok:
		add(&cs.Added, rel)
	case !node.Signature.Equal(sig):
		add(&cs.Changed, rel)
	}
}

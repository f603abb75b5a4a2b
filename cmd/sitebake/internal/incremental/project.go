// Package incremental implements the incremental rebuild engine: change
// detection against the persisted dependency graph, the concurrent scan and
// build scheduler, and graph persistence.
package incremental

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"
)

// Default project-relative layout.
const (
	DefaultSourceDir   = "src"
	DefaultOutputDir   = "out/www"
	DefaultArtifactDir = "out/artifacts"
	DefaultStateDir    = "out"

	dependencyGraphFile = "dependency_graph.json"
	outputGraphFile     = "output_graph.json"
	versionFile         = "version"
)

// DefaultIgnore lists name prefixes skipped while walking the source tree.
var DefaultIgnore = []string{
	".git",
	".svn",
	".hg",
	".DS_Store",
	"node_modules",
	"#",
	".#",
}

// Project is the context a rebuild runs in. All directory fields are
// slash-separated and relative to Root.
type Project struct {
	Root        string
	SourceDir   string
	OutputDir   string
	ArtifactDir string
	StateDir    string

	// Ignore holds name prefixes of files and directories to skip.
	Ignore []string

	// Version identifies the processor that writes outputs. Graphs written
	// by a different version are discarded.
	Version string
}

// NewProject returns a project rooted at root with the default layout.
func NewProject(root, version string) *Project {
	return &Project{
		Root:        root,
		SourceDir:   DefaultSourceDir,
		OutputDir:   DefaultOutputDir,
		ArtifactDir: DefaultArtifactDir,
		StateDir:    DefaultStateDir,
		Ignore:      append([]string(nil), DefaultIgnore...),
		Version:     version,
	}
}

// Abs converts a project-relative path to an absolute filesystem path.
func (p *Project) Abs(rel string) string {
	return filepath.Join(p.Root, filepath.FromSlash(rel))
}

// Rel converts a filesystem path under Root to a project-relative slash path.
func (p *Project) Rel(abs string) (string, error) {
	rel, err := filepath.Rel(p.Root, abs)
	if err != nil {
		return "", fmt.Errorf("failed to relativize %s: %w", abs, err)
	}
	rel = filepath.ToSlash(rel)
	if rel == ".." || strings.HasPrefix(rel, "../") {
		return "", fmt.Errorf("%s is outside project root %s", abs, p.Root)
	}
	return rel, nil
}

// IsSource reports whether rel lies inside the source directory.
func (p *Project) IsSource(rel string) bool {
	_, ok := p.SourceRel(rel)
	return ok
}

// SourceRel strips the source directory prefix from rel.
func (p *Project) SourceRel(rel string) (string, bool) {
	prefix := strings.TrimSuffix(p.SourceDir, "/") + "/"
	if !strings.HasPrefix(rel, prefix) || len(rel) == len(prefix) {
		return "", false
	}
	return rel[len(prefix):], true
}

// OutputFor maps a source path to its published output path, so
// "src/css/site.css" becomes "out/www/css/site.css".
func (p *Project) OutputFor(rel string) (string, bool) {
	inner, ok := p.SourceRel(rel)
	if !ok {
		return "", false
	}
	return path.Join(p.OutputDir, inner), true
}

// Ignored reports whether any element of rel matches an ignore prefix.
func (p *Project) Ignored(rel string) bool {
	for _, name := range strings.Split(rel, "/") {
		if p.ignoredName(name) {
			return true
		}
	}
	return false
}

func (p *Project) ignoredName(name string) bool {
	for _, prefix := range p.Ignore {
		if prefix != "" && strings.HasPrefix(name, prefix) {
			return true
		}
	}
	return false
}

// DependencyGraphPath is the project-relative path of the dependency graph.
func (p *Project) DependencyGraphPath() string {
	return path.Join(p.StateDir, dependencyGraphFile)
}

// OutputGraphPath is the project-relative path of the output graph.
func (p *Project) OutputGraphPath() string {
	return path.Join(p.StateDir, outputGraphFile)
}

// VersionPath is the project-relative path of the version stamp.
func (p *Project) VersionPath() string {
	return path.Join(p.StateDir, versionFile)
}

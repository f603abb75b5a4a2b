package incremental

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/albertocavalcante/sitebake/internal/log"
	"github.com/albertocavalcante/sitebake/pkg/depgraph"
)

// Graphs is the persisted state of a project: which sources depend on which,
// and which outputs each source produced.
type Graphs struct {
	Dependencies *depgraph.Graph
	Outputs      *depgraph.Graph
}

// EmptyGraphs returns a pair of empty graphs.
func EmptyGraphs() *Graphs {
	return &Graphs{Dependencies: depgraph.New(), Outputs: depgraph.New()}
}

// Store defines the interface for graph persistence.
type Store interface {
	Load() (*Graphs, error)
	Save(g *Graphs) error
	Exists() bool
	Clear() error
}

// GraphStore implements Store with JSON files under the project's state
// directory, guarded by a version stamp.
type GraphStore struct {
	project *Project
}

// NewGraphStore creates a store for the given project.
func NewGraphStore(p *Project) *GraphStore {
	return &GraphStore{project: p}
}

// Load reads both graphs. Missing state, or state written by another
// version, yields empty graphs so the next pass rebuilds everything.
func (s *GraphStore) Load() (*Graphs, error) {
	stamp, err := os.ReadFile(s.project.Abs(s.project.VersionPath()))
	if errors.Is(err, fs.ErrNotExist) {
		return EmptyGraphs(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read version stamp: %w", err)
	}
	if got := strings.TrimSpace(string(stamp)); got != s.project.Version {
		log.Component("incremental").Info("discarding graphs from another version",
			"stored", got, "current", s.project.Version)
		return EmptyGraphs(), nil
	}

	deps, err := depgraph.Load(s.project.Abs(s.project.DependencyGraphPath()))
	if errors.Is(err, fs.ErrNotExist) {
		return EmptyGraphs(), nil
	}
	if err != nil {
		return nil, err
	}
	outs, err := depgraph.Load(s.project.Abs(s.project.OutputGraphPath()))
	if errors.Is(err, fs.ErrNotExist) {
		return EmptyGraphs(), nil
	}
	if err != nil {
		return nil, err
	}
	return &Graphs{Dependencies: deps, Outputs: outs}, nil
}

// Save writes both graphs and then the version stamp, each atomically.
func (s *GraphStore) Save(g *Graphs) error {
	if g == nil {
		return fmt.Errorf("cannot save nil graphs")
	}
	if err := g.Dependencies.Store(s.project.Abs(s.project.DependencyGraphPath())); err != nil {
		return err
	}
	if err := g.Outputs.Store(s.project.Abs(s.project.OutputGraphPath())); err != nil {
		return err
	}

	path := s.project.Abs(s.project.VersionPath())
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, []byte(s.project.Version+"\n"), 0o644); err != nil {
		return fmt.Errorf("failed to write temp version stamp: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to rename version stamp: %w", err)
	}
	return nil
}

// Exists returns true if a version stamp has been written.
func (s *GraphStore) Exists() bool {
	_, err := os.Stat(s.project.Abs(s.project.VersionPath()))
	return err == nil
}

// Clear removes the whole state directory, published outputs included.
func (s *GraphStore) Clear() error {
	dir := s.project.Abs(s.project.StateDir)
	if filepath.Clean(dir) == filepath.Clean(s.project.Root) {
		return fmt.Errorf("refusing to clear project root %s", dir)
	}
	return os.RemoveAll(dir)
}

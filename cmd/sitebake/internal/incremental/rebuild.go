package incremental

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"github.com/albertocavalcante/sitebake/internal/log"
)

// Rebuild outcomes reported to an Observer.
const (
	ResultNoOp    = "noop"
	ResultSuccess = "success"
	ResultCycle   = "cycle"
	ResultError   = "error"
)

// Observer receives progress events from a Rebuilder.
type Observer interface {
	ScanDone(path string)
	BuildDone(path string, res *BuildResult)
	OutputsDeleted(n int)
	RebuildDone(result string, elapsed time.Duration)
}

type nopObserver struct{}

func (nopObserver) ScanDone(string)                   {}
func (nopObserver) BuildDone(string, *BuildResult)    {}
func (nopObserver) OutputsDeleted(int)                {}
func (nopObserver) RebuildDone(string, time.Duration) {}

// Report summarizes one rebuild pass.
type Report struct {
	NoOp           bool          `json:"noop"`
	Changes        *ChangeSet    `json:"changes"`
	Scanned        []string      `json:"scanned"`
	Rebuilt        []string      `json:"rebuilt"`
	DeletedOutputs []string      `json:"deleted_outputs"`
	Produced       int           `json:"produced"`
	Reused         int           `json:"reused"`
	Duration       time.Duration `json:"duration_ns"`
}

// Rebuilder drives incremental rebuilds of a project.
type Rebuilder struct {
	project  *Project
	proc     Processor
	store    Store
	workers  int
	logger   *slog.Logger
	observer Observer
}

// Option configures a Rebuilder.
type Option func(*Rebuilder)

// WithWorkers sets the size of the scan and build worker pool.
func WithWorkers(n int) Option {
	return func(r *Rebuilder) {
		if n > 0 {
			r.workers = n
		}
	}
}

// WithStore overrides where graphs are loaded from and saved to.
func WithStore(s Store) Option {
	return func(r *Rebuilder) {
		r.store = s
	}
}

// WithLogger sets the logger used for pass summaries.
func WithLogger(l *slog.Logger) Option {
	return func(r *Rebuilder) {
		r.logger = l
	}
}

// WithObserver registers an observer for progress events.
func WithObserver(o Observer) Option {
	return func(r *Rebuilder) {
		if o != nil {
			r.observer = o
		}
	}
}

// NewRebuilder creates a Rebuilder for project p using proc for per-file work.
func NewRebuilder(p *Project, proc Processor, opts ...Option) *Rebuilder {
	r := &Rebuilder{
		project:  p,
		proc:     proc,
		workers:  runtime.NumCPU(),
		observer: nopObserver{},
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.store == nil {
		r.store = NewGraphStore(p)
	}
	if r.logger == nil {
		r.logger = log.Component("incremental")
	}
	return r
}

// Project returns the project this rebuilder works on.
func (r *Rebuilder) Project() *Project {
	return r.project
}

// Store returns the graph store.
func (r *Rebuilder) Store() Store {
	return r.store
}

// Status compares the source tree against the stored graph without
// scanning or building anything.
func (r *Rebuilder) Status(ctx context.Context) (*ChangeSet, error) {
	graphs, err := r.store.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load state: %w", err)
	}
	snap, err := Walk(ctx, r.project)
	if err != nil {
		return nil, fmt.Errorf("failed to walk sources: %w", err)
	}
	return Diff(graphs.Dependencies, snap), nil
}

// Cold rebuilds from the persisted graphs: it walks the source tree,
// classifies every file, and hands any changes to Hot. With no changes it
// returns a NoOp report without touching the processor or the graphs.
func (r *Rebuilder) Cold(ctx context.Context) (*Report, error) {
	start := time.Now()

	graphs, err := r.store.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load state: %w", err)
	}
	snap, err := Walk(ctx, r.project)
	if err != nil {
		return nil, fmt.Errorf("failed to walk sources: %w", err)
	}

	changes := Diff(graphs.Dependencies, snap)
	if changes.IsEmpty() {
		elapsed := time.Since(start)
		r.logger.Info("nothing to rebuild", "files", len(snap), "elapsed", elapsed)
		r.observer.RebuildDone(ResultNoOp, elapsed)
		return &Report{NoOp: true, Changes: changes, Duration: elapsed}, nil
	}

	r.logger.Debug("changes detected",
		"added", len(changes.Added),
		"changed", len(changes.Changed),
		"deleted", len(changes.Deleted))
	return r.Hot(ctx, changes, graphs)
}

// Hot rebuilds everything affected by changes, given the graphs from the
// previous successful pass. On success both graphs are replaced in the
// store. A nil old is treated as empty.
func (r *Rebuilder) Hot(ctx context.Context, changes *ChangeSet, old *Graphs) (*Report, error) {
	start := time.Now()
	if changes == nil {
		changes = NewChangeSet()
	}
	if old == nil {
		old = EmptyGraphs()
	}

	ps := newPass(r, changes, old)
	err := ps.run(ctx)
	elapsed := time.Since(start)
	ps.report.Duration = elapsed

	switch {
	case err == nil:
		r.logger.Info("rebuild finished",
			"rebuilt", len(ps.report.Rebuilt),
			"produced", ps.report.Produced,
			"reused", ps.report.Reused,
			"deleted", len(ps.report.DeletedOutputs),
			"elapsed", elapsed)
		r.observer.RebuildDone(ResultSuccess, elapsed)
		return ps.report, nil
	case errors.Is(err, ErrCyclicDependency):
		r.observer.RebuildDone(ResultCycle, elapsed)
	default:
		r.observer.RebuildDone(ResultError, elapsed)
	}
	return nil, err
}

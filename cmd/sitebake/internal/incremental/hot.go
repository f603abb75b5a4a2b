package incremental

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/albertocavalcante/sitebake/pkg/depgraph"
	"github.com/albertocavalcante/sitebake/pkg/util"
)

// pass holds the working state of a single hot rebuild.
type pass struct {
	r       *Rebuilder
	changes *ChangeSet
	oldDeps *depgraph.Graph
	oldOuts *depgraph.Graph

	sources map[string]struct{}
	deleted map[string]struct{}
	sigs    map[string]depgraph.Signature
	scans   map[string]*ScanResult
	dirty   map[string]struct{}
	states  fileStates
	built   map[string]*BuildResult

	report *Report
}

func newPass(r *Rebuilder, changes *ChangeSet, old *Graphs) *pass {
	ps := &pass{
		r:       r,
		changes: changes,
		oldDeps: old.Dependencies,
		oldOuts: old.Outputs,
		sources: make(map[string]struct{}),
		deleted: util.SetOf(changes.Deleted),
		sigs:    make(map[string]depgraph.Signature),
		scans:   make(map[string]*ScanResult),
		dirty:   make(map[string]struct{}),
		states:  make(fileStates),
		built:   make(map[string]*BuildResult),
		report:  &Report{Changes: changes},
	}
	for _, p := range ps.oldDeps.Paths() {
		if _, gone := ps.deleted[p]; !gone {
			ps.sources[p] = struct{}{}
		}
	}
	for _, p := range ps.fresh() {
		ps.sources[p] = struct{}{}
	}
	return ps
}

// fresh returns changed and added paths, the ones that need new signatures
// and a rescan.
func (ps *pass) fresh() []string {
	out := make([]string, 0, len(ps.changes.Changed)+len(ps.changes.Added))
	out = append(out, ps.changes.Changed...)
	out = append(out, ps.changes.Added...)
	slices.Sort(out)
	return slices.Compact(out)
}

func (ps *pass) run(ctx context.Context) error {
	fresh := ps.fresh()

	for _, p := range fresh {
		sig, err := depgraph.SignatureOf(ps.r.project.Abs(p))
		if err != nil {
			return err
		}
		ps.sigs[p] = sig
	}

	if err := ps.scan(ctx, fresh); err != nil {
		return err
	}
	ps.report.Scanned = fresh

	ps.propagate()
	queue := make([]string, 0, len(ps.dirty))
	for _, p := range util.SortedKeys(ps.dirty) {
		if _, ok := ps.sources[p]; !ok {
			continue
		}
		if err := ps.states.transition(p, StateUntouched, StateDirty); err != nil {
			return err
		}
		queue = append(queue, p)
	}

	stale := ps.staleOutputs()
	if err := ps.deleteOutputs(ctx, stale); err != nil {
		return err
	}
	ps.report.DeletedOutputs = stale
	ps.r.observer.OutputsDeleted(len(stale))

	if err := ps.schedule(ctx, queue); err != nil {
		return err
	}

	graphs, err := ps.reconstruct()
	if err != nil {
		return err
	}
	if err := ps.r.store.Save(graphs); err != nil {
		return fmt.Errorf("failed to save state: %w", err)
	}

	ps.report.Rebuilt = util.SortedKeys(ps.built)
	for _, res := range ps.built {
		ps.report.Produced += len(res.Produced)
		ps.report.Reused += len(res.Reused)
	}
	return nil
}

// scan runs ScanFile on every path with bounded concurrency.
func (ps *pass) scan(ctx context.Context, paths []string) error {
	results := make([]*ScanResult, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ps.r.workers)
	for i, p := range paths {
		g.Go(func() error {
			res, err := ps.r.proc.ScanFile(gctx, p)
			if err != nil {
				return err
			}
			if res == nil {
				res = &ScanResult{}
			}
			results[i] = res
			ps.r.observer.ScanDone(p)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for i, p := range paths {
		ps.scans[p] = results[i]
	}
	return nil
}

// propagate marks every file that must be rebuilt: scanned files, their
// dependencies, deleted files, and everything that transitively depends on
// any of them in the old graph.
func (ps *pass) propagate() {
	var stack []string
	for _, p := range util.SortedKeys(ps.scans) {
		stack = append(stack, p)
		stack = append(stack, ps.scans[p].Dependencies...)
	}
	stack = append(stack, ps.changes.Deleted...)

	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if _, ok := ps.dirty[p]; ok {
			continue
		}
		ps.dirty[p] = struct{}{}
		stack = append(stack, ps.oldDeps.Parents(p)...)
	}
}

// staleOutputs returns recorded outputs of dirty files that this pass will
// not produce again. A file that was not rescanned has unchanged content,
// so it reproduces its old outputs.
func (ps *pass) staleOutputs() []string {
	stale := make(map[string]struct{})
	for p := range ps.dirty {
		old := ps.oldOuts.Children(p)
		if len(old) == 0 {
			continue
		}

		var keep map[string]struct{}
		if _, gone := ps.deleted[p]; !gone {
			scan, ok := ps.scans[p]
			if !ok {
				continue
			}
			keep = util.SetOf(scan.Produces)
		}
		for _, o := range old {
			if _, ok := keep[o]; !ok {
				stale[o] = struct{}{}
			}
		}
	}
	return util.SortedKeys(stale)
}

func (ps *pass) deleteOutputs(ctx context.Context, outputs []string) error {
	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(ps.r.workers)
	for _, o := range outputs {
		g.Go(func() error {
			err := os.Remove(ps.r.project.Abs(o))
			if err != nil && !errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("failed to remove stale output %s: %w", o, err)
			}
			ps.r.logger.Debug("removed stale output", "path", o)
			return nil
		})
	}
	return g.Wait()
}

// dependencies returns the best known dependencies of p: its fresh scan if
// it was rescanned, otherwise its edges in the old graph.
func (ps *pass) dependencies(p string) []string {
	if scan, ok := ps.scans[p]; ok {
		return scan.Dependencies
	}
	return ps.oldDeps.Children(p)
}

// outputs returns the best known outputs of p.
func (ps *pass) outputs(p string) []string {
	if scan, ok := ps.scans[p]; ok {
		return scan.Produces
	}
	return ps.oldOuts.Children(p)
}

type buildDone struct {
	path   string
	result *BuildResult
	err    error
}

// schedule builds every queued file on a fixed worker pool. A file starts
// once none of its dependencies are still waiting or in flight, and none of
// its outputs are claimed by another in-flight build.
func (ps *pass) schedule(ctx context.Context, queue []string) error {
	if len(queue) == 0 {
		return nil
	}
	workers := min(ps.r.workers, len(queue))

	work := make(chan string, workers)
	done := make(chan buildDone, workers)
	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for p := range work {
				res, err := ps.r.proc.BuildFile(ctx, p)
				done <- buildDone{path: p, result: res, err: err}
			}
		}()
	}
	defer func() {
		close(work)
		wg.Wait()
	}()

	pending := util.SetOf(queue)
	inFlight := make(map[string][]string)
	claims := make(map[string]string)
	var firstErr error

	for len(pending) > 0 || len(inFlight) > 0 {
		if firstErr == nil {
			for _, p := range util.SortedKeys(pending) {
				if len(inFlight) >= workers {
					break
				}
				if !ps.ready(p, pending, inFlight, claims) {
					continue
				}
				if err := ps.states.transition(p, StateDirty, StateScheduled); err != nil {
					return err
				}
				if err := ps.states.transition(p, StateScheduled, StateBuilding); err != nil {
					return err
				}
				outs := ps.outputs(p)
				for _, o := range outs {
					claims[o] = p
				}
				delete(pending, p)
				inFlight[p] = outs
				work <- p
			}
		}

		if len(inFlight) == 0 {
			if firstErr != nil {
				break
			}
			return &CyclicDependencyError{Files: util.SortedKeys(pending)}
		}

		d := <-done
		for _, o := range inFlight[d.path] {
			if claims[o] == d.path {
				delete(claims, o)
			}
		}
		delete(inFlight, d.path)

		if d.err != nil {
			if firstErr == nil {
				firstErr = d.err
			}
			continue
		}
		if d.result == nil {
			d.result = &BuildResult{}
		}
		if err := ps.states.transition(d.path, StateBuilding, StateDone); err != nil {
			return err
		}
		ps.built[d.path] = d.result
		ps.r.observer.BuildDone(d.path, d.result)
	}
	return firstErr
}

func (ps *pass) ready(p string, pending map[string]struct{}, inFlight map[string][]string, claims map[string]string) bool {
	for _, d := range ps.dependencies(p) {
		if d == p {
			continue
		}
		if _, ok := pending[d]; ok {
			return false
		}
		if _, ok := inFlight[d]; ok {
			return false
		}
	}
	for _, o := range ps.outputs(p) {
		if owner, ok := claims[o]; ok && owner != p {
			return false
		}
	}
	return true
}

// reconstruct builds the dependency and output graphs that describe the
// tree after this pass.
func (ps *pass) reconstruct() (*Graphs, error) {
	deps := depgraph.New()
	outs := depgraph.New()
	paths := util.SortedKeys(ps.sources)

	for _, p := range paths {
		sig := ps.signature(p)
		if err := deps.AddFile(p, sig); err != nil {
			return nil, err
		}
		if err := outs.AddFile(p, sig); err != nil {
			return nil, err
		}
	}

	for _, p := range paths {
		var children, produced []string
		if res, ok := ps.built[p]; ok {
			children = res.Children
			produced = res.Outputs()
		} else {
			children = ps.oldDeps.Children(p)
			produced = ps.oldOuts.Children(p)
		}

		children = slices.DeleteFunc(slices.Clone(children), func(c string) bool {
			_, ok := ps.sources[c]
			return !ok
		})
		if err := deps.SetChildren(p, children, false); err != nil {
			return nil, err
		}

		for _, o := range produced {
			if outs.Has(o) {
				continue
			}
			sig, err := depgraph.SignatureOf(ps.r.project.Abs(o))
			if err != nil && !errors.Is(err, fs.ErrNotExist) {
				return nil, err
			}
			if err := outs.AddFile(o, sig); err != nil {
				return nil, err
			}
		}
		if err := outs.SetChildren(p, produced, false); err != nil {
			return nil, err
		}
	}

	return &Graphs{Dependencies: deps, Outputs: outs}, nil
}

func (ps *pass) signature(p string) depgraph.Signature {
	if sig, ok := ps.sigs[p]; ok {
		return sig
	}
	if node, ok := ps.oldDeps.Node(p); ok {
		return node.Signature
	}
	return depgraph.Signature{}
}

package incremental

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/albertocavalcante/sitebake/pkg/depgraph"
	"github.com/albertocavalcante/sitebake/pkg/util"
)

// Snapshot maps project-relative source paths to their current signatures.
type Snapshot map[string]depgraph.Signature

// Paths returns the snapshot's paths in sorted order.
func (s Snapshot) Paths() []string {
	return util.SortedKeys(s)
}

// Walk stats every file under the project's source directory.
// A missing source directory yields an empty snapshot.
func Walk(ctx context.Context, p *Project) (Snapshot, error) {
	return walk(ctx, p, p.SourceDir)
}

func walkDir(p *Project, rel string) (Snapshot, error) {
	return walk(context.Background(), p, rel)
}

func walk(ctx context.Context, p *Project, dir string) (Snapshot, error) {
	snap := make(Snapshot)
	root := p.Abs(dir)

	err := filepath.WalkDir(root, func(abs string, d fs.DirEntry, err error) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err != nil {
			if abs == root && errors.Is(err, fs.ErrNotExist) {
				return filepath.SkipAll
			}
			return err
		}

		if abs != root && p.ignoredName(d.Name()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		info, ok, err := regularFile(abs, d)
		if err != nil || !ok {
			return err
		}
		rel, err := p.Rel(abs)
		if err != nil {
			return err
		}
		snap[rel] = depgraph.SignatureFromInfo(info)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return snap, nil
}

// regularFile returns the info of the regular file abs names, following a
// symlink the way os.Stat does. Dangling links, links to directories and
// other non-regular files report false. Directories behind links are not
// descended into.
func regularFile(abs string, d fs.DirEntry) (fs.FileInfo, bool, error) {
	if d.Type()&fs.ModeSymlink == 0 {
		if !d.Type().IsRegular() {
			return nil, false, nil
		}
		info, err := d.Info()
		return info, err == nil, err
	}
	info, err := os.Stat(abs)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return nil, false, nil
	case err != nil:
		return nil, false, err
	}
	return info, info.Mode().IsRegular(), nil
}

package handlers

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/albertocavalcante/sitebake/cmd/sitebake/internal/incremental"
)

const mkdirMaxRetries = 5

// publisher writes rendered outputs, skipping writes whose content is
// already in place.
type publisher struct {
	project *incremental.Project
}

// publish writes data to the project-relative path out. With hashed, the
// xxHash64 of data is written next to it with HashSuffix.
func (p *publisher) publish(out string, data []byte, hashed bool) (*incremental.BuildResult, error) {
	outputs := []string{out}
	if hashed {
		outputs = append(outputs, out+HashSuffix)
	}

	sum := incremental.HashBytes(data)
	abs := p.project.Abs(out)
	res := &incremental.BuildResult{}
	if p.current(abs, sum, hashed) {
		res.Reused = outputs
		return res, nil
	}

	if err := mkdirAll(filepath.Dir(abs)); err != nil {
		return nil, err
	}
	if err := writeFileAtomic(abs, data); err != nil {
		return nil, err
	}
	if hashed {
		if err := writeFileAtomic(abs+HashSuffix, []byte(sum)); err != nil {
			return nil, err
		}
	}
	res.Produced = outputs
	return res, nil
}

// current reports whether abs (and its hash file) already hold sum.
func (p *publisher) current(abs, sum string, hashed bool) bool {
	if hashed {
		stored, err := os.ReadFile(abs + HashSuffix)
		if err != nil || strings.TrimSpace(string(stored)) != sum {
			return false
		}
	}
	actual, err := incremental.HashFile(abs)
	return err == nil && actual == sum
}

// readHash returns the published hash of a source file, if any.
func (p *publisher) readHash(rel string) (string, bool) {
	out, ok := p.project.OutputFor(rel)
	if !ok {
		return "", false
	}
	data, err := os.ReadFile(p.project.Abs(out + HashSuffix))
	if err != nil {
		return "", false
	}
	sum := strings.TrimSpace(string(data))
	return sum, sum != ""
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file for %s: %w", path, err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to chmod %s: %w", path, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to rename %s: %w", path, err)
	}
	return nil
}

// mkdirAll creates dir, retrying with exponential backoff when a concurrent
// create or remove races with it.
func mkdirAll(dir string) error {
	op := func() error {
		err := os.MkdirAll(dir, 0o755)
		if err == nil || errors.Is(err, fs.ErrExist) || errors.Is(err, fs.ErrNotExist) {
			return err
		}
		return backoff.Permanent(err)
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 2 * time.Millisecond
	b.MaxInterval = 50 * time.Millisecond
	if err := backoff.Retry(op, backoff.WithMaxRetries(b, mkdirMaxRetries)); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	return nil
}

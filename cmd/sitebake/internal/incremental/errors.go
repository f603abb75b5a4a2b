package incremental

import (
	"errors"
	"fmt"
	"strings"
)

// ErrCyclicDependency is matched by every CyclicDependencyError.
var ErrCyclicDependency = errors.New("cyclic dependency")

// CyclicDependencyError is returned when files remain to be rebuilt but none
// can start and none are in flight.
type CyclicDependencyError struct {
	// Files are the stuck paths, sorted.
	Files []string
}

func (e *CyclicDependencyError) Error() string {
	if e == nil || len(e.Files) == 0 {
		return ErrCyclicDependency.Error()
	}
	return fmt.Sprintf("%s: cannot rebuild %s", ErrCyclicDependency, strings.Join(e.Files, ", "))
}

func (e *CyclicDependencyError) Unwrap() error { return ErrCyclicDependency }

package incremental

import "fmt"

// FileState is the per-pass lifecycle of a source file.
type FileState string

const (
	StateUntouched FileState = "untouched"
	StateDirty     FileState = "dirty"
	StateScheduled FileState = "scheduled"
	StateBuilding  FileState = "building"
	StateDone      FileState = "done"
)

// fileStates tracks FileState per path for one rebuild pass.
type fileStates map[string]FileState

// transition moves path from one state to another, failing if the current
// state is not from or the move is not allowed.
func (s fileStates) transition(path string, from, to FileState) error {
	cur, ok := s[path]
	if !ok {
		cur = StateUntouched
	}
	if cur != from {
		return fmt.Errorf("invalid transition for %q: expected %s, got %s", path, from, cur)
	}
	if !allowedTransition(from, to) {
		return fmt.Errorf("disallowed transition for %q: %s -> %s", path, from, to)
	}
	s[path] = to
	return nil
}

// count returns how many paths are in state st.
func (s fileStates) count(st FileState) int {
	n := 0
	for _, cur := range s {
		if cur == st {
			n++
		}
	}
	return n
}

func allowedTransition(from, to FileState) bool {
	switch from {
	case StateUntouched:
		return to == StateDirty
	case StateDirty:
		return to == StateScheduled
	case StateScheduled:
		return to == StateBuilding
	case StateBuilding:
		return to == StateDone
	default:
		return false
	}
}

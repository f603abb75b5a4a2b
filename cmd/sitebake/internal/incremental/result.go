package incremental

import "context"

// ScanResult is what a processor learns from reading a source file without
// writing anything.
type ScanResult struct {
	// Dependencies are source paths that must be built before this file.
	Dependencies []string `json:"dependencies"`
	// Produces are the output paths a build of this file will write.
	Produces []string `json:"produces"`
}

// BuildResult is what a processor reports after building a source file.
type BuildResult struct {
	// Children are the dependencies discovered during the build. They match
	// what a scan of the same content reports.
	Children []string `json:"children"`
	// Produced are outputs written by this build.
	Produced []string `json:"produced"`
	// Reused are outputs left in place because their content already matched.
	Reused []string `json:"reused"`
}

// Outputs returns Produced followed by Reused.
func (r *BuildResult) Outputs() []string {
	if r == nil {
		return nil
	}
	out := make([]string, 0, len(r.Produced)+len(r.Reused))
	out = append(out, r.Produced...)
	return append(out, r.Reused...)
}

// Processor scans and builds individual source files. Paths are
// project-relative.
//
// Implementations must be deterministic for a given file content, and safe
// for concurrent calls on distinct paths. The engine never runs two builds
// that claim the same output at once.
type Processor interface {
	ScanFile(ctx context.Context, relpath string) (*ScanResult, error)
	BuildFile(ctx context.Context, relpath string) (*BuildResult, error)
}

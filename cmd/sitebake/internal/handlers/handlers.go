// Package handlers provides the default per-filetype processors for
// sitebake: an ordered dispatch table that routes each source file to the
// HTML, CSS, JavaScript, hashed-asset or plain-copy handler.
package handlers

import (
	"context"

	"github.com/albertocavalcante/sitebake/cmd/sitebake/internal/incremental"
)

// Handler scans and builds one kind of source file. src is the file's
// current content; rel is its project-relative path.
type Handler interface {
	Scan(ctx context.Context, rel string, src []byte) (*incremental.ScanResult, error)
	Build(ctx context.Context, rel string, src []byte) (*incremental.BuildResult, error)
}

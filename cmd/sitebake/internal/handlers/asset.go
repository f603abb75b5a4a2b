package handlers

import (
	"context"
	"fmt"

	"github.com/albertocavalcante/sitebake/cmd/sitebake/internal/incremental"
)

// assetHandler publishes files verbatim. Hashed assets also get a .hash
// sibling so pages can cache-bust them.
type assetHandler struct {
	name    string
	project *incremental.Project
	pub     *publisher
	hashed  bool
}

func (h *assetHandler) Scan(_ context.Context, rel string, _ []byte) (*incremental.ScanResult, error) {
	out, err := h.output(rel)
	if err != nil {
		return nil, err
	}
	produces := []string{out}
	if h.hashed {
		produces = append(produces, out+HashSuffix)
	}
	return &incremental.ScanResult{Produces: produces}, nil
}

func (h *assetHandler) Build(_ context.Context, rel string, src []byte) (*incremental.BuildResult, error) {
	out, err := h.output(rel)
	if err != nil {
		return nil, err
	}
	res, err := h.pub.publish(out, src, h.hashed)
	if err != nil {
		return nil, fmt.Errorf("%s: %s: %w", h.name, rel, err)
	}
	return res, nil
}

func (h *assetHandler) output(rel string) (string, error) {
	out, ok := h.project.OutputFor(rel)
	if !ok {
		return "", fmt.Errorf("%s: %s: not under %s", h.name, rel, h.project.SourceDir)
	}
	return out, nil
}

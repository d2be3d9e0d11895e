package backend

import (
	"path"
	"strings"

	"github.com/vk/taproot/internal/pipeline"
	"github.com/vk/taproot/internal/step"
)

// artifactPath is the forward-slash location of a step's artifact directory
// below the configured data directory. Generated documents always use POSIX
// paths regardless of the generating host.
func artifactPath(dataDir string, d *step.Definition) string {
	return path.Join(dataDir, d.Name())
}

// runCommand renders the CLI call that executes one step inside a generated
// pipeline, with its inputs wired to the producers' artifact locations. All
// backends share this derivation so the same graph yields the same commands
// everywhere.
func runCommand(r *pipeline.Resolved, d *step.Definition, dataDir string, middlewares []string) string {
	parts := []string{"taproot", "run", d.Name()}
	for _, dep := range r.Dependencies(d) {
		parts = append(parts, "--input", artifactPath(dataDir, dep))
	}
	parts = append(parts, "--output", artifactPath(dataDir, d))
	if len(middlewares) > 0 {
		parts = append(parts, "--middlewares", strings.Join(middlewares, ","))
	}
	return strings.Join(parts, " ")
}

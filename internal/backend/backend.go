// Package backend turns a resolved step graph into target-specific
// declarative artifacts. Every emitter is a pure projection: the same graph
// and configuration always render byte-identical text, and nothing is
// emitted at all when configuration is invalid — generation is
// all-or-nothing.
package backend

import (
	"fmt"

	"github.com/vk/taproot/internal/pipeline"
)

// Backend renders one orchestrator format.
type Backend interface {
	// Name is the identifier the CLI selects the backend by.
	Name() string
	// Generate walks the resolved graph in canonical order and returns the
	// serialized artifact text.
	Generate(r *pipeline.Resolved) (string, error)
}

// ConfigError reports configuration a backend required but was not given,
// or configuration that failed validation. It surfaces before any artifact
// text is produced.
type ConfigError struct {
	Backend string
	Reason  string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return fmt.Sprintf("backend %q: %s", e.Backend, e.Reason)
}

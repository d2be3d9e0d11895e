package backend

import (
	"github.com/vk/taproot/internal/pipeline"
)

// DVCConfig configures the local reproducible-pipeline emitter. Every field
// has a usable default; the DVC backend works without any values file.
type DVCConfig struct {
	// DataDir is the root of all stage artifact directories.
	DataDir string `yaml:"dataDir"`
	// Middlewares are forwarded to each stage's run command.
	Middlewares []string `yaml:"middlewares"`
}

// DVC renders a dvc.yaml stage list: one stage per step, named after it,
// with deps pointing at the producers' outs. Stages appear in the canonical
// topological order so repeated generations diff cleanly.
type DVC struct {
	cfg DVCConfig
}

// NewDVC builds the emitter from merged values (section "dvc").
func NewDVC(v Values) (*DVC, error) {
	cfg := DVCConfig{DataDir: "data"}
	if err := v.DecodeSection("dvc", &cfg); err != nil {
		return nil, &ConfigError{Backend: "dvc", Reason: err.Error()}
	}
	if cfg.DataDir == "" {
		cfg.DataDir = "data"
	}
	return &DVC{cfg: cfg}, nil
}

// Name implements Backend.
func (b *DVC) Name() string { return "dvc" }

// Generate implements Backend.
func (b *DVC) Generate(r *pipeline.Resolved) (string, error) {
	stages := newOrderedMap()
	for _, d := range r.Steps() {
		stage := newOrderedMap()
		stage.set("cmd", runCommand(r, d, b.cfg.DataDir, b.cfg.Middlewares))

		var deps []string
		for _, dep := range r.Dependencies(d) {
			deps = append(deps, artifactPath(b.cfg.DataDir, dep))
		}
		if len(deps) > 0 {
			stage.set("deps", deps)
		}
		stage.set("outs", []string{artifactPath(b.cfg.DataDir, d)})
		if d.IsSource() {
			// Sources have no tracked deps, so DVC must re-run them on
			// every repro to pick up upstream data changes.
			stage.set("always_changed", true)
		}
		stages.set(d.Name(), stage)
	}

	root := newOrderedMap().set("stages", stages)
	return marshalDocument(root)
}

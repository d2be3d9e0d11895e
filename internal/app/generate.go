package app

import (
	"context"
	"fmt"
	"os"

	"github.com/vk/taproot/internal/backend"
	"github.com/vk/taproot/internal/pipefile"
)

// GenerateConfig selects a pipeline, a backend, and the values files that
// configure the emission.
type GenerateConfig struct {
	Pipefile string
	Pipeline string
	Backend  string
	Values   []string
	// OutputPath receives the artifact; empty means stdout.
	OutputPath string
}

// Generate renders the pipeline as a backend artifact. Nothing is written
// when configuration or resolution fails.
func (a *App) Generate(ctx context.Context, cfg GenerateConfig) error {
	pipelines, err := pipefile.Load(cfg.Pipefile, a.registry)
	if err != nil {
		return err
	}
	p, err := pipefile.Select(pipelines, cfg.Pipeline)
	if err != nil {
		return err
	}
	resolved, err := p.Graph.Resolve(p.Terminal)
	if err != nil {
		return err
	}

	values, err := backend.LoadValues(cfg.Values)
	if err != nil {
		return err
	}
	b, err := a.registry.NewBackend(cfg.Backend, values)
	if err != nil {
		return err
	}
	text, err := b.Generate(resolved)
	if err != nil {
		return err
	}

	if cfg.OutputPath == "" {
		fmt.Fprint(a.out, text)
		return nil
	}
	if err := os.WriteFile(cfg.OutputPath, []byte(text), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", cfg.OutputPath, err)
	}
	a.logger.Info("artifact written", "backend", b.Name(), "path", cfg.OutputPath)
	return nil
}

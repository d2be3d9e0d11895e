package app

import (
	"context"
	"fmt"

	"github.com/vk/taproot/internal/ctxlog"
	"github.com/vk/taproot/internal/executor"
	"github.com/vk/taproot/internal/middleware"
	"github.com/vk/taproot/internal/pipefile"
)

// RunConfig carries everything a single step execution needs.
type RunConfig struct {
	Pipefile    string
	Pipeline    string
	Step        string
	Inputs      []string
	Output      string
	Middlewares []string
	EnvFiles    []string
	Permissive  bool
	FlushSize   int
	RunID       string
	DataDir     string
}

// RunStep executes one step of a pipeline against the current environment
// snapshot and reports what it did.
func (a *App) RunStep(ctx context.Context, cfg RunConfig) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)

	pipelines, err := pipefile.Load(cfg.Pipefile, a.registry)
	if err != nil {
		return err
	}
	p, err := pipefile.Select(pipelines, cfg.Pipeline)
	if err != nil {
		return err
	}
	d, ok := p.Graph.Lookup(cfg.Step)
	if !ok {
		return fmt.Errorf("pipeline %q has no step %q", p.Name, cfg.Step)
	}

	env, err := loadEnvironment(cfg.EnvFiles)
	if err != nil {
		return err
	}

	chain := middleware.NewChain()
	for _, name := range cfg.Middlewares {
		mw, err := a.registry.NewMiddleware(name, env)
		if err != nil {
			return err
		}
		chain = chain.Append(mw)
	}

	output := cfg.Output
	if output == "" {
		dataDir := cfg.DataDir
		if dataDir == "" {
			dataDir = "data"
		}
		output = d.OutputDir(dataDir)
	}

	opts := []executor.Option{
		executor.WithEnvironment(env),
		executor.WithMiddlewares(chain),
	}
	if cfg.Permissive {
		opts = append(opts, executor.WithPermissiveSettings())
	}
	if cfg.FlushSize > 0 {
		opts = append(opts, executor.WithFlushSize(cfg.FlushSize))
	}
	if cfg.RunID != "" {
		opts = append(opts, executor.WithRunID(cfg.RunID))
	}

	report, err := executor.New(opts...).Run(ctx, d, cfg.Inputs, output)
	if err != nil {
		return err
	}
	a.logger.Info("step finished",
		"step", report.Step,
		"run_id", report.RunID,
		"items", report.Items,
		"files", report.Files,
		"output", output,
	)
	return nil
}

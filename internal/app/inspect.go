package app

import (
	"context"
	"fmt"

	"github.com/vk/taproot/internal/inspect"
	"github.com/vk/taproot/internal/pipefile"
)

// InspectConfig selects a pipeline and the inspection mode.
type InspectConfig struct {
	Pipefile string
	Pipeline string
	// Step restricts inspection to one step; empty covers the whole
	// pipeline.
	Step     string
	EnvFiles []string
	// Validate switches from rendering an env template to checking the
	// environment against the pipeline's requirements.
	Validate bool
}

// ValidationError reports an environment that cannot satisfy a pipeline.
type ValidationError struct {
	Issues []inspect.Issue
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("environment is missing %d required variables", len(e.Issues))
}

// MissingVars lists the absent variable names, one per issue.
func (e *ValidationError) MissingVars() []string {
	vars := make([]string, len(e.Issues))
	for i, issue := range e.Issues {
		vars[i] = issue.Var
	}
	return vars
}

// Inspect prints an env-file template for the pipeline, or validates the
// environment against it when cfg.Validate is set.
func (a *App) Inspect(ctx context.Context, cfg InspectConfig) error {
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
	reqs, err := inspect.Collect(resolved)
	if err != nil {
		return err
	}
	if cfg.Step != "" {
		var filtered []inspect.StepRequirements
		for _, req := range reqs {
			if req.Step == cfg.Step {
				filtered = append(filtered, req)
			}
		}
		if len(filtered) == 0 {
			return fmt.Errorf("pipeline %q has no step %q", p.Name, cfg.Step)
		}
		reqs = filtered
	}

	if !cfg.Validate {
		fmt.Fprint(a.out, inspect.RenderEnvTemplate(reqs))
		return nil
	}

	env, err := loadEnvironment(cfg.EnvFiles)
	if err != nil {
		return err
	}
	issues := inspect.Validate(reqs, env)
	if len(issues) == 0 {
		fmt.Fprintf(a.out, "ok: environment satisfies pipeline %q\n", p.Name)
		return nil
	}
	for _, issue := range issues {
		fmt.Fprintln(a.out, issue)
	}
	return &ValidationError{Issues: issues}
}

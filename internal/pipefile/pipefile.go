// Package pipefile loads pipeline definitions from HCL files. A pipefile
// names registered step definitions and wires them, so the same compiled
// binary can serve several pipeline shapes without code changes.
package pipefile

import (
	"fmt"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"

	"github.com/vk/taproot/internal/pipeline"
	"github.com/vk/taproot/internal/registry"
	"github.com/vk/taproot/internal/step"
)

// Pipeline is one loaded pipeline block: a built graph plus the terminal
// step generation and execution start from.
type Pipeline struct {
	Name     string
	Graph    *pipeline.Graph
	Terminal *step.Definition
}

type hclFile struct {
	Pipelines []*hclPipeline `hcl:"pipeline,block"`
}

type hclPipeline struct {
	Name  string     `hcl:"name,label"`
	Steps []*hclStep `hcl:"step,block"`
}

type hclStep struct {
	Name  string   `hcl:"name,label"`
	Uses  string   `hcl:"uses"`
	After []string `hcl:"after,optional"`
}

// Load parses one pipefile and builds every pipeline block in it against
// the registry. Step instances are copies of the registered definitions
// renamed to their block labels, so one definition can appear several
// times in a pipeline under different names and settings prefixes.
func Load(path string, reg *registry.Registry) ([]*Pipeline, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("parse %s: %w", path, diags)
	}

	var parsed hclFile
	if diags := gohcl.DecodeBody(file.Body, nil, &parsed); diags.HasErrors() {
		return nil, fmt.Errorf("decode %s: %w", path, diags)
	}
	if len(parsed.Pipelines) == 0 {
		return nil, fmt.Errorf("%s: no pipeline blocks", path)
	}

	pipelines := make([]*Pipeline, 0, len(parsed.Pipelines))
	for _, block := range parsed.Pipelines {
		p, err := build(block, reg)
		if err != nil {
			return nil, fmt.Errorf("pipeline %q: %w", block.Name, err)
		}
		pipelines = append(pipelines, p)
	}
	return pipelines, nil
}

// Select picks a pipeline by name, or the only one when name is empty.
func Select(pipelines []*Pipeline, name string) (*Pipeline, error) {
	if name == "" {
		if len(pipelines) == 1 {
			return pipelines[0], nil
		}
		names := make([]string, len(pipelines))
		for i, p := range pipelines {
			names[i] = p.Name
		}
		return nil, fmt.Errorf("pipefile defines %d pipelines %v, pick one with --pipeline", len(pipelines), names)
	}
	for _, p := range pipelines {
		if p.Name == name {
			return p, nil
		}
	}
	return nil, fmt.Errorf("no pipeline named %q in pipefile", name)
}

func build(block *hclPipeline, reg *registry.Registry) (*Pipeline, error) {
	if len(block.Steps) == 0 {
		return nil, fmt.Errorf("no step blocks")
	}

	g := pipeline.New()
	instances := make(map[string]*step.Definition, len(block.Steps))
	for _, sb := range block.Steps {
		base, ok := reg.Step(sb.Uses)
		if !ok {
			return nil, &registry.UnknownError{Kind: "step", Name: sb.Uses, Known: reg.StepNames()}
		}
		if _, dup := instances[sb.Name]; dup {
			return nil, fmt.Errorf("step %q declared twice", sb.Name)
		}
		inst := base.Renamed(sb.Name)
		if _, err := g.Start(inst); err != nil {
			return nil, err
		}
		instances[sb.Name] = inst
	}

	// Edges in file order keeps the canonical execution order stable
	// across regenerations of the same pipefile.
	for _, sb := range block.Steps {
		for _, dep := range sb.After {
			producer, ok := instances[dep]
			if !ok {
				return nil, fmt.Errorf("step %q depends on undeclared step %q", sb.Name, dep)
			}
			if _, err := g.Connect(producer, instances[sb.Name]); err != nil {
				return nil, err
			}
		}
	}

	terminal, err := findTerminal(block, instances)
	if err != nil {
		return nil, err
	}
	return &Pipeline{Name: block.Name, Graph: g, Terminal: terminal}, nil
}

// findTerminal returns the unique step nothing depends on. More than one
// sink means the file's intent is ambiguous and must be fixed there, not
// guessed here.
func findTerminal(block *hclPipeline, instances map[string]*step.Definition) (*step.Definition, error) {
	hasDependent := make(map[string]bool, len(instances))
	for _, sb := range block.Steps {
		for _, dep := range sb.After {
			hasDependent[dep] = true
		}
	}
	var sinks []string
	for _, sb := range block.Steps {
		if !hasDependent[sb.Name] {
			sinks = append(sinks, sb.Name)
		}
	}
	if len(sinks) != 1 {
		return nil, fmt.Errorf("pipeline must have exactly one terminal step, found %v", sinks)
	}
	return instances[sinks[0]], nil
}

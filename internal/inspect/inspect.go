// Package inspect answers "what does this pipeline need from its
// environment" without executing anything: it enumerates the settings
// variables of every step in a resolved graph, renders an env-file
// template for them, and checks an environment snapshot against them.
package inspect

import (
	"fmt"
	"sort"
	"strings"

	"github.com/vk/taproot/internal/pipeline"
	"github.com/vk/taproot/internal/settings"
)

// StepRequirements groups the variable specs of one step.
type StepRequirements struct {
	Step string
	Vars []settings.VarSpec
}

// Collect walks the resolved graph in canonical order and gathers each
// step's settings variables. Steps without a settings schema appear with an
// empty Vars list so the rendered template still names them.
func Collect(r *pipeline.Resolved) ([]StepRequirements, error) {
	var reqs []StepRequirements
	for _, d := range r.Steps() {
		vars, err := settings.RequiredVariables(d)
		if err != nil {
			return nil, fmt.Errorf("inspect step %q: %w", d.Name(), err)
		}
		reqs = append(reqs, StepRequirements{Step: d.Name(), Vars: vars})
	}
	return reqs, nil
}

// RenderEnvTemplate renders requirements as an env-file skeleton:
// required variables first with empty values, optional ones after,
// pre-filled with their defaults. Secret values are never pre-filled.
func RenderEnvTemplate(reqs []StepRequirements) string {
	var b strings.Builder
	for i, req := range reqs {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "# step: %s\n", req.Step)
		if len(req.Vars) == 0 {
			b.WriteString("# no settings\n")
			continue
		}

		var required, optional []settings.VarSpec
		for _, v := range req.Vars {
			if v.Required {
				required = append(required, v)
			} else {
				optional = append(optional, v)
			}
		}
		if len(required) > 0 {
			b.WriteString("# Required\n")
			for _, v := range required {
				writeVar(&b, v, "")
			}
		}
		if len(optional) > 0 {
			b.WriteString("# Optional\n")
			for _, v := range optional {
				value := v.Default
				if v.Secret {
					value = ""
				}
				writeVar(&b, v, value)
			}
		}
	}
	return b.String()
}

func writeVar(b *strings.Builder, v settings.VarSpec, value string) {
	if v.Description != "" {
		fmt.Fprintf(b, "# %s\n", v.Description)
	}
	if v.Secret {
		b.WriteString("# secret\n")
	}
	fmt.Fprintf(b, "%s=%s\n", v.Name, value)
}

// Issue is one problem Validate found.
type Issue struct {
	Step string
	Var  string
}

func (i Issue) String() string {
	return fmt.Sprintf("step %s: missing required variable %s", i.Step, i.Var)
}

// Validate reports every required variable the environment does not
// provide, in a stable order. An empty slice means the pipeline can run
// against this environment.
func Validate(reqs []StepRequirements, env settings.Environment) []Issue {
	var issues []Issue
	for _, req := range reqs {
		for _, v := range req.Vars {
			if !v.Required {
				continue
			}
			if _, ok := env.Lookup(v.Name); !ok {
				issues = append(issues, Issue{Step: req.Step, Var: v.Name})
			}
		}
	}
	sort.Slice(issues, func(a, b int) bool {
		if issues[a].Step != issues[b].Step {
			return issues[a].Step < issues[b].Step
		}
		return issues[a].Var < issues[b].Var
	})
	return issues
}

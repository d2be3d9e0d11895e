package pipefile

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/taproot/internal/contract"
	"github.com/vk/taproot/internal/registry"
	"github.com/vk/taproot/internal/step"
)

type doc struct {
	ID string `cty:"id" json:"id"`
}

var docsContract = contract.MustJSON[[]doc]("docs")

func run(ctx context.Context, req *step.Request) (any, error) { return nil, nil }

func testRegistry() *registry.Registry {
	reg := registry.New()
	reg.RegisterStep(step.MustNew("Fetch", docsContract, run))
	reg.RegisterStep(step.MustNew("Transform", docsContract, run, step.WithInput(docsContract)))
	return reg
}

func writePipefile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pipeline.hcl")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_BuildsGraph(t *testing.T) {
	t.Parallel()

	path := writePipefile(t, `
pipeline "docs" {
  step "fetch" {
    uses = "Fetch"
  }
  step "clean" {
    uses  = "Transform"
    after = ["fetch"]
  }
  step "dedupe" {
    uses  = "Transform"
    after = ["clean"]
  }
}
`)
	pipelines, err := Load(path, testRegistry())
	require.NoError(t, err)
	require.Len(t, pipelines, 1)

	p := pipelines[0]
	assert.Equal(t, "docs", p.Name)
	assert.Equal(t, "dedupe", p.Terminal.Name())
	assert.Len(t, p.Graph.Steps(), 3)
	assert.Len(t, p.Graph.Edges(), 2)

	// The same definition serves two instances under distinct names.
	clean, ok := p.Graph.Lookup("clean")
	require.True(t, ok)
	dedupe, ok := p.Graph.Lookup("dedupe")
	require.True(t, ok)
	assert.NotSame(t, clean, dedupe)
}

func TestLoad_UnknownStepType(t *testing.T) {
	t.Parallel()

	path := writePipefile(t, `
pipeline "docs" {
  step "fetch" {
    uses = "Nope"
  }
}
`)
	_, err := Load(path, testRegistry())
	var unknown *registry.UnknownError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "Nope", unknown.Name)
}

func TestLoad_UndeclaredDependency(t *testing.T) {
	t.Parallel()

	path := writePipefile(t, `
pipeline "docs" {
  step "clean" {
    uses  = "Transform"
    after = ["ghost"]
  }
}
`)
	_, err := Load(path, testRegistry())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ghost")
}

func TestLoad_AmbiguousTerminal(t *testing.T) {
	t.Parallel()

	path := writePipefile(t, `
pipeline "docs" {
  step "fetch" {
    uses = "Fetch"
  }
  step "a" {
    uses  = "Transform"
    after = ["fetch"]
  }
  step "b" {
    uses  = "Transform"
    after = ["fetch"]
  }
}
`)
	_, err := Load(path, testRegistry())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "terminal")
}

func TestLoad_SyntaxError(t *testing.T) {
	t.Parallel()

	path := writePipefile(t, `pipeline "docs" {`)
	_, err := Load(path, testRegistry())
	require.Error(t, err)
}

func TestSelect(t *testing.T) {
	t.Parallel()

	path := writePipefile(t, `
pipeline "one" {
  step "fetch" {
    uses = "Fetch"
  }
}

pipeline "two" {
  step "fetch" {
    uses = "Fetch"
  }
}
`)
	pipelines, err := Load(path, testRegistry())
	require.NoError(t, err)
	require.Len(t, pipelines, 2)

	p, err := Select(pipelines, "two")
	require.NoError(t, err)
	assert.Equal(t, "two", p.Name)

	_, err = Select(pipelines, "")
	require.Error(t, err)

	_, err = Select(pipelines, "three")
	require.Error(t, err)
}

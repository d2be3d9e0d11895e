package app

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/taproot/internal/contract"
	"github.com/vk/taproot/internal/step"
)

type doc struct {
	ID string `cty:"id" json:"id"`
}

type fetchSettings struct {
	URL   string `desc:"endpoint to pull from"`
	Limit int    `default:"5"`
}

var docsContract = contract.MustJSON[[]doc]("docs")

func testApp(t *testing.T) (*App, *bytes.Buffer) {
	t.Helper()
	reg := DefaultRegistry()
	reg.RegisterStep(step.MustNew("Fetch", docsContract,
		func(ctx context.Context, req *step.Request) (any, error) {
			cfg := req.Settings.(*fetchSettings)
			for i := 0; i < cfg.Limit; i++ {
				if err := req.Emit(doc{ID: cfg.URL}); err != nil {
					return nil, err
				}
			}
			return nil, nil
		},
		step.WithSettings(func() any { return &fetchSettings{} })))
	reg.RegisterStep(step.MustNew("Transform", docsContract,
		func(ctx context.Context, req *step.Request) (any, error) {
			return req.Input, nil
		},
		step.WithInput(docsContract)))

	var out bytes.Buffer
	a, err := New(&out, os.Stderr, "error", "text", reg)
	require.NoError(t, err)
	return a, &out
}

func TestNew_RejectsInvalidLoggerSettings(t *testing.T) {
	t.Parallel()

	_, err := New(os.Stdout, os.Stderr, "loud", "text", DefaultRegistry())
	require.EqualError(t, err, `unknown log level "loud" (expected debug, info, warn or error)`)

	_, err = New(os.Stdout, os.Stderr, "info", "xml", DefaultRegistry())
	require.EqualError(t, err, `unknown log format "xml" (expected text or json)`)
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func testPipefile(t *testing.T, dir string) string {
	t.Helper()
	return writeFile(t, dir, "pipeline.hcl", `
pipeline "docs" {
  step "fetch" {
    uses = "Fetch"
  }
  step "clean" {
    uses  = "Transform"
    after = ["fetch"]
  }
}
`)
}

func TestGenerate_WritesArtifact(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	a, _ := testApp(t)
	values := writeFile(t, dir, "values.yaml", "dvc:\n  dataDir: artifacts\n")
	outPath := filepath.Join(dir, "dvc.yaml")

	err := a.Generate(context.Background(), GenerateConfig{
		Pipefile:   testPipefile(t, dir),
		Backend:    "dvc",
		Values:     []string{values},
		OutputPath: outPath,
	})
	require.NoError(t, err)

	data, err := os.ReadFile(outPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "taproot run fetch --output artifacts/fetch")
}

func TestGenerate_ToStdout(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	a, out := testApp(t)

	err := a.Generate(context.Background(), GenerateConfig{
		Pipefile: testPipefile(t, dir),
		Backend:  "dvc",
	})
	require.NoError(t, err)
	assert.Contains(t, out.String(), "stages:")
}

func TestInspect_RendersTemplate(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	a, out := testApp(t)

	err := a.Inspect(context.Background(), InspectConfig{Pipefile: testPipefile(t, dir)})
	require.NoError(t, err)
	assert.Contains(t, out.String(), "FETCH__URL=")
	assert.Contains(t, out.String(), "FETCH__LIMIT=5")
}

func TestInspect_StepFilter(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	a, out := testApp(t)

	err := a.Inspect(context.Background(), InspectConfig{
		Pipefile: testPipefile(t, dir),
		Step:     "fetch",
	})
	require.NoError(t, err)
	assert.Contains(t, out.String(), "# step: fetch")
	assert.NotContains(t, out.String(), "# step: clean")

	err = a.Inspect(context.Background(), InspectConfig{
		Pipefile: testPipefile(t, dir),
		Step:     "ghost",
	})
	require.Error(t, err)
}

func TestInspect_ValidateWithEnvFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	a, out := testApp(t)
	envFile := writeFile(t, dir, "step.env", "FETCH__URL=https://example.com\n")

	err := a.Inspect(context.Background(), InspectConfig{
		Pipefile: testPipefile(t, dir),
		EnvFiles: []string{envFile},
		Validate: true,
	})
	require.NoError(t, err)
	assert.Contains(t, out.String(), "ok:")
}

func TestInspect_ValidateReportsMissing(t *testing.T) {
	dir := t.TempDir()
	a, out := testApp(t)
	require.NoError(t, os.Unsetenv("FETCH__URL"))

	err := a.Inspect(context.Background(), InspectConfig{
		Pipefile: testPipefile(t, dir),
		Validate: true,
	})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, []string{"FETCH__URL"}, verr.MissingVars())
	assert.Contains(t, out.String(), "FETCH__URL")
}

func TestRunStep_EndToEnd(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	a, _ := testApp(t)
	envFile := writeFile(t, dir, "step.env", "FETCH__URL=https://example.com\nFETCH__LIMIT=3\n")
	outDir := filepath.Join(dir, "out")

	err := a.RunStep(context.Background(), RunConfig{
		Pipefile:    testPipefile(t, dir),
		Step:        "fetch",
		Output:      outDir,
		EnvFiles:    []string{envFile},
		Middlewares: []string{"timing"},
		RunID:       "test-run",
	})
	require.NoError(t, err)

	entries, err := os.ReadDir(outDir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.Contains(t, names, "fetch_batch0000.json")
	assert.Contains(t, names, ".history")
}

func TestRunStep_UnknownStep(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	a, _ := testApp(t)

	err := a.RunStep(context.Background(), RunConfig{
		Pipefile: testPipefile(t, dir),
		Step:     "missing",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing")
}

func TestRunStep_UnknownMiddleware(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	a, _ := testApp(t)

	err := a.RunStep(context.Background(), RunConfig{
		Pipefile:    testPipefile(t, dir),
		Step:        "fetch",
		Middlewares: []string{"nope"},
	})
	require.Error(t, err)
}

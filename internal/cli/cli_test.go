package cli

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/taproot/internal/app"
	"github.com/vk/taproot/internal/backend"
	"github.com/vk/taproot/internal/contract"
	"github.com/vk/taproot/internal/executor"
	"github.com/vk/taproot/internal/pipeline"
	"github.com/vk/taproot/internal/registry"
	"github.com/vk/taproot/internal/settings"
	"github.com/vk/taproot/internal/step"
)

type doc struct {
	ID string `cty:"id" json:"id"`
}

var docsContract = contract.MustJSON[[]doc]("docs")

func testRegistry() *registry.Registry {
	reg := app.DefaultRegistry()
	reg.RegisterStep(step.MustNew("Fetch", docsContract,
		func(ctx context.Context, req *step.Request) (any, error) {
			if err := req.Emit(doc{ID: "1"}); err != nil {
				return nil, err
			}
			return nil, nil
		}))
	reg.RegisterStep(step.MustNew("Transform", docsContract,
		func(ctx context.Context, req *step.Request) (any, error) {
			return req.Input, nil
		},
		step.WithInput(docsContract)))
	return reg
}

func writePipefile(t *testing.T) string {
	t.Helper()
	content := `
pipeline "docs" {
  step "fetch" {
    uses = "Fetch"
  }
  step "clean" {
    uses  = "Transform"
    after = ["fetch"]
  }
}
`
	path := filepath.Join(t.TempDir(), "pipeline.hcl")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func dispatch(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	err := Run(context.Background(), &out, &errOut, args, testRegistry())
	return out.String(), err
}

func TestRun_Help(t *testing.T) {
	t.Parallel()

	for _, args := range [][]string{nil, {"-h"}, {"help"}} {
		out, err := dispatch(t, args...)
		require.NoError(t, err)
		assert.Contains(t, out, "Usage:")
		assert.Contains(t, out, "generate")
	}
}

func TestRun_UnknownCommand(t *testing.T) {
	t.Parallel()

	_, err := dispatch(t, "frobnicate")
	var exitErr *ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, ExitUsage, exitErr.Code)
}

func TestRun_ListCommands(t *testing.T) {
	t.Parallel()

	out, err := dispatch(t, "backends")
	require.NoError(t, err)
	assert.Equal(t, "argo\ndvc\ngitlab\n", out)

	out, err = dispatch(t, "middlewares")
	require.NoError(t, err)
	assert.Equal(t, "prometheus\ntiming\n", out)
}

func TestRun_RunRequiresStepArgument(t *testing.T) {
	t.Parallel()

	_, err := dispatch(t, "run")
	var exitErr *ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, ExitUsage, exitErr.Code)
}

func TestRun_GenerateRequiresBackendArgument(t *testing.T) {
	t.Parallel()

	_, err := dispatch(t, "generate")
	var exitErr *ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, ExitUsage, exitErr.Code)
}

func TestRun_UnknownFlag(t *testing.T) {
	t.Parallel()

	_, err := dispatch(t, "inspect", "--bogus")
	var exitErr *ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, ExitUsage, exitErr.Code)
}

func TestRun_InvalidLogLevel(t *testing.T) {
	t.Parallel()

	_, err := dispatch(t, "inspect", "--pipefile", writePipefile(t), "--log-level", "loud")
	var exitErr *ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, ExitUsage, exitErr.Code)
	assert.Contains(t, exitErr.Message, `unknown log level "loud"`)
}

func TestRun_GenerateEndToEnd(t *testing.T) {
	t.Parallel()

	out, err := dispatch(t, "generate", "dvc", "--pipefile", writePipefile(t))
	require.NoError(t, err)
	assert.Contains(t, out, "stages:")
	assert.Contains(t, out, "taproot run fetch --output data/fetch")
	assert.Contains(t, out, "taproot run clean --input data/fetch --output data/clean")
}

func TestRun_InspectEndToEnd(t *testing.T) {
	t.Parallel()

	out, err := dispatch(t, "inspect", "--pipefile", writePipefile(t))
	require.NoError(t, err)
	assert.Contains(t, out, "# step: fetch")
	assert.Contains(t, out, "# step: clean")
}

func TestExitCode(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitOK},
		{"exit error", &ExitError{Code: 2, Message: "usage"}, ExitUsage},
		{"contract mismatch", &contract.MismatchError{}, ExitGraph},
		{"contract failure", &contract.Error{Step: "Clean"}, ExitGraph},
		{"cycle", &pipeline.CyclicGraphError{Step: "A"}, ExitGraph},
		{"duplicate", &pipeline.DuplicateStepError{Name: "A"}, ExitGraph},
		{"unsatisfied", &pipeline.UnsatisfiedInputError{Step: "B"}, ExitGraph},
		{"missing settings", &settings.MissingSettingError{Vars: []string{"X"}}, ExitSettings},
		{"validation", &app.ValidationError{}, ExitSettings},
		{"step failed", &executor.StepFailedError{Step: "A"}, ExitExecution},
		{"backend config", &backend.ConfigError{Backend: "argo"}, ExitBackend},
		{"values", &backend.ValuesError{Path: "v.yaml"}, ExitBackend},
		{"unknown name", &registry.UnknownError{Kind: "backend"}, ExitUsage},
		{"plain error", errors.New("boom"), 1},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, ExitCode(tc.err))
		})
	}
}

func TestExitCode_Wrapped(t *testing.T) {
	t.Parallel()

	err := &executor.StepFailedError{Step: "Fetch", Err: errors.New("boom")}
	assert.Equal(t, ExitExecution, ExitCode(errorsWrap(err)))
}

func errorsWrap(err error) error {
	return &wrapped{err: err}
}

type wrapped struct{ err error }

func (w *wrapped) Error() string { return "wrapped: " + w.err.Error() }

func (w *wrapped) Unwrap() error { return w.err }

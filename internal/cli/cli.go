// Package cli parses command-line arguments, dispatches subcommands, and
// handles process-level concerns like exit codes. It translates CLI flags
// into the application's internal configuration.
package cli

import (
	"context"
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/vk/taproot/internal/app"
	"github.com/vk/taproot/internal/registry"
)

// ExitError is an error that carries a specific process exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface.
func (e *ExitError) Error() string {
	return e.Message
}

const usageText = `taproot - typed data pipelines with multi-target generation.

Usage:
  taproot <command> [options]

Commands:
  run <step>    Execute one pipeline step
  inspect       Show or validate a pipeline's environment requirements
  generate      Render the pipeline for a target backend
  backends      List registered backends
  middlewares   List registered middlewares

Run 'taproot <command> -h' for command options.
`

// Run dispatches one CLI invocation. Command output goes to outW, logs to
// errW. The returned error is mapped to an exit code by ExitCode.
func Run(ctx context.Context, outW, errW io.Writer, args []string, reg *registry.Registry) error {
	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" || args[0] == "help" {
		fmt.Fprint(outW, usageText)
		return nil
	}

	command, rest := args[0], args[1:]
	switch command {
	case "run":
		return runStep(ctx, outW, errW, rest, reg)
	case "inspect":
		return runInspect(ctx, outW, errW, rest, reg)
	case "generate":
		return runGenerate(ctx, outW, errW, rest, reg)
	case "backends":
		return listNames(outW, reg.BackendNames())
	case "middlewares":
		return listNames(outW, reg.MiddlewareNames())
	default:
		return &ExitError{Code: 2, Message: fmt.Sprintf("unknown command %q\n%s", command, usageText)}
	}
}

func listNames(outW io.Writer, names []string) error {
	for _, name := range names {
		fmt.Fprintln(outW, name)
	}
	return nil
}

// stringList collects a repeatable string flag.
type stringList []string

func (s *stringList) String() string { return strings.Join(*s, ",") }

func (s *stringList) Set(v string) error {
	*s = append(*s, v)
	return nil
}

// commaList splits a comma-separated flag value, dropping empty segments.
func commaList(v string) []string {
	if v == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func newFlagSet(name string, outW io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(outW)
	return fs
}

func parse(fs *flag.FlagSet, args []string) (bool, error) {
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return true, nil
		}
		return false, &ExitError{Code: 2, Message: err.Error()}
	}
	return false, nil
}

func runStep(ctx context.Context, outW, errW io.Writer, args []string, reg *registry.Registry) error {
	if len(args) == 0 || strings.HasPrefix(args[0], "-") {
		return &ExitError{Code: 2, Message: "usage: taproot run <step> [options]"}
	}
	stepName, args := args[0], args[1:]

	fs := newFlagSet("run", outW)
	var inputs, envFiles stringList
	pipefileFlag := fs.String("pipefile", "pipeline.hcl", "Path to the pipeline definition file.")
	pipelineFlag := fs.String("pipeline", "", "Pipeline name when the file defines more than one.")
	outputFlag := fs.String("output", "", "Artifact directory for the step's output.")
	fs.Var(&inputs, "input", "Artifact location of a producer step. Repeatable.")
	fs.Var(&envFiles, "env-file", "Env file overlaid on the process environment. Repeatable.")
	middlewaresFlag := fs.String("middlewares", "", "Comma-separated middleware names.")
	permissiveFlag := fs.Bool("permissive", false, "Tolerate missing settings, using zero values.")
	flushFlag := fs.Int("flush-size", 0, "Batch writer flush threshold. 0 keeps the default.")
	runIDFlag := fs.String("run-id", "", "Run identifier. Generated when empty.")
	dataDirFlag := fs.String("data-dir", "data", "Root of artifact directories when -output is unset.")
	logLevel := fs.String("log-level", "info", "Logging level: debug, info, warn, error.")
	logFormat := fs.String("log-format", "text", "Log output format: text or json.")
	if done, err := parse(fs, args); done || err != nil {
		return err
	}

	a, err := app.New(outW, errW, *logLevel, *logFormat, reg)
	if err != nil {
		return &ExitError{Code: 2, Message: err.Error()}
	}
	return a.RunStep(ctx, app.RunConfig{
		Pipefile:    *pipefileFlag,
		Pipeline:    *pipelineFlag,
		Step:        stepName,
		Inputs:      inputs,
		Output:      *outputFlag,
		Middlewares: commaList(*middlewaresFlag),
		EnvFiles:    envFiles,
		Permissive:  *permissiveFlag,
		FlushSize:   *flushFlag,
		RunID:       *runIDFlag,
		DataDir:     *dataDirFlag,
	})
}

func runInspect(ctx context.Context, outW, errW io.Writer, args []string, reg *registry.Registry) error {
	fs := newFlagSet("inspect", outW)
	var envFiles stringList
	pipefileFlag := fs.String("pipefile", "pipeline.hcl", "Path to the pipeline definition file.")
	pipelineFlag := fs.String("pipeline", "", "Pipeline name when the file defines more than one.")
	stepFlag := fs.String("step", "", "Restrict inspection to one step.")
	validateFlag := fs.Bool("validate", false, "Check the environment instead of rendering a template.")
	fs.Var(&envFiles, "env-file", "Env file overlaid on the process environment. Repeatable.")
	logLevel := fs.String("log-level", "info", "Logging level: debug, info, warn, error.")
	logFormat := fs.String("log-format", "text", "Log output format: text or json.")
	if done, err := parse(fs, args); done || err != nil {
		return err
	}

	a, err := app.New(outW, errW, *logLevel, *logFormat, reg)
	if err != nil {
		return &ExitError{Code: 2, Message: err.Error()}
	}
	return a.Inspect(ctx, app.InspectConfig{
		Pipefile: *pipefileFlag,
		Pipeline: *pipelineFlag,
		Step:     *stepFlag,
		EnvFiles: envFiles,
		Validate: *validateFlag,
	})
}

func runGenerate(ctx context.Context, outW, errW io.Writer, args []string, reg *registry.Registry) error {
	if len(args) == 0 || strings.HasPrefix(args[0], "-") {
		return &ExitError{Code: 2, Message: "usage: taproot generate <backend> [options]"}
	}
	backendName, args := args[0], args[1:]

	fs := newFlagSet("generate", outW)
	var values stringList
	pipefileFlag := fs.String("pipefile", "pipeline.hcl", "Path to the pipeline definition file.")
	pipelineFlag := fs.String("pipeline", "", "Pipeline name when the file defines more than one.")
	fs.Var(&values, "values", "Values file merged into the backend configuration. Repeatable.")
	outFlag := fs.String("o", "", "Write the artifact to this path instead of stdout.")
	logLevel := fs.String("log-level", "info", "Logging level: debug, info, warn, error.")
	logFormat := fs.String("log-format", "text", "Log output format: text or json.")
	if done, err := parse(fs, args); done || err != nil {
		return err
	}

	a, err := app.New(outW, errW, *logLevel, *logFormat, reg)
	if err != nil {
		return &ExitError{Code: 2, Message: err.Error()}
	}
	return a.Generate(ctx, app.GenerateConfig{
		Pipefile:   *pipefileFlag,
		Pipeline:   *pipelineFlag,
		Backend:    backendName,
		Values:     values,
		OutputPath: *outFlag,
	})
}

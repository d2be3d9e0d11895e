// Package executor runs a single step: it loads input artifacts through the
// declared input contract, binds settings from an environment snapshot,
// threads the invocation through the middleware chain, invokes the step, and
// persists output through the output contract. It imposes no parallelism of
// its own; running independent branches concurrently is the external
// orchestrator's job once an artifact has been generated.
package executor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vk/taproot/internal/contract"
	"github.com/vk/taproot/internal/ctxlog"
	"github.com/vk/taproot/internal/middleware"
	"github.com/vk/taproot/internal/settings"
	"github.com/vk/taproot/internal/step"
)

// Report summarizes one executor invocation.
type Report struct {
	Step         string
	RunID        string
	InputsLoaded int
	Items        int
	Files        int
	Load         time.Duration
	Run          time.Duration
	Save         time.Duration
	Skipped      bool
}

// Executor owns the environment snapshot, the settings resolver, and the
// middleware chain for a series of step invocations.
type Executor struct {
	env       settings.Environment
	resolver  settings.Resolver
	chain     *middleware.Chain
	flushSize int
	runID     string
}

// Option configures an Executor.
type Option func(*Executor)

// WithEnvironment replaces the default process-environment snapshot.
func WithEnvironment(env settings.Environment) Option {
	return func(e *Executor) { e.env = env }
}

// WithPermissiveSettings tolerates unknown settings variables and lets
// missing required ones fall back to zero values.
func WithPermissiveSettings() Option {
	return func(e *Executor) { e.resolver.Permissive = true }
}

// WithMiddlewares installs the interception chain, outermost first.
func WithMiddlewares(chain *middleware.Chain) Option {
	return func(e *Executor) { e.chain = chain }
}

// WithFlushSize bounds the batch writer's in-memory item count.
func WithFlushSize(n int) Option {
	return func(e *Executor) { e.flushSize = n }
}

// WithRunID pins the run identifier instead of generating one per run.
func WithRunID(id string) Option {
	return func(e *Executor) { e.runID = id }
}

// New builds an Executor. Without options it snapshots the process
// environment, uses an empty middleware chain and the default flush size.
func New(opts ...Option) *Executor {
	e := &Executor{
		env:       settings.FromOS(),
		chain:     middleware.NewChain(),
		flushSize: contract.DefaultFlushSize,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run executes one step. inputs are the artifact directories produced by the
// step's dependencies; output is the directory this step's artifact is
// written to. Finalize hooks and middleware teardown run best-effort on both
// success and failure paths.
func (e *Executor) Run(ctx context.Context, d *step.Definition, inputs []string, output string) (*Report, error) {
	runID := e.runID
	if runID == "" {
		runID = uuid.NewString()
	}
	logger := ctxlog.FromContext(ctx).With("step", d.Name(), "run_id", runID)
	ctx = ctxlog.WithLogger(ctx, logger)

	bound, err := e.resolver.Bind(d, e.env)
	if err != nil {
		return nil, err
	}

	inv := &middleware.Invocation{
		Step:     d,
		Inputs:   inputs,
		Output:   output,
		RunID:    runID,
		Settings: bound,
	}
	// base reads from inv, not the local variables, so middlewares that
	// rewrite the invocation's inputs, output or settings take effect.
	base := func(ctx context.Context) (*middleware.Result, error) {
		return e.execute(ctx, d, inv.Settings, inv.Inputs, inv.Output)
	}

	if err := e.chain.Setup(ctx); err != nil {
		return nil, err
	}
	res, err := e.chain.Wrap(inv, base)(ctx)

	if terr := e.chain.Teardown(ctx, err); terr != nil {
		logger.Warn("middleware teardown failed", "error", terr)
	}
	if fin := d.Finalize(); fin != nil {
		if ferr := fin(ctx); ferr != nil {
			logger.Warn("finalize hook failed", "error", ferr)
		}
	}
	if err != nil {
		return nil, err
	}
	if res == nil {
		// A middleware short-circuited without a result.
		res = &middleware.Result{Skipped: true}
	}

	return &Report{
		Step:         d.Name(),
		RunID:        runID,
		InputsLoaded: len(inputs),
		Items:        res.Items,
		Files:        res.Files,
		Load:         res.Load,
		Run:          res.Run,
		Save:         res.Save,
		Skipped:      res.Skipped,
	}, nil
}

// execute is the chain's innermost continuation.
func (e *Executor) execute(ctx context.Context, d *step.Definition, bound any, inputs []string, output string) (*middleware.Result, error) {
	res := &middleware.Result{}

	loadStart := time.Now()
	values, crumbs, err := e.loadInputs(d, inputs)
	if err != nil {
		return nil, err
	}
	res.Load = time.Since(loadStart)

	runStart := time.Now()
	writer := contract.NewBatchWriter(d.Output(), output, d.Name(), e.flushSize)
	emitted := false
	emit := func(v any) error {
		emitted = true
		return writer.Append(v)
	}

	var collected []any
	for _, in := range values {
		ret, err := e.invoke(ctx, d, &step.Request{Input: in, Settings: bound, Emit: emit})
		if err != nil {
			return nil, err
		}
		if ret != nil {
			collected = append(collected, ret)
		}
	}
	res.Run = time.Since(runStart)

	if emitted && len(collected) > 0 {
		return nil, &StepFailedError{Step: d.Name(), Err: fmt.Errorf("step both returned a result and emitted items")}
	}

	saveStart := time.Now()
	if emitted {
		if err := writer.Close(); err != nil {
			return nil, err
		}
		res.Items = writer.TotalItems()
		res.Files = writer.FileCount()
	} else {
		items, files, err := e.saveCollected(d, collected, output)
		if err != nil {
			return nil, err
		}
		res.Items = items
		res.Files = files
	}
	if err := writeHistory(output, append(crumbs, d.Name())); err != nil {
		return nil, err
	}
	res.Save = time.Since(saveStart)

	return res, nil
}

// invoke calls the run function with panic containment. Panics and plain
// errors both wrap into StepFailedError carrying the step identity.
func (e *Executor) invoke(ctx context.Context, d *step.Definition, req *step.Request) (ret any, err error) {
	defer func() {
		if r := recover(); r != nil {
			ret = nil
			err = &StepFailedError{Step: d.Name(), Err: fmt.Errorf("panic: %v", r)}
		}
	}()
	ret, err = d.Run()(ctx, req)
	if err != nil {
		return nil, &StepFailedError{Step: d.Name(), Err: err}
	}
	return ret, nil
}

// loadInputs decodes every artifact file under the input locations. For a
// source step it yields a single nil input so the run function is invoked
// exactly once.
func (e *Executor) loadInputs(d *step.Definition, inputs []string) ([]any, []string, error) {
	if d.IsSource() {
		return []any{nil}, nil, nil
	}
	in := d.Input()
	var values []any
	var crumbs []string
	for _, location := range inputs {
		files, err := artifactFiles(location, in.Ext())
		if err != nil {
			return nil, nil, &contract.Error{Step: d.Name(), Err: err}
		}
		for _, file := range files {
			data, err := os.ReadFile(file)
			if err != nil {
				return nil, nil, &contract.Error{Step: d.Name(), Err: err}
			}
			v, err := in.Decode(data)
			if err != nil {
				return nil, nil, &contract.Error{Step: d.Name(), Err: err}
			}
			if err := in.Validate(v); err != nil {
				return nil, nil, &contract.Error{Step: d.Name(), Err: err}
			}
			values = append(values, v)
		}
		hist, err := readHistory(location)
		if err != nil {
			return nil, nil, &contract.Error{Step: d.Name(), Err: err}
		}
		crumbs = mergeHistory(crumbs, hist)
	}
	if len(values) == 0 {
		return nil, nil, &contract.Error{Step: d.Name(), Err: fmt.Errorf("no %s artifacts found under %s", in.Ext(), strings.Join(inputs, ", "))}
	}
	return values, crumbs, nil
}

// saveCollected persists returned (non-emitted) results as one artifact.
// A single result is stored as-is; multiple results aggregate into a list.
func (e *Executor) saveCollected(d *step.Definition, collected []any, output string) (int, int, error) {
	out := d.Output()
	for _, v := range collected {
		if err := out.Validate(v); err != nil {
			return 0, 0, &contract.Error{Step: d.Name(), Err: err}
		}
	}
	var payload any
	switch len(collected) {
	case 0:
		return 0, 0, &StepFailedError{Step: d.Name(), Err: fmt.Errorf("step produced no output")}
	case 1:
		payload = collected[0]
	default:
		payload = collected
	}
	data, err := out.Encode(payload)
	if err != nil {
		return 0, 0, &contract.Error{Step: d.Name(), Err: err}
	}
	if err := os.MkdirAll(output, 0o755); err != nil {
		return 0, 0, fmt.Errorf("executor: %w", err)
	}
	file := filepath.Join(output, d.Name()+out.Ext())
	if err := os.WriteFile(file, data, 0o644); err != nil {
		return 0, 0, fmt.Errorf("executor: write %s: %w", file, err)
	}
	return len(collected), 1, nil
}

// artifactFiles lists contract files at a location; a directory yields its
// matching entries sorted by name, a plain file yields itself.
func artifactFiles(location, ext string) ([]string, error) {
	info, err := os.Stat(location)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{location}, nil
	}
	entries, err := os.ReadDir(location)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ext) {
			continue
		}
		files = append(files, filepath.Join(location, entry.Name()))
	}
	sort.Strings(files)
	if len(files) == 0 {
		return nil, fmt.Errorf("no %s artifacts in %s", ext, location)
	}
	return files, nil
}

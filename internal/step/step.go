// Package step defines the immutable step descriptor: a named, typed unit of
// work with declared input and output contracts, an optional settings schema,
// and the function that does the work. Definitions are immutable after
// construction; the graph builder and the backends treat them as values.
package step

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/vk/taproot/internal/contract"
)

// Request carries everything a run function may need for one invocation.
type Request struct {
	// Input is the decoded input value, nil for source steps.
	Input any
	// Settings is the bound settings instance, nil when the step declares no
	// settings schema.
	Settings any
	// Emit streams one item of output. Steps that emit must return a nil
	// result; the executor batches emitted items to numbered files.
	Emit func(v any) error
}

// RunFunc is the executable unit of a step. It either returns a single result
// (and never calls req.Emit) or emits successive items and returns nil.
type RunFunc func(ctx context.Context, req *Request) (any, error)

// FinalizeFunc runs best-effort during executor teardown, after success and
// failure alike, for resource cleanup.
type FinalizeFunc func(ctx context.Context) error

// Definition is the immutable descriptor of a pipeline step.
type Definition struct {
	name        string
	input       contract.Contract
	output      contract.Contract
	newSettings func() any
	run         RunFunc
	finalize    FinalizeFunc
}

// Option configures a Definition during construction.
type Option func(*Definition)

// WithInput declares the input contract. Steps without one are sources.
func WithInput(c contract.Contract) Option {
	return func(d *Definition) { d.input = c }
}

// WithSettings declares the settings schema via a factory returning a pointer
// to a fresh settings struct.
func WithSettings(factory func() any) Option {
	return func(d *Definition) { d.newSettings = factory }
}

// WithFinalize attaches a cleanup hook.
func WithFinalize(fn FinalizeFunc) Option {
	return func(d *Definition) { d.finalize = fn }
}

// New constructs a Definition. The name, output contract and run function are
// mandatory; everything else is optional.
func New(name string, output contract.Contract, run RunFunc, opts ...Option) (*Definition, error) {
	if name == "" {
		return nil, errors.New("step: name must not be empty")
	}
	if output == nil {
		return nil, fmt.Errorf("step %q: output contract must not be nil", name)
	}
	if run == nil {
		return nil, fmt.Errorf("step %q: run function must not be nil", name)
	}
	d := &Definition{name: name, output: output, run: run}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// MustNew is New but panics on failure, for package-level step declarations.
func MustNew(name string, output contract.Contract, run RunFunc, opts ...Option) *Definition {
	d, err := New(name, output, run, opts...)
	if err != nil {
		panic(err)
	}
	return d
}

// Name returns the step's unique identifier. It doubles as the stage, task
// and job name in every generated backend artifact.
func (d *Definition) Name() string { return d.name }

// Input returns the input contract, nil for sources.
func (d *Definition) Input() contract.Contract { return d.input }

// Output returns the output contract.
func (d *Definition) Output() contract.Contract { return d.output }

// IsSource reports whether the step consumes no upstream artifact.
func (d *Definition) IsSource() bool { return d.input == nil }

// HasSettings reports whether the step declares a settings schema.
func (d *Definition) HasSettings() bool { return d.newSettings != nil }

// NewSettings returns a fresh settings instance, or nil without a schema.
func (d *Definition) NewSettings() any {
	if d.newSettings == nil {
		return nil
	}
	return d.newSettings()
}

// Run returns the executable unit.
func (d *Definition) Run() RunFunc { return d.run }

// Finalize returns the cleanup hook, nil when absent.
func (d *Definition) Finalize() FinalizeFunc { return d.finalize }

// OutputDir returns the canonical artifact directory for this step below
// dataDir. The executor writes contract files inside it.
func (d *Definition) OutputDir(dataDir string) string {
	return filepath.Join(dataDir, d.name)
}

// Renamed returns a copy of the definition under a different name. Pipeline
// files use this to create independently named instances of one registered
// step type.
func (d *Definition) Renamed(name string) *Definition {
	cp := *d
	cp.name = name
	return &cp
}

// Package registry holds the explicit catalogs a CLI invocation works
// with: step definitions, backend constructors and middleware
// constructors. Registries are plain values threaded through the program;
// nothing registers itself through package init side effects.
package registry

import (
	"fmt"
	"sort"

	"github.com/vk/taproot/internal/backend"
	"github.com/vk/taproot/internal/middleware"
	"github.com/vk/taproot/internal/settings"
	"github.com/vk/taproot/internal/step"
)

// BackendFactory builds an emitter from merged values files.
type BackendFactory func(v backend.Values) (backend.Backend, error)

// MiddlewareFactory builds a middleware, binding its settings from the
// environment snapshot.
type MiddlewareFactory func(env settings.Environment) (middleware.Middleware, error)

// Registry is the catalog a single application instance runs against.
type Registry struct {
	steps       map[string]*step.Definition
	backends    map[string]BackendFactory
	middlewares map[string]MiddlewareFactory
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		steps:       make(map[string]*step.Definition),
		backends:    make(map[string]BackendFactory),
		middlewares: make(map[string]MiddlewareFactory),
	}
}

// RegisterStep adds a step definition under its own name. Two definitions
// claiming the same name is a wiring bug, so it panics.
func (r *Registry) RegisterStep(d *step.Definition) {
	if _, exists := r.steps[d.Name()]; exists {
		panic(fmt.Sprintf("registry: duplicate step %q", d.Name()))
	}
	r.steps[d.Name()] = d
}

// RegisterBackend adds an emitter constructor under a name.
func (r *Registry) RegisterBackend(name string, f BackendFactory) {
	if _, exists := r.backends[name]; exists {
		panic(fmt.Sprintf("registry: duplicate backend %q", name))
	}
	r.backends[name] = f
}

// RegisterMiddleware adds a middleware constructor under a name.
func (r *Registry) RegisterMiddleware(name string, f MiddlewareFactory) {
	if _, exists := r.middlewares[name]; exists {
		panic(fmt.Sprintf("registry: duplicate middleware %q", name))
	}
	r.middlewares[name] = f
}

// Step looks up a registered step definition.
func (r *Registry) Step(name string) (*step.Definition, bool) {
	d, ok := r.steps[name]
	return d, ok
}

// NewBackend constructs the named emitter.
func (r *Registry) NewBackend(name string, v backend.Values) (backend.Backend, error) {
	f, ok := r.backends[name]
	if !ok {
		return nil, &UnknownError{Kind: "backend", Name: name, Known: r.BackendNames()}
	}
	return f(v)
}

// NewMiddleware constructs the named middleware.
func (r *Registry) NewMiddleware(name string, env settings.Environment) (middleware.Middleware, error) {
	f, ok := r.middlewares[name]
	if !ok {
		return nil, &UnknownError{Kind: "middleware", Name: name, Known: r.MiddlewareNames()}
	}
	return f(env)
}

// StepNames lists registered steps in sorted order.
func (r *Registry) StepNames() []string {
	return sortedKeys(r.steps)
}

// BackendNames lists registered backends in sorted order.
func (r *Registry) BackendNames() []string {
	return sortedKeys(r.backends)
}

// MiddlewareNames lists registered middlewares in sorted order.
func (r *Registry) MiddlewareNames() []string {
	return sortedKeys(r.middlewares)
}

func sortedKeys[V any](m map[string]V) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// UnknownError reports a lookup for a name nothing registered.
type UnknownError struct {
	Kind  string
	Name  string
	Known []string
}

// Error implements the error interface.
func (e *UnknownError) Error() string {
	return fmt.Sprintf("unknown %s %q (registered: %v)", e.Kind, e.Name, e.Known)
}

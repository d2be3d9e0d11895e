// Package middleware provides the ordered interception chain wrapped around
// step execution. Each middleware observes or modifies the invocation, calls
// the next continuation, or deliberately short-circuits — skipping the inner
// call (for cache hits and the like) is a supported outcome, not an error.
package middleware

import (
	"context"
	"errors"
	"time"

	"github.com/vk/taproot/internal/step"
)

// Invocation carries the identity and locations of one executor run. It is
// shared across the chain; middlewares may annotate it.
type Invocation struct {
	Step     *step.Definition
	Inputs   []string
	Output   string
	RunID    string
	Settings any
}

// Result summarizes what the wrapped execution produced.
type Result struct {
	// Items is the number of output items persisted.
	Items int
	// Files is the number of artifact files written.
	Files int
	// Load, Run and Save are per-phase durations.
	Load time.Duration
	Run  time.Duration
	Save time.Duration
	// Skipped is set by a middleware that short-circuited the chain.
	Skipped bool
}

// Next is the continuation to the rest of the chain, ultimately the executor
// core. A middleware that never calls it terminates execution early.
type Next func(ctx context.Context) (*Result, error)

// Middleware wraps one step invocation.
type Middleware interface {
	Name() string
	Execute(ctx context.Context, inv *Invocation, next Next) (*Result, error)
}

// Lifecycle is an optional interface for middlewares that hold resources
// across an executor's lifetime, such as metric registries that push on
// shutdown. Teardown receives the run error, nil on success.
type Lifecycle interface {
	Setup(ctx context.Context) error
	Teardown(ctx context.Context, runErr error) error
}

// Chain is an ordered middleware list. Order is caller-specified and
// preserved: the first middleware is the outermost wrapper.
type Chain struct {
	mws []Middleware
}

// NewChain builds a chain in the given order.
func NewChain(mws ...Middleware) *Chain {
	return &Chain{mws: mws}
}

// Append adds a middleware at the inner end of the chain.
func (c *Chain) Append(mw Middleware) *Chain {
	c.mws = append(c.mws, mw)
	return c
}

// Names lists the middlewares in execution order.
func (c *Chain) Names() []string {
	names := make([]string, len(c.mws))
	for i, mw := range c.mws {
		names[i] = mw.Name()
	}
	return names
}

// Wrap nests the chain around the base continuation, building bottom-up so
// that execution visits middlewares in registration order.
func (c *Chain) Wrap(inv *Invocation, base Next) Next {
	wrapped := base
	for i := len(c.mws) - 1; i >= 0; i-- {
		mw := c.mws[i]
		inner := wrapped
		wrapped = func(ctx context.Context) (*Result, error) {
			return mw.Execute(ctx, inv, inner)
		}
	}
	return wrapped
}

// Setup initializes lifecycle-aware middlewares in order.
func (c *Chain) Setup(ctx context.Context) error {
	for _, mw := range c.mws {
		if lc, ok := mw.(Lifecycle); ok {
			if err := lc.Setup(ctx); err != nil {
				return err
			}
		}
	}
	return nil
}

// Teardown finalizes lifecycle-aware middlewares in reverse order. All
// teardowns run even when some fail; errors are joined.
func (c *Chain) Teardown(ctx context.Context, runErr error) error {
	var errs []error
	for i := len(c.mws) - 1; i >= 0; i-- {
		if lc, ok := c.mws[i].(Lifecycle); ok {
			if err := lc.Teardown(ctx, runErr); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// Package pipeline builds and resolves the step graph. Steps are chained
// into a directed acyclic graph through an explicit Connect operation; the
// contract validator runs inline during chaining so an incompatible edge
// fails fast, before anything executes or emits.
package pipeline

import (
	"fmt"

	"github.com/vk/taproot/internal/contract"
	"github.com/vk/taproot/internal/step"
)

// Edge is a directed producer->consumer relation created by chaining.
type Edge struct {
	Producer *step.Definition
	Consumer *step.Definition
}

// Graph accumulates step definitions and edges. The zero graph is not usable;
// construct with New. Graph construction is single-threaded by design.
type Graph struct {
	steps  []*step.Definition
	index  map[*step.Definition]int
	byName map[string]*step.Definition
	edges  []Edge
}

// New returns an empty graph.
func New() *Graph {
	return &Graph{
		index:  make(map[*step.Definition]int),
		byName: make(map[string]*step.Definition),
	}
}

// Add registers a definition with the graph. Adding the same instance twice
// is a no-op; a different instance under an already used name is an error,
// because names key every generated artifact.
func (g *Graph) Add(d *step.Definition) error {
	if _, ok := g.index[d]; ok {
		return nil
	}
	if other, ok := g.byName[d.Name()]; ok && other != d {
		return &DuplicateStepError{Name: d.Name()}
	}
	g.index[d] = len(g.steps)
	g.steps = append(g.steps, d)
	g.byName[d.Name()] = d
	return nil
}

// Connect registers a directed edge from producer to consumer, validating the
// contracts inline. It returns a Chain handle whose tip is the consumer, so
// callers can keep extending fluently.
func (g *Graph) Connect(producer, consumer *step.Definition) (*Chain, error) {
	if producer == nil || consumer == nil {
		return nil, fmt.Errorf("pipeline: connect requires both a producer and a consumer")
	}
	if consumer.Input() == nil {
		return nil, fmt.Errorf("pipeline: step %q is a source and cannot consume %q", consumer.Name(), producer.Name())
	}
	if !contract.Compatible(producer.Output(), consumer.Input()) {
		return nil, &contract.MismatchError{
			Producer: producer.Name(),
			Consumer: consumer.Name(),
			Got:      producer.Output().Type(),
			Want:     consumer.Input().Type(),
		}
	}
	if err := g.Add(producer); err != nil {
		return nil, err
	}
	if err := g.Add(consumer); err != nil {
		return nil, err
	}
	for _, e := range g.edges {
		if e.Producer == producer && e.Consumer == consumer {
			return &Chain{g: g, tip: consumer}, nil
		}
	}
	g.edges = append(g.edges, Edge{Producer: producer, Consumer: consumer})
	return &Chain{g: g, tip: consumer}, nil
}

// Start registers a definition and returns a Chain handle for it, the entry
// point for fluent construction: g.Start(a).Then(b).Then(c).
func (g *Graph) Start(d *step.Definition) (*Chain, error) {
	if err := g.Add(d); err != nil {
		return nil, err
	}
	return &Chain{g: g, tip: d}, nil
}

// Steps returns the definitions in first-added order.
func (g *Graph) Steps() []*step.Definition {
	out := make([]*step.Definition, len(g.steps))
	copy(out, g.steps)
	return out
}

// Edges returns the edges in first-chained order.
func (g *Graph) Edges() []Edge {
	out := make([]Edge, len(g.edges))
	copy(out, g.edges)
	return out
}

// Lookup finds a registered definition by name.
func (g *Graph) Lookup(name string) (*step.Definition, bool) {
	d, ok := g.byName[name]
	return d, ok
}

// Chain is the fluent handle returned by chaining operations. It only
// remembers the graph and the current tip; all state lives in the graph.
type Chain struct {
	g   *Graph
	tip *step.Definition
}

// Then chains the next step onto the current tip.
func (c *Chain) Then(next *step.Definition) (*Chain, error) {
	return c.g.Connect(c.tip, next)
}

// Tip returns the step at the end of the chain, typically the terminal step
// handed to Resolve.
func (c *Chain) Tip() *step.Definition { return c.tip }

// Graph returns the underlying graph.
func (c *Chain) Graph() *Graph { return c.g }

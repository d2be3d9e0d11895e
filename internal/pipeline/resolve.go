package pipeline

import (
	"fmt"
	"sort"

	"github.com/vk/taproot/internal/step"
)

// Resolved is the ancestor-closed view of a graph for one terminal step, in
// canonical topological order. The same terminal always resolves to the same
// ordering, which is what makes repeated artifact generations byte-identical.
type Resolved struct {
	steps    []*step.Definition
	edges    []Edge
	terminal *step.Definition
}

// Resolve returns the terminal step plus all reachable ancestors. Ancestors
// are found by walking back through the chaining structure; there is no
// global registry. Steps reachable via multiple paths appear exactly once
// (deduplicated by identity). Ordering is a deterministic topological sort:
// ties between independent branches break first-chained-first.
func (g *Graph) Resolve(terminal *step.Definition) (*Resolved, error) {
	if _, ok := g.index[terminal]; !ok {
		return nil, fmt.Errorf("pipeline: step %q was never chained into this graph", terminal.Name())
	}

	// Reverse walk from the terminal collects the ancestor closure.
	include := map[*step.Definition]bool{terminal: true}
	queue := []*step.Definition{terminal}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, e := range g.edges {
			if e.Consumer == cur && !include[e.Producer] {
				include[e.Producer] = true
				queue = append(queue, e.Producer)
			}
		}
	}

	var edges []Edge
	indegree := make(map[*step.Definition]int)
	for _, e := range g.edges {
		if include[e.Producer] && include[e.Consumer] {
			edges = append(edges, e)
			indegree[e.Consumer]++
		}
	}

	for d := range include {
		if !d.IsSource() && indegree[d] == 0 {
			return nil, &UnsatisfiedInputError{Step: d.Name()}
		}
	}

	// Kahn's algorithm with the ready set kept ordered by first-chained
	// position, which fixes the order of independent branches.
	var ready []*step.Definition
	for d := range include {
		if indegree[d] == 0 {
			ready = append(ready, d)
		}
	}
	sort.Slice(ready, func(i, j int) bool { return g.index[ready[i]] < g.index[ready[j]] })

	ordered := make([]*step.Definition, 0, len(include))
	for len(ready) > 0 {
		cur := ready[0]
		ready = ready[1:]
		ordered = append(ordered, cur)
		for _, e := range edges {
			if e.Producer != cur {
				continue
			}
			indegree[e.Consumer]--
			if indegree[e.Consumer] == 0 {
				ready = insertOrdered(ready, e.Consumer, g.index)
			}
		}
	}

	if len(ordered) != len(include) {
		return nil, &CyclicGraphError{Step: firstBlocked(include, indegree, g.index).Name()}
	}

	return &Resolved{steps: ordered, edges: edges, terminal: terminal}, nil
}

// insertOrdered keeps the ready slice sorted by first-chained position.
func insertOrdered(ready []*step.Definition, d *step.Definition, index map[*step.Definition]int) []*step.Definition {
	pos := sort.Search(len(ready), func(i int) bool { return index[ready[i]] > index[d] })
	ready = append(ready, nil)
	copy(ready[pos+1:], ready[pos:])
	ready[pos] = d
	return ready
}

// firstBlocked picks the earliest-chained step still waiting on a
// predecessor, which is necessarily on (or behind) a cycle.
func firstBlocked(include map[*step.Definition]bool, indegree map[*step.Definition]int, index map[*step.Definition]int) *step.Definition {
	var blocked *step.Definition
	for d := range include {
		if indegree[d] > 0 && (blocked == nil || index[d] < index[blocked]) {
			blocked = d
		}
	}
	return blocked
}

// Steps returns the canonical topological order.
func (r *Resolved) Steps() []*step.Definition {
	out := make([]*step.Definition, len(r.steps))
	copy(out, r.steps)
	return out
}

// Edges returns the in-closure edges in first-chained order.
func (r *Resolved) Edges() []Edge {
	out := make([]Edge, len(r.edges))
	copy(out, r.edges)
	return out
}

// Terminal returns the step the graph was resolved for.
func (r *Resolved) Terminal() *step.Definition { return r.terminal }

// Dependencies returns the producers feeding d, in first-chained order.
func (r *Resolved) Dependencies(d *step.Definition) []*step.Definition {
	var deps []*step.Definition
	for _, e := range r.edges {
		if e.Consumer == d {
			deps = append(deps, e.Producer)
		}
	}
	return deps
}

// Dependents returns the consumers fed by d, in first-chained order.
func (r *Resolved) Dependents(d *step.Definition) []*step.Definition {
	var deps []*step.Definition
	for _, e := range r.edges {
		if e.Producer == d {
			deps = append(deps, e.Consumer)
		}
	}
	return deps
}

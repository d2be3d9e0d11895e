package pipeline

import "fmt"

// CyclicGraphError is returned when graph resolution detects a cycle. It
// names a step on the cycle so the user can find the offending edge.
type CyclicGraphError struct {
	Step string
}

// Error implements the error interface.
func (e *CyclicGraphError) Error() string {
	return fmt.Sprintf("pipeline graph contains a cycle involving step %q", e.Step)
}

// DuplicateStepError is returned when two distinct step instances share a
// name. Names key every generated artifact, so collisions are construction
// errors, not warnings.
type DuplicateStepError struct {
	Name string
}

// Error implements the error interface.
func (e *DuplicateStepError) Error() string {
	return fmt.Sprintf("a different step named %q is already part of the graph", e.Name)
}

// UnsatisfiedInputError is returned at resolve time for a non-source step
// with no incoming edge: its declared input could never be produced.
type UnsatisfiedInputError struct {
	Step string
}

// Error implements the error interface.
func (e *UnsatisfiedInputError) Error() string {
	return fmt.Sprintf("step %q declares an input contract but nothing produces it", e.Step)
}

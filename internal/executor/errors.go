package executor

import "fmt"

// StepFailedError wraps an unexpected failure inside step logic with the
// step's identity. Contract violations use contract.Error instead, so the
// boundary can distinguish the two.
type StepFailedError struct {
	Step string
	Err  error
}

// Error implements the error interface.
func (e *StepFailedError) Error() string {
	return fmt.Sprintf("step %q failed: %v", e.Step, e.Err)
}

// Unwrap exposes the original cause.
func (e *StepFailedError) Unwrap() error { return e.Err }

package contract

import (
	"fmt"

	"github.com/zclconf/go-cty/cty"
)

// MismatchError is returned when two steps with incompatible contracts are
// chained. It is a construction-time error and is never retried.
type MismatchError struct {
	// Producer and Consumer are step names.
	Producer string
	Consumer string
	// Got is the producer's output type, Want the consumer's input type.
	Got  cty.Type
	Want cty.Type
}

// Error implements the error interface.
func (e *MismatchError) Error() string {
	return fmt.Sprintf("cannot chain %q into %q: output %s is not assignable to input %s",
		e.Producer, e.Consumer, e.Got.FriendlyName(), e.Want.FriendlyName())
}

// Error is an execution-time contract failure: loaded or produced data did
// not satisfy the declared contract. It is distinct from StepFailedError so
// the boundary can report the two differently.
type Error struct {
	Step string
	Err  error
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("contract failed in step %q: %v", e.Step, e.Err)
}

// Unwrap exposes the underlying cause.
func (e *Error) Unwrap() error { return e.Err }

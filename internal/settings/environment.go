// Package settings derives environment-variable bindings for step settings
// schemas and constructs settings instances from them. Resolution is fully
// decoupled from execution: required variables can be enumerated, rendered
// into templates, or validated without ever running a step.
//
// Binding reads from an explicit Environment snapshot, never from the live
// process environment, so concurrent executor invocations cannot race on
// process-wide state and nothing needs save/restore semantics.
package settings

import (
	"os"
	"sort"
	"strings"
)

// Environment is an immutable snapshot of variable bindings. A derived
// snapshot is produced with Overlay; the original is never mutated.
type Environment struct {
	vars map[string]string
}

// New builds an Environment from a map, copying it.
func New(vars map[string]string) Environment {
	cp := make(map[string]string, len(vars))
	for k, v := range vars {
		cp[k] = v
	}
	return Environment{vars: cp}
}

// FromOS captures the process environment once. Later changes to the process
// environment do not show through the snapshot.
func FromOS() Environment {
	vars := make(map[string]string)
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			vars[k] = v
		}
	}
	return Environment{vars: vars}
}

// Lookup returns the value bound to key.
func (e Environment) Lookup(key string) (string, bool) {
	v, ok := e.vars[key]
	return v, ok
}

// Overlay returns a derived snapshot with extra bindings applied on top.
func (e Environment) Overlay(extra map[string]string) Environment {
	cp := make(map[string]string, len(e.vars)+len(extra))
	for k, v := range e.vars {
		cp[k] = v
	}
	for k, v := range extra {
		cp[k] = v
	}
	return Environment{vars: cp}
}

// Keys returns all bound variable names, sorted.
func (e Environment) Keys() []string {
	keys := make([]string, 0, len(e.vars))
	for k := range e.vars {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Len returns the number of bindings.
func (e Environment) Len() int { return len(e.vars) }

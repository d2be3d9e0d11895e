package settings

import (
	"fmt"
	"strings"
)

// MissingSettingError is returned when required environment variables have
// neither a value nor a default. It lists every absent variable by name so
// one inspection round-trip is enough to fix a deployment.
type MissingSettingError struct {
	// Step is filled in when binding on behalf of a step definition.
	Step string
	Vars []string
}

// Error implements the error interface.
func (e *MissingSettingError) Error() string {
	if e.Step != "" {
		return fmt.Sprintf("step %q: missing required settings: %s", e.Step, strings.Join(e.Vars, ", "))
	}
	return fmt.Sprintf("missing required settings: %s", strings.Join(e.Vars, ", "))
}

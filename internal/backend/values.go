package backend

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Values is the merged result of one or more YAML values files, the
// configuration input to every backend.
type Values map[string]any

// ValuesError reports a values file that could not be loaded or parsed.
type ValuesError struct {
	Path string
	Err  error
}

// Error implements the error interface.
func (e *ValuesError) Error() string {
	return fmt.Sprintf("values file %q: %v", e.Path, e.Err)
}

// Unwrap exposes the underlying cause.
func (e *ValuesError) Unwrap() error { return e.Err }

// LoadValues reads and merges values files in the order given. Mappings
// merge recursively key-by-key; scalar and list values from later files
// fully replace earlier ones at the same key path. The merge is
// deterministic and associative as long as the file order is fixed.
func LoadValues(paths []string) (Values, error) {
	merged := map[string]any{}
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, &ValuesError{Path: path, Err: err}
		}
		var doc any
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, &ValuesError{Path: path, Err: fmt.Errorf("parse: %w", err)}
		}
		if doc == nil {
			continue
		}
		m, ok := doc.(map[string]any)
		if !ok {
			return nil, &ValuesError{Path: path, Err: fmt.Errorf("document root must be a mapping")}
		}
		merged = DeepMerge(merged, m)
	}
	return merged, nil
}

// DeepMerge merges override into base without mutating either. Nested
// mappings merge recursively; anything else — scalars and lists alike —
// is replaced wholesale by the override.
func DeepMerge(base, override map[string]any) map[string]any {
	merged := make(map[string]any, len(base)+len(override))
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range override {
		prev, exists := merged[k]
		prevMap, prevOK := prev.(map[string]any)
		nextMap, nextOK := v.(map[string]any)
		if exists && prevOK && nextOK {
			merged[k] = DeepMerge(prevMap, nextMap)
			continue
		}
		merged[k] = v
	}
	return merged
}

// DecodeSection fills target from one top-level key of the merged values,
// leaving target's defaults intact when the key is absent. The section is
// round-tripped through YAML so target structs use ordinary yaml tags.
func (v Values) DecodeSection(key string, target any) error {
	section, ok := v[key]
	if !ok {
		return nil
	}
	data, err := yaml.Marshal(section)
	if err != nil {
		return fmt.Errorf("values section %q: %w", key, err)
	}
	if err := yaml.Unmarshal(data, target); err != nil {
		return fmt.Errorf("values section %q: %w", key, err)
	}
	return nil
}

// Has reports whether a top-level section is present.
func (v Values) Has(key string) bool {
	_, ok := v[key]
	return ok
}

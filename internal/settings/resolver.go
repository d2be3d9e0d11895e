package settings

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/vk/taproot/internal/step"
)

// Delimiter joins the step-name prefix and nested field segments in
// environment variable names: <STEPNAME>__<FIELD>[__<NESTED>...].
const Delimiter = "__"

// VarSpec describes one environment variable a settings schema needs.
type VarSpec struct {
	// Name is the full variable name including the step prefix.
	Name string
	// Path is the dotted Go field path inside the settings struct.
	Path string
	// Required is true when the field carries no default.
	Required bool
	// Default is the literal default from the `default` tag, "" when absent.
	Default string
	// Description comes from the `desc` tag.
	Description string
	// Secret marks values that must be masked in rendered templates.
	Secret bool
}

// Prefix derives the environment prefix for a step name.
func Prefix(stepName string) string {
	return strings.ToUpper(stepName)
}

// RequiredVariables enumerates, in declaration order, the environment
// variables the step's settings schema reads. Steps without a schema need
// nothing.
func RequiredVariables(d *step.Definition) ([]VarSpec, error) {
	if !d.HasSettings() {
		return nil, nil
	}
	return Inspect(Prefix(d.Name()), d.NewSettings())
}

// Inspect walks a settings struct and returns the variable specs under the
// given prefix. The schema value must be a pointer to a struct. Field names
// come from the `setting` tag or the upper-snake form of the Go field name;
// nested structs extend the prefix with the Delimiter.
func Inspect(prefix string, schema any) ([]VarSpec, error) {
	v := reflect.ValueOf(schema)
	if v.Kind() != reflect.Pointer || v.Elem().Kind() != reflect.Struct {
		return nil, fmt.Errorf("settings: schema must be a pointer to struct, got %T", schema)
	}
	var specs []VarSpec
	if err := walkSchema(prefix, v.Elem().Type(), "", &specs); err != nil {
		return nil, err
	}
	return specs, nil
}

func walkSchema(prefix string, t reflect.Type, path string, specs *[]VarSpec) error {
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}
		name := varSegment(field)
		if name == "-" {
			continue
		}
		fieldPath := field.Name
		if path != "" {
			fieldPath = path + "." + field.Name
		}
		if isNested(field.Type) {
			if err := walkSchema(prefix+Delimiter+name, field.Type, fieldPath, specs); err != nil {
				return err
			}
			continue
		}
		def, hasDefault := field.Tag.Lookup("default")
		*specs = append(*specs, VarSpec{
			Name:        prefix + Delimiter + name,
			Path:        fieldPath,
			Required:    !hasDefault,
			Default:     def,
			Description: field.Tag.Get("desc"),
			Secret:      field.Tag.Get("secret") == "true",
		})
	}
	return nil
}

// varSegment picks the variable name segment for a struct field.
func varSegment(field reflect.StructField) string {
	if tag, ok := field.Tag.Lookup("setting"); ok && tag != "" {
		return tag
	}
	return upperSnake(field.Name)
}

// isNested reports whether a field type extends the delimiter chain rather
// than binding a single variable. time.Duration is a leaf despite being
// backed by int64; structs with custom scalar kinds stay leaves too.
func isNested(t reflect.Type) bool {
	return t.Kind() == reflect.Struct && t != reflect.TypeOf(time.Time{})
}

// upperSnake converts a CamelCase field name to UPPER_SNAKE, keeping acronym
// runs together: ChunkSize -> CHUNK_SIZE, APIKey -> API_KEY.
func upperSnake(name string) string {
	var b strings.Builder
	runes := []rune(name)
	for i, r := range runes {
		if i > 0 && r >= 'A' && r <= 'Z' {
			prevLower := runes[i-1] >= 'a' && runes[i-1] <= 'z' || runes[i-1] >= '0' && runes[i-1] <= '9'
			nextLower := i+1 < len(runes) && runes[i+1] >= 'a' && runes[i+1] <= 'z'
			if prevLower || nextLower && runes[i-1] >= 'A' && runes[i-1] <= 'Z' {
				b.WriteByte('_')
			}
		}
		b.WriteRune(r)
	}
	return strings.ToUpper(b.String())
}

// Resolver binds settings schemas from an Environment. Permissive mode both
// tolerates unknown variables under a step's prefix and lets missing required
// variables fall back to zero values, so inspection-driven workflows can
// proceed on defaults only.
type Resolver struct {
	Permissive bool
}

// Bind constructs the step's settings instance strictly from env. It returns
// nil for steps without a schema. Missing required variables produce a
// MissingSettingError listing every absent name.
func (r Resolver) Bind(d *step.Definition, env Environment) (any, error) {
	if !d.HasSettings() {
		return nil, nil
	}
	target := d.NewSettings()
	if err := r.BindPrefixed(Prefix(d.Name()), target, env); err != nil {
		if miss, ok := err.(*MissingSettingError); ok {
			miss.Step = d.Name()
		}
		return nil, err
	}
	return target, nil
}

// BindPrefixed fills target (a pointer to a settings struct) from variables
// under the given prefix. It is also used for middleware settings, which use
// a fixed prefix instead of a step name.
func (r Resolver) BindPrefixed(prefix string, target any, env Environment) error {
	specs, err := Inspect(prefix, target)
	if err != nil {
		return err
	}
	known := make(map[string]bool, len(specs))
	var missing []string
	for _, spec := range specs {
		known[spec.Name] = true
		raw, ok := env.Lookup(spec.Name)
		if !ok {
			if spec.Required {
				if r.Permissive {
					continue
				}
				missing = append(missing, spec.Name)
				continue
			}
			raw = spec.Default
		}
		if err := setField(target, spec.Path, raw); err != nil {
			return fmt.Errorf("settings: %s: %w", spec.Name, err)
		}
	}
	if len(missing) > 0 {
		return &MissingSettingError{Vars: missing}
	}
	if !r.Permissive {
		if err := rejectUnknown(prefix, known, env); err != nil {
			return err
		}
	}
	return nil
}

// rejectUnknown fails on variables under the prefix that no field binds.
func rejectUnknown(prefix string, known map[string]bool, env Environment) error {
	for _, key := range env.Keys() {
		if !strings.HasPrefix(key, prefix+Delimiter) {
			continue
		}
		if !known[key] {
			return fmt.Errorf("settings: unknown variable %s (set permissive mode to tolerate extras)", key)
		}
	}
	return nil
}

// setField writes a parsed raw value into the field at the dotted path.
func setField(target any, path string, raw string) error {
	v := reflect.ValueOf(target).Elem()
	for _, seg := range strings.Split(path, ".") {
		v = v.FieldByName(seg)
	}
	return setValue(v, raw)
}

func setValue(v reflect.Value, raw string) error {
	switch v.Kind() {
	case reflect.String:
		v.SetString(raw)
	case reflect.Bool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return fmt.Errorf("parse bool %q: %w", raw, err)
		}
		v.SetBool(b)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if v.Type() == reflect.TypeOf(time.Duration(0)) {
			dur, err := time.ParseDuration(raw)
			if err != nil {
				return fmt.Errorf("parse duration %q: %w", raw, err)
			}
			v.SetInt(int64(dur))
			return nil
		}
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return fmt.Errorf("parse int %q: %w", raw, err)
		}
		v.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return fmt.Errorf("parse uint %q: %w", raw, err)
		}
		v.SetUint(n)
	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return fmt.Errorf("parse float %q: %w", raw, err)
		}
		v.SetFloat(f)
	case reflect.Slice:
		if v.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("unsupported slice element type %s", v.Type().Elem())
		}
		if raw == "" {
			v.Set(reflect.MakeSlice(v.Type(), 0, 0))
			return nil
		}
		parts := strings.Split(raw, ",")
		out := reflect.MakeSlice(v.Type(), len(parts), len(parts))
		for i, p := range parts {
			out.Index(i).SetString(strings.TrimSpace(p))
		}
		v.Set(out)
	case reflect.Map:
		if v.Type().Key().Kind() != reflect.String || v.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("unsupported map type %s", v.Type())
		}
		out := reflect.MakeMap(v.Type())
		if raw != "" {
			for _, pair := range strings.Split(raw, ",") {
				k, val, ok := strings.Cut(pair, "=")
				if !ok {
					return fmt.Errorf("map entry %q is not k=v", pair)
				}
				out.SetMapIndex(reflect.ValueOf(strings.TrimSpace(k)), reflect.ValueOf(strings.TrimSpace(val)))
			}
		}
		v.Set(out)
	default:
		return fmt.Errorf("unsupported settings field kind %s", v.Kind())
	}
	return nil
}

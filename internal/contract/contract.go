// Package contract defines the typed data contracts that connect pipeline
// steps. A contract couples a structural type, expressed as a cty.Type, with
// a codec that moves values between memory and artifact files. Compatibility
// between a producer's output contract and a consumer's input contract is
// decided here, at graph-construction time, never at run time.
package contract

import (
	"encoding/json"
	"fmt"

	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	"github.com/zclconf/go-cty/cty/gocty"
)

// Contract describes the shape of data a step consumes or produces.
type Contract interface {
	// FriendlyName identifies the contract in error messages and artifacts.
	FriendlyName() string
	// Type is the structural type used for compatibility checks.
	Type() cty.Type
	// Ext is the file extension of artifacts written under this contract,
	// including the leading dot.
	Ext() string
	// Encode serializes a value (or a slice of values) for storage.
	Encode(v any) ([]byte, error)
	// Decode deserializes stored bytes back into the contract's Go value.
	Decode(data []byte) (any, error)
	// Validate checks a produced value against the structural type.
	Validate(v any) error
}

// Compatible reports whether a value produced under `producer` is assignable
// to a step declaring `consumer` as its input. Equality counts, as does any
// conversion cty knows about, including unsafe ones; a lossy-but-possible
// conversion mirrors the "recognized union member" rule.
func Compatible(producer, consumer Contract) bool {
	out := producer.Type()
	in := consumer.Type()
	if out.Equals(in) || in.Equals(cty.DynamicPseudoType) {
		return true
	}
	return convert.GetConversionUnsafe(out, in) != nil
}

// JSONCodec is a Contract whose artifacts are JSON files. The structural type
// is implied from the Go model type T at construction, the same way handler
// input structs are checked against their manifests: fields carry `cty` tags.
type JSONCodec[T any] struct {
	name string
	ty   cty.Type
}

// JSON builds a JSON-backed contract for the model type T. T may itself be a
// slice type for list-shaped contracts.
func JSON[T any](name string) (*JSONCodec[T], error) {
	var zero T
	ty, err := gocty.ImpliedType(zero)
	if err != nil {
		return nil, fmt.Errorf("contract %q: cannot imply cty type from %T: %w", name, zero, err)
	}
	return &JSONCodec[T]{name: name, ty: ty}, nil
}

// MustJSON is JSON but panics on failure. Intended for package-level contract
// declarations where a bad model type is a programmer error.
func MustJSON[T any](name string) *JSONCodec[T] {
	c, err := JSON[T](name)
	if err != nil {
		panic(err)
	}
	return c
}

// FriendlyName implements Contract.
func (c *JSONCodec[T]) FriendlyName() string { return c.name }

// Type implements Contract.
func (c *JSONCodec[T]) Type() cty.Type { return c.ty }

// Ext implements Contract.
func (c *JSONCodec[T]) Ext() string { return ".json" }

// Encode implements Contract. It accepts either a single value or a slice of
// values so the executor can aggregate multi-input results into one artifact.
func (c *JSONCodec[T]) Encode(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("contract %q: encode: %w", c.name, err)
	}
	return data, nil
}

// Decode implements Contract.
func (c *JSONCodec[T]) Decode(data []byte) (any, error) {
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("contract %q: decode: %w", c.name, err)
	}
	return v, nil
}

// Validate implements Contract. A value conforms when cty can represent it as
// the contract's structural type.
func (c *JSONCodec[T]) Validate(v any) error {
	if _, err := gocty.ToCtyValue(v, c.ty); err != nil {
		return fmt.Errorf("value does not satisfy contract %q (%s): %w", c.name, c.ty.FriendlyName(), err)
	}
	return nil
}

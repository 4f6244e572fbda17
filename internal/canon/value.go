// Package canon provides canonical JSON serialization and content-addressed
// hashing for the collection artifact and registry records.
//
// Canonical form is lexicographically key-sorted JSON with no insignificant
// whitespace, no HTML escaping, and no floating-point values — TFT data is
// entirely integers, strings, and booleans, so floats are rejected outright
// rather than risking cross-platform rounding differences in a content hash.
package canon

import (
	"fmt"
)

// Value is a sealed interface over the constrained set of types that may
// appear in a canonical document. There is deliberately no Float variant.
type Value interface {
	canonValue()
}

// Null represents a JSON null.
type Null struct{}

func (Null) canonValue() {}

// String represents a JSON string value.
type String string

func (String) canonValue() {}

// Int represents a JSON integer value. Always int64.
type Int int64

func (Int) canonValue() {}

// Bool represents a JSON boolean value.
type Bool bool

func (Bool) canonValue() {}

// Array represents a JSON array of canonical values.
type Array []Value

func (Array) canonValue() {}

// Object represents a JSON object. Use SortedKeys for deterministic order.
type Object map[string]Value

func (Object) canonValue() {}

// SortedKeys returns the object's keys in ascending byte order.
func (o Object) SortedKeys() []string {
	keys := make([]string, 0, len(o))
	for k := range o {
		keys = append(keys, k)
	}
	sortStrings(keys)
	return keys
}

func sortStrings(s []string) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}

// ToValue converts a Go value built from the usual JSON-ish primitives
// (string, int/int64, bool, []any, map[string]any, or an existing Value)
// into a canon.Value tree. Floats and nil are rejected.
func ToValue(v any) (Value, error) {
	switch val := v.(type) {
	case Value:
		return val, nil
	case nil:
		return nil, fmt.Errorf("canon: null is forbidden")
	case string:
		return String(val), nil
	case int:
		return Int(val), nil
	case int64:
		return Int(val), nil
	case bool:
		return Bool(val), nil
	case []any:
		arr := make(Array, len(val))
		for i, elem := range val {
			cv, err := ToValue(elem)
			if err != nil {
				return nil, fmt.Errorf("canon: array[%d]: %w", i, err)
			}
			arr[i] = cv
		}
		return arr, nil
	case map[string]any:
		obj := make(Object, len(val))
		for k, elem := range val {
			cv, err := ToValue(elem)
			if err != nil {
				return nil, fmt.Errorf("canon: object[%q]: %w", k, err)
			}
			obj[k] = cv
		}
		return obj, nil
	case float32, float64:
		return nil, fmt.Errorf("canon: floats are forbidden, got %T", val)
	default:
		return nil, fmt.Errorf("canon: unsupported type %T", v)
	}
}

package model

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// marshalStd serializes v with the standard library. Used only to obtain a
// generic tree for canon hashing; the wire format itself still goes through
// each type's own json tags.
func marshalStd(v any) ([]byte, error) {
	return json.Marshal(v)
}

// unmarshalGeneric decodes JSON bytes into plain Go values (string, bool,
// []any, map[string]any, json.Number for every number) so that canon.ToValue
// can reject floats and normalize integers without losing precision on
// large epoch-millisecond timestamps.
func unmarshalGeneric(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("model: decode generic: %w", err)
	}
	return numberify(v)
}

// numberify walks the decoded tree converting json.Number into int64
// (rejecting fractional numbers, since the domain forbids floats) and
// recursing into arrays/objects.
func numberify(v any) (any, error) {
	switch val := v.(type) {
	case json.Number:
		i, err := val.Int64()
		if err != nil {
			return nil, fmt.Errorf("model: non-integer numeric value %q is forbidden in canonical form", val.String())
		}
		return i, nil
	case []any:
		out := make([]any, len(val))
		for i, elem := range val {
			nv, err := numberify(elem)
			if err != nil {
				return nil, err
			}
			out[i] = nv
		}
		return out, nil
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, elem := range val {
			nv, err := numberify(elem)
			if err != nil {
				return nil, err
			}
			out[k] = nv
		}
		return out, nil
	default:
		return v, nil
	}
}

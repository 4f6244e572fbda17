package canon

import (
	"bytes"
	"encoding/json"
	"fmt"

	"golang.org/x/text/unicode/norm"
)

// Marshal produces canonical JSON bytes for v: object keys sorted in byte
// order, no HTML escaping, strings NFC-normalized, no floats, no null.
//
// This is the ONLY serialization that may back a content hash — two callers
// that build logically identical documents through different code paths
// must produce byte-identical output here.
func Marshal(v any) ([]byte, error) {
	cv, err := ToValue(v)
	if err != nil {
		return nil, err
	}
	return marshal(cv)
}

func marshal(v Value) ([]byte, error) {
	switch val := v.(type) {
	case Null:
		return nil, fmt.Errorf("canon: null is forbidden")
	case String:
		return marshalString(string(val))
	case Int:
		return []byte(fmt.Sprintf("%d", int64(val))), nil
	case Bool:
		if val {
			return []byte("true"), nil
		}
		return []byte("false"), nil
	case Array:
		return marshalArray(val)
	case Object:
		return marshalObject(val)
	default:
		return nil, fmt.Errorf("canon: unsupported value %T", v)
	}
}

func marshalString(s string) ([]byte, error) {
	normalized := norm.NFC.String(s)

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(normalized); err != nil {
		return nil, err
	}

	out := buf.Bytes()
	if len(out) > 0 && out[len(out)-1] == '\n' {
		out = out[:len(out)-1]
	}
	return out, nil
}

func marshalArray(arr Array) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, elem := range arr {
		if i > 0 {
			buf.WriteByte(',')
		}
		b, err := marshal(elem)
		if err != nil {
			return nil, fmt.Errorf("canon: array[%d]: %w", i, err)
		}
		buf.Write(b)
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

func marshalObject(obj Object) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	keys := obj.SortedKeys()
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := marshalString(k)
		if err != nil {
			return nil, fmt.Errorf("canon: key %q: %w", k, err)
		}
		buf.Write(kb)
		buf.WriteByte(':')
		vb, err := marshal(obj[k])
		if err != nil {
			return nil, fmt.Errorf("canon: value for key %q: %w", k, err)
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

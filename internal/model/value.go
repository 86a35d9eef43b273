// Package model holds the wire and in-memory data types shared by the
// delivery pipeline: the recursive property value type, raw call variants,
// identity/context records, and the enriched event that ends up on the
// wire.
package model

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Value is a recursive JSON value: string, int64, float64, bool, null,
// array, or object. It exists so the public API can accept properties and
// traits without forcing callers onto Go's untyped map[string]any, while
// still round-tripping exactly through JSON (§3, P7).
type Value interface {
	isValue()
}

type (
	StringValue  string
	IntValue     int64
	FloatValue   float64
	BoolValue    bool
	NullValue    struct{}
	ArrayValue   []Value
	ObjectValue  map[string]Value
)

func (StringValue) isValue() {}
func (IntValue) isValue()    {}
func (FloatValue) isValue()  {}
func (BoolValue) isValue()   {}
func (NullValue) isValue()   {}
func (ArrayValue) isValue()  {}
func (ObjectValue) isValue() {}

// MarshalJSON renders each variant using ordinary JSON syntax: strings as
// strings, numbers as JSON numbers, null as JSON null, arrays/objects
// recursively.
func (v StringValue) MarshalJSON() ([]byte, error) { return json.Marshal(string(v)) }
func (v IntValue) MarshalJSON() ([]byte, error)    { return json.Marshal(int64(v)) }
func (v FloatValue) MarshalJSON() ([]byte, error)  { return json.Marshal(float64(v)) }
func (v BoolValue) MarshalJSON() ([]byte, error)   { return json.Marshal(bool(v)) }
func (NullValue) MarshalJSON() ([]byte, error)     { return []byte("null"), nil }

func (v ArrayValue) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, elem := range v {
		if i > 0 {
			buf.WriteByte(',')
		}
		b, err := json.Marshal(elem)
		if err != nil {
			return nil, err
		}
		buf.Write(b)
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

func (v ObjectValue) MarshalJSON() ([]byte, error) {
	// Preserve key uniqueness; member order is not observable per §3, so a
	// plain map-driven encode (Go's json package sorts map keys) is fine.
	raw := make(map[string]json.RawMessage, len(v))
	for k, val := range v {
		b, err := json.Marshal(val)
		if err != nil {
			return nil, err
		}
		raw[k] = b
	}
	return json.Marshal(raw)
}

// UnmarshalValue decodes arbitrary JSON into a Value, distinguishing
// integers from floats where the source has no fractional part and no
// exponent, so a round trip through Enricher preserves the caller's
// intended numeric kind as closely as encoding/json allows.
func UnmarshalValue(data []byte) (Value, error) {
	var raw any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	return fromAny(raw)
}

func fromAny(raw any) (Value, error) {
	switch t := raw.(type) {
	case nil:
		return NullValue{}, nil
	case string:
		return StringValue(t), nil
	case bool:
		return BoolValue(t), nil
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return IntValue(i), nil
		}
		f, err := t.Float64()
		if err != nil {
			return nil, fmt.Errorf("model: value %q is not a valid number: %w", t, err)
		}
		return FloatValue(f), nil
	case []any:
		out := make(ArrayValue, 0, len(t))
		for _, elem := range t {
			v, err := fromAny(elem)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil
	case map[string]any:
		out := make(ObjectValue, len(t))
		for k, elem := range t {
			v, err := fromAny(elem)
			if err != nil {
				return nil, err
			}
			out[k] = v
		}
		return out, nil
	default:
		return nil, fmt.Errorf("model: unsupported JSON value type %T", raw)
	}
}

// Fields is an ordered-by-key mapping from string keys to Value, used for
// properties/traits/integrations. Under an `omitempty` tag both a nil and
// an empty Fields are omitted from the wire entirely (§8 "empty properties
// are preserved as an absent field"); marshalled directly, either one
// renders as "{}".
type Fields map[string]Value

func (f Fields) MarshalJSON() ([]byte, error) {
	return ObjectValue(f).MarshalJSON()
}

func (f *Fields) UnmarshalJSON(data []byte) error {
	v, err := UnmarshalValue(data)
	if err != nil {
		return err
	}
	obj, ok := v.(ObjectValue)
	if !ok {
		return fmt.Errorf("model: fields must decode to a JSON object")
	}
	*f = Fields(obj)
	return nil
}

package internal

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
)

// ErrMetaNotObject is returned when meta is present but is not a JSON object.
var ErrMetaNotObject = &Error{Kind: ErrValidation, Msg: "meta must be an object"}

type MetaKind uint8

const (
	MetaNull MetaKind = iota
	MetaBool
	MetaNumber
	MetaString
	MetaList
	MetaObject
)

func (k MetaKind) String() string {
	switch k {
	case MetaBool:
		return "bool"
	case MetaNumber:
		return "number"
	case MetaString:
		return "string"
	case MetaList:
		return "list"
	case MetaObject:
		return "object"
	default:
		return "null"
	}
}

// Meta is the free-form key/value bag attached to an event.
type Meta map[string]MetaValue

// MetaValue holds exactly one of the supported variants, selected by Kind.
type MetaValue struct {
	kind MetaKind
	b    bool
	n    float64
	s    string
	list []MetaValue
	obj  Meta
}

func NullValue() MetaValue               { return MetaValue{} }
func BoolValue(b bool) MetaValue         { return MetaValue{kind: MetaBool, b: b} }
func NumberValue(n float64) MetaValue    { return MetaValue{kind: MetaNumber, n: n} }
func StringValue(s string) MetaValue     { return MetaValue{kind: MetaString, s: s} }
func ListValue(v ...MetaValue) MetaValue { return MetaValue{kind: MetaList, list: v} }
func ObjectValue(m Meta) MetaValue       { return MetaValue{kind: MetaObject, obj: m} }

func (v MetaValue) Kind() MetaKind { return v.kind }

func (v MetaValue) AsBool() (bool, bool)        { return v.b, v.kind == MetaBool }
func (v MetaValue) AsNumber() (float64, bool)   { return v.n, v.kind == MetaNumber }
func (v MetaValue) AsString() (string, bool)    { return v.s, v.kind == MetaString }
func (v MetaValue) AsList() ([]MetaValue, bool) { return v.list, v.kind == MetaList }
func (v MetaValue) AsObject() (Meta, bool)      { return v.obj, v.kind == MetaObject }

func (v MetaValue) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case MetaBool:
		return json.Marshal(v.b)
	case MetaNumber:
		return json.Marshal(v.n)
	case MetaString:
		return json.Marshal(v.s)
	case MetaList:
		if v.list == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(v.list)
	case MetaObject:
		return v.obj.MarshalJSON()
	default:
		return []byte("null"), nil
	}
}

func (v *MetaValue) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := metaValueOf(raw)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// MarshalJSON always produces an object; a nil Meta encodes as {}.
func (m Meta) MarshalJSON() ([]byte, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(map[string]MetaValue(m))
}

// UnmarshalJSON accepts only a JSON object. null leaves m untouched.
func (m *Meta) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return ErrMetaNotObject
	}
	var raw map[string]any
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return err
	}
	out, err := metaOf(raw)
	if err != nil {
		return err
	}
	*m = out
	return nil
}

// Clone copies the top level of m. Nested values are shared.
func (m Meta) Clone() Meta {
	if m == nil {
		return Meta{}
	}
	return maps.Clone(m)
}

// metaOf converts decoded JSON-like Go values into a Meta.
func metaOf(raw map[string]any) (Meta, error) {
	out := make(Meta, len(raw))
	for k, item := range raw {
		v, err := metaValueOf(item)
		if err != nil {
			return nil, fmt.Errorf("meta %q: %w", k, err)
		}
		out[k] = v
	}
	return out, nil
}

func metaValueOf(raw any) (MetaValue, error) {
	switch t := raw.(type) {
	case nil:
		return NullValue(), nil
	case bool:
		return BoolValue(t), nil
	case float64:
		return NumberValue(t), nil
	case int:
		return NumberValue(float64(t)), nil
	case int64:
		return NumberValue(float64(t)), nil
	case string:
		return StringValue(t), nil
	case []any:
		list := make([]MetaValue, 0, len(t))
		for _, item := range t {
			v, err := metaValueOf(item)
			if err != nil {
				return MetaValue{}, err
			}
			list = append(list, v)
		}
		return ListValue(list...), nil
	case map[string]any:
		obj, err := metaOf(t)
		if err != nil {
			return MetaValue{}, err
		}
		return ObjectValue(obj), nil
	default:
		return MetaValue{}, errors.New("unsupported meta value")
	}
}

// Package record holds the ordered, field-keyed rows produced by the stream decoders.
package record

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/valyala/fastjson"
	"gopkg.in/yaml.v3"
)

// Record is an ordered mapping from field name to a scalar value.
// Values are string, json.Number, float64, bool, nil, or json.RawMessage for
// nested JSON carried through unchanged.
type Record struct {
	keys   []string
	values []any
	index  map[string]int
}

// New returns an empty record with room for n fields.
func New(n int) Record {
	return Record{
		keys:   make([]string, 0, n),
		values: make([]any, 0, n),
		index:  make(map[string]int, n),
	}
}

// Set stores v under key. A key already present keeps its position.
func (r *Record) Set(key string, v any) {
	if r.index == nil {
		r.index = make(map[string]int)
	}
	if i, ok := r.index[key]; ok {
		r.values[i] = v
		return
	}
	r.index[key] = len(r.keys)
	r.keys = append(r.keys, key)
	r.values = append(r.values, v)
}

// Get returns the value stored under key.
func (r Record) Get(key string) (any, bool) {
	i, ok := r.index[key]
	if !ok {
		return nil, false
	}
	return r.values[i], true
}

// Keys returns the field names in insertion order.
func (r Record) Keys() []string {
	out := make([]string, len(r.keys))
	copy(out, r.keys)
	return out
}

// Len returns the number of fields.
func (r Record) Len() int {
	return len(r.keys)
}

// Without returns a copy of r minus the named fields.
func (r Record) Without(drop ...string) Record {
	out := New(len(r.keys))
	for i, k := range r.keys {
		skip := false
		for _, d := range drop {
			if k == d {
				skip = true
				break
			}
		}
		if !skip {
			out.Set(k, r.values[i])
		}
	}
	return out
}

// String returns the value under key rendered as text, and whether it was present.
func (r Record) String(key string) (string, bool) {
	v, ok := r.Get(key)
	if !ok || v == nil {
		return "", ok
	}
	switch x := v.(type) {
	case string:
		return x, true
	case json.Number:
		return x.String(), true
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(x), true
	case json.RawMessage:
		return string(x), true
	default:
		return fmt.Sprint(x), true
	}
}

// MarshalJSON encodes the record as a JSON object with fields in insertion order.
func (r Record) MarshalJSON() ([]byte, error) {
	return r.AppendJSON(nil)
}

// AppendJSON appends the JSON object encoding of r to dst.
func (r Record) AppendJSON(dst []byte) ([]byte, error) {
	var a fastjson.Arena
	obj := a.NewObject()
	for i, k := range r.keys {
		v, err := jsonValue(&a, r.values[i])
		if err != nil {
			return nil, eris.Wrapf(err, "record: encode field %q", k)
		}
		obj.Set(k, v)
	}
	return obj.MarshalTo(dst), nil
}

func jsonValue(a *fastjson.Arena, v any) (*fastjson.Value, error) {
	switch x := v.(type) {
	case nil:
		return a.NewNull(), nil
	case string:
		return a.NewString(x), nil
	case json.Number:
		return a.NewNumberString(x.String()), nil
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return a.NewNull(), nil
		}
		return a.NewNumberFloat64(x), nil
	case int:
		return a.NewNumberInt(x), nil
	case bool:
		if x {
			return a.NewTrue(), nil
		}
		return a.NewFalse(), nil
	case json.RawMessage:
		// A fresh parser per value: parsed values are only valid until the parser is reused.
		var p fastjson.Parser
		pv, err := p.ParseBytes(x)
		if err != nil {
			return nil, err
		}
		return pv, nil
	default:
		return nil, eris.Errorf("unsupported value type %T", v)
	}
}

// MarshalYAML renders the record as a YAML mapping preserving field order.
func (r Record) MarshalYAML() (any, error) {
	node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for i, k := range r.keys {
		var val yaml.Node
		switch x := r.values[i].(type) {
		case json.RawMessage:
			var decoded any
			if err := json.Unmarshal(x, &decoded); err != nil {
				return nil, eris.Wrapf(err, "record: decode nested field %q", k)
			}
			if err := val.Encode(decoded); err != nil {
				return nil, eris.Wrapf(err, "record: encode field %q", k)
			}
		case json.Number:
			val = yaml.Node{Kind: yaml.ScalarNode, Tag: "!!float", Value: x.String()}
			if _, err := x.Int64(); err == nil {
				val.Tag = "!!int"
			}
		default:
			if err := val.Encode(x); err != nil {
				return nil, eris.Wrapf(err, "record: encode field %q", k)
			}
		}
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: k},
			&val,
		)
	}
	return node, nil
}

// FromObject builds a record from a fastjson object, keeping key order.
// Nested objects and arrays are kept as raw JSON.
func FromObject(o *fastjson.Object) Record {
	if o == nil {
		return New(0)
	}
	r := New(o.Len())
	o.Visit(func(key []byte, v *fastjson.Value) {
		r.Set(string(key), scalar(v))
	})
	return r
}

func scalar(v *fastjson.Value) any {
	switch v.Type() {
	case fastjson.TypeNull:
		return nil
	case fastjson.TypeString:
		return string(v.GetStringBytes())
	case fastjson.TypeNumber:
		return json.Number(v.String())
	case fastjson.TypeTrue:
		return true
	case fastjson.TypeFalse:
		return false
	default:
		return json.RawMessage(v.MarshalTo(nil))
	}
}

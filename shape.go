package bind

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"reflect"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// Value is anything the shaper can read fields from. Lookup reports the
// field value, whether the producer explicitly set it, and whether the
// field exists at all. *Object, *Payload and Map implement it.
type Value interface {
	Lookup(name string) (v any, set bool, ok bool)
}

// Map adapts a plain map to Value. Every present key counts as set.
type Map map[string]any

// Lookup implements Value.
func (m Map) Lookup(name string) (any, bool, bool) {
	v, ok := m[name]
	return v, ok, ok
}

// ResponseSpec describes how a value is projected onto an output schema.
// Build it with NewResponseSpec; it is immutable afterwards.
type ResponseSpec struct {
	schema       *Schema
	include      map[int]bool
	exclude      map[int]bool
	excludeUnset bool
	nested       map[int]*ResponseSpec
}

// ResponseOption configures a ResponseSpec.
type ResponseOption func(*responseConfig)

type responseConfig struct {
	include      []string
	exclude      []string
	excludeUnset bool
	nested       map[string]*ResponseSpec
}

// IncludeFields restricts the payload to the named fields.
func IncludeFields(names ...string) ResponseOption {
	return func(c *responseConfig) { c.include = append(c.include, names...) }
}

// ExcludeFields drops the named fields from the payload.
func ExcludeFields(names ...string) ResponseOption {
	return func(c *responseConfig) { c.exclude = append(c.exclude, names...) }
}

// ExcludeUnset emits only fields the producer explicitly assigned.
func ExcludeUnset() ResponseOption {
	return func(c *responseConfig) { c.excludeUnset = true }
}

// NestedSpec shapes the nested-schema field name with spec instead of the
// default include-everything spec.
func NestedSpec(name string, spec *ResponseSpec) ResponseOption {
	return func(c *responseConfig) {
		if c.nested == nil {
			c.nested = make(map[string]*ResponseSpec)
		}
		c.nested[name] = spec
	}
}

// NewResponseSpec builds a ResponseSpec over s. Every field name given to
// an option must exist on s, and nested specs must target the schema of
// the field they are attached to.
func NewResponseSpec(s *Schema, opts ...ResponseOption) (*ResponseSpec, error) {
	if s == nil {
		return nil, fmt.Errorf("%w: response spec without schema", ErrInvalidSchema)
	}
	var cfg responseConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	rs := &ResponseSpec{schema: s, excludeUnset: cfg.excludeUnset}

	resolve := func(names []string) (map[int]bool, error) {
		if len(names) == 0 {
			return nil, nil
		}
		out := make(map[int]bool, len(names))
		for _, n := range names {
			i, ok := s.fieldIndex(n)
			if !ok {
				return nil, fmt.Errorf("%w: response %s: no field %q", ErrInvalidSchema, s.name, n)
			}
			out[i] = true
		}
		return out, nil
	}

	var err error
	if rs.include, err = resolve(cfg.include); err != nil {
		return nil, err
	}
	if rs.exclude, err = resolve(cfg.exclude); err != nil {
		return nil, err
	}

	for name, spec := range cfg.nested {
		i, ok := s.fieldIndex(name)
		if !ok {
			return nil, fmt.Errorf("%w: response %s: no field %q", ErrInvalidSchema, s.name, name)
		}
		target := objectSchema(s.fields[i].Type)
		if target == nil {
			return nil, fmt.Errorf("%w: response %s: field %q is not a nested schema", ErrInvalidSchema, s.name, name)
		}
		if spec == nil || spec.schema != target {
			return nil, fmt.Errorf("%w: response %s: nested spec for %q must target %s", ErrInvalidSchema, s.name, name, target.name)
		}
		if rs.nested == nil {
			rs.nested = make(map[int]*ResponseSpec)
		}
		rs.nested[i] = spec
	}

	return rs, nil
}

// MustResponseSpec is like NewResponseSpec but panics on error.
func MustResponseSpec(s *Schema, opts ...ResponseOption) *ResponseSpec {
	rs, err := NewResponseSpec(s, opts...)
	if err != nil {
		panic(err)
	}
	return rs
}

// Schema returns the output schema.
func (rs *ResponseSpec) Schema() *Schema { return rs.schema }

// Shape projects v onto the spec's schema. Fields the schema does not
// declare are dropped. A field missing from v falls back to its default,
// which counts as unset, or is omitted when there is none. Include and
// Exclude apply after the unset filter. Values come out in wire form, so
// the result can be encoded directly and shaped again with the same
// outcome.
func Shape(v Value, spec *ResponseSpec) *Payload {
	p := &Payload{values: make(map[string]any, len(spec.schema.fields))}
	if v == nil || isNilValue(v) {
		return p
	}

	for i := range spec.schema.fields {
		f := &spec.schema.fields[i]

		val, set, ok := v.Lookup(f.Key())
		if !ok && f.Alias != "" {
			val, set, ok = v.Lookup(f.Name)
		}
		if !ok {
			if !f.HasDefault {
				continue
			}
			val, set = f.Default, false
		}

		if spec.excludeUnset && !set {
			continue
		}
		if spec.include != nil && !spec.include[i] {
			continue
		}
		if spec.exclude[i] {
			continue
		}

		p.put(f.Key(), encodeValue(f.Type, val, spec.nestedFor(i)))
	}
	return p
}

func (rs *ResponseSpec) nestedFor(i int) *ResponseSpec {
	if n, ok := rs.nested[i]; ok {
		return n
	}
	s := objectSchema(rs.schema.fields[i].Type)
	if s == nil {
		return nil
	}
	return &ResponseSpec{schema: s, excludeUnset: rs.excludeUnset}
}

// objectSchema returns the nested schema inside t, looking through
// optional, list and set wrappers.
func objectSchema(t Type) *Schema {
	for t.elem != nil {
		t = *t.elem
	}
	return t.schema
}

// encodeValue renders v in its wire form for type t. Values already in
// wire form pass through unchanged.
func encodeValue(t Type, v any, nested *ResponseSpec) any {
	if v == nil {
		return nil
	}
	t = t.base()

	switch t.kind {
	case KindList, KindSet:
		rv := reflect.ValueOf(v)
		if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
			return v
		}
		out := make([]any, rv.Len())
		for i := range rv.Len() {
			out[i] = encodeValue(*t.elem, rv.Index(i).Interface(), nested)
		}
		return out

	case KindObject:
		if nested == nil {
			nested = &ResponseSpec{schema: t.schema}
		}
		switch x := v.(type) {
		case Value:
			return Shape(x, nested)
		case map[string]any:
			return Shape(Map(x), nested)
		}
		return v
	}

	switch x := v.(type) {
	case time.Time:
		switch t.kind {
		case KindDate:
			return FormatDate(x)
		case KindTime:
			return FormatTime(x)
		default:
			return FormatDateTime(x)
		}
	case time.Duration:
		return FormatDuration(x)
	case uuid.UUID:
		return x.String()
	case url.URL:
		return x.String()
	case *url.URL:
		return x.String()
	case json.Number:
		if n, err := x.Int64(); err == nil {
			return n
		}
		if f, err := x.Float64(); err == nil {
			return f
		}
		return x.String()
	case int:
		return int64(x)
	case int32:
		return int64(x)
	case float32:
		return float64(x)
	}
	return v
}

func isNilValue(v Value) bool {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map:
		return rv.IsNil()
	default:
		return false
	}
}

// valueKey returns a string identifying a coerced value, for set
// de-duplication. Datetimes compare by instant.
func valueKey(t Type, v any) string {
	if tm, ok := v.(time.Time); ok && t.base().kind == KindDateTime {
		v = tm.UTC()
	}
	data, err := json.Marshal(encodeValue(t, v, nil))
	if err != nil {
		return fmt.Sprintf("%#v", v)
	}
	return string(data)
}

// Payload is the shaper's output: an ordered set of wire-form fields.
// It encodes to JSON and YAML with keys in schema declaration order.
type Payload struct {
	keys   []string
	values map[string]any
}

func (p *Payload) put(key string, v any) {
	if _, ok := p.values[key]; !ok {
		p.keys = append(p.keys, key)
	}
	p.values[key] = v
}

// Get returns the value stored under key.
func (p *Payload) Get(key string) (any, bool) {
	v, ok := p.values[key]
	return v, ok
}

// Keys returns the keys in output order.
func (p *Payload) Keys() []string { return append([]string(nil), p.keys...) }

// Len returns the number of fields.
func (p *Payload) Len() int { return len(p.keys) }

// Lookup implements Value. Every field in a payload counts as set.
func (p *Payload) Lookup(name string) (any, bool, bool) {
	v, ok := p.values[name]
	return v, ok, ok
}

// Map converts the payload into plain maps and slices.
func (p *Payload) Map() map[string]any {
	out := make(map[string]any, len(p.keys))
	for _, k := range p.keys {
		out[k] = plain(p.values[k])
	}
	return out
}

func plain(v any) any {
	switch x := v.(type) {
	case *Payload:
		return x.Map()
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = plain(e)
		}
		return out
	default:
		return v
	}
}

// MarshalJSON writes the fields in order.
func (p *Payload) MarshalJSON() ([]byte, error) {
	if p == nil {
		return []byte("null"), nil
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range p.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := json.Marshal(p.values[k])
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", k, err)
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// MarshalYAML returns a mapping node with the fields in order.
func (p *Payload) MarshalYAML() (any, error) {
	node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	if p == nil {
		return node, nil
	}
	for _, k := range p.keys {
		keyNode := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: k}
		valNode := &yaml.Node{}
		if err := valNode.Encode(p.values[k]); err != nil {
			return nil, fmt.Errorf("field %s: %w", k, err)
		}
		node.Content = append(node.Content, keyNode, valNode)
	}
	return node, nil
}

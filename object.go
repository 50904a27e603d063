package bind

import (
	"errors"
	"fmt"
	"maps"
	"net/url"
	"reflect"
	"time"

	"github.com/google/uuid"
)

// fieldSet is a bitset of field positions.
type fieldSet []uint64

func newFieldSet(n int) fieldSet { return make(fieldSet, (n+63)/64) }

func (s fieldSet) add(i int)      { s[i/64] |= 1 << (uint(i) % 64) }
func (s fieldSet) has(i int) bool { return s[i/64]&(1<<(uint(i)%64)) != 0 }

// Object is a structured value conforming to a Schema: the successful result
// of Bind, or a value built by application code for shaping. Alongside each
// field's value it records whether the field was explicitly set or left at
// its default, which is what ExcludeUnset shaping relies on.
//
// An Object is not safe for concurrent mutation.
type Object struct {
	schema *Schema
	values []any
	set    fieldSet
	extra  map[string]any
}

// BoundValue is one field of an Object together with where it came from.
type BoundValue struct {
	Name      string
	Value     any
	Source    Source
	Defaulted bool
}

// New returns an Object with every default applied and nothing marked as set.
func (s *Schema) New() *Object {
	o := &Object{
		schema: s,
		values: make([]any, len(s.fields)),
		set:    newFieldSet(len(s.fields)),
	}
	for i := range s.fields {
		if s.fields[i].HasDefault {
			o.values[i] = cloneValue(s.fields[i].Default)
		}
	}
	return o
}

// Schema returns the object's schema.
func (o *Object) Schema() *Schema { return o.schema }

// Get returns the value of the named field (name or alias).
func (o *Object) Get(name string) (any, bool) {
	i, ok := o.schema.fieldIndex(name)
	if !ok {
		return nil, false
	}
	return o.values[i], true
}

// Lookup implements Value.
func (o *Object) Lookup(name string) (v any, set bool, ok bool) {
	i, ok := o.schema.fieldIndex(name)
	if !ok {
		return nil, false, false
	}
	return o.values[i], o.set.has(i), true
}

// IsSet reports whether the field was explicitly assigned, by the request
// or by Set, as opposed to holding its default.
func (o *Object) IsSet(name string) bool {
	i, ok := o.schema.fieldIndex(name)
	return ok && o.set.has(i)
}

// Bound returns the field value with its provenance.
func (o *Object) Bound(name string) (BoundValue, bool) {
	i, ok := o.schema.fieldIndex(name)
	if !ok {
		return BoundValue{}, false
	}
	f := &o.schema.fields[i]
	return BoundValue{
		Name:      f.Name,
		Value:     o.values[i],
		Source:    f.Source,
		Defaulted: !o.set.has(i),
	}, true
}

// Set assigns a field and marks it as explicitly set. Go values are
// normalized to the representation Bind produces (ints to int64, slices to
// []any, strings parsed for date, UUID and similar kinds). No constraints
// are checked.
func (o *Object) Set(name string, v any) error {
	i, ok := o.schema.fieldIndex(name)
	if !ok {
		return fmt.Errorf("%w: %s has no field %q", ErrUnknownField, o.schema.name, name)
	}
	nv, err := normalizeValue(o.schema.fields[i].Type, v)
	if err != nil {
		return fmt.Errorf("%s.%s: %w", o.schema.name, name, err)
	}
	o.values[i] = nv
	o.set.add(i)
	return nil
}

// MustSet is like Set but panics on error.
func (o *Object) MustSet(name string, v any) *Object {
	if err := o.Set(name, v); err != nil {
		panic(err)
	}
	return o
}

// Extra returns a copy of the unclaimed keys retained under ExtraAllow.
func (o *Object) Extra() map[string]any {
	return maps.Clone(o.extra)
}

// Clone returns a deep copy.
func (o *Object) Clone() *Object {
	c := &Object{
		schema: o.schema,
		values: make([]any, len(o.values)),
		set:    append(fieldSet(nil), o.set...),
		extra:  maps.Clone(o.extra),
	}
	for i, v := range o.values {
		c.values[i] = cloneValue(v)
	}
	return c
}

// GetString returns a string, enum or email field, or "".
func (o *Object) GetString(name string) string {
	v, _ := o.Get(name)
	s, _ := v.(string)
	return s
}

// GetInt returns an int field, or 0.
func (o *Object) GetInt(name string) int64 {
	v, _ := o.Get(name)
	n, _ := v.(int64)
	return n
}

// GetFloat returns a float field, or 0.
func (o *Object) GetFloat(name string) float64 {
	v, _ := o.Get(name)
	f, _ := v.(float64)
	return f
}

// GetBool returns a bool field, or false.
func (o *Object) GetBool(name string) bool {
	v, _ := o.Get(name)
	b, _ := v.(bool)
	return b
}

// GetTime returns a date, time or datetime field, or the zero time.
func (o *Object) GetTime(name string) time.Time {
	v, _ := o.Get(name)
	t, _ := v.(time.Time)
	return t
}

// GetDuration returns a duration field, or 0.
func (o *Object) GetDuration(name string) time.Duration {
	v, _ := o.Get(name)
	d, _ := v.(time.Duration)
	return d
}

// GetUUID returns a UUID field, or uuid.Nil.
func (o *Object) GetUUID(name string) uuid.UUID {
	v, _ := o.Get(name)
	id, _ := v.(uuid.UUID)
	return id
}

// GetURL returns a URL field, or nil.
func (o *Object) GetURL(name string) *url.URL {
	v, _ := o.Get(name)
	u, ok := v.(url.URL)
	if !ok {
		return nil
	}
	return &u
}

// GetList returns a copy of a list or set field.
func (o *Object) GetList(name string) []any {
	v, _ := o.Get(name)
	l, _ := v.([]any)
	return append([]any(nil), l...)
}

// GetObject returns a nested object field, or nil.
func (o *Object) GetObject(name string) *Object {
	v, _ := o.Get(name)
	obj, _ := v.(*Object)
	return obj
}

func cloneValue(v any) any {
	switch x := v.(type) {
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = cloneValue(e)
		}
		return out
	case *Object:
		if x == nil {
			return x
		}
		return x.Clone()
	default:
		return v
	}
}

var errNilValue = errors.New("nil is only valid for optional fields")

// normalizeValue converts a Go value supplied by application code into the
// representation the coercer produces for t.
func normalizeValue(t Type, v any) (any, error) {
	if v == nil {
		if t.kind == KindOptional {
			return nil, nil
		}
		return nil, errNilValue
	}

	switch t.kind {
	case KindOptional:
		return normalizeValue(*t.elem, v)

	case KindList, KindSet:
		rv := reflect.ValueOf(v)
		if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
			return nil, fmt.Errorf("want a slice for %s, got %T", t, v)
		}
		out := make([]any, rv.Len())
		for i := range rv.Len() {
			e, err := normalizeValue(*t.elem, rv.Index(i).Interface())
			if err != nil {
				return nil, fmt.Errorf("element %d: %w", i, err)
			}
			out[i] = e
		}
		if t.kind == KindSet {
			out = dedupe(*t.elem, out)
		}
		return out, nil

	case KindObject:
		switch x := v.(type) {
		case *Object:
			if x.schema != t.schema {
				return nil, fmt.Errorf("want %s object, got %s", t.schema.name, x.schema.name)
			}
			return x.Clone(), nil
		case map[string]any:
			obj := t.schema.New()
			for k, e := range x {
				if err := obj.Set(k, e); err != nil {
					return nil, err
				}
			}
			return obj, nil
		default:
			return nil, fmt.Errorf("want *Object or map for %s, got %T", t, v)
		}
	}

	if nv, ok := normalizeScalar(t, v); ok {
		return nv, nil
	}
	if rv := reflect.ValueOf(v); rv.Kind() == reflect.String {
		nv, msg := coerceScalar(t, token{v: rv.String(), text: true})
		if msg != "" {
			return nil, errors.New(msg)
		}
		return nv, nil
	}
	return nil, fmt.Errorf("cannot use %T as %s", v, t)
}

func normalizeScalar(t Type, v any) (any, bool) {
	rv := reflect.ValueOf(v)
	switch t.kind {
	case KindString, KindEmail:
		if rv.Kind() == reflect.String {
			return rv.String(), true
		}
	case KindEnum:
		if rv.Kind() == reflect.String {
			s := rv.String()
			for _, m := range t.members {
				if m == s {
					return s, true
				}
			}
		}
	case KindInt:
		switch rv.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			return rv.Int(), true
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32:
			return int64(rv.Uint()), true
		}
	case KindFloat:
		switch rv.Kind() {
		case reflect.Float32, reflect.Float64:
			return rv.Float(), true
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			return float64(rv.Int()), true
		}
	case KindBool:
		if rv.Kind() == reflect.Bool {
			return rv.Bool(), true
		}
	case KindUUID:
		if id, ok := v.(uuid.UUID); ok {
			return id, true
		}
	case KindDate, KindTime, KindDateTime:
		if tm, ok := v.(time.Time); ok {
			return tm, true
		}
	case KindDuration:
		if d, ok := v.(time.Duration); ok {
			return d, true
		}
	case KindURL:
		switch u := v.(type) {
		case url.URL:
			return u, true
		case *url.URL:
			if u != nil {
				return *u, true
			}
		}
	}
	return nil, false
}

package bind

import (
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// Definitions holds the schemas and response specs read by LoadSchemas.
type Definitions struct {
	Schemas   map[string]*Schema
	Responses map[string]*ResponseSpec
}

// Schema returns the named schema.
func (d *Definitions) Schema(name string) (*Schema, error) {
	s, ok := d.Schemas[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrSchemaMissing, name)
	}
	return s, nil
}

// Response returns the named response spec.
func (d *Definitions) Response(name string) (*ResponseSpec, error) {
	rs, ok := d.Responses[name]
	if !ok {
		return nil, fmt.Errorf("%w: response %q", ErrSchemaMissing, name)
	}
	return rs, nil
}

type definitionsFile struct {
	Schemas   map[string]schemaDef   `yaml:"schemas"`
	Responses map[string]responseDef `yaml:"responses"`
}

type schemaDef struct {
	Description string      `yaml:"description"`
	Extra       ExtraPolicy `yaml:"extra"`
	Fields      []fieldDef  `yaml:"fields"`
}

type fieldDef struct {
	Name            string    `yaml:"name"`
	Type            string    `yaml:"type"`
	In              Source    `yaml:"in"`
	Alias           string    `yaml:"alias"`
	Members         []string  `yaml:"members"`
	Default         yaml.Node `yaml:"default"`
	Description     string    `yaml:"description"`
	Deprecated      bool      `yaml:"deprecated"`
	Sensitive       bool      `yaml:"sensitive"`
	KeepUnderscores bool      `yaml:"keep_underscores"`
	WholeBody       bool      `yaml:"whole_body"`

	MinLength  *int     `yaml:"min_length"`
	MaxLength  *int     `yaml:"max_length"`
	Pattern    string   `yaml:"pattern"`
	Ge         *float64 `yaml:"ge"`
	Le         *float64 `yaml:"le"`
	Gt         *float64 `yaml:"gt"`
	Lt         *float64 `yaml:"lt"`
	MultipleOf *float64 `yaml:"multiple_of"`
	MinItems   *int     `yaml:"min_items"`
	MaxItems   *int     `yaml:"max_items"`
}

type responseDef struct {
	Schema       string            `yaml:"schema"`
	Include      []string          `yaml:"include"`
	Exclude      []string          `yaml:"exclude"`
	ExcludeUnset bool              `yaml:"exclude_unset"`
	Nested       map[string]string `yaml:"nested"`
}

// LoadSchemas reads schema and response declarations from YAML:
//
//	schemas:
//	  Item:
//	    extra: forbid
//	    fields:
//	      - {name: name, type: string, in: body, max_length: 50}
//	      - {name: tax, type: "optional[float]", in: body, default: null}
//	responses:
//	  ItemOut: {schema: Item, exclude_unset: true}
//
// Type expressions are the primitive kind names (string, int, float, bool,
// uuid, compact_uuid, date, time, datetime, duration, url, email), enum
// with a members list or inline as enum(a|b), list[T], set[T], optional[T],
// or the name of another schema in the same file. Unknown keys, unknown
// references and reference cycles are errors.
func LoadSchemas(r io.Reader, opts ...SchemaOption) (*Definitions, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var file definitionsFile
	if err := dec.Decode(&file); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: decode definitions: %w", ErrInvalidSchema, err)
	}

	l := &loader{
		defs:     file.Schemas,
		opts:     opts,
		built:    make(map[string]*Schema, len(file.Schemas)),
		visiting: make(map[string]bool),
	}

	names := make([]string, 0, len(file.Schemas))
	for name := range file.Schemas {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		if _, err := l.schema(name); err != nil {
			return nil, err
		}
	}

	d := &Definitions{
		Schemas:   l.built,
		Responses: make(map[string]*ResponseSpec, len(file.Responses)),
	}

	rnames := make([]string, 0, len(file.Responses))
	for name := range file.Responses {
		rnames = append(rnames, name)
	}
	slices.Sort(rnames)

	building := make(map[string]bool)
	var response func(name string) (*ResponseSpec, error)
	response = func(name string) (*ResponseSpec, error) {
		if rs, ok := d.Responses[name]; ok {
			return rs, nil
		}
		def, ok := file.Responses[name]
		if !ok {
			return nil, fmt.Errorf("%w: response %q", ErrSchemaMissing, name)
		}
		if building[name] {
			return nil, fmt.Errorf("%w: response %q refers to itself", ErrInvalidSchema, name)
		}
		building[name] = true
		defer delete(building, name)

		s, err := d.Schema(def.Schema)
		if err != nil {
			return nil, fmt.Errorf("response %q: %w", name, err)
		}
		ropts := []ResponseOption{IncludeFields(def.Include...), ExcludeFields(def.Exclude...)}
		if def.ExcludeUnset {
			ropts = append(ropts, ExcludeUnset())
		}
		for field, nestedName := range def.Nested {
			nested, err := response(nestedName)
			if err != nil {
				return nil, err
			}
			ropts = append(ropts, NestedSpec(field, nested))
		}
		rs, err := NewResponseSpec(s, ropts...)
		if err != nil {
			return nil, err
		}
		d.Responses[name] = rs
		return rs, nil
	}

	for _, name := range rnames {
		if _, err := response(name); err != nil {
			return nil, err
		}
	}

	return d, nil
}

type loader struct {
	defs     map[string]schemaDef
	opts     []SchemaOption
	built    map[string]*Schema
	visiting map[string]bool
}

// schema builds the named schema after every schema it references.
func (l *loader) schema(name string) (*Schema, error) {
	if s, ok := l.built[name]; ok {
		return s, nil
	}
	def, ok := l.defs[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrSchemaMissing, name)
	}
	if l.visiting[name] {
		return nil, fmt.Errorf("%w: schema %q refers to itself", ErrInvalidSchema, name)
	}
	l.visiting[name] = true
	defer delete(l.visiting, name)

	fields := make([]FieldSpec, 0, len(def.Fields))
	for _, fd := range def.Fields {
		f, err := l.field(fd)
		if err != nil {
			return nil, fmt.Errorf("schema %s: field %q: %w", name, fd.Name, err)
		}
		fields = append(fields, f)
	}

	opts := append([]SchemaOption(nil), l.opts...)
	if def.Extra != "" {
		opts = append(opts, WithExtra(def.Extra))
	}
	if def.Description != "" {
		opts = append(opts, WithDescription(def.Description))
	}

	s, err := NewSchema(name, fields, opts...)
	if err != nil {
		return nil, err
	}
	l.built[name] = s
	return s, nil
}

func (l *loader) field(fd fieldDef) (FieldSpec, error) {
	t, err := l.parseType(strings.TrimSpace(fd.Type), fd.Members)
	if err != nil {
		return FieldSpec{}, err
	}

	var opts []FieldOption
	if fd.In != "" {
		opts = append(opts, In(fd.In))
	}
	if fd.Alias != "" {
		opts = append(opts, Alias(fd.Alias))
	}
	if fd.Default.Kind != 0 {
		var v any
		if err := fd.Default.Decode(&v); err != nil {
			return FieldSpec{}, fmt.Errorf("%w: default: %w", ErrInvalidSchema, err)
		}
		opts = append(opts, Default(v))
	}
	if fd.Description != "" {
		opts = append(opts, Describe(fd.Description))
	}
	if fd.Deprecated {
		opts = append(opts, Deprecated())
	}
	if fd.Sensitive {
		opts = append(opts, Sensitive())
	}
	if fd.KeepUnderscores {
		opts = append(opts, KeepUnderscores())
	}
	if fd.WholeBody {
		opts = append(opts, WholeBody())
	}

	f := Field(fd.Name, t, opts...)
	f.Constraints = ConstraintSet{
		MinLength:  fd.MinLength,
		MaxLength:  fd.MaxLength,
		Pattern:    fd.Pattern,
		Ge:         fd.Ge,
		Le:         fd.Le,
		Gt:         fd.Gt,
		Lt:         fd.Lt,
		MultipleOf: fd.MultipleOf,
		MinItems:   fd.MinItems,
		MaxItems:   fd.MaxItems,
	}
	return f, nil
}

var primitiveTypes = map[string]func() Type{
	"string":       String,
	"int":          Int,
	"float":        Float,
	"bool":         Bool,
	"uuid":         UUID,
	"compact_uuid": CompactUUID,
	"date":         Date,
	"time":         Time,
	"datetime":     DateTime,
	"duration":     Duration,
	"url":          URL,
	"email":        Email,
}

// parseType reads a type expression such as "list[optional[int]]".
func (l *loader) parseType(expr string, members []string) (Type, error) {
	if expr == "" {
		return Type{}, fmt.Errorf("%w: missing type", ErrInvalidSchema)
	}
	if mk, ok := primitiveTypes[expr]; ok {
		return mk(), nil
	}

	if expr == "enum" {
		return Enum(members...), nil
	}
	if inner, ok := cutWrapped(expr, "enum(", ")"); ok {
		return Enum(strings.Split(inner, "|")...), nil
	}

	wrappers := []struct {
		prefix string
		wrap   func(Type) Type
	}{
		{"list[", ListOf},
		{"set[", SetOf},
		{"optional[", OptionalOf},
	}
	for _, w := range wrappers {
		inner, ok := cutWrapped(expr, w.prefix, "]")
		if !ok {
			continue
		}
		elem, err := l.parseType(strings.TrimSpace(inner), members)
		if err != nil {
			return Type{}, err
		}
		return w.wrap(elem), nil
	}

	if strings.ContainsAny(expr, "[]()") {
		return Type{}, fmt.Errorf("%w: malformed type %q", ErrInvalidSchema, expr)
	}
	s, err := l.schema(expr)
	if err != nil {
		return Type{}, err
	}
	return ObjectOf(s), nil
}

func cutWrapped(s, prefix, suffix string) (string, bool) {
	if !strings.HasPrefix(s, prefix) || !strings.HasSuffix(s, suffix) {
		return "", false
	}
	return s[len(prefix) : len(s)-len(suffix)], true
}

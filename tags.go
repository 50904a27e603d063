package bind

import (
	"errors"
	"fmt"
	"math"
	"net/url"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// paramTags are the struct tags that bind a field to a request location.
var paramTags = []struct {
	tag    string
	source Source
}{
	{"path", SourcePath},
	{"query", SourceQuery},
	{"header", SourceHeader},
	{"cookie", SourceCookie},
}

var (
	typeTime     = reflect.TypeFor[time.Time]()
	typeDuration = reflect.TypeFor[time.Duration]()
	typeUUID     = reflect.TypeFor[uuid.UUID]()
	typeURL      = reflect.TypeFor[url.URL]()
)

// SchemaOf declares a Schema from the struct tags of T. Reflection runs
// here, once; binding works off the resulting field table.
//
// Fields tagged path, query, header or cookie are read from that location
// under the tag's name. A field named Body is bound from the whole request
// body. Any other exported field is a body key named by its json tag. The
// constraint tags are minLength, maxLength, pattern, minimum, maximum,
// exclusiveMinimum, exclusiveMaximum, multipleOf, minItems and maxItems;
// enum lists comma-separated members, format picks uuid, date, time,
// date-time, duration, uri or email for string fields, and uniqueItems
// turns a slice into a set. A field with a default tag, or of pointer
// type, is optional; anything else is required.
func SchemaOf[T any](opts ...SchemaOption) (*Schema, error) {
	b := &tagBuilder{
		done:    make(map[reflect.Type]*Schema),
		pending: make(map[reflect.Type]bool),
	}
	return b.schema(reflect.TypeFor[T](), opts)
}

// MustSchemaOf is like SchemaOf but panics on error.
func MustSchemaOf[T any](opts ...SchemaOption) *Schema {
	s, err := SchemaOf[T](opts...)
	if err != nil {
		panic(err)
	}
	return s
}

type tagBuilder struct {
	done    map[reflect.Type]*Schema
	pending map[reflect.Type]bool
}

func (b *tagBuilder) schema(rt reflect.Type, opts []SchemaOption) (*Schema, error) {
	if rt.Kind() == reflect.Pointer {
		rt = rt.Elem()
	}
	if rt.Kind() != reflect.Struct {
		return nil, fmt.Errorf("%w: %s is not a struct", ErrInvalidSchema, rt)
	}
	if s, ok := b.done[rt]; ok {
		return s, nil
	}
	if b.pending[rt] {
		return nil, fmt.Errorf("%w: %s refers to itself", ErrInvalidSchema, rt)
	}
	b.pending[rt] = true
	defer delete(b.pending, rt)

	var fields []FieldSpec
	if err := b.collect(rt, nil, &fields); err != nil {
		return nil, err
	}

	name := rt.Name()
	if name == "" {
		name = rt.String()
	}
	s, err := NewSchema(name, fields, opts...)
	if err != nil {
		return nil, err
	}
	s.goType = rt
	b.done[rt] = s
	return s, nil
}

// collect walks rt in declaration order, flattening untagged embedded structs.
func (b *tagBuilder) collect(rt reflect.Type, index []int, out *[]FieldSpec) error {
	for i := range rt.NumField() {
		sf := rt.Field(i)
		idx := append(append([]int(nil), index...), i)

		if sf.Anonymous && sf.Type.Kind() == reflect.Struct && !isParamField(sf) && sf.Tag.Get("json") == "" {
			if err := b.collect(sf.Type, idx, out); err != nil {
				return err
			}
			continue
		}
		if !sf.IsExported() {
			continue
		}

		f, skip, err := b.field(sf)
		if err != nil {
			return fmt.Errorf("%w: %s.%s: %w", ErrInvalidSchema, rt.Name(), sf.Name, err)
		}
		if skip {
			continue
		}
		f.goIndex = idx
		*out = append(*out, f)
	}
	return nil
}

func (b *tagBuilder) field(sf reflect.StructField) (FieldSpec, bool, error) {
	var (
		name string
		src  = SourceBody
		opts []FieldOption
	)

	for _, p := range paramTags {
		tag := sf.Tag.Get(p.tag)
		if tag == "" {
			continue
		}
		var rest string
		name, rest = tagOptions(tag)
		src = p.source
		if p.source == SourceHeader && tagContains(rest, "underscores") {
			opts = append(opts, KeepUnderscores())
		}
		break
	}

	if src == SourceBody {
		if sf.Tag.Get("json") == "-" {
			return FieldSpec{}, true, nil
		}
		name = jsonFieldName(sf)
		if sf.Name == "Body" {
			if _, ok := sf.Tag.Lookup("json"); !ok {
				name = "body"
			}
			opts = append(opts, WholeBody())
		}
	}
	opts = append(opts, In(src))

	t, err := b.typeOf(sf.Type, sf.Tag)
	if err != nil {
		return FieldSpec{}, false, err
	}

	if def, ok := sf.Tag.Lookup("default"); ok {
		if t.isCollection() {
			opts = append(opts, Default(splitList(def)))
		} else {
			opts = append(opts, Default(def))
		}
	} else if t.kind == KindOptional && sf.Tag.Get("required") != "true" {
		opts = append(opts, Default(nil))
	}

	copts, err := constraintTags(sf.Tag)
	if err != nil {
		return FieldSpec{}, false, err
	}
	opts = append(opts, copts...)
	if bounds := intBounds(sf.Type); bounds != nil {
		opts = append(opts, bounds)
	}

	if alias := sf.Tag.Get("alias"); alias != "" {
		opts = append(opts, Alias(alias))
	}
	if sf.Tag.Get("deprecated") == "true" {
		opts = append(opts, Deprecated())
	}
	if sf.Tag.Get("sensitive") == "true" {
		opts = append(opts, Sensitive())
	}
	if doc := sf.Tag.Get("doc"); doc != "" {
		opts = append(opts, Describe(doc))
	}

	return Field(name, t, opts...), false, nil
}

// intBounds narrows ge and le to the range of a Go integer type narrower
// than int64, so a bound value always fits the struct field.
func intBounds(rt reflect.Type) FieldOption {
	for rt.Kind() == reflect.Pointer {
		rt = rt.Elem()
	}
	var lo, hi float64
	switch rt.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32:
		if rt.Bits() == 64 {
			return nil
		}
		half := math.Ldexp(1, rt.Bits()-1)
		lo, hi = -half, half-1
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32:
		lo, hi = 0, math.Ldexp(1, rt.Bits())-1
	default:
		return nil
	}
	return func(f *FieldSpec) {
		c := &f.Constraints
		if c.Ge == nil || *c.Ge < lo {
			c.Ge = &lo
		}
		if c.Le == nil || *c.Le > hi {
			c.Le = &hi
		}
	}
}

// typeOf maps a Go type onto a declared Type.
func (b *tagBuilder) typeOf(rt reflect.Type, tag reflect.StructTag) (Type, error) {
	switch rt {
	case typeTime:
		switch tag.Get("format") {
		case "date":
			return Date(), nil
		case "time":
			return Time(), nil
		default:
			return DateTime(), nil
		}
	case typeDuration:
		return Duration(), nil
	case typeUUID:
		return UUID(), nil
	case typeURL:
		return URL(), nil
	}

	switch rt.Kind() {
	case reflect.Pointer:
		elem, err := b.typeOf(rt.Elem(), tag)
		if err != nil {
			return Type{}, err
		}
		return OptionalOf(elem), nil

	case reflect.String:
		if enum := tag.Get("enum"); enum != "" {
			return Enum(strings.Split(enum, ",")...), nil
		}
		return formatType(tag.Get("format"))

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32:
		return Int(), nil

	case reflect.Float32, reflect.Float64:
		return Float(), nil

	case reflect.Bool:
		return Bool(), nil

	case reflect.Slice, reflect.Array:
		elem, err := b.typeOf(rt.Elem(), elemTag(tag))
		if err != nil {
			return Type{}, err
		}
		if tag.Get("uniqueItems") == "true" {
			return SetOf(elem), nil
		}
		return ListOf(elem), nil

	case reflect.Struct:
		s, err := b.schema(rt, nil)
		if err != nil {
			return Type{}, err
		}
		return ObjectOf(s), nil

	default:
		return Type{}, fmt.Errorf("unsupported Go type %s", rt)
	}
}

// elemTag keeps only the tags that describe slice elements.
func elemTag(tag reflect.StructTag) reflect.StructTag {
	var parts []string
	for _, key := range []string{"format", "enum"} {
		if v, ok := tag.Lookup(key); ok {
			parts = append(parts, key+":"+strconv.Quote(v))
		}
	}
	return reflect.StructTag(strings.Join(parts, " "))
}

func formatType(format string) (Type, error) {
	switch format {
	case "":
		return String(), nil
	case "uuid":
		return UUID(), nil
	case "date":
		return Date(), nil
	case "time":
		return Time(), nil
	case "date-time":
		return DateTime(), nil
	case "duration":
		return Duration(), nil
	case "uri", "url":
		return URL(), nil
	case "email":
		return Email(), nil
	default:
		return Type{}, fmt.Errorf("unknown format %q", format)
	}
}

var errBadTag = errors.New("bad constraint tag")

// constraintTags reads the constraint vocabulary off a struct tag.
func constraintTags(tag reflect.StructTag) ([]FieldOption, error) {
	var opts []FieldOption

	ints := []struct {
		key string
		opt func(int) FieldOption
	}{
		{"minLength", MinLength},
		{"maxLength", MaxLength},
		{"minItems", MinItems},
		{"maxItems", MaxItems},
	}
	for _, c := range ints {
		v := tag.Get(c.key)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("%w: %s=%q", errBadTag, c.key, v)
		}
		opts = append(opts, c.opt(n))
	}

	floats := []struct {
		key string
		opt func(float64) FieldOption
	}{
		{"minimum", Ge},
		{"maximum", Le},
		{"exclusiveMinimum", Gt},
		{"exclusiveMaximum", Lt},
		{"multipleOf", MultipleOf},
	}
	for _, c := range floats {
		v := tag.Get(c.key)
		if v == "" {
			continue
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %s=%q", errBadTag, c.key, v)
		}
		opts = append(opts, c.opt(f))
	}

	if p := tag.Get("pattern"); p != "" {
		opts = append(opts, Pattern(p))
	}
	return opts, nil
}

func splitList(s string) []string {
	if s == "" {
		return []string{}
	}
	return strings.Split(s, ",")
}

// isParamField reports whether a struct field has parameter binding tags.
func isParamField(f reflect.StructField) bool {
	for _, p := range paramTags {
		if f.Tag.Get(p.tag) != "" {
			return true
		}
	}
	return false
}

// jsonFieldName returns the JSON field name for a struct field.
func jsonFieldName(f reflect.StructField) string {
	tag := f.Tag.Get("json")
	if tag == "" {
		return f.Name
	}
	name, _ := tagOptions(tag)
	if name == "" {
		return f.Name
	}
	return name
}

// tagOptions splits a struct tag value on comma and returns
// the name and remaining options.
func tagOptions(tag string) (string, string) {
	name, opts, _ := strings.Cut(tag, ",")
	return name, opts
}

// tagContains reports whether a comma-separated list of options
// contains a particular option.
func tagContains(opts string, name string) bool {
	for opts != "" {
		var opt string
		opt, opts, _ = strings.Cut(opts, ",")
		if opt == name {
			return true
		}
	}
	return false
}

// Decode copies a bound Object into the struct it was declared from with
// SchemaOf. Nested objects and slices are decoded recursively.
func Decode[T any](obj *Object, dst *T) error {
	if obj == nil || dst == nil {
		return fmt.Errorf("%w: nil object or destination", ErrSchemaMissing)
	}
	rt := reflect.TypeFor[T]()
	if obj.schema.goType != rt {
		return fmt.Errorf("%w: schema %s was not declared from %s", ErrSchemaMissing, obj.schema.name, rt)
	}
	return decodeStruct(obj, reflect.ValueOf(dst).Elem())
}

func decodeStruct(obj *Object, rv reflect.Value) error {
	for i := range obj.schema.fields {
		f := &obj.schema.fields[i]
		if f.goIndex == nil {
			continue
		}
		fv := rv.FieldByIndex(f.goIndex)
		if err := assign(fv, obj.values[i]); err != nil {
			return fmt.Errorf("%s.%s: %w", obj.schema.name, f.Name, err)
		}
	}
	return nil
}

// assign stores a coerced value into a Go value of the declared type.
func assign(dst reflect.Value, v any) error {
	if v == nil {
		dst.SetZero()
		return nil
	}

	if dst.Kind() == reflect.Pointer {
		p := reflect.New(dst.Type().Elem())
		if err := assign(p.Elem(), v); err != nil {
			return err
		}
		dst.Set(p)
		return nil
	}

	switch x := v.(type) {
	case *Object:
		if dst.Kind() != reflect.Struct {
			return fmt.Errorf("cannot decode object into %s", dst.Type())
		}
		return decodeStruct(x, dst)

	case []any:
		switch dst.Kind() {
		case reflect.Slice:
			out := reflect.MakeSlice(dst.Type(), len(x), len(x))
			for i, e := range x {
				if err := assign(out.Index(i), e); err != nil {
					return fmt.Errorf("element %d: %w", i, err)
				}
			}
			dst.Set(out)
			return nil
		case reflect.Array:
			for i := 0; i < dst.Len() && i < len(x); i++ {
				if err := assign(dst.Index(i), x[i]); err != nil {
					return fmt.Errorf("element %d: %w", i, err)
				}
			}
			return nil
		}
		return fmt.Errorf("cannot decode list into %s", dst.Type())
	}

	src := reflect.ValueOf(v)
	if src.Type().AssignableTo(dst.Type()) {
		dst.Set(src)
		return nil
	}
	if sameFamily(src.Kind(), dst.Kind()) && src.Type().ConvertibleTo(dst.Type()) {
		if overflows(src, dst) {
			return fmt.Errorf("value %v overflows %s", v, dst.Type())
		}
		dst.Set(src.Convert(dst.Type()))
		return nil
	}
	return fmt.Errorf("cannot decode %T into %s", v, dst.Type())
}

// overflows reports whether src cannot be represented in dst's type.
func overflows(src, dst reflect.Value) bool {
	switch {
	case src.CanInt() && dst.CanInt():
		return dst.OverflowInt(src.Int())
	case src.CanInt() && dst.CanUint():
		return src.Int() < 0 || dst.OverflowUint(uint64(src.Int()))
	case src.CanUint() && dst.CanUint():
		return dst.OverflowUint(src.Uint())
	case src.CanUint() && dst.CanInt():
		return src.Uint() > math.MaxInt64 || dst.OverflowInt(int64(src.Uint()))
	case src.CanFloat() && dst.CanFloat():
		return dst.OverflowFloat(src.Float())
	case src.CanFloat() && (dst.CanInt() || dst.CanUint()):
		return src.Float() != math.Trunc(src.Float())
	}
	return false
}

func sameFamily(a, b reflect.Kind) bool {
	family := func(k reflect.Kind) int {
		switch k {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
			reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
			reflect.Float32, reflect.Float64:
			return 1
		case reflect.String:
			return 2
		case reflect.Bool:
			return 3
		default:
			return 0
		}
	}
	fa := family(a)
	return fa != 0 && fa == family(b)
}

package bind

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
)

// ExtraPolicy decides what happens to body keys and cookies that no field
// claims. Cookies are only checked on schemas that declare a cookie field.
type ExtraPolicy string

// Extra-field policies.
const (
	ExtraIgnore ExtraPolicy = "ignore"
	ExtraForbid ExtraPolicy = "forbid"
	ExtraAllow  ExtraPolicy = "allow"
)

// Schema is an immutable, ordered table of fields. Build it once at startup
// with NewSchema and share it freely between goroutines.
type Schema struct {
	name        string
	description string
	fields      []FieldSpec
	index       map[string]int
	extra       ExtraPolicy
	checks      []Validator
	wholeBody   int
	goType      reflect.Type
}

// SchemaOption configures a Schema.
type SchemaOption func(*Schema)

// WithExtra sets the extra-field policy. The default is ExtraIgnore.
func WithExtra(p ExtraPolicy) SchemaOption {
	return func(s *Schema) { s.extra = p }
}

// WithDescription attaches a human-readable description.
func WithDescription(text string) SchemaOption {
	return func(s *Schema) { s.description = text }
}

// NewSchema validates the field table and returns the frozen schema.
// Every definition problem is reported here, wrapped in ErrInvalidSchema,
// so that binding never has to second-guess a schema.
func NewSchema(name string, fields []FieldSpec, opts ...SchemaOption) (*Schema, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: schema name is empty", ErrInvalidSchema)
	}

	s := &Schema{
		name:      name,
		fields:    make([]FieldSpec, len(fields)),
		index:     make(map[string]int, len(fields)*2),
		extra:     ExtraIgnore,
		wholeBody: -1,
	}
	copy(s.fields, fields)

	for _, opt := range opts {
		opt(s)
	}

	switch s.extra {
	case ExtraIgnore, ExtraForbid, ExtraAllow:
	default:
		return nil, fmt.Errorf("%w: schema %s: unknown extra policy %q", ErrInvalidSchema, name, s.extra)
	}

	wire := make(map[string]string, len(fields))
	bodyFields := 0

	for i := range s.fields {
		f := &s.fields[i]
		if err := s.prepareField(f); err != nil {
			return nil, fmt.Errorf("%w: schema %s: field %q: %w", ErrInvalidSchema, name, f.Name, err)
		}

		if _, dup := s.index[f.Name]; dup {
			return nil, fmt.Errorf("%w: schema %s: duplicate field %q", ErrInvalidSchema, name, f.Name)
		}
		s.index[f.Name] = i
		if f.Alias != "" && f.Alias != f.Name {
			if _, dup := s.index[f.Alias]; dup {
				return nil, fmt.Errorf("%w: schema %s: alias %q collides with another field", ErrInvalidSchema, name, f.Alias)
			}
			s.index[f.Alias] = i
		}

		key := string(f.Source) + ":" + f.wireKey
		if f.Source == SourceHeader {
			key = strings.ToLower(key)
		}
		if other, dup := wire[key]; dup {
			return nil, fmt.Errorf("%w: schema %s: fields %q and %q share %s key %q",
				ErrInvalidSchema, name, other, f.Name, f.Source, f.wireKey)
		}
		wire[key] = f.Name

		if f.Source == SourceBody {
			bodyFields++
		}
		if f.WholeBody {
			if s.wholeBody >= 0 {
				return nil, fmt.Errorf("%w: schema %s: more than one whole-body field", ErrInvalidSchema, name)
			}
			s.wholeBody = i
		}
	}

	if s.wholeBody >= 0 && bodyFields > 1 {
		return nil, fmt.Errorf("%w: schema %s: whole-body field %q cannot share the body with other fields",
			ErrInvalidSchema, name, s.fields[s.wholeBody].Name)
	}

	checks := s.checks[:0]
	for _, c := range s.checks {
		if c != nil {
			checks = append(checks, c)
		}
	}
	s.checks = checks

	return s, nil
}

// MustSchema is like NewSchema but panics on error. Intended for package-level
// schema declarations.
func MustSchema(name string, fields []FieldSpec, opts ...SchemaOption) *Schema {
	s, err := NewSchema(name, fields, opts...)
	if err != nil {
		panic(err)
	}
	return s
}

func (s *Schema) prepareField(f *FieldSpec) error {
	if f.Name == "" {
		return errors.New("name is empty")
	}
	if !f.Source.valid() {
		return fmt.Errorf("unknown source %q", f.Source)
	}
	if err := checkType(f.Type); err != nil {
		return err
	}

	switch f.Source {
	case SourcePath, SourceQuery:
		if f.Type.hasObject() {
			return fmt.Errorf("nested schemas cannot be read from %s", f.Source)
		}
	}
	if f.Type.isCollection() && (f.Source == SourcePath || f.Source == SourceCookie) {
		return fmt.Errorf("collections cannot be read from %s", f.Source)
	}
	if f.WholeBody && f.Source != SourceBody {
		return errors.New("whole-body fields must be read from the body")
	}

	if f.HasDefault {
		if f.Source == SourcePath {
			return errors.New("path fields cannot have a default")
		}
		v, err := normalizeValue(f.Type, f.Default)
		if err != nil {
			return fmt.Errorf("default: %w", err)
		}
		f.Default = v
	}
	f.Required = !f.HasDefault

	if err := f.Constraints.compile(f.Type); err != nil {
		return err
	}

	if f.Source == SourceHeader {
		f.wireKey = headerKey(f.Key(), f.KeepUnderscores)
	} else {
		f.wireKey = f.Key()
	}

	return nil
}

func checkType(t Type) error {
	switch t.kind {
	case KindEnum:
		if len(t.members) == 0 {
			return errors.New("enum has no members")
		}
		seen := make(map[string]bool, len(t.members))
		for _, m := range t.members {
			if seen[m] {
				return fmt.Errorf("enum member %q repeated", m)
			}
			seen[m] = true
		}
	case KindList, KindSet, KindOptional:
		if t.elem == nil {
			return fmt.Errorf("%s without element type", t.kind)
		}
		return checkType(*t.elem)
	case KindObject:
		if t.schema == nil {
			return errors.New("object type without schema")
		}
	case KindString, KindInt, KindFloat, KindBool, KindUUID, KindDate, KindTime,
		KindDateTime, KindDuration, KindURL, KindEmail:
	default:
		return fmt.Errorf("unknown kind %d", t.kind)
	}
	return nil
}

// Name returns the schema name.
func (s *Schema) Name() string { return s.name }

// Description returns the schema description.
func (s *Schema) Description() string { return s.description }

// Extra returns the extra-field policy.
func (s *Schema) Extra() ExtraPolicy { return s.extra }

// Len returns the number of fields.
func (s *Schema) Len() int { return len(s.fields) }

// Fields returns a copy of the field table in declaration order.
func (s *Schema) Fields() []FieldSpec {
	out := make([]FieldSpec, len(s.fields))
	copy(out, s.fields)
	return out
}

// Field looks a field up by name or alias.
func (s *Schema) Field(name string) (FieldSpec, bool) {
	i, ok := s.index[name]
	if !ok {
		return FieldSpec{}, false
	}
	return s.fields[i], true
}

func (s *Schema) fieldIndex(name string) (int, bool) {
	i, ok := s.index[name]
	return i, ok
}

package bind

import (
	"context"
	"encoding/json"
	"log/slog"
	"slices"
	"strings"
	"unicode/utf8"
)

const (
	defaultMaxValueLen = 64
	redacted           = "[redacted]"
)

// Binder runs extraction, coercion and validation for a Schema. A Binder is
// immutable once built and safe for concurrent use.
type Binder struct {
	logger      *slog.Logger
	maxValueLen int
	sep         string
}

// BinderOption configures a Binder.
type BinderOption func(*Binder)

// WithLogger sets the logger used for debug output about failed bindings.
// The default is slog.Default().
func WithLogger(l *slog.Logger) BinderOption {
	return func(b *Binder) {
		if l != nil {
			b.logger = l
		}
	}
}

// WithMaxValueLength caps how many characters of an offending raw value a
// BindingError echoes. Zero omits values entirely.
func WithMaxValueLength(n int) BinderOption {
	return func(b *Binder) {
		if n >= 0 {
			b.maxValueLen = n
		}
	}
}

// WithPathSeparator sets the separator joining nested error paths. The
// default is ".".
func WithPathSeparator(sep string) BinderOption {
	return func(b *Binder) {
		if sep != "" {
			b.sep = sep
		}
	}
}

// NewBinder returns a Binder with the given options.
func NewBinder(opts ...BinderOption) *Binder {
	b := &Binder{
		maxValueLen: defaultMaxValueLen,
		sep:         ".",
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

var defaultBinder = NewBinder()

// Bind binds s from rc with the default Binder.
func Bind(s *Schema, rc *RequestContext) (*Object, error) {
	return defaultBinder.Bind(s, rc)
}

// Bind extracts, coerces and validates every field of s, in declaration
// order. It never stops at the first problem: on failure the returned error
// is an Errors value holding every failure, and the Object is nil.
func (b *Binder) Bind(s *Schema, rc *RequestContext) (*Object, error) {
	if rc == nil {
		rc = &RequestContext{}
	}

	obj := s.New()
	var errs Errors

	body, bodyOK := rc.Body.(map[string]any)
	bodyBroken := false
	if s.hasKeyedBody() && !bodyOK && (rc.Body != nil || rc.RawBody != nil) {
		errs = append(errs, &BindingError{
			Path:    string(SourceBody),
			Kind:    KindTypeMismatch,
			Source:  SourceBody,
			Message: "must be a JSON object",
			Value:   b.clip(rawBodyText(rc)),
		})
		bodyBroken = true
	}

	for i := range s.fields {
		f := &s.fields[i]
		if f.Source == SourceBody && bodyBroken {
			continue
		}
		if f.WholeBody && rc.Body == nil && rc.RawBody != nil {
			errs = append(errs, &BindingError{
				Path:    f.Key(),
				Kind:    KindTypeMismatch,
				Source:  SourceBody,
				Message: "body must be valid JSON",
				Value:   b.clip(string(rc.RawBody)),
			})
			continue
		}
		tok, ok := extract(f, rc, body)
		errs = append(errs, b.bindField(obj, i, tok, ok, "", fieldCtx{source: f.Source, sensitive: f.Sensitive})...)
	}

	if s.extra != ExtraIgnore {
		if bodyOK && s.wholeBody < 0 {
			errs = append(errs, b.extras(obj, body, s.claimed(SourceBody), "", SourceBody)...)
		}
		if claimed := s.claimed(SourceCookie); len(claimed) > 0 {
			cookies := make(map[string]any, len(rc.Cookies))
			for k, v := range rc.Cookies {
				cookies[k] = v
			}
			errs = append(errs, b.extras(obj, cookies, claimed, "", SourceCookie)...)
		}
	}

	if len(errs) == 0 {
		errs = b.runChecks(obj, "")
	}

	if len(errs) > 0 {
		b.log().LogAttrs(context.Background(), slog.LevelDebug, "binding failed",
			slog.String("schema", s.name),
			slog.Int("errors", len(errs)),
			slog.Any("paths", errs.Paths()),
		)
		return nil, errs
	}

	return obj, nil
}

// bindMap binds a nested schema from a decoded JSON object.
func (b *Binder) bindMap(s *Schema, m map[string]any, prefix string, fc fieldCtx) (*Object, Errors) {
	obj := s.New()
	var errs Errors

	for i := range s.fields {
		f := &s.fields[i]
		var (
			tok token
			ok  bool
		)
		if f.WholeBody {
			tok, ok = token{v: m}, true
		} else {
			var v any
			v, ok = m[f.Key()]
			tok = token{v: v}
		}
		nested := fieldCtx{source: fc.source, sensitive: fc.sensitive || f.Sensitive}
		errs = append(errs, b.bindField(obj, i, tok, ok, prefix, nested)...)
	}

	if s.extra != ExtraIgnore && s.wholeBody < 0 {
		claimed := make(map[string]bool, len(s.fields))
		for i := range s.fields {
			claimed[s.fields[i].Key()] = true
		}
		errs = append(errs, b.extras(obj, m, claimed, prefix, fc.source)...)
	}

	if len(errs) == 0 {
		errs = b.runChecks(obj, prefix)
	}
	if len(errs) > 0 {
		return nil, errs
	}
	return obj, nil
}

// bindField runs one field through default/missing handling, coercion and
// constraint validation, storing the value on success.
func (b *Binder) bindField(obj *Object, i int, tok token, present bool, prefix string, fc fieldCtx) Errors {
	f := &obj.schema.fields[i]
	path := b.join(prefix, f.Key())

	if !present {
		if f.HasDefault {
			return nil
		}
		return Errors{{
			Path:    path,
			Kind:    KindMissing,
			Source:  fc.source,
			Message: "field required",
		}}
	}

	if f.Deprecated {
		b.log().LogAttrs(context.Background(), slog.LevelDebug, "deprecated field supplied",
			slog.String("schema", obj.schema.name),
			slog.String("field", path),
		)
	}

	v, errs := b.coerce(f.Type, tok, path, fc)
	if len(errs) > 0 {
		return errs
	}

	if vs := f.Constraints.check(v); len(vs) > 0 {
		out := make(Errors, len(vs))
		for j, vi := range vs {
			out[j] = &BindingError{
				Path:       path,
				Kind:       KindConstraintViolation,
				Source:     fc.source,
				Constraint: vi.code,
				Message:    vi.message,
				Value:      b.describe(tok, fc),
			}
		}
		return out
	}

	obj.values[i] = v
	obj.set.add(i)
	return nil
}

// extras applies the schema's extra-field policy to keys no field claimed.
// Keys are visited in sorted order so error lists are reproducible. Values
// of unknown fields are never echoed.
func (b *Binder) extras(obj *Object, data map[string]any, claimed map[string]bool, prefix string, src Source) Errors {
	if len(data) == 0 {
		return nil
	}
	keys := make([]string, 0, len(data))
	for k := range data {
		if !claimed[k] {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)

	var errs Errors
	for _, k := range keys {
		switch obj.schema.extra {
		case ExtraForbid:
			errs = append(errs, &BindingError{
				Path:    b.join(prefix, k),
				Kind:    KindUnknownField,
				Source:  src,
				Message: "unknown field",
			})
		case ExtraAllow:
			if obj.extra == nil {
				obj.extra = make(map[string]any)
			}
			if _, exists := obj.extra[k]; !exists {
				obj.extra[k] = data[k]
			}
		}
	}
	return errs
}

func (b *Binder) runChecks(obj *Object, prefix string) Errors {
	var errs Errors
	for _, c := range obj.schema.checks {
		err := c.Validate(obj)
		if err == nil {
			continue
		}
		if es, ok := AsErrors(err); ok {
			for _, e := range es {
				cp := *e
				cp.Path = b.join(prefix, e.Path)
				if cp.Kind == "" {
					cp.Kind = KindConstraintViolation
				}
				errs = append(errs, &cp)
			}
			continue
		}
		errs = append(errs, &BindingError{
			Path:       prefix,
			Kind:       KindConstraintViolation,
			Constraint: ConstraintCheck,
			Message:    err.Error(),
		})
	}
	return errs
}

func (b *Binder) mismatch(path string, fc fieldCtx, msg string, tok token) *BindingError {
	return &BindingError{
		Path:    path,
		Kind:    KindTypeMismatch,
		Source:  fc.source,
		Message: msg,
		Value:   b.describe(tok, fc),
	}
}

// describe renders the offending raw value, redacted for sensitive fields
// and clipped to the configured length.
func (b *Binder) describe(tok token, fc fieldCtx) string {
	if fc.sensitive {
		return redacted
	}
	var s string
	switch x := tok.v.(type) {
	case string:
		s = x
	case []string:
		s = strings.Join(x, ",")
	case nil:
		s = "null"
	default:
		data, err := json.Marshal(x)
		if err != nil {
			return ""
		}
		s = string(data)
	}
	return b.clip(s)
}

func (b *Binder) clip(s string) string {
	if b.maxValueLen == 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= b.maxValueLen {
		return s
	}
	runes := []rune(s)
	return string(runes[:b.maxValueLen]) + "..."
}

func (b *Binder) join(prefix, name string) string {
	switch {
	case prefix == "":
		return name
	case name == "":
		return prefix
	default:
		return prefix + b.sep + name
	}
}

func (b *Binder) log() *slog.Logger {
	if b.logger != nil {
		return b.logger
	}
	return slog.Default()
}

func rawBodyText(rc *RequestContext) string {
	if rc.RawBody != nil {
		return string(rc.RawBody)
	}
	data, err := json.Marshal(rc.Body)
	if err != nil {
		return ""
	}
	return string(data)
}

// hasKeyedBody reports whether any field reads a key out of a JSON object body.
func (s *Schema) hasKeyedBody() bool {
	for i := range s.fields {
		if s.fields[i].Source == SourceBody && !s.fields[i].WholeBody {
			return true
		}
	}
	return false
}

// claimed returns the wire keys declared for src.
func (s *Schema) claimed(src Source) map[string]bool {
	out := make(map[string]bool)
	for i := range s.fields {
		if s.fields[i].Source == src {
			out[s.fields[i].wireKey] = true
		}
	}
	return out
}

package bind

// Source names the part of a request a field is read from.
type Source string

// Request locations.
const (
	SourcePath   Source = "path"
	SourceQuery  Source = "query"
	SourceHeader Source = "header"
	SourceCookie Source = "cookie"
	SourceBody   Source = "body"
)

func (s Source) valid() bool {
	switch s {
	case SourcePath, SourceQuery, SourceHeader, SourceCookie, SourceBody:
		return true
	default:
		return false
	}
}

// FieldSpec declares one field of a Schema. Build it with Field and the
// FieldOption helpers; NewSchema validates and freezes it.
type FieldSpec struct {
	Name        string
	Source      Source
	Alias       string
	Type        Type
	Required    bool
	Default     any
	HasDefault  bool
	Constraints ConstraintSet
	Deprecated  bool
	Description string

	// Sensitive fields never echo their raw value in a BindingError.
	Sensitive bool

	// KeepUnderscores disables the "_" to "-" conversion for header lookups.
	KeepUnderscores bool

	// WholeBody binds the entire request body to this field instead of one key of it.
	WholeBody bool

	wireKey string
	goIndex []int
}

// FieldOption configures a FieldSpec.
type FieldOption func(*FieldSpec)

// Field declares a field. Without In, object-typed fields are read from the
// body and everything else from the query string.
func Field(name string, t Type, opts ...FieldOption) FieldSpec {
	f := FieldSpec{Name: name, Type: t}
	if t.hasObject() {
		f.Source = SourceBody
	} else {
		f.Source = SourceQuery
	}
	for _, opt := range opts {
		opt(&f)
	}
	return f
}

// Key returns the name the field is known by on the wire.
func (f *FieldSpec) Key() string {
	if f.Alias != "" {
		return f.Alias
	}
	return f.Name
}

// In sets the request location.
func In(src Source) FieldOption {
	return func(f *FieldSpec) { f.Source = src }
}

// Alias sets an alternate wire name.
func Alias(name string) FieldOption {
	return func(f *FieldSpec) { f.Alias = name }
}

// Default sets the value used when the field is absent. Strings given for
// non-string types are coerced when the schema is built.
func Default(v any) FieldOption {
	return func(f *FieldSpec) {
		f.Default = v
		f.HasDefault = true
	}
}

// Deprecated marks the field as deprecated.
func Deprecated() FieldOption {
	return func(f *FieldSpec) { f.Deprecated = true }
}

// Describe attaches a human-readable description.
func Describe(text string) FieldOption {
	return func(f *FieldSpec) { f.Description = text }
}

// Sensitive redacts the field's raw value in binding errors.
func Sensitive() FieldOption {
	return func(f *FieldSpec) { f.Sensitive = true }
}

// KeepUnderscores looks the header up by its literal name.
func KeepUnderscores() FieldOption {
	return func(f *FieldSpec) { f.KeepUnderscores = true }
}

// WholeBody binds the entire JSON body to the field.
func WholeBody() FieldOption {
	return func(f *FieldSpec) {
		f.Source = SourceBody
		f.WholeBody = true
	}
}

// MinLength requires at least n characters.
func MinLength(n int) FieldOption {
	return func(f *FieldSpec) { f.Constraints.MinLength = &n }
}

// MaxLength allows at most n characters.
func MaxLength(n int) FieldOption {
	return func(f *FieldSpec) { f.Constraints.MaxLength = &n }
}

// Pattern requires the whole string to match the regular expression.
func Pattern(expr string) FieldOption {
	return func(f *FieldSpec) { f.Constraints.Pattern = expr }
}

// Ge requires value >= n.
func Ge(n float64) FieldOption {
	return func(f *FieldSpec) { f.Constraints.Ge = &n }
}

// Le requires value <= n.
func Le(n float64) FieldOption {
	return func(f *FieldSpec) { f.Constraints.Le = &n }
}

// Gt requires value > n.
func Gt(n float64) FieldOption {
	return func(f *FieldSpec) { f.Constraints.Gt = &n }
}

// Lt requires value < n.
func Lt(n float64) FieldOption {
	return func(f *FieldSpec) { f.Constraints.Lt = &n }
}

// MultipleOf requires value to be an integer multiple of n.
func MultipleOf(n float64) FieldOption {
	return func(f *FieldSpec) { f.Constraints.MultipleOf = &n }
}

// MinItems requires a list or set to hold at least n items.
func MinItems(n int) FieldOption {
	return func(f *FieldSpec) { f.Constraints.MinItems = &n }
}

// MaxItems allows a list or set to hold at most n items.
func MaxItems(n int) FieldOption {
	return func(f *FieldSpec) { f.Constraints.MaxItems = &n }
}

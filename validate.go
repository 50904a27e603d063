package bind

// Validator checks a fully bound object for rules that span several fields.
// It runs only after every field of its schema bound cleanly. Returning
// Errors or a *BindingError reports those errors (paths are relative to the
// object); any other error becomes a single constraint violation on the
// object itself.
type Validator interface {
	Validate(obj *Object) error
}

// ValidatorFunc adapts a function to the Validator interface.
type ValidatorFunc func(obj *Object) error

// Validate calls f(obj).
func (f ValidatorFunc) Validate(obj *Object) error { return f(obj) }

// WithCheck adds a schema-level Validator. Checks run in the order added.
func WithCheck(v Validator) SchemaOption {
	return func(s *Schema) { s.checks = append(s.checks, v) }
}

package bind

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Sentinel errors. Every BindingError unwraps to the sentinel of its kind.
var (
	ErrMissing       = errors.New("missing field")
	ErrTypeMismatch  = errors.New("type mismatch")
	ErrConstraint    = errors.New("constraint violation")
	ErrUnknownField  = errors.New("unknown field")
	ErrInvalidSchema = errors.New("invalid schema")
	ErrBindBody      = errors.New("bind body")
	ErrBodyTooLarge  = errors.New("request body too large")
	ErrSchemaMissing = errors.New("schema not found")
)

// ErrorKind classifies a BindingError.
type ErrorKind string

// Error kinds.
const (
	KindMissing             ErrorKind = "missing"
	KindTypeMismatch        ErrorKind = "type_mismatch"
	KindConstraintViolation ErrorKind = "constraint_violation"
	KindUnknownField        ErrorKind = "unknown_field"
)

// BindingError describes one failing field. Path is dotted so errors from
// nested schemas and list elements can be told apart ("items.2.price").
type BindingError struct {
	Path       string    `json:"path"`
	Kind       ErrorKind `json:"kind"`
	Source     Source    `json:"source,omitempty"`
	Constraint string    `json:"constraint,omitempty"`
	Message    string    `json:"message"`
	Value      string    `json:"value,omitempty"`
}

// Error returns "path: message".
func (e *BindingError) Error() string {
	if e.Path == "" {
		return e.Message
	}
	return e.Path + ": " + e.Message
}

// Unwrap returns the sentinel for the error's kind.
func (e *BindingError) Unwrap() error {
	switch e.Kind {
	case KindMissing:
		return ErrMissing
	case KindTypeMismatch:
		return ErrTypeMismatch
	case KindConstraintViolation:
		return ErrConstraint
	case KindUnknownField:
		return ErrUnknownField
	default:
		return nil
	}
}

// Errors is the ordered list of failures from one Bind call.
type Errors []*BindingError

// Error joins every failure into one line.
func (es Errors) Error() string {
	if len(es) == 0 {
		return "binding failed"
	}
	parts := make([]string, len(es))
	for i, e := range es {
		parts[i] = e.Error()
	}
	return "binding failed: " + strings.Join(parts, "; ")
}

// Unwrap exposes each BindingError to errors.Is and errors.As.
func (es Errors) Unwrap() []error {
	out := make([]error, len(es))
	for i, e := range es {
		out[i] = e
	}
	return out
}

// Has reports whether any error sits at path.
func (es Errors) Has(path string) bool {
	for _, e := range es {
		if e.Path == path {
			return true
		}
	}
	return false
}

// At returns the errors recorded for path.
func (es Errors) At(path string) Errors {
	var out Errors
	for _, e := range es {
		if e.Path == path {
			out = append(out, e)
		}
	}
	return out
}

// Paths returns the distinct failing paths in first-seen order.
func (es Errors) Paths() []string {
	var paths []string
	seen := make(map[string]bool, len(es))
	for _, e := range es {
		if !seen[e.Path] {
			paths = append(paths, e.Path)
			seen[e.Path] = true
		}
	}
	return paths
}

// AsErrors extracts the binding error list from err.
func AsErrors(err error) (Errors, bool) {
	var es Errors
	if errors.As(err, &es) {
		return es, true
	}
	var e *BindingError
	if errors.As(err, &e) {
		return Errors{e}, true
	}
	return nil, false
}

// StatusCoder is implemented by errors or responses that carry an HTTP status code.
type StatusCoder interface {
	StatusCode() int
}

// ProblemDetail is an RFC 9457 problem details response.
//
//nolint:errname // RFC 9457 standard name
type ProblemDetail struct {
	Type     string          `json:"type,omitempty"`
	Title    string          `json:"title,omitempty"`
	Status   int             `json:"status"`
	Detail   string          `json:"detail,omitempty"`
	Instance string          `json:"instance,omitempty"`
	Errors   []*BindingError `json:"errors,omitempty"`
}

// Error returns the detail message (or title if detail is empty).
func (p *ProblemDetail) Error() string {
	if p.Detail != "" {
		return p.Detail
	}
	return p.Title
}

// StatusCode returns the HTTP status code.
func (p *ProblemDetail) StatusCode() int { return p.Status }

// StatusCode returns 422 Unprocessable Entity.
func (es Errors) StatusCode() int { return http.StatusUnprocessableEntity }

// Problem converts the error list into a 422 problem document.
func (es Errors) Problem() *ProblemDetail {
	return &ProblemDetail{
		Type:   "about:blank",
		Title:  "Validation Failed",
		Status: http.StatusUnprocessableEntity,
		Detail: fmt.Sprintf("%d binding error(s)", len(es)),
		Errors: es,
	}
}

// HTTPError is an error with an HTTP status code.
type HTTPError struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
}

// Error returns the error message.
func (e *HTTPError) Error() string { return e.Message }

// StatusCode returns the HTTP status code.
func (e *HTTPError) StatusCode() int { return e.Status }

// Error returns an error with the given HTTP status code and message.
func Error(status int, message string) error {
	return &HTTPError{Status: status, Message: message}
}

// Errorf returns a formatted error with the given HTTP status code.
func Errorf(status int, format string, args ...any) error {
	return &HTTPError{Status: status, Message: fmt.Sprintf(format, args...)}
}

// ErrorStatus extracts the HTTP status code from an error. Returns
// http.StatusInternalServerError if the error does not implement StatusCoder.
func ErrorStatus(err error) int {
	var sc StatusCoder
	if errors.As(err, &sc) {
		return sc.StatusCode()
	}
	return http.StatusInternalServerError
}

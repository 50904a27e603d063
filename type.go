package bind

import "strings"

// Kind identifies which coercion rule applies to a Type.
type Kind int

// Supported kinds.
const (
	KindString Kind = iota
	KindInt
	KindFloat
	KindBool
	KindEnum
	KindUUID
	KindDate
	KindTime
	KindDateTime
	KindDuration
	KindURL
	KindEmail
	KindList
	KindSet
	KindOptional
	KindObject
)

var kindNames = [...]string{
	KindString:   "string",
	KindInt:      "int",
	KindFloat:    "float",
	KindBool:     "bool",
	KindEnum:     "enum",
	KindUUID:     "uuid",
	KindDate:     "date",
	KindTime:     "time",
	KindDateTime: "datetime",
	KindDuration: "duration",
	KindURL:      "url",
	KindEmail:    "email",
	KindList:     "list",
	KindSet:      "set",
	KindOptional: "optional",
	KindObject:   "object",
}

// String returns the lowercase name of the kind.
func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "unknown"
	}
	return kindNames[k]
}

// Type is the declared type of a field. It is a tagged variant: Kind selects
// the case, and only the members relevant to that case are populated.
type Type struct {
	kind    Kind
	elem    *Type
	schema  *Schema
	members []string
	compact bool
}

// String declares a plain string.
func String() Type { return Type{kind: KindString} }

// Int declares a 64-bit signed integer.
func Int() Type { return Type{kind: KindInt} }

// Float declares a 64-bit float.
func Float() Type { return Type{kind: KindFloat} }

// Bool declares a boolean.
func Bool() Type { return Type{kind: KindBool} }

// Enum declares a string enumeration with the given wire values.
func Enum(members ...string) Type {
	return Type{kind: KindEnum, members: append([]string(nil), members...)}
}

// UUID declares a UUID in canonical 8-4-4-4-12 form.
func UUID() Type { return Type{kind: KindUUID} }

// CompactUUID declares a UUID that may omit its hyphens.
func CompactUUID() Type { return Type{kind: KindUUID, compact: true} }

// Date declares a calendar date (YYYY-MM-DD).
func Date() Type { return Type{kind: KindDate} }

// Time declares a time of day (HH:MM:SS[.fraction]).
func Time() Type { return Type{kind: KindTime} }

// DateTime declares an RFC 3339 timestamp.
func DateTime() Type { return Type{kind: KindDateTime} }

// Duration declares an ISO-8601 duration such as P1DT2H.
func Duration() Type { return Type{kind: KindDuration} }

// URL declares an absolute URL with scheme and host.
func URL() Type { return Type{kind: KindURL} }

// Email declares a bare email address.
func Email() Type { return Type{kind: KindEmail} }

// ListOf declares an ordered collection of elem.
func ListOf(elem Type) Type { return Type{kind: KindList, elem: &elem} }

// SetOf declares a collection of elem de-duplicated by value.
func SetOf(elem Type) Type { return Type{kind: KindSet, elem: &elem} }

// OptionalOf declares a nullable elem.
func OptionalOf(elem Type) Type { return Type{kind: KindOptional, elem: &elem} }

// ObjectOf declares a nested structured value described by s.
func ObjectOf(s *Schema) Type { return Type{kind: KindObject, schema: s} }

// Kind returns the variant case.
func (t Type) Kind() Kind { return t.kind }

// Elem returns the element type of a list, set, or optional.
func (t Type) Elem() (Type, bool) {
	if t.elem == nil {
		return Type{}, false
	}
	return *t.elem, true
}

// Schema returns the nested schema of an object type.
func (t Type) Schema() *Schema { return t.schema }

// Members returns the enum wire values.
func (t Type) Members() []string { return append([]string(nil), t.members...) }

// Compact reports whether a UUID type accepts the hyphen-less form.
func (t Type) Compact() bool { return t.compact }

// String renders the type for messages, e.g. "list[int]" or "optional[Item]".
func (t Type) String() string {
	switch t.kind {
	case KindList, KindSet, KindOptional:
		if t.elem == nil {
			return t.kind.String()
		}
		return t.kind.String() + "[" + t.elem.String() + "]"
	case KindEnum:
		return "enum(" + strings.Join(t.members, "|") + ")"
	case KindObject:
		if t.schema == nil {
			return "object"
		}
		return t.schema.Name()
	default:
		return t.kind.String()
	}
}

// base strips any optional wrappers.
func (t Type) base() Type {
	for t.kind == KindOptional && t.elem != nil {
		t = *t.elem
	}
	return t
}

// isCollection reports whether t (ignoring optional wrappers) is a list or set.
func (t Type) isCollection() bool {
	k := t.base().kind
	return k == KindList || k == KindSet
}

// hasObject reports whether t contains a nested schema anywhere.
func (t Type) hasObject() bool {
	switch t.kind {
	case KindObject:
		return true
	case KindList, KindSet, KindOptional:
		return t.elem != nil && t.elem.hasObject()
	default:
		return false
	}
}

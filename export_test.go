package bind

// Test-only exports for internal functions.
var (
	HeaderKey  = headerKey
	DecodeJSON = decodeJSON
	ValueKey   = valueKey
)

// CoerceText applies the scalar coercion rule to a raw string as read from
// a path, query, header or cookie.
func CoerceText(t Type, s string) (any, string) {
	return coerceScalar(t, token{v: s, text: true})
}

// CoerceJSON applies the scalar coercion rule to a decoded JSON value.
func CoerceJSON(t Type, v any) (any, string) {
	return coerceScalar(t, token{v: v})
}

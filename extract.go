package bind

import (
	"net/http"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// headerKey converts a declared field name into the header it is read from:
// "user_agent" and "user agent" both become "User-Agent". The caser is built
// per call because cases.Caser is not safe for concurrent use; this only
// runs while a schema is being built.
func headerKey(name string, keepUnderscores bool) string {
	sep := func(r rune) bool { return r == '-' || r == ' ' || (r == '_' && !keepUnderscores) }
	words := strings.FieldsFunc(name, sep)
	if len(words) == 0 {
		return name
	}

	caser := cases.Title(language.Und)
	for i, w := range words {
		words[i] = caser.String(w)
	}
	return strings.Join(words, "-")
}

// headerValues returns every value of key, matching case-insensitively when
// the header map was not built with canonical keys.
func headerValues(h http.Header, key string) []string {
	if vals, ok := h[key]; ok {
		return vals
	}
	if vals, ok := h[http.CanonicalHeaderKey(key)]; ok {
		return vals
	}
	var out []string
	for k, vals := range h {
		if strings.EqualFold(k, key) {
			out = append(out, vals...)
		}
	}
	return out
}

// extract pulls the raw value for f out of rc. The second result is false
// when the value is absent, which is distinct from present-but-empty.
func extract(f *FieldSpec, rc *RequestContext, body map[string]any) (token, bool) {
	switch f.Source {
	case SourcePath:
		v, ok := rc.Path[f.wireKey]
		return token{v: v, text: true}, ok

	case SourceQuery:
		return multiToken(rc.Query[f.wireKey], f.Type.isCollection())

	case SourceHeader:
		return multiToken(headerValues(rc.Header, f.wireKey), f.Type.isCollection())

	case SourceCookie:
		v, ok := rc.Cookies[f.wireKey]
		return token{v: v, text: true}, ok

	case SourceBody:
		if f.WholeBody {
			return token{v: rc.Body}, rc.Body != nil
		}
		v, ok := body[f.wireKey]
		return token{v: v}, ok

	default:
		return token{}, false
	}
}

// multiToken keeps every occurrence for collections, in arrival order, and
// the first occurrence otherwise.
func multiToken(vals []string, collection bool) (token, bool) {
	if len(vals) == 0 {
		return token{}, false
	}
	if collection {
		return token{v: append([]string(nil), vals...), text: true}, true
	}
	return token{v: vals[0], text: true}, true
}

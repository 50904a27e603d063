package bind

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"math"
	"net/mail"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// token is a raw value on its way to coercion. Text tokens come from path,
// query, header and cookie sources and hold a string (or []string for
// repeated parameters); JSON tokens come from the body and hold whatever
// encoding/json produced with UseNumber.
type token struct {
	v    any
	text bool
}

// fieldCtx carries what nested coercion needs to know about the top-level
// field it started from.
type fieldCtx struct {
	source    Source
	sensitive bool
}

// coerce converts tok to the Go representation of t. Failures are returned
// as data; nothing here panics or stops early on sibling elements.
func (b *Binder) coerce(t Type, tok token, path string, fc fieldCtx) (any, Errors) {
	switch t.kind {
	case KindOptional:
		if tok.v == nil {
			return nil, nil
		}
		return b.coerce(*t.elem, tok, path, fc)

	case KindList, KindSet:
		return b.coerceCollection(t, tok, path, fc)

	case KindObject:
		return b.coerceObject(t, tok, path, fc)

	default:
		v, msg := coerceScalar(t, tok)
		if msg != "" {
			return nil, Errors{b.mismatch(path, fc, msg, tok)}
		}
		return v, nil
	}
}

func (b *Binder) coerceCollection(t Type, tok token, path string, fc fieldCtx) (any, Errors) {
	var elems []token
	switch raw := tok.v.(type) {
	case []string:
		elems = make([]token, len(raw))
		for i, s := range raw {
			elems[i] = token{v: s, text: true}
		}
	case []any:
		elems = make([]token, len(raw))
		for i, v := range raw {
			elems[i] = token{v: v}
		}
	case string:
		if !tok.text {
			return nil, Errors{b.mismatch(path, fc, "must be an array", tok)}
		}
		elems = []token{tok}
	default:
		return nil, Errors{b.mismatch(path, fc, "must be an array", tok)}
	}

	var errs Errors
	out := make([]any, 0, len(elems))
	for i, el := range elems {
		v, elErrs := b.coerce(*t.elem, el, b.join(path, strconv.Itoa(i)), fc)
		if len(elErrs) > 0 {
			errs = append(errs, elErrs...)
			continue
		}
		out = append(out, v)
	}
	if len(errs) > 0 {
		return nil, errs
	}

	if t.kind == KindSet {
		out = dedupe(*t.elem, out)
	}
	return out, nil
}

func (b *Binder) coerceObject(t Type, tok token, path string, fc fieldCtx) (any, Errors) {
	raw := tok.v
	if s, ok := raw.(string); ok && tok.text {
		v, err := decodeJSON([]byte(s))
		if err != nil {
			return nil, Errors{b.mismatch(path, fc, "must be a JSON object", tok)}
		}
		raw = v
	}
	m, ok := raw.(map[string]any)
	if !ok {
		return nil, Errors{b.mismatch(path, fc, "must be an object", tok)}
	}

	obj, errs := b.bindMap(t.schema, m, path, fc)
	if len(errs) > 0 {
		return nil, errs
	}
	return obj, nil
}

// coerceScalar applies the rule for one primitive kind. It returns a
// non-empty message on failure.
func coerceScalar(t Type, tok token) (any, string) {
	switch t.kind {
	case KindString:
		if s, ok := tok.v.(string); ok {
			return s, ""
		}
		return nil, "must be a string"

	case KindInt:
		if n, ok := toInt(tok); ok {
			return n, ""
		}
		return nil, "must be a valid integer"

	case KindFloat:
		if f, ok := toFloat(tok); ok {
			return f, ""
		}
		return nil, "must be a valid number"

	case KindBool:
		if b, ok := toBool(tok); ok {
			return b, ""
		}
		return nil, "must be a valid boolean"

	case KindEnum:
		if s, ok := tok.v.(string); ok {
			for _, m := range t.members {
				if m == s {
					return s, ""
				}
			}
		}
		return nil, "must be one of [" + strings.Join(t.members, ", ") + "]"

	case KindUUID:
		if s, ok := tok.v.(string); ok {
			if id, ok := parseUUID(s, t.compact); ok {
				return id, ""
			}
		}
		return nil, "must be a valid UUID"

	case KindDate:
		if s, ok := tok.v.(string); ok {
			if d, ok := parseDate(s); ok {
				return d, ""
			}
		}
		return nil, "must be a valid date (YYYY-MM-DD)"

	case KindTime:
		if s, ok := tok.v.(string); ok {
			if d, ok := parseTimeOfDay(s); ok {
				return d, ""
			}
		}
		return nil, "must be a valid time (HH:MM:SS)"

	case KindDateTime:
		if s, ok := tok.v.(string); ok {
			if d, ok := parseDateTime(s); ok {
				return d, ""
			}
		}
		return nil, "must be a valid RFC 3339 datetime"

	case KindDuration:
		if s, ok := tok.v.(string); ok {
			if d, ok := ParseDuration(s); ok {
				return d, ""
			}
		}
		return nil, "must be a valid ISO-8601 duration"

	case KindURL:
		if s, ok := tok.v.(string); ok {
			if u, ok := parseURL(s); ok {
				return u, ""
			}
		}
		return nil, "must be an absolute URL with scheme and host"

	case KindEmail:
		if s, ok := tok.v.(string); ok && isEmail(s) {
			return s, ""
		}
		return nil, "must be a valid email address"

	default:
		return nil, "unsupported type " + t.String()
	}
}

func toInt(tok token) (int64, bool) {
	switch x := tok.v.(type) {
	case string:
		if !tok.text {
			return 0, false
		}
		n, err := strconv.ParseInt(x, 10, 64)
		return n, err == nil
	case json.Number:
		if n, err := x.Int64(); err == nil {
			return n, true
		}
		f, err := x.Float64()
		if err != nil {
			return 0, false
		}
		return integral(f)
	case float64:
		return integral(x)
	case int:
		return int64(x), true
	case int64:
		return x, true
	default:
		return 0, false
	}
}

func integral(f float64) (int64, bool) {
	if f != math.Trunc(f) || f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, false
	}
	return int64(f), true
}

func toFloat(tok token) (float64, bool) {
	var (
		f   float64
		err error
	)
	switch x := tok.v.(type) {
	case string:
		if !tok.text {
			return 0, false
		}
		f, err = strconv.ParseFloat(x, 64)
	case json.Number:
		f, err = x.Float64()
	case float64:
		f = x
	case int:
		f = float64(x)
	case int64:
		f = float64(x)
	default:
		return 0, false
	}
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, false
	}
	return f, true
}

func toBool(tok token) (bool, bool) {
	switch x := tok.v.(type) {
	case bool:
		return x, true
	case string:
		if !tok.text {
			return false, false
		}
		switch strings.ToLower(x) {
		case "true", "1", "yes", "on":
			return true, true
		case "false", "0", "no", "off":
			return false, true
		}
	}
	return false, false
}

// parseUUID accepts the canonical 36-character form, plus the 32-character
// hex form when compact is set. Cheap shape checks run before uuid.Parse.
func parseUUID(s string, compact bool) (uuid.UUID, bool) {
	switch len(s) {
	case 36:
		if s[8] != '-' || s[13] != '-' || s[18] != '-' || s[23] != '-' {
			return uuid.Nil, false
		}
	case 32:
		if !compact {
			return uuid.Nil, false
		}
	default:
		return uuid.Nil, false
	}
	id, err := uuid.Parse(s)
	return id, err == nil
}

func parseURL(s string) (url.URL, bool) {
	u, err := url.Parse(s)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return url.URL{}, false
	}
	return *u, true
}

func isEmail(s string) bool {
	addr, err := mail.ParseAddress(s)
	return err == nil && addr.Name == "" && addr.Address == s
}

var errTrailingData = errors.New("unexpected data after JSON value")

// decodeJSON decodes exactly one JSON value, keeping numbers as json.Number.
func decodeJSON(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errTrailingData
	}
	return v, nil
}

// dedupe keeps the first occurrence of each value.
func dedupe(elem Type, vals []any) []any {
	seen := make(map[string]bool, len(vals))
	out := vals[:0]
	for _, v := range vals {
		k := valueKey(elem, v)
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, v)
	}
	return out
}

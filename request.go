package bind

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

// defaultMaxBodyBytes caps how much of a request body ReadRequest buffers (1 MB).
const defaultMaxBodyBytes = 1 << 20

// RequestContext is the raw input of one request, keyed by wire name. The
// transport layer fills it; the Binder only reads it.
type RequestContext struct {
	Path    map[string]string
	Query   url.Values
	Header  http.Header
	Cookies map[string]string

	// Body is the decoded body (numbers as json.Number), or nil.
	Body any

	// RawBody holds the body bytes when no decoder accepted them.
	RawBody []byte
}

// RequestOption configures ReadRequest.
type RequestOption func(*requestConfig)

type requestConfig struct {
	pathValue    func(r *http.Request, name string) string
	maxBodyBytes int64
	codecs       *codecRegistry
}

// WithPathValue sets how path parameters are looked up. The default is
// (*http.Request).PathValue, which covers http.ServeMux patterns; routers
// with their own parameter storage plug in here, e.g. chi.URLParam.
func WithPathValue(fn func(r *http.Request, name string) string) RequestOption {
	return func(c *requestConfig) {
		if fn != nil {
			c.pathValue = fn
		}
	}
}

// WithMaxBodyBytes limits the request body size.
func WithMaxBodyBytes(n int64) RequestOption {
	return func(c *requestConfig) {
		if n > 0 {
			c.maxBodyBytes = n
		}
	}
}

// WithDecoders registers extra body decoders, consulted after the built-in
// JSON and YAML ones.
func WithDecoders(decoders ...Decoder) RequestOption {
	return func(c *requestConfig) {
		c.codecs = newCodecRegistry(nil, decoders)
	}
}

// ReadRequest builds a RequestContext from r. Only the path parameters that
// s declares are looked up, since routers cannot list them generically.
// The body is decoded by Content-Type (JSON when absent, or YAML). A body
// that fails to decode is not an error here: the bytes land in RawBody and
// the Binder reports a type mismatch if the schema needs the body.
func ReadRequest(r *http.Request, s *Schema, opts ...RequestOption) (*RequestContext, error) {
	cfg := requestConfig{
		pathValue:    func(r *http.Request, name string) string { return r.PathValue(name) },
		maxBodyBytes: defaultMaxBodyBytes,
		codecs:       defaultCodecs,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	rc := &RequestContext{
		Path:    make(map[string]string),
		Query:   r.URL.Query(),
		Header:  r.Header.Clone(),
		Cookies: make(map[string]string),
	}

	if s != nil {
		for i := range s.fields {
			f := &s.fields[i]
			if f.Source != SourcePath {
				continue
			}
			if val := cfg.pathValue(r, f.wireKey); val != "" {
				rc.Path[f.wireKey] = val
			}
		}
	}

	for _, c := range r.Cookies() {
		if _, seen := rc.Cookies[c.Name]; !seen {
			rc.Cookies[c.Name] = c.Value
		}
	}

	if err := readBody(r, rc, &cfg); err != nil {
		return nil, err
	}

	return rc, nil
}

func readBody(r *http.Request, rc *RequestContext, cfg *requestConfig) error {
	if r.Body == nil || r.Body == http.NoBody || r.ContentLength == 0 {
		return nil
	}

	data, err := io.ReadAll(http.MaxBytesReader(nil, r.Body, cfg.maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return fmt.Errorf("%w: %w: limit %d bytes", ErrBindBody, ErrBodyTooLarge, tooLarge.Limit)
		}
		return fmt.Errorf("%w: %w", ErrBindBody, err)
	}
	if len(data) == 0 {
		return nil
	}

	dec, ok := cfg.codecs.decoderFor(r.Header.Get("Content-Type"))
	if !ok {
		rc.RawBody = data
		return nil
	}

	v, err := dec.Decode(data)
	if err != nil {
		rc.RawBody = data
		return nil
	}
	rc.Body = v
	return nil
}

// DecodeJSONBody decodes data the way ReadRequest does, for callers that
// build a RequestContext by hand.
func DecodeJSONBody(data []byte) (any, error) {
	v, err := decodeJSON(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBindBody, err)
	}
	return v, nil
}

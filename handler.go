package bind

import (
	"context"
	"errors"
	"net/http"
)

// Handler is the typed handler signature used with Handle. It receives the
// bound input (nil when Handle was given no input schema) and returns a
// value to shape, or nil for an empty response.
type Handler func(ctx context.Context, in *Object) (Value, error)

// ErrorHandler writes an error response. The default writes RFC 9457
// problem details.
type ErrorHandler func(w http.ResponseWriter, r *http.Request, err error)

// HandleOption configures Handle.
type HandleOption func(*handleConfig)

type handleConfig struct {
	status     int
	binder     *Binder
	reqOpts    []RequestOption
	errHandler ErrorHandler
	codecs     *codecRegistry
}

// WithStatus sets the success status. The default is 200, or 204 when the
// handler returns nil.
func WithStatus(code int) HandleOption {
	return func(c *handleConfig) { c.status = code }
}

// WithBinder sets the Binder used for input binding.
func WithBinder(b *Binder) HandleOption {
	return func(c *handleConfig) {
		if b != nil {
			c.binder = b
		}
	}
}

// WithRequestOptions passes options through to ReadRequest.
func WithRequestOptions(opts ...RequestOption) HandleOption {
	return func(c *handleConfig) { c.reqOpts = append(c.reqOpts, opts...) }
}

// WithErrorHandler replaces the default problem-details error writer.
func WithErrorHandler(h ErrorHandler) HandleOption {
	return func(c *handleConfig) { c.errHandler = h }
}

// WithEncoders registers extra response encoders, negotiated after JSON and YAML.
func WithEncoders(encoders ...Encoder) HandleOption {
	return func(c *handleConfig) { c.codecs = newCodecRegistry(encoders, nil) }
}

// Handle wraps h into an http.Handler that reads and binds the request
// against in, calls h, shapes its result with out and writes it. Binding
// failures are answered with 422 and the full error list; unreadable
// bodies with 400, or 413 when over the size limit.
func Handle(in *Schema, out *ResponseSpec, h Handler, opts ...HandleOption) http.Handler {
	cfg := handleConfig{
		binder: defaultBinder,
		codecs: defaultCodecs,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	writeErr := func(w http.ResponseWriter, r *http.Request, err error) {
		if cfg.errHandler != nil {
			cfg.errHandler(w, r, err)
			return
		}
		writeErrorResponse(w, err)
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var obj *Object
		if in != nil {
			var err error
			obj, err = bindRequest(r, in, cfg.binder, cfg.reqOpts)
			if err != nil {
				writeErr(w, r, err)
				return
			}
		}

		resp, err := h(r.Context(), obj)
		if err != nil {
			writeErr(w, r, err)
			return
		}

		if resp == nil || isNilValue(resp) {
			status := cfg.status
			if status == 0 {
				status = http.StatusNoContent
			}
			w.WriteHeader(status)
			return
		}

		if hs, ok := resp.(HeaderSetter); ok {
			hs.SetHeaders(w.Header())
		}
		status := cfg.status
		if status == 0 {
			status = http.StatusOK
		}
		writeResponse(w, r, shapeResult(resp, out), status, cfg.codecs)
	})
}

// bindRequest reads r and binds it against s, mapping body read failures
// onto HTTP errors.
func bindRequest(r *http.Request, s *Schema, b *Binder, opts []RequestOption) (*Object, error) {
	rc, err := ReadRequest(r, s, opts...)
	if err != nil {
		if errors.Is(err, ErrBodyTooLarge) {
			return nil, Error(http.StatusRequestEntityTooLarge, err.Error())
		}
		return nil, Error(http.StatusBadRequest, err.Error())
	}
	return b.Bind(s, rc)
}

// shapeResult applies out, or projects an Object onto its own schema when
// no spec is given. Other values are written as they are.
func shapeResult(v Value, out *ResponseSpec) any {
	if out != nil {
		return Shape(v, out)
	}
	if obj, ok := v.(*Object); ok {
		return Shape(obj, &ResponseSpec{schema: obj.schema})
	}
	return v
}

package bind

import (
	"log/slog"
	"net/http"
	"runtime/debug"
)

// Middleware is the standard middleware signature compatible with the entire
// Go middleware ecosystem.
type Middleware func(next http.Handler) http.Handler

// Bound returns middleware that binds every request against s before
// calling next. The object is available through ObjectFrom; a failed
// binding is answered with the problem-details error response and next is
// not called.
func Bound(s *Schema, opts ...HandleOption) Middleware {
	cfg := handleConfig{binder: defaultBinder}
	for _, opt := range opts {
		opt(&cfg)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			obj, err := bindRequest(r, s, cfg.binder, cfg.reqOpts)
			if err != nil {
				if cfg.errHandler != nil {
					cfg.errHandler(w, r, err)
				} else {
					writeErrorResponse(w, err)
				}
				return
			}
			next.ServeHTTP(w, r.WithContext(WithObject(r.Context(), obj)))
		})
	}
}

// Recovery returns middleware that recovers from panics and responds with a
// 500 problem document.
func Recovery(logger *slog.Logger) Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error("panic recovered",
						"panic", rec,
						"stack", string(debug.Stack()),
						"method", r.Method,
						"path", r.URL.Path,
					)
					writeErrorResponse(w, Error(http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError)))
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

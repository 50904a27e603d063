package bind

import (
	"encoding/json"
	"errors"
	"net/http"
)

// HeaderSetter is optionally implemented by handler results to set response headers.
type HeaderSetter interface {
	SetHeaders(h http.Header)
}

// WriteResponse writes v with the encoder negotiated from the Accept
// header. Responds 406 when an explicit Accept matches no encoder.
func WriteResponse(w http.ResponseWriter, r *http.Request, v any, status int) {
	writeResponse(w, r, v, status, defaultCodecs)
}

func writeResponse(w http.ResponseWriter, r *http.Request, v any, status int, codecs *codecRegistry) {
	enc, ok := codecs.negotiate(r.Header.Get("Accept"))
	if !ok {
		writeErrorResponse(w, Error(http.StatusNotAcceptable, "no acceptable response encoding"))
		return
	}

	if hs, ok := v.(HeaderSetter); ok {
		hs.SetHeaders(w.Header())
	}

	w.Header().Set("Content-Type", enc.ContentType())
	w.WriteHeader(status)
	//nolint:errcheck,gosec // best-effort after WriteHeader
	enc.Encode(w, v)
}

// WriteErrors writes err as an RFC 9457 problem details response. A
// binding error list becomes a 422 carrying every BindingError.
func WriteErrors(w http.ResponseWriter, err error) {
	writeErrorResponse(w, err)
}

// writeErrorResponse writes an error as an RFC 9457 problem details response.
func writeErrorResponse(w http.ResponseWriter, err error) {
	var pd *ProblemDetail
	if !errors.As(err, &pd) {
		if es, ok := AsErrors(err); ok {
			pd = es.Problem()
		} else {
			status := ErrorStatus(err)
			pd = &ProblemDetail{
				Type:   "about:blank",
				Title:  http.StatusText(status),
				Status: status,
				Detail: err.Error(),
			}
		}
	}

	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(pd.Status)
	//nolint:errcheck,errchkjson,gosec // best-effort after WriteHeader
	json.NewEncoder(w).Encode(pd)
}

// Package bindtest provides test helpers for package bind: a builder for
// RequestContext values, binding assertions and a small HTTP client.
package bindtest

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/bjaus/bind"
)

// Request builds a bind.RequestContext.
type Request struct {
	rc *bind.RequestContext
}

// NewRequest returns an empty request.
func NewRequest() *Request {
	return &Request{rc: &bind.RequestContext{
		Path:    map[string]string{},
		Query:   url.Values{},
		Header:  http.Header{},
		Cookies: map[string]string{},
	}}
}

// Path sets a path parameter.
func (r *Request) Path(name, value string) *Request {
	r.rc.Path[name] = value
	return r
}

// Query appends query values in order.
func (r *Request) Query(name string, values ...string) *Request {
	r.rc.Query[name] = append(r.rc.Query[name], values...)
	return r
}

// Header appends header values in order.
func (r *Request) Header(name string, values ...string) *Request {
	for _, v := range values {
		r.rc.Header.Add(name, v)
	}
	return r
}

// Cookie sets a cookie.
func (r *Request) Cookie(name, value string) *Request {
	r.rc.Cookies[name] = value
	return r
}

// JSON sets the body to v, encoded and decoded the way ReadRequest would.
func (r *Request) JSON(t testing.TB, v any) *Request {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("bindtest: marshal body: %v", err)
	}
	return r.RawJSON(t, string(data))
}

// RawJSON sets the body from a JSON document.
func (r *Request) RawJSON(t testing.TB, doc string) *Request {
	t.Helper()
	v, err := bind.DecodeJSONBody([]byte(doc))
	if err != nil {
		t.Fatalf("bindtest: decode body: %v", err)
	}
	r.rc.Body = v
	r.rc.RawBody = nil
	return r
}

// RawBody sets an undecodable body.
func (r *Request) RawBody(data []byte) *Request {
	r.rc.Body = nil
	r.rc.RawBody = data
	return r
}

// Context returns the built RequestContext.
func (r *Request) Context() *bind.RequestContext { return r.rc }

// Bind binds r against s and fails the test on any binding error.
func Bind(t testing.TB, s *bind.Schema, r *Request) *bind.Object {
	t.Helper()
	obj, err := bind.Bind(s, r.rc)
	if err != nil {
		t.Fatalf("bindtest: bind %s: %v", s.Name(), err)
	}
	return obj
}

// BindErrors binds r against s and returns the error list, failing the
// test if binding succeeds.
func BindErrors(t testing.TB, s *bind.Schema, r *Request) bind.Errors {
	t.Helper()
	obj, err := bind.Bind(s, r.rc)
	if err == nil {
		t.Fatalf("bindtest: bind %s: expected errors, got %v", s.Name(), obj)
	}
	errs, ok := bind.AsErrors(err)
	if !ok {
		t.Fatalf("bindtest: bind %s: unexpected error type %T: %v", s.Name(), err, err)
	}
	return errs
}

// RequireError returns the first error at path with the given kind,
// failing the test when there is none.
func RequireError(t testing.TB, errs bind.Errors, path string, kind bind.ErrorKind) *bind.BindingError {
	t.Helper()
	for _, e := range errs.At(path) {
		if e.Kind == kind {
			return e
		}
	}
	t.Fatalf("bindtest: no %s error at %q in %v", kind, path, errs)
	return nil
}

// Client wraps an httptest.Server for convenient handler testing.
type Client struct {
	Server *httptest.Server
}

// NewClient starts a test server for h.
func NewClient(t testing.TB, h http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return &Client{Server: srv}
}

// Response holds a raw API response.
type Response struct {
	Status  int
	Headers http.Header
	Body    []byte
}

// Decode unmarshals the JSON body into v.
func (r *Response) Decode(t testing.TB, v any) {
	t.Helper()
	if err := json.Unmarshal(r.Body, v); err != nil {
		t.Fatalf("bindtest: decode response %q: %v", r.Body, err)
	}
}

// Problem decodes a problem details body.
func (r *Response) Problem(t testing.TB) *bind.ProblemDetail {
	t.Helper()
	var pd bind.ProblemDetail
	r.Decode(t, &pd)
	return &pd
}

// Get sends a GET request.
func (c *Client) Get(t testing.TB, path string, header ...string) *Response {
	t.Helper()
	return c.Do(t, http.MethodGet, path, nil, header...)
}

// Post sends a POST request with a JSON body.
func (c *Client) Post(t testing.TB, path string, body any, header ...string) *Response {
	t.Helper()
	return c.Do(t, http.MethodPost, path, body, header...)
}

// Do sends a request. A []byte or string body is sent as is; anything else
// is JSON encoded. header holds name, value pairs.
func (c *Client) Do(t testing.TB, method, path string, body any, header ...string) *Response {
	t.Helper()

	var reqBody io.Reader
	switch b := body.(type) {
	case nil:
	case []byte:
		reqBody = bytes.NewReader(b)
	case string:
		reqBody = bytes.NewReader([]byte(b))
	default:
		data, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("bindtest: marshal request body: %v", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(context.Background(), method, c.Server.URL+path, reqBody)
	if err != nil {
		t.Fatalf("bindtest: create request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("bindtest: execute request: %v", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			t.Errorf("bindtest: close body: %v", closeErr)
		}
	}()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("bindtest: read body: %v", err)
	}
	return &Response{Status: resp.StatusCode, Headers: resp.Header, Body: data}
}

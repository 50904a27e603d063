package bind_test

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/bjaus/bind"
	"github.com/bjaus/bind/bindtest"
)

var (
	createSchema = bind.MustSchema("CreateItem", []bind.FieldSpec{
		bind.Field("item_id", bind.Int(), bind.In(bind.SourcePath)),
		bind.Field("item", bind.ObjectOf(itemSchema), bind.WholeBody()),
		bind.Field("q", bind.OptionalOf(bind.String()), bind.Default(nil)),
	})

	itemOutSchema = bind.MustSchema("ItemOut", []bind.FieldSpec{
		bind.Field("item_id", bind.Int()),
		bind.Field("name", bind.String()),
		bind.Field("price", bind.Float()),
		bind.Field("tax", bind.OptionalOf(bind.Float()), bind.Default(nil)),
		bind.Field("q", bind.OptionalOf(bind.String()), bind.Default(nil)),
	})

	itemOut = bind.MustResponseSpec(itemOutSchema, bind.ExcludeUnset())
)

func createItem(_ context.Context, in *bind.Object) (bind.Value, error) {
	item := in.GetObject("item")
	out := itemOutSchema.New().
		MustSet("item_id", in.GetInt("item_id")).
		MustSet("name", item.GetString("name")).
		MustSet("price", item.GetFloat("price"))
	if item.IsSet("tax") {
		v, _ := item.Get("tax")
		out.MustSet("tax", v)
	}
	if q := in.GetString("q"); q != "" {
		out.MustSet("q", q)
	}
	return out, nil
}

func newCreateServer(t *testing.T, opts ...bind.HandleOption) *bindtest.Client {
	t.Helper()
	mux := http.NewServeMux()
	mux.Handle("POST /items/{item_id}", bind.Handle(createSchema, itemOut, createItem, opts...))
	return bindtest.NewClient(t, mux)
}

func TestHandle_success(t *testing.T) {
	t.Parallel()

	c := newCreateServer(t)
	resp := c.Post(t, "/items/5?q=hi", map[string]any{"name": "Foo", "price": 35.4})

	require.Equal(t, http.StatusOK, resp.Status)
	assert.Equal(t, "application/json", resp.Headers.Get("Content-Type"))
	assert.JSONEq(t, `{"item_id":5,"name":"Foo","price":35.4,"q":"hi"}`, string(resp.Body))
}

func TestHandle_validation_failure(t *testing.T) {
	t.Parallel()

	c := newCreateServer(t)
	resp := c.Post(t, "/items/abc", map[string]any{"name": "", "price": 0, "color": "red"})

	require.Equal(t, http.StatusUnprocessableEntity, resp.Status)
	assert.Equal(t, "application/problem+json", resp.Headers.Get("Content-Type"))

	pd := resp.Problem(t)
	assert.Equal(t, http.StatusUnprocessableEntity, pd.Status)
	paths := make([]string, len(pd.Errors))
	for i, e := range pd.Errors {
		paths[i] = e.Path
	}
	assert.Equal(t, []string{"item_id", "item.name", "item.price", "item.color"}, paths)
	assert.Equal(t, bind.KindTypeMismatch, pd.Errors[0].Kind)
	assert.Equal(t, bind.SourcePath, pd.Errors[0].Source)
	assert.Equal(t, bind.KindUnknownField, pd.Errors[3].Kind)
}

func TestHandle_malformed_json(t *testing.T) {
	t.Parallel()

	c := newCreateServer(t)
	resp := c.Post(t, "/items/1", `{"name":`)

	require.Equal(t, http.StatusUnprocessableEntity, resp.Status)
	pd := resp.Problem(t)
	require.Len(t, pd.Errors, 1)
	assert.Equal(t, "item", pd.Errors[0].Path)
	assert.Equal(t, bind.KindTypeMismatch, pd.Errors[0].Kind)
}

func TestHandle_body_too_large(t *testing.T) {
	t.Parallel()

	c := newCreateServer(t, bind.WithRequestOptions(bind.WithMaxBodyBytes(16)))
	resp := c.Post(t, "/items/1", map[string]any{"name": strings.Repeat("x", 64), "price": 1})

	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.Status)
	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.Problem(t).Status)
}

func TestHandle_yaml_request_and_response(t *testing.T) {
	t.Parallel()

	c := newCreateServer(t)
	resp := c.Do(t, http.MethodPost, "/items/7", "name: Foo\nprice: 2\ntax: 0.5\n",
		"Content-Type", "application/yaml",
		"Accept", "application/yaml",
	)

	require.Equal(t, http.StatusOK, resp.Status)
	assert.Equal(t, "application/yaml", resp.Headers.Get("Content-Type"))
	assert.Equal(t, "item_id: 7\nname: Foo\nprice: 2\ntax: 0.5\n", string(resp.Body))
}

func TestHandle_not_acceptable(t *testing.T) {
	t.Parallel()

	c := newCreateServer(t)
	resp := c.Post(t, "/items/1", map[string]any{"name": "Foo", "price": 1}, "Accept", "text/html")

	assert.Equal(t, http.StatusNotAcceptable, resp.Status)
}

func TestHandle_status_and_empty_results(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		handler bind.Handler
		opts    []bind.HandleOption
		status  int
	}{
		"nil result": {
			handler: func(context.Context, *bind.Object) (bind.Value, error) { return nil, nil },
			status:  http.StatusNoContent,
		},
		"typed nil object": {
			handler: func(context.Context, *bind.Object) (bind.Value, error) { return (*bind.Object)(nil), nil },
			status:  http.StatusNoContent,
		},
		"custom status": {
			handler: func(context.Context, *bind.Object) (bind.Value, error) { return bind.Map{"ok": true}, nil },
			opts:    []bind.HandleOption{bind.WithStatus(http.StatusCreated)},
			status:  http.StatusCreated,
		},
		"http error": {
			handler: func(context.Context, *bind.Object) (bind.Value, error) {
				return nil, bind.Error(http.StatusNotFound, "item not found")
			},
			status: http.StatusNotFound,
		},
		"plain error": {
			handler: func(context.Context, *bind.Object) (bind.Value, error) {
				return nil, fmt.Errorf("boom")
			},
			status: http.StatusInternalServerError,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			c := bindtest.NewClient(t, bind.Handle(nil, nil, tc.handler, tc.opts...))
			resp := c.Get(t, "/")
			assert.Equal(t, tc.status, resp.Status)
		})
	}
}

type headered map[string]any

func (h headered) Lookup(name string) (any, bool, bool) { return bind.Map(h).Lookup(name) }

func (h headered) SetHeaders(hd http.Header) { hd.Set("X-Item", "yes") }

func TestHandle_header_setter(t *testing.T) {
	t.Parallel()

	h := bind.Handle(nil, nil, func(context.Context, *bind.Object) (bind.Value, error) {
		return headered{"a": 1}, nil
	})
	resp := bindtest.NewClient(t, h).Get(t, "/")

	assert.Equal(t, "yes", resp.Headers.Get("X-Item"))
	assert.JSONEq(t, `{"a":1}`, string(resp.Body))
}

func TestHandle_object_without_spec(t *testing.T) {
	t.Parallel()

	h := bind.Handle(nil, nil, func(context.Context, *bind.Object) (bind.Value, error) {
		return itemOutSchema.New().MustSet("item_id", 1).MustSet("name", "x").MustSet("price", 2), nil
	})
	resp := bindtest.NewClient(t, h).Get(t, "/")

	assert.JSONEq(t, `{"item_id":1,"name":"x","price":2,"tax":null,"q":null}`, string(resp.Body))
}

func TestHandle_custom_error_handler(t *testing.T) {
	t.Parallel()

	errc := make(chan error, 1)
	c := newCreateServer(t, bind.WithErrorHandler(func(w http.ResponseWriter, _ *http.Request, err error) {
		errc <- err
		w.WriteHeader(http.StatusTeapot)
	}))
	resp := c.Post(t, "/items/x", map[string]any{"name": "a", "price": 1})

	assert.Equal(t, http.StatusTeapot, resp.Status)
	es, ok := bind.AsErrors(<-errc)
	require.True(t, ok)
	assert.True(t, es.Has("item_id"))
}

type csvEncoder struct{}

func (csvEncoder) ContentType() string { return "text/csv" }

func (csvEncoder) Encode(w io.Writer, v any) error {
	p, ok := v.(*bind.Payload)
	if !ok {
		return fmt.Errorf("csv: unsupported %T", v)
	}
	_, err := io.WriteString(w, strings.Join(p.Keys(), ",")+"\n")
	return err
}

func TestHandle_custom_encoder(t *testing.T) {
	t.Parallel()

	c := newCreateServer(t, bind.WithEncoders(csvEncoder{}))
	resp := c.Post(t, "/items/3", map[string]any{"name": "Foo", "price": 1}, "Accept", "text/csv")

	require.Equal(t, http.StatusOK, resp.Status)
	assert.Equal(t, "item_id,name,price\n", string(resp.Body))
}

func TestBound_middleware(t *testing.T) {
	t.Parallel()

	page := bind.MustSchema("Page", []bind.FieldSpec{
		bind.Field("skip", bind.Int(), bind.Default(0), bind.Ge(0)),
		bind.Field("limit", bind.Int(), bind.Default(10), bind.Le(100)),
	})
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		obj, ok := bind.ObjectFrom(r.Context(), page)
		if !ok {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		bind.WriteResponse(w, r, []*bind.Payload{bind.Shape(obj, bind.MustResponseSpec(page))}, http.StatusOK)
	})
	c := bindtest.NewClient(t, bind.Bound(page)(next))

	resp := c.Get(t, "/?skip=2")
	require.Equal(t, http.StatusOK, resp.Status)
	assert.JSONEq(t, `[{"skip":2,"limit":10}]`, string(resp.Body))

	resp = c.Get(t, "/?limit=500")
	require.Equal(t, http.StatusUnprocessableEntity, resp.Status)
	assert.Equal(t, "limit", resp.Problem(t).Errors[0].Path)
}

func TestObjectFrom_keyed_by_schema(t *testing.T) {
	t.Parallel()

	a := bind.MustSchema("A", []bind.FieldSpec{bind.Field("x", bind.Int(), bind.Default(1))})
	b := bind.MustSchema("B", []bind.FieldSpec{bind.Field("x", bind.Int(), bind.Default(2))})

	ctx := bind.WithObject(context.Background(), a.New())
	_, ok := bind.ObjectFrom(ctx, a)
	assert.True(t, ok)
	_, ok = bind.ObjectFrom(ctx, b)
	assert.False(t, ok)
}

func TestRecovery(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	h := bind.Recovery(logger)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("secret detail")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "secret detail")
	assert.Contains(t, buf.String(), "panic recovered")
	assert.Contains(t, buf.String(), "secret detail")
}

func TestWriteResponse_negotiation(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		accept      string
		status      int
		contentType string
	}{
		"no accept":        {status: http.StatusOK, contentType: "application/json"},
		"wildcard":         {accept: "*/*", status: http.StatusOK, contentType: "application/json"},
		"yaml preferred":   {accept: "application/json;q=0.5, application/yaml", status: http.StatusOK, contentType: "application/yaml"},
		"text yaml alias":  {accept: "text/yaml", status: http.StatusOK, contentType: "application/yaml"},
		"application star": {accept: "application/*", status: http.StatusOK, contentType: "application/json"},
		"unmatched":        {accept: "image/png", status: http.StatusNotAcceptable, contentType: "application/problem+json"},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.accept != "" {
				r.Header.Set("Accept", tc.accept)
			}
			rec := httptest.NewRecorder()
			bind.WriteResponse(rec, r, bind.Shape(bind.Map{"a": 1}, bind.MustResponseSpec(
				bind.MustSchema("A", []bind.FieldSpec{bind.Field("a", bind.Int())}),
			)), http.StatusOK)

			assert.Equal(t, tc.status, rec.Code)
			assert.Equal(t, tc.contentType, rec.Header().Get("Content-Type"))
			if tc.contentType == "application/yaml" {
				var v map[string]any
				require.NoError(t, yaml.Unmarshal(rec.Body.Bytes(), &v))
				assert.Equal(t, map[string]any{"a": 1}, v)
			}
		})
	}
}

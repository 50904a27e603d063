package main

import (
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bjaus/bind/bindtest"
)

func newTestClient(t *testing.T) *bindtest.Client {
	t.Helper()

	s, err := loadSchemas()
	require.NoError(t, err)

	cfg := config{
		RateLimit:      1000,
		RateBurst:      1000,
		MaxBodyBytes:   1 << 10,
		MaxValueLength: 64,
	}
	a := &app{
		schemas: s,
		items:   newItemStore("Foo", "Bar", "Baz"),
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	return bindtest.NewClient(t, newRouter(cfg, a))
}

func TestRoutes_get(t *testing.T) {
	t.Parallel()

	c := newTestClient(t)

	tests := map[string]struct {
		path   string
		status int
		body   string
	}{
		"root":                 {path: "/", status: http.StatusOK, body: `{"message":"hello fast api."}`},
		"current user":         {path: "/users/me", status: http.StatusOK, body: `{"user_id":"the current user"}`},
		"user by id":           {path: "/users/5", status: http.StatusOK, body: `{"user_id":5}`},
		"model":                {path: "/models/alexnet", status: http.StatusOK, body: `{"model_name":"alexnet","message":"Deep learning FTW!"}`},
		"items default page":   {path: "/items", status: http.StatusOK, body: `[{"item_name":"Foo"},{"item_name":"Bar"},{"item_name":"Baz"}]`},
		"items second page":    {path: "/items?skip=1&limit=1", status: http.StatusOK, body: `[{"item_name":"Bar"}]`},
		"items past the end":   {path: "/items?skip=10", status: http.StatusOK, body: `[]`},
		"item short":           {path: "/item/foo?short=true", status: http.StatusOK, body: `{"item_id":"foo"}`},
		"item with query":      {path: "/item/foo?q=bar", status: http.StatusOK, body: `{"item_id":"foo","q":"bar","description":"` + longDescription + `"}`},
		"user item":            {path: "/users/3/items/foo?short=1", status: http.StatusOK, body: `{"item_id":"foo","owner_id":3}`},
		"user item empty q":    {path: "/users/3/items/foo?short=yes&q=", status: http.StatusOK, body: `{"item_id":"foo","owner_id":3}`},
		"user id below range":  {path: "/users/0", status: http.StatusUnprocessableEntity},
		"user id not a number": {path: "/users/abc", status: http.StatusUnprocessableEntity},
		"unknown model":        {path: "/models/vgg", status: http.StatusUnprocessableEntity},
		"limit out of range":   {path: "/items?limit=101", status: http.StatusUnprocessableEntity},
		"bad short flag":       {path: "/item/foo?short=maybe", status: http.StatusUnprocessableEntity},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			resp := c.Get(t, tc.path)
			require.Equal(t, tc.status, resp.Status, string(resp.Body))
			if tc.body != "" {
				assert.JSONEq(t, tc.body, string(resp.Body))
			}
		})
	}
}

func TestRoutes_model_error_lists_members(t *testing.T) {
	t.Parallel()

	resp := newTestClient(t).Get(t, "/models/vgg")
	pd := resp.Problem(t)
	require.Len(t, pd.Errors, 1)
	assert.Equal(t, "model_name", pd.Errors[0].Path)
	assert.Equal(t, "must be one of [alexnet, resnet, lenet]", pd.Errors[0].Message)
	assert.Equal(t, "vgg", pd.Errors[0].Value)
}

func TestRoutes_create_item(t *testing.T) {
	t.Parallel()

	c := newTestClient(t)

	tests := map[string]struct {
		path   string
		body   any
		status int
		expect string
		paths  []string
	}{
		"minimal": {
			path:   "/items/5",
			body:   map[string]any{"name": "Foo", "price": 10},
			status: http.StatusOK,
			expect: `{"item_id":5,"name":"Foo","description":null,"price":10,"tax":null}`,
		},
		"with tax and query": {
			path:   "/items/5?q=x",
			body:   map[string]any{"name": "Foo", "price": 10, "tax": 2.5},
			status: http.StatusOK,
			expect: `{"item_id":5,"name":"Foo","description":null,"price":10,"tax":2.5,"price_with_tax":12.5,"q":"x"}`,
		},
		"unknown keys ignored": {
			path:   "/items/1",
			body:   map[string]any{"name": "Foo", "price": 1, "description": "d", "color": "red"},
			status: http.StatusOK,
			expect: `{"item_id":1,"name":"Foo","description":"d","price":1,"tax":null}`,
		},
		"every error reported": {
			path:   "/items/abc",
			body:   map[string]any{"name": "", "price": -1, "color": "red"},
			status: http.StatusUnprocessableEntity,
			paths:  []string{"item_id", "item.name", "item.price"},
		},
		"malformed body": {
			path:   "/items/1",
			body:   `{"name":`,
			status: http.StatusUnprocessableEntity,
			paths:  []string{"item"},
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			resp := c.Post(t, tc.path, tc.body)
			require.Equal(t, tc.status, resp.Status, string(resp.Body))
			if tc.expect != "" {
				assert.JSONEq(t, tc.expect, string(resp.Body))
				return
			}
			pd := resp.Problem(t)
			got := make([]string, len(pd.Errors))
			for i, e := range pd.Errors {
				got[i] = e.Path
			}
			assert.Equal(t, tc.paths, got)
		})
	}
}

func TestRoutes_create_item_yaml(t *testing.T) {
	t.Parallel()

	resp := newTestClient(t).Do(t, http.MethodPost, "/items/2", "name: Foo\nprice: 3\n",
		"Content-Type", "application/yaml",
		"Accept", "application/yaml",
	)

	require.Equal(t, http.StatusOK, resp.Status, string(resp.Body))
	assert.Equal(t, "item_id: 2\nname: Foo\ndescription: null\nprice: 3\ntax: null\n", string(resp.Body))
}

func TestRoutes_body_too_large(t *testing.T) {
	t.Parallel()

	big := make([]byte, 4<<10)
	for i := range big {
		big[i] = 'a'
	}
	resp := newTestClient(t).Post(t, "/items/1", map[string]any{"name": string(big), "price": 1})

	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.Status)
}

func TestRoutes_request_id(t *testing.T) {
	t.Parallel()

	c := newTestClient(t)

	resp := c.Get(t, "/", requestIDHeader, "abc-123")
	assert.Equal(t, "abc-123", resp.Headers.Get(requestIDHeader))

	resp = c.Get(t, "/")
	assert.Len(t, resp.Headers.Get(requestIDHeader), 36)
}

func TestRateLimiter_allow(t *testing.T) {
	t.Parallel()

	rl := newRateLimiter(1, 1)
	now := time.Now()

	assert.True(t, rl.allow("a", now))
	assert.False(t, rl.allow("a", now))
	assert.True(t, rl.allow("b", now))
	assert.True(t, rl.allow("a", now.Add(time.Second)))
}

func TestRateLimiter_middleware(t *testing.T) {
	t.Parallel()

	s, err := loadSchemas()
	require.NoError(t, err)
	a := &app{
		schemas: s,
		items:   newItemStore(),
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	c := bindtest.NewClient(t, newRouter(config{RateLimit: 0.001, RateBurst: 1, MaxValueLength: 64}, a))

	require.Equal(t, http.StatusOK, c.Get(t, "/").Status)
	resp := c.Get(t, "/")
	assert.Equal(t, http.StatusTooManyRequests, resp.Status)
	assert.NotEmpty(t, resp.Headers.Get("Retry-After"))
}

func TestLoadConfig(t *testing.T) {
	t.Setenv("SAMPLE_ADDR", ":9999")
	t.Setenv("SAMPLE_LOG_LEVEL", "debug")
	t.Setenv("SAMPLE_RATE_LIMIT", "2.5")
	t.Setenv("SAMPLE_SHUTDOWN_TIMEOUT", "1s")

	cfg, err := loadConfig()
	require.NoError(t, err)
	assert.Equal(t, ":9999", cfg.Addr)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	assert.InDelta(t, 2.5, cfg.RateLimit, 1e-9)
	assert.Equal(t, 20, cfg.RateBurst)
	assert.Equal(t, time.Second, cfg.ShutdownTimeout)
}

func TestLoadConfig_invalid(t *testing.T) {
	t.Setenv("SAMPLE_RATE_BURST", "0")

	_, err := loadConfig()
	require.ErrorIs(t, err, errParseConfig)

	t.Setenv("SAMPLE_RATE_BURST", "lots")
	_, err = loadConfig()
	require.ErrorIs(t, err, errParseConfig)
}

package bind_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bjaus/bind"
)

func TestHeaderKey(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		name   string
		keep   bool
		expect string
	}{
		"underscores":      {name: "user_agent", expect: "User-Agent"},
		"spaces":           {name: "user agent", expect: "User-Agent"},
		"already hyphened": {name: "x-request-id", expect: "X-Request-Id"},
		"single word":      {name: "accept", expect: "Accept"},
		"keep underscores": {name: "strange_header", keep: true, expect: "Strange_header"},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.expect, bind.HeaderKey(tc.name, tc.keep))
		})
	}
}

func TestExtract_header_case_insensitive(t *testing.T) {
	t.Parallel()

	s := bind.MustSchema("S", []bind.FieldSpec{
		bind.Field("user_agent", bind.String(), bind.In(bind.SourceHeader)),
	})

	for _, h := range []http.Header{
		{"User-Agent": {"curl"}},
		{"user-agent": {"curl"}},
		{"USER-AGENT": {"curl"}},
	} {
		obj, err := bind.Bind(s, &bind.RequestContext{Header: h})
		require.NoError(t, err)
		assert.Equal(t, "curl", obj.GetString("user_agent"))
	}
}

func TestExtract_header_keep_underscores(t *testing.T) {
	t.Parallel()

	s := bind.MustSchema("S", []bind.FieldSpec{
		bind.Field("strange_header", bind.String(), bind.In(bind.SourceHeader), bind.KeepUnderscores()),
	})

	_, err := bind.Bind(s, &bind.RequestContext{Header: http.Header{"Strange-Header": {"x"}}})
	es, ok := bind.AsErrors(err)
	require.True(t, ok)
	assert.Equal(t, bind.KindMissing, es[0].Kind)

	obj, err := bind.Bind(s, &bind.RequestContext{Header: http.Header{"strange_header": {"x"}}})
	require.NoError(t, err)
	assert.Equal(t, "x", obj.GetString("strange_header"))
}

func TestExtract_absent_versus_empty(t *testing.T) {
	t.Parallel()

	s := bind.MustSchema("S", []bind.FieldSpec{
		bind.Field("q", bind.String(), bind.Default("fallback")),
	})

	obj, err := bind.Bind(s, &bind.RequestContext{})
	require.NoError(t, err)
	assert.Equal(t, "fallback", obj.GetString("q"))
	assert.False(t, obj.IsSet("q"))

	obj, err = bind.Bind(s, &bind.RequestContext{Query: map[string][]string{"q": {""}}})
	require.NoError(t, err)
	assert.Empty(t, obj.GetString("q"))
	assert.True(t, obj.IsSet("q"))
}

func TestExtract_repeated_values(t *testing.T) {
	t.Parallel()

	s := bind.MustSchema("S", []bind.FieldSpec{
		bind.Field("id", bind.ListOf(bind.Int())),
		bind.Field("first", bind.String()),
		bind.Field("x_token", bind.ListOf(bind.String()), bind.In(bind.SourceHeader)),
	})
	rc := &bind.RequestContext{
		Query:  map[string][]string{"id": {"3", "1", "2"}, "first": {"a", "b"}},
		Header: http.Header{"X-Token": {"foo", "bar"}},
	}

	obj, err := bind.Bind(s, rc)
	require.NoError(t, err)
	assert.Equal(t, []any{int64(3), int64(1), int64(2)}, obj.GetList("id"))
	assert.Equal(t, "a", obj.GetString("first"))
	assert.Equal(t, []any{"foo", "bar"}, obj.GetList("x_token"))
}

func TestExtract_alias_is_wire_name(t *testing.T) {
	t.Parallel()

	s := bind.MustSchema("S", []bind.FieldSpec{
		bind.Field("item_query", bind.String(), bind.Alias("item-query")),
	})

	obj, err := bind.Bind(s, &bind.RequestContext{Query: map[string][]string{"item-query": {"x"}}})
	require.NoError(t, err)
	assert.Equal(t, "x", obj.GetString("item_query"))

	_, err = bind.Bind(s, &bind.RequestContext{Query: map[string][]string{"item_query": {"x"}}})
	es, ok := bind.AsErrors(err)
	require.True(t, ok)
	assert.Equal(t, "item-query", es[0].Path)
}

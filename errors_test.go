package bind_test

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bjaus/bind"
)

func TestBindingError_unwraps_to_sentinel(t *testing.T) {
	t.Parallel()

	tests := map[bind.ErrorKind]error{
		bind.KindMissing:             bind.ErrMissing,
		bind.KindTypeMismatch:        bind.ErrTypeMismatch,
		bind.KindConstraintViolation: bind.ErrConstraint,
		bind.KindUnknownField:        bind.ErrUnknownField,
	}

	for kind, sentinel := range tests {
		t.Run(string(kind), func(t *testing.T) {
			t.Parallel()
			e := &bind.BindingError{Path: "a", Kind: kind, Message: "m"}
			assert.ErrorIs(t, e, sentinel)
			assert.ErrorIs(t, bind.Errors{e}, sentinel)
			assert.ErrorIs(t, fmt.Errorf("wrapped: %w", bind.Errors{e}), sentinel)
		})
	}
}

func TestErrors_queries(t *testing.T) {
	t.Parallel()

	es := bind.Errors{
		{Path: "a", Kind: bind.KindConstraintViolation, Constraint: bind.ConstraintMaxLength, Message: "too long"},
		{Path: "a", Kind: bind.KindConstraintViolation, Constraint: bind.ConstraintPattern, Message: "bad pattern"},
		{Path: "b.0", Kind: bind.KindMissing, Message: "field required"},
	}

	assert.True(t, es.Has("b.0"))
	assert.False(t, es.Has("b"))
	assert.Len(t, es.At("a"), 2)
	assert.Equal(t, []string{"a", "b.0"}, es.Paths())
	assert.Equal(t, "binding failed: a: too long; a: bad pattern; b.0: field required", es.Error())
	assert.Equal(t, http.StatusUnprocessableEntity, bind.ErrorStatus(es))
}

func TestAsErrors(t *testing.T) {
	t.Parallel()

	single := &bind.BindingError{Path: "x", Kind: bind.KindMissing}
	es, ok := bind.AsErrors(fmt.Errorf("ctx: %w", single))
	require.True(t, ok)
	assert.Equal(t, bind.Errors{single}, es)

	_, ok = bind.AsErrors(errors.New("plain"))
	assert.False(t, ok)
}

func TestErrors_problem(t *testing.T) {
	t.Parallel()

	es := bind.Errors{{Path: "a", Kind: bind.KindMissing, Message: "field required"}}
	pd := es.Problem()

	assert.Equal(t, http.StatusUnprocessableEntity, pd.Status)
	assert.Equal(t, "Validation Failed", pd.Title)
	assert.Equal(t, "1 binding error(s)", pd.Detail)
	assert.Len(t, pd.Errors, 1)
	assert.Equal(t, http.StatusUnprocessableEntity, bind.ErrorStatus(pd))
}

func TestErrorStatus(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		err    error
		expect int
	}{
		"http error":   {err: bind.Error(http.StatusNotFound, "nope"), expect: http.StatusNotFound},
		"formatted":    {err: bind.Errorf(http.StatusConflict, "item %d exists", 3), expect: http.StatusConflict},
		"wrapped":      {err: fmt.Errorf("ctx: %w", bind.Error(http.StatusForbidden, "no")), expect: http.StatusForbidden},
		"plain":        {err: errors.New("boom"), expect: http.StatusInternalServerError},
		"binding list": {err: bind.Errors{}, expect: http.StatusUnprocessableEntity},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.expect, bind.ErrorStatus(tc.err))
		})
	}
}

package bind

import (
	"context"
	"net/http"
)

type contextKey[T any] struct{}

// SetValue stores a typed value in the request context. For use in middleware.
func SetValue[T any](r *http.Request, val T) *http.Request {
	ctx := context.WithValue(r.Context(), contextKey[T]{}, val)
	return r.WithContext(ctx)
}

// GetValue retrieves a typed value from the request context. For use in handlers.
func GetValue[T any](ctx context.Context) (T, bool) {
	val, ok := ctx.Value(contextKey[T]{}).(T)
	return val, ok
}

type objectKey struct{ schema *Schema }

// WithObject returns a context carrying obj, keyed by its schema so that
// objects bound against different schemas can coexist.
func WithObject(ctx context.Context, obj *Object) context.Context {
	return context.WithValue(ctx, objectKey{obj.schema}, obj)
}

// ObjectFrom returns the object bound against s by the Bound middleware.
func ObjectFrom(ctx context.Context, s *Schema) (*Object, bool) {
	obj, ok := ctx.Value(objectKey{s}).(*Object)
	return obj, ok && obj != nil
}

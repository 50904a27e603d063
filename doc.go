// Package bind maps raw HTTP input onto typed, validated objects and maps
// typed output back onto response payloads.
//
// A Schema is an ordered, immutable table of fields, each read from one
// request location (path, query, header, cookie or body), coerced to a
// declared Type and checked against a ConstraintSet:
//
//	var itemQuery = bind.MustSchema("ItemQuery", []bind.FieldSpec{
//	    bind.Field("item_id", bind.Int(), bind.In(bind.SourcePath)),
//	    bind.Field("q", bind.OptionalOf(bind.String()), bind.Default(nil), bind.MaxLength(50)),
//	    bind.Field("short", bind.Bool(), bind.Default(false)),
//	})
//
// Schemas can also be declared from struct tags with SchemaOf, or loaded
// from YAML with LoadSchemas.
//
// Bind runs every field through extraction, coercion and validation and
// collects every failure; it never stops at the first one:
//
//	rc, err := bind.ReadRequest(r, itemQuery)
//	obj, err := bind.Bind(itemQuery, rc)
//	var errs bind.Errors
//	if errors.As(err, &errs) { ... }
//
// The resulting Object remembers which fields were explicitly set, which
// Shape uses to project a value onto a ResponseSpec:
//
//	out := bind.MustResponseSpec(itemSchema, bind.ExcludeUnset())
//	payload := bind.Shape(obj, out)
//
// Handle ties the pieces to net/http: read, bind, call the handler, shape
// and write, with binding failures answered as RFC 9457 problem details.
package bind

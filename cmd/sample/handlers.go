package main

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/bjaus/bind"
)

const longDescription = "This is an amazing item that has a long description."

var modelMessages = map[string]string{
	"alexnet": "Deep learning FTW!",
	"lenet":   "LeCNN all the images",
	"resnet":  "Have some residuals",
}

// itemStore is the fake item database served by GET /items.
type itemStore struct {
	names []string
}

func newItemStore(names ...string) *itemStore {
	return &itemStore{names: names}
}

// page returns names[skip:skip+limit], clamped to the available items.
func (s *itemStore) page(skip, limit int64) []string {
	n := int64(len(s.names))
	start := min(skip, n)
	end := min(start+limit, n)
	return s.names[start:end]
}

type app struct {
	schemas *schemas
	items   *itemStore
	logger  *slog.Logger
}

func newRouter(cfg config, a *app) http.Handler {
	binder := bind.NewBinder(
		bind.WithLogger(a.logger),
		bind.WithMaxValueLength(cfg.MaxValueLength),
	)
	opts := []bind.HandleOption{
		bind.WithBinder(binder),
		bind.WithRequestOptions(
			bind.WithPathValue(chi.URLParam),
			bind.WithMaxBodyBytes(cfg.MaxBodyBytes),
		),
	}
	limiter := newRateLimiter(cfg.RateLimit, cfg.RateBurst)

	r := chi.NewRouter()
	r.Use(requestID, requestLogger(a.logger), bind.Recovery(a.logger), limiter.middleware)

	r.Method(http.MethodGet, "/", bind.Handle(nil, nil, a.root, opts...))
	r.Method(http.MethodGet, "/users/me", bind.Handle(nil, nil, a.currentUser, opts...))
	r.Method(http.MethodGet, "/users/{user_id}", bind.Handle(a.schemas.userPath, nil, a.readUser, opts...))
	r.Method(http.MethodGet, "/models/{model_name}", bind.Handle(a.schemas.modelPath, a.schemas.modelOut, a.getModel, opts...))
	r.With(bind.Bound(a.schemas.page, opts...)).Get("/items", a.listItems)
	r.Method(http.MethodGet, "/item/{item_id}", bind.Handle(a.schemas.itemQuery, a.schemas.itemDetail, a.readItem, opts...))
	r.Method(http.MethodGet, "/users/{user_id}/items/{item_id}",
		bind.Handle(a.schemas.userItemQuery, a.schemas.itemDetail, a.readUserItem, opts...))
	r.Method(http.MethodPost, "/items/{item_id}", bind.Handle(a.schemas.createItem, a.schemas.itemOut, a.createItem, opts...))

	return r
}

func (a *app) root(context.Context, *bind.Object) (bind.Value, error) {
	return bind.Map{"message": "hello fast api."}, nil
}

func (a *app) currentUser(context.Context, *bind.Object) (bind.Value, error) {
	return bind.Map{"user_id": "the current user"}, nil
}

func (a *app) readUser(_ context.Context, in *bind.Object) (bind.Value, error) {
	return bind.Map{"user_id": in.GetInt("user_id")}, nil
}

func (a *app) getModel(_ context.Context, in *bind.Object) (bind.Value, error) {
	name := in.GetString("model_name")
	out := a.schemas.modelOut.Schema().New()
	out.MustSet("model_name", name).MustSet("message", modelMessages[name])
	return out, nil
}

func (a *app) listItems(w http.ResponseWriter, r *http.Request) {
	page, ok := bind.ObjectFrom(r.Context(), a.schemas.page)
	if !ok {
		bind.WriteErrors(w, bind.Error(http.StatusInternalServerError, "page not bound"))
		return
	}

	names := a.items.page(page.GetInt("skip"), page.GetInt("limit"))
	out := make([]*bind.Payload, len(names))
	for i, n := range names {
		out[i] = bind.Shape(bind.Map{"item_name": n}, a.schemas.itemName)
	}
	bind.WriteResponse(w, r, out, http.StatusOK)
}

func (a *app) readItem(_ context.Context, in *bind.Object) (bind.Value, error) {
	var q ItemQuery
	if err := bind.Decode(in, &q); err != nil {
		return nil, err
	}
	return a.itemDetail(q, nil), nil
}

func (a *app) readUserItem(_ context.Context, in *bind.Object) (bind.Value, error) {
	var q UserItemQuery
	if err := bind.Decode(in, &q); err != nil {
		return nil, err
	}
	return a.itemDetail(q.ItemQuery, &q.UserID), nil
}

// itemDetail sets only the fields that apply, so the exclude-unset
// response drops the rest.
func (a *app) itemDetail(q ItemQuery, owner *int64) *bind.Object {
	out := a.schemas.itemDetail.Schema().New()
	out.MustSet("item_id", q.ItemID)
	if owner != nil {
		out.MustSet("owner_id", *owner)
	}
	if q.Q != nil && *q.Q != "" {
		out.MustSet("q", *q.Q)
	}
	if !q.Short {
		out.MustSet("description", longDescription)
	}
	return out
}

func (a *app) createItem(_ context.Context, in *bind.Object) (bind.Value, error) {
	item := in.GetObject("item")

	out := a.schemas.itemOut.Schema().New()
	out.MustSet("item_id", in.GetInt("item_id"))
	// Every item field is echoed, defaults included; only the extras below
	// depend on the request.
	for _, name := range []string{"name", "description", "price", "tax"} {
		v, _ := item.Get(name)
		out.MustSet(name, v)
	}

	if tax := item.GetFloat("tax"); tax != 0 {
		out.MustSet("price_with_tax", item.GetFloat("price")+tax)
	}
	if q := in.GetString("q"); q != "" {
		out.MustSet("q", q)
	}
	return out, nil
}

package main

import (
	"bytes"
	_ "embed"
	"errors"

	"github.com/bjaus/bind"
)

//go:embed schemas.yaml
var schemaFile []byte

// ItemQuery is the input of GET /item/{item_id}.
type ItemQuery struct {
	ItemID string  `path:"item_id" doc:"Item identifier"`
	Q      *string `query:"q" maxLength:"50" doc:"Free-text filter"`
	Short  bool    `query:"short" default:"false" doc:"Omit the long description"`
}

// UserItemQuery is the input of GET /users/{user_id}/items/{item_id}.
type UserItemQuery struct {
	UserID int64 `path:"user_id" minimum:"1"`
	ItemQuery
}

type schemas struct {
	userPath      *bind.Schema
	modelPath     *bind.Schema
	page          *bind.Schema
	itemQuery     *bind.Schema
	userItemQuery *bind.Schema
	createItem    *bind.Schema

	modelOut   *bind.ResponseSpec
	itemName   *bind.ResponseSpec
	itemDetail *bind.ResponseSpec
	itemOut    *bind.ResponseSpec
}

// loadSchemas combines the three ways of declaring a schema: the embedded
// YAML file, struct tags, and Go constructors.
func loadSchemas() (*schemas, error) {
	defs, err := bind.LoadSchemas(bytes.NewReader(schemaFile))
	if err != nil {
		return nil, err
	}

	var errs []error
	schema := func(name string) *bind.Schema {
		s, err := defs.Schema(name)
		errs = append(errs, err)
		return s
	}
	response := func(name string) *bind.ResponseSpec {
		rs, err := defs.Response(name)
		errs = append(errs, err)
		return rs
	}

	s := &schemas{
		userPath:   schema("UserPath"),
		modelPath:  schema("ModelPath"),
		page:       schema("Page"),
		modelOut:   response("ModelOut"),
		itemName:   response("ItemName"),
		itemDetail: response("ItemDetail"),
		itemOut:    response("ItemOut"),
	}
	item := schema("Item")
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	if s.itemQuery, err = bind.SchemaOf[ItemQuery](); err != nil {
		return nil, err
	}
	if s.userItemQuery, err = bind.SchemaOf[UserItemQuery](); err != nil {
		return nil, err
	}

	s.createItem, err = bind.NewSchema("CreateItem", []bind.FieldSpec{
		bind.Field("item_id", bind.Int(), bind.In(bind.SourcePath)),
		bind.Field("item", bind.ObjectOf(item), bind.WholeBody()),
		bind.Field("q", bind.OptionalOf(bind.String()), bind.Default(nil), bind.MaxLength(50)),
	})
	if err != nil {
		return nil, err
	}

	return s, nil
}

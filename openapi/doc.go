// Package openapi generates OpenAPI v3.1.0 documents from the handlers of a
// view.Registry mounted on a gorilla/mux router.
//
// Nothing is declared twice: parameters, request bodies and responses are
// read from the same extractor bindings that parse the request, so the
// document can not drift from the behaviour of the handlers.
//
// See: https://spec.openapis.org/oas/v3.1.0
// See: https://json-schema.org/draft/2020-12/json-schema-validation
//
// # Building a Document
//
//	reg := view.NewRegistry(view.Config{})
//	r := mux.NewRouter()
//	r.Handle("/notes/{id}", reg.MustFunc(getNote, extract.NewSignature("getNote").
//	    Arg("id", extract.Param(extract.Int)).
//	    Returns(reflect.TypeFor[Note]()).
//	    Doc("Get a note\n\nReturns a single note by id."))).
//	    Methods(http.MethodGet).
//	    Name("getNote")
//
//	spec := openapi.NewSpec(openapi.Info{Title: "Notes", Version: "1.0.0"}, reg)
//	doc, err := spec.Build(r)
//
// Build walks the router after every route is registered. Routes served by
// other handlers are left out. A documented handler whose path variables
// have no declared extractor fails the build.
//
// # Operations
//
// Every route method gives one operation:
//
//   - the first paragraph of the handler doc is the summary and the rest is
//     the description
//   - the route name is the operationId, suffixed with the lowercased method
//     when the route serves several methods
//   - Path, Query, Header and Cookie bindings are parameters, and Param
//     bindings follow the route: path variables are path parameters and
//     everything else is a query parameter
//   - the body binding is the request body, keyed by its media type
//   - the response status is view.Status, or 200 with the return type schema
//     when a return type is declared, or 204 otherwise
//
// HEAD operations are left out unless IncludeHead is set.
//
// # Schemas
//
// Named structs become component schemas referenced with $ref. Field names
// follow encoding/json, and `validate` rules translate into constraints:
//
//	type Note struct {
//	    Title  string   `json:"title" validate:"required,max=200"`
//	    Rating int      `json:"rating" validate:"gte=0,lte=5"`
//	    Tags   []string `json:"tags,omitempty" validate:"max=10"`
//	}
//
// gives minimum/maximum for numbers, minLength/maxLength for strings,
// minItems/maxItems for slices and enum for oneof. The `openapi` tag adds
// documentation:
//
//	Title string `json:"title" openapi:"description=Note title,example=Groceries"`
//
// A field is required when it is tagged required by the validator, or when
// it has neither omitempty in its json tag nor in its validate tag.
//
// Types without a JSON representation are described as strings and a
// warning is logged through the logger given to SetLogger.
//
// # Serving the Document
//
// Handle registers the JSON and YAML documents together with a Swagger UI
// page:
//
//	spec.Handle(r, "/docs", nil)
//
//	GET /docs/             Swagger UI
//	GET /docs/schema.json  OpenAPI document (JSON)
//	GET /docs/schema.yaml  OpenAPI document (YAML)
//
// The document is built on first request and cached.
package openapi

// Package view adapts handlers declaring their parameters with extractors
// to net/http and gorilla/mux.
//
// A Registry wraps handler functions and class views. Each wrapped handler
// extracts its declared arguments before it is called; when extraction
// fails the client receives the list of field errors instead:
//
//	reg := view.NewRegistry(view.Config{})
//
//	listNotes := reg.MustFunc(func(w http.ResponseWriter, r *http.Request, args *view.Args) {
//	    limit := view.Get[int](args, "limit")
//	    ...
//	}, extract.NewSignature("listNotes").
//	    Request("request").
//	    Arg("limit", extract.Query(extract.Int, 20)),
//	    view.Tag("notes"))
//
//	r := mux.NewRouter()
//	r.Handle("/notes", listNotes).Methods(http.MethodGet)
//	if err := reg.Walk(r); err != nil {
//	    log.Fatal(err)
//	}
//
// # Error Responses
//
// Field errors are written as a JSON array with the configured error status
// (400 by default):
//
//	[{"in": "query", "loc": ["limit"], "msg": "...", "type": "NumError"}]
//
// Requests violating the multipart protocol are rejected with 400 and a
// single JSON object {"msg", "in", "type"}.
//
// # Class Views
//
// A class view is a receiver with methods named after HTTP methods. Their
// parameters come from the optional Declarer interface:
//
//	func (v *NoteView) Signature(method string) *extract.Signature {
//	    switch method {
//	    case http.MethodGet:
//	        return extract.NewSignature("NoteView.Get").
//	            Bare("self").
//	            Request("request").
//	            Arg("id", extract.Param(extract.UUID))
//	    }
//	    return nil
//	}
//
// # Metrics
//
// With Config.Registerer set, the registry exports
// reqbind_extraction_duration_seconds, reqbind_validation_failures_total
// and reqbind_protocol_violations_total.
//
// # Middleware
//
// LimitBody caps request bodies and Registry.Recover turns handler panics
// into logged 500 responses. Both are gorilla mux.MiddlewareFunc values:
//
//	limit, err := view.LimitBody(1 << 20)
//	r.Use(reg.Recover(), limit)
package view

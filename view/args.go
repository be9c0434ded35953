package view

import (
	"net/http"
	"slices"

	"github.com/vitalvas/reqbind/extract"
)

// Args carries the arguments of one request to a handler: the extracted
// values by parameter name and the positional pass-through values.
type Args struct {
	positional []any
	values     map[string]any
}

// NewArgs builds handler arguments directly, for calling handlers in tests.
func NewArgs(positional []any, values map[string]any) *Args {
	if values == nil {
		values = map[string]any{}
	}
	return &Args{positional: positional, values: values}
}

// newArgs binds the unmatched parameters by role. A request-annotated
// parameter receives r. Bare parameters take the receiver, when there is
// one, then r if no parameter is annotated as the request. Bare parameters
// left without a value are not bound.
func newArgs(info extract.InspectInfo, receiver any, r *http.Request, unmatched []string, values map[string]any) *Args {
	var bare []any
	if receiver != nil {
		bare = append(bare, receiver)
	}
	if !slices.ContainsFunc(unmatched, func(name string) bool { return isRequestParam(info, name) }) {
		bare = append(bare, r)
	}

	positional := make([]any, 0, len(unmatched))
	for _, name := range unmatched {
		var v any
		switch {
		case isRequestParam(info, name):
			v = r
		case len(bare) > 0:
			v, bare = bare[0], bare[1:]
		default:
			continue
		}
		values[name] = v
		positional = append(positional, v)
	}
	return &Args{positional: positional, values: values}
}

func isRequestParam(info extract.InspectInfo, name string) bool {
	p, ok := info.Param(name)
	return ok && p.IsRequest()
}

// Positional returns the pass-through values in declaration order: the
// receiver of a class handler and the request, as far as the signature
// declares them.
func (a *Args) Positional() []any {
	return a.positional
}

// Value returns the argument called name, or nil.
func (a *Args) Value(name string) any {
	return a.values[name]
}

// Lookup returns the argument called name converted to T. It reports false
// if the argument is unknown or of another type.
func Lookup[T any](a *Args, name string) (T, bool) {
	v, ok := a.values[name].(T)
	return v, ok
}

// Get returns the argument called name converted to T, or the zero value.
func Get[T any](a *Args, name string) T {
	v, _ := Lookup[T](a, name)
	return v
}
